package logging

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	EnvLogLevel     = "OCC_LOG_LEVEL"
	EnvLogTimestamp = "OCC_LOG_TIMESTAMP"
	EnvLogNoColor   = "OCC_LOG_NOCOLOR"
	EnvLogBypass    = "OCC_LOG_BYPASS"
)

type Profile int

const (
	ProfileRuntime Profile = iota
	ProfileTest
)

var configureOnce sync.Once

func ConfigureRuntime() {
	Configure(ProfileRuntime)
}

func ConfigureTests() {
	Configure(ProfileTest)
}

// Configure sets the global zerolog logger and level exactly once per
// process; later calls (including from other packages or repeated test
// setup) are no-ops.
func Configure(profile Profile) {
	configureOnce.Do(func() {
		level, timestamp, noColor, bypass := defaults(profile)
		applyEnvOverrides(&level, &timestamp, &noColor, &bypass)

		if bypass {
			log.Logger = zerolog.Nop()
			return
		}

		out := zerolog.ConsoleWriter{Out: os.Stdout, NoColor: noColor}
		if !timestamp {
			out.PartsExclude = []string{zerolog.TimestampFieldName}
		}
		out.TimeFormat = time.RFC3339

		logger := zerolog.New(out).Level(level)
		if timestamp {
			logger = logger.With().Timestamp().Logger()
		}
		log.Logger = logger
	})
}

func defaults(profile Profile) (level zerolog.Level, timestamp, noColor, bypass bool) {
	switch profile {
	case ProfileTest:
		return zerolog.DebugLevel, false, true, false
	default:
		return zerolog.InfoLevel, true, false, false
	}
}

func applyEnvOverrides(level *zerolog.Level, timestamp, noColor, bypass *bool) {
	if lvl, ok := parseLevel(os.Getenv(EnvLogLevel)); ok {
		*level = lvl
	}
	if v, ok := parseBool(os.Getenv(EnvLogTimestamp)); ok {
		*timestamp = v
	}
	if v, ok := parseBool(os.Getenv(EnvLogNoColor)); ok {
		*noColor = v
	}
	if v, ok := parseBool(os.Getenv(EnvLogBypass)); ok {
		*bypass = v
	}
}

func parseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return zerolog.InfoLevel, false
	case "trace":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "disabled", "disable", "off", "none", "inactive":
		return zerolog.Disabled, true
	default:
		return zerolog.InfoLevel, false
	}
}

func parseBool(raw string) (bool, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
