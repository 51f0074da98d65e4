package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/occchan/internal/builder"
	occconfig "github.com/danmuck/occchan/internal/config"
	"github.com/danmuck/occchan/internal/logging"
	"github.com/danmuck/occchan/internal/observability"
	"github.com/danmuck/occchan/occ"
)

const defaultConfigPath = "cmd/occ-client/occ-client.toml"

func main() {
	var configPath string
	var message string
	flag.StringVar(&configPath, "config", defaultConfigPath, "path to the client TOML config")
	flag.StringVar(&message, "message", "hello", "message payload to send once connected")
	flag.Parse()

	logging.ConfigureRuntime()

	if err := run(configPath, message); err != nil {
		log.Error().Err(err).Msg("occ-client: fatal")
		os.Exit(1)
	}
}

func run(configPath, message string) error {
	cfg, err := occconfig.LoadClientConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	b, err := builder.NewTCPBuilder(cfg.BuilderConfig())
	if err != nil {
		return fmt.Errorf("new builder: %w", err)
	}

	o := occ.New(b)
	observability.NewOCCLogger(log.Logger).Attach(o)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := o.SendMessage(occ.Envelope{Kind: occ.KindMessage, ID: nextID(), Payload: []byte(quote(message))}); err != nil {
		_ = o.Finish(ctx)
		return fmt.Errorf("send message: %w", err)
	}

	if err := o.Finish(ctx); err != nil {
		return fmt.Errorf("finish: %w", err)
	}
	log.Info().Msg("occ-client: session finished cleanly")
	return nil
}

func nextID() string {
	return fmt.Sprintf("occ-client-%d", time.Now().UnixNano())
}

func quote(s string) string {
	return `"` + s + `"`
}
