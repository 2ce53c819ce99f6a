package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"supplydesk/backend/internal/config"
	"supplydesk/backend/internal/logger"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "warning: could not load .env file: %v\n", err)
	}

	closer, err := logger.Setup(config.Load().LoggerConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid logging configuration (%v), using defaults\n", err)
		if closer, err = logger.Setup(logger.DefaultConfig()); err != nil {
			fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
			os.Exit(1)
		}
	}

	code := 0
	if err := newRootCmd().Execute(); err != nil {
		log := logger.WithComponent("cmd")
		log.Error().Err(err).Msg("command failed")
		code = 1
	}
	_ = closer.Close()
	os.Exit(code)
}
