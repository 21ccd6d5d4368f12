// migrate runs DB migrations from embedded SQL: go run ./cmd/migrate -direction up.
package main

import (
	"flag"
	"fmt"
	"os"

	"saas-core/backend/internal/config"
	"saas-core/backend/internal/db/migrate"
	"saas-core/backend/internal/logger"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel, cfg.Env, nil)

	if err := migrate.Run(cfg.DatabaseURL, *direction, log); err != nil {
		log.Fatal().Err(err).Msg("migrate failed")
	}
}
