package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/clinicbook/backend/internal/infrastructure/clients/postgres"
	"github.com/clinicbook/backend/internal/infrastructure/observability"
	"github.com/clinicbook/backend/pkg/config"
)

func main() {
	var list bool
	flag.BoolVar(&list, "list", false, "List embedded migrations and exit")
	flag.Parse()

	cfg := config.FromEnv()
	observability.InitLogger("clinic-booking-migrate", cfg.Server.Env)
	logger := observability.GetLogger()

	if list {
		migrations, err := postgres.Migrations()
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to read embedded migrations")
		}
		for _, m := range migrations {
			fmt.Println(m.Version)
		}
		return
	}

	// Setup DB
	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pgClient.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	start := time.Now()
	applied, err := pgClient.Migrate(ctx)
	if err != nil {
		logger.Error().Err(err).Int("applied", applied).Msg("migration failed")
		os.Exit(1)
	}

	logger.Info().
		Int("applied", applied).
		Dur("took", time.Since(start)).
		Msg("migrations complete")
}
