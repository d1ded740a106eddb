package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/rs/zerolog/log"

	"orgauthz/internal/engine/catalog"
	"orgauthz/internal/pkg/logger"
	"orgauthz/internal/platform/config"
	"orgauthz/internal/platform/database"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to config file")
	seed := flag.Bool("seed", true, "Seed the built-in role templates")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	logger.Init(cfg.Logging)

	db, err := database.Open(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer db.Close()

	ctx := context.Background()
	if err := database.Migrate(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("Migration failed")
	}

	if *seed {
		if err := catalog.NewRepository(db).Seed(ctx, catalog.Builtin()); err != nil {
			log.Fatal().Err(err).Msg("Failed to seed role templates")
		}
	}

	fmt.Println("Migration completed successfully")
}
