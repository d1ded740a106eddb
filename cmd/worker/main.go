package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"orgauthz/internal/engine/invitations"
	"orgauthz/internal/pkg/logger"
	"orgauthz/internal/platform/config"
	"orgauthz/internal/platform/database"
	"orgauthz/internal/platform/repositories"
	"orgauthz/internal/workers"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to config file")
	once := flag.Bool("once", false, "Run a single sweep and exit")
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

	lifecycle := invitations.NewLifecycle(invitations.NewRepository(db), repositories.NewOrganizationRepository(db),
		invitations.WithValidityWindow(cfg.Invitations.ValidityWindow),
	)

	if *once {
		if err := workers.ExpireInvitations(context.Background(), lifecycle); err != nil {
			os.Exit(1)
		}
		return
	}

	scheduler, err := workers.NewScheduler(cfg.Worker.SweepSchedule, lifecycle, time.Minute)
	if err != nil {
		log.Fatal().Err(err).Str("schedule", cfg.Worker.SweepSchedule).Msg("Invalid sweep schedule")
	}
	log.Info().Str("schedule", cfg.Worker.SweepSchedule).Msg("Starting background workers")
	scheduler.Start()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	<-scheduler.Stop().Done()
	log.Info().Msg("Workers stopped")
}
