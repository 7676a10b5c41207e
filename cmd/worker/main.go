package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"coursehub/internal/cache"
	"coursehub/internal/config"
	"coursehub/internal/log"
	"coursehub/internal/mail"
	"coursehub/internal/queue"
	"coursehub/internal/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.Component(log.New(cfg.Environment), "mail-worker")
	if err := cfg.ValidateWorker(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	client, err := cache.NewRedisClient(context.Background(), cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection failed")
	}
	defer client.Close()

	processor := tasks.NewMailProcessor(mail.NewSMTPSender(cfg.Mail.SMTP), logger)
	consumer := queue.NewConsumer(
		client,
		cfg.Mail.Stream,
		cfg.Mail.Group,
		cfg.Mail.Consumer,
		cfg.Mail.ClaimInterval,
		logger,
		processor,
	).WithMaxDeliveries(cfg.Mail.MaxDeliveries)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info().
		Str("stream", cfg.Mail.Stream).
		Str("group", cfg.Mail.Group).
		Str("consumer", cfg.Mail.Consumer).
		Msg("mail worker starting")

	if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("consumer stopped unexpectedly")
		return
	}
	logger.Info().Msg("mail worker stopped")
}
