package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"coursehub/internal/cache"
	"coursehub/internal/config"
	"coursehub/internal/database"
	"coursehub/internal/handlers"
	"coursehub/internal/identity"
	"coursehub/internal/jobs"
	"coursehub/internal/ledger"
	"coursehub/internal/log"
	"coursehub/internal/mail"
	"coursehub/internal/rbac"
	"coursehub/internal/repository"
	"coursehub/internal/security"
	"coursehub/internal/server"
	"coursehub/internal/service"
	"coursehub/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx := context.Background()

	dbPool, err := database.Open(ctx, cfg.Postgres, log.Component(logger, "database"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}

	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect redis")
	}

	objectStore, err := storage.NewObjectStore(cfg.Storage)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init object store")
	}
	if err := objectStore.EnsureBucket(ctx); err != nil {
		logger.Warn().Err(err).Msg("ensure avatar bucket failed")
	}

	// Without Redis the ledger lives in process memory and outgoing mail is
	// only logged. Fine for a single dev instance, not for a fleet.
	var (
		tokenLedger  ledger.Ledger
		memoryLedger *ledger.MemoryLedger
		dispatcher   mail.Dispatcher
	)
	if redisClient != nil {
		tokenLedger = ledger.NewRedisLedger(redisClient, cfg.Redis.KeyPrefix)
		dispatcher = mail.NewStreamPublisher(redisClient, cfg.Mail.Stream, cfg.Mail.MaxLen)
	} else {
		logger.Warn().Msg("redis not configured, using in-memory token ledger")
		memoryLedger = ledger.NewMemoryLedger(time.Now)
		tokenLedger = memoryLedger
		dispatcher = mail.NewLogDispatcher(log.Component(logger, "mail"))
	}

	tokens := security.NewTokens(security.TokenSettings{
		AccessSecret:     cfg.Security.AccessSecret,
		RefreshSecret:    cfg.Security.RefreshSecret,
		ActivationSecret: cfg.Security.ActivationSecret,
		ResetSecret:      cfg.Security.ResetSecret,
		AccessTTL:        cfg.Security.AccessTTL,
		RefreshTTL:       cfg.Security.RefreshTTL,
		ActivationTTL:    cfg.Security.ActivationTTL,
		ResetTTL:         cfg.Security.ResetTTL,
	}, time.Now)
	hasher := security.NewPasswordHasher(security.DefaultArgon2Params)

	accounts := repository.NewAccountRepository(dbPool)
	mailer := service.NewAsyncMailer(dispatcher, cfg.Mail.SendTimeout, log.Component(logger, "mailer"))

	sessions := service.NewSessionService(accounts, tokens, hasher, tokenLedger, log.Component(logger, "sessions"))
	activations := service.NewActivationService(accounts, tokens, hasher, tokenLedger, mailer, cfg.Security, log.Component(logger, "activation"))
	resets := service.NewResetService(accounts, tokens, hasher, tokenLedger, mailer, cfg.Security, log.Component(logger, "reset"))
	social := service.NewSocialLinker(accounts, sessions, log.Component(logger, "social"))
	accountService := service.NewAccountService(accounts, objectStore, cfg.Storage.MaxAvatarSize, log.Component(logger, "accounts"))

	identities := identity.NewRegistry()
	if cfg.Identity.GoogleClientID != "" {
		identities.Register("google", identity.NewGoogle(cfg.Identity.GoogleClientID))
	}

	checks := []handlers.HealthCheck{{Name: "database", Ping: dbPool.Ping}}
	if redisClient != nil {
		checks = append(checks, handlers.HealthCheck{
			Name: "cache",
			Ping: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		})
	}

	handlerSet := handlers.NewHandlerSet(handlers.Deps{
		Log:          logger,
		Config:       cfg,
		Sessions:     sessions,
		Activations:  activations,
		Resets:       resets,
		Social:       social,
		Identities:   identities,
		Accounts:     accountService,
		Guard:        rbac.NewGuard(sessions),
		HealthChecks: checks,
	})
	httpServer, err := server.NewHTTPServer(cfg, logger, handlerSet)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build http server")
	}

	schedulerOpts := jobs.Options{Queue: redisClient, MailStream: cfg.Mail.Stream, MailMaxLen: cfg.Mail.MaxLen}
	if memoryLedger != nil {
		schedulerOpts.Ledger = memoryLedger
	}
	scheduler := jobs.NewScheduler(schedulerOpts, log.Component(logger, "scheduler"))
	if err := scheduler.Start(); err != nil {
		logger.Error().Err(err).Msg("scheduler start failed")
	}

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	waitForShutdown(logger, httpServer, scheduler, mailer, dbPool, redisClient)
}

func waitForShutdown(logger zerolog.Logger, srv *server.HTTPServer, scheduler *jobs.Scheduler, mailer *service.AsyncMailer, db *pgxpool.Pool, redisClient *redis.Client) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	select {
	case <-scheduler.Stop().Done():
	case <-shutdownCtx.Done():
		logger.Warn().Msg("scheduler jobs still running at shutdown")
	}

	// Queued activation and reset mails must reach Redis before it closes.
	mailer.Wait()

	db.Close()
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("redis close error")
		}
	}

	logger.Info().Msg("server exited cleanly")
}
