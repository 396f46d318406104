package main // Entry point package

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/garbage-collector/internal/config"
	"github.com/iliyamo/garbage-collector/internal/database"
	"github.com/iliyamo/garbage-collector/internal/handler"
	"github.com/iliyamo/garbage-collector/internal/jobs"
	"github.com/iliyamo/garbage-collector/internal/logger"
	"github.com/iliyamo/garbage-collector/internal/mail"
	"github.com/iliyamo/garbage-collector/internal/metrics"
	"github.com/iliyamo/garbage-collector/internal/middleware"
	"github.com/iliyamo/garbage-collector/internal/queue"
	"github.com/iliyamo/garbage-collector/internal/repository"
	"github.com/iliyamo/garbage-collector/internal/router"
	"github.com/iliyamo/garbage-collector/internal/service"
	"github.com/iliyamo/garbage-collector/internal/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logger.New(logger.Options{Service: "garbage-collector", Level: cfg.App.LogLevel, Format: cfg.App.LogFormat})

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func run(cfg config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DB)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// nil when Redis is unreachable; limiter and cache then pass through.
	rdb := config.NewRedisClient(cfg.Redis)
	if rdb == nil {
		log.Warn().Msg("redis unavailable: rate limiting and response cache disabled")
	} else {
		defer rdb.Close()
	}

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	cards := repository.NewCardRepo(db)
	statuses := repository.NewCardStatusRepo(db)
	rewards := repository.NewRewardRepo(db)
	ledger := repository.NewLedgerRepo(db)

	// Mail goes through the RabbitMQ outbox when configured; the consumer
	// then performs the actual delivery.
	var delivery mail.Sender = mail.LogSender{Log: log}
	if cfg.Mail.Host != "" {
		delivery = mail.NewSMTPSender(cfg.Mail)
	}
	sender := delivery
	var consumer *queue.Consumer
	if cfg.AMQP.URL != "" {
		sender = &queue.Publisher{URL: cfg.AMQP.URL, Queue: cfg.AMQP.MailQueue, Log: log}
		consumer = &queue.Consumer{
			URL:      cfg.AMQP.URL,
			Queue:    cfg.AMQP.MailQueue,
			Prefetch: cfg.AMQP.Prefetch,
			Deliver:  delivery,
			Metrics:  m,
			Log:      log,
		}
	}

	authSvc := &service.AuthService{
		Users: users, Tokens: tokens, Mail: sender, Metrics: m, Log: log,
		Secret:     cfg.Auth.JWTSecret,
		SessionTTL: cfg.Auth.SessionTTL,
		ResetTTL:   cfg.Auth.ResetTokenTTL,
		BcryptCost: cfg.Auth.BcryptCost,
		BaseURL:    cfg.App.BaseURL,
		AdminEmail: cfg.Mail.AdminEmail,
	}
	ledgerSvc := &service.LedgerService{Ledger: ledger, Rewards: rewards, Metrics: m, Log: log}
	cardSvc := &service.CardService{
		Cards: cards, Statuses: statuses, Ledger: ledger, Users: users,
		Mail: sender, Metrics: m, Log: log,
		ClosePoints:   cfg.Ledger.CardClosePoints,
		MaxImageBytes: cfg.Upload.MaxImageBytes,
	}
	rewardSvc := &service.RewardService{
		Rewards: rewards,
		Log:     log,
		OnChange: func(ctx context.Context) {
			if err := middleware.PurgeCache(ctx, rdb, cfg.Cache.Prefix); err != nil {
				log.Warn().Err(err).Msg("purge rewards cache failed")
			}
		},
	}
	userSvc := &service.UserService{Users: users, Log: log}

	e := router.New(router.Deps{
		Config:   cfg,
		Log:      log,
		Metrics:  m,
		Gatherer: reg,
		Redis:    rdb,
		DB:       db,
		Verifier: utils.JWTVerifier{Secret: cfg.Auth.JWTSecret},
		Auth: &handler.AuthHandler{
			Auth: authSvc, Ledger: ledgerSvc,
			CookieSecure: cfg.Auth.CookieSecure || cfg.App.IsProd(),
			CookieDomain: cfg.Auth.CookieDomain,
		},
		Cards:   &handler.CardHandler{Cards: cardSvc, MaxImageBytes: cfg.Upload.MaxImageBytes},
		Rewards: &handler.RewardHandler{Rewards: rewardSvc, Ledger: ledgerSvc},
		Users:   &handler.UserHandler{Users: userSvc},
	})

	g, gctx := errgroup.WithContext(ctx)

	var sched *jobs.Scheduler
	if cfg.Jobs.Enabled {
		sched = jobs.NewScheduler(cfg.Jobs, users, tokens, m, log)
		if err := sched.Start(gctx); err != nil {
			return err
		}
	}
	if consumer != nil {
		g.Go(func() error {
			if err := consumer.Run(gctx); !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	addr := ":" + cfg.App.Port
	g.Go(func() error {
		log.Info().Str("addr", addr).Str("env", cfg.App.Env).Msg("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// Runs on SIGINT/SIGTERM or when any component above fails.
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("http shutdown")
		}
		if sched != nil {
			sched.Stop()
		}
		return nil
	})

	return g.Wait()
}
