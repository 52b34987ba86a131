package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"task-tracker/internal/api"
	"task-tracker/internal/bot"
	"task-tracker/internal/config"
	"task-tracker/internal/logger"
	"task-tracker/internal/metrics"
	"task-tracker/internal/ratelimit"
	"task-tracker/internal/repository"
	"task-tracker/internal/service"
)

const (
	limiterIdleTTL = 10 * time.Minute
	jobTimeout     = 5 * time.Minute
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	if err := run(ctx, cfg, log); err != nil {
		log.Error("task tracker stopped with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log.Info("shutdown complete")
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	db, err := repository.NewDB(cfg.DatabaseURL, repository.PoolConfig{
		MaxOpenConns: cfg.MaxOpenConns,
		MaxIdleConns: cfg.MaxIdleConns,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := repository.Close(db); err != nil {
			log.Warn("close database", slog.String("error", err.Error()))
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	userRepo := repository.NewUserRepository(db)
	taskRepo := repository.NewTaskRepository(db)

	engine := service.NewCounterEngine(db, userRepo, taskRepo, log, m, cfg.OperationTimeout)
	audit := service.NewAuditService(db, userRepo, taskRepo, log, m)
	reports := service.NewReportService(taskRepo)

	var limiter *ratelimit.MapLimiter
	if cfg.RateLimitRPS > 0 {
		limiter = ratelimit.New(cfg.RateLimitRPS, cfg.RateLimitBurst, limiterIdleTTL)
	}

	handler := api.NewHandler(engine, audit, func(ctx context.Context) error {
		return repository.Ping(ctx, db)
	}, log)

	server := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: api.NewRouter(api.RouterDeps{
			Handler:  handler,
			Log:      log,
			Metrics:  m,
			Gatherer: registry,
			Limiter:  limiter,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	scheduler := service.NewSchedulerService(time.Local)
	if cfg.AuditEnabled() {
		if _, err := scheduler.ScheduleSpec(cfg.AuditSchedule, func() {
			jobCtx, cancel := context.WithTimeout(ctx, jobTimeout)
			defer cancel()
			report, err := audit.ReconcileAll(jobCtx, cfg.AuditRepair)
			if err != nil {
				log.Error("counter audit", slog.String("error", err.Error()))
				return
			}
			log.Info("counter audit finished",
				slog.Int("checked", report.Checked),
				slog.Int("drifted", len(report.Drifted)),
				slog.Int("failed", report.Failed))
		}); err != nil {
			return err
		}
	}

	errCh := make(chan error, 2)

	if cfg.BotEnabled() {
		telegramBot, err := bot.New(cfg.TelegramToken, engine, reports, log)
		if err != nil {
			return err
		}
		if err := scheduleReports(ctx, cfg, scheduler, telegramBot, log); err != nil {
			return err
		}
		go func() {
			if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- err
			}
		}()
	} else {
		log.Info("telegram token not set, bot disabled")
	}

	scheduler.Start()
	defer scheduler.Stop()

	go func() {
		log.Info("http server listening", slog.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		shutdown(server, cfg.ShutdownTimeout, log)
		return err
	}

	shutdown(server, cfg.ShutdownTimeout, log)
	return nil
}

func scheduleReports(ctx context.Context, cfg config.Config, scheduler *service.SchedulerService, telegramBot *bot.Bot, log *slog.Logger) error {
	job := func() {
		jobCtx, cancel := context.WithTimeout(ctx, jobTimeout)
		defer cancel()
		if err := telegramBot.SendDailyReports(jobCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("send reports", slog.String("error", err.Error()))
		}
	}

	switch {
	case cfg.ReportAt != "":
		_, err := scheduler.ScheduleDaily(cfg.ReportAt, job)
		return err
	case cfg.ReportInterval > 0:
		_, err := scheduler.ScheduleInterval(cfg.ReportInterval, job)
		return err
	}
	return nil
}

func shutdown(server *http.Server, timeout time.Duration, log *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Warn("http shutdown", slog.String("error", err.Error()))
	}
}

