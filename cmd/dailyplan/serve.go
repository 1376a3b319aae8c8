package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"dailyplan/internal/bot"
	"dailyplan/internal/httpapi"
	"dailyplan/internal/service"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, queue worker, scheduler and Telegram bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.cfg.ValidateServe(); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, a)
		},
	}
}

func serve(ctx context.Context, a *app) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	log := a.logger
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = a.worker.Run(ctx)
	}()

	var telegram *bot.Bot
	if a.cfg.Telegram.Token != "" {
		b, err := bot.New(a.cfg.Telegram.Token, bot.Deps{
			Users:      a.repos.Users,
			Capacity:   a.capacity,
			Candidates: a.suggestions,
			Plans:      a.plans,
			Summaries:  a.summaries,
		}, log.Named("bot"))
		if err != nil {
			return err
		}
		telegram = b
		// The bot is not awaited on shutdown: its long poll ends on its own.
		go func() {
			if err := telegram.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("bot stopped with error", zap.Error(err))
			}
		}()
	} else {
		log.Info("TELEGRAM_TOKEN not set, bot disabled")
	}

	scheduler := service.NewSchedulerService(time.UTC, log.Named("cron"))
	if _, err := scheduler.ScheduleDaily("renew-watches", a.cfg.Google.RenewAt, func(ctx context.Context) error {
		n, err := a.watches.RenewExpiring(ctx, a.cfg.Google.RenewWindow)
		log.Info("watch renewal finished", zap.Int("renewed", n))
		return err
	}); err != nil {
		return err
	}
	if telegram != nil && a.cfg.Reports.Interval > 0 {
		if _, err := scheduler.ScheduleInterval("daily-reports", a.cfg.Reports.Interval, telegram.SendDailyReports); err != nil {
			return err
		}
	}
	scheduler.Start()
	defer scheduler.Stop()

	checks := map[string]httpapi.ReadinessCheck{"db": a.pingDB}
	if a.rdb != nil {
		checks["redis"] = func(ctx context.Context) error { return a.rdb.Ping(ctx).Err() }
	}
	router := httpapi.NewRouter(httpapi.Deps{
		Capacity:    a.capacity,
		Suggestions: a.suggestions,
		Plans:       a.plans,
		Days:        a.summaries,
		Tasks:       a.tasks,
		Watches:     a.watches,
		Queue:       a.worker,
		Webhook:     a.webhook,
		Checks:      checks,
		JWTSecret:   a.cfg.Auth.JWTSecret,
		Logger:      log.Named("http"),
	})
	srv := &http.Server{
		Addr:              a.cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
		log.Error("HTTP server failed", zap.Error(serveErr))
	}

	log.Info("shutting down")
	shutdownCtx, stopShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}
	cancel()
	wg.Wait()
	log.Info("shutdown complete")
	return serveErr
}
