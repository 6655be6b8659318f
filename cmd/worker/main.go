package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"campusattend/internal/app"
	"campusattend/internal/clock"
	"campusattend/internal/config"
	"campusattend/internal/logger"
	"campusattend/internal/mail"
	"campusattend/internal/metrics"
	"campusattend/internal/otp"
)

// Worker delivers queued OTP mail and purges stale challenges.
func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	lg, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer lg.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clk, err := clock.NewSystem(cfg.Timezone)
	if err != nil {
		lg.Fatal("clock", zap.Error(err))
	}
	backends, err := app.Open(ctx, cfg, lg)
	if err != nil {
		lg.Fatal("open backends", zap.Error(err))
	}
	defer backends.Close()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	metricsSrv := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Warn("metrics server stopped", zap.Error(err))
		}
	}()

	var sender mail.Sender = app.SMTPSender(cfg)
	if cfg.SMTPUsername == "" {
		lg.Warn("SMTP_USERNAME not set, queued codes will be logged instead of mailed")
		sender = mail.LogSender{Log: lg}
	}
	worker := &mail.Worker{
		Queue:  backends.Queue,
		Sender: sender,
		Log:    lg,
		OnResult: func(err error) {
			m.MailJobs.WithLabelValues(metrics.Result(err)).Inc()
		},
	}
	janitor := &app.Janitor{
		Auth:     otp.NewAuthenticator(backends.OTP, nil, clk, otp.WithLogger(lg)),
		Interval: cfg.OTPPurgeInterval,
		Log:      lg,
		Metrics:  m,
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		janitor.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		lg.Info("mail worker started", zap.String("queue_backend", cfg.QueueBackend))
		if err := worker.Run(ctx); err != nil {
			lg.Error("mail worker failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	lg.Info("shutdown signal received")
	wg.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsSrv.Shutdown(shutdownCtx)
	lg.Info("worker stopped")
}
