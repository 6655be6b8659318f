package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"campusattend/internal/api"
	"campusattend/internal/app"
	"campusattend/internal/attendance"
	"campusattend/internal/auth"
	"campusattend/internal/clock"
	"campusattend/internal/config"
	"campusattend/internal/httpmiddleware"
	"campusattend/internal/logger"
	"campusattend/internal/metrics"
	"campusattend/internal/otp"
	"campusattend/internal/user"
)

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

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg, lg); err != nil {
		lg.Fatal("http server failed", zap.Error(err))
	}
}

func run(cfg config.App, lg *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clk, err := clock.NewSystem(cfg.Timezone)
	if err != nil {
		return err
	}
	sched, err := app.LoadSchedule(cfg)
	if err != nil {
		return err
	}
	backends, err := app.Open(ctx, cfg, lg)
	if err != nil {
		return err
	}
	defer backends.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	users := user.NewService(backends.Users, clk)
	if cfg.AdminEmail != "" && cfg.AdminPassword != "" {
		created, err := users.EnsureAdmin(ctx, cfg.AdminCollegeID, "Administrator", cfg.AdminEmail, cfg.AdminPassword)
		if err != nil {
			return err
		}
		if created {
			lg.Info("seeded admin account", zap.String("email", cfg.AdminEmail))
		}
	}

	authenticator := otp.NewAuthenticator(backends.OTP, app.NewMailer(cfg, backends.Queue, lg), clk, otp.WithLogger(lg))
	if backends.InProcessStores() {
		// No cmd/worker shares these stores, so purge here.
		go (&app.Janitor{Auth: authenticator, Interval: cfg.OTPPurgeInterval, Log: lg, Metrics: m}).Run(ctx)
	}

	srv := &api.Server{
		Users:      users,
		OTP:        authenticator,
		Recorder:   attendance.NewRecorder(backends.Attendance, sched, clk, lg),
		Scheduler:  sched,
		Signer:     auth.NewSigner(cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL),
		Clock:      clk,
		Metrics:    m,
		Log:        lg,
		OTPLimiter: backends.Limiter("otp", cfg.OTPIssueLimit, cfg.OTPIssueWindow),
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestID())
	r.Use(httpmiddleware.Logger(lg, "/healthz", "/metrics"))
	r.Use(cors.New(corsConfig(cfg.CORSOrigins)))
	r.Use(httpmiddleware.SecurityHeaders())
	r.Use(m.Gin())
	r.Use(httpmiddleware.RateLimit(backends.Limiter("http", cfg.RateLimitPerMin, time.Minute), lg))

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	r.GET("/healthz", func(c *gin.Context) {
		health := backends.Health(c.Request.Context())
		status := http.StatusOK
		for _, ok := range health {
			if !ok {
				status = http.StatusServiceUnavailable
			}
		}
		c.JSON(status, gin.H{"status": http.StatusText(status), "backends": health, "schedule_version": sched.Version()})
	})
	srv.Register(r)

	httpSrv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		lg.Info("starting server", zap.String("port", cfg.HTTPPort), zap.String("schedule_version", sched.Version()))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	lg.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		lg.Warn("server forced shutdown", zap.Error(err))
	}
	lg.Info("server exited")
	return nil
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", httpmiddleware.RequestIDHeader},
		ExposeHeaders:    []string{httpmiddleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 1 && origins[0] == "*" {
		c.AllowAllOrigins = true
		c.AllowCredentials = false
	} else {
		c.AllowOrigins = origins
	}
	return c
}
