package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"campusattend/internal/metrics"
	"campusattend/internal/otp"
)

// Janitor periodically deletes used and expired OTP challenges.
type Janitor struct {
	Auth     *otp.Authenticator
	Interval time.Duration
	Log      *zap.Logger
	Metrics  *metrics.Metrics
}

// Run purges once immediately, then on every tick until ctx is done.
func (j *Janitor) Run(ctx context.Context) {
	if j.Log == nil {
		j.Log = zap.NewNop()
	}
	interval := j.Interval
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	j.purge(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			j.purge(ctx)
		case <-ctx.Done():
			j.Log.Info("otp janitor stopped")
			return
		}
	}
}

func (j *Janitor) purge(ctx context.Context) {
	n, err := j.Auth.PurgeExpired(ctx)
	if err != nil {
		j.Log.Error("otp purge failed", zap.Error(err))
		return
	}
	if j.Metrics != nil {
		j.Metrics.OTPPurged.Add(float64(n))
	}
	if n > 0 {
		j.Log.Info("purged otp challenges", zap.Int64("count", n))
	}
}
