package otp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"campusattend/internal/clock"
)

// Issued is the outcome of a code request. DeliveryErr is set when the mailer
// failed; the challenge is persisted and usable regardless.
type Issued struct {
	Challenge   Challenge
	DeliveryErr error
}

// DefaultSendTimeout bounds a single mailer hand-off during Issue.
const DefaultSendTimeout = 10 * time.Second

// Authenticator issues and verifies one-time codes.
type Authenticator struct {
	store       Store
	mailer      Mailer
	clock       clock.Clock
	ttl         time.Duration
	sendTimeout time.Duration
	newCode     func() (string, error)
	log         *zap.Logger
}

// Option customises an Authenticator.
type Option func(*Authenticator)

// WithSendTimeout overrides how long Issue waits on the mailer.
func WithSendTimeout(d time.Duration) Option {
	return func(a *Authenticator) {
		if d > 0 {
			a.sendTimeout = d
		}
	}
}

// WithCodeGenerator replaces the random code source.
func WithCodeGenerator(gen func() (string, error)) Option {
	return func(a *Authenticator) { a.newCode = gen }
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(a *Authenticator) { a.log = log }
}

// NewAuthenticator wires an authenticator. Codes are valid for DefaultTTL.
func NewAuthenticator(store Store, mailer Mailer, clk clock.Clock, opts ...Option) *Authenticator {
	a := &Authenticator{
		store:       store,
		mailer:      mailer,
		clock:       clk,
		ttl:         DefaultTTL,
		sendTimeout: DefaultSendTimeout,
		newCode:     GenerateCode,
		log:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// TTL reports the validity window.
func (a *Authenticator) TTL() time.Duration { return a.ttl }

// Issue creates a challenge for email and hands it to the mailer.
// Earlier unconsumed challenges for the same email stay valid.
func (a *Authenticator) Issue(ctx context.Context, email string) (Issued, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return Issued{}, errors.New("email required")
	}
	code, err := a.newCode()
	if err != nil {
		return Issued{}, err
	}
	c := Challenge{
		ID:        uuid.NewString(),
		Email:     email,
		Code:      code,
		CreatedAt: a.clock.Now(),
	}
	if err := a.store.Create(ctx, c); err != nil {
		return Issued{}, fmt.Errorf("issue otp: %w", err)
	}

	out := Issued{Challenge: c}
	if a.mailer != nil {
		sendCtx, cancel := context.WithTimeout(ctx, a.sendTimeout)
		defer cancel()
		if err := a.mailer.Send(sendCtx, email, code); err != nil {
			a.log.Warn("otp delivery failed", zap.String("email", email), zap.String("challenge_id", c.ID), zap.Error(err))
			out.DeliveryErr = err
		}
	}
	return out, nil
}

// Verify consumes the newest live challenge matching email and code.
func (a *Authenticator) Verify(ctx context.Context, email, code string) error {
	email = NormalizeEmail(email)
	code = strings.TrimSpace(code)
	if email == "" || code == "" {
		return ErrInvalidOrExpired
	}
	now := a.clock.Now()
	c, err := a.store.ConsumeLatest(ctx, email, code, now.Add(-a.ttl), now)
	if err != nil {
		return err
	}
	a.log.Info("otp verified", zap.String("email", email), zap.String("challenge_id", c.ID))
	return nil
}

// PurgeExpired removes challenges that can no longer be verified.
func (a *Authenticator) PurgeExpired(ctx context.Context) (int64, error) {
	return a.store.PurgeExpired(ctx, a.clock.Now().Add(-a.ttl))
}
