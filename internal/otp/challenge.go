package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"
)

// DefaultTTL is how long an issued code stays usable.
const DefaultTTL = 5 * time.Minute

// CodeLength is the number of digits in a code.
const CodeLength = 6

// ErrInvalidOrExpired covers wrong, consumed and stale codes alike.
var ErrInvalidOrExpired = errors.New("invalid or expired OTP")

// Challenge is an issued code awaiting verification.
type Challenge struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	Code      string     `json:"-"`
	CreatedAt time.Time  `json:"created_at"`
	Used      bool       `json:"used"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
}

// Store persists challenges.
type Store interface {
	Create(ctx context.Context, c Challenge) error
	// ConsumeLatest flips the newest unused challenge for (email, code) created after
	// validAfter to used, in one atomic step. No match returns ErrInvalidOrExpired.
	ConsumeLatest(ctx context.Context, email, code string, validAfter, usedAt time.Time) (Challenge, error)
	// PurgeExpired deletes used challenges and those created at or before cutoff.
	PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// Mailer delivers a code to an address.
type Mailer interface {
	Send(ctx context.Context, email, code string) error
}

// NormalizeEmail lowercases and trims an address so lookups match.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

var codeSpace = big.NewInt(1_000_000)

// GenerateCode returns a uniformly random zero-padded 6-digit code.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpace)
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%0*d", CodeLength, n.Int64()), nil
}
