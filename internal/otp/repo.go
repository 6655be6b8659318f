package otp

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"campusattend/internal/store"
)

// Repository persists challenges in Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a repo.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a fresh challenge.
func (r *Repository) Create(ctx context.Context, c Challenge) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO otp_challenges (id, email, code, created_at, used)
		VALUES ($1, $2, $3, $4, FALSE)
	`, c.ID, c.Email, c.Code, c.CreatedAt)
	return store.Wrap("create otp", err)
}

// ConsumeLatest selects and marks used in a single statement. The row lock taken by
// the subquery makes a concurrent verifier re-check used and find nothing.
func (r *Repository) ConsumeLatest(ctx context.Context, email, code string, validAfter, usedAt time.Time) (Challenge, error) {
	var c Challenge
	err := r.pool.QueryRow(ctx, `
		UPDATE otp_challenges
		SET used = TRUE, used_at = $4
		WHERE id = (
			SELECT id FROM otp_challenges
			WHERE email = $1 AND code = $2 AND used = FALSE AND created_at > $3
			ORDER BY created_at DESC
			LIMIT 1
			FOR UPDATE
		) AND used = FALSE
		RETURNING id, email, code, created_at, used, used_at
	`, email, code, validAfter, usedAt).Scan(&c.ID, &c.Email, &c.Code, &c.CreatedAt, &c.Used, &c.UsedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Challenge{}, ErrInvalidOrExpired
		}
		return Challenge{}, store.Wrap("consume otp", err)
	}
	return c, nil
}

// PurgeExpired deletes dead challenges.
func (r *Repository) PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM otp_challenges WHERE used OR created_at <= $1`, cutoff)
	if err != nil {
		return 0, store.Wrap("purge otp", err)
	}
	return tag.RowsAffected(), nil
}
