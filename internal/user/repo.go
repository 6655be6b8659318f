package user

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"campusattend/internal/store"
)

const userColumns = `id, college_id, name, email, phone, class_name, semester, password_hash, role, created_at`

// Repository persists users in Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a repo.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a user; unique violations map to ErrAlreadyExists.
func (r *Repository) Create(ctx context.Context, u User) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, u.ID, u.CollegeID, u.Name, u.Email, u.Phone, u.ClassName, u.Semester, u.PasswordHash, string(u.Role), u.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrAlreadyExists
		}
		return store.Wrap("create user", err)
	}
	return nil
}

func (r *Repository) ByID(ctx context.Context, id string) (User, error) {
	return r.one(ctx, "id", id)
}

func (r *Repository) ByCollegeID(ctx context.Context, collegeID string) (User, error) {
	return r.one(ctx, "college_id", collegeID)
}

func (r *Repository) ByEmail(ctx context.Context, email string) (User, error) {
	return r.one(ctx, "email", email)
}

// UpdatePasswordHash stores a new hash.
func (r *Repository) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET password_hash = $2 WHERE id = $1`, id, hash)
	if err != nil {
		return store.Wrap("update password", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// one looks a user up by a trusted column name.
func (r *Repository) one(ctx context.Context, column, value string) (User, error) {
	var u User
	var role string
	err := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE `+column+` = $1`, value).Scan(
		&u.ID, &u.CollegeID, &u.Name, &u.Email, &u.Phone, &u.ClassName, &u.Semester, &u.PasswordHash, &role, &u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, store.Wrap("get user by "+column, err)
	}
	u.Role = Role(role)
	return u, nil
}
