package user

import (
	"context"
	"errors"
	"time"
)

// Role of an account.
type Role string

const (
	RoleStudent Role = "student"
	RoleAdmin   Role = "admin"
)

var (
	ErrNotFound           = errors.New("user not found")
	ErrAlreadyExists      = errors.New("user already exists with this email or college id")
	ErrInvalidCredentials = errors.New("invalid roll number or password")

	ErrInvalidRegistration = errors.New("invalid registration")
)

// User is a portal account.
type User struct {
	ID           string    `json:"id"`
	CollegeID    string    `json:"college_id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone"`
	ClassName    string    `json:"class_name"`
	Semester     string    `json:"semester"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// Identity is what a successful login hands to the session layer.
type Identity struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Role      Role   `json:"role"`
	CollegeID string `json:"college_id"`
}

// Identity projects the user onto its session identity.
func (u User) Identity() Identity {
	return Identity{ID: u.ID, Name: u.Name, Role: u.Role, CollegeID: u.CollegeID}
}

// Store persists users. Create reports a taken email or college id as ErrAlreadyExists;
// lookups report a miss as ErrNotFound.
type Store interface {
	Create(ctx context.Context, u User) error
	ByID(ctx context.Context, id string) (User, error)
	ByCollegeID(ctx context.Context, collegeID string) (User, error)
	ByEmail(ctx context.Context, email string) (User, error)
	UpdatePasswordHash(ctx context.Context, id, hash string) error
}
