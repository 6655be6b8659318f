package user

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"campusattend/internal/clock"
)

// Registration is the signup form.
type Registration struct {
	CollegeID string
	Name      string
	Email     string
	Phone     string
	ClassName string
	Semester  string
	Password  string
}

// Validate applies the signup form rules.
func (r Registration) Validate() error {
	if strings.TrimSpace(r.CollegeID) == "" || strings.TrimSpace(r.Name) == "" || strings.TrimSpace(r.Email) == "" {
		return fmt.Errorf("%w: college id, name and email are required", ErrInvalidRegistration)
	}
	if len(r.Phone) != 10 || strings.Trim(r.Phone, "0123456789") != "" {
		return fmt.Errorf("%w: phone number must be exactly 10 digits", ErrInvalidRegistration)
	}
	if len(r.Password) < 6 {
		return fmt.Errorf("%w: password must be at least 6 characters", ErrInvalidRegistration)
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Service handles accounts and password logins.
type Service struct {
	store Store
	clock clock.Clock
	cost  int
}

// NewService creates a service backed by a store.
func NewService(store Store, clk clock.Clock) *Service {
	return &Service{store: store, clock: clk, cost: bcrypt.DefaultCost}
}

// WithHashCost returns a copy using a different bcrypt cost. Tests use bcrypt.MinCost.
func (s *Service) WithHashCost(cost int) *Service {
	cp := *s
	cp.cost = cost
	return &cp
}

// Register creates a student account.
func (s *Service) Register(ctx context.Context, r Registration) (User, error) {
	if err := r.Validate(); err != nil {
		return User{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(r.Password), s.cost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}
	u := User{
		ID:           uuid.NewString(),
		CollegeID:    strings.ToUpper(strings.TrimSpace(r.CollegeID)),
		Name:         strings.TrimSpace(r.Name),
		Email:        normalizeEmail(r.Email),
		Phone:        r.Phone,
		ClassName:    strings.TrimSpace(r.ClassName),
		Semester:     strings.TrimSpace(r.Semester),
		PasswordHash: string(hash),
		Role:         RoleStudent,
		CreatedAt:    s.clock.Now(),
	}
	if err := s.store.Create(ctx, u); err != nil {
		return User{}, err
	}
	return u, nil
}

// EnsureAdmin creates an admin account unless the email is already registered.
func (s *Service) EnsureAdmin(ctx context.Context, collegeID, name, email, password string) (bool, error) {
	email = normalizeEmail(email)
	if _, err := s.store.ByEmail(ctx, email); err == nil {
		return false, nil
	} else if !errors.Is(err, ErrNotFound) {
		return false, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return false, fmt.Errorf("hash password: %w", err)
	}
	err = s.store.Create(ctx, User{
		ID:           uuid.NewString(),
		CollegeID:    strings.ToUpper(collegeID),
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         RoleAdmin,
		CreatedAt:    s.clock.Now(),
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// Authenticate checks a college id and password pair.
func (s *Service) Authenticate(ctx context.Context, collegeID, password string) (Identity, error) {
	u, err := s.store.ByCollegeID(ctx, strings.ToUpper(strings.TrimSpace(collegeID)))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Identity{}, ErrInvalidCredentials
		}
		return Identity{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return Identity{}, ErrInvalidCredentials
	}
	return u.Identity(), nil
}

// IdentityByEmail resolves the account behind a verified OTP email.
func (s *Service) IdentityByEmail(ctx context.Context, email string) (Identity, error) {
	u, err := s.store.ByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return Identity{}, err
	}
	return u.Identity(), nil
}

// ByEmail returns the account registered under email.
func (s *Service) ByEmail(ctx context.Context, email string) (User, error) {
	return s.store.ByEmail(ctx, normalizeEmail(email))
}

// ByID returns an account.
func (s *Service) ByID(ctx context.Context, id string) (User, error) {
	return s.store.ByID(ctx, id)
}

// ResetPassword replaces the password of the account with collegeID by 8 random hex
// characters and returns the new plaintext for the admin to pass on.
func (s *Service) ResetPassword(ctx context.Context, collegeID string) (string, error) {
	u, err := s.store.ByCollegeID(ctx, strings.ToUpper(strings.TrimSpace(collegeID)))
	if err != nil {
		return "", err
	}
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate password: %w", err)
	}
	password := hex.EncodeToString(buf)
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	if err := s.store.UpdatePasswordHash(ctx, u.ID, string(hash)); err != nil {
		return "", err
	}
	return password, nil
}
