package user

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"campusattend/internal/clock"
)

func newService() *Service {
	clk := clock.NewManual(time.Date(2024, 9, 2, 9, 0, 0, 0, time.UTC))
	return NewService(NewMemoryStore(), clk).WithHashCost(bcrypt.MinCost)
}

func validRegistration() Registration {
	return Registration{
		CollegeID: "22b41a0501",
		Name:      "Jane Smith",
		Email:     "Jane@KCEA.edu",
		Phone:     "9876543210",
		ClassName: "B4",
		Semester:  "5",
		Password:  "student123",
	}
}

func TestRegisterAndAuthenticate(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	u, err := svc.Register(ctx, validRegistration())
	require.NoError(t, err)
	assert.Equal(t, "22B41A0501", u.CollegeID)
	assert.Equal(t, "jane@kcea.edu", u.Email)
	assert.Equal(t, RoleStudent, u.Role)
	assert.NotEqual(t, "student123", u.PasswordHash)

	id, err := svc.Authenticate(ctx, "22b41a0501", "student123")
	require.NoError(t, err)
	assert.Equal(t, Identity{ID: u.ID, Name: "Jane Smith", Role: RoleStudent, CollegeID: "22B41A0501"}, id)

	_, err = svc.Authenticate(ctx, "22B41A0501", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Authenticate(ctx, "NOPE", "student123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRegister_Validation(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	bad := validRegistration()
	bad.Phone = "12345"
	_, err := svc.Register(ctx, bad)
	assert.ErrorIs(t, err, ErrInvalidRegistration)

	bad = validRegistration()
	bad.Phone = "98765abcde"
	_, err = svc.Register(ctx, bad)
	assert.Error(t, err)

	bad = validRegistration()
	bad.Email = " "
	_, err = svc.Register(ctx, bad)
	assert.Error(t, err)
}

func TestRegister_Duplicate(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	_, err := svc.Register(ctx, validRegistration())
	require.NoError(t, err)

	sameEmail := validRegistration()
	sameEmail.CollegeID = "OTHER"
	_, err = svc.Register(ctx, sameEmail)
	assert.ErrorIs(t, err, ErrAlreadyExists)

	sameID := validRegistration()
	sameID.Email = "other@kcea.edu"
	_, err = svc.Register(ctx, sameID)
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestIdentityByEmail(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	u, err := svc.Register(ctx, validRegistration())
	require.NoError(t, err)

	id, err := svc.IdentityByEmail(ctx, " JANE@kcea.edu")
	require.NoError(t, err)
	assert.Equal(t, u.ID, id.ID)

	_, err = svc.IdentityByEmail(ctx, "ghost@kcea.edu")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEnsureAdmin(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	created, err := svc.EnsureAdmin(ctx, "admin001", "Administrator", "admin@kcea.edu", "admin123")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = svc.EnsureAdmin(ctx, "admin001", "Administrator", "admin@kcea.edu", "admin123")
	require.NoError(t, err)
	assert.False(t, created)

	id, err := svc.Authenticate(ctx, "ADMIN001", "admin123")
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, id.Role)
}

func TestResetPassword(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	_, err := svc.Register(ctx, validRegistration())
	require.NoError(t, err)

	pw, err := svc.ResetPassword(ctx, "22b41a0501")
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{8}$`), pw)

	_, err = svc.Authenticate(ctx, "22B41A0501", "student123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Authenticate(ctx, "22B41A0501", pw)
	assert.NoError(t, err)

	_, err = svc.ResetPassword(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
