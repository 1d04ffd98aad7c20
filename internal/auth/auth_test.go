package auth

import (
	"context"
	"testing"
	"time"

	"github.com/patissio/patissio/internal/apierror"
	"github.com/patissio/patissio/internal/tenant"
	"github.com/patissio/patissio/internal/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "test-secret-that-is-long-enough-123"

func newTestService() (*Service, *MemoryStore, *tenant.MemoryStore) {
	users := NewMemoryStore()
	tenants := tenant.NewMemoryStore()
	svc := NewService(users, tenants, NewManager(testSecret, time.Hour)).WithHashCost(bcrypt.MinCost)
	return svc, users, tenants
}

func validRegistration() RegisterRequest {
	return RegisterRequest{
		Email:        "  Eloise@Example.com ",
		Password:     "croissant42",
		Name:         "Eloïse",
		BusinessName: "Pâtisserie Éloïse",
	}
}

func TestRegister_CreatesUserAndProfile(t *testing.T) {
	svc, users, tenants := newTestService()
	ctx := context.Background()

	session, err := svc.Register(ctx, validRegistration())
	require.NoError(t, err)

	assert.NotEmpty(t, session.Token)
	assert.Equal(t, "eloise@example.com", session.User.Email)
	assert.Equal(t, RolePatissier, session.User.Role)
	require.NotNil(t, session.Profile)
	assert.Equal(t, "patisserie-eloise", session.Profile.Slug)
	assert.Equal(t, tenant.PlanStarter, session.Profile.Plan)
	assert.Equal(t, tenant.DefaultDepositPercent, session.Profile.DepositPercent)

	stored, err := users.GetByEmail(ctx, "ELOISE@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, "croissant42", stored.PasswordHash)

	profile, err := tenants.GetByUserID(ctx, stored.ID)
	require.NoError(t, err)
	assert.Equal(t, session.Profile.ID, profile.ID)

	claims, err := svc.Tokens().Parse(session.Token)
	require.NoError(t, err)
	assert.Equal(t, stored.ID, claims.UserID())
	assert.Equal(t, profile.ID, claims.TenantID)
}

func TestRegister_SecondShopGetsSuffixedSlug(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Register(ctx, validRegistration())
	require.NoError(t, err)

	req := validRegistration()
	req.Email = "other@example.com"
	session, err := svc.Register(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "patisserie-eloise-2", session.Profile.Slug)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Register(ctx, validRegistration())
	require.NoError(t, err)

	_, err = svc.Register(ctx, validRegistration())
	assert.ErrorIs(t, err, ErrEmailTaken)
	status, code := apierror.Status(err)
	assert.Equal(t, 409, status)
	assert.Equal(t, "email_taken", code)
}

func TestRegister_Validation(t *testing.T) {
	svc, _, _ := newTestService()

	req := validRegistration()
	req.Password = "short"
	req.BusinessName = ""
	_, err := svc.Register(context.Background(), req)
	require.ErrorIs(t, err, validation.ErrInvalid)

	fields := validation.Fields(err)
	require.Len(t, fields, 2)
	assert.Equal(t, "password", fields[0].Field)
	assert.Equal(t, "businessName", fields[1].Field)
}

func TestLogin(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	_, err := svc.Register(ctx, validRegistration())
	require.NoError(t, err)

	session, err := svc.Login(ctx, "eloise@example.com", "croissant42")
	require.NoError(t, err)
	assert.NotEmpty(t, session.Token)
	require.NotNil(t, session.Profile)

	_, err = svc.Login(ctx, "eloise@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, "nobody@example.com", "croissant42")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogin_SuperadminHasNoProfile(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	_, err := svc.CreateSuperadmin(ctx, "staff@platform.tld", "staff-password", "Staff")
	require.NoError(t, err)

	session, err := svc.Login(ctx, "staff@platform.tld", "staff-password")
	require.NoError(t, err)
	assert.Nil(t, session.Profile)

	claims, err := svc.Tokens().Parse(session.Token)
	require.NoError(t, err)
	assert.True(t, claims.IsSuperadmin())
	assert.Empty(t, claims.TenantID)
}

func TestChangePassword(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	session, err := svc.Register(ctx, validRegistration())
	require.NoError(t, err)

	err = svc.ChangePassword(ctx, session.User.ID, "wrong", "new-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	err = svc.ChangePassword(ctx, session.User.ID, "croissant42", "short")
	assert.ErrorIs(t, err, validation.ErrInvalid)

	require.NoError(t, svc.ChangePassword(ctx, session.User.ID, "croissant42", "new-password"))
	_, err = svc.Login(ctx, "eloise@example.com", "new-password")
	assert.NoError(t, err)
}

func TestManager_RejectsBadTokens(t *testing.T) {
	m := NewManager(testSecret, time.Hour)
	user := &User{ID: "u1", Email: "a@b.co", Role: RolePatissier}

	token, exp, err := m.Issue(user, "t1")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, time.Minute)

	other := NewManager("another-secret-that-is-long-enough", time.Hour)
	_, err = other.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired := NewManager(testSecret, -time.Minute)
	old, _, err := expired.Issue(user, "t1")
	require.NoError(t, err)
	_, err = m.Parse(old)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = m.Parse("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
