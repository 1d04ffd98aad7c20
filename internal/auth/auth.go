// Package auth provides account registration, password login and bearer
// token authentication.
//
// Authentication model:
// - Public storefront endpoints: no auth required
// - /patissier, /billing, /notifications: a valid JWT
// - /superadmin: a valid JWT with role superadmin
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/patissio/patissio/internal/apierror"
	"github.com/patissio/patissio/internal/idgen"
	"github.com/patissio/patissio/internal/logging"
	"github.com/patissio/patissio/internal/tenant"
	"github.com/patissio/patissio/internal/validation"
	"golang.org/x/crypto/bcrypt"
)

// Errors
var (
	ErrUserNotFound       = fmt.Errorf("user %w", apierror.ErrNotFound)
	ErrEmailTaken         = apierror.New("email_taken", "an account already exists for this email", apierror.ErrConflict)
	ErrInvalidCredentials = apierror.New("invalid_credentials", "invalid email or password", apierror.ErrUnauthorized)
	ErrInvalidToken       = apierror.New("invalid_token", "invalid or expired token", apierror.ErrUnauthorized)
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 8

// Role is a user's platform role.
type Role string

const (
	RolePatissier  Role = "patissier"
	RoleSuperadmin Role = "superadmin"
)

// User is a platform account.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Store persists users.
type Store interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	UpdatePassword(ctx context.Context, id, hash string) error
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Session is returned after a successful register or login.
type Session struct {
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expiresAt"`
	User      *User          `json:"user"`
	Profile   *tenant.Tenant `json:"profile,omitempty"`
}

// RegisterRequest creates a patissier account and its shop.
type RegisterRequest struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	Name         string `json:"name"`
	BusinessName string `json:"businessName"`
}

// Service implements account operations.
type Service struct {
	users    Store
	tenants  tenant.Store
	tokens   *Manager
	hashCost int
}

// NewService creates a new auth service.
func NewService(users Store, tenants tenant.Store, tokens *Manager) *Service {
	return &Service{users: users, tenants: tenants, tokens: tokens, hashCost: bcrypt.DefaultCost}
}

// WithHashCost overrides the bcrypt cost (tests use bcrypt.MinCost).
func (s *Service) WithHashCost(cost int) *Service {
	s.hashCost = cost
	return s
}

// Tokens returns the token manager used by the middleware.
func (s *Service) Tokens() *Manager {
	return s.tokens
}

// Register creates a user and a starter-plan shop with a unique slug.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*Session, error) {
	req.Email = NormalizeEmail(req.Email)
	req.Name = validation.SanitizeString(req.Name, 120)
	req.BusinessName = validation.SanitizeString(req.BusinessName, 120)

	if err := validation.Validate(
		validation.Required("email", req.Email),
		validation.Email("email", req.Email),
		validation.MinLength("password", req.Password, MinPasswordLength),
		validation.MaxLength("password", req.Password, 72),
		validation.Required("name", req.Name),
		validation.Required("businessName", req.BusinessName),
	); err != nil {
		return nil, err
	}

	if _, err := s.users.GetByEmail(ctx, req.Email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &User{
		ID:           idgen.New(),
		Email:        req.Email,
		PasswordHash: string(hash),
		Name:         req.Name,
		Role:         RolePatissier,
		CreatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	profile, err := s.createProfile(ctx, user.ID, req.BusinessName, now)
	if err != nil {
		return nil, err
	}

	logging.L(ctx).Info("patissier registered", "user_id", user.ID, "slug", profile.Slug)
	return s.session(user, profile)
}

// createProfile retries when a concurrent registration takes the same slug.
func (s *Service) createProfile(ctx context.Context, userID, businessName string, now time.Time) (*tenant.Tenant, error) {
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		var slug string
		slug, err = tenant.UniqueSlug(ctx, s.tenants, businessName)
		if err != nil {
			return nil, err
		}
		profile := &tenant.Tenant{
			ID:             idgen.New(),
			UserID:         userID,
			BusinessName:   businessName,
			Slug:           slug,
			Plan:           tenant.PlanStarter,
			OrdersEnabled:  true,
			DepositPercent: tenant.DefaultDepositPercent,
			Status:         tenant.StatusActive,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		err = s.tenants.Create(ctx, profile)
		if err == nil {
			return profile, nil
		}
		if !errors.Is(err, tenant.ErrSlugTaken) {
			return nil, err
		}
	}
	return nil, err
}

// Login checks credentials and issues a token.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.users.GetByEmail(ctx, NormalizeEmail(email))
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}

	profile, err := s.profileFor(ctx, user)
	if err != nil {
		return nil, err
	}
	return s.session(user, profile)
}

// Me returns the user behind claims and their shop, if any.
func (s *Service) Me(ctx context.Context, userID string) (*User, *tenant.Tenant, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	profile, err := s.profileFor(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	return user, profile, nil
}

// ChangePassword replaces the password after checking the current one.
func (s *Service) ChangePassword(ctx context.Context, userID, current, next string) error {
	if err := validation.Validate(
		validation.Required("currentPassword", current),
		validation.MinLength("newPassword", next, MinPasswordLength),
		validation.MaxLength("newPassword", next, 72),
	); err != nil {
		return err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)) != nil {
		return ErrInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(next), s.hashCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.users.UpdatePassword(ctx, userID, string(hash))
}

// CreateSuperadmin creates a staff account without a shop. Used by cmd tooling.
func (s *Service) CreateSuperadmin(ctx context.Context, email, password, name string) (*User, error) {
	email = NormalizeEmail(email)
	if err := validation.Validate(
		validation.Email("email", email),
		validation.MinLength("password", password, MinPasswordLength),
	); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := &User{
		ID:           idgen.New(),
		Email:        email,
		PasswordHash: string(hash),
		Name:         name,
		Role:         RoleSuperadmin,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Service) profileFor(ctx context.Context, user *User) (*tenant.Tenant, error) {
	profile, err := s.tenants.GetByUserID(ctx, user.ID)
	if errors.Is(err, tenant.ErrTenantNotFound) {
		return nil, nil
	}
	return profile, err
}

func (s *Service) session(user *User, profile *tenant.Tenant) (*Session, error) {
	tenantID := ""
	if profile != nil {
		tenantID = profile.ID
	}
	token, exp, err := s.tokens.Issue(user, tenantID)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, ExpiresAt: exp, User: user, Profile: profile}, nil
}
