package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/spec-kit/repair-service/internal/auth"
	"github.com/spec-kit/repair-service/internal/config"
	"github.com/spec-kit/repair-service/internal/domain"
	"github.com/spec-kit/repair-service/internal/repository"
	apperrors "github.com/spec-kit/repair-service/pkg/util/errorutil"
)

const (
	minPasswordLength = 8
	passwordSymbols   = `!@#$%^&*(),.?":{}|<>`
)

// AuthSession is the outcome of a successful register or login.
type AuthSession struct {
	User      *domain.User
	Token     string
	ExpiresAt time.Time
}

// StaffAccountInput describes an internal account created by an admin.
type StaffAccountInput struct {
	FullName  string
	Email     string
	Password  string
	Role      domain.Role
	Specialty string
}

// AuthService coordinates registration and login flows.
type AuthService struct {
	users      repository.UserRepository
	tokenMgr   *auth.TokenManager
	bcryptCost int
	limiter    *loginLimiter
	logger     *zap.Logger
}

// AuthDependencies encapsulates repo requirements for auth service.
type AuthDependencies struct {
	UserRepo repository.UserRepository
	Logger   *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:      deps.UserRepo,
		tokenMgr:   auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes),
		bcryptCost: cfg.Auth.BcryptCost,
		limiter:    newLoginLimiter(cfg.Auth.LoginAttemptsPerMinute),
		logger:     logger,
	}
}

// RegisterCustomer creates a customer account and signs it in.
func (s *AuthService) RegisterCustomer(ctx context.Context, fullName, email, password string) (*AuthSession, error) {
	user, err := s.createAccount(ctx, fullName, email, password, domain.RoleCustomer, nil)
	if err != nil {
		return nil, err
	}
	return s.issue(user)
}

// Login authenticates any account by email and password.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthSession, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, apperrors.NewValidationError("email and password are required", nil)
	}
	if !s.limiter.allow(email) {
		return nil, apperrors.NewRateLimited("too many login attempts")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewUnauthenticated("invalid credentials")
		}
		return nil, apperrors.NewServiceError(err)
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, apperrors.NewUnauthenticated("invalid credentials")
	}
	if user.Status != domain.UserStatusActive {
		return nil, apperrors.NewUnauthenticated("account suspended")
	}
	s.logger.Info("user logged in", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	return s.issue(user)
}

// Logout currently no-ops for stateless JWT approach; the transport clears the cookie.
func (s *AuthService) Logout(_ context.Context, _ string) error {
	return nil
}

// Me returns the account behind an authenticated actor.
func (s *AuthService) Me(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", nil)
		}
		return nil, apperrors.NewServiceError(err)
	}
	return user, nil
}

// CreateStaffAccount lets an admin provision technicians and other internal roles.
func (s *AuthService) CreateStaffAccount(ctx context.Context, actor domain.Actor, input StaffAccountInput) (*domain.User, error) {
	if actor.Role != domain.RoleAdmin {
		return nil, apperrors.NewForbidden("only admins may create staff accounts")
	}
	if !input.Role.Staff() {
		return nil, apperrors.NewValidationError("role must be an internal role", map[string]any{"role": input.Role})
	}

	var specialty *string
	trimmed := strings.TrimSpace(input.Specialty)
	switch {
	case input.Role == domain.RoleTechnician && trimmed == "":
		return nil, apperrors.NewValidationError("technicians require a specialty", nil)
	case input.Role == domain.RoleTechnician:
		specialty = &trimmed
	case trimmed != "":
		return nil, apperrors.NewValidationError("only technicians carry a specialty", nil)
	}

	user, err := s.createAccount(ctx, input.FullName, input.Email, input.Password, input.Role, specialty)
	if err != nil {
		return nil, err
	}
	s.logger.Info("staff account created",
		zap.String("user_id", user.ID),
		zap.String("role", string(user.Role)),
		zap.String("created_by", actor.UserID))
	return user, nil
}

// EnsureBootstrapAdmin creates the first admin when configured and missing.
func (s *AuthService) EnsureBootstrapAdmin(ctx context.Context, email, password string) error {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil
	}
	_, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}
	user, err := s.createAccount(ctx, "Administrator", email, password, domain.RoleAdmin, nil)
	if err != nil {
		return err
	}
	s.logger.Info("bootstrap admin created", zap.String("user_id", user.ID))
	return nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

func (s *AuthService) createAccount(ctx context.Context, fullName, email, password string, role domain.Role, specialty *string) (*domain.User, error) {
	fullName = strings.TrimSpace(fullName)
	if fullName == "" {
		return nil, apperrors.NewValidationError("full name is required", nil)
	}
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil || addr.Name != "" {
		return nil, apperrors.NewValidationError("a valid email address is required", nil)
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	user := &domain.User{
		FullName:     fullName,
		Email:        addr.Address,
		PasswordHash: hash,
		Role:         role,
		Specialty:    specialty,
		Status:       domain.UserStatusActive,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, apperrors.NewConflict("email already registered", nil)
		}
		return nil, apperrors.NewServiceError(err)
	}
	return user, nil
}

func (s *AuthService) issue(user *domain.User) (*AuthSession, error) {
	token, exp, err := s.tokenMgr.GenerateToken(user.ID, user.Role)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &AuthSession{User: user, Token: token, ExpiresAt: exp}, nil
}

func validatePassword(password string) error {
	switch {
	case len(password) < minPasswordLength:
		return apperrors.NewValidationError("password must be at least 8 characters long", nil)
	case !strings.ContainsAny(password, "0123456789"):
		return apperrors.NewValidationError("password must contain a number", nil)
	case !strings.ContainsAny(password, passwordSymbols):
		return apperrors.NewValidationError("password must contain a special symbol", nil)
	}
	return nil
}

// loginLimiter throttles password guesses per email.
type loginLimiter struct {
	mu       sync.Mutex
	perEmail map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func newLoginLimiter(perMinute int) *loginLimiter {
	if perMinute <= 0 {
		return nil
	}
	return &loginLimiter{
		perEmail: make(map[string]*rate.Limiter),
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    perMinute,
	}
}

func (l *loginLimiter) allow(email string) bool {
	if l == nil {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	limiter, ok := l.perEmail[email]
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.perEmail[email] = limiter
	}
	return limiter.Allow()
}
