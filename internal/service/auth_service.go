package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Tlotliso-Khosi/AQUAGUARDPROJECT-sub001/internal/config"
	"github.com/Tlotliso-Khosi/AQUAGUARDPROJECT-sub001/internal/domain"
	"github.com/Tlotliso-Khosi/AQUAGUARDPROJECT-sub001/internal/repository"
	"github.com/Tlotliso-Khosi/AQUAGUARDPROJECT-sub001/pkg/email"
)

// Custom errors
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account is locked")
	ErrAccountInactive    = errors.New("user account is not active")
	ErrEmailTaken         = errors.New("email is already registered")
	ErrInvalidInput       = errors.New("invalid input")
)

type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) (bool, error)
}

type TokenIssuer interface {
	GenerateAccessToken(user *domain.User) (string, time.Time, error)
}

type TokenRevoker interface {
	Revoke(ctx context.Context, token string, expiresAt time.Time) error
}

type AuthService struct {
	userRepo repository.UserRepository
	hasher   PasswordHasher
	tokens   TokenIssuer
	revoker  TokenRevoker
	mailer   email.Sender
	cfg      config.AuthConfig
	logger   *slog.Logger
	now      func() time.Time
}

type RegisterRequest struct {
	Email    string `json:"email" form:"email" validate:"required,email,max=255"`
	Password string `json:"password" form:"password" validate:"required,min=8,max=128"`
	Name     string `json:"name" form:"name" validate:"required,min=2,max=100"`
	Role     string `json:"role" form:"role" validate:"required,oneof=farmer customer"`
}

type LoginRequest struct {
	Email    string `json:"email" form:"email" validate:"required,email"`
	Password string `json:"password" form:"password" validate:"required"`
}

type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      *UserDTO  `json:"user"`
}

type UserDTO struct {
	ID          uuid.UUID   `json:"id"`
	Email       string      `json:"email"`
	Name        string      `json:"name"`
	Role        domain.Role `json:"role"`
	CreatedAt   time.Time   `json:"created_at"`
	LastLoginAt *time.Time  `json:"last_login_at,omitempty"`
}

func NewUserDTO(u *domain.User) *UserDTO {
	return &UserDTO{ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role, CreatedAt: u.CreatedAt, LastLoginAt: u.LastLoginAt}
}

func NewAuthService(
	userRepo repository.UserRepository,
	hasher PasswordHasher,
	tokens TokenIssuer,
	revoker TokenRevoker,
	mailer email.Sender,
	cfg config.AuthConfig,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		userRepo: userRepo,
		hasher:   hasher,
		tokens:   tokens,
		revoker:  revoker,
		mailer:   mailer,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

func normalizeEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*UserDTO, error) {
	role := domain.Role(req.Role)
	if role != domain.RoleFarmer && role != domain.RoleCustomer {
		return nil, fmt.Errorf("%w: role %q cannot self-register", ErrInvalidInput, req.Role)
	}

	hashed, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now()
	user := &domain.User{
		ID:           uuid.New(),
		Email:        normalizeEmail(req.Email),
		PasswordHash: hashed,
		Name:         strings.TrimSpace(req.Name),
		Role:         role,
		Status:       domain.UserStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID, "role", user.Role)

	// Registration stands even when the greeting cannot be delivered.
	if err := s.mailer.SendWelcomeEmail(ctx, user.Email, user.Name, string(user.Role)); err != nil {
		s.logger.WarnContext(ctx, "welcome email not sent", "user_id", user.ID, "error", err)
	}

	return NewUserDTO(user), nil
}

func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	user, err := s.userRepo.GetByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	now := s.now()
	if user.IsLocked(now) {
		return nil, ErrAccountLocked
	}

	valid, err := s.hasher.Verify(req.Password, user.PasswordHash)
	if err != nil {
		s.logger.ErrorContext(ctx, "stored password hash unreadable", "user_id", user.ID, "error", err)
		return nil, ErrInvalidCredentials
	}
	if !valid {
		return nil, s.handleFailedLogin(ctx, user, now)
	}

	if user.Status == domain.UserStatusInactive {
		return nil, ErrAccountInactive
	}

	if err := s.userRepo.RecordSuccessfulLogin(ctx, user.ID); err != nil {
		s.logger.WarnContext(ctx, "failed to record login", "user_id", user.ID, "error", err)
	}
	user.LastLoginAt = &now

	token, expiresAt, err := s.tokens.GenerateAccessToken(user)
	if err != nil {
		return nil, err
	}

	return &LoginResponse{Token: token, ExpiresAt: expiresAt, User: NewUserDTO(user)}, nil
}

func (s *AuthService) handleFailedLogin(ctx context.Context, user *domain.User, now time.Time) error {
	count, err := s.userRepo.RecordFailedLogin(ctx, user.ID, s.cfg.MaxFailedLogins, now.Add(s.cfg.LockDuration))
	if err != nil {
		return err
	}
	if s.cfg.MaxFailedLogins > 0 && count >= s.cfg.MaxFailedLogins {
		s.logger.WarnContext(ctx, "account locked after failed logins", "user_id", user.ID, "attempts", count)
		return ErrAccountLocked
	}
	return ErrInvalidCredentials
}

// Logout revokes token until its natural expiry.
func (s *AuthService) Logout(ctx context.Context, token string, expiresAt time.Time) error {
	return s.revoker.Revoke(ctx, token, expiresAt)
}

func (s *AuthService) Me(ctx context.Context, userID uuid.UUID) (*UserDTO, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return NewUserDTO(user), nil
}
