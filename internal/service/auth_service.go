package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/amoshaviv/flow-tester-sub001/internal/config"
	"github.com/amoshaviv/flow-tester-sub001/internal/models"
	"github.com/amoshaviv/flow-tester-sub001/internal/repository"
)

const (
	minPasswordLength = 8
	// bcrypt only accepts passwords up to this many bytes.
	maxPasswordLength = 72
)

// AuthService manages accounts and login sessions.
type AuthService interface {
	SignUp(ctx context.Context, req *SignUpRequest) (*models.User, error)
	SignIn(ctx context.Context, req *SignInRequest) (*models.Session, error)
	SignOut(ctx context.Context, token string) error

	// Authenticate resolves a live session token to its user.
	Authenticate(ctx context.Context, token string) (*models.User, error)

	UpdateProfile(ctx context.Context, user *models.User, req *UpdateProfileRequest) (*models.User, error)
}

type authService struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	inviteRepo  repository.InviteRepository
	cfg         config.AuthConfig
	logger      *log.Logger
	now         func() time.Time
}

// NewAuthService creates the account service.
func NewAuthService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	inviteRepo repository.InviteRepository,
	cfg config.AuthConfig,
	logger *log.Logger,
) AuthService {
	return &authService{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		inviteRepo:  inviteRepo,
		cfg:         cfg,
		logger:      logger.WithPrefix("auth"),
		now:         time.Now,
	}
}

// ===== Request DTOs =====

type SignUpRequest struct {
	Email       string `json:"email" binding:"required"`
	Password    string `json:"password" binding:"required"`
	DisplayName string `json:"displayName"`
	InviteToken string `json:"inviteToken"`
}

type SignInRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type UpdateProfileRequest struct {
	DisplayName     *string `json:"displayName"`
	ProfileImageURL *string `json:"profileImageUrl"`
	Password        *string `json:"password"`
}

// ===== Implementation =====

func normalizeEmail(email string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil || addr.Address != strings.TrimSpace(email) {
		return "", invalid("email %q is not valid", email)
	}
	return strings.ToLower(addr.Address), nil
}

func (s *authService) hash(password string) (string, error) {
	if len(password) < minPasswordLength {
		return "", invalid("password must be at least %d characters", minPasswordLength)
	}
	if len(password) > maxPasswordLength {
		return "", invalid("password must be at most %d bytes", maxPasswordLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

func (s *authService) SignUp(ctx context.Context, req *SignUpRequest) (*models.User, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}

	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: email %q is already registered", ErrConflict, email)
	}

	hash, err := s.hash(req.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Email:        email,
		DisplayName:  strings.TrimSpace(req.DisplayName),
		PasswordHash: hash,
	}

	if req.InviteToken == "" {
		if err := s.userRepo.Create(ctx, user); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return nil, fmt.Errorf("%w: email %q is already registered", ErrConflict, email)
			}
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
		s.logger.Info("user signed up", "email", email)
		return user, nil
	}

	invite, err := s.inviteRepo.FindByToken(ctx, req.InviteToken)
	if err != nil {
		return nil, fmt.Errorf("failed to load invite: %w", err)
	}
	if invite == nil {
		return nil, notFound("invite")
	}
	if invite.IsUsed {
		return nil, fmt.Errorf("%w: invite has already been used", ErrConflict)
	}
	if invite.Expired(s.now()) {
		return nil, fmt.Errorf("%w: invite has expired", ErrGone)
	}
	if !strings.EqualFold(invite.Email, email) {
		return nil, invalid("invite was issued for a different email")
	}

	if err := s.userRepo.CreateWithInvite(ctx, user, invite); err != nil {
		switch {
		case errors.Is(err, gorm.ErrDuplicatedKey):
			return nil, fmt.Errorf("%w: email %q is already registered", ErrConflict, email)
		case errors.Is(err, gorm.ErrRecordNotFound):
			return nil, fmt.Errorf("%w: invite has already been used", ErrConflict)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("user joined via invite", "email", email, "organization_id", invite.OrganizationID, "role", invite.Role)
	return user, nil
}

func (s *authService) SignIn(ctx context.Context, req *SignInRequest) (*models.Session, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil {
		return nil, ErrNotAuthorized
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrNotAuthorized
	}

	session := &models.Session{
		Token:     newToken(),
		UserID:    user.ID,
		ExpiresAt: s.now().Add(s.cfg.SessionTTL()),
	}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	session.User = user

	s.logger.Debug("session created", "email", email)
	return session, nil
}

func (s *authService) SignOut(ctx context.Context, token string) error {
	if err := s.sessionRepo.Delete(ctx, token); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (s *authService) Authenticate(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, ErrNotAuthorized
	}

	session, err := s.sessionRepo.FindByToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if session == nil || session.User == nil || session.Expired(s.now()) {
		return nil, ErrNotAuthorized
	}
	return session.User, nil
}

func (s *authService) UpdateProfile(ctx context.Context, user *models.User, req *UpdateProfileRequest) (*models.User, error) {
	if req.DisplayName != nil {
		user.DisplayName = strings.TrimSpace(*req.DisplayName)
	}
	if req.ProfileImageURL != nil {
		user.ProfileImageURL = strings.TrimSpace(*req.ProfileImageURL)
	}
	if req.Password != nil {
		hash, err := s.hash(*req.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return user, nil
}
