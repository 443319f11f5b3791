package service

import (
	"context"
	"regexp"
	"time"

	"messenger-chat/internal/domain"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

const sessionTTL = 24 * time.Hour

type AuthService struct {
	userRepo    domain.UserRepository
	sessionRepo domain.SessionRepository
}

func NewAuthService(userRepo domain.UserRepository, sessionRepo domain.SessionRepository) *AuthService {
	return &AuthService{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
	}
}

func (s *AuthService) Register(ctx context.Context, username, password string) (*domain.User, error) {
	if len(username) < 3 || len(username) > 50 {
		return nil, domain.ErrInvalidRequest
	}
	if !usernameRegex.MatchString(username) {
		return nil, domain.ErrInvalidRequest
	}
	if len(password) < 8 || len(password) > 100 {
		return nil, domain.ErrInvalidRequest
	}

	if _, err := s.userRepo.GetByUsername(ctx, username); err == nil {
		return nil, domain.ErrUsernameExists
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), 12)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Username:     username,
		PasswordHash: string(hashedPassword),
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

func (s *AuthService) Login(ctx context.Context, username, password string) (*domain.Session, *domain.User, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, nil, domain.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword(
		[]byte(user.PasswordHash), []byte(password),
	); err != nil {
		return nil, nil, domain.ErrInvalidCredentials
	}

	session := &domain.Session{
		UserID:    user.ID,
		Token:     uuid.New().String(),
		ExpiresAt: time.Now().Add(sessionTTL),
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, nil, err
	}

	return session, user, nil
}

func (s *AuthService) Logout(ctx context.Context, token string) error {
	return s.sessionRepo.Delete(ctx, token)
}

func (s *AuthService) ValidateSession(ctx context.Context, token string) (*domain.Session, error) {
	return s.sessionRepo.GetByToken(ctx, token)
}

func (s *AuthService) GetUserByID(ctx context.Context, userID int) (*domain.User, error) {
	return s.userRepo.GetByID(ctx, userID)
}
