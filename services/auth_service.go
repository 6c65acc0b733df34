package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Dosada05/pickleball-platform/models"
	"github.com/Dosada05/pickleball-platform/repositories"
	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

type RegisterInput struct {
	Email    string `json:"email"`
	Nickname string `json:"nickname"`
	Password string `json:"password"`
}

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ProviderSignInConfig - допустимые audience для токенов Google/Apple.
type ProviderSignInConfig struct {
	GoogleClientID string
	AppleClientID  string
}

type AuthService interface {
	Register(ctx context.Context, input RegisterInput) (*models.User, error)
	Login(ctx context.Context, input LoginInput) (*models.User, error)
	// SignInWithProvider принимает identity-токен провайдера и создаёт
	// пользователя при первом входе. Криптографическая проверка подписи -
	// забота SDK провайдера на клиенте и API-шлюза; здесь валидируются
	// issuer, audience и срок действия.
	SignInWithProvider(ctx context.Context, provider models.AuthProvider, idToken string) (*models.User, error)
}

type authService struct {
	userRepo repositories.UserRepository
	cfg      ProviderSignInConfig
}

func NewAuthService(userRepo repositories.UserRepository, cfg ProviderSignInConfig) AuthService {
	return &authService{
		userRepo: userRepo,
		cfg:      cfg,
	}
}

func (s *authService) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	if len(input.Password) < minPasswordLength {
		return nil, ErrPasswordTooShort
	}
	if input.Nickname == "" {
		input.Nickname = nicknameFromEmail(input.Email)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	hash := string(hashedPassword)

	user := &models.User{
		Email:        input.Email,
		Nickname:     input.Nickname,
		PasswordHash: &hash,
		Provider:     models.ProviderLocal,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		switch {
		case errors.Is(err, repositories.ErrUserEmailConflict):
			return nil, ErrAuthEmailTaken
		case errors.Is(err, repositories.ErrUserNicknameConflict):
			return nil, ErrUserNicknameConflict
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	user.PasswordHash = nil
	return user, nil
}

func (s *authService) Login(ctx context.Context, input LoginInput) (*models.User, error) {
	user, err := s.userRepo.GetByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrAuthInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}

	if user.PasswordHash == nil {
		// Аккаунт создан через провайдера, локального пароля нет.
		return nil, ErrAuthInvalidCredentials
	}

	err = bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(input.Password))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, ErrAuthInvalidCredentials
		}
		return nil, fmt.Errorf("failed to compare password hash: %w", err)
	}

	user.PasswordHash = nil
	return user, nil
}

func (s *authService) SignInWithProvider(ctx context.Context, provider models.AuthProvider, idToken string) (*models.User, error) {
	claims, err := s.parseProviderToken(provider, idToken)
	if err != nil {
		return nil, err
	}

	subject, _ := claims["sub"].(string)
	email, _ := claims["email"].(string)
	if subject == "" || email == "" {
		return nil, ErrInvalidProviderToken
	}

	user, err := s.userRepo.GetByProvider(ctx, provider, subject)
	if err == nil {
		user.PasswordHash = nil
		return user, nil
	}
	if !errors.Is(err, repositories.ErrUserNotFound) {
		return nil, fmt.Errorf("failed to look up provider user: %w", err)
	}

	// Первый вход - создаём пользователя.
	nickname, _ := claims["name"].(string)
	if nickname == "" {
		nickname = nicknameFromEmail(email)
	}

	user = &models.User{
		Email:      email,
		Nickname:   nickname,
		Provider:   provider,
		ProviderID: &subject,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrUserEmailConflict) {
			return nil, ErrAuthEmailTaken
		}
		return nil, fmt.Errorf("failed to create provider user: %w", err)
	}
	return user, nil
}

func (s *authService) parseProviderToken(provider models.AuthProvider, idToken string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(idToken, claims); err != nil {
		return nil, ErrInvalidProviderToken
	}

	var wantIssuer, wantAudience string
	switch provider {
	case models.ProviderGoogle:
		wantIssuer = "https://accounts.google.com"
		wantAudience = s.cfg.GoogleClientID
	case models.ProviderApple:
		wantIssuer = "https://appleid.apple.com"
		wantAudience = s.cfg.AppleClientID
	default:
		return nil, ErrInvalidProviderToken
	}

	if !claims.VerifyIssuer(wantIssuer, true) {
		return nil, ErrInvalidProviderToken
	}
	if wantAudience != "" && !claims.VerifyAudience(wantAudience, true) {
		return nil, ErrInvalidProviderToken
	}
	if !claims.VerifyExpiresAt(time.Now().Unix(), true) {
		return nil, ErrInvalidProviderToken
	}
	return claims, nil
}

func nicknameFromEmail(email string) string {
	if idx := strings.IndexByte(email, '@'); idx > 0 {
		return email[:idx]
	}
	return email
}
