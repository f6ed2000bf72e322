package app

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"human-guard/internal/domain/entity"
	"human-guard/internal/domain/port"
)

// MinPasswordLength минимальная длина пароля
const MinPasswordLength = 6

// MsgConfirmEmail показывается после регистрации, требующей подтверждения
const MsgConfirmEmail = "Success! Check your email to confirm your account."

var (
	ErrInvalidEmail    = errors.New("enter a valid email address")
	ErrPasswordTooWeak = errors.New("password must be at least 6 characters")
	ErrEmptyName       = errors.New("display name must not be empty")
)

// SignUpResult итог регистрации
type SignUpResult struct {
	Session           *entity.AuthSession // nil, пока email не подтверждён
	NeedsConfirmation bool
}

// AuthService вход, регистрация и профиль поверх провайдера аутентификации.
type AuthService struct {
	provider port.AuthProvider
}

// NewAuthService создаёт сервис аутентификации
func NewAuthService(provider port.AuthProvider) *AuthService {
	return &AuthService{provider: provider}
}

// SignIn вход по email и паролю
func (s *AuthService) SignIn(ctx context.Context, email, password string) (*entity.AuthSession, error) {
	email, err := normalizeCredentials(email, password)
	if err != nil {
		return nil, err
	}
	return s.provider.SignIn(ctx, email, password)
}

// SignUp регистрация; провайдер может потребовать подтверждение email.
func (s *AuthService) SignUp(ctx context.Context, email, password string) (*SignUpResult, error) {
	email, err := normalizeCredentials(email, password)
	if err != nil {
		return nil, err
	}
	session, err := s.provider.SignUp(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return &SignUpResult{Session: session, NeedsConfirmation: session == nil}, nil
}

// SignOut завершает сессию; пустой токен ничего не делает.
func (s *AuthService) SignOut(ctx context.Context, accessToken string) error {
	if accessToken == "" {
		return nil
	}
	return s.provider.SignOut(ctx, accessToken)
}

// Session возвращает действующую сессию или ErrUnauthenticated.
func (s *AuthService) Session(ctx context.Context, accessToken string) (*entity.AuthSession, error) {
	if accessToken == "" {
		return nil, port.ErrUnauthenticated
	}
	return s.provider.CurrentSession(ctx, accessToken)
}

// Profile возвращает текущего пользователя или ErrUnauthenticated.
func (s *AuthService) Profile(ctx context.Context, accessToken string) (*entity.Account, error) {
	if accessToken == "" {
		return nil, port.ErrUnauthenticated
	}
	return s.provider.CurrentUser(ctx, accessToken)
}

// UpdateDisplayName сохраняет отображаемое имя в метаданных пользователя.
func (s *AuthService) UpdateDisplayName(ctx context.Context, accessToken, name string) (*entity.Account, error) {
	if accessToken == "" {
		return nil, port.ErrUnauthenticated
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}
	return s.provider.UpdateUserMetadata(ctx, accessToken, map[string]string{entity.MetaFullName: name})
}

func normalizeCredentials(email, password string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	if len(password) < MinPasswordLength {
		return "", ErrPasswordTooWeak
	}
	return email, nil
}
