package port

import (
	"context"
	"errors"

	"human-guard/internal/domain/entity"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUnauthenticated    = errors.New("not authenticated")
	ErrEmailTaken         = errors.New("email already registered")
)

// AuthProvider интерфейс внешнего провайдера аутентификации
type AuthProvider interface {
	// SignIn вход по email и паролю
	SignIn(ctx context.Context, email, password string) (*entity.AuthSession, error)

	// SignUp регистрация; nil-сессия означает, что нужно подтвердить email
	SignUp(ctx context.Context, email, password string) (*entity.AuthSession, error)

	// SignOut завершает сессию
	SignOut(ctx context.Context, accessToken string) error

	// CurrentSession возвращает действующую сессию по токену
	CurrentSession(ctx context.Context, accessToken string) (*entity.AuthSession, error)

	// CurrentUser возвращает пользователя по токену
	CurrentUser(ctx context.Context, accessToken string) (*entity.Account, error)

	// UpdateUserMetadata обновляет метаданные пользователя
	UpdateUserMetadata(ctx context.Context, accessToken string, metadata map[string]string) (*entity.Account, error)
}
