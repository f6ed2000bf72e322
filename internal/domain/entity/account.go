package entity

import (
	"strings"
	"time"
)

// MetaFullName ключ метаданных с отображаемым именем
const MetaFullName = "full_name"

// Account учётная запись у провайдера аутентификации
type Account struct {
	ID        string
	Email     string
	Metadata  map[string]string // пользовательские метаданные (full_name)
	CreatedAt time.Time
}

// DisplayName возвращает имя из метаданных или часть email до @
func (a *Account) DisplayName() string {
	if name := strings.TrimSpace(a.Metadata[MetaFullName]); name != "" {
		return name
	}
	local, _, _ := strings.Cut(a.Email, "@")
	return local
}

// AuthSession сессия, выданная провайдером аутентификации
type AuthSession struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	Account      Account
}

// Expired проверяет истечение сессии
func (s *AuthSession) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}
