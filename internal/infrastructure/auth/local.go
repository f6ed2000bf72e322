package auth

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"human-guard/internal/domain/entity"
	"human-guard/internal/domain/port"
	"human-guard/internal/infrastructure/storage"
)

// LocalProvider аккаунты и сессии в локальной sqlite-базе
type LocalProvider struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// NewLocalProvider создаёт провайдера, ttl задаёт срок жизни сессии
func NewLocalProvider(db *storage.DB, ttl time.Duration) *LocalProvider {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &LocalProvider{db: db.Conn(), ttl: ttl, now: time.Now}
}

// SignUp регистрирует аккаунт и сразу открывает сессию
func (p *LocalProvider) SignUp(ctx context.Context, email, password string) (*entity.AuthSession, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	acc := entity.Account{
		ID:        uuid.New().String(),
		Email:     email,
		Metadata:  map[string]string{},
		CreatedAt: p.now().UTC(),
	}
	_, err = p.db.ExecContext(ctx,
		`INSERT INTO accounts (id, email, password_hash, metadata, created_at) VALUES (?, ?, ?, '{}', ?)`,
		acc.ID, acc.Email, string(hash), acc.CreatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, port.ErrEmailTaken
		}
		return nil, fmt.Errorf("insert account: %w", err)
	}

	return p.openSession(ctx, acc)
}

// SignIn проверяет пароль и открывает сессию
func (p *LocalProvider) SignIn(ctx context.Context, email, password string) (*entity.AuthSession, error) {
	var hash string
	acc, err := p.scanAccount(p.db.QueryRowContext(ctx,
		`SELECT id, email, metadata, created_at, password_hash FROM accounts WHERE email = ?`, email), &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return nil, port.ErrInvalidCredentials
	}

	return p.openSession(ctx, *acc)
}

// SignOut удаляет сессию
func (p *LocalProvider) SignOut(ctx context.Context, accessToken string) error {
	if _, err := p.db.ExecContext(ctx, `DELETE FROM auth_sessions WHERE token = ?`, accessToken); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// CurrentSession возвращает сессию, если она не истекла
func (p *LocalProvider) CurrentSession(ctx context.Context, accessToken string) (*entity.AuthSession, error) {
	var expiresAt time.Time
	var hash string
	acc, err := p.scanAccount(p.db.QueryRowContext(ctx, `
		SELECT a.id, a.email, a.metadata, a.created_at, a.password_hash, s.expires_at
		FROM auth_sessions s JOIN accounts a ON a.id = s.account_id
		WHERE s.token = ?`, accessToken), &hash, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrUnauthenticated
	}
	if err != nil {
		return nil, err
	}

	session := &entity.AuthSession{AccessToken: accessToken, ExpiresAt: expiresAt, Account: *acc}
	if session.Expired(p.now()) {
		if err := p.SignOut(ctx, accessToken); err != nil {
			log.Printf("Error deleting expired session: %v", err)
		}
		return nil, port.ErrUnauthenticated
	}
	return session, nil
}

// CurrentUser возвращает пользователя сессии
func (p *LocalProvider) CurrentUser(ctx context.Context, accessToken string) (*entity.Account, error) {
	session, err := p.CurrentSession(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	return &session.Account, nil
}

// UpdateUserMetadata сливает метаданные с уже сохранёнными
func (p *LocalProvider) UpdateUserMetadata(ctx context.Context, accessToken string, metadata map[string]string) (*entity.Account, error) {
	acc, err := p.CurrentUser(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	if acc.Metadata == nil {
		acc.Metadata = make(map[string]string)
	}
	for k, v := range metadata {
		acc.Metadata[k] = v
	}

	raw, err := json.Marshal(acc.Metadata)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	if _, err := p.db.ExecContext(ctx, `UPDATE accounts SET metadata = ? WHERE id = ?`, string(raw), acc.ID); err != nil {
		return nil, fmt.Errorf("update metadata: %w", err)
	}
	return acc, nil
}

func (p *LocalProvider) openSession(ctx context.Context, acc entity.Account) (*entity.AuthSession, error) {
	token, err := newToken()
	if err != nil {
		return nil, err
	}
	expiresAt := p.now().Add(p.ttl).UTC()
	if _, err := p.db.ExecContext(ctx,
		`INSERT INTO auth_sessions (token, account_id, expires_at) VALUES (?, ?, ?)`,
		token, acc.ID, expiresAt); err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	return &entity.AuthSession{AccessToken: token, ExpiresAt: expiresAt, Account: acc}, nil
}

func (p *LocalProvider) scanAccount(row *sql.Row, extra ...any) (*entity.Account, error) {
	var acc entity.Account
	var meta string
	dest := append([]any{&acc.ID, &acc.Email, &meta, &acc.CreatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	acc.Metadata = map[string]string{}
	if err := json.Unmarshal([]byte(meta), &acc.Metadata); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return &acc, nil
}

func newToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

var _ port.AuthProvider = (*LocalProvider)(nil)
