package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"human-guard/internal/domain/entity"
	"human-guard/internal/domain/port"
)

const maxAuthResponseSize = 1 << 20

// SupabaseProvider клиент REST API Supabase Auth (GoTrue)
type SupabaseProvider struct {
	baseURL    string
	anonKey    string
	httpClient *http.Client
}

// NewSupabaseProvider создаёт клиента для проекта Supabase
func NewSupabaseProvider(projectURL, anonKey string, timeout time.Duration) *SupabaseProvider {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &SupabaseProvider{
		baseURL:    strings.TrimRight(projectURL, "/") + "/auth/v1",
		anonKey:    anonKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// SignIn вход по паролю
func (p *SupabaseProvider) SignIn(ctx context.Context, email, password string) (*entity.AuthSession, error) {
	body := map[string]string{"email": email, "password": password}
	status, resp, err := p.do(ctx, http.MethodPost, "/token?grant_type=password", "", body)
	if err != nil {
		return nil, err
	}
	switch {
	case status == http.StatusBadRequest || status == http.StatusUnauthorized:
		return nil, port.ErrInvalidCredentials
	case status >= 300:
		return nil, apiError("sign in", status, resp)
	}
	return parseSession(resp)
}

// SignUp регистрация; без access_token в ответе нужна проверка почты
func (p *SupabaseProvider) SignUp(ctx context.Context, email, password string) (*entity.AuthSession, error) {
	body := map[string]string{"email": email, "password": password}
	status, resp, err := p.do(ctx, http.MethodPost, "/signup", "", body)
	if err != nil {
		return nil, err
	}
	if status >= 300 {
		if alreadyRegistered(resp) {
			return nil, port.ErrEmailTaken
		}
		return nil, apiError("sign up", status, resp)
	}

	if !gjson.GetBytes(resp, "access_token").Exists() {
		return nil, nil
	}
	return parseSession(resp)
}

// SignOut отзывает токен у провайдера
func (p *SupabaseProvider) SignOut(ctx context.Context, accessToken string) error {
	status, resp, err := p.do(ctx, http.MethodPost, "/logout", accessToken, nil)
	if err != nil {
		return err
	}
	if status >= 300 && status != http.StatusUnauthorized {
		return apiError("sign out", status, resp)
	}
	return nil
}

// CurrentSession проверяет токен запросом пользователя
func (p *SupabaseProvider) CurrentSession(ctx context.Context, accessToken string) (*entity.AuthSession, error) {
	acc, err := p.CurrentUser(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	return &entity.AuthSession{AccessToken: accessToken, Account: *acc}, nil
}

// CurrentUser возвращает пользователя токена
func (p *SupabaseProvider) CurrentUser(ctx context.Context, accessToken string) (*entity.Account, error) {
	status, resp, err := p.do(ctx, http.MethodGet, "/user", accessToken, nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return nil, port.ErrUnauthenticated
	}
	if status >= 300 {
		return nil, apiError("get user", status, resp)
	}
	return parseAccount(gjson.ParseBytes(resp))
}

// UpdateUserMetadata обновляет user_metadata
func (p *SupabaseProvider) UpdateUserMetadata(ctx context.Context, accessToken string, metadata map[string]string) (*entity.Account, error) {
	body := map[string]any{"data": metadata}
	status, resp, err := p.do(ctx, http.MethodPut, "/user", accessToken, body)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return nil, port.ErrUnauthenticated
	}
	if status >= 300 {
		return nil, apiError("update user", status, resp)
	}
	return parseAccount(gjson.ParseBytes(resp))
}

func (p *SupabaseProvider) do(ctx context.Context, method, path, token string, body any) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("apikey", p.anonKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("auth request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAuthResponseSize))
	if err != nil {
		return 0, nil, fmt.Errorf("read auth response: %w", err)
	}
	return resp.StatusCode, data, nil
}

func parseSession(body []byte) (*entity.AuthSession, error) {
	res := gjson.ParseBytes(body)
	token := res.Get("access_token").String()
	if token == "" {
		return nil, fmt.Errorf("auth response without access_token")
	}

	acc, err := parseAccount(res.Get("user"))
	if err != nil {
		return nil, err
	}

	session := &entity.AuthSession{
		AccessToken:  token,
		RefreshToken: res.Get("refresh_token").String(),
		Account:      *acc,
	}
	if exp := res.Get("expires_at").Int(); exp > 0 {
		session.ExpiresAt = time.Unix(exp, 0).UTC()
	} else if in := res.Get("expires_in").Int(); in > 0 {
		session.ExpiresAt = time.Now().Add(time.Duration(in) * time.Second).UTC()
	}
	return session, nil
}

func parseAccount(user gjson.Result) (*entity.Account, error) {
	id := user.Get("id").String()
	if id == "" {
		return nil, fmt.Errorf("auth response without user id")
	}

	acc := &entity.Account{
		ID:       id,
		Email:    user.Get("email").String(),
		Metadata: map[string]string{},
	}
	user.Get("user_metadata").ForEach(func(key, value gjson.Result) bool {
		if value.Type == gjson.String || value.Type == gjson.Number {
			acc.Metadata[key.String()] = value.String()
		}
		return true
	})
	if created, err := time.Parse(time.RFC3339Nano, user.Get("created_at").String()); err == nil {
		acc.CreatedAt = created
	}
	return acc, nil
}

// alreadyRegistered распознаёт оба формата ошибок GoTrue
func alreadyRegistered(body []byte) bool {
	res := gjson.ParseBytes(body)
	if res.Get("error_code").String() == "user_already_exists" {
		return true
	}
	for _, key := range []string{"msg", "message", "error_description"} {
		if strings.Contains(strings.ToLower(res.Get(key).String()), "already registered") {
			return true
		}
	}
	return false
}

func apiError(op string, status int, body []byte) error {
	res := gjson.ParseBytes(body)
	for _, key := range []string{"msg", "message", "error_description", "error"} {
		if msg := res.Get(key).String(); msg != "" {
			return fmt.Errorf("%s: status %d: %s", op, status, msg)
		}
	}
	return fmt.Errorf("%s: status %d", op, status)
}

var _ port.AuthProvider = (*SupabaseProvider)(nil)
