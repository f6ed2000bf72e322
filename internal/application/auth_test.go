package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"human-guard/internal/domain/entity"
	"human-guard/internal/domain/port"
)

type fakeAuthProvider struct {
	confirm  bool
	accounts map[string]*entity.Account
	tokens   map[string]string
	signOuts int
}

func newFakeAuthProvider() *fakeAuthProvider {
	return &fakeAuthProvider{
		accounts: make(map[string]*entity.Account),
		tokens:   make(map[string]string),
	}
}

func (p *fakeAuthProvider) SignIn(ctx context.Context, email, password string) (*entity.AuthSession, error) {
	acc, ok := p.accounts[email]
	if !ok || password != "secret1" {
		return nil, port.ErrInvalidCredentials
	}
	p.tokens["tok-"+email] = email
	return &entity.AuthSession{AccessToken: "tok-" + email, Account: *acc}, nil
}

func (p *fakeAuthProvider) SignUp(ctx context.Context, email, password string) (*entity.AuthSession, error) {
	if _, ok := p.accounts[email]; ok {
		return nil, port.ErrEmailTaken
	}
	p.accounts[email] = &entity.Account{ID: "id-" + email, Email: email}
	if p.confirm {
		return nil, nil
	}
	return p.SignIn(ctx, email, password)
}

func (p *fakeAuthProvider) SignOut(ctx context.Context, accessToken string) error {
	p.signOuts++
	delete(p.tokens, accessToken)
	return nil
}

func (p *fakeAuthProvider) CurrentSession(ctx context.Context, accessToken string) (*entity.AuthSession, error) {
	acc, err := p.CurrentUser(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	return &entity.AuthSession{AccessToken: accessToken, Account: *acc}, nil
}

func (p *fakeAuthProvider) CurrentUser(ctx context.Context, accessToken string) (*entity.Account, error) {
	email, ok := p.tokens[accessToken]
	if !ok {
		return nil, port.ErrUnauthenticated
	}
	return p.accounts[email], nil
}

func (p *fakeAuthProvider) UpdateUserMetadata(ctx context.Context, accessToken string, metadata map[string]string) (*entity.Account, error) {
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
	return acc, nil
}

func TestAuthService_SignUpSignInProfile(t *testing.T) {
	provider := newFakeAuthProvider()
	svc := NewAuthService(provider)
	ctx := context.Background()

	res, err := svc.SignUp(ctx, "  Jane@Example.com ", "secret1")
	require.NoError(t, err)
	require.False(t, res.NeedsConfirmation)
	require.Equal(t, "jane@example.com", res.Session.Account.Email)

	session, err := svc.SignIn(ctx, "jane@example.com", "secret1")
	require.NoError(t, err)

	acc, err := svc.Profile(ctx, session.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "jane", acc.DisplayName())

	acc, err = svc.UpdateDisplayName(ctx, session.AccessToken, " Jane Doe ")
	require.NoError(t, err)
	require.Equal(t, "Jane Doe", acc.DisplayName())

	require.NoError(t, svc.SignOut(ctx, session.AccessToken))
	_, err = svc.Profile(ctx, session.AccessToken)
	require.ErrorIs(t, err, port.ErrUnauthenticated)
}

func TestAuthService_SignUpNeedsConfirmation(t *testing.T) {
	provider := newFakeAuthProvider()
	provider.confirm = true
	svc := NewAuthService(provider)

	res, err := svc.SignUp(context.Background(), "new@example.com", "secret1")
	require.NoError(t, err)
	require.True(t, res.NeedsConfirmation)
	require.Nil(t, res.Session)
}

func TestAuthService_Validation(t *testing.T) {
	provider := newFakeAuthProvider()
	svc := NewAuthService(provider)
	ctx := context.Background()

	_, err := svc.SignIn(ctx, "not-an-email", "secret1")
	require.ErrorIs(t, err, ErrInvalidEmail)
	_, err = svc.SignUp(ctx, "a@b.co", "12345")
	require.ErrorIs(t, err, ErrPasswordTooWeak)
	_, err = svc.SignIn(ctx, "ghost@example.com", "secret1")
	require.ErrorIs(t, err, port.ErrInvalidCredentials)

	_, err = svc.Profile(ctx, "")
	require.ErrorIs(t, err, port.ErrUnauthenticated)
	_, err = svc.UpdateDisplayName(ctx, "tok", "   ")
	require.ErrorIs(t, err, ErrEmptyName)

	require.NoError(t, svc.SignOut(ctx, ""))
	require.Zero(t, provider.signOuts)
}
