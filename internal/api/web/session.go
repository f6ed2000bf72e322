package web

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/sessions"

	"human-guard/internal/domain/entity"
	"human-guard/internal/domain/port"
)

const (
	sessionName = "human-guard"

	keyCaptureID   = "capture_id"
	keyAccessToken = "access_token"

	webOwner = "web"
)

func newCookieStore(opts Options) *sessions.CookieStore {
	store := sessions.NewCookieStore([]byte(opts.SessionSecret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(opts.SessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   opts.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}
	return store
}

// visitor состояние браузера на время одного запроса
type visitor struct {
	cookie  *sessions.Session
	account *entity.Account
	token   string
}

// visit читает cookie и проверяет токен у провайдера аутентификации
func (s *Server) visit(r *http.Request) *visitor {
	cookie, err := s.store.Get(r, sessionName)
	if err != nil {
		// повреждённая или подписанная старым ключом cookie
		log.Printf("Error decoding session cookie: %v", err)
	}

	v := &visitor{cookie: cookie}
	token, _ := cookie.Values[keyAccessToken].(string)
	if token == "" {
		return v
	}

	session, err := s.auth.Session(r.Context(), token)
	if err != nil {
		if !errors.Is(err, port.ErrUnauthenticated) {
			log.Printf("Error checking auth session: %v", err)
		}
		delete(cookie.Values, keyAccessToken)
		return v
	}
	v.account = &session.Account
	v.token = token
	return v
}

func (v *visitor) accountID() string {
	if v.account == nil {
		return ""
	}
	return v.account.ID
}

func (v *visitor) flash(msg string) {
	v.cookie.AddFlash(msg)
}

func (v *visitor) flashes() []string {
	var out []string
	for _, f := range v.cookie.Flashes() {
		if msg, ok := f.(string); ok {
			out = append(out, msg)
		}
	}
	return out
}

func (s *Server) saveVisitor(w http.ResponseWriter, r *http.Request, v *visitor) {
	if err := s.store.Save(r, w, v.cookie); err != nil {
		log.Printf("Error saving session cookie: %v", err)
	}
}

// captureSession возвращает сессию захвата посетителя, создавая её при необходимости,
// и держит привязку к аккаунту в актуальном состоянии
func (s *Server) captureSession(ctx context.Context, v *visitor) (*entity.CaptureSession, error) {
	if id, _ := v.cookie.Values[keyCaptureID].(string); id != "" {
		session, err := s.capture.Get(ctx, id)
		if err == nil {
			if session.AccountID != v.accountID() {
				return s.capture.BindAccount(ctx, id, v.accountID())
			}
			return session, nil
		}
		if !errors.Is(err, port.ErrSessionNotFound) {
			return nil, err
		}
	}

	session, err := s.capture.Open(ctx, webOwner)
	if err != nil {
		return nil, err
	}
	v.cookie.Values[keyCaptureID] = session.ID
	if v.accountID() != "" {
		return s.capture.BindAccount(ctx, session.ID, v.accountID())
	}
	return session, nil
}

// existingCapture возвращает id сессии захвата из cookie без создания новой
func existingCapture(v *visitor) (string, bool) {
	id, _ := v.cookie.Values[keyCaptureID].(string)
	return id, id != ""
}
