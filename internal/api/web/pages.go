package web

import (
	"errors"
	"log"
	"net/http"
	"strings"

	app "human-guard/internal/application"
	"human-guard/internal/domain/entity"
	"human-guard/internal/domain/port"
)

const msgAuthFailed = "Authentication failed"

type loginView struct {
	SignUp  bool
	Email   string
	Error   string
	Message string
}

type profileView struct {
	Editing bool
	Name    string
	Email   string
	Error   string
	History []historyItem
}

type historyItem struct {
	Filename    string
	When        string
	Headline    string
	Class       string
	RealPercent int
	FakePercent int
}

// HomeHandler главная страница
func (s *Server) HomeHandler(w http.ResponseWriter, r *http.Request) {
	v := s.visit(r)
	s.saveVisitor(w, r, v)
	s.pages.render(w, http.StatusOK, "home.html", pageData{
		Title:   "Human Guard",
		Active:  "home",
		Account: v.account,
	})
}

// LoginPageHandler форма входа или регистрации (?mode=signup)
func (s *Server) LoginPageHandler(w http.ResponseWriter, r *http.Request) {
	v := s.visit(r)
	if v.account != nil {
		http.Redirect(w, r, "/detect", http.StatusSeeOther)
		return
	}
	s.saveVisitor(w, r, v)
	s.renderLogin(w, http.StatusOK, loginView{SignUp: r.URL.Query().Get("mode") == "signup"})
}

// LoginHandler вход или регистрация по email и паролю
func (s *Server) LoginHandler(w http.ResponseWriter, r *http.Request) {
	v := s.visit(r)
	if err := r.ParseForm(); err != nil {
		s.renderLogin(w, http.StatusBadRequest, loginView{Error: msgAuthFailed})
		return
	}

	view := loginView{
		SignUp: r.PostFormValue("mode") == "signup",
		Email:  strings.TrimSpace(r.PostFormValue("email")),
	}
	password := r.PostFormValue("password")

	var session *entity.AuthSession
	if view.SignUp {
		res, err := s.auth.SignUp(r.Context(), view.Email, password)
		if err != nil {
			view.Error = authMessage(err)
			s.renderLogin(w, http.StatusUnprocessableEntity, view)
			return
		}
		if res.NeedsConfirmation {
			s.renderLogin(w, http.StatusOK, loginView{Message: app.MsgConfirmEmail})
			return
		}
		session = res.Session
	} else {
		var err error
		session, err = s.auth.SignIn(r.Context(), view.Email, password)
		if err != nil {
			view.Error = authMessage(err)
			s.renderLogin(w, http.StatusUnauthorized, view)
			return
		}
	}

	v.cookie.Values[keyAccessToken] = session.AccessToken
	v.account = &session.Account
	s.bindCapture(r, v)
	s.saveVisitor(w, r, v)
	http.Redirect(w, r, "/detect", http.StatusSeeOther)
}

// LogoutHandler завершает сессию у провайдера и в cookie
func (s *Server) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	v := s.visit(r)
	if err := s.auth.SignOut(r.Context(), v.token); err != nil {
		log.Printf("Error signing out: %v", err)
	}
	delete(v.cookie.Values, keyAccessToken)
	v.account = nil
	s.bindCapture(r, v)
	s.saveVisitor(w, r, v)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// ProfilePageHandler профиль и история проверок
func (s *Server) ProfilePageHandler(w http.ResponseWriter, r *http.Request) {
	v := s.visit(r)
	if v.account == nil {
		s.saveVisitor(w, r, v)
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	// метаданные могли поменяться у провайдера, перечитываем пользователя
	acc, err := s.auth.Profile(r.Context(), v.token)
	switch {
	case errors.Is(err, port.ErrUnauthenticated):
		delete(v.cookie.Values, keyAccessToken)
		s.saveVisitor(w, r, v)
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	case err != nil:
		log.Printf("Error loading profile: %v", err)
	default:
		v.account = acc
	}

	s.saveVisitor(w, r, v)
	s.renderProfile(w, r, v, http.StatusOK, r.URL.Query().Get("edit") == "1", "")
}

// ProfileUpdateHandler меняет отображаемое имя
func (s *Server) ProfileUpdateHandler(w http.ResponseWriter, r *http.Request) {
	v := s.visit(r)
	if v.account == nil {
		s.saveVisitor(w, r, v)
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	acc, err := s.auth.UpdateDisplayName(r.Context(), v.token, r.PostFormValue("full_name"))
	if err != nil {
		msg := err.Error()
		if !errors.Is(err, app.ErrEmptyName) {
			log.Printf("Error updating profile: %v", err)
			msg = msgServerError
		}
		s.saveVisitor(w, r, v)
		s.renderProfile(w, r, v, http.StatusUnprocessableEntity, true, msg)
		return
	}

	v.account = acc
	s.saveVisitor(w, r, v)
	http.Redirect(w, r, "/profile", http.StatusSeeOther)
}

func (s *Server) renderLogin(w http.ResponseWriter, status int, view loginView) {
	title := "Sign In"
	if view.SignUp {
		title = "Create Account"
	}
	s.pages.render(w, status, "login.html", pageData{
		Title:   title,
		HideNav: true,
		Data:    view,
	})
}

func (s *Server) renderProfile(w http.ResponseWriter, r *http.Request, v *visitor, status int, editing bool, formErr string) {
	view := profileView{
		Editing: editing,
		Name:    v.account.DisplayName(),
		Email:   v.account.Email,
		Error:   formErr,
	}

	records, err := s.history.Recent(r.Context(), v.account.ID, app.DefaultHistoryLimit)
	if err != nil {
		log.Printf("Error loading history: %v", err)
	}
	for _, rec := range records {
		verdict := rec.Verdict()
		view.History = append(view.History, historyItem{
			Filename:    rec.Filename,
			When:        rec.CreatedAt.Local().Format("02 Jan 2006 15:04"),
			Headline:    verdict.Headline(),
			Class:       verdictClass(verdict),
			RealPercent: verdict.RealPercent(),
			FakePercent: verdict.FakePercent(),
		})
	}

	s.pages.render(w, status, "profile.html", pageData{
		Title:   "Profile",
		Active:  "profile",
		Account: v.account,
		Data:    view,
	})
}

// bindCapture переносит смену аккаунта на уже открытую сессию захвата
func (s *Server) bindCapture(r *http.Request, v *visitor) {
	id, ok := existingCapture(v)
	if !ok {
		return
	}
	if _, err := s.capture.BindAccount(r.Context(), id, v.accountID()); err != nil && !errors.Is(err, port.ErrSessionNotFound) {
		log.Printf("Error binding capture session: %v", err)
	}
}

func authMessage(err error) string {
	switch {
	case errors.Is(err, app.ErrInvalidEmail),
		errors.Is(err, app.ErrPasswordTooWeak),
		errors.Is(err, port.ErrInvalidCredentials),
		errors.Is(err, port.ErrEmailTaken):
		msg := err.Error()
		return strings.ToUpper(msg[:1]) + msg[1:]
	default:
		log.Printf("Error authenticating: %v", err)
		return msgAuthFailed
	}
}
