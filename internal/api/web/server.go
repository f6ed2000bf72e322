package web

import (
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/sessions"

	app "human-guard/internal/application"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Options настройки веб-интерфейса
type Options struct {
	SessionSecret string
	SessionTTL    time.Duration
	MaxUploadSize int64
	SecureCookies bool
	FrameInterval time.Duration // период кадров живого превью камеры

	// DetectBackendURL сервис детекции, куда проксируется /api/detect
	DetectBackendURL string
}

// Server HTTP-интерфейс: страницы, виджет захвата и вход
type Server struct {
	capture *app.CaptureService
	auth    *app.AuthService
	history *app.HistoryService

	store  *sessions.CookieStore
	pages  *renderer
	detect http.Handler
	opts   Options
}

// NewServer собирает обработчики веб-интерфейса
func NewServer(capture *app.CaptureService, auth *app.AuthService, history *app.HistoryService, opts Options) (*Server, error) {
	pages, err := newRenderer(templateFS)
	if err != nil {
		return nil, err
	}
	if opts.MaxUploadSize <= 0 {
		opts.MaxUploadSize = 10 << 20
	}
	if opts.FrameInterval <= 0 {
		opts.FrameInterval = 100 * time.Millisecond
	}

	detect, err := newDetectProxy(opts.DetectBackendURL)
	if err != nil {
		return nil, err
	}

	return &Server{
		capture: capture,
		auth:    auth,
		history: history,
		store:   newCookieStore(opts),
		pages:   pages,
		detect:  detect,
		opts:    opts,
	}, nil
}

// newDetectProxy пересылает запросы страницы на тот же origin в сервис детекции
func newDetectProxy(backend string) (http.Handler, error) {
	if backend == "" {
		return nil, nil
	}
	target, err := url.Parse(backend)
	if err != nil || target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("invalid detect backend url %q", backend)
	}
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
		},
	}, nil
}

// Router возвращает chi-роутер со всеми маршрутами
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/", s.HomeHandler)
	r.Get("/ping", PingHandler)

	r.Get("/login", s.LoginPageHandler)
	r.Post("/login", s.LoginHandler)
	r.Post("/logout", s.LogoutHandler)
	r.Get("/profile", s.ProfilePageHandler)
	r.Post("/profile", s.ProfileUpdateHandler)

	r.Route("/detect", func(r chi.Router) {
		r.Get("/", s.DetectPageHandler)
		r.Get("/state", s.StateHandler)
		r.Get("/preview/{previewID}", s.PreviewHandler)
		r.Post("/file", s.FileHandler)
		r.Post("/submit", s.SubmitHandler)
		r.Post("/clear", s.ClearHandler)
		r.Post("/camera/start", s.CameraStartHandler)
		r.Post("/camera/stop", s.CameraStopHandler)
		r.Post("/camera/capture", s.CameraCaptureHandler)
		r.Get("/camera/stream", s.CameraStreamHandler)
	})

	if s.detect != nil {
		r.Post("/api/detect", s.detect.ServeHTTP)
	}

	static, _ := fs.Sub(staticFS, "static")
	r.Handle("/static/*", http.StripPrefix("/static", http.FileServer(http.FS(static))))

	return r
}

func PingHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("pong"))
}
