package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gorilla/securecookie"

	"human-guard/config"
	"human-guard/internal/api/telegram"
	"human-guard/internal/api/web"
	app "human-guard/internal/application"
	"human-guard/internal/container"
	"human-guard/internal/domain/port"
	"human-guard/internal/infrastructure/auth"
	"human-guard/internal/infrastructure/detectapi"
	"human-guard/internal/infrastructure/storage"
	"human-guard/internal/infrastructure/vision"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if cfg.SessionSecret == "" {
		log.Println("SESSION_SECRET is not set, sessions will not survive a restart")
		cfg.SessionSecret = string(securecookie.GenerateRandomKey(32))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// База для истории проверок и локальных аккаунтов
	db, err := storage.NewDB(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	detector := detectapi.NewClient(detectapi.Config{
		BaseURL:        cfg.DetectBaseURL,
		FallbackURL:    cfg.DetectFallbackURL,
		DevPort:        strconv.Itoa(cfg.DevPort),
		DevBackendPort: strconv.Itoa(cfg.DevBackendPort),
		Timeout:        cfg.DetectTimeout,
	})
	healthCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	if err := detector.CheckHealth(healthCtx); err != nil {
		log.Printf("Detection service is not reachable yet: %v", err)
	}
	cancel()

	var provider port.AuthProvider
	switch cfg.AuthProvider {
	case config.AuthProviderSupabase:
		provider = auth.NewSupabaseProvider(cfg.SupabaseURL, cfg.SupabaseAnonKey, cfg.DetectTimeout)
	default:
		provider = auth.NewLocalProvider(db, cfg.SessionTTL)
	}
	log.Printf("Using %s auth provider", cfg.AuthProvider)

	// Собираем сервисы приложения
	appContainer := container.New(container.Deps{
		CaptureRepo:  storage.NewMemoryCaptureRepository(),
		HistoryRepo:  storage.NewHistoryRepository(db),
		Detector:     detector,
		Camera:       vision.NewGoCVCamera(cfg.CameraDevice),
		AuthProvider: provider,
		Limits: app.CaptureLimits{
			MaxImageSize:  cfg.MaxUploadSize,
			SubmitTimeout: cfg.DetectTimeout,
		},
	})

	go appContainer.CaptureService.RunJanitor(ctx, cfg.SessionTTL)

	if cfg.TelegramToken != "" {
		bot, err := telegram.NewBot(cfg.TelegramToken, appContainer.CaptureService)
		if err != nil {
			log.Fatalf("Failed to create bot: %v", err)
		}
		go func() {
			log.Println("Bot is running...")
			if err := bot.Run(ctx); err != nil {
				log.Printf("Bot error: %v", err)
			}
		}()
	}

	server, err := web.NewServer(appContainer.CaptureService, appContainer.AuthService, appContainer.HistoryService, web.Options{
		SessionSecret: cfg.SessionSecret,
		SessionTTL:    cfg.SessionTTL,
		MaxUploadSize: cfg.MaxUploadSize,
		// страница на том же origin шлёт /api/detect сюда
		DetectBackendURL: cfg.DetectFallbackURL,
	})
	if err != nil {
		log.Fatalf("Failed to create web server: %v", err)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	log.Printf("Server starting on port %s", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server error: %v", err)
	}
	log.Println("Server stopped")
}
