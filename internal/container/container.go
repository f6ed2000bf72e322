package container

import (
	app "human-guard/internal/application"
	"human-guard/internal/domain/port"
)

type Container struct {
	CaptureService *app.CaptureService
	AuthService    *app.AuthService
	HistoryService *app.HistoryService
}

// Deps внешние зависимости, из которых собираются сервисы
type Deps struct {
	CaptureRepo  port.CaptureRepository
	HistoryRepo  port.HistoryRepository
	Detector     port.Detector
	Camera       port.Camera
	AuthProvider port.AuthProvider
	Limits       app.CaptureLimits
}

func New(deps Deps) *Container {
	historyService := app.NewHistoryService(deps.HistoryRepo)
	captureService := app.NewCaptureService(deps.CaptureRepo, deps.Detector, deps.Camera, historyService, deps.Limits)
	authService := app.NewAuthService(deps.AuthProvider)

	return &Container{
		CaptureService: captureService,
		AuthService:    authService,
		HistoryService: historyService,
	}
}
