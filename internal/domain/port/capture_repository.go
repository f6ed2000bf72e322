package port

import (
	"context"
	"errors"
	"time"

	"human-guard/internal/domain/entity"
)

// ErrSessionNotFound сессия захвата не найдена
var ErrSessionNotFound = errors.New("capture session not found")

// CaptureRepository интерфейс хранилища сессий захвата
type CaptureRepository interface {
	// Get возвращает сессию по ID
	Get(ctx context.Context, id string) (*entity.CaptureSession, error)

	// Save сохраняет сессию
	Save(ctx context.Context, session *entity.CaptureSession) error

	// Delete удаляет сессию
	Delete(ctx context.Context, id string) error

	// Idle возвращает ID сессий, к которым не обращались с момента before
	Idle(ctx context.Context, before time.Time) ([]string, error)
}
