package storage

import (
	"context"
	"sync"
	"time"

	"human-guard/internal/domain/entity"
	"human-guard/internal/domain/port"
)

type captureEntry struct {
	session    *entity.CaptureSession
	lastAccess time.Time
}

// MemoryCaptureRepository in-memory хранилище сессий захвата
type MemoryCaptureRepository struct {
	mu       sync.RWMutex
	sessions map[string]*captureEntry
	now      func() time.Time
}

// NewMemoryCaptureRepository создаёт новое in-memory хранилище
func NewMemoryCaptureRepository() *MemoryCaptureRepository {
	return &MemoryCaptureRepository{
		sessions: make(map[string]*captureEntry),
		now:      time.Now,
	}
}

// Get возвращает копию сессии и отмечает обращение к ней
func (r *MemoryCaptureRepository) Get(ctx context.Context, id string) (*entity.CaptureSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, exists := r.sessions[id]
	if !exists {
		return nil, port.ErrSessionNotFound
	}
	e.lastAccess = r.now()
	return e.session.Clone(), nil
}

// Save сохраняет копию сессии
func (r *MemoryCaptureRepository) Save(ctx context.Context, session *entity.CaptureSession) error {
	r.mu.Lock()
	r.sessions[session.ID] = &captureEntry{
		session:    session.Clone(),
		lastAccess: r.now(),
	}
	r.mu.Unlock()

	return nil
}

// Delete удаляет сессию
func (r *MemoryCaptureRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[id]; !exists {
		return port.ErrSessionNotFound
	}
	delete(r.sessions, id)
	return nil
}

// Idle возвращает ID сессий без обращений с момента before
func (r *MemoryCaptureRepository) Idle(ctx context.Context, before time.Time) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []string
	for id, e := range r.sessions {
		if e.lastAccess.Before(before) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Проверка реализации интерфейса
var _ port.CaptureRepository = (*MemoryCaptureRepository)(nil)
