package entity

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// CaptureState состояние виджета захвата изображения
type CaptureState string

const (
	StateIdle       CaptureState = "idle"        // Нет изображения, камера выключена
	StateCameraOpen CaptureState = "camera_open" // Камера включена
	StateHasImage   CaptureState = "has_image"   // Изображение выбрано
	StateSubmitting CaptureState = "submitting"  // Запрос в обработке
	StateHasResult  CaptureState = "has_result"  // Получен вердикт
	StateHasError   CaptureState = "has_error"   // Ошибка камеры или запроса
)

// MsgCameraUnavailable сообщение об ошибке доступа к камере
const MsgCameraUnavailable = "Could not access camera. Please check permissions."

var (
	ErrSubmitting    = errors.New("submission already in progress")
	ErrNoImage       = errors.New("no image selected")
	ErrCameraNotOpen = errors.New("camera is not open")
)

// CaptureSession локальное состояние виджета одного пользователя
type CaptureSession struct {
	ID         string       // идентификатор сессии
	OwnerID    string       // владелец: браузерная сессия или чат
	AccountID  string       // аккаунт, если пользователь вошёл
	State      CaptureState // текущее состояние
	Image      *Image       // выбранное изображение
	PreviewID  string       // ссылка на превью, меняется вместе с изображением
	Verdict    *Verdict     // есть только в StateHasResult
	LastError  string       // есть только в StateHasError
	Generation uint64       // растёт при каждой смене изображения
	UpdatedAt  time.Time
}

// NewCaptureSession создаёт сессию в начальном состоянии
func NewCaptureSession(ownerID string) *CaptureSession {
	return &CaptureSession{
		ID:        uuid.New().String(),
		OwnerID:   ownerID,
		State:     StateIdle,
		UpdatedAt: time.Now(),
	}
}

// HasImage сообщает, выбрано ли изображение
func (s *CaptureSession) HasImage() bool {
	return s.Image != nil
}

// CameraActive сообщает, открыта ли камера
func (s *CaptureSession) CameraActive() bool {
	return s.State == StateCameraOpen
}

// CanSubmit определяет доступность кнопки отправки
func (s *CaptureSession) CanSubmit() bool {
	return s.Image != nil && (s.State == StateHasImage || s.State == StateHasError)
}

// SelectImage устанавливает новое изображение и сбрасывает прошлый результат.
func (s *CaptureSession) SelectImage(img *Image) error {
	if s.State == StateSubmitting {
		return ErrSubmitting
	}
	if img == nil {
		return ErrNoImage
	}
	s.discard()
	s.Image = img
	s.PreviewID = uuid.New().String()
	s.set(StateHasImage)
	return nil
}

// OpenCamera переводит сессию в режим камеры, выбранное изображение сбрасывается.
func (s *CaptureSession) OpenCamera() error {
	switch s.State {
	case StateSubmitting:
		return ErrSubmitting
	case StateCameraOpen:
		return nil
	}
	s.discard()
	s.set(StateCameraOpen)
	return nil
}

// CameraFailed фиксирует ошибку доступа к камере
func (s *CaptureSession) CameraFailed() {
	s.discard()
	s.LastError = MsgCameraUnavailable
	s.set(StateIdle)
}

// CloseCamera выключает режим камеры
func (s *CaptureSession) CloseCamera() {
	if s.State != StateCameraOpen {
		return
	}
	s.set(StateIdle)
}

// BeginSubmit начинает отправку и возвращает номер поколения изображения.
func (s *CaptureSession) BeginSubmit() (uint64, error) {
	if s.State == StateSubmitting {
		return 0, ErrSubmitting
	}
	if !s.CanSubmit() {
		return 0, ErrNoImage
	}
	s.Verdict = nil
	s.LastError = ""
	s.set(StateSubmitting)
	return s.Generation, nil
}

// CompleteSubmit применяет вердикт, если ответ относится к текущему изображению.
func (s *CaptureSession) CompleteSubmit(generation uint64, verdict Verdict) bool {
	if s.State != StateSubmitting || s.Generation != generation {
		return false
	}
	s.Verdict = &verdict
	s.LastError = ""
	s.set(StateHasResult)
	return true
}

// FailSubmit фиксирует ошибку отправки, если ответ ещё актуален.
func (s *CaptureSession) FailSubmit(generation uint64, message string) bool {
	if s.State != StateSubmitting || s.Generation != generation {
		return false
	}
	s.Verdict = nil
	s.LastError = message
	s.set(StateHasError)
	return true
}

// Clear сбрасывает изображение, превью, вердикт и ошибку
func (s *CaptureSession) Clear() {
	s.discard()
	s.set(StateIdle)
}

func (s *CaptureSession) discard() {
	s.Image = nil
	s.PreviewID = ""
	s.Verdict = nil
	s.LastError = ""
	s.Generation++
}

func (s *CaptureSession) set(state CaptureState) {
	s.State = state
	s.UpdatedAt = time.Now()
}

// Clone возвращает копию сессии; изображение не копируется, оно неизменяемо.
func (s *CaptureSession) Clone() *CaptureSession {
	c := *s
	if s.Verdict != nil {
		v := *s.Verdict
		c.Verdict = &v
	}
	return &c
}
