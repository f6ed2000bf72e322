package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"human-guard/internal/domain/entity"
	"human-guard/internal/domain/port"
)

var (
	ErrInvalidImage  = errors.New("only image files are allowed")
	ErrImageTooLarge = errors.New("image is too large")
)

const (
	capturedFilename = "camera-capture.jpg"

	msgSubmitFailed     = "Something went wrong"
	msgSubmitTimeout    = "The detection service did not respond in time."
	msgMalformedAnswer  = "Unexpected response from the detection service."
	msgCaptureFailed    = "Could not capture a frame from the camera."
	defaultSubmitBudget = 30 * time.Second
)

// CaptureLimits ограничения виджета
type CaptureLimits struct {
	MaxImageSize  int64         // максимальный размер изображения в байтах, 0 без ограничения
	SubmitTimeout time.Duration // время на один запрос к сервису детекции
}

// CaptureService управляет сессиями захвата изображения.
type CaptureService struct {
	repo     port.CaptureRepository
	detector port.Detector
	camera   port.Camera
	history  *HistoryService
	limits   CaptureLimits

	mu      sync.Mutex
	locks   map[string]*sync.Mutex
	streams map[string]port.CameraStream
}

// NewCaptureService создаёт сервис виджета захвата.
func NewCaptureService(repo port.CaptureRepository, detector port.Detector, camera port.Camera, history *HistoryService, limits CaptureLimits) *CaptureService {
	if limits.SubmitTimeout <= 0 {
		limits.SubmitTimeout = defaultSubmitBudget
	}
	return &CaptureService{
		repo:     repo,
		detector: detector,
		camera:   camera,
		history:  history,
		limits:   limits,
		locks:    make(map[string]*sync.Mutex),
		streams:  make(map[string]port.CameraStream),
	}
}

// userMessager ошибка, у которой есть текст для пользователя
type userMessager interface {
	UserMessage() string
}

// Open создаёт новую сессию захвата для владельца.
func (s *CaptureService) Open(ctx context.Context, ownerID string) (*entity.CaptureSession, error) {
	session := entity.NewCaptureSession(ownerID)
	if err := s.repo.Save(ctx, session); err != nil {
		return nil, err
	}
	return session.Clone(), nil
}

// Get возвращает снимок состояния сессии.
func (s *CaptureService) Get(ctx context.Context, id string) (*entity.CaptureSession, error) {
	unlock := s.lock(id)
	defer unlock()

	return s.repo.Get(ctx, id)
}

// BindAccount привязывает сессию к аккаунту (пустая строка отвязывает).
func (s *CaptureService) BindAccount(ctx context.Context, id, accountID string) (*entity.CaptureSession, error) {
	return s.update(ctx, id, func(session *entity.CaptureSession) error {
		session.AccountID = accountID
		return nil
	})
}

// ChooseFile выбирает файл (через диалог или перетаскиванием).
func (s *CaptureService) ChooseFile(ctx context.Context, id, filename string, data []byte) (*entity.CaptureSession, error) {
	img, err := s.newImage(filename, data)
	if err != nil {
		return nil, err
	}
	return s.update(ctx, id, func(session *entity.CaptureSession) error {
		if session.State == entity.StateSubmitting {
			return entity.ErrSubmitting
		}
		s.releaseCamera(id)
		return session.SelectImage(img)
	})
}

// StartCamera захватывает камеру. Ошибка доступа не возвращается,
// а попадает в LastError сессии.
func (s *CaptureService) StartCamera(ctx context.Context, id string) (*entity.CaptureSession, error) {
	return s.update(ctx, id, func(session *entity.CaptureSession) error {
		if session.State == entity.StateSubmitting {
			return entity.ErrSubmitting
		}
		if session.CameraActive() && s.stream(id) != nil {
			return nil
		}
		if err := session.OpenCamera(); err != nil {
			return err
		}
		if s.camera == nil {
			log.Printf("Camera is not configured for session %s", id)
			session.CameraFailed()
			return nil
		}

		stream, err := s.camera.Open(ctx)
		if err != nil {
			log.Printf("Error accessing camera: %v", err)
			session.CameraFailed()
			return nil
		}
		s.mu.Lock()
		s.streams[id] = stream
		s.mu.Unlock()
		return nil
	})
}

// StopCamera освобождает камеру. Повторный вызов безопасен.
func (s *CaptureService) StopCamera(ctx context.Context, id string) (*entity.CaptureSession, error) {
	return s.update(ctx, id, func(session *entity.CaptureSession) error {
		s.releaseCamera(id)
		session.CloseCamera()
		return nil
	})
}

// Frame возвращает текущий кадр камеры в JPEG для живого превью.
func (s *CaptureService) Frame(ctx context.Context, id string) ([]byte, error) {
	unlock := s.lock(id)
	defer unlock()

	stream := s.stream(id)
	if stream == nil {
		return nil, entity.ErrCameraNotOpen
	}
	frame, err := stream.ReadFrame(ctx)
	if err != nil {
		return nil, fmt.Errorf("read frame: %w", err)
	}
	return EncodeJPEG(frame, captureQuality)
}

// CaptureFrame снимает кадр, отражает его по горизонтали, выбирает как изображение и выключает камеру.
func (s *CaptureService) CaptureFrame(ctx context.Context, id string) (*entity.CaptureSession, error) {
	return s.update(ctx, id, func(session *entity.CaptureSession) error {
		stream := s.stream(id)
		if !session.CameraActive() || stream == nil {
			return entity.ErrCameraNotOpen
		}

		frame, err := stream.ReadFrame(ctx)
		if err == nil {
			var data []byte
			data, err = EncodeJPEG(MirrorHorizontal(frame), captureQuality)
			if err == nil {
				s.releaseCamera(id)
				return session.SelectImage(&entity.Image{
					Filename:    capturedFilename,
					ContentType: "image/jpeg",
					Data:        data,
				})
			}
		}

		log.Printf("Error capturing frame: %v", err)
		s.releaseCamera(id)
		session.CloseCamera()
		session.LastError = msgCaptureFailed
		return nil
	})
}

// Submit отправляет выбранное изображение в сервис детекции.
// Возвращённый канал закрывается, когда ответ обработан.
func (s *CaptureService) Submit(ctx context.Context, id, origin string) (<-chan struct{}, error) {
	var (
		generation uint64
		img        *entity.Image
	)
	_, err := s.update(ctx, id, func(session *entity.CaptureSession) error {
		gen, err := session.BeginSubmit()
		if err != nil {
			return err
		}
		generation, img = gen, session.Image
		return nil
	})
	if err != nil {
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)

		reqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.limits.SubmitTimeout)
		defer cancel()
		s.finishSubmit(reqCtx, id, origin, generation, img)
	}()
	return done, nil
}

func (s *CaptureService) finishSubmit(ctx context.Context, id, origin string, generation uint64, img *entity.Image) {
	var (
		verdict entity.Verdict
		resp    *entity.DetectionResponse
		err     error
	)
	if s.detector == nil {
		err = errors.New("detector is not configured")
	} else {
		resp, err = s.detector.Detect(ctx, origin, img)
	}
	if err == nil {
		verdict = NormalizePrediction(resp.Prediction)
	} else {
		log.Printf("Error submitting image for session %s: %v", id, err)
	}

	var (
		applied   bool
		accountID string
	)
	_, updateErr := s.update(context.WithoutCancel(ctx), id, func(session *entity.CaptureSession) error {
		if err != nil {
			applied = session.FailSubmit(generation, submitErrorMessage(err))
		} else {
			applied = session.CompleteSubmit(generation, verdict)
		}
		accountID = session.AccountID
		return nil
	})
	if errors.Is(updateErr, port.ErrSessionNotFound) {
		return
	}
	if updateErr != nil {
		log.Printf("Error saving submission result for session %s: %v", id, updateErr)
		return
	}
	if !applied {
		log.Printf("Dropped stale detection result for session %s", id)
		return
	}

	if err == nil && accountID != "" && s.history != nil {
		if _, herr := s.history.Record(context.WithoutCancel(ctx), accountID, img.Filename, verdict, resp.Prediction); herr != nil {
			log.Printf("Error recording detection history: %v", herr)
		}
	}
}

// Clear сбрасывает изображение, превью, вердикт и ошибку.
func (s *CaptureService) Clear(ctx context.Context, id string) (*entity.CaptureSession, error) {
	return s.update(ctx, id, func(session *entity.CaptureSession) error {
		s.releaseCamera(id)
		session.Clear()
		return nil
	})
}

// Discard удаляет сессию и освобождает камеру.
func (s *CaptureService) Discard(ctx context.Context, id string) error {
	unlock := s.lock(id)
	s.releaseCamera(id)
	err := s.repo.Delete(ctx, id)
	unlock()

	s.mu.Lock()
	delete(s.locks, id)
	s.mu.Unlock()
	return err
}

// ExpireIdle удаляет сессии, к которым не обращались дольше ttl.
func (s *CaptureService) ExpireIdle(ctx context.Context, ttl time.Duration) (int, error) {
	ids, err := s.repo.Idle(ctx, time.Now().Add(-ttl))
	if err != nil {
		return 0, err
	}
	expired := 0
	for _, id := range ids {
		err := s.Discard(ctx, id)
		switch {
		case err == nil:
			expired++
		case errors.Is(err, port.ErrSessionNotFound):
		default:
			log.Printf("Error discarding idle session %s: %v", id, err)
		}
	}
	return expired, nil
}

// RunJanitor периодически удаляет простаивающие сессии, пока жив ctx.
func (s *CaptureService) RunJanitor(ctx context.Context, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	ticker := time.NewTicker(ttl / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.ExpireIdle(ctx, ttl)
			if err != nil {
				log.Printf("Error expiring capture sessions: %v", err)
			} else if n > 0 {
				log.Printf("Expired %d idle capture session(s)", n)
			}
		}
	}
}

// update выполняет переход под замком сессии и сохраняет результат.
func (s *CaptureService) update(ctx context.Context, id string, apply func(*entity.CaptureSession) error) (*entity.CaptureSession, error) {
	unlock := s.lock(id)
	defer unlock()

	session, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := apply(session); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, session); err != nil {
		return nil, err
	}
	return session.Clone(), nil
}

func (s *CaptureService) lock(id string) func() {
	s.mu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

func (s *CaptureService) stream(id string) port.CameraStream {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streams[id]
}

// releaseCamera останавливает поток камеры сессии, если он есть.
func (s *CaptureService) releaseCamera(id string) {
	s.mu.Lock()
	stream, ok := s.streams[id]
	delete(s.streams, id)
	s.mu.Unlock()

	if !ok {
		return
	}
	if err := stream.Close(); err != nil {
		log.Printf("Error releasing camera for session %s: %v", id, err)
	}
}

func (s *CaptureService) newImage(filename string, data []byte) (*entity.Image, error) {
	if len(data) == 0 {
		return nil, ErrInvalidImage
	}
	if s.limits.MaxImageSize > 0 && int64(len(data)) > s.limits.MaxImageSize {
		return nil, ErrImageTooLarge
	}
	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		return nil, ErrInvalidImage
	}
	if filename == "" {
		filename = "image"
	}
	return &entity.Image{Filename: filename, ContentType: contentType, Data: data}, nil
}

func submitErrorMessage(err error) string {
	var um userMessager
	switch {
	case errors.As(err, &um):
		return um.UserMessage()
	case errors.Is(err, context.DeadlineExceeded):
		return msgSubmitTimeout
	case errors.Is(err, port.ErrMalformedResponse):
		return msgMalformedAnswer
	}
	return msgSubmitFailed
}
