//go:build gocv
// +build gocv

package vision

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"

	"human-guard/internal/domain/port"
)

// GoCVCamera камера через OpenCV
type GoCVCamera struct {
	Device string // индекс устройства ("0") или путь/URL видеопотока
	Width  int    // желаемая ширина кадра, 0 по умолчанию
	Height int    // желаемая высота кадра, 0 по умолчанию
}

// NewGoCVCamera создаёт камеру для устройства
func NewGoCVCamera(device string) *GoCVCamera {
	return &GoCVCamera{
		Device: device,
		Width:  1280,
		Height: 720,
	}
}

// Open захватывает устройство
func (c *GoCVCamera) Open(ctx context.Context) (port.CameraStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	capture, err := gocv.OpenVideoCapture(c.Device)
	if err != nil {
		return nil, fmt.Errorf("open camera %s: %w", c.Device, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("open camera %s: device is not available", c.Device)
	}
	if c.Width > 0 && c.Height > 0 {
		capture.Set(gocv.VideoCaptureFrameWidth, float64(c.Width))
		capture.Set(gocv.VideoCaptureFrameHeight, float64(c.Height))
	}

	return &gocvStream{capture: capture, frame: gocv.NewMat()}, nil
}

type gocvStream struct {
	mu      sync.Mutex
	capture *gocv.VideoCapture
	frame   gocv.Mat
	closed  bool
}

// ReadFrame читает текущий кадр
func (s *gocvStream) ReadFrame(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, errors.New("camera is closed")
	}
	if ok := s.capture.Read(&s.frame); !ok || s.frame.Empty() {
		return nil, errors.New("camera returned empty frame")
	}
	return s.frame.ToImage()
}

// Close освобождает устройство
func (s *gocvStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.frame.Close()
	return s.capture.Close()
}

var _ port.Camera = (*GoCVCamera)(nil)
