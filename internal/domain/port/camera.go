package port

import (
	"context"
	"image"
)

// Camera интерфейс доступа к устройству камеры
type Camera interface {
	// Open захватывает устройство и возвращает видеопоток
	Open(ctx context.Context) (CameraStream, error)
}

// CameraStream открытый видеопоток
type CameraStream interface {
	// ReadFrame возвращает текущий кадр без отражения
	ReadFrame(ctx context.Context) (image.Image, error)

	// Close освобождает устройство, повторный вызов безопасен
	Close() error
}
