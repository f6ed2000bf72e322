package port

import (
	"context"
	"errors"

	"human-guard/internal/domain/entity"
)

// ErrMalformedResponse ответ сервиса не удалось разобрать
var ErrMalformedResponse = errors.New("malformed detection response")

// Detector интерфейс удалённого сервиса детекции дипфейков
type Detector interface {
	// Detect отправляет изображение; origin: адрес страницы, с которой пришёл запрос (может быть пустым)
	Detect(ctx context.Context, origin string, img *entity.Image) (*entity.DetectionResponse, error)
}
