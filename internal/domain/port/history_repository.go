package port

import (
	"context"

	"human-guard/internal/domain/entity"
)

// HistoryRepository интерфейс хранилища истории проверок
type HistoryRepository interface {
	// Add сохраняет запись и заполняет её ID
	Add(ctx context.Context, record *entity.DetectionRecord) error

	// ListByAccount возвращает последние записи аккаунта, новые первыми
	ListByAccount(ctx context.Context, accountID string, limit int) ([]entity.DetectionRecord, error)
}
