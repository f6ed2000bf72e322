package app

import (
	"context"
	"time"

	"human-guard/internal/domain/entity"
	"human-guard/internal/domain/port"
)

// DefaultHistoryLimit сколько записей показывать в профиле
const DefaultHistoryLimit = 20

// HistoryService история проверок пользователя
type HistoryService struct {
	repo port.HistoryRepository
}

// NewHistoryService создаёт сервис истории; repo может быть nil.
func NewHistoryService(repo port.HistoryRepository) *HistoryService {
	return &HistoryService{repo: repo}
}

// Record сохраняет вердикт в истории аккаунта.
func (s *HistoryService) Record(ctx context.Context, accountID, filename string, verdict entity.Verdict, rawPrediction []byte) (*entity.DetectionRecord, error) {
	record := &entity.DetectionRecord{
		AccountID:      accountID,
		Filename:       filename,
		Label:          verdict.Label,
		RealConfidence: verdict.RealConfidence,
		FakeConfidence: verdict.FakeConfidence,
		RawPrediction:  string(rawPrediction),
		CreatedAt:      time.Now().UTC(),
	}
	if s.repo == nil {
		return record, nil
	}
	if err := s.repo.Add(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

// Recent возвращает последние проверки аккаунта.
func (s *HistoryService) Recent(ctx context.Context, accountID string, limit int) ([]entity.DetectionRecord, error) {
	if s.repo == nil || accountID == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return s.repo.ListByAccount(ctx, accountID, limit)
}
