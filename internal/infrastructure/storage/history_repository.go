package storage

import (
	"context"
	"fmt"

	"human-guard/internal/domain/entity"
	"human-guard/internal/domain/port"
)

// HistoryRepository история проверок в sqlite
type HistoryRepository struct {
	db *DB
}

// NewHistoryRepository создаёт репозиторий истории
func NewHistoryRepository(db *DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// Add сохраняет запись и заполняет её ID
func (r *HistoryRepository) Add(ctx context.Context, record *entity.DetectionRecord) error {
	res, err := r.db.conn.ExecContext(ctx, `
		INSERT INTO detection_logs (account_id, filename, label, real_confidence, fake_confidence, raw_response, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		record.AccountID, record.Filename, string(record.Label),
		record.RealConfidence, record.FakeConfidence, record.RawPrediction, record.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert detection log: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read detection log id: %w", err)
	}
	record.ID = id
	return nil
}

// ListByAccount возвращает последние записи аккаунта, новые первыми
func (r *HistoryRepository) ListByAccount(ctx context.Context, accountID string, limit int) ([]entity.DetectionRecord, error) {
	rows, err := r.db.conn.QueryContext(ctx, `
		SELECT id, account_id, filename, label, real_confidence, fake_confidence, raw_response, created_at
		FROM detection_logs
		WHERE account_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list detection logs: %w", err)
	}
	defer rows.Close()

	var records []entity.DetectionRecord
	for rows.Next() {
		var rec entity.DetectionRecord
		var label string
		if err := rows.Scan(&rec.ID, &rec.AccountID, &rec.Filename, &label,
			&rec.RealConfidence, &rec.FakeConfidence, &rec.RawPrediction, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan detection log: %w", err)
		}
		rec.Label = entity.VerdictLabel(label)
		records = append(records, rec)
	}
	return records, rows.Err()
}

var _ port.HistoryRepository = (*HistoryRepository)(nil)
