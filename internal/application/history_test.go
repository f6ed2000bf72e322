package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"human-guard/internal/domain/entity"
)

func TestHistoryService_RecordAndRecent(t *testing.T) {
	repo := &memoryHistory{}
	svc := NewHistoryService(repo)
	ctx := context.Background()

	verdict := entity.Verdict{Label: entity.LabelFake, RealConfidence: 0.1, FakeConfidence: 0.9}
	rec, err := svc.Record(ctx, "acc-1", "a.jpg", verdict, []byte(`"fake"`))
	require.NoError(t, err)
	require.Equal(t, int64(1), rec.ID)
	require.Equal(t, `"fake"`, rec.RawPrediction)

	records, err := svc.Recent(ctx, "acc-1", 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, entity.LabelFake, records[0].Label)

	records, err = svc.Recent(ctx, "", 5)
	require.NoError(t, err)
	require.Empty(t, records)
}

func TestHistoryService_WithoutRepository(t *testing.T) {
	svc := NewHistoryService(nil)
	rec, err := svc.Record(context.Background(), "acc-1", "a.jpg", entity.UnknownVerdict(), nil)
	require.NoError(t, err)
	require.Zero(t, rec.ID)

	records, err := svc.Recent(context.Background(), "acc-1", 5)
	require.NoError(t, err)
	require.Nil(t, records)
}
