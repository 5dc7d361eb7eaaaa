package repository

import (
	"context"
	"testing"
	"time"

	"SellerGuard/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRiskStore_LatestSnapshot(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryRiskStore()

	got, err := s.LatestSnapshot(ctx, "42")
	require.NoError(t, err)
	assert.Nil(t, got)

	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, s.SaveSnapshot(ctx, models.MetricsSnapshot{AccountID: "42", CapturedAt: t0, Factors: models.RiskFactors{ClaimRate: 1}}))
	require.NoError(t, s.SaveSnapshot(ctx, models.MetricsSnapshot{AccountID: "42", CapturedAt: t0.Add(time.Hour), Factors: models.RiskFactors{ClaimRate: 2}}))
	require.NoError(t, s.SaveSnapshot(ctx, models.MetricsSnapshot{AccountID: "42", CapturedAt: t0.Add(-time.Hour), Factors: models.RiskFactors{ClaimRate: 9}}))

	got, err = s.LatestSnapshot(ctx, "42")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 2.0, got.Factors.ClaimRate, "late older snapshot does not replace the baseline")
}

func TestMemoryRiskStore_History(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryRiskStore()
	base := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	for _, d := range []int{3, 1, 2, 0} {
		require.NoError(t, s.AppendHistory(ctx, models.RiskHistoryEntry{
			AccountID:  "42",
			Score:      d * 10,
			RecordedAt: base.AddDate(0, 0, -d),
		}))
	}
	require.NoError(t, s.AppendHistory(ctx, models.RiskHistoryEntry{AccountID: "7", RecordedAt: base}))

	got, err := s.History(ctx, "42", base.AddDate(0, 0, -2))
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []int{20, 10, 0}, []int{got[0].Score, got[1].Score, got[2].Score})
}

func TestMemoryRiskStore_AppendHistoryReplacesSameInstant(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryRiskStore()
	at := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

	require.NoError(t, s.AppendHistory(ctx, models.RiskHistoryEntry{AccountID: "42", Score: 30, RecordedAt: at}))
	require.NoError(t, s.AppendHistory(ctx, models.RiskHistoryEntry{AccountID: "42", Score: 55, RecordedAt: at}))
	require.NoError(t, s.AppendHistory(ctx, models.RiskHistoryEntry{AccountID: "42", Score: 60, RecordedAt: at.Add(time.Minute)}))

	got, err := s.History(ctx, "42", at)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 55, got[0].Score)
}

