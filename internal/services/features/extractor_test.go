package features

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SellerGuard/internal/domain/models"
)

func TestExtractFactors(t *testing.T) {
	stats := models.MarketplaceStats{
		AccountID:       "123",
		TotalOrders:     300,
		CancelledOrders: 7,
		Claims:          4,
		ReputationLevel: "4_yellow",
		Listings: []models.Listing{
			{ID: "a", Status: "active", AvailableQuantity: 3},
			{ID: "b", Status: "active", AvailableQuantity: 0},
			{ID: "c", Status: "paused", AvailableQuantity: 2},
			{ID: "d", Status: "paused", AvailableQuantity: 0},
		},
		ResponseMinutes: []float64{30, 300, 90, 500},
	}

	f := ExtractFactors(stats)
	assert.Equal(t, 2.33, f.CancellationRate)
	assert.Equal(t, 1.33, f.ClaimRate)
	assert.Equal(t, 60.0, f.ReputationScore)
	assert.Equal(t, 3.0, f.StockIssues)
	assert.Equal(t, 2.0, f.PausedListings)
	assert.Equal(t, 2.0, f.LateResponses)
	assert.Equal(t, 230.0, f.ResponseTime)
}

func TestExtractFactors_EmptyAccount(t *testing.T) {
	f := ExtractFactors(models.MarketplaceStats{})
	assert.Equal(t, models.RiskFactors{
		ResponseTime:    DefaultResponseMinutes,
		ReputationScore: DefaultReputation,
	}, f)
}

func TestReputationScore(t *testing.T) {
	cases := map[string]float64{
		"5_green":  80,
		"green":    80,
		"3_yellow": 60,
		"2_orange": 40,
		"1_red":    20,
		"RED":      20,
		"":         50,
		"purple":   50,
	}
	for level, want := range cases {
		assert.Equal(t, want, ReputationScore(level), "level %q", level)
	}
}

func TestValidateFactors(t *testing.T) {
	require.NoError(t, ValidateFactors(models.RiskFactors{CancellationRate: -1, ReputationScore: 400}))

	err := ValidateFactors(models.RiskFactors{ClaimRate: math.NaN()})
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrInvalidFactors))
	assert.Contains(t, err.Error(), "claimRate")

	assert.Error(t, ValidateFactors(models.RiskFactors{ResponseTime: math.Inf(1)}))
	assert.Error(t, ValidateFactors(models.RiskFactors{PausedListings: math.Inf(-1)}))
}
