package features

import (
	"fmt"
	"math"
	"strings"

	"SellerGuard/internal/domain/models"
	"SellerGuard/pkg/util"
)

const (
	// ResponseSLAMinutes is the response time above which an answer counts as late.
	ResponseSLAMinutes = 240
	// DefaultResponseMinutes is used when no response samples are available.
	DefaultResponseMinutes = 120
	// DefaultReputation is used for unknown reputation levels.
	DefaultReputation = 50
)

var reputationByColor = map[string]float64{
	"green":  80,
	"yellow": 60,
	"orange": 40,
	"red":    20,
}

// ExtractFactors reduces raw marketplace data to a RiskFactors snapshot.
func ExtractFactors(s models.MarketplaceStats) models.RiskFactors {
	f := models.RiskFactors{
		CancellationRate: percent(s.CancelledOrders, s.TotalOrders),
		ClaimRate:        percent(s.Claims, s.TotalOrders),
		ReputationScore:  ReputationScore(s.ReputationLevel),
		ResponseTime:     DefaultResponseMinutes,
	}

	for _, l := range s.Listings {
		paused := l.Status == "paused"
		if l.AvailableQuantity == 0 || paused {
			f.StockIssues++
		}
		if paused {
			f.PausedListings++
		}
	}

	if len(s.ResponseMinutes) > 0 {
		sum := 0.0
		for _, m := range s.ResponseMinutes {
			sum += m
			if m > ResponseSLAMinutes {
				f.LateResponses++
			}
		}
		f.ResponseTime = util.Round(sum/float64(len(s.ResponseMinutes)), 2)
	}
	return f
}

// ReputationScore maps a marketplace level id such as "5_green" or "red" to 0..100.
func ReputationScore(level string) float64 {
	color := strings.ToLower(strings.TrimSpace(level))
	if i := strings.IndexByte(color, '_'); i > 0 && color[0] >= '0' && color[0] <= '9' {
		color = color[i+1:]
	}
	if v, ok := reputationByColor[color]; ok {
		return v
	}
	return DefaultReputation
}

// ValidateFactors rejects values the scorer cannot absorb by clamping.
func ValidateFactors(f models.RiskFactors) error {
	for _, name := range models.Factors {
		v := f.Value(name)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s is not a finite number", models.ErrInvalidFactors, name)
		}
	}
	return nil
}

func percent(part, total int) float64 {
	if total <= 0 {
		return 0
	}
	return util.Round(float64(part)/float64(total)*100, 2)
}
