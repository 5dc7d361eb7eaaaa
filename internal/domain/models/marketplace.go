package models

import "time"

// MarketplaceStats is the raw account data pulled from the marketplace API
// before it is reduced to RiskFactors.
type MarketplaceStats struct {
	AccountID       string
	TotalOrders     int
	CancelledOrders int
	Claims          int
	ReputationLevel string // level color, e.g. "5_green", "3_yellow"
	Listings        []Listing
	// ResponseMinutes holds one sample per answered question.
	ResponseMinutes []float64
	FetchedAt       time.Time
}

type Listing struct {
	ID                string `json:"id"`
	Status            string `json:"status"`
	AvailableQuantity int    `json:"available_quantity"`
}
