package models

import (
	"github.com/shopspring/decimal"
)

// PricePoint represents one OHLC observation of the reference asset
type PricePoint struct {
	Timestamp int64           `json:"timestamp"` // Unix seconds
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
}

// PriceSeries is a sequence of price points sorted ascending by timestamp
type PriceSeries []PricePoint

// Len returns the number of points in the series
func (s PriceSeries) Len() int { return len(s) }

// Less reports whether point i is older than point j
func (s PriceSeries) Less(i, j int) bool { return s[i].Timestamp < s[j].Timestamp }

// Swap swaps points i and j
func (s PriceSeries) Swap(i, j int) { s[i], s[j] = s[j], s[i] }
