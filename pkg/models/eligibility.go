package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Degraded data sources recorded on an evaluation
const (
	DegradedPriceFeed  = "price_feed"
	DegradedPoolEvents = "pool_events_partial"
)

// Evaluation is the outcome of one eligibility check. It is never persisted.
type Evaluation struct {
	Address            string          `json:"address"`
	ThresholdMet       bool            `json:"threshold_met"`
	HasStaked          bool            `json:"has_staked"`
	EthInvested        decimal.Decimal `json:"eth_invested"`
	JoinCount          int             `json:"join_count"`
	CurrentlyStaked    bool            `json:"currently_staked"`
	HistoricalDeposits int             `json:"historical_deposits"`
	Degraded           []string        `json:"degraded,omitempty"`
	EvaluatedAt        time.Time       `json:"evaluated_at"`
}

// Eligible combines both sub-answers
func (e *Evaluation) Eligible() bool {
	return e.ThresholdMet && e.HasStaked
}

// MarkDegraded records a data source that was unavailable or incomplete
func (e *Evaluation) MarkDegraded(source string) {
	for _, s := range e.Degraded {
		if s == source {
			return
		}
	}
	e.Degraded = append(e.Degraded, source)
}
