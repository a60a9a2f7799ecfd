package models

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// PoolEventType distinguishes liquidity deposits from withdrawals
type PoolEventType string

const (
	PoolEventJoin PoolEventType = "Join"
	PoolEventExit PoolEventType = "Exit"
)

// PoolUser is the nested user entity of a subgraph join/exit record
type PoolUser struct {
	ID string `json:"id"`
}

// PoolEvent represents one indexed join or exit of the pool
type PoolEvent struct {
	Timestamp int64           `json:"timestamp"` // Unix seconds
	ID        string          `json:"id"`
	Type      PoolEventType   `json:"type"`
	TxHash    string          `json:"tx"`
	ValueUSD  decimal.Decimal `json:"valueUSD"`
	User      PoolUser        `json:"user"`
}

// UserAddress returns the address of the account that joined or exited
func (e PoolEvent) UserAddress() string {
	return e.User.ID
}

// IsJoin reports whether the event is a deposit into the pool
func (e PoolEvent) IsJoin() bool {
	return e.Type == PoolEventJoin
}

// DepositEvent represents a gauge Deposit log for a staking provider
type DepositEvent struct {
	BlockNumber uint64   `json:"block_number"`
	Timestamp   uint64   `json:"timestamp"` // Unix seconds of the containing block
	TxHash      string   `json:"tx_hash"`
	Provider    string   `json:"provider"`
	Value       *big.Int `json:"value"`
}
