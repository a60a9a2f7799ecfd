package eligibility

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// StakingResult holds both staking signals for a provider
type StakingResult struct {
	StartTimestamp     uint64
	DepositsSinceStart int
	CurrentBalance     *big.Int
}

// CurrentlyStaked reports a positive gauge balance
func (r StakingResult) CurrentlyStaked() bool {
	return r.CurrentBalance != nil && r.CurrentBalance.Sign() > 0
}

// HistoricallyStaked reports a deposit at or after the start block
func (r StakingResult) HistoricallyStaked() bool {
	return r.DepositsSinceStart > 0
}

// HasStaked is true when either signal is
func (r StakingResult) HasStaked() bool {
	return r.CurrentlyStaked() || r.HistoricallyStaked()
}

// StakingChecker evaluates gauge staking from a fixed start block
type StakingChecker struct {
	reader     StakingReader
	startBlock uint64
}

// NewStakingChecker creates a staking checker
func NewStakingChecker(reader StakingReader, startBlock uint64) *StakingChecker {
	return &StakingChecker{reader: reader, startBlock: startBlock}
}

// Check reads both signals. Every chain read is made, and any failure is returned.
func (c *StakingChecker) Check(ctx context.Context, provider common.Address) (StakingResult, error) {
	var result StakingResult

	startTS, err := c.reader.BlockTimestamp(ctx, c.startBlock)
	if err != nil {
		return result, fmt.Errorf("start block timestamp: %w", err)
	}
	result.StartTimestamp = startTS

	deposits, err := c.reader.DepositEvents(ctx, provider, c.startBlock)
	if err != nil {
		return result, fmt.Errorf("deposit events: %w", err)
	}
	for _, d := range deposits {
		if d.Timestamp >= startTS {
			result.DepositsSinceStart++
		}
	}

	balance, err := c.reader.StakedBalance(ctx, provider)
	if err != nil {
		return result, fmt.Errorf("staked balance: %w", err)
	}
	result.CurrentBalance = balance

	return result, nil
}
