package eligibility

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/holdr-fi/quest-n-script/pkg/models"
)

type fakePriceFeed struct {
	points []models.PricePoint
	err    error
}

func (f *fakePriceFeed) HistoricalPrices(ctx context.Context, coinID string) ([]models.PricePoint, error) {
	return f.points, f.err
}

// fakeEventSource serves events in pages and can fail a given offset a number of times
type fakeEventSource struct {
	mu       sync.Mutex
	events   []models.PoolEvent
	failures map[int]int // skip -> remaining failures, -1 fails forever
	calls    []int
}

func (f *fakeEventSource) JoinExits(ctx context.Context, poolID string, first, skip int) ([]models.PoolEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, skip)
	if n, ok := f.failures[skip]; ok && n != 0 {
		if n > 0 {
			f.failures[skip] = n - 1
		}
		return nil, fmt.Errorf("indexer unavailable at skip %d", skip)
	}

	if skip >= len(f.events) {
		return []models.PoolEvent{}, nil
	}
	end := min(skip+first, len(f.events))
	return f.events[skip:end], nil
}

type fakeStaking struct {
	startTS    uint64
	deposits   []models.DepositEvent
	balance    *big.Int
	tsErr      error
	depositErr error
	balanceErr error
	calls      []string
}

func (f *fakeStaking) BlockTimestamp(ctx context.Context, block uint64) (uint64, error) {
	f.calls = append(f.calls, "timestamp")
	return f.startTS, f.tsErr
}

func (f *fakeStaking) DepositEvents(ctx context.Context, provider common.Address, fromBlock uint64) ([]models.DepositEvent, error) {
	f.calls = append(f.calls, "deposits")
	return f.deposits, f.depositErr
}

func (f *fakeStaking) StakedBalance(ctx context.Context, provider common.Address) (*big.Int, error) {
	f.calls = append(f.calls, "balance")
	if f.balanceErr != nil {
		return nil, f.balanceErr
	}
	if f.balance == nil {
		return big.NewInt(0), nil
	}
	return f.balance, nil
}

type countingObserver struct {
	retries  int
	degraded []string
}

func (o *countingObserver) PageRetried()           { o.retries++ }
func (o *countingObserver) Degraded(source string) { o.degraded = append(o.degraded, source) }

var errRPC = errors.New("connection refused")
