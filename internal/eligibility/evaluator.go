// Package eligibility decides whether a wallet qualifies for the pool quest:
// enough ETH-equivalent deposited into the pool, and pool tokens staked in the
// gauge.
package eligibility

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/holdr-fi/quest-n-script/internal/chain"
	"github.com/holdr-fi/quest-n-script/pkg/config"
	"github.com/holdr-fi/quest-n-script/pkg/models"
)

// Fatal evaluation errors. Malformed input wraps chain.ErrMalformedAddress.
var (
	ErrPoolEvents = errors.New("pool events unavailable")
	ErrChain      = errors.New("chain call failed")
)

// PriceFeed provides the historical price series of an asset
type PriceFeed interface {
	HistoricalPrices(ctx context.Context, coinID string) ([]models.PricePoint, error)
}

// PoolEventSource provides paged pool join/exit records
type PoolEventSource interface {
	JoinExits(ctx context.Context, poolID string, first, skip int) ([]models.PoolEvent, error)
}

// StakingReader provides gauge reads
type StakingReader interface {
	BlockTimestamp(ctx context.Context, block uint64) (uint64, error)
	DepositEvents(ctx context.Context, provider common.Address, fromBlock uint64) ([]models.DepositEvent, error)
	StakedBalance(ctx context.Context, provider common.Address) (*big.Int, error)
}

// Observer is notified of retries and degraded data
type Observer interface {
	PageRetried()
	Degraded(source string)
}

type nopObserver struct{}

func (nopObserver) PageRetried()    {}
func (nopObserver) Degraded(string) {}

// Options are the fixed inputs of every evaluation
type Options struct {
	PoolID     string
	CoinID     string
	StartBlock uint64
	Threshold  decimal.Decimal
	Pager      PagerOptions
}

// OptionsFromConfig builds evaluator options from the application config
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	threshold, err := cfg.Threshold()
	if err != nil {
		return Options{}, err
	}

	return Options{
		PoolID:     cfg.Pool.ID,
		CoinID:     cfg.PriceFeed.CoinID,
		StartBlock: cfg.Chain.StartBlock,
		Threshold:  threshold,
		Pager: PagerOptions{
			PageSize:      cfg.Pool.PageSize,
			MaxRetries:    cfg.Pool.PageMaxRetries,
			RetryDelay:    cfg.Pool.PageRetryDelay,
			MaxRetryDelay: cfg.Pool.PageMaxRetryDelay,
			FailurePolicy: cfg.Pool.PageFailurePolicy,
		},
	}, nil
}

// Evaluator computes eligibility verdicts
type Evaluator struct {
	prices   PriceFeed
	pager    *EventPager
	staking  *StakingChecker
	opts     Options
	logger   *logrus.Entry
	observer Observer
	now      func() time.Time
}

// NewEvaluator creates an evaluator over its three collaborators
func NewEvaluator(prices PriceFeed, events PoolEventSource, staking StakingReader, opts Options, logger *logrus.Logger) *Evaluator {
	return &Evaluator{
		prices:   prices,
		pager:    NewEventPager(events, opts.Pager, logger),
		staking:  NewStakingChecker(staking, opts.StartBlock),
		opts:     opts,
		logger:   logger.WithField("component", "evaluator"),
		observer: nopObserver{},
		now:      time.Now,
	}
}

// SetObserver installs an observer for retries and degraded data
func (e *Evaluator) SetObserver(o Observer) {
	if o == nil {
		o = nopObserver{}
	}
	e.observer = o
	e.pager.observer = o
}

// Evaluate checks address against the deposit threshold and the staking signals.
// Price feed outages and partial pool event pages degrade the result instead of
// failing it; chain failures and malformed input are returned as errors.
func (e *Evaluator) Evaluate(ctx context.Context, address string) (*models.Evaluation, error) {
	addr, err := chain.NormalizeAddress(address)
	if err != nil {
		return nil, err
	}

	eval := &models.Evaluation{
		Address:     addr.Hex(),
		EvaluatedAt: e.now().UTC(),
	}
	log := e.logger.WithField("address", eval.Address)

	prices, err := e.prices.HistoricalPrices(ctx, e.opts.CoinID)
	if err != nil {
		log.WithError(err).Warn("Price history unavailable, treating as empty")
		prices = nil
		e.degrade(eval, models.DegradedPriceFeed)
	}

	events, report, err := e.pager.All(ctx, e.opts.PoolID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPoolEvents, err)
	}
	if report.Partial {
		e.degrade(eval, models.DegradedPoolEvents)
	}

	joins := e.joinsOf(events, addr, log)
	eval.JoinCount = len(joins)
	eval.EthInvested = EthEquivalent(joins, prices)
	eval.ThresholdMet = eval.EthInvested.GreaterThanOrEqual(e.opts.Threshold)

	stake, err := e.staking.Check(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrChain, err)
	}
	eval.CurrentlyStaked = stake.CurrentlyStaked()
	eval.HistoricalDeposits = stake.DepositsSinceStart
	eval.HasStaked = stake.HasStaked()

	log.WithFields(logrus.Fields{
		"eligible":      eval.Eligible(),
		"threshold_met": eval.ThresholdMet,
		"has_staked":    eval.HasStaked,
		"eth_invested":  eval.EthInvested.String(),
		"joins":         eval.JoinCount,
		"events":        len(events),
		"price_points":  len(prices),
		"page_retries":  report.Retries,
		"degraded":      eval.Degraded,
	}).Info("Eligibility evaluated")

	return eval, nil
}

func (e *Evaluator) joinsOf(events []models.PoolEvent, addr common.Address, log *logrus.Entry) []models.PoolEvent {
	var joins []models.PoolEvent
	for _, ev := range events {
		if !ev.IsJoin() {
			continue
		}
		user, err := chain.NormalizeAddress(ev.UserAddress())
		if err != nil {
			log.WithError(err).WithField("event_id", ev.ID).Warn("Skipping pool event with malformed user")
			continue
		}
		if user == addr {
			joins = append(joins, ev)
		}
	}
	return joins
}

func (e *Evaluator) degrade(eval *models.Evaluation, source string) {
	eval.MarkDegraded(source)
	e.observer.Degraded(source)
}
