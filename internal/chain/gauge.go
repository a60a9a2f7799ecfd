package chain

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sirupsen/logrus"

	"github.com/holdr-fi/quest-n-script/pkg/config"
	"github.com/holdr-fi/quest-n-script/pkg/models"
)

//go:embed abi/liquidity_gauge.json
var liquidityGaugeABI []byte

const (
	depositEvent    = "Deposit"
	balanceOfMethod = "balanceOf"
)

// Backend is the subset of the node API used by the gauge client.
// *ethclient.Client satisfies it.
type Backend interface {
	BlockNumber(ctx context.Context) (uint64, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// GaugeClient reads deposits and staked balances of a liquidity gauge
type GaugeClient struct {
	backend  Backend
	gauge    common.Address
	abi      abi.ABI
	logRange uint64
	timeout  time.Duration // per call, 0 disables
	logger   *logrus.Entry
	close    func()
}

// NewGaugeClient creates a gauge client over an existing backend
func NewGaugeClient(backend Backend, gauge common.Address, logRange uint64, logger *logrus.Logger) (*GaugeClient, error) {
	parsed, err := abi.JSON(bytes.NewReader(liquidityGaugeABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse gauge abi: %w", err)
	}

	return &GaugeClient{
		backend:  backend,
		gauge:    gauge,
		abi:      parsed,
		logRange: logRange,
		logger:   logger.WithField("component", "gauge"),
		close:    func() {},
	}, nil
}

// Dial connects to the configured node and returns a gauge client
func Dial(ctx context.Context, cfg *config.ChainConfig, logger *logrus.Logger) (*GaugeClient, error) {
	gauge, err := NormalizeAddress(cfg.GaugeAddress)
	if err != nil {
		return nil, fmt.Errorf("invalid gauge address: %w", err)
	}

	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", cfg.RPCURL, err)
	}

	g, err := NewGaugeClient(client, gauge, cfg.LogBlockRange, logger)
	if err != nil {
		client.Close()
		return nil, err
	}
	g.close = client.Close
	g.timeout = cfg.Timeout

	g.logger.WithFields(logrus.Fields{
		"rpc_url": cfg.RPCURL,
		"gauge":   gauge.Hex(),
	}).Info("Connected to chain node")

	return g, nil
}

// Close releases the node connection
func (g *GaugeClient) Close() {
	g.close()
}

// Gauge returns the gauge contract address
func (g *GaugeClient) Gauge() common.Address {
	return g.gauge
}

func (g *GaugeClient) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, g.timeout)
}

// BlockTimestamp returns the timestamp of a block in Unix seconds
func (g *GaugeClient) BlockTimestamp(ctx context.Context, block uint64) (uint64, error) {
	ctx, cancel := g.callContext(ctx)
	defer cancel()

	header, err := g.backend.HeaderByNumber(ctx, new(big.Int).SetUint64(block))
	if err != nil {
		return 0, fmt.Errorf("failed to get block %d: %w", block, err)
	}
	if header == nil {
		return 0, fmt.Errorf("block %d not found", block)
	}
	return header.Time, nil
}

// DepositEvents returns the gauge Deposit logs of provider from fromBlock to
// the chain head, each stamped with its block timestamp.
func (g *GaugeClient) DepositEvents(ctx context.Context, provider common.Address, fromBlock uint64) ([]models.DepositEvent, error) {
	event, ok := g.abi.Events[depositEvent]
	if !ok {
		return nil, errors.New("gauge abi has no Deposit event")
	}

	topics := [][]common.Hash{
		{event.ID},
		{common.BytesToHash(provider.Bytes())},
	}

	ctx, cancel := g.callContext(ctx)
	defer cancel()

	logs, err := g.filterLogs(ctx, fromBlock, topics)
	if err != nil {
		return nil, err
	}

	timestamps := make(map[uint64]uint64)
	deposits := make([]models.DepositEvent, 0, len(logs))

	for _, lg := range logs {
		if lg.Removed {
			continue
		}

		ts, seen := timestamps[lg.BlockNumber]
		if !seen {
			ts, err = g.BlockTimestamp(ctx, lg.BlockNumber)
			if err != nil {
				return nil, err
			}
			timestamps[lg.BlockNumber] = ts
		}

		deposit := models.DepositEvent{
			BlockNumber: lg.BlockNumber,
			Timestamp:   ts,
			TxHash:      lg.TxHash.Hex(),
			Provider:    provider.Hex(),
			Value:       new(big.Int),
		}
		if len(lg.Topics) > 1 {
			deposit.Provider = common.BytesToAddress(lg.Topics[1].Bytes()).Hex()
		}

		values, err := g.abi.Unpack(depositEvent, lg.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode deposit log %s: %w", lg.TxHash.Hex(), err)
		}
		if len(values) > 0 {
			if v, ok := values[0].(*big.Int); ok {
				deposit.Value = v
			}
		}

		deposits = append(deposits, deposit)
	}

	g.logger.WithFields(logrus.Fields{
		"provider":   provider.Hex(),
		"from_block": fromBlock,
		"deposits":   len(deposits),
	}).Debug("Fetched gauge deposits")

	return deposits, nil
}

func (g *GaugeClient) filterLogs(ctx context.Context, fromBlock uint64, topics [][]common.Hash) ([]types.Log, error) {
	query := ethereum.FilterQuery{
		Addresses: []common.Address{g.gauge},
		Topics:    topics,
	}

	if g.logRange == 0 {
		query.FromBlock = new(big.Int).SetUint64(fromBlock)
		logs, err := g.backend.FilterLogs(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("failed to query deposit logs: %w", err)
		}
		return logs, nil
	}

	head, err := g.backend.BlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain head: %w", err)
	}

	var logs []types.Log
	for start := fromBlock; start <= head; start += g.logRange {
		end := min(start+g.logRange-1, head)
		query.FromBlock = new(big.Int).SetUint64(start)
		query.ToBlock = new(big.Int).SetUint64(end)

		chunk, err := g.backend.FilterLogs(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("failed to query deposit logs %d-%d: %w", start, end, err)
		}
		logs = append(logs, chunk...)
	}

	return logs, nil
}

// StakedBalance returns the gauge token balance of provider at the chain head
func (g *GaugeClient) StakedBalance(ctx context.Context, provider common.Address) (*big.Int, error) {
	data, err := g.abi.Pack(balanceOfMethod, provider)
	if err != nil {
		return nil, fmt.Errorf("failed to pack balanceOf: %w", err)
	}

	ctx, cancel := g.callContext(ctx)
	defer cancel()

	out, err := g.backend.CallContract(ctx, ethereum.CallMsg{To: &g.gauge, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to call balanceOf: %w", err)
	}

	values, err := g.abi.Unpack(balanceOfMethod, out)
	if err != nil {
		return nil, fmt.Errorf("failed to decode balanceOf: %w", err)
	}
	if len(values) == 0 {
		return nil, errors.New("balanceOf returned no value")
	}

	balance, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected balanceOf type %T", values[0])
	}

	return balance, nil
}
