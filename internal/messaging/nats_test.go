package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holdr-fi/quest-n-script/pkg/config"
	"github.com/holdr-fi/quest-n-script/pkg/models"
)

func TestNewEligibilityEvent(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	eval := &models.Evaluation{
		Address:      "0xDE37F8a48C41F6C1A92Ac6792927F5151C7C4ba2",
		ThresholdMet: true,
		HasStaked:    true,
		EthInvested:  decimal.RequireFromString("0.25"),
		Degraded:     []string{models.DegradedPriceFeed},
		EvaluatedAt:  at,
	}

	ev := NewEligibilityEvent("0xde37...", eval, nil, time.Now())

	data, err := json.Marshal(ev)
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"address": "0xDE37F8a48C41F6C1A92Ac6792927F5151C7C4ba2",
		"eligible": true,
		"threshold_met": true,
		"has_staked": true,
		"eth_invested": "0.25",
		"degraded": ["price_feed"],
		"evaluated_at": "2024-03-01T12:00:00Z"
	}`, string(data))
}

func TestNewEligibilityEventFailure(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	ev := NewEligibilityEvent("0xabc", nil, errors.New("chain call failed"), at)

	assert.Equal(t, "0xabc", ev.Address)
	assert.False(t, ev.Eligible)
	assert.Equal(t, "0", ev.EthInvested)
	assert.Equal(t, "chain call failed", ev.Error)
	assert.Equal(t, at, ev.EvaluatedAt)
}

func TestNewPublisherDisabled(t *testing.T) {
	log, _ := test.NewNullLogger()

	pub, err := NewPublisher(&config.NATSConfig{}, log)
	require.NoError(t, err)

	assert.IsType(t, NopPublisher{}, pub)
	assert.NoError(t, pub.PublishEligibility(context.Background(), EligibilityEvent{}))
	assert.NoError(t, pub.Close())
}

func TestNewPublisherUnreachable(t *testing.T) {
	log, _ := test.NewNullLogger()

	_, err := NewPublisher(&config.NATSConfig{
		URL:           "nats://127.0.0.1:1",
		Subject:       "eligibility.checked",
		ReconnectWait: time.Millisecond,
		DrainTimeout:  time.Second,
	}, log)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to NATS")
}
