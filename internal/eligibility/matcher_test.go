package eligibility

import (
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/holdr-fi/quest-n-script/pkg/models"
)

func series(closes map[int64]string, order ...int64) []models.PricePoint {
	points := make([]models.PricePoint, 0, len(order))
	for _, ts := range order {
		points = append(points, models.PricePoint{Timestamp: ts, Close: decimal.RequireFromString(closes[ts])})
	}
	return points
}

func timestamps(ts ...int64) []models.PricePoint {
	points := make([]models.PricePoint, len(ts))
	for i, t := range ts {
		points[i] = models.PricePoint{Timestamp: t, Close: decimal.NewFromInt(1)}
	}
	return points
}

func join(ts int64, usd string) models.PoolEvent {
	return models.PoolEvent{Timestamp: ts, Type: models.PoolEventJoin, ValueUSD: decimal.RequireFromString(usd)}
}

func TestNearestPriceIndex(t *testing.T) {
	points := timestamps(0, 10, 20, 30, 40)

	tests := []struct {
		name   string
		target int64
		want   int
	}{
		{"exact first", 0, 0},
		{"exact middle", 20, 2},
		{"exact last", 40, 4},
		{"before series", -100, 0},
		{"after series", 1000, 4},
		{"closer to upper", 18, 2},
		{"closer to lower", 12, 1},
		{"tie keeps earlier", 25, 2},
		{"tie near start", 5, 0},
		{"tie near end", 35, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NearestPriceIndex(points, tt.target))
		})
	}
}

func TestNearestPriceIndexEmpty(t *testing.T) {
	assert.Equal(t, -1, NearestPriceIndex(nil, 10))
}

func TestNearestPriceIndexSingle(t *testing.T) {
	assert.Equal(t, 0, NearestPriceIndex(timestamps(100), 5))
}

func TestNearestPriceIndexMinimizesDistance(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for round := 0; round < 200; round++ {
		n := 1 + rng.Intn(50)
		ts := make([]int64, n)
		cur := int64(rng.Intn(100))
		for i := range ts {
			cur += 1 + int64(rng.Intn(100))
			ts[i] = cur
		}
		points := timestamps(ts...)
		target := int64(rng.Intn(int(cur) + 200))

		got := NearestPriceIndex(points, target)

		best := absDiff(ts[0], target)
		for _, v := range ts {
			if d := absDiff(v, target); d < best {
				best = d
			}
		}
		assert.Equal(t, best, absDiff(ts[got], target), "round %d target %d", round, target)
	}
}

func TestEthEquivalent(t *testing.T) {
	prices := series(map[int64]string{1000: "1000", 2000: "2000", 3000: "4000"}, 1000, 2000, 3000)

	total := EthEquivalent([]models.PoolEvent{
		join(2010, "500"),  // 0.25
		join(2990, "1000"), // 0.25
		join(900, "100"),   // 0.1
	}, prices)

	assert.Equal(t, "0.6", total.String())
}

func TestEthEquivalentEmptySeries(t *testing.T) {
	total := EthEquivalent([]models.PoolEvent{join(1, "1000000")}, nil)
	assert.True(t, total.IsZero())
}

func TestEthEquivalentSkipsZeroClose(t *testing.T) {
	prices := series(map[int64]string{1000: "0", 5000: "2000"}, 1000, 5000)

	total := EthEquivalent([]models.PoolEvent{
		join(1100, "500"),
		join(4900, "500"),
	}, prices)

	assert.Equal(t, "0.25", total.String())
}
