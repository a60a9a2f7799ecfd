package eligibility

import (
	"github.com/shopspring/decimal"

	"github.com/holdr-fi/quest-n-script/pkg/models"
)

// NearestPriceIndex binary-searches an ascending series for the point whose
// timestamp is closest to target. On equal distance the candidate found first
// by the search is kept. Returns -1 for an empty series.
func NearestPriceIndex(series []models.PricePoint, target int64) int {
	if len(series) == 0 {
		return -1
	}

	start, end := 0, len(series)-1
	closest := start

	for start <= end {
		middle := (start + end) / 2

		if absDiff(series[middle].Timestamp, target) < absDiff(series[closest].Timestamp, target) {
			closest = middle
		}

		if series[middle].Timestamp < target {
			start = middle + 1
		} else {
			end = middle - 1
		}
	}

	return closest
}

// EthEquivalent converts the USD value of each join into ETH using the close
// price nearest to the join. Points with a zero close contribute nothing.
func EthEquivalent(joins []models.PoolEvent, series []models.PricePoint) decimal.Decimal {
	total := decimal.Zero
	if len(series) == 0 {
		return total
	}

	for _, join := range joins {
		point := series[NearestPriceIndex(series, join.Timestamp)]
		if point.Close.IsZero() {
			continue
		}
		total = total.Add(join.ValueUSD.Div(point.Close))
	}

	return total
}

func absDiff(a, b int64) int64 {
	if a > b {
		return a - b
	}
	return b - a
}
