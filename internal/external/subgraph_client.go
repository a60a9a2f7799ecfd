package external

import (
	"context"
	"fmt"
	"net/http"

	"github.com/machinebox/graphql"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/holdr-fi/quest-n-script/pkg/config"
	"github.com/holdr-fi/quest-n-script/pkg/models"
)

const joinExitsQuery = `
query getJoinExits($poolId: String!, $first: Int!, $skip: Int!) {
  joinExits(first: $first, skip: $skip, where: { pool: $poolId }) {
    timestamp
    id
    type
    tx
    valueUSD
    user {
      id
    }
  }
}`

// SubgraphClient queries pool join/exit records from the pool subgraph
type SubgraphClient struct {
	client  *graphql.Client
	logger  *logrus.Entry
	breaker *gobreaker.CircuitBreaker
}

// NewSubgraphClient creates a new subgraph client
func NewSubgraphClient(cfg *config.SubgraphConfig, logger *logrus.Logger) *SubgraphClient {
	entry := logger.WithField("component", "subgraph")

	client := graphql.NewClient(cfg.URL, graphql.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}))
	client.Log = func(s string) { entry.Trace(s) }

	return &SubgraphClient{
		client:  client,
		logger:  entry,
		breaker: newBreaker("subgraph", entry),
	}
}

// JoinExits returns one page of join/exit records of the pool
func (c *SubgraphClient) JoinExits(ctx context.Context, poolID string, first, skip int) ([]models.PoolEvent, error) {
	req := graphql.NewRequest(joinExitsQuery)
	req.Var("poolId", poolID)
	req.Var("first", first)
	req.Var("skip", skip)

	var resp struct {
		JoinExits []models.PoolEvent `json:"joinExits"`
	}

	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.client.Run(ctx, req, &resp)
	})
	if err != nil {
		return nil, fmt.Errorf("joinExits query (skip=%d): %w", skip, err)
	}

	c.logger.WithFields(logrus.Fields{
		"pool":  poolID,
		"skip":  skip,
		"count": len(resp.JoinExits),
	}).Debug("Fetched joinExits page")

	return resp.JoinExits, nil
}
