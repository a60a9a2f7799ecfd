package external

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holdr-fi/quest-n-script/pkg/config"
	"github.com/holdr-fi/quest-n-script/pkg/models"
)

type graphqlRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables"`
}

func newTestSubgraph(t *testing.T, url string) *SubgraphClient {
	t.Helper()
	log, _ := test.NewNullLogger()
	return NewSubgraphClient(&config.SubgraphConfig{URL: url, Timeout: 2 * time.Second}, log)
}

func TestSubgraphJoinExits(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req graphqlRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		assert.Contains(t, req.Query, "joinExits(first: $first, skip: $skip, where: { pool: $poolId })")
		assert.Equal(t, "0xpool", req.Variables["poolId"])
		assert.Equal(t, float64(1000), req.Variables["first"])
		assert.Equal(t, float64(2000), req.Variables["skip"])

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"joinExits":[
			{"timestamp":1680000000,"id":"0x1-0","type":"Join","tx":"0xaaa","valueUSD":"500.125","user":{"id":"0xabc"}},
			{"timestamp":1680000500,"id":"0x2-0","type":"Exit","tx":"0xbbb","valueUSD":"20","user":{"id":"0xdef"}}
		]}}`))
	}))
	defer server.Close()

	events, err := newTestSubgraph(t, server.URL).JoinExits(context.Background(), "0xpool", 1000, 2000)
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, int64(1680000000), events[0].Timestamp)
	assert.Equal(t, models.PoolEventJoin, events[0].Type)
	assert.True(t, events[0].IsJoin())
	assert.Equal(t, "0xaaa", events[0].TxHash)
	assert.Equal(t, "500.125", events[0].ValueUSD.String())
	assert.Equal(t, "0xabc", events[0].UserAddress())
	assert.False(t, events[1].IsJoin())
}

func TestSubgraphGraphQLError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"errors":[{"message":"indexing_error"}]}`))
	}))
	defer server.Close()

	_, err := newTestSubgraph(t, server.URL).JoinExits(context.Background(), "0xpool", 1000, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "indexing_error")
	assert.Contains(t, err.Error(), "skip=0")
}

func TestSubgraphHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("bad gateway"))
	}))
	defer server.Close()

	_, err := newTestSubgraph(t, server.URL).JoinExits(context.Background(), "0xpool", 1000, 0)
	assert.Error(t, err)
}
