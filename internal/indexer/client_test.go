package indexer

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"ambientKeeper/internal/model"
)

var (
	testUser = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testPool = model.Pool{
		Quote: common.HexToAddress("0xa25b25548b4c98b0c7d3d27dca5d5ca743d68b7f"),
		Index: 420,
	}
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(srv.URL, Options{
		ChainID:      534352,
		MaxRetries:   2,
		RetryBackoff: time.Millisecond,
	})
	require.NoError(t, err)
	return client
}

func TestUserPoolPositionsParsesPayload(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/user_pool_positions", r.URL.Path)
		require.Equal(t, "0x82750", r.URL.Query().Get("chainId"))
		require.Equal(t, "420", r.URL.Query().Get("poolIdx"))
		require.Equal(t, "0x1111111111111111111111111111111111111111", r.URL.Query().Get("user"))
		_, _ = w.Write([]byte(`{"data":[
			{"positionId":"p1","firstMintTx":"0xaa","positionType":"concentrated","bidTick":-100,"askTick":104,"concLiq":1.2e18,"timeFirstMint":1700000000},
			{"positionId":"p2","firstMintTx":"0xbb","positionType":"ambient","bidTick":0,"askTick":0,"concLiq":0},
			{"positionId":"p3","firstMintTx":"0xcc","positionType":"concentrated","bidTick":8,"askTick":16,"concLiq":"500"}
		]}`))
	})

	got, err := client.UserPoolPositions(context.Background(), testUser, testPool)
	require.NoError(t, err)
	require.Len(t, got, 2)

	require.Equal(t, "p1", got[0].PositionID)
	require.Equal(t, model.Range{Low: -100, High: 104}, got[0].Range)
	require.Equal(t, "1200000000000000000", got[0].Liquidity.ToBig().String())
	require.Equal(t, int64(1700000000), got[0].FirstMint.Unix())

	require.Equal(t, "0xcc", got[1].MintTxHash)
	require.Equal(t, uint64(500), got[1].Liquidity.Uint64())
}

func TestUserPoolPositionsMalformedIsPermanent(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(`{"data": {"not": "a list"}}`))
	})

	_, err := client.UserPoolPositions(context.Background(), testUser, testPool)
	require.ErrorIs(t, err, model.ErrMalformedPayload)
	require.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestUserPoolPositionsMissingDataIsMalformed(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":"boom"}`))
	})

	_, err := client.UserPoolPositions(context.Background(), testUser, testPool)
	require.ErrorIs(t, err, model.ErrMalformedPayload)
}

func TestUserPoolPositionsRetriesServerErrors(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"data":[]}`))
	})

	got, err := client.UserPoolPositions(context.Background(), testUser, testPool)
	require.NoError(t, err)
	require.Empty(t, got)
	require.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestUserPoolPositionsClientErrorIsPermanent(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "nope", http.StatusNotFound)
	})

	_, err := client.UserPoolPositions(context.Background(), testUser, testPool)
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	require.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	require.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestUserPoolTxsOldestFirst(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/user_pool_txs", r.URL.Path)
		require.Equal(t, "50", r.URL.Query().Get("n"))
		_, _ = w.Write([]byte(`{"data":[
			{"txHash":"0x03","txTime":300,"changeType":"mint","positionType":"concentrated","bidTick":-8,"askTick":8},
			{"txHash":"0x02","txTime":200,"changeType":"burn","positionType":"concentrated","bidTick":-8,"askTick":8},
			{"txHash":"0x01","txTime":100,"changeType":"mint","positionType":"concentrated","bidTick":-4,"askTick":4}
		]}`))
	})

	got, err := client.UserPoolTxs(context.Background(), testUser, testPool, 50)
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, []string{"0x01", "0x02", "0x03"}, []string{got[0].TxHash, got[1].TxHash, got[2].TxHash})
	require.True(t, got[0].IsMint())
	require.False(t, got[1].IsMint())
	require.Equal(t, model.Range{Low: -4, High: 4}, got[0].Range)
}

func TestNewClientRejectsBadScheme(t *testing.T) {
	_, err := NewClient("ftp://example.com", Options{})
	require.Error(t, err)
}
