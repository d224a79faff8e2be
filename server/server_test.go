package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NethermindEth/rollup-telemetry/bus"
	"github.com/NethermindEth/rollup-telemetry/metrics"
)

func testServer(t *testing.T) (*httptest.Server, *metrics.Store, *bus.Bus) {
	t.Helper()
	store := metrics.NewStore(0)
	eventBus := bus.New(0)
	srv := httptest.NewServer(New(store, eventBus).Handler())
	t.Cleanup(srv.Close)
	return srv, store, eventBus
}

func seedBlock(store *metrics.Store, number uint64, gas uint64) *metrics.BlockMetrics {
	block := &metrics.BlockMetrics{
		BlockNumber: number,
		Timestamp:   time.Now().UTC(),
		TxCount:     1,
		TotalGas:    gas,
		ComputeGas:  gas * 7 / 10,
		StorageGas:  gas - gas*7/10,
		KVUpdates:   gas / 20_000,
		GasLimit:    30_000_000,
	}
	txs := []*metrics.TxMetrics{{
		BlockNumber: number,
		Timestamp:   block.Timestamp,
		TotalGas:    gas,
		ComputeGas:  block.ComputeGas,
		StorageGas:  block.StorageGas,
		KVUpdates:   block.KVUpdates,
	}}
	store.Add(block, txs)
	return block
}

func getJSON(t *testing.T, url string, out interface{}) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func TestHealth(t *testing.T) {
	srv, store, _ := testServer(t)
	seedBlock(store, 42, 21_000)

	var health struct {
		Status    string `json:"status"`
		LastBlock uint64 `json:"last_block"`
	}
	resp := getJSON(t, srv.URL+"/health", &health)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, uint64(42), health.LastBlock)
}

func TestGetBlock(t *testing.T) {
	srv, store, _ := testServer(t)
	seedBlock(store, 7, 100_000)

	var block metrics.BlockMetrics
	resp := getJSON(t, srv.URL+"/blocks/7", &block)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, uint64(7), block.BlockNumber)
	assert.Equal(t, uint64(100_000), block.TotalGas)

	resp = getJSON(t, srv.URL+"/blocks/9999", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = getJSON(t, srv.URL+"/blocks/notanumber", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRecentBlocks(t *testing.T) {
	srv, store, _ := testServer(t)
	for n := uint64(1); n <= 5; n++ {
		seedBlock(store, n, 21_000)
	}

	var blocks []metrics.BlockMetrics
	resp := getJSON(t, srv.URL+"/blocks/recent?count=3", &blocks)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, blocks, 3)
	assert.Equal(t, uint64(5), blocks[0].BlockNumber, "most recent first")

	// Default count returns everything we have.
	getJSON(t, srv.URL+"/blocks/recent", &blocks)
	assert.Len(t, blocks, 5)
}

func TestWindowStats(t *testing.T) {
	srv, store, _ := testServer(t)
	seedBlock(store, 1, 100_000)
	seedBlock(store, 2, 300_000)

	var stats metrics.WindowStats
	resp := getJSON(t, srv.URL+"/stats/window?seconds=60", &stats)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, uint64(2), stats.BlockCount)
	assert.Equal(t, uint64(400_000), stats.SumTotalGas)
	assert.Equal(t, float64(200_000), stats.MeanTotalGas)
}

func TestWindowStats_TimestampFormat(t *testing.T) {
	srv, store, _ := testServer(t)
	seedBlock(store, 1, 21_000)

	var raw map[string]json.RawMessage
	getJSON(t, srv.URL+"/stats/window", &raw)
	var start string
	require.NoError(t, json.Unmarshal(raw["window_start"], &start))
	_, err := time.Parse(time.RFC3339Nano, start)
	assert.NoError(t, err, "timestamps serialize as RFC-3339")
}

func TestRingView(t *testing.T) {
	srv, store, _ := testServer(t)

	// Empty window: balanced compute ratio, zero activity inputs.
	var ring RingView
	getJSON(t, srv.URL+"/viz/ring", &ring)
	assert.Equal(t, 0.5, ring.ComputeRatio)
	assert.Zero(t, ring.GasNormalized)
	assert.InDelta(t, 0.1, ring.ActivityLevel, 1e-9, "0.2 weight on the neutral ratio")

	seedBlock(store, 1, 15_000_000)
	getJSON(t, srv.URL+"/viz/ring", &ring)
	assert.InDelta(t, 0.5, ring.GasNormalized, 1e-9)
	assert.InDelta(t, 0.7, ring.ComputeRatio, 1e-3)
	assert.Equal(t, uint64(15_000_000), ring.TotalGas)
	assert.Equal(t, uint64(1), ring.BlockCount)
	assert.LessOrEqual(t, ring.ActivityLevel, 1.0)
}

func TestDialView(t *testing.T) {
	srv, store, _ := testServer(t)
	seedBlock(store, 1, 10_000_000)

	var dials DialView
	getJSON(t, srv.URL+"/viz/dials", &dials)
	assert.Equal(t, uint64(7_000_000), dials.Compute.Sum)
	assert.Equal(t, uint64(3_000_000), dials.Storage.Sum)
	assert.InDelta(t, 0.35, dials.Compute.Normalized, 1e-9, "mean / 20M")
	assert.InDelta(t, 0.3, dials.Storage.Normalized, 1e-9, "mean / 10M")
	assert.Equal(t, uint64(1), dials.BlockCount)
}

func TestCORSHeaders(t *testing.T) {
	srv, _, _ := testServer(t)
	req, err := http.NewRequest(http.MethodGet, srv.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://dashboard.example.org")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestBlockStream(t *testing.T) {
	srv, _, eventBus := testServer(t)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/blocks"

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Give the handler a beat to attach its subscription.
	require.Eventually(t, func() bool {
		return eventBus.SubscriberCount() == 1
	}, time.Second, 10*time.Millisecond)

	for n := uint64(1); n <= 3; n++ {
		eventBus.Publish(bus.BlockEvent{Block: &metrics.BlockMetrics{BlockNumber: n, TotalGas: n * 1000}})
	}

	for n := uint64(1); n <= 3; n++ {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var ev bus.BlockEvent
		require.NoError(t, conn.ReadJSON(&ev))
		assert.Equal(t, n, ev.Block.BlockNumber, fmt.Sprintf("event %d in order", n))
	}
}

func TestBlockStream_ClientCloseDetaches(t *testing.T) {
	srv, _, eventBus := testServer(t)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/blocks"

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return eventBus.SubscriberCount() == 1
	}, time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool {
		return eventBus.SubscriberCount() == 0
	}, time.Second, 10*time.Millisecond, "handler unsubscribes on disconnect")
}
