// Package server exposes the query API over the rolling-window store and
// the push stream fed by the broadcast bus.
package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/rs/cors"

	"github.com/NethermindEth/rollup-telemetry/bus"
	"github.com/NethermindEth/rollup-telemetry/metrics"
)

const (
	defaultWindowSeconds = 60
	defaultRecentCount   = 100
)

// Server holds the read-side dependencies. All handlers are read-only
// views over the store; the bus feeds the stream endpoint.
type Server struct {
	store *metrics.Store
	bus   *bus.Bus
	log   log.Logger
}

// New creates a server over the given store and bus.
func New(store *metrics.Store, b *bus.Bus) *Server {
	return &Server{store: store, bus: b, log: log.New("component", "server")}
}

// Handler returns the routed API handler wrapped in permissive CORS.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /stats/window", s.handleWindowStats)
	mux.HandleFunc("GET /blocks/recent", s.handleRecentBlocks)
	mux.HandleFunc("GET /blocks/{number}", s.handleBlock)
	mux.HandleFunc("GET /viz/ring", s.handleRing)
	mux.HandleFunc("GET /viz/dials", s.handleDials)
	mux.HandleFunc("GET /ws/blocks", s.handleBlockStream)
	return cors.AllowAll().Handler(mux)
}

type healthResponse struct {
	Status    string `json:"status"`
	LastBlock uint64 `json:"last_block"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "ok",
		LastBlock: s.store.LastBlockNumber(),
	})
}

func (s *Server) handleWindowStats(w http.ResponseWriter, r *http.Request) {
	seconds := queryUint(r, "seconds", defaultWindowSeconds)
	writeJSON(w, http.StatusOK, s.store.WindowStats(time.Duration(seconds)*time.Second))
}

func (s *Server) handleBlock(w http.ResponseWriter, r *http.Request) {
	number, err := strconv.ParseUint(r.PathValue("number"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid block number")
		return
	}
	block := s.store.Block(number)
	if block == nil {
		writeError(w, http.StatusNotFound, "block not found")
		return
	}
	writeJSON(w, http.StatusOK, block)
}

func (s *Server) handleRecentBlocks(w http.ResponseWriter, r *http.Request) {
	count := queryUint(r, "count", defaultRecentCount)
	writeJSON(w, http.StatusOK, s.store.Recent(int(count)))
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug("Response encoding failed", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func queryUint(r *http.Request, name string, def uint64) uint64 {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return def
	}
	return v
}
