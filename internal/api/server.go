// Package api provides the HTTP API for observing the colony.
// GET endpoints are public (read-only observation, overlay feeds).
// POST endpoints require a bearer token (admin control plane).
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/talgya/mini-colony/internal/engine"
	"github.com/talgya/mini-colony/internal/persistence"
	"github.com/talgya/mini-colony/internal/signals"
	"github.com/talgya/mini-colony/internal/world"
)

// DefaultReadLimit is the per-client request budget per minute on GET endpoints.
const DefaultReadLimit = 600

// Server serves the colony state over HTTP.
type Server struct {
	Sim      *engine.Simulation
	Eng      *engine.Engine
	DB       *persistence.DB // nil disables /stats/history
	Port     int
	AdminKey string // Bearer token for POST endpoints. Empty = POST disabled.

	// ReadLimit overrides DefaultReadLimit. Negative disables limiting.
	ReadLimit int
}

// Handler builds the routed handler with CORS applied.
func (s *Server) Handler() http.Handler {
	limit := s.ReadLimit
	if limit == 0 {
		limit = DefaultReadLimit
	}
	read := func(h http.HandlerFunc) http.HandlerFunc { return h }
	if limit > 0 {
		rl := NewRateLimiter(limit, time.Minute)
		read = func(h http.HandlerFunc) http.HandlerFunc { return RateLimitMiddleware(rl, h) }
	}

	mux := http.NewServeMux()

	// Public endpoints.
	mux.HandleFunc("/api/v1/status", read(s.handleStatus))
	mux.HandleFunc("/api/v1/kinds", read(s.handleKinds))
	mux.HandleFunc("/api/v1/field/", read(s.handleField))
	mux.HandleFunc("/api/v1/gradient/", read(s.handleGradient))
	mux.HandleFunc("/api/v1/map", read(s.handleMap))
	mux.HandleFunc("/api/v1/foragers", read(s.handleForagers))
	mux.HandleFunc("/api/v1/events", read(s.handleEvents))
	mux.HandleFunc("/api/v1/stats/history", read(s.handleStatsHistory))

	// Admin endpoints (POST, require bearer token).
	mux.HandleFunc("/api/v1/speed", s.adminOnly(s.handleSpeed))
	mux.HandleFunc("/api/v1/snapshot", s.adminOnly(s.handleSnapshot))

	return corsMiddleware(mux)
}

// Start begins serving the HTTP API in a goroutine. The returned server can be
// shut down by the caller.
func (s *Server) Start() *http.Server {
	addr := fmt.Sprintf(":%d", s.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "")

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
	return srv
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS env var to a comma-separated list of allowed origins.
// Localhost dev servers are always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:4173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth on POST requests.
// GET requests pass through (for endpoints that support both GET and POST).
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if s.AdminKey == "" {
				http.Error(w, "admin endpoints disabled (no COLONY_ADMIN_KEY set)", http.StatusForbidden)
				return
			}

			if !s.checkBearerToken(r) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}

		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.Sim.Status()
	writeJSON(w, map[string]any{
		"name":            "mini-colony",
		"run_id":          s.Sim.RunID,
		"tick":            st.Tick,
		"speed":           s.Eng.Speed(),
		"running":         s.Eng.Running(),
		"foragers":        st.Foragers,
		"laden":           st.Laden,
		"stored":          st.Stored,
		"deposits":        st.Deposits,
		"remaining_stock": st.RemainingStock,
		"actions":         st.Actions,
		"goals":           st.Goals,
		"kinds":           len(st.Signals.Kinds),
		"active_cells":    st.Signals.ActiveCellTotal(),
		"mass":            st.Signals.TotalMass(),
		"pending":         st.Signals.Pending,
	})
}

func (s *Server) handleKinds(w http.ResponseWriter, r *http.Request) {
	type kindEntry struct {
		Handle signals.KindHandle `json:"handle"`
		Name   string             `json:"name"`
		Params signals.Params     `json:"params"`
		signals.KindStats
	}

	stats := s.Sim.Signals.Stats()
	byName := make(map[string]signals.KindStats, len(stats.Kinds))
	for _, k := range stats.Kinds {
		byName[k.Kind] = k
	}

	kinds := s.Sim.Signals.Registry().Kinds()
	out := make([]kindEntry, 0, len(kinds))
	for _, k := range kinds {
		out = append(out, kindEntry{Handle: k.Handle, Name: k.Name, Params: k.Params, KindStats: byName[k.Name]})
	}
	writeJSON(w, out)
}

// lookupKind resolves a kind name from the URL, writing a 404 on failure.
func (s *Server) lookupKind(w http.ResponseWriter, name string) (signals.KindHandle, bool) {
	h, err := s.Sim.Signals.Registry().Lookup(name)
	if err != nil {
		http.Error(w, "unknown kind", http.StatusNotFound)
		return 0, false
	}
	return h, true
}

// handleField returns the active cells of one kind (GET /api/v1/field/:kind).
func (s *Server) handleField(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/api/v1/field/")
	if name == "" {
		http.Error(w, "missing kind", http.StatusBadRequest)
		return
	}
	h, ok := s.lookupKind(w, name)
	if !ok {
		return
	}

	threshold := 0.0
	if m := r.URL.Query().Get("min"); m != "" {
		if v, err := strconv.ParseFloat(m, 64); err == nil {
			threshold = v
		}
	}

	tick, samples, err := s.Sim.Field(h)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	cells := make([]signals.CellValue, 0, len(samples))
	for _, smp := range samples {
		if smp.Concentration < threshold {
			continue
		}
		cells = append(cells, signals.CellValue{Q: smp.Cell.Q, R: smp.Cell.R, Value: smp.Concentration})
	}

	writeJSON(w, map[string]any{
		"kind":  name,
		"tick":  tick,
		"cells": cells,
	})
}

// handleGradient returns the local gradient of one kind
// (GET /api/v1/gradient/:kind/:q/:r[?include_self=true]).
func (s *Server) handleGradient(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/api/v1/gradient/"), "/")
	if len(parts) != 3 {
		http.Error(w, "expected /api/v1/gradient/:kind/:q/:r", http.StatusBadRequest)
		return
	}
	q, errQ := strconv.Atoi(parts[1])
	rr, errR := strconv.Atoi(parts[2])
	if errQ != nil || errR != nil {
		http.Error(w, "invalid coordinates", http.StatusBadRequest)
		return
	}
	h, ok := s.lookupKind(w, parts[0])
	if !ok {
		return
	}
	cell := world.HexCoord{Q: q, R: rr}
	opts := signals.GradientOptions{IncludeSelf: r.URL.Query().Get("include_self") == "true"}

	rep, err := s.Sim.Gradient(h, cell, opts)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{
		"kind":      parts[0],
		"cell":      cell,
		"tick":      rep.Tick,
		"value":     rep.Value,
		"strongest": rep.Strongest,
		"ranked":    rep.Ranked,
	})
}

// handleMap returns every terrain tile for the hex renderer.
func (s *Server) handleMap(w http.ResponseWriter, r *http.Request) {
	type tileEntry struct {
		Q         int     `json:"q"`
		R         int     `json:"r"`
		Terrain   uint8   `json:"terrain"`
		Elevation float64 `json:"elevation"`
	}

	m := s.Sim.WorldMap
	tiles := make([]tileEntry, 0, m.TileCount())
	for _, t := range m.Tiles {
		tiles = append(tiles, tileEntry{Q: t.Coord.Q, R: t.Coord.R, Terrain: uint8(t.Terrain), Elevation: t.Elevation})
	}

	terrain := make(map[string]int)
	for t, n := range m.TerrainCounts() {
		terrain[world.TerrainName(t)] = n
	}

	st := s.Sim.Status()
	writeJSON(w, map[string]any{
		"radius":  m.Radius,
		"tiles":   tiles,
		"terrain": terrain,
		"nest":    st.Nest,
		"stored":  st.Stored,
		"sources": s.Sim.Sources(),
	})
}

func (s *Server) handleForagers(w http.ResponseWriter, r *http.Request) {
	type foragerEntry struct {
		ID       uint64         `json:"id"`
		Position world.HexCoord `json:"position"`
		Goal     string         `json:"goal"`
		Carrying string         `json:"carrying,omitempty"`
		Trips    uint32         `json:"trips"`
	}

	foragers := s.Sim.Foragers()
	out := make([]foragerEntry, 0, len(foragers))
	for _, f := range foragers {
		out = append(out, foragerEntry{
			ID:       uint64(f.ID),
			Position: f.Position,
			Goal:     f.Goal.String(),
			Carrying: f.Carrying,
			Trips:    f.Trips,
		})
	}
	writeJSON(w, out)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	n := 50
	if v := r.URL.Query().Get("n"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 && parsed <= 1000 {
			n = parsed
		}
	}
	writeJSON(w, s.Sim.RecentEvents(n))
}

func (s *Server) handleStatsHistory(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}
	kind := r.URL.Query().Get("kind")
	if kind == "" {
		http.Error(w, "missing kind", http.StatusBadRequest)
		return
	}
	limit := 100
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= 10000 {
			limit = v
		}
	}

	rows, err := s.DB.StatsHistory(s.Sim.RunID, kind, limit)
	if err != nil {
		slog.Error("stats history query failed", "error", err)
		// The table may not have data yet.
		writeJSON(w, []persistence.StatRow{})
		return
	}
	if rows == nil {
		rows = []persistence.StatRow{}
	}
	writeJSON(w, rows)
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		var req struct {
			Speed float64 `json:"speed"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if req.Speed < 0 || req.Speed > engine.MaxSpeed {
			http.Error(w, fmt.Sprintf("speed must be 0-%d", engine.MaxSpeed), http.StatusBadRequest)
			return
		}
		s.Eng.SetSpeed(req.Speed)
		slog.Info("speed changed", "speed", req.Speed)
	}

	writeJSON(w, map[string]float64{"speed": s.Eng.Speed()})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.Sim.SnapshotDir == "" {
		http.Error(w, "snapshots disabled", http.StatusServiceUnavailable)
		return
	}

	tick := s.Sim.CurrentTick()
	path, err := s.Sim.Snapshot(tick)
	if err != nil {
		slog.Error("snapshot save failed", "error", err)
		http.Error(w, "snapshot failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]any{
		"tick":    tick,
		"path":    path,
		"message": "snapshot saved",
	})
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
