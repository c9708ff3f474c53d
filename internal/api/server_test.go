package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/talgya/mini-colony/internal/config"
	"github.com/talgya/mini-colony/internal/engine"
	"github.com/talgya/mini-colony/internal/persistence"
)

func testServer(t *testing.T) (*Server, http.Handler) {
	t.Helper()
	cfg := config.Default()
	cfg.World.Radius = 10
	cfg.World.Seed = 3
	cfg.Colony.Foragers = 4
	cfg.Colony.Sources = []config.SourceConfig{{HexConfig: config.HexConfig{Q: 4, R: 0}, Item: "leaf", Stock: 10}}
	cfg.Persistence.SnapshotDir = t.TempDir()

	sim, err := engine.Build(cfg)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	eng := engine.NewEngine()
	eng.ReportEvery = 0
	engine.Wire(eng, sim)
	eng.RunTicks(20)

	s := &Server{Sim: sim, Eng: eng, AdminKey: "secret", ReadLimit: -1}
	return s, s.Handler()
}

func get(t *testing.T, h http.Handler, path string, out any) int {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	if out != nil && rec.Code == http.StatusOK {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("decode %s: %v\n%s", path, err, rec.Body.String())
		}
	}
	return rec.Code
}

func TestStatus(t *testing.T) {
	_, h := testServer(t)
	var body map[string]any
	if code := get(t, h, "/api/v1/status", &body); code != http.StatusOK {
		t.Fatalf("status code %d", code)
	}
	if body["tick"].(float64) != 20 || body["foragers"].(float64) != 4 {
		t.Errorf("status = %v", body)
	}
	if body["active_cells"].(float64) == 0 {
		t.Error("expected active cells after 20 ticks")
	}
}

func TestKinds(t *testing.T) {
	s, h := testServer(t)
	var kinds []struct {
		Name        string `json:"name"`
		ActiveCells int    `json:"active_cells"`
	}
	if code := get(t, h, "/api/v1/kinds", &kinds); code != http.StatusOK {
		t.Fatalf("code %d", code)
	}
	if len(kinds) != s.Sim.Signals.Registry().Len() {
		t.Errorf("got %d kinds, want %d", len(kinds), s.Sim.Signals.Registry().Len())
	}
	found := false
	for _, k := range kinds {
		if k.Name == "contains:leaf" {
			found = true
			if k.ActiveCells == 0 {
				t.Error("contains:leaf has no active cells")
			}
		}
	}
	if !found {
		t.Error("contains:leaf not listed")
	}
}

func TestField(t *testing.T) {
	_, h := testServer(t)
	var body struct {
		Kind  string `json:"kind"`
		Tick  uint64 `json:"tick"`
		Cells []struct {
			Q, R  int
			Value float64 `json:"value"`
		} `json:"cells"`
	}
	if code := get(t, h, "/api/v1/field/contains:leaf", &body); code != http.StatusOK {
		t.Fatalf("code %d", code)
	}
	if body.Kind != "contains:leaf" || body.Tick != 20 || len(body.Cells) == 0 {
		t.Errorf("field = %+v", body)
	}

	var filtered struct {
		Cells []json.RawMessage `json:"cells"`
	}
	get(t, h, "/api/v1/field/contains:leaf?min=1e9", &filtered)
	if len(filtered.Cells) != 0 {
		t.Errorf("min filter kept %d cells", len(filtered.Cells))
	}

	if code := get(t, h, "/api/v1/field/smoke", nil); code != http.StatusNotFound {
		t.Errorf("unknown kind: code %d", code)
	}
	if code := get(t, h, "/api/v1/field/", nil); code != http.StatusBadRequest {
		t.Errorf("missing kind: code %d", code)
	}
}

func TestGradient(t *testing.T) {
	_, h := testServer(t)
	var body struct {
		Tick      uint64            `json:"tick"`
		Value     float64           `json:"value"`
		Ranked    []json.RawMessage `json:"ranked"`
		Strongest *struct {
			Cell struct{ Q, R int } `json:"cell"`
		} `json:"strongest"`
	}
	if code := get(t, h, "/api/v1/gradient/contains:leaf/3/0", &body); code != http.StatusOK {
		t.Fatalf("code %d", code)
	}
	if len(body.Ranked) != 6 || body.Tick != 20 {
		t.Errorf("ranked has %d entries at tick %d, want 6 at tick 20", len(body.Ranked), body.Tick)
	}
	if body.Strongest == nil || body.Strongest.Cell.Q != 4 || body.Strongest.Cell.R != 0 {
		t.Errorf("strongest next to the source = %+v", body.Strongest)
	}

	tests := []struct {
		path string
		want int
	}{
		{"/api/v1/gradient/contains:leaf/x/0", http.StatusBadRequest},
		{"/api/v1/gradient/contains:leaf/1", http.StatusBadRequest},
		{"/api/v1/gradient/smoke/0/0", http.StatusNotFound},
	}
	for _, tt := range tests {
		if code := get(t, h, tt.path, nil); code != tt.want {
			t.Errorf("%s: code %d, want %d", tt.path, code, tt.want)
		}
	}
}

func TestMapForagersEvents(t *testing.T) {
	s, h := testServer(t)
	var m struct {
		Radius  int               `json:"radius"`
		Tiles   []json.RawMessage `json:"tiles"`
		Sources []json.RawMessage `json:"sources"`
		Terrain map[string]int    `json:"terrain"`
	}
	get(t, h, "/api/v1/map", &m)
	if m.Radius != 10 || len(m.Tiles) != s.Sim.WorldMap.TileCount() || len(m.Sources) != 1 {
		t.Errorf("map radius %d, %d tiles, %d sources", m.Radius, len(m.Tiles), len(m.Sources))
	}
	n := 0
	for _, c := range m.Terrain {
		n += c
	}
	if n != len(m.Tiles) || m.Terrain["soil"] == 0 {
		t.Errorf("terrain counts = %v", m.Terrain)
	}

	var foragers []struct {
		ID   uint64 `json:"id"`
		Goal string `json:"goal"`
	}
	get(t, h, "/api/v1/foragers", &foragers)
	if len(foragers) != 4 || foragers[0].ID != 1 || foragers[0].Goal == "" {
		t.Errorf("foragers = %+v", foragers)
	}

	var events []engine.Event
	if code := get(t, h, "/api/v1/events?n=5", &events); code != http.StatusOK {
		t.Errorf("events code %d", code)
	}
	if len(events) > 5 {
		t.Errorf("got %d events, want at most 5", len(events))
	}
}

func TestStatsHistory(t *testing.T) {
	s, h := testServer(t)
	if code := get(t, h, "/api/v1/stats/history?kind=contains:leaf", nil); code != http.StatusServiceUnavailable {
		t.Errorf("without db: code %d", code)
	}

	db, err := persistence.Open(t.TempDir() + "/colony.db")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()
	runID, err := db.StartRun(3, "{}")
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	s.DB = db
	s.Sim.RunID = runID
	s.Sim.Store = db
	s.Sim.Report(20)
	h = s.Handler()

	var rows []persistence.StatRow
	if code := get(t, h, "/api/v1/stats/history?kind=contains:leaf", &rows); code != http.StatusOK {
		t.Fatalf("code %d", code)
	}
	if len(rows) != 1 || rows[0].Tick != 20 || rows[0].ActiveCells == 0 {
		t.Errorf("rows = %+v", rows)
	}
	if code := get(t, h, "/api/v1/stats/history", nil); code != http.StatusBadRequest {
		t.Errorf("missing kind: code %d", code)
	}
}

func TestSpeed(t *testing.T) {
	s, h := testServer(t)
	post := func(body, token string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/speed", strings.NewReader(body))
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := post(`{"speed": 5}`, ""); code != http.StatusUnauthorized {
		t.Errorf("no token: code %d", code)
	}
	if code := post(`{"speed": 5}`, "wrong"); code != http.StatusUnauthorized {
		t.Errorf("bad token: code %d", code)
	}
	if code := post(`{"speed": 5000}`, "secret"); code != http.StatusBadRequest {
		t.Errorf("out of range: code %d", code)
	}
	if code := post(`not json`, "secret"); code != http.StatusBadRequest {
		t.Errorf("bad json: code %d", code)
	}
	if code := post(`{"speed": 5}`, "secret"); code != http.StatusOK {
		t.Errorf("valid: code %d", code)
	}
	if s.Eng.Speed() != 5 {
		t.Errorf("speed = %v", s.Eng.Speed())
	}

	var body map[string]float64
	get(t, h, "/api/v1/speed", &body)
	if body["speed"] != 5 {
		t.Errorf("GET speed = %v", body)
	}

	s.AdminKey = ""
	h = s.Handler()
	if code := post(`{"speed": 1}`, "secret"); code != http.StatusForbidden {
		t.Errorf("admin disabled: code %d", code)
	}
}

func TestSnapshotEndpoint(t *testing.T) {
	_, h := testServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/snapshot", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("code %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Tick uint64 `json:"tick"`
		Path string `json:"path"`
	}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body.Tick != 20 || !strings.HasSuffix(body.Path, ".snap.zst") {
		t.Errorf("snapshot = %+v", body)
	}

	if code := get(t, h, "/api/v1/snapshot", nil); code != http.StatusMethodNotAllowed {
		t.Errorf("GET snapshot: code %d", code)
	}
}

func TestCORS(t *testing.T) {
	_, h := testServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/status", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent || rec.Header().Get("Access-Control-Allow-Origin") != "http://localhost:5173" {
		t.Errorf("preflight: code %d, headers %v", rec.Code, rec.Header())
	}
}

func TestRateLimiter(t *testing.T) {
	now := time.Unix(1000, 0)
	rl := NewRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }

	if !rl.Allow("a") || !rl.Allow("a") {
		t.Fatal("first two requests should pass")
	}
	if rl.Allow("a") {
		t.Error("third request should be limited")
	}
	if !rl.Allow("b") {
		t.Error("limits are per client")
	}
	if got := rl.RetryAfter("a"); got != 61 {
		t.Errorf("RetryAfter = %d, want 61", got)
	}

	now = now.Add(time.Minute)
	if !rl.Allow("a") {
		t.Error("window reset should allow again")
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	s, _ := testServer(t)
	s.ReadLimit = 1
	h := s.Handler()

	req := func(xff string) int {
		r := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
		r.Header.Set("X-Forwarded-For", xff)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		return rec.Code
	}
	if code := req("10.0.0.1"); code != http.StatusOK {
		t.Errorf("first: code %d", code)
	}
	if code := req("10.0.0.1, 10.0.0.9"); code != http.StatusTooManyRequests {
		t.Errorf("second: code %d", code)
	}
	if code := req("10.0.0.2"); code != http.StatusOK {
		t.Errorf("other client: code %d", code)
	}
}
