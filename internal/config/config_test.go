package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/talgya/mini-colony/internal/signals"
	"github.com/talgya/mini-colony/internal/world"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config is invalid: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "colony.yaml")
	yaml := `
simulation:
  epsilon: 0.001
  workers: 2
  tick_interval: 250ms
  include_self: true
world:
  radius: 12
signals:
  kinds:
    - name: alarm
      diffusion_rate: 0.6
      decay_rate: 0.3
      max_concentration: 10
      emitters:
        - q: 2
          r: 2
          amount: 4.5
  type_defaults:
    contains:
      diffusion_rate: 0.2
      decay_rate: 0.02
      max_concentration: 40
colony:
  foragers: 5
  sources:
    - q: 3
      r: -1
      item: seed
      stock: 9
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if cfg.Simulation.Epsilon != 0.001 || cfg.Simulation.Workers != 2 || !cfg.Simulation.IncludeSelf {
		t.Errorf("simulation = %+v", cfg.Simulation)
	}
	if cfg.Simulation.TickInterval != 250*time.Millisecond {
		t.Errorf("tick_interval = %v", cfg.Simulation.TickInterval)
	}
	if cfg.Simulation.ReportEveryTicks != 100 {
		t.Errorf("unset report_every_ticks lost its default: %d", cfg.Simulation.ReportEveryTicks)
	}
	if cfg.World.Radius != 12 || cfg.World.Seed != 42 {
		t.Errorf("world = %+v", cfg.World)
	}

	if len(cfg.Signals.Kinds) != 1 {
		t.Fatalf("kinds = %+v", cfg.Signals.Kinds)
	}
	alarm := cfg.Signals.Kinds[0]
	if alarm.Name != "alarm" || alarm.DiffusionRate != 0.6 || alarm.MaxConcentration != 10 {
		t.Errorf("alarm kind = %+v", alarm)
	}
	if len(alarm.Emitters) != 1 || alarm.Emitters[0].Coord() != (world.HexCoord{Q: 2, R: 2}) || alarm.Emitters[0].Amount != 4.5 {
		t.Errorf("alarm emitters = %+v", alarm.Emitters)
	}
	defaults, err := cfg.Signals.Defaults()
	if err != nil {
		t.Fatalf("Defaults: %v", err)
	}
	if defaults[signals.SignalContains].MaxConcentration != 40 {
		t.Errorf("contains default = %+v", defaults[signals.SignalContains])
	}

	if len(cfg.Colony.Sources) != 1 || cfg.Colony.Sources[0].Coord().Q != 3 || cfg.Colony.Sources[0].Stock != 9 {
		t.Errorf("sources = %+v", cfg.Colony.Sources)
	}
	if items := cfg.Colony.Items(); len(items) != 1 || items[0] != "seed" {
		t.Errorf("items = %v", items)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("log level = %q", cfg.Logging.Level)
	}
}

func TestColonyItems_IncludesScatter(t *testing.T) {
	c := ColonyConfig{
		Sources: []SourceConfig{{Item: "leaf"}, {Item: "seed"}, {Item: "leaf"}},
		Scatter: ScatterConfig{Count: 2, Items: []string{"seed", "berry"}},
	}
	got := c.Items()
	want := []string{"leaf", "seed", "berry"}
	if len(got) != len(want) {
		t.Fatalf("Items() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Items() = %v, want %v", got, want)
		}
	}

	c.Scatter.Count = 0
	if got := c.Items(); len(got) != 2 {
		t.Errorf("scatter items counted with count 0: %v", got)
	}
}

func TestLoadFromFile_Missing(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"zero epsilon", func(c *Config) { c.Simulation.Epsilon = 0 }, "epsilon"},
		{"negative workers", func(c *Config) { c.Simulation.Workers = -1 }, "workers"},
		{"zero interval", func(c *Config) { c.Simulation.TickInterval = 0 }, "tick_interval"},
		{"zero radius", func(c *Config) { c.World.Radius = 0 }, "radius"},
		{"inverted levels", func(c *Config) { c.World.WaterLevel = 0.9 }, "water_level"},
		{"bad kind params", func(c *Config) {
			c.Signals.Kinds = []KindConfig{{Name: "x", Params: signals.Params{DiffusionRate: 2, MaxConcentration: 1}}}
		}, "diffusion_rate"},
		{"unnamed kind", func(c *Config) {
			c.Signals.Kinds = []KindConfig{{Params: signals.Params{MaxConcentration: 1}}}
		}, "name is required"},
		{"negative emitter", func(c *Config) {
			c.Signals.Kinds = []KindConfig{{
				Name:     "x",
				Params:   signals.Params{MaxConcentration: 1},
				Emitters: []EmitterConfig{{Amount: -1}},
			}}
		}, "amount"},
		{"unknown type default", func(c *Config) {
			c.Signals.TypeDefaults = map[string]signals.Params{"smell": {MaxConcentration: 1}}
		}, "unknown signal type"},
		{"source outside world", func(c *Config) { c.Colony.Sources[0].Q = 500 }, "outside"},
		{"source on nest", func(c *Config) { c.Colony.Sources[0].HexConfig = c.Colony.Nest }, "nest"},
		{"negative stock", func(c *Config) { c.Colony.Sources[0].Stock = -1 }, "stock"},
		{"scatter without items", func(c *Config) { c.Colony.Scatter.Count = 2 }, "scatter.items"},
		{"negative scatter", func(c *Config) { c.Colony.Scatter.Stock = -4 }, "scatter"},
		{"negative trail", func(c *Config) { c.Colony.Strengths.Trail = -1 }, "strengths"},
		{"bad port", func(c *Config) { c.API.Port = 70000 }, "port"},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, "log level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected a validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("COLONY_LOG_LEVEL", "trace")
	t.Setenv("COLONY_DB_PATH", "/tmp/other.db")
	t.Setenv("COLONY_ADMIN_KEY", "secret")
	t.Setenv("COLONY_API_PORT", "9090")
	t.Setenv("COLONY_SEED", "7")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logging.Level != "trace" || cfg.Persistence.DBPath != "/tmp/other.db" {
		t.Errorf("string overrides not applied: %+v %+v", cfg.Logging, cfg.Persistence)
	}
	if cfg.API.AdminKey != "secret" || cfg.API.Port != 9090 {
		t.Errorf("api overrides not applied: port=%d", cfg.API.Port)
	}
	if cfg.World.Seed != 7 {
		t.Errorf("seed = %d, want 7", cfg.World.Seed)
	}
}

func TestEnvOverrides_IgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("COLONY_API_PORT", "eighty")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.API.Port != Default().API.Port {
		t.Errorf("port = %d, want the default", cfg.API.Port)
	}
}
