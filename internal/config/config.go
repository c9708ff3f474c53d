// Package config provides the colony simulator configuration: YAML file,
// built-in defaults and environment overrides.
package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/talgya/mini-colony/internal/colony"
	"github.com/talgya/mini-colony/internal/signals"
	"github.com/talgya/mini-colony/internal/world"
)

// Config is the top-level configuration.
type Config struct {
	Simulation  SimulationConfig  `json:"simulation" yaml:"simulation"`
	World       WorldConfig       `json:"world" yaml:"world"`
	Signals     SignalsConfig     `json:"signals" yaml:"signals"`
	Colony      ColonyConfig      `json:"colony" yaml:"colony"`
	Persistence PersistenceConfig `json:"persistence" yaml:"persistence"`
	API         APIConfig         `json:"api" yaml:"api"`
	Logging     LoggingConfig     `json:"logging" yaml:"logging"`
}

// SimulationConfig tunes the tick loop and the signal map.
type SimulationConfig struct {
	// Epsilon is the concentration at or below which a cell is dropped.
	Epsilon float64 `json:"epsilon" yaml:"epsilon"`

	// Workers bounds parallel per-kind diffusion. 0 means GOMAXPROCS.
	Workers int `json:"workers" yaml:"workers"`

	TickInterval time.Duration `json:"tick_interval" yaml:"tick_interval"`

	// IncludeSelf lets foragers treat their own cell as a gradient candidate.
	IncludeSelf bool `json:"include_self" yaml:"include_self"`

	ReportEveryTicks uint64 `json:"report_every_ticks" yaml:"report_every_ticks"`
}

// WorldConfig controls terrain generation.
type WorldConfig struct {
	Radius      int     `json:"radius" yaml:"radius"`
	Seed        int64   `json:"seed" yaml:"seed"`
	WaterLevel  float64 `json:"water_level" yaml:"water_level"`
	RockLevel   float64 `json:"rock_level" yaml:"rock_level"`
	ClearRadius int     `json:"clear_radius" yaml:"clear_radius"`
}

// GenConfig converts to terrain generation parameters.
func (w WorldConfig) GenConfig() world.GenConfig {
	return world.GenConfig{
		Radius:      w.Radius,
		Seed:        w.Seed,
		WaterLevel:  w.WaterLevel,
		RockLevel:   w.RockLevel,
		ClearRadius: w.ClearRadius,
	}
}

// KindConfig registers one explicit signal kind.
type KindConfig struct {
	Name           string `json:"name" yaml:"name"`
	signals.Params `yaml:",inline"`

	// Emitters release this kind at fixed cells every tick.
	Emitters []EmitterConfig `json:"emitters,omitempty" yaml:"emitters,omitempty"`
}

// EmitterConfig places one persistent emitter of an explicit kind.
type EmitterConfig struct {
	HexConfig `yaml:",inline"`
	Amount    float64 `json:"amount" yaml:"amount"`
}

// SignalsConfig lists explicit kinds and the per-family defaults for
// goal-derived kinds.
type SignalsConfig struct {
	Kinds []KindConfig `json:"kinds,omitempty" yaml:"kinds,omitempty"`

	// TypeDefaults is keyed by family name: push, pull, contains, stores, work, demolish.
	TypeDefaults map[string]signals.Params `json:"type_defaults,omitempty" yaml:"type_defaults,omitempty"`
}

// Defaults resolves TypeDefaults into signal families.
func (s SignalsConfig) Defaults() (map[signals.SignalType]signals.Params, error) {
	out := make(map[signals.SignalType]signals.Params, len(s.TypeDefaults))
	for name, p := range s.TypeDefaults {
		t, ok := signals.ParseSignalType(name)
		if !ok {
			return nil, fmt.Errorf("unknown signal type %q in type_defaults", name)
		}
		out[t] = p
	}
	return out, nil
}

// HexConfig is a coordinate in config form.
type HexConfig struct {
	Q int `json:"q" yaml:"q"`
	R int `json:"r" yaml:"r"`
}

// Coord returns the axial coordinate.
func (h HexConfig) Coord() world.HexCoord {
	return world.HexCoord{Q: h.Q, R: h.R}
}

// SourceConfig places one food source.
type SourceConfig struct {
	HexConfig `yaml:",inline"`
	Item      string `json:"item" yaml:"item"`
	Stock     int    `json:"stock" yaml:"stock"`
}

// ColonyConfig seeds the nest, sources and foragers.
type ColonyConfig struct {
	Foragers   int              `json:"foragers" yaml:"foragers"`
	Structures []string         `json:"structures,omitempty" yaml:"structures,omitempty"`
	Nest       HexConfig        `json:"nest" yaml:"nest"`
	Sources    []SourceConfig   `json:"sources" yaml:"sources"`
	Scatter    ScatterConfig    `json:"scatter" yaml:"scatter"`
	Strengths  colony.Strengths `json:"strengths" yaml:"strengths"`
}

// ScatterConfig places extra sources on generated terrain in addition to the
// listed ones. Items are assigned round robin.
type ScatterConfig struct {
	Count       int      `json:"count" yaml:"count"`
	Items       []string `json:"items,omitempty" yaml:"items,omitempty"`
	Stock       int      `json:"stock" yaml:"stock"`
	MinDistance int      `json:"min_distance" yaml:"min_distance"` // From the nest and between sites
}

// Items returns the distinct source items in config order, scattered items last.
func (c ColonyConfig) Items() []string {
	seen := make(map[string]bool)
	var items []string
	add := func(item string) {
		if !seen[item] {
			seen[item] = true
			items = append(items, item)
		}
	}
	for _, s := range c.Sources {
		add(s.Item)
	}
	if c.Scatter.Count > 0 {
		for _, item := range c.Scatter.Items {
			add(item)
		}
	}
	return items
}

// PersistenceConfig controls the sqlite store and snapshot files.
type PersistenceConfig struct {
	DBPath             string `json:"db_path" yaml:"db_path"` // Empty disables the store
	SnapshotDir        string `json:"snapshot_dir" yaml:"snapshot_dir"`
	SnapshotEveryTicks uint64 `json:"snapshot_every_ticks" yaml:"snapshot_every_ticks"`
}

// APIConfig controls the observation API.
type APIConfig struct {
	Port     int    `json:"port" yaml:"port"` // 0 disables the server
	AdminKey string `json:"admin_key,omitempty" yaml:"admin_key,omitempty"`
}

// LoggingConfig sets the log level: info, debug or trace.
type LoggingConfig struct {
	Level string `json:"level" yaml:"level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	gen := world.DefaultGenConfig()
	return &Config{
		Simulation: SimulationConfig{
			Epsilon:          signals.DefaultEpsilon,
			Workers:          0,
			TickInterval:     100 * time.Millisecond,
			IncludeSelf:      false,
			ReportEveryTicks: 100,
		},
		World: WorldConfig{
			Radius:      gen.Radius,
			Seed:        42,
			WaterLevel:  gen.WaterLevel,
			RockLevel:   gen.RockLevel,
			ClearRadius: gen.ClearRadius,
		},
		Colony: ColonyConfig{
			Foragers:   40,
			Structures: []string{"nest"},
			Nest:       HexConfig{},
			Sources: []SourceConfig{
				{HexConfig: HexConfig{Q: 9, R: -4}, Item: "leaf", Stock: 300},
				{HexConfig: HexConfig{Q: -7, R: 10}, Item: "leaf", Stock: 200},
				{HexConfig: HexConfig{Q: -6, R: -3}, Item: "seed", Stock: 150},
			},
			Strengths: colony.DefaultStrengths(),
		},
		Persistence: PersistenceConfig{
			DBPath:             "data/colony.db",
			SnapshotDir:        "data/snapshots",
			SnapshotEveryTicks: 1000,
		},
		API: APIConfig{
			Port: 8080,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load returns the defaults, or the file at path when it is set, with
// environment overrides applied.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		fileConfig, err := LoadFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
		cfg = fileConfig
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// LoadFromFile reads a YAML config. Missing fields keep their defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for values the simulator cannot run with.
func (c *Config) Validate() error {
	s := c.Simulation
	if !(s.Epsilon > 0) || math.IsInf(s.Epsilon, 1) {
		return fmt.Errorf("simulation.epsilon must be positive, got %v", s.Epsilon)
	}
	if s.Workers < 0 {
		return fmt.Errorf("simulation.workers must be non-negative, got %d", s.Workers)
	}
	if s.TickInterval <= 0 {
		return fmt.Errorf("simulation.tick_interval must be positive, got %v", s.TickInterval)
	}

	if c.World.Radius <= 0 {
		return fmt.Errorf("world.radius must be positive, got %d", c.World.Radius)
	}
	if c.World.WaterLevel < 0 || c.World.RockLevel > 1 || c.World.WaterLevel >= c.World.RockLevel {
		return fmt.Errorf("world levels must satisfy 0 <= water_level < rock_level <= 1, got %v and %v",
			c.World.WaterLevel, c.World.RockLevel)
	}

	for i, k := range c.Signals.Kinds {
		if k.Name == "" {
			return fmt.Errorf("signals.kinds[%d]: name is required", i)
		}
		if err := k.Params.Validate(); err != nil {
			return fmt.Errorf("signals.kinds[%d] %s: %w", i, k.Name, err)
		}
		for j, e := range k.Emitters {
			if !(e.Amount >= 0) || math.IsInf(e.Amount, 1) {
				return fmt.Errorf("signals.kinds[%d].emitters[%d]: amount must be non-negative and finite, got %v", i, j, e.Amount)
			}
		}
	}
	defaults, err := c.Signals.Defaults()
	if err != nil {
		return err
	}
	for t, p := range defaults {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("signals.type_defaults.%s: %w", t, err)
		}
	}

	if c.Colony.Foragers < 0 {
		return fmt.Errorf("colony.foragers must be non-negative, got %d", c.Colony.Foragers)
	}
	if d := world.Distance(c.Colony.Nest.Coord(), world.HexCoord{}); d > c.World.Radius {
		return fmt.Errorf("colony.nest %v is outside the world radius %d", c.Colony.Nest.Coord(), c.World.Radius)
	}
	for i, src := range c.Colony.Sources {
		if src.Item == "" {
			return fmt.Errorf("colony.sources[%d]: item is required", i)
		}
		if src.Stock < 0 {
			return fmt.Errorf("colony.sources[%d]: stock must be non-negative, got %d", i, src.Stock)
		}
		if world.Distance(src.Coord(), world.HexCoord{}) > c.World.Radius {
			return fmt.Errorf("colony.sources[%d] %v is outside the world radius %d", i, src.Coord(), c.World.Radius)
		}
		if src.Coord() == c.Colony.Nest.Coord() {
			return fmt.Errorf("colony.sources[%d] sits on the nest", i)
		}
	}
	sc := c.Colony.Scatter
	if sc.Count < 0 || sc.Stock < 0 || sc.MinDistance < 0 {
		return fmt.Errorf("colony.scatter values must be non-negative, got %+v", sc)
	}
	if sc.Count > 0 && len(sc.Items) == 0 {
		return fmt.Errorf("colony.scatter.items is required when count > 0")
	}
	for i, item := range sc.Items {
		if item == "" {
			return fmt.Errorf("colony.scatter.items[%d] is empty", i)
		}
	}
	st := c.Colony.Strengths
	if st.Nest < 0 || st.Source < 0 || st.Trail < 0 {
		return fmt.Errorf("colony.strengths must be non-negative, got %+v", st)
	}

	if c.API.Port < 0 || c.API.Port > 65535 {
		return fmt.Errorf("api.port must be 0-65535, got %d", c.API.Port)
	}

	validLevels := map[string]bool{"info": true, "debug": true, "trace": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", c.Logging.Level)
	}

	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("COLONY_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("COLONY_DB_PATH"); v != "" {
		cfg.Persistence.DBPath = v
	}
	if v := os.Getenv("COLONY_ADMIN_KEY"); v != "" {
		cfg.API.AdminKey = v
	}
	if v := os.Getenv("COLONY_API_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = n
		}
	}
	if v := os.Getenv("COLONY_SEED"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.World.Seed = n
		}
	}
}
