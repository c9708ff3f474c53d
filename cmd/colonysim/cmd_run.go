package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/talgya/mini-colony/internal/api"
	"github.com/talgya/mini-colony/internal/config"
	"github.com/talgya/mini-colony/internal/engine"
	"github.com/talgya/mini-colony/internal/logging"
	"github.com/talgya/mini-colony/internal/persistence"
	"github.com/talgya/mini-colony/internal/persistence/snapshot"
)

type runOptions struct {
	ticks    uint64
	speed    float64
	fresh    bool
	traceDir string
	noAPI    bool
}

func newRunCmd() *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the simulation with the HTTP API",
		Long: `Run the colony simulation in real time. The latest snapshot is resumed
unless --fresh is given. Ctrl+C stops the loop and writes a final snapshot.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runSimulation(ctx, cfg, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().Uint64Var(&opts.ticks, "ticks", 0, "Stop after this many ticks (0 runs until interrupted)")
	cmd.Flags().Float64Var(&opts.speed, "speed", 1, "Initial speed multiplier (0 starts paused)")
	cmd.Flags().BoolVar(&opts.fresh, "fresh", false, "Ignore existing snapshots and start a new run")
	cmd.Flags().StringVar(&opts.traceDir, "trace-dir", "data/trace", "Directory for the debug event trace")
	cmd.Flags().BoolVar(&opts.noAPI, "no-api", false, "Do not start the HTTP API")
	return cmd
}

func runSimulation(ctx context.Context, cfg *config.Config, opts runOptions, out io.Writer) error {
	if opts.speed < 0 || opts.speed > engine.MaxSpeed {
		return fmt.Errorf("--speed must be 0-%d", engine.MaxSpeed)
	}

	sim, err := engine.Build(cfg)
	if err != nil {
		return fmt.Errorf("build simulation: %w", err)
	}

	var startTick uint64
	if !opts.fresh && cfg.Persistence.SnapshotDir != "" {
		startTick, err = resume(sim, cfg)
		if err != nil {
			return err
		}
	}

	// ── Database ──────────────────────────────────────────────────────
	var db *persistence.DB
	if cfg.Persistence.DBPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Persistence.DBPath), 0o755); err != nil {
			return fmt.Errorf("create db dir: %w", err)
		}
		db, err = persistence.Open(cfg.Persistence.DBPath)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := attachRun(db, sim, cfg); err != nil {
			return err
		}
		sim.Store = db
		slog.Info("database opened", "path", cfg.Persistence.DBPath, "run", sim.RunID)
	}

	sim.EventLog = logging.NewEventLogger(opts.traceDir, cfg.Logging.Level)
	defer sim.EventLog.Close()

	// ── Engine ────────────────────────────────────────────────────────
	eng := engine.NewEngine()
	eng.Interval = cfg.Simulation.TickInterval
	eng.ReportEvery = cfg.Simulation.ReportEveryTicks
	eng.SnapshotEvery = cfg.Persistence.SnapshotEveryTicks
	eng.SetTick(startTick)
	eng.SetSpeed(opts.speed)
	engine.Wire(eng, sim)

	if opts.ticks > 0 {
		last := startTick + opts.ticks
		tick := eng.OnTick
		eng.OnTick = func(t uint64) {
			tick(t)
			if t >= last {
				eng.Stop()
			}
		}
	}

	// ── HTTP API ──────────────────────────────────────────────────────
	if cfg.API.Port > 0 && !opts.noAPI {
		if cfg.API.AdminKey == "" {
			slog.Warn("COLONY_ADMIN_KEY not set, admin POST endpoints will be disabled")
		}
		srv := (&api.Server{
			Sim:      sim,
			Eng:      eng,
			DB:       db,
			Port:     cfg.API.Port,
			AdminKey: cfg.API.AdminKey,
		}).Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
		fmt.Fprintf(out, "API: http://localhost:%d/api/v1/status\n", cfg.API.Port)
	}

	st := sim.Status()
	fmt.Fprintf(out, "Colony is alive: %d foragers, %d food in stock, %d signal kinds.\n",
		st.Foragers, st.RemainingStock, len(st.Signals.Kinds))
	if startTick > 0 {
		fmt.Fprintf(out, "Resuming run %s from tick %d\n", sim.RunID, startTick)
	}

	eng.Run(ctx)

	// Final snapshot on shutdown.
	final := eng.Tick()
	if cfg.Persistence.SnapshotDir != "" && final > startTick {
		if _, err := sim.Snapshot(final); err != nil {
			slog.Error("final snapshot failed", "error", err)
		}
	}
	sim.Report(final)

	st = sim.Status()
	fmt.Fprintf(out, "Simulation stopped at tick %d: %d items stored, %d in stock.\n",
		final, st.Deposits, st.RemainingStock)
	return nil
}

// resume restores the newest readable snapshot, returning its tick or 0 when
// there is none. Unreadable files, such as one cut short by a crash, are skipped
// in favour of older snapshots. A snapshot from another seed describes other
// terrain, so it ends the search and the run starts fresh.
func resume(sim *engine.Simulation, cfg *config.Config) (uint64, error) {
	paths, err := snapshot.List(cfg.Persistence.SnapshotDir)
	if err != nil {
		return 0, err
	}
	for _, path := range paths {
		snap, err := snapshot.Read(path)
		if err != nil {
			slog.Warn("skipping unreadable snapshot", "path", path, "error", err)
			continue
		}
		if snap.Header.Seed != cfg.World.Seed {
			slog.Warn("snapshot seed differs from config, starting fresh",
				"path", path, "snapshot_seed", snap.Header.Seed, "seed", cfg.World.Seed)
			return 0, nil
		}
		if err := sim.Restore(snap); err != nil {
			return 0, fmt.Errorf("restore %s: %w", path, err)
		}
		return snap.Header.Tick, nil
	}
	return 0, nil
}

// attachRun reuses the resumed run's row or records a new run.
func attachRun(db *persistence.DB, sim *engine.Simulation, cfg *config.Config) error {
	if sim.RunID != "" {
		_, err := db.GetRun(sim.RunID)
		if err == nil {
			return nil
		}
		if !errors.Is(err, persistence.ErrRunNotFound) {
			return err
		}
	}

	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	id, err := db.StartRun(cfg.World.Seed, string(cfgJSON))
	if err != nil {
		return err
	}
	sim.RunID = id
	return nil
}
