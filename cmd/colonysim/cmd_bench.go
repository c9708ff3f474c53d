package main

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/talgya/mini-colony/internal/config"
	"github.com/talgya/mini-colony/internal/engine"
)

type benchOptions struct {
	sizes    []int
	ticks    uint64
	foragers int
	seed     int64
	workers  int
	verbose  bool
}

type benchResult struct {
	radius      int
	kinds       int
	elapsed     time.Duration
	activeCells int
	mass        float64
	stored      int
	stock       int
	snapBytes   int64
}

func (r benchResult) ticksPerSecond(ticks uint64) float64 {
	if r.elapsed <= 0 {
		return 0
	}
	return float64(ticks) / r.elapsed.Seconds()
}

func newBenchCmd() *cobra.Command {
	var opts benchOptions
	var sizes string
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run headless simulations over several map sizes and report throughput",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			opts.sizes, err = parseSizes(sizes)
			if err != nil {
				return err
			}
			if opts.ticks == 0 {
				return fmt.Errorf("--ticks must be > 0")
			}
			if !opts.verbose {
				slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelWarn})))
			}
			return runBench(cfg, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&sizes, "sizes", "8,16,32", "Comma-separated map radii")
	cmd.Flags().Uint64Var(&opts.ticks, "ticks", 500, "Ticks per run")
	cmd.Flags().IntVar(&opts.foragers, "foragers", 40, "Foragers per run")
	cmd.Flags().Int64Var(&opts.seed, "seed", 42, "Terrain and colony seed")
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "Diffusion workers (0 means GOMAXPROCS)")
	cmd.Flags().BoolVar(&opts.verbose, "verbose", false, "Keep simulation logs")
	return cmd
}

func parseSizes(s string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 4 {
			return nil, fmt.Errorf("invalid size %q: radii must be integers >= 4", part)
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no sizes given")
	}
	return out, nil
}

// benchConfig scales the colony layout to a map of the given radius: the nest at
// the origin and one source per item two thirds of the way out.
func benchConfig(base *config.Config, radius int, opts benchOptions) *config.Config {
	cfg := *base
	cfg.World.Radius = radius
	cfg.World.Seed = opts.seed
	cfg.Simulation.Workers = opts.workers
	cfg.Colony.Foragers = opts.foragers
	cfg.Colony.Nest = config.HexConfig{}
	cfg.Signals.Kinds = nil

	d := radius * 2 / 3
	cfg.Colony.Sources = []config.SourceConfig{
		{HexConfig: config.HexConfig{Q: d, R: 0}, Item: "leaf", Stock: 10 * radius},
		{HexConfig: config.HexConfig{Q: -d, R: d}, Item: "leaf", Stock: 10 * radius},
		{HexConfig: config.HexConfig{Q: 0, R: -d}, Item: "seed", Stock: 10 * radius},
	}
	cfg.Persistence = config.PersistenceConfig{}
	return &cfg
}

func runBench(base *config.Config, opts benchOptions, out io.Writer) error {
	fmt.Fprintf(out, "=== Headless Colony Benchmark ===\n")
	fmt.Fprintf(out, "sizes=%v ticks=%d foragers=%d seed=%d\n\n", opts.sizes, opts.ticks, opts.foragers, opts.seed)

	tmp, err := os.MkdirTemp("", "colonysim-bench-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmp)

	results := make([]benchResult, 0, len(opts.sizes))
	for _, radius := range opts.sizes {
		cfg := benchConfig(base, radius, opts)
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("radius %d: %w", radius, err)
		}
		sim, err := engine.Build(cfg)
		if err != nil {
			return fmt.Errorf("radius %d: %w", radius, err)
		}
		sim.SnapshotDir = filepath.Join(tmp, strconv.Itoa(radius))

		eng := engine.NewEngine()
		eng.ReportEvery = 0
		engine.Wire(eng, sim)

		start := time.Now()
		ran := eng.RunTicks(opts.ticks)
		elapsed := time.Since(start)
		if ran != opts.ticks {
			return fmt.Errorf("radius %d: stopped after %d of %d ticks", radius, ran, opts.ticks)
		}

		st := sim.Status()
		res := benchResult{
			radius:      radius,
			kinds:       len(st.Signals.Kinds),
			elapsed:     elapsed,
			activeCells: st.Signals.ActiveCellTotal(),
			mass:        st.Signals.TotalMass(),
			stored:      int(st.Deposits),
			stock:       st.RemainingStock,
		}
		if path, err := sim.Snapshot(opts.ticks); err == nil {
			if fi, err := os.Stat(path); err == nil {
				res.snapBytes = fi.Size()
			}
		}
		results = append(results, res)
	}

	printBench(out, results, opts.ticks)
	return nil
}

func printBench(out io.Writer, results []benchResult, ticks uint64) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "radius\tkinds\tticks/s\tms/tick\tactive cells\tmass\tstored\tstock\tsnapshot\t")
	for _, r := range results {
		msPerTick := 0.0
		if ticks > 0 {
			msPerTick = float64(r.elapsed.Microseconds()) / 1000 / float64(ticks)
		}
		fmt.Fprintf(tw, "%d\t%d\t%s\t%.3f\t%s\t%s\t%s\t%s\t%s\t\n",
			r.radius,
			r.kinds,
			humanize.Commaf(math.Round(r.ticksPerSecond(ticks))),
			msPerTick,
			humanize.Comma(int64(r.activeCells)),
			humanize.SIWithDigits(r.mass, 2, ""),
			humanize.Comma(int64(r.stored)),
			humanize.Comma(int64(r.stock)),
			humanize.Bytes(uint64(r.snapBytes)),
		)
	}
	tw.Flush()
}
