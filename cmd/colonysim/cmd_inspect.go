package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/talgya/mini-colony/internal/persistence"
	"github.com/talgya/mini-colony/internal/persistence/snapshot"
)

func newInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Inspect stored runs, statistics, fields and snapshots",
	}
	cmd.PersistentFlags().String("db", "", "Database path (defaults to persistence.db_path)")
	cmd.PersistentFlags().Bool("json", false, "Output as JSON")

	cmd.AddCommand(
		newInspectRunsCmd(),
		newInspectStatsCmd(),
		newInspectFieldCmd(),
		newInspectSnapshotCmd(),
	)
	return cmd
}

// openInspectDB opens the database named by --db or the config.
func openInspectDB(cmd *cobra.Command) (*persistence.DB, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	path, _ := cmd.Flags().GetString("db")
	if path == "" {
		path = cfg.Persistence.DBPath
	}
	if path == "" {
		return nil, fmt.Errorf("no database configured")
	}
	return persistence.Open(path)
}

// resolveRun returns the given run id, or the newest run when it is empty.
func resolveRun(db *persistence.DB, id string) (string, error) {
	if id != "" {
		r, err := db.GetRun(id)
		return r.ID, err
	}
	runs, err := db.Runs()
	if err != nil {
		return "", err
	}
	if len(runs) == 0 {
		return "", persistence.ErrRunNotFound
	}
	return runs[0].ID, nil
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newInspectRunsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "runs",
		Short: "List recorded runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openInspectDB(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			runs, err := db.Runs()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				return printJSON(out, runs)
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded.")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSEED\tSTARTED\tLAST TICK")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", r.ID, r.Seed, humanize.Time(r.Started()), humanize.Comma(int64(r.LastTick)))
			}
			return tw.Flush()
		},
	}
}

func newInspectStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats <kind>",
		Short: "Show a kind's recorded statistics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openInspectDB(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			runFlag, _ := cmd.Flags().GetString("run")
			limit, _ := cmd.Flags().GetInt("limit")
			runID, err := resolveRun(db, runFlag)
			if err != nil {
				return err
			}
			rows, err := db.StatsHistory(runID, args[0], limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				return printJSON(out, rows)
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TICK\tACTIVE\tTOTAL\tMAX")
			for _, r := range rows {
				fmt.Fprintf(tw, "%d\t%d\t%.3f\t%.3f\n", r.Tick, r.ActiveCells, r.Total, r.Max)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().String("run", "", "Run id (defaults to the newest run)")
	cmd.Flags().Int("limit", 20, "Most recent rows to show")
	return cmd
}

func newInspectFieldCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "field <kind>",
		Short: "Dump a kind's stored cells at a snapshot tick",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openInspectDB(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			runFlag, _ := cmd.Flags().GetString("run")
			tick, _ := cmd.Flags().GetUint64("tick")
			runID, err := resolveRun(db, runFlag)
			if err != nil {
				return err
			}
			if tick == 0 {
				ticks, err := db.FieldTicks(runID)
				if err != nil {
					return err
				}
				if len(ticks) == 0 {
					return fmt.Errorf("run %s has no stored fields", runID)
				}
				tick = ticks[0]
			}

			cells, err := db.LoadField(runID, tick, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				return printJSON(out, map[string]any{"run": runID, "tick": tick, "kind": args[0], "cells": cells})
			}
			fmt.Fprintf(out, "%s at tick %d: %d cells\n", args[0], tick, len(cells))
			for _, c := range cells {
				fmt.Fprintf(out, "  (%d, %d)  %.4f\n", c.Q, c.R, c.Value)
			}
			return nil
		},
	}
	cmd.Flags().String("run", "", "Run id (defaults to the newest run)")
	cmd.Flags().Uint64("tick", 0, "Snapshot tick (defaults to the newest)")
	return cmd
}

func newInspectSnapshotCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot [path]",
		Short: "Summarise a snapshot file (defaults to the newest in persistence.snapshot_dir)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			path := ""
			if len(args) == 1 {
				path = args[0]
			} else if path, err = snapshot.Latest(cfg.Persistence.SnapshotDir); err != nil {
				return err
			}
			if path == "" {
				return fmt.Errorf("no snapshots in %s", cfg.Persistence.SnapshotDir)
			}

			snap, err := snapshot.Read(path)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				return printJSON(out, snap.Header)
			}

			fmt.Fprintf(out, "%s\n  run %s, tick %s, seed %d, format v%d\n",
				path, snap.Header.RunID, humanize.Comma(int64(snap.Header.Tick)), snap.Header.Seed, snap.Header.Version)
			fmt.Fprintf(out, "  nest %v stored %v, %d sources, %d foragers\n",
				snap.Nest.Cell, snap.Nest.Stored, len(snap.Sources), len(snap.Foragers))
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "  KIND\tCELLS\tTOTAL")
			for _, f := range snap.Fields {
				total := 0.0
				for _, c := range f.Cells {
					total += c.Value
				}
				fmt.Fprintf(tw, "  %s\t%d\t%.3f\n", f.Kind, len(f.Cells), total)
			}
			return tw.Flush()
		},
	}
}
