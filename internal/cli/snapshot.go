package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/mcoot/racecoord/internal/dependencies/clock"
	"github.com/mcoot/racecoord/internal/dependencies/idgen"
	"github.com/mcoot/racecoord/internal/dependencies/random"
	"github.com/mcoot/racecoord/internal/services/catalog"
	"github.com/mcoot/racecoord/internal/services/race"
	"github.com/mcoot/racecoord/internal/storage/file"
	"github.com/mcoot/racecoord/internal/storage/memory"
)

func newSnapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Persisted snapshot tools",
	}

	cmd.AddCommand(newSnapshotCheckCmd())

	return cmd
}

func newSnapshotCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <file>",
		Short: "Restore a snapshot file offline and run the invariant checks on it",
		Long: `Loads a snapshot written by the file persistence provider, restores it
into a throwaway coordinator and validates every invariant, exactly as the
server does at startup. The file itself is never modified.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := checkSnapshot(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			NewOutput(cfg.Output).Print(report)
			return nil
		},
	}
}

func checkSnapshot(ctx context.Context, path string) (SnapshotReport, error) {
	report := SnapshotReport{File: path}

	source, err := file.New(path)
	if err != nil {
		return report, err
	}
	state, err := source.Load(ctx)
	if err != nil {
		return report, fmt.Errorf("%s: %w", path, err)
	}
	if state == nil {
		report.Empty = true
		report.Valid = true
		return report, nil
	}
	report.SchemaVersion = state.SchemaVersion
	report.SavedAtMs = state.SavedAtMs

	// Restore into memory so the check cannot write back to the file
	scratch := memory.New()
	if err := scratch.Save(ctx, state); err != nil {
		return report, err
	}

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	if cfg.Verbose {
		logger = slog.Default()
	}
	svc := race.NewService(scratch, catalog.New(logger), clock.New(), random.New(), idgen.New(), race.DefaultConfig(), logger)
	if err := svc.Warmup(ctx); err != nil {
		return report, fmt.Errorf("%s: %w", path, err)
	}

	stats, err := svc.Stats(ctx)
	if err != nil {
		return report, err
	}
	report.Valid = true
	report.Stats = stats
	return report, nil
}
