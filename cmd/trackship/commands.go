package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/bft-labs/trackship/internal/adapters/fs"
	logAdapter "github.com/bft-labs/trackship/internal/adapters/log"
	"github.com/bft-labs/trackship/internal/adapters/sqlite"
	"github.com/bft-labs/trackship/internal/cliconfig"
	"github.com/bft-labs/trackship/internal/domain"
)

func newRecentCmd(cfg *cliconfig.Config, cfgPath *string) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "recent",
		Short: "List the most recent samples, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := loadConfig(cmd, cfg, *cfgPath); err != nil {
				return err
			}
			if err := cfg.ResolvePaths(); err != nil {
				return err
			}

			store, err := sqlite.Open(cmd.Context(), cfg.DBPath)
			if err != nil {
				return err
			}
			defer store.Close()

			samples, err := store.ListRecent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return printSamples(cmd.OutOrStdout(), samples, time.Now())
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", domain.DefaultRecentLimit, "number of samples to show")
	return cmd
}

func newStatusCmd(cfg *cliconfig.Config, cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show backlog size and the outcome of the last cycle",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := loadConfig(cmd, cfg, *cfgPath); err != nil {
				return err
			}
			if err := cfg.ResolvePaths(); err != nil {
				return err
			}
			ctx := cmd.Context()

			store, err := sqlite.Open(ctx, cfg.DBPath)
			if err != nil {
				return err
			}
			defer store.Close()

			total, unsynced, err := store.Counts(ctx)
			if err != nil {
				return err
			}
			deviceID, err := store.DeviceID(ctx)
			if err != nil {
				return err
			}
			last, err := fs.NewStatusFileRepository(cfg.DataDir, logAdapter.NewNoopLogger()).Load(ctx)
			if err != nil {
				return fmt.Errorf("read status file: %w", err)
			}

			printStatus(cmd.OutOrStdout(), deviceID, total, unsynced, last, time.Now())
			return nil
		},
	}
}

func printSamples(w io.Writer, samples []domain.Sample, now time.Time) error {
	if len(samples) == 0 {
		_, err := fmt.Fprintln(w, "no samples recorded")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tLATITUDE\tLONGITUDE\tCAPTURED\tSYNCED")
	for _, s := range samples {
		synced := "-"
		if s.Synced {
			synced = "yes"
		}
		fmt.Fprintf(tw, "%d\t%.6f\t%.6f\t%s\t%s\n",
			s.ID, s.Latitude, s.Longitude,
			humanize.RelTime(s.CapturedTime(), now, "ago", "from now"), synced)
	}
	return tw.Flush()
}

func printStatus(w io.Writer, deviceID string, total, unsynced int, last *domain.CycleReport, now time.Time) {
	fmt.Fprintf(w, "device:    %s\n", deviceID)
	fmt.Fprintf(w, "samples:   %s total, %s waiting for upload\n", humanize.Comma(int64(total)), humanize.Comma(int64(unsynced)))
	if last == nil {
		fmt.Fprintln(w, "last cycle: none recorded")
		return
	}
	fmt.Fprintf(w, "last cycle: %s %s (stage %s, %d uploaded, took %s)\n",
		last.Outcome, humanize.RelTime(last.FinishedAt, now, "ago", "from now"),
		last.Stage, last.Uploaded, last.Duration().Round(time.Millisecond))
	if last.Err != "" {
		fmt.Fprintf(w, "error:     %s\n", last.Err)
	}
}
