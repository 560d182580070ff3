package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"jukebox/internal/journal"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent requests",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := journal.Open(cfg.Paths.JournalPath)
			if err != nil {
				return err
			}
			defer store.Close()

			requests, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(requests) == 0 {
				fmt.Fprintln(out, "No requests recorded yet")
				return nil
			}

			rows := make([][]string, 0, len(requests))
			for _, req := range requests {
				rows = append(rows, []string{
					req.CreatedAt.Local().Format(time.DateTime),
					string(req.Status),
					historyTrackLabel(req),
					req.Platform,
					yesNo(req.FromCache),
					req.ErrorKind,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"When", "Status", "Track", "Platform", "Cached", "Error"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of requests to show")
	cmd.AddCommand(newHistoryStatsCommand(ctx))
	return cmd
}

func newHistoryStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show aggregate request counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := journal.Open(cfg.Paths.JournalPath)
			if err != nil {
				return err
			}
			defer store.Close()

			stats, err := store.Stats(cmd.Context())
			if err != nil {
				return err
			}
			rows := [][]string{
				{"Total", strconv.FormatInt(stats.Total, 10)},
				{"Completed", strconv.FormatInt(stats.Completed, 10)},
				{"Failed", strconv.FormatInt(stats.Failed, 10)},
				{"Cache hits", strconv.FormatInt(stats.CacheHits, 10)},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Counter", "Value"},
				rows,
				[]columnAlignment{alignLeft, alignRight},
			))
			return nil
		},
	}
}

func historyTrackLabel(req *journal.Request) string {
	switch {
	case req.TrackArtist != "" && req.TrackTitle != "":
		return req.TrackArtist + " - " + req.TrackTitle
	case req.TrackTitle != "":
		return req.TrackTitle
	default:
		return req.URL
	}
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
