package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Veraticus/kvlabel/internal/cli"
	"github.com/Veraticus/kvlabel/internal/storage"
)

func runsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded consensus runs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			return withStorage(cmd, func(store *storage.SQLiteStorage) error {
				runs, err := store.ListRuns(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if len(runs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("No consensus runs recorded"))
					return nil
				}

				rows := make([][]string, 0, len(runs))
				for _, r := range runs {
					rows = append(rows, []string{
						r.ID,
						r.CreatedAt.Local().Format("2006-01-02 15:04:05"),
						strconv.FormatFloat(r.Threshold, 'f', -1, 64),
						strconv.Itoa(r.Stats.Total),
						strconv.Itoa(r.Stats.MaxCount),
						strconv.Itoa(r.Stats.AvgCount),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.RenderTable(
					[]string{"Run", "Created", "Threshold", "Keys", "Max", "Avg"}, rows,
					[]cli.Alignment{cli.AlignLeft, cli.AlignLeft, cli.AlignRight, cli.AlignRight, cli.AlignRight, cli.AlignRight}))
				return nil
			})
		},
	}
	cmd.Flags().Int("limit", 20, "number of runs to show")

	cmd.AddCommand(&cobra.Command{
		Use:   "show <run-id>",
		Short: "Show the per-key decisions of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStorage(cmd, func(store *storage.SQLiteStorage) error {
				run, err := store.GetRun(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				results, err := store.GetRunResults(cmd.Context(), run.ID)
				if err != nil {
					return err
				}

				rows := make([][]string, 0, len(results))
				for _, r := range results {
					rows = append(rows, []string{
						r.Key,
						r.Winner,
						cli.FormatScore(r.MaxScore, run.Threshold),
						cli.FormatScore(r.AvgScore, run.Threshold),
						mark(r.InMax),
						mark(r.InAvg),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatTitle("Run "+run.ID))
				fmt.Fprintln(cmd.OutOrStdout(), cli.RenderTable(
					[]string{"Key", "Label", "Max", "Avg", "In max", "In avg"}, rows,
					[]cli.Alignment{cli.AlignLeft, cli.AlignLeft, cli.AlignRight, cli.AlignRight}))
				return nil
			})
		},
	})

	return cmd
}

func withStorage(cmd *cobra.Command, fn func(*storage.SQLiteStorage) error) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}
	store, err := initStorage(cmd.Context(), settings)
	if err != nil {
		return err
	}
	defer closeStorage(store)
	return fn(store)
}

func mark(b bool) string {
	if b {
		return cli.SuccessIcon
	}
	return ""
}
