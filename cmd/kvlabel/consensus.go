package main

import (
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/kvlabel/internal/cli"
	"github.com/Veraticus/kvlabel/internal/common"
	"github.com/Veraticus/kvlabel/internal/config"
	"github.com/Veraticus/kvlabel/internal/consensus"
	"github.com/Veraticus/kvlabel/internal/payload"
)

func consensusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "consensus",
		Short: "Reconcile the five per-temperature labels into one label per key",
		Long: `Read the label file of every temperature, resolve labels against the
category vocabulary, and pick the most frequent label per key. The max and
mean confidence of the agreeing judgments decide whether a key enters the
max-score and avg-score label maps.

Consensus halts without writing results when a temperature is missing keys,
a label matches no category or synonym, or a score is not a number in [0, 1].
A diagnostics file listing every problem is written instead.

Examples:
  kvlabel consensus --labels-dir out
  kvlabel consensus --labels-dir out --keys keys.json --threshold 0.9`,
		RunE: runConsensus,
	}

	cmd.Flags().String("labels-dir", "", "directory holding labels_temp*.json (default: output dir)")
	cmd.Flags().String("keys", "", "keys file; when set, every temperature must label exactly these keys")
	cmd.Flags().Float64("threshold", 0, "minimum score for the label maps (default from config)")
	cmd.Flags().String("vocabulary", "", "category vocabulary YAML (default: built in)")
	cmd.Flags().Bool("no-store", false, "do not record the run in the database")

	_ = viper.BindPFlag("consensus.threshold", cmd.Flags().Lookup("threshold"))
	_ = viper.BindPFlag("consensus.vocabulary", cmd.Flags().Lookup("vocabulary"))

	return cmd
}

func runConsensus(cmd *cobra.Command, _ []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}

	labelsDir, _ := cmd.Flags().GetString("labels-dir")
	keysPath, _ := cmd.Flags().GetString("keys")
	noStore, _ := cmd.Flags().GetBool("no-store")
	if labelsDir == "" {
		labelsDir = settings.OutputDir
	}

	in := consensus.Input{}
	in.Labels, err = payload.ReadLabels(config.ExpandPath(labelsDir))
	if err != nil {
		return common.NewUserError("could not read label files", err)
	}
	if keysPath != "" {
		in.Expected, err = payload.ReadKeys(keysPath)
		if err != nil {
			return common.NewUserError("could not read keys file", err)
		}
	}

	report, err := runConsensusFiles(cmd.OutOrStdout(), settings, in, time.Now())
	if err != nil {
		return err
	}

	if settings.UseStore && !noStore {
		store, storeErr := initStorage(cmd.Context(), settings)
		if storeErr != nil {
			return storeErr
		}
		defer closeStorage(store)

		run, saveErr := store.SaveRun(cmd.Context(), report)
		if saveErr != nil {
			return fmt.Errorf("failed to record run: %w", saveErr)
		}
		fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("Run recorded as "+run.ID))
	}
	return nil
}

// runConsensusFiles runs the engine and writes either the three result files
// or, when consensus halts, the diagnostics that explain why.
func runConsensusFiles(out io.Writer, settings *config.Settings, in consensus.Input, now time.Time) (*consensus.Report, error) {
	vocab, err := loadVocabulary(settings)
	if err != nil {
		return nil, fmt.Errorf("failed to load vocabulary: %w", err)
	}

	engine, err := consensus.NewEngine(vocab, slog.Default(), settings.Threshold)
	if err != nil {
		return nil, err
	}

	report, runErr := engine.Run(in)
	if runErr != nil {
		written, diagErr := consensus.WriteDiagnostics(settings.OutputDir, runErr, now)
		if diagErr != nil {
			slog.Error("Failed to write diagnostics", "error", diagErr)
		}
		for _, p := range written {
			fmt.Fprintln(out, cli.FormatWarning("Problems listed in "+p))
		}
		return nil, common.NewUserError("consensus halted; fix the listed labels and run again", runErr)
	}

	paths, err := payload.WriteReport(settings.OutputDir, report, now)
	if err != nil {
		return nil, err
	}

	fmt.Fprintln(out, cli.FormatTitle("Consensus"))
	fmt.Fprintln(out, cli.RenderTable([]string{"Measure", "Value"}, statsRows(report),
		[]cli.Alignment{cli.AlignLeft, cli.AlignRight}))
	for _, p := range paths {
		fmt.Fprintln(out, cli.FormatSuccess("Wrote "+p))
	}
	return report, nil
}

func statsRows(report *consensus.Report) [][]string {
	s := report.Stats
	pct := func(f float64) string { return strconv.FormatFloat(f*100, 'f', 1, 64) + "%" }
	return [][]string{
		{"Keys", strconv.Itoa(s.Total)},
		{"Threshold", strconv.FormatFloat(report.Threshold, 'f', -1, 64)},
		{"Max-score labels", strconv.Itoa(s.MaxCount) + " (" + pct(s.MaxCoverage) + ")"},
		{"Avg-score labels", strconv.Itoa(s.AvgCount) + " (" + pct(s.AvgCoverage) + ")"},
		{"In both maps", strconv.Itoa(s.BothCount)},
		{"Below threshold", strconv.Itoa(s.Excluded)},
	}
}
