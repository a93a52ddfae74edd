package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/kvlabel/internal/cli"
	"github.com/Veraticus/kvlabel/internal/common"
	"github.com/Veraticus/kvlabel/internal/config"
	"github.com/Veraticus/kvlabel/internal/consensus"
	"github.com/Veraticus/kvlabel/internal/llm"
	"github.com/Veraticus/kvlabel/internal/model"
	"github.com/Veraticus/kvlabel/internal/payload"
)

func classifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Label unique keys with a language model at each sampling temperature",
		Long: `Send the unique keys to the configured model in sublists and record one
label per key at each of the temperatures 0, 0.25, 0.5, 0.75 and 1.

Labels are stored in the local database so an interrupted or partial run only
sends the keys that are still unlabeled. One label file per temperature is
written to the output directory; keys a model left out are listed in a
missing_keys file.

Examples:
  kvlabel classify --keys keys.json
  kvlabel classify --keys keys.json --temperatures 0,0.5
  kvlabel classify --keys keys.json --estimate`,
		RunE: runClassify,
	}

	cmd.Flags().String("keys", "", "keys file written by extract (required)")
	cmd.Flags().String("temperatures", "", "comma-separated subset of temperatures (default: all five)")
	cmd.Flags().Bool("estimate", false, "print request and token estimates without calling the model")
	cmd.Flags().Int("context-limit", 0, "flag sublists whose estimated tokens reach this limit")
	cmd.Flags().Int("batch-size", 0, "keys per request (default from config)")
	cmd.Flags().Int("concurrency", 0, "temperatures classified at once (default from config)")
	cmd.Flags().Bool("no-store", false, "do not reuse or record labels in the database")
	_ = cmd.MarkFlagRequired("keys")

	_ = viper.BindPFlag("llm.batch_size", cmd.Flags().Lookup("batch-size"))
	_ = viper.BindPFlag("llm.concurrency", cmd.Flags().Lookup("concurrency"))

	return cmd
}

func runClassify(cmd *cobra.Command, _ []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}

	keysPath, _ := cmd.Flags().GetString("keys")
	tempsFlag, _ := cmd.Flags().GetString("temperatures")
	estimate, _ := cmd.Flags().GetBool("estimate")
	contextLimit, _ := cmd.Flags().GetInt("context-limit")
	noStore, _ := cmd.Flags().GetBool("no-store")

	keyList, err := payload.ReadKeys(keysPath)
	if err != nil {
		return common.NewUserError("could not read keys file", err)
	}
	if len(keyList) == 0 {
		return common.NewUserError("keys file is empty", common.ErrNoKeys)
	}

	temps, err := parseTemperatures(tempsFlag)
	if err != nil {
		return common.NewUserError("invalid --temperatures", err)
	}

	vocab, err := loadVocabulary(settings)
	if err != nil {
		return fmt.Errorf("failed to load vocabulary: %w", err)
	}
	prompts := llm.NewPromptBuilder(vocab.Categories(), vocab.Unclear())

	if estimate {
		sampler := llm.NewSampler(nil, prompts, settings.LLM, slog.Default())
		printEstimate(cmd, sampler.Estimate(keyList), len(keyList), len(temps), contextLimit)
		return nil
	}

	client, err := llm.NewClient(settings.LLM)
	if err != nil {
		return common.NewUserError("could not create the model client", err)
	}

	var sampler llm.Sampler = llm.NewSampler(client, prompts, settings.LLM, slog.Default())
	if settings.UseStore && !noStore {
		store, storeErr := initStorage(cmd.Context(), settings)
		if storeErr != nil {
			return storeErr
		}
		defer closeStorage(store)
		sampler = llm.NewStoredSampler(sampler, store, client.Model(), slog.Default())
	}

	interrupts := cli.NewInterruptHandler(cmd.ErrOrStderr())
	defer interrupts.Stop()
	ctx := interrupts.HandleInterrupts(cmd.Context(), settings.UseStore && !noStore)

	progress := cli.NewProgress(cmd.ErrOrStderr(), len(temps), "Classifying temperatures...")
	labels, sampleErr := llm.SampleAll(ctx, &progressSampler{next: sampler, progress: progress},
		keyList, temps, settings.Concurrency)
	progress.Finish()

	return finishClassify(cmd, settings, keyList, temps, labels, sampleErr, time.Now())
}

// finishClassify writes the label files that succeeded and reports keys the
// model left out, then returns the sampling error if any.
func finishClassify(cmd *cobra.Command, settings *config.Settings, keyList []string, temps []model.Temperature,
	labels map[model.Temperature]model.LabelFile, sampleErr error, now time.Time) error {
	out := cmd.OutOrStdout()

	paths, err := payload.WriteLabels(settings.OutputDir, labels)
	if err != nil {
		return err
	}
	for _, p := range paths {
		fmt.Fprintln(out, cli.FormatSuccess("Labels written to "+p))
	}

	rows := make([][]string, 0, len(temps))
	for _, t := range temps {
		l, ok := labels[t]
		status := "failed"
		if ok {
			status = strconv.Itoa(len(l)) + "/" + strconv.Itoa(len(keyList))
		}
		rows = append(rows, []string{t.Label(), status})
	}
	fmt.Fprintln(out, cli.RenderTable([]string{"Temperature", "Labeled"}, rows,
		[]cli.Alignment{cli.AlignLeft, cli.AlignRight}))

	if len(labels) > 0 {
		present := make(map[model.Temperature]model.LabelFile, len(labels))
		for t, l := range labels {
			present[t] = l
		}
		checkErr := consensus.CheckCompleteness(consensus.Input{Labels: present, Expected: keyList})
		var cerr *consensus.CompletenessError
		if errors.As(checkErr, &cerr) {
			diag := *cerr
			diag.AbsentTemperatures = nil
			if len(diag.Temperatures) > 0 {
				written, wErr := consensus.WriteDiagnostics(settings.OutputDir, &diag, now)
				if wErr != nil {
					return wErr
				}
				for _, p := range written {
					fmt.Fprintln(out, cli.FormatWarning("Keys missing from responses listed in "+p))
				}
			}
		}
	}

	if sampleErr != nil {
		if errors.Is(sampleErr, context.Canceled) {
			return common.NewUserError("classification interrupted", sampleErr)
		}
		return common.NewUserError("classification failed for some temperatures", sampleErr)
	}
	return nil
}

func parseTemperatures(s string) ([]model.Temperature, error) {
	if strings.TrimSpace(s) == "" {
		return model.Temperatures[:], nil
	}

	seen := make(map[model.Temperature]bool)
	var out []model.Temperature
	for _, part := range strings.Split(s, ",") {
		t, err := model.ParseTemperature(part)
		if err != nil {
			return nil, err
		}
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out, nil
}

func printEstimate(cmd *cobra.Command, est llm.Estimate, keyCount, temps, contextLimit int) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, cli.FormatTitle("Classification estimate"))

	rows := [][]string{
		{"Keys", strconv.Itoa(keyCount)},
		{"Sublists per temperature", strconv.Itoa(len(est.Sublists))},
		{"Requests for all temperatures", strconv.Itoa(len(est.Sublists) * temps)},
		{"Prompt tokens per temperature", strconv.Itoa(est.PromptTokens)},
		{"Output tokens per temperature", strconv.Itoa(est.OutputTokens)},
		{"Total tokens, all temperatures", strconv.Itoa(est.TotalTokens() * temps)},
	}
	fmt.Fprintln(out, cli.RenderTable([]string{"Measure", "Value"}, rows,
		[]cli.Alignment{cli.AlignLeft, cli.AlignRight}))

	if over := est.Over(contextLimit); len(over) > 0 {
		fmt.Fprintln(out, cli.FormatWarning(fmt.Sprintf(
			"%d sublists reach the %d token limit; lower --batch-size", len(over), contextLimit)))
	}
}

// progressSampler advances a progress bar as each temperature finishes.
type progressSampler struct {
	next     llm.Sampler
	progress *cli.Progress
}

func (p *progressSampler) Classify(ctx context.Context, keyList []string, t model.Temperature) (model.LabelFile, error) {
	labels, err := p.next.Classify(ctx, keyList, t)
	p.progress.Add(1)
	if err != nil {
		slog.Error("temperature failed", "temperature", t.Label(), "error", err)
	}
	return labels, err
}

