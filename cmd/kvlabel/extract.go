package main

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/kvlabel/internal/cli"
	"github.com/Veraticus/kvlabel/internal/common"
	"github.com/Veraticus/kvlabel/internal/extract"
	"github.com/Veraticus/kvlabel/internal/keys"
	"github.com/Veraticus/kvlabel/internal/model"
	"github.com/Veraticus/kvlabel/internal/payload"
)

func extractCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract key-value pairs and unique keys from captured payloads",
		Long: `Read captured payloads and extract every key-value pair they contain,
including JSON nested inside string values and query or cookie assignments.

Input formats are chosen by extension: .jsonl/.ndjson ({"id", "payload"} per line),
.json (array of the same objects) or .csv (pkt_id and http.file_data columns).

Examples:
  kvlabel extract --input capture.csv
  kvlabel extract --input payloads.jsonl --pairs out/pairs.json --keys out/keys.json`,
		RunE: runExtract,
	}

	cmd.Flags().StringP("input", "i", "", "payload file (required)")
	cmd.Flags().String("pairs", "", "pairs output file (default: <output-dir>/extracted_kv_pairs.json)")
	cmd.Flags().String("keys", "", "unique keys output file (default: <output-dir>/keys.json)")
	cmd.Flags().Int("max-depth", 0, "maximum nesting depth (default from config)")
	cmd.Flags().Int("workers", 0, "parallel extraction workers (default from config)")
	_ = cmd.MarkFlagRequired("input")

	_ = viper.BindPFlag("extract.max_depth", cmd.Flags().Lookup("max-depth"))
	_ = viper.BindPFlag("extract.workers", cmd.Flags().Lookup("workers"))

	return cmd
}

func runExtract(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	settings, err := loadSettings()
	if err != nil {
		return err
	}

	input, _ := cmd.Flags().GetString("input")
	pairsFlag, _ := cmd.Flags().GetString("pairs")
	keysFlag, _ := cmd.Flags().GetString("keys")

	payloads, err := payload.ReadFile(input)
	if err != nil {
		return common.NewUserError("could not read payloads", err)
	}
	slog.Info("payloads loaded", "file", input, "count", len(payloads))

	extractor := extract.New(slog.Default(), extract.Options{
		MaxDepth: settings.MaxDepth,
		Workers:  settings.Workers,
	})
	batches, err := extractor.ExtractBatch(ctx, payloads)
	if err != nil {
		return fmt.Errorf("extraction stopped: %w", err)
	}

	pairsPath := settings.OutputFile(pairsFlag, "extracted_kv_pairs.json")
	if err := payload.WritePairs(pairsPath, batches); err != nil {
		return err
	}

	set, perPayload := keys.Collect(batches)
	keysPath := settings.OutputFile(keysFlag, "keys.json")
	if err := payload.WriteKeys(keysPath, set, perPayload); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, cli.FormatTitle("Extraction"))
	fmt.Fprintln(out, cli.RenderTable(
		[]string{"Measure", "Count"},
		extractSummaryRows(batches, set.Len()),
		[]cli.Alignment{cli.AlignLeft, cli.AlignRight},
	))
	fmt.Fprintln(out, cli.FormatSuccess("Pairs written to "+pairsPath))
	fmt.Fprintln(out, cli.FormatSuccess("Keys written to "+keysPath))
	return nil
}

func extractSummaryRows(batches []model.PayloadPairs, uniqueKeys int) [][]string {
	bySource := map[model.Source]int{}
	total, empty := 0, 0
	for _, b := range batches {
		if len(b.Pairs) == 0 {
			empty++
		}
		for _, p := range b.Pairs {
			bySource[p.Source]++
			total++
		}
	}

	return [][]string{
		{"Payloads", strconv.Itoa(len(batches))},
		{"Payloads without pairs", strconv.Itoa(empty)},
		{"Pairs", strconv.Itoa(total)},
		{"  from JSON", strconv.Itoa(bySource[model.SourceJSON])},
		{"  from & assignments", strconv.Itoa(bySource[model.SourceAmpersand])},
		{"  from ; assignments", strconv.Itoa(bySource[model.SourceSemicolon])},
		{"Unique keys", strconv.Itoa(uniqueKeys)},
	}
}
