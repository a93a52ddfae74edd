package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/kvlabel/internal/cli"
	"github.com/Veraticus/kvlabel/internal/common"
	"github.com/Veraticus/kvlabel/internal/keys"
	"github.com/Veraticus/kvlabel/internal/payload"
)

func keysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Rebuild the unique key list from an extracted pairs file",
		Long: `Normalize and deduplicate the keys of a pairs file written by extract.

Keys are lowercased with '_', '-' and '/' turned into spaces; numeric keys,
single characters and asset-like names (.js, .css, .png, ...) are dropped.`,
		RunE: runKeys,
	}

	cmd.Flags().String("pairs", "", "pairs file written by extract (required)")
	cmd.Flags().String("out", "", "keys output file (default: <output-dir>/keys.json)")
	_ = cmd.MarkFlagRequired("pairs")

	return cmd
}

func runKeys(cmd *cobra.Command, _ []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}

	pairsPath, _ := cmd.Flags().GetString("pairs")
	outFlag, _ := cmd.Flags().GetString("out")

	batches, err := payload.ReadPairs(pairsPath)
	if err != nil {
		return common.NewUserError("could not read pairs file", err)
	}

	set, perPayload := keys.Collect(batches)
	if set.Len() == 0 {
		return common.NewUserError("no keys survived normalization", common.ErrNoKeys)
	}

	outPath := settings.OutputFile(outFlag, "keys.json")
	if err := payload.WriteKeys(outPath, set, perPayload); err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("%d unique keys written to %s", set.Len(), outPath)))
	return nil
}
