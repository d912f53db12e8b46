package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JohnCoene/crosstalk/internal/dataset"
	"github.com/JohnCoene/crosstalk/internal/printer"
	"github.com/JohnCoene/crosstalk/pkg/bus"
)

var (
	keysColumn string
)

var keysCmd = &cobra.Command{
	Use:   "keys <dataset.csv>",
	Short: "Derive and validate a dataset's row keys",
	Long: `Derive the stable row keys for a CSV dataset and validate them the way
handle construction does: every key must be non-empty and unique.

By default keys come from row positions (1..n). Use --column to derive
them from a column. Broken keys are the most common linking mistake, so
failures name the offending row.`,
	Args: cobra.ExactArgs(1),
	RunE: runKeys,
}

func init() {
	keysCmd.Flags().StringVar(&keysColumn, "column", "", "Derive keys from this column")
	rootCmd.AddCommand(keysCmd)
}

func runKeys(cmd *cobra.Command, args []string) error {
	path := args[0]

	table, err := dataset.Load(path)
	if err != nil {
		return printer.Error(
			"Failed to load dataset",
			err.Error(),
			[]string{"Check that the file exists and is valid CSV with a header row"},
		)
	}

	spec := bus.DefaultKeys()
	if keysColumn != "" {
		spec = bus.Column(keysColumn)
	}

	keys, err := bus.ResolveKeys(table, spec)
	if err != nil {
		var keyErr *bus.KeyError
		if errors.As(err, &keyErr) {
			// Report 1-based to match spreadsheet row numbering.
			return printer.Error(
				"Invalid key",
				fmt.Sprintf("Row %d of %s: %s.", keyErr.Row+1, path, keyErr.Reason),
				[]string{
					"Pick a column whose values are unique and non-empty",
					"Add a dedicated id column to the dataset",
				},
			)
		}
		return printer.Error("Key derivation failed", err.Error(), nil)
	}

	printer.Success("%d keys valid\n", len(keys))
	preview := keys
	if len(preview) > 10 {
		preview = preview[:10]
	}
	for _, k := range preview {
		printer.Printf("  %s\n", k)
	}
	if len(keys) > len(preview) {
		printer.Printf("  ... and %d more\n", len(keys)-len(preview))
	}
	return nil
}
