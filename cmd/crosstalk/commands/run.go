package commands

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/JohnCoene/crosstalk/internal/config"
	"github.com/JohnCoene/crosstalk/internal/document"
	"github.com/JohnCoene/crosstalk/internal/printer"
	"github.com/JohnCoene/crosstalk/internal/scenario"
)

var (
	runConfigPath string
)

var runCmd = &cobra.Command{
	Use:   "run <scenario.yml>",
	Short: "Replay a scripted interaction scenario against the document's bus",
	Long: `Build the bus from crosstalk.yml, bind every configured dataset, then
replay the scenario's publish, clear and dispose steps in order.

After each step the group's selection and effective filter are printed,
which makes linking behavior inspectable without rendering any widgets.`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runConfigPath, "config", "crosstalk.yml", "Path to the document manifest")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(runConfigPath)
	if err != nil {
		return printer.Error(
			"Invalid document manifest",
			err.Error(),
			[]string{"Check " + runConfigPath + " against the documented format"},
		)
	}

	s, err := scenario.Load(args[0])
	if err != nil {
		return printer.Error("Invalid scenario", err.Error(), nil)
	}

	doc, err := document.Build(cfg, filepath.Dir(runConfigPath))
	if err != nil {
		return printer.Error(
			"Failed to build document",
			err.Error(),
			[]string{"Run 'crosstalk keys' on the failing dataset to inspect its keys"},
		)
	}
	defer doc.Dispose()

	runner := scenario.NewRunner(os.Stdout)
	for name, h := range doc.Handles {
		runner.Bind(name, h)
	}

	if s.Name != "" {
		printer.Step("scenario: %s\n", s.Name)
	}
	if err := runner.Run(s); err != nil {
		return printer.Error("Scenario failed", err.Error(), nil)
	}

	printer.Success("%d steps completed\n", len(s.Steps))
	return nil
}
