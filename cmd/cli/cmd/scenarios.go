package cmd

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"pharma-margin/core/output"
	"pharma-margin/core/scenario"
	"pharma-margin/internal/config"
)

var scenariosFormat string

var scenariosCmd = &cobra.Command{
	Use:   "scenarios",
	Short: "Batch calculations from HCL scenario files",
}

var scenariosRunCmd = &cobra.Command{
	Use:   "run <file.hcl>",
	Short: "Evaluate every scenario of a file against one rate grid",
	Long: `Evaluate every scenario block of an HCL file. Rejected scenarios (unknown
profile, zero purchases) are reported and do not stop the batch; the command
fails when at least one scenario could not be evaluated at all.

A relative source in the file is resolved from the file's directory. The
--source flag takes precedence over it.`,
	Args: cobra.ExactArgs(1),
	RunE: runScenarios,
}

func init() {
	rootCmd.AddCommand(scenariosCmd)
	scenariosCmd.AddCommand(scenariosRunCmd)

	scenariosRunCmd.Flags().StringVarP(&scenariosFormat, "format", "f", "", "output format (cli, json, markdown, html)")
}

func runScenarios(cmd *cobra.Command, args []string) error {
	started := time.Now()

	file, err := scenario.Load(args[0])
	if err != nil {
		return err
	}

	a, err := newApp(config.Get())
	if err != nil {
		return err
	}
	f, err := a.formatter(scenariosFormat)
	if err != nil {
		return err
	}
	opts, err := a.calculatorOptions("")
	if err != nil {
		return err
	}
	runner, err := scenario.NewRunner(opts)
	if err != nil {
		return err
	}

	table, err := a.table(cmd.Context(), scenarioSource(file))
	if err != nil {
		return err
	}

	outcomes, sum := runner.Run(table, file.Scenarios)
	report := output.NewBatchReport(file.Path, outcomes, sum, output.NewMetadata(table, started, Version))
	if err := f.RenderBatch(cmd.OutOrStdout(), report); err != nil {
		return err
	}
	if sum.Failed > 0 {
		return fmt.Errorf("%d of %d scenarios failed", sum.Failed, sum.Total)
	}
	return nil
}

func scenarioSource(file *scenario.File) string {
	if sourcePath != "" || file.Source == "" {
		return sourcePath
	}
	if filepath.IsAbs(file.Source) {
		return file.Source
	}
	return filepath.Join(filepath.Dir(file.Path), file.Source)
}
