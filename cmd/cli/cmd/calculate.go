package cmd

import (
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"pharma-margin/core/margin"
	"pharma-margin/core/output"
	"pharma-margin/core/types"
	"pharma-margin/internal/config"
	"pharma-margin/internal/errors"
	"pharma-margin/internal/logging"
)

var (
	calcCluster string
	calcSupply  string
	calcAlloc   map[string]string
	calcFormat  string
	calcPolicy  string
)

// calculateCmd computes the margin of one pharmacy
var calculateCmd = &cobra.Command{
	Use:     "calculate",
	Aliases: []string{"calc"},
	Short:   "Compare historical and projected rebate rates for one pharmacy",
	Long: `Compute the weighted rebate rate of the current purchases, the blended rate
of the two-supplier projection and the delta between them.

Amounts accept a decimal comma. A cluster or supply mode missing from the grid,
or an allocation summing to zero, produces an empty report rather than an error.

Examples:
  pharma-margin calculate --cluster Aprium --supply Direct --alloc NESTLE=5000,LACTALIS=3000,NUTRICIA=2000
  pharma-margin calculate -c Aprium -m Grossiste --alloc NESTLE=7500.5 --policy blended_total --format markdown`,
	Args: cobra.NoArgs,
	RunE: runCalculate,
}

func init() {
	rootCmd.AddCommand(calculateCmd)

	calculateCmd.Flags().StringVarP(&calcCluster, "cluster", "c", "", "pharmacy cluster [REQUIRED]")
	calculateCmd.Flags().StringVarP(&calcSupply, "supply", "m", "", "supply mode, e.g. Direct or Grossiste [REQUIRED]")
	calculateCmd.Flags().StringToStringVarP(&calcAlloc, "alloc", "a", nil, "purchases per supplier, e.g. NESTLE=5000,LACTALIS=3000")
	calculateCmd.Flags().StringVarP(&calcFormat, "format", "f", "", "output format (cli, json, markdown, html)")
	calculateCmd.Flags().StringVar(&calcPolicy, "policy", "", "historical policy (per_supplier, blended_total)")

	calculateCmd.MarkFlagRequired("cluster")
	calculateCmd.MarkFlagRequired("supply")
}

func runCalculate(cmd *cobra.Command, args []string) error {
	started := time.Now()
	log := logging.Named("cli")

	a, err := newApp(config.Get())
	if err != nil {
		return err
	}
	f, err := a.formatter(calcFormat)
	if err != nil {
		return err
	}
	opts, err := a.calculatorOptions(calcPolicy)
	if err != nil {
		return err
	}
	calc, err := margin.NewCalculator(opts)
	if err != nil {
		return err
	}

	alloc, err := types.ParseAllocation(calcAlloc)
	if err != nil {
		return err
	}

	table, err := a.table(cmd.Context(), sourcePath)
	if err != nil {
		return err
	}

	profile := types.NewPharmacyProfile(calcCluster, calcSupply)
	res, err := calc.Calculate(table, profile, alloc)
	md := output.NewMetadata(table, started, Version)
	if err != nil {
		if !rejectable(err) {
			return err
		}
		log.Info("calculation rejected",
			zap.String("request_id", md.RequestID),
			zap.String("profile", profile.String()),
			zap.Error(err))
		return f.Render(cmd.OutOrStdout(), output.Rejected(err, md))
	}

	log.Debug("calculation done",
		zap.String("request_id", md.RequestID),
		zap.String("table", string(table.ID)),
		zap.String("delta", res.Delta.String()))
	return f.Render(cmd.OutOrStdout(), &output.Report{Result: res, Metadata: md})
}

// rejectable errors render as an empty report and a zero exit status
func rejectable(err error) bool {
	return errors.IsType(err, errors.TypeProfileNotFound) || errors.IsType(err, errors.TypeZeroAllocation)
}
