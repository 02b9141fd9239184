package cmd

import (
	"context"
	"io"

	"pharma-margin/core/ingestion"
	"pharma-margin/core/margin"
	"pharma-margin/core/output"
	"pharma-margin/core/pricing"
	"pharma-margin/core/ui"
	"pharma-margin/internal/config"
)

// app wires configuration into the components one command needs
type app struct {
	cfg       *config.Config
	lifecycle *ingestion.Lifecycle
	cache     *pricing.TableCache
}

func newApp(cfg *config.Config) (*app, error) {
	opts, err := cfg.IngestionOptions()
	if err != nil {
		return nil, err
	}
	lc := ingestion.NewLifecycle(opts)
	return &app{
		cfg:       cfg,
		lifecycle: lc,
		cache:     pricing.NewTableCache(lc, cfg.CachePolicy()),
	}, nil
}

// locate resolves the rate file; explicit wins over the configured search
func (a *app) locate(explicit string) (string, error) {
	loc := a.cfg.Locator()
	if explicit != "" {
		loc.Path = explicit
	}
	return loc.Locate()
}

func (a *app) table(ctx context.Context, explicit string) (*pricing.RateTable, error) {
	path, err := a.locate(explicit)
	if err != nil {
		return nil, err
	}
	return a.cache.Get(ctx, path)
}

// calculatorOptions applies a --policy override to the configured options
func (a *app) calculatorOptions(policy string) (margin.Options, error) {
	opts, err := a.cfg.MarginOptions()
	if err != nil {
		return opts, err
	}
	if policy != "" {
		p, err := margin.HistoricalPolicyByName(policy)
		if err != nil {
			return opts, err
		}
		opts.Historical = p
	}
	return opts, nil
}

func (a *app) formatter(format string) (output.Formatter, error) {
	if format == "" {
		format = a.cfg.Output.Format
	}
	return output.NewRegistry(a.cfg.Output.NoColor).Get(output.Format(format))
}

func (a *app) writer(w io.Writer) *ui.Writer {
	uw := ui.NewWriter(w, a.cfg.Output.NoColor)
	if verbose {
		uw.SetVerbosity(2)
	}
	return uw
}
