// Package config provides configuration management.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/caarlos0/env/v9"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v2"

	"pharma-margin/core/ingestion"
	"pharma-margin/core/margin"
	"pharma-margin/core/output"
	"pharma-margin/core/pricing"
	"pharma-margin/core/types"
	"pharma-margin/internal/errors"
	"pharma-margin/internal/logging"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "PHARMA_MARGIN_"

// Config is the main application configuration
type Config struct {
	// Version is the configuration version
	Version string `json:"version" yaml:"version"`

	// Source says where the rate grid lives
	Source SourceConfig `json:"source" yaml:"source" envPrefix:"SOURCE_"`

	// Ingest drives format sniffing
	Ingest IngestConfig `json:"ingest" yaml:"ingest" envPrefix:"INGEST_"`

	// Rates drives rate cell coercion
	Rates RatesConfig `json:"rates" yaml:"rates" envPrefix:"RATES_"`

	// Schema names the supplier columns
	Schema SchemaConfig `json:"schema" yaml:"schema" envPrefix:"SCHEMA_"`

	// Projection configures the two-supplier projection
	Projection ProjectionConfig `json:"projection" yaml:"projection" envPrefix:"PROJECTION_"`

	// Cache configures rate table reuse
	Cache CacheConfig `json:"cache" yaml:"cache" envPrefix:"CACHE_"`

	// Display is carried for the presentation layer only
	Display DisplayConfig `json:"display" yaml:"display" envPrefix:"DISPLAY_"`

	// Output contains output configuration
	Output OutputConfig `json:"output" yaml:"output" envPrefix:"OUTPUT_"`

	// Logging contains logging configuration
	Logging logging.Config `json:"logging" yaml:"logging" envPrefix:"LOG_"`
}

// SourceConfig locates the rate file
type SourceConfig struct {
	// Path, when set, disables the search
	Path string `json:"path" yaml:"path" env:"PATH"`

	// Candidates are tried in order in each search directory
	Candidates []string `json:"candidates" yaml:"candidates" env:"CANDIDATES"`

	SearchDirs []string `json:"search_dirs" yaml:"search_dirs" env:"SEARCH_DIRS"`

	// Patterns are glob fallbacks filtered by Keywords
	Patterns []string `json:"patterns" yaml:"patterns" env:"PATTERNS"`
	Keywords []string `json:"keywords" yaml:"keywords" env:"KEYWORDS"`
}

// IngestConfig contains sniffing settings
type IngestConfig struct {
	// Encodings are tried in order
	Encodings []string `json:"encodings" yaml:"encodings" env:"ENCODINGS"`

	// Delimiters are single characters; the first wins ties
	Delimiters []string `json:"delimiters" yaml:"delimiters" env:"DELIMITERS" envSeparator:" "`

	ClusterMarker       string `json:"cluster_marker" yaml:"cluster_marker" env:"CLUSTER_MARKER"`
	SupplyMarker        string `json:"supply_marker" yaml:"supply_marker" env:"SUPPLY_MARKER"`
	RequireSupplyMarker bool   `json:"require_supply_marker" yaml:"require_supply_marker" env:"REQUIRE_SUPPLY_MARKER"`
}

// RatesConfig contains rate coercion settings
type RatesConfig struct {
	IneligibleMarker string `json:"ineligible_marker" yaml:"ineligible_marker" env:"INELIGIBLE_MARKER"`

	// IneligibleFallback is a decimal fraction, e.g. "0.12"
	IneligibleFallback string `json:"ineligible_fallback" yaml:"ineligible_fallback" env:"INELIGIBLE_FALLBACK"`

	// MissingPolicy is lenient or strict
	MissingPolicy string `json:"missing_policy" yaml:"missing_policy" env:"MISSING_POLICY"`
}

// SchemaConfig names the rate columns
type SchemaConfig struct {
	Suppliers        []string `json:"suppliers" yaml:"suppliers" env:"SUPPLIERS"`
	ExtendedSupplier string   `json:"extended_supplier" yaml:"extended_supplier" env:"EXTENDED_SUPPLIER"`
	TargetYear       int      `json:"target_year" yaml:"target_year" env:"TARGET_YEAR"`
	ReferenceYear    int      `json:"reference_year" yaml:"reference_year" env:"REFERENCE_YEAR"`
}

// ProjectionConfig contains projection settings
type ProjectionConfig struct {
	Competitors []string `json:"competitors" yaml:"competitors" env:"COMPETITORS"`
	Preferred   string   `json:"preferred" yaml:"preferred" env:"PREFERRED"`

	// WinnerShare is a decimal fraction in (0.5, 1]
	WinnerShare string `json:"winner_share" yaml:"winner_share" env:"WINNER_SHARE"`

	HistoricalPolicy string `json:"historical_policy" yaml:"historical_policy" env:"HISTORICAL_POLICY"`
}

// CacheConfig contains cache-related settings
type CacheConfig struct {
	// Refresh is on_change or on_restart
	Refresh string `json:"refresh" yaml:"refresh" env:"REFRESH"`
}

// DisplayConfig contains presentation settings
type DisplayConfig struct {
	Title    string `json:"title" yaml:"title" env:"TITLE"`
	LogoPath string `json:"logo_path" yaml:"logo_path" env:"LOGO_PATH"`
}

// OutputConfig contains output-related settings
type OutputConfig struct {
	// Format is the default output format
	Format  string `json:"format" yaml:"format" env:"FORMAT"`
	NoColor bool   `json:"no_color" yaml:"no_color" env:"NO_COLOR"`
}

// Default returns a default configuration
func Default() *Config {
	ing := ingestion.DefaultOptions()
	loc := ingestion.DefaultLocator()
	proj := margin.DefaultProjectionPolicy()

	encodings := make([]string, 0, len(ing.Encodings))
	for _, e := range ing.Encodings {
		encodings = append(encodings, e.Name)
	}
	delimiters := make([]string, 0, len(ing.Delimiters))
	for _, d := range ing.Delimiters {
		delimiters = append(delimiters, string(d))
	}
	suppliers := make([]string, 0, len(ing.Schema.Suppliers))
	for _, s := range ing.Schema.Suppliers {
		suppliers = append(suppliers, string(s))
	}

	return &Config{
		Version: "1.0",
		Source: SourceConfig{
			Candidates: loc.Candidates,
			SearchDirs: loc.SearchDirs,
			Patterns:   loc.Patterns,
			Keywords:   loc.Keywords,
		},
		Ingest: IngestConfig{
			Encodings:           encodings,
			Delimiters:          delimiters,
			ClusterMarker:       ing.ClusterMarker,
			SupplyMarker:        ing.SupplyMarker,
			RequireSupplyMarker: ing.RequireSupplyMarker,
		},
		Rates: RatesConfig{
			IneligibleMarker:   ing.Rates.IneligibleMarker,
			IneligibleFallback: ing.Rates.IneligibleFallback.String(),
			MissingPolicy:      string(ing.Rates.Missing),
		},
		Schema: SchemaConfig{
			Suppliers:        suppliers,
			ExtendedSupplier: string(ing.Schema.ExtraSupplier),
			TargetYear:       ing.Schema.CurrentYear,
			ReferenceYear:    ing.Schema.PriorYear,
		},
		Projection: ProjectionConfig{
			Competitors:      []string{string(proj.Competitors[0]), string(proj.Competitors[1])},
			Preferred:        string(proj.Preferred),
			WinnerShare:      proj.WinnerShare.String(),
			HistoricalPolicy: margin.PerSupplier{}.Name(),
		},
		Cache: CacheConfig{
			Refresh: string(pricing.RefreshOnChange),
		},
		Display: DisplayConfig{
			Title: "Simulateur de marge",
		},
		Output: OutputConfig{
			Format: string(output.FormatCLI),
		},
		Logging: logging.DefaultConfig(),
	}
}

// DefaultPath is the config file used when none is given
func DefaultPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".pharma-margin.yaml"
	}
	return filepath.Join(homeDir, ".pharma-margin.yaml")
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// Load loads configuration from a file. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, errors.Wrapf(errors.TypeConfig, err, "read config %s", path)
	}

	config := Default()
	if isYAML(path) {
		err = yaml.Unmarshal(data, config)
	} else {
		err = json.Unmarshal(data, config)
	}
	if err != nil {
		return nil, errors.Wrapf(errors.TypeConfig, err, "parse config %s", path)
	}

	return config, nil
}

// ApplyEnv overrides fields from PHARMA_MARGIN_* variables
func (c *Config) ApplyEnv() error {
	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix}); err != nil {
		return errors.Wrap(errors.TypeConfig, "environment overrides", err)
	}
	return nil
}

// Resolve loads path, applies the environment and validates the result
func Resolve(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save saves configuration to a file
func (c *Config) Save(path string) error {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	var data []byte
	var err error
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Validate rejects settings no component could run with
func (c *Config) Validate() error {
	if _, err := c.IngestionOptions(); err != nil {
		return err
	}
	if _, err := c.MarginOptions(); err != nil {
		return err
	}
	if !pricing.RefreshPolicy(c.Cache.Refresh).Valid() {
		return errors.Newf(errors.TypeConfig, "cache.refresh must be on_change or on_restart, got %q", c.Cache.Refresh)
	}
	switch output.Format(c.Output.Format) {
	case output.FormatCLI, output.FormatJSON, output.FormatMarkdown, output.FormatHTML:
	default:
		return errors.Newf(errors.TypeConfig, "unknown output.format %q", c.Output.Format)
	}
	return nil
}

// IngestionOptions converts the ingest, rates and schema sections
func (c *Config) IngestionOptions() (ingestion.Options, error) {
	opts := ingestion.DefaultOptions()

	if len(c.Ingest.Encodings) == 0 {
		return opts, errors.Config("ingest.encodings is empty")
	}
	opts.Encodings = opts.Encodings[:0:0]
	for _, name := range c.Ingest.Encodings {
		enc, err := ingestion.LookupEncoding(name)
		if err != nil {
			return opts, errors.Wrap(errors.TypeConfig, "ingest.encodings", err)
		}
		opts.Encodings = append(opts.Encodings, enc)
	}

	if len(c.Ingest.Delimiters) == 0 {
		return opts, errors.Config("ingest.delimiters is empty")
	}
	opts.Delimiters = opts.Delimiters[:0:0]
	for _, d := range c.Ingest.Delimiters {
		if utf8.RuneCountInString(d) != 1 {
			return opts, errors.Newf(errors.TypeConfig, "delimiter %q must be a single character", d)
		}
		r, _ := utf8.DecodeRuneInString(d)
		opts.Delimiters = append(opts.Delimiters, r)
	}

	if strings.TrimSpace(c.Ingest.ClusterMarker) == "" {
		return opts, errors.Config("ingest.cluster_marker is empty")
	}
	opts.ClusterMarker = strings.ToUpper(c.Ingest.ClusterMarker)
	opts.SupplyMarker = strings.ToUpper(c.Ingest.SupplyMarker)
	opts.RequireSupplyMarker = c.Ingest.RequireSupplyMarker

	fallback, err := decimal.NewFromString(strings.TrimSpace(c.Rates.IneligibleFallback))
	if err != nil {
		return opts, errors.Wrapf(errors.TypeConfig, err, "rates.ineligible_fallback %q", c.Rates.IneligibleFallback)
	}
	policy := ingestion.MissingPolicy(c.Rates.MissingPolicy)
	if !policy.Valid() {
		return opts, errors.Newf(errors.TypeConfig, "rates.missing_policy must be lenient or strict, got %q", c.Rates.MissingPolicy)
	}
	opts.Rates = ingestion.RatePolicy{
		IneligibleMarker:   c.Rates.IneligibleMarker,
		IneligibleFallback: fallback,
		Missing:            policy,
	}

	if len(c.Schema.Suppliers) == 0 {
		return opts, errors.Config("schema.suppliers is empty")
	}
	suppliers := make([]types.Supplier, 0, len(c.Schema.Suppliers))
	seen := make(map[types.Supplier]bool)
	for _, raw := range c.Schema.Suppliers {
		s := types.ParseSupplier(raw)
		if s == "" || seen[s] {
			return opts, errors.Newf(errors.TypeConfig, "schema.suppliers has an empty or repeated entry %q", raw)
		}
		seen[s] = true
		suppliers = append(suppliers, s)
	}
	if c.Schema.TargetYear <= 0 || c.Schema.ReferenceYear <= 0 || c.Schema.TargetYear == c.Schema.ReferenceYear {
		return opts, errors.Newf(errors.TypeConfig, "schema years must be distinct and positive, got %d and %d",
			c.Schema.TargetYear, c.Schema.ReferenceYear)
	}
	opts.Schema = ingestion.SchemaOptions{
		Suppliers:     suppliers,
		ExtraSupplier: types.ParseSupplier(c.Schema.ExtendedSupplier),
		CurrentYear:   c.Schema.TargetYear,
		PriorYear:     c.Schema.ReferenceYear,
	}

	return opts, nil
}

// Locator converts the source section
func (c *Config) Locator() *ingestion.Locator {
	return &ingestion.Locator{
		Path:       c.Source.Path,
		Candidates: c.Source.Candidates,
		SearchDirs: c.Source.SearchDirs,
		Patterns:   c.Source.Patterns,
		Keywords:   c.Source.Keywords,
	}
}

// MarginOptions converts the projection and schema sections
func (c *Config) MarginOptions() (margin.Options, error) {
	opts := margin.DefaultOptions()

	historical, err := margin.HistoricalPolicyByName(c.Projection.HistoricalPolicy)
	if err != nil {
		return opts, err
	}
	opts.Historical = historical

	if len(c.Projection.Competitors) != 2 {
		return opts, errors.Newf(errors.TypeConfig, "projection.competitors needs exactly two suppliers, got %d",
			len(c.Projection.Competitors))
	}
	share, err := decimal.NewFromString(strings.TrimSpace(c.Projection.WinnerShare))
	if err != nil {
		return opts, errors.Wrapf(errors.TypeConfig, err, "projection.winner_share %q", c.Projection.WinnerShare)
	}
	opts.Projection = margin.ProjectionPolicy{
		Competitors: [2]types.Supplier{
			types.ParseSupplier(c.Projection.Competitors[0]),
			types.ParseSupplier(c.Projection.Competitors[1]),
		},
		Preferred:   types.ParseSupplier(c.Projection.Preferred),
		WinnerShare: share,
	}
	if err := opts.Projection.Validate(); err != nil {
		return opts, err
	}

	opts.TargetYear = c.Schema.TargetYear
	opts.ReferenceYear = c.Schema.ReferenceYear
	return opts, nil
}

// CachePolicy converts the cache section
func (c *Config) CachePolicy() pricing.CachePolicy {
	return pricing.CachePolicy{Refresh: pricing.RefreshPolicy(c.Cache.Refresh)}
}

// Global configuration instance
var globalConfig = Default()

// Get returns the global configuration
func Get() *Config {
	return globalConfig
}

// Set sets the global configuration
func Set(config *Config) {
	globalConfig = config
}
