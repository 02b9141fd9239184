// Package scenario reads batch calculation files written in HCL.
//
//	source = "grille_remises.csv"
//
//	scenario "aprium-direct" {
//	  cluster     = "Aprium"
//	  supply_mode = "Direct"
//	  purchases = {
//	    NESTLE   = 5000
//	    LACTALIS = 3000
//	  }
//	}
package scenario

import (
	"fmt"
	"os"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"pharma-margin/core/types"
	"pharma-margin/internal/errors"
)

type fileSchema struct {
	Source    string        `hcl:"source,optional"`
	Scenarios []blockSchema `hcl:"scenario,block"`
}

type blockSchema struct {
	Name       string            `hcl:"name,label"`
	Cluster    string            `hcl:"cluster"`
	SupplyMode string            `hcl:"supply_mode"`
	Purchases  map[string]string `hcl:"purchases"`
	Historical *string           `hcl:"historical_policy,optional"`
}

// Scenario is one profile and allocation to evaluate
type Scenario struct {
	Name       string
	Profile    types.PharmacyProfile
	Allocation types.PurchaseAllocation

	// Historical overrides the configured historical policy when set
	Historical string
}

// File is a parsed batch file
type File struct {
	Path string

	// Source is the rate table named by the file, if any
	Source    string
	Scenarios []Scenario
}

// Load parses a batch file from disk
func Load(path string) (*File, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Newf(errors.TypeInput, "scenario file %s not found", path)
		}
		return nil, errors.Internal("read scenario file", err)
	}
	return Parse(src, path)
}

// Parse decodes batch file contents
func Parse(src []byte, filename string) (*File, error) {
	parser := hclparse.NewParser()
	f, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, diagError(filename, diags)
	}

	var raw fileSchema
	if diags := gohcl.DecodeBody(f.Body, nil, &raw); diags.HasErrors() {
		return nil, diagError(filename, diags)
	}

	out := &File{Path: filename, Source: strings.TrimSpace(raw.Source)}
	seen := make(map[string]bool, len(raw.Scenarios))
	for _, b := range raw.Scenarios {
		if seen[b.Name] {
			return nil, errors.Newf(errors.TypeInput, "%s: duplicate scenario %q", filename, b.Name)
		}
		seen[b.Name] = true

		sc, err := b.scenario()
		if err != nil {
			return nil, errors.Wrapf(errors.TypeInput, err, "%s: scenario %q", filename, b.Name)
		}
		out.Scenarios = append(out.Scenarios, sc)
	}
	if len(out.Scenarios) == 0 {
		return nil, errors.Newf(errors.TypeInput, "%s: no scenario blocks", filename)
	}
	return out, nil
}

func (b blockSchema) scenario() (Scenario, error) {
	profile := types.NewPharmacyProfile(b.Cluster, b.SupplyMode)
	if err := profile.Validate(); err != nil {
		return Scenario{}, err
	}
	alloc, err := types.ParseAllocation(b.Purchases)
	if err != nil {
		return Scenario{}, err
	}

	sc := Scenario{Name: b.Name, Profile: profile, Allocation: alloc}
	if b.Historical != nil {
		sc.Historical = strings.TrimSpace(*b.Historical)
	}
	return sc, nil
}

// diagError keeps the first error diagnostic with its position
func diagError(filename string, diags hcl.Diagnostics) error {
	for _, diag := range diags {
		if diag.Severity != hcl.DiagError {
			continue
		}
		line := 0
		if diag.Subject != nil {
			line = diag.Subject.Start.Line
		}
		return errors.New(errors.TypeParsing, fmt.Sprintf("%s:%d: %s: %s", filename, line, diag.Summary, diag.Detail)).
			WithContext("line", line)
	}
	return errors.Wrap(errors.TypeParsing, filename, diags)
}
