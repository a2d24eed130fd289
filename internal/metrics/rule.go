// Package metrics derives the business-ready metrics layer from
// processed-layer records: time-bucketed grouped summaries, shares,
// running totals and year-over-year growth.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Supported metric functions.
const (
	FnSum        = "sum"
	FnShare      = "share"
	FnCumulative = "cumulative"
	FnYoYGrowth  = "yoy_growth"
)

func validFunction(fn string) bool {
	switch fn {
	case FnSum, FnShare, FnCumulative, FnYoYGrowth:
		return true
	}
	return false
}

// Rule defines one metric: which processed dataset feeds it, how rows
// are grouped, and which function reduces them. Rules are loaded once at
// startup; the rule code doubles as the metrics-layer dataset name.
type Rule struct {
	Code     string `yaml:"code"`
	Source   string `yaml:"source"`
	Function string `yaml:"function"`

	// Category restricts input rows (sum, cumulative, yoy_growth) or
	// selects the share numerator subgroup.
	Category string `yaml:"category"`

	// Output dimensions beyond the period bucket.
	ByRegion   bool `yaml:"by_region"`
	ByCategory bool `yaml:"by_category"`
	BySector   bool `yaml:"by_sector"`

	// WithTotal adds a synthetic "Total" category row per remaining
	// group and period, equal to the sum over the grouped categories.
	WithTotal bool `yaml:"with_total"`

	// RollingMean applies an N-period trailing mean after the function;
	// periods without a full window are omitted.
	RollingMean int `yaml:"rolling_mean"`

	// Scale multiplies every output value, written as a decimal or a
	// ratio ("1/0.036" for terajoules to MWh).
	Scale string `yaml:"scale"`
}

// Validate checks the rule's internal consistency.
func (r Rule) Validate() error {
	if r.Code == "" {
		return fmt.Errorf("rule code must not be empty")
	}
	if r.Source == "" {
		return fmt.Errorf("rule %q: source must not be empty", r.Code)
	}
	if !validFunction(r.Function) {
		return fmt.Errorf("rule %q: unsupported function %q", r.Code, r.Function)
	}
	if r.Function == FnShare && r.Category == "" {
		return fmt.Errorf("rule %q: share requires a category subgroup", r.Code)
	}
	if r.Function == FnShare && r.ByCategory {
		return fmt.Errorf("rule %q: share cannot group by category", r.Code)
	}
	if r.WithTotal && !r.ByCategory {
		return fmt.Errorf("rule %q: with_total requires by_category", r.Code)
	}
	if r.RollingMean < 0 {
		return fmt.Errorf("rule %q: rolling_mean must not be negative", r.Code)
	}
	if _, err := r.scale(); err != nil {
		return err
	}
	return nil
}

// scale parses the Scale expression; empty means 1.
func (r Rule) scale() (decimal.Decimal, error) {
	s := strings.TrimSpace(r.Scale)
	if s == "" {
		return decimal.NewFromInt(1), nil
	}
	if num, den, ok := strings.Cut(s, "/"); ok {
		n, err1 := decimal.NewFromString(strings.TrimSpace(num))
		d, err2 := decimal.NewFromString(strings.TrimSpace(den))
		if err1 != nil || err2 != nil || d.IsZero() {
			return decimal.Decimal{}, fmt.Errorf("rule %q: invalid scale %q", r.Code, r.Scale)
		}
		return n.Div(d), nil
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("rule %q: invalid scale %q", r.Code, r.Scale)
	}
	return v, nil
}

// DefaultRules is the built-in metric set, used when no rule directory
// is configured.
func DefaultRules() []Rule {
	return []Rule{
		{Code: "ev_count", Source: "vehicle_registrations", Function: FnSum, Category: "EV", ByRegion: true},
		{Code: "fleet_electrification", Source: "vehicle_registrations", Function: FnShare, Category: "EV", ByRegion: true},
		{Code: "ev_cumulative", Source: "vehicle_registrations", Function: FnCumulative, Category: "EV", ByRegion: true},
		{Code: "ev_uptake_yoy", Source: "vehicle_registrations", Function: FnYoYGrowth, Category: "EV", ByRegion: true},
		{Code: "gas_connections_monthly", Source: "gas_connections", Function: FnSum, ByRegion: true},
		{Code: "energy_by_fuel_mwh", Source: "energy_by_fuel", Function: FnSum, ByCategory: true, BySector: true, WithTotal: true, Scale: "1/0.036"},
		{Code: "electricity_share", Source: "energy_by_fuel", Function: FnShare, Category: "Electricity"},
		{Code: "renewable_share", Source: "generation", Function: FnShare, Category: "Renewable", ByRegion: true, RollingMean: 12},
	}
}

// LoadRules reads one rule per *.yaml file from dir. A missing directory
// yields the built-in default set; a malformed or duplicate rule is a
// configuration error.
//
// Rule codes must name datasets registered in the metrics layer: the
// builder resolves every code through the registry, so a rules
// directory can redefine the registered metric set but not grow it.
func LoadRules(dir string) ([]Rule, error) {
	if dir == "" {
		return DefaultRules(), nil
	}
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return DefaultRules(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("metric rule dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("metric rule path %q is not a directory", dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading metric rule dir: %w", err)
	}

	var rules []Rule
	seen := make(map[string]bool)
	for _, e := range entries {
		if e.IsDir() || (!strings.HasSuffix(e.Name(), ".yaml") && !strings.HasSuffix(e.Name(), ".yml")) {
			continue
		}

		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading rule file %s: %w", path, err)
		}

		var rule Rule
		if err := yaml.Unmarshal(data, &rule); err != nil {
			return nil, fmt.Errorf("parsing rule file %s: %w", path, err)
		}
		if rule.Code == "" {
			continue // skip empty / comment-only files
		}
		if err := rule.Validate(); err != nil {
			return nil, fmt.Errorf("rule file %s: %w", path, err)
		}
		if seen[rule.Code] {
			return nil, fmt.Errorf("rule %q: duplicate rule code (check multiple YAML files)", rule.Code)
		}
		seen[rule.Code] = true
		rules = append(rules, rule)
	}

	if len(rules) == 0 {
		return DefaultRules(), nil
	}
	return rules, nil
}
