/*
Package factory provides JSON and TOML to Go budget configuration conversion.

PURPOSE:
  Converts configuration definitions into budget.BudgetConfiguration values.
  Planners define reusable percentage templates either through the API (JSON)
  or in a preset file loaded at startup (TOML); both go through the same
  validation before anything is stored.

JSON SCHEMA:
  {
    "id": "q1-push",
    "name": "Q1 push",
    "percentages": {"S1": 40, "S2": 35.5, "S3": 24.5}
  }

TOML PRESET FILE:
  [[preset]]
  id = "q1-push"
  name = "Q1 push"
  [preset.percentages]
  S1 = 40
  S2 = 35.5
  S3 = 24.5

  [[preset]]
  id = "summer-bell"
  name = "Summer bell"
  shape = "bell-curve"   # any non-manual strategy
  first_week = 23
  weeks = 10

  A shaped preset is generated by distributing 100 over the weeks with the
  named strategy, so its percentages carry two decimals and total exactly 100.

VALIDATION:
  - name is required
  - every key is a week label S1..S52
  - no negative percentage
  - total within 0.01 of 100 (budget.PercentageTotalError otherwise)

USAGE:
  f := NewConfigurationFactory()
  cfg, err := f.ParseConfiguration(jsonString)

  presets, err := f.LoadPresets("./presets.toml")

SEE ALSO:
  - budget/types.go: BudgetConfiguration
  - budget/distribution.go: DistributeWithConfiguration
*/
package factory

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/media-budget/budget"
)

// =============================================================================
// SCHEMA TYPES
// =============================================================================

// ConfigurationJSON is the JSON representation of a configuration.
type ConfigurationJSON struct {
	ID          string                     `json:"id"`
	Name        string                     `json:"name"`
	Percentages map[string]decimal.Decimal `json:"percentages"`
}

// PresetFile is the top level of a TOML preset file.
type PresetFile struct {
	Presets []PresetTOML `toml:"preset"`
}

// PresetTOML is one preset: explicit percentages, or a shape over a week range.
type PresetTOML struct {
	ID          string             `toml:"id"`
	Name        string             `toml:"name"`
	Percentages map[string]float64 `toml:"percentages,omitempty"`
	Shape       string             `toml:"shape,omitempty"`
	FirstWeek   int                `toml:"first_week,omitempty"`
	Weeks       int                `toml:"weeks,omitempty"`
}

// =============================================================================
// CONFIGURATION FACTORY
// =============================================================================

// ConfigurationFactory converts configuration definitions to budget values.
type ConfigurationFactory struct{}

// NewConfigurationFactory creates a new configuration factory.
func NewConfigurationFactory() *ConfigurationFactory {
	return &ConfigurationFactory{}
}

// ParseConfiguration parses a JSON string into a BudgetConfiguration.
func (f *ConfigurationFactory) ParseConfiguration(jsonStr string) (*budget.BudgetConfiguration, error) {
	var cj ConfigurationJSON
	if err := json.Unmarshal([]byte(jsonStr), &cj); err != nil {
		return nil, fmt.Errorf("failed to parse configuration JSON: %w", err)
	}
	return f.FromJSON(cj)
}

// FromJSON validates cj and converts it. A missing ID gets a fresh UUID.
func (f *ConfigurationFactory) FromJSON(cj ConfigurationJSON) (*budget.BudgetConfiguration, error) {
	name := strings.TrimSpace(cj.Name)
	if name == "" {
		return nil, errors.New("configuration name is required")
	}
	pcts, err := normalizePercentages(cj.Percentages)
	if err != nil {
		return nil, err
	}

	id := strings.TrimSpace(cj.ID)
	if id == "" {
		id = uuid.NewString()
	}
	return &budget.BudgetConfiguration{
		ID:          budget.ConfigurationID(id),
		Name:        name,
		Percentages: pcts,
	}, nil
}

// ToJSON converts a BudgetConfiguration to ConfigurationJSON.
func (f *ConfigurationFactory) ToJSON(cfg budget.BudgetConfiguration) ConfigurationJSON {
	return ConfigurationJSON{
		ID:          string(cfg.ID),
		Name:        cfg.Name,
		Percentages: cfg.Percentages.Clone(),
	}
}

// =============================================================================
// TOML PRESETS
// =============================================================================

// LoadPresets reads a TOML preset file. A missing file yields no presets.
func (f *ConfigurationFactory) LoadPresets(path string) ([]budget.BudgetConfiguration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading presets: %w", err)
	}
	return f.ParsePresets(data)
}

// ParsePresets decodes TOML preset data. Every preset must validate; the
// first failure names the offending preset.
func (f *ConfigurationFactory) ParsePresets(data []byte) ([]budget.BudgetConfiguration, error) {
	var file PresetFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing presets: %w", err)
	}

	out := make([]budget.BudgetConfiguration, 0, len(file.Presets))
	seen := make(map[string]bool, len(file.Presets))
	for i, p := range file.Presets {
		cfg, err := f.fromPreset(p)
		if err != nil {
			return nil, fmt.Errorf("preset %d (%q): %w", i+1, p.Name, err)
		}
		if seen[string(cfg.ID)] {
			return nil, fmt.Errorf("preset %d (%q): duplicate id %q", i+1, p.Name, cfg.ID)
		}
		seen[string(cfg.ID)] = true
		out = append(out, *cfg)
	}
	return out, nil
}

// EncodePresets writes configurations as a TOML preset file with explicit
// percentages.
func (f *ConfigurationFactory) EncodePresets(w io.Writer, cfgs []budget.BudgetConfiguration) error {
	file := PresetFile{Presets: make([]PresetTOML, 0, len(cfgs))}
	for _, cfg := range cfgs {
		p := PresetTOML{
			ID:          string(cfg.ID),
			Name:        cfg.Name,
			Percentages: make(map[string]float64, len(cfg.Percentages)),
		}
		for week, v := range cfg.Percentages {
			p.Percentages[week] = v.InexactFloat64()
		}
		file.Presets = append(file.Presets, p)
	}
	return toml.NewEncoder(w).Encode(file)
}

func (f *ConfigurationFactory) fromPreset(p PresetTOML) (*budget.BudgetConfiguration, error) {
	if p.Shape == "" {
		pcts := make(map[string]decimal.Decimal, len(p.Percentages))
		for week, v := range p.Percentages {
			pcts[week] = decimal.NewFromFloat(v)
		}
		return f.FromJSON(ConfigurationJSON{ID: p.ID, Name: p.Name, Percentages: pcts})
	}

	strategy, err := budget.ParseStrategy(p.Shape)
	if err != nil {
		return nil, err
	}
	cfg, err := ShapedConfiguration(p.ID, p.Name, strategy, p.FirstWeek, p.Weeks)
	if err != nil {
		return nil, err
	}
	return f.FromJSON(f.ToJSON(*cfg))
}

// =============================================================================
// BUILT-IN SHAPES
// =============================================================================

// ShapedConfiguration builds a configuration by distributing 100 percent over
// weeks firstWeek..firstWeek+weeks-1 with a non-manual strategy.
func ShapedConfiguration(id, name string, strategy budget.DistributionStrategy, firstWeek, weeks int) (*budget.BudgetConfiguration, error) {
	if strategy.RequiresPercentages() {
		return nil, fmt.Errorf("%w: shape %q needs explicit percentages", budget.ErrUnknownStrategy, strategy)
	}
	if weeks < 1 || firstWeek < 1 || firstWeek+weeks-1 > budget.WeeksPerYear {
		return nil, fmt.Errorf("week range S%d+%d is outside S1..S%d", firstWeek, weeks, budget.WeeksPerYear)
	}

	labels := make([]string, weeks)
	for i := range labels {
		labels[i] = budget.WeekLabel(firstWeek + i)
	}
	pcts, err := budget.Distribute(decimal.NewFromInt(100), labels, strategy, nil)
	if err != nil {
		return nil, err
	}
	return &budget.BudgetConfiguration{
		ID:          budget.ConfigurationID(id),
		Name:        name,
		Percentages: pcts,
	}, nil
}

// BuiltinPresets returns the shapes available without a preset file.
func BuiltinPresets() []budget.BudgetConfiguration {
	specs := []struct {
		id, name string
		strategy budget.DistributionStrategy
		first, n int
	}{
		{"builtin-even-q1", "Even Q1", budget.StrategyEven, 1, 13},
		{"builtin-launch-burst", "Launch burst (8 weeks)", budget.StrategyFrontLoaded, 1, 8},
		{"builtin-summer-bell", "Summer bell curve", budget.StrategyBellCurve, 23, 12},
		{"builtin-holiday-ramp", "Holiday ramp", budget.StrategyBackLoaded, 40, 13},
	}

	out := make([]budget.BudgetConfiguration, 0, len(specs))
	for _, s := range specs {
		cfg, err := ShapedConfiguration(s.id, s.name, s.strategy, s.first, s.n)
		if err != nil {
			panic(fmt.Sprintf("builtin preset %s: %v", s.id, err))
		}
		out = append(out, *cfg)
	}
	return out
}

// =============================================================================
// VALIDATION HELPERS
// =============================================================================

func normalizePercentages(in map[string]decimal.Decimal) (budget.WeekAmounts, error) {
	if len(in) == 0 {
		return nil, budget.ErrMissingPercentages
	}
	out := make(budget.WeekAmounts, len(in))
	for week, v := range in {
		label := strings.ToUpper(strings.TrimSpace(week))
		if _, err := budget.ParseWeekLabel(label); err != nil {
			return nil, err
		}
		if v.IsNegative() {
			return nil, fmt.Errorf("%w: %s is %s", budget.ErrNegativePercentage, label, v)
		}
		if _, dup := out[label]; dup {
			return nil, fmt.Errorf("week %s listed twice", label)
		}
		out[label] = v
	}
	if check := budget.ValidateTotal(out); !check.Valid {
		return nil, &budget.PercentageTotalError{Total: check.Total}
	}
	return out, nil
}
