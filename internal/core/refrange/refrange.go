// Package refrange holds the fixed CBC reference ranges used for
// deterministic out-of-range flagging. Ranges are data, not model output:
// abnormality detection must not depend on LLM nondeterminism.
package refrange

import (
	_ "embed"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hemolens/cbc-advisor/internal/core/domain"
)

//go:embed ranges.yaml
var defaultRanges []byte

type Range struct {
	Parameter string   `yaml:"parameter"`
	Unit      string   `yaml:"unit"`
	Low       float64  `yaml:"low"`
	High      float64  `yaml:"high"`
	Aliases   []string `yaml:"aliases"`
}

// Flag classifies a value against the range.
func (r Range) Flag(value float64) domain.FlagState {
	switch {
	case value < r.Low:
		return domain.FlagLow
	case value > r.High:
		return domain.FlagHigh
	default:
		return domain.FlagNormal
	}
}

type Table struct {
	byName map[string]Range
}

// Load reads a range table from YAML. Every parameter and alias becomes a
// case-insensitive lookup key.
func Load(r io.Reader) (*Table, error) {
	var doc struct {
		Ranges []Range `yaml:"ranges"`
	}
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode reference ranges: %w", err)
	}
	if len(doc.Ranges) == 0 {
		return nil, fmt.Errorf("reference range table is empty")
	}

	byName := make(map[string]Range, len(doc.Ranges)*2)
	for _, rng := range doc.Ranges {
		if rng.Parameter == "" {
			return nil, fmt.Errorf("reference range with empty parameter name")
		}
		if rng.High <= rng.Low {
			return nil, fmt.Errorf("reference range for %s: high %.2f <= low %.2f", rng.Parameter, rng.High, rng.Low)
		}
		byName[normalizeKey(rng.Parameter)] = rng
		for _, alias := range rng.Aliases {
			byName[normalizeKey(alias)] = rng
		}
	}
	return &Table{byName: byName}, nil
}

// Default returns the embedded range table.
func Default() *Table {
	table, err := Load(strings.NewReader(string(defaultRanges)))
	if err != nil {
		// The embedded table is validated by tests; a decode failure here is
		// a build defect, not a runtime condition.
		panic(fmt.Sprintf("embedded reference ranges invalid: %v", err))
	}
	return table
}

// Lookup finds the range for a parameter name or alias.
func (t *Table) Lookup(name string) (Range, bool) {
	rng, ok := t.byName[normalizeKey(name)]
	return rng, ok
}

func normalizeKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, ".", "")
	s = strings.Join(strings.Fields(s), " ")
	return s
}
