package emission

import (
	_ "embed"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed factors.yaml
var defaultFactorsYAML []byte

// FactorTable is an immutable mapping from (kind, subtype) to kg CO2e per unit.
// The zero value is an empty table. Tables are safe for concurrent reads.
type FactorTable struct {
	rows map[Kind]map[string]float64
}

// DefaultFactors returns the built-in factor table.
func DefaultFactors() FactorTable {
	table, err := ParseFactors(defaultFactorsYAML)
	if err != nil {
		panic(fmt.Sprintf("emission: embedded factor table is invalid: %v", err))
	}
	return table
}

// LoadFactors reads a YAML factor table from path. An empty path yields the default table.
func LoadFactors(path string) (FactorTable, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultFactors(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return FactorTable{}, fmt.Errorf("read factor table: %w", err)
	}
	return ParseFactors(raw)
}

// ParseFactors decodes a YAML document of the form kind -> subtype -> factor.
func ParseFactors(raw []byte) (FactorTable, error) {
	var doc map[string]map[string]float64
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return FactorTable{}, fmt.Errorf("decode factor table: %w", err)
	}
	return NewFactorTable(doc)
}

// NewFactorTable validates and copies the supplied rows into a FactorTable.
func NewFactorTable(rows map[string]map[string]float64) (FactorTable, error) {
	table := FactorTable{rows: make(map[Kind]map[string]float64, len(rows))}
	for rawKind, subtypes := range rows {
		kind, err := ParseKind(rawKind)
		if err != nil {
			return FactorTable{}, err
		}
		row := make(map[string]float64, len(subtypes))
		for subtype, factor := range subtypes {
			key := normalizeSubtype(subtype)
			if key == "" {
				return FactorTable{}, fmt.Errorf("%w: empty subtype under %s", ErrInvalidFactor, kind)
			}
			if factor < 0 || math.IsNaN(factor) || math.IsInf(factor, 0) {
				return FactorTable{}, fmt.Errorf("%w: %s/%s=%v", ErrInvalidFactor, kind, key, factor)
			}
			row[key] = factor
		}
		table.rows[kind] = row
	}
	return table, nil
}

// Factor returns the factor for kind and subtype and whether the row exists.
func (t FactorTable) Factor(kind Kind, subtype string) (float64, bool) {
	row, ok := t.rows[kind]
	if !ok {
		return 0, false
	}
	factor, ok := row[normalizeSubtype(subtype)]
	return factor, ok
}

// Subtypes returns the sorted subtypes known for kind.
func (t FactorTable) Subtypes(kind Kind) []string {
	row := t.rows[kind]
	out := make([]string, 0, len(row))
	for subtype := range row {
		out = append(out, subtype)
	}
	sort.Strings(out)
	return out
}

// Rows returns a deep copy of the table keyed by kind name.
func (t FactorTable) Rows() map[string]map[string]float64 {
	out := make(map[string]map[string]float64, len(t.rows))
	for kind, row := range t.rows {
		copied := make(map[string]float64, len(row))
		for subtype, factor := range row {
			copied[subtype] = factor
		}
		out[string(kind)] = copied
	}
	return out
}

func normalizeSubtype(subtype string) string {
	return strings.ToLower(strings.TrimSpace(subtype))
}
