package importer

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// FieldType is the expected data type for a CSV column.
type FieldType int

const (
	FieldText FieldType = iota
	FieldDate
	FieldEnum
	FieldPhone
	FieldPostal
)

// FieldSpec defines resolution and validation rules for one CSV column.
type FieldSpec struct {
	Name       string              // Canonical column name
	Aliases    []string            // Alternate header spellings
	Type       FieldType           // Expected data type
	Required   bool                // Row is skipped when missing or empty
	EnumValues []string            // Valid values for FieldEnum
	Normalizer func(string) string // Optional transformation, applied before validation
}

// Values holds the resolved, normalized cell values for one row, keyed by
// canonical field name. Absent optional fields are absent from the map.
type Values map[string]string

// BuildFunc assembles a Record from resolved values. It may add warnings
// (e.g. for a date resolved via heuristic) alongside a successful record.
type BuildFunc func(vals Values, rowNum int) (Record, []Issue)

// Definition is everything needed to import one entity kind: column specs
// for resolution/validation plus the record builder.
type Definition struct {
	Kind   Kind
	Label  string
	Fields []FieldSpec
	Build  BuildFunc
}

// Columns returns the canonical column names in declaration order.
func (d Definition) Columns() []string {
	cols := make([]string, len(d.Fields))
	for i, f := range d.Fields {
		cols[i] = f.Name
	}
	return cols
}

// HeaderIndex maps canonicalized column names to their position in the row.
type HeaderIndex map[string]int

// NewHeaderIndex builds a HeaderIndex from a header row. Matching is
// case-insensitive and ignores spaces, underscores and hyphens, so
// "Postal Code", "postal_code" and "postalCode" all resolve the same way.
func NewHeaderIndex(headers []string) HeaderIndex {
	idx := make(HeaderIndex, len(headers))
	for i, h := range headers {
		idx[canonicalHeader(h)] = i
	}
	return idx
}

// Lookup resolves a field name or any of its aliases to a column position.
func (idx HeaderIndex) Lookup(name string, aliases ...string) (int, bool) {
	if pos, ok := idx[canonicalHeader(name)]; ok {
		return pos, true
	}
	for _, alias := range aliases {
		if pos, ok := idx[canonicalHeader(alias)]; ok {
			return pos, true
		}
	}
	return 0, false
}

func canonicalHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '_', '-':
			return -1
		}
		return r
	}, h)
}

// Map converts one raw row into a Record or a single error-level Issue.
//
// A row failing a required-field or type check yields exactly one error
// issue and no record; the caller counts it as skipped. Soft concerns yield
// a warning issue and the record is still produced.
func (d Definition) Map(headers HeaderIndex, row []string, rowNum int) (Record, []Issue) {
	vals := make(Values, len(d.Fields))

	for _, spec := range d.Fields {
		pos, ok := headers.Lookup(spec.Name, spec.Aliases...)
		if !ok || pos >= len(row) {
			if spec.Required {
				return nil, []Issue{{
					RowNumber: rowNum,
					Level:     LevelError,
					Field:     spec.Name,
					Message:   fmt.Sprintf("missing required column %q", spec.Name),
				}}
			}
			continue
		}

		raw := strings.TrimSpace(row[pos])
		if raw == "" {
			if spec.Required {
				return nil, []Issue{{
					RowNumber: rowNum,
					Level:     LevelError,
					Field:     spec.Name,
					Message:   fmt.Sprintf("required field %q is empty", spec.Name),
				}}
			}
			continue
		}

		if spec.Normalizer != nil {
			raw = spec.Normalizer(raw)
		}

		if spec.Type == FieldEnum {
			matched := ""
			for _, v := range spec.EnumValues {
				if strings.EqualFold(raw, v) {
					matched = v
					break
				}
			}
			if matched == "" {
				return nil, []Issue{{
					RowNumber:     rowNum,
					Level:         LevelError,
					Field:         spec.Name,
					Message:       fmt.Sprintf("invalid value for %q (expected one of %s)", spec.Name, strings.Join(spec.EnumValues, ", ")),
					OriginalValue: raw,
				}}
			}
			raw = matched
		}

		vals[spec.Name] = raw
	}

	return d.Build(vals, rowNum)
}

var (
	registry   = make(map[Kind]Definition)
	registryMu sync.RWMutex
)

// Register adds a mapper definition to the registry.
// Panics if the kind is already registered.
func Register(def Definition) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[def.Kind]; exists {
		panic(fmt.Sprintf("importer kind already registered: %s", def.Kind))
	}
	registry[def.Kind] = def
}

// Get returns the definition for a kind. Returns false if not registered.
func Get(kind Kind) (Definition, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	def, ok := registry[kind]
	return def, ok
}

// Supported reports whether a kind can be imported. The archive kind is
// accepted at submission even though it has no row mapper of its own.
func Supported(kind Kind) bool {
	if kind == KindArchive {
		return true
	}
	_, ok := Get(kind)
	return ok
}

// All returns every registered definition, sorted by kind.
func All() []Definition {
	registryMu.RLock()
	defer registryMu.RUnlock()

	defs := make([]Definition, 0, len(registry))
	for _, def := range registry {
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Kind < defs[j].Kind })
	return defs
}

// Clear removes all registered definitions. Primarily useful for testing.
func Clear() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[Kind]Definition)
}
