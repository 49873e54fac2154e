// Package formula keeps derived columns consistent: it maintains the
// dependency graph over named columns, evaluates arithmetic and lookup
// formulas, and cascades recalculation when a formula column feeds another.
package formula

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"mdsheet/engine/internal/model"
)

// NotApplicable is the sentinel a formula resolves to when it cannot be
// evaluated for a row. Evaluation failures never abort recalculation.
const NotApplicable = "N/A"

const (
	KindArithmetic = "arithmetic"
	KindLookup     = "lookup"

	FunctionExpression = "expression"
	FunctionAggregate  = "aggregate"

	AggregateSum     = "sum"
	AggregateAverage = "average"
	AggregateMin     = "min"
	AggregateMax     = "max"
	AggregateCount   = "count"
)

var (
	ErrInvalidFormula = errors.New("invalid formula")
	ErrUnknownKind    = errors.New("unknown formula kind")
	ErrSourceNotFound = errors.New("lookup source table not found")
)

// Definition is the closed tagged variant for a derived column. Exactly one
// of the two shapes is populated, selected by Kind.
type Definition struct {
	Kind string `json:"kind"`

	// arithmetic
	FunctionType string   `json:"functionType,omitempty"`
	Expression   string   `json:"expression,omitempty"`
	Columns      []string `json:"columns,omitempty"`
	Aggregate    string   `json:"aggregate,omitempty"`

	// lookup
	SourceTableID int    `json:"sourceTableId,omitempty"`
	JoinKeyLocal  string `json:"joinKeyLocal,omitempty"`
	JoinKeyRemote string `json:"joinKeyRemote,omitempty"`
	TargetField   string `json:"targetField,omitempty"`
}

// ExtractColumnRefs returns every bracket-delimited column name in the
// expression, in source order, duplicates included.
func ExtractColumnRefs(expression string) []string {
	var refs []string
	for i := 0; i < len(expression); i++ {
		if expression[i] != '[' {
			continue
		}
		end := -1
		for j := i + 1; j < len(expression); j++ {
			if expression[j] == ']' {
				end = j
				break
			}
		}
		if end < 0 {
			break
		}
		if end > i+1 {
			refs = append(refs, expression[i+1:end])
		}
		i = end
	}
	return refs
}

// Validate checks a definition against the workbook it will run in.
func Validate(def Definition, wb *model.Workbook) error {
	switch def.Kind {
	case KindArithmetic:
		switch def.FunctionType {
		case FunctionExpression, "":
			if def.Expression == "" {
				return fmt.Errorf("%w: empty expression", ErrInvalidFormula)
			}
			if len(ExtractColumnRefs(def.Expression)) == 0 {
				return fmt.Errorf("%w: expression has no column references", ErrInvalidFormula)
			}
		case FunctionAggregate:
			if len(def.Columns) == 0 {
				return fmt.Errorf("%w: aggregate needs at least one column", ErrInvalidFormula)
			}
		default:
			return fmt.Errorf("%w: function type %q", ErrInvalidFormula, def.FunctionType)
		}
		return nil
	case KindLookup:
		if def.SourceTableID < 0 {
			return fmt.Errorf("%w: negative source table id", ErrInvalidFormula)
		}
		if _, _, table := wb.FindTableByID(def.SourceTableID); table == nil {
			return fmt.Errorf("%w: id %d", ErrSourceNotFound, def.SourceTableID)
		}
		if def.JoinKeyLocal == "" || def.JoinKeyRemote == "" || def.TargetField == "" {
			return fmt.Errorf("%w: lookup needs local key, remote key and target field", ErrInvalidFormula)
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, def.Kind)
	}
}

// dependsOn lists the (tableID, columnName) keys whose edits must trigger
// this formula, given the table that owns it.
func (d Definition) dependsOn(ownerID int) []depKey {
	switch d.Kind {
	case KindArithmetic:
		if d.FunctionType == FunctionAggregate {
			keys := make([]depKey, 0, len(d.Columns))
			for _, col := range d.Columns {
				keys = append(keys, depKey{TableID: ownerID, Column: col})
			}
			return keys
		}
		refs := ExtractColumnRefs(d.Expression)
		keys := make([]depKey, 0, len(refs))
		for _, ref := range refs {
			keys = append(keys, depKey{TableID: ownerID, Column: ref})
		}
		return keys
	case KindLookup:
		return []depKey{
			{TableID: ownerID, Column: d.JoinKeyLocal},
			{TableID: d.SourceTableID, Column: d.JoinKeyRemote},
			{TableID: d.SourceTableID, Column: d.TargetField},
		}
	default:
		return nil
	}
}

// Definitions reads the table's formula metadata (visual.formulas, keyed by
// stringified column index).
func Definitions(t *model.Table) map[int]Definition {
	visual := t.Visual(false)
	if visual == nil {
		return nil
	}
	raw, ok := visual["formulas"].(map[string]any)
	if !ok || len(raw) == 0 {
		return nil
	}
	out := make(map[int]Definition, len(raw))
	for strIdx, value := range raw {
		idx, err := strconv.Atoi(strIdx)
		if err != nil || idx < 0 {
			continue
		}
		def, ok := definitionFromAny(value)
		if !ok {
			continue
		}
		out[idx] = def
	}
	return out
}

// SetDefinition persists a formula for a column.
func SetDefinition(t *model.Table, colIdx int, def Definition) {
	visual := t.Visual(true)
	formulas, ok := visual["formulas"].(map[string]any)
	if !ok {
		formulas = map[string]any{}
		visual["formulas"] = formulas
	}
	formulas[strconv.Itoa(colIdx)] = definitionToAny(def)
}

// ClearDefinition removes the formula for a column, if any.
func ClearDefinition(t *model.Table, colIdx int) {
	visual := t.Visual(false)
	if visual == nil {
		return
	}
	if formulas, ok := visual["formulas"].(map[string]any); ok {
		delete(formulas, strconv.Itoa(colIdx))
	}
}

func definitionFromAny(value any) (Definition, bool) {
	if def, ok := value.(Definition); ok {
		return def, true
	}
	data, err := json.Marshal(value)
	if err != nil {
		return Definition{}, false
	}
	var def Definition
	if err := json.Unmarshal(data, &def); err != nil {
		return Definition{}, false
	}
	if def.Kind == "" {
		return Definition{}, false
	}
	return def, true
}

func definitionToAny(def Definition) any {
	data, err := json.Marshal(def)
	if err != nil {
		return def
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return def
	}
	return out
}
