package model

import (
	"encoding/json"
	"errors"
	"fmt"
)

const (
	TabKindSheet    = "sheet"
	TabKindDocument = "document"
)

const (
	metaKeyTabOrder = "tab_order"
	metaKeyTableID  = "id"
	metaKeyVisual   = "visual"
)

var (
	ErrNoWorkbook     = errors.New("no workbook")
	ErrInvalidIndex   = errors.New("invalid index")
	ErrTableNotFound  = errors.New("table not found")
	ErrColumnNotFound = errors.New("column not found")
)

// Workbook is the structured model of the workbook section of the backing
// text. Metadata carries workbook-level settings, most importantly the
// persisted tab order ("tab_order"); an absent tab order means the display
// order is derived from the physical layout.
type Workbook struct {
	Sheets   []Sheet        `json:"sheets"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type Sheet struct {
	Name     string         `json:"name"`
	Tables   []Table        `json:"tables"`
	Metadata map[string]any `json:"metadata,omitempty"`
	// HeaderLine is the physical line of the sheet heading in the backing
	// text. Populated only for state dumps, never persisted.
	HeaderLine int `json:"header_line,omitempty"`
}

type Table struct {
	Name        string         `json:"name,omitempty"`
	Description string         `json:"description,omitempty"`
	Headers     []string       `json:"headers"`
	Rows        [][]string     `json:"rows"`
	Alignments  []string       `json:"alignments,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// TabOrderEntry is one slot of the UI-visible tab sequence.
type TabOrderEntry struct {
	Kind  string `json:"kind"`
	Index int    `json:"index"`
}

// EditSpec is a line-range replacement against the current backing text.
// The range is inclusive of EndLine up to EndCol; multiple specs produced by
// one logical operation must be merged by a Batch, never applied one by one.
type EditSpec struct {
	StartLine int    `json:"startLine"`
	EndLine   int    `json:"endLine"`
	EndCol    int    `json:"endCol,omitempty"`
	Content   string `json:"content"`
	Err       string `json:"error,omitempty"`
}

// CellUpdate reports one recalculated cell for the host grid.
type CellUpdate struct {
	SheetIndex int    `json:"sheet"`
	TableIndex int    `json:"table"`
	Row        int    `json:"row"`
	Col        int    `json:"col"`
	Value      string `json:"value"`
}

// TableID returns the stable table id from metadata, or -1 when unassigned.
func (t *Table) TableID() int {
	if t.Metadata == nil {
		return -1
	}
	return asInt(t.Metadata[metaKeyTableID], -1)
}

func (t *Table) SetTableID(id int) {
	if t.Metadata == nil {
		t.Metadata = map[string]any{}
	}
	t.Metadata[metaKeyTableID] = id
}

// Visual returns the table's visual metadata map, creating it when asked.
func (t *Table) Visual(create bool) map[string]any {
	if t.Metadata == nil {
		if !create {
			return nil
		}
		t.Metadata = map[string]any{}
	}
	visual, ok := t.Metadata[metaKeyVisual].(map[string]any)
	if !ok {
		if !create {
			return nil
		}
		visual = map[string]any{}
		t.Metadata[metaKeyVisual] = visual
	}
	return visual
}

// ColumnIndex resolves a header name to its index, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, h := range t.Headers {
		if h == name {
			return i
		}
	}
	return -1
}

// FindTableByID scans every sheet for the table carrying the given id.
func (w *Workbook) FindTableByID(id int) (sheetIdx, tableIdx int, table *Table) {
	if w == nil || id < 0 {
		return -1, -1, nil
	}
	for si := range w.Sheets {
		for ti := range w.Sheets[si].Tables {
			if w.Sheets[si].Tables[ti].TableID() == id {
				return si, ti, &w.Sheets[si].Tables[ti]
			}
		}
	}
	return -1, -1, nil
}

// NextTableID returns an id one past the highest assigned id, so ids are
// never reused while any table still references them.
func (w *Workbook) NextTableID() int {
	next := 0
	for si := range w.Sheets {
		for ti := range w.Sheets[si].Tables {
			if id := w.Sheets[si].Tables[ti].TableID(); id >= next {
				next = id + 1
			}
		}
	}
	return next
}

// TabOrder returns the persisted tab order, or nil when the display order is
// derived from the physical layout. Values round-tripped through JSON decode
// as []any, so both representations are accepted.
func (w *Workbook) TabOrder() []TabOrderEntry {
	if w.Metadata == nil {
		return nil
	}
	switch v := w.Metadata[metaKeyTabOrder].(type) {
	case []TabOrderEntry:
		out := make([]TabOrderEntry, len(v))
		copy(out, v)
		return out
	case []any:
		out := make([]TabOrderEntry, 0, len(v))
		for _, raw := range v {
			m, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			kind, _ := m["kind"].(string)
			if kind == "" {
				// Older files used "type".
				kind, _ = m["type"].(string)
			}
			out = append(out, TabOrderEntry{Kind: kind, Index: asInt(m["index"], 0)})
		}
		return out
	default:
		return nil
	}
}

func (w *Workbook) SetTabOrder(order []TabOrderEntry) {
	if w.Metadata == nil {
		w.Metadata = map[string]any{}
	}
	stored := make([]TabOrderEntry, len(order))
	copy(stored, order)
	w.Metadata[metaKeyTabOrder] = stored
}

func (w *Workbook) ClearTabOrder() {
	if w.Metadata == nil {
		return
	}
	delete(w.Metadata, metaKeyTabOrder)
}

func (w *Workbook) HasTabOrder() bool {
	return len(w.TabOrder()) > 0
}

// Clone deep-copies the workbook so mutations can be computed fully before
// committing (a failing operation must leave the session state untouched).
func (w *Workbook) Clone() *Workbook {
	if w == nil {
		return nil
	}
	out := &Workbook{
		Sheets:   make([]Sheet, len(w.Sheets)),
		Metadata: cloneMap(w.Metadata),
	}
	for i, s := range w.Sheets {
		cs := Sheet{Name: s.Name, Metadata: cloneMap(s.Metadata), HeaderLine: s.HeaderLine}
		cs.Tables = make([]Table, len(s.Tables))
		for j, t := range s.Tables {
			ct := Table{Name: t.Name, Description: t.Description, Metadata: cloneMap(t.Metadata)}
			ct.Headers = append([]string(nil), t.Headers...)
			ct.Alignments = append([]string(nil), t.Alignments...)
			ct.Rows = make([][]string, len(t.Rows))
			for k, row := range t.Rows {
				ct.Rows[k] = append([]string(nil), row...)
			}
			cs.Tables[j] = ct
		}
		out.Sheets[i] = cs
	}
	return out
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	// Metadata holds only JSON-shaped values, so a marshal round trip is a
	// faithful deep copy. Typed tab order entries survive as []any and are
	// re-read through TabOrder.
	data, err := json.Marshal(m)
	if err != nil {
		out := make(map[string]any, len(m))
		for k, v := range m {
			out[k] = v
		}
		return out
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}

func asInt(v any, fallback int) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i)
		}
	}
	return fallback
}

// EqualOrders reports whether two tab orders are deep-equal.
func EqualOrders(a, b []TabOrderEntry) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (e TabOrderEntry) String() string {
	return fmt.Sprintf("%s:%d", e.Kind, e.Index)
}
