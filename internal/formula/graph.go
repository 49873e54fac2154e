package formula

import (
	"log/slog"
	"sort"

	"mdsheet/engine/internal/logging"
	"mdsheet/engine/internal/model"
)

// depKey addresses a column that formulas can depend on.
type depKey struct {
	TableID int
	Column  string
}

// node addresses a formula column by its owning table and column index.
type node struct {
	TableID  int
	ColIndex int
}

// Engine owns the dependency graph over formula columns. The graph is
// rebuilt from the workbook after every structural change rather than
// patched incrementally.
type Engine struct {
	graph  map[depKey][]node
	logger *slog.Logger
}

func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Engine{graph: map[depKey][]node{}, logger: logger}
}

// Rebuild scans every table's formula metadata and reconstructs the edge set
// from scratch. Tables without an id cannot participate.
func (e *Engine) Rebuild(wb *model.Workbook) {
	e.graph = map[depKey][]node{}
	if wb == nil {
		return
	}
	for si := range wb.Sheets {
		for ti := range wb.Sheets[si].Tables {
			table := &wb.Sheets[si].Tables[ti]
			id := table.TableID()
			if id < 0 {
				continue
			}
			defs := Definitions(table)
			for _, colIdx := range sortedCols(defs) {
				dependent := node{TableID: id, ColIndex: colIdx}
				seen := map[depKey]bool{}
				for _, key := range defs[colIdx].dependsOn(id) {
					if seen[key] {
						continue
					}
					seen[key] = true
					e.graph[key] = append(e.graph[key], dependent)
				}
			}
		}
	}
	e.logger.Debug("formula.rebuild", "edges", len(e.graph))
}

// Recalculate re-evaluates every formula column that depends, directly or
// transitively, on the given column. When changedRow is non-negative,
// arithmetic formulas in the same table are evaluated for that row only;
// lookups and cross-table dependents always cover all rows. Updated cells
// are written back into the workbook and reported.
func (e *Engine) Recalculate(wb *model.Workbook, tableID int, column string, changedRow int) []model.CellUpdate {
	visited := map[node]bool{}
	var updates []model.CellUpdate
	e.walk(wb, tableID, column, changedRow, visited, &updates)
	return updates
}

func (e *Engine) walk(wb *model.Workbook, tableID int, column string, row int, visited map[node]bool, updates *[]model.CellUpdate) {
	for _, dep := range e.graph[depKey{TableID: tableID, Column: column}] {
		if visited[dep] {
			continue
		}
		visited[dep] = true
		si, ti, table := wb.FindTableByID(dep.TableID)
		if table == nil || dep.ColIndex >= len(table.Headers) {
			continue
		}
		def, ok := Definitions(table)[dep.ColIndex]
		if !ok {
			continue
		}
		rows := allRows(table)
		if dep.TableID == tableID && row >= 0 && def.Kind == KindArithmetic {
			if row >= len(table.Rows) {
				continue
			}
			rows = []int{row}
		}
		for _, r := range rows {
			value := evaluate(def, table, r, wb)
			growRow(table, r, dep.ColIndex)
			if table.Rows[r][dep.ColIndex] != value {
				table.Rows[r][dep.ColIndex] = value
				*updates = append(*updates, model.CellUpdate{
					SheetIndex: si, TableIndex: ti, Row: r, Col: dep.ColIndex, Value: value,
				})
			}
		}
		nextRow := -1
		if dep.TableID == tableID {
			nextRow = row
		}
		e.walk(wb, dep.TableID, table.Headers[dep.ColIndex], nextRow, visited, updates)
	}
}

// EvaluateColumn evaluates one formula over every row of its table, writing
// results back and reporting the cells that changed.
func EvaluateColumn(wb *model.Workbook, def Definition, sheetIdx, tableIdx, colIdx int) []model.CellUpdate {
	if sheetIdx < 0 || sheetIdx >= len(wb.Sheets) {
		return nil
	}
	if tableIdx < 0 || tableIdx >= len(wb.Sheets[sheetIdx].Tables) {
		return nil
	}
	table := &wb.Sheets[sheetIdx].Tables[tableIdx]
	var updates []model.CellUpdate
	for r := range table.Rows {
		value := evaluate(def, table, r, wb)
		growRow(table, r, colIdx)
		if table.Rows[r][colIdx] != value {
			table.Rows[r][colIdx] = value
			updates = append(updates, model.CellUpdate{
				SheetIndex: sheetIdx, TableIndex: tableIdx, Row: r, Col: colIdx, Value: value,
			})
		}
	}
	return updates
}

// RecalculateAll evaluates every formula column in the workbook: lookups
// first, then arithmetic, so derived inputs are in place before the
// expressions that consume them.
func (e *Engine) RecalculateAll(wb *model.Workbook) []model.CellUpdate {
	var updates []model.CellUpdate
	for _, pass := range []string{KindLookup, KindArithmetic} {
		for si := range wb.Sheets {
			for ti := range wb.Sheets[si].Tables {
				table := &wb.Sheets[si].Tables[ti]
				defs := Definitions(table)
				for _, colIdx := range sortedCols(defs) {
					def := defs[colIdx]
					if def.Kind != pass || colIdx >= len(table.Headers) {
						continue
					}
					for r := range table.Rows {
						value := evaluate(def, table, r, wb)
						growRow(table, r, colIdx)
						if table.Rows[r][colIdx] != value {
							table.Rows[r][colIdx] = value
							updates = append(updates, model.CellUpdate{
								SheetIndex: si, TableIndex: ti, Row: r, Col: colIdx, Value: value,
							})
						}
					}
				}
			}
		}
	}
	return updates
}

func sortedCols(defs map[int]Definition) []int {
	cols := make([]int, 0, len(defs))
	for c := range defs {
		cols = append(cols, c)
	}
	sort.Ints(cols)
	return cols
}

func allRows(t *model.Table) []int {
	rows := make([]int, len(t.Rows))
	for i := range rows {
		rows[i] = i
	}
	return rows
}

func growRow(t *model.Table, row, col int) {
	for len(t.Rows[row]) <= col {
		t.Rows[row] = append(t.Rows[row], "")
	}
}
