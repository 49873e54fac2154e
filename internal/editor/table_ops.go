package editor

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"mdsheet/engine/internal/batch"
	"mdsheet/engine/internal/formula"
	"mdsheet/engine/internal/model"
)

// UpdateCell writes one cell and cascades recalculation of every formula
// column that depends on the edited column. The cell patch and any
// recalculation patch are posted into the batch; the returned updates let
// the host refresh its grid without reparsing.
func (s *Session) UpdateCell(b *batch.Batch, sheetIdx, tableIdx, row, col int, value string) ([]model.CellUpdate, error) {
	escaped := model.EscapePipes(value)
	tableID := -1
	var column string
	spec := s.updateTable("update_cell", sheetIdx, tableIdx, func(t *model.Table) error {
		if row < 0 || row >= len(t.Rows) {
			return fmt.Errorf("%w: row %d", model.ErrInvalidIndex, row)
		}
		if col < 0 {
			return fmt.Errorf("%w: col %d", model.ErrInvalidIndex, col)
		}
		for len(t.Rows[row]) <= col {
			t.Rows[row] = append(t.Rows[row], "")
		}
		t.Rows[row][col] = escaped
		tableID = t.TableID()
		if col < len(t.Headers) {
			column = t.Headers[col]
		}
		return nil
	})
	if err := b.Post(spec); err != nil {
		return nil, err
	}

	if tableID < 0 || column == "" {
		return nil, nil
	}
	updates := s.engine.Recalculate(s.wb, tableID, column, row)
	if len(updates) == 0 {
		return nil, nil
	}
	// Recalculation mutated the workbook; emit one more patch for the text.
	if err := b.Post(s.regenerate()); err != nil {
		return updates, err
	}
	return updates, nil
}

func (s *Session) InsertRow(sheetIdx, tableIdx, rowIdx int) model.EditSpec {
	return s.updateTable("insert_row", sheetIdx, tableIdx, func(t *model.Table) error {
		empty := make([]string, len(t.Headers))
		pos := clamp(rowIdx, 0, len(t.Rows))
		t.Rows = append(t.Rows[:pos], append([][]string{empty}, t.Rows[pos:]...)...)
		return nil
	})
}

// DeleteRows removes the given rows, tolerating out-of-range indices.
func (s *Session) DeleteRows(sheetIdx, tableIdx int, rowIndices []int) model.EditSpec {
	return s.updateTable("delete_rows", sheetIdx, tableIdx, func(t *model.Table) error {
		sorted := append([]int(nil), rowIndices...)
		sort.Sort(sort.Reverse(sort.IntSlice(sorted)))
		for _, idx := range sorted {
			if idx >= 0 && idx < len(t.Rows) {
				t.Rows = append(t.Rows[:idx], t.Rows[idx+1:]...)
			}
		}
		return nil
	})
}

// MoveRows relocates a selection of rows so they sit, in their original
// relative order, before the row that was at targetIdx. Moving a contiguous
// selection onto itself is a no-op.
func (s *Session) MoveRows(sheetIdx, tableIdx int, rowIndices []int, targetIdx int) model.EditSpec {
	return s.updateTable("move_rows", sheetIdx, tableIdx, func(t *model.Table) error {
		if len(rowIndices) == 0 {
			return nil
		}
		sorted := uniqueSorted(rowIndices)
		for _, idx := range sorted {
			if idx < 0 || idx >= len(t.Rows) {
				return fmt.Errorf("%w: row %d", model.ErrInvalidIndex, idx)
			}
		}
		if selectionNoOp(sorted, targetIdx) {
			return nil
		}
		moving := make([][]string, 0, len(sorted))
		for _, idx := range sorted {
			moving = append(moving, t.Rows[idx])
		}
		for i := len(sorted) - 1; i >= 0; i-- {
			idx := sorted[i]
			t.Rows = append(t.Rows[:idx], t.Rows[idx+1:]...)
		}
		target := adjustTarget(sorted, targetIdx)
		tail := append([][]string{}, t.Rows[target:]...)
		t.Rows = append(append(t.Rows[:target], moving...), tail...)
		return nil
	})
}

// SortRows orders the table by one column. The column type comes from
// explicit visual metadata when present, otherwise from a numeric heuristic
// over the non-empty cells.
func (s *Session) SortRows(sheetIdx, tableIdx, colIdx int, ascending bool) model.EditSpec {
	return s.updateTable("sort_rows", sheetIdx, tableIdx, func(t *model.Table) error {
		numeric := columnIsNumeric(t, colIdx)
		sort.SliceStable(t.Rows, func(i, j int) bool {
			less := rowLess(t.Rows[i], t.Rows[j], colIdx, numeric)
			if ascending {
				return less
			}
			return rowLess(t.Rows[j], t.Rows[i], colIdx, numeric)
		})
		return nil
	})
}

func (s *Session) InsertColumn(sheetIdx, tableIdx, colIdx int) model.EditSpec {
	return s.updateTable("insert_column", sheetIdx, tableIdx, func(t *model.Table) error {
		pos := clamp(colIdx, 0, len(t.Headers))
		t.Headers = append(t.Headers[:pos], append([]string{fmt.Sprintf("Column %d", len(t.Headers)+1)}, t.Headers[pos:]...)...)
		for i := range t.Rows {
			row := t.Rows[i]
			p := clamp(pos, 0, len(row))
			t.Rows[i] = append(row[:p], append([]string{""}, row[p:]...)...)
		}
		if len(t.Alignments) > pos {
			t.Alignments = append(t.Alignments[:pos], append([]string{""}, t.Alignments[pos:]...)...)
		}
		model.ShiftColumnMetadata(t, pos, +1)
		return nil
	})
}

func (s *Session) DeleteColumns(sheetIdx, tableIdx int, colIndices []int) model.EditSpec {
	return s.updateTable("delete_columns", sheetIdx, tableIdx, func(t *model.Table) error {
		sorted := uniqueSorted(colIndices)
		for i := len(sorted) - 1; i >= 0; i-- {
			idx := sorted[i]
			if idx < 0 || idx >= len(t.Headers) {
				continue
			}
			t.Headers = append(t.Headers[:idx], t.Headers[idx+1:]...)
			for r := range t.Rows {
				if idx < len(t.Rows[r]) {
					t.Rows[r] = append(t.Rows[r][:idx], t.Rows[r][idx+1:]...)
				}
			}
			if idx < len(t.Alignments) {
				t.Alignments = append(t.Alignments[:idx], t.Alignments[idx+1:]...)
			}
			model.ShiftColumnMetadata(t, idx, -1)
		}
		return nil
	})
}

func (s *Session) ClearColumns(sheetIdx, tableIdx int, colIndices []int) model.EditSpec {
	return s.updateTable("clear_columns", sheetIdx, tableIdx, func(t *model.Table) error {
		for r := range t.Rows {
			for _, idx := range colIndices {
				if idx >= 0 && idx < len(t.Rows[r]) {
					t.Rows[r][idx] = ""
				}
			}
		}
		return nil
	})
}

// MoveColumns relocates a column selection, carrying headers, cells,
// alignments and every column-indexed metadata map along.
func (s *Session) MoveColumns(sheetIdx, tableIdx int, colIndices []int, targetIdx int) model.EditSpec {
	return s.updateTable("move_columns", sheetIdx, tableIdx, func(t *model.Table) error {
		if len(colIndices) == 0 {
			return nil
		}
		sorted := uniqueSorted(colIndices)
		for _, idx := range sorted {
			if idx < 0 || idx >= len(t.Headers) {
				return fmt.Errorf("%w: column %d", model.ErrInvalidIndex, idx)
			}
		}
		if selectionNoOp(sorted, targetIdx) {
			return nil
		}
		t.Headers = moveStrings(t.Headers, sorted, targetIdx)
		if len(t.Alignments) > 0 {
			for len(t.Alignments) < len(t.Headers) {
				t.Alignments = append(t.Alignments, "")
			}
			t.Alignments = moveStrings(t.Alignments, sorted, targetIdx)
		}
		width := len(t.Headers)
		for r := range t.Rows {
			row := t.Rows[r]
			for len(row) < width {
				row = append(row, "")
			}
			t.Rows[r] = moveStrings(row, sorted, targetIdx)
		}
		model.ReorderColumnMetadata(t, sorted, targetIdx)
		return nil
	})
}

// PasteCells writes a rectangular clipboard block starting at (startRow,
// startCol), growing rows, columns and headers as needed. When the first
// clipboard row carries headers it replaces the header cells instead.
func (s *Session) PasteCells(sheetIdx, tableIdx, startRow, startCol int, data [][]string, includeHeaders bool) model.EditSpec {
	return s.updateTable("paste_cells", sheetIdx, tableIdx, func(t *model.Table) error {
		paste := data
		if includeHeaders && len(paste) > 0 {
			for off, val := range paste[0] {
				target := startCol + off
				for len(t.Headers) <= target {
					t.Headers = append(t.Headers, fmt.Sprintf("Col %d", len(t.Headers)+1))
				}
				t.Headers[target] = val
			}
			paste = paste[1:]
		}
		if len(paste) == 0 && !includeHeaders {
			return nil
		}

		width := 0
		for _, row := range paste {
			if len(row) > width {
				width = len(row)
			}
		}
		baseWidth := len(t.Headers)
		if len(t.Rows) > 0 && len(t.Rows[0]) > baseWidth {
			baseWidth = len(t.Rows[0])
		}
		for len(t.Rows) < startRow+len(paste) {
			t.Rows = append(t.Rows, make([]string, baseWidth))
		}
		for off, row := range paste {
			target := startRow + off
			for len(t.Rows[target]) < startCol+width {
				t.Rows[target] = append(t.Rows[target], "")
			}
			for c, val := range row {
				t.Rows[target][startCol+c] = model.EscapePipes(val)
			}
		}

		// Homogenize: every row and the header list end at the same width.
		max := len(t.Headers)
		for _, row := range t.Rows {
			if len(row) > max {
				max = len(row)
			}
		}
		for r := range t.Rows {
			for len(t.Rows[r]) < max {
				t.Rows[r] = append(t.Rows[r], "")
			}
		}
		for len(t.Headers) < max {
			t.Headers = append(t.Headers, fmt.Sprintf("Col %d", len(t.Headers)+1))
		}
		return nil
	})
}

// CellRange is a rectangular selection, inclusive on all sides.
type CellRange struct {
	MinRow int `json:"minR"`
	MaxRow int `json:"maxR"`
	MinCol int `json:"minC"`
	MaxCol int `json:"maxC"`
}

// MoveCells clears the source range and writes its content at the
// destination, expanding the grid when the destination overruns it. Source
// extraction happens before the clear so overlapping moves stay lossless.
func (s *Session) MoveCells(sheetIdx, tableIdx int, src CellRange, destRow, destCol int) model.EditSpec {
	return s.updateTable("move_cells", sheetIdx, tableIdx, func(t *model.Table) error {
		if src.MinRow == destRow && src.MinCol == destCol {
			return nil
		}
		var block [][]string
		for r := src.MinRow; r <= src.MaxRow; r++ {
			var row []string
			for c := src.MinCol; c <= src.MaxCol; c++ {
				if r >= 0 && r < len(t.Rows) && c >= 0 && c < len(t.Rows[r]) {
					row = append(row, t.Rows[r][c])
				} else {
					row = append(row, "")
				}
			}
			block = append(block, row)
		}

		height := src.MaxRow - src.MinRow + 1
		width := src.MaxCol - src.MinCol + 1
		cols := len(t.Headers)
		if cols == 0 && len(t.Rows) > 0 {
			cols = len(t.Rows[0])
		}
		for len(t.Rows) < destRow+height {
			t.Rows = append(t.Rows, make([]string, cols))
		}
		for r := range t.Rows {
			for len(t.Rows[r]) < destCol+width {
				t.Rows[r] = append(t.Rows[r], "")
			}
		}

		for r := src.MinRow; r <= src.MaxRow; r++ {
			for c := src.MinCol; c <= src.MaxCol; c++ {
				if r >= 0 && r < len(t.Rows) && c >= 0 && c < len(t.Rows[r]) {
					t.Rows[r][c] = ""
				}
			}
		}
		for ro, row := range block {
			for co, val := range row {
				t.Rows[destRow+ro][destCol+co] = val
			}
		}
		return nil
	})
}

// UpdateVisualMetadata shallow-merges host-provided keys into the table's
// visual metadata map.
func (s *Session) UpdateVisualMetadata(sheetIdx, tableIdx int, metadata map[string]any) model.EditSpec {
	spec := s.updateTable("update_visual_metadata", sheetIdx, tableIdx, func(t *model.Table) error {
		visual := t.Visual(true)
		for k, v := range metadata {
			visual[k] = v
		}
		return nil
	})
	// Formula definitions may have changed shape.
	s.engine.Rebuild(s.wb)
	return spec
}

func (s *Session) UpdateColumnWidth(sheetIdx, tableIdx, colIdx, width int) model.EditSpec {
	return s.setVisualColumnValue("update_column_width", sheetIdx, tableIdx, "column_widths", colIdx, width)
}

func (s *Session) UpdateColumnFilter(sheetIdx, tableIdx, colIdx int, hiddenValues []string) model.EditSpec {
	return s.setVisualColumnValue("update_column_filter", sheetIdx, tableIdx, "filters", colIdx, hiddenValues)
}

func (s *Session) UpdateColumnAlign(sheetIdx, tableIdx, colIdx int, alignment string) model.EditSpec {
	return s.updateTable("update_column_align", sheetIdx, tableIdx, func(t *model.Table) error {
		if colIdx < 0 {
			return fmt.Errorf("%w: column %d", model.ErrInvalidIndex, colIdx)
		}
		for len(t.Alignments) <= colIdx {
			t.Alignments = append(t.Alignments, "")
		}
		t.Alignments[colIdx] = alignment
		return nil
	})
}

// UpdateColumnFormat stores (or clears) the display format for one column
// under visual.columns.<idx>.format.
func (s *Session) UpdateColumnFormat(sheetIdx, tableIdx, colIdx int, format map[string]any) model.EditSpec {
	return s.updateTable("update_column_format", sheetIdx, tableIdx, func(t *model.Table) error {
		visual := t.Visual(true)
		columns, ok := visual["columns"].(map[string]any)
		if !ok {
			columns = map[string]any{}
			visual["columns"] = columns
		}
		key := strconv.Itoa(colIdx)
		col, ok := columns[key].(map[string]any)
		if !ok {
			col = map[string]any{}
		}
		if len(format) > 0 {
			col["format"] = format
		} else {
			delete(col, "format")
		}
		columns[key] = col
		return nil
	})
}

func (s *Session) setVisualColumnValue(op string, sheetIdx, tableIdx int, key string, colIdx int, value any) model.EditSpec {
	return s.updateTable(op, sheetIdx, tableIdx, func(t *model.Table) error {
		visual := t.Visual(true)
		m, ok := visual[key].(map[string]any)
		if !ok {
			m = map[string]any{}
			visual[key] = m
		}
		m[strconv.Itoa(colIdx)] = value
		return nil
	})
}

// SetFormula validates and persists a formula on a column, then rebuilds the
// graph and recalculates the column over all rows.
func (s *Session) SetFormula(b *batch.Batch, sheetIdx, tableIdx, colIdx int, def formula.Definition) ([]model.CellUpdate, error) {
	if s.wb == nil {
		return nil, model.ErrNoWorkbook
	}
	if err := formula.Validate(def, s.wb); err != nil {
		spec := s.errSpec("set_formula", err)
		_ = b.Post(spec)
		return nil, err
	}
	var tableID, column = -1, ""
	spec := s.updateTable("set_formula", sheetIdx, tableIdx, func(t *model.Table) error {
		if colIdx < 0 || colIdx >= len(t.Headers) {
			return fmt.Errorf("%w: column %d", model.ErrInvalidIndex, colIdx)
		}
		if t.TableID() < 0 {
			t.SetTableID(s.wb.NextTableID())
		}
		formula.SetDefinition(t, colIdx, def)
		tableID = t.TableID()
		column = t.Headers[colIdx]
		return nil
	})
	if err := b.Post(spec); err != nil {
		return nil, err
	}
	s.engine.Rebuild(s.wb)
	updates := s.recalcColumn(tableID, column, colIdx)
	if len(updates) > 0 {
		if err := b.Post(s.regenerate()); err != nil {
			return updates, err
		}
	}
	return updates, nil
}

// ClearFormula drops a column's formula; the last computed values stay in
// the cells.
func (s *Session) ClearFormula(sheetIdx, tableIdx, colIdx int) model.EditSpec {
	spec := s.updateTable("clear_formula", sheetIdx, tableIdx, func(t *model.Table) error {
		formula.ClearDefinition(t, colIdx)
		return nil
	})
	s.engine.Rebuild(s.wb)
	return spec
}

// recalcColumn evaluates one formula column over all rows plus anything
// downstream of it.
func (s *Session) recalcColumn(tableID int, column string, colIdx int) []model.CellUpdate {
	if tableID < 0 || column == "" {
		return nil
	}
	si, ti, table := s.wb.FindTableByID(tableID)
	if table == nil {
		return nil
	}
	var updates []model.CellUpdate
	def, ok := formula.Definitions(table)[colIdx]
	if ok {
		updates = formula.EvaluateColumn(s.wb, def, si, ti, colIdx)
	}
	updates = append(updates, s.engine.Recalculate(s.wb, tableID, column, -1)...)
	return updates
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func uniqueSorted(indices []int) []int {
	seen := map[int]bool{}
	var out []int
	for _, idx := range indices {
		if !seen[idx] {
			seen[idx] = true
			out = append(out, idx)
		}
	}
	sort.Ints(out)
	return out
}

// selectionNoOp reports whether dropping a contiguous selection at target
// leaves the order unchanged.
func selectionNoOp(sorted []int, target int) bool {
	min, max := sorted[0], sorted[len(sorted)-1]
	if target < min || target > max+1 {
		return false
	}
	return max-min+1 == len(sorted)
}

func adjustTarget(sorted []int, target int) int {
	removedBefore := 0
	for _, idx := range sorted {
		if idx < target {
			removedBefore++
		}
	}
	return target - removedBefore
}

func moveStrings(values []string, sorted []int, target int) []string {
	moving := make([]string, 0, len(sorted))
	for _, idx := range sorted {
		moving = append(moving, values[idx])
	}
	out := append([]string{}, values...)
	for i := len(sorted) - 1; i >= 0; i-- {
		idx := sorted[i]
		out = append(out[:idx], out[idx+1:]...)
	}
	t := adjustTarget(sorted, target)
	tail := append([]string{}, out[t:]...)
	return append(append(out[:t], moving...), tail...)
}

func columnIsNumeric(t *model.Table, colIdx int) bool {
	if visual := t.Visual(false); visual != nil {
		if columns, ok := visual["columns"].(map[string]any); ok {
			if col, ok := columns[strconv.Itoa(colIdx)].(map[string]any); ok {
				if typ, ok := col["type"].(string); ok {
					return typ == "number"
				}
			}
		}
	}
	hasValue := false
	for _, row := range t.Rows {
		if colIdx >= len(row) {
			continue
		}
		val := strings.TrimSpace(row[colIdx])
		if val == "" {
			continue
		}
		hasValue = true
		if _, err := strconv.ParseFloat(strings.ReplaceAll(val, ",", ""), 64); err != nil {
			return false
		}
	}
	return hasValue
}

func rowLess(a, b []string, colIdx int, numeric bool) bool {
	av, bv := cellOf(a, colIdx), cellOf(b, colIdx)
	if numeric {
		return sortKey(av) < sortKey(bv)
	}
	return strings.ToLower(av) < strings.ToLower(bv)
}

func cellOf(row []string, colIdx int) string {
	if colIdx >= 0 && colIdx < len(row) {
		return row[colIdx]
	}
	return ""
}

func sortKey(val string) float64 {
	s := strings.TrimSpace(val)
	if s == "" {
		return math.Inf(-1)
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return math.Inf(-1)
	}
	return f
}
