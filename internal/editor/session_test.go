package editor

import (
	"strings"
	"testing"

	"mdsheet/engine/internal/batch"
	"mdsheet/engine/internal/diffpatch"
	"mdsheet/engine/internal/formula"
	"mdsheet/engine/internal/model"
)

func ordersWorkbook() *model.Workbook {
	wb := &model.Workbook{
		Sheets: []model.Sheet{{
			Name: "Data",
			Tables: []model.Table{{
				Headers: []string{"Price", "Qty", "Total"},
				Rows: [][]string{
					{"100", "2", "200"},
					{"50", "4", "200"},
				},
			}},
		}},
	}
	t := &wb.Sheets[0].Tables[0]
	t.SetTableID(0)
	formula.SetDefinition(t, 2, formula.Definition{
		Kind:         formula.KindArithmetic,
		FunctionType: formula.FunctionExpression,
		Expression:   "[Price] * [Qty]",
	})
	return wb
}

func newTestSession(t *testing.T, wb *model.Workbook) *Session {
	t.Helper()
	text := ""
	if wb != nil {
		text = model.GenerateWorkbook(wb, model.DefaultSchema()) + "\n\n"
	}
	s := NewSession(nil)
	if _, err := s.Initialize(text, wb, ""); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return s
}

func TestInitializeRecalculatesFormulaColumns(t *testing.T) {
	wb := ordersWorkbook()
	wb.Sheets[0].Tables[0].Rows[0][2] = ""
	wb.Sheets[0].Tables[0].Rows[1][2] = ""
	s := NewSession(nil)
	text := model.GenerateWorkbook(wb, model.DefaultSchema()) + "\n\n"
	updates, err := s.Initialize(text, wb, "")
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if len(updates) != 2 {
		t.Fatalf("updates = %v, want 2", updates)
	}
	if got := s.Workbook().Sheets[0].Tables[0].Rows[0][2]; got != "200" {
		t.Fatalf("row 0 total = %q, want 200", got)
	}
	if got := s.Workbook().Sheets[0].Tables[0].Rows[1][2]; got != "200" {
		t.Fatalf("row 1 total = %q, want 200", got)
	}
}

func TestUpdateCellCascadesAndMergesIntoOnePatch(t *testing.T) {
	s := newTestSession(t, ordersWorkbook())
	before := s.FullMarkdown()

	b := batch.Start(nil)
	updates, err := s.UpdateCell(b, 0, 0, 0, 0, "200")
	if err != nil {
		t.Fatalf("UpdateCell: %v", err)
	}
	if len(updates) != 1 {
		t.Fatalf("updates = %v, want exactly one", updates)
	}
	want := model.CellUpdate{SheetIndex: 0, TableIndex: 0, Row: 0, Col: 2, Value: "400"}
	if updates[0] != want {
		t.Fatalf("update = %+v, want %+v", updates[0], want)
	}
	if !strings.Contains(s.FullMarkdown(), "| 200 | 2 | 400 |") {
		t.Fatalf("text missing recalculated row:\n%s", s.FullMarkdown())
	}

	merged, ok := b.End()
	if !ok {
		t.Fatal("batch produced no patch")
	}
	if got := diffpatch.Apply(before, merged); got != s.FullMarkdown() {
		t.Fatalf("merged patch diverges from session text:\n%s", got)
	}
}

func TestUpdateCellInvalidRowAbortsBatch(t *testing.T) {
	s := newTestSession(t, ordersWorkbook())
	before := s.FullMarkdown()

	b := batch.Start(nil)
	if _, err := s.UpdateCell(b, 0, 0, 99, 0, "1"); err == nil {
		t.Fatal("expected error for out-of-range row")
	}
	if !b.Aborted() {
		t.Fatal("batch not aborted")
	}
	if s.FullMarkdown() != before {
		t.Fatal("failed edit mutated the text")
	}
}

func TestAddSheetFromEmptyDocument(t *testing.T) {
	s := NewSession(nil)
	if _, err := s.Initialize("", nil, ""); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	spec := s.AddSheet("", nil, -1, -1)
	if spec.Err != "" {
		t.Fatalf("AddSheet: %s", spec.Err)
	}
	text := s.FullMarkdown()
	if !strings.Contains(text, "# Tables") || !strings.Contains(text, "## Sheet 1") {
		t.Fatalf("unexpected text:\n%s", text)
	}
	if !strings.Contains(text, "| Column 1 | Column 2 | Column 3 |") {
		t.Fatalf("starter table missing:\n%s", text)
	}
}

func TestAddSheetAppendsAfterDocumentContent(t *testing.T) {
	s := NewSession(nil)
	if _, err := s.Initialize("# Notes\n\nimportant last line", nil, ""); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	spec := s.AddSheet("Data", nil, -1, -1)
	if spec.Err != "" {
		t.Fatalf("AddSheet: %s", spec.Err)
	}
	text := s.FullMarkdown()
	if !strings.Contains(text, "important last line") {
		t.Fatalf("document content lost:\n%s", text)
	}
	if strings.Index(text, "# Tables") < strings.Index(text, "important last line") {
		t.Fatalf("workbook block not appended after the document:\n%s", text)
	}
	// Document first, sheet second is exactly the file order, so no
	// explicit tab order should be persisted.
	if s.HasTabOrder() {
		t.Fatalf("redundant tab order persisted: %v", s.Workbook().TabOrder())
	}
}

func TestAddSheetSlotBeforeDocumentPersistsOrder(t *testing.T) {
	s := NewSession(nil)
	if _, err := s.Initialize("# Notes\n\nimportant last line", nil, ""); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if spec := s.AddSheet("Data", nil, -1, 0); spec.Err != "" {
		t.Fatalf("AddSheet: %s", spec.Err)
	}
	want := []model.TabOrderEntry{
		{Kind: model.TabKindSheet, Index: 0},
		{Kind: model.TabKindDocument, Index: 0},
	}
	if got := s.Workbook().TabOrder(); !model.EqualOrders(got, want) {
		t.Fatalf("tab order = %v, want %v", got, want)
	}
	if !strings.Contains(s.FullMarkdown(), "important last line") {
		t.Fatalf("document content lost:\n%s", s.FullMarkdown())
	}
}

func TestMoveSheetReordersBlock(t *testing.T) {
	wb := &model.Workbook{Sheets: []model.Sheet{
		{Name: "Alpha", Tables: []model.Table{{Headers: []string{"A"}, Rows: [][]string{{"1"}}}}},
		{Name: "Beta", Tables: []model.Table{{Headers: []string{"B"}, Rows: [][]string{{"2"}}}}},
	}}
	s := newTestSession(t, wb)
	spec := s.MoveSheet(0, 1, -1)
	if spec.Err != "" {
		t.Fatalf("MoveSheet: %s", spec.Err)
	}
	text := s.FullMarkdown()
	if strings.Index(text, "## Beta") > strings.Index(text, "## Alpha") {
		t.Fatalf("sheets not swapped:\n%s", text)
	}
}

func TestSetFormulaComputesColumn(t *testing.T) {
	wb := &model.Workbook{Sheets: []model.Sheet{{
		Name: "Data",
		Tables: []model.Table{{
			Headers: []string{"Price", "Qty", "Total"},
			Rows:    [][]string{{"100", "2", ""}, {"50", "4", ""}},
		}},
	}}}
	s := newTestSession(t, wb)

	b := batch.Start(nil)
	updates, err := s.SetFormula(b, 0, 0, 2, formula.Definition{
		Kind:         formula.KindArithmetic,
		FunctionType: formula.FunctionExpression,
		Expression:   "[Price] * [Qty]",
	})
	if err != nil {
		t.Fatalf("SetFormula: %v", err)
	}
	if len(updates) != 2 {
		t.Fatalf("updates = %v, want 2", updates)
	}
	text := s.FullMarkdown()
	if !strings.Contains(text, "| 100 | 2 | 200 |") || !strings.Contains(text, "| 50 | 4 | 200 |") {
		t.Fatalf("computed values missing:\n%s", text)
	}
	if !strings.Contains(text, "md-table-metadata") {
		t.Fatalf("formula metadata not persisted:\n%s", text)
	}
	if _, ok := b.End(); !ok {
		t.Fatal("batch produced no patch")
	}
}

func TestSetFormulaRejectsUnknownColumn(t *testing.T) {
	s := newTestSession(t, ordersWorkbook())
	b := batch.Start(nil)
	_, err := s.SetFormula(b, 0, 0, 2, formula.Definition{
		Kind:         formula.KindArithmetic,
		FunctionType: formula.FunctionExpression,
		Expression:   "[Nope] * 2",
	})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !b.Aborted() {
		t.Fatal("batch not aborted")
	}
}

func TestSortRowsNumericDescending(t *testing.T) {
	wb := &model.Workbook{Sheets: []model.Sheet{{
		Name: "Data",
		Tables: []model.Table{{
			Headers: []string{"Name", "Amount"},
			Rows:    [][]string{{"a", "5"}, {"b", "1,000"}, {"c", "20"}},
		}},
	}}}
	s := newTestSession(t, wb)
	if spec := s.SortRows(0, 0, 1, false); spec.Err != "" {
		t.Fatalf("SortRows: %s", spec.Err)
	}
	rows := s.Workbook().Sheets[0].Tables[0].Rows
	got := []string{rows[0][0], rows[1][0], rows[2][0]}
	if got[0] != "b" || got[1] != "c" || got[2] != "a" {
		t.Fatalf("order = %v, want [b c a]", got)
	}
}

func TestMoveColumnsCarriesAlignments(t *testing.T) {
	wb := &model.Workbook{Sheets: []model.Sheet{{
		Name: "Data",
		Tables: []model.Table{{
			Headers:    []string{"A", "B", "C"},
			Alignments: []string{"left", "right", ""},
			Rows:       [][]string{{"1", "2", "3"}},
		}},
	}}}
	s := newTestSession(t, wb)
	if spec := s.MoveColumns(0, 0, []int{0}, 3); spec.Err != "" {
		t.Fatalf("MoveColumns: %s", spec.Err)
	}
	tbl := s.Workbook().Sheets[0].Tables[0]
	if tbl.Headers[2] != "A" || tbl.Alignments[2] != "left" || tbl.Rows[0][2] != "1" {
		t.Fatalf("column A did not move intact: %+v", tbl)
	}
}
