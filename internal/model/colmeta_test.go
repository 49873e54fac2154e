package model

import "testing"

func tableWithVisual() *Table {
	return &Table{
		Headers: []string{"A", "B", "C"},
		Metadata: map[string]any{
			"visual": map[string]any{
				"columns": map[string]any{
					"0": map[string]any{"width": 100},
					"2": map[string]any{"width": 300},
				},
				"formulas": map[string]any{
					"2": map[string]any{"kind": "arithmetic"},
				},
			},
		},
	}
}

func TestShiftColumnMetadataDelete(t *testing.T) {
	table := tableWithVisual()
	ShiftColumnMetadata(table, 1, -1)
	columns := table.Visual(false)["columns"].(map[string]any)
	if _, ok := columns["0"]; !ok {
		t.Fatalf("column 0 metadata should survive: %v", columns)
	}
	if _, ok := columns["1"]; !ok {
		t.Fatalf("column 2 metadata should shift to 1: %v", columns)
	}
	formulas := table.Visual(false)["formulas"].(map[string]any)
	if _, ok := formulas["1"]; !ok {
		t.Fatalf("formula metadata should shift with the column: %v", formulas)
	}
}

func TestShiftColumnMetadataDeleteDropsOwnEntry(t *testing.T) {
	table := tableWithVisual()
	ShiftColumnMetadata(table, 2, -1)
	columns := table.Visual(false)["columns"].(map[string]any)
	if len(columns) != 1 {
		t.Fatalf("deleted column metadata should be dropped: %v", columns)
	}
}

func TestShiftColumnMetadataInsert(t *testing.T) {
	table := tableWithVisual()
	ShiftColumnMetadata(table, 1, +1)
	columns := table.Visual(false)["columns"].(map[string]any)
	if _, ok := columns["0"]; !ok {
		t.Fatalf("column 0 should stay put: %v", columns)
	}
	if _, ok := columns["3"]; !ok {
		t.Fatalf("column 2 should shift right to 3: %v", columns)
	}
}

func TestReorderColumnMetadata(t *testing.T) {
	table := tableWithVisual()
	// Move column 2 to the front.
	ReorderColumnMetadata(table, []int{2}, 0)
	columns := table.Visual(false)["columns"].(map[string]any)
	width0, ok := columns["0"].(map[string]any)
	if !ok {
		t.Fatalf("moved column metadata missing: %v", columns)
	}
	if asInt(width0["width"], 0) != 300 {
		t.Fatalf("expected width 300 at index 0, got %v", width0)
	}
	if _, ok := columns["1"]; !ok {
		t.Fatalf("old column 0 should now be at 1: %v", columns)
	}
	formulas := table.Visual(false)["formulas"].(map[string]any)
	if _, ok := formulas["0"]; !ok {
		t.Fatalf("formula should move with its column: %v", formulas)
	}
}
