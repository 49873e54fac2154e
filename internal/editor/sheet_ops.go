package editor

import (
	"fmt"

	"mdsheet/engine/internal/model"
)

// AddSheet inserts a sheet with one starter table. An empty name picks the
// first free "Sheet N"; nil column names fall back to three generic columns.
// afterSheetIndex < 0 appends; targetOrderIndex < 0 appends to the tab order.
func (s *Session) AddSheet(name string, columnNames []string, afterSheetIndex, targetOrderIndex int) model.EditSpec {
	if s.wb == nil {
		s.wb = &model.Workbook{}
	}
	spec := s.updateWorkbook("add_sheet", func(wb *model.Workbook) error {
		if name == "" {
			name = defaultSheetName(wb)
		}
		if columnNames == nil {
			columnNames = []string{"Column 1", "Column 2", "Column 3"}
		}
		sheet := model.Sheet{
			Name: name,
			Tables: []model.Table{{
				Headers:  append([]string(nil), columnNames...),
				Rows:     [][]string{make([]string, len(columnNames))},
				Metadata: map[string]any{},
			}},
		}

		pos := len(wb.Sheets)
		if afterSheetIndex >= 0 && afterSheetIndex <= len(wb.Sheets) {
			pos = afterSheetIndex
		}
		wb.Sheets = append(wb.Sheets[:pos], append([]model.Sheet{sheet}, wb.Sheets[pos:]...)...)

		order := wb.TabOrder()
		if len(order) == 0 {
			// Initialize from the pre-insert layout so the new entry can be
			// slotted explicitly. The layout covers document tabs too; the
			// sheet count in s.wb still predates this insert.
			layout := model.LayoutOf(model.ScanSections(s.text, s.schema), len(wb.Sheets)-1)
			if len(layout.DocsBefore)+len(layout.DocsAfter) > 0 || len(wb.Sheets) > 1 {
				order = model.DeriveTabOrder(layout)
			}
		}
		for i := range order {
			if order[i].Kind == model.TabKindSheet && order[i].Index >= pos {
				order[i].Index++
			}
		}
		entry := model.TabOrderEntry{Kind: model.TabKindSheet, Index: pos}
		if targetOrderIndex >= 0 && targetOrderIndex <= len(order) {
			order = append(order[:targetOrderIndex], append([]model.TabOrderEntry{entry}, order[targetOrderIndex:]...)...)
		} else {
			order = append(order, entry)
		}
		s.setOrCleanTabOrder(wb, order)
		return nil
	})
	s.engine.Rebuild(s.wb)
	return spec
}

func (s *Session) RenameSheet(sheetIdx int, newName string) model.EditSpec {
	return s.updateSheet("rename_sheet", sheetIdx, func(sheet *model.Sheet) error {
		sheet.Name = newName
		return nil
	})
}

func (s *Session) UpdateSheetMetadata(sheetIdx int, metadata map[string]any) model.EditSpec {
	return s.updateSheet("update_sheet_metadata", sheetIdx, func(sheet *model.Sheet) error {
		sheet.Metadata = metadata
		return nil
	})
}

// DeleteSheet removes a sheet and patches the tab order: the sheet's entry
// goes away and higher sheet indices shift down.
func (s *Session) DeleteSheet(sheetIdx int) model.EditSpec {
	spec := s.updateWorkbook("delete_sheet", func(wb *model.Workbook) error {
		if sheetIdx < 0 || sheetIdx >= len(wb.Sheets) {
			return fmt.Errorf("%w: sheet %d", model.ErrInvalidIndex, sheetIdx)
		}
		wb.Sheets = append(wb.Sheets[:sheetIdx], wb.Sheets[sheetIdx+1:]...)
		if order := wb.TabOrder(); len(order) > 0 {
			var kept []model.TabOrderEntry
			for _, entry := range order {
				if entry.Kind == model.TabKindSheet {
					if entry.Index == sheetIdx {
						continue
					}
					if entry.Index > sheetIdx {
						entry.Index--
					}
				}
				kept = append(kept, entry)
			}
			s.setOrCleanTabOrder(wb, kept)
		}
		return nil
	})
	s.engine.Rebuild(s.wb)
	return spec
}

// MoveSheet relocates a sheet within the workbook block. When an explicit
// tab order exists, targetOrderIndex >= 0 repositions the sheet's entry at
// that display slot and remaps every sheet index for the physical shuffle.
func (s *Session) MoveSheet(fromIdx, toIdx, targetOrderIndex int) model.EditSpec {
	return s.updateWorkbook("move_sheet", func(wb *model.Workbook) error {
		if fromIdx < 0 || fromIdx >= len(wb.Sheets) {
			return fmt.Errorf("%w: sheet %d", model.ErrInvalidIndex, fromIdx)
		}
		sheet := wb.Sheets[fromIdx]
		wb.Sheets = append(wb.Sheets[:fromIdx], wb.Sheets[fromIdx+1:]...)
		pos := clamp(toIdx, 0, len(wb.Sheets))
		wb.Sheets = append(wb.Sheets[:pos], append([]model.Sheet{sheet}, wb.Sheets[pos:]...)...)
		if targetOrderIndex >= 0 {
			reorderTabMetadata(wb, model.TabKindSheet, fromIdx, pos, targetOrderIndex)
		}
		return nil
	})
}

func defaultSheetName(wb *model.Workbook) string {
	taken := map[string]bool{}
	for _, sheet := range wb.Sheets {
		taken[sheet.Name] = true
	}
	for i := 1; ; i++ {
		name := fmt.Sprintf("Sheet %d", i)
		if !taken[name] {
			return name
		}
	}
}

// setOrCleanTabOrder persists the order unless it matches what the physical
// layout already implies, in which case the redundant list is dropped.
func (s *Session) setOrCleanTabOrder(wb *model.Workbook, order []model.TabOrderEntry) {
	layout := model.LayoutOf(model.ScanSections(s.text, s.schema), len(wb.Sheets))
	if model.EqualOrders(order, model.DeriveTabOrder(layout)) {
		wb.ClearTabOrder()
		return
	}
	wb.SetTabOrder(order)
}

func (s *Session) AddTable(sheetIdx int, columnNames []string, tableName string) model.EditSpec {
	spec := s.updateSheet("add_table", sheetIdx, func(sheet *model.Sheet) error {
		if columnNames == nil {
			columnNames = []string{"Column 1", "Column 2", "Column 3"}
		}
		if tableName == "" {
			tableName = fmt.Sprintf("New Table %d", len(sheet.Tables)+1)
		}
		sheet.Tables = append(sheet.Tables, model.Table{
			Name:     tableName,
			Headers:  append([]string(nil), columnNames...),
			Rows:     [][]string{make([]string, len(columnNames))},
			Metadata: map[string]any{},
		})
		return nil
	})
	s.engine.Rebuild(s.wb)
	return spec
}

func (s *Session) DeleteTable(sheetIdx, tableIdx int) model.EditSpec {
	spec := s.updateSheet("delete_table", sheetIdx, func(sheet *model.Sheet) error {
		if tableIdx < 0 || tableIdx >= len(sheet.Tables) {
			return fmt.Errorf("%w: table %d", model.ErrInvalidIndex, tableIdx)
		}
		sheet.Tables = append(sheet.Tables[:tableIdx], sheet.Tables[tableIdx+1:]...)
		return nil
	})
	s.engine.Rebuild(s.wb)
	return spec
}

func (s *Session) RenameTable(sheetIdx, tableIdx int, newName string) model.EditSpec {
	return s.updateTable("rename_table", sheetIdx, tableIdx, func(t *model.Table) error {
		t.Name = newName
		return nil
	})
}

func (s *Session) UpdateTableMetadata(sheetIdx, tableIdx int, newName, newDescription string) model.EditSpec {
	return s.updateTable("update_table_metadata", sheetIdx, tableIdx, func(t *model.Table) error {
		t.Name = newName
		t.Description = newDescription
		return nil
	})
}
