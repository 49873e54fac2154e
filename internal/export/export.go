// Package export writes a workbook to an xlsx file, one spreadsheet sheet
// per workbook sheet.
package export

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"mdsheet/engine/internal/model"
)

const (
	// Excel column width is measured in characters of the default font;
	// host-side widths arrive in pixels.
	pixelsPerWidthUnit = 7.0
	maxSheetNameLen    = 31
)

// WriteXlsx renders the workbook to path. Table name and description become
// leading rows above each table block; column widths and number formats come
// from the table's visual metadata.
func WriteXlsx(wb *model.Workbook, path string) error {
	if wb == nil || len(wb.Sheets) == 0 {
		return fmt.Errorf("nothing to export")
	}
	f := excelize.NewFile()
	defer f.Close()

	used := map[string]bool{}
	for i := range wb.Sheets {
		name := sheetName(wb.Sheets[i].Name, i, used)
		if i == 0 {
			// Rename the default sheet instead of leaving it behind.
			if err := f.SetSheetName("Sheet1", name); err != nil {
				return fmt.Errorf("rename sheet: %w", err)
			}
		} else {
			if _, err := f.NewSheet(name); err != nil {
				return fmt.Errorf("new sheet: %w", err)
			}
		}
		if err := writeSheet(f, name, &wb.Sheets[i]); err != nil {
			return fmt.Errorf("sheet %q: %w", name, err)
		}
	}
	f.SetActiveSheet(0)
	return f.SaveAs(path)
}

func writeSheet(f *excelize.File, name string, sheet *model.Sheet) error {
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	row := 1
	for ti := range sheet.Tables {
		table := &sheet.Tables[ti]
		if table.Name != "" {
			cell, _ := excelize.CoordinatesToCellName(1, row)
			if err := f.SetCellValue(name, cell, table.Name); err != nil {
				return err
			}
			_ = f.SetCellStyle(name, cell, cell, bold)
			row++
		}
		if table.Description != "" {
			cell, _ := excelize.CoordinatesToCellName(1, row)
			if err := f.SetCellValue(name, cell, table.Description); err != nil {
				return err
			}
			row++
		}

		headerRow := row
		for c, header := range table.Headers {
			cell, _ := excelize.CoordinatesToCellName(c+1, row)
			if err := f.SetCellValue(name, cell, header); err != nil {
				return err
			}
			_ = f.SetCellStyle(name, cell, cell, bold)
		}
		row++

		for _, dataRow := range table.Rows {
			for c, value := range dataRow {
				cell, _ := excelize.CoordinatesToCellName(c+1, row)
				if err := f.SetCellValue(name, cell, cellValue(value)); err != nil {
					return err
				}
			}
			row++
		}

		if err := applyColumnMetadata(f, name, table, headerRow+1, row-1); err != nil {
			return err
		}
		row++
	}
	return nil
}

// cellValue converts numeric-looking text to a real number so spreadsheet
// formulas and sorting work on the exported data.
func cellValue(value string) any {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" || trimmed == "N/A" {
		return value
	}
	cleaned := strings.ReplaceAll(strings.TrimPrefix(trimmed, "$"), ",", "")
	if n, err := strconv.ParseFloat(cleaned, 64); err == nil {
		return n
	}
	return value
}

func applyColumnMetadata(f *excelize.File, name string, table *model.Table, firstDataRow, lastDataRow int) error {
	visual := table.Visual(false)
	if visual == nil {
		return nil
	}

	if widths, ok := visual["column_widths"].(map[string]any); ok {
		for key, raw := range widths {
			colIdx, err := strconv.Atoi(key)
			if err != nil {
				continue
			}
			px, ok := asFloat(raw)
			if !ok || px <= 0 {
				continue
			}
			colName, err := excelize.ColumnNumberToName(colIdx + 1)
			if err != nil {
				continue
			}
			_ = f.SetColWidth(name, colName, colName, px/pixelsPerWidthUnit)
		}
	}

	columns, ok := visual["columns"].(map[string]any)
	if !ok || lastDataRow < firstDataRow {
		return nil
	}
	for key, raw := range columns {
		colIdx, err := strconv.Atoi(key)
		if err != nil {
			continue
		}
		col, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		format, ok := col["format"].(map[string]any)
		if !ok {
			continue
		}
		numFmt := numberFormat(format)
		if numFmt == "" {
			continue
		}
		style, err := f.NewStyle(&excelize.Style{CustomNumFmt: &numFmt})
		if err != nil {
			continue
		}
		top, _ := excelize.CoordinatesToCellName(colIdx+1, firstDataRow)
		bottom, _ := excelize.CoordinatesToCellName(colIdx+1, lastDataRow)
		_ = f.SetCellStyle(name, top, bottom, style)
	}
	return nil
}

func numberFormat(format map[string]any) string {
	typ, _ := format["type"].(string)
	decimals := 2
	if d, ok := asFloat(format["decimals"]); ok {
		decimals = int(d)
	}
	frac := ""
	if decimals > 0 {
		frac = "." + strings.Repeat("0", decimals)
	}
	switch typ {
	case "currency":
		return "$#,##0" + frac
	case "percent":
		return "0" + frac + "%"
	case "number":
		return "#,##0" + frac
	default:
		return ""
	}
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// sheetName makes a workbook sheet name legal for xlsx: the forbidden
// characters go away, the 31-char cap applies, and collisions get a numeric
// suffix.
func sheetName(raw string, idx int, used map[string]bool) string {
	name := strings.TrimSpace(raw)
	if name == "" {
		name = fmt.Sprintf("Sheet %d", idx+1)
	}
	for _, c := range []string{":", "\\", "/", "?", "*", "[", "]"} {
		name = strings.ReplaceAll(name, c, "")
	}
	if name == "" {
		name = fmt.Sprintf("Sheet %d", idx+1)
	}
	if len(name) > maxSheetNameLen {
		name = name[:maxSheetNameLen]
	}
	base := name
	for n := 2; used[name]; n++ {
		suffix := fmt.Sprintf(" %d", n)
		if len(base)+len(suffix) > maxSheetNameLen {
			name = base[:maxSheetNameLen-len(suffix)] + suffix
		} else {
			name = base + suffix
		}
	}
	used[name] = true
	return name
}
