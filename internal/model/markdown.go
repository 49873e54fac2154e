package model

import (
	"encoding/json"
	"strings"
)

const (
	workbookMetadataPrefix = "<!-- md-workbook-metadata: "
	tableMetadataPrefix    = "<!-- md-table-metadata: "
	metadataSuffix         = " -->"
)

// EscapePipes escapes raw pipe characters so a cell value cannot break the
// row it is written into. Pipes inside backtick spans and already-escaped
// pipes are left alone.
func EscapePipes(value string) string {
	if !strings.Contains(value, "|") {
		return value
	}
	var b strings.Builder
	inCode := false
	for i := 0; i < len(value); i++ {
		c := value[i]
		switch {
		case c == '`':
			inCode = !inCode
			b.WriteByte(c)
		case c == '\\' && i+1 < len(value):
			b.WriteByte(c)
			b.WriteByte(value[i+1])
			i++
		case c == '|' && !inCode:
			b.WriteString("\\|")
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// WorkbookMetadataComment renders the workbook metadata as its comment line,
// or "" when there is nothing to persist.
func WorkbookMetadataComment(wb *Workbook) string {
	if wb == nil || len(wb.Metadata) == 0 {
		return ""
	}
	data, err := json.Marshal(wb.Metadata)
	if err != nil {
		return ""
	}
	return workbookMetadataPrefix + string(data) + metadataSuffix
}

// WorkbookHeaderBlock is the heading-plus-metadata block that opens the
// workbook section: the root marker line and, when metadata exists, its
// comment line. The Tab Executor regenerates and splices exactly this block.
func WorkbookHeaderBlock(wb *Workbook, schema Schema) []string {
	block := []string{schema.RootMarker}
	if comment := WorkbookMetadataComment(wb); comment != "" {
		block = append(block, comment)
	}
	return block
}

func tableMetadataComment(t *Table) string {
	if len(t.Metadata) == 0 {
		return ""
	}
	data, err := json.Marshal(t.Metadata)
	if err != nil {
		return ""
	}
	return tableMetadataPrefix + string(data) + metadataSuffix
}

// GenerateWorkbook renders the full workbook block as markdown, without a
// trailing newline. The caller decides how the block joins the surrounding
// text.
func GenerateWorkbook(wb *Workbook, schema Schema) string {
	if wb == nil || len(wb.Sheets) == 0 {
		return ""
	}
	var lines []string
	lines = append(lines, WorkbookHeaderBlock(wb, schema)...)

	sheetPrefix := strings.Repeat("#", schema.SheetHeaderLevel) + " "
	tablePrefix := strings.Repeat("#", schema.TableHeaderLevel) + " "

	for _, sheet := range wb.Sheets {
		lines = append(lines, "", sheetPrefix+sheet.Name)
		for ti := range sheet.Tables {
			table := &sheet.Tables[ti]
			if table.Name != "" {
				lines = append(lines, "", tablePrefix+table.Name)
			}
			if schema.CaptureDescription && table.Description != "" {
				lines = append(lines, "", table.Description)
			}
			if comment := tableMetadataComment(table); comment != "" {
				lines = append(lines, "", comment)
			}
			lines = append(lines, "")
			lines = append(lines, renderTableRows(table, schema)...)
		}
	}
	return strings.Join(lines, "\n")
}

func renderTableRows(t *Table, schema Schema) []string {
	width := len(t.Headers)
	for _, row := range t.Rows {
		if len(row) > width {
			width = len(row)
		}
	}
	if width == 0 {
		return nil
	}
	var out []string
	if len(t.Headers) > 0 {
		out = append(out, renderRow(t.Headers, width, schema))
		sep := make([]string, width)
		for i := range sep {
			dashes := strings.Repeat(schema.HeaderSeparatorChar, 3)
			align := ""
			if i < len(t.Alignments) {
				align = t.Alignments[i]
			}
			switch align {
			case "left":
				sep[i] = ":" + dashes
			case "right":
				sep[i] = dashes + ":"
			case "center":
				sep[i] = ":" + dashes + ":"
			default:
				sep[i] = dashes
			}
		}
		out = append(out, renderRow(sep, width, schema))
	}
	for _, row := range t.Rows {
		out = append(out, renderRow(row, width, schema))
	}
	return out
}

func renderRow(cells []string, width int, schema Schema) string {
	padded := make([]string, width)
	for i := 0; i < width; i++ {
		if i < len(cells) {
			padded[i] = cells[i]
		}
	}
	sep := " " + schema.ColumnSeparator + " "
	row := strings.Join(padded, sep)
	if schema.RequireOuterPipes {
		return schema.ColumnSeparator + " " + row + " " + schema.ColumnSeparator
	}
	return row
}

// ReplaceMetadataComment rewrites the workbook metadata comment inside the
// given text, returning the text unchanged (and false) when no comment line
// exists yet.
func ReplaceMetadataComment(text string, wb *Workbook) (string, bool) {
	comment := WorkbookMetadataComment(wb)
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		stripped := strings.TrimSpace(line)
		if strings.HasPrefix(stripped, workbookMetadataPrefix) && strings.HasSuffix(stripped, metadataSuffix) {
			if comment == "" {
				lines = append(lines[:i], lines[i+1:]...)
			} else {
				lines[i] = comment
			}
			return strings.Join(lines, "\n"), true
		}
	}
	return text, false
}
