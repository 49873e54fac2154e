package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseWorkbook reads the workbook section out of a markdown document. It is
// the inverse of GenerateWorkbook: sheet headings open sheets, table headings
// and metadata comments attach to the next pipe table, and the separator row
// yields column alignments.
func ParseWorkbook(text string, schema Schema) (*Workbook, error) {
	start, end := WorkbookRange(text, schema)
	lines := strings.Split(text, "\n")
	if start >= len(lines) {
		return nil, fmt.Errorf("no %q section found", schema.RootMarker)
	}
	if end > len(lines) {
		end = len(lines)
	}

	wb := &Workbook{}
	var pendingName, pendingDesc string
	var pendingMeta map[string]any

	currentSheet := func() *Sheet {
		if len(wb.Sheets) == 0 {
			wb.Sheets = append(wb.Sheets, Sheet{})
		}
		return &wb.Sheets[len(wb.Sheets)-1]
	}

	first := start
	if schema.RootMarker != "" {
		first = start + 1
	}
	for i := first; i < end; i++ {
		line := lines[i]
		stripped := strings.TrimSpace(line)
		switch {
		case stripped == "":
			continue
		case strings.HasPrefix(stripped, workbookMetadataPrefix) && strings.HasSuffix(stripped, metadataSuffix):
			payload := stripped[len(workbookMetadataPrefix) : len(stripped)-len(metadataSuffix)]
			var meta map[string]any
			if err := json.Unmarshal([]byte(payload), &meta); err == nil {
				wb.Metadata = meta
			}
		case strings.HasPrefix(stripped, tableMetadataPrefix) && strings.HasSuffix(stripped, metadataSuffix):
			payload := stripped[len(tableMetadataPrefix) : len(stripped)-len(metadataSuffix)]
			var meta map[string]any
			if err := json.Unmarshal([]byte(payload), &meta); err == nil {
				pendingMeta = meta
			}
		case headingLevel(stripped) == schema.SheetHeaderLevel:
			wb.Sheets = append(wb.Sheets, Sheet{Name: headingTitle(stripped)})
			pendingName, pendingDesc, pendingMeta = "", "", nil
		case headingLevel(stripped) == schema.TableHeaderLevel:
			pendingName = headingTitle(stripped)
			pendingDesc, pendingMeta = "", nil
		case strings.HasPrefix(stripped, schema.ColumnSeparator):
			table, consumed := parseTable(lines[i:end], schema)
			table.Name = pendingName
			table.Description = pendingDesc
			table.Metadata = pendingMeta
			sheet := currentSheet()
			sheet.Tables = append(sheet.Tables, table)
			pendingName, pendingDesc, pendingMeta = "", "", nil
			i += consumed - 1
		default:
			if schema.CaptureDescription {
				pendingDesc = stripped
			}
		}
	}
	return wb, nil
}

// parseTable consumes the contiguous run of pipe rows at the head of block.
func parseTable(block []string, schema Schema) (Table, int) {
	var rows [][]string
	var alignSpec []string
	consumed := 0
	sepIdx := -1
	for _, line := range block {
		stripped := strings.TrimSpace(line)
		if !strings.HasPrefix(stripped, schema.ColumnSeparator) {
			break
		}
		consumed++
		cells := splitRow(stripped, schema)
		if sepIdx < 0 && len(rows) == 1 && isSeparatorRow(cells, schema) {
			sepIdx = consumed - 1
			alignSpec = cells
			continue
		}
		rows = append(rows, cells)
	}

	table := Table{}
	if len(rows) > 0 {
		table.Headers = rows[0]
		table.Rows = rows[1:]
	}
	if table.Rows == nil {
		table.Rows = [][]string{}
	}
	if alignSpec != nil {
		aligns := make([]string, len(alignSpec))
		nonEmpty := false
		for i, cell := range alignSpec {
			aligns[i] = alignmentOf(cell)
			if aligns[i] != "" {
				nonEmpty = true
			}
		}
		if nonEmpty {
			table.Alignments = aligns
		}
	}
	return table, consumed
}

// splitRow splits a pipe row into cells, honoring escaped pipes and backtick
// spans, and stripping the outer pipes.
func splitRow(line string, schema Schema) []string {
	sep := byte('|')
	if schema.ColumnSeparator != "" {
		sep = schema.ColumnSeparator[0]
	}
	body := line
	if strings.HasPrefix(body, string(sep)) {
		body = body[1:]
	}
	if strings.HasSuffix(body, string(sep)) && !strings.HasSuffix(body, "\\"+string(sep)) {
		body = body[:len(body)-1]
	}

	var cells []string
	var cur strings.Builder
	inCode := false
	for i := 0; i < len(body); i++ {
		c := body[i]
		switch {
		case c == '`':
			inCode = !inCode
			cur.WriteByte(c)
		case c == '\\' && i+1 < len(body):
			cur.WriteByte(c)
			cur.WriteByte(body[i+1])
			i++
		case c == sep && !inCode:
			cells = append(cells, finishCell(cur.String(), schema))
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	cells = append(cells, finishCell(cur.String(), schema))
	return cells
}

func finishCell(raw string, schema Schema) string {
	if schema.StripWhitespace {
		return strings.TrimSpace(raw)
	}
	return raw
}

func isSeparatorRow(cells []string, schema Schema) bool {
	if len(cells) == 0 {
		return false
	}
	dash := byte('-')
	if schema.HeaderSeparatorChar != "" {
		dash = schema.HeaderSeparatorChar[0]
	}
	for _, cell := range cells {
		body := strings.TrimSpace(cell)
		body = strings.TrimPrefix(body, ":")
		body = strings.TrimSuffix(body, ":")
		if body == "" {
			return false
		}
		for i := 0; i < len(body); i++ {
			if body[i] != dash {
				return false
			}
		}
	}
	return true
}

func alignmentOf(cell string) string {
	body := strings.TrimSpace(cell)
	left := strings.HasPrefix(body, ":")
	right := strings.HasSuffix(body, ":")
	switch {
	case left && right:
		return "center"
	case left:
		return "left"
	case right:
		return "right"
	default:
		return ""
	}
}

func headingTitle(stripped string) string {
	return strings.TrimSpace(strings.TrimLeft(stripped, "#"))
}
