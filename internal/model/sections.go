package model

import "strings"

const (
	SectionWorkbook = "workbook"
	SectionDocument = "document"
)

// Section is one top-level region of the backing text: either the workbook
// block or a free-standing document. Start and End are inclusive line
// indices.
type Section struct {
	Kind  string `json:"type"`
	Title string `json:"title,omitempty"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// PhysicalLayout describes where documents sit relative to the workbook
// block in the backing text. Indices are document/sheet ordinals in file
// order. All sheets always form one contiguous block.
type PhysicalLayout struct {
	DocsBefore  []int
	Sheets      []int
	DocsAfter   []int
	HasWorkbook bool
}

func headingLevel(s string) int {
	level := 0
	for _, c := range s {
		if c != '#' {
			break
		}
		level++
	}
	return level
}

// ScanSections splits the text into workbook and document sections. Only
// headings at the schema's document level split sections, and fenced code
// blocks are skipped so a "# " inside a fence cannot break a document apart.
func ScanSections(text string, schema Schema) []Section {
	lines := strings.Split(text, "\n")
	var sections []Section
	currentStart := -1
	currentKind := ""
	currentTitle := ""
	inCodeBlock := false

	flush := func(end int) {
		if currentStart >= 0 {
			sections = append(sections, Section{
				Kind:  currentKind,
				Title: currentTitle,
				Start: currentStart,
				End:   end,
			})
		}
	}

	for i, line := range lines {
		stripped := strings.TrimSpace(line)
		if strings.HasPrefix(stripped, "```") {
			inCodeBlock = !inCodeBlock
			continue
		}
		if inCodeBlock || !strings.HasPrefix(stripped, "#") {
			continue
		}
		if headingLevel(stripped) != schema.DocHeaderLevel {
			continue
		}
		flush(i - 1)
		currentStart = i
		if stripped == schema.RootMarker {
			currentKind = SectionWorkbook
			currentTitle = ""
		} else {
			currentKind = SectionDocument
			currentTitle = strings.TrimSpace(strings.TrimLeft(stripped, "#"))
		}
	}
	flush(len(lines) - 1)
	return sections
}

// DocumentSections filters the scan down to documents, in file order.
func DocumentSections(sections []Section) []Section {
	var docs []Section
	for _, s := range sections {
		if s.Kind == SectionDocument {
			docs = append(docs, s)
		}
	}
	return docs
}

// WorkbookSectionOf returns the workbook section, if present.
func WorkbookSectionOf(sections []Section) (Section, bool) {
	for _, s := range sections {
		if s.Kind == SectionWorkbook {
			return s, true
		}
	}
	return Section{}, false
}

// LayoutOf derives the physical layout from a section scan and the sheet
// count of the in-memory workbook.
func LayoutOf(sections []Section, sheetCount int) PhysicalLayout {
	layout := PhysicalLayout{}
	docIdx := 0
	seenWorkbook := false
	for _, s := range sections {
		switch s.Kind {
		case SectionWorkbook:
			seenWorkbook = true
			layout.HasWorkbook = true
		case SectionDocument:
			if seenWorkbook {
				layout.DocsAfter = append(layout.DocsAfter, docIdx)
			} else {
				layout.DocsBefore = append(layout.DocsBefore, docIdx)
			}
			docIdx++
		}
	}
	for i := 0; i < sheetCount; i++ {
		layout.Sheets = append(layout.Sheets, i)
	}
	return layout
}

// DeriveTabOrder is the file-derivable display order: documents before the
// workbook, then the sheets, then documents after it, each in file order.
// A persisted tab order is redundant exactly when it equals this.
func DeriveTabOrder(layout PhysicalLayout) []TabOrderEntry {
	order := make([]TabOrderEntry, 0, len(layout.DocsBefore)+len(layout.Sheets)+len(layout.DocsAfter))
	for _, d := range layout.DocsBefore {
		order = append(order, TabOrderEntry{Kind: TabKindDocument, Index: d})
	}
	for _, s := range layout.Sheets {
		order = append(order, TabOrderEntry{Kind: TabKindSheet, Index: s})
	}
	for _, d := range layout.DocsAfter {
		order = append(order, TabOrderEntry{Kind: TabKindDocument, Index: d})
	}
	return order
}

// WorkbookRange locates the workbook block in the text. Start is the root
// marker line (or len(lines) when absent); End is the line of the first
// later heading above the sheet level, or len(lines) when the block runs to
// the end of file.
func WorkbookRange(text string, schema Schema) (start, end int) {
	lines := strings.Split(text, "\n")
	start = 0
	found := false
	inCodeBlock := false
	if schema.RootMarker != "" {
		for i, line := range lines {
			stripped := strings.TrimSpace(line)
			if strings.HasPrefix(stripped, "```") {
				inCodeBlock = !inCodeBlock
			}
			if !inCodeBlock && stripped == schema.RootMarker {
				start = i
				found = true
				break
			}
		}
		if !found {
			start = len(lines)
		}
	}

	end = len(lines)
	inCodeBlock = false
	for i := start + 1; i < len(lines); i++ {
		stripped := strings.TrimSpace(lines[i])
		if strings.HasPrefix(stripped, "```") {
			inCodeBlock = !inCodeBlock
		}
		if !inCodeBlock && strings.HasPrefix(stripped, "#") {
			if headingLevel(stripped) < schema.SheetHeaderLevel {
				end = i
				break
			}
		}
	}
	return start, end
}

// AugmentSheetHeaderLines records the physical line of each sheet heading on
// the workbook model, for the host's state dump.
func AugmentSheetHeaderLines(wb *Workbook, text string, schema Schema) {
	lines := strings.Split(text, "\n")
	startIndex := 0
	inCodeBlock := false
	if schema.RootMarker != "" {
		for i, line := range lines {
			stripped := strings.TrimSpace(line)
			if strings.HasPrefix(stripped, "```") {
				inCodeBlock = !inCodeBlock
			}
			if !inCodeBlock && stripped == schema.RootMarker {
				startIndex = i + 1
				break
			}
		}
	}

	prefix := strings.Repeat("#", schema.SheetHeaderLevel) + " "
	sheetIdx := 0
	inCodeBlock = false
	for i := startIndex; i < len(lines); i++ {
		stripped := strings.TrimSpace(lines[i])
		if strings.HasPrefix(stripped, "```") {
			inCodeBlock = !inCodeBlock
		}
		if inCodeBlock {
			continue
		}
		if strings.HasPrefix(stripped, "#") && headingLevel(stripped) < schema.SheetHeaderLevel {
			break
		}
		if strings.HasPrefix(stripped, prefix) {
			if sheetIdx >= len(wb.Sheets) {
				break
			}
			wb.Sheets[sheetIdx].HeaderLine = i
			sheetIdx++
		}
	}
}
