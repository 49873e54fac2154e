package model

import (
	"strings"
	"testing"
)

const sampleText = `# Doc1

Intro text.

# Tables

## Sheet1

| A | B |
| --- | --- |
| 1 | 2 |

# Doc2

More text.`

func TestScanSections(t *testing.T) {
	sections := ScanSections(sampleText, DefaultSchema())
	if len(sections) != 3 {
		t.Fatalf("expected 3 sections, got %d: %+v", len(sections), sections)
	}
	if sections[0].Kind != SectionDocument || sections[0].Title != "Doc1" {
		t.Fatalf("unexpected first section: %+v", sections[0])
	}
	if sections[1].Kind != SectionWorkbook {
		t.Fatalf("expected workbook section second, got %+v", sections[1])
	}
	if sections[2].Kind != SectionDocument || sections[2].Title != "Doc2" {
		t.Fatalf("unexpected last section: %+v", sections[2])
	}
	if sections[0].Start != 0 || sections[0].End != 3 {
		t.Fatalf("unexpected Doc1 range: %+v", sections[0])
	}
	if sections[1].Start != 4 {
		t.Fatalf("expected workbook to start at root marker line, got %d", sections[1].Start)
	}
}

func TestScanSectionsIgnoresHeadingsInCodeFences(t *testing.T) {
	text := "# Doc1\n\n```\n# not a heading\n```\n\n# Doc2\n"
	sections := ScanSections(text, DefaultSchema())
	if len(sections) != 2 {
		t.Fatalf("expected 2 sections, got %d: %+v", len(sections), sections)
	}
}

func TestLayoutAndDerivedOrder(t *testing.T) {
	sections := ScanSections(sampleText, DefaultSchema())
	layout := LayoutOf(sections, 1)
	if !layout.HasWorkbook {
		t.Fatalf("expected workbook present")
	}
	if len(layout.DocsBefore) != 1 || layout.DocsBefore[0] != 0 {
		t.Fatalf("unexpected docs before: %v", layout.DocsBefore)
	}
	if len(layout.DocsAfter) != 1 || layout.DocsAfter[0] != 1 {
		t.Fatalf("unexpected docs after: %v", layout.DocsAfter)
	}
	order := DeriveTabOrder(layout)
	want := []TabOrderEntry{
		{Kind: TabKindDocument, Index: 0},
		{Kind: TabKindSheet, Index: 0},
		{Kind: TabKindDocument, Index: 1},
	}
	if !EqualOrders(order, want) {
		t.Fatalf("derived order = %v, want %v", order, want)
	}
}

func TestWorkbookRange(t *testing.T) {
	start, end := WorkbookRange(sampleText, DefaultSchema())
	lines := strings.Split(sampleText, "\n")
	if lines[start] != "# Tables" {
		t.Fatalf("start %d does not point at root marker", start)
	}
	if lines[end] != "# Doc2" {
		t.Fatalf("end %d should point at the next document heading, got %q", end, lines[end])
	}
}

func TestWorkbookRangeMissingMarker(t *testing.T) {
	text := "# Doc1\n\nBody."
	start, _ := WorkbookRange(text, DefaultSchema())
	if start != len(strings.Split(text, "\n")) {
		t.Fatalf("expected start past end of file, got %d", start)
	}
}

func TestAugmentSheetHeaderLines(t *testing.T) {
	wb := &Workbook{Sheets: []Sheet{{Name: "Sheet1"}}}
	AugmentSheetHeaderLines(wb, sampleText, DefaultSchema())
	lines := strings.Split(sampleText, "\n")
	if lines[wb.Sheets[0].HeaderLine] != "## Sheet1" {
		t.Fatalf("sheet header line %d wrong", wb.Sheets[0].HeaderLine)
	}
}
