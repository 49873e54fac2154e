package diffpatch

import (
	"strings"
	"testing"

	"mdsheet/engine/internal/model"
)

func TestApplyReplacesRange(t *testing.T) {
	text := "a\nb\nc\nd"
	spec := model.EditSpec{StartLine: 1, EndLine: 2, EndCol: 1, Content: "B\nC"}
	got := Apply(text, spec)
	if got != "a\nB\nC\nd" {
		t.Fatalf("Apply = %q", got)
	}
}

func TestApplyKeepsTailPastEndCol(t *testing.T) {
	text := "a\nbcd\ne"
	spec := model.EditSpec{StartLine: 1, EndLine: 1, EndCol: 1, Content: "X"}
	got := Apply(text, spec)
	if got != "a\nXcd\ne" {
		t.Fatalf("Apply = %q", got)
	}
}

func TestNarrowSingleChangedLine(t *testing.T) {
	text := "# Tables\n\n## Sheet1\n\n| A |\n| --- |\n| 1 |\n| 2 |"
	lines := strings.Split(text, "\n")
	content := "# Tables\n\n## Sheet1\n\n| A |\n| --- |\n| 9 |\n| 2 |"
	spec := model.EditSpec{
		StartLine: 0,
		EndLine:   len(lines) - 1,
		EndCol:    len(lines[len(lines)-1]),
		Content:   content,
	}
	narrowed := Narrow(text, spec)
	if narrowed.StartLine != 6 || narrowed.EndLine != 6 {
		t.Fatalf("expected narrow to line 6, got %+v", narrowed)
	}
	if narrowed.Content != "| 9 |" {
		t.Fatalf("unexpected content %q", narrowed.Content)
	}
	if Apply(text, narrowed) != content {
		t.Fatalf("narrowed spec does not reproduce target text")
	}
}

func TestNarrowNoChangeKeepsWellFormedSpec(t *testing.T) {
	text := "a\nb\nc"
	spec := model.EditSpec{StartLine: 0, EndLine: 2, EndCol: 1, Content: "a\nb\nc"}
	narrowed := Narrow(text, spec)
	if Apply(text, narrowed) != text {
		t.Fatalf("no-change spec must be an identity patch")
	}
	if narrowed.EndLine-narrowed.StartLine >= 2 {
		t.Fatalf("expected narrowing, got %+v", narrowed)
	}
}

func TestNarrowLeavesErrorSpecsAlone(t *testing.T) {
	spec := model.EditSpec{Err: "boom"}
	if got := Narrow("a", spec); got != spec {
		t.Fatalf("error spec should pass through, got %+v", got)
	}
}

func TestNarrowGrowingContent(t *testing.T) {
	text := "h\nrow1\nend"
	content := "h\nrow1\nrow2\nend"
	spec := model.EditSpec{StartLine: 0, EndLine: 2, EndCol: 3, Content: content}
	narrowed := Narrow(text, spec)
	if Apply(text, narrowed) != content {
		t.Fatalf("narrowed spec must reproduce target, got %+v -> %q", narrowed, Apply(text, narrowed))
	}
}
