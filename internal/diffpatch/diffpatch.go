// Package diffpatch narrows full-block EditSpecs down to the minimal line
// range that actually changed, so the host applies small patches instead of
// full-section rewrites.
package diffpatch

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"mdsheet/engine/internal/model"
)

// Apply replays an EditSpec against the text it was computed for and returns
// the resulting text. The spec replaces lines StartLine..EndLine, up to
// EndCol of the end line; the tail of the end line past EndCol survives.
func Apply(text string, spec model.EditSpec) string {
	lines := strings.Split(text, "\n")
	start := clamp(spec.StartLine, 0, len(lines))
	end := clamp(spec.EndLine, 0, len(lines)-1)
	if start >= len(lines) {
		return text + "\n" + spec.Content
	}
	tail := ""
	if end < len(lines) && spec.EndCol <= len(lines[end]) {
		tail = lines[end][spec.EndCol:]
	}
	var b strings.Builder
	for i := 0; i < start; i++ {
		b.WriteString(lines[i])
		b.WriteString("\n")
	}
	b.WriteString(spec.Content)
	b.WriteString(tail)
	for i := end + 1; i < len(lines); i++ {
		b.WriteString("\n")
		b.WriteString(lines[i])
	}
	return b.String()
}

// Narrow trims the unchanged leading and trailing lines off a spec that
// replaces whole lines, leaving the smallest range that still produces the
// same document. Specs carrying an error, or specs whose end column stops
// short of the end line, are returned untouched.
func Narrow(text string, spec model.EditSpec) model.EditSpec {
	if spec.Err != "" {
		return spec
	}
	lines := strings.Split(text, "\n")
	if spec.StartLine < 0 || spec.EndLine >= len(lines) || spec.StartLine > spec.EndLine {
		return spec
	}
	if spec.EndCol != len(lines[spec.EndLine]) {
		return spec
	}

	oldLines := lines[spec.StartLine : spec.EndLine+1]
	newLines := strings.Split(spec.Content, "\n")

	prefix, suffix := commonLineAffixes(strings.Join(oldLines, "\n"), spec.Content)

	// Keep at least one line on each side so the spec stays well formed even
	// when nothing changed.
	maxTrim := min(len(oldLines), len(newLines)) - 1
	if maxTrim < 0 {
		return spec
	}
	if prefix > maxTrim {
		prefix = maxTrim
	}
	if prefix+suffix > maxTrim {
		suffix = maxTrim - prefix
	}
	if prefix == 0 && suffix == 0 {
		return spec
	}

	narrowed := model.EditSpec{
		StartLine: spec.StartLine + prefix,
		EndLine:   spec.EndLine - suffix,
		Content:   strings.Join(newLines[prefix:len(newLines)-suffix], "\n"),
	}
	narrowed.EndCol = len(lines[narrowed.EndLine])
	return narrowed
}

// commonLineAffixes counts whole lines shared at the head and tail of two
// texts, via a line-level diff.
func commonLineAffixes(before, after string) (prefix, suffix int) {
	dmp := diffmatchpatch.New()
	beforeChars, afterChars, lineArray := dmp.DiffLinesToChars(before+"\n", after+"\n")
	diffs := dmp.DiffMain(beforeChars, afterChars, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)
	if len(diffs) == 0 {
		return 0, 0
	}
	if diffs[0].Type == diffmatchpatch.DiffEqual {
		prefix = fullLineCount(diffs[0].Text)
	}
	if last := diffs[len(diffs)-1]; last.Type == diffmatchpatch.DiffEqual && len(diffs) > 1 {
		suffix = fullLineCount(last.Text)
	}
	return prefix, suffix
}

func fullLineCount(chunk string) int {
	return strings.Count(chunk, "\n")
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

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
