package editor

import (
	"fmt"
	"strings"

	"mdsheet/engine/internal/batch"
	"mdsheet/engine/internal/diffpatch"
	"mdsheet/engine/internal/model"
)

func (s *Session) sections() []model.Section {
	return model.ScanSections(s.text, s.schema)
}

func (s *Session) docSections() []model.Section {
	return model.DocumentSections(s.sections())
}

// DocumentRange reports the inclusive line range of one document section.
func (s *Session) DocumentRange(docIdx int) (start, end, endCol int, err error) {
	docs := s.docSections()
	if docIdx < 0 || docIdx >= len(docs) {
		return 0, 0, 0, fmt.Errorf("%w: document %d", model.ErrInvalidIndex, docIdx)
	}
	lines := strings.Split(s.text, "\n")
	target := docs[docIdx]
	endCol = 0
	if target.End < len(lines) {
		endCol = len(lines[target.End])
	}
	return target.Start, target.End, endCol, nil
}

// AddDocument inserts a new "# Title" section. afterDocIndex < 0 with
// afterWorkbook false prepends; the tab order gains an entry for the new
// document, shifted indices included, and the workbook block is regenerated
// so the metadata comment stays true. Both patches go into the batch.
func (s *Session) AddDocument(b *batch.Batch, title string, afterDocIndex int, afterWorkbook bool, insertAfterSlot int) error {
	if title == "" {
		title = "New Document"
	}
	originalText := s.text
	lines := strings.Split(s.text, "\n")
	sections := s.sections()

	insertLine := 0
	switch {
	case afterWorkbook:
		if wbSection, ok := model.WorkbookSectionOf(sections); ok {
			insertLine = wbSection.End + 1
		}
	case afterDocIndex >= 0:
		insertLine = len(lines)
		docCount := 0
		for _, sec := range sections {
			if sec.Kind != model.SectionDocument {
				continue
			}
			if docCount == afterDocIndex {
				insertLine = sec.End + 1
				break
			}
			docCount++
		}
	}

	heading := strings.Repeat("#", s.schema.DocHeaderLevel) + " " + title
	var content string
	switch {
	case insertLine >= len(lines):
		content = "\n" + heading + "\n"
	case insertLine > 0:
		content = "\n" + heading + "\n\n"
	default:
		content = heading + "\n\n"
	}
	spec := model.EditSpec{StartLine: insertLine, EndLine: insertLine, EndCol: 0, Content: content}
	s.text = diffpatch.Apply(s.text, spec)
	if err := b.Post(spec); err != nil {
		return err
	}

	if s.wb == nil {
		return nil
	}
	hadOrder := s.wb.HasTabOrder()
	// Slot the new document into the tab order; the index counts document
	// sections physically above the insertion point.
	order := s.wb.TabOrder()
	if len(order) == 0 {
		layout := model.LayoutOf(model.ScanSections(originalText, s.schema), len(s.wb.Sheets))
		order = model.DeriveTabOrder(layout)
	}
	newDocIndex := 0
	for _, sec := range model.DocumentSections(model.ScanSections(originalText, s.schema)) {
		if sec.Start < insertLine {
			newDocIndex++
		}
	}
	for i := range order {
		if order[i].Kind == model.TabKindDocument && order[i].Index >= newDocIndex {
			order[i].Index++
		}
	}
	entry := model.TabOrderEntry{Kind: model.TabKindDocument, Index: newDocIndex}
	if insertAfterSlot >= 0 {
		pos := clamp(insertAfterSlot+1, 0, len(order))
		order = append(order[:pos], append([]model.TabOrderEntry{entry}, order[pos:]...)...)
	} else {
		order = append(order, entry)
	}
	clone := s.wb.Clone()
	s.setOrCleanTabOrder(clone, order)
	s.wb = clone
	if (s.wb.HasTabOrder() || hadOrder) && len(s.wb.Sheets) > 0 {
		return b.Post(s.regenerate())
	}
	return nil
}

// RenameDocument rewrites the section heading in place.
func (s *Session) RenameDocument(docIdx int, newTitle string) model.EditSpec {
	lines := strings.Split(s.text, "\n")
	docs := s.docSections()
	if docIdx < 0 || docIdx >= len(docs) {
		return s.errSpec("rename_document", fmt.Errorf("%w: document %d", model.ErrInvalidIndex, docIdx))
	}
	headingLine := docs[docIdx].Start
	heading := strings.Repeat("#", s.schema.DocHeaderLevel) + " " + newTitle
	spec := model.EditSpec{
		StartLine: headingLine,
		EndLine:   headingLine,
		EndCol:    len(lines[headingLine]),
		Content:   heading,
	}
	s.text = diffpatch.Apply(s.text, spec)
	return spec
}

// DeleteDocument removes a section including its separator blank line, and
// drops the document from the tab order (higher indices shift down). The
// removal patch and the metadata patch both go into the batch.
func (s *Session) DeleteDocument(b *batch.Batch, docIdx int) error {
	lines := strings.Split(s.text, "\n")
	docs := s.docSections()
	if docIdx < 0 || docIdx >= len(docs) {
		err := fmt.Errorf("%w: document %d", model.ErrInvalidIndex, docIdx)
		_ = b.Post(s.errSpec("delete_document", err))
		return err
	}
	start := docs[docIdx].Start
	end := docs[docIdx].End
	for end > start && strings.TrimSpace(lines[end]) == "" {
		end--
	}
	if end < len(lines)-1 {
		end++
	}

	var spec model.EditSpec
	switch {
	case start > 0:
		// Anchor on the preceding line so the deleted lines vanish without
		// leaving an empty slot.
		spec = model.EditSpec{StartLine: start - 1, EndLine: end, EndCol: len(lines[end]), Content: lines[start-1]}
	case end < len(lines)-1:
		spec = model.EditSpec{StartLine: 0, EndLine: end + 1, EndCol: len(lines[end+1]), Content: lines[end+1]}
	default:
		spec = model.EditSpec{StartLine: 0, EndLine: end, EndCol: len(lines[end]), Content: ""}
	}
	s.text = diffpatch.Apply(s.text, spec)
	if err := b.Post(spec); err != nil {
		return err
	}

	if s.wb == nil || !s.wb.HasTabOrder() {
		return nil
	}
	clone := s.wb.Clone()
	order := clone.TabOrder()
	var kept []model.TabOrderEntry
	for _, entry := range order {
		if entry.Kind == model.TabKindDocument {
			if entry.Index == docIdx {
				continue
			}
			if entry.Index > docIdx {
				entry.Index--
			}
		}
		kept = append(kept, entry)
	}
	s.setOrCleanTabOrder(clone, kept)
	s.wb = clone
	return b.Post(s.regenerate())
}

// MoveDocumentSection physically relocates one document. Exactly one of
// toDocIdx >= 0, toAfterWorkbook or toBeforeWorkbook selects the target.
// With targetSlot >= 0 the persisted tab order is remapped and the moved
// entry repositioned at that display slot.
func (s *Session) MoveDocumentSection(fromDocIdx, toDocIdx int, toAfterWorkbook, toBeforeWorkbook bool, targetSlot int) model.EditSpec {
	lines := strings.Split(s.text, "\n")
	sections := s.sections()
	docs := model.DocumentSections(sections)
	if fromDocIdx < 0 || fromDocIdx >= len(docs) {
		return s.errSpec("move_document", fmt.Errorf("%w: document %d", model.ErrInvalidIndex, fromDocIdx))
	}
	if toDocIdx >= 0 && toDocIdx == fromDocIdx && targetSlot < 0 {
		return model.EditSpec{StartLine: 0, EndLine: 0, Content: ""}
	}

	source := docs[fromDocIdx]
	targetLine := 0
	switch {
	case toAfterWorkbook:
		if wbSection, ok := model.WorkbookSectionOf(sections); ok {
			targetLine = wbSection.End + 1
		}
	case toBeforeWorkbook:
		if wbSection, ok := model.WorkbookSectionOf(sections); ok {
			targetLine = wbSection.Start
		}
	case toDocIdx >= 0:
		if toDocIdx >= len(docs) {
			targetLine = len(lines)
		} else {
			targetLine = docs[toDocIdx].Start
		}
	default:
		return s.errSpec("move_document", fmt.Errorf("no target position specified"))
	}

	newText := spliceLines(lines, source.Start, source.End, targetLine)

	if s.wb != nil && targetSlot >= 0 {
		clone := s.wb.Clone()
		effectiveTo := toDocIdx
		if effectiveTo < 0 {
			// Count documents displayed before the target slot, the moved one
			// excluded: that is the document position the move lands at.
			order := clone.TabOrder()
			effectiveTo = 0
			for i := 0; i < targetSlot && i < len(order); i++ {
				if order[i].Kind == model.TabKindDocument && order[i].Index != fromDocIdx {
					effectiveTo++
				}
			}
		}
		reorderTabMetadata(clone, model.TabKindDocument, fromDocIdx, effectiveTo, targetSlot)
		s.wb = clone
		newText = s.syncMetadataComment(newText)
	}

	return s.replaceAllText(newText, lines)
}

// MoveWorkbookSection relocates the whole workbook block before or after one
// document. With targetSlot >= 0 the contiguous run of sheet entries in the
// tab order is re-anchored at that display slot.
func (s *Session) MoveWorkbookSection(toDocIdx int, toAfterDoc bool, targetSlot int) model.EditSpec {
	lines := strings.Split(s.text, "\n")
	sections := s.sections()
	wbSection, ok := model.WorkbookSectionOf(sections)
	if !ok {
		return s.errSpec("move_workbook", fmt.Errorf("no workbook section found"))
	}
	docs := model.DocumentSections(sections)
	if toDocIdx < 0 || toDocIdx > len(docs) {
		return s.errSpec("move_workbook", fmt.Errorf("%w: document %d", model.ErrInvalidIndex, toDocIdx))
	}

	targetLine := len(lines)
	if toDocIdx < len(docs) {
		if toAfterDoc {
			targetLine = docs[toDocIdx].End + 1
		} else {
			targetLine = docs[toDocIdx].Start
		}
	}

	newText := spliceLines(lines, wbSection.Start, wbSection.End, targetLine)

	if s.wb != nil && targetSlot >= 0 && s.wb.HasTabOrder() {
		clone := s.wb.Clone()
		order := clone.TabOrder()
		var sheets, others []model.TabOrderEntry
		for _, entry := range order {
			if entry.Kind == model.TabKindSheet {
				sheets = append(sheets, entry)
			} else {
				others = append(others, entry)
			}
		}
		slot := clamp(targetSlot, 0, len(others))
		merged := append(append(append([]model.TabOrderEntry{}, others[:slot]...), sheets...), others[slot:]...)
		clone.SetTabOrder(merged)
		s.wb = clone
		newText = s.syncMetadataComment(newText)
	}

	return s.replaceAllText(newText, lines)
}

// replaceAllText commits newText and returns the full-document replacement
// spec against the pre-move lines. Like regenerate, the spec stays
// unnarrowed so batch merging sees cumulative content.
func (s *Session) replaceAllText(newText string, oldLines []string) model.EditSpec {
	spec := model.EditSpec{
		StartLine: 0,
		EndLine:   len(oldLines) - 1,
		EndCol:    len(oldLines[len(oldLines)-1]),
		Content:   newText,
	}
	s.text = newText
	return spec
}

// syncMetadataComment rewrites the workbook metadata comment inside text, or
// inserts one at the end of the workbook block when none exists yet.
func (s *Session) syncMetadataComment(text string) string {
	if s.wb == nil {
		return text
	}
	if out, ok := model.ReplaceMetadataComment(text, s.wb); ok {
		return out
	}
	comment := model.WorkbookMetadataComment(s.wb)
	if comment == "" {
		return text
	}
	lines := strings.Split(text, "\n")
	_, end := model.WorkbookRange(text, s.schema)
	insert := clamp(end, 0, len(lines))
	lines = append(lines[:insert], append([]string{"", comment}, lines[insert:]...)...)
	return strings.Join(lines, "\n")
}

// spliceLines moves the inclusive line block [srcStart, srcEnd] so it starts
// at targetLine (expressed against the pre-move line numbering).
func spliceLines(lines []string, srcStart, srcEnd, targetLine int) string {
	block := append([]string{}, lines[srcStart:srcEnd+1]...)
	rest := append([]string{}, lines[:srcStart]...)
	rest = append(rest, lines[srcEnd+1:]...)

	adjusted := targetLine
	if targetLine > srcStart {
		adjusted = targetLine - len(block)
	}
	adjusted = clamp(adjusted, 0, len(rest))

	out := append([]string{}, rest[:adjusted]...)
	out = append(out, block...)
	out = append(out, rest[adjusted:]...)
	return strings.Join(out, "\n")
}
