package editor

import (
	"mdsheet/engine/internal/batch"
	"mdsheet/engine/internal/model"
	"mdsheet/engine/internal/tabs"
)

// Tabs returns the display order the tab bar shows: the persisted order when
// one exists, otherwise the order the physical layout implies.
func (s *Session) Tabs() []model.TabOrderEntry {
	if s.wb != nil && s.wb.HasTabOrder() {
		return s.wb.TabOrder()
	}
	return model.DeriveTabOrder(s.Layout())
}

// ReorderTabs handles one tab-bar drag: the reconciler decides what the move
// means physically, the executor drives this session, and every resulting
// patch lands in the batch.
func (s *Session) ReorderTabs(b *batch.Batch, from, to int) tabs.Result {
	exec := tabs.NewExecutor(s.logger)
	return exec.Execute(tabOps{s: s}, s.Tabs(), from, to, tabs.Callbacks{Post: b.Post})
}

// tabOps adapts the session to the executor. The executor persists any
// required tab order itself before the physical move, so every move here runs
// without a display-slot argument.
type tabOps struct {
	s *Session
}

func (o tabOps) Layout() model.PhysicalLayout { return o.s.Layout() }

func (o tabOps) HasTabOrder() bool { return o.s.HasTabOrder() }

func (o tabOps) SetTabOrder(order []model.TabOrderEntry) model.EditSpec {
	return o.s.SetTabOrder(order)
}

func (o tabOps) ClearTabOrder() model.EditSpec { return o.s.ClearTabOrder() }

func (o tabOps) MoveSheet(from, to int) model.EditSpec {
	return o.s.MoveSheet(from, to, -1)
}

// MoveDocument translates the plan's target, a position among the remaining
// documents with the workbook as boundary, into the section move's arguments.
func (o tabOps) MoveDocument(from, to int, beforeWorkbook bool) model.EditSpec {
	layout := o.s.Layout()
	var remaining []int
	boundary := 0
	for _, d := range layout.DocsBefore {
		if d != from {
			remaining = append(remaining, d)
			boundary++
		}
	}
	for _, d := range layout.DocsAfter {
		if d != from {
			remaining = append(remaining, d)
		}
	}

	pos := clamp(to, 0, len(remaining))
	if !layout.HasWorkbook {
		if pos >= len(remaining) {
			return o.s.MoveDocumentSection(from, len(remaining)+1, false, false, -1)
		}
		return o.s.MoveDocumentSection(from, remaining[pos], false, false, -1)
	}
	if beforeWorkbook {
		if pos > boundary {
			pos = boundary
		}
		if pos == boundary {
			return o.s.MoveDocumentSection(from, -1, false, true, -1)
		}
		return o.s.MoveDocumentSection(from, remaining[pos], false, false, -1)
	}
	if pos < boundary {
		pos = boundary
	}
	if pos == boundary {
		return o.s.MoveDocumentSection(from, -1, true, false, -1)
	}
	if pos >= len(remaining) {
		return o.s.MoveDocumentSection(from, len(remaining)+1, false, false, -1)
	}
	return o.s.MoveDocumentSection(from, remaining[pos], false, false, -1)
}

func (o tabOps) MoveWorkbook(before bool, targetDoc int) model.EditSpec {
	return o.s.MoveWorkbookSection(targetDoc, !before, -1)
}
