package editor

import (
	"mdsheet/engine/internal/model"
)

// SetTabOrder persists an explicit display order and regenerates the
// workbook block so the metadata comment carries it.
func (s *Session) SetTabOrder(order []model.TabOrderEntry) model.EditSpec {
	return s.updateWorkbook("set_tab_order", func(wb *model.Workbook) error {
		wb.SetTabOrder(order)
		return nil
	})
}

// ClearTabOrder drops the explicit order; the display order falls back to
// the physical layout.
func (s *Session) ClearTabOrder() model.EditSpec {
	return s.updateWorkbook("clear_tab_order", func(wb *model.Workbook) error {
		wb.ClearTabOrder()
		return nil
	})
}

// reorderTabMetadata patches the persisted tab order after a physical move:
// every index of the moved kind is remapped through the pop-and-insert the
// move performed, and the moved entry itself is repositioned at targetSlot
// in the display list. A workbook without an explicit order is left alone.
func reorderTabMetadata(wb *model.Workbook, kind string, fromIdx, toIdx, targetSlot int) {
	order := wb.TabOrder()
	if len(order) == 0 {
		return
	}

	maxIndex := fromIdx
	found := false
	for _, entry := range order {
		if entry.Kind == kind {
			found = true
			if entry.Index > maxIndex {
				maxIndex = entry.Index
			}
		}
	}
	if !found {
		return
	}

	// Simulate the physical pop/insert over 0..maxIndex to get the index
	// remapping.
	positions := make([]int, 0, maxIndex+1)
	for i := 0; i <= maxIndex; i++ {
		positions = append(positions, i)
	}
	if fromIdx < len(positions) {
		positions = append(positions[:fromIdx], positions[fromIdx+1:]...)
		insert := clamp(toIdx, 0, len(positions))
		positions = append(positions[:insert], append([]int{fromIdx}, positions[insert:]...)...)
	}
	remap := make(map[int]int, len(positions))
	for pos, old := range positions {
		remap[old] = pos
	}

	movedSlot := -1
	for i := range order {
		if order[i].Kind != kind {
			continue
		}
		old := order[i].Index
		if idx, ok := remap[old]; ok {
			order[i].Index = idx
		}
		if old == fromIdx {
			movedSlot = i
		}
	}

	if movedSlot >= 0 && targetSlot >= 0 {
		moved := order[movedSlot]
		order = append(order[:movedSlot], order[movedSlot+1:]...)
		if movedSlot < targetSlot {
			targetSlot--
		}
		targetSlot = clamp(targetSlot, 0, len(order))
		order = append(order[:targetSlot], append([]model.TabOrderEntry{moved}, order[targetSlot:]...)...)
	}
	wb.SetTabOrder(order)
}
