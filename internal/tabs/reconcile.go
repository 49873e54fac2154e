// Package tabs reconciles the UI's logical tab order with the physical
// section order of the backing text. PlanReorder decides the minimal
// structural action for a tab-bar drag; Execute applies the plan.
package tabs

import (
	"fmt"

	"mdsheet/engine/internal/model"
)

const (
	ActionNone             = "no-op"
	ActionPhysical         = "physical"
	ActionMetadata         = "metadata"
	ActionPhysicalMetadata = "physical+metadata"
)

const (
	MoveSheet    = "sheet"
	MoveDocument = "document"
	MoveWorkbook = "workbook"
)

// Move is one physical relocation. Sheet and document moves carry From (the
// current ordinal) and To (the insertion position after removal). Workbook
// moves place the whole block before or after TargetDoc.
type Move struct {
	Kind      string
	From      int
	To        int
	Before    bool
	TargetDoc int
}

// Plan is the reconciler's decision. NewTabOrder, when present, is expressed
// in post-move indices. TargetSlot is the display position the moved tab
// lands in, for maintaining a pre-existing explicit order.
type Plan struct {
	Action           string
	Move             *Move
	NewTabOrder      []model.TabOrderEntry
	MetadataRequired bool
	TargetSlot       int
}

// PlanReorder maps a requested tab-bar reorder (drag tab at from to the gap
// at to, 0..len(tabs)) onto a structural action. Pure: no side effects.
//
// Two invariants drive the decision: all sheets form one contiguous physical
// block, and a document displayed between two sheets must physically sit
// immediately after the workbook.
func PlanReorder(tabs []model.TabOrderEntry, layout model.PhysicalLayout, from, to int) (Plan, error) {
	if from < 0 || from >= len(tabs) || to < 0 || to > len(tabs) {
		return Plan{}, fmt.Errorf("%w: reorder %d -> %d of %d tabs", model.ErrInvalidIndex, from, to, len(tabs))
	}
	if to == from || to == from+1 {
		return Plan{Action: ActionNone}, nil
	}

	moved := tabs[from]
	rest := append(append([]model.TabOrderEntry{}, tabs[:from]...), tabs[from+1:]...)
	slot := to
	if to > from {
		slot = to - 1
	}
	newOrder := make([]model.TabOrderEntry, 0, len(tabs))
	newOrder = append(newOrder, rest[:slot]...)
	newOrder = append(newOrder, moved)
	newOrder = append(newOrder, rest[slot:]...)

	var left, right *model.TabOrderEntry
	if slot > 0 {
		left = &rest[slot-1]
	}
	if slot < len(rest) {
		right = &rest[slot]
	}

	if moved.Kind == model.TabKindSheet {
		return planSheetMove(layout, moved, rest, newOrder, slot, left, right, to == len(tabs))
	}
	return planDocumentMove(layout, moved, rest, newOrder, slot, left, right)
}

func planSheetMove(layout model.PhysicalLayout, moved model.TabOrderEntry, rest, newOrder []model.TabOrderEntry, slot int, left, right *model.TabOrderEntry, atEnd bool) (Plan, error) {
	nearSheet := (left != nil && left.Kind == model.TabKindSheet) ||
		(right != nil && right.Kind == model.TabKindSheet)
	if nearSheet || atEnd {
		target := countKind(rest[:slot], model.TabKindSheet)
		if atEnd && !nearSheet {
			target = len(layout.Sheets) - 1
		}
		move := &Move{Kind: MoveSheet, From: moved.Index, To: target}
		return finishPhysical(layout, move, newOrder, slot), nil
	}

	// The gap sits among documents: a lone sheet cannot detach from its
	// workbook, so the whole workbook block moves relative to the nearest
	// document instead.
	move := &Move{Kind: MoveWorkbook}
	switch {
	case right != nil && right.Kind == model.TabKindDocument && containsInt(layout.DocsBefore, right.Index):
		move.Before = true
		move.TargetDoc = right.Index
	case left != nil && left.Kind == model.TabKindDocument:
		move.TargetDoc = left.Index
	case right != nil && right.Kind == model.TabKindDocument:
		move.Before = true
		move.TargetDoc = right.Index
	default:
		return Plan{Action: ActionNone}, nil
	}
	return finishPhysical(layout, move, newOrder, slot), nil
}

func planDocumentMove(layout model.PhysicalLayout, moved model.TabOrderEntry, rest, newOrder []model.TabOrderEntry, slot int, left, right *model.TabOrderEntry) (Plan, error) {
	betweenSheets := left != nil && left.Kind == model.TabKindSheet &&
		right != nil && right.Kind == model.TabKindSheet
	if betweenSheets {
		if containsInt(layout.DocsBefore, moved.Index) {
			// Physically relocate to the first slot after the workbook, then
			// record the exact logical position.
			move := &Move{Kind: MoveDocument, From: moved.Index, To: len(layout.DocsBefore) - 1}
			remap := remapAfterMove(docCount(layout), move.From, move.To)
			return Plan{
				Action:           ActionPhysicalMetadata,
				Move:             move,
				NewTabOrder:      relabel(newOrder, model.TabKindDocument, remap),
				MetadataRequired: true,
				TargetSlot:       slot,
			}, nil
		}
		// Already physically after the workbook: the divergence lives only in
		// the persisted order.
		return Plan{
			Action:           ActionMetadata,
			NewTabOrder:      newOrder,
			MetadataRequired: true,
			TargetSlot:       slot,
		}, nil
	}

	target := countKind(rest[:slot], model.TabKindDocument)
	move := &Move{Kind: MoveDocument, From: moved.Index, To: target}
	firstSheet := firstKindPos(rest, model.TabKindSheet)
	move.Before = firstSheet < 0 || slot <= firstSheet
	return finishPhysical(layout, move, newOrder, slot), nil
}

// finishPhysical applies the fallback rule: simulate the post-move layout and
// display order, and require metadata exactly when the order is no longer
// file-derivable.
func finishPhysical(layout model.PhysicalLayout, move *Move, newOrder []model.TabOrderEntry, slot int) Plan {
	newLayout, relabeled := simulate(layout, move, newOrder)
	plan := Plan{Action: ActionPhysical, Move: move, TargetSlot: slot}
	if !model.EqualOrders(relabeled, model.DeriveTabOrder(newLayout)) {
		plan.Action = ActionPhysicalMetadata
		plan.MetadataRequired = true
		plan.NewTabOrder = relabeled
	}
	return plan
}

// simulate computes the physical layout and the relabeled display order that
// the move would produce.
func simulate(layout model.PhysicalLayout, move *Move, newOrder []model.TabOrderEntry) (model.PhysicalLayout, []model.TabOrderEntry) {
	out := model.PhysicalLayout{HasWorkbook: layout.HasWorkbook}
	docs := docCount(layout)
	switch move.Kind {
	case MoveSheet:
		out.DocsBefore = append([]int{}, layout.DocsBefore...)
		out.DocsAfter = append([]int{}, layout.DocsAfter...)
		remap := remapAfterMove(len(layout.Sheets), move.From, move.To)
		for i := 0; i < len(layout.Sheets); i++ {
			out.Sheets = append(out.Sheets, i)
		}
		return out, relabel(newOrder, model.TabKindSheet, remap)
	case MoveDocument:
		boundary := len(layout.DocsBefore)
		if move.From < boundary {
			boundary--
		}
		to := move.To
		if move.Before {
			if to > boundary {
				to = boundary
			}
			boundary++
		} else if to < boundary {
			to = boundary
		}
		move.To = to
		remap := remapAfterMove(docs, move.From, to)
		for i := 0; i < docs; i++ {
			if i < boundary {
				out.DocsBefore = append(out.DocsBefore, i)
			} else {
				out.DocsAfter = append(out.DocsAfter, i)
			}
		}
		out.Sheets = append([]int{}, layout.Sheets...)
		return out, relabel(newOrder, model.TabKindDocument, remap)
	case MoveWorkbook:
		boundary := move.TargetDoc
		if !move.Before {
			boundary = move.TargetDoc + 1
		}
		for i := 0; i < docs; i++ {
			if i < boundary {
				out.DocsBefore = append(out.DocsBefore, i)
			} else {
				out.DocsAfter = append(out.DocsAfter, i)
			}
		}
		out.Sheets = append([]int{}, layout.Sheets...)
		return out, newOrder
	}
	return layout, newOrder
}

// remapAfterMove maps pre-move ordinals to post-move ordinals for a
// pop-then-insert relocation within a list of n items.
func remapAfterMove(n, from, to int) map[int]int {
	if n <= 0 || from < 0 || from >= n {
		return nil
	}
	order := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if i != from {
			order = append(order, i)
		}
	}
	if to < 0 {
		to = 0
	}
	if to > len(order) {
		to = len(order)
	}
	order = append(order[:to], append([]int{from}, order[to:]...)...)
	remap := make(map[int]int, n)
	for pos, old := range order {
		remap[old] = pos
	}
	return remap
}

func relabel(order []model.TabOrderEntry, kind string, remap map[int]int) []model.TabOrderEntry {
	out := make([]model.TabOrderEntry, len(order))
	copy(out, order)
	for i := range out {
		if out[i].Kind != kind {
			continue
		}
		if idx, ok := remap[out[i].Index]; ok {
			out[i].Index = idx
		}
	}
	return out
}

func countKind(entries []model.TabOrderEntry, kind string) int {
	n := 0
	for _, e := range entries {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

func firstKindPos(entries []model.TabOrderEntry, kind string) int {
	for i, e := range entries {
		if e.Kind == kind {
			return i
		}
	}
	return -1
}

func containsInt(values []int, v int) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}

func docCount(layout model.PhysicalLayout) int {
	return len(layout.DocsBefore) + len(layout.DocsAfter)
}
