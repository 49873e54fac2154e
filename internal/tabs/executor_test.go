package tabs

import (
	"testing"

	"mdsheet/engine/internal/model"
)

// fakeOps records the calls the executor makes, in order.
type fakeOps struct {
	layout   model.PhysicalLayout
	hasOrder bool
	calls    []string
	setOrder []model.TabOrderEntry
	failMove bool
}

func (f *fakeOps) Layout() model.PhysicalLayout { return f.layout }

func (f *fakeOps) MoveSheet(from, to int) model.EditSpec {
	f.calls = append(f.calls, "move-sheet")
	if f.failMove {
		return model.EditSpec{Err: "move failed"}
	}
	return model.EditSpec{Content: "moved"}
}

func (f *fakeOps) MoveDocument(from, to int, beforeWorkbook bool) model.EditSpec {
	f.calls = append(f.calls, "move-document")
	return model.EditSpec{Content: "moved"}
}

func (f *fakeOps) MoveWorkbook(before bool, targetDoc int) model.EditSpec {
	f.calls = append(f.calls, "move-workbook")
	return model.EditSpec{Content: "moved"}
}

func (f *fakeOps) SetTabOrder(order []model.TabOrderEntry) model.EditSpec {
	f.calls = append(f.calls, "set-order")
	f.setOrder = order
	return model.EditSpec{Content: "order"}
}

func (f *fakeOps) ClearTabOrder() model.EditSpec {
	f.calls = append(f.calls, "clear-order")
	return model.EditSpec{Content: "cleared"}
}

func (f *fakeOps) HasTabOrder() bool { return f.hasOrder }

func callbacks(posted *[]model.EditSpec, moves *[][2]int) Callbacks {
	return Callbacks{
		Post: func(spec model.EditSpec) error {
			*posted = append(*posted, spec)
			return nil
		},
		ReorderTabs: func(from, slot int) {
			*moves = append(*moves, [2]int{from, slot})
		},
	}
}

func TestExecuteNoOp(t *testing.T) {
	tabs, layout := sampleLayout()
	ops := &fakeOps{layout: layout}
	res := NewExecutor(nil).Execute(ops, tabs, 1, 1, Callbacks{})
	if !res.Success || res.ActiveTab != 1 {
		t.Fatalf("result = %+v", res)
	}
	if len(ops.calls) != 0 {
		t.Fatalf("no-op must not touch the session: %v", ops.calls)
	}
}

func TestExecutePersistsOrderBeforePhysicalMove(t *testing.T) {
	// Doc1 dropped between the sheets: set-order must precede the move so
	// the move's metadata regeneration sees the target order.
	tabs, layout := sampleLayout()
	ops := &fakeOps{layout: layout}
	var posted []model.EditSpec
	var moves [][2]int
	res := NewExecutor(nil).Execute(ops, tabs, 0, 2, callbacks(&posted, &moves))
	if !res.Success {
		t.Fatalf("result = %+v", res)
	}
	if len(ops.calls) != 2 || ops.calls[0] != "set-order" || ops.calls[1] != "move-document" {
		t.Fatalf("calls = %v", ops.calls)
	}
	if len(posted) != 2 {
		t.Fatalf("posted %d specs", len(posted))
	}
}

func TestExecuteClearsRedundantOrder(t *testing.T) {
	// Sheet-to-sheet move lands on a derivable order; an existing explicit
	// order is stale and gets cleared.
	tabs, layout := sampleLayout()
	ops := &fakeOps{layout: layout, hasOrder: true}
	var posted []model.EditSpec
	var moves [][2]int
	res := NewExecutor(nil).Execute(ops, tabs, 2, 1, callbacks(&posted, &moves))
	if !res.Success {
		t.Fatalf("result = %+v", res)
	}
	if len(ops.calls) != 2 || ops.calls[0] != "clear-order" || ops.calls[1] != "move-sheet" {
		t.Fatalf("calls = %v", ops.calls)
	}
}

func TestExecuteMetadataOnly(t *testing.T) {
	tabs, layout := sampleLayout()
	ops := &fakeOps{layout: layout}
	var posted []model.EditSpec
	var moves [][2]int
	res := NewExecutor(nil).Execute(ops, tabs, 3, 2, callbacks(&posted, &moves))
	if !res.Success {
		t.Fatalf("result = %+v", res)
	}
	if len(ops.calls) != 1 || ops.calls[0] != "set-order" {
		t.Fatalf("calls = %v", ops.calls)
	}
	want := []model.TabOrderEntry{doc(0), sheet(0), doc(1), sheet(1)}
	if !model.EqualOrders(ops.setOrder, want) {
		t.Fatalf("order = %v", ops.setOrder)
	}
	// Moved backwards: active tab is the drop index itself.
	if res.ActiveTab != 2 {
		t.Fatalf("active = %d", res.ActiveTab)
	}
	if len(moves) != 1 || moves[0] != [2]int{3, 2} {
		t.Fatalf("ui reorder = %v", moves)
	}
}

func TestExecuteActiveTabForwardMove(t *testing.T) {
	tabs, layout := sampleLayout()
	ops := &fakeOps{layout: layout}
	var posted []model.EditSpec
	var moves [][2]int
	res := NewExecutor(nil).Execute(ops, tabs, 0, 2, callbacks(&posted, &moves))
	if !res.Success || res.ActiveTab != 1 {
		t.Fatalf("result = %+v", res)
	}
}

func TestExecuteFailedMoveAborts(t *testing.T) {
	tabs, layout := sampleLayout()
	ops := &fakeOps{layout: layout, failMove: true}
	var posted []model.EditSpec
	var moves [][2]int
	res := NewExecutor(nil).Execute(ops, tabs, 2, 1, callbacks(&posted, &moves))
	if res.Success || res.Err != "move failed" {
		t.Fatalf("result = %+v", res)
	}
	if len(moves) != 0 {
		t.Fatalf("ui must not reorder after a failed move")
	}
}
