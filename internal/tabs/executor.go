package tabs

import (
	"fmt"
	"log/slog"

	"mdsheet/engine/internal/logging"
	"mdsheet/engine/internal/model"
)

// Ops is the slice of the editing session the executor drives. Each mutation
// returns an EditSpec computed against the session's current text; the
// session has already applied it to its own state by the time it returns.
type Ops interface {
	Layout() model.PhysicalLayout
	MoveSheet(from, to int) model.EditSpec
	MoveDocument(from, to int, beforeWorkbook bool) model.EditSpec
	MoveWorkbook(before bool, targetDoc int) model.EditSpec
	SetTabOrder(order []model.TabOrderEntry) model.EditSpec
	ClearTabOrder() model.EditSpec
	HasTabOrder() bool
}

// Callbacks couple the executor to UI-held tab state.
type Callbacks struct {
	Post        func(model.EditSpec) error
	ReorderTabs func(from, slot int)
}

// Result reports the outcome of one reorder. ActiveTab is the display index
// the moved tab occupies afterwards.
type Result struct {
	Success   bool
	Err       string
	ActiveTab int
}

// Executor applies reconciler plans.
type Executor struct {
	logger *slog.Logger
}

func NewExecutor(logger *slog.Logger) *Executor {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Executor{logger: logger}
}

// Execute plans and applies one tab-bar reorder. Order of operations:
// a required tab order is persisted before any physical move, so the move's
// own metadata regeneration already reflects the target order; a redundant
// existing order is cleared instead. Failures abort without rolling back
// specs already staged in the enclosing batch; the caller abandons the batch.
func (e *Executor) Execute(ops Ops, tabs []model.TabOrderEntry, from, to int, cb Callbacks) Result {
	plan, err := PlanReorder(tabs, ops.Layout(), from, to)
	if err != nil {
		return Result{Err: err.Error(), ActiveTab: from}
	}
	if plan.Action == ActionNone {
		return Result{Success: true, ActiveTab: from}
	}
	e.logger.Info("tabs.reorder",
		"action", plan.Action, "from", from, "to", to, "metadata", plan.MetadataRequired)

	if plan.MetadataRequired {
		if res, ok := e.post(cb, ops.SetTabOrder(plan.NewTabOrder), from); !ok {
			return res
		}
	} else if plan.Move != nil && ops.HasTabOrder() {
		// The post-move order is file-derivable again, so the explicit list
		// is stale weight.
		if res, ok := e.post(cb, ops.ClearTabOrder(), from); !ok {
			return res
		}
	}

	if plan.Move != nil {
		var spec model.EditSpec
		switch plan.Move.Kind {
		case MoveSheet:
			spec = ops.MoveSheet(plan.Move.From, plan.Move.To)
		case MoveDocument:
			spec = ops.MoveDocument(plan.Move.From, plan.Move.To, plan.Move.Before)
		case MoveWorkbook:
			spec = ops.MoveWorkbook(plan.Move.Before, plan.Move.TargetDoc)
		default:
			return Result{Err: fmt.Sprintf("unknown move kind %q", plan.Move.Kind), ActiveTab: from}
		}
		if res, ok := e.post(cb, spec, from); !ok {
			return res
		}
	}

	if cb.ReorderTabs != nil {
		cb.ReorderTabs(from, plan.TargetSlot)
	}

	active := to
	if to > from {
		active = to - 1
	}
	return Result{Success: true, ActiveTab: active}
}

func (e *Executor) post(cb Callbacks, spec model.EditSpec, from int) (Result, bool) {
	if spec.Err != "" {
		e.logger.Warn("tabs.reorder_failed", "error", spec.Err)
		return Result{Err: spec.Err, ActiveTab: from}, false
	}
	if cb.Post != nil {
		if err := cb.Post(spec); err != nil {
			e.logger.Warn("tabs.reorder_failed", "error", err.Error())
			return Result{Err: err.Error(), ActiveTab: from}, false
		}
	}
	return Result{}, true
}
