// Package editor owns the in-memory workbook and the backing text for one
// host document, and turns every mutation into EditSpecs against that text.
//
// Every operation follows the same discipline: the mutation is computed on a
// clone of the workbook, and only a successful transform is committed, so a
// failing call leaves both the workbook and the text exactly as they were.
package editor

import (
	"fmt"
	"log/slog"
	"strings"

	"mdsheet/engine/internal/batch"
	"mdsheet/engine/internal/diffpatch"
	"mdsheet/engine/internal/formula"
	"mdsheet/engine/internal/logging"
	"mdsheet/engine/internal/model"
)

// Session is the engine-side twin of one open document.
type Session struct {
	schema model.Schema
	wb     *model.Workbook
	text   string
	logger *slog.Logger
	engine *formula.Engine
}

func NewSession(logger *slog.Logger) *Session {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Session{
		schema: model.DefaultSchema(),
		logger: logger,
		engine: formula.NewEngine(logger),
	}
}

// Initialize loads the host-provided state: the full backing text, the
// already-parsed workbook, and the schema configuration. The dependency
// graph is rebuilt and every formula column brought up to date.
func (s *Session) Initialize(text string, wb *model.Workbook, configJSON string) ([]model.CellUpdate, error) {
	schema, err := model.ParseSchemaConfig(configJSON)
	if err != nil {
		return nil, fmt.Errorf("parse schema config: %w", err)
	}
	s.schema = schema
	s.text = text
	s.wb = wb
	s.engine.Rebuild(s.wb)
	var updates []model.CellUpdate
	if s.wb != nil {
		updates = s.engine.RecalculateAll(s.wb)
	}
	s.logger.Info("session.initialize",
		"sheets", s.sheetCount(), "recalculated", len(updates))
	return updates, nil
}

// Workbook exposes the live model. Callers must not retain it across
// operations.
func (s *Session) Workbook() *model.Workbook { return s.wb }

func (s *Session) Schema() model.Schema { return s.schema }

// FullMarkdown returns the backing text as the session tracks it.
func (s *Session) FullMarkdown() string { return s.text }

// State is the host-facing dump: the workbook with sheet header lines filled
// in, plus the document/workbook section structure.
func (s *Session) State() (*model.Workbook, []model.Section) {
	sections := model.ScanSections(s.text, s.schema)
	if s.wb != nil {
		model.AugmentSheetHeaderLines(s.wb, s.text, s.schema)
	}
	return s.wb, sections
}

// Layout derives the physical layout descriptor from the current text.
func (s *Session) Layout() model.PhysicalLayout {
	return model.LayoutOf(model.ScanSections(s.text, s.schema), s.sheetCount())
}

func (s *Session) HasTabOrder() bool {
	return s.wb != nil && s.wb.HasTabOrder()
}

func (s *Session) sheetCount() int {
	if s.wb == nil {
		return 0
	}
	return len(s.wb.Sheets)
}

// RecalculateAll re-evaluates every formula column and, when anything
// changed, posts the regeneration patch into the batch.
func (s *Session) RecalculateAll(b *batch.Batch) ([]model.CellUpdate, error) {
	if s.wb == nil {
		return nil, model.ErrNoWorkbook
	}
	s.engine.Rebuild(s.wb)
	updates := s.engine.RecalculateAll(s.wb)
	if len(updates) == 0 {
		return nil, nil
	}
	if err := b.Post(s.regenerate()); err != nil {
		return updates, err
	}
	return updates, nil
}

// PatchFrom derives the minimal outbound patch that transforms before into
// the session's current text. This is the only place outbound specs are
// narrowed: specs inside a batch are computed against intermediate text
// states, so narrowing them individually would break the merge.
func (s *Session) PatchFrom(before string) (model.EditSpec, bool) {
	if before == s.text {
		return model.EditSpec{}, false
	}
	lines := strings.Split(before, "\n")
	spec := model.EditSpec{
		StartLine: 0,
		EndLine:   len(lines) - 1,
		EndCol:    len(lines[len(lines)-1]),
		Content:   s.text,
	}
	return diffpatch.Narrow(before, spec), true
}

// PushWorkbookText posts the current workbook block as a patch. Used after
// initialization, when recalculation changed values the host text predates.
func (s *Session) PushWorkbookText(b *batch.Batch) error {
	if s.wb == nil || len(s.wb.Sheets) == 0 {
		return nil
	}
	return b.Post(s.regenerate())
}

// errSpec wraps a failure into an error-bearing EditSpec so operations run
// to a clean end instead of panicking mid-batch.
func (s *Session) errSpec(op string, err error) model.EditSpec {
	s.logger.Warn("session.op_failed", "op", op, "error", err.Error())
	return model.EditSpec{Err: err.Error()}
}

// updateWorkbook runs one transform clone-first, regenerates the workbook
// block, commits the new text, and returns the narrowed patch.
func (s *Session) updateWorkbook(op string, transform func(wb *model.Workbook) error) model.EditSpec {
	if s.wb == nil {
		return s.errSpec(op, model.ErrNoWorkbook)
	}
	clone := s.wb.Clone()
	if err := transform(clone); err != nil {
		return s.errSpec(op, err)
	}
	s.wb = clone
	return s.regenerate()
}

func (s *Session) updateSheet(op string, sheetIdx int, transform func(sheet *model.Sheet) error) model.EditSpec {
	return s.updateWorkbook(op, func(wb *model.Workbook) error {
		if sheetIdx < 0 || sheetIdx >= len(wb.Sheets) {
			return fmt.Errorf("%w: sheet %d", model.ErrInvalidIndex, sheetIdx)
		}
		return transform(&wb.Sheets[sheetIdx])
	})
}

func (s *Session) updateTable(op string, sheetIdx, tableIdx int, transform func(t *model.Table) error) model.EditSpec {
	return s.updateSheet(op, sheetIdx, func(sheet *model.Sheet) error {
		if tableIdx < 0 || tableIdx >= len(sheet.Tables) {
			return fmt.Errorf("%w: table %d", model.ErrInvalidIndex, tableIdx)
		}
		return transform(&sheet.Tables[tableIdx])
	})
}

// regenerate renders the workbook block, computes its replacement range
// against the current text, applies it, and returns the full replacement
// spec. Specs inside a batch must stay cumulative over their range, so
// narrowing happens once at the outbound boundary (PatchFrom), never here.
func (s *Session) regenerate() model.EditSpec {
	spec := s.generateAndRange()
	if spec.Err != "" {
		return spec
	}
	s.text = diffpatch.Apply(s.text, spec)
	return spec
}

// generateAndRange computes the full-block replacement spec for the workbook
// section, against the session's current text.
func (s *Session) generateAndRange() model.EditSpec {
	content := ""
	if s.wb != nil && len(s.wb.Sheets) > 0 {
		content = model.GenerateWorkbook(s.wb, s.schema)
	}
	start, end := model.WorkbookRange(s.text, s.schema)
	lines := strings.Split(s.text, "\n")

	if start >= len(lines) {
		// No workbook section yet. Append one after the last line; clamping
		// onto the last line would overwrite document content.
		if content == "" {
			return model.EditSpec{StartLine: 0, EndLine: 0, EndCol: 0, Content: ""}
		}
		return model.EditSpec{StartLine: start, EndLine: start, EndCol: 0, Content: "\n" + content + "\n"}
	}
	endCol := 0
	if end >= len(lines) {
		end = len(lines) - 1
		if end >= 0 {
			endCol = len(lines[end])
		}
	} else if end > 0 {
		end--
		endCol = len(lines[end])
	}
	return model.EditSpec{
		StartLine: start,
		EndLine:   end,
		EndCol:    endCol,
		Content:   content + "\n\n",
	}
}

// applyText swaps in externally-spliced text (document moves bypass the
// workbook regeneration path).
func (s *Session) applyText(text string) {
	s.text = text
}
