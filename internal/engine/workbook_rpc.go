package engine

import (
	"context"
	"encoding/json"

	"mdsheet/engine/internal/batch"
	"mdsheet/engine/internal/editor"
	"mdsheet/engine/internal/errinfo"
	"mdsheet/engine/internal/export"
	"mdsheet/engine/internal/formula"
	"mdsheet/engine/internal/model"
)

type ackResult struct {
	OK bool `json:"ok"`
}

type updatesResult struct {
	OK      bool               `json:"ok"`
	Updates []model.CellUpdate `json:"updates,omitempty"`
}

func decode[T any](params json.RawMessage, phase string) (T, *errinfo.ErrorInfo) {
	var p T
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return p, errinfo.ValidationFailed(phase, "bad params: "+err.Error())
		}
	}
	return p, nil
}

// --- session ---

func (e *Engine) WorkbookInitialize(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	p, errInfo := decode[struct {
		Text     string          `json:"text"`
		Workbook *model.Workbook `json:"workbook"`
		Config   json.RawMessage `json:"config"`
	}](params, errinfo.PhaseSession)
	if errInfo != nil {
		return nil, errInfo
	}
	wb := p.Workbook
	if wb == nil {
		// Hosts that do not parse markdown themselves send only the text.
		schema, err := model.ParseSchemaConfig(string(p.Config))
		if err != nil {
			return nil, errinfo.ValidationFailed(errinfo.PhaseSession, "bad config: "+err.Error())
		}
		if parsed, err := model.ParseWorkbook(p.Text, schema); err == nil {
			wb = parsed
		}
	}
	updates, err := e.session.Initialize(p.Text, wb, string(p.Config))
	if err != nil {
		return nil, errinfo.ValidationFailed(errinfo.PhaseSession, err.Error())
	}
	if len(updates) > 0 {
		// The host text predates the recalculated values. Hold the patch
		// until the host editor has settled after its own document load.
		if e.queue != nil {
			e.queue.Hold(e.settleDelay)
		}
		b := batch.Start(e.logger)
		if err := e.session.PushWorkbookText(b); err != nil {
			return nil, batchError(errinfo.PhaseSession, b, err)
		}
		e.finish(p.Text, b)
	}
	sheets := 0
	if wb := e.session.Workbook(); wb != nil {
		sheets = len(wb.Sheets)
	}
	return struct {
		APIVersion    string             `json:"api_version"`
		EngineVersion string             `json:"engine_version"`
		Sheets        int                `json:"sheets"`
		Updates       []model.CellUpdate `json:"updates,omitempty"`
	}{APIVersion, EngineVersion, sheets, updates}, nil
}

func (e *Engine) EngineGetInfo(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	pending := 0
	if e.queue != nil {
		pending = e.queue.Pending()
	}
	return struct {
		EngineVersion  string `json:"engine_version"`
		APIVersion     string `json:"api_version"`
		PendingPatches int    `json:"pending_patches"`
	}{EngineVersion, APIVersion, pending}, nil
}

func (e *Engine) WorkbookGetState(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	wb, sections := e.session.State()
	return struct {
		Workbook *model.Workbook `json:"workbook"`
		Sections []model.Section `json:"sections"`
	}{wb, sections}, nil
}

func (e *Engine) WorkbookGetMarkdown(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	return struct {
		Text string `json:"text"`
	}{e.session.FullMarkdown()}, nil
}

func (e *Engine) HostAck(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	p, errInfo := decode[struct {
		OK *bool `json:"ok"`
	}](params, errinfo.PhaseSync)
	if errInfo != nil {
		return nil, errInfo
	}
	if e.queue == nil {
		return nil, errinfo.SyncFailed("no patch queue")
	}
	ok := true
	if p.OK != nil {
		ok = *p.OK
	}
	e.queue.Ack(ok)
	return ackResult{OK: true}, nil
}

// --- cells and rows ---

func (e *Engine) CellUpdate(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	p, errInfo := decode[struct {
		Sheet int    `json:"sheet"`
		Table int    `json:"table"`
		Row   int    `json:"row"`
		Col   int    `json:"col"`
		Value string `json:"value"`
	}](params, errinfo.PhaseEdit)
	if errInfo != nil {
		return nil, errInfo
	}
	pre := e.session.FullMarkdown()
	b := batch.Start(e.logger)
	updates, err := e.session.UpdateCell(b, p.Sheet, p.Table, p.Row, p.Col, p.Value)
	if err != nil {
		return nil, batchError(errinfo.PhaseEdit, b, err)
	}
	e.finish(pre, b)
	return updatesResult{OK: true, Updates: updates}, nil
}

func (e *Engine) RowInsert(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	p, errInfo := decode[struct {
		Sheet int `json:"sheet"`
		Table int `json:"table"`
		Row   int `json:"row"`
	}](params, errinfo.PhaseEdit)
	if errInfo != nil {
		return nil, errInfo
	}
	pre := e.session.FullMarkdown()
	return e.commit(errinfo.PhaseEdit, pre, e.session.InsertRow(p.Sheet, p.Table, p.Row))
}

func (e *Engine) RowsDelete(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	p, errInfo := decode[struct {
		Sheet int   `json:"sheet"`
		Table int   `json:"table"`
		Rows  []int `json:"rows"`
	}](params, errinfo.PhaseEdit)
	if errInfo != nil {
		return nil, errInfo
	}
	pre := e.session.FullMarkdown()
	return e.commit(errinfo.PhaseEdit, pre, e.session.DeleteRows(p.Sheet, p.Table, p.Rows))
}

func (e *Engine) RowsMove(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	p, errInfo := decode[struct {
		Sheet  int   `json:"sheet"`
		Table  int   `json:"table"`
		Rows   []int `json:"rows"`
		Target int   `json:"target"`
	}](params, errinfo.PhaseEdit)
	if errInfo != nil {
		return nil, errInfo
	}
	pre := e.session.FullMarkdown()
	return e.commit(errinfo.PhaseEdit, pre, e.session.MoveRows(p.Sheet, p.Table, p.Rows, p.Target))
}

func (e *Engine) RowsSort(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	p, errInfo := decode[struct {
		Sheet     int  `json:"sheet"`
		Table     int  `json:"table"`
		Col       int  `json:"col"`
		Ascending bool `json:"ascending"`
	}](params, errinfo.PhaseEdit)
	if errInfo != nil {
		return nil, errInfo
	}
	pre := e.session.FullMarkdown()
	return e.commit(errinfo.PhaseEdit, pre, e.session.SortRows(p.Sheet, p.Table, p.Col, p.Ascending))
}

func (e *Engine) CellsPaste(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	p, errInfo := decode[struct {
		Sheet          int        `json:"sheet"`
		Table          int        `json:"table"`
		StartRow       int        `json:"startRow"`
		StartCol       int        `json:"startCol"`
		Data           [][]string `json:"data"`
		IncludeHeaders bool       `json:"includeHeaders"`
	}](params, errinfo.PhaseEdit)
	if errInfo != nil {
		return nil, errInfo
	}
	pre := e.session.FullMarkdown()
	return e.commit(errinfo.PhaseEdit, pre,
		e.session.PasteCells(p.Sheet, p.Table, p.StartRow, p.StartCol, p.Data, p.IncludeHeaders))
}

func (e *Engine) CellsMove(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	p, errInfo := decode[struct {
		Sheet   int              `json:"sheet"`
		Table   int              `json:"table"`
		Src     editor.CellRange `json:"src"`
		DestRow int              `json:"destRow"`
		DestCol int              `json:"destCol"`
	}](params, errinfo.PhaseEdit)
	if errInfo != nil {
		return nil, errInfo
	}
	pre := e.session.FullMarkdown()
	return e.commit(errinfo.PhaseEdit, pre, e.session.MoveCells(p.Sheet, p.Table, p.Src, p.DestRow, p.DestCol))
}

// --- columns ---

func (e *Engine) ColumnInsert(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	p, errInfo := decode[struct {
		Sheet int `json:"sheet"`
		Table int `json:"table"`
		Col   int `json:"col"`
	}](params, errinfo.PhaseEdit)
	if errInfo != nil {
		return nil, errInfo
	}
	pre := e.session.FullMarkdown()
	return e.commit(errinfo.PhaseEdit, pre, e.session.InsertColumn(p.Sheet, p.Table, p.Col))
}

func (e *Engine) ColumnsDelete(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	p, errInfo := decode[struct {
		Sheet int   `json:"sheet"`
		Table int   `json:"table"`
		Cols  []int `json:"cols"`
	}](params, errinfo.PhaseEdit)
	if errInfo != nil {
		return nil, errInfo
	}
	pre := e.session.FullMarkdown()
	return e.commit(errinfo.PhaseEdit, pre, e.session.DeleteColumns(p.Sheet, p.Table, p.Cols))
}

func (e *Engine) ColumnsClear(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	p, errInfo := decode[struct {
		Sheet int   `json:"sheet"`
		Table int   `json:"table"`
		Cols  []int `json:"cols"`
	}](params, errinfo.PhaseEdit)
	if errInfo != nil {
		return nil, errInfo
	}
	pre := e.session.FullMarkdown()
	return e.commit(errinfo.PhaseEdit, pre, e.session.ClearColumns(p.Sheet, p.Table, p.Cols))
}

func (e *Engine) ColumnsMove(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	p, errInfo := decode[struct {
		Sheet  int   `json:"sheet"`
		Table  int   `json:"table"`
		Cols   []int `json:"cols"`
		Target int   `json:"target"`
	}](params, errinfo.PhaseEdit)
	if errInfo != nil {
		return nil, errInfo
	}
	pre := e.session.FullMarkdown()
	return e.commit(errinfo.PhaseEdit, pre, e.session.MoveColumns(p.Sheet, p.Table, p.Cols, p.Target))
}

func (e *Engine) ColumnWidthUpdate(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	p, errInfo := decode[struct {
		Sheet int `json:"sheet"`
		Table int `json:"table"`
		Col   int `json:"col"`
		Width int `json:"width"`
	}](params, errinfo.PhaseEdit)
	if errInfo != nil {
		return nil, errInfo
	}
	pre := e.session.FullMarkdown()
	return e.commit(errinfo.PhaseEdit, pre, e.session.UpdateColumnWidth(p.Sheet, p.Table, p.Col, p.Width))
}

func (e *Engine) ColumnFormatUpdate(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	p, errInfo := decode[struct {
		Sheet  int            `json:"sheet"`
		Table  int            `json:"table"`
		Col    int            `json:"col"`
		Format map[string]any `json:"format"`
	}](params, errinfo.PhaseEdit)
	if errInfo != nil {
		return nil, errInfo
	}
	pre := e.session.FullMarkdown()
	return e.commit(errinfo.PhaseEdit, pre, e.session.UpdateColumnFormat(p.Sheet, p.Table, p.Col, p.Format))
}

func (e *Engine) ColumnAlignUpdate(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	p, errInfo := decode[struct {
		Sheet     int    `json:"sheet"`
		Table     int    `json:"table"`
		Col       int    `json:"col"`
		Alignment string `json:"alignment"`
	}](params, errinfo.PhaseEdit)
	if errInfo != nil {
		return nil, errInfo
	}
	pre := e.session.FullMarkdown()
	return e.commit(errinfo.PhaseEdit, pre, e.session.UpdateColumnAlign(p.Sheet, p.Table, p.Col, p.Alignment))
}

func (e *Engine) ColumnFilterUpdate(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	p, errInfo := decode[struct {
		Sheet        int      `json:"sheet"`
		Table        int      `json:"table"`
		Col          int      `json:"col"`
		HiddenValues []string `json:"hiddenValues"`
	}](params, errinfo.PhaseEdit)
	if errInfo != nil {
		return nil, errInfo
	}
	pre := e.session.FullMarkdown()
	return e.commit(errinfo.PhaseEdit, pre, e.session.UpdateColumnFilter(p.Sheet, p.Table, p.Col, p.HiddenValues))
}

// --- sheets and tables ---

func (e *Engine) SheetAdd(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	p, errInfo := decode[struct {
		Name             string   `json:"name"`
		Columns          []string `json:"columns"`
		AfterSheet       *int     `json:"afterSheet"`
		TargetOrderIndex *int     `json:"targetOrderIndex"`
	}](params, errinfo.PhaseEdit)
	if errInfo != nil {
		return nil, errInfo
	}
	pre := e.session.FullMarkdown()
	return e.commit(errinfo.PhaseEdit, pre,
		e.session.AddSheet(p.Name, p.Columns, intOr(p.AfterSheet, -1), intOr(p.TargetOrderIndex, -1)))
}

func (e *Engine) SheetRename(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	p, errInfo := decode[struct {
		Sheet int    `json:"sheet"`
		Name  string `json:"name"`
	}](params, errinfo.PhaseEdit)
	if errInfo != nil {
		return nil, errInfo
	}
	pre := e.session.FullMarkdown()
	return e.commit(errinfo.PhaseEdit, pre, e.session.RenameSheet(p.Sheet, p.Name))
}

func (e *Engine) SheetDelete(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	p, errInfo := decode[struct {
		Sheet int `json:"sheet"`
	}](params, errinfo.PhaseEdit)
	if errInfo != nil {
		return nil, errInfo
	}
	pre := e.session.FullMarkdown()
	return e.commit(errinfo.PhaseEdit, pre, e.session.DeleteSheet(p.Sheet))
}

func (e *Engine) SheetMove(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	p, errInfo := decode[struct {
		From             int  `json:"from"`
		To               int  `json:"to"`
		TargetOrderIndex *int `json:"targetOrderIndex"`
	}](params, errinfo.PhaseEdit)
	if errInfo != nil {
		return nil, errInfo
	}
	pre := e.session.FullMarkdown()
	return e.commit(errinfo.PhaseEdit, pre, e.session.MoveSheet(p.From, p.To, intOr(p.TargetOrderIndex, -1)))
}

func (e *Engine) SheetMetadataUpdate(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	p, errInfo := decode[struct {
		Sheet    int            `json:"sheet"`
		Metadata map[string]any `json:"metadata"`
	}](params, errinfo.PhaseEdit)
	if errInfo != nil {
		return nil, errInfo
	}
	pre := e.session.FullMarkdown()
	return e.commit(errinfo.PhaseEdit, pre, e.session.UpdateSheetMetadata(p.Sheet, p.Metadata))
}

func (e *Engine) TableAdd(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	p, errInfo := decode[struct {
		Sheet   int      `json:"sheet"`
		Columns []string `json:"columns"`
		Name    string   `json:"name"`
	}](params, errinfo.PhaseEdit)
	if errInfo != nil {
		return nil, errInfo
	}
	pre := e.session.FullMarkdown()
	return e.commit(errinfo.PhaseEdit, pre, e.session.AddTable(p.Sheet, p.Columns, p.Name))
}

func (e *Engine) TableRename(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	p, errInfo := decode[struct {
		Sheet int    `json:"sheet"`
		Table int    `json:"table"`
		Name  string `json:"name"`
	}](params, errinfo.PhaseEdit)
	if errInfo != nil {
		return nil, errInfo
	}
	pre := e.session.FullMarkdown()
	return e.commit(errinfo.PhaseEdit, pre, e.session.RenameTable(p.Sheet, p.Table, p.Name))
}

func (e *Engine) TableDelete(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	p, errInfo := decode[struct {
		Sheet int `json:"sheet"`
		Table int `json:"table"`
	}](params, errinfo.PhaseEdit)
	if errInfo != nil {
		return nil, errInfo
	}
	pre := e.session.FullMarkdown()
	return e.commit(errinfo.PhaseEdit, pre, e.session.DeleteTable(p.Sheet, p.Table))
}

func (e *Engine) TableMetadataUpdate(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	p, errInfo := decode[struct {
		Sheet       int    `json:"sheet"`
		Table       int    `json:"table"`
		Name        string `json:"name"`
		Description string `json:"description"`
	}](params, errinfo.PhaseEdit)
	if errInfo != nil {
		return nil, errInfo
	}
	pre := e.session.FullMarkdown()
	return e.commit(errinfo.PhaseEdit, pre, e.session.UpdateTableMetadata(p.Sheet, p.Table, p.Name, p.Description))
}

func (e *Engine) VisualMetadataUpdate(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	p, errInfo := decode[struct {
		Sheet    int            `json:"sheet"`
		Table    int            `json:"table"`
		Metadata map[string]any `json:"metadata"`
	}](params, errinfo.PhaseEdit)
	if errInfo != nil {
		return nil, errInfo
	}
	pre := e.session.FullMarkdown()
	return e.commit(errinfo.PhaseEdit, pre, e.session.UpdateVisualMetadata(p.Sheet, p.Table, p.Metadata))
}

// --- documents and tabs ---

func (e *Engine) DocumentAdd(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	p, errInfo := decode[struct {
		Title           string `json:"title"`
		AfterDocIndex   *int   `json:"afterDocIndex"`
		AfterWorkbook   bool   `json:"afterWorkbook"`
		InsertAfterSlot *int   `json:"insertAfterSlot"`
	}](params, errinfo.PhaseEdit)
	if errInfo != nil {
		return nil, errInfo
	}
	pre := e.session.FullMarkdown()
	b := batch.Start(e.logger)
	if err := e.session.AddDocument(b, p.Title, intOr(p.AfterDocIndex, -1), p.AfterWorkbook, intOr(p.InsertAfterSlot, -1)); err != nil {
		return nil, batchError(errinfo.PhaseEdit, b, err)
	}
	e.finish(pre, b)
	return ackResult{OK: true}, nil
}

func (e *Engine) DocumentRename(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	p, errInfo := decode[struct {
		Doc   int    `json:"doc"`
		Title string `json:"title"`
	}](params, errinfo.PhaseEdit)
	if errInfo != nil {
		return nil, errInfo
	}
	pre := e.session.FullMarkdown()
	return e.commit(errinfo.PhaseEdit, pre, e.session.RenameDocument(p.Doc, p.Title))
}

func (e *Engine) DocumentDelete(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	p, errInfo := decode[struct {
		Doc int `json:"doc"`
	}](params, errinfo.PhaseEdit)
	if errInfo != nil {
		return nil, errInfo
	}
	pre := e.session.FullMarkdown()
	b := batch.Start(e.logger)
	if err := e.session.DeleteDocument(b, p.Doc); err != nil {
		return nil, batchError(errinfo.PhaseEdit, b, err)
	}
	e.finish(pre, b)
	return ackResult{OK: true}, nil
}

func (e *Engine) DocumentMove(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	p, errInfo := decode[struct {
		From           int  `json:"from"`
		To             int  `json:"to"`
		AfterWorkbook  bool `json:"afterWorkbook"`
		BeforeWorkbook bool `json:"beforeWorkbook"`
		TargetSlot     *int `json:"targetSlot"`
	}](params, errinfo.PhaseTabs)
	if errInfo != nil {
		return nil, errInfo
	}
	pre := e.session.FullMarkdown()
	return e.commit(errinfo.PhaseTabs, pre,
		e.session.MoveDocumentSection(p.From, p.To, p.AfterWorkbook, p.BeforeWorkbook, intOr(p.TargetSlot, -1)))
}

func (e *Engine) WorkbookSectionMove(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	p, errInfo := decode[struct {
		ToDoc      int  `json:"toDoc"`
		AfterDoc   bool `json:"afterDoc"`
		TargetSlot *int `json:"targetSlot"`
	}](params, errinfo.PhaseTabs)
	if errInfo != nil {
		return nil, errInfo
	}
	pre := e.session.FullMarkdown()
	return e.commit(errinfo.PhaseTabs, pre,
		e.session.MoveWorkbookSection(p.ToDoc, p.AfterDoc, intOr(p.TargetSlot, -1)))
}

func (e *Engine) TabReorder(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	p, errInfo := decode[struct {
		From int `json:"from"`
		To   int `json:"to"`
	}](params, errinfo.PhaseTabs)
	if errInfo != nil {
		return nil, errInfo
	}
	pre := e.session.FullMarkdown()
	b := batch.Start(e.logger)
	res := e.session.ReorderTabs(b, p.From, p.To)
	if !res.Success {
		return nil, errinfo.StructuralError(errinfo.PhaseTabs, res.Err)
	}
	e.finish(pre, b)
	return struct {
		OK        bool `json:"ok"`
		ActiveTab int  `json:"active_tab"`
	}{true, res.ActiveTab}, nil
}

func (e *Engine) TabOrderSet(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	p, errInfo := decode[struct {
		Order []model.TabOrderEntry `json:"order"`
	}](params, errinfo.PhaseTabs)
	if errInfo != nil {
		return nil, errInfo
	}
	pre := e.session.FullMarkdown()
	return e.commit(errinfo.PhaseTabs, pre, e.session.SetTabOrder(p.Order))
}

func (e *Engine) TabOrderClear(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	pre := e.session.FullMarkdown()
	return e.commit(errinfo.PhaseTabs, pre, e.session.ClearTabOrder())
}

// --- formulas ---

func (e *Engine) FormulaSet(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	p, errInfo := decode[struct {
		Sheet      int                `json:"sheet"`
		Table      int                `json:"table"`
		Col        int                `json:"col"`
		Definition formula.Definition `json:"definition"`
	}](params, errinfo.PhaseFormula)
	if errInfo != nil {
		return nil, errInfo
	}
	if wb := e.session.Workbook(); wb != nil {
		if err := formula.Validate(p.Definition, wb); err != nil {
			return nil, errinfo.FormulaInvalid(err.Error(), p.Sheet, p.Table)
		}
	}
	pre := e.session.FullMarkdown()
	b := batch.Start(e.logger)
	updates, err := e.session.SetFormula(b, p.Sheet, p.Table, p.Col, p.Definition)
	if err != nil {
		return nil, batchError(errinfo.PhaseFormula, b, err)
	}
	e.finish(pre, b)
	return updatesResult{OK: true, Updates: updates}, nil
}

func (e *Engine) FormulaClear(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	p, errInfo := decode[struct {
		Sheet int `json:"sheet"`
		Table int `json:"table"`
		Col   int `json:"col"`
	}](params, errinfo.PhaseFormula)
	if errInfo != nil {
		return nil, errInfo
	}
	pre := e.session.FullMarkdown()
	return e.commit(errinfo.PhaseFormula, pre, e.session.ClearFormula(p.Sheet, p.Table, p.Col))
}

func (e *Engine) FormulaValidate(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	p, errInfo := decode[struct {
		Definition formula.Definition `json:"definition"`
	}](params, errinfo.PhaseFormula)
	if errInfo != nil {
		return nil, errInfo
	}
	result := struct {
		Valid bool   `json:"valid"`
		Error string `json:"error,omitempty"`
	}{Valid: true}
	if err := formula.Validate(p.Definition, e.session.Workbook()); err != nil {
		result.Valid = false
		result.Error = err.Error()
	}
	return result, nil
}

func (e *Engine) RecalculateAll(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	pre := e.session.FullMarkdown()
	b := batch.Start(e.logger)
	updates, err := e.session.RecalculateAll(b)
	if err != nil {
		return nil, batchError(errinfo.PhaseFormula, b, err)
	}
	e.finish(pre, b)
	return updatesResult{OK: true, Updates: updates}, nil
}

// --- export ---

func (e *Engine) WorkbookExport(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	p, errInfo := decode[struct {
		Path string `json:"path"`
	}](params, errinfo.PhaseExport)
	if errInfo != nil {
		return nil, errInfo
	}
	if p.Path == "" {
		return nil, errinfo.ValidationFailed(errinfo.PhaseExport, "path required")
	}
	wb := e.session.Workbook()
	if wb == nil {
		return nil, errinfo.NoWorkbook(errinfo.PhaseExport)
	}
	if err := export.WriteXlsx(wb, p.Path); err != nil {
		return nil, errinfo.ExportFailed(err.Error())
	}
	return struct {
		Path string `json:"path"`
	}{p.Path}, nil
}
