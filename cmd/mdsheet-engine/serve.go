package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"mdsheet/engine/internal/engine"
	"mdsheet/engine/internal/errinfo"
	"mdsheet/engine/internal/rpc"
)

func dataDirSettingsPath(dataDir string) string {
	return filepath.Join(dataDir, "settings.json")
}

func runServe() error {
	logSetup, store := newLogger()
	logger := logSetup.Logger
	if logSetup.Close != nil {
		defer logSetup.Close()
	}

	opts := []engine.Option{engine.WithLogger(logger)}
	if store != nil {
		opts = append(opts, engine.WithSettings(store))
	}
	eng, err := engine.New(opts...)
	if err != nil {
		logger.Error("engine.init_failed", "error", err.Error())
		return err
	}

	server := rpc.NewServer(engine.APIVersion, os.Stdin, os.Stdout, logger)
	eng.SetNotifier(server.Notify)

	register := func(method string, fn func(context.Context, json.RawMessage) (any, *errinfo.ErrorInfo)) {
		server.Register(method, func(ctx context.Context, params json.RawMessage) (any, *rpc.Error) {
			result, errInfo := fn(ctx, params)
			if errInfo != nil {
				msg := errInfo.ErrorCode
				if errInfo.Detail != "" {
					msg = errInfo.Detail
				}
				return nil, &rpc.Error{Message: msg, Data: errInfo}
			}
			return result, nil
		})
	}

	register("EngineGetInfo", eng.EngineGetInfo)
	register("WorkbookInitialize", eng.WorkbookInitialize)
	register("WorkbookGetState", eng.WorkbookGetState)
	register("WorkbookGetMarkdown", eng.WorkbookGetMarkdown)
	register("HostAck", eng.HostAck)

	register("CellUpdate", eng.CellUpdate)
	register("CellsPaste", eng.CellsPaste)
	register("CellsMove", eng.CellsMove)
	register("RowInsert", eng.RowInsert)
	register("RowsDelete", eng.RowsDelete)
	register("RowsMove", eng.RowsMove)
	register("RowsSort", eng.RowsSort)

	register("ColumnInsert", eng.ColumnInsert)
	register("ColumnsDelete", eng.ColumnsDelete)
	register("ColumnsClear", eng.ColumnsClear)
	register("ColumnsMove", eng.ColumnsMove)
	register("ColumnWidthUpdate", eng.ColumnWidthUpdate)
	register("ColumnFormatUpdate", eng.ColumnFormatUpdate)
	register("ColumnAlignUpdate", eng.ColumnAlignUpdate)
	register("ColumnFilterUpdate", eng.ColumnFilterUpdate)

	register("SheetAdd", eng.SheetAdd)
	register("SheetRename", eng.SheetRename)
	register("SheetDelete", eng.SheetDelete)
	register("SheetMove", eng.SheetMove)
	register("SheetMetadataUpdate", eng.SheetMetadataUpdate)

	register("TableAdd", eng.TableAdd)
	register("TableRename", eng.TableRename)
	register("TableDelete", eng.TableDelete)
	register("TableMetadataUpdate", eng.TableMetadataUpdate)
	register("VisualMetadataUpdate", eng.VisualMetadataUpdate)

	register("DocumentAdd", eng.DocumentAdd)
	register("DocumentRename", eng.DocumentRename)
	register("DocumentDelete", eng.DocumentDelete)
	register("DocumentMove", eng.DocumentMove)
	register("WorkbookSectionMove", eng.WorkbookSectionMove)
	register("TabReorder", eng.TabReorder)
	register("TabOrderSet", eng.TabOrderSet)
	register("TabOrderClear", eng.TabOrderClear)

	register("FormulaSet", eng.FormulaSet)
	register("FormulaClear", eng.FormulaClear)
	register("FormulaValidate", eng.FormulaValidate)
	register("RecalculateAll", eng.RecalculateAll)

	register("WorkbookExport", eng.WorkbookExport)

	logger.Info("engine.serving", "api_version", engine.APIVersion)
	return server.Serve(context.Background())
}
