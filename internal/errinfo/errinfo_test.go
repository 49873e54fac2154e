package errinfo

import "testing"

func TestStructuralErrorCarriesReloadAction(t *testing.T) {
	err := StructuralError(PhaseEdit, "workbook range not found")
	if err.ErrorCode != CodeStructuralError {
		t.Fatalf("expected structural error code")
	}
	if len(err.Actions) == 0 || err.Actions[0] != ActionReload {
		t.Fatalf("expected reload_document action")
	}
}

func TestFormulaInvalidPinsLocation(t *testing.T) {
	err := FormulaInvalid("unknown column [Nope]", 1, 2)
	if err.ErrorCode != CodeFormulaInvalid {
		t.Fatalf("expected formula invalid code")
	}
	if err.Sheet != 1 || err.Table != 2 {
		t.Fatalf("expected sheet/table to be set, got %+v", err)
	}
	if err.Retryable {
		t.Fatalf("formula errors are not retryable")
	}
}

func TestRetryableHelpers(t *testing.T) {
	sync := SyncFailed("patch rejected")
	if sync.ErrorCode != CodeSyncFailed || sync.Retryable {
		t.Fatalf("sync failures require a reload, not a retry: %+v", sync)
	}
	export := ExportFailed("disk full")
	if export.ErrorCode != CodeExportFailed || !export.Retryable {
		t.Fatalf("expected retryable export failure: %+v", export)
	}
	read := FileReadFailed(PhaseExport, "no such file")
	if read.ErrorCode != CodeFileReadFailed || !read.Retryable {
		t.Fatalf("expected retryable read failure: %+v", read)
	}
}
