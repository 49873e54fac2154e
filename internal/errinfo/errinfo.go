package errinfo

// ErrorInfo is the structured error payload attached to RPC failures, so the
// host can branch on a stable code instead of parsing messages.
type ErrorInfo struct {
	ErrorCode string   `json:"error_code"`
	Phase     string   `json:"phase,omitempty"`
	Retryable bool     `json:"retryable"`
	Actions   []string `json:"actions,omitempty"`
	Sheet     int      `json:"sheet,omitempty"`
	Table     int      `json:"table,omitempty"`
	Detail    string   `json:"detail,omitempty"`
}

const (
	CodeNoWorkbook       = "NO_WORKBOOK"
	CodeInvalidIndex     = "INVALID_INDEX"
	CodeStructuralError  = "STRUCTURAL_ERROR"
	CodeFormulaInvalid   = "FORMULA_INVALID"
	CodeSyncFailed       = "SYNC_FAILED"
	CodeValidationFailed = "VALIDATION_FAILED"
	CodeFileReadFailed   = "FILE_READ_FAILED"
	CodeFileWriteFailed  = "FILE_WRITE_FAILED"
	CodeExportFailed     = "EXPORT_FAILED"
)

const (
	ActionRetry  = "retry"
	ActionReload = "reload_document"
)

const (
	PhaseSession = "session"
	PhaseEdit    = "edit"
	PhaseFormula = "formula"
	PhaseTabs    = "tabs"
	PhaseSync    = "sync"
	PhaseExport  = "export"
)

func NoWorkbook(phase string) *ErrorInfo {
	return &ErrorInfo{
		ErrorCode: CodeNoWorkbook,
		Phase:     phase,
		Retryable: false,
	}
}

func InvalidIndex(phase, detail string) *ErrorInfo {
	return &ErrorInfo{
		ErrorCode: CodeInvalidIndex,
		Phase:     phase,
		Retryable: false,
		Detail:    detail,
	}
}

// StructuralError means the backing text and the model disagree; the only
// recovery is a full reparse on the host side.
func StructuralError(phase, detail string) *ErrorInfo {
	return &ErrorInfo{
		ErrorCode: CodeStructuralError,
		Phase:     phase,
		Retryable: false,
		Actions:   []string{ActionReload},
		Detail:    detail,
	}
}

func FormulaInvalid(detail string, sheet, table int) *ErrorInfo {
	return &ErrorInfo{
		ErrorCode: CodeFormulaInvalid,
		Phase:     PhaseFormula,
		Retryable: false,
		Sheet:     sheet,
		Table:     table,
		Detail:    detail,
	}
}

func SyncFailed(detail string) *ErrorInfo {
	return &ErrorInfo{
		ErrorCode: CodeSyncFailed,
		Phase:     PhaseSync,
		Retryable: false,
		Actions:   []string{ActionReload},
		Detail:    detail,
	}
}

func ValidationFailed(phase, detail string) *ErrorInfo {
	return &ErrorInfo{
		ErrorCode: CodeValidationFailed,
		Phase:     phase,
		Retryable: false,
		Detail:    detail,
	}
}

func FileReadFailed(phase, detail string) *ErrorInfo {
	return &ErrorInfo{
		ErrorCode: CodeFileReadFailed,
		Phase:     phase,
		Retryable: true,
		Actions:   []string{ActionRetry},
		Detail:    detail,
	}
}

func FileWriteFailed(phase, detail string) *ErrorInfo {
	return &ErrorInfo{
		ErrorCode: CodeFileWriteFailed,
		Phase:     phase,
		Retryable: true,
		Actions:   []string{ActionRetry},
		Detail:    detail,
	}
}

func ExportFailed(detail string) *ErrorInfo {
	return &ErrorInfo{
		ErrorCode: CodeExportFailed,
		Phase:     PhaseExport,
		Retryable: true,
		Actions:   []string{ActionRetry},
		Detail:    detail,
	}
}
