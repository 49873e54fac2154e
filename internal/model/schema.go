package model

import "encoding/json"

// Schema describes how the workbook section is laid out in the backing
// markdown. The host passes it as JSON on initialization; the export CLI
// reads the same shape from a YAML file.
type Schema struct {
	RootMarker          string `json:"rootMarker" yaml:"rootMarker"`
	SheetHeaderLevel    int    `json:"sheetHeaderLevel" yaml:"sheetHeaderLevel"`
	TableHeaderLevel    int    `json:"tableHeaderLevel" yaml:"tableHeaderLevel"`
	DocHeaderLevel      int    `json:"docHeaderLevel" yaml:"docHeaderLevel"`
	CaptureDescription  bool   `json:"captureDescription" yaml:"captureDescription"`
	ColumnSeparator     string `json:"columnSeparator" yaml:"columnSeparator"`
	HeaderSeparatorChar string `json:"headerSeparatorChar" yaml:"headerSeparatorChar"`
	RequireOuterPipes   bool   `json:"requireOuterPipes" yaml:"requireOuterPipes"`
	StripWhitespace     bool   `json:"stripWhitespace" yaml:"stripWhitespace"`
}

func DefaultSchema() Schema {
	return Schema{
		RootMarker:          "# Tables",
		SheetHeaderLevel:    2,
		TableHeaderLevel:    3,
		DocHeaderLevel:      1,
		CaptureDescription:  true,
		ColumnSeparator:     "|",
		HeaderSeparatorChar: "-",
		RequireOuterPipes:   true,
		StripWhitespace:     true,
	}
}

// ParseSchemaConfig merges a host-provided JSON config over the defaults.
// An empty config yields the defaults; unknown keys are ignored.
func ParseSchemaConfig(configJSON string) (Schema, error) {
	schema := DefaultSchema()
	if configJSON == "" {
		return schema, nil
	}
	if err := json.Unmarshal([]byte(configJSON), &schema); err != nil {
		return DefaultSchema(), err
	}
	schema.backfill()
	return schema, nil
}

func (s *Schema) backfill() {
	def := DefaultSchema()
	if s.RootMarker == "" {
		s.RootMarker = def.RootMarker
	}
	if s.SheetHeaderLevel <= 0 {
		s.SheetHeaderLevel = def.SheetHeaderLevel
	}
	if s.TableHeaderLevel <= 0 {
		s.TableHeaderLevel = def.TableHeaderLevel
	}
	if s.DocHeaderLevel <= 0 {
		s.DocHeaderLevel = def.DocHeaderLevel
	}
	if s.ColumnSeparator == "" {
		s.ColumnSeparator = def.ColumnSeparator
	}
	if s.HeaderSeparatorChar == "" {
		s.HeaderSeparatorChar = def.HeaderSeparatorChar
	}
}

// Backfill fills zero values with defaults. Exposed for config file loading.
func (s *Schema) Backfill() { s.backfill() }
