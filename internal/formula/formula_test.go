package formula

import (
	"reflect"
	"testing"

	"mdsheet/engine/internal/model"
)

func ordersWorkbook() *model.Workbook {
	orders := model.Table{
		Name:    "Orders",
		Headers: []string{"Price", "Qty", "Total"},
		Rows: [][]string{
			{"100", "2", ""},
			{"50", "4", ""},
		},
	}
	orders.SetTableID(0)
	SetDefinition(&orders, 2, Definition{
		Kind:         KindArithmetic,
		FunctionType: FunctionExpression,
		Expression:   "[Price] * [Qty]",
	})
	return &model.Workbook{Sheets: []model.Sheet{{Name: "Sheet1", Tables: []model.Table{orders}}}}
}

func TestExtractColumnRefs(t *testing.T) {
	got := ExtractColumnRefs("[A] * [B] + [C]")
	if !reflect.DeepEqual(got, []string{"A", "B", "C"}) {
		t.Fatalf("refs = %v", got)
	}
	if refs := ExtractColumnRefs("1 + 2"); refs != nil {
		t.Fatalf("expected no refs, got %v", refs)
	}
}

func TestValidate(t *testing.T) {
	wb := ordersWorkbook()
	cases := []struct {
		name string
		def  Definition
		ok   bool
	}{
		{"expression", Definition{Kind: KindArithmetic, Expression: "[Price] * 2"}, true},
		{"no refs", Definition{Kind: KindArithmetic, Expression: "1 + 2"}, false},
		{"empty expression", Definition{Kind: KindArithmetic}, false},
		{"aggregate", Definition{Kind: KindArithmetic, FunctionType: FunctionAggregate, Columns: []string{"Price"}}, true},
		{"aggregate no columns", Definition{Kind: KindArithmetic, FunctionType: FunctionAggregate}, false},
		{"lookup", Definition{Kind: KindLookup, SourceTableID: 0, JoinKeyLocal: "a", JoinKeyRemote: "b", TargetField: "c"}, true},
		{"lookup missing source", Definition{Kind: KindLookup, SourceTableID: 99, JoinKeyLocal: "a", JoinKeyRemote: "b", TargetField: "c"}, false},
		{"lookup missing key", Definition{Kind: KindLookup, SourceTableID: 0, JoinKeyRemote: "b", TargetField: "c"}, false},
		{"unknown kind", Definition{Kind: "magic"}, false},
	}
	for _, tc := range cases {
		err := Validate(tc.def, wb)
		if tc.ok && err != nil {
			t.Fatalf("%s: unexpected error %v", tc.name, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
}

func TestRecalculateSingleRow(t *testing.T) {
	wb := ordersWorkbook()
	wb.Sheets[0].Tables[0].Rows[0][0] = "200"
	e := NewEngine(nil)
	e.Rebuild(wb)

	updates := e.Recalculate(wb, 0, "Price", 0)
	want := []model.CellUpdate{{SheetIndex: 0, TableIndex: 0, Row: 0, Col: 2, Value: "400"}}
	if !reflect.DeepEqual(updates, want) {
		t.Fatalf("updates = %+v", updates)
	}
	// Row 1 was not edited, so its stale Total must stay untouched.
	if wb.Sheets[0].Tables[0].Rows[1][2] != "" {
		t.Fatalf("row 1 recalculated without an edit")
	}
}

func TestRecalculateAllRowsWhenNoRowGiven(t *testing.T) {
	wb := ordersWorkbook()
	e := NewEngine(nil)
	e.Rebuild(wb)

	updates := e.Recalculate(wb, 0, "Price", -1)
	if len(updates) != 2 {
		t.Fatalf("expected both rows, got %+v", updates)
	}
	if wb.Sheets[0].Tables[0].Rows[1][2] != "200" {
		t.Fatalf("row 1 = %q", wb.Sheets[0].Tables[0].Rows[1][2])
	}
}

func TestRecalculateLookupCascade(t *testing.T) {
	products := model.Table{
		Name:    "Products",
		Headers: []string{"SKU", "Price"},
		Rows:    [][]string{{"A1", "10"}, {"B2", "5"}},
	}
	products.SetTableID(1)

	orders := model.Table{
		Name:    "Orders",
		Headers: []string{"SKU", "Qty", "UnitPrice", "Total"},
		Rows:    [][]string{{"A1", "3", "", ""}},
	}
	orders.SetTableID(2)
	SetDefinition(&orders, 2, Definition{
		Kind:          KindLookup,
		SourceTableID: 1,
		JoinKeyLocal:  "SKU",
		JoinKeyRemote: "SKU",
		TargetField:   "Price",
	})
	SetDefinition(&orders, 3, Definition{
		Kind:       KindArithmetic,
		Expression: "[UnitPrice] * [Qty]",
	})

	wb := &model.Workbook{Sheets: []model.Sheet{{Name: "Sheet1", Tables: []model.Table{products, orders}}}}
	e := NewEngine(nil)
	e.Rebuild(wb)

	updates := e.Recalculate(wb, 1, "Price", 0)
	table := &wb.Sheets[0].Tables[1]
	if table.Rows[0][2] != "10" {
		t.Fatalf("lookup did not fill UnitPrice: %q", table.Rows[0][2])
	}
	if table.Rows[0][3] != "30" {
		t.Fatalf("cascade did not reach Total: %q", table.Rows[0][3])
	}
	if len(updates) != 2 {
		t.Fatalf("expected two updates, got %+v", updates)
	}
}

func TestRecalculateSelfReferenceTerminates(t *testing.T) {
	table := model.Table{
		Name:    "Loop",
		Headers: []string{"Self"},
		Rows:    [][]string{{"1"}},
	}
	table.SetTableID(0)
	SetDefinition(&table, 0, Definition{Kind: KindArithmetic, Expression: "[Self] + 1"})
	wb := &model.Workbook{Sheets: []model.Sheet{{Tables: []model.Table{table}}}}

	e := NewEngine(nil)
	e.Rebuild(wb)
	updates := e.Recalculate(wb, 0, "Self", 0)
	if len(updates) != 1 {
		t.Fatalf("self reference must evaluate exactly once, got %+v", updates)
	}
	if wb.Sheets[0].Tables[0].Rows[0][0] != "2" {
		t.Fatalf("value = %q", wb.Sheets[0].Tables[0].Rows[0][0])
	}
}

func TestRecalculateAllLookupsBeforeArithmetic(t *testing.T) {
	products := model.Table{
		Name:    "Products",
		Headers: []string{"SKU", "Price"},
		Rows:    [][]string{{"A1", "10"}},
	}
	products.SetTableID(1)

	orders := model.Table{
		Name:    "Orders",
		Headers: []string{"SKU", "Qty", "UnitPrice", "Total"},
		Rows:    [][]string{{"A1", "4", "", ""}},
	}
	orders.SetTableID(2)
	SetDefinition(&orders, 2, Definition{
		Kind:          KindLookup,
		SourceTableID: 1,
		JoinKeyLocal:  "SKU",
		JoinKeyRemote: "SKU",
		TargetField:   "Price",
	})
	SetDefinition(&orders, 3, Definition{Kind: KindArithmetic, Expression: "[UnitPrice] * [Qty]"})

	wb := &model.Workbook{Sheets: []model.Sheet{{Tables: []model.Table{products, orders}}}}
	e := NewEngine(nil)
	e.Rebuild(wb)

	e.RecalculateAll(wb)
	table := &wb.Sheets[0].Tables[1]
	if table.Rows[0][2] != "10" || table.Rows[0][3] != "40" {
		t.Fatalf("rows = %v", table.Rows[0])
	}
}

func TestEvaluateExpression(t *testing.T) {
	table := model.Table{
		Headers: []string{"A", "B"},
		Rows:    [][]string{{"6", "3"}},
	}
	cases := []struct {
		expr string
		want string
	}{
		{"[A] + [B]", "9"},
		{"[A] - [B]", "3"},
		{"[A] / [B]", "2"},
		{"([A] + [B]) * 2", "18"},
		{"-[A] + 10", "4"},
		{"(-[A]) * [B]", "-18"},
		{"2 * (-[B])", "-6"},
		{"[A] / 0", NotApplicable},
		{"[A] +", NotApplicable},
		{"[Missing] + 1", NotApplicable},
	}
	for _, tc := range cases {
		if got := evalExpression(tc.expr, &table, 0); got != tc.want {
			t.Fatalf("%s = %q, want %q", tc.expr, got, tc.want)
		}
	}
}

func TestEvaluateExpressionNonNumericCell(t *testing.T) {
	table := model.Table{Headers: []string{"A"}, Rows: [][]string{{"abc"}}}
	if got := evalExpression("[A] * 2", &table, 0); got != NotApplicable {
		t.Fatalf("got %q", got)
	}
}

func TestEvaluateAggregates(t *testing.T) {
	table := model.Table{
		Headers: []string{"Q1", "Q2", "Q3"},
		Rows:    [][]string{{"10", "20", ""}},
	}
	cases := []struct {
		op   string
		want string
	}{
		{AggregateSum, "30"},
		{AggregateAverage, "15"},
		{AggregateMin, "10"},
		{AggregateMax, "20"},
		{AggregateCount, "2"},
	}
	for _, tc := range cases {
		def := Definition{
			Kind:         KindArithmetic,
			FunctionType: FunctionAggregate,
			Aggregate:    tc.op,
			Columns:      []string{"Q1", "Q2", "Q3"},
		}
		if got := evalAggregate(def, &table, 0); got != tc.want {
			t.Fatalf("%s = %q, want %q", tc.op, got, tc.want)
		}
	}
}

func TestLookupNoMatchIsNA(t *testing.T) {
	source := model.Table{Headers: []string{"K", "V"}, Rows: [][]string{{"x", "1"}}}
	source.SetTableID(5)
	local := model.Table{Headers: []string{"K", "Out"}, Rows: [][]string{{"y", ""}}}
	local.SetTableID(6)
	SetDefinition(&local, 1, Definition{
		Kind: KindLookup, SourceTableID: 5,
		JoinKeyLocal: "K", JoinKeyRemote: "K", TargetField: "V",
	})
	wb := &model.Workbook{Sheets: []model.Sheet{{Tables: []model.Table{source, local}}}}

	e := NewEngine(nil)
	e.Rebuild(wb)
	e.Recalculate(wb, 6, "K", 0)
	if wb.Sheets[0].Tables[1].Rows[0][1] != NotApplicable {
		t.Fatalf("expected %q, got %q", NotApplicable, wb.Sheets[0].Tables[1].Rows[0][1])
	}
}

func TestDefinitionsRoundTripThroughClone(t *testing.T) {
	wb := ordersWorkbook()
	clone := wb.Clone()
	defs := Definitions(&clone.Sheets[0].Tables[0])
	def, ok := defs[2]
	if !ok || def.Kind != KindArithmetic || def.Expression != "[Price] * [Qty]" {
		t.Fatalf("defs after clone = %+v", defs)
	}
}
