package formula

import (
	"fmt"
	"strconv"
	"strings"

	"mdsheet/engine/internal/model"
)

// evaluate computes a formula for one row of its owning table. Failures of
// any kind resolve to NotApplicable rather than an error.
func evaluate(def Definition, owner *model.Table, row int, wb *model.Workbook) string {
	switch def.Kind {
	case KindArithmetic:
		if def.FunctionType == FunctionAggregate {
			return evalAggregate(def, owner, row)
		}
		return evalExpression(def.Expression, owner, row)
	case KindLookup:
		return evalLookup(def, owner, row, wb)
	default:
		return NotApplicable
	}
}

func cellAt(t *model.Table, row, col int) string {
	if row < 0 || row >= len(t.Rows) || col < 0 {
		return ""
	}
	if col >= len(t.Rows[row]) {
		return ""
	}
	return t.Rows[row][col]
}

// numericValue parses a cell. Thousands separators are tolerated so a
// formatted column still feeds a formula.
func numericValue(cell string) (float64, bool) {
	cleaned := strings.TrimSpace(strings.ReplaceAll(cell, ",", ""))
	cleaned = strings.TrimPrefix(cleaned, "$")
	if cleaned == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func evalLookup(def Definition, owner *model.Table, row int, wb *model.Workbook) string {
	localIdx := owner.ColumnIndex(def.JoinKeyLocal)
	if localIdx < 0 {
		return NotApplicable
	}
	key := cellAt(owner, row, localIdx)
	if key == "" {
		return NotApplicable
	}
	_, _, source := wb.FindTableByID(def.SourceTableID)
	if source == nil {
		return NotApplicable
	}
	remoteIdx := source.ColumnIndex(def.JoinKeyRemote)
	targetIdx := source.ColumnIndex(def.TargetField)
	if remoteIdx < 0 || targetIdx < 0 {
		return NotApplicable
	}
	for r := range source.Rows {
		if cellAt(source, r, remoteIdx) == key {
			return cellAt(source, r, targetIdx)
		}
	}
	return NotApplicable
}

func evalAggregate(def Definition, owner *model.Table, row int) string {
	op := def.Aggregate
	if op == "" {
		op = AggregateSum
	}
	var values []float64
	nonEmpty := 0
	for _, name := range def.Columns {
		idx := owner.ColumnIndex(name)
		if idx < 0 {
			return NotApplicable
		}
		cell := cellAt(owner, row, idx)
		if strings.TrimSpace(cell) == "" {
			continue
		}
		nonEmpty++
		v, ok := numericValue(cell)
		if !ok {
			if op != AggregateCount {
				return NotApplicable
			}
			continue
		}
		values = append(values, v)
	}
	if op == AggregateCount {
		return formatNumber(float64(nonEmpty))
	}
	if len(values) == 0 {
		return NotApplicable
	}
	switch op {
	case AggregateSum:
		return formatNumber(sum(values))
	case AggregateAverage:
		return formatNumber(sum(values) / float64(len(values)))
	case AggregateMin:
		m := values[0]
		for _, v := range values[1:] {
			if v < m {
				m = v
			}
		}
		return formatNumber(m)
	case AggregateMax:
		m := values[0]
		for _, v := range values[1:] {
			if v > m {
				m = v
			}
		}
		return formatNumber(m)
	default:
		return NotApplicable
	}
}

func sum(values []float64) float64 {
	total := 0.0
	for _, v := range values {
		total += v
	}
	return total
}

// evalExpression substitutes the row's cell values for bracketed column
// references and evaluates the resulting arithmetic.
func evalExpression(expression string, owner *model.Table, row int) string {
	tokens, err := tokenize(expression, owner, row)
	if err != nil {
		return NotApplicable
	}
	v, err := evalTokens(tokens)
	if err != nil {
		return NotApplicable
	}
	return formatNumber(v)
}

type token struct {
	op    byte // 0 for a number
	value float64
}

func tokenize(expression string, owner *model.Table, row int) ([]token, error) {
	var tokens []token
	for i := 0; i < len(expression); i++ {
		c := expression[i]
		switch {
		case c == ' ' || c == '\t':
		case c == '+' || c == '-' || c == '*' || c == '/' || c == '(' || c == ')':
			tokens = append(tokens, token{op: c})
		case c == '[':
			end := strings.IndexByte(expression[i:], ']')
			if end < 0 {
				return nil, fmt.Errorf("unterminated column reference")
			}
			name := expression[i+1 : i+end]
			idx := owner.ColumnIndex(name)
			if idx < 0 {
				return nil, fmt.Errorf("%w: %q", model.ErrColumnNotFound, name)
			}
			v, ok := numericValue(cellAt(owner, row, idx))
			if !ok {
				return nil, fmt.Errorf("non-numeric cell in %q", name)
			}
			tokens = append(tokens, token{value: v})
			i += end
		case c >= '0' && c <= '9' || c == '.':
			j := i
			for j < len(expression) && (expression[j] >= '0' && expression[j] <= '9' || expression[j] == '.') {
				j++
			}
			v, err := strconv.ParseFloat(expression[i:j], 64)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, token{value: v})
			i = j - 1
		default:
			return nil, fmt.Errorf("unexpected character %q", c)
		}
	}
	return tokens, nil
}

// evalTokens runs shunting-yard over the token stream. A minus with no
// preceding value is treated as unary.
func evalTokens(tokens []token) (float64, error) {
	var output []float64
	var ops []byte

	apply := func(op byte) error {
		if len(output) < 2 {
			return fmt.Errorf("malformed expression")
		}
		b := output[len(output)-1]
		a := output[len(output)-2]
		output = output[:len(output)-2]
		var v float64
		switch op {
		case '+':
			v = a + b
		case '-':
			v = a - b
		case '*':
			v = a * b
		case '/':
			if b == 0 {
				return fmt.Errorf("division by zero")
			}
			v = a / b
		}
		output = append(output, v)
		return nil
	}

	prec := func(op byte) int {
		if op == '*' || op == '/' {
			return 2
		}
		return 1
	}

	prevWasValue := false
	for _, tok := range tokens {
		switch {
		case tok.op == 0:
			output = append(output, tok.value)
			prevWasValue = true
		case tok.op == '(':
			ops = append(ops, '(')
			prevWasValue = false
		case tok.op == ')':
			for len(ops) > 0 && ops[len(ops)-1] != '(' {
				if err := apply(opFor(ops[len(ops)-1])); err != nil {
					return 0, err
				}
				ops = ops[:len(ops)-1]
			}
			if len(ops) == 0 {
				return 0, fmt.Errorf("unbalanced parentheses")
			}
			ops = ops[:len(ops)-1]
			prevWasValue = true
		case tok.op == '-' && !prevWasValue:
			output = append(output, 0)
			ops = append(ops, 'n') // unary minus, binds tightest
		default:
			for len(ops) > 0 && ops[len(ops)-1] != '(' && precOf(ops[len(ops)-1], prec) >= prec(tok.op) {
				if err := apply(opFor(ops[len(ops)-1])); err != nil {
					return 0, err
				}
				ops = ops[:len(ops)-1]
			}
			ops = append(ops, tok.op)
			prevWasValue = false
		}
	}
	for len(ops) > 0 {
		op := ops[len(ops)-1]
		if op == '(' {
			return 0, fmt.Errorf("unbalanced parentheses")
		}
		if err := apply(opFor(op)); err != nil {
			return 0, err
		}
		ops = ops[:len(ops)-1]
	}
	if len(output) != 1 {
		return 0, fmt.Errorf("malformed expression")
	}
	return output[0], nil
}

func precOf(op byte, prec func(byte) int) int {
	if op == 'n' {
		return 3
	}
	return prec(op)
}

func opFor(op byte) byte {
	if op == 'n' {
		return '-'
	}
	return op
}
