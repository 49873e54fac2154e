package model

import (
	"sort"
	"strconv"
)

// Keys under "visual" whose entries are keyed by stringified column index.
// They all have to track the data when columns shift.
var columnIndexedKeys = []string{"columns", "validation", "filters", "formulas", "column_widths"}

// ShiftColumnMetadata remaps column-indexed visual metadata after a column
// insert (delta +1 at colIdx) or delete (delta -1; the entry at colIdx is
// dropped).
func ShiftColumnMetadata(t *Table, colIdx, delta int) {
	visual := t.Visual(false)
	if visual == nil {
		return
	}
	for _, key := range columnIndexedKeys {
		data, ok := visual[key].(map[string]any)
		if !ok {
			continue
		}
		shifted := make(map[string]any, len(data))
		for strIdx, value := range data {
			idx, err := strconv.Atoi(strIdx)
			if err != nil {
				shifted[strIdx] = value
				continue
			}
			switch {
			case delta < 0 && idx == colIdx:
				// Column deleted; its metadata goes with it.
			case delta < 0 && idx > colIdx:
				shifted[strconv.Itoa(idx-1)] = value
			case delta > 0 && idx >= colIdx:
				shifted[strconv.Itoa(idx+1)] = value
			default:
				shifted[strIdx] = value
			}
		}
		visual[key] = shifted
	}
}

// ReorderColumnMetadata remaps column-indexed visual metadata after a column
// move, mirroring the cut-and-insert performed on the data.
func ReorderColumnMetadata(t *Table, colIndices []int, targetColIdx int) {
	visual := t.Visual(false)
	if visual == nil {
		return
	}
	sorted := append([]int(nil), colIndices...)
	sort.Ints(sorted)
	for _, key := range columnIndexedKeys {
		data, ok := visual[key].(map[string]any)
		if !ok {
			continue
		}
		visual[key] = reorderIndexedMap(data, sorted, targetColIdx)
	}
}

func reorderIndexedMap(data map[string]any, sortedIndices []int, target int) map[string]any {
	maxIdx := 0
	for strIdx := range data {
		if idx, err := strconv.Atoi(strIdx); err == nil && idx > maxIdx {
			maxIdx = idx
		}
	}
	values := make([]any, maxIdx+1)
	for strIdx, v := range data {
		if idx, err := strconv.Atoi(strIdx); err == nil && idx >= 0 {
			values[idx] = v
		}
	}

	moving := make([]any, 0, len(sortedIndices))
	for _, idx := range sortedIndices {
		if idx < len(values) {
			moving = append(moving, values[idx])
		} else {
			moving = append(moving, nil)
		}
	}
	for i := len(sortedIndices) - 1; i >= 0; i-- {
		idx := sortedIndices[i]
		if idx < len(values) {
			values = append(values[:idx], values[idx+1:]...)
		}
	}
	removedBefore := 0
	for _, idx := range sortedIndices {
		if idx < target {
			removedBefore++
		}
	}
	adjusted := target - removedBefore
	if adjusted < 0 {
		adjusted = 0
	}
	if adjusted > len(values) {
		adjusted = len(values)
	}
	rest := append([]any(nil), values[adjusted:]...)
	values = append(values[:adjusted], append(moving, rest...)...)

	out := make(map[string]any, len(data))
	for i, v := range values {
		if v != nil {
			out[strconv.Itoa(i)] = v
		}
	}
	return out
}
