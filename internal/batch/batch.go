// Package batch coalesces every EditSpec produced by one logical operation
// into at most one outbound patch, so the host sees a single atomic,
// undo-able edit.
package batch

import (
	"errors"
	"log/slog"

	"mdsheet/engine/internal/logging"
	"mdsheet/engine/internal/model"
)

var ErrAborted = errors.New("batch aborted")

// Batch accumulates the EditSpecs of one request. It is an explicit handle
// rather than a global flag: a caller cannot nest batches without holding
// two handles, which makes the misuse visible at the call site.
type Batch struct {
	specs   []model.EditSpec
	aborted bool
	reason  string
	logger  *slog.Logger
}

func Start(logger *slog.Logger) *Batch {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Batch{logger: logger}
}

// Post appends one spec. A spec carrying an error aborts the batch: the spec
// is dropped and every later Post and the final End are inert, so the caller
// abandons the whole gesture instead of emitting a partial patch.
func (b *Batch) Post(spec model.EditSpec) error {
	if b.aborted {
		return ErrAborted
	}
	if spec.Err != "" {
		b.aborted = true
		b.reason = spec.Err
		b.logger.Warn("batch.abort", "error", spec.Err)
		return ErrAborted
	}
	if len(b.specs) > 0 {
		// The merge rule assumes each later spec was computed against the
		// already-updated text, so its range must fall inside (or extend)
		// the accumulated range. A disjoint range means some step worked on
		// a stale snapshot and its edit would be silently dropped.
		last := b.bounds()
		if spec.EndLine < last.StartLine-1 || spec.StartLine > last.EndLine+1 {
			b.logger.Warn("batch.disjoint_spec",
				"have_start", last.StartLine, "have_end", last.EndLine,
				"got_start", spec.StartLine, "got_end", spec.EndLine)
		}
	}
	b.specs = append(b.specs, spec)
	return nil
}

// Aborted reports whether an error spec poisoned the batch.
func (b *Batch) Aborted() bool { return b.aborted }

// AbortReason returns the error message of the spec that aborted the batch.
func (b *Batch) AbortReason() string { return b.reason }

// End closes the batch and derives the outbound patch: nothing for an empty
// or aborted batch, the lone spec verbatim, or for several specs the last
// spec's content (each step ran against the already-updated text, so the
// last content is cumulative) under the union of all ranges.
func (b *Batch) End() (model.EditSpec, bool) {
	if b.aborted || len(b.specs) == 0 {
		return model.EditSpec{}, false
	}
	if len(b.specs) == 1 {
		return b.specs[0], true
	}
	out := b.bounds()
	out.Content = b.specs[len(b.specs)-1].Content
	return out, true
}

func (b *Batch) bounds() model.EditSpec {
	out := model.EditSpec{StartLine: b.specs[0].StartLine, EndLine: b.specs[0].EndLine, EndCol: b.specs[0].EndCol}
	for _, spec := range b.specs[1:] {
		if spec.StartLine < out.StartLine {
			out.StartLine = spec.StartLine
		}
		if spec.EndLine > out.EndLine || (spec.EndLine == out.EndLine && spec.EndCol > out.EndCol) {
			out.EndLine = spec.EndLine
			out.EndCol = spec.EndCol
		}
	}
	return out
}
