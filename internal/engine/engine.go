// Package engine wires the editor session, host patch queue, and settings
// behind the RPC surface. One Engine serves one host document.
package engine

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"mdsheet/engine/internal/batch"
	"mdsheet/engine/internal/editor"
	"mdsheet/engine/internal/envutil"
	"mdsheet/engine/internal/errinfo"
	"mdsheet/engine/internal/hostsync"
	"mdsheet/engine/internal/logging"
	"mdsheet/engine/internal/model"
	"mdsheet/engine/internal/settings"
)

const (
	EngineVersion = "0.1.0"
	APIVersion    = "1"
)

// updateRangeMethod carries outbound text patches to the host.
const updateRangeMethod = "workbook.updateRange"

// Notifier delivers a server-initiated notification to the host.
type Notifier func(method string, params any)

type Engine struct {
	logger      *slog.Logger
	settings    *settings.Store
	session     *editor.Session
	queue       *hostsync.Queue
	settleDelay time.Duration
	optimistic  bool
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

func WithSettings(store *settings.Store) Option {
	return func(e *Engine) { e.settings = store }
}

func New(opts ...Option) (*Engine, error) {
	e := &Engine{logger: logging.Nop()}
	for _, opt := range opts {
		opt(e)
	}
	cfg := settings.Defaults()
	if e.settings != nil {
		loaded, err := e.settings.Load()
		if err != nil {
			e.logger.Warn("engine.settings_load_failed", "error", err.Error())
		} else {
			cfg = loaded
		}
	}
	e.optimistic = cfg.Sync.Optimistic
	settleMS := envutil.Int("MDSHEET_SETTLE_DELAY_MS", cfg.Sync.SettleDelayMS)
	e.settleDelay = time.Duration(settleMS) * time.Millisecond
	e.session = editor.NewSession(e.logger)
	return e, nil
}

// SetNotifier connects the outbound patch queue. Must be called before any
// mutation handler runs.
func (e *Engine) SetNotifier(n Notifier) {
	e.queue = hostsync.NewQueue(func(p hostsync.Patch) {
		n(updateRangeMethod, p)
	}, e.optimistic, e.logger)
}

func (e *Engine) enqueue(spec model.EditSpec) {
	if e.queue == nil {
		e.logger.Warn("engine.patch_dropped", "reason", "no notifier")
		return
	}
	e.queue.Enqueue(spec)
}

// finish closes the batch and ships one patch. The batch decides whether
// anything may go out (abort, empty); the patch content is recomputed from
// the pre-operation text against the session's final text, so specs computed
// against intermediate states cannot corrupt the merged range.
func (e *Engine) finish(pre string, b *batch.Batch) {
	if _, ok := b.End(); !ok {
		return
	}
	if patch, changed := e.session.PatchFrom(pre); changed {
		e.enqueue(patch)
	}
}

// commit ships a single-spec mutation or turns its error into an RPC error.
// pre is the session text captured before the mutation ran.
func (e *Engine) commit(phase, pre string, spec model.EditSpec) (any, *errinfo.ErrorInfo) {
	if spec.Err != "" {
		return nil, specError(phase, spec.Err)
	}
	if patch, changed := e.session.PatchFrom(pre); changed {
		e.enqueue(patch)
	}
	return ackResult{OK: true}, nil
}

// specError classifies an EditSpec error message. The message always starts
// with the sentinel it was wrapped from.
func specError(phase, msg string) *errinfo.ErrorInfo {
	switch {
	case strings.Contains(msg, model.ErrNoWorkbook.Error()):
		return errinfo.NoWorkbook(phase)
	case strings.Contains(msg, model.ErrInvalidIndex.Error()):
		return errinfo.InvalidIndex(phase, msg)
	default:
		return errinfo.StructuralError(phase, msg)
	}
}

// batchError classifies an error returned by a batched operation, recovering
// the abort reason when the batch swallowed the original message.
func batchError(phase string, b *batch.Batch, err error) *errinfo.ErrorInfo {
	if errors.Is(err, batch.ErrAborted) && b.AbortReason() != "" {
		return specError(phase, b.AbortReason())
	}
	switch {
	case errors.Is(err, model.ErrNoWorkbook):
		return errinfo.NoWorkbook(phase)
	case errors.Is(err, model.ErrInvalidIndex):
		return errinfo.InvalidIndex(phase, err.Error())
	default:
		return errinfo.StructuralError(phase, err.Error())
	}
}

func intOr(p *int, fallback int) int {
	if p == nil {
		return fallback
	}
	return *p
}
