// Package hostsync serializes outbound text patches to the host editor. The
// host applies patches asynchronously, so at most one patch may be in flight:
// a second patch computed against text the host has not caught up to yet
// would land on the wrong lines.
package hostsync

import (
	"log/slog"
	"sync"
	"time"

	"mdsheet/engine/internal/logging"
	"mdsheet/engine/internal/model"
)

// Patch is the wire form of one text replacement sent to the host.
type Patch struct {
	Type           string `json:"type"`
	StartLine      int    `json:"startLine"`
	EndLine        int    `json:"endLine"`
	EndCol         int    `json:"endCol"`
	Content        string `json:"content"`
	UndoStopBefore bool   `json:"undoStopBefore"`
	UndoStopAfter  bool   `json:"undoStopAfter"`
}

// FromSpec wraps an EditSpec as an outbound patch. Each patch is its own undo
// unit: multi-spec operations arrive here already collapsed into one spec.
func FromSpec(spec model.EditSpec) Patch {
	return Patch{
		Type:           "updateRange",
		StartLine:      spec.StartLine,
		EndLine:        spec.EndLine,
		EndCol:         spec.EndCol,
		Content:        spec.Content,
		UndoStopBefore: true,
		UndoStopAfter:  true,
	}
}

// Sender delivers one patch to the host, typically as an RPC notification.
type Sender func(Patch)

// Queue holds patches until the host acknowledges the one in flight. In
// optimistic mode patches go out immediately without waiting for acks.
type Queue struct {
	mu         sync.Mutex
	pending    []Patch
	inFlight   bool
	held       bool
	optimistic bool
	send       Sender
	logger     *slog.Logger
}

func NewQueue(send Sender, optimistic bool, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Queue{send: send, optimistic: optimistic, logger: logger}
}

// Enqueue stages one patch and dispatches it unless a patch is in flight or
// the queue is held.
func (q *Queue) Enqueue(spec model.EditSpec) {
	q.mu.Lock()
	q.pending = append(q.pending, FromSpec(spec))
	q.mu.Unlock()
	q.dispatch()
}

// Ack records the host's verdict on the in-flight patch and releases the next
// one. A rejected patch is not retried: the text diverged and the host is
// expected to reinitialize the session.
func (q *Queue) Ack(ok bool) {
	q.mu.Lock()
	q.inFlight = false
	q.mu.Unlock()
	if !ok {
		q.logger.Warn("hostsync.patch_rejected")
	}
	q.dispatch()
}

// Hold pauses dispatch for the given duration, then releases. Used right
// after session initialization so the host editor finishes its own parse
// before recalculation patches arrive.
func (q *Queue) Hold(d time.Duration) {
	q.mu.Lock()
	q.held = true
	q.mu.Unlock()
	time.AfterFunc(d, q.Release)
}

// Release lifts a hold and dispatches whatever queued up behind it.
func (q *Queue) Release() {
	q.mu.Lock()
	q.held = false
	q.mu.Unlock()
	q.dispatch()
}

// Pending reports how many patches are staged, the in-flight one excluded.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

func (q *Queue) dispatch() {
	for {
		q.mu.Lock()
		if q.held || len(q.pending) == 0 || (q.inFlight && !q.optimistic) {
			q.mu.Unlock()
			return
		}
		patch := q.pending[0]
		q.pending = q.pending[1:]
		if !q.optimistic {
			q.inFlight = true
		}
		send := q.send
		q.mu.Unlock()

		q.logger.Debug("hostsync.patch",
			"start", patch.StartLine, "end", patch.EndLine, "bytes", len(patch.Content))
		if send != nil {
			send(patch)
		}
		if !q.optimistic {
			return
		}
	}
}
