package hostsync

import (
	"testing"
	"time"

	"mdsheet/engine/internal/model"
)

func spec(start int, content string) model.EditSpec {
	return model.EditSpec{StartLine: start, EndLine: start, EndCol: len(content), Content: content}
}

func TestAckGatedDispatch(t *testing.T) {
	var sent []Patch
	q := NewQueue(func(p Patch) { sent = append(sent, p) }, false, nil)

	q.Enqueue(spec(0, "a"))
	q.Enqueue(spec(1, "b"))
	if len(sent) != 1 {
		t.Fatalf("sent = %d, want 1 before ack", len(sent))
	}
	if q.Pending() != 1 {
		t.Fatalf("pending = %d, want 1", q.Pending())
	}

	q.Ack(true)
	if len(sent) != 2 {
		t.Fatalf("sent = %d, want 2 after ack", len(sent))
	}
	if sent[0].StartLine != 0 || sent[1].StartLine != 1 {
		t.Fatalf("patches out of order: %+v", sent)
	}
}

func TestRejectedPatchIsNotRetried(t *testing.T) {
	var sent []Patch
	q := NewQueue(func(p Patch) { sent = append(sent, p) }, false, nil)

	q.Enqueue(spec(0, "a"))
	q.Enqueue(spec(1, "b"))
	q.Ack(false)
	if len(sent) != 2 {
		t.Fatalf("sent = %d, want next patch dispatched", len(sent))
	}
	if sent[1].StartLine != 1 {
		t.Fatalf("retried the rejected patch: %+v", sent)
	}
}

func TestOptimisticModeSkipsAcks(t *testing.T) {
	var sent []Patch
	q := NewQueue(func(p Patch) { sent = append(sent, p) }, true, nil)

	q.Enqueue(spec(0, "a"))
	q.Enqueue(spec(1, "b"))
	q.Enqueue(spec(2, "c"))
	if len(sent) != 3 {
		t.Fatalf("sent = %d, want all three immediately", len(sent))
	}
}

func TestHoldDelaysDispatch(t *testing.T) {
	var sent []Patch
	q := NewQueue(func(p Patch) { sent = append(sent, p) }, true, nil)

	q.Hold(time.Hour)
	q.Enqueue(spec(0, "a"))
	if len(sent) != 0 {
		t.Fatalf("sent during hold: %+v", sent)
	}
	q.Release()
	if len(sent) != 1 {
		t.Fatalf("sent = %d after release, want 1", len(sent))
	}
}

func TestFromSpecShape(t *testing.T) {
	p := FromSpec(model.EditSpec{StartLine: 3, EndLine: 5, EndCol: 7, Content: "x"})
	if p.Type != "updateRange" {
		t.Fatalf("type = %q", p.Type)
	}
	if !p.UndoStopBefore || !p.UndoStopAfter {
		t.Fatalf("undo stops not set: %+v", p)
	}
	if p.StartLine != 3 || p.EndLine != 5 || p.EndCol != 7 {
		t.Fatalf("range lost: %+v", p)
	}
}
