// internal/eventhub/hub_test.go
package eventhub

import (
	"context"
	"testing"
)

type memBroadcaster struct {
	events   []string
	payloads []interface{}
}

func (b *memBroadcaster) BroadcastEvent(eventType string, payload interface{}) {
	b.events = append(b.events, eventType)
	b.payloads = append(b.payloads, payload)
}

func TestEmitWithoutBroadcaster(t *testing.T) {
	h := New(context.Background())
	// No broadcaster wired yet; must be a silent no-op.
	h.EmitCheckpointCreated(CheckpointEvent{CheckpointID: "cp1"})
	h.Emit("custom", nil)
}

func TestEmitStopsAfterCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := New(ctx)
	b := &memBroadcaster{}
	h.SetBroadcaster(b)

	h.Emit("before", nil)
	cancel()
	h.Emit("after", nil)

	if len(b.events) != 1 || b.events[0] != "before" {
		t.Errorf("events = %v, want emission gated after cancellation", b.events)
	}
}

func TestEventNames(t *testing.T) {
	h := New(context.Background())
	b := &memBroadcaster{}
	h.SetBroadcaster(b)

	h.EmitCheckpointCreated(CheckpointEvent{CheckpointID: "cp1", Name: "first"})
	h.EmitCheckpointDeleted(CheckpointEvent{CheckpointID: "cp1"})
	h.EmitSessionChanged(SessionChangedEvent{SessionID: "s1", State: "started"})
	h.EmitGraphChanged(GraphChangedEvent{Reason: "sync"})
	h.EmitRollbackCompleted(RollbackEvent{CheckpointID: "cp1", Success: true})
	h.Emit("custom:event", map[string]string{"k": "v"})

	want := []string{
		"checkpoint:created",
		"checkpoint:deleted",
		"session:changed",
		"graph:changed",
		"rollback:completed",
		"custom:event",
	}
	if len(b.events) != len(want) {
		t.Fatalf("got %d events, want %d", len(b.events), len(want))
	}
	for i, name := range want {
		if b.events[i] != name {
			t.Errorf("event[%d] = %q, want %q", i, b.events[i], name)
		}
	}

	cp, ok := b.payloads[0].(CheckpointEvent)
	if !ok || cp.Name != "first" {
		t.Errorf("payload[0] = %#v, want the checkpoint event", b.payloads[0])
	}
}
