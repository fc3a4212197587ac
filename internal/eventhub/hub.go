package eventhub

import (
	"context"
)

// Broadcaster delivers events to the editor-integration layer.
type Broadcaster interface {
	BroadcastEvent(eventType string, payload interface{})
}

// EventHub is the single fan-out point for core events. Emission order
// matches mutation order because all mutation funnels through the
// checkpoint store.
type EventHub struct {
	ctx         context.Context // emission stops once this is cancelled
	broadcaster Broadcaster
}

// New creates a new EventHub.
func New(ctx context.Context) *EventHub {
	return &EventHub{ctx: ctx}
}

// SetBroadcaster wires the websocket broadcaster.
func (h *EventHub) SetBroadcaster(b Broadcaster) {
	h.broadcaster = b
}

func (h *EventHub) emit(eventName string, payload interface{}) {
	if h.broadcaster == nil {
		return
	}
	if h.ctx != nil && h.ctx.Err() != nil {
		// Shutdown has begun; the websocket layer is going away.
		return
	}
	h.broadcaster.BroadcastEvent(eventName, payload)
}

// Emit sends an arbitrary event.
func (h *EventHub) Emit(eventName string, payload interface{}) {
	h.emit(eventName, payload)
}

// CheckpointEvent describes a checkpoint mutation.
type CheckpointEvent struct {
	CheckpointID string `json:"checkpointId"`
	SessionID    string `json:"sessionId"`
	Name         string `json:"name"`
	Type         string `json:"type"`
	Source       string `json:"source"`
	VersionRef   string `json:"versionRef,omitempty"`
	FileCount    int    `json:"fileCount"`
}

func (h *EventHub) EmitCheckpointCreated(event CheckpointEvent) {
	h.emit("checkpoint:created", event)
}

func (h *EventHub) EmitCheckpointDeleted(event CheckpointEvent) {
	h.emit("checkpoint:deleted", event)
}

// SessionChangedEvent describes a session transition.
type SessionChangedEvent struct {
	SessionID string `json:"sessionId"`
	Name      string `json:"name"`
	State     string `json:"state"` // "started", "ended"
	Branch    string `json:"branch,omitempty"`
}

func (h *EventHub) EmitSessionChanged(event SessionChangedEvent) {
	h.emit("session:changed", event)
}

// GraphChangedEvent tells the UI the commit graph needs a refresh.
type GraphChangedEvent struct {
	Workspace string `json:"workspace"`
	Reason    string `json:"reason"` // "checkpoint", "rollback", "sync"
}

func (h *EventHub) EmitGraphChanged(event GraphChangedEvent) {
	h.emit("graph:changed", event)
}

// RollbackEvent describes a completed rollback attempt.
type RollbackEvent struct {
	CheckpointID  string `json:"checkpointId"`
	Success       bool   `json:"success"`
	FilesRestored int    `json:"filesRestored"`
	FilesFailed   int    `json:"filesFailed"`
}

func (h *EventHub) EmitRollbackCompleted(event RollbackEvent) {
	h.emit("rollback:completed", event)
}
