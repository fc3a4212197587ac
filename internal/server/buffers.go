// internal/server/buffers.go
package server

import (
	"fmt"
	"sync"
)

// BufferRegistry tracks which workspace files the editor currently has
// open. Rollbacks route restored content for open files through a
// "buffer:replace" event so the editor swaps the live buffer instead
// of racing a disk write against unsaved edits.
type BufferRegistry struct {
	mu          sync.RWMutex
	open        map[string]bool
	tools       []string
	broadcaster interface {
		BroadcastEvent(eventType string, payload interface{})
	}
}

func NewBufferRegistry() *BufferRegistry {
	return &BufferRegistry{open: make(map[string]bool)}
}

// SetBroadcaster wires the server used to reach the editor.
func (b *BufferRegistry) SetBroadcaster(s *Server) {
	b.mu.Lock()
	b.broadcaster = s
	b.mu.Unlock()
}

// SetOpen replaces the set of open paths, relative to the workspace root.
func (b *BufferRegistry) SetOpen(paths []string) {
	b.mu.Lock()
	b.open = make(map[string]bool, len(paths))
	for _, p := range paths {
		b.open[p] = true
	}
	b.mu.Unlock()
}

func (b *BufferRegistry) IsOpen(path string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.open[path]
}

// SetActiveTools replaces the list of AI tools the editor reports as
// currently running, fed into change classification.
func (b *BufferRegistry) SetActiveTools(tools []string) {
	b.mu.Lock()
	b.tools = append([]string(nil), tools...)
	b.mu.Unlock()
}

// ActiveTools returns the editor-reported running AI tools.
func (b *BufferRegistry) ActiveTools() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]string(nil), b.tools...)
}

// Replace pushes new content for an open buffer to the editor.
func (b *BufferRegistry) Replace(path, content string) error {
	b.mu.RLock()
	broadcaster := b.broadcaster
	b.mu.RUnlock()

	if broadcaster == nil {
		return fmt.Errorf("no editor connected for buffer %s", path)
	}
	broadcaster.BroadcastEvent("buffer:replace", map[string]interface{}{
		"path":    path,
		"content": content,
	})
	return nil
}
