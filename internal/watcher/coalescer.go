package watcher

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"guardian/internal/checkpoint"
	"guardian/internal/classify"
)

// maxSnapshotBytes caps how large a file the coalescer will embed as a
// content snapshot. Bigger files rely on the version-control backup.
const maxSnapshotBytes = 1 << 20

// Recorder receives an audit trail of observed file events.
type Recorder interface {
	RecordFileEvent(path, eventType, source string, confidence float64) error
}

// Coalescer gathers debounced file events into batches, classifies
// each batch, and turns it into a checkpoint. A single worker
// goroutine consumes batches, so only one create-and-commit sequence
// is ever in flight: a later batch waits for the in-flight one's
// persistence to complete before touching the store.
type Coalescer struct {
	root        string
	store       *checkpoint.Store
	classifier  *classify.Classifier
	recorder    Recorder // nil disables the audit trail
	activeTools func() []string
	window      time.Duration
	logger      *slog.Logger

	mu       sync.Mutex
	pending  map[string]Event
	baseline map[string]*string // last observed content per absolute path
	first    time.Time
	timer    *time.Timer

	batches chan batch
	done    chan struct{}
	wg      sync.WaitGroup
}

type batch struct {
	events  []Event
	prev    map[string]*string // pre-change content per absolute path
	elapsed time.Duration
}

// NewCoalescer creates a coalescer flushing after window of quiet.
func NewCoalescer(root string, store *checkpoint.Store, classifier *classify.Classifier, recorder Recorder, activeTools func() []string, window time.Duration, logger *slog.Logger) *Coalescer {
	if logger == nil {
		logger = slog.Default()
	}
	if activeTools == nil {
		activeTools = func() []string { return nil }
	}

	return &Coalescer{
		root:        root,
		store:       store,
		classifier:  classifier,
		recorder:    recorder,
		activeTools: activeTools,
		window:      window,
		logger:      logger,
		pending:     make(map[string]Event),
		baseline:    make(map[string]*string),
		batches:     make(chan batch, 4),
		done:        make(chan struct{}),
	}
}

// Start launches the single checkpoint worker.
func (c *Coalescer) Start() {
	c.wg.Add(1)
	go c.worker()
}

// Stop flushes nothing and stops the worker after the in-flight batch
// completes.
func (c *Coalescer) Stop() {
	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.mu.Unlock()

	close(c.done)
	c.wg.Wait()
}

// Add feeds one debounced watcher event into the current batch.
func (c *Coalescer) Add(e Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.pending) == 0 {
		c.first = time.Now()
	}
	if _, queued := c.pending[e.Path]; !queued {
		c.seedBaselineLocked(e)
	}
	c.pending[e.Path] = e

	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.window, c.flush)
}

// seedBaselineLocked records a path's content the first time the path
// shows up, so checkpoints carry a restorable snapshot even when no
// version-control backend exists. Created files have no pre-image, and
// a deleted file's pre-image was either seen earlier or is gone.
func (c *Coalescer) seedBaselineLocked(e Event) {
	if _, known := c.baseline[e.Path]; known {
		return
	}
	if e.Type == EventCreate || e.Type == EventDelete {
		return
	}
	if data, err := os.ReadFile(e.Path); err == nil && len(data) <= maxSnapshotBytes {
		content := string(data)
		c.baseline[e.Path] = &content
	}
}

// flush moves the pending set onto the worker queue.
func (c *Coalescer) flush() {
	c.mu.Lock()
	if len(c.pending) == 0 {
		c.mu.Unlock()
		return
	}
	events := make([]Event, 0, len(c.pending))
	prev := make(map[string]*string, len(c.pending))
	for path, e := range c.pending {
		events = append(events, e)
		prev[path] = c.baseline[path]
	}
	elapsed := time.Since(c.first)
	c.pending = make(map[string]Event)
	c.mu.Unlock()

	select {
	case c.batches <- batch{events: events, prev: prev, elapsed: elapsed}:
	case <-c.done:
	}
}

func (c *Coalescer) worker() {
	defer c.wg.Done()
	for {
		select {
		case b := <-c.batches:
			c.checkpointBatch(b)
		case <-c.done:
			return
		}
	}
}

// checkpointBatch classifies one batch and creates the checkpoint.
func (c *Coalescer) checkpointBatch(b batch) {
	files := make([]checkpoint.ChangedFile, 0, len(b.events))
	advance := make(map[string]*string, len(b.events))
	for _, e := range b.events {
		rel, err := filepath.Rel(c.root, e.Path)
		if err != nil {
			rel = e.Path
		}
		cf := checkpoint.ChangedFile{
			Path:            rel,
			ChangeType:      mapEventType(e.Type),
			PreviousContent: b.prev[e.Path],
		}
		if e.Type != EventDelete {
			if data, err := os.ReadFile(e.Path); err == nil && len(data) <= maxSnapshotBytes {
				content := string(data)
				cf.CurrentContent = &content
			}
		}
		advance[e.Path] = cf.CurrentContent
		files = append(files, cf)
	}

	// The next batch's pre-change content is this batch's result.
	c.mu.Lock()
	for path, content := range advance {
		if content == nil {
			delete(c.baseline, path)
		} else {
			c.baseline[path] = content
		}
	}
	c.mu.Unlock()

	result := c.classifier.Classify(&classify.Batch{
		Files:         files,
		ElapsedMillis: b.elapsed.Milliseconds(),
		ActiveTools:   c.activeTools(),
	})

	if c.recorder != nil {
		for _, cf := range files {
			if err := c.recorder.RecordFileEvent(cf.Path, string(cf.ChangeType), string(result.Source), result.Confidence); err != nil {
				c.logger.Warn("audit record failed", "path", cf.Path, "error", err)
			}
		}
	}

	cpType := checkpoint.TypeAuto
	if result.Source.IsAITool() {
		if !c.store.Settings().AutoCheckpointOnAIChange {
			c.logger.Debug("AI change checkpointing disabled, skipping batch", "files", len(files))
			return
		}
		cpType = checkpoint.TypeAIGenerated
	}

	if _, err := c.store.CreateCheckpoint(cpType, result.Source, files, nil); err != nil {
		c.logger.Error("checkpoint from watcher batch failed", "error", err)
	}
}

func mapEventType(t EventType) checkpoint.FileChangeType {
	switch t {
	case EventCreate:
		return checkpoint.ChangeAdded
	case EventDelete:
		return checkpoint.ChangeDeleted
	case EventRename:
		return checkpoint.ChangeRenamed
	default:
		return checkpoint.ChangeModified
	}
}
