// Package rollback restores workspace state to a checkpoint.
//
// Each request walks a fixed state machine: Requested -> BackupTaken ->
// StrategySelected -> Executing -> {Succeeded, PartiallyFailed,
// Failed}. Expected failure modes (missing checkpoint, missing
// content) come back in the Result, never as errors.
package rollback

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"guardian/internal/checkpoint"
	"guardian/internal/eventhub"
	"guardian/internal/git"
)

// Strategy selects how a version-backed rollback is executed. The
// caller chooses: the strategies have materially different blast
// radii, so there is no automatic heuristic between them.
type Strategy string

const (
	// StrategyHardReset discards everything after the target, working
	// tree included.
	StrategyHardReset Strategy = "hard"
	// StrategySoftReset moves HEAD only, leaving changes staged.
	StrategySoftReset Strategy = "soft"
	// StrategyFileRestore copies each file's content as of the target
	// without moving HEAD.
	StrategyFileRestore Strategy = "files"
	// StrategyContentReplay restores from embedded snapshots; the
	// fallback when no usable version ref exists.
	StrategyContentReplay Strategy = "content"
)

// State names a stage of the rollback state machine.
type State string

const (
	StateRequested       State = "requested"
	StateBackupTaken     State = "backup-taken"
	StateStrategySelect  State = "strategy-selected"
	StateExecuting       State = "executing"
	StateSucceeded       State = "succeeded"
	StatePartiallyFailed State = "partially-failed"
	StateFailed          State = "failed"
)

// Options controls one rollback request.
type Options struct {
	Strategy   Strategy
	SkipBackup bool
}

// Result reports what a rollback did, per file.
type Result struct {
	Success          bool     `json:"success"`
	Message          string   `json:"message"`
	FilesRestored    []string `json:"filesRestored"`
	FilesNotRestored []string `json:"filesNotRestored"`
	Errors           []string `json:"errors"`
	Strategy         Strategy `json:"strategy"`
	State            State    `json:"state"`
	BackupID         string   `json:"backupId,omitempty"`
	// RefMoved is the ref HEAD was reset to. A soft reset sets it
	// without listing any restored files, since the tree is untouched.
	RefMoved string `json:"refMoved,omitempty"`
}

// OpenBuffers lets the editor layer intercept writes to files it has
// open, so restored content lands in the live buffer instead of
// splitting on-disk and in-memory state.
type OpenBuffers interface {
	IsOpen(path string) bool
	Replace(path, content string) error
}

// Events is the slice of the event hub the engine emits through.
type Events interface {
	EmitRollbackCompleted(eventhub.RollbackEvent)
	EmitGraphChanged(eventhub.GraphChangedEvent)
}

// Engine executes rollback requests against the store and backend.
type Engine struct {
	store   *checkpoint.Store
	git     git.Client // nil in snapshot-only mode
	root    string
	buffers OpenBuffers // nil means everything goes to disk
	events  Events
	logger  *slog.Logger
}

// NewEngine creates a rollback engine.
func NewEngine(store *checkpoint.Store, gc git.Client, root string, buffers OpenBuffers, ev Events, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:   store,
		git:     gc,
		root:    root,
		buffers: buffers,
		events:  ev,
		logger:  logger,
	}
}

// Rollback restores the workspace to the target checkpoint.
func (e *Engine) Rollback(checkpointID string, opts Options) (*Result, error) {
	result := &Result{
		State:            StateRequested,
		FilesRestored:    []string{},
		FilesNotRestored: []string{},
		Errors:           []string{},
	}

	cp, ok := e.store.GetCheckpoint(checkpointID)
	if !ok {
		result.State = StateFailed
		result.Message = fmt.Sprintf("checkpoint not found: %s", checkpointID)
		return result, nil
	}

	// Backup first: unconditional insurance before touching anything.
	// A backup failure is logged, never a blocker.
	if !opts.SkipBackup {
		if backup := e.createBackup(&cp); backup != nil {
			result.BackupID = backup.ID
		}
	}
	result.State = StateBackupTaken

	strategy := e.selectStrategy(&cp, opts.Strategy)
	result.Strategy = strategy
	result.State = StateStrategySelect

	result.State = StateExecuting
	switch strategy {
	case StrategyHardReset:
		e.executeReset(&cp, true, result)
	case StrategySoftReset:
		e.executeReset(&cp, false, result)
	case StrategyFileRestore:
		e.executeFileRestore(&cp, result)
	default:
		e.executeContentReplay(&cp, result)
	}

	e.finish(&cp, result)
	return result, nil
}

// selectStrategy prefers version-control-native restoration when the
// target's version ref resolves; otherwise content replay.
func (e *Engine) selectStrategy(cp *checkpoint.Checkpoint, requested Strategy) Strategy {
	refUsable := cp.VersionRef != "" && e.git != nil && e.git.CommitExists(cp.VersionRef)
	if !refUsable {
		return StrategyContentReplay
	}

	switch requested {
	case StrategyHardReset, StrategySoftReset, StrategyFileRestore:
		return requested
	default:
		return StrategyFileRestore
	}
}

// createBackup snapshots all currently-dirty content into a fresh
// checkpoint carrying the target's type and source, so it sorts next
// to the history it protects.
func (e *Engine) createBackup(target *checkpoint.Checkpoint) *checkpoint.Checkpoint {
	paths := e.dirtyPaths(target)

	changed := make([]checkpoint.ChangedFile, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(filepath.Join(e.root, path))
		if err != nil {
			continue
		}
		content := string(data)
		changed = append(changed, checkpoint.ChangedFile{
			Path:            path,
			ChangeType:      checkpoint.ChangeModified,
			PreviousContent: &content,
			CurrentContent:  &content,
		})
	}

	backup, err := e.store.CreateCheckpoint(target.Type, target.Source, changed, &checkpoint.CreateOptions{
		Name:        "Backup before rollback to " + target.Name,
		Description: "Automatic backup created by rollback",
	})
	if err != nil {
		e.logger.Warn("backup checkpoint failed, continuing rollback", "error", err)
		return nil
	}
	return backup
}

// dirtyPaths is the union of the backend's dirty files and the
// target's own paths, so the backup covers everything the rollback
// may overwrite.
func (e *Engine) dirtyPaths(target *checkpoint.Checkpoint) []string {
	seen := make(map[string]bool)
	var paths []string
	add := func(path string) {
		if path != "" && !seen[path] {
			seen[path] = true
			paths = append(paths, path)
		}
	}

	if e.git != nil {
		if status, err := e.git.Status(); err == nil {
			for _, f := range status.Modified {
				add(f.Path)
			}
			for _, f := range status.Untracked {
				add(f.Path)
			}
			for _, f := range status.Staged {
				add(f.Path)
			}
		}
	}
	for _, cf := range target.ChangedFiles {
		add(cf.Path)
	}

	return paths
}

func (e *Engine) executeReset(cp *checkpoint.Checkpoint, destructive bool, result *Result) {
	if err := e.git.ResetTo(cp.VersionRef, destructive); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("reset to %s: %v", cp.VersionRef, err))
		return
	}
	result.RefMoved = cp.VersionRef
	if !destructive {
		// Soft reset moves the pointer only; the working tree is untouched,
		// so nothing is reported restored.
		return
	}
	for _, cf := range cp.ChangedFiles {
		result.FilesRestored = append(result.FilesRestored, cf.Path)
	}
	if len(result.FilesRestored) == 0 {
		// A reset with an empty change list still restored the tree.
		result.FilesRestored = append(result.FilesRestored, ".")
	}
}

func (e *Engine) executeFileRestore(cp *checkpoint.Checkpoint, result *Result) {
	for _, cf := range cp.ChangedFiles {
		if err := e.git.RestorePath(cf.Path, cp.VersionRef); err != nil {
			result.FilesNotRestored = append(result.FilesNotRestored, cf.Path)
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", cf.Path, err))
			continue
		}
		result.FilesRestored = append(result.FilesRestored, cf.Path)
	}
}

// executeContentReplay restores each file from its embedded snapshot,
// falling back to the content just before the checkpoint's commit.
func (e *Engine) executeContentReplay(cp *checkpoint.Checkpoint, result *Result) {
	for _, cf := range cp.ChangedFiles {
		content, err := e.resolveContent(cp, &cf)
		if err != nil {
			result.FilesNotRestored = append(result.FilesNotRestored, cf.Path)
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", cf.Path, err))
			continue
		}
		if err := e.writeFile(cf.Path, content); err != nil {
			result.FilesNotRestored = append(result.FilesNotRestored, cf.Path)
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", cf.Path, err))
			continue
		}
		result.FilesRestored = append(result.FilesRestored, cf.Path)
	}
}

// resolveContent applies the content-resolution order: stored snapshot
// first, then the version-control parent lookup.
func (e *Engine) resolveContent(cp *checkpoint.Checkpoint, cf *checkpoint.ChangedFile) (string, error) {
	if cf.PreviousContent != nil {
		return *cf.PreviousContent, nil
	}
	if cp.VersionRef != "" && e.git != nil {
		content, err := e.git.ShowFileAtRef(cf.Path, cp.VersionRef+"^")
		if err != nil {
			return "", fmt.Errorf("no stored snapshot and parent lookup failed: %w", err)
		}
		return content, nil
	}
	return "", fmt.Errorf("no stored snapshot and no version ref")
}

// writeFile routes restored content through an open editor buffer when
// the file is open, else straight to disk.
func (e *Engine) writeFile(path, content string) error {
	if e.buffers != nil && e.buffers.IsOpen(path) {
		return e.buffers.Replace(path, content)
	}

	full := filepath.Join(e.root, path)
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return err
	}
	return os.WriteFile(full, []byte(content), 0644)
}

func (e *Engine) finish(cp *checkpoint.Checkpoint, result *Result) {
	switch {
	case len(result.FilesRestored) > 0 && len(result.Errors) == 0:
		result.State = StateSucceeded
		result.Success = true
		result.Message = fmt.Sprintf("restored %d file(s) to %q", len(result.FilesRestored), cp.Name)
	case result.RefMoved != "" && len(result.Errors) == 0:
		result.State = StateSucceeded
		result.Success = true
		result.Message = fmt.Sprintf("moved version pointer to %q, working tree untouched", cp.Name)
	case len(result.FilesRestored) > 0:
		result.State = StatePartiallyFailed
		result.Message = fmt.Sprintf("restored %d file(s), %d failed", len(result.FilesRestored), len(result.FilesNotRestored))
	default:
		result.State = StateFailed
		if result.Message == "" {
			result.Message = "no files restored"
		}
	}

	e.logger.Info("rollback finished",
		"checkpoint", cp.ID, "strategy", string(result.Strategy),
		"state", string(result.State),
		"restored", len(result.FilesRestored), "failed", len(result.FilesNotRestored))

	if e.events != nil {
		e.events.EmitRollbackCompleted(eventhub.RollbackEvent{
			CheckpointID:  cp.ID,
			Success:       result.Success,
			FilesRestored: len(result.FilesRestored),
			FilesFailed:   len(result.FilesNotRestored),
		})
		e.events.EmitGraphChanged(eventhub.GraphChangedEvent{
			Workspace: e.root,
			Reason:    "rollback",
		})
	}
}

// RollbackFile restores exactly one file from a checkpoint using the
// same content-resolution order, independent of the rest of the
// checkpoint.
func (e *Engine) RollbackFile(checkpointID, path string) (*Result, error) {
	result := &Result{
		State:            StateExecuting,
		Strategy:         StrategyContentReplay,
		FilesRestored:    []string{},
		FilesNotRestored: []string{},
		Errors:           []string{},
	}

	cp, ok := e.store.GetCheckpoint(checkpointID)
	if !ok {
		result.State = StateFailed
		result.Message = fmt.Sprintf("checkpoint not found: %s", checkpointID)
		return result, nil
	}

	for _, cf := range cp.ChangedFiles {
		if cf.Path != path {
			continue
		}

		content, err := e.resolveContent(&cp, &cf)
		if err == nil {
			err = e.writeFile(path, content)
		}
		if err != nil {
			result.FilesNotRestored = append(result.FilesNotRestored, path)
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", path, err))
		} else {
			result.FilesRestored = append(result.FilesRestored, path)
		}
		e.finish(&cp, result)
		return result, nil
	}

	result.State = StateFailed
	result.Message = fmt.Sprintf("file %s is not part of checkpoint %s", path, checkpointID)
	return result, nil
}

// ReturnToLatest moves the workspace back to the most recent
// checkpoint that still has a resolvable version ref, undoing a
// destructive rollback.
func (e *Engine) ReturnToLatest() (*Result, error) {
	result := &Result{
		Strategy:         StrategyHardReset,
		State:            StateExecuting,
		FilesRestored:    []string{},
		FilesNotRestored: []string{},
		Errors:           []string{},
	}

	if e.git == nil {
		result.State = StateFailed
		result.Message = "no version control backend"
		return result, nil
	}

	var latest *checkpoint.Checkpoint
	for _, cp := range e.store.Checkpoints() {
		if cp.VersionRef == "" || !e.git.CommitExists(cp.VersionRef) {
			continue
		}
		if latest == nil || cp.Timestamp > latest.Timestamp {
			c := cp
			latest = &c
		}
	}
	if latest == nil {
		result.State = StateFailed
		result.Message = "no checkpoint with a resolvable version ref"
		return result, nil
	}

	e.executeReset(latest, true, result)
	e.finish(latest, result)
	return result, nil
}
