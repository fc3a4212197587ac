// internal/checkpoint/store.go
package checkpoint

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"guardian/internal/config"
	"guardian/internal/eventhub"
	"guardian/internal/git"
)

// Persister saves and loads the storage envelope.
type Persister interface {
	Load() (*StorageData, error)
	Save(*StorageData) error
}

// Events is the slice of the event hub the store emits through.
type Events interface {
	EmitCheckpointCreated(eventhub.CheckpointEvent)
	EmitCheckpointDeleted(eventhub.CheckpointEvent)
	EmitSessionChanged(eventhub.SessionChangedEvent)
}

// Store is the single source of truth for checkpoints and sessions.
// All mutation goes through it; one mutex keeps the single-mutator
// discipline even when callers arrive from multiple goroutines.
type Store struct {
	mu      sync.Mutex
	root    string
	data    *StorageData
	persist Persister
	git     git.Client // nil when version control is unavailable
	events  Events     // nil in tests that don't care
	logger  *slog.Logger
}

// NewStore loads the envelope and returns a ready store. A nil git
// client puts the store in content-snapshot-only mode.
func NewStore(root string, p Persister, gc git.Client, ev Events, logger *slog.Logger) (*Store, error) {
	data, err := p.Load()
	if err != nil {
		return nil, fmt.Errorf("load storage: %w", err)
	}
	if data.Settings.MaxCheckpoints == 0 {
		data.Settings = config.DefaultSettings()
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Store{
		root:    root,
		data:    data,
		persist: p,
		git:     gc,
		events:  ev,
		logger:  logger,
	}, nil
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

// Settings returns the current settings.
func (s *Store) Settings() config.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.Settings
}

// UpdateSettings replaces the settings and persists the envelope.
func (s *Store) UpdateSettings(settings config.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Settings = settings
	return s.save()
}

// Checkpoints returns a copy of all checkpoints.
func (s *Store) Checkpoints() []Checkpoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Checkpoint(nil), s.data.Checkpoints...)
}

// Sessions returns a copy of all sessions.
func (s *Store) Sessions() []CodingSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]CodingSession(nil), s.data.Sessions...)
}

// GetCheckpoint looks up one checkpoint by id.
func (s *Store) GetCheckpoint(id string) (Checkpoint, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cp := s.findCheckpoint(id); cp != nil {
		return *cp, true
	}
	return Checkpoint{}, false
}

// ActiveSession returns the active session, if any.
func (s *Store) ActiveSession() (CodingSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess := s.findSession(s.data.ActiveSessionID); sess != nil && sess.IsActive {
		return *sess, true
	}
	return CodingSession{}, false
}

func (s *Store) findCheckpoint(id string) *Checkpoint {
	for i := range s.data.Checkpoints {
		if s.data.Checkpoints[i].ID == id {
			return &s.data.Checkpoints[i]
		}
	}
	return nil
}

func (s *Store) findSession(id string) *CodingSession {
	for i := range s.data.Sessions {
		if s.data.Sessions[i].ID == id {
			return &s.data.Sessions[i]
		}
	}
	return nil
}

func (s *Store) save() error {
	if err := s.persist.Save(s.data); err != nil {
		return fmt.Errorf("persist storage: %w", err)
	}
	return nil
}

// CreateCheckpoint captures a snapshot of the current change batch.
// Version-control failures degrade to a checkpoint without a version
// ref; only persistence failures surface as errors.
func (s *Store) CreateCheckpoint(cpType CheckpointType, source ChangeSource, changedFiles []ChangedFile, opts *CreateOptions) (*Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createLocked(cpType, source, changedFiles, opts)
}

// QuickSave creates a manual checkpoint named "Quick Save N", where N
// counts quick saves already in the store.
func (s *Store) QuickSave() (*Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 1
	for i := range s.data.Checkpoints {
		if strings.HasPrefix(s.data.Checkpoints[i].Name, "Quick Save ") {
			n++
		}
	}
	return s.createLocked(TypeManual, SourceUser, nil, &CreateOptions{
		Name: fmt.Sprintf("Quick Save %d", n),
	})
}

func (s *Store) createLocked(cpType CheckpointType, source ChangeSource, changedFiles []ChangedFile, opts *CreateOptions) (*Checkpoint, error) {
	session := s.ensureActiveSession()

	cp := Checkpoint{
		ID:        uuid.New().String(),
		Timestamp: nowMillis(),
		Type:      cpType,
		Source:    source,
		SessionID: session.ID,
		Tags:      []string{},
	}
	if opts != nil {
		cp.Name = opts.Name
		cp.Description = opts.Description
		cp.Tags = append(cp.Tags, opts.Tags...)
	}
	if cp.Name == "" {
		cp.Name = DisplayName(cpType, source, cp.Timestamp)
	}
	if n := len(session.CheckpointIDs); n > 0 {
		cp.ParentID = session.CheckpointIDs[n-1]
	}

	cp.ChangedFiles = changedFiles
	if s.data.Settings.UseGit && s.git != nil {
		s.commitLocked(&cp)
	}
	if cp.ChangedFiles == nil {
		cp.ChangedFiles = []ChangedFile{}
	}

	s.data.Checkpoints = append(s.data.Checkpoints, cp)

	session = s.findSession(session.ID)
	session.CheckpointIDs = append(session.CheckpointIDs, cp.ID)
	session.TotalFilesChanged += len(cp.ChangedFiles)
	if source.IsAITool() {
		session.AIToolsUsed = appendUnique(session.AIToolsUsed, string(source))
	}

	s.enforceLimitLocked()

	if err := s.save(); err != nil {
		return nil, err
	}

	s.logger.Info("checkpoint created",
		"id", cp.ID, "type", string(cpType), "source", string(source),
		"files", len(cp.ChangedFiles), "versionRef", cp.VersionRef)

	if s.events != nil {
		s.events.EmitCheckpointCreated(eventhub.CheckpointEvent{
			CheckpointID: cp.ID,
			SessionID:    cp.SessionID,
			Name:         cp.Name,
			Type:         string(cp.Type),
			Source:       string(cp.Source),
			VersionRef:   cp.VersionRef,
			FileCount:    len(cp.ChangedFiles),
		})
	}

	created := s.findCheckpoint(cp.ID)
	out := *created
	return &out, nil
}

// commitLocked runs the version-control half of checkpoint creation:
// reconcile the changed-file list against the backend, stage and
// commit, record the resulting ref. Every step degrades on error.
func (s *Store) commitLocked(cp *Checkpoint) {
	status, err := s.git.Status()
	if err != nil {
		s.logger.Warn("git status failed, keeping caller-supplied changes", "error", err)
	} else {
		cp.BranchName = status.Branch
		cp.ChangedFiles = reconcileChangedFiles(cp.ChangedFiles, changesFromStatus(status))
	}

	ref, err := s.git.Commit(nil, git.FormatGuardianMessage(cp.Name))
	if err != nil {
		s.logger.Warn("git commit failed, checkpoint degrades to snapshots only", "error", err)
		return
	}
	if ref == "" {
		return // nothing to commit
	}

	cp.VersionRef = ref
	if stats, err := s.git.ChangedFilesIn(ref); err == nil && len(stats) > 0 {
		cp.ChangedFiles = reconcileChangedFiles(cp.ChangedFiles, changesFromStats(stats))
	}
}

// DeleteCheckpoint removes a checkpoint, re-linking any children to the
// removed node's own parent so the chain stays contiguous. Returns
// false when the id is unknown.
func (s *Store) DeleteCheckpoint(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := s.removeLocked(id)
	if removed == nil {
		return false, nil
	}

	if err := s.save(); err != nil {
		return true, err
	}

	s.emitDeleted(removed)
	return true, nil
}

// removeLocked unlinks a checkpoint without persisting or emitting.
func (s *Store) removeLocked(id string) *Checkpoint {
	idx := -1
	for i := range s.data.Checkpoints {
		if s.data.Checkpoints[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}

	removed := s.data.Checkpoints[idx]

	// Chain compaction: children adopt the removed node's parent.
	for i := range s.data.Checkpoints {
		if s.data.Checkpoints[i].ParentID == id {
			s.data.Checkpoints[i].ParentID = removed.ParentID
		}
	}

	if session := s.findSession(removed.SessionID); session != nil {
		session.CheckpointIDs = removeString(session.CheckpointIDs, id)
	}

	s.data.Checkpoints = append(s.data.Checkpoints[:idx], s.data.Checkpoints[idx+1:]...)
	return &removed
}

func (s *Store) emitDeleted(cp *Checkpoint) {
	s.logger.Info("checkpoint deleted", "id", cp.ID, "name", cp.Name)
	if s.events != nil {
		s.events.EmitCheckpointDeleted(eventhub.CheckpointEvent{
			CheckpointID: cp.ID,
			SessionID:    cp.SessionID,
			Name:         cp.Name,
			Type:         string(cp.Type),
			Source:       string(cp.Source),
			VersionRef:   cp.VersionRef,
			FileCount:    len(cp.ChangedFiles),
		})
	}
}

// EnforceCheckpointLimit applies the retention policy and persists.
func (s *Store) EnforceCheckpointLimit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if evicted := s.enforceLimitLocked(); evicted == 0 {
		return nil
	}
	return s.save()
}

// enforceLimitLocked evicts the oldest non-starred checkpoints until
// the count is at or under the configured maximum. Starred checkpoints
// are exempt regardless of age.
func (s *Store) enforceLimitLocked() int {
	max := s.data.Settings.MaxCheckpoints
	if max <= 0 {
		return 0
	}

	evicted := 0
	for len(s.data.Checkpoints) > max {
		oldest := -1
		for i := range s.data.Checkpoints {
			if s.data.Checkpoints[i].Starred {
				continue
			}
			if oldest < 0 || s.data.Checkpoints[i].Timestamp < s.data.Checkpoints[oldest].Timestamp {
				oldest = i
			}
		}
		if oldest < 0 {
			break // everything left is starred
		}

		removed := s.removeLocked(s.data.Checkpoints[oldest].ID)
		if removed != nil {
			s.emitDeleted(removed)
			evicted++
		}
	}

	return evicted
}

// SetStarred pins or unpins a checkpoint.
func (s *Store) SetStarred(id string, starred bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := s.findCheckpoint(id)
	if cp == nil {
		return fmt.Errorf("checkpoint not found: %s", id)
	}
	cp.Starred = starred
	return s.save()
}

// Rename updates a checkpoint's name and description.
func (s *Store) Rename(id, name, description string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := s.findCheckpoint(id)
	if cp == nil {
		return fmt.Errorf("checkpoint not found: %s", id)
	}
	if name != "" {
		cp.Name = name
	}
	cp.Description = description
	return s.save()
}

// fileExists checks the current working tree for a checkpoint path.
func (s *Store) fileExists(path string) bool {
	_, err := os.Stat(filepath.Join(s.root, path))
	return err == nil
}

func appendUnique(list []string, value string) []string {
	for _, v := range list {
		if v == value {
			return list
		}
	}
	return append(list, value)
}

func removeString(list []string, value string) []string {
	out := list[:0]
	for _, v := range list {
		if v != value {
			out = append(out, v)
		}
	}
	return out
}
