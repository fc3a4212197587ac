// internal/checkpoint/models.go
package checkpoint

import "guardian/internal/config"

// CheckpointType categorizes what triggered a checkpoint, not what it
// contains.
type CheckpointType string

const (
	TypeAuto         CheckpointType = "auto"
	TypeManual       CheckpointType = "manual"
	TypeAIGenerated  CheckpointType = "ai-generated"
	TypeSessionStart CheckpointType = "session-start"
	TypeAutoSave     CheckpointType = "auto-save"
)

// ChangeSource identifies the actor behind a batch of edits.
type ChangeSource string

const (
	SourceUser        ChangeSource = "user"
	SourceClaude      ChangeSource = "claude"
	SourceCursor      ChangeSource = "cursor"
	SourceCopilot     ChangeSource = "copilot"
	SourceOtherAI     ChangeSource = "other-ai"
	SourceAutoSave    ChangeSource = "auto-save"
	SourceFileWatcher ChangeSource = "file-watcher"
	SourceUnknown     ChangeSource = "unknown"
)

// IsAITool reports whether the source counts toward a session's
// aiToolsUsed accounting.
func (s ChangeSource) IsAITool() bool {
	switch s {
	case SourceUser, SourceAutoSave, SourceFileWatcher, SourceUnknown:
		return false
	default:
		return true
	}
}

// FileChangeType describes how a single file changed.
type FileChangeType string

const (
	ChangeAdded    FileChangeType = "added"
	ChangeModified FileChangeType = "modified"
	ChangeDeleted  FileChangeType = "deleted"
	ChangeRenamed  FileChangeType = "renamed"
)

// ChangedFile records one file's change within a checkpoint. Content
// snapshots are the rollback fallback when the checkpoint has no
// version ref.
type ChangedFile struct {
	Path            string         `json:"path"`
	ChangeType      FileChangeType `json:"changeType"`
	LinesAdded      int            `json:"linesAdded"`
	LinesRemoved    int            `json:"linesRemoved"`
	PreviousContent *string        `json:"previousContent,omitempty"`
	CurrentContent  *string        `json:"currentContent,omitempty"`
	// Pool hashes replace the inline contents on disk; storage fills the
	// inline fields back in on load.
	PreviousHash string `json:"previousHash,omitempty"`
	CurrentHash  string `json:"currentHash,omitempty"`
}

// Checkpoint represents a named, timestamped snapshot of workspace
// state, optionally backed by a git commit.
type Checkpoint struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Description  string         `json:"description,omitempty"`
	Timestamp    int64          `json:"timestamp"` // epoch milliseconds
	VersionRef   string         `json:"versionRef,omitempty"`
	Type         CheckpointType `json:"type"`
	Source       ChangeSource   `json:"source"`
	ChangedFiles []ChangedFile  `json:"changedFiles"`
	SessionID    string         `json:"sessionId"`
	ParentID     string         `json:"parentId,omitempty"`
	Tags         []string       `json:"tags"`
	Starred      bool           `json:"starred"`
	BranchName   string         `json:"branchName,omitempty"`
}

// CodingSession groups an ordered sequence of checkpoints.
type CodingSession struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	StartTime         int64    `json:"startTime"`
	EndTime           int64    `json:"endTime,omitempty"`
	IsActive          bool     `json:"isActive"`
	BranchName        string   `json:"branchName,omitempty"`
	CheckpointIDs     []string `json:"checkpointIds"`
	TotalFilesChanged int      `json:"totalFilesChanged"`
	AIToolsUsed       []string `json:"aiToolsUsed"`
}

// StorageVersion is the current envelope schema version.
const StorageVersion = 1

// StorageData is the unit of persistence: one envelope per workspace.
type StorageData struct {
	Version         int             `json:"version"`
	Checkpoints     []Checkpoint    `json:"checkpoints"`
	Sessions        []CodingSession `json:"sessions"`
	ActiveSessionID string          `json:"activeSessionId,omitempty"`
	Settings        config.Settings `json:"settings"`
}

// ValidationResult reports the outcome of validating one checkpoint.
type ValidationResult struct {
	Valid       bool     `json:"valid"`
	Issues      []string `json:"issues"`
	CanRollback bool     `json:"canRollback"`
}

// CreateOptions carries optional overrides for checkpoint creation.
type CreateOptions struct {
	Name        string
	Description string
	Tags        []string
}

// CleanupResult reports what cleanupInvalidCheckpoints removed.
type CleanupResult struct {
	Removed int      `json:"removed"`
	Reasons []string `json:"reasons"`
}

// SyncResult reports what a git reconciliation pass changed.
type SyncResult struct {
	Added   int `json:"added"`
	Removed int `json:"removed"`
}
