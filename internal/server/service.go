// internal/server/service.go
package server

import (
	"fmt"
	"time"

	"guardian/internal/checkpoint"
	"guardian/internal/database"
	"guardian/internal/graph"
	"guardian/internal/rollback"
	"guardian/internal/stats"
)

// Rescheduler is the slice of the auto-save scheduler the service
// touches when the interval setting changes.
type Rescheduler interface {
	Reset(interval time.Duration)
}

// Service is the RPC surface exposed to editor clients. Every exported
// method is callable by name over the socket.
type Service struct {
	store     *checkpoint.Store
	assembler *graph.Assembler
	rollback  *rollback.Engine
	buffers   *BufferRegistry
	audit     *database.Database // nil when audit storage is disabled
	scheduler Rescheduler        // nil when auto-save is off
}

func NewService(store *checkpoint.Store, assembler *graph.Assembler, engine *rollback.Engine, buffers *BufferRegistry, audit *database.Database, sched Rescheduler) *Service {
	return &Service{
		store:     store,
		assembler: assembler,
		rollback:  engine,
		buffers:   buffers,
		audit:     audit,
		scheduler: sched,
	}
}

// --- graph ---

func (s *Service) GetGraphData(mode string, maxCount int) (*graph.GraphData, error) {
	m := graph.ModeGuardian
	if mode == string(graph.ModeFull) {
		m = graph.ModeFull
	}
	return s.assembler.GetGraphData(m, maxCount)
}

func (s *Service) GetCommitDetail(hash string) (*graph.CommitDetail, error) {
	return s.assembler.GetCommitDetail(hash)
}

// --- checkpoints ---

func (s *Service) ListCheckpoints() []checkpoint.Checkpoint {
	return s.store.Checkpoints()
}

func (s *Service) GetCheckpoint(id string) (*checkpoint.Checkpoint, error) {
	cp, ok := s.store.GetCheckpoint(id)
	if !ok {
		return nil, fmt.Errorf("checkpoint not found: %s", id)
	}
	return &cp, nil
}

func (s *Service) CreateCheckpoint(name, description string) (*checkpoint.Checkpoint, error) {
	return s.store.CreateCheckpoint(checkpoint.TypeManual, checkpoint.SourceUser, nil, &checkpoint.CreateOptions{
		Name:        name,
		Description: description,
	})
}

// QuickSave is CreateCheckpoint without naming ceremony.
func (s *Service) QuickSave() (*checkpoint.Checkpoint, error) {
	return s.store.QuickSave()
}

func (s *Service) DeleteCheckpoint(id string) (bool, error) {
	return s.store.DeleteCheckpoint(id)
}

func (s *Service) SetStarred(id string, starred bool) error {
	return s.store.SetStarred(id, starred)
}

func (s *Service) RenameCheckpoint(id, name, description string) error {
	return s.store.Rename(id, name, description)
}

func (s *Service) ValidateCheckpoint(id string) (checkpoint.ValidationResult, error) {
	result, ok := s.store.Validate(id)
	if !ok {
		return checkpoint.ValidationResult{}, fmt.Errorf("checkpoint not found: %s", id)
	}
	return result, nil
}

func (s *Service) CleanupInvalidCheckpoints() (checkpoint.CleanupResult, error) {
	return s.store.CleanupInvalidCheckpoints()
}

func (s *Service) SyncWithGit() (checkpoint.SyncResult, error) {
	return s.store.SyncWithGit()
}

// --- sessions ---

func (s *Service) ListSessions() []checkpoint.CodingSession {
	return s.store.Sessions()
}

func (s *Service) GetActiveSession() (*checkpoint.CodingSession, error) {
	session, ok := s.store.ActiveSession()
	if !ok {
		return nil, nil
	}
	return &session, nil
}

func (s *Service) StartSession(name string) (*checkpoint.CodingSession, error) {
	return s.store.StartSession(name)
}

func (s *Service) EndSession() error {
	return s.store.EndSession()
}

// --- rollback ---

func (s *Service) Rollback(checkpointID, strategy string, skipBackup bool) (*rollback.Result, error) {
	return s.rollback.Rollback(checkpointID, rollback.Options{
		Strategy:   rollback.Strategy(strategy),
		SkipBackup: skipBackup,
	})
}

func (s *Service) RollbackFile(checkpointID, path string) (*rollback.Result, error) {
	return s.rollback.RollbackFile(checkpointID, path)
}

func (s *Service) ReturnToLatest() (*rollback.Result, error) {
	return s.rollback.ReturnToLatest()
}

// --- editor state ---

// ReportOpenBuffers replaces the set of files the editor has open.
// Params arrive JSON-decoded, so the paths come in as []interface{}.
func (s *Service) ReportOpenBuffers(paths []interface{}) error {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		str, ok := p.(string)
		if !ok {
			return fmt.Errorf("open buffer path must be a string, got %T", p)
		}
		out = append(out, str)
	}
	s.buffers.SetOpen(out)
	return nil
}

// ReportActiveTools replaces the list of AI tools the editor reports
// as running. Used as a classification signal for watched changes.
func (s *Service) ReportActiveTools(tools []interface{}) error {
	out := make([]string, 0, len(tools))
	for _, t := range tools {
		str, ok := t.(string)
		if !ok {
			return fmt.Errorf("tool name must be a string, got %T", t)
		}
		out = append(out, str)
	}
	s.buffers.SetActiveTools(out)
	return nil
}

// --- settings ---

func (s *Service) GetSettings() interface{} {
	return s.store.Settings()
}

func (s *Service) SetAutoSave(enabled bool, intervalMinutes int) error {
	settings := s.store.Settings()
	settings.AutoSaveEnabled = enabled
	if intervalMinutes > 0 {
		settings.AutoSaveIntervalMinutes = intervalMinutes
	}
	if err := s.store.UpdateSettings(settings); err != nil {
		return err
	}
	if s.scheduler != nil && settings.AutoSaveEnabled {
		s.scheduler.Reset(time.Duration(settings.AutoSaveIntervalMinutes) * time.Minute)
	}
	return nil
}

func (s *Service) SetMaxCheckpoints(max int) error {
	if max < 1 {
		return fmt.Errorf("max checkpoints must be at least 1, got %d", max)
	}
	settings := s.store.Settings()
	settings.MaxCheckpoints = max
	if err := s.store.UpdateSettings(settings); err != nil {
		return err
	}
	return s.store.EnforceCheckpointLimit()
}

func (s *Service) SetAutoCheckpointOnAIChange(enabled bool) error {
	settings := s.store.Settings()
	settings.AutoCheckpointOnAIChange = enabled
	return s.store.UpdateSettings(settings)
}

// --- stats ---

func (s *Service) GetStats() (*stats.OverallStats, error) {
	var audit stats.AuditSource
	if s.audit != nil {
		audit = s.audit
	}
	return stats.Collect(s.store, audit)
}

func (s *Service) RecentFileEvents(limit int) ([]database.FileEvent, error) {
	if s.audit == nil {
		return nil, nil
	}
	return s.audit.RecentFileEvents(limit)
}
