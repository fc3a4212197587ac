// internal/checkpoint/sync.go
package checkpoint

import (
	"github.com/google/uuid"

	"guardian/internal/git"
)

// SyncWithGit reconciles the store against the backend's guardian
// history: commits tagged with the guardian prefix but unknown to the
// store become synthetic checkpoints, and stored checkpoints whose
// version ref no longer resolves are dropped. Best effort both ways;
// inferred type/source on imported checkpoints are cosmetic only.
func (s *Store) SyncWithGit() (SyncResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result SyncResult
	if s.git == nil {
		return result, nil
	}

	log, err := s.git.Log(s.data.Settings.MaxGraphCommits)
	if err != nil {
		return result, err
	}

	known := make(map[string]bool)
	for i := range s.data.Checkpoints {
		if ref := s.data.Checkpoints[i].VersionRef; ref != "" {
			known[ref] = true
		}
	}

	// Walk oldest-first so imported checkpoints keep creation order.
	for i := len(log) - 1; i >= 0; i-- {
		commit := log[i]
		if !git.IsGuardianMessage(commit.Message) || known[commit.Hash] {
			continue
		}

		name := git.GuardianName(commit.Message)
		cpType, source := InferFromMessage(name)
		session := s.ensureActiveSession()

		cp := Checkpoint{
			ID:          uuid.New().String(),
			Name:        name,
			Description: "Imported from git history",
			Timestamp:   commit.Date,
			VersionRef:  commit.Hash,
			Type:        cpType,
			Source:      source,
			SessionID:   session.ID,
			Tags:        []string{},
		}
		if stats, err := s.git.ChangedFilesIn(commit.Hash); err == nil {
			cp.ChangedFiles = changesFromStats(stats)
		}
		if cp.ChangedFiles == nil {
			cp.ChangedFiles = []ChangedFile{}
		}
		if n := len(session.CheckpointIDs); n > 0 {
			cp.ParentID = session.CheckpointIDs[n-1]
		}

		s.data.Checkpoints = append(s.data.Checkpoints, cp)
		session.CheckpointIDs = append(session.CheckpointIDs, cp.ID)
		result.Added++
	}

	// CommitExists rather than log membership: the log fetch is a
	// bounded window and must not evict older history.
	stale := make([]string, 0)
	for i := range s.data.Checkpoints {
		cp := &s.data.Checkpoints[i]
		if cp.VersionRef != "" && !s.git.CommitExists(cp.VersionRef) {
			stale = append(stale, cp.ID)
		}
	}
	for _, id := range stale {
		if removed := s.removeLocked(id); removed != nil {
			s.emitDeleted(removed)
			result.Removed++
		}
	}

	if result.Added == 0 && result.Removed == 0 {
		return result, nil
	}

	s.logger.Info("git sync complete", "added", result.Added, "removed", result.Removed)
	return result, s.save()
}
