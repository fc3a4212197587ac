// internal/checkpoint/session.go
package checkpoint

import (
	"fmt"

	"github.com/google/uuid"

	"guardian/internal/eventhub"
)

// StartSession ends any active session, creates a new one, optionally
// creates a dedicated branch, and records the transition as a
// session-start checkpoint.
func (s *Store) StartSession(name string) (*CodingSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.endActiveLocked()

	if name == "" {
		name = fmt.Sprintf("Session %d", len(s.data.Sessions)+1)
	}

	session := CodingSession{
		ID:            uuid.New().String(),
		Name:          name,
		StartTime:     nowMillis(),
		IsActive:      true,
		CheckpointIDs: []string{},
		AIToolsUsed:   []string{},
	}

	if s.data.Settings.CreateSessionBranches && s.git != nil {
		branch := "guardian/session-" + session.ID[:8]
		if err := s.git.CreateBranch(branch); err != nil {
			s.logger.Warn("session branch creation failed", "branch", branch, "error", err)
		} else {
			session.BranchName = branch
		}
	}

	s.data.Sessions = append(s.data.Sessions, session)
	s.data.ActiveSessionID = session.ID

	if s.events != nil {
		s.events.EmitSessionChanged(eventhub.SessionChangedEvent{
			SessionID: session.ID,
			Name:      session.Name,
			State:     "started",
			Branch:    session.BranchName,
		})
	}

	if _, err := s.createLocked(TypeSessionStart, SourceUser, nil, &CreateOptions{
		Name: "Session start: " + name,
	}); err != nil {
		return nil, err
	}

	started := *s.findSession(session.ID)
	return &started, nil
}

// EndSession stamps the active session's end time and clears the
// active marker.
func (s *Store) EndSession() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.endActiveLocked()
	return s.save()
}

func (s *Store) endActiveLocked() {
	session := s.findSession(s.data.ActiveSessionID)
	s.data.ActiveSessionID = ""
	if session == nil || !session.IsActive {
		return
	}

	session.EndTime = nowMillis()
	session.IsActive = false

	s.logger.Info("session ended", "id", session.ID, "name", session.Name)
	if s.events != nil {
		s.events.EmitSessionChanged(eventhub.SessionChangedEvent{
			SessionID: session.ID,
			Name:      session.Name,
			State:     "ended",
		})
	}
}

// ensureActiveSession lazily starts a session named "default" so a
// checkpoint always belongs to exactly one session. The lazy session
// gets no session-start checkpoint; the triggering checkpoint is its
// first entry.
func (s *Store) ensureActiveSession() *CodingSession {
	if session := s.findSession(s.data.ActiveSessionID); session != nil && session.IsActive {
		return session
	}

	session := CodingSession{
		ID:            uuid.New().String(),
		Name:          "default",
		StartTime:     nowMillis(),
		IsActive:      true,
		CheckpointIDs: []string{},
		AIToolsUsed:   []string{},
	}
	s.data.Sessions = append(s.data.Sessions, session)
	s.data.ActiveSessionID = session.ID

	if s.events != nil {
		s.events.EmitSessionChanged(eventhub.SessionChangedEvent{
			SessionID: session.ID,
			Name:      session.Name,
			State:     "started",
		})
	}

	return s.findSession(session.ID)
}
