// internal/checkpoint/validate.go
package checkpoint

import "fmt"

// ValidateCheckpoint checks whether a checkpoint can still be rolled
// back to. A checkpoint is rollback-capable when its version ref
// resolves to an existing commit OR at least one changed file carries a
// previous-content snapshot. A file missing from the current working
// tree is recorded as an issue but never flips CanRollback: rollback
// depends on recoverability of content, not present-tense existence.
func (s *Store) ValidateCheckpoint(cp *Checkpoint) ValidationResult {
	result := ValidationResult{Issues: []string{}}

	refResolves := false
	if cp.VersionRef != "" {
		if s.git == nil {
			result.Issues = append(result.Issues,
				fmt.Sprintf("version ref %s cannot be resolved: no version control backend", short(cp.VersionRef)))
		} else if s.git.CommitExists(cp.VersionRef) {
			refResolves = true
		} else {
			result.Issues = append(result.Issues,
				fmt.Sprintf("version ref %s no longer exists", short(cp.VersionRef)))
		}
	}

	hasSnapshot := false
	for _, cf := range cp.ChangedFiles {
		if cf.PreviousContent != nil {
			hasSnapshot = true
		}
		if cf.ChangeType != ChangeDeleted && !s.fileExists(cf.Path) {
			result.Issues = append(result.Issues,
				fmt.Sprintf("file %s is missing from the working tree", cf.Path))
		}
	}

	result.CanRollback = refResolves || hasSnapshot
	if !result.CanRollback {
		result.Issues = append(result.Issues,
			"unrecoverable: no resolvable version ref and no content snapshots")
	}
	result.Valid = result.CanRollback

	return result
}

// Validate looks a checkpoint up by id and validates it.
func (s *Store) Validate(id string) (ValidationResult, bool) {
	cp, ok := s.GetCheckpoint(id)
	if !ok {
		return ValidationResult{}, false
	}
	return s.ValidateCheckpoint(&cp), true
}

// CleanupInvalidCheckpoints deletes every checkpoint failing
// validation, reporting how many went and why.
func (s *Store) CleanupInvalidCheckpoints() (CleanupResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := CleanupResult{Reasons: []string{}}

	// Validate against a snapshot: removal re-parents as it goes.
	candidates := append([]Checkpoint(nil), s.data.Checkpoints...)
	for i := range candidates {
		v := s.ValidateCheckpoint(&candidates[i])
		if v.Valid {
			continue
		}
		if removed := s.removeLocked(candidates[i].ID); removed != nil {
			result.Removed++
			result.Reasons = append(result.Reasons,
				fmt.Sprintf("%s (%s): %s", removed.Name, removed.ID, firstIssue(v.Issues)))
			s.emitDeleted(removed)
		}
	}

	if result.Removed == 0 {
		return result, nil
	}
	return result, s.save()
}

func firstIssue(issues []string) string {
	if len(issues) == 0 {
		return "invalid"
	}
	return issues[0]
}

func short(ref string) string {
	if len(ref) > 8 {
		return ref[:8]
	}
	return ref
}
