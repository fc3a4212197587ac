// internal/checkpoint/reconcile.go
package checkpoint

import "guardian/internal/git"

// reconcileChangedFiles merges a caller-supplied change list with the
// backend's. The backend is authoritative for paths and change types;
// the caller's line counts and content snapshots are preserved on
// exact path match. Caller-only paths are kept verbatim, backend-only
// paths are added as-is.
func reconcileChangedFiles(caller, backend []ChangedFile) []ChangedFile {
	if len(backend) == 0 {
		return caller
	}

	callerByPath := make(map[string]ChangedFile, len(caller))
	for _, cf := range caller {
		callerByPath[cf.Path] = cf
	}

	merged := make([]ChangedFile, 0, len(backend))
	seen := make(map[string]bool, len(backend))

	for _, bf := range backend {
		seen[bf.Path] = true
		if cf, ok := callerByPath[bf.Path]; ok {
			cf.ChangeType = bf.ChangeType
			if cf.LinesAdded == 0 && cf.LinesRemoved == 0 {
				cf.LinesAdded = bf.LinesAdded
				cf.LinesRemoved = bf.LinesRemoved
			}
			merged = append(merged, cf)
			continue
		}
		merged = append(merged, bf)
	}

	for _, cf := range caller {
		if !seen[cf.Path] {
			merged = append(merged, cf)
		}
	}

	return merged
}

// changesFromStatus converts a working-tree status into a change list.
func changesFromStatus(status *git.RepoStatus) []ChangedFile {
	var out []ChangedFile
	add := func(files []git.FileStatus, ct FileChangeType) {
		for _, f := range files {
			out = append(out, ChangedFile{Path: f.Path, ChangeType: ct})
		}
	}

	add(status.Modified, ChangeModified)
	add(status.Untracked, ChangeAdded)
	add(status.Deleted, ChangeDeleted)

	// Staged entries not already covered by the worktree sets.
	seen := make(map[string]bool, len(out))
	for _, cf := range out {
		seen[cf.Path] = true
	}
	for _, f := range status.Staged {
		if seen[f.Path] {
			continue
		}
		out = append(out, ChangedFile{Path: f.Path, ChangeType: mapStatusString(f.Status)})
	}

	return out
}

// changesFromStats converts a commit's file statistics into a change list.
func changesFromStats(stats []git.FileStat) []ChangedFile {
	out := make([]ChangedFile, 0, len(stats))
	for _, st := range stats {
		out = append(out, ChangedFile{
			Path:         st.Path,
			ChangeType:   mapStatusString(st.ChangeType),
			LinesAdded:   st.Added,
			LinesRemoved: st.Deleted,
		})
	}
	return out
}

func mapStatusString(status string) FileChangeType {
	switch status {
	case "added", "untracked":
		return ChangeAdded
	case "deleted":
		return ChangeDeleted
	case "renamed":
		return ChangeRenamed
	default:
		return ChangeModified
	}
}
