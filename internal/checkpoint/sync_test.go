package checkpoint

import (
	"testing"

	"guardian/internal/git"
)

func TestSyncImportsForeignGuardianCommits(t *testing.T) {
	fg := newFakeGit()
	// History written by another guardian instance: newest first.
	fg.commits = []git.CommitInfo{
		{Hash: "bbb", Parents: []string{"aaa"}, Date: 2000, Message: git.FormatGuardianMessage("second")},
		{Hash: "aaa", Date: 1000, Message: git.FormatGuardianMessage("first")},
	}
	store, _ := newTestStore(t, fg)

	result, err := store.SyncWithGit()
	if err != nil {
		t.Fatalf("SyncWithGit() error = %v", err)
	}
	if result.Added != 2 {
		t.Fatalf("Added = %d, want 2", result.Added)
	}

	checkpoints := store.Checkpoints()
	if len(checkpoints) != 2 {
		t.Fatalf("got %d checkpoints, want 2", len(checkpoints))
	}

	// Imported oldest-first so creation order matches history order.
	if checkpoints[0].Name != "first" || checkpoints[1].Name != "second" {
		t.Errorf("order = [%s, %s], want [first, second]", checkpoints[0].Name, checkpoints[1].Name)
	}
	if checkpoints[1].ParentID != checkpoints[0].ID {
		t.Error("imported checkpoints should chain by parent")
	}
	if checkpoints[0].Description != "Imported from git history" {
		t.Errorf("Description = %q", checkpoints[0].Description)
	}
}

func TestSyncIgnoresNonGuardianCommits(t *testing.T) {
	fg := newFakeGit()
	fg.commits = []git.CommitInfo{
		{Hash: "ccc", Date: 3000, Message: "regular work commit"},
	}
	store, _ := newTestStore(t, fg)

	result, err := store.SyncWithGit()
	if err != nil {
		t.Fatalf("SyncWithGit() error = %v", err)
	}
	if result.Added != 0 {
		t.Errorf("Added = %d, want 0", result.Added)
	}
}

func TestSyncIsIdempotent(t *testing.T) {
	fg := newFakeGit()
	fg.commits = []git.CommitInfo{
		{Hash: "aaa", Date: 1000, Message: git.FormatGuardianMessage("first")},
	}
	store, _ := newTestStore(t, fg)

	if _, err := store.SyncWithGit(); err != nil {
		t.Fatalf("SyncWithGit() error = %v", err)
	}
	result, err := store.SyncWithGit()
	if err != nil {
		t.Fatalf("SyncWithGit() error = %v", err)
	}
	if result.Added != 0 || result.Removed != 0 {
		t.Errorf("second sync = %+v, want no changes", result)
	}
}

func TestSyncRemovesStaleCheckpoints(t *testing.T) {
	fg := newFakeGit()
	fg.dirty = true
	store, _ := newTestStore(t, fg)

	cp, _ := store.CreateCheckpoint(TypeManual, SourceUser, nil, nil)
	fg.dropCommit(cp.VersionRef)

	result, err := store.SyncWithGit()
	if err != nil {
		t.Fatalf("SyncWithGit() error = %v", err)
	}
	if result.Removed != 1 {
		t.Fatalf("Removed = %d, want 1", result.Removed)
	}
	if _, ok := store.GetCheckpoint(cp.ID); ok {
		t.Error("stale checkpoint survived sync")
	}
}

func TestSyncKeepsSnapshotOnlyCheckpoints(t *testing.T) {
	store, _ := newTestStore(t, nil)

	cp, _ := store.CreateCheckpoint(TypeManual, SourceUser, nil, nil)

	result, err := store.SyncWithGit()
	if err != nil {
		t.Fatalf("SyncWithGit() error = %v", err)
	}
	if result.Removed != 0 {
		t.Errorf("Removed = %d, want 0 without a backend", result.Removed)
	}
	if _, ok := store.GetCheckpoint(cp.ID); !ok {
		t.Error("snapshot-only checkpoint should never be swept by sync")
	}
}
