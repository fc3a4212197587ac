package checkpoint

import (
	"strings"
	"testing"
)

func TestCreateCheckpoint(t *testing.T) {
	fg := newFakeGit()
	fg.dirty = true
	store, p := newTestStore(t, fg)

	cp, err := store.CreateCheckpoint(TypeManual, SourceUser, nil, &CreateOptions{Name: "before refactor"})
	if err != nil {
		t.Fatalf("CreateCheckpoint() error = %v", err)
	}

	if cp.Name != "before refactor" {
		t.Errorf("Name = %q, want %q", cp.Name, "before refactor")
	}
	if cp.VersionRef == "" {
		t.Error("expected a version ref from the git commit")
	}
	if cp.SessionID == "" {
		t.Error("checkpoint should belong to a session")
	}
	if p.saves == 0 {
		t.Error("creation should persist the envelope")
	}

	if len(fg.commits) != 1 {
		t.Fatalf("expected 1 commit, got %d", len(fg.commits))
	}
	if !strings.HasPrefix(fg.commits[0].Message, "[guardian] ") {
		t.Errorf("commit message %q missing guardian prefix", fg.commits[0].Message)
	}
}

func TestCreateCheckpointDefaultName(t *testing.T) {
	store, _ := newTestStore(t, nil)

	cp, err := store.CreateCheckpoint(TypeAutoSave, SourceAutoSave, nil, nil)
	if err != nil {
		t.Fatalf("CreateCheckpoint() error = %v", err)
	}
	if cp.Name == "" {
		t.Fatal("expected a generated display name")
	}
	if !strings.HasPrefix(cp.Name, "Auto-save") {
		t.Errorf("Name = %q, want Auto-save prefix", cp.Name)
	}
}

func TestCreateCheckpointCleanTree(t *testing.T) {
	fg := newFakeGit() // dirty = false: nothing to commit
	store, _ := newTestStore(t, fg)

	cp, err := store.CreateCheckpoint(TypeManual, SourceUser, nil, nil)
	if err != nil {
		t.Fatalf("CreateCheckpoint() error = %v", err)
	}
	if cp.VersionRef != "" {
		t.Errorf("VersionRef = %q, want empty for a clean tree", cp.VersionRef)
	}
}

func TestParentChain(t *testing.T) {
	store, _ := newTestStore(t, nil)

	first, _ := store.CreateCheckpoint(TypeManual, SourceUser, nil, nil)
	second, _ := store.CreateCheckpoint(TypeManual, SourceUser, nil, nil)
	third, _ := store.CreateCheckpoint(TypeManual, SourceUser, nil, nil)

	if first.ParentID != "" {
		t.Errorf("first.ParentID = %q, want empty", first.ParentID)
	}
	if second.ParentID != first.ID {
		t.Errorf("second.ParentID = %q, want %q", second.ParentID, first.ID)
	}
	if third.ParentID != second.ID {
		t.Errorf("third.ParentID = %q, want %q", third.ParentID, second.ID)
	}
}

func TestDeleteReparentsChildren(t *testing.T) {
	store, _ := newTestStore(t, nil)

	first, _ := store.CreateCheckpoint(TypeManual, SourceUser, nil, nil)
	second, _ := store.CreateCheckpoint(TypeManual, SourceUser, nil, nil)
	third, _ := store.CreateCheckpoint(TypeManual, SourceUser, nil, nil)

	removed, err := store.DeleteCheckpoint(second.ID)
	if err != nil {
		t.Fatalf("DeleteCheckpoint() error = %v", err)
	}
	if !removed {
		t.Fatal("DeleteCheckpoint() = false, want true")
	}

	got, ok := store.GetCheckpoint(third.ID)
	if !ok {
		t.Fatal("third checkpoint disappeared")
	}
	if got.ParentID != first.ID {
		t.Errorf("third.ParentID = %q, want re-linked to %q", got.ParentID, first.ID)
	}
}

func TestDeleteUnknownID(t *testing.T) {
	store, _ := newTestStore(t, nil)

	removed, err := store.DeleteCheckpoint("nope")
	if err != nil {
		t.Fatalf("DeleteCheckpoint() error = %v", err)
	}
	if removed {
		t.Error("DeleteCheckpoint() = true for unknown id")
	}
}

func TestRetentionEvictsOldestUnstarred(t *testing.T) {
	store, _ := newTestStore(t, nil)

	settings := store.Settings()
	settings.MaxCheckpoints = 3
	if err := store.UpdateSettings(settings); err != nil {
		t.Fatalf("UpdateSettings() error = %v", err)
	}

	first, _ := store.CreateCheckpoint(TypeManual, SourceUser, nil, &CreateOptions{Name: "one"})
	if err := store.SetStarred(first.ID, true); err != nil {
		t.Fatalf("SetStarred() error = %v", err)
	}
	second, _ := store.CreateCheckpoint(TypeManual, SourceUser, nil, &CreateOptions{Name: "two"})
	store.CreateCheckpoint(TypeManual, SourceUser, nil, &CreateOptions{Name: "three"})
	store.CreateCheckpoint(TypeManual, SourceUser, nil, &CreateOptions{Name: "four"})

	if len(store.Checkpoints()) != 3 {
		t.Fatalf("got %d checkpoints, want 3", len(store.Checkpoints()))
	}

	if _, ok := store.GetCheckpoint(first.ID); !ok {
		t.Error("starred checkpoint was evicted")
	}
	if _, ok := store.GetCheckpoint(second.ID); ok {
		t.Error("oldest unstarred checkpoint should have been evicted")
	}
}

func TestRetentionAtConfiguredScale(t *testing.T) {
	store, _ := newTestStore(t, nil)

	settings := store.Settings()
	settings.MaxCheckpoints = 100
	if err := store.UpdateSettings(settings); err != nil {
		t.Fatalf("UpdateSettings() error = %v", err)
	}

	var starred, newest *Checkpoint
	for i := 0; i < 150; i++ {
		cp, err := store.CreateCheckpoint(TypeManual, SourceUser, nil, nil)
		if err != nil {
			t.Fatalf("CreateCheckpoint() %d error = %v", i, err)
		}
		if i == 0 {
			starred = cp
			if err := store.SetStarred(cp.ID, true); err != nil {
				t.Fatalf("SetStarred() error = %v", err)
			}
		}
		newest = cp
	}

	if got := len(store.Checkpoints()); got != 100 {
		t.Fatalf("got %d checkpoints, want the cap of 100", got)
	}
	if _, ok := store.GetCheckpoint(starred.ID); !ok {
		t.Error("starred checkpoint should survive 50 evictions")
	}
	if _, ok := store.GetCheckpoint(newest.ID); !ok {
		t.Error("newest checkpoint should never be evicted")
	}
}

func TestQuickSaveSequentialNames(t *testing.T) {
	store, _ := newTestStore(t, nil)

	first, err := store.QuickSave()
	if err != nil {
		t.Fatalf("QuickSave() error = %v", err)
	}
	if first.Name != "Quick Save 1" {
		t.Errorf("Name = %q, want Quick Save 1", first.Name)
	}
	if first.Type != TypeManual || first.Source != SourceUser {
		t.Errorf("Type/Source = %q/%q, want manual/user", first.Type, first.Source)
	}

	second, err := store.QuickSave()
	if err != nil {
		t.Fatalf("QuickSave() error = %v", err)
	}
	if second.Name != "Quick Save 2" {
		t.Errorf("Name = %q, want Quick Save 2", second.Name)
	}
}

func TestRetentionAllStarred(t *testing.T) {
	store, _ := newTestStore(t, nil)

	settings := store.Settings()
	settings.MaxCheckpoints = 2
	store.UpdateSettings(settings)

	for i := 0; i < 4; i++ {
		cp, err := store.CreateCheckpoint(TypeManual, SourceUser, nil, nil)
		if err != nil {
			t.Fatalf("CreateCheckpoint() error = %v", err)
		}
		if err := store.SetStarred(cp.ID, true); err != nil {
			t.Fatalf("SetStarred() error = %v", err)
		}
	}

	// Starred checkpoints are exempt, so the store overshoots the cap.
	if got := len(store.Checkpoints()); got != 4 {
		t.Errorf("got %d checkpoints, want 4 starred survivors", got)
	}
}

func TestRename(t *testing.T) {
	store, _ := newTestStore(t, nil)

	cp, _ := store.CreateCheckpoint(TypeManual, SourceUser, nil, nil)
	if err := store.Rename(cp.ID, "renamed", "new description"); err != nil {
		t.Fatalf("Rename() error = %v", err)
	}

	got, _ := store.GetCheckpoint(cp.ID)
	if got.Name != "renamed" || got.Description != "new description" {
		t.Errorf("got (%q, %q), want (renamed, new description)", got.Name, got.Description)
	}

	if err := store.Rename("missing", "x", ""); err == nil {
		t.Error("Rename() of unknown id should fail")
	}
}

func TestSessionTracksAITools(t *testing.T) {
	store, _ := newTestStore(t, nil)

	store.CreateCheckpoint(TypeAIGenerated, SourceClaude, nil, nil)
	store.CreateCheckpoint(TypeAIGenerated, SourceClaude, nil, nil)
	store.CreateCheckpoint(TypeAIGenerated, SourceCursor, nil, nil)
	store.CreateCheckpoint(TypeManual, SourceUser, nil, nil)

	session, ok := store.ActiveSession()
	if !ok {
		t.Fatal("no active session")
	}
	if len(session.AIToolsUsed) != 2 {
		t.Fatalf("AIToolsUsed = %v, want exactly claude and cursor", session.AIToolsUsed)
	}
}

func TestChangedFilesReconciledWithBackend(t *testing.T) {
	fg := newFakeGit()
	fg.dirty = true
	store, _ := newTestStore(t, fg)

	// The fake backend reports no file lists of its own, so the
	// caller-supplied entry must survive both reconciliation passes.
	caller := []ChangedFile{{
		Path:            "main.go",
		ChangeType:      ChangeModified,
		LinesAdded:      3,
		LinesRemoved:    1,
		PreviousContent: strPtr("old"),
	}}

	cp, err := store.CreateCheckpoint(TypeAuto, SourceFileWatcher, caller, nil)
	if err != nil {
		t.Fatalf("CreateCheckpoint() error = %v", err)
	}
	if len(cp.ChangedFiles) != 1 {
		t.Fatalf("got %d changed files, want 1", len(cp.ChangedFiles))
	}
	cf := cp.ChangedFiles[0]
	if cf.PreviousContent == nil || *cf.PreviousContent != "old" {
		t.Error("caller-supplied snapshot was lost during reconciliation")
	}
	if cf.LinesAdded != 3 || cf.LinesRemoved != 1 {
		t.Errorf("line counts = (%d, %d), want (3, 1)", cf.LinesAdded, cf.LinesRemoved)
	}
}
