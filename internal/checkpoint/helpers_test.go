package checkpoint

import (
	"fmt"
	"os"
	"testing"

	"guardian/internal/git"
)

// memPersister keeps the envelope in memory and counts saves.
type memPersister struct {
	data  *StorageData
	saves int
}

func (p *memPersister) Load() (*StorageData, error) {
	if p.data == nil {
		return &StorageData{Version: StorageVersion}, nil
	}
	return p.data, nil
}

func (p *memPersister) Save(data *StorageData) error {
	p.data = data
	p.saves++
	return nil
}

// fakeGit is an in-memory git.Client. Commit appends to an internal
// log when dirty is set; most other methods serve canned data.
type fakeGit struct {
	dirty     bool
	seq       int
	commits   []git.CommitInfo // newest first
	status    *git.RepoStatus
	statusErr error
	commitErr error
	stats     map[string][]git.FileStat
	files     map[string]string // "ref:path" -> content
	branches  []string
}

func newFakeGit() *fakeGit {
	return &fakeGit{
		stats: make(map[string][]git.FileStat),
		files: make(map[string]string),
	}
}

func (f *fakeGit) Commit(paths []string, message string) (string, error) {
	if f.commitErr != nil {
		return "", f.commitErr
	}
	if !f.dirty {
		return "", nil
	}
	f.dirty = false
	f.seq++
	hash := fmt.Sprintf("commit%04d", f.seq)
	var parents []string
	if len(f.commits) > 0 {
		parents = []string{f.commits[0].Hash}
	}
	f.commits = append([]git.CommitInfo{{
		Hash:    hash,
		Parents: parents,
		Message: message,
	}}, f.commits...)
	return hash, nil
}

func (f *fakeGit) Status() (*git.RepoStatus, error) {
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	if f.status != nil {
		return f.status, nil
	}
	return &git.RepoStatus{Branch: "main", IsClean: !f.dirty}, nil
}

func (f *fakeGit) Log(maxCount int) ([]git.CommitInfo, error) {
	if maxCount > 0 && len(f.commits) > maxCount {
		return f.commits[:maxCount], nil
	}
	return f.commits, nil
}

func (f *fakeGit) Branches() ([]git.BranchInfo, error) { return nil, nil }
func (f *fakeGit) Tags() ([]git.TagInfo, error)        { return nil, nil }

func (f *fakeGit) CurrentPosition() (*git.Position, error) {
	if len(f.commits) == 0 {
		return &git.Position{Branch: "main"}, nil
	}
	return &git.Position{Hash: f.commits[0].Hash, Branch: "main"}, nil
}

func (f *fakeGit) ShowFileAtRef(path, ref string) (string, error) {
	content, ok := f.files[ref+":"+path]
	if !ok {
		return "", fmt.Errorf("path %s not found at %s", path, ref)
	}
	return content, nil
}

func (f *fakeGit) RestorePath(path, ref string) error { return nil }

func (f *fakeGit) ResetTo(ref string, destructive bool) error { return nil }

func (f *fakeGit) CheckoutRef(ref string) error { return nil }

func (f *fakeGit) CreateBranch(name string) error {
	f.branches = append(f.branches, name)
	return nil
}

func (f *fakeGit) CommitExists(ref string) bool {
	for _, c := range f.commits {
		if c.Hash == ref {
			return true
		}
	}
	return false
}

func (f *fakeGit) ChangedFilesIn(ref string) ([]git.FileStat, error) {
	return f.stats[ref], nil
}

// dropCommit removes a commit from the fake history, simulating a
// rebase or gc that rewrote it away.
func (f *fakeGit) dropCommit(hash string) {
	kept := f.commits[:0]
	for _, c := range f.commits {
		if c.Hash != hash {
			kept = append(kept, c)
		}
	}
	f.commits = kept
}

func newTestStore(t *testing.T, fg *fakeGit) (*Store, *memPersister) {
	t.Helper()

	root, err := os.MkdirTemp("", "checkpoint-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(root) })

	p := &memPersister{}
	var gc git.Client
	if fg != nil {
		gc = fg
	}
	store, err := NewStore(root, p, gc, nil, nil)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	return store, p
}

func strPtr(s string) *string { return &s }
