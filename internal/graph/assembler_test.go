package graph

import (
	"errors"
	"testing"

	"guardian/internal/git"
)

type fakeClient struct {
	commits   []git.CommitInfo
	logErr    error
	branches  []git.BranchInfo
	branchErr error
	stats     map[string][]git.FileStat
}

func (f *fakeClient) Commit(paths []string, message string) (string, error) { return "", nil }
func (f *fakeClient) Status() (*git.RepoStatus, error)                      { return &git.RepoStatus{}, nil }

func (f *fakeClient) Log(maxCount int) ([]git.CommitInfo, error) {
	if f.logErr != nil {
		return nil, f.logErr
	}
	if maxCount > 0 && len(f.commits) > maxCount {
		return f.commits[:maxCount], nil
	}
	return f.commits, nil
}

func (f *fakeClient) Branches() ([]git.BranchInfo, error) {
	return f.branches, f.branchErr
}

func (f *fakeClient) Tags() ([]git.TagInfo, error) { return nil, nil }

func (f *fakeClient) CurrentPosition() (*git.Position, error) {
	return &git.Position{Branch: "main"}, nil
}

func (f *fakeClient) ShowFileAtRef(path, ref string) (string, error) { return "", nil }
func (f *fakeClient) RestorePath(path, ref string) error             { return nil }
func (f *fakeClient) ResetTo(ref string, destructive bool) error     { return nil }
func (f *fakeClient) CheckoutRef(ref string) error                   { return nil }
func (f *fakeClient) CreateBranch(name string) error                 { return nil }

func (f *fakeClient) CommitExists(ref string) bool {
	for _, c := range f.commits {
		if c.Hash == ref {
			return true
		}
	}
	return false
}

func (f *fakeClient) ChangedFilesIn(ref string) ([]git.FileStat, error) {
	return f.stats[ref], nil
}

func testHistory() []git.CommitInfo {
	return []git.CommitInfo{
		{Hash: "ccc3333", Parents: []string{"bbb2222"}, Message: git.FormatGuardianMessage("checkpoint two")},
		{Hash: "bbb2222", Parents: []string{"aaa1111"}, Message: "plain work commit"},
		{Hash: "aaa1111", Message: git.FormatGuardianMessage("checkpoint one")},
	}
}

func TestGetGraphDataFullMode(t *testing.T) {
	fc := &fakeClient{
		commits:  testHistory(),
		branches: []git.BranchInfo{{Name: "main", Hash: "ccc3333", IsCurrent: true}},
	}
	a := NewAssembler(fc, nil)

	data, err := a.GetGraphData(ModeFull, 100)
	if err != nil {
		t.Fatalf("GetGraphData() error = %v", err)
	}

	if len(data.Commits) != 3 {
		t.Fatalf("got %d commits, want 3", len(data.Commits))
	}
	if !data.Commits[0].IsGuardianCommit {
		t.Error("guardian commit not flagged")
	}
	if data.Commits[1].IsGuardianCommit {
		t.Error("plain commit incorrectly flagged")
	}
	if data.TotalLanes != 1 {
		t.Errorf("TotalLanes = %d, want 1 for linear history", data.TotalLanes)
	}

	// Children are the inverted parent relation within the window.
	if len(data.Commits[2].Children) != 1 || data.Commits[2].Children[0] != "bbb2222" {
		t.Errorf("root children = %v, want [bbb2222]", data.Commits[2].Children)
	}
}

func TestGetGraphDataGuardianMode(t *testing.T) {
	fc := &fakeClient{commits: testHistory()}
	a := NewAssembler(fc, nil)

	data, err := a.GetGraphData(ModeGuardian, 100)
	if err != nil {
		t.Fatalf("GetGraphData() error = %v", err)
	}

	if len(data.Commits) != 2 {
		t.Fatalf("got %d commits, want only the 2 guardian commits", len(data.Commits))
	}
	for _, c := range data.Commits {
		if !c.IsGuardianCommit {
			t.Errorf("commit %s leaked into guardian mode", c.Hash)
		}
	}
}

func TestGetGraphDataBranchColors(t *testing.T) {
	fc := &fakeClient{
		commits: testHistory(),
		branches: []git.BranchInfo{
			{Name: "main", Hash: "ccc3333", IsCurrent: true},
			{Name: "feature", Hash: "bbb2222"},
		},
	}
	a := NewAssembler(fc, nil)

	data, err := a.GetGraphData(ModeFull, 100)
	if err != nil {
		t.Fatalf("GetGraphData() error = %v", err)
	}
	if len(data.Branches) != 2 {
		t.Fatalf("got %d branches, want 2", len(data.Branches))
	}
	if data.Branches[0].ColorIndex != 0 || data.Branches[1].ColorIndex != 1 {
		t.Errorf("color indices = (%d, %d), want sequential",
			data.Branches[0].ColorIndex, data.Branches[1].ColorIndex)
	}
}

func TestGetGraphDataBranchFailureDegrades(t *testing.T) {
	fc := &fakeClient{
		commits:   testHistory(),
		branchErr: errors.New("for-each-ref exploded"),
	}
	a := NewAssembler(fc, nil)

	data, err := a.GetGraphData(ModeFull, 100)
	if err != nil {
		t.Fatalf("GetGraphData() should degrade on branch failure, got %v", err)
	}
	if len(data.Branches) != 0 {
		t.Errorf("got %d branches, want none", len(data.Branches))
	}
	if len(data.Commits) != 3 {
		t.Errorf("commit fetch should be unaffected")
	}
}

func TestGetGraphDataLogFailure(t *testing.T) {
	fc := &fakeClient{logErr: errors.New("not a repository")}
	a := NewAssembler(fc, nil)

	if _, err := a.GetGraphData(ModeFull, 100); err == nil {
		t.Fatal("a log failure must abort the fetch")
	}
}

func TestGetCommitDetail(t *testing.T) {
	fc := &fakeClient{
		commits: testHistory(),
		stats: map[string][]git.FileStat{
			"bbb2222": {{Path: "main.go", ChangeType: "modified", Added: 4, Deleted: 1}},
		},
	}
	a := NewAssembler(fc, nil)

	detail, err := a.GetCommitDetail("bbb2222")
	if err != nil {
		t.Fatalf("GetCommitDetail() error = %v", err)
	}
	if detail == nil {
		t.Fatal("GetCommitDetail() = nil for a known hash")
	}
	if detail.Commit.AbbreviatedHash != "bbb2222" {
		t.Errorf("AbbreviatedHash = %q", detail.Commit.AbbreviatedHash)
	}
	if len(detail.Files) != 1 || detail.Files[0].Path != "main.go" {
		t.Errorf("Files = %v", detail.Files)
	}
}

func TestGetCommitDetailUnknownHash(t *testing.T) {
	fc := &fakeClient{commits: testHistory()}
	a := NewAssembler(fc, nil)

	detail, err := a.GetCommitDetail("ffffffff")
	if err != nil {
		t.Fatalf("GetCommitDetail() error = %v", err)
	}
	if detail != nil {
		t.Error("unknown hash should return nil, not a detail")
	}
}
