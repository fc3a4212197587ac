package git

import (
	"bytes"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	gogit "github.com/go-git/go-git/v5"
)

// Repo implements Client against a git repository on disk.
//
// Worktree status goes through go-git; everything touching the log or
// moving HEAD shells out to the git binary, which handles worktrees and
// detached HEAD states that go-git gets wrong.
type Repo struct {
	path string
	repo *gogit.Repository
}

// FileStatus represents the status of a single file in the worktree.
type FileStatus struct {
	Path   string `json:"path"`
	Status string `json:"status"` // "modified", "added", "deleted", "untracked", etc.
}

// RepoStatus represents the current status of the repository.
type RepoStatus struct {
	Branch    string       `json:"branch"`
	Modified  []FileStatus `json:"modified"`
	Staged    []FileStatus `json:"staged"`
	Untracked []FileStatus `json:"untracked"`
	Deleted   []FileStatus `json:"deleted"`
	IsClean   bool         `json:"isClean"`
}

// Open opens a git repository at the given path.
func Open(path string) (*Repo, error) {
	repo, err := gogit.PlainOpen(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open git repository: %w", err)
	}

	return &Repo{
		path: path,
		repo: repo,
	}, nil
}

// IsRepository checks if the given path is inside a git work tree.
func IsRepository(path string) bool {
	cmd := exec.Command("git", "-C", path, "rev-parse", "--is-inside-work-tree")
	return cmd.Run() == nil
}

// Status returns the current status of the repository.
func (r *Repo) Status() (*RepoStatus, error) {
	worktree, err := r.repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("failed to get worktree: %w", err)
	}

	status, err := worktree.Status()
	if err != nil {
		return nil, fmt.Errorf("failed to get status: %w", err)
	}

	branch, err := r.CurrentBranch()
	if err != nil {
		branch = "" // Branch might not exist yet (empty repo)
	}

	repoStatus := &RepoStatus{
		Branch:    branch,
		Modified:  make([]FileStatus, 0),
		Staged:    make([]FileStatus, 0),
		Untracked: make([]FileStatus, 0),
		Deleted:   make([]FileStatus, 0),
		IsClean:   status.IsClean(),
	}

	for path, fileStatus := range status {
		fs := FileStatus{Path: path}

		if fileStatus.Staging != gogit.Unmodified && fileStatus.Staging != gogit.Untracked {
			fs.Status = mapStatusCode(fileStatus.Staging)
			repoStatus.Staged = append(repoStatus.Staged, fs)
		}

		switch {
		case fileStatus.Worktree == gogit.Untracked:
			fs.Status = "untracked"
			repoStatus.Untracked = append(repoStatus.Untracked, fs)
		case fileStatus.Worktree == gogit.Deleted:
			fs.Status = "deleted"
			repoStatus.Deleted = append(repoStatus.Deleted, fs)
		case fileStatus.Worktree != gogit.Unmodified:
			fs.Status = mapStatusCode(fileStatus.Worktree)
			repoStatus.Modified = append(repoStatus.Modified, fs)
		}
	}

	return repoStatus, nil
}

// mapStatusCode converts go-git status codes to human-readable strings
func mapStatusCode(code gogit.StatusCode) string {
	switch code {
	case gogit.Unmodified:
		return "unmodified"
	case gogit.Untracked:
		return "untracked"
	case gogit.Modified:
		return "modified"
	case gogit.Added:
		return "added"
	case gogit.Deleted:
		return "deleted"
	case gogit.Renamed:
		return "renamed"
	case gogit.Copied:
		return "copied"
	case gogit.UpdatedButUnmerged:
		return "updated-but-unmerged"
	default:
		return "unknown"
	}
}

// CurrentBranch returns the name of the current branch.
// Uses git command instead of go-git because go-git doesn't handle worktrees correctly
func (r *Repo) CurrentBranch() (string, error) {
	branch, err := r.run("rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", fmt.Errorf("failed to get current branch: %w", err)
	}
	if branch == "HEAD" {
		return "", fmt.Errorf("HEAD is detached")
	}
	return branch, nil
}

// run executes a git command in the repository and returns trimmed stdout.
func (r *Repo) run(args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = r.path

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %s failed: %w, stderr: %s", args[0], err, strings.TrimSpace(stderr.String()))
	}

	return strings.TrimSpace(stdout.String()), nil
}

// Commit stages paths (everything when empty) and commits. Returns ""
// when the staging area ends up with nothing to commit.
func (r *Repo) Commit(paths []string, message string) (string, error) {
	if len(paths) == 0 {
		if _, err := r.run("add", "-A"); err != nil {
			return "", err
		}
	} else {
		args := append([]string{"add", "--"}, paths...)
		if _, err := r.run(args...); err != nil {
			return "", err
		}
	}

	// Nothing staged means nothing to commit.
	cmd := exec.Command("git", "diff", "--cached", "--quiet")
	cmd.Dir = r.path
	if cmd.Run() == nil {
		return "", nil
	}

	if _, err := r.run("commit", "-m", message); err != nil {
		return "", err
	}

	return r.run("rev-parse", "HEAD")
}

const (
	logFieldSep  = "\x1f"
	logRecordSep = "\x1e"
)

// Log returns up to maxCount commits, newest first.
func (r *Repo) Log(maxCount int) ([]CommitInfo, error) {
	format := strings.Join([]string{"%H", "%P", "%an", "%ae", "%at", "%D", "%s"}, logFieldSep) + logRecordSep
	out, err := r.run("log", fmt.Sprintf("--max-count=%d", maxCount), "--format="+format)
	if err != nil {
		if strings.Contains(err.Error(), "does not have any commits") {
			return nil, nil
		}
		return nil, err
	}

	var commits []CommitInfo
	for _, record := range strings.Split(out, logRecordSep) {
		record = strings.TrimSpace(record)
		if record == "" {
			continue
		}
		fields := strings.Split(record, logFieldSep)
		if len(fields) < 7 {
			continue
		}

		seconds, _ := strconv.ParseInt(fields[4], 10, 64)
		commits = append(commits, CommitInfo{
			Hash:        fields[0],
			Parents:     splitNonEmpty(fields[1], " "),
			AuthorName:  fields[2],
			AuthorEmail: fields[3],
			Date:        seconds * 1000,
			Refs:        splitNonEmpty(fields[5], ", "),
			Message:     fields[6],
		})
	}

	return commits, nil
}

func splitNonEmpty(s, sep string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Branches lists local branches.
func (r *Repo) Branches() ([]BranchInfo, error) {
	out, err := r.run("for-each-ref", "refs/heads",
		"--format=%(refname:short)"+logFieldSep+"%(objectname)"+logFieldSep+"%(HEAD)")
	if err != nil {
		return nil, err
	}

	var branches []BranchInfo
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Split(strings.TrimSpace(line), logFieldSep)
		if len(fields) < 3 || fields[0] == "" {
			continue
		}
		branches = append(branches, BranchInfo{
			Name:      fields[0],
			Hash:      fields[1],
			IsCurrent: fields[2] == "*",
		})
	}

	return branches, nil
}

// Tags lists tags with the commit they resolve to.
func (r *Repo) Tags() ([]TagInfo, error) {
	out, err := r.run("for-each-ref", "refs/tags",
		"--format=%(refname:short)"+logFieldSep+"%(*objectname)"+logFieldSep+"%(objectname)")
	if err != nil {
		return nil, err
	}

	var tags []TagInfo
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Split(strings.TrimSpace(line), logFieldSep)
		if len(fields) < 3 || fields[0] == "" {
			continue
		}
		hash := fields[1] // peeled hash for annotated tags
		if hash == "" {
			hash = fields[2]
		}
		tags = append(tags, TagInfo{Name: fields[0], Hash: hash})
	}

	return tags, nil
}

// CurrentPosition describes where HEAD is right now.
func (r *Repo) CurrentPosition() (*Position, error) {
	hash, err := r.run("rev-parse", "HEAD")
	if err != nil {
		return nil, err
	}

	pos := &Position{Hash: hash}
	branch, err := r.run("rev-parse", "--abbrev-ref", "HEAD")
	if err != nil || branch == "HEAD" {
		pos.IsDetached = true
	} else {
		pos.Branch = branch
	}

	return pos, nil
}

// ShowFileAtRef returns the content of path as of ref.
func (r *Repo) ShowFileAtRef(path, ref string) (string, error) {
	cmd := exec.Command("git", "show", ref+":"+path)
	cmd.Dir = r.path

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git show %s:%s failed: %w, stderr: %s", ref, path, err, strings.TrimSpace(stderr.String()))
	}

	// No trimming: file content must come back byte-exact.
	return stdout.String(), nil
}

// RestorePath copies path's content as of ref into the working tree.
func (r *Repo) RestorePath(path, ref string) error {
	_, err := r.run("checkout", ref, "--", path)
	return err
}

// ResetTo moves HEAD to ref.
func (r *Repo) ResetTo(ref string, destructive bool) error {
	mode := "--soft"
	if destructive {
		mode = "--hard"
	}
	_, err := r.run("reset", mode, ref)
	return err
}

// CheckoutRef checks out ref, stashing dirty state first so the
// checkout cannot clobber uncommitted work.
func (r *Repo) CheckoutRef(ref string) error {
	if status, err := r.Status(); err == nil && !status.IsClean {
		if _, err := r.run("stash", "push", "-u", "-m", "guardian-auto-stash"); err != nil {
			return fmt.Errorf("failed to stash before checkout: %w", err)
		}
	}
	_, err := r.run("checkout", ref)
	return err
}

// CreateBranch creates and switches to a new branch.
func (r *Repo) CreateBranch(name string) error {
	_, err := r.run("checkout", "-b", name)
	return err
}

// CommitExists reports whether ref resolves to a commit in this repository.
func (r *Repo) CommitExists(ref string) bool {
	cmd := exec.Command("git", "cat-file", "-e", ref+"^{commit}")
	cmd.Dir = r.path
	return cmd.Run() == nil
}

// ChangedFilesIn returns per-file change statistics for one commit.
func (r *Repo) ChangedFilesIn(ref string) ([]FileStat, error) {
	status, err := r.run("show", "--name-status", "--format=", ref)
	if err != nil {
		return nil, err
	}

	changeTypes := make(map[string]string)
	order := make([]string, 0)
	for _, line := range strings.Split(status, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		path := fields[len(fields)-1]
		changeTypes[path] = mapNameStatus(fields[0])
		order = append(order, path)
	}

	numstat, err := r.run("show", "--numstat", "--format=", ref)
	if err != nil {
		return nil, err
	}

	counts := make(map[string][2]int)
	for _, line := range strings.Split(numstat, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		// Binary files report "-" for both counts; Atoi leaves them at 0.
		added, _ := strconv.Atoi(fields[0])
		deleted, _ := strconv.Atoi(fields[1])
		counts[fields[len(fields)-1]] = [2]int{added, deleted}
	}

	stats := make([]FileStat, 0, len(order))
	for _, path := range order {
		c := counts[path]
		stats = append(stats, FileStat{
			Path:       path,
			ChangeType: changeTypes[path],
			Added:      c[0],
			Deleted:    c[1],
		})
	}

	return stats, nil
}

func mapNameStatus(code string) string {
	switch {
	case strings.HasPrefix(code, "A"):
		return "added"
	case strings.HasPrefix(code, "D"):
		return "deleted"
	case strings.HasPrefix(code, "R"):
		return "renamed"
	default:
		return "modified"
	}
}

// Diff returns the diff output for the repository.
// If cached is true, returns staged changes; otherwise returns unstaged changes
func (r *Repo) Diff(cached bool) (string, error) {
	args := []string{"diff"}
	if cached {
		args = append(args, "--cached")
	}
	return r.run(args...)
}

// DiffRef returns the patch a single commit introduced.
func (r *Repo) DiffRef(ref string) (string, error) {
	return r.run("show", "--format=", ref)
}
