package git

// CommitInfo describes one commit from the log.
type CommitInfo struct {
	Hash        string   `json:"hash"`
	Parents     []string `json:"parents"`
	AuthorName  string   `json:"authorName"`
	AuthorEmail string   `json:"authorEmail"`
	Date        int64    `json:"date"` // epoch milliseconds
	Message     string   `json:"message"`
	Refs        []string `json:"refs"`
}

// BranchInfo describes a local branch and the commit it points at.
type BranchInfo struct {
	Name      string `json:"name"`
	Hash      string `json:"hash"`
	IsCurrent bool   `json:"isCurrent"`
}

// TagInfo describes a tag and the commit it points at.
type TagInfo struct {
	Name string `json:"name"`
	Hash string `json:"hash"`
}

// Position describes where HEAD currently is.
type Position struct {
	IsDetached bool   `json:"isDetached"`
	Hash       string `json:"hash"`
	Branch     string `json:"branch,omitempty"`
}

// FileStat describes one file touched by a commit.
type FileStat struct {
	Path       string `json:"path"`
	ChangeType string `json:"changeType"` // "added", "modified", "deleted", "renamed"
	Added      int    `json:"added"`
	Deleted    int    `json:"deleted"`
}

// Client is the minimum version-control contract the rest of the system
// consumes. Repo implements it against a real git repository; tests use
// fakes.
type Client interface {
	// Commit stages the given paths (all changes when paths is empty) and
	// commits them. Returns the new commit hash, or "" when there was
	// nothing to commit.
	Commit(paths []string, message string) (string, error)
	Status() (*RepoStatus, error)
	Log(maxCount int) ([]CommitInfo, error)
	Branches() ([]BranchInfo, error)
	Tags() ([]TagInfo, error)
	CurrentPosition() (*Position, error)
	// ShowFileAtRef returns the content of path as of ref.
	ShowFileAtRef(path, ref string) (string, error)
	// RestorePath copies path's content as of ref into the working tree
	// without moving HEAD.
	RestorePath(path, ref string) error
	// ResetTo moves HEAD to ref. Destructive resets the working tree too;
	// otherwise changes are left staged.
	ResetTo(ref string, destructive bool) error
	// CheckoutRef checks out ref, auto-stashing dirty state first.
	CheckoutRef(ref string) error
	CreateBranch(name string) error
	CommitExists(ref string) bool
	// ChangedFilesIn returns per-file change statistics for one commit.
	ChangedFilesIn(ref string) ([]FileStat, error)
}
