// Package graph reconstructs a renderable commit DAG from the linear,
// parent-pointer commit log and assigns each commit a visual lane.
package graph

import "guardian/internal/git"

// Mode selects which slice of history a graph fetch covers.
type Mode string

const (
	// ModeGuardian limits the graph to checkpoint-tagged commits.
	ModeGuardian Mode = "guardian"
	// ModeFull renders the unfiltered log.
	ModeFull Mode = "full"
)

// Commit is one node of the rendered graph. Derived and ephemeral:
// rebuilt on every fetch, never persisted. Children is computed by
// inverting the parent relation across the fetched window and is only
// valid for the snapshot that computed it.
type Commit struct {
	Hash             string   `json:"hash"`
	AbbreviatedHash  string   `json:"abbreviatedHash"`
	Parents          []string `json:"parents"`
	AuthorName       string   `json:"authorName"`
	AuthorEmail      string   `json:"authorEmail"`
	Date             int64    `json:"date"`
	Message          string   `json:"message"`
	Refs             []string `json:"refs"`
	IsGuardianCommit bool     `json:"isGuardianCommit"`
	Lane             int      `json:"lane"`
	Children         []string `json:"children"`
}

// Branch is a branch head with its rendering color slot.
type Branch struct {
	Name       string `json:"name"`
	Hash       string `json:"hash"`
	IsCurrent  bool   `json:"isCurrent"`
	ColorIndex int    `json:"colorIndex"`
}

// GraphData is one consistent snapshot of the commit graph.
type GraphData struct {
	Commits    []Commit      `json:"commits"`
	Branches   []Branch      `json:"branches"`
	Tags       []git.TagInfo `json:"tags"`
	Position   *git.Position `json:"position,omitempty"`
	TotalLanes int           `json:"totalLanes"`
	Mode       Mode          `json:"mode"`
}

// CommitDetail pairs one commit's metadata with its per-file change
// statistics.
type CommitDetail struct {
	Commit Commit         `json:"commit"`
	Files  []git.FileStat `json:"files"`
}
