// internal/graph/assembler.go
package graph

import (
	"fmt"
	"log/slog"
	"sync"

	"guardian/internal/git"
)

// detailWindow bounds how far back GetCommitDetail searches. A hash
// outside the most recent window returns nil, not an error.
const detailWindow = 300

// Assembler fetches commits, branches and tags from the backend and
// produces renderable graph snapshots. It holds no cache: every call
// is a fresh, consistent snapshot.
type Assembler struct {
	git    git.Client
	logger *slog.Logger
}

// NewAssembler creates an Assembler over the given backend.
func NewAssembler(gc git.Client, logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{git: gc, logger: logger}
}

// GetGraphData fetches up to maxCount commits plus branches, tags and
// the current position, then derives children and lane assignments.
// Branch/tag/position failures degrade to empty results; only a log
// failure aborts.
func (a *Assembler) GetGraphData(mode Mode, maxCount int) (*GraphData, error) {
	if a.git == nil {
		return nil, fmt.Errorf("no version control backend")
	}
	if maxCount <= 0 {
		maxCount = detailWindow
	}

	var (
		wg       sync.WaitGroup
		log      []git.CommitInfo
		logErr   error
		branches []git.BranchInfo
		tags     []git.TagInfo
		position *git.Position
	)

	wg.Add(4)
	go func() {
		defer wg.Done()
		log, logErr = a.git.Log(maxCount)
	}()
	go func() {
		defer wg.Done()
		var err error
		if branches, err = a.git.Branches(); err != nil {
			a.logger.Warn("branch fetch failed", "error", err)
		}
	}()
	go func() {
		defer wg.Done()
		var err error
		if tags, err = a.git.Tags(); err != nil {
			a.logger.Warn("tag fetch failed", "error", err)
		}
	}()
	go func() {
		defer wg.Done()
		var err error
		if position, err = a.git.CurrentPosition(); err != nil {
			a.logger.Warn("position fetch failed", "error", err)
		}
	}()
	wg.Wait()

	if logErr != nil {
		return nil, fmt.Errorf("fetch log: %w", logErr)
	}

	commits := make([]Commit, 0, len(log))
	for _, ci := range log {
		if mode == ModeGuardian && !git.IsGuardianMessage(ci.Message) {
			continue
		}
		commits = append(commits, Commit{
			Hash:             ci.Hash,
			AbbreviatedHash:  abbreviate(ci.Hash),
			Parents:          ci.Parents,
			AuthorName:       ci.AuthorName,
			AuthorEmail:      ci.AuthorEmail,
			Date:             ci.Date,
			Message:          ci.Message,
			Refs:             ci.Refs,
			IsGuardianCommit: git.IsGuardianMessage(ci.Message),
			Children:         []string{},
		})
	}

	// Invert the parent relation across the fetched window. A parent
	// outside the window simply gets no child recorded: this is a
	// windowed view, not the complete graph.
	byHash := make(map[string]*Commit, len(commits))
	for i := range commits {
		byHash[commits[i].Hash] = &commits[i]
	}
	for i := range commits {
		for _, parent := range commits[i].Parents {
			if p, ok := byHash[parent]; ok {
				p.Children = append(p.Children, commits[i].Hash)
			}
		}
	}

	totalLanes := ComputeLaneLayout(commits)

	// Sequential color indices in encounter order.
	graphBranches := make([]Branch, 0, len(branches))
	for i, b := range branches {
		graphBranches = append(graphBranches, Branch{
			Name:       b.Name,
			Hash:       b.Hash,
			IsCurrent:  b.IsCurrent,
			ColorIndex: i,
		})
	}

	return &GraphData{
		Commits:    commits,
		Branches:   graphBranches,
		Tags:       tags,
		Position:   position,
		TotalLanes: totalLanes,
		Mode:       mode,
	}, nil
}

// GetCommitDetail merges one commit's metadata with its per-file
// change statistics. Returns nil when the hash is outside the most
// recent detailWindow commits.
func (a *Assembler) GetCommitDetail(hash string) (*CommitDetail, error) {
	if a.git == nil {
		return nil, fmt.Errorf("no version control backend")
	}

	log, err := a.git.Log(detailWindow)
	if err != nil {
		return nil, fmt.Errorf("fetch log: %w", err)
	}

	for _, ci := range log {
		if ci.Hash != hash {
			continue
		}

		files, err := a.git.ChangedFilesIn(hash)
		if err != nil {
			return nil, fmt.Errorf("fetch commit stats: %w", err)
		}

		return &CommitDetail{
			Commit: Commit{
				Hash:             ci.Hash,
				AbbreviatedHash:  abbreviate(ci.Hash),
				Parents:          ci.Parents,
				AuthorName:       ci.AuthorName,
				AuthorEmail:      ci.AuthorEmail,
				Date:             ci.Date,
				Message:          ci.Message,
				Refs:             ci.Refs,
				IsGuardianCommit: git.IsGuardianMessage(ci.Message),
				Children:         []string{},
			},
			Files: files,
		}, nil
	}

	return nil, nil
}

func abbreviate(hash string) string {
	if len(hash) > 7 {
		return hash[:7]
	}
	return hash
}
