// internal/graph/lanes.go
package graph

// ComputeLaneLayout assigns a lane to every commit in a
// topologically-ordered list (parent-after-child, as a
// reverse-chronological log produces) and returns the total lane
// count. Pure and deterministic: identical input yields identical
// assignments, which stable re-renders depend on.
//
// One forward pass, no backtracking. activeLanes holds, per slot,
// the hash of the parent expected to appear next in that lane, or ""
// when the slot is free. Lane reuse always prefers the lowest-indexed
// free slot to keep the graph compact. O(commits x lanes); commit
// windows are bounded, so the linear slot scans are fine.
func ComputeLaneLayout(commits []Commit) int {
	activeLanes := make([]string, 0, 8)

	findLane := func(hash string) int {
		for i, h := range activeLanes {
			if h != "" && h == hash {
				return i
			}
		}
		return -1
	}

	takeFreeLane := func() int {
		for i, h := range activeLanes {
			if h == "" {
				return i
			}
		}
		activeLanes = append(activeLanes, "")
		return len(activeLanes) - 1
	}

	for i := range commits {
		commit := &commits[i]

		lane := findLane(commit.Hash)
		if lane < 0 {
			lane = takeFreeLane()
		}
		commit.Lane = lane

		if len(commit.Parents) == 0 {
			// Root: its line terminates here.
			activeLanes[lane] = ""
			continue
		}

		first := commit.Parents[0]
		if reserved := findLane(first); reserved >= 0 && reserved != lane {
			// Convergence: another line is already waiting for this
			// parent, so the current line merges into it visually.
			activeLanes[lane] = ""
		} else {
			activeLanes[lane] = first
		}

		// Merge parents each open a new line unless already reserved.
		for _, parent := range commit.Parents[1:] {
			if findLane(parent) < 0 {
				activeLanes[takeFreeLane()] = parent
			}
		}
	}

	if len(activeLanes) == 0 {
		return 1
	}
	return len(activeLanes)
}
