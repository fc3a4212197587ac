// internal/stats/stats.go
package stats

import (
	"sort"
	"time"

	"guardian/internal/checkpoint"
)

// SessionStats represents aggregated statistics for a single session
type SessionStats struct {
	SessionID       string         `json:"session_id"`
	Name            string         `json:"name"`
	CheckpointCount int            `json:"checkpoint_count"`
	FilesChanged    int            `json:"files_changed"`
	LinesAdded      int            `json:"lines_added"`
	LinesRemoved    int            `json:"lines_removed"`
	BySource        map[string]int `json:"by_source"`
	AIToolsUsed     []string       `json:"ai_tools_used"`
	DurationMillis  int64          `json:"duration_millis"`
	IsActive        bool           `json:"is_active"`
}

// DayStats represents aggregated statistics for a specific day
type DayStats struct {
	Date        string `json:"date"`
	Checkpoints int    `json:"checkpoints"`
	FilesTotal  int    `json:"files_total"`
}

// OverallStats represents aggregate checkpoint statistics
type OverallStats struct {
	TotalCheckpoints   int             `json:"total_checkpoints"`
	TotalSessions      int             `json:"total_sessions"`
	StarredCheckpoints int             `json:"starred_checkpoints"`
	WithVersionRef     int             `json:"with_version_ref"`
	ByType             map[string]int  `json:"by_type"`
	BySource           map[string]int  `json:"by_source"`
	ByDay              []*DayStats     `json:"by_day"`
	BySession          []*SessionStats `json:"by_session"`
	AuditBySource      map[string]int  `json:"audit_by_source,omitempty"`
}

// AuditSource provides classification counts from the audit log.
type AuditSource interface {
	EventCountsBySource() (map[string]int, error)
}

// Collect aggregates statistics over the store, optionally enriched
// with audit-log classification counts.
func Collect(store *checkpoint.Store, audit AuditSource) (*OverallStats, error) {
	checkpoints := store.Checkpoints()
	sessions := store.Sessions()

	stats := &OverallStats{
		TotalCheckpoints: len(checkpoints),
		TotalSessions:    len(sessions),
		ByType:           make(map[string]int),
		BySource:         make(map[string]int),
	}

	byDay := make(map[string]*DayStats)
	bySession := make(map[string]*SessionStats)

	for _, sess := range sessions {
		end := sess.EndTime
		if end == 0 {
			end = time.Now().UnixMilli()
		}
		bySession[sess.ID] = &SessionStats{
			SessionID:      sess.ID,
			Name:           sess.Name,
			FilesChanged:   sess.TotalFilesChanged,
			BySource:       make(map[string]int),
			AIToolsUsed:    sess.AIToolsUsed,
			DurationMillis: end - sess.StartTime,
			IsActive:       sess.IsActive,
		}
	}

	for _, cp := range checkpoints {
		stats.ByType[string(cp.Type)]++
		stats.BySource[string(cp.Source)]++
		if cp.Starred {
			stats.StarredCheckpoints++
		}
		if cp.VersionRef != "" {
			stats.WithVersionRef++
		}

		day := time.UnixMilli(cp.Timestamp).Format("2006-01-02")
		if byDay[day] == nil {
			byDay[day] = &DayStats{Date: day}
		}
		byDay[day].Checkpoints++
		byDay[day].FilesTotal += len(cp.ChangedFiles)

		if ss := bySession[cp.SessionID]; ss != nil {
			ss.CheckpointCount++
			ss.BySource[string(cp.Source)]++
			for _, cf := range cp.ChangedFiles {
				ss.LinesAdded += cf.LinesAdded
				ss.LinesRemoved += cf.LinesRemoved
			}
		}
	}

	for _, day := range byDay {
		stats.ByDay = append(stats.ByDay, day)
	}
	sort.Slice(stats.ByDay, func(i, j int) bool {
		return stats.ByDay[i].Date < stats.ByDay[j].Date
	})

	for _, sess := range sessions {
		stats.BySession = append(stats.BySession, bySession[sess.ID])
	}

	if audit != nil {
		counts, err := audit.EventCountsBySource()
		if err != nil {
			return nil, err
		}
		stats.AuditBySource = counts
	}

	return stats, nil
}
