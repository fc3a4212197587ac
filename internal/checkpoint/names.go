// internal/checkpoint/names.go
package checkpoint

import (
	"strings"
	"time"
)

var typeLabels = map[CheckpointType]string{
	TypeAuto:         "Auto checkpoint",
	TypeManual:       "Checkpoint",
	TypeAIGenerated:  "AI checkpoint",
	TypeSessionStart: "Session start",
	TypeAutoSave:     "Auto-save",
}

// DisplayName computes the default checkpoint name from its trigger,
// actor and creation time. Raw timestamps stay in the data model; this
// is the presentation-boundary formatting.
func DisplayName(t CheckpointType, s ChangeSource, timestamp int64) string {
	label, ok := typeLabels[t]
	if !ok {
		label = "Checkpoint"
	}
	when := time.UnixMilli(timestamp).Format("Jan 2, 15:04:05")
	return label + " · " + string(s) + " · " + when
}

// InferFromMessage reconstructs a checkpoint's type and source from a
// commit message for history not created through this system. The
// result is cosmetic metadata: rollback-capability never consults it.
func InferFromMessage(message string) (CheckpointType, ChangeSource) {
	m := strings.ToLower(message)

	switch {
	case strings.Contains(m, "auto-save"), strings.Contains(m, "autosave"):
		return TypeAutoSave, SourceAutoSave
	case strings.Contains(m, "session start"):
		return TypeSessionStart, SourceUser
	case strings.Contains(m, "claude"):
		return TypeAIGenerated, SourceClaude
	case strings.Contains(m, "cursor"):
		return TypeAIGenerated, SourceCursor
	case strings.Contains(m, "copilot"):
		return TypeAIGenerated, SourceCopilot
	case strings.Contains(m, "ai "), strings.HasSuffix(m, " ai"), strings.Contains(m, "agent"):
		return TypeAIGenerated, SourceOtherAI
	default:
		return TypeManual, SourceUser
	}
}
