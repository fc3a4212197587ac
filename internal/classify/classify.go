// Package classify attributes a batch of file edits to a human or an
// automated agent. The heuristics are approximate by nature, so the
// rule set is swappable policy, not hardwired control flow: rules run
// in order and the first one that fires wins.
package classify

import (
	"strings"

	"guardian/internal/checkpoint"
)

// Batch is the unit of classification: one coalesced group of edits
// plus whatever context the caller has about it.
type Batch struct {
	Files []checkpoint.ChangedFile
	// ElapsedMillis covers the span from the first to the last edit in
	// the batch.
	ElapsedMillis int64
	// ActiveTools lists agent integrations currently running in the
	// editor ("claude", "cursor", "copilot", ...).
	ActiveTools []string
	// CommitMessage is the message of an accompanying commit, when the
	// batch was observed via git history rather than the watcher.
	CommitMessage string
}

// Classification tags a batch with its probable actor.
type Classification struct {
	Source     checkpoint.ChangeSource `json:"source"`
	Confidence float64                 `json:"confidence"`
	Rule       string                  `json:"rule"`
}

// Rule is one classification heuristic.
type Rule interface {
	Name() string
	// Apply returns a classification and true when the rule fires.
	Apply(*Batch) (Classification, bool)
}

// Classifier runs a rule chain over batches.
type Classifier struct {
	rules []Rule
}

// New creates a classifier. With no rules given it uses DefaultRules.
func New(rules ...Rule) *Classifier {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Classifier{rules: rules}
}

// Classify attributes a batch. Never fails: the terminal fallback
// always fires.
func (c *Classifier) Classify(batch *Batch) Classification {
	for _, rule := range c.rules {
		if result, ok := rule.Apply(batch); ok {
			result.Rule = rule.Name()
			return result
		}
	}
	return Classification{Source: checkpoint.SourceUnknown, Confidence: 0.2, Rule: "none"}
}

// DefaultRules returns the built-in rule chain, most specific first.
func DefaultRules() []Rule {
	return []Rule{
		coAuthorRule{},
		activeToolRule{},
		burstRule{},
		markerRule{},
		fallbackRule{},
	}
}

// knownAgents maps tool identifiers found in messages or active-tool
// lists to their change source.
var knownAgents = map[string]checkpoint.ChangeSource{
	"claude":  checkpoint.SourceClaude,
	"cursor":  checkpoint.SourceCursor,
	"copilot": checkpoint.SourceCopilot,
}

// coAuthorRule matches AI co-author trailers in commit messages.
type coAuthorRule struct{}

func (coAuthorRule) Name() string { return "co-author" }

func (coAuthorRule) Apply(batch *Batch) (Classification, bool) {
	msg := strings.ToLower(batch.CommitMessage)
	if !strings.Contains(msg, "co-authored-by:") {
		return Classification{}, false
	}
	for agent, source := range knownAgents {
		if strings.Contains(msg, agent) {
			return Classification{Source: source, Confidence: 0.95}, true
		}
	}
	if strings.Contains(msg, "ai") || strings.Contains(msg, "bot") {
		return Classification{Source: checkpoint.SourceOtherAI, Confidence: 0.85}, true
	}
	return Classification{}, false
}

// activeToolRule attributes the batch to an agent integration that is
// currently running.
type activeToolRule struct{}

func (activeToolRule) Name() string { return "active-tool" }

func (activeToolRule) Apply(batch *Batch) (Classification, bool) {
	for _, tool := range batch.ActiveTools {
		if source, ok := knownAgents[strings.ToLower(tool)]; ok {
			return Classification{Source: source, Confidence: 0.8}, true
		}
	}
	if len(batch.ActiveTools) > 0 {
		return Classification{Source: checkpoint.SourceOtherAI, Confidence: 0.6}, true
	}
	return Classification{}, false
}

// burstRule flags edit bursts too large and too fast for a human:
// several files rewritten within a couple of seconds.
type burstRule struct{}

func (burstRule) Name() string { return "burst" }

func (burstRule) Apply(batch *Batch) (Classification, bool) {
	if len(batch.Files) < 3 || batch.ElapsedMillis > 2000 {
		return Classification{}, false
	}
	total := 0
	for _, f := range batch.Files {
		total += f.LinesAdded + f.LinesRemoved
	}
	if total >= 80 {
		return Classification{Source: checkpoint.SourceOtherAI, Confidence: 0.7}, true
	}
	return Classification{}, false
}

// markerRule looks for generated-code markers in the new content.
type markerRule struct{}

func (markerRule) Name() string { return "marker" }

var generatedMarkers = []string{
	"code generated",
	"do not edit",
	"generated by",
}

func (markerRule) Apply(batch *Batch) (Classification, bool) {
	for _, f := range batch.Files {
		if f.CurrentContent == nil {
			continue
		}
		head := strings.ToLower(firstLines(*f.CurrentContent, 5))
		for _, marker := range generatedMarkers {
			if strings.Contains(head, marker) {
				return Classification{Source: checkpoint.SourceOtherAI, Confidence: 0.6}, true
			}
		}
	}
	return Classification{}, false
}

// fallbackRule labels small, slow edits as human work.
type fallbackRule struct{}

func (fallbackRule) Name() string { return "fallback" }

func (fallbackRule) Apply(batch *Batch) (Classification, bool) {
	if len(batch.Files) == 0 {
		return Classification{Source: checkpoint.SourceUnknown, Confidence: 0.2}, true
	}
	total := 0
	for _, f := range batch.Files {
		total += f.LinesAdded + f.LinesRemoved
	}
	if len(batch.Files) <= 2 && total < 80 {
		return Classification{Source: checkpoint.SourceUser, Confidence: 0.6}, true
	}
	return Classification{Source: checkpoint.SourceUnknown, Confidence: 0.4}, true
}

func firstLines(content string, n int) string {
	lines := strings.SplitN(content, "\n", n+1)
	if len(lines) > n {
		lines = lines[:n]
	}
	return strings.Join(lines, "\n")
}
