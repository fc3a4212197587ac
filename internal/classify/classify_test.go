package classify

import (
	"testing"

	"guardian/internal/checkpoint"
)

func file(path string, added, removed int) checkpoint.ChangedFile {
	return checkpoint.ChangedFile{Path: path, ChangeType: checkpoint.ChangeModified, LinesAdded: added, LinesRemoved: removed}
}

func TestCoAuthorRule(t *testing.T) {
	c := New()

	got := c.Classify(&Batch{
		CommitMessage: "Refactor parser\n\nCo-Authored-By: Claude <noreply@anthropic.com>",
	})
	if got.Source != checkpoint.SourceClaude {
		t.Errorf("Source = %q, want %q", got.Source, checkpoint.SourceClaude)
	}
	if got.Confidence < 0.9 {
		t.Errorf("Confidence = %v, want >= 0.9 for an explicit trailer", got.Confidence)
	}
	if got.Rule != "co-author" {
		t.Errorf("Rule = %q", got.Rule)
	}
}

func TestActiveToolRule(t *testing.T) {
	c := New()

	got := c.Classify(&Batch{
		Files:       []checkpoint.ChangedFile{file("a.go", 2, 1)},
		ActiveTools: []string{"Cursor"},
	})
	if got.Source != checkpoint.SourceCursor {
		t.Errorf("Source = %q, want %q", got.Source, checkpoint.SourceCursor)
	}

	got = c.Classify(&Batch{
		Files:       []checkpoint.ChangedFile{file("a.go", 2, 1)},
		ActiveTools: []string{"some-new-agent"},
	})
	if got.Source != checkpoint.SourceOtherAI {
		t.Errorf("unknown tool: Source = %q, want %q", got.Source, checkpoint.SourceOtherAI)
	}
}

func TestBurstRule(t *testing.T) {
	c := New()

	got := c.Classify(&Batch{
		Files:         []checkpoint.ChangedFile{file("a.go", 40, 10), file("b.go", 30, 5), file("c.go", 20, 0)},
		ElapsedMillis: 800,
	})
	if got.Source != checkpoint.SourceOtherAI || got.Rule != "burst" {
		t.Errorf("got (%q, %q), want the burst rule firing", got.Source, got.Rule)
	}

	// The same volume spread over a minute reads as human work.
	got = c.Classify(&Batch{
		Files:         []checkpoint.ChangedFile{file("a.go", 40, 10), file("b.go", 30, 5), file("c.go", 20, 0)},
		ElapsedMillis: 60000,
	})
	if got.Rule == "burst" {
		t.Error("slow edits must not trigger the burst rule")
	}
}

func TestMarkerRule(t *testing.T) {
	c := New()
	content := "// Code generated by protoc-gen-go. DO NOT EDIT.\npackage pb\n"

	got := c.Classify(&Batch{
		Files: []checkpoint.ChangedFile{{
			Path:           "gen.pb.go",
			ChangeType:     checkpoint.ChangeAdded,
			CurrentContent: &content,
		}},
		ElapsedMillis: 30000,
	})
	if got.Rule != "marker" {
		t.Errorf("Rule = %q, want marker", got.Rule)
	}
	if got.Source != checkpoint.SourceOtherAI {
		t.Errorf("Source = %q", got.Source)
	}
}

func TestFallbackRule(t *testing.T) {
	c := New()

	got := c.Classify(&Batch{
		Files:         []checkpoint.ChangedFile{file("a.go", 5, 2)},
		ElapsedMillis: 45000,
	})
	if got.Source != checkpoint.SourceUser {
		t.Errorf("small slow edit: Source = %q, want %q", got.Source, checkpoint.SourceUser)
	}

	got = c.Classify(&Batch{
		Files:         []checkpoint.ChangedFile{file("a.go", 500, 100), file("b.go", 200, 50), file("c.go", 10, 0), file("d.go", 10, 0)},
		ElapsedMillis: 45000,
	})
	if got.Source != checkpoint.SourceUnknown {
		t.Errorf("large ambiguous edit: Source = %q, want %q", got.Source, checkpoint.SourceUnknown)
	}
}

func TestEmptyBatch(t *testing.T) {
	got := New().Classify(&Batch{})
	if got.Source != checkpoint.SourceUnknown {
		t.Errorf("Source = %q, want %q", got.Source, checkpoint.SourceUnknown)
	}
}

func TestRuleOrder(t *testing.T) {
	c := New()

	// A co-author trailer outranks a running tool.
	got := c.Classify(&Batch{
		CommitMessage: "fix\n\nco-authored-by: copilot",
		ActiveTools:   []string{"claude"},
	})
	if got.Source != checkpoint.SourceCopilot {
		t.Errorf("Source = %q, want the co-author rule to win", got.Source)
	}
}
