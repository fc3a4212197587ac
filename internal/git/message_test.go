// internal/git/message_test.go
package git

import "testing"

func TestGuardianMessageRoundTrip(t *testing.T) {
	msg := FormatGuardianMessage("Before refactor")
	if msg != "[guardian] Before refactor" {
		t.Errorf("FormatGuardianMessage() = %q", msg)
	}
	if !IsGuardianMessage(msg) {
		t.Error("formatted message should be recognized")
	}
	if got := GuardianName(msg); got != "Before refactor" {
		t.Errorf("GuardianName() = %q", got)
	}
}

func TestIsGuardianMessage(t *testing.T) {
	cases := []struct {
		message string
		want    bool
	}{
		{"[guardian] auto-save", true},
		{"[guardian] ", true},
		{"fix: handle empty input", false},
		{"guardian without brackets", false},
		{" [guardian] leading space", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := IsGuardianMessage(tc.message); got != tc.want {
			t.Errorf("IsGuardianMessage(%q) = %v, want %v", tc.message, got, tc.want)
		}
	}
}

func TestGuardianNamePassthrough(t *testing.T) {
	if got := GuardianName("plain commit message"); got != "plain commit message" {
		t.Errorf("GuardianName() = %q, want passthrough", got)
	}
}
