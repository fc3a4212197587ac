package git

import "strings"

// GuardianPrefix marks commits created by the checkpoint system. It is
// the only wire format the core defines: the graph, the sync logic and
// the classifier all recognize guardian history by this prefix alone.
const GuardianPrefix = "[guardian] "

// FormatGuardianMessage builds a checkpoint commit message.
func FormatGuardianMessage(name string) string {
	return GuardianPrefix + name
}

// IsGuardianMessage reports whether a commit message was written by the
// checkpoint system.
func IsGuardianMessage(message string) bool {
	return strings.HasPrefix(message, GuardianPrefix)
}

// GuardianName extracts the checkpoint name from a guardian commit
// message. Returns the message unchanged when the prefix is absent.
func GuardianName(message string) string {
	return strings.TrimPrefix(message, GuardianPrefix)
}
