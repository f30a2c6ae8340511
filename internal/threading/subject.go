package threading

import (
	"regexp"
	"strings"
)

// replyPrefix matches one reply or forward marker as written by common
// mail clients in several languages, with an optional counter such as
// "Re[2]:" or "AW (3):".
var replyPrefix = regexp.MustCompile(`(?i)^\s*(?:re|fwd?|aw|wg|sv|vs|antw|doorst|tr|rv|res|enc|odp|pd|r)\s*(?:\[\d+\]|\(\d+\))?\s*[:：]\s*`)

// NormalizeSubject strips any number of leading reply/forward markers and
// collapses inner whitespace. The result may be empty.
func NormalizeSubject(subject string) string {
	s := strings.TrimSpace(subject)
	for {
		loc := replyPrefix.FindStringIndex(s)
		if loc == nil || loc[1] == 0 {
			break
		}
		s = s[loc[1]:]
	}
	return strings.Join(strings.Fields(s), " ")
}
