package google

import (
	"strings"

	gmail "google.golang.org/api/gmail/v1"
)

// DefaultScopes are requested when the configuration does not name any.
// gmail.modify covers removing labels and sending.
var DefaultScopes = []string{
	gmail.GmailReadonlyScope,
	gmail.GmailModifyScope,
}

const scopePrefix = "https://www.googleapis.com/auth/"

// ResolveScopes expands short scope names such as "gmail.send" to their full
// URL form. An empty list yields DefaultScopes.
func ResolveScopes(scopes []string) []string {
	if len(scopes) == 0 {
		return append([]string(nil), DefaultScopes...)
	}

	out := make([]string, 0, len(scopes))
	for _, s := range scopes {
		s = strings.TrimSpace(s)
		switch {
		case s == "":
			continue
		case strings.Contains(s, "://"):
			out = append(out, s)
		default:
			out = append(out, scopePrefix+s)
		}
	}
	return out
}
