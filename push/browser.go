package push

import "strings"

const BrowserUnknown = "unknown"

// Order matters: Edge and Opera user agents also contain "Chrome", and
// Chrome's contains "Safari".
var browserTokens = []struct {
	label  string
	tokens []string
}{
	{"edge", []string{"Edg/", "Edge/", "EdgA/", "EdgiOS/"}},
	{"opera", []string{"OPR/", "Opera"}},
	{"chrome", []string{"Chrome/", "CriOS/"}},
	{"firefox", []string{"Firefox/", "FxiOS/"}},
	{"safari", []string{"Safari/"}},
}

// DetectBrowser maps a user agent to a coarse browser label. The label is
// metadata for the backend and never drives behavior.
func DetectBrowser(userAgent string) string {
	for _, b := range browserTokens {
		for _, token := range b.tokens {
			if strings.Contains(userAgent, token) {
				return b.label
			}
		}
	}
	return BrowserUnknown
}
