package isolate

import "strings"

// Annotation is parsed from the leading block of `//` comment lines at the
// top of a user script (spec.md §4.6).
type Annotation struct {
	UserAgent string
	ProxyURL  string
	ProxyUser string
	ProxyPass string
}

// ParseAnnotations scans the leading contiguous block of `//` lines and
// extracts `useragent <string>` and `proxy <url>[, user, pass]` directives.
// Scanning stops at the first non-comment, non-blank line.
func ParseAnnotations(source string) Annotation {
	var ann Annotation

	lines := strings.Split(source, "\n")
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if !strings.HasPrefix(trimmed, "//") {
			break
		}

		body := strings.TrimSpace(strings.TrimPrefix(trimmed, "//"))
		switch {
		case strings.HasPrefix(body, "useragent"):
			ann.UserAgent = strings.TrimSpace(strings.TrimPrefix(body, "useragent"))
		case strings.HasPrefix(body, "proxy"):
			parseProxy(strings.TrimSpace(strings.TrimPrefix(body, "proxy")), &ann)
		}
	}

	return ann
}

func parseProxy(rest string, ann *Annotation) {
	parts := strings.Split(rest, ",")
	ann.ProxyURL = strings.TrimSpace(parts[0])

	if len(parts) >= 3 {
		ann.ProxyUser = strings.TrimSpace(parts[1])
		ann.ProxyPass = strings.TrimSpace(parts[2])
	}
}
