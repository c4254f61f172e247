// internal/render/render.go
package render

import (
	"regexp"
	"strings"
)

var placeholderRe = regexp.MustCompile(`\{\{([^{}]*)\}\}`)

// Render replaces every {{key}} placeholder in template with the matching
// variable. Key lookup is case-insensitive; an unknown or malformed key
// becomes the empty string so a stale template can never block a batch nor
// leak a raw token to a recipient. This is deliberately a flat substitution
// with no control flow.
func Render(template string, vars map[string]string) string {
	if template == "" {
		return ""
	}

	lookup := make(map[string]string, len(vars))
	for k, v := range vars {
		lookup[strings.ToLower(k)] = v
	}

	return placeholderRe.ReplaceAllStringFunc(template, func(m string) string {
		key := strings.TrimSpace(placeholderRe.FindStringSubmatch(m)[1])
		return lookup[strings.ToLower(key)]
	})
}
