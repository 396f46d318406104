package utils

import (
	"strings"
	"unicode"

	"github.com/google/uuid"
)

const maxSlugBase = 120

// Slugify lower-cases title, turns whitespace runs into single hyphens and
// drops everything outside [a-z0-9-].  An empty result becomes "report".
func Slugify(title string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(strings.TrimSpace(title)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		case unicode.IsSpace(r) || r == '-' || r == '_':
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
		if b.Len() >= maxSlugBase {
			break
		}
	}
	s := strings.Trim(b.String(), "-")
	if s == "" {
		return "report"
	}
	return s
}

// NewSlug derives a unique slug from title by appending an 8-hex random
// suffix, e.g. "broken-streetlight-3f9a1c2e".
func NewSlug(title string) string {
	id := uuid.New()
	return Slugify(title) + "-" + strings.ReplaceAll(id.String(), "-", "")[:8]
}
