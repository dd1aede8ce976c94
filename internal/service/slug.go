package service

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// Kebab turns a display name into a lowercase, dash-separated slug.
// "Acme Corp." becomes "acme-corp".
func Kebab(name string) string {
	var b strings.Builder
	pendingDash := false
	prevLower := false
	for _, r := range strings.TrimSpace(name) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			// camelCase boundary
			if unicode.IsUpper(r) && prevLower {
				pendingDash = true
			}
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(unicode.ToLower(r))
			prevLower = unicode.IsLower(r) || unicode.IsDigit(r)
		default:
			pendingDash = true
			prevLower = false
		}
	}
	return b.String()
}

// UniqueSlug returns base when it is not taken, otherwise base followed by
// the smallest positive number that is free.
func UniqueSlug(base string, taken []string) string {
	used := make(map[string]bool, len(taken))
	for _, s := range taken {
		used[s] = true
	}
	if !used[base] {
		return base
	}
	for n := 1; ; n++ {
		candidate := base + strconv.Itoa(n)
		if !used[candidate] {
			return candidate
		}
	}
}

// newSlug returns an opaque identifier for versions, tests, suites and runs.
func newSlug() string {
	return uuid.NewString()
}

// newToken returns an unguessable session or invite token.
func newToken() string {
	return strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
}
