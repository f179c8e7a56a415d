// Package topics canonicalizes free-text topic labels so that equivalent
// topics merge under one normalized key.
package topics

import "strings"

// singularExceptions are words that end in "s" but are not plurals. Naive
// s-stripping would corrupt them.
var singularExceptions = map[string]bool{
	"analysis":   true,
	"bias":       true,
	"canvas":     true,
	"chaos":      true,
	"class":      true,
	"consensus":  true,
	"corpus":     true,
	"crisis":     true,
	"diabetes":   true,
	"focus":      true,
	"gas":        true,
	"lens":       true,
	"news":       true,
	"physics":    true,
	"process":    true,
	"series":     true,
	"species":    true,
	"statistics": true,
	"status":     true,
	"stimulus":   true,
	"synthesis":  true,
	"thesis":     true,
}

// exemptSuffixes catch whole families of non-plural s-endings the explicit
// list cannot enumerate.
var exemptSuffixes = []string{"ss", "us", "is", "sis", "ous"}

// Normalize lowercases, trims, collapses internal whitespace, and strips one
// trailing "s" unless the word is too short or a known non-plural. Two labels
// normalize equal iff they denote the same topic.
func Normalize(label string) string {
	s := strings.ToLower(strings.TrimSpace(label))
	s = strings.Join(strings.Fields(s), " ")

	if len(s) <= 3 || !strings.HasSuffix(s, "s") {
		return s
	}
	if singularExceptions[s] {
		return s
	}
	for _, suf := range exemptSuffixes {
		if strings.HasSuffix(s, suf) {
			return s
		}
	}
	return strings.TrimSuffix(s, "s")
}
