package resolve

import (
	"regexp"
	"strings"
)

var phraseSplit = regexp.MustCompile(`\s+and\s+|\s*&\s*|\s*,\s*`)

func normalizeSpoken(s string) string {
	return strings.TrimRight(strings.ToLower(strings.TrimSpace(s)), ".!?")
}

// matches reports containment in either direction, ignoring case.
func matches(phrase, option string) bool {
	o := strings.ToLower(strings.TrimSpace(option))
	if phrase == "" || o == "" {
		return false
	}
	return strings.Contains(phrase, o) || strings.Contains(o, phrase)
}

// MatchOption returns the first configured option the transcript matches.
func MatchOption(transcript string, options []string) (string, bool) {
	t := normalizeSpoken(transcript)
	for _, o := range options {
		if matches(t, o) {
			return o, true
		}
	}
	return "", false
}

// MatchOptions splits the transcript into phrases and returns every option
// hit by at least one phrase, in configured order and without duplicates.
func MatchOptions(transcript string, options []string) []string {
	var phrases []string
	for _, p := range phraseSplit.Split(normalizeSpoken(transcript), -1) {
		if p = strings.TrimSpace(p); p != "" {
			phrases = append(phrases, p)
		}
	}
	var out []string
	seen := make(map[string]bool, len(options))
	for _, o := range options {
		if seen[o] {
			continue
		}
		for _, p := range phrases {
			if matches(p, o) {
				out = append(out, o)
				seen[o] = true
				break
			}
		}
	}
	return out
}

func resolveSingle(text string, options []string) Decision {
	if o, ok := MatchOption(text, options); ok {
		return Committed(o)
	}
	return Retrying("Please say one of: " + strings.Join(options, ", "))
}

func resolveMulti(text string, options []string) Decision {
	if hits := MatchOptions(text, options); len(hits) > 0 {
		return Committed(strings.Join(hits, ","))
	}
	return Retrying("Please say one or more of: " + strings.Join(options, ", "))
}
