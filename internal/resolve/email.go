package resolve

import (
	"regexp"
	"strings"
)

var (
	emailPrefix = regexp.MustCompile(`^(my\s*)?(e-?mail(\s*(address|id))?\s*is\s*)`)
	emailValid  = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	emailSpaces = regexp.MustCompile(`\s+`)
)

// Applied in order to the space-padded, lowercased utterance.
var emailSpoken = []struct{ from, to string }{
	{" at the gmail dot com ", "@gmail.com "},
	{" at the gmail ", "@gmail.com "},
	{" gmail logo ", "@gmail.com "},
	{" at ", "@"},
	{" dot ", "."},
	{" underscore ", "_"},
	{" dash ", "-"},
	{" hyphen ", "-"},
	{" space ", ""},
}

var bareProviders = []string{"gmail.com", "yahoo.com", "outlook.com"}

// NormalizeEmail rewrites a spoken address and reports whether the result is
// a syntactically valid email.
func NormalizeEmail(s string) (string, bool) {
	t := strings.ToLower(strings.TrimSpace(s))
	t = emailPrefix.ReplaceAllString(t, "")
	t = " " + t + " "
	for _, r := range emailSpoken {
		t = strings.ReplaceAll(t, r.from, r.to)
	}
	t = emailSpaces.ReplaceAllString(t, "")
	t = strings.TrimRight(t, ".,!?")
	if !strings.Contains(t, "@") {
		for _, p := range bareProviders {
			if strings.HasSuffix(t, p) && len(t) > len(p) {
				t = t[:len(t)-len(p)] + "@" + p
				break
			}
		}
	}
	return t, IsEmail(t)
}

func IsEmail(s string) bool { return emailValid.MatchString(s) }

// resolveEmail tries the latest utterance alone, then the whole buffer.
func resolveEmail(utterance, buffer string) Decision {
	joined := strings.TrimSpace(buffer + " " + utterance)
	if e, ok := NormalizeEmail(utterance); ok {
		return Committed(e)
	}
	if e, ok := NormalizeEmail(joined); ok {
		return Committed(e)
	}
	return Waiting(joined)
}
