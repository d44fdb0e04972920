package resolve

import (
	"strings"
	"unicode"
)

const phoneDigits = 10

var digitWords = map[string]string{
	"zero": "0", "oh": "0", "one": "1", "two": "2", "three": "3", "four": "4",
	"five": "5", "six": "6", "seven": "7", "eight": "8", "nine": "9",
}

// Digits extracts the dialled digits from an utterance. Spoken digit words
// count, and "double"/"triple" repeat the digit that follows.
func Digits(s string) string {
	var b strings.Builder
	repeat := 1
	tokens := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, tok := range tokens {
		if d, ok := digitWords[tok]; ok {
			b.WriteString(strings.Repeat(d, repeat))
			repeat = 1
			continue
		}
		switch tok {
		case "double":
			repeat = 2
			continue
		case "triple":
			repeat = 3
			continue
		}
		if len(tok) == 1 && tok[0] >= '0' && tok[0] <= '9' {
			b.WriteString(strings.Repeat(tok, repeat))
		} else {
			for _, r := range tok {
				if r >= '0' && r <= '9' {
					b.WriteRune(r)
				}
			}
		}
		repeat = 1
	}
	return b.String()
}

// FormatPhone keeps the last ten digits behind the country code.
func FormatPhone(digits, countryCode string) string {
	if len(digits) > phoneDigits {
		digits = digits[len(digits)-phoneDigits:]
	}
	return "+" + countryCode + digits
}

func (r *Resolver) resolvePhone(utterance, buffer string) Decision {
	digits := buffer + Digits(utterance)
	if len(digits) < phoneDigits {
		return Waiting(digits)
	}
	return Committed(FormatPhone(digits, r.countryCode))
}
