package resolve

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	timePeriodDots  = regexp.MustCompile(`\b([ap])\.\s*m\.?`)
	timeNoon        = regexp.MustCompile(`(\b12\s*)?\bnoon\b`)
	timeMidnight    = regexp.MustCompile(`(\b12\s*)?\bmidnight\b`)
	timeHours       = regexp.MustCompile(`\b(\d{1,2})\s*hours?\b`)
	timeSplitMinute = regexp.MustCompile(`\b(\d{1,2})\s+(\d{2})\s*([ap]m)\b`)
	timeBarePeriod  = regexp.MustCompile(`(^|[^:\d])(\d{1,2})\s*([ap]m)\b`)
	timeFallback    = regexp.MustCompile(`(\d{1,2})(?::(\d{2}))?\s*([ap]m)?`)
	timeSpaces      = regexp.MustCompile(`\s+`)
	timeHalfPast    = regexp.MustCompile(`\bhalf past (\d{1,2})\b`)
	timeQuarterPast = regexp.MustCompile(`\bquarter past (\d{1,2})\b`)
	timeQuarterTo   = regexp.MustCompile(`\bquarter (?:to|of) (\d{1,2})\b`)
)

var timeWords = []struct {
	re  *regexp.Regexp
	sub string
}{
	{regexp.MustCompile(`\bin the morning\b`), "am"},
	{regexp.MustCompile(`\bin the afternoon\b`), "pm"},
	{regexp.MustCompile(`\bin the evening\b`), "pm"},
	{regexp.MustCompile(`\bat night\b`), "pm"},
	{regexp.MustCompile(`\bo'?\s?clock\b`), ""},
}

var timeNumberWords = []struct {
	re  *regexp.Regexp
	sub string
}{
	{regexp.MustCompile(`\bforty[\s-]five\b`), "45"},
	{regexp.MustCompile(`\bfifteen\b`), "15"},
	{regexp.MustCompile(`\bthirty\b`), "30"},
	{regexp.MustCompile(`\bforty\b`), "40"},
	{regexp.MustCompile(`\bfifty\b`), "50"},
	{regexp.MustCompile(`\btwenty\b`), "20"},
	{regexp.MustCompile(`\beleven\b`), "11"},
	{regexp.MustCompile(`\btwelve\b`), "12"},
	{regexp.MustCompile(`\bten\b`), "10"},
	{regexp.MustCompile(`\bnine\b`), "9"},
	{regexp.MustCompile(`\beight\b`), "8"},
	{regexp.MustCompile(`\bseven\b`), "7"},
	{regexp.MustCompile(`\bsix\b`), "6"},
	{regexp.MustCompile(`\bfive\b`), "5"},
	{regexp.MustCompile(`\bfour\b`), "4"},
	{regexp.MustCompile(`\bthree\b`), "3"},
	{regexp.MustCompile(`\btwo\b`), "2"},
	{regexp.MustCompile(`\bone\b`), "1"},
}

// Tried in order; the first successful parse wins.
var timeLayouts = []string{
	"3:04 pm",
	"3:04pm",
	"15:04",
	"3",
	"15",
	"3pm",
	"1504",
}

// NormalizeTimeText applies the spoken-time substitutions ahead of parsing.
func NormalizeTimeText(s string) string {
	t := strings.ToLower(strings.TrimSpace(s))
	t = timePeriodDots.ReplaceAllString(t, "${1}m")
	t = strings.TrimRight(t, ".!?,")
	for _, w := range timeNumberWords {
		t = w.re.ReplaceAllString(t, w.sub)
	}
	for _, w := range timeWords {
		t = w.re.ReplaceAllString(t, w.sub)
	}
	t = timeHalfPast.ReplaceAllString(t, "${1}:30")
	t = timeQuarterPast.ReplaceAllString(t, "${1}:15")
	t = timeQuarterTo.ReplaceAllStringFunc(t, quarterTo)
	t = timeNoon.ReplaceAllString(t, "12:00 pm")
	t = timeMidnight.ReplaceAllString(t, "12:00 am")
	t = timeHours.ReplaceAllString(t, "${1}:00")
	t = timeSplitMinute.ReplaceAllString(t, "${1}:${2} ${3}")
	t = timeBarePeriod.ReplaceAllString(t, "${1}${2}:00 ${3}")
	t = timeSpaces.ReplaceAllString(t, " ")
	return strings.TrimSpace(t)
}

// quarterTo rewrites "quarter to N" as (N-1):45 on the 12-hour clock.
func quarterTo(m string) string {
	h, err := strconv.Atoi(timeQuarterTo.FindStringSubmatch(m)[1])
	if err != nil || h < 1 || h > 12 {
		return m
	}
	h--
	if h == 0 {
		h = 12
	}
	return fmt.Sprintf("%d:45", h)
}

// ParseTime returns a zero-padded 24-hour "HH:MM".
func ParseTime(s string) (string, bool) {
	t := NormalizeTimeText(s)
	if t == "" {
		return "", false
	}
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, t); err == nil {
			return ts.Format("15:04"), true
		}
	}

	m := timeFallback.FindStringSubmatch(t)
	if m == nil {
		return "", false
	}
	hour, err := strconv.Atoi(m[1])
	if err != nil {
		return "", false
	}
	minute := 0
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
	}
	switch m[3] {
	case "pm":
		if hour < 12 {
			hour += 12
		}
	case "am":
		if hour == 12 {
			hour = 0
		}
	}
	if hour > 23 || minute > 59 {
		return "", false
	}
	return fmt.Sprintf("%02d:%02d", hour, minute), true
}
