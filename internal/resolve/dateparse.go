package resolve

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

var ordinalUnits = map[string]int{
	"first": 1, "second": 2, "third": 3, "fourth": 4, "fifth": 5,
	"sixth": 6, "seventh": 7, "eighth": 8, "ninth": 9,
}

var ordinalWords = map[string]int{
	"tenth": 10, "eleventh": 11, "twelfth": 12, "thirteenth": 13, "fourteenth": 14,
	"fifteenth": 15, "sixteenth": 16, "seventeenth": 17, "eighteenth": 18,
	"nineteenth": 19, "twentieth": 20, "thirtieth": 30,
}

var (
	dateCompoundOrdinal = regexp.MustCompile(`\b(twenty|thirty)[\s-]+(first|second|third|fourth|fifth|sixth|seventh|eighth|ninth)\b`)
	dateOrdinalWord     = regexp.MustCompile(`\b(first|second|third|fourth|fifth|sixth|seventh|eighth|ninth|tenth|eleventh|twelfth|thirteenth|fourteenth|fifteenth|sixteenth|seventeenth|eighteenth|nineteenth|twentieth|thirtieth)\b`)
	dateOrdinalSuffix   = regexp.MustCompile(`\b(\d{1,2})(st|nd|rd|th)\b`)
	dateFiller          = regexp.MustCompile(`\b(on|the|of|day|date|is|it's|its|my|birthday)\b`)
	dateWeekday         = regexp.MustCompile(`\b(monday|tuesday|wednesday|thursday|friday|saturday|sunday)\b`)
	dateSpaces          = regexp.MustCompile(`\s+`)
)

var dateLayoutsWithYear = []string{
	"2 January 2006",
	"January 2 2006",
	"2 Jan 2006",
	"Jan 2 2006",
	"2006-01-02",
	"2/1/2006",
	"2-1-2006",
	"2.1.2006",
	"1/2/2006",
	"January 2006",
}

var dateLayoutsNoYear = []string{
	"2 January",
	"January 2",
	"2 Jan",
	"Jan 2",
	"2/1",
	"2-1",
}

// NormalizeDateText rewrites spoken ordinals as numbers and drops filler words.
func NormalizeDateText(s string) string {
	t := strings.ToLower(strings.TrimSpace(s))
	t = strings.TrimRight(t, ".!?")
	t = strings.ReplaceAll(t, ",", " ")
	t = strings.ReplaceAll(t, "sept ", "sep ")
	t = dateCompoundOrdinal.ReplaceAllStringFunc(t, func(m string) string {
		parts := dateCompoundOrdinal.FindStringSubmatch(m)
		tens := 20
		if parts[1] == "thirty" {
			tens = 30
		}
		return strconv.Itoa(tens + ordinalUnits[parts[2]])
	})
	t = dateOrdinalWord.ReplaceAllStringFunc(t, func(m string) string {
		if n, ok := ordinalUnits[m]; ok {
			return strconv.Itoa(n)
		}
		return strconv.Itoa(ordinalWords[m])
	})
	t = dateOrdinalSuffix.ReplaceAllString(t, "${1}")
	t = dateWeekday.ReplaceAllString(t, " ")
	t = dateFiller.ReplaceAllString(t, " ")
	t = dateSpaces.ReplaceAllString(t, " ")
	return strings.TrimSpace(t)
}

func relativeDay(t string, now time.Time) (time.Time, bool) {
	switch {
	case strings.Contains(t, "day after tomorrow"):
		return now.AddDate(0, 0, 2), true
	case strings.Contains(t, "day before yesterday"):
		return now.AddDate(0, 0, -2), true
	case strings.Contains(t, "tomorrow"):
		return now.AddDate(0, 0, 1), true
	case strings.Contains(t, "yesterday"):
		return now.AddDate(0, 0, -1), true
	case strings.Contains(t, "today"):
		return now, true
	}
	return time.Time{}, false
}

// ParseDate interprets a spoken date relative to now and returns "YYYY-MM-DD".
// Day-before-month is preferred for ambiguous numeric dates and a missing
// year defaults to now's year.
func ParseDate(s string, now time.Time) (string, bool) {
	raw := strings.ToLower(strings.TrimSpace(s))
	if raw == "" {
		return "", false
	}
	if d, ok := relativeDay(raw, now); ok {
		return d.Format("2006-01-02"), true
	}

	t := NormalizeDateText(raw)
	if t == "" {
		return "", false
	}
	for _, layout := range dateLayoutsWithYear {
		if d, err := time.Parse(layout, t); err == nil {
			return d.Format("2006-01-02"), true
		}
	}
	for _, layout := range dateLayoutsNoYear {
		if d, err := time.Parse(layout, t); err == nil {
			full := time.Date(now.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
			if full.Day() != d.Day() {
				return "", false
			}
			return full.Format("2006-01-02"), true
		}
	}

	d, err := dateparse.ParseAny(t, dateparse.PreferMonthFirst(false))
	if err != nil {
		return "", false
	}
	if d.Year() == 0 {
		d = time.Date(now.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	}
	return d.Format("2006-01-02"), true
}
