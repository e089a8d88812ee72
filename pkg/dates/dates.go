// Package dates normalizes the site's human-readable timestamps into
// canonical instants and evaluates inclusive date-range filters.
package dates

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Month-name table covering the site's Czech locale plus English, keyed by
// the first three letters in both accented and ASCII-folded forms.
var monthTable = map[string]time.Month{
	"led": time.January, "úno": time.February, "uno": time.February,
	"bře": time.March, "bre": time.March, "dub": time.April,
	"kvě": time.May, "kve": time.May, "čvn": time.June, "cvn": time.June,
	"čvc": time.July, "cvc": time.July, "srp": time.August,
	"zář": time.September, "zar": time.September,
	"říj": time.October, "rij": time.October,
	"lis": time.November, "pro": time.December,
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

var asciiFold = map[rune]rune{
	'á': 'a', 'č': 'c', 'ď': 'd', 'é': 'e', 'ě': 'e', 'í': 'i', 'ň': 'n',
	'ó': 'o', 'ř': 'r', 'š': 's', 'ť': 't', 'ú': 'u', 'ů': 'u', 'ý': 'y',
	'ž': 'z',
}

var (
	// "Month Day, Year Hour:Minute dopoledne/odpoledne"
	monthFirstPattern = regexp.MustCompile(`(?i)([\p{L}]{3,})\s+(\d{1,2}),?\s*(\d{4})\s+(\d{1,2}):(\d{2})\s*(dopoledne|odpoledne)`)
	// "Day. Month Year Hour:Minute"
	dayFirstPattern = regexp.MustCompile(`(?i)(\d{1,2})\.\s*([\p{L}]{3,})\s+(\d{4})\s+(\d{1,2}):(\d{2})`)

	dateInputPattern = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})$`)
	connectiveWords  = regexp.MustCompile(`(?i)\s+(v|at)\s+`)
)

// Generic fallback layouts tried after the locale-specific patterns.
var fallbackLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"Jan 2, 2006 15:04",
	"January 2, 2006 15:04",
	"2 Jan 2006 15:04",
	"02.01.2006 15:04",
}

func normalizeMonth(name string) (time.Month, bool) {
	runes := []rune(strings.ToLower(name))
	if len(runes) < 3 {
		return 0, false
	}
	key := string(runes[:3])
	if m, ok := monthTable[key]; ok {
		return m, true
	}
	folded := strings.Map(func(r rune) rune {
		if f, ok := asciiFold[r]; ok {
			return f
		}
		return r
	}, key)
	if m, ok := monthTable[folded]; ok {
		return m, true
	}
	return 0, false
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// parseLocale matches the two locale-specific layouts and returns the
// component values. The 12-hour marker is normalized to 24-hour form:
// odpoledne adds 12 hours unless the value is already 12 or later,
// dopoledne maps 12 back to 0.
func parseLocale(raw string) (time.Time, bool) {
	normalized := collapseSpaces(strings.TrimSpace(raw))

	if m := monthFirstPattern.FindStringSubmatch(normalized); m != nil {
		mon, ok := normalizeMonth(m[1])
		if ok {
			day, _ := strconv.Atoi(m[2])
			year, _ := strconv.Atoi(m[3])
			hour, _ := strconv.Atoi(m[4])
			min, _ := strconv.Atoi(m[5])
			switch strings.ToLower(m[6]) {
			case "odpoledne":
				if hour < 12 {
					hour += 12
				}
			case "dopoledne":
				if hour == 12 {
					hour = 0
				}
			}
			return buildTime(year, mon, day, hour, min)
		}
	}

	if m := dayFirstPattern.FindStringSubmatch(normalized); m != nil {
		mon, ok := normalizeMonth(m[2])
		if ok {
			day, _ := strconv.Atoi(m[1])
			year, _ := strconv.Atoi(m[3])
			hour, _ := strconv.Atoi(m[4])
			min, _ := strconv.Atoi(m[5])
			return buildTime(year, mon, day, hour, min)
		}
	}

	return time.Time{}, false
}

func buildTime(year int, mon time.Month, day, hour, min int) (time.Time, bool) {
	t := time.Date(year, mon, day, hour, min, 0, 0, time.Local)
	// time.Date normalizes out-of-range components; reject anything that moved
	if t.Year() != year || t.Month() != mon || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

// ParseTimestamp parses a heterogeneous human-readable timestamp into an
// instant. It tries the locale-specific layouts first, then strips
// connective words and attempts generic parsing. Returns false when nothing
// matches.
func ParseTimestamp(raw string) (time.Time, bool) {
	if strings.TrimSpace(raw) == "" {
		return time.Time{}, false
	}

	if t, ok := parseLocale(raw); ok {
		return t, true
	}

	cleaned := collapseSpaces(connectiveWords.ReplaceAllString(raw, " "))
	for _, layout := range fallbackLayouts {
		if t, err := time.ParseInLocation(layout, cleaned, time.Local); err == nil {
			return t, true
		}
	}

	return time.Time{}, false
}

// CanonicalStamp renders a raw site timestamp as "YYYY-MM-DD HH.MM", the
// form used for human-readable asset base names. Returns false when the raw
// value does not match a locale layout.
func CanonicalStamp(raw string) (string, bool) {
	t, ok := parseLocale(raw)
	if !ok {
		return "", false
	}
	return t.Format("2006-01-02 15.04"), true
}

// Filter is an inclusive publication-date range. A nil *Filter, or one with
// both bounds absent, matches everything.
type Filter struct {
	From *time.Time
	To   *time.Time
}

// parseDateInput parses a YYYY-MM-DD bound as start or end of day.
func parseDateInput(value string, endOfDay bool) *time.Time {
	m := dateInputPattern.FindStringSubmatch(value)
	if m == nil {
		return nil
	}
	year, _ := strconv.Atoi(m[1])
	mon, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])

	var t time.Time
	if endOfDay {
		t = time.Date(year, time.Month(mon), day, 23, 59, 59, 999000000, time.Local)
	} else {
		t = time.Date(year, time.Month(mon), day, 0, 0, 0, 0, time.Local)
	}
	return &t
}

// BuildFilter constructs a date filter from two YYYY-MM-DD strings. Returns
// nil when both are absent or malformed, and also when the range is
// inverted: from > to degrades to "no filter" rather than an error.
func BuildFilter(fromStr, toStr string) *Filter {
	from := parseDateInput(fromStr, false)
	to := parseDateInput(toStr, true)
	if from == nil && to == nil {
		return nil
	}
	if from != nil && to != nil && to.Before(*from) {
		return nil
	}
	return &Filter{From: from, To: to}
}

// Matches reports whether the instant falls inside the filter. Unknown
// instants (known == false) always match: a post is never excluded on
// missing data.
func (f *Filter) Matches(t time.Time, known bool) bool {
	if f == nil || (f.From == nil && f.To == nil) {
		return true
	}
	if !known {
		return true
	}
	if f.From != nil && t.Before(*f.From) {
		return false
	}
	if f.To != nil && t.After(*f.To) {
		return false
	}
	return true
}

// Active reports whether the filter has at least one bound.
func (f *Filter) Active() bool {
	return f != nil && (f.From != nil || f.To != nil)
}

// String renders the filter for log output.
func (f *Filter) String() string {
	if !f.Active() {
		return "no filter"
	}
	from, to := "open", "open"
	if f.From != nil {
		from = f.From.Format("2006-01-02")
	}
	if f.To != nil {
		to = f.To.Format("2006-01-02")
	}
	return fmt.Sprintf("%s .. %s", from, to)
}

// Ordered selector lists for locating a post's timestamp. The markup varies
// between site versions, so each lookup walks the candidates in priority
// order.
var (
	cardSelectors = []string{
		".post", ".post-card", ".section.for-single_post",
		".for-single_post.section", "[data-post-id]",
	}
	stampSelectors = []string{
		".section-title_date", ".post-date", ".post-date a",
		"time", `[data-role="timestamp"]`, "[datetime]",
	}
)

func stampFrom(scope *goquery.Selection) (time.Time, bool) {
	for _, sel := range stampSelectors {
		el := scope.Find(sel).First()
		if el.Length() == 0 {
			continue
		}
		raw, ok := el.Attr("datetime")
		if !ok || raw == "" {
			raw, ok = el.Attr("data-datetime")
		}
		if !ok || raw == "" {
			raw = el.Text()
		}
		if t, ok := ParseTimestamp(raw); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

// FromElement resolves a post date from structural hints around an anchor:
// the closest ancestor matching a post-card pattern, then a timestamp
// element within it.
func FromElement(el *goquery.Selection) (time.Time, bool) {
	if el == nil || el.Length() == 0 {
		return time.Time{}, false
	}

	card := el
	for _, sel := range cardSelectors {
		if found := el.Closest(sel); found.Length() > 0 {
			card = found
			break
		}
	}

	return stampFrom(card)
}

// FromDocument resolves a post date from a detail document.
func FromDocument(doc *goquery.Document) (time.Time, bool) {
	if doc == nil {
		return time.Time{}, false
	}
	return stampFrom(doc.Selection)
}

// RawStamp returns the first raw timestamp text found in the document,
// before parsing. Used to derive human-readable titles.
func RawStamp(doc *goquery.Document) (string, bool) {
	for _, sel := range stampSelectors {
		el := doc.Find(sel).First()
		if el.Length() == 0 {
			continue
		}
		if text := strings.TrimSpace(el.Text()); text != "" {
			return text, true
		}
	}
	return "", false
}
