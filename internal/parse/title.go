package parse

import (
	"regexp"
	"sort"
	"strings"
)

// DefaultTitle is substituted when stripping every consumed token
// leaves nothing behind.
const DefaultTitle = "新日程"

// titleStrips are the token patterns removed from the raw text, in
// order: date tokens, time-of-day words, the range tail before bare
// hour tokens (so no dangling 到 survives), durations, all-day markers
// and recurrence phrases.
var titleStrips = []*regexp.Regexp{
	regexp.MustCompile(`今天|明天|大后天|后天`),
	regexp.MustCompile(`下周[一二三四五六日天]`),
	regexp.MustCompile(`\d{1,2}月\d{1,2}[号日]`),
	regexp.MustCompile(`早上|上午|中午|下午|晚上|凌晨`),
	regexp.MustCompile(`到\d{1,2}点(半)?`),
	regexp.MustCompile(`\d{1,2}点(半)?`),
	regexp.MustCompile(`\d+\s*(分钟|小时)`),
	regexp.MustCompile(`半小时|半个小时`),
	regexp.MustCompile(`全天|一整天`),
	recurrenceTerm,
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// reduceTitle strips every consumed token from the raw phrase: first
// the location/attendee clause spans (cut on the raw string so the
// offsets stay valid), then the token patterns, a leftover leading
// connector, and finally all whitespace.
func reduceTitle(text string, clauses []span) string {
	cut := make([]span, 0, len(clauses))
	cut = append(cut, clauses...)
	sort.Slice(cut, func(i, j int) bool { return cut[i].start > cut[j].start })

	t := text
	for _, s := range cut {
		t = t[:s.start] + t[s.end:]
	}

	for _, re := range titleStrips {
		t = re.ReplaceAllString(t, "")
	}

	t = strings.TrimSpace(t)
	t = strings.TrimPrefix(t, "到")
	t = strings.TrimPrefix(t, "至")
	t = whitespaceRe.ReplaceAllString(t, "")

	if t == "" {
		return DefaultTitle
	}
	return t
}
