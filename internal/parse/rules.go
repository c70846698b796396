package parse

import (
	"regexp"
	"strconv"
	"time"
)

// dateRule pairs a pattern with its resolver. Rules are evaluated in
// declaration order and the first match wins; precedence is the order
// of the dateRules slice, not scattered control flow.
type dateRule struct {
	name    string
	re      *regexp.Regexp
	resolve func(m []string, ref time.Time) time.Time
}

func addDays(n int) func(m []string, ref time.Time) time.Time {
	return func(_ []string, ref time.Time) time.Time {
		return ref.AddDate(0, 0, n)
	}
}

// weekdayChars maps the Chinese weekday characters to time.Weekday.
// 日 and 天 are both Sunday.
var weekdayChars = map[string]time.Weekday{
	"一": time.Monday,
	"二": time.Tuesday,
	"三": time.Wednesday,
	"四": time.Thursday,
	"五": time.Friday,
	"六": time.Saturday,
	"日": time.Sunday,
	"天": time.Sunday,
}

// dateRules is the date-resolution priority table. 大后天 is listed
// before 后天 so the longer phrase resolves to its own offset instead
// of being shadowed by its suffix.
var dateRules = []dateRule{
	{name: "today", re: regexp.MustCompile(`今天`), resolve: addDays(0)},
	{name: "tomorrow", re: regexp.MustCompile(`明天`), resolve: addDays(1)},
	{name: "day_after_next", re: regexp.MustCompile(`大后天`), resolve: addDays(3)},
	{name: "day_after", re: regexp.MustCompile(`后天`), resolve: addDays(2)},
	{
		name: "next_weekday",
		re:   regexp.MustCompile(`下周([一二三四五六日天])`),
		resolve: func(m []string, ref time.Time) time.Time {
			target := weekdayChars[m[1]]
			// A zero distance becomes a full week so 下周X never
			// resolves to today.
			days := (int(target) - int(ref.Weekday()) + 7) % 7
			if days == 0 {
				days = 7
			}
			return ref.AddDate(0, 0, days)
		},
	},
	{
		name: "month_day",
		re:   regexp.MustCompile(`(\d{1,2})月(\d{1,2})[号日]`),
		resolve: func(m []string, ref time.Time) time.Time {
			month, _ := strconv.Atoi(m[1])
			day, _ := strconv.Atoi(m[2])
			t := time.Date(ref.Year(), time.Month(month), day,
				ref.Hour(), ref.Minute(), ref.Second(), ref.Nanosecond(), ref.Location())
			// Dates already past roll forward to next year.
			if t.Before(ref) {
				t = t.AddDate(1, 0, 0)
			}
			return t
		},
	},
}

const warnNoDate = "未识别到具体日期，默认为今天"

// resolveDate applies the date rule table to the text. When nothing
// matches it defaults to the reference date and reports a warning.
func resolveDate(text string, ref time.Time) (time.Time, []string) {
	for _, r := range dateRules {
		if m := r.re.FindStringSubmatch(text); m != nil {
			return r.resolve(m, ref), nil
		}
	}
	return ref, []string{warnNoDate}
}
