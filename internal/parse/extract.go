package parse

import (
	"regexp"
	"strconv"

	"aical/internal/model"
)

// typeRule pairs a keyword class with its event type; first match wins.
type typeRule struct {
	re *regexp.Regexp
	t  model.EventType
}

var typeRules = []typeRule{
	{regexp.MustCompile(`会议|开会|讨论|评审|站会|例会`), model.TypeMeeting},
	{regexp.MustCompile(`任务|完成|提交|做|写`), model.TypeTask},
	{regexp.MustCompile(`提醒|记得|别忘了`), model.TypeReminder},
	{regexp.MustCompile(`约会|聚餐|看电影|健身|休假|放假|吃饭|逛街`), model.TypePersonal},
}

func classifyType(text string) model.EventType {
	for _, r := range typeRules {
		if r.re.MatchString(text) {
			return r.t
		}
	}
	return model.TypeOther
}

var (
	// 在<location> up to a boundary token. The boundary is consumed by
	// the match but only the minimal non-separator run is captured.
	locationRe = regexp.MustCompile(`在([^\s,，、]+?)(?:讨论|开会|见面|聊|吃|$)`)

	// 和<name> up to a boundary token; the boundary set additionally
	// includes 在 so a following location clause is not swallowed.
	// Only a single attendee is captured this way.
	attendeeRe = regexp.MustCompile(`和([^\s,，、在]+?)(?:在|讨论|开会|见面|聊|吃|$)`)
)

// span marks a half-open byte range of the raw text consumed by a
// matcher, so the title reducer can cut it out.
type span struct{ start, end int }

// extractClause runs re against text and returns the capture plus the
// span covering the introducer and the capture (the boundary token is
// left in place).
func extractClause(re *regexp.Regexp, text string) (string, span, bool) {
	idx := re.FindStringSubmatchIndex(text)
	if idx == nil {
		return "", span{}, false
	}
	return text[idx[2]:idx[3]], span{start: idx[0], end: idx[3]}, true
}

func extractLocation(text string) (string, span, bool) {
	return extractClause(locationRe, text)
}

func extractAttendee(text string) (string, span, bool) {
	return extractClause(attendeeRe, text)
}

var (
	dailyRe        = regexp.MustCompile(`每天`)
	biweeklyRe     = regexp.MustCompile(`每两周`)
	workdayRe      = regexp.MustCompile(`每个工作日|工作日`)
	monthlyDayRe   = regexp.MustCompile(`每月(\d{1,2})号`)
	weeklyRe       = regexp.MustCompile(`每周([一二三四五六日天])?`)
	recurrenceTerm = regexp.MustCompile(`每天|每两周|每个?工作日|每周[一二三四五六日天]?|每月\d{1,2}号`)
)

// extractRecurrence matches the recurrence phrases of the input
// (每天, 每两周, 工作日, 每月N号, 每周X). Absent all of them it
// returns nil.
func extractRecurrence(text string) *model.RecurrenceRule {
	var rule *model.RecurrenceRule

	switch {
	case dailyRe.MatchString(text):
		rule = &model.RecurrenceRule{Freq: model.FreqDaily, Interval: 1}
	case biweeklyRe.MatchString(text):
		rule = &model.RecurrenceRule{Freq: model.FreqWeekly, Interval: 2}
	case workdayRe.MatchString(text):
		rule = &model.RecurrenceRule{Freq: model.FreqWeekly, Interval: 1, ByDay: model.Workdays}
	case monthlyDayRe.MatchString(text):
		m := monthlyDayRe.FindStringSubmatch(text)
		day, _ := strconv.Atoi(m[1])
		rule = &model.RecurrenceRule{Freq: model.FreqMonthly, Interval: 1, ByMonthDay: day}
	case weeklyRe.MatchString(text):
		m := weeklyRe.FindStringSubmatch(text)
		rule = &model.RecurrenceRule{Freq: model.FreqWeekly, Interval: 1}
		if m[1] != "" {
			rule.ByDay = []model.WeekDay{model.WeekDayOf(weekdayChars[m[1]])}
		}
	}

	if rule != nil {
		rule.Normalize()
	}
	return rule
}
