package recur

import (
	"fmt"
	"strings"

	"aical/internal/model"
)

var weekDayNames = map[model.WeekDay]string{
	model.Monday:    "周一",
	model.Tuesday:   "周二",
	model.Wednesday: "周三",
	model.Thursday:  "周四",
	model.Friday:    "周五",
	model.Saturday:  "周六",
	model.Sunday:    "周日",
}

// Describe renders a recurrence rule as a human-readable Chinese
// phrase (每天, 每个工作日, 每周一、周三, 每月5号, ...).
func Describe(rule model.RecurrenceRule) string {
	rule.Normalize()

	switch rule.Freq {
	case model.FreqDaily:
		if rule.Interval == 1 {
			return "每天"
		}
		return fmt.Sprintf("每%d天", rule.Interval)

	case model.FreqWeekly:
		if len(rule.ByDay) > 0 {
			if isWorkdaySet(rule.ByDay) {
				return "每个工作日"
			}
			names := make([]string, 0, len(rule.ByDay))
			for _, d := range rule.ByDay {
				names = append(names, weekDayNames[d])
			}
			return "每" + strings.Join(names, "、")
		}
		if rule.Interval == 1 {
			return "每周"
		}
		return fmt.Sprintf("每%d周", rule.Interval)

	case model.FreqMonthly:
		if rule.ByMonthDay != 0 {
			return fmt.Sprintf("每月%d号", rule.ByMonthDay)
		}
		if rule.Interval == 1 {
			return "每月"
		}
		return fmt.Sprintf("每%d个月", rule.Interval)

	case model.FreqYearly:
		if rule.Interval == 1 {
			return "每年"
		}
		return fmt.Sprintf("每%d年", rule.Interval)
	}

	return "重复"
}

func isWorkdaySet(days []model.WeekDay) bool {
	if len(days) != 5 {
		return false
	}
	seen := make(map[model.WeekDay]bool, len(days))
	for _, d := range days {
		seen[d] = true
	}
	for _, d := range model.Workdays {
		if !seen[d] {
			return false
		}
	}
	return true
}
