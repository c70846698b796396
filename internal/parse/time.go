package parse

import (
	"regexp"
	"strconv"
)

// dayPeriod is the active time-of-day context of the phrase. At most
// one context is considered active; the morning check takes precedence
// when several words are present.
type dayPeriod int

const (
	periodNone dayPeriod = iota
	periodMorning
	periodAfternoon
	periodEvening
)

var (
	morningRe   = regexp.MustCompile(`早上|上午|凌晨`)
	noonRe      = regexp.MustCompile(`中午`)
	afternoonRe = regexp.MustCompile(`下午`)
	eveningRe   = regexp.MustCompile(`晚上`)

	pointRe    = regexp.MustCompile(`(\d{1,2})点(半)?`)
	rangeRe    = regexp.MustCompile(`(\d{1,2})点.*?到(\d{1,2})点`)
	durationRe = regexp.MustCompile(`(\d+)\s*(分钟|小时)`)
	halfHourRe = regexp.MustCompile(`半小时|半个小时`)
	allDayRe   = regexp.MustCompile(`全天|一整天|休假|放假`)
)

const (
	warnNoTime = "未识别到具体时间，默认为下午2点"

	defaultHour        = 14
	defaultDurationMin = 60
	allDayDurationMin  = 24 * 60
)

// timeSpec is the resolved time-of-day portion of a phrase.
type timeSpec struct {
	Hour        int
	Minute      int
	DurationMin int
	AllDay      bool

	// HasPoint / HasRange record whether an explicit hour token or an
	// explicit range was matched; both feed the confidence score.
	HasPoint bool
	HasRange bool

	Warnings []string
}

func detectPeriod(text string) dayPeriod {
	switch {
	case morningRe.MatchString(text):
		return periodMorning
	case afternoonRe.MatchString(text):
		return periodAfternoon
	case eveningRe.MatchString(text):
		return periodEvening
	default:
		return periodNone
	}
}

// adjustHour applies the context-dependent AM/PM resolution:
// morning context leaves the hour alone; afternoon/evening contexts
// push 1-12 into the PM range; with no context at all, bare 1-6
// default to PM.
func adjustHour(h int, p dayPeriod) int {
	switch {
	case p == periodMorning:
		return h
	case (p == periodAfternoon || p == periodEvening) && h >= 1 && h <= 12:
		return h + 12
	case p == periodNone && h >= 1 && h <= 6:
		return h + 12
	default:
		return h
	}
}

// resolveTime resolves the time-of-day, duration and all-day flag of a
// phrase independently of date resolution. Every unmatched pattern
// degrades to a documented default; this function never fails.
func resolveTime(text string) timeSpec {
	spec := timeSpec{
		Hour:        defaultHour,
		Minute:      0,
		DurationMin: defaultDurationMin,
	}
	period := detectPeriod(text)

	// Explicit single time point ("N点" / "N点半").
	if m := pointRe.FindStringSubmatch(text); m != nil {
		spec.HasPoint = true
		h, _ := strconv.Atoi(m[1])
		spec.Hour = adjustHour(h, period)
		if m[2] != "" {
			spec.Minute = 30
		}
	} else if period == periodMorning {
		spec.Hour = 9
	} else if noonRe.MatchString(text) {
		spec.Hour = 12
	} else if period == periodAfternoon {
		spec.Hour = 14
	} else if period == periodEvening {
		spec.Hour = 19
	} else {
		spec.Warnings = append(spec.Warnings, warnNoTime)
	}

	// Explicit range ("N点...到M点") overrides the single point and any
	// duration computed so far. Both ends pass through the same
	// context adjustment.
	if m := rangeRe.FindStringSubmatch(text); m != nil {
		spec.HasRange = true
		startHour, _ := strconv.Atoi(m[1])
		endHour, _ := strconv.Atoi(m[2])
		spec.Hour = adjustHour(startHour, period)
		spec.DurationMin = (adjustHour(endHour, period) - spec.Hour) * 60
	}

	// Explicit duration overrides the range computation; the bare
	// half-hour phrase applies only when no numeric duration matched.
	if m := durationRe.FindStringSubmatch(text); m != nil {
		v, _ := strconv.Atoi(m[1])
		if m[2] == "小时" {
			spec.DurationMin = v * 60
		} else {
			spec.DurationMin = v
		}
	} else if halfHourRe.MatchString(text) {
		spec.DurationMin = 30
	}

	// All-day keywords take precedence over every time computation.
	if allDayRe.MatchString(text) {
		spec.AllDay = true
		spec.Hour = 0
		spec.Minute = 0
		spec.DurationMin = allDayDurationMin
	}

	return spec
}
