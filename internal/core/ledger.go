package core

import (
	"sort"
	"time"
)

const (
	FilterAll      ChannelFilter = "all"
	FilterCash     ChannelFilter = "cash"
	FilterTransfer ChannelFilter = "transfer"
	FilterCardLink ChannelFilter = "cardLink"
	// FilterPending selects jobs whose gross income is exactly zero:
	// work that has been recorded but not yet paid.
	FilterPending ChannelFilter = "pending"
)

type (
	// ChannelFilter narrows a period's jobs by payment channel or status.
	ChannelFilter string

	periodKind int

	// Period describes a span of calendar time: a month, an ISO week
	// (Monday through Sunday), or a whole year.
	Period struct {
		kind periodKind

		year  int
		month time.Month

		weekStart Date
		weekEnd   Date
	}
)

const (
	periodMonth periodKind = iota
	periodWeek
	periodYear
)

// MonthPeriod covers one calendar month.
func MonthPeriod(year int, month time.Month) Period {
	return Period{kind: periodMonth, year: year, month: month}
}

// YearPeriod covers one calendar year.
func YearPeriod(year int) Period {
	return Period{kind: periodYear, year: year}
}

// WeekPeriod covers the Monday-through-Sunday week containing ref.
func WeekPeriod(ref Date) Period {
	// time.Weekday has Sunday as 0; shift so Monday is 0.
	back := (int(ref.Weekday()) + 6) % 7
	start := DateOf(ref.AddDate(0, 0, -back))
	end := DateOf(start.AddDate(0, 0, 6))
	return Period{kind: periodWeek, weekStart: start, weekEnd: end}
}

// Bounds returns the first and last calendar date of the period.
func (p Period) Bounds() (Date, Date) {
	switch p.kind {
	case periodMonth:
		start := NewDate(p.year, p.month, 1)
		return start, DateOf(start.AddDate(0, 1, -1))
	case periodWeek:
		return p.weekStart, p.weekEnd
	default:
		return NewDate(p.year, time.January, 1), NewDate(p.year, time.December, 31)
	}
}

// Contains reports whether the date falls inside the period.
func (p Period) Contains(d Date) bool {
	start, end := p.Bounds()
	return !d.Before(start.Time) && !d.After(end.Time)
}

// FilterJobsByPeriod returns the jobs dated inside the period, optionally
// narrowed by channel, sorted by date descending. The sort is stable so
// same-day jobs keep their insertion order.
func FilterJobsByPeriod(jobs []Job, period Period, filter ChannelFilter) []Job {
	out := make([]Job, 0, len(jobs))
	for _, j := range jobs {
		if !period.Contains(j.Date) {
			continue
		}
		if matchesChannel(j, filter) {
			out = append(out, j)
		}
	}
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].Date.After(out[b].Date.Time)
	})
	return out
}

// FilterJobsByChannel narrows the whole history by channel only, with
// the same ordering guarantees as FilterJobsByPeriod. Used by the
// full-history export.
func FilterJobsByChannel(jobs []Job, filter ChannelFilter) []Job {
	out := make([]Job, 0, len(jobs))
	for _, j := range jobs {
		if matchesChannel(j, filter) {
			out = append(out, j)
		}
	}
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].Date.After(out[b].Date.Time)
	})
	return out
}

func matchesChannel(j Job, filter ChannelFilter) bool {
	switch filter {
	case FilterCash:
		return j.CashAmount.IsPositive()
	case FilterTransfer:
		return j.TransferAmount.IsPositive()
	case FilterCardLink:
		return j.CardLinkAmount.IsPositive()
	case FilterPending:
		return j.GrossIncome().IsZero()
	default:
		// FilterAll and unknown values pass everything through.
		return true
	}
}
