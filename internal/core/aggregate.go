package core

import (
	"time"

	"github.com/shopspring/decimal"
)

type (
	// PeriodTotals are the folded engine outputs for a set of jobs.
	PeriodTotals struct {
		GrossIncome      decimal.Decimal
		Cash             decimal.Decimal
		TechnicianPayout decimal.Decimal
		Expense          decimal.Decimal

		// Balance is TechnicianPayout minus Cash: positive means the
		// company owes the technician, negative the other way around,
		// zero means settled. Cash income sits in the technician's
		// pocket while its split benefits both parties, which is why
		// this is the number the two settle against.
		Balance decimal.Decimal

		JobCount int
	}

	// MonthTotal is one point of the rolling trend.
	MonthTotal struct {
		Year  int
		Month time.Month
		// Label is the Spanish short month name shown on the chart.
		Label            string
		TechnicianPayout decimal.Decimal
	}

	// AnnualStats summarizes a full calendar year.
	AnnualStats struct {
		Year             int
		GrossIncome      decimal.Decimal
		TechnicianPayout decimal.Decimal
		JobCount         int
	}
)

var spanishShortMonths = [...]string{
	"ene", "feb", "mar", "abr", "may", "jun",
	"jul", "ago", "sep", "oct", "nov", "dic",
}

// Aggregate folds per-job engine results into period totals. An empty job
// list yields all-zero totals and a zero balance.
func Aggregate(jobs []Job, settings BusinessSettings) PeriodTotals {
	t := PeriodTotals{
		GrossIncome:      decimal.Zero,
		Cash:             decimal.Zero,
		TechnicianPayout: decimal.Zero,
		Expense:          decimal.Zero,
		Balance:          decimal.Zero,
	}
	for _, j := range jobs {
		econ := ComputeJobEconomics(j, settings)
		t.GrossIncome = t.GrossIncome.Add(econ.GrossIncome)
		t.Cash = t.Cash.Add(j.CashAmount)
		t.TechnicianPayout = t.TechnicianPayout.Add(econ.TechnicianPayout)
		t.Expense = t.Expense.Add(j.TotalExpense())
		t.JobCount++
	}
	t.Balance = t.TechnicianPayout.Sub(t.Cash)
	return t
}

// MonthlyTrend computes the technician payout for each of the six calendar
// months ending at ref's month, oldest first.
func MonthlyTrend(jobs []Job, settings BusinessSettings, ref Date) []MonthTotal {
	const months = 6
	out := make([]MonthTotal, 0, months)
	for i := months - 1; i >= 0; i-- {
		anchor := time.Date(ref.Year(), ref.Time.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -i, 0)
		period := MonthPeriod(anchor.Year(), anchor.Month())
		totals := Aggregate(FilterJobsByPeriod(jobs, period, FilterAll), settings)
		out = append(out, MonthTotal{
			Year:             anchor.Year(),
			Month:            anchor.Month(),
			Label:            spanishShortMonths[anchor.Month()-1],
			TechnicianPayout: totals.TechnicianPayout,
		})
	}
	return out
}

// AnnualSummary aggregates a whole calendar year.
func AnnualSummary(jobs []Job, settings BusinessSettings, year int) AnnualStats {
	totals := Aggregate(FilterJobsByPeriod(jobs, YearPeriod(year), FilterAll), settings)
	return AnnualStats{
		Year:             year,
		GrossIncome:      totals.GrossIncome,
		TechnicianPayout: totals.TechnicianPayout,
		JobCount:         totals.JobCount,
	}
}
