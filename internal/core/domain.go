package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	ChannelTransfer IncomeChannel = "transfer"
	ChannelCash     IncomeChannel = "cash"
	ChannelCardLink IncomeChannel = "cardLink"
	ChannelNone     IncomeChannel = "none"
)

type (
	// IncomeChannel identifies which payment channel carried a job's income.
	IncomeChannel string

	// Date is a calendar date with no meaningful time component.
	Date struct {
		time.Time
	}

	// Job is one service engagement. Exactly one of the three income
	// amounts is non-zero (enforced at creation, trusted afterwards).
	Job struct {
		ID          string
		Client      string
		Date        Date
		Description string

		TransferAmount decimal.Decimal
		CashAmount     decimal.Decimal
		CardLinkAmount decimal.Decimal

		CompanyExpense    decimal.Decimal
		TechnicianExpense decimal.Decimal

		// AppliedCommissionPct is frozen at creation time from the then
		// current settings. Invalid means a legacy record with no frozen
		// percentage; readers fall back to the live settings value.
		AppliedCommissionPct decimal.NullDecimal
	}

	// BusinessSettings holds the account-wide split configuration.
	// TechCommissionPct is copied into each new job; CardFeePct is always
	// read live, even for historical jobs.
	BusinessSettings struct {
		TechCommissionPct decimal.Decimal
		CardFeePct        decimal.Decimal
	}
)

var (
	ErrEmptyClient      = errors.New("empty client name")
	ErrZeroDate         = errors.New("date cannot be zero")
	ErrNegativeAmount   = errors.New("negative amount")
	ErrMultipleChannels = errors.New("more than one income channel carries an amount")
	ErrInvalidPercent   = errors.New("percentage must be between 0 and 100")
)

var hundred = decimal.NewFromInt(100)

// NewDate creates a Date from year, month, day at UTC midnight.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates a time to its calendar date in UTC.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

// String formats the date as YYYY-MM-DD, the wire and export format.
func (d Date) String() string {
	return d.Format("2006-01-02")
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrZeroDate
	}
	return nil
}

// GrossIncome is the sum of the three channel amounts. With a well-formed
// job only one of them is non-zero, so this equals the single payment.
func (j Job) GrossIncome() decimal.Decimal {
	return j.TransferAmount.Add(j.CashAmount).Add(j.CardLinkAmount)
}

// Channel reports which income channel carried the job's payment.
// Precedence when more than one amount is set follows the historical
// behavior: card link wins over cash, cash over transfer.
func (j Job) Channel() IncomeChannel {
	switch {
	case j.CardLinkAmount.IsPositive():
		return ChannelCardLink
	case j.CashAmount.IsPositive():
		return ChannelCash
	case j.TransferAmount.IsPositive():
		return ChannelTransfer
	default:
		return ChannelNone
	}
}

// TotalExpense is the combined operating expense both parties fronted.
func (j Job) TotalExpense() decimal.Decimal {
	return j.CompanyExpense.Add(j.TechnicianExpense)
}

// Validate checks the creation-time invariants. It is called when a job
// enters the system; stored jobs are trusted as-is.
func (j Job) Validate() error {
	if len(strings.TrimSpace(j.Client)) == 0 {
		return ErrEmptyClient
	}
	if err := j.Date.Validate(); err != nil {
		return err
	}
	for _, amt := range []decimal.Decimal{
		j.TransferAmount, j.CashAmount, j.CardLinkAmount,
		j.CompanyExpense, j.TechnicianExpense,
	} {
		if amt.IsNegative() {
			return ErrNegativeAmount
		}
	}
	active := 0
	for _, amt := range []decimal.Decimal{j.TransferAmount, j.CashAmount, j.CardLinkAmount} {
		if amt.IsPositive() {
			active++
		}
	}
	if active > 1 {
		return ErrMultipleChannels
	}
	if j.AppliedCommissionPct.Valid {
		if err := validatePercent(j.AppliedCommissionPct.Decimal); err != nil {
			return err
		}
	}
	return nil
}

// DefaultSettings are used when the settings store has no row for the
// account: a 50/50 split and no card fee.
func DefaultSettings() BusinessSettings {
	return BusinessSettings{
		TechCommissionPct: decimal.NewFromInt(50),
		CardFeePct:        decimal.Zero,
	}
}

func (s BusinessSettings) Validate() error {
	if err := validatePercent(s.TechCommissionPct); err != nil {
		return err
	}
	return validatePercent(s.CardFeePct)
}

func validatePercent(p decimal.Decimal) error {
	if p.IsNegative() || p.GreaterThan(hundred) {
		return ErrInvalidPercent
	}
	return nil
}
