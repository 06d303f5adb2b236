package core

import "github.com/shopspring/decimal"

// JobEconomics is the full monetary breakdown of a single job.
type JobEconomics struct {
	GrossIncome decimal.Decimal
	CardFee     decimal.Decimal
	NetProfit   decimal.Decimal

	TechnicianShare decimal.Decimal
	CompanyShare    decimal.Decimal

	// Payouts are the base shares plus each party's own reimbursement.
	TechnicianPayout decimal.Decimal
	CompanyPayout    decimal.Decimal

	CommissionRateUsed decimal.Decimal
}

// ComputeJobEconomics converts a raw job record into both parties' payouts.
//
// This is the single place the commission formula lives. Every surface
// (lists, summaries, the live form preview, statistics, export) must call
// it rather than re-deriving the arithmetic.
//
// The card fee is charged on the gross income whenever the card-link
// channel carried the payment, using the live fee percentage from settings.
// The commission rate, by contrast, is the percentage frozen on the job at
// creation time; the live settings value is only a fallback for legacy
// records that never had one. Net profit may be negative; no floor is
// applied. No rounding happens here: formatting is a presentation concern.
func ComputeJobEconomics(job Job, settings BusinessSettings) JobEconomics {
	gross := job.GrossIncome()

	fee := decimal.Zero
	if job.CardLinkAmount.IsPositive() {
		fee = gross.Mul(settings.CardFeePct).Div(hundred)
	}

	netOfFee := gross.Sub(fee)
	netProfit := netOfFee.Sub(job.TotalExpense())

	rate := settings.TechCommissionPct
	if job.AppliedCommissionPct.Valid {
		rate = job.AppliedCommissionPct.Decimal
	}

	techShare := netProfit.Mul(rate).Div(hundred)
	companyShare := netProfit.Mul(hundred.Sub(rate)).Div(hundred)

	return JobEconomics{
		GrossIncome:        gross,
		CardFee:            fee,
		NetProfit:          netProfit,
		TechnicianShare:    techShare,
		CompanyShare:       companyShare,
		TechnicianPayout:   techShare.Add(job.TechnicianExpense),
		CompanyPayout:      companyShare.Add(job.CompanyExpense),
		CommissionRateUsed: rate,
	}
}
