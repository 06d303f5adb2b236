package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"tcontrol/internal/core"
	applog "tcontrol/internal/log"
)

type summaryResponse struct {
	PeriodStart      string          `json:"period_start"`
	PeriodEnd        string          `json:"period_end"`
	JobCount         int             `json:"job_count"`
	GrossIncome      decimal.Decimal `json:"gross_income"`
	Cash             decimal.Decimal `json:"cash"`
	Expenses         decimal.Decimal `json:"expenses"`
	TechnicianPayout decimal.Decimal `json:"technician_payout"`
	Balance          decimal.Decimal `json:"balance"`
}

type trendPointResponse struct {
	Year             int             `json:"year"`
	Month            int             `json:"month"`
	Label            string          `json:"label"`
	TechnicianPayout decimal.Decimal `json:"technician_payout"`
}

type annualResponse struct {
	Year             int             `json:"year"`
	JobCount         int             `json:"job_count"`
	GrossIncome      decimal.Decimal `json:"gross_income"`
	TechnicianPayout decimal.Decimal `json:"technician_payout"`
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	period, err := parsePeriod(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	filter, err := parseChannelFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	jobs, settings, err := s.ledgerSnapshot(r.Context())
	if err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Summary snapshot error", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load ledger")
		return
	}

	totals := core.Aggregate(core.FilterJobsByPeriod(jobs, period, filter), settings)
	start, end := period.Bounds()

	writeJSON(w, http.StatusOK, summaryResponse{
		PeriodStart:      start.String(),
		PeriodEnd:        end.String(),
		JobCount:         totals.JobCount,
		GrossIncome:      totals.GrossIncome,
		Cash:             totals.Cash,
		Expenses:         totals.Expense,
		TechnicianPayout: totals.TechnicianPayout,
		Balance:          totals.Balance,
	})
}

func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	ref := core.DateOf(time.Now())
	if raw := r.URL.Query().Get("until"); raw != "" {
		parsed, err := core.ParseDate(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid until date: "+raw)
			return
		}
		ref = parsed
	}

	jobs, settings, err := s.ledgerSnapshot(r.Context())
	if err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Trend snapshot error", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load ledger")
		return
	}

	trend := core.MonthlyTrend(jobs, settings, ref)
	out := make([]trendPointResponse, 0, len(trend))
	for _, p := range trend {
		out = append(out, trendPointResponse{
			Year:             p.Year,
			Month:            int(p.Month),
			Label:            p.Label,
			TechnicianPayout: p.TechnicianPayout,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"months": out})
}

func (s *Server) handleAnnual(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	year := time.Now().Year()
	if raw := r.URL.Query().Get("year"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "invalid year: "+raw)
			return
		}
		year = parsed
	}

	jobs, settings, err := s.ledgerSnapshot(r.Context())
	if err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Annual snapshot error", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load ledger")
		return
	}

	stats := core.AnnualSummary(jobs, settings, year)
	writeJSON(w, http.StatusOK, annualResponse{
		Year:             stats.Year,
		JobCount:         stats.JobCount,
		GrossIncome:      stats.GrossIncome,
		TechnicianPayout: stats.TechnicianPayout,
	})
}

// ledgerSnapshot fetches jobs and settings together, both through the caches.
func (s *Server) ledgerSnapshot(ctx context.Context) ([]core.Job, core.BusinessSettings, error) {
	jobs, err := s.getJobs(ctx)
	if err != nil {
		return nil, core.BusinessSettings{}, err
	}
	settings, err := s.getSettings(ctx)
	if err != nil {
		return nil, core.BusinessSettings{}, err
	}
	return jobs, settings, nil
}
