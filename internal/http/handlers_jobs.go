package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"tcontrol/internal/core"
	"tcontrol/internal/ledger"
	applog "tcontrol/internal/log"
)

type jobEconomicsResponse struct {
	GrossIncome        decimal.Decimal `json:"gross_income"`
	CardFee            decimal.Decimal `json:"card_fee"`
	NetProfit          decimal.Decimal `json:"net_profit"`
	TechnicianShare    decimal.Decimal `json:"technician_share"`
	CompanyShare       decimal.Decimal `json:"company_share"`
	TechnicianPayout   decimal.Decimal `json:"technician_payout"`
	CompanyPayout      decimal.Decimal `json:"company_payout"`
	CommissionRateUsed decimal.Decimal `json:"commission_rate_used"`
}

type jobResponse struct {
	ID                string           `json:"id"`
	Client            string           `json:"client"`
	Date              string           `json:"date"`
	Description       string           `json:"description"`
	Transfer          decimal.Decimal  `json:"transfer"`
	Cash              decimal.Decimal  `json:"cash"`
	LinkPayment       decimal.Decimal  `json:"link_payment"`
	ExpenseCompany    decimal.Decimal  `json:"expense_company"`
	ExpenseTech       decimal.Decimal  `json:"expense_tech"`
	AppliedCommission *decimal.Decimal `json:"applied_commission"`
	Channel           string           `json:"channel"`

	Economics jobEconomicsResponse `json:"economics"`
}

func toJobResponse(job core.Job, settings core.BusinessSettings) jobResponse {
	resp := jobResponse{
		ID:             job.ID,
		Client:         job.Client,
		Date:           job.Date.String(),
		Description:    job.Description,
		Transfer:       job.TransferAmount,
		Cash:           job.CashAmount,
		LinkPayment:    job.CardLinkAmount,
		ExpenseCompany: job.CompanyExpense,
		ExpenseTech:    job.TechnicianExpense,
		Channel:        string(job.Channel()),
	}
	if job.AppliedCommissionPct.Valid {
		d := job.AppliedCommissionPct.Decimal
		resp.AppliedCommission = &d
	}

	econ := core.ComputeJobEconomics(job, settings)
	resp.Economics = jobEconomicsResponse{
		GrossIncome:        econ.GrossIncome,
		CardFee:            econ.CardFee,
		NetProfit:          econ.NetProfit,
		TechnicianShare:    econ.TechnicianShare,
		CompanyShare:       econ.CompanyShare,
		TechnicianPayout:   econ.TechnicianPayout,
		CompanyPayout:      econ.CompanyPayout,
		CommissionRateUsed: econ.CommissionRateUsed,
	}
	return resp
}

// parseJobPayload builds a job from the request body. Amount fields are
// coerced leniently: unreadable values become zero.
func parseJobPayload(p *RequestBodyParser) (core.Job, error) {
	if err := p.Parse(); err != nil {
		return core.Job{}, err
	}

	date, err := core.ParseDate(p.Get("date"))
	if err != nil {
		return core.Job{}, err
	}

	return core.Job{
		Client:            p.Get("client"),
		Date:              date,
		Description:       p.Get("description"),
		TransferAmount:    core.ParseAmount(p.Get("transfer")),
		CashAmount:        core.ParseAmount(p.Get("cash")),
		CardLinkAmount:    core.ParseAmount(p.Get("link_payment")),
		CompanyExpense:    core.ParseAmount(p.Get("expense_company")),
		TechnicianExpense: core.ParseAmount(p.Get("expense_tech")),
	}, nil
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListJobs(w, r)
	case http.MethodPost:
		s.handleCreateJob(w, r)
	default:
		requireMethod(w, r, http.MethodGet, http.MethodPost)
	}
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.getJobs(r.Context())
	if err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "List jobs error", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}
	settings, err := s.getSettings(r.Context())
	if err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Get settings error", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load settings")
		return
	}

	// A bare listing returns everything newest first; period or channel
	// parameters narrow it.
	q := r.URL.Query()
	if q.Has("period") || q.Has("channel") {
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
		jobs = core.FilterJobsByPeriod(jobs, period, filter)
	}

	out := make([]jobResponse, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, toJobResponse(job, settings))
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": out})
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	job, err := parseJobPayload(NewRequestBodyParser(r))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid job payload: "+err.Error())
		return
	}

	settings, err := s.getSettings(r.Context())
	if err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Get settings error", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load settings")
		return
	}

	// Freeze the commission rate in effect right now. Later settings
	// changes never touch this job.
	job.AppliedCommissionPct = decimal.NullDecimal{
		Decimal: settings.TechCommissionPct,
		Valid:   true,
	}

	if err := job.Validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	created, err := s.ledger.CreateJob(r.Context(), job)
	if err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Create job error", "error", err, "client", job.Client)
		writeError(w, http.StatusInternalServerError, "failed to save job")
		return
	}

	s.invalidateLedgerCaches()
	s.structLog.LogJobCreated(r.Context(), created.ID, created.Client,
		created.Date.String(), created.GrossIncome().String())
	writeJSON(w, http.StatusCreated, toJobResponse(created, settings))
}

func (s *Server) handleJobByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.handleGetJob(w, r, id)
	case http.MethodPut:
		s.handleUpdateJob(w, r, id)
	case http.MethodDelete:
		s.handleDeleteJob(w, r, id)
	default:
		requireMethod(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request, id string) {
	job, err := s.ledger.GetJob(r.Context(), id)
	if errors.Is(err, ledger.ErrJobNotFound) {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Get job error", "error", err, "id", id)
		writeError(w, http.StatusInternalServerError, "failed to load job")
		return
	}

	settings, err := s.getSettings(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load settings")
		return
	}
	writeJSON(w, http.StatusOK, toJobResponse(job, settings))
}

func (s *Server) handleUpdateJob(w http.ResponseWriter, r *http.Request, id string) {
	existing, err := s.ledger.GetJob(r.Context(), id)
	if errors.Is(err, ledger.ErrJobNotFound) {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Get job error", "error", err, "id", id)
		writeError(w, http.StatusInternalServerError, "failed to load job")
		return
	}

	job, err := parseJobPayload(NewRequestBodyParser(r))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid job payload: "+err.Error())
		return
	}
	job.ID = id
	// Edits never re-freeze the rate.
	job.AppliedCommissionPct = existing.AppliedCommissionPct

	if err := job.Validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if err := s.ledger.UpdateJob(r.Context(), job); err != nil {
		if errors.Is(err, ledger.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Update job error", "error", err, "id", id)
		writeError(w, http.StatusInternalServerError, "failed to update job")
		return
	}

	s.invalidateLedgerCaches()

	settings, err := s.getSettings(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load settings")
		return
	}
	writeJSON(w, http.StatusOK, toJobResponse(job, settings))
}

func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request, id string) {
	if err := s.ledger.DeleteJob(r.Context(), id); err != nil {
		if errors.Is(err, ledger.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Delete job error", "error", err, "id", id)
		writeError(w, http.StatusInternalServerError, "failed to delete job")
		return
	}

	s.invalidateLedgerCaches()
	w.WriteHeader(http.StatusNoContent)
}
