package http

import (
	"net/http"

	"github.com/shopspring/decimal"

	"tcontrol/internal/core"
	applog "tcontrol/internal/log"
)

type settingsResponse struct {
	TechCommissionPct decimal.Decimal `json:"tech_commission_pct"`
	CardFeePct        decimal.Decimal `json:"card_fee_pct"`
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleGetSettings(w, r)
	case http.MethodPut:
		s.handleUpdateSettings(w, r)
	default:
		requireMethod(w, r, http.MethodGet, http.MethodPut)
	}
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.getSettings(r.Context())
	if err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Get settings error", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load settings")
		return
	}
	writeJSON(w, http.StatusOK, settingsResponse{
		TechCommissionPct: settings.TechCommissionPct,
		CardFeePct:        settings.CardFeePct,
	})
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid settings payload: "+err.Error())
		return
	}

	// Absent keys keep their stored value so a client can update one
	// percentage without wiping the other.
	settings, err := s.getSettings(r.Context())
	if err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Get settings error", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load settings")
		return
	}
	if p.Has("tech_commission_pct") {
		settings.TechCommissionPct = core.ParsePercent(p.Get("tech_commission_pct"))
	}
	if p.Has("card_fee_pct") {
		settings.CardFeePct = core.ParsePercent(p.Get("card_fee_pct"))
	}
	if err := settings.Validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if err := s.ledger.SaveSettings(r.Context(), settings); err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Save settings error", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save settings")
		return
	}

	s.invalidateLedgerCaches()
	writeJSON(w, http.StatusOK, settingsResponse{
		TechCommissionPct: settings.TechCommissionPct,
		CardFeePct:        settings.CardFeePct,
	})
}
