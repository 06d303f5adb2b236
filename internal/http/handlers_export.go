package http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"tcontrol/internal/core"
	"tcontrol/internal/export"
	applog "tcontrol/internal/log"
)

// handleExport streams the filtered ledger as a downloadable report.
// ?format=csv (default) or xlsx; the period and channel parameters work
// the same way as on the job listing, with the extra period=all scope
// covering the complete history.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "csv"
	}
	if format != "csv" && format != "xlsx" {
		writeError(w, http.StatusBadRequest, "unsupported format: "+format)
		return
	}

	fullHistory := strings.TrimSpace(r.URL.Query().Get("period")) == "all"

	filter, err := parseChannelFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	jobs, err := s.getJobs(r.Context())
	if err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Export load error", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load ledger")
		return
	}

	var filtered []core.Job
	if fullHistory {
		filtered = core.FilterJobsByChannel(jobs, filter)
	} else {
		period, err := parsePeriod(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		filtered = core.FilterJobsByPeriod(jobs, period, filter)
	}

	var (
		body        []byte
		contentType string
	)
	switch format {
	case "csv":
		body, err = export.JobsToCSV(filtered)
		contentType = "text/csv; charset=utf-8"
	case "xlsx":
		body, err = export.JobsToXLSX(filtered)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	if errors.Is(err, export.ErrNoJobs) {
		writeError(w, http.StatusNotFound, "no jobs in the selected period")
		return
	}
	if err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Export build error", "error", err, "format", format)
		writeError(w, http.StatusInternalServerError, "failed to build export")
		return
	}

	filename := exportFilename(fullHistory, filter, format)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

func exportFilename(fullHistory bool, filter core.ChannelFilter, format string) string {
	if fullHistory {
		return fmt.Sprintf("reporte_historico_completo_%s.%s", time.Now().Format("2006-01-02"), format)
	}
	suffix := "todos"
	switch filter {
	case core.FilterCash:
		suffix = "efectivo"
	case core.FilterTransfer:
		suffix = "transferencia"
	case core.FilterCardLink:
		suffix = "link"
	case core.FilterPending:
		suffix = "pendientes"
	}
	return fmt.Sprintf("reporte_%s_%s.%s", suffix, time.Now().Format("2006-01-02"), format)
}
