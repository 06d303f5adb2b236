package http

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tcontrol/internal/core"
)

// writeJSON serializes v with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// requireMethod writes a 405 and returns false when the request method
// is not one of the allowed ones.
func requireMethod(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	for _, m := range methods {
		if r.Method == m {
			return true
		}
	}
	w.Header().Set("Allow", strings.Join(methods, ", "))
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	return false
}

// parsePeriod builds a period from query parameters. The period
// parameter selects the shape: "month" (year+month), "week" (date
// anchor), "year" (year). Missing parts default to the current date.
func parsePeriod(r *http.Request) (core.Period, error) {
	q := r.URL.Query()
	now := time.Now()

	switch strings.TrimSpace(q.Get("period")) {
	case "", "month":
		year, month := now.Year(), now.Month()
		if v := strings.TrimSpace(q.Get("year")); v != "" {
			y, err := strconv.Atoi(v)
			if err != nil {
				return core.Period{}, fmt.Errorf("invalid year %q", v)
			}
			year = y
		}
		if v := strings.TrimSpace(q.Get("month")); v != "" {
			m, err := strconv.Atoi(v)
			if err != nil || m < 1 || m > 12 {
				return core.Period{}, fmt.Errorf("invalid month %q", v)
			}
			month = time.Month(m)
		}
		return core.MonthPeriod(year, month), nil

	case "week":
		anchor := core.DateOf(now)
		if v := strings.TrimSpace(q.Get("date")); v != "" {
			d, err := core.ParseDate(v)
			if err != nil {
				return core.Period{}, fmt.Errorf("invalid date %q", v)
			}
			anchor = d
		}
		return core.WeekPeriod(anchor), nil

	case "year":
		year := now.Year()
		if v := strings.TrimSpace(q.Get("year")); v != "" {
			y, err := strconv.Atoi(v)
			if err != nil {
				return core.Period{}, fmt.Errorf("invalid year %q", v)
			}
			year = y
		}
		return core.YearPeriod(year), nil

	default:
		return core.Period{}, fmt.Errorf("invalid period %q", q.Get("period"))
	}
}

// parseChannelFilter maps the channel query parameter onto a filter.
func parseChannelFilter(r *http.Request) (core.ChannelFilter, error) {
	switch v := strings.TrimSpace(r.URL.Query().Get("channel")); v {
	case "", "all":
		return core.FilterAll, nil
	case "cash":
		return core.FilterCash, nil
	case "transfer":
		return core.FilterTransfer, nil
	case "cardLink":
		return core.FilterCardLink, nil
	case "pending":
		return core.FilterPending, nil
	default:
		return core.FilterAll, fmt.Errorf("invalid channel %q", v)
	}
}

// sanitizeInput removes potentially dangerous characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	result := strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
	return result
}

// generateRequestID creates a unique request ID for tracing.
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}
