package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"tcontrol/internal/ledger/memory"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s := NewServer(":0", memory.New())
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s
}

func doRequest(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func decodeJob(t *testing.T, rec *httptest.ResponseRecorder) jobResponse {
	t.Helper()
	var out jobResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode job response: %v\nbody: %s", err, rec.Body.String())
	}
	return out
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := doRequest(t, s, http.MethodGet, path, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: got status %d", path, rec.Code)
		}
	}
}

func TestCreateJobFreezesCommission(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/jobs", `{
		"client": "Lavandería Sur",
		"date": "2025-03-12",
		"description": "Cambio de bomba",
		"transfer": "100000",
		"expense_company": "10000"
	}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("got status %d, body: %s", rec.Code, rec.Body.String())
	}

	job := decodeJob(t, rec)
	if job.ID == "" {
		t.Fatal("expected a generated job id")
	}
	if job.AppliedCommission == nil || !job.AppliedCommission.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("expected commission frozen at 50, got %v", job.AppliedCommission)
	}
	if job.Channel != "transfer" {
		t.Fatalf("expected channel transfer, got %q", job.Channel)
	}
	// 100000 gross, no fee, -10000 expense = 90000 net; 50% = 45000.
	if !job.Economics.TechnicianPayout.Equal(decimal.NewFromInt(45000)) {
		t.Fatalf("expected technician payout 45000, got %s", job.Economics.TechnicianPayout)
	}
	if !job.Economics.CompanyPayout.Equal(decimal.NewFromInt(55000)) {
		t.Fatalf("expected company payout 55000, got %s", job.Economics.CompanyPayout)
	}
}

func TestCreateJobRejectsMultipleChannels(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/jobs", `{
		"client": "Cliente",
		"date": "2025-03-12",
		"transfer": "1000",
		"cash": "2000"
	}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("got status %d, body: %s", rec.Code, rec.Body.String())
	}
}

func TestCreateJobRejectsBadDate(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/jobs", `{
		"client": "Cliente",
		"date": "12/03/2025",
		"cash": "1000"
	}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, body: %s", rec.Code, rec.Body.String())
	}
}

func TestUpdateJobKeepsFrozenCommission(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/jobs", `{
		"client": "Cliente",
		"date": "2025-03-12",
		"cash": "50000"
	}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: got status %d", rec.Code)
	}
	created := decodeJob(t, rec)

	// Raise the live commission after the job exists.
	rec = doRequest(t, s, http.MethodPut, "/api/settings", `{
		"tech_commission_pct": "60",
		"card_fee_pct": "0"
	}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("settings: got status %d, body: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, s, http.MethodPut, "/api/jobs/"+created.ID, `{
		"client": "Cliente",
		"date": "2025-03-12",
		"cash": "80000"
	}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("update: got status %d, body: %s", rec.Code, rec.Body.String())
	}

	updated := decodeJob(t, rec)
	if updated.AppliedCommission == nil || !updated.AppliedCommission.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("expected commission still frozen at 50, got %v", updated.AppliedCommission)
	}
	if !updated.Cash.Equal(decimal.NewFromInt(80000)) {
		t.Fatalf("expected cash 80000, got %s", updated.Cash)
	}
}

func TestJobNotFound(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/api/jobs/missing", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get: got status %d", rec.Code)
	}
	rec = doRequest(t, s, http.MethodDelete, "/api/jobs/missing", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("delete: got status %d", rec.Code)
	}
}

func TestDeleteJob(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/jobs", `{
		"client": "Cliente",
		"date": "2025-03-12",
		"cash": "1000"
	}`)
	created := decodeJob(t, rec)

	rec = doRequest(t, s, http.MethodDelete, "/api/jobs/"+created.ID, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: got status %d", rec.Code)
	}
	rec = doRequest(t, s, http.MethodGet, "/api/jobs/"+created.ID, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete: got status %d", rec.Code)
	}
}

func TestListJobsPeriodFilter(t *testing.T) {
	s := newTestServer(t)

	for _, body := range []string{
		`{"client": "Marzo", "date": "2025-03-05", "cash": "1000"}`,
		`{"client": "Abril", "date": "2025-04-05", "cash": "2000"}`,
	} {
		if rec := doRequest(t, s, http.MethodPost, "/api/jobs", body); rec.Code != http.StatusCreated {
			t.Fatalf("create: got status %d, body: %s", rec.Code, rec.Body.String())
		}
	}

	rec := doRequest(t, s, http.MethodGet, "/api/jobs?period=month&year=2025&month=3", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list: got status %d", rec.Code)
	}
	var out struct {
		Jobs []jobResponse `json:"jobs"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(out.Jobs) != 1 || out.Jobs[0].Client != "Marzo" {
		t.Fatalf("expected only the March job, got %+v", out.Jobs)
	}
}

func TestSummary(t *testing.T) {
	s := newTestServer(t)

	for _, body := range []string{
		`{"client": "A", "date": "2025-03-05", "cash": "100000"}`,
		`{"client": "B", "date": "2025-03-20", "transfer": "50000", "expense_tech": "5000"}`,
	} {
		if rec := doRequest(t, s, http.MethodPost, "/api/jobs", body); rec.Code != http.StatusCreated {
			t.Fatalf("create: got status %d", rec.Code)
		}
	}

	rec := doRequest(t, s, http.MethodGet, "/api/summary?period=month&year=2025&month=3", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("summary: got status %d, body: %s", rec.Code, rec.Body.String())
	}
	var out summaryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if out.JobCount != 2 {
		t.Fatalf("expected 2 jobs, got %d", out.JobCount)
	}
	if !out.GrossIncome.Equal(decimal.NewFromInt(150000)) {
		t.Fatalf("expected gross 150000, got %s", out.GrossIncome)
	}
	// A: 50000 payout. B: net 45000, share 22500, +5000 reimbursement.
	if !out.TechnicianPayout.Equal(decimal.NewFromInt(77500)) {
		t.Fatalf("expected payout 77500, got %s", out.TechnicianPayout)
	}
	// Payout minus the 100000 cash held by the technician.
	if !out.Balance.Equal(decimal.NewFromInt(-22500)) {
		t.Fatalf("expected balance -22500, got %s", out.Balance)
	}
	if out.PeriodStart != "2025-03-01" || out.PeriodEnd != "2025-03-31" {
		t.Fatalf("unexpected bounds %s..%s", out.PeriodStart, out.PeriodEnd)
	}
}

func TestTrend(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/jobs", `{
		"client": "Cliente", "date": "2025-06-10", "cash": "10000"
	}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: got status %d", rec.Code)
	}

	rec = doRequest(t, s, http.MethodGet, "/api/stats/trend?until=2025-06-30", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("trend: got status %d", rec.Code)
	}
	var out struct {
		Months []trendPointResponse `json:"months"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode trend: %v", err)
	}
	if len(out.Months) != 6 {
		t.Fatalf("expected 6 months, got %d", len(out.Months))
	}
	if out.Months[0].Label != "ene" || out.Months[5].Label != "jun" {
		t.Fatalf("unexpected labels %q..%q", out.Months[0].Label, out.Months[5].Label)
	}
	if !out.Months[5].TechnicianPayout.Equal(decimal.NewFromInt(5000)) {
		t.Fatalf("expected June payout 5000, got %s", out.Months[5].TechnicianPayout)
	}
}

func TestAnnual(t *testing.T) {
	s := newTestServer(t)

	for _, body := range []string{
		`{"client": "A", "date": "2024-12-31", "cash": "1000"}`,
		`{"client": "B", "date": "2025-01-01", "cash": "2000"}`,
	} {
		if rec := doRequest(t, s, http.MethodPost, "/api/jobs", body); rec.Code != http.StatusCreated {
			t.Fatalf("create: got status %d", rec.Code)
		}
	}

	rec := doRequest(t, s, http.MethodGet, "/api/stats/annual?year=2025", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("annual: got status %d", rec.Code)
	}
	var out annualResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode annual: %v", err)
	}
	if out.Year != 2025 || out.JobCount != 1 {
		t.Fatalf("expected 1 job in 2025, got %+v", out)
	}
	if !out.GrossIncome.Equal(decimal.NewFromInt(2000)) {
		t.Fatalf("expected gross 2000, got %s", out.GrossIncome)
	}
}

func TestExportCSV(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/jobs", `{
		"client": "Cliente", "date": "2025-03-12", "cash": "50000"
	}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: got status %d", rec.Code)
	}

	rec = doRequest(t, s, http.MethodGet, "/api/export?period=year&year=2025&channel=cash", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("export: got status %d, body: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("unexpected content type %q", ct)
	}
	cd := rec.Header().Get("Content-Disposition")
	if !strings.Contains(cd, "reporte_efectivo_") {
		t.Fatalf("unexpected content disposition %q", cd)
	}
	body := rec.Body.String()
	if !strings.HasPrefix(body, "Fecha,") {
		t.Fatalf("unexpected CSV start: %q", body)
	}
	if !strings.Contains(body, `"Efectivo"`) {
		t.Fatalf("expected cash label in CSV, got: %q", body)
	}
}

func TestExportFullHistory(t *testing.T) {
	s := newTestServer(t)

	// A job far in the past falls outside the default month scope.
	rec := doRequest(t, s, http.MethodPost, "/api/jobs", `{
		"client": "Cliente Antiguo", "date": "2020-01-15", "cash": "30000"
	}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: got status %d", rec.Code)
	}

	rec = doRequest(t, s, http.MethodGet, "/api/export?format=csv", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("default scope: got status %d, want 404", rec.Code)
	}

	rec = doRequest(t, s, http.MethodGet, "/api/export?format=csv&period=all", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("full history: got status %d, body: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"2020-01-15"`) {
		t.Fatalf("expected the old job in the export, got: %q", rec.Body.String())
	}
	cd := rec.Header().Get("Content-Disposition")
	if !strings.Contains(cd, "reporte_historico_completo_") {
		t.Fatalf("unexpected content disposition %q", cd)
	}
}

func TestExportEmptyPeriod(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/api/export?period=year&year=1999", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("got status %d", rec.Code)
	}
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/api/export?format=pdf", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("got status %d", rec.Code)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/api/settings", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get: got status %d", rec.Code)
	}
	var out settingsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode settings: %v", err)
	}
	if !out.TechCommissionPct.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("expected default commission 50, got %s", out.TechCommissionPct)
	}

	rec = doRequest(t, s, http.MethodPut, "/api/settings", `{
		"tech_commission_pct": "47.5",
		"card_fee_pct": "3"
	}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("put: got status %d, body: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, s, http.MethodGet, "/api/settings", "")
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode settings: %v", err)
	}
	if !out.TechCommissionPct.Equal(decimal.RequireFromString("47.5")) {
		t.Fatalf("expected commission 47.5, got %s", out.TechCommissionPct)
	}
	if !out.CardFeePct.Equal(decimal.NewFromInt(3)) {
		t.Fatalf("expected fee 3, got %s", out.CardFeePct)
	}
}

func TestSettingsPartialUpdateKeepsOtherField(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodPut, "/api/settings", `{
		"tech_commission_pct": "55",
		"card_fee_pct": "4"
	}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("seed: got status %d, body: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, s, http.MethodPut, "/api/settings", `{
		"tech_commission_pct": "60"
	}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("partial: got status %d, body: %s", rec.Code, rec.Body.String())
	}
	var out settingsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode settings: %v", err)
	}
	if !out.TechCommissionPct.Equal(decimal.NewFromInt(60)) {
		t.Fatalf("expected commission 60, got %s", out.TechCommissionPct)
	}
	if !out.CardFeePct.Equal(decimal.NewFromInt(4)) {
		t.Fatalf("expected card fee preserved at 4, got %s", out.CardFeePct)
	}
}

func TestSettingsClampPercent(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodPut, "/api/settings", `{
		"tech_commission_pct": "150",
		"card_fee_pct": "-3"
	}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, body: %s", rec.Code, rec.Body.String())
	}
	var out settingsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode settings: %v", err)
	}
	if !out.TechCommissionPct.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected commission clamped to 100, got %s", out.TechCommissionPct)
	}
	if !out.CardFeePct.IsZero() {
		t.Fatalf("expected fee coerced to 0, got %s", out.CardFeePct)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodDelete, "/api/jobs", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("got status %d", rec.Code)
	}
	if allow := rec.Header().Get("Allow"); !strings.Contains(allow, http.MethodPost) {
		t.Fatalf("unexpected Allow header %q", allow)
	}
}

func TestFormEncodedCreate(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/jobs",
		strings.NewReader("client=Cliente&date=2025-03-12&transfer=15000"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("got status %d, body: %s", rec.Code, rec.Body.String())
	}
	job := decodeJob(t, rec)
	if !job.Transfer.Equal(decimal.NewFromInt(15000)) {
		t.Fatalf("expected transfer 15000, got %s", job.Transfer)
	}
}
