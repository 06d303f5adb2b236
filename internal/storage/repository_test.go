package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tcontrol/internal/core"
	"tcontrol/internal/ledger"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func testJob(client string, date core.Date) core.Job {
	return core.Job{
		Client:         client,
		Date:           date,
		Description:    "Revisión general",
		TransferAmount: decimal.NewFromInt(100000),
		CompanyExpense: decimal.NewFromInt(10000),
		AppliedCommissionPct: decimal.NullDecimal{
			Decimal: decimal.NewFromInt(50),
			Valid:   true,
		},
	}
}

func TestJobRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	created, err := repo.CreateJob(ctx, testJob("Hotel Norte", core.NewDate(2025, time.March, 10)))
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected generated id")
	}

	got, err := repo.GetJob(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.Client != "Hotel Norte" || got.Date.String() != "2025-03-10" {
		t.Fatalf("unexpected job: %+v", got)
	}
	if !got.TransferAmount.Equal(decimal.NewFromInt(100000)) {
		t.Fatalf("transfer = %s", got.TransferAmount)
	}
	if !got.AppliedCommissionPct.Valid || !got.AppliedCommissionPct.Decimal.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("applied commission = %+v", got.AppliedCommissionPct)
	}
}

func TestLegacyJobWithoutFrozenRate(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	job := testJob("Legacy", core.NewDate(2024, time.June, 1))
	job.AppliedCommissionPct = decimal.NullDecimal{}
	created, err := repo.CreateJob(ctx, job)
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	got, err := repo.GetJob(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.AppliedCommissionPct.Valid {
		t.Fatalf("expected unset commission, got %s", got.AppliedCommissionPct.Decimal)
	}
}

func TestUpdateResetsSyncStatus(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	created, err := repo.CreateJob(ctx, testJob("Hotel Norte", core.NewDate(2025, time.March, 10)))
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if err := repo.MarkSynced(ctx, created.ID, 1); err != nil {
		t.Fatalf("MarkSynced: %v", err)
	}
	pending, err := repo.GetPendingSyncJobs(ctx, 10)
	if err != nil {
		t.Fatalf("GetPendingSyncJobs: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected no pending jobs, got %d", len(pending))
	}

	created.Description = "Cambio de repuesto"
	if err := repo.UpdateJob(ctx, created); err != nil {
		t.Fatalf("UpdateJob: %v", err)
	}
	pending, err = repo.GetPendingSyncJobs(ctx, 10)
	if err != nil {
		t.Fatalf("GetPendingSyncJobs: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != created.ID {
		t.Fatalf("expected updated job pending, got %+v", pending)
	}
	if pending[0].Version != 2 {
		t.Fatalf("version = %d, want 2", pending[0].Version)
	}
}

func TestStaleVersionStaysPending(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	created, err := repo.CreateJob(ctx, testJob("Hotel Norte", core.NewDate(2025, time.March, 10)))
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	created.Description = "edit"
	if err := repo.UpdateJob(ctx, created); err != nil {
		t.Fatalf("UpdateJob: %v", err)
	}

	// Ack for version 1 arrives after the edit bumped it to 2.
	if err := repo.MarkSynced(ctx, created.ID, 1); err != nil {
		t.Fatalf("MarkSynced: %v", err)
	}
	pending, err := repo.GetPendingSyncJobs(ctx, 10)
	if err != nil {
		t.Fatalf("GetPendingSyncJobs: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected job still pending, got %d", len(pending))
	}
}

func TestDeleteAndNotFound(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	created, err := repo.CreateJob(ctx, testJob("Hotel Norte", core.NewDate(2025, time.March, 10)))
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if err := repo.DeleteJob(ctx, created.ID); err != nil {
		t.Fatalf("DeleteJob: %v", err)
	}
	if _, err := repo.GetJob(ctx, created.ID); !errors.Is(err, ledger.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
	if err := repo.DeleteJob(ctx, created.ID); !errors.Is(err, ledger.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound on second delete, got %v", err)
	}
}

func TestListJobsNewestFirst(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for _, d := range []core.Date{
		core.NewDate(2025, time.January, 5),
		core.NewDate(2025, time.March, 1),
		core.NewDate(2025, time.February, 10),
	} {
		if _, err := repo.CreateJob(ctx, testJob("c", d)); err != nil {
			t.Fatalf("CreateJob: %v", err)
		}
	}
	jobs, err := repo.ListJobs(ctx)
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	want := []string{"2025-03-01", "2025-02-10", "2025-01-05"}
	for i, w := range want {
		if jobs[i].Date.String() != w {
			t.Fatalf("jobs[%d].Date = %s, want %s", i, jobs[i].Date, w)
		}
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	got, err := repo.GetSettings(ctx)
	if err != nil {
		t.Fatalf("GetSettings: %v", err)
	}
	if !got.TechCommissionPct.Equal(decimal.NewFromInt(50)) || !got.CardFeePct.IsZero() {
		t.Fatalf("expected defaults, got %+v", got)
	}

	next := core.BusinessSettings{
		TechCommissionPct: decimal.NewFromFloat(47.5),
		CardFeePct:        decimal.NewFromInt(3),
	}
	if err := repo.SaveSettings(ctx, next); err != nil {
		t.Fatalf("SaveSettings: %v", err)
	}
	got, err = repo.GetSettings(ctx)
	if err != nil {
		t.Fatalf("GetSettings: %v", err)
	}
	if !got.TechCommissionPct.Equal(decimal.NewFromFloat(47.5)) {
		t.Fatalf("commission = %s", got.TechCommissionPct)
	}
	if !got.CardFeePct.Equal(decimal.NewFromInt(3)) {
		t.Fatalf("card fee = %s", got.CardFeePct)
	}
}
