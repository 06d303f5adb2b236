// Package storage is the SQLite job ledger. It is the write path of
// record: handlers persist here first and a background worker mirrors
// rows to the hosted backend afterwards, driven by the sync_status
// column.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tcontrol/internal/core"
	"tcontrol/internal/ledger"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

const jobColumns = `id, client, date, description, transfer, cash, link_payment,
	expense_company, expense_tech, applied_commission`

// CreateJob implements ledger.JobStore.
func (r *SQLiteRepository) CreateJob(ctx context.Context, job core.Job) (core.Job, error) {
	if err := job.Validate(); err != nil {
		return core.Job{}, err
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO jobs (`+jobColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.Client, job.Date.String(), job.Description,
		job.TransferAmount.String(), job.CashAmount.String(), job.CardLinkAmount.String(),
		job.CompanyExpense.String(), job.TechnicianExpense.String(),
		nullDecimalString(job.AppliedCommissionPct))
	if err != nil {
		return core.Job{}, fmt.Errorf("insert job: %w", err)
	}

	slog.InfoContext(ctx, "Job saved to SQLite",
		"id", job.ID,
		"client", job.Client,
		"date", job.Date.String(),
		"gross", job.GrossIncome().String())

	return job, nil
}

// UpdateJob implements ledger.JobStore. The sync status is reset so the
// worker re-mirrors the row, and version is bumped so stale queue
// messages can be detected.
func (r *SQLiteRepository) UpdateJob(ctx context.Context, job core.Job) error {
	if err := job.Validate(); err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET
			client = ?, date = ?, description = ?,
			transfer = ?, cash = ?, link_payment = ?,
			expense_company = ?, expense_tech = ?, applied_commission = ?,
			sync_status = 'pending', version = version + 1,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		job.Client, job.Date.String(), job.Description,
		job.TransferAmount.String(), job.CashAmount.String(), job.CardLinkAmount.String(),
		job.CompanyExpense.String(), job.TechnicianExpense.String(),
		nullDecimalString(job.AppliedCommissionPct),
		job.ID)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	return requireRow(res)
}

// DeleteJob implements ledger.JobStore.
func (r *SQLiteRepository) DeleteJob(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	return requireRow(res)
}

// GetJob implements ledger.JobStore.
func (r *SQLiteRepository) GetJob(ctx context.Context, id string) (core.Job, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Job{}, ledger.ErrJobNotFound
	}
	if err != nil {
		return core.Job{}, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// ListJobs implements ledger.JobStore, newest first.
func (r *SQLiteRepository) ListJobs(ctx context.Context) ([]core.Job, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM jobs ORDER BY date DESC, created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []core.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return jobs, nil
}

// GetSettings implements ledger.SettingsStore. Returns the defaults
// when no settings row has been written yet.
func (r *SQLiteRepository) GetSettings(ctx context.Context) (core.BusinessSettings, error) {
	var commissionStr, feeStr string
	err := r.db.QueryRowContext(ctx,
		`SELECT tech_commission_pct, card_fee_pct FROM user_settings WHERE id = 1`).
		Scan(&commissionStr, &feeStr)
	if errors.Is(err, sql.ErrNoRows) {
		return core.DefaultSettings(), nil
	}
	if err != nil {
		return core.BusinessSettings{}, fmt.Errorf("get settings: %w", err)
	}

	commission, err := decimal.NewFromString(commissionStr)
	if err != nil {
		return core.BusinessSettings{}, fmt.Errorf("parse tech_commission_pct: %w", err)
	}
	fee, err := decimal.NewFromString(feeStr)
	if err != nil {
		return core.BusinessSettings{}, fmt.Errorf("parse card_fee_pct: %w", err)
	}
	return core.BusinessSettings{TechCommissionPct: commission, CardFeePct: fee}, nil
}

// SaveSettings implements ledger.SettingsStore.
func (r *SQLiteRepository) SaveSettings(ctx context.Context, s core.BusinessSettings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO user_settings (id, tech_commission_pct, card_fee_pct)
		VALUES (1, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			tech_commission_pct = excluded.tech_commission_pct,
			card_fee_pct = excluded.card_fee_pct,
			updated_at = CURRENT_TIMESTAMP`,
		s.TechCommissionPct.String(), s.CardFeePct.String())
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// PendingSyncJob is the minimal row data carried in sync queue messages.
type PendingSyncJob struct {
	ID        string
	Version   int64
	CreatedAt time.Time
}

// GetPendingSyncJobs returns jobs that still need mirroring.
func (r *SQLiteRepository) GetPendingSyncJobs(ctx context.Context, limit int) ([]PendingSyncJob, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, version, created_at FROM jobs
		WHERE sync_status = 'pending'
		ORDER BY created_at ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending sync jobs: %w", err)
	}
	defer rows.Close()

	var out []PendingSyncJob
	for rows.Next() {
		var p PendingSyncJob
		if err := rows.Scan(&p.ID, &p.Version, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan pending sync job: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetJobVersion returns the current version counter for a job.
func (r *SQLiteRepository) GetJobVersion(ctx context.Context, id string) (int64, error) {
	var version int64
	err := r.db.QueryRowContext(ctx, `SELECT version FROM jobs WHERE id = ?`, id).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ledger.ErrJobNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("get job version: %w", err)
	}
	return version, nil
}

// MarkSynced records a successful mirror of the given job version. A
// row updated since the message was published stays pending.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id string, version int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET sync_status = 'synced', updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND version = ?`, id, version)
	if err != nil {
		return fmt.Errorf("mark job synced: %w", err)
	}
	slog.InfoContext(ctx, "Job marked as synced", "id", id, "version", version)
	return nil
}

// MarkSyncError flags a job whose mirror attempt failed.
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET sync_status = 'error', updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark job sync error: %w", err)
	}
	slog.WarnContext(ctx, "Job marked with sync error", "id", id)
	return nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ledger.ErrJobNotFound
	}
	return nil
}

func nullDecimalString(d decimal.NullDecimal) sql.NullString {
	if !d.Valid {
		return sql.NullString{}
	}
	return sql.NullString{String: d.Decimal.String(), Valid: true}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (core.Job, error) {
	var (
		job        core.Job
		dateStr    string
		amounts    [5]string
		commission sql.NullString
	)
	err := row.Scan(&job.ID, &job.Client, &dateStr, &job.Description,
		&amounts[0], &amounts[1], &amounts[2], &amounts[3], &amounts[4],
		&commission)
	if err != nil {
		return core.Job{}, err
	}

	job.Date, err = core.ParseDate(dateStr)
	if err != nil {
		return core.Job{}, fmt.Errorf("parse date %q: %w", dateStr, err)
	}

	fields := []*decimal.Decimal{
		&job.TransferAmount, &job.CashAmount, &job.CardLinkAmount,
		&job.CompanyExpense, &job.TechnicianExpense,
	}
	for i, dst := range fields {
		*dst, err = decimal.NewFromString(amounts[i])
		if err != nil {
			return core.Job{}, fmt.Errorf("parse amount %q: %w", amounts[i], err)
		}
	}

	if commission.Valid {
		d, err := decimal.NewFromString(commission.String)
		if err != nil {
			return core.Job{}, fmt.Errorf("parse applied_commission %q: %w", commission.String, err)
		}
		job.AppliedCommissionPct = decimal.NullDecimal{Decimal: d, Valid: true}
	}
	return job, nil
}
