// Package postgres is the hosted ledger backend. It serves two roles:
// the mirror target of the sync worker, and a full primary backend for
// deployments that skip the local SQLite store. Rows are scoped by
// account id so several technicians can share one database.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tcontrol/internal/core"
	"tcontrol/internal/ledger"

	_ "github.com/lib/pq"
)

type Repository struct {
	db        *sql.DB
	accountID string
}

func NewRepository(url, accountID string) (*Repository, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("open postgres database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &Repository{db: db, accountID: accountID}
	if err := r.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return r, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *Repository) ensureSchema() error {
	_, err := r.db.Exec(`
		CREATE TABLE IF NOT EXISTS jobs (
			id TEXT PRIMARY KEY,
			account_id TEXT NOT NULL,
			client TEXT NOT NULL,
			date DATE NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			transfer NUMERIC NOT NULL DEFAULT 0,
			cash NUMERIC NOT NULL DEFAULT 0,
			link_payment NUMERIC NOT NULL DEFAULT 0,
			expense_company NUMERIC NOT NULL DEFAULT 0,
			expense_tech NUMERIC NOT NULL DEFAULT 0,
			applied_commission NUMERIC,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS idx_jobs_account_date ON jobs(account_id, date);

		CREATE TABLE IF NOT EXISTS user_settings (
			account_id TEXT PRIMARY KEY,
			tech_commission_pct NUMERIC NOT NULL DEFAULT 50,
			card_fee_pct NUMERIC NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	return err
}

const jobColumns = `id, client, date, description, transfer, cash, link_payment,
	expense_company, expense_tech, applied_commission`

// CreateJob implements ledger.JobStore.
func (r *Repository) CreateJob(ctx context.Context, job core.Job) (core.Job, error) {
	if err := job.Validate(); err != nil {
		return core.Job{}, err
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if err := r.UpsertJob(ctx, job); err != nil {
		return core.Job{}, err
	}
	return job, nil
}

// UpdateJob implements ledger.JobStore.
func (r *Repository) UpdateJob(ctx context.Context, job core.Job) error {
	if err := job.Validate(); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET
			client = $1, date = $2, description = $3,
			transfer = $4, cash = $5, link_payment = $6,
			expense_company = $7, expense_tech = $8, applied_commission = $9,
			updated_at = now()
		WHERE id = $10 AND account_id = $11`,
		job.Client, job.Date.String(), job.Description,
		job.TransferAmount.String(), job.CashAmount.String(), job.CardLinkAmount.String(),
		job.CompanyExpense.String(), job.TechnicianExpense.String(),
		nullDecimalString(job.AppliedCommissionPct),
		job.ID, r.accountID)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	return requireRow(res)
}

// DeleteJob implements ledger.JobStore.
func (r *Repository) DeleteJob(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM jobs WHERE id = $1 AND account_id = $2`, id, r.accountID)
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	return requireRow(res)
}

// GetJob implements ledger.JobStore.
func (r *Repository) GetJob(ctx context.Context, id string) (core.Job, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+jobColumns+` FROM jobs
		WHERE id = $1 AND account_id = $2`, id, r.accountID)
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
func (r *Repository) ListJobs(ctx context.Context) ([]core.Job, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+jobColumns+` FROM jobs
		WHERE account_id = $1
		ORDER BY date DESC, updated_at DESC`, r.accountID)
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

// GetSettings implements ledger.SettingsStore.
func (r *Repository) GetSettings(ctx context.Context) (core.BusinessSettings, error) {
	var commissionStr, feeStr string
	err := r.db.QueryRowContext(ctx, `
		SELECT tech_commission_pct, card_fee_pct FROM user_settings
		WHERE account_id = $1`, r.accountID).Scan(&commissionStr, &feeStr)
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
func (r *Repository) SaveSettings(ctx context.Context, s core.BusinessSettings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	return r.UpsertSettings(ctx, s)
}

// UpsertJob implements ledger.Mirror. Replays are safe: the row is
// replaced wholesale keyed on id.
func (r *Repository) UpsertJob(ctx context.Context, job core.Job) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO jobs (id, account_id, client, date, description,
			transfer, cash, link_payment, expense_company, expense_tech,
			applied_commission)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			client = excluded.client,
			date = excluded.date,
			description = excluded.description,
			transfer = excluded.transfer,
			cash = excluded.cash,
			link_payment = excluded.link_payment,
			expense_company = excluded.expense_company,
			expense_tech = excluded.expense_tech,
			applied_commission = excluded.applied_commission,
			updated_at = now()`,
		job.ID, r.accountID, job.Client, job.Date.String(), job.Description,
		job.TransferAmount.String(), job.CashAmount.String(), job.CardLinkAmount.String(),
		job.CompanyExpense.String(), job.TechnicianExpense.String(),
		nullDecimalString(job.AppliedCommissionPct))
	if err != nil {
		return fmt.Errorf("upsert job: %w", err)
	}
	return nil
}

// RemoveJob implements ledger.Mirror. Removing an already absent row
// is not an error.
func (r *Repository) RemoveJob(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM jobs WHERE id = $1 AND account_id = $2`, id, r.accountID)
	if err != nil {
		return fmt.Errorf("remove job: %w", err)
	}
	return nil
}

// UpsertSettings implements ledger.Mirror.
func (r *Repository) UpsertSettings(ctx context.Context, s core.BusinessSettings) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO user_settings (account_id, tech_commission_pct, card_fee_pct)
		VALUES ($1, $2, $3)
		ON CONFLICT (account_id) DO UPDATE SET
			tech_commission_pct = excluded.tech_commission_pct,
			card_fee_pct = excluded.card_fee_pct,
			updated_at = now()`,
		r.accountID, s.TechCommissionPct.String(), s.CardFeePct.String())
	if err != nil {
		return fmt.Errorf("upsert settings: %w", err)
	}
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

	// DATE columns come back as a full timestamp string from lib/pq.
	if len(dateStr) > 10 {
		dateStr = dateStr[:10]
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
