package ledger

import (
	"context"
	"errors"

	"tcontrol/internal/core"
)

// ErrJobNotFound is returned by stores when a job id has no record.
var ErrJobNotFound = errors.New("job not found")

// Ports for storage adapters.
type (
	// JobStore is the primary job ledger.
	JobStore interface {
		CreateJob(ctx context.Context, job core.Job) (core.Job, error)
		UpdateJob(ctx context.Context, job core.Job) error
		DeleteJob(ctx context.Context, id string) error
		GetJob(ctx context.Context, id string) (core.Job, error)
		// ListJobs returns every job for the account, newest first.
		ListJobs(ctx context.Context) ([]core.Job, error)
	}

	// SettingsStore keeps the account-wide commission configuration.
	// Get returns core.DefaultSettings() when nothing has been saved yet.
	SettingsStore interface {
		GetSettings(ctx context.Context) (core.BusinessSettings, error)
		SaveSettings(ctx context.Context, s core.BusinessSettings) error
	}

	// Mirror replicates ledger writes to a secondary backend. Upserts are
	// idempotent so replays from the sync queue are safe.
	Mirror interface {
		UpsertJob(ctx context.Context, job core.Job) error
		RemoveJob(ctx context.Context, id string) error
		UpsertSettings(ctx context.Context, s core.BusinessSettings) error
	}
)
