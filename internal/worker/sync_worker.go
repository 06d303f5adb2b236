// Package worker mirrors the local SQLite ledger to the hosted
// Postgres backend, driven by sync queue messages with a periodic
// sweep as backstop.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"tcontrol/internal/amqp"
	"tcontrol/internal/core"
	"tcontrol/internal/ledger"
	"tcontrol/internal/storage"
)

// SyncWorker applies sync queue messages against the mirror backend.
type SyncWorker struct {
	storage   *storage.SQLiteRepository
	mirror    ledger.Mirror
	batchSize int
}

func NewSyncWorker(storage *storage.SQLiteRepository, mirror ledger.Mirror, batchSize int) *SyncWorker {
	return &SyncWorker{
		storage:   storage,
		mirror:    mirror,
		batchSize: batchSize,
	}
}

// HandleMessage processes a single sync message from AMQP.
func (w *SyncWorker) HandleMessage(ctx context.Context, msg *amqp.SyncMessage) error {
	switch msg.Kind {
	case amqp.KindJobUpsert:
		return w.handleJobUpsert(ctx, msg)
	case amqp.KindJobDelete:
		return w.handleJobDelete(ctx, msg)
	case amqp.KindSettingsSync:
		return w.handleSettingsSync(ctx)
	default:
		slog.WarnContext(ctx, "Unknown sync message kind, dropping", "kind", msg.Kind)
		return nil
	}
}

func (w *SyncWorker) handleJobUpsert(ctx context.Context, msg *amqp.SyncMessage) error {
	job, err := w.storage.GetJob(ctx, msg.JobID)
	if errors.Is(err, ledger.ErrJobNotFound) {
		// Deleted locally before the message was consumed. The delete
		// message that follows will clean up the mirror.
		slog.InfoContext(ctx, "Job vanished before sync, skipping", "id", msg.JobID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get job from storage: %w", err)
	}

	return w.mirrorJob(ctx, job, msg.Version)
}

func (w *SyncWorker) handleJobDelete(ctx context.Context, msg *amqp.SyncMessage) error {
	if err := w.mirror.RemoveJob(ctx, msg.JobID); err != nil {
		return fmt.Errorf("remove job from mirror: %w", err)
	}
	slog.InfoContext(ctx, "Job removed from mirror", "id", msg.JobID)
	return nil
}

func (w *SyncWorker) handleSettingsSync(ctx context.Context) error {
	settings, err := w.storage.GetSettings(ctx)
	if err != nil {
		return fmt.Errorf("get settings from storage: %w", err)
	}
	if err := w.mirror.UpsertSettings(ctx, settings); err != nil {
		return fmt.Errorf("upsert settings to mirror: %w", err)
	}
	slog.InfoContext(ctx, "Settings mirrored")
	return nil
}

// ProcessPendingJobs mirrors jobs whose sync status is still pending.
// This is the backstop for lost queue messages.
func (w *SyncWorker) ProcessPendingJobs(ctx context.Context) error {
	pending, err := w.storage.GetPendingSyncJobs(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("get pending jobs: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending jobs", "count", len(pending))

	for _, p := range pending {
		job, err := w.storage.GetJob(ctx, p.ID)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to get pending job", "id", p.ID, "error", err)
			if err := w.storage.MarkSyncError(ctx, p.ID); err != nil {
				slog.ErrorContext(ctx, "Failed to mark sync error", "id", p.ID, "error", err)
			}
			continue
		}
		if err := w.mirrorJob(ctx, job, p.Version); err != nil {
			slog.ErrorContext(ctx, "Failed to mirror pending job", "id", p.ID, "error", err)
			continue
		}
	}

	return nil
}

// StartupSyncCheck drains the pending backlog once at worker startup,
// recovering from missed messages or worker downtime.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	pending, err := w.storage.GetPendingSyncJobs(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("get pending jobs for startup check: %w", err)
	}
	if len(pending) == 0 {
		slog.InfoContext(ctx, "No pending jobs found on startup")
		return nil
	}

	slog.InfoContext(ctx, "Found pending jobs on startup, processing...",
		"count", len(pending))

	synced := 0
	failed := 0
	for _, p := range pending {
		job, err := w.storage.GetJob(ctx, p.ID)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to get job for startup sync",
				"id", p.ID, "error", err)
			if err := w.storage.MarkSyncError(ctx, p.ID); err != nil {
				slog.ErrorContext(ctx, "Failed to mark sync error", "id", p.ID, "error", err)
			}
			failed++
			continue
		}
		if err := w.mirrorJob(ctx, job, p.Version); err != nil {
			slog.ErrorContext(ctx, "Failed to mirror job during startup",
				"id", p.ID, "error", err)
			failed++
			continue
		}
		synced++
	}

	slog.InfoContext(ctx, "Startup sync completed",
		"total", len(pending),
		"synced", synced,
		"errors", failed)

	return nil
}

func (w *SyncWorker) mirrorJob(ctx context.Context, job core.Job, version int64) error {
	if err := w.mirror.UpsertJob(ctx, job); err != nil {
		if markErr := w.storage.MarkSyncError(ctx, job.ID); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark sync error", "id", job.ID, "error", markErr)
		}
		return fmt.Errorf("upsert job to mirror: %w", err)
	}

	// Version-guarded: a row edited since this message was published
	// stays pending and gets mirrored again.
	if err := w.storage.MarkSynced(ctx, job.ID, version); err != nil {
		slog.ErrorContext(ctx, "Failed to mark as synced", "id", job.ID, "error", err)
		// The mirror write itself succeeded.
	}

	slog.InfoContext(ctx, "Job mirrored",
		"id", job.ID,
		"version", version,
		"client", job.Client)

	return nil
}
