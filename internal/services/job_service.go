package services

import (
	"context"
	"fmt"
	"log/slog"

	"tcontrol/internal/amqp"
	"tcontrol/internal/core"
	"tcontrol/internal/ledger"
)

// syncStore is the slice of the SQLite repository the service needs:
// the ledger ports plus the version counter used in sync messages.
type syncStore interface {
	ledger.JobStore
	ledger.SettingsStore
	GetJobVersion(ctx context.Context, id string) (int64, error)
}

type syncPublisher interface {
	Publish(ctx context.Context, msg *amqp.SyncMessage) error
}

// JobService orchestrates ledger writes across SQLite and AMQP. Writes
// land in the local store first; the mirror message is best effort and
// the periodic worker sweep covers anything the queue misses.
type JobService struct {
	store     syncStore
	publisher syncPublisher
}

func NewJobService(store syncStore, publisher syncPublisher) *JobService {
	return &JobService{store: store, publisher: publisher}
}

// CreateJob implements ledger.JobStore.
func (s *JobService) CreateJob(ctx context.Context, job core.Job) (core.Job, error) {
	created, err := s.store.CreateJob(ctx, job)
	if err != nil {
		return core.Job{}, fmt.Errorf("save job: %w", err)
	}

	s.publish(ctx, amqp.NewJobUpsertMessage(created.ID, 1))
	return created, nil
}

// UpdateJob implements ledger.JobStore.
func (s *JobService) UpdateJob(ctx context.Context, job core.Job) error {
	if err := s.store.UpdateJob(ctx, job); err != nil {
		return fmt.Errorf("update job: %w", err)
	}

	version, err := s.store.GetJobVersion(ctx, job.ID)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to read job version after update",
			"id", job.ID, "error", err)
		return nil
	}
	s.publish(ctx, amqp.NewJobUpsertMessage(job.ID, version))
	return nil
}

// DeleteJob implements ledger.JobStore.
func (s *JobService) DeleteJob(ctx context.Context, id string) error {
	if err := s.store.DeleteJob(ctx, id); err != nil {
		return fmt.Errorf("delete job: %w", err)
	}

	s.publish(ctx, amqp.NewJobDeleteMessage(id))
	return nil
}

// GetJob implements ledger.JobStore.
func (s *JobService) GetJob(ctx context.Context, id string) (core.Job, error) {
	return s.store.GetJob(ctx, id)
}

// ListJobs implements ledger.JobStore.
func (s *JobService) ListJobs(ctx context.Context) ([]core.Job, error) {
	return s.store.ListJobs(ctx)
}

// GetSettings implements ledger.SettingsStore.
func (s *JobService) GetSettings(ctx context.Context) (core.BusinessSettings, error) {
	return s.store.GetSettings(ctx)
}

// SaveSettings implements ledger.SettingsStore.
func (s *JobService) SaveSettings(ctx context.Context, settings core.BusinessSettings) error {
	if err := s.store.SaveSettings(ctx, settings); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}

	s.publish(ctx, amqp.NewSettingsSyncMessage())
	return nil
}

// publish sends a sync message without failing the request: the write
// already landed locally and the worker sweep will pick up the slack.
func (s *JobService) publish(ctx context.Context, msg *amqp.SyncMessage) {
	if s.publisher == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping sync message",
			"kind", msg.Kind)
		return
	}
	if err := s.publisher.Publish(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to publish sync message",
			"kind", msg.Kind, "job_id", msg.JobID, "error", err)
	}
}
