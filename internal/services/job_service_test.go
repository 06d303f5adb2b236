package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tcontrol/internal/amqp"
	"tcontrol/internal/core"
	"tcontrol/internal/ledger/memory"
)

type fakeStore struct {
	*memory.Store
	versions map[string]int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{Store: memory.New(), versions: map[string]int64{}}
}

func (f *fakeStore) CreateJob(ctx context.Context, job core.Job) (core.Job, error) {
	created, err := f.Store.CreateJob(ctx, job)
	if err == nil {
		f.versions[created.ID] = 1
	}
	return created, err
}

func (f *fakeStore) UpdateJob(ctx context.Context, job core.Job) error {
	err := f.Store.UpdateJob(ctx, job)
	if err == nil {
		f.versions[job.ID]++
	}
	return err
}

func (f *fakeStore) GetJobVersion(_ context.Context, id string) (int64, error) {
	return f.versions[id], nil
}

type recordingPublisher struct {
	published []*amqp.SyncMessage
	fail      bool
}

func (p *recordingPublisher) Publish(_ context.Context, msg *amqp.SyncMessage) error {
	if p.fail {
		return errors.New("broker down")
	}
	p.published = append(p.published, msg)
	return nil
}

func validJob() core.Job {
	return core.Job{
		Client:         "Hotel Norte",
		Date:           core.NewDate(2025, time.March, 10),
		TransferAmount: decimal.NewFromInt(10000),
		AppliedCommissionPct: decimal.NullDecimal{
			Decimal: decimal.NewFromInt(50),
			Valid:   true,
		},
	}
}

func TestCreateJobPublishesUpsert(t *testing.T) {
	pub := &recordingPublisher{}
	svc := NewJobService(newFakeStore(), pub)

	created, err := svc.CreateJob(context.Background(), validJob())
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if len(pub.published) != 1 {
		t.Fatalf("published %d messages, want 1", len(pub.published))
	}
	msg := pub.published[0]
	if msg.Kind != amqp.KindJobUpsert || msg.JobID != created.ID || msg.Version != 1 {
		t.Fatalf("unexpected message: %+v", msg)
	}
}

func TestUpdateJobPublishesBumpedVersion(t *testing.T) {
	pub := &recordingPublisher{}
	store := newFakeStore()
	svc := NewJobService(store, pub)

	created, err := svc.CreateJob(context.Background(), validJob())
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	created.Description = "edit"
	if err := svc.UpdateJob(context.Background(), created); err != nil {
		t.Fatalf("UpdateJob: %v", err)
	}
	last := pub.published[len(pub.published)-1]
	if last.Kind != amqp.KindJobUpsert || last.Version != 2 {
		t.Fatalf("unexpected message: %+v", last)
	}
}

func TestDeleteJobPublishesDelete(t *testing.T) {
	pub := &recordingPublisher{}
	svc := NewJobService(newFakeStore(), pub)

	created, err := svc.CreateJob(context.Background(), validJob())
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if err := svc.DeleteJob(context.Background(), created.ID); err != nil {
		t.Fatalf("DeleteJob: %v", err)
	}
	last := pub.published[len(pub.published)-1]
	if last.Kind != amqp.KindJobDelete || last.JobID != created.ID {
		t.Fatalf("unexpected message: %+v", last)
	}
}

func TestPublishFailureDoesNotFailWrite(t *testing.T) {
	pub := &recordingPublisher{fail: true}
	svc := NewJobService(newFakeStore(), pub)

	created, err := svc.CreateJob(context.Background(), validJob())
	if err != nil {
		t.Fatalf("CreateJob should survive a broker outage: %v", err)
	}
	if _, err := svc.GetJob(context.Background(), created.ID); err != nil {
		t.Fatalf("job should be stored locally: %v", err)
	}
}

func TestNilPublisherSkipsSync(t *testing.T) {
	svc := NewJobService(newFakeStore(), nil)
	if _, err := svc.CreateJob(context.Background(), validJob()); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
}

func TestSaveSettingsPublishesSync(t *testing.T) {
	pub := &recordingPublisher{}
	svc := NewJobService(newFakeStore(), pub)

	settings := core.BusinessSettings{
		TechCommissionPct: decimal.NewFromInt(60),
		CardFeePct:        decimal.NewFromInt(5),
	}
	if err := svc.SaveSettings(context.Background(), settings); err != nil {
		t.Fatalf("SaveSettings: %v", err)
	}
	if pub.published[len(pub.published)-1].Kind != amqp.KindSettingsSync {
		t.Fatalf("expected settings sync message, got %+v", pub.published)
	}
}
