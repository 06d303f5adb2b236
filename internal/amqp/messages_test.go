package amqp

import "testing"

func TestSyncMessageRoundTrip(t *testing.T) {
	msg := NewJobUpsertMessage("a1b2", 3)
	body, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}
	got, err := SyncMessageFromJSON(body)
	if err != nil {
		t.Fatalf("FromJSON: %v", err)
	}
	if got.Kind != KindJobUpsert || got.JobID != "a1b2" || got.Version != 3 {
		t.Fatalf("unexpected message: %+v", got)
	}
}

func TestSyncMessageKinds(t *testing.T) {
	if m := NewJobDeleteMessage("x"); m.Kind != KindJobDelete || m.JobID != "x" {
		t.Fatalf("delete message: %+v", m)
	}
	if m := NewSettingsSyncMessage(); m.Kind != KindSettingsSync || m.JobID != "" {
		t.Fatalf("settings message: %+v", m)
	}
}

func TestSyncMessageFromJSONInvalid(t *testing.T) {
	if _, err := SyncMessageFromJSON([]byte("{not json")); err == nil {
		t.Fatal("expected error for malformed payload")
	}
}
