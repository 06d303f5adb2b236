package amqp

import (
	"encoding/json"
	"time"
)

// Message kinds carried on the sync queue. Job messages are
// lightweight: only the id and version travel, the worker fetches the
// current row from the local database when it processes them.
const (
	KindJobUpsert    = "job.upsert"
	KindJobDelete    = "job.delete"
	KindSettingsSync = "settings.sync"
)

// SyncMessage is the single envelope published to the sync queue.
type SyncMessage struct {
	Kind      string    `json:"kind"`
	JobID     string    `json:"job_id,omitempty"`
	Version   int64     `json:"version,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewJobUpsertMessage(jobID string, version int64) *SyncMessage {
	return &SyncMessage{
		Kind:      KindJobUpsert,
		JobID:     jobID,
		Version:   version,
		Timestamp: time.Now(),
	}
}

func NewJobDeleteMessage(jobID string) *SyncMessage {
	return &SyncMessage{
		Kind:      KindJobDelete,
		JobID:     jobID,
		Timestamp: time.Now(),
	}
}

func NewSettingsSyncMessage() *SyncMessage {
	return &SyncMessage{
		Kind:      KindSettingsSync,
		Timestamp: time.Now(),
	}
}

func (m *SyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func SyncMessageFromJSON(data []byte) (*SyncMessage, error) {
	var msg SyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
