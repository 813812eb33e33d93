package model

import "time"

// UploadRecord is the in-memory ledger entry for one upload attempt. It is
// rebuilt from the first observed event after a restart; only the durable
// UploadedFile survives process lifetime.
type UploadRecord struct {
	ID       string            `json:"id"`
	Size     int64             `json:"size"`
	Offset   int64             `json:"offset"`
	Metadata map[string]string `json:"metadata,omitempty"`

	CreatedAt   time.Time `json:"created_at"`
	LastUpdated time.Time `json:"last_updated"`

	// Snapshot of the previous accepted sample so a later observer can
	// recompute throughput without re-deriving it.
	PreviousOffset     *int64     `json:"previous_offset,omitempty"`
	PreviousUpdateTime *time.Time `json:"previous_update_time,omitempty"`

	// UploadSpeed is bytes per second; nil until two samples with distinct
	// offsets and elapsed time have been observed. Negative values are kept
	// as an anomaly signal, never clamped.
	UploadSpeed *float64 `json:"upload_speed,omitempty"`

	IsComplete  bool       `json:"is_complete"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Percent returns upload progress in whole percent, 0 when the size is not
// yet known.
func (u *UploadRecord) Percent() int {
	if u.Size <= 0 {
		return 0
	}
	return int(float64(u.Offset) / float64(u.Size) * 100)
}

// Storage returns the storage kind carried in the event metadata, defaulting
// to local when the transport did not say.
func (u *UploadRecord) Storage() string {
	if s, ok := u.Metadata["storage"]; ok && s != "" {
		return s
	}
	return StorageLocal
}
