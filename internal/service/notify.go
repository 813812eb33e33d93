package service

import (
	"context"
	"log"

	"mediadrop/portal/internal/model"
)

type NotificationKind string

const (
	NotifyStarted   NotificationKind = "started"
	NotifyProgress  NotificationKind = "progress"
	NotifyCompleted NotificationKind = "completed"
	NotifyFailed    NotificationKind = "failed"
)

// Notification is a ledger state change addressed by upload id, so a
// downstream channel can edit its previous message in place instead of
// spamming new ones.
type Notification struct {
	Kind     NotificationKind `json:"kind"`
	UploadID string           `json:"upload_id"`
	Filename string           `json:"filename"`
	Size     int64            `json:"size"`
	Offset   int64            `json:"offset"`
	Percent  int              `json:"percent"`
	// Speed is bytes per second; nil when unknown.
	Speed       *float64 `json:"speed,omitempty"`
	ClientName  string   `json:"client_name,omitempty"`
	ProjectName string   `json:"project_name,omitempty"`
	// Location is the canonical storage key, set on completion.
	Location string `json:"location,omitempty"`
	// Reason is the failure explanation, set on failure.
	Reason string `json:"reason,omitempty"`
}

// Notifier delivers ledger state changes to humans. Delivery failure is
// logged by the caller, never propagated; correctness must not depend on it.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// MultiNotifier fans one notification out to several channels. A failing
// channel is logged and does not stop the others.
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(ctx context.Context, n Notification) error {
	var firstErr error
	for _, notifier := range m {
		if err := notifier.Notify(ctx, n); err != nil {
			log.Printf("notify: channel %T failed for %s: %v", notifier, n.UploadID, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func notificationFor(rec model.UploadRecord, kind NotificationKind) Notification {
	n := Notification{
		Kind:        kind,
		UploadID:    rec.ID,
		Filename:    rec.Metadata["filename"],
		Size:        rec.Size,
		Offset:      rec.Offset,
		Percent:     rec.Percent(),
		Speed:       rec.UploadSpeed,
		ClientName:  rec.Metadata["clientName"],
		ProjectName: rec.Metadata["projectName"],
	}
	if n.Filename == "" {
		n.Filename = rec.ID
	}
	return n
}
