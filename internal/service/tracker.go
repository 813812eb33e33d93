package service

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"mediadrop/portal/internal/model"
)

// reconcileTrigger is the slice of the reconciler the tracker needs for the
// delayed post-completion sweep.
type reconcileTrigger interface {
	ReconcileAll(ctx context.Context) (ReconcileStats, error)
}

// jobSubmitter is the slice of the job runner the tracker uses.
type jobSubmitter interface {
	Submit(name string, fn func(ctx context.Context) error)
	SubmitAfter(delay time.Duration, name string, fn func(ctx context.Context) error)
}

// Tracker is the in-memory progress ledger: the single source of truth for
// observed upload progress across the resumable-protocol hooks, storage
// callbacks and frontend pings. Events may arrive out of order, duplicated
// or for unknown ids; every operation here absorbs that instead of failing.
// Records do not survive a restart; durable completion state lives in the
// file repository.
type Tracker struct {
	mu      sync.RWMutex
	uploads map[string]model.UploadRecord

	notifier   Notifier
	runner     jobSubmitter
	reconciler reconcileTrigger

	// settleDelay is how long a completed s3 upload rests before the batch
	// reconcile sweep runs, letting the object store finish its writes.
	settleDelay time.Duration

	now func() time.Time
}

func NewTracker(notifier Notifier, runner jobSubmitter, reconciler reconcileTrigger, settleDelay time.Duration) *Tracker {
	return &Tracker{
		uploads:     make(map[string]model.UploadRecord),
		notifier:    notifier,
		runner:      runner,
		reconciler:  reconciler,
		settleDelay: settleDelay,
		now:         time.Now,
	}
}

// Track inserts or updates the record for id. Offsets equal to the previous
// sample produce no speed; regressions produce a negative speed that is kept
// as an anomaly signal. createdAt is always carried forward from the first
// insert.
func (t *Tracker) Track(id string, size, offset int64, metadata map[string]string, complete bool) {
	now := t.now()

	t.mu.Lock()
	prior, exists := t.uploads[id]

	rec := model.UploadRecord{
		ID:          id,
		Size:        size,
		Offset:      offset,
		Metadata:    metadata,
		CreatedAt:   now,
		LastUpdated: now,
		IsComplete:  complete,
	}

	if exists {
		rec.CreatedAt = prior.CreatedAt
		prevOffset := prior.Offset
		prevTime := prior.LastUpdated
		rec.PreviousOffset = &prevOffset
		rec.PreviousUpdateTime = &prevTime

		if offset != prior.Offset {
			if speed, ok := Speed(prior.Offset, prior.LastUpdated, offset, now); ok {
				rec.UploadSpeed = &speed
				if speed < 0 {
					log.Printf("tracker: offset regressed for %s (%d -> %d)", id, prior.Offset, offset)
				}
			}
		}
	}

	t.uploads[id] = rec
	t.mu.Unlock()

	kind := NotifyProgress
	if !exists {
		kind = NotifyStarted
	}
	t.dispatch(notificationFor(rec, kind))

	if size > 0 {
		log.Printf("tracker: upload %s at %d%%", id, rec.Percent())
	}
}

// Complete marks id as finished: offset clamps to size and the completion
// flag becomes terminal. Unknown ids are a logged no-op so duplicate finish
// signals from independent channels stay harmless. For s3-backed uploads a
// batch reconcile sweep is scheduled after the settle delay.
func (t *Tracker) Complete(id string) {
	now := t.now()

	t.mu.Lock()
	rec, exists := t.uploads[id]
	if !exists {
		t.mu.Unlock()
		log.Printf("tracker: attempted to complete unknown upload %s", id)
		return
	}
	if rec.CompletedAt != nil {
		t.mu.Unlock()
		log.Printf("tracker: upload %s already completed", id)
		return
	}

	rec.Offset = rec.Size
	rec.IsComplete = true
	rec.CompletedAt = &now
	rec.LastUpdated = now
	t.uploads[id] = rec
	t.mu.Unlock()

	n := notificationFor(rec, NotifyCompleted)
	n.Location = rec.Metadata["key"]
	t.dispatch(n)

	log.Printf("tracker: upload %s completed", id)

	if rec.Storage() == model.StorageS3 && t.reconciler != nil {
		t.runner.SubmitAfter(t.settleDelay, "reconcile-sweep-"+id, func(ctx context.Context) error {
			stats, err := t.reconciler.ReconcileAll(ctx)
			if err != nil {
				return fmt.Errorf("post-completion sweep for %s: %w", id, err)
			}
			log.Printf("tracker: post-completion sweep for %s renamed %d, skipped %d", id, stats.Renamed, stats.Skipped)
			return nil
		})
	}
}

func (t *Tracker) Get(id string) (model.UploadRecord, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	rec, ok := t.uploads[id]
	return rec, ok
}

// ListActive returns records that have not completed yet.
func (t *Tracker) ListActive() []model.UploadRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var records []model.UploadRecord
	for _, rec := range t.uploads {
		if !rec.IsComplete {
			records = append(records, rec)
		}
	}
	return records
}

func (t *Tracker) ListAll() []model.UploadRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()

	records := make([]model.UploadRecord, 0, len(t.uploads))
	for _, rec := range t.uploads {
		records = append(records, rec)
	}
	return records
}

// EvictOlderThan drops completed records whose last update precedes
// now-maxAge. Incomplete records are never evicted, however stale.
func (t *Tracker) EvictOlderThan(maxAge time.Duration) int {
	cutoff := t.now().Add(-maxAge)

	t.mu.Lock()
	defer t.mu.Unlock()

	evicted := 0
	for id, rec := range t.uploads {
		if rec.IsComplete && rec.LastUpdated.Before(cutoff) {
			delete(t.uploads, id)
			evicted++
		}
	}

	if evicted > 0 {
		log.Printf("tracker: evicted %d completed uploads", evicted)
	}
	return evicted
}

// dispatch hands the notification to the job runner; delivery failure must
// never fail the tracking call.
func (t *Tracker) dispatch(n Notification) {
	if t.notifier == nil {
		return
	}
	t.runner.Submit("notify-"+n.UploadID, func(ctx context.Context) error {
		return t.notifier.Notify(ctx, n)
	})
}
