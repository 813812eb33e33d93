package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"

	"mediadrop/portal/internal/model"
	"mediadrop/portal/internal/repository"
	"mediadrop/portal/internal/storage"
)

// ReconcileStats summarizes a batch sweep over the storage namespace.
type ReconcileStats struct {
	Renamed int `json:"renamed"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Reconciler finalizes completed uploads: it relocates the object to its
// canonical CLIENT/PROJECT/FILENAME key, fingerprints the content, dedups
// against existing records in the same project and persists the terminal
// state. Finalization is single-attempt; a failure marks the durable record
// failed and is only recoverable through a later manual sweep. Transport
// completion in the ledger is never reverted by a finalize failure.
type Reconciler struct {
	backend    storage.Backend
	files      repository.FileRepository
	links      repository.UploadLinkRepository
	normalizer *Normalizer
	notifier   Notifier

	// publicURL prefixes canonical keys for the record's url column; empty
	// for local storage.
	publicURL string
}

func NewReconciler(backend storage.Backend, files repository.FileRepository, links repository.UploadLinkRepository, normalizer *Normalizer, notifier Notifier, publicURL string) *Reconciler {
	return &Reconciler{
		backend:    backend,
		files:      files,
		links:      links,
		normalizer: normalizer,
		notifier:   notifier,
		publicURL:  publicURL,
	}
}

// Finalize moves the object at rawLocation to its canonical key, computes
// the content fingerprint and upserts the durable record for the upload id.
// meta carries the declared filename, mime type and link token from the
// transport. The returned record is the surviving one: on dedup it is the
// pre-existing record, and the new bytes are discarded.
func (r *Reconciler) Finalize(ctx context.Context, id, rawLocation string, meta map[string]string) (*model.UploadedFile, error) {
	link, err := r.links.ValidateToken(meta["token"])
	if err != nil {
		return nil, r.fail(ctx, id, meta, fmt.Errorf("token validation: %w", err))
	}
	if link.Project == nil || link.Project.Client == nil {
		return nil, r.fail(ctx, id, meta, errors.New("upload link has no project or client"))
	}

	filename := meta["filename"]
	if filename == "" {
		filename = id
	}

	canonicalKey := ComposeKey(link.Project.Client.Code, link.Project.Name, filename)

	data, err := r.backend.Read(ctx, rawLocation)
	if err != nil {
		return nil, r.fail(ctx, id, meta, fmt.Errorf("source read: %w", err))
	}

	hash := fmt.Sprintf("%x", xxhash.Sum64(data))

	// Identical fingerprint inside the same project means the content is
	// already delivered: discard the new bytes and keep the existing record.
	existing, err := r.files.FindByProjectAndHash(link.ProjectID, hash)
	if err != nil {
		return nil, r.fail(ctx, id, meta, fmt.Errorf("dedup lookup: %w", err))
	}
	if existing != nil {
		log.Printf("reconciler: upload %s duplicates file %s, discarding", id, existing.ID)
		if err := r.backend.Delete(ctx, rawLocation); err != nil {
			log.Printf("reconciler: failed to discard duplicate %s: %v", rawLocation, err)
		}
		if err := r.links.IncrementUsedCount(link.ID); err != nil {
			log.Printf("reconciler: failed to bump link usage for %s: %v", id, err)
		}
		return existing, nil
	}

	if canonicalKey != rawLocation {
		if err := r.backend.Rename(ctx, rawLocation, canonicalKey); err != nil {
			if !errors.Is(err, storage.ErrSourceDelete) {
				return nil, r.fail(ctx, id, meta, fmt.Errorf("relocate: %w", err))
			}
			// The copy landed; an orphaned source is acceptable collateral.
			log.Printf("reconciler: %v", err)
		}
	}

	now := time.Now()
	record := &model.UploadedFile{
		ID:          id,
		Name:        CleanFilename(filename),
		Path:        canonicalKey,
		URL:         r.urlFor(canonicalKey),
		Size:        int64(len(data)),
		MimeType:    mimeFrom(meta),
		Hash:        hash,
		Status:      model.StatusCompleted,
		Storage:     r.backend.Kind(),
		ProjectID:   link.ProjectID,
		CompletedAt: &now,
	}

	if err := r.files.Upsert(record); err != nil {
		return nil, r.fail(ctx, id, meta, fmt.Errorf("record upsert: %w", err))
	}

	if err := r.links.IncrementUsedCount(link.ID); err != nil {
		log.Printf("reconciler: failed to bump link usage for %s: %v", id, err)
	}

	log.Printf("reconciler: upload %s finalized at %s", id, canonicalKey)
	return record, nil
}

// ReconcileAll sweeps the whole namespace for keys still carrying injected
// identifiers and renames them to canonical keys. System objects (dotfiles,
// thumbnail subpaths) are skipped, as is any rename that would move a
// well-organized object into the default bucket. Object count is unchanged
// by the sweep.
func (r *Reconciler) ReconcileAll(ctx context.Context) (ReconcileStats, error) {
	var stats ReconcileStats

	keys, err := r.backend.List(ctx)
	if err != nil {
		return stats, fmt.Errorf("namespace scan: %w", err)
	}

	log.Printf("reconciler: sweeping %d objects", len(keys))

	for _, key := range keys {
		if isSystemKey(key) {
			continue
		}
		if !HasInjectedID(key) {
			continue
		}

		cleanKey := r.normalizer.Normalize(key, "", "")
		if cleanKey == key {
			stats.Skipped++
			continue
		}

		if err := r.backend.Rename(ctx, key, cleanKey); err != nil {
			if !errors.Is(err, storage.ErrSourceDelete) {
				log.Printf("reconciler: failed to rename %s: %v", key, err)
				stats.Failed++
				continue
			}
			log.Printf("reconciler: %v", err)
		}
		stats.Renamed++
		log.Printf("reconciler: renamed %s -> %s", key, cleanKey)

		rec, err := r.files.FindByPath(key)
		if err != nil {
			log.Printf("reconciler: record lookup for %s failed: %v", key, err)
			continue
		}
		if rec != nil {
			if err := r.files.UpdatePath(rec.ID, cleanKey); err != nil {
				log.Printf("reconciler: failed to update record path for %s: %v", rec.ID, err)
			}
		}
	}

	log.Printf("reconciler: sweep done, renamed %d, skipped %d, failed %d", stats.Renamed, stats.Skipped, stats.Failed)
	return stats, nil
}

// fail transitions the durable record to failed and notifies; it returns the
// original error for the caller's log line.
func (r *Reconciler) fail(ctx context.Context, id string, meta map[string]string, cause error) error {
	log.Printf("reconciler: finalize of %s failed: %v", id, cause)

	if err := r.files.MarkFailed(id, ""); err != nil {
		log.Printf("reconciler: failed to mark record %s failed: %v", id, err)
	}

	if r.notifier != nil {
		n := Notification{
			Kind:     NotifyFailed,
			UploadID: id,
			Filename: meta["filename"],
			Reason:   cause.Error(),
		}
		if err := r.notifier.Notify(ctx, n); err != nil {
			log.Printf("reconciler: failure notification for %s not delivered: %v", id, err)
		}
	}

	return cause
}

func (r *Reconciler) urlFor(key string) string {
	if r.publicURL == "" {
		return ""
	}
	return strings.TrimRight(r.publicURL, "/") + "/" + key
}

// isSystemKey reports whether the key belongs to portal bookkeeping rather
// than delivered content: thumbnail subtrees and dotfiles.
func isSystemKey(key string) bool {
	if strings.Contains(key, "/_thumb/") {
		return true
	}
	parts := strings.Split(key, "/")
	return strings.HasPrefix(parts[len(parts)-1], ".")
}

func mimeFrom(meta map[string]string) string {
	if m := meta["filetype"]; m != "" {
		return m
	}
	if m := meta["type"]; m != "" {
		return m
	}
	return "application/octet-stream"
}
