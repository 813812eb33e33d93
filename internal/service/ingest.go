package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"mediadrop/portal/internal/model"
	"mediadrop/portal/internal/repository"
	"mediadrop/portal/internal/storage"
)

// Transport hook types, matching the tus hook lifecycle.
const (
	HookPreCreate     = "pre-create"
	HookPostCreate    = "post-create"
	HookPostReceive   = "post-receive"
	HookPostFinish    = "post-finish"
	HookPostTerminate = "post-terminate"
)

// ErrReservedExtension rejects sorting-control sentinel files, which are
// portal bookkeeping and must never enter the upload pipeline.
var ErrReservedExtension = errors.New("files with .turbosort extension are not allowed")

// Event is one progress observation from any source. The concrete types
// below form a closed set; Ingest.Dispatch branches on them.
type Event interface {
	eventSource() string
}

// HookEvent is a tus server lifecycle hook.
type HookEvent struct {
	Type        string
	UploadID    string
	Size        int64
	Offset      int64
	Filename    string
	MimeType    string
	Token       string
	StorageType string
	// SourcePath is the transport's on-disk location of the upload body,
	// known at post-finish.
	SourcePath string
	// InfoPath is the transport's sidecar metadata file, removed together
	// with the body on rejection.
	InfoPath string
}

func (HookEvent) eventSource() string { return "hook" }

// StorageCallbackEvent reports that an object landed in the bucket through a
// path that bypasses the tus server, such as a multipart or presigned upload.
type StorageCallbackEvent struct {
	Key      string
	Size     int64
	Filename string
	MimeType string
	Token    string
}

func (StorageCallbackEvent) eventSource() string { return "storage" }

// ProgressPingEvent is a frontend heartbeat. Pings only refresh the ledger;
// completion is always decided by the transport or storage side.
type ProgressPingEvent struct {
	UploadID        string
	BytesUploaded   int64
	BytesTotal      int64
	Filename        string
	Token           string
	ClientNameHint  string
	ProjectNameHint string
}

func (ProgressPingEvent) eventSource() string { return "ping" }

// Ingest funnels every progress source into the ledger and hands completed
// uploads to the reconciler.
type Ingest struct {
	tracker    *Tracker
	reconciler *Reconciler
	normalizer *Normalizer
	backend    storage.Backend
	files      repository.FileRepository
	links      repository.UploadLinkRepository
	runner     submitter
}

type submitter interface {
	Submit(name string, fn func(ctx context.Context) error)
}

func NewIngest(tracker *Tracker, reconciler *Reconciler, normalizer *Normalizer, backend storage.Backend, files repository.FileRepository, links repository.UploadLinkRepository, runner submitter) *Ingest {
	return &Ingest{
		tracker:    tracker,
		reconciler: reconciler,
		normalizer: normalizer,
		backend:    backend,
		files:      files,
		links:      links,
		runner:     runner,
	}
}

// Dispatch routes an event to its handler. Unknown hook types are logged and
// ignored so that a newer transport cannot take the portal down.
func (i *Ingest) Dispatch(ctx context.Context, ev Event) error {
	switch e := ev.(type) {
	case HookEvent:
		return i.handleHook(ctx, e)
	case *HookEvent:
		return i.handleHook(ctx, *e)
	case StorageCallbackEvent:
		return i.handleStorageCallback(ctx, e)
	case *StorageCallbackEvent:
		return i.handleStorageCallback(ctx, *e)
	case ProgressPingEvent:
		return i.handlePing(e)
	case *ProgressPingEvent:
		return i.handlePing(*e)
	default:
		return fmt.Errorf("unsupported event type %T", ev)
	}
}

func (i *Ingest) handleHook(ctx context.Context, e HookEvent) error {
	switch e.Type {
	case HookPreCreate:
		return i.preCreate(e)
	case HookPostCreate:
		return i.postCreate(e)
	case HookPostReceive:
		return i.postReceive(e)
	case HookPostFinish:
		return i.postFinish(ctx, e)
	case HookPostTerminate:
		return i.postTerminate(e)
	default:
		log.Printf("ingest: ignoring unknown hook type %q for %s", e.Type, e.UploadID)
		return nil
	}
}

// preCreate vets the upload before the transport allocates anything: the
// link token must be valid and the filename must not be reserved.
func (i *Ingest) preCreate(e HookEvent) error {
	if isReservedFilename(e.Filename) {
		log.Printf("ingest: rejecting %q at pre-create: reserved extension", e.Filename)
		return ErrReservedExtension
	}

	if _, err := i.links.ValidateToken(e.Token); err != nil {
		log.Printf("ingest: rejecting upload of %q: %v", e.Filename, err)
		return err
	}

	return nil
}

func (i *Ingest) postCreate(e HookEvent) error {
	// A reserved file that slipped past pre-create is quarantined in the
	// record store; its bytes are dropped at post-finish.
	if isReservedFilename(e.Filename) {
		i.quarantine(e)
		return ErrReservedExtension
	}

	record := &model.UploadedFile{
		ID:        e.UploadID,
		Name:      CleanFilename(e.Filename),
		Size:      e.Size,
		MimeType:  e.MimeType,
		Status:    model.StatusUploading,
		Storage:   i.backend.Kind(),
		ProjectID: i.projectFor(e.Token),
	}
	if err := i.files.Upsert(record); err != nil {
		log.Printf("ingest: failed to persist record for %s: %v", e.UploadID, err)
	}

	i.tracker.Track(e.UploadID, e.Size, 0, i.metadataFor(e), false)
	return nil
}

func (i *Ingest) postReceive(e HookEvent) error {
	if isReservedFilename(e.Filename) {
		i.quarantine(e)
		return ErrReservedExtension
	}

	i.tracker.Track(e.UploadID, e.Size, e.Offset, i.metadataFor(e), false)
	return nil
}

func (i *Ingest) postFinish(ctx context.Context, e HookEvent) error {
	if isReservedFilename(e.Filename) {
		i.quarantine(e)
		i.discard(ctx, e)
		return ErrReservedExtension
	}

	i.tracker.Track(e.UploadID, e.Size, e.Size, i.metadataFor(e), true)
	i.tracker.Complete(e.UploadID)

	meta := i.metadataFor(e)
	source := e.SourcePath
	if source == "" {
		source = e.UploadID
	}
	id := e.UploadID
	i.runner.Submit("finalize-"+id, func(ctx context.Context) error {
		_, err := i.reconciler.Finalize(ctx, id, source, meta)
		return err
	})

	return nil
}

func (i *Ingest) postTerminate(e HookEvent) error {
	log.Printf("ingest: upload %s terminated by the client", e.UploadID)
	if err := i.files.MarkCancelled(e.UploadID); err != nil {
		log.Printf("ingest: failed to mark %s cancelled: %v", e.UploadID, err)
	}
	return nil
}

// handleStorageCallback ingests an object that arrived outside the tus
// transport. The object is already at rest, so the ledger entry goes through
// its whole lifecycle in one step.
func (i *Ingest) handleStorageCallback(ctx context.Context, e StorageCallbackEvent) error {
	if isReservedFilename(e.Filename) || isReservedFilename(e.Key) {
		return ErrReservedExtension
	}

	link, err := i.links.ValidateToken(e.Token)
	if err != nil {
		return err
	}

	key := e.Key
	if HasInjectedID(key) {
		hintClient, hintProject := "", ""
		if link.Project != nil && link.Project.Client != nil {
			hintClient = link.Project.Client.Code
			hintProject = link.Project.Name
		}
		clean := i.normalizer.Normalize(key, hintClient, hintProject)
		if clean != key {
			if err := i.backend.Rename(ctx, key, clean); err != nil && !errors.Is(err, storage.ErrSourceDelete) {
				return fmt.Errorf("relocate %s: %w", key, err)
			}
			key = clean
		}
	}

	id := syntheticID(e.Key)
	record := &model.UploadedFile{
		ID:        id,
		Name:      CleanFilename(filenameOf(e, key)),
		Path:      key,
		Size:      e.Size,
		MimeType:  e.MimeType,
		Status:    model.StatusProcessing,
		Storage:   i.backend.Kind(),
		ProjectID: link.ProjectID,
	}
	if err := i.files.Upsert(record); err != nil {
		log.Printf("ingest: failed to persist record for %s: %v", id, err)
	}

	meta := map[string]string{
		"filename": filenameOf(e, key),
		"filetype": e.MimeType,
		"token":    e.Token,
		"storage":  model.StorageS3,
		"key":      key,
	}
	if link.Project != nil && link.Project.Client != nil {
		meta["clientName"] = link.Project.Client.Name
		meta["projectName"] = link.Project.Name
	}

	i.tracker.Track(id, e.Size, e.Size, meta, true)
	i.tracker.Complete(id)

	i.runner.Submit("finalize-"+id, func(ctx context.Context) error {
		_, err := i.reconciler.Finalize(ctx, id, key, meta)
		return err
	})

	return nil
}

// handlePing refreshes the ledger from a frontend heartbeat. A ping never
// marks completion even when the reported bytes reach the total.
func (i *Ingest) handlePing(e ProgressPingEvent) error {
	if e.UploadID == "" {
		return errors.New("progress ping without an upload id")
	}

	meta := map[string]string{
		"filename": e.Filename,
		"token":    e.Token,
	}
	if e.ClientNameHint != "" {
		meta["clientName"] = e.ClientNameHint
	}
	if e.ProjectNameHint != "" {
		meta["projectName"] = e.ProjectNameHint
	}

	i.tracker.Track(e.UploadID, e.BytesTotal, e.BytesUploaded, meta, false)
	return nil
}

// quarantine marks the durable record for a reserved upload failed so the
// rejection survives a restart.
func (i *Ingest) quarantine(e HookEvent) {
	record := &model.UploadedFile{
		ID:        e.UploadID,
		Name:      e.Filename,
		Path:      "REJECTED: .turbosort files are not allowed",
		Status:    model.StatusFailed,
		Storage:   i.backend.Kind(),
		ProjectID: i.projectFor(e.Token),
	}
	if err := i.files.Upsert(record); err != nil {
		log.Printf("ingest: failed to quarantine %s: %v", e.UploadID, err)
	}
}

// discard removes the finished body and sidecar of a rejected upload.
func (i *Ingest) discard(ctx context.Context, e HookEvent) {
	for _, p := range []string{e.SourcePath, e.InfoPath} {
		if p == "" {
			continue
		}
		if err := i.backend.Delete(ctx, p); err != nil {
			log.Printf("ingest: failed to remove rejected object %s: %v", p, err)
		}
	}
}

func (i *Ingest) metadataFor(e HookEvent) map[string]string {
	meta := map[string]string{
		"filename": e.Filename,
		"filetype": e.MimeType,
		"token":    e.Token,
	}
	if e.StorageType != "" {
		meta["storage"] = e.StorageType
	}
	if link, err := i.links.FindByToken(e.Token); err == nil && link.Project != nil && link.Project.Client != nil {
		meta["clientName"] = link.Project.Client.Name
		meta["projectName"] = link.Project.Name
	}
	return meta
}

func (i *Ingest) projectFor(token string) uint {
	link, err := i.links.FindByToken(token)
	if err != nil {
		return 0
	}
	return link.ProjectID
}

// isReservedFilename reports whether the name is the sorting-control
// sentinel or carries its extension.
func isReservedFilename(name string) bool {
	lower := strings.ToLower(name)
	return lower == ".turbosort" || strings.HasSuffix(lower, ".turbosort")
}

// syntheticID derives a stable ledger id for objects reported by storage
// callbacks, which have no transport upload id.
func syntheticID(key string) string {
	if m := uploadIDPattern.FindString(key); m != "" {
		return "s3-" + strings.ToLower(strings.TrimSuffix(m, "-"))
	}
	return "s3-" + fmt.Sprintf("%d", time.Now().UnixNano())
}

func filenameOf(e StorageCallbackEvent, key string) string {
	if e.Filename != "" {
		return e.Filename
	}
	parts := strings.Split(key, "/")
	return parts[len(parts)-1]
}
