package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"mediadrop/portal/internal/model"
	"mediadrop/portal/internal/repository"
	"mediadrop/portal/internal/storage"
)

// memBackend is an in-memory object store for tests.
type memBackend struct {
	mu         sync.Mutex
	objects    map[string][]byte
	failDelete map[string]bool
	kind       string
}

func newMemBackend() *memBackend {
	return &memBackend{
		objects:    make(map[string][]byte),
		failDelete: make(map[string]bool),
		kind:       model.StorageLocal,
	}
}

func (b *memBackend) Write(_ context.Context, key string, body io.Reader, _ string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = data
	return nil
}

func (b *memBackend) Read(_ context.Context, key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[key]
	if !ok {
		return nil, fmt.Errorf("no such object: %s", key)
	}
	return data, nil
}

func (b *memBackend) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failDelete[key] {
		return fmt.Errorf("delete refused: %s", key)
	}
	delete(b.objects, key)
	return nil
}

func (b *memBackend) Rename(ctx context.Context, oldKey, newKey string) error {
	data, err := b.Read(ctx, oldKey)
	if err != nil {
		return err
	}
	if err := b.Write(ctx, newKey, bytes.NewReader(data), ""); err != nil {
		return err
	}
	if err := b.Delete(ctx, oldKey); err != nil {
		return fmt.Errorf("%w: %s: %v", storage.ErrSourceDelete, oldKey, err)
	}
	return nil
}

func (b *memBackend) List(_ context.Context) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	keys := make([]string, 0, len(b.objects))
	for key := range b.objects {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

func (b *memBackend) Kind() string { return b.kind }

func (b *memBackend) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.objects)
}

func (b *memBackend) has(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.objects[key]
	return ok
}

func (b *memBackend) put(key, content string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = []byte(content)
}

// memFiles is an in-memory FileRepository.
type memFiles struct {
	mu      sync.Mutex
	records map[string]*model.UploadedFile
}

func newMemFiles() *memFiles {
	return &memFiles{records: make(map[string]*model.UploadedFile)}
}

func (f *memFiles) Upsert(file *model.UploadedFile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *file
	f.records[file.ID] = &cp
	return nil
}

func (f *memFiles) FindByID(id string) (*model.UploadedFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[id]
	if !ok {
		return nil, fmt.Errorf("record not found: %s", id)
	}
	cp := *rec
	return &cp, nil
}

func (f *memFiles) FindByPath(path string) (*model.UploadedFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range f.records {
		if rec.Path == path {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *memFiles) FindLatestByNameContains(fragment string) (*model.UploadedFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *model.UploadedFile
	for _, rec := range f.records {
		if fragment != "" && bytes.Contains([]byte(rec.Name), []byte(fragment)) {
			if latest == nil || rec.CreatedAt.After(latest.CreatedAt) {
				latest = rec
			}
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (f *memFiles) FindByProjectAndHash(projectID uint, hash string) (*model.UploadedFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range f.records {
		if rec.ProjectID == projectID && rec.Hash == hash && hash != "" {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *memFiles) FindByProject(projectID uint) ([]model.UploadedFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.UploadedFile
	for _, rec := range f.records {
		if rec.ProjectID == projectID {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (f *memFiles) UpdatePath(id, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rec, ok := f.records[id]; ok {
		rec.Path = path
	}
	return nil
}

func (f *memFiles) MarkFailed(id, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[id]
	if !ok {
		rec = &model.UploadedFile{ID: id}
		f.records[id] = rec
	}
	rec.Status = model.StatusFailed
	if reason != "" {
		rec.Path = reason
	}
	return nil
}

func (f *memFiles) MarkCancelled(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rec, ok := f.records[id]; ok {
		rec.Status = model.StatusCancelled
	}
	return nil
}

func (f *memFiles) status(id string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rec, ok := f.records[id]; ok {
		return rec.Status
	}
	return ""
}

func (f *memFiles) recordCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

// memLinks is an in-memory UploadLinkRepository.
type memLinks struct {
	mu    sync.Mutex
	links map[string]*model.UploadLink
}

func newMemLinks() *memLinks {
	return &memLinks{links: make(map[string]*model.UploadLink)}
}

func (l *memLinks) add(link *model.UploadLink) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.links[link.Token] = link
}

func (l *memLinks) Create(link *model.UploadLink) error {
	l.add(link)
	return nil
}

func (l *memLinks) FindByToken(token string) (*model.UploadLink, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	link, ok := l.links[token]
	if !ok {
		return nil, repository.ErrLinkNotFound
	}
	return link, nil
}

func (l *memLinks) ValidateToken(token string) (*model.UploadLink, error) {
	link, err := l.FindByToken(token)
	if err != nil {
		return nil, err
	}
	if link.Expired(time.Now()) {
		return nil, repository.ErrLinkExpired
	}
	if link.Exhausted() {
		return nil, repository.ErrLinkExhausted
	}
	return link, nil
}

func (l *memLinks) IncrementUsedCount(id uint) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, link := range l.links {
		if link.ID == id {
			link.UsedCount++
		}
	}
	return nil
}

func (l *memLinks) usedCount(token string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if link, ok := l.links[token]; ok {
		return link.UsedCount
	}
	return 0
}

// testLink builds a valid link with preloaded project and client.
func testLink(token string, projectID uint) *model.UploadLink {
	link := &model.UploadLink{
		Token:     token,
		ProjectID: projectID,
		ExpiresAt: time.Now().Add(time.Hour),
		Project: &model.Project{
			Name:     "Spring Campaign",
			ClientID: 1,
			Client:   &model.Client{Name: "Acme Media", Code: "acme"},
		},
	}
	link.ID = projectID
	return link
}

// captureNotifier records every notification it receives.
type captureNotifier struct {
	mu    sync.Mutex
	notes []Notification
}

func (c *captureNotifier) Notify(_ context.Context, n Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notes = append(c.notes, n)
	return nil
}

func (c *captureNotifier) kinds() []NotificationKind {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]NotificationKind, 0, len(c.notes))
	for _, n := range c.notes {
		out = append(out, n.Kind)
	}
	return out
}

func (c *captureNotifier) countKind(kind NotificationKind) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, note := range c.notes {
		if note.Kind == kind {
			n++
		}
	}
	return n
}

func (c *captureNotifier) last() (Notification, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.notes) == 0 {
		return Notification{}, false
	}
	return c.notes[len(c.notes)-1], true
}

// fakeSweeper counts batch sweep invocations.
type fakeSweeper struct {
	mu    sync.Mutex
	calls int
}

func (s *fakeSweeper) ReconcileAll(context.Context) (ReconcileStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return ReconcileStats{}, nil
}

func (s *fakeSweeper) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// syncRunner executes submitted jobs inline for deterministic tests; delays
// are ignored.
type syncRunner struct{}

func (syncRunner) Submit(_ string, fn func(ctx context.Context) error) {
	_ = fn(context.Background())
}

func (syncRunner) SubmitAfter(_ time.Duration, _ string, fn func(ctx context.Context) error) {
	_ = fn(context.Background())
}
