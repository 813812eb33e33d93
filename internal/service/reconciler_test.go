package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediadrop/portal/internal/model"
)

func newTestReconciler(backend *memBackend, files *memFiles, links *memLinks, notifier Notifier) *Reconciler {
	return NewReconciler(backend, files, links, NewNormalizer(files), notifier, "")
}

func TestFinalizeHappyPath(t *testing.T) {
	backend := newMemBackend()
	backend.put("u1", "final cut bytes")
	files := newMemFiles()
	links := newMemLinks()
	links.add(testLink("tok", 1))

	rec, err := newTestReconciler(backend, files, links, nil).Finalize(
		context.Background(), "u1", "u1",
		map[string]string{"token": "tok", "filename": "cut_v3.mov", "filetype": "video/quicktime"},
	)
	require.NoError(t, err)

	assert.Equal(t, "acme/Spring_Campaign/cut_v3.mov", rec.Path)
	assert.Equal(t, model.StatusCompleted, rec.Status)
	assert.Equal(t, "cut_v3.mov", rec.Name)
	assert.Equal(t, int64(len("final cut bytes")), rec.Size)
	assert.NotEmpty(t, rec.Hash)
	require.NotNil(t, rec.CompletedAt)

	// Copy-then-delete: canonical key exists, raw location is gone.
	assert.True(t, backend.has("acme/Spring_Campaign/cut_v3.mov"))
	assert.False(t, backend.has("u1"))

	stored, err := files.FindByID("u1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, stored.Status)
	assert.Equal(t, 1, links.usedCount("tok"))
}

func TestFinalizeDedupReturnsExistingRecord(t *testing.T) {
	backend := newMemBackend()
	backend.put("u1", "identical content")
	backend.put("u2", "identical content")
	files := newMemFiles()
	links := newMemLinks()
	links.add(testLink("tok", 1))

	reconciler := newTestReconciler(backend, files, links, nil)

	first, err := reconciler.Finalize(context.Background(), "u1", "u1",
		map[string]string{"token": "tok", "filename": "cut.mov"})
	require.NoError(t, err)

	second, err := reconciler.Finalize(context.Background(), "u2", "u2",
		map[string]string{"token": "tok", "filename": "cut copy.mov"})
	require.NoError(t, err)

	// Same project, same fingerprint: the first record survives, the second
	// upload's bytes are discarded and no new record appears.
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, files.recordCount())
	assert.False(t, backend.has("u2"))
	assert.Equal(t, 1, backend.count())
}

func TestFinalizeInvalidToken(t *testing.T) {
	backend := newMemBackend()
	backend.put("u1", "content")
	files := newMemFiles()
	notifier := &captureNotifier{}

	_, err := newTestReconciler(backend, files, newMemLinks(), notifier).Finalize(
		context.Background(), "u1", "u1", map[string]string{"token": "missing"})
	require.Error(t, err)

	assert.Equal(t, model.StatusFailed, files.status("u1"))
	assert.Equal(t, 1, notifier.countKind(NotifyFailed))
}

func TestFinalizeReadFailure(t *testing.T) {
	files := newMemFiles()
	links := newMemLinks()
	links.add(testLink("tok", 1))

	_, err := newTestReconciler(newMemBackend(), files, links, nil).Finalize(
		context.Background(), "u1", "gone", map[string]string{"token": "tok", "filename": "x.bin"})
	require.Error(t, err)
	assert.Equal(t, model.StatusFailed, files.status("u1"))
}

func TestFinalizeSourceDeleteFailureIsNonFatal(t *testing.T) {
	backend := newMemBackend()
	backend.put("u1", "content")
	backend.failDelete["u1"] = true
	files := newMemFiles()
	links := newMemLinks()
	links.add(testLink("tok", 1))

	rec, err := newTestReconciler(backend, files, links, nil).Finalize(
		context.Background(), "u1", "u1", map[string]string{"token": "tok", "filename": "cut.mov"})
	require.NoError(t, err)

	// The copy landed; the orphaned source stays behind.
	assert.True(t, backend.has("acme/Spring_Campaign/cut.mov"))
	assert.True(t, backend.has("u1"))
	assert.Equal(t, model.StatusCompleted, rec.Status)
}

func TestReconcileAllMixedNamespace(t *testing.T) {
	backend := newMemBackend()
	backend.put("acme/spring/report.pdf", "already clean")
	backend.put("acme/spring/"+injectedID+"-raw.mov", "needs rename")
	backend.put("acme/spring/_thumb/"+injectedID+"-raw.jpg", "thumbnail")
	backend.put(".turbosort", "sentinel")

	files := newMemFiles()
	require.NoError(t, files.Upsert(&model.UploadedFile{
		ID:   "u1",
		Name: "raw.mov",
		Path: "acme/spring/" + injectedID + "-raw.mov",
	}))

	reconciler := newTestReconciler(backend, files, newMemLinks(), nil)
	stats, err := reconciler.ReconcileAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Renamed)
	assert.Equal(t, 0, stats.Failed)

	assert.True(t, backend.has("acme/spring/raw.mov"))
	assert.False(t, backend.has("acme/spring/"+injectedID+"-raw.mov"))
	// Clean keys, thumbnails and dotfiles are untouched; the sweep never
	// changes the object count.
	assert.True(t, backend.has("acme/spring/report.pdf"))
	assert.True(t, backend.has("acme/spring/_thumb/"+injectedID+"-raw.jpg"))
	assert.True(t, backend.has(".turbosort"))
	assert.Equal(t, 4, backend.count())

	stored, err := files.FindByID("u1")
	require.NoError(t, err)
	assert.Equal(t, "acme/spring/raw.mov", stored.Path)
}

func TestReconcileAllIdempotent(t *testing.T) {
	backend := newMemBackend()
	backend.put("acme/spring/"+injectedID+"-raw.mov", "needs rename")

	reconciler := newTestReconciler(backend, newMemFiles(), newMemLinks(), nil)

	first, err := reconciler.ReconcileAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, first.Renamed)

	second, err := reconciler.ReconcileAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, second.Renamed)
}
