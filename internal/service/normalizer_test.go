package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediadrop/portal/internal/model"
)

const injectedID = "3f2b8c4d-9a1e-4f6b-8c2d-7e5a9b1c3d4e"

func TestHasInjectedID(t *testing.T) {
	assert.True(t, HasInjectedID(injectedID+"-report.pdf"))
	assert.True(t, HasInjectedID("acme/spring/"+injectedID+"-cut.mov"))
	assert.True(t, HasInjectedID("3F2B8C4D-9A1E-4F6B-8C2D-7E5A9B1C3D4E-upper.pdf"))
	assert.False(t, HasInjectedID("acme/spring/report.pdf"))
	assert.False(t, HasInjectedID("not-a-uuid-1234-file.txt"))
}

func TestCleanFilename(t *testing.T) {
	assert.Equal(t, "report.pdf", CleanFilename(injectedID+"-report.pdf"))
	assert.Equal(t, "report.pdf", CleanFilename("report.pdf"))
	assert.Equal(t, "my-file.txt", CleanFilename("my-"+injectedID+"-file.txt"))
	assert.Equal(t, "a_b.txt", CleanFilename(`a:b.txt`))
	assert.Equal(t, "_secret", CleanFilename("..secret"))
}

func TestCleanFilenameIdempotent(t *testing.T) {
	names := []string{
		injectedID + "-report.pdf",
		"plain.txt",
		"multi--dash.mov",
	}
	for _, name := range names {
		once := CleanFilename(name)
		assert.Equal(t, once, CleanFilename(once))
	}
}

func TestComposeKey(t *testing.T) {
	assert.Equal(t, "acme/Spring_Campaign/cut.mov", ComposeKey("acme", "Spring Campaign", "cut.mov"))
	assert.Equal(t, "acme/spring/report.pdf", ComposeKey("acme", "spring", injectedID+"-report.pdf"))
}

func TestNormalizeBareFilenameWithoutContext(t *testing.T) {
	n := NewNormalizer(newMemFiles())

	got := n.Normalize(injectedID+"-report.pdf", "", "")
	assert.Equal(t, "default/default/report.pdf", got)
}

func TestNormalizeUsesHints(t *testing.T) {
	n := NewNormalizer(newMemFiles())

	got := n.Normalize(injectedID+"-report.pdf", "acme", "spring")
	assert.Equal(t, "acme/spring/report.pdf", got)
}

func TestNormalizeAlreadyCanonical(t *testing.T) {
	n := NewNormalizer(newMemFiles())

	key := "acme/spring/report.pdf"
	assert.Equal(t, key, n.Normalize(key, "", ""))
}

func TestNormalizeKeepsExistingPrefix(t *testing.T) {
	n := NewNormalizer(newMemFiles())

	got := n.Normalize("acme/spring/"+injectedID+"-cut.mov", "", "")
	assert.Equal(t, "acme/spring/cut.mov", got)
}

func TestNormalizeNeverDowngradesToDefault(t *testing.T) {
	// A stale record resolves the key's owner to the default bucket, but the
	// key already sits under a real client/project prefix and must stay put.
	key := "acme/spring/" + injectedID + "-cut.mov"

	files := newMemFiles()
	require.NoError(t, files.Upsert(&model.UploadedFile{
		ID:   "u1",
		Name: "cut.mov",
		Path: key,
		Project: &model.Project{
			Name:   DefaultSegment,
			Client: &model.Client{Name: "Default", Code: DefaultSegment},
		},
	}))

	n := NewNormalizer(files)
	assert.Equal(t, key, n.Normalize(key, "", ""))
}

func TestNormalizeResolvesOwnerByPathRecord(t *testing.T) {
	files := newMemFiles()
	require.NoError(t, files.Upsert(&model.UploadedFile{
		ID:   "u1",
		Name: "cut.mov",
		Path: injectedID + "-cut.mov",
		Project: &model.Project{
			Name:   "Spring Campaign",
			Client: &model.Client{Name: "Acme Media", Code: "acme"},
		},
	}))

	n := NewNormalizer(files)
	got := n.Normalize(injectedID+"-cut.mov", "", "")
	assert.Equal(t, "acme/Spring_Campaign/cut.mov", got)
}

func TestNormalizeResolvesOwnerByCleanName(t *testing.T) {
	files := newMemFiles()
	older := &model.UploadedFile{
		ID:        "old",
		Name:      "cut.mov",
		Path:      "elsewhere/old/cut.mov",
		CreatedAt: time.Now().Add(-time.Hour),
		Project: &model.Project{
			Name:   "Archive",
			Client: &model.Client{Name: "Old Co", Code: "oldco"},
		},
	}
	newer := &model.UploadedFile{
		ID:        "new",
		Name:      "cut.mov",
		Path:      "elsewhere/new/cut.mov",
		CreatedAt: time.Now(),
		Project: &model.Project{
			Name:   "Spring Campaign",
			Client: &model.Client{Name: "Acme Media", Code: "acme"},
		},
	}
	require.NoError(t, files.Upsert(older))
	require.NoError(t, files.Upsert(newer))

	n := NewNormalizer(files)
	got := n.Normalize(injectedID+"-cut.mov", "", "")
	assert.Equal(t, "acme/Spring_Campaign/cut.mov", got)
}
