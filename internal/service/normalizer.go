package service

import (
	"log"
	"regexp"
	"strings"

	"mediadrop/portal/internal/model"
)

// DefaultSegment is the catch-all client/project bucket for content whose
// owner could not be resolved. Landing here is always logged: it means
// mis-filed content.
const DefaultSegment = "default"

// uploadIDPattern matches the unique identifier an upstream upload tool
// injects into filenames, with its trailing separator when present.
var uploadIDPattern = regexp.MustCompile(`(?i)[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}-?`)

// unsafePathChars are replaced with underscores in filename components.
var unsafePathChars = regexp.MustCompile(`[/\\:*?"<>|]`)

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	separatorRun  = regexp.MustCompile(`-+`)
)

// HasInjectedID reports whether the key still carries an injected unique
// identifier anywhere in it.
func HasInjectedID(key string) bool {
	return uploadIDPattern.MatchString(key)
}

// CleanFilename strips injected identifiers from a single path segment,
// collapses the separator runs that stripping leaves behind and replaces
// path-unsafe characters. Applying it twice yields the same result as once.
func CleanFilename(name string) string {
	clean := uploadIDPattern.ReplaceAllString(name, "")
	clean = strings.TrimLeft(clean, "-")
	clean = separatorRun.ReplaceAllString(clean, "-")
	clean = unsafePathChars.ReplaceAllString(clean, "_")
	clean = strings.ReplaceAll(clean, "..", "_")
	return clean
}

// sanitizeSegment makes a client or project name safe as a key segment.
func sanitizeSegment(s string) string {
	s = whitespaceRun.ReplaceAllString(strings.TrimSpace(s), "_")
	return unsafePathChars.ReplaceAllString(s, "_")
}

// ComposeKey builds the canonical CLIENT/PROJECT/FILENAME key.
func ComposeKey(clientCode, projectName, filename string) string {
	return sanitizeSegment(clientCode) + "/" + sanitizeSegment(projectName) + "/" + CleanFilename(filename)
}

// RecordLookup is the slice of the durable store the normalizer consults to
// recover ownership context for a storage key.
type RecordLookup interface {
	FindByPath(path string) (*model.UploadedFile, error)
	FindLatestByNameContains(fragment string) (*model.UploadedFile, error)
}

// Normalizer recomputes canonical storage keys. It prefers authoritative
// record-store context over caller hints and never moves content that is
// already well organized into the default bucket.
type Normalizer struct {
	files RecordLookup
}

func NewNormalizer(files RecordLookup) *Normalizer {
	return &Normalizer{files: files}
}

// Normalize derives the canonical key for a raw key or bare filename.
// Resolution order for the client/project components: exact record match by
// path, then the most recent record with a matching clean filename, then the
// key's own non-default two-segment prefix, then the caller's hints, then
// the default bucket. The result equals the input when the key is already
// canonical, and a key with a non-default prefix is never renamed into
// default/...
func (n *Normalizer) Normalize(key, hintClient, hintProject string) string {
	parts := strings.Split(strings.Trim(key, "/"), "/")
	filename := parts[len(parts)-1]
	clean := CleanFilename(filename)

	clientCode, projectName := n.resolveOwner(key, filename, clean, parts, hintClient, hintProject)

	composed := ComposeKey(clientCode, projectName, filename)
	if composed == key {
		return key
	}

	// Never downgrade a correctly-scoped key into the default bucket.
	composedParts := strings.Split(composed, "/")
	if composedParts[0] == DefaultSegment || composedParts[1] == DefaultSegment {
		if len(parts) >= 3 && parts[0] != DefaultSegment && parts[1] != DefaultSegment {
			log.Printf("normalizer: refusing to move %s into the default bucket", key)
			return key
		}
	}

	if clientCode == DefaultSegment || projectName == DefaultSegment {
		log.Printf("normalizer: no owner resolved for %s, filing under %s", key, composed)
	}

	return composed
}

func (n *Normalizer) resolveOwner(key, filename, clean string, parts []string, hintClient, hintProject string) (string, string) {
	if n.files != nil {
		if rec, err := n.files.FindByPath(key); err != nil {
			log.Printf("normalizer: record lookup by path failed for %s: %v", key, err)
		} else if code, name, ok := ownerOf(rec); ok {
			return code, name
		}

		// A stripped identifier means some record likely refers to this
		// content by its clean name; the most recent one wins so that
		// shared asset names resolve to the freshest context.
		if clean != filename && clean != "" {
			if rec, err := n.files.FindLatestByNameContains(clean); err != nil {
				log.Printf("normalizer: record lookup by name failed for %s: %v", clean, err)
			} else if code, name, ok := ownerOf(rec); ok {
				return code, name
			}
		}
	}

	if len(parts) >= 3 && parts[0] != DefaultSegment && parts[1] != DefaultSegment && parts[0] != "" && parts[1] != "" {
		return parts[0], parts[1]
	}

	clientCode := hintClient
	projectName := hintProject
	if clientCode == "" {
		clientCode = DefaultSegment
	}
	if projectName == "" {
		projectName = DefaultSegment
	}
	return clientCode, projectName
}

func ownerOf(rec *model.UploadedFile) (string, string, bool) {
	if rec == nil || rec.Project == nil || rec.Project.Client == nil {
		return "", "", false
	}
	code := rec.Project.Client.Code
	name := rec.Project.Name
	if code == "" || name == "" {
		return "", "", false
	}
	return code, name, true
}
