// Package storage persists version artifacts (raw bytes, canonical bytes,
// extracted text) in a content-addressed blob store. The relational rows only
// carry opaque refs; the bytes live here.
package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// BlobStore stores and retrieves version artifacts. Put returns an opaque ref
// that encodes the backend, so refs stay resolvable if the configured backend
// changes later.
type BlobStore interface {
	// Put writes data under key and returns the ref to store on the row.
	Put(ctx context.Context, key string, data []byte) (string, error)

	// Get resolves a ref previously returned by Put.
	Get(ctx context.Context, ref string) ([]byte, error)

	// Delete removes the blob behind ref. Missing blobs are not an error.
	Delete(ctx context.Context, ref string) error
}

// Artifact names the three blobs kept per document version.
type Artifact string

const (
	ArtifactRaw       Artifact = "raw.pdf"
	ArtifactCanonical Artifact = "canonical.pdf"
	ArtifactText      Artifact = "text.txt"
)

// VersionKey builds the blob key for one artifact of one version. Versions
// are immutable once written, so keys never collide across cycles.
func VersionKey(sourceUUID uuid.UUID, sequence int, artifact Artifact) string {
	return fmt.Sprintf("versions/%s/%04d/%s", sourceUUID, sequence, artifact)
}

// splitRef separates a ref into its backend scheme and key.
func splitRef(ref string) (scheme, rest string, err error) {
	scheme, rest, ok := strings.Cut(ref, ":")
	if !ok || scheme == "" || rest == "" {
		return "", "", fmt.Errorf("malformed blob ref %q", ref)
	}
	return scheme, rest, nil
}
