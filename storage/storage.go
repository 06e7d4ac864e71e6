// Package storage keeps uploaded files in an object store and hands out
// time-limited download URLs for them.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidSignature is returned when a local download URL does not verify.
var ErrInvalidSignature = errors.New("invalid or expired signature")

// ErrInvalidKey is returned for object keys that are empty or escape the root.
var ErrInvalidKey = errors.New("invalid object key")

// ObjectStorage is implemented by the GCS and local-disk backends.
type ObjectStorage interface {
	Put(ctx context.Context, key string, r io.Reader, contentType string) error
	// Delete removes the object; a missing object is not an error.
	Delete(ctx context.Context, key string) error
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// ObjectKey builds the key of a new object owned by a client:
// clients/<client>/step-<n>/<category>/<uuid><ext>.
func ObjectKey(clientID string, step int, category, originalName string) string {
	ext := strings.ToLower(filepath.Ext(originalName))
	cat := strings.Trim(unsafeChars.ReplaceAllString(strings.ToLower(category), "-"), "-")
	if cat == "" {
		cat = "misc"
	}
	return path.Join("clients", clientID, fmt.Sprintf("step-%d", step), cat, uuid.NewString()+ext)
}

// ThumbnailKey derives the thumbnail key stored next to an image.
func ThumbnailKey(key string) string {
	ext := path.Ext(key)
	return strings.TrimSuffix(key, ext) + "_thumb.jpg"
}
