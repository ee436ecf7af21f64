// Package store persists untangler outputs behind a small sink contract.
//
// Ids are slash-separated names such as "1092/logical_segmented_text.json".
// Sinks do not interpret payloads.
package store

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"
)

// ErrNotFound is returned by Fetch for unknown ids
var ErrNotFound = errors.New("not found")

// Sink stores and retrieves payloads by id
type Sink interface {
	Store(ctx context.Context, id string, payload []byte) error
	Fetch(ctx context.Context, id string) ([]byte, error)
	Close() error
}

// versionSpace namespaces text version ids
var versionSpace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/gardar/untangler/text-version"))

// VersionID derives a stable version id from the content of a payload, so
// the same segmented text always gets the same id
func VersionID(payload []byte) string {
	digest := blake3.Sum256(payload)
	return uuid.NewSHA1(versionSpace, digest[:]).String()
}

// cleanID validates an id and returns its canonical form
func cleanID(id string) (string, error) {
	clean := path.Clean(id)
	if id == "" || path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("invalid id %q", id)
	}
	return clean, nil
}
