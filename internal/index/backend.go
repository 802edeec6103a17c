// Package index owns the metadata index: an ordered sequence of image
// records persisted whole as a single JSON document, mirrored by a cache.
package index

import (
	"context"
	"errors"
	"fmt"
	"io"

	"imgbed/internal/blobstore"
)

// ErrNotFound indicates the index document has not been created yet.
var ErrNotFound = errors.New("index document not found")

// Backend persists the raw index document. Save rewrites the document in
// full; there is no incremental patching and no concurrency token, so
// concurrent writers across processes race and the last one wins.
type Backend interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
}

// ObjectClient is the slice of the blob-store client the remote backend
// needs.
type ObjectClient interface {
	Get(ctx context.Context, relPath string) (*blobstore.Object, error)
	Put(ctx context.Context, objectName string, data []byte) (string, error)
}

// RemoteBackend keeps the index document as an object in the blob store
// alongside the image blobs themselves.
type RemoteBackend struct {
	client ObjectClient
	object string
}

// NewRemoteBackend creates a backend storing the index under objectName.
func NewRemoteBackend(client ObjectClient, objectName string) *RemoteBackend {
	return &RemoteBackend{client: client, object: objectName}
}

func (b *RemoteBackend) Load(ctx context.Context) ([]byte, error) {
	obj, err := b.client.Get(ctx, b.object)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("loading index document: %w", err)
	}
	defer obj.Body.Close()

	data, err := io.ReadAll(obj.Body)
	if err != nil {
		return nil, fmt.Errorf("reading index document: %w", err)
	}
	return data, nil
}

func (b *RemoteBackend) Save(ctx context.Context, data []byte) error {
	if _, err := b.client.Put(ctx, b.object, data); err != nil {
		return fmt.Errorf("saving index document: %w", err)
	}
	return nil
}
