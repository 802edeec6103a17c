// Package proxy relays validated image fetches from the public surface to
// the blob store.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"imgbed/internal/blobstore"
)

// ErrInvalidPath indicates the requested path was empty or attempted
// traversal. Invalid paths are rejected before any upstream call.
var ErrInvalidPath = errors.New("invalid image path")

// Object names are UUID-stamped and never rewritten, so proxied responses
// are immutable and safe to cache publicly for a year.
const cacheControl = "public, max-age=31536000"

const defaultContentType = "image/png"

// Fetcher is the slice of the blob-store client the streamer needs.
type Fetcher interface {
	Get(ctx context.Context, relPath string) (*blobstore.Object, error)
}

// Result is a relayed upstream response.
type Result struct {
	ContentType  string
	CacheControl string
	Body         []byte
}

// Streamer resolves client-supplied relative paths into blob-store fetches.
type Streamer struct {
	fetcher Fetcher
}

// NewStreamer creates a streamer over the given fetcher.
func NewStreamer(fetcher Fetcher) *Streamer {
	return &Streamer{fetcher: fetcher}
}

// Fetch validates relPath and relays the upstream object. Failures map to
// ErrInvalidPath, blobstore.ErrNotFound, *blobstore.UpstreamError, or a
// wrapped transport error.
func (s *Streamer) Fetch(ctx context.Context, relPath string) (*Result, error) {
	relPath = strings.TrimPrefix(relPath, "/")
	if relPath == "" || strings.Contains(relPath, "..") {
		return nil, ErrInvalidPath
	}

	obj, err := s.fetcher.Get(ctx, relPath)
	if err != nil {
		return nil, err
	}
	defer obj.Body.Close()

	body, err := io.ReadAll(obj.Body)
	if err != nil {
		return nil, fmt.Errorf("reading upstream body: %w", err)
	}

	contentType := obj.ContentType
	if contentType == "" {
		contentType = defaultContentType
	}

	return &Result{
		ContentType:  contentType,
		CacheControl: cacheControl,
		Body:         body,
	}, nil
}
