// Package blobstore implements the client for the remote generic-packages
// repository that holds both image blobs and the metadata index document.
package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrNotFound indicates the requested object does not exist upstream.
var ErrNotFound = errors.New("object not found")

// UpstreamError is a non-success response from the blob store.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream returned %d: %s", e.StatusCode, e.Body)
}

// Object is a retrieved blob. The caller owns Body and must close it.
type Object struct {
	Body        io.ReadCloser
	ContentType string
	Length      int64
}

// Client issues authenticated object operations against a generic-packages
// namespace: PUT creates or replaces, GET retrieves, DELETE removes.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New creates a client rooted at the package base address, e.g.
// {apiBase}/{slug}/-/packages/generic/{packageName}/{packageVersion}.
func New(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the package base address objects are stored under.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ObjectURL returns the direct upstream address of an object.
func (c *Client) ObjectURL(objectName string) string {
	return c.baseURL + "/" + objectName
}

// Put stores data under objectName, replacing any existing content, and
// returns the direct address of the stored object.
func (c *Client) Put(ctx context.Context, objectName string, data []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.ObjectURL(objectName), bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("building upload request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("uploading %s: %w", objectName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &UpstreamError{StatusCode: resp.StatusCode, Body: readBody(resp.Body)}
	}

	log.Debug().Str("object", objectName).Int("size", len(data)).Msg("object stored")
	return c.ObjectURL(objectName), nil
}

// Delete removes the object. A 404 from the blob store counts as success:
// the object being absent is the goal state.
func (c *Client) Delete(ctx context.Context, objectName string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.ObjectURL(objectName), nil)
	if err != nil {
		return fmt.Errorf("building delete request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("deleting %s: %w", objectName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		log.Debug().Str("object", objectName).Msg("object already absent")
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &UpstreamError{StatusCode: resp.StatusCode, Body: readBody(resp.Body)}
	}

	log.Debug().Str("object", objectName).Msg("object deleted")
	return nil
}

// Get retrieves the object at the given path relative to the package base.
func (c *Client) Get(ctx context.Context, relPath string) (*Object, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+strings.TrimPrefix(relPath, "/"), nil)
	if err != nil {
		return nil, fmt.Errorf("building fetch request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", relPath, err)
	}

	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil, ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Body: readBody(resp.Body)}
	}

	return &Object{
		Body:        resp.Body,
		ContentType: resp.Header.Get("Content-Type"),
		Length:      resp.ContentLength,
	}, nil
}

// readBody captures a bounded amount of an error response for diagnostics.
func readBody(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
