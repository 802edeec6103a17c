package types

import "path"

// ImageRecord describes one stored asset in the metadata index.
//
// A record's presence in the index is the sole source of truth for whether
// the asset is visible and deletable; the underlying blobs are never
// cross-checked.
type ImageRecord struct {
	ID                   string `json:"id"`
	Name                 string `json:"name"`
	URL                  string `json:"url"`
	URLOriginal          string `json:"urlOriginal,omitempty"`
	ThumbnailURL         string `json:"thumbnailUrl,omitempty"`
	ThumbnailOriginalURL string `json:"thumbnailOriginalUrl,omitempty"`
	Size                 int64  `json:"size"`
	Type                 string `json:"type"`
	CreatedAt            int64  `json:"createdAt"`

	// Object names are recorded at upload time so that delete never has to
	// re-derive them from the filename convention.
	ObjectName          string `json:"objectName,omitempty"`
	ThumbnailObjectName string `json:"thumbnailObjectName,omitempty"`
}

// MainObjectName returns the blob-store object name of the main asset.
// Records written before object names were persisted fall back to the
// {id}{ext} convention, defaulting to .png for extension-less filenames.
func (r *ImageRecord) MainObjectName() string {
	if r.ObjectName != "" {
		return r.ObjectName
	}
	ext := path.Ext(r.Name)
	if ext == "" {
		ext = ".png"
	}
	return r.ID + ext
}

// ThumbObjectName returns the blob-store object name of the thumbnail.
func (r *ImageRecord) ThumbObjectName() string {
	if r.ThumbnailObjectName != "" {
		return r.ThumbnailObjectName
	}
	return r.ID + "_thumb.webp"
}

// HasThumbnail reports whether a thumbnail blob was stored for this record.
func (r *ImageRecord) HasThumbnail() bool {
	return r.ThumbnailURL != "" || r.ThumbnailObjectName != ""
}

// APIResponse is the JSON envelope shared by every endpoint. Code 0 means
// success.
type APIResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

// UploadResult carries the four URLs returned to the client after a
// successful upload. The thumbnail pair is empty when no thumbnail was
// supplied.
type UploadResult struct {
	URL                  string `json:"url"`
	ThumbnailURL         string `json:"thumbnailUrl"`
	URLOriginal          string `json:"urlOriginal"`
	ThumbnailOriginalURL string `json:"thumbnailOriginalUrl"`
}

// VerifyRequest is the body of POST /auth/verify.
type VerifyRequest struct {
	Password string `json:"password"`
}

// DeleteRequest is the body of POST /admin/delete.
type DeleteRequest struct {
	ID string `json:"id"`
}
