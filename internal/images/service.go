// Package images coordinates uploads and deletes across the blob store and
// the metadata index.
package images

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"imgbed/pkg/types"
)

// ErrNoFile indicates the upload carried no main file.
var ErrNoFile = errors.New("no file supplied")

// ErrMissingID indicates a delete request without an id.
var ErrMissingID = errors.New("missing id")

// BlobGateway is the slice of the blob-store client the orchestration needs.
type BlobGateway interface {
	Put(ctx context.Context, objectName string, data []byte) (string, error)
	Delete(ctx context.Context, objectName string) error
}

// Index is the metadata store the orchestration records into.
type Index interface {
	GetAll(ctx context.Context) []types.ImageRecord
	Add(ctx context.Context, record types.ImageRecord) error
	Remove(ctx context.Context, id string) error
}

// File is one decoded multipart upload.
type File struct {
	Name string
	Type string
	Size int64
	Data []byte
}

// Service orchestrates upload, delete and list operations.
type Service struct {
	gateway    BlobGateway
	index      Index
	publicBase string
}

// NewService creates the orchestration service. publicBase is the site base
// URL proxy links are built from.
func NewService(gateway BlobGateway, index Index, publicBase string) *Service {
	return &Service{
		gateway:    gateway,
		index:      index,
		publicBase: strings.TrimRight(publicBase, "/"),
	}
}

// Upload stores the main file and optional thumbnail sequentially, then
// records the asset in the index. The main upload failing aborts before any
// metadata is written. A thumbnail failure fails the whole request; the
// already-stored main blob is removed best-effort before the error
// surfaces, so only a crash in that window leaves an orphan.
func (s *Service) Upload(ctx context.Context, main *File, thumbnail *File) (*types.UploadResult, error) {
	if main == nil || len(main.Data) == 0 {
		return nil, ErrNoFile
	}

	id := uuid.NewString()
	ext := path.Ext(main.Name)
	if ext == "" {
		ext = ".png"
	}
	objectName := id + ext

	directURL, err := s.gateway.Put(ctx, objectName, main.Data)
	if err != nil {
		return nil, fmt.Errorf("storing image: %w", err)
	}

	record := types.ImageRecord{
		ID:          id,
		Name:        main.Name,
		URL:         s.proxyURL(objectName),
		URLOriginal: directURL,
		Size:        main.Size,
		Type:        main.Type,
		CreatedAt:   time.Now().UnixMilli(),
		ObjectName:  objectName,
	}

	if thumbnail != nil && len(thumbnail.Data) > 0 {
		thumbName := id + "_thumb.webp"
		thumbURL, err := s.gateway.Put(ctx, thumbName, thumbnail.Data)
		if err != nil {
			// Compensate for the blob store having no transactions: take
			// the committed main blob back out before surfacing the error.
			if derr := s.gateway.Delete(ctx, objectName); derr != nil {
				log.Warn().Err(derr).Str("object", objectName).
					Msg("failed to remove main blob after thumbnail failure, orphan left behind")
			}
			return nil, fmt.Errorf("storing thumbnail: %w", err)
		}
		record.ThumbnailURL = s.proxyURL(thumbName)
		record.ThumbnailOriginalURL = thumbURL
		record.ThumbnailObjectName = thumbName
	}

	if err := s.index.Add(ctx, record); err != nil {
		return nil, fmt.Errorf("recording image: %w", err)
	}

	log.Info().Str("id", id).Str("object", objectName).
		Int64("size", main.Size).Str("type", main.Type).
		Bool("thumbnail", record.HasThumbnail()).Msg("image uploaded")

	return &types.UploadResult{
		URL:                  record.URL,
		ThumbnailURL:         record.ThumbnailURL,
		URLOriginal:          record.URLOriginal,
		ThumbnailOriginalURL: record.ThumbnailOriginalURL,
	}, nil
}

// Delete removes the record and its blobs. The user-facing contract is
// "gone from the listing": blob deletions are best-effort warnings, the
// index removal decides the outcome.
func (s *Service) Delete(ctx context.Context, id string) error {
	if id == "" {
		return ErrMissingID
	}

	var target *types.ImageRecord
	for _, r := range s.index.GetAll(ctx) {
		if r.ID == id {
			rec := r
			target = &rec
			break
		}
	}

	if target == nil {
		// Already deleted, or a stale cache hid the entry. Removing anyway
		// clears a dead index entry either way.
		return s.index.Remove(ctx, id)
	}

	if err := s.gateway.Delete(ctx, target.MainObjectName()); err != nil {
		log.Warn().Err(err).Str("id", id).Str("object", target.MainObjectName()).
			Msg("main blob delete failed, removing index entry anyway")
	}

	if target.HasThumbnail() {
		if err := s.gateway.Delete(ctx, target.ThumbObjectName()); err != nil {
			log.Warn().Err(err).Str("id", id).Str("object", target.ThumbObjectName()).
				Msg("thumbnail blob delete failed")
		}
	}

	if err := s.index.Remove(ctx, id); err != nil {
		return fmt.Errorf("removing record: %w", err)
	}

	log.Info().Str("id", id).Msg("image deleted")
	return nil
}

// List returns every record in the index, most recent first.
func (s *Service) List(ctx context.Context) []types.ImageRecord {
	return s.index.GetAll(ctx)
}

func (s *Service) proxyURL(objectName string) string {
	return s.publicBase + "/image/" + objectName
}
