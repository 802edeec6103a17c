package index

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"imgbed/pkg/types"
)

// Durability modes for Add and Remove.
const (
	// DurabilitySync persists the new index before returning; a persistence
	// failure is returned to the caller.
	DurabilitySync = "sync"
	// DurabilityAsync acknowledges after the cache update and persists in
	// the background. A crash or persistence failure in that window loses
	// the write; the failure is only logged.
	DurabilityAsync = "async"
)

const asyncPersistTimeout = 30 * time.Second

// Store owns the record index: most-recently-created first, capped, unique
// ids. Reads come from the cache when possible; every mutation rewrites the
// whole document through the backend.
//
// Mutations are serialized under a process-wide mutex, so two concurrent
// Add/Remove calls in one process cannot lose each other's writes. Writers
// in other processes still race on the backing document, last writer wins.
type Store struct {
	backend Backend
	cache   Cache
	cap     int
	async   bool

	mu sync.Mutex
}

// NewStore creates a metadata store over the given backend and cache.
func NewStore(backend Backend, cache Cache, cap int, durability string) *Store {
	return &Store{
		backend: backend,
		cache:   cache,
		cap:     cap,
		async:   durability == DurabilityAsync,
	}
}

// GetAll returns the full index, most recent first. It never fails: an
// absent document is an empty index, malformed content is treated as empty,
// and backend errors degrade to an empty result with a log entry.
func (s *Store) GetAll(ctx context.Context) []types.ImageRecord {
	if recs, ok := s.cache.Get(ctx); ok {
		return recs
	}
	return s.load(ctx)
}

// load fetches the document from the backend and refreshes the cache.
func (s *Store) load(ctx context.Context) []types.ImageRecord {
	data, err := s.backend.Load(ctx)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// First access creates the empty index.
			recs := []types.ImageRecord{}
			s.cache.Set(ctx, recs)
			return recs
		}
		// Transient failure: serve empty but leave the cache cold so the
		// next read retries the backend.
		log.Error().Err(err).Msg("index read failed")
		return []types.ImageRecord{}
	}

	var recs []types.ImageRecord
	if err := json.Unmarshal(data, &recs); err != nil {
		log.Error().Err(err).Msg("index document malformed, treating as empty")
		recs = nil
	}
	if recs == nil {
		recs = []types.ImageRecord{}
	}

	s.cache.Set(ctx, recs)
	return recs
}

// Add prepends the record, evicting from the tail past the cap, and
// persists the new index per the configured durability mode.
func (s *Store) Add(ctx context.Context, record types.ImageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs := append([]types.ImageRecord{record}, s.GetAll(ctx)...)
	if len(recs) > s.cap {
		recs = recs[:s.cap]
	}

	s.cache.Set(ctx, recs)
	return s.persist(ctx, recs)
}

// Remove filters out the record with the given id. Removing an id that is
// not present is a no-op success, but the document is still rewritten.
func (s *Store) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.GetAll(ctx)
	recs := make([]types.ImageRecord, 0, len(current))
	for _, r := range current {
		if r.ID != id {
			recs = append(recs, r)
		}
	}

	s.cache.Set(ctx, recs)
	return s.persist(ctx, recs)
}

func (s *Store) persist(ctx context.Context, recs []types.ImageRecord) error {
	data, err := json.MarshalIndent(recs, "", "  ")
	if err != nil {
		return err
	}

	if s.async {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), asyncPersistTimeout)
			defer cancel()
			if err := s.backend.Save(ctx, data); err != nil {
				log.Error().Err(err).Msg("async index persist failed, write lost")
			}
		}()
		return nil
	}

	if err := s.backend.Save(ctx, data); err != nil {
		log.Error().Err(err).Msg("index persist failed")
		return err
	}
	return nil
}
