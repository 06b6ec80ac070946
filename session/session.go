// github.com/scoreforge/partbook - orchestral score part-book pipeline
// Copyright (C) 2026  partbook authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package session holds the process-wide, in-memory score cache
// described in spec.md §5: a single mutex-guarded map from score
// identifier to its rasterised pages, evicted on an LRU basis bounded
// by total cached raster bytes. It persists nothing across process
// restarts (spec.md §6 "Persistence").
package session

import (
	"container/list"
	"sync"

	"go.uber.org/zap"

	"github.com/scoreforge/partbook/apierr"
	"github.com/scoreforge/partbook/rasterimage"
)

// entry is one cached Score, plus its position in the LRU list.
type entry struct {
	id       string
	score    *rasterimage.Score
	pages    *rasterimage.Pages
	elem     *list.Element
}

// Store is the process-wide score cache. The critical section guarded
// by mu holds only map/list bookkeeping — never raster work — matching
// spec.md §5's "critical sections hold only map lookups/inserts".
type Store struct {
	mu        sync.Mutex
	byID      map[string]*entry
	lru       *list.List // front = most recently used
	maxBytes  int64
	usedBytes int64
	log       *zap.Logger
}

// New returns an empty Store bounded by maxBytes of total cached raster
// data.
func New(maxBytes int64, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		byID:     make(map[string]*entry),
		lru:      list.New(),
		maxBytes: maxBytes,
		log:      log,
	}
}

// Put inserts or replaces a Score under id (last-write-wins, spec.md
// §5 "Ordering guarantees"), evicting LRU entries as needed to stay
// within the byte budget.
func (s *Store) Put(id string, score *rasterimage.Score, pages *rasterimage.Pages) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.byID[id]; ok {
		s.lru.Remove(old.elem)
		s.usedBytes -= old.pages.UsedBytes()
		old.pages.Close()
		delete(s.byID, id)
	}

	e := &entry{id: id, score: score, pages: pages}
	e.elem = s.lru.PushFront(e)
	s.byID[id] = e
	s.usedBytes += pages.UsedBytes()

	s.evictLocked()
}

// Get returns a Score and its Pages for id, marking it most-recently
// used. Returns apierr.ErrUnknownScoreID if absent (possibly evicted).
func (s *Store) Get(id string) (*rasterimage.Score, *rasterimage.Pages, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.byID[id]
	if !ok {
		return nil, nil, apierr.ErrUnknownScoreID
	}
	s.lru.MoveToFront(e.elem)
	// Lazy page decode can grow a Score's cache footprint between Puts;
	// resync the total before possibly evicting over it.
	s.refreshUsedBytesLocked()
	s.evictLocked()
	return e.score, e.pages, nil
}

// refreshUsedBytesLocked recomputes usedBytes from each entry's live
// Pages footprint. Caller must hold mu.
func (s *Store) refreshUsedBytesLocked() {
	var total int64
	for _, e := range s.byID {
		total += e.pages.UsedBytes()
	}
	s.usedBytes = total
}

// Evict drops id from the cache explicitly.
func (s *Store) Evict(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictID(id)
}

func (s *Store) evictID(id string) {
	e, ok := s.byID[id]
	if !ok {
		return
	}
	s.lru.Remove(e.elem)
	delete(s.byID, id)
	s.usedBytes -= e.pages.UsedBytes()
	e.pages.Close()
}

// evictLocked drops least-recently-used entries until usedBytes fits
// within maxBytes. Caller must hold mu.
func (s *Store) evictLocked() {
	if s.maxBytes <= 0 {
		return
	}
	for s.usedBytes > s.maxBytes {
		back := s.lru.Back()
		if back == nil {
			return
		}
		e := back.Value.(*entry)
		s.log.Info("evicting score over cache byte budget",
			zap.String("score_id", e.id), zap.Int64("used_bytes", s.usedBytes), zap.Int64("max_bytes", s.maxBytes))
		s.evictID(e.id)
	}
}

// UsedBytes returns the total cached raster bytes across all Scores.
func (s *Store) UsedBytes() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usedBytes
}

// CancelToken is a cooperative cancellation signal (spec.md §5
// "Cancellation"). No operation in this module takes or polls one:
// Service's methods accept no token and run to completion.
type CancelToken struct {
	cancelled chan struct{}
	once      sync.Once
}

// NewCancelToken returns an armed token.
func NewCancelToken() *CancelToken {
	return &CancelToken{cancelled: make(chan struct{})}
}

// Cancel arms the token. Safe to call more than once.
func (c *CancelToken) Cancel() {
	c.once.Do(func() { close(c.cancelled) })
}

// Cancelled reports whether Cancel has been called.
func (c *CancelToken) Cancelled() bool {
	select {
	case <-c.cancelled:
		return true
	default:
		return false
	}
}
