package zarr

import (
	"context"
	"sync"

	"github.com/couchcryptid/aorc-precip-etl/internal/observability"
)

// LRUStore wraps a Store with a byte-bounded in-memory LRU, the conventional
// companion to object-storage backends: metadata documents and chunks read
// more than once are served from memory instead of the network.
type LRUStore struct {
	inner    Store
	maxBytes int64
	metrics  *observability.Metrics

	mu      sync.Mutex
	bytes   int64
	entries map[string]*cacheEntry
	head    *cacheEntry // most recently used
	tail    *cacheEntry // least recently used
}

type cacheEntry struct {
	key  string
	data []byte
	prev *cacheEntry
	next *cacheEntry
}

// NewLRUStore caches reads from inner within a maxBytes budget. Objects
// larger than the whole budget pass through uncached.
func NewLRUStore(inner Store, maxBytes int64, metrics *observability.Metrics) *LRUStore {
	return &LRUStore{
		inner:    inner,
		maxBytes: maxBytes,
		metrics:  metrics,
		entries:  make(map[string]*cacheEntry),
	}
}

// Get returns the object at key, from memory when cached. Callers must treat
// the returned bytes as read-only; the same slice is handed to every caller.
func (s *LRUStore) Get(ctx context.Context, key string) ([]byte, error) {
	if data, ok := s.cached(key); ok {
		s.metrics.CacheHits.Inc()
		return data, nil
	}
	s.metrics.CacheMisses.Inc()

	data, err := s.inner.Get(ctx, key)
	if err != nil {
		// Not-found is not cached: an absent chunk may be written later.
		return nil, err
	}
	s.admit(key, data)
	return data, nil
}

func (s *LRUStore) cached(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	s.moveToFront(e)
	return e.data, true
}

func (s *LRUStore) admit(key string, data []byte) {
	size := int64(len(data))
	if size > s.maxBytes {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[key]; ok {
		s.bytes += size - int64(len(e.data))
		e.data = data
		s.moveToFront(e)
	} else {
		e := &cacheEntry{key: key, data: data}
		s.entries[key] = e
		s.addToFront(e)
		s.bytes += size
	}

	for s.bytes > s.maxBytes {
		s.evictTail()
	}
}

func (s *LRUStore) moveToFront(e *cacheEntry) {
	if e == s.head {
		return
	}
	s.remove(e)
	s.addToFront(e)
}

func (s *LRUStore) addToFront(e *cacheEntry) {
	e.next = s.head
	e.prev = nil
	if s.head != nil {
		s.head.prev = e
	}
	s.head = e
	if s.tail == nil {
		s.tail = e
	}
}

func (s *LRUStore) remove(e *cacheEntry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		s.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		s.tail = e.prev
	}
}

func (s *LRUStore) evictTail() {
	if s.tail == nil {
		return
	}
	s.bytes -= int64(len(s.tail.data))
	delete(s.entries, s.tail.key)
	s.remove(s.tail)
}
