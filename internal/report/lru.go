package report

import (
	"container/list"
	"fmt"
	"sync"
)

// LRUStore keeps the most recent records in memory in front of a backing
// Store, so records stay inspectable even if the disk write failed. A nil
// backing store makes it memory-only.
type LRUStore struct {
	mu    sync.Mutex
	cap   int
	back  Store
	order *list.List               // of *Record, most recent at front
	items map[string]*list.Element // by record ID
}

// NewLRUStore creates an LRU cache holding at most cap records (minimum 1)
// that delegates to back on misses.
func NewLRUStore(cap int, back Store) *LRUStore {
	return &LRUStore{
		cap:   max(cap, 1),
		back:  back,
		order: list.New(),
		items: make(map[string]*list.Element),
	}
}

// Save caches the record, then writes it through to the backing store.
func (s *LRUStore) Save(record *Record) error {
	s.put(record)
	if s.back == nil {
		return nil
	}
	return s.back.Save(record)
}

// Load serves from memory, falling back to the backing store and caching
// what it returns.
func (s *LRUStore) Load(id string) (*Record, error) {
	s.mu.Lock()
	if el, ok := s.items[id]; ok {
		s.order.MoveToFront(el)
		r := el.Value.(*Record)
		s.mu.Unlock()
		return r, nil
	}
	s.mu.Unlock()

	if s.back == nil {
		return nil, fmt.Errorf("record %s not found", id)
	}
	record, err := s.back.Load(id)
	if err != nil {
		return nil, err
	}
	s.put(record)
	return record, nil
}

func (s *LRUStore) put(record *Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.items[record.ID]; ok {
		el.Value = record
		s.order.MoveToFront(el)
		return
	}
	s.items[record.ID] = s.order.PushFront(record)
	for s.order.Len() > s.cap {
		oldest := s.order.Back()
		s.order.Remove(oldest)
		delete(s.items, oldest.Value.(*Record).ID)
	}
}
