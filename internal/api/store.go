package api

import (
	"container/list"
	"sync"
)

const defaultStoreCapacity = 256

// ApplyStore keeps the most recent apply results so clients can fetch them
// again by ID. The oldest result is evicted once capacity is reached.
type ApplyStore struct {
	mu       sync.Mutex
	capacity int
	order    *list.List
	results  map[string]*list.Element
}

func NewApplyStore(capacity int) *ApplyStore {
	if capacity <= 0 {
		capacity = defaultStoreCapacity
	}
	return &ApplyStore{
		capacity: capacity,
		order:    list.New(),
		results:  make(map[string]*list.Element),
	}
}

func (s *ApplyStore) Save(resp ApplyResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if el, ok := s.results[resp.ID]; ok {
		el.Value = resp
		s.order.MoveToFront(el)
		return
	}
	s.results[resp.ID] = s.order.PushFront(resp)
	for s.order.Len() > s.capacity {
		oldest := s.order.Back()
		s.order.Remove(oldest)
		delete(s.results, oldest.Value.(ApplyResponse).ID)
	}
}

func (s *ApplyStore) Get(id string) (ApplyResponse, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	el, ok := s.results[id]
	if !ok {
		return ApplyResponse{}, false
	}
	return el.Value.(ApplyResponse), true
}

func (s *ApplyStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	el, ok := s.results[id]
	if !ok {
		return false
	}
	s.order.Remove(el)
	delete(s.results, id)
	return true
}

func (s *ApplyStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Len()
}
