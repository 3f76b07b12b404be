package schema

import "sync"

// SharedTable is the table name an entity type exposes to code that reads
// it outside of the statement pipeline. Operations never route through it.
// An operation may borrow it to publish the physical table for the duration
// of one statement; observers calling Name during the borrow wait until the
// name is restored, so they never see another operation's partition.
type SharedTable struct {
	mu   sync.Mutex
	name string
}

// NewSharedTable returns a shared table holding name.
func NewSharedTable(name string) *SharedTable {
	return &SharedTable{name: name}
}

// Name returns the current name. It blocks while the name is borrowed and
// must not be called by the goroutine holding the borrow.
func (s *SharedTable) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

// Borrow sets the name and returns the function restoring the previous one.
// Release is idempotent. Callers defer it right away, so the previous name
// comes back when the statement succeeds, fails or panics:
//
//	release := shared.Borrow("events_2020_01")
//	defer release()
func (s *SharedTable) Borrow(name string) (release func()) {
	s.mu.Lock()
	prev := s.name
	s.name = name
	var once sync.Once
	return func() {
		once.Do(func() {
			s.name = prev
			s.mu.Unlock()
		})
	}
}
