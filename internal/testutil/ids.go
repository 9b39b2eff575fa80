package testutil

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// SequentialIDs hands out predictable UUIDs: the first call returns
// 00000000-0000-7000-8000-000000000001, the next ...0002, and so on.
// The version and variant bits match UUIDv7.
//
// Use NewID as gate.Options.NewID for byte-stable queued headers.
type SequentialIDs struct {
	mu sync.Mutex
	n  uint64
}

// NewID returns the next UUID.
func (s *SequentialIDs) NewID() (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return uuid.Parse(fmt.Sprintf("00000000-0000-7000-8000-%012x", s.n))
}
