package engine

import (
	"encoding/binary"
	"math/rand/v2"
	"sync"

	"github.com/google/uuid"
)

// MaxSafeID is the largest measure id. Ids stay within 53 bits so they
// survive a round trip through JSON numbers.
const MaxSafeID = 1<<53 - 1

// UUIDSource hands out measure ids.
type UUIDSource interface {
	Next() int64
}

type randomUUIDs struct{}

// RandomUUIDs returns a source backed by random UUIDs truncated to 53 bits.
func RandomUUIDs() UUIDSource { return randomUUIDs{} }

func (randomUUIDs) Next() int64 {
	u := uuid.New()
	return int64(binary.BigEndian.Uint64(u[:8]) & MaxSafeID)
}

// SeededUUIDs is a deterministic source for tests and reproducible runs.
type SeededUUIDs struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSeededUUIDs returns a deterministic source.
func NewSeededUUIDs(seed uint64) *SeededUUIDs {
	return &SeededUUIDs{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Next returns the next id in the sequence.
func (s *SeededUUIDs) Next() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Int64N(MaxSafeID) + 1
}
