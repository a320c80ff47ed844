package controller

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// sequencer allocates correlation sequence numbers. In tracking mode it is
// a shared monotonically increasing counter over the 32-bit signed range,
// wrapping back to 1 after the maximum. Zero is reserved for "no
// correlation" and is never emitted. With tracking disabled each call draws
// an independent pseudo-random value in [1, 2^31-1].
// The rng is owned by the sequencer alone; its mutex is the only guard.
type sequencer struct {
	mu       sync.Mutex
	tracking bool
	counter  int32
	rng      *rand.Rand
}

func newSequencer(tracking bool) *sequencer {
	return &sequencer{
		tracking: tracking,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (s *sequencer) Next() int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.tracking {
		return 1 + s.rng.Int31n(math.MaxInt32)
	}
	if s.counter >= math.MaxInt32 {
		s.counter = 1
	} else {
		s.counter++
	}
	return s.counter
}
