package quiz

import (
	"math/rand"
	"sync"
	"time"
)

// Rand is a goroutine-safe, seedable shuffle source
type Rand struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewRand creates a shuffle source. A zero seed uses the current time.
func NewRand(seed int64) *Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Rand{r: rand.New(rand.NewSource(seed))}
}

// Shuffle is a uniform Fisher-Yates shuffle, see rand.Shuffle
func (r *Rand) Shuffle(n int, swap func(i, j int)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.r.Shuffle(n, swap)
}
