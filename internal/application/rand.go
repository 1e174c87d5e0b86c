package application

import (
	"math/rand"
	"sync"
	"time"
)

// Random is a goroutine-safe source for food and spawn placement.
type Random struct {
	mu  sync.Mutex
	Rng *rand.Rand
}

// NewRandom seeds from the clock when seed is 0.
func NewRandom(seed int64) *Random {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Random{Rng: rand.New(rand.NewSource(seed))}
}

func (r *Random) Int31n(n int32) int32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Rng.Int31n(n)
}
