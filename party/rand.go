/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package party

import (
	"math/rand/v2"
	"sync"
)

// Rand is a seeded generator shared by every room of a game. Rooms run
// concurrently, so access is serialized.
type Rand struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewRand returns a generator with a fixed seed, for reproducible games.
func NewRand(seed uint64) *Rand {
	return &Rand{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// RandomRand returns a generator seeded from the runtime's random source.
func RandomRand() *Rand {
	return NewRand(rand.Uint64())
}

func (r *Rand) IntN(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.r.IntN(n)
}

// ShuffledIDs returns the ids of players in random order.
func (r *Rand) ShuffledIDs(players []*Player) []string {
	ids := make([]string, 0, len(players))
	for _, p := range players {
		ids = append(ids, p.ID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.r.Shuffle(len(ids), func(i, j int) {
		ids[i], ids[j] = ids[j], ids[i]
	})
	return ids
}
