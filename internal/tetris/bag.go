package tetris

import "math/rand"

// Bag is the 7-bag randomizer: every run of seven pieces is a shuffled
// permutation of all kinds.
type Bag struct {
	rng     *rand.Rand
	pending []Kind
}

// NewBag returns a bag whose sequence is fixed by seed.
func NewBag(seed int64) *Bag {
	return &Bag{rng: rand.New(rand.NewSource(seed))}
}

// Next deals one piece, reshuffling when the bag is empty.
func (b *Bag) Next() Kind {
	if len(b.pending) == 0 {
		b.pending = append(b.pending[:0], Kinds[:]...)
		// Fisher-Yates
		for i := len(b.pending) - 1; i > 0; i-- {
			j := b.rng.Intn(i + 1)
			b.pending[i], b.pending[j] = b.pending[j], b.pending[i]
		}
	}
	k := b.pending[0]
	b.pending = b.pending[1:]
	return k
}
