package rando

import (
	"encoding/binary"
	"fmt"
	"math/rand"

	"github.com/lawnchairsociety/roomweaver/internal/config"
	"golang.org/x/crypto/blake2b"
)

// Budget bounds the size of a generated map
type Budget struct {
	// MinWorth must be placed before an ending room is accepted
	MinWorth float64
	// MaxWorth is never exceeded; near it an ending room becomes mandatory
	MaxWorth float64
	// MaxRooms caps labyrinth expansion
	MaxRooms int
	// MaxBacktracks abandons the attempt once exceeded
	MaxBacktracks int
	// Gems is the number of gem items a labyrinth hides
	Gems int
}

var tiers = map[config.Length]Budget{
	config.LengthShort:    {MinWorth: 6, MaxWorth: 10, MaxRooms: 20, MaxBacktracks: 2000, Gems: 2},
	config.LengthMedium:   {MinWorth: 12, MaxWorth: 18, MaxRooms: 35, MaxBacktracks: 4000, Gems: 3},
	config.LengthLong:     {MinWorth: 22, MaxWorth: 30, MaxRooms: 55, MaxBacktracks: 8000, Gems: 5},
	config.LengthEnormous: {MinWorth: 38, MaxWorth: 50, MaxRooms: 80, MaxBacktracks: 16000, Gems: 6},
}

// BudgetFor returns the tier budget of the settings with any overrides
// applied. Endless runs always use the short tier.
func BudgetFor(s *config.Settings) Budget {
	length := s.Length
	if s.Algorithm == config.AlgorithmEndless {
		length = config.LengthShort
	}
	b, ok := tiers[length]
	if !ok {
		b = tiers[config.LengthShort]
	}

	if o := s.Budget; o != nil {
		if o.MinWorth > 0 {
			b.MinWorth = o.MinWorth
		}
		if o.MaxWorth > 0 {
			b.MaxWorth = o.MaxWorth
		}
		if o.MaxRooms > 0 {
			b.MaxRooms = o.MaxRooms
		}
		if o.MaxBacktracks > 0 {
			b.MaxBacktracks = o.MaxBacktracks
		}
	}
	if b.MaxWorth < b.MinWorth {
		b.MaxWorth = b.MinWorth
	}
	return b
}

// deriveSeed hashes the seed string and attempt index into an RNG seed, so
// retries are reproducible
func deriveSeed(seed string, attempt int) int64 {
	sum := blake2b.Sum256([]byte(fmt.Sprintf("%s#%d", seed, attempt)))
	return int64(binary.LittleEndian.Uint64(sum[:8]))
}

func newRand(seed string, attempt int) *rand.Rand {
	return rand.New(rand.NewSource(deriveSeed(seed, attempt)))
}

func shuffle[T any](rng *rand.Rand, items []T) {
	rng.Shuffle(len(items), func(i, j int) {
		items[i], items[j] = items[j], items[i]
	})
}
