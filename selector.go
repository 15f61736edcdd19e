package surge

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
)

var (
	ErrNoEndpoints   = errors.New("endpoint set is empty")
	ErrInvalidWeight = errors.New("endpoint weight must be positive")
)

// Selector picks endpoints with probability proportional to their weight.
// Picks are reproducible when the injected source carries a fixed seed.
type Selector struct {
	endpoints []Endpoint
	total     float64

	mu  sync.Mutex
	rng *rand.Rand
}

func NewSelector(endpoints []Endpoint, rng *rand.Rand) (*Selector, error) {
	if len(endpoints) == 0 {
		return nil, ErrNoEndpoints
	}
	total := 0.0
	for _, ep := range endpoints {
		if ep.Weight <= 0 {
			return nil, fmt.Errorf("endpoint %q: %w", ep.Name, ErrInvalidWeight)
		}
		total += float64(ep.Weight)
	}
	return &Selector{endpoints: endpoints, total: total, rng: rng}, nil
}

// Pick walks the cumulative weights with a draw from [0, total). The final
// return only covers floating point drift.
func (s *Selector) Pick() Endpoint {
	s.mu.Lock()
	r := s.rng.Float64() * s.total
	s.mu.Unlock()

	cum := 0.0
	for _, ep := range s.endpoints {
		cum += float64(ep.Weight)
		if cum >= r {
			return ep
		}
	}
	return s.endpoints[0]
}
