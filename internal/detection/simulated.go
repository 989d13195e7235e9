package detection

import (
	"context"
	"math/rand/v2"
	"sync"

	"github.com/eugenenazirov/coin-dispenser/internal/dispenser"
)

// Simulated pretends to detect a bill by drawing one at random from a catalog.
// It stands in for a real model in demos and tests.
type Simulated struct {
	bills []int

	mu  sync.Mutex
	rnd *rand.Rand
}

// SimulatedOption configures a Simulated source.
type SimulatedOption func(*Simulated)

// WithRand overrides the random source, primarily for tests.
func WithRand(rnd *rand.Rand) SimulatedOption {
	return func(s *Simulated) {
		s.rnd = rnd
	}
}

// WithBills overrides the bill catalog the simulation draws from.
func WithBills(bills []int) SimulatedOption {
	return func(s *Simulated) {
		if len(bills) > 0 {
			s.bills = append([]int(nil), bills...)
		}
	}
}

// NewSimulated creates a Simulated source drawing from the bill catalog.
func NewSimulated(opts ...SimulatedOption) *Simulated {
	s := &Simulated{
		bills: dispenser.Bills(),
		rnd:   rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name implements Source.
func (s *Simulated) Name() string {
	return "simulated"
}

// Detect implements Source. The image is validated but otherwise ignored.
func (s *Simulated) Detect(ctx context.Context, img Image) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if err := Validate(img); err != nil {
		return Result{}, err
	}

	s.mu.Lock()
	bill := s.bills[s.rnd.IntN(len(s.bills))]
	s.mu.Unlock()

	return resultFromBills(map[int]int{bill: 1}), nil
}

// Close implements Source.
func (s *Simulated) Close() error {
	return nil
}
