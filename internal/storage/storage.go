package storage

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/eugenenazirov/coin-dispenser/internal/dispenser"
)

var (
	// ErrInvalidDenominations indicates the selection is empty or holds a value
	// outside the coin catalog.
	ErrInvalidDenominations = errors.New("denominations must be a non-empty selection of catalog coins")
)

// Coins used when a request does not pick any.
var defaultDenominations = []int{1, 5, 10}

// Storage keeps the default coin selection offered to callers that do not
// provide their own.
type Storage interface {
	GetDenominations() ([]int, error)
	SetDenominations(denominations []int) error
}

// MemoryStorage keeps denominations in-memory and guards access with a RWMutex.
type MemoryStorage struct {
	mu            sync.RWMutex
	denominations []int
}

// NewMemoryStorage initialises storage with a copy of the default denominations.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		denominations: cloneAndSort(defaultDenominations),
	}
}

// DefaultDenominations returns a copy of the default coin selection.
func DefaultDenominations() []int {
	return cloneAndSort(defaultDenominations)
}

// GetDenominations returns a copy of the current selection in ascending order.
func (s *MemoryStorage) GetDenominations() ([]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return cloneAndSort(s.denominations), nil
}

// SetDenominations validates the selection against the coin catalog, drops
// duplicates and stores it. A rejected selection leaves the previous one intact.
func (s *MemoryStorage) SetDenominations(denominations []int) error {
	normalized, err := normalizeDenominations(denominations)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.denominations = normalized
	s.mu.Unlock()

	return nil
}

func cloneAndSort(src []int) []int {
	if len(src) == 0 {
		return []int{}
	}

	out := make([]int, len(src))
	copy(out, src)
	sort.Ints(out)
	return out
}

func normalizeDenominations(denominations []int) ([]int, error) {
	if len(denominations) == 0 {
		return nil, ErrInvalidDenominations
	}

	catalog := dispenser.Coins()
	out := make([]int, 0, len(catalog))
	for _, d := range denominations {
		if !slices.Contains(catalog, d) {
			return nil, fmt.Errorf("%w: %d is not a coin", ErrInvalidDenominations, d)
		}
		if !slices.Contains(out, d) {
			out = append(out, d)
		}
	}
	sort.Ints(out)
	return out, nil
}
