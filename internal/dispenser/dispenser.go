package dispenser

import (
	"sort"
)

type greedyDispenser struct{}

// New creates a Dispenser that hands out the largest fitting denomination first.
//
// Greedy is exact for canonical coin systems but does not always minimise the
// number of coins (for {25, 20, 1} and 40 it yields 25+15×1 rather than 2×20).
// Every result still satisfies dispensed + remainder == amount.
func New() Dispenser {
	return greedyDispenser{}
}

// ComputeBreakdown breaks amount into the given denominations.
// The denominations slice is treated as a set and is never modified.
func (greedyDispenser) ComputeBreakdown(amount int, denominations []int) (Breakdown, error) {
	if amount < 0 {
		return Breakdown{}, ErrInvalidAmount
	}
	sorted, err := normalizeDenominations(denominations)
	if err != nil {
		return Breakdown{}, err
	}

	counts := make(map[int]int, len(sorted))
	remaining := amount
	for applied := true; applied && remaining > 0; {
		applied = false
		for _, d := range sorted {
			if remaining < d {
				continue
			}
			n := remaining / d
			counts[d] += n
			remaining -= n * d
			applied = true
		}
	}

	return Breakdown{
		Amount:    amount,
		Counts:    counts,
		Remainder: remaining,
	}, nil
}

// normalizeDenominations validates, deduplicates and sorts denominations in
// descending order.
func normalizeDenominations(denominations []int) ([]int, error) {
	unique := make(map[int]struct{}, len(denominations))
	for _, d := range denominations {
		if d <= 0 {
			return nil, ErrInvalidDenomination
		}
		unique[d] = struct{}{}
	}

	out := make([]int, 0, len(unique))
	for d := range unique {
		out = append(out, d)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(out)))
	return out, nil
}
