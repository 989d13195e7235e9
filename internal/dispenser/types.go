package dispenser

import (
	"fmt"
	"sort"
)

// Breakdown is the result of a dispensing calculation.
// Counts only holds denominations that were actually used. Remainder is the part
// of the amount that the denominations could not express.
type Breakdown struct {
	Amount    int
	Counts    map[int]int
	Remainder int
}

// Dispenser computes coin breakdowns.
type Dispenser interface {
	ComputeBreakdown(amount int, denominations []int) (Breakdown, error)
}

// Dispensed returns the value covered by Counts.
func (b Breakdown) Dispensed() int {
	total := 0
	for d, n := range b.Counts {
		total += d * n
	}
	return total
}

// TotalCoins returns how many units are handed out.
func (b Breakdown) TotalCoins() int {
	total := 0
	for _, n := range b.Counts {
		total += n
	}
	return total
}

// Denominations returns the used denominations, largest first.
func (b Breakdown) Denominations() []int {
	out := make([]int, 0, len(b.Counts))
	for d := range b.Counts {
		out = append(out, d)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(out)))
	return out
}

// Lines renders the breakdown as "count × <symbol>denomination" rows followed by
// a remainder row when something is left over.
func (b Breakdown) Lines(symbol string) []string {
	lines := make([]string, 0, len(b.Counts)+1)
	for _, d := range b.Denominations() {
		lines = append(lines, fmt.Sprintf("%d × %s%d", b.Counts[d], symbol, d))
	}
	if b.Remainder > 0 {
		lines = append(lines, fmt.Sprintf("REMAINDER: %s%d", symbol, b.Remainder))
	}
	return lines
}
