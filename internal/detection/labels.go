package detection

import (
	"fmt"
	"strconv"
	"strings"
)

// Label names emitted by bill classifiers.
var labelValues = map[string]int{
	"one thousand": 1000,
	"five hundred": 500,
	"two hundred":  200,
	"one hundred":  100,
	"fifty":        50,
	"twenty":       20,
	"ten":          10,
	"five":         5,
	"one":          1,
}

// ParseBillLabel converts a classifier label ("one hundred", "100", "₱100") into a value.
func ParseBillLabel(label string) (int, error) {
	normalized := strings.ToLower(strings.TrimSpace(label))
	normalized = strings.TrimPrefix(normalized, "₱")
	normalized = strings.Join(strings.Fields(normalized), " ")

	if value, ok := labelValues[normalized]; ok {
		return value, nil
	}
	if value, err := strconv.Atoi(normalized); err == nil && value > 0 {
		return value, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownDenomination, label)
}

// Aggregate counts labels by bill value.
func Aggregate(labels []string) (map[int]int, error) {
	bills := make(map[int]int, len(labels))
	for _, label := range labels {
		value, err := ParseBillLabel(label)
		if err != nil {
			return nil, err
		}
		bills[value]++
	}
	return bills, nil
}

// AggregateCounts converts label→count pairs into value→count pairs.
func AggregateCounts(counts map[string]int) (map[int]int, error) {
	bills := make(map[int]int, len(counts))
	for label, count := range counts {
		if count < 0 {
			return nil, fmt.Errorf("%w: negative count %d for %q", ErrRemoteDetection, count, label)
		}
		value, err := ParseBillLabel(label)
		if err != nil {
			return nil, err
		}
		if count > 0 {
			bills[value] += count
		}
	}
	return bills, nil
}

// Total returns the monetary value of the bills.
func Total(bills map[int]int) int {
	total := 0
	for value, count := range bills {
		total += value * count
	}
	return total
}
