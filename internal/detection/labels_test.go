package detection

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ParseBillLabel", func() {
	DescribeTable("known labels",
		func(label string, want int) {
			value, err := ParseBillLabel(label)
			Expect(err).NotTo(HaveOccurred())
			Expect(value).To(Equal(want))
		},
		Entry("words", "one hundred", 100),
		Entry("mixed case and padding", "  One   Thousand ", 1000),
		Entry("digits", "500", 500),
		Entry("currency prefix", "₱200", 200),
		Entry("single word", "fifty", 50),
	)

	DescribeTable("unknown labels",
		func(label string) {
			_, err := ParseBillLabel(label)
			Expect(err).To(MatchError(ErrUnknownDenomination))
		},
		Entry("empty", ""),
		Entry("nonsense", "monopoly money"),
		Entry("zero", "0"),
		Entry("negative", "-20"),
	)
})

var _ = Describe("Aggregate", func() {
	It("counts repeated labels", func() {
		bills, err := Aggregate([]string{"one hundred", "50", "fifty", "twenty"})
		Expect(err).NotTo(HaveOccurred())
		Expect(bills).To(Equal(map[int]int{100: 1, 50: 2, 20: 1}))
		Expect(Total(bills)).To(Equal(220))
	})

	It("fails on the first unknown label", func() {
		_, err := Aggregate([]string{"fifty", "doubloon"})
		Expect(err).To(MatchError(ErrUnknownDenomination))
	})

	It("merges label counts by value", func() {
		bills, err := AggregateCounts(map[string]int{"one hundred": 2, "100": 1, "twenty": 0})
		Expect(err).NotTo(HaveOccurred())
		Expect(bills).To(Equal(map[int]int{100: 3}))
	})

	It("rejects negative counts", func() {
		_, err := AggregateCounts(map[string]int{"fifty": -1})
		Expect(err).To(MatchError(ErrRemoteDetection))
	})
})
