package detection

import (
	"context"
	"math/rand/v2"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/eugenenazirov/coin-dispenser/internal/dispenser"
)

var _ = Describe("Simulated", func() {
	var (
		source *Simulated
		img    Image
	)

	BeforeEach(func() {
		source = NewSimulated(WithRand(rand.New(rand.NewPCG(1, 2))))
		img = Image{Data: pngBytes(), ContentType: "image/png"}
	})

	It("draws a single bill from the catalog", func() {
		for range 50 {
			res, err := source.Detect(context.Background(), img)
			Expect(err).NotTo(HaveOccurred())
			Expect(dispenser.Bills()).To(ContainElement(res.Amount))
			Expect(res.Bills).To(Equal(map[int]int{res.Amount: 1}))
			Expect(res.Message).To(BeEmpty())
		}
	})

	It("is reproducible for a fixed seed", func() {
		other := NewSimulated(WithRand(rand.New(rand.NewPCG(1, 2))))
		for range 10 {
			a, err := source.Detect(context.Background(), img)
			Expect(err).NotTo(HaveOccurred())
			b, err := other.Detect(context.Background(), img)
			Expect(err).NotTo(HaveOccurred())
			Expect(a).To(Equal(b))
		}
	})

	It("honours a custom catalog", func() {
		source = NewSimulated(WithBills([]int{500}))
		res, err := source.Detect(context.Background(), img)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Amount).To(Equal(500))
	})

	It("validates the image", func() {
		_, err := source.Detect(context.Background(), Image{})
		Expect(err).To(MatchError(ErrEmptyImage))
	})

	It("stops on a cancelled context", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := source.Detect(ctx, img)
		Expect(err).To(MatchError(context.Canceled))
	})

	It("reports its name", func() {
		Expect(source.Name()).To(Equal("simulated"))
		Expect(source.Close()).To(Succeed())
	})
})
