package detection

import (
	"context"
	"errors"

	"github.com/google/generative-ai-go/genai"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type fakeGenerator struct {
	answer string
	err    error
	parts  []genai.Part
}

func (f *fakeGenerator) GenerateContent(_ context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	f.parts = parts
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []genai.Part{genai.Text(f.answer)}}},
		},
	}, nil
}

var _ = Describe("Gemini", func() {
	var (
		generator *fakeGenerator
		source    *Gemini
		img       Image
	)

	BeforeEach(func() {
		generator = &fakeGenerator{}
		source = &Gemini{model: generator}
		img = Image{Data: jpegBytes(), ContentType: "image/jpeg"}
	})

	It("sends a PNG and the prompt", func() {
		generator.answer = `{"bills": ["one hundred"]}`
		_, err := source.Detect(context.Background(), img)
		Expect(err).NotTo(HaveOccurred())
		Expect(generator.parts).To(HaveLen(2))
		blob, ok := generator.parts[0].(genai.Blob)
		Expect(ok).To(BeTrue())
		Expect(blob.MIMEType).To(Equal("image/png"))
		Expect(generator.parts[1]).To(Equal(genai.Text(billDetectionPrompt)))
	})

	It("aggregates the reported bills", func() {
		generator.answer = "```json\n{\"bills\": [\"one hundred\", \"fifty\", \"fifty\"]}\n```"
		res, err := source.Detect(context.Background(), img)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Amount).To(Equal(200))
		Expect(res.Bills).To(Equal(map[int]int{100: 1, 50: 2}))
	})

	It("reports when nothing is found", func() {
		generator.answer = `{"bills": []}`
		res, err := source.Detect(context.Background(), img)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Amount).To(BeZero())
		Expect(res.Message).To(Equal(NoBillsMessage))
	})

	It("fails on unknown labels", func() {
		generator.answer = `{"bills": ["three hundred"]}`
		_, err := source.Detect(context.Background(), img)
		Expect(err).To(MatchError(ErrUnknownDenomination))
	})

	It("wraps model failures", func() {
		generator.err = errors.New("quota exceeded")
		_, err := source.Detect(context.Background(), img)
		Expect(err).To(MatchError(ErrRemoteDetection))
	})

	It("wraps unparseable answers", func() {
		generator.answer = "I think I see a fifty"
		_, err := source.Detect(context.Background(), img)
		Expect(err).To(MatchError(ErrRemoteDetection))
	})

	It("closes without a client", func() {
		Expect(source.Close()).To(Succeed())
		Expect(source.Name()).To(Equal("gemini"))
	})
})

var _ = Describe("NewGemini", func() {
	It("requires an API key", func() {
		_, err := NewGemini(context.Background(), "", "")
		Expect(err).To(HaveOccurred())
	})
})
