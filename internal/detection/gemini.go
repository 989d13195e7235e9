package detection

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const defaultGeminiModel = "gemini-2.5-flash"

const billDetectionPrompt = `You are looking at a photo that may contain Philippine peso paper bills.
Identify every individual bill that is clearly visible and report its face value.

Return ONLY valid JSON in this exact format:
{
  "bills": ["one hundred", "fifty"]
}

Rules:
- Add one entry per physical bill, repeating values when several bills share a value
- Use the face value in words: "twenty", "fifty", "one hundred", "two hundred", "five hundred", "one thousand"
- Ignore coins and anything that is not a banknote
- If no bill is visible return {"bills": []}
- Do not use markdown code blocks`

// contentGenerator is the subset of *genai.GenerativeModel used for detection.
type contentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Gemini detects bills with a Google Gemini vision model.
type Gemini struct {
	client  *genai.Client
	model   contentGenerator
	timeout time.Duration
}

// NewGemini creates a Gemini source.
func NewGemini(ctx context.Context, apiKey, modelName string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if modelName == "" {
		modelName = defaultGeminiModel
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(0)

	return &Gemini{
		client:  client,
		model:   model,
		timeout: 30 * time.Second,
	}, nil
}

// Name implements Source.
func (g *Gemini) Name() string {
	return "gemini"
}

// Detect implements Source.
func (g *Gemini) Detect(ctx context.Context, img Image) (Result, error) {
	data, err := toPNG(img)
	if err != nil {
		return Result{}, err
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	// genai.ImageData wants the format suffix, not the MIME type.
	resp, err := g.model.GenerateContent(ctx,
		genai.ImageData("png", data),
		genai.Text(billDetectionPrompt),
	)
	if err != nil {
		return Result{}, fmt.Errorf("%w: generating content: %w", ErrRemoteDetection, err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return Result{}, fmt.Errorf("%w: empty response from gemini", ErrRemoteDetection)
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}

	labels, err := parseModelAnswer(text.String())
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrRemoteDetection, err)
	}
	bills, err := Aggregate(labels)
	if err != nil {
		return Result{}, err
	}
	return resultFromBills(bills), nil
}

// Close implements Source.
func (g *Gemini) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}
