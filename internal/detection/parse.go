package detection

import (
	"encoding/json"
	"fmt"
	"strings"
)

type modelAnswer struct {
	Bills []string `json:"bills"`
}

// parseModelAnswer extracts bill labels from a model's free-text JSON answer.
func parseModelAnswer(text string) ([]string, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end < start {
		return nil, fmt.Errorf("no JSON object in model answer")
	}

	var answer modelAnswer
	if err := json.Unmarshal([]byte(text[start:end+1]), &answer); err != nil {
		return nil, fmt.Errorf("decoding model answer: %w", err)
	}
	return answer.Bills, nil
}
