package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strings"
)

// MediaTypePDF is the only media type supported end-to-end. Anything else is
// rejected before the judge is called.
const MediaTypePDF = "application/pdf"

// Judge is the external AI collaborator: given one rule and the document
// bytes it returns free-form text expected to contain a single JSON verdict,
// or an error when the call itself fails.
type Judge interface {
	Ask(ctx context.Context, ruleName, ruleDescription string, documentBytes []byte, mediaType, prompt string) (string, error)
}

// JudgeVerdict is the structured verdict parsed out of the judge's raw text.
type JudgeVerdict struct {
	Result        string  `json:"result"`
	Confidence    float64 `json:"confidence"`
	Explanation   string  `json:"explanation"`
	ExtractedText string  `json:"extractedText"`
}

// NewJudge selects a judge transport by name. The default is Bedrock, which
// is what REVIEW_JUDGE_PROVIDER being unset means.
func NewJudge(provider string) (Judge, error) {
	switch strings.ToLower(provider) {
	case "", "bedrock":
		return NewBedrockJudge()
	case "anthropic":
		return NewAnthropicJudge()
	default:
		return nil, fmt.Errorf("unknown judge provider: %s", provider)
	}
}

// NewJudgeFromEnv selects the judge transport from REVIEW_JUDGE_PROVIDER.
func NewJudgeFromEnv() (Judge, error) {
	return NewJudge(os.Getenv("REVIEW_JUDGE_PROVIDER"))
}

// buildReviewPrompt renders the judge prompt for one checklist item. The
// document itself travels next to the prompt as a binary attachment, so the
// prompt only carries the rule.
func buildReviewPrompt(ruleName, ruleDescription string) string {
	if ruleDescription == "" {
		ruleDescription = "No description"
	}
	return fmt.Sprintf(`You are an AI assistant that reviews documents.
Review the attached document against the following check item.

Check item: %s
Description: %s

Determine whether the document complies with this check item and respond in JSON format as follows.
It is strictly forbidden to output anything other than JSON. Do not use markdown syntax (like `+"```json"+`), return only pure JSON.

{
  "result": "pass" or "fail",
  "confidence": A number between 0 and 1 (confidence level),
  "explanation": "Explanation of the judgment",
  "extractedText": "Relevant text extracted from the document"
}

Examples of confidence scores:
- High confidence (0.9-1.0): the document contains clear information and compliance is obvious
- Medium confidence (0.7-0.89): the document contains relevant information but it is not completely clear
- Low confidence (0.5-0.69): the document contains ambiguous information and the judgment is uncertain`, ruleName, ruleDescription)
}

// buildRetryPrompt amends the prompt after a malformed response. Used at most
// once per evaluation.
func buildRetryPrompt(prompt string) string {
	return prompt + `

The previous response could not be parsed as JSON. Return exactly one valid JSON object and nothing else.
Do not use markdown syntax (like ` + "```json" + `), return only pure JSON.`
}

// extractJSONObject returns the first balanced {...} substring of raw,
// skipping braces that appear inside JSON string literals.
func extractJSONObject(raw string) (string, bool) {
	start := strings.IndexByte(raw, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(raw); i++ {
		c := raw[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return raw[start : i+1], true
				}
			}
		}
	}
	return "", false
}

// parseJudgeVerdict extracts and validates the verdict from the judge's raw
// output. Any shape problem, including a confidence outside [0,1], counts as
// a parse failure and is retried by the evaluator.
func parseJudgeVerdict(raw string) (*JudgeVerdict, error) {
	obj, ok := extractJSONObject(raw)
	if !ok {
		return nil, fmt.Errorf("no JSON object found in judge output")
	}

	var verdict JudgeVerdict
	if err := json.Unmarshal([]byte(obj), &verdict); err != nil {
		return nil, fmt.Errorf("judge output is not valid JSON: %w", err)
	}

	switch verdict.Result {
	case "pass", "fail":
	default:
		return nil, fmt.Errorf("judge result must be \"pass\" or \"fail\", got %q", verdict.Result)
	}

	if math.IsNaN(verdict.Confidence) || verdict.Confidence < 0 || verdict.Confidence > 1 {
		return nil, fmt.Errorf("judge confidence %v is outside [0,1]", verdict.Confidence)
	}
	verdict.Confidence = math.Max(0, math.Min(1, verdict.Confidence))

	return &verdict, nil
}
