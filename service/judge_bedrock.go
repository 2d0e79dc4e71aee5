package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/bedrockruntime"
)

const defaultBedrockModelID = "us.anthropic.claude-3-7-sonnet-20250219-v1:0"

// BedrockJudge asks an Anthropic model on Amazon Bedrock, passing the
// document as a base64 attachment next to the prompt.
type BedrockJudge struct {
	client  *bedrockruntime.BedrockRuntime
	modelID string
}

// NewBedrockJudge builds the judge from BEDROCK_REGION (falling back to
// AWS_REGION) and REVIEW_JUDGE_MODEL_ID.
func NewBedrockJudge() (*BedrockJudge, error) {
	region := os.Getenv("BEDROCK_REGION")
	if region == "" {
		region = os.Getenv("AWS_REGION")
	}
	if region == "" {
		return nil, fmt.Errorf("neither BEDROCK_REGION nor AWS_REGION is set")
	}

	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(region),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	modelID := os.Getenv("REVIEW_JUDGE_MODEL_ID")
	if modelID == "" {
		modelID = defaultBedrockModelID
	}
	log.Printf("[BedrockJudge] Using model %s in region %s", modelID, region)

	return &BedrockJudge{client: bedrockruntime.New(sess), modelID: modelID}, nil
}

func (j *BedrockJudge) Ask(ctx context.Context, ruleName, ruleDescription string, documentBytes []byte, mediaType, prompt string) (string, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"anthropic_version": "bedrock-2023-05-31",
		"max_tokens":        2048,
		"messages": []map[string]interface{}{
			{
				"role": "user",
				"content": []map[string]interface{}{
					{
						"type": "document",
						"source": map[string]interface{}{
							"type":       "base64",
							"media_type": mediaType,
							"data":       base64.StdEncoding.EncodeToString(documentBytes),
						},
					},
					{"type": "text", "text": prompt},
				},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal judge request: %w", err)
	}

	out, err := j.client.InvokeModelWithContext(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(j.modelID),
		Body:        payload,
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
	})
	if err != nil {
		log.Printf("[BedrockJudge] InvokeModel failed for rule %q: %v", ruleName, err)
		return "", fmt.Errorf("bedrock invocation failed: %w", err)
	}

	var resp struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return "", fmt.Errorf("failed to decode bedrock response: %w", err)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	if text == "" {
		return "", fmt.Errorf("no text content in bedrock response")
	}
	return text, nil
}
