package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/ignite/prospect-pipeline/internal/domain"
)

// BedrockAPI is the subset of the Bedrock runtime client we use.
type BedrockAPI interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// BedrockGenerator implements Generator against AWS Bedrock (Claude).
// All generation traffic stays inside AWS.
type BedrockGenerator struct {
	client  BedrockAPI
	modelID string
}

// NewBedrockGenerator creates a generator for the given model.
func NewBedrockGenerator(client BedrockAPI, modelID string) *BedrockGenerator {
	if modelID == "" {
		modelID = "anthropic.claude-3-sonnet-20240229-v1:0"
	}
	return &BedrockGenerator{client: client, modelID: modelID}
}

type bedrockMessage struct {
	Role    string                `json:"role"`
	Content []bedrockContentBlock `json:"content"`
}

type bedrockContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type bedrockRequest struct {
	AnthropicVersion string           `json:"anthropic_version"`
	MaxTokens        int              `json:"max_tokens"`
	System           string           `json:"system,omitempty"`
	Messages         []bedrockMessage `json:"messages"`
	Temperature      float64          `json:"temperature,omitempty"`
}

type bedrockResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

const signalsSystemPrompt = `You are a B2B sales researcher. Given a prospect, respond with JSON only:
{"persona_match": "...", "triggers": ["..."], "messaging_angles": ["..."]}
Triggers must be ordered by relevance, strongest first.`

const sequenceSystemPrompt = `You are a B2B outbound copywriter. Given a prospect and research signals, respond with JSON only:
{"thread_1": {"subject": "...", "emails": [{"subject": "...", "body": "..."}]},
 "thread_2": {"subject": "...", "emails": [{"subject": "...", "body": "..."}]}}
Bodies may use Liquid variables: {{first_name}}, {{company}}, {{title}}.
Set a thread to null if no credible angle supports it.`

// ExtractSignals implements Generator.
func (g *BedrockGenerator) ExtractSignals(ctx context.Context, lead *domain.Lead) (domain.ExtractedSignals, error) {
	prompt := fmt.Sprintf("Prospect: %s %s, %s at %s (%s).",
		lead.FirstName, lead.LastName, lead.Title, lead.Company, lead.Email)

	text, err := g.invoke(ctx, signalsSystemPrompt, prompt)
	if err != nil {
		return domain.ExtractedSignals{}, err
	}

	var signals domain.ExtractedSignals
	if err := json.Unmarshal([]byte(extractJSON(text)), &signals); err != nil {
		return domain.ExtractedSignals{}, fmt.Errorf("generation: parse signals: %w", err)
	}
	return signals, nil
}

// WriteSequence implements Generator.
func (g *BedrockGenerator) WriteSequence(ctx context.Context, lead *domain.Lead, in SequenceInput) (*domain.Thread, *domain.Thread, error) {
	prompt := fmt.Sprintf(
		"Prospect: %s %s, %s at %s.\nPersona match: %s\nTriggers: %s\nMessaging angles: %s",
		lead.FirstName, lead.LastName, lead.Title, lead.Company,
		in.PersonaMatch,
		strings.Join(in.TopTriggers, "; "),
		strings.Join(in.MessagingAngles, "; "),
	)

	text, err := g.invoke(ctx, sequenceSystemPrompt, prompt)
	if err != nil {
		return nil, nil, err
	}

	var out struct {
		Thread1 *domain.Thread `json:"thread_1"`
		Thread2 *domain.Thread `json:"thread_2"`
	}
	if err := json.Unmarshal([]byte(extractJSON(text)), &out); err != nil {
		return nil, nil, fmt.Errorf("generation: parse sequence: %w", err)
	}
	return out.Thread1, out.Thread2, nil
}

func (g *BedrockGenerator) invoke(ctx context.Context, system, user string) (string, error) {
	req := bedrockRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        4000,
		System:           system,
		Messages: []bedrockMessage{
			{Role: "user", Content: []bedrockContentBlock{{Type: "text", Text: user}}},
		},
		Temperature: 0.7,
	}
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("generation: marshal request: %w", err)
	}

	output, err := g.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(g.modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return "", fmt.Errorf("generation: bedrock invoke: %w", err)
	}

	var resp bedrockResponse
	if err := json.Unmarshal(output.Body, &resp); err != nil {
		return "", fmt.Errorf("generation: parse response: %w", err)
	}

	var text string
	for _, c := range resp.Content {
		if c.Type == "text" {
			text += c.Text
		}
	}
	return text, nil
}

// extractJSON strips any prose the model wraps around the JSON object.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}
