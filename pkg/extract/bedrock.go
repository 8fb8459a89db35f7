package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/hashicorp/go-hclog"
)

// BedrockConfig contains AWS Bedrock configuration for title extraction.
type BedrockConfig struct {
	Region  string
	ModelID string // e.g., "anthropic.claude-3-5-sonnet-20241022-v2:0"

	// MaxInputChars bounds how much document text goes into the prompt.
	MaxInputChars int
}

// DefaultBedrockConfig returns a sensible default configuration.
func DefaultBedrockConfig() *BedrockConfig {
	return &BedrockConfig{
		Region:        "us-east-1",
		ModelID:       "anthropic.claude-3-5-sonnet-20241022-v2:0",
		MaxInputChars: 3000,
	}
}

// BedrockTitleExtractor implements TitleExtractor using AWS Bedrock. The
// model reads the leading document text and returns the official title and
// form code as JSON.
type BedrockTitleExtractor struct {
	client *bedrockruntime.Client
	cfg    *BedrockConfig
	logger hclog.Logger
}

// NewBedrockTitleExtractor creates a Bedrock-backed title provider.
func NewBedrockTitleExtractor(ctx context.Context, cfg *BedrockConfig, logger hclog.Logger) (*BedrockTitleExtractor, error) {
	if cfg == nil {
		cfg = DefaultBedrockConfig()
	}
	if cfg.MaxInputChars <= 0 {
		cfg.MaxInputChars = 3000
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &BedrockTitleExtractor{
		client: bedrockruntime.NewFromConfig(awsCfg),
		cfg:    cfg,
		logger: logger.Named("bedrock-title"),
	}, nil
}

// Name returns the provider name.
func (b *BedrockTitleExtractor) Name() string {
	return "bedrock"
}

// invokeRequest is the Anthropic messages payload for Bedrock.
type invokeRequest struct {
	AnthropicVersion string          `json:"anthropic_version"`
	MaxTokens        int             `json:"max_tokens"`
	Messages         []invokeMessage `json:"messages"`
}

type invokeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type invokeResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
}

// ExtractIdentity asks the model for the document title and form code.
func (b *BedrockTitleExtractor) ExtractIdentity(ctx context.Context, text string) (*Identity, error) {
	if len(text) > b.cfg.MaxInputChars {
		text = text[:b.cfg.MaxInputChars]
	}

	body, err := json.Marshal(invokeRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        500,
		Messages:         []invokeMessage{{Role: "user", Content: buildIdentityPrompt(text)}},
	})
	if err != nil {
		return nil, err
	}

	output, err := b.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(b.cfg.ModelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return nil, fmt.Errorf("bedrock invoke failed: %w", err)
	}

	var resp invokeResponse
	if err := json.Unmarshal(output.Body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode bedrock response: %w", err)
	}
	if len(resp.Content) == 0 {
		return nil, fmt.Errorf("bedrock response had no content")
	}

	identity, err := parseIdentityJSON(resp.Content[0].Text)
	if err != nil {
		return nil, err
	}
	b.logger.Debug("identity extracted",
		"title", identity.Title,
		"form_number", identity.FormNumber,
		"confidence", identity.Confidence)
	return identity, nil
}

// buildIdentityPrompt creates the title-identification prompt. Parenthetical
// qualifiers are part of the official title and must survive with their
// parentheses, which models tend to strip without explicit instruction.
func buildIdentityPrompt(text string) string {
	var builder strings.Builder
	builder.WriteString("You are a document analysis assistant. Given the following text extracted from an official form, identify:\n")
	builder.WriteString("1. The complete main document title, including any parenthetical qualifiers WITH THE PARENTHESES PRESERVED (e.g., \"Notice of Waiver of Oral Argument (Limited Civil Case)\")\n")
	builder.WriteString("2. The form number/code (usually a format like \"ADR-103\", \"CIV-775\", or similar alphanumeric codes)\n")
	builder.WriteString("3. Your confidence from 0.0 to 1.0 that you identified these correctly\n\n")
	builder.WriteString("Extracted text:\n---\n")
	builder.WriteString(text)
	builder.WriteString("\n---\n\n")
	builder.WriteString("Return ONLY a JSON object with exactly these keys:\n")
	builder.WriteString("{\n")
	builder.WriteString("  \"title\": \"...\",\n")
	builder.WriteString("  \"form_number\": \"...\",\n")
	builder.WriteString("  \"confidence\": 0.95,\n")
	builder.WriteString("  \"reasoning\": \"one sentence\"\n")
	builder.WriteString("}")
	return builder.String()
}

var codeFenceRe = regexp.MustCompile("^```(?:json)?\n?|\n?```$")

// parseIdentityJSON decodes the model's JSON reply, tolerating markdown code
// fences around it.
func parseIdentityJSON(reply string) (*Identity, error) {
	reply = codeFenceRe.ReplaceAllString(strings.TrimSpace(reply), "")

	var parsed struct {
		Title      string  `json:"title"`
		FormNumber string  `json:"form_number"`
		Confidence float64 `json:"confidence"`
		Reasoning  string  `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(reply), &parsed); err != nil {
		return nil, fmt.Errorf("could not parse model reply as JSON: %w", err)
	}

	confidence := parsed.Confidence
	if confidence <= 0 {
		confidence = 0.5
	}
	// A form code matching the strict shape corroborates the model.
	if parsed.FormNumber != "" && strictFormNumberRe.MatchString(parsed.FormNumber) && confidence < 0.9 {
		confidence += 0.05
	}

	return &Identity{
		Title:      strings.TrimSpace(parsed.Title),
		FormNumber: strings.TrimSpace(parsed.FormNumber),
		Confidence: confidence,
		Reasoning:  parsed.Reasoning,
	}, nil
}
