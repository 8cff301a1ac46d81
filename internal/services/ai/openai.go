package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
	"go.uber.org/zap"
)

const (
	// DefaultOpenAIModel is the default model to use
	DefaultOpenAIModel = "gpt-4o-mini"
	// DefaultOpenAIBaseURL is the default OpenAI API base URL
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	// DefaultTimeout is the default timeout for API calls
	DefaultTimeout = 30 * time.Second

	// MaxSummaryLength bounds the history label returned by Summarize
	MaxSummaryLength = 60

	// ErrNoChoicesInResponse is returned when the API response has no choices
	ErrNoChoicesInResponse = "no choices in response"
)

const verifySystemPrompt = "You are a strict but fair accountability partner. " +
	"You judge whether the submitted proof demonstrates that the stated goal was completed. " +
	"Respond with valid JSON only, shaped as {\"completed\": bool, \"feedback\": string}."

// OpenAIProvider implements the Verifier, Summarizer, CodeExtractor and
// ScheduleOracle ports using OpenAI's API.
type OpenAIProvider struct {
	client    openai.Client
	model     string
	logger    *zap.Logger
	debugMode bool
}

// NewOpenAIProvider creates a new OpenAI provider
func NewOpenAIProvider(apiKey string, model string) *OpenAIProvider {
	return NewOpenAIProviderWithLogger(apiKey, DefaultOpenAIBaseURL, model, nil, false)
}

// NewOpenAIProviderWithLogger creates a new OpenAI provider with logger support
func NewOpenAIProviderWithLogger(apiKey string, baseURL string, model string, logger *zap.Logger, debugMode bool) *OpenAIProvider {
	if model == "" {
		model = DefaultOpenAIModel
	}
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}

	httpClient := &http.Client{
		Timeout: DefaultTimeout,
	}

	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
		option.WithHTTPClient(httpClient),
	)

	return &OpenAIProvider{
		client:    client,
		model:     model,
		logger:    logger,
		debugMode: debugMode,
	}
}

// Verify judges a fresh proof submission against the goal description.
func (p *OpenAIProvider) Verify(ctx context.Context, goalDescription, proof string) (*VerificationResult, error) {
	prompt := fmt.Sprintf("Goal: %s\n\nSubmitted proof:\n%s\n\nDoes this proof demonstrate the goal was completed?", goalDescription, proof)
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(verifySystemPrompt),
		openai.UserMessage(prompt),
	}
	content, err := p.completeJSON(ctx, "verify_proof", messages)
	if err != nil {
		return nil, err
	}
	return parseVerificationResponse(content)
}

// VerifyFollowUp continues a re-verification conversation.
func (p *OpenAIProvider) VerifyFollowUp(ctx context.Context, goalDescription string, history []ChatMessage) (*VerificationResult, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+2)
	messages = append(messages,
		openai.SystemMessage(verifySystemPrompt),
		openai.SystemMessage("Goal under verification: "+goalDescription),
	)
	for _, m := range history {
		if m.Role == "assistant" {
			messages = append(messages, openai.AssistantMessage(m.Content))
		} else {
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}
	content, err := p.completeJSON(ctx, "verify_followup", messages)
	if err != nil {
		return nil, err
	}
	return parseVerificationResponse(content)
}

// Summarize produces a short history label for a completed goal.
func (p *OpenAIProvider) Summarize(ctx context.Context, goalDescription string) (string, error) {
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(fmt.Sprintf("Summarize the following completed goal in at most %d characters, plain text, no quotes.", MaxSummaryLength)),
		openai.UserMessage(goalDescription),
	}
	content, err := p.complete(ctx, "summarize_goal", messages, nil)
	if err != nil {
		return "", err
	}
	summary := strings.TrimSpace(content)
	if len(summary) > MaxSummaryLength {
		summary = summary[:MaxSummaryLength]
	}
	if summary == "" {
		return "", errors.New("empty summary")
	}
	return summary, nil
}

// ExtractCode reads a start code out of a captured image.
func (p *OpenAIProvider) ExtractCode(ctx context.Context, imageBase64 string) (string, error) {
	parts := []openai.ChatCompletionContentPartUnionParam{
		openai.TextContentPart("Extract the start code printed in this image. Respond with valid JSON shaped as {\"code\": string}. Use an empty string when no code is visible."),
		openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
			URL: "data:image/png;base64," + imageBase64,
		}),
	}
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.UserMessage(parts),
	}
	content, err := p.completeJSON(ctx, "extract_code", messages)
	if err != nil {
		return "", err
	}

	var extracted struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal([]byte(trimToJSON(content)), &extracted); err != nil {
		return "", fmt.Errorf("failed to parse extraction response: %w", err)
	}
	code := strings.TrimSpace(extracted.Code)
	if code == "" {
		return "", ErrNoCodeFound
	}
	return code, nil
}

// SuggestOrder asks for a reordering of the given pending goals. The
// response is filtered to IDs that were actually offered; missing IDs are
// appended in their original relative order so the result is always a
// permutation of the input.
func (p *OpenAIProvider) SuggestOrder(ctx context.Context, candidates []OrderCandidate) ([]uuid.UUID, error) {
	var sb strings.Builder
	sb.WriteString("Order these goals for a focused day. Respond with valid JSON shaped as {\"order\": [id, ...]} using every id exactly once.\n")
	ids := make([]uuid.UUID, 0, len(candidates))
	for _, c := range candidates {
		ids = append(ids, c.GoalID)
		fmt.Fprintf(&sb, "- %s: %s\n", c.GoalID, c.Description)
	}
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage("You are a scheduling assistant. Respond with valid JSON only."),
		openai.UserMessage(sb.String()),
	}
	content, err := p.completeJSON(ctx, "suggest_order", messages)
	if err != nil {
		return nil, err
	}

	var suggestion struct {
		Order []string `json:"order"`
	}
	if err := json.Unmarshal([]byte(trimToJSON(content)), &suggestion); err != nil {
		return nil, fmt.Errorf("failed to parse order response: %w", err)
	}

	return normalizeOrder(ids, suggestion.Order), nil
}

// normalizeOrder turns a raw model response into a permutation of the
// offered IDs: malformed, duplicate, and unoffered entries are dropped,
// and any IDs the response missed are appended in their offered order.
func normalizeOrder(offered []uuid.UUID, raw []string) []uuid.UUID {
	known := make(map[uuid.UUID]bool, len(offered))
	for _, id := range offered {
		known[id] = true
	}

	seen := make(map[uuid.UUID]bool, len(offered))
	var order []uuid.UUID
	for _, entry := range raw {
		id, err := uuid.Parse(entry)
		if err != nil || seen[id] || !known[id] {
			continue
		}
		seen[id] = true
		order = append(order, id)
	}
	for _, id := range offered {
		if !seen[id] {
			order = append(order, id)
		}
	}
	return order
}

// completeJSON sends a chat completion constrained to a JSON object response.
func (p *OpenAIProvider) completeJSON(ctx context.Context, operation string, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	format := &openai.ChatCompletionNewParamsResponseFormatUnion{
		OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
	}
	return p.complete(ctx, operation, messages, format)
}

func (p *OpenAIProvider) complete(ctx context.Context, operation string, messages []openai.ChatCompletionMessageParamUnion, format *openai.ChatCompletionNewParamsResponseFormatUnion) (string, error) {
	req := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(p.model),
		Messages: messages,
	}
	if format != nil {
		req.ResponseFormat = *format
	}

	if p.logger != nil && p.debugMode {
		p.logger.Debug("llm_api_request",
			zap.String("operation", operation),
			zap.String("model", p.model),
			zap.Int("message_count", len(messages)),
		)
	}

	start := time.Now()
	resp, err := p.client.Chat.Completions.New(ctx, req)
	latency := time.Since(start)
	if err != nil {
		if p.logger != nil && p.debugMode {
			p.logger.Debug("llm_api_error",
				zap.String("operation", operation),
				zap.String("model", p.model),
				zap.Error(err),
				zap.Int64("latency_ms", latency.Milliseconds()),
			)
		}
		if apiErr := ExtractAPIError(err); apiErr != nil {
			return "", fmt.Errorf("%s failed: %w", operation, apiErr)
		}
		return "", fmt.Errorf("%s failed: %w", operation, err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New(ErrNoChoicesInResponse)
	}

	content := resp.Choices[0].Message.Content
	if p.logger != nil && p.debugMode {
		p.logger.Debug("llm_api_response",
			zap.String("operation", operation),
			zap.String("model", p.model),
			zap.Int("response_length", len(content)),
			zap.String("response_preview", SanitizeResponse(content, true)),
			zap.Int64("latency_ms", latency.Milliseconds()),
		)
	}
	return content, nil
}

func parseVerificationResponse(content string) (*VerificationResult, error) {
	var result VerificationResult
	if err := json.Unmarshal([]byte(trimToJSON(content)), &result); err != nil {
		return nil, fmt.Errorf("failed to parse verification response: %w", err)
	}
	return &result, nil
}

// trimToJSON cuts leading/trailing prose around a JSON object, for models
// that wrap their answer despite the response format constraint.
func trimToJSON(raw string) string {
	if len(raw) > 0 && raw[0] == '{' {
		return raw
	}
	start := bytes.Index([]byte(raw), []byte("{"))
	end := bytes.LastIndex([]byte(raw), []byte("}"))
	if start != -1 && end != -1 && end > start {
		return raw[start : end+1]
	}
	return raw
}

// Interface assertions
var (
	_ Verifier       = (*OpenAIProvider)(nil)
	_ Summarizer     = (*OpenAIProvider)(nil)
	_ CodeExtractor  = (*OpenAIProvider)(nil)
	_ ScheduleOracle = (*OpenAIProvider)(nil)
)
