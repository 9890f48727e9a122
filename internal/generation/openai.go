package generation

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/resilience2relief/backend/pkg/circuitbreaker"
	"github.com/resilience2relief/backend/pkg/config"
	"github.com/resilience2relief/backend/pkg/logger"
	"github.com/resilience2relief/backend/pkg/retry"
)

const systemPrompt = `You are a disaster recovery planning specialist for Pacific island nations. Write concise, practical project text grounded strictly in the reference material provided. Respond with exactly two lines: the first line is a project title under 12 words, the second line is a single-paragraph project description.`

// OpenAIGenerator writes project text with a chat model. Upstream failure
// degrades to the deterministic template rather than failing the request.
type OpenAIGenerator struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	fallback    *TemplateGenerator
	cb          *circuitbreaker.CircuitBreaker
	retryConfig retry.Config
}

func NewOpenAIGenerator(cfg config.GeneratorConfig) *OpenAIGenerator {
	cb := circuitbreaker.NewCircuitBreaker("generator", circuitbreaker.Config{
		MaxRequests:      5,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Logger:           logger.GetLogger(),
	})

	retryConfig := retry.Config{
		MaxAttempts:    3,
		InitialDelay:   500 * time.Millisecond,
		MaxDelay:       5 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		Logger:         logger.GetLogger(),
	}

	logger.Info("OpenAI generator initialized", zap.String("model", cfg.Model))

	return &OpenAIGenerator{
		client:      openai.NewClient(cfg.APIKey),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		fallback:    NewTemplateGenerator(),
		cb:          cb,
		retryConfig: retryConfig,
	}
}

func (g *OpenAIGenerator) Name() string {
	return "openai"
}

func (g *OpenAIGenerator) GenerateProjectText(ctx context.Context, in Input) (Output, error) {
	var out Output
	err := g.cb.Execute(ctx, func() error {
		return retry.Do(ctx, g.retryConfig, func() error {
			var genErr error
			out, genErr = g.generate(ctx, in)
			return genErr
		})
	})
	if err != nil {
		logger.Warn("Generator call failed, using template text", zap.Error(err))
		return g.fallback.GenerateProjectText(ctx, in)
	}
	return out, nil
}

func (g *OpenAIGenerator) generate(ctx context.Context, in Input) (Output, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		Temperature: g.temperature,
		MaxTokens:   g.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildPrompt(in)},
		},
	})
	if err != nil {
		return Output{}, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Output{}, fmt.Errorf("chat completion returned no choices")
	}

	return parseResponse(resp.Choices[0].Message.Content), nil
}

func buildPrompt(in Input) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Need: %s\n", in.Query)
	fmt.Fprintf(&b, "Sector: %s\n", in.Sector)
	if in.Region != "" {
		fmt.Fprintf(&b, "Region: %s\n", in.Region)
	}
	if in.DisasterType != "" {
		fmt.Fprintf(&b, "Disaster: %s\n", in.DisasterType)
	}
	fmt.Fprintf(&b, "Estimated beneficiaries: %d\nBudget: %d USD\nTimeline: %d months\n",
		in.Beneficiaries, in.BudgetUSD, in.TimelineMonths)

	if len(in.Snippets) > 0 {
		b.WriteString("\nReference material:\n")
		for i, s := range in.Snippets {
			if i == 3 {
				break
			}
			fmt.Fprintf(&b, "- %s\n", truncate(s, 500))
		}
	}

	return b.String()
}

// parseResponse splits the two-line reply into title and description,
// tolerating extra blank lines and markdown heading markers.
func parseResponse(content string) Output {
	var lines []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(line, "#* "))
		if line != "" {
			lines = append(lines, line)
		}
	}

	switch len(lines) {
	case 0:
		return Output{Title: "Disaster Recovery Project", Description: content}
	case 1:
		return Output{Title: "Disaster Recovery Project", Description: lines[0]}
	default:
		return Output{Title: lines[0], Description: strings.Join(lines[1:], " ")}
	}
}
