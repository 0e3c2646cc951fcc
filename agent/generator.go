package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/sony/gobreaker"

	"github.com/becomeliminal/mnemo/core"
	"github.com/becomeliminal/mnemo/memory"
)

// AnthropicGenerator produces responses through the Claude API, behind a
// circuit breaker so a flapping upstream fails fast instead of queueing
// timeouts.
type AnthropicGenerator struct {
	client    *anthropic.Client
	breaker   *gobreaker.CircuitBreaker
	model     string
	maxTokens int64
}

// GeneratorConfig holds AnthropicGenerator tuning.
type GeneratorConfig struct {
	// Model is the Claude model to use.
	// Default: claude-sonnet-4-20250514
	Model string

	// MaxTokens is the maximum response tokens.
	// Default: 1024
	MaxTokens int64

	// BreakerFailures is the consecutive-failure count that opens the
	// breaker. Default: 5
	BreakerFailures uint32

	// BreakerCooldown is how long the breaker stays open before probing.
	// Default: 30s
	BreakerCooldown time.Duration
}

// NewAnthropicGenerator creates a generator. A nil config uses defaults.
func NewAnthropicGenerator(client *anthropic.Client, cfg *GeneratorConfig) *AnthropicGenerator {
	if cfg == nil {
		cfg = &GeneratorConfig{}
	}
	if cfg.Model == "" {
		cfg.Model = "claude-sonnet-4-20250514"
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 1024
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerCooldown == 0 {
		cfg.BreakerCooldown = 30 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "anthropic",
		Timeout: cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
	})

	return &AnthropicGenerator{
		client:    client,
		breaker:   breaker,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
	}
}

// Generate calls the Claude API with the short-term history as the message
// list and the retrieved memories folded into the system prompt.
func (g *AnthropicGenerator) Generate(ctx context.Context, systemContext string, history []core.Turn, memories []memory.Scored) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(g.model),
		MaxTokens: g.maxTokens,
		Messages:  turnsToMessages(history),
		System: []anthropic.TextBlockParam{
			{Text: buildSystemPrompt(systemContext, memories)},
		},
	}

	result, err := g.breaker.Execute(func() (interface{}, error) {
		return g.client.Messages.New(ctx, params)
	})
	if err != nil {
		return "", classifyGenerationError(err)
	}

	resp := result.(*anthropic.Message)
	if resp.StopReason == "refusal" {
		return "", &core.Error{Kind: core.KindContentPolicy, Msg: "generation refused"}
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	if text == "" {
		return "", fmt.Errorf("empty response from model")
	}
	return text, nil
}

// turnsToMessages maps the window to API messages. Agent turns become
// assistant messages.
func turnsToMessages(history []core.Turn) []anthropic.MessageParam {
	messages := make([]anthropic.MessageParam, 0, len(history))
	for _, t := range history {
		block := anthropic.NewTextBlock(t.Text)
		if t.Role == core.RoleAgent {
			messages = append(messages, anthropic.NewAssistantMessage(block))
		} else {
			messages = append(messages, anthropic.NewUserMessage(block))
		}
	}
	return messages
}

// buildSystemPrompt appends the retrieved memories to the base prompt so the
// model can draw on past sessions.
func buildSystemPrompt(systemContext string, memories []memory.Scored) string {
	if len(memories) == 0 {
		return systemContext
	}

	var b strings.Builder
	b.WriteString(systemContext)
	b.WriteString("\n\nRELEVANT MEMORIES from previous conversations:\n")
	for _, m := range memories {
		b.WriteString("- ")
		b.WriteString(m.Format())
		b.WriteString("\n")
	}
	b.WriteString("\nUse these memories naturally when they are relevant. Do not recite them verbatim.")
	return b.String()
}

// classifyGenerationError maps API and breaker failures onto error kinds.
// Rate limits, server errors, and an open breaker are transient; everything
// else is fatal for the turn.
func classifyGenerationError(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return core.Transient("generation circuit open", err)
	}

	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		if apierr.StatusCode == 429 || apierr.StatusCode >= 500 {
			return core.Transient("claude API unavailable", err)
		}
	}
	return fmt.Errorf("claude API error: %w", err)
}
