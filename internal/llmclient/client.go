// Package llmclient provides the generic LLM call used by documentation
// summarization and workflow-discovery tasks (spec §6.3): one
// Generate(ctx, systemPrompt, input, schema) entry point dispatched over
// whichever provider has a configured key.
//
// Adapted from the teacher's internal/llm/client.go: same provider enum,
// same env-var gating (OPENAI_API_KEY / ANTHROPIC_API_KEY), same
// openai/anthropic SDK choice — but Generate is schema-driven and
// provider-agnostic rather than the teacher's two task-specific methods
// (Complete, ShouldEscalateToPhase2), and completeAnthropic is a real call
// through the Anthropic SDK's Messages API rather than the teacher's
// placeholder stub.
package llmclient

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/sashabaranov/go-openai"

	blarerrors "github.com/blarApp/blargraph/internal/errors"
	"github.com/blarApp/blargraph/internal/logging"
)

// Provider identifies which backend Generate dispatches to.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderNone      Provider = "none"
)

// Client is the generic per-node LLM caller injected into batch processor
// Tasks (spec §4.7.2, §6.3).
type Client struct {
	provider  Provider
	openai    *openai.Client
	anthropic *anthropic.Client
	model     string
	maxTokens int
	limiter   *RateLimiter
}

// New constructs a Client from environment configuration, preferring
// OpenAI when both keys are present (matches the teacher's precedence). When
// LLM_RATE_LIMIT_REDIS_ADDR is set, Generate calls are throttled against a
// shared Redis counter before going out (spec §5's "every LLM call has a
// timeout" suspension-point note extends naturally to a proactive quota
// check for the many concurrent batch-processor workers sharing one key).
func New() *Client {
	var limiter *RateLimiter
	newLimiter := func(p Provider) *RateLimiter {
		addr := os.Getenv("LLM_RATE_LIMIT_REDIS_ADDR")
		if addr == "" {
			return nil
		}
		rl, err := NewRateLimiter(addr, p)
		if err != nil {
			logging.Warn("llmclient: rate limiter disabled", "error", err)
			return nil
		}
		return rl
	}

	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c := openai.NewClient(key)
		limiter = newLimiter(ProviderOpenAI)
		logging.Info("llmclient: openai configured")
		return &Client{provider: ProviderOpenAI, openai: c, model: openai.GPT4oMini, maxTokens: 1024, limiter: limiter}
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		c := anthropic.NewClient(option.WithAPIKey(key))
		limiter = newLimiter(ProviderAnthropic)
		logging.Info("llmclient: anthropic configured")
		return &Client{provider: ProviderAnthropic, anthropic: &c, model: string(anthropic.ModelClaude3_5HaikuLatest), maxTokens: 1024, limiter: limiter}
	}
	logging.Warn("llmclient: no provider configured (set OPENAI_API_KEY or ANTHROPIC_API_KEY); documentation/workflow tasks will be skipped")
	return &Client{provider: ProviderNone}
}

// Close releases the rate limiter's Redis connection, if one is configured.
func (c *Client) Close() error {
	if c.limiter != nil {
		return c.limiter.Close()
	}
	return nil
}

// Enabled reports whether a usable provider is configured.
func (c *Client) Enabled() bool {
	return c != nil && (c.provider == ProviderOpenAI || c.provider == ProviderAnthropic)
}

// Generate sends systemPrompt/input to the configured provider and returns
// its raw text response. schema, when non-nil, is appended to the system
// prompt as a JSON-shape instruction (neither provider's chat-completion
// endpoint used here enforces structured output natively, so the contract
// is "ask nicely, then the caller validates/retries" — consistent with the
// batch processor's per-task retry-by-re-invocation model).
func (c *Client) Generate(ctx context.Context, systemPrompt, input string, schema map[string]any) (string, error) {
	if !c.Enabled() {
		return "", blarerrors.LlmErrorOf(fmt.Errorf("no provider configured"), "generate")
	}
	if schema != nil {
		if raw, err := json.Marshal(schema); err == nil {
			systemPrompt = systemPrompt + "\n\nRespond with JSON matching this schema:\n" + string(raw)
		}
	}

	if c.limiter != nil {
		estimatedTokens := int64(len(systemPrompt)+len(input))/4 + int64(c.maxTokens)
		if err := c.limiter.WaitUntilAllowed(ctx, estimatedTokens); err != nil {
			return "", blarerrors.LlmErrorOf(err, "rate limit")
		}
	}

	switch c.provider {
	case ProviderOpenAI:
		return c.generateOpenAI(ctx, systemPrompt, input)
	case ProviderAnthropic:
		return c.generateAnthropic(ctx, systemPrompt, input)
	default:
		return "", blarerrors.LlmErrorOf(fmt.Errorf("no provider configured"), "generate")
	}
}

func (c *Client) generateOpenAI(ctx context.Context, systemPrompt, input string) (string, error) {
	resp, err := c.openai.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: input},
		},
		Temperature: 0.0,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return "", blarerrors.LlmErrorOf(err, "openai completion")
	}
	if len(resp.Choices) == 0 {
		return "", blarerrors.LlmErrorOf(fmt.Errorf("no choices returned"), "openai completion")
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *Client) generateAnthropic(ctx context.Context, systemPrompt, input string) (string, error) {
	resp, err := c.anthropic.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(c.maxTokens),
		System:    []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(input)),
		},
	})
	if err != nil {
		return "", blarerrors.LlmErrorOf(err, "anthropic completion")
	}
	for _, block := range resp.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", blarerrors.LlmErrorOf(fmt.Errorf("no text block returned"), "anthropic completion")
}
