package synthesis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"golang.org/x/time/rate"
)

// errEmptyCompletion is returned when a model answers with no text.
var errEmptyCompletion = errors.New("empty completion")

// LLMGenerator generates through a langchaingo model.
type LLMGenerator struct {
	model   llms.Model
	limiter *rate.Limiter
	options []llms.CallOption
}

func newLLMGenerator(model llms.Model, cfg Config) *LLMGenerator {
	var options []llms.CallOption
	if cfg.Temperature > 0 {
		options = append(options, llms.WithTemperature(cfg.Temperature))
	}
	if cfg.MaxTokens > 0 {
		options = append(options, llms.WithMaxTokens(cfg.MaxTokens))
	}
	return &LLMGenerator{
		model:   model,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst),
		options: options,
	}
}

// Generate sends the rendered prompt to the model. JSON answers become
// Structured; anything else is RawText.
func (g *LLMGenerator) Generate(ctx context.Context, p Prompt) (Generation, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return Generation{}, fmt.Errorf("rate limiter: %w", err)
	}

	completion, err := llms.GenerateFromSinglePrompt(ctx, g.model, p.Text, g.options...)
	if err != nil {
		return Generation{}, fmt.Errorf("calling model: %w", err)
	}
	return parseCompletion(completion)
}

// parseCompletion accepts bare or fenced JSON drafts.
func parseCompletion(completion string) (Generation, error) {
	text := strings.TrimSpace(completion)
	if text == "" {
		return Generation{}, errEmptyCompletion
	}

	body := strings.TrimPrefix(text, "```json")
	body = strings.TrimPrefix(body, "```")
	body = strings.TrimSuffix(body, "```")
	body = strings.TrimSpace(body)

	var d Draft
	if strings.HasPrefix(body, "{") && json.Unmarshal([]byte(body), &d) == nil && d.ProbableCause != "" {
		return Structured(d), nil
	}
	return RawText(text), nil
}
