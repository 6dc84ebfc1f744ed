package synthesis

import (
	"context"
)

// Generator produces a Generation for a prompt.
type Generator interface {
	Generate(ctx context.Context, p Prompt) (Generation, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, p Prompt) (Generation, error)

// Generate implements Generator.
func (f GeneratorFunc) Generate(ctx context.Context, p Prompt) (Generation, error) {
	return f(ctx, p)
}

var (
	_ Generator = (*RuleGenerator)(nil)
	_ Generator = (*LLMGenerator)(nil)
	_ Generator = GeneratorFunc(nil)
)
