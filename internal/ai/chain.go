package ai

import (
	"context"
	"fmt"
	"log"
)

// Options selects which providers a chain carries, in priority order:
// Gemini, then Hugging Face, then the local fallback. A key left empty
// drops that provider.
type Options struct {
	GeminiKey      string
	HuggingFaceKey string
	IncludeLocal   bool
}

// Chain tries providers in priority order and remembers the last one that
// worked (sticky routing): a success moves the current pointer to the
// provider that satisfied it, and subsequent calls start there. Within a
// single call the pointer only moves forward, ending at the terminal
// fallback.
//
// A Chain is not safe for concurrent use; give each request its own
// instance.
type Chain struct {
	providers []Provider
	current   int
}

// NewChain builds a chain from Options. With IncludeLocal set the local
// rule-based provider terminates the chain and the chain as a whole cannot
// fail. Without it at least one remote key is required.
func NewChain(opts Options) (*Chain, error) {
	var providers []Provider
	if opts.GeminiKey != "" {
		providers = append(providers, NewGeminiProvider(opts.GeminiKey))
	}
	if opts.HuggingFaceKey != "" {
		providers = append(providers, NewHuggingFaceProvider(opts.HuggingFaceKey))
	}
	if opts.IncludeLocal {
		providers = append(providers, NewLocalProvider())
	}
	if len(providers) == 0 {
		return nil, fmt.Errorf("no analysis providers configured: set an API key or enable the local provider")
	}
	return &Chain{providers: providers}, nil
}

// NewChainWithProviders exists for callers (and tests) that assemble their
// own provider list. The last provider should be one whose IsAvailable is
// always true.
func NewChainWithProviders(providers ...Provider) (*Chain, error) {
	if len(providers) == 0 {
		return nil, fmt.Errorf("no analysis providers given")
	}
	return &Chain{providers: providers}, nil
}

// Current returns the name of the provider the next call will start with
func (c *Chain) Current() string {
	return c.providers[c.current].Name()
}

// do runs one operation through the chain: current provider first, then the
// next available provider, then a jump straight to the terminal fallback.
// The pointer is only advanced on success, biasing later calls toward the
// last-known-good provider.
func (c *Chain) do(op func(Provider) (string, error)) (string, error) {
	var lastErr error

	// Attempt with the current provider
	cur := c.providers[c.current]
	if cur.IsAvailable() {
		out, err := op(cur)
		if err == nil {
			return out, nil
		}
		lastErr = err
		log.Printf("provider %s failed, advancing: %v", cur.Name(), err)
	} else {
		lastErr = providerErr(cur.Name(), fmt.Errorf("not available"))
	}

	// Advance to the next available provider and retry once
	next := -1
	for i := c.current + 1; i < len(c.providers); i++ {
		if c.providers[i].IsAvailable() {
			next = i
			break
		}
	}
	if next >= 0 {
		out, err := op(c.providers[next])
		if err == nil {
			c.current = next
			return out, nil
		}
		lastErr = err
		log.Printf("provider %s failed, falling back: %v", c.providers[next].Name(), err)
	}

	// Jump directly to the terminal fallback, skipping anything untried in
	// between
	terminal := len(c.providers) - 1
	if terminal != c.current && terminal != next {
		out, err := op(c.providers[terminal])
		if err == nil {
			c.current = terminal
			return out, nil
		}
		lastErr = err
	}

	return "", fmt.Errorf("all analysis providers failed, last error: %w", lastErr)
}

func (c *Chain) GenerateInsights(ctx context.Context, req InsightRequest) (string, error) {
	return c.do(func(p Provider) (string, error) { return p.GenerateInsights(ctx, req) })
}

func (c *Chain) SummarizeEmails(ctx context.Context, emails []EmailSummary) (string, error) {
	return c.do(func(p Provider) (string, error) { return p.SummarizeEmails(ctx, emails) })
}

func (c *Chain) CategorizeEmail(ctx context.Context, email EmailSummary) (string, error) {
	return c.do(func(p Provider) (string, error) { return p.CategorizeEmail(ctx, email) })
}
