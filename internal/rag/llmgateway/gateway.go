// Package llmgateway implements the LLM Gateway (C16): a uniform facade over
// internal/llm.Provider that adds the spec's generate/stream/available
// contract, transient-transport retry, and provider error classification.
package llmgateway

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"ragforge/internal/llm"
	"ragforge/internal/rag/ragerr"
)

// Usage reports token accounting for a single generation.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// Params carries per-call generation parameters.
type Params struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// StreamChunk is one piece of a streamed generation, preserving provider order.
type StreamChunk struct {
	Delta string
	Done  bool
}

const maxRetryAttempts = 3

// Gateway wraps a named llm.Provider.
type Gateway struct {
	name     string
	provider llm.Provider
}

// New constructs a gateway around an already-built provider (see
// internal/llm/providers.Build for provider selection by configuration).
func New(name string, provider llm.Provider) *Gateway {
	return &Gateway{name: name, provider: provider}
}

// Name returns the configured provider name, used by health checks.
func (g *Gateway) Name() string { return g.name }

// Available performs a cheap reachability probe: a minimal chat call with a
// "ping" user message and a tight deadline.
func (g *Gateway) Available(ctx context.Context) bool {
	cctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := g.provider.Chat(cctx, []llm.Message{{Role: "user", Content: "ping"}}, nil, "")
	return err == nil
}

// Generate produces text for (system, user) under params, retrying only
// transient transport failures up to 3 times. Business errors (quota,
// content filter, context length) are never retried.
func (g *Gateway) Generate(ctx context.Context, system, user string, params Params) (string, Usage, error) {
	msgs := []llm.Message{}
	if system != "" {
		msgs = append(msgs, llm.Message{Role: "system", Content: system})
	}
	msgs = append(msgs, llm.Message{Role: "user", Content: user})

	var lastErr error
	for attempt := 0; attempt < maxRetryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", Usage{}, ragerr.Wrap(ragerr.Cancelled, ctx.Err(), "llm gateway: cancelled during retry")
			case <-time.After(time.Duration(attempt) * 250 * time.Millisecond):
			}
		}
		msg, err := g.provider.Chat(ctx, msgs, nil, params.Model)
		if err == nil {
			return msg.Content, Usage{}, nil
		}
		lastErr = err
		kind := classify(err)
		var netErr net.Error
		transient := errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded)
		if kind != ragerr.ProviderUnavailable || !transient {
			return "", Usage{}, ragerr.Wrap(kind, err, "llm gateway: generation failed")
		}
	}
	return "", Usage{}, ragerr.Wrap(ragerr.ProviderUnavailable, lastErr, "llm gateway: provider unavailable after retries")
}

// Stream produces incremental output chunks via the provider's streaming
// handler, adapting the callback interface into a channel the caller ranges
// over, preserving provider ordering.
func (g *Gateway) Stream(ctx context.Context, system, user string, params Params) (<-chan StreamChunk, error) {
	msgs := []llm.Message{}
	if system != "" {
		msgs = append(msgs, llm.Message{Role: "system", Content: system})
	}
	msgs = append(msgs, llm.Message{Role: "user", Content: user})

	out := make(chan StreamChunk)
	handler := &channelStreamHandler{ch: out}

	go func() {
		defer close(out)
		if err := g.provider.ChatStream(ctx, msgs, nil, params.Model, handler); err != nil {
			// best-effort: surface nothing further, caller observes channel close
			return
		}
	}()
	return out, nil
}

type channelStreamHandler struct {
	ch chan StreamChunk
}

func (h *channelStreamHandler) OnDelta(content string)        { h.ch <- StreamChunk{Delta: content} }
func (h *channelStreamHandler) OnToolCall(llm.ToolCall)        {}
func (h *channelStreamHandler) OnImage(llm.GeneratedImage)     {}
func (h *channelStreamHandler) OnThoughtSummary(string)        {}

var _ llm.StreamHandler = (*channelStreamHandler)(nil)

// classify maps a raw provider error into the gateway's error taxonomy.
func classify(err error) ragerr.Kind {
	if err == nil {
		return ""
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "quota") || strings.Contains(msg, "rate limit") || strings.Contains(msg, "429"):
		return ragerr.QuotaExceeded
	case strings.Contains(msg, "context length") || strings.Contains(msg, "maximum context") || strings.Contains(msg, "too long"):
		return ragerr.ContextTooLong
	case strings.Contains(msg, "content filter") || strings.Contains(msg, "safety") || strings.Contains(msg, "blocked"):
		return ragerr.ContentFiltered
	}
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return ragerr.ProviderUnavailable
	}
	return ragerr.ProviderUnavailable
}
