package embedder

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"math/big"
	"net"
	"sync"
	"time"

	"ragforge/internal/config"
	"ragforge/internal/embedding"
	"ragforge/internal/rag/ragerr"
)

const defaultMaxBatchSize = 32

// maxRetryAttempts bounds the transient-failure retry budget for embed calls (C2).
const maxRetryAttempts = 3

// retryBaseDelay is the base of the exponential backoff schedule.
const retryBaseDelay = time.Second

// Embedder defines the interface for converting text to embedding vectors.
type Embedder interface {
	// EmbedBatch returns an embedding vector per input text.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	// Name returns a model identifier string.
	Name() string
	// Dimension returns the embedding dimensionality (0 for variable/unknown).
	Dimension() int
	// Ping checks if the embedding service is reachable.
	Ping(ctx context.Context) error
}

// clientEmbedder wraps the embedding.EmbedText HTTP client for real embeddings,
// enforcing the batching and retry contract a single request must satisfy.
type clientEmbedder struct {
	cfg          config.EmbeddingConfig
	dim          int
	maxBatchSize int           // InvalidInput above this
	mu           sync.Mutex    // serializes API calls
	lastCall     time.Time     // last API call timestamp
	minDelay     time.Duration // minimum delay between API calls
}

// NewClient constructs an embedder that calls the configured embedding endpoint.
// A single call carries one batch of at most maxBatchSize texts (default 32);
// callers chunk larger corpora themselves via EmbedBatch's internal loop.
func NewClient(cfg config.EmbeddingConfig, dim int) Embedder {
	maxBatch := cfg.MaxBatchSize
	if maxBatch <= 0 {
		maxBatch = defaultMaxBatchSize
	}
	return &clientEmbedder{
		cfg:          cfg,
		dim:          dim,
		maxBatchSize: maxBatch,
		minDelay:     0,
	}
}

func (c *clientEmbedder) Name() string   { return c.cfg.Model }
func (c *clientEmbedder) Dimension() int { return c.dim }

func (c *clientEmbedder) Ping(ctx context.Context) error {
	return embedding.CheckReachability(ctx, c.cfg)
}

func (c *clientEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ragerr.New(ragerr.InvalidInput, "embed: no inputs")
	}

	if len(texts) <= c.maxBatchSize {
		return c.embedOneBatch(ctx, texts)
	}

	allEmbeddings := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += c.maxBatchSize {
		end := i + c.maxBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		embeddings, err := c.embedOneBatch(ctx, texts[i:end])
		if err != nil {
			return allEmbeddings, err
		}
		allEmbeddings = append(allEmbeddings, embeddings...)
	}
	return allEmbeddings, nil
}

// embedOneBatch validates the batch, rate-limits, and retries transient
// transport failures with exponential backoff and full jitter.
func (c *clientEmbedder) embedOneBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) > c.maxBatchSize {
		return nil, ragerr.New(ragerr.InvalidInput,
			fmt.Sprintf("embed: batch of %d exceeds max %d", len(texts), c.maxBatchSize))
	}

	var lastErr error
	for attempt := 0; attempt < maxRetryAttempts; attempt++ {
		if attempt > 0 {
			if err := sleepBackoff(ctx, attempt); err != nil {
				return nil, ragerr.Wrap(ragerr.Cancelled, err, "embed: cancelled during backoff")
			}
		}

		out, err := c.rateLimitedCall(ctx, texts)
		if err == nil {
			if dimErr := validateDimensions(out, c.dim); dimErr != nil {
				return nil, dimErr
			}
			return out, nil
		}
		lastErr = err
		if !isTransientTransportError(err) {
			break
		}
	}
	return nil, classifyEmbedError(lastErr, len(texts))
}

func validateDimensions(vecs [][]float32, want int) error {
	if want <= 0 {
		return nil
	}
	for i, v := range vecs {
		if len(v) != want {
			return ragerr.New(ragerr.ResponseShapeMismatch,
				fmt.Sprintf("embed: vector %d has dimension %d, want %d", i, len(v), want))
		}
	}
	return nil
}

func classifyEmbedError(err error, wantCount int) error {
	if err == nil {
		return nil
	}
	return ragerr.Wrap(ragerr.ExternalUnavailable, err,
		fmt.Sprintf("embed: embedding service failed for batch of %d", wantCount))
}

// isTransientTransportError reports whether err looks like a network-layer
// failure worth retrying, as opposed to a 4xx/parse failure that will not
// succeed on replay.
func isTransientTransportError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// sleepBackoff waits base*2^(attempt-1) with full jitter before a retry,
// honoring context cancellation.
func sleepBackoff(ctx context.Context, attempt int) error {
	maxDelay := retryBaseDelay * time.Duration(1<<uint(attempt-1))
	n, err := rand.Int(rand.Reader, big.NewInt(int64(maxDelay)))
	var delay time.Duration
	if err != nil {
		delay = maxDelay
	} else {
		delay = time.Duration(n.Int64())
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// rateLimitedCall ensures a minimum delay between API calls to avoid overwhelming the server
func (c *clientEmbedder) rateLimitedCall(ctx context.Context, texts []string) ([][]float32, error) {
	c.mu.Lock()
	if !c.lastCall.IsZero() {
		elapsed := time.Since(c.lastCall)
		if elapsed < c.minDelay {
			time.Sleep(c.minDelay - elapsed)
		}
	}
	c.lastCall = time.Now()
	c.mu.Unlock()

	return embedding.EmbedText(ctx, c.cfg, texts)
}

// deterministicEmbedder is a lightweight, deterministic embedder suitable for tests.
// It hashes byte 3-grams into a fixed-size vector and optionally L2-normalizes.
type deterministicEmbedder struct {
	dim       int
	normalize bool
	seed      uint64
	name      string
}

// NewDeterministic constructs a deterministic embedder with the given dimension.
// If normalize is true, vectors are L2-normalized. Seed perturbs hashing.
func NewDeterministic(dim int, normalize bool, seed uint64) Embedder {
	if dim <= 0 {
		dim = 64
	}
	return &deterministicEmbedder{dim: dim, normalize: normalize, seed: seed, name: "deterministic"}
}

func (d *deterministicEmbedder) Name() string   { return d.name }
func (d *deterministicEmbedder) Dimension() int { return d.dim }

func (d *deterministicEmbedder) Ping(_ context.Context) error { return nil }

func (d *deterministicEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = d.embedOne(t)
	}
	return out, nil
}

func (d *deterministicEmbedder) embedOne(s string) []float32 {
	v := make([]float32, d.dim)
	if len(s) == 0 {
		return v
	}
	// 3-gram hashing over bytes
	b := []byte(s)
	if len(b) < 3 {
		add(d.seed, b, v)
	} else {
		for i := 0; i <= len(b)-3; i++ {
			add(d.seed, b[i:i+3], v)
		}
	}
	if d.normalize {
		var sum float64
		for _, x := range v {
			sum += float64(x) * float64(x)
		}
		if sum > 0 {
			inv := float32(1.0 / math.Sqrt(sum))
			for i := range v {
				v[i] *= inv
			}
		}
	}
	return v
}

func add(seed uint64, gram []byte, v []float32) {
	h := fnv.New64a()
	if seed != 0 {
		var tmp [8]byte
		for i := 0; i < 8; i++ {
			tmp[i] = byte(seed >> (8 * i))
		}
		_, _ = h.Write(tmp[:])
	}
	_, _ = h.Write(gram)
	hv := h.Sum64()
	idx := int(hv % uint64(len(v)))
	// map hash to a signed weight in [-1, 1]
	w := float32(int32(hv>>32)) / float32(1<<31)
	v[idx] += w
}
