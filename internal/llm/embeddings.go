package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// DefaultEmbeddingBatchSize is how many texts go into one embeddings request.
const DefaultEmbeddingBatchSize = 32

// ErrEmptyInput is returned when there is nothing to embed.
var ErrEmptyInput = errors.New("empty input")

// EmbeddingsClient talks to an OpenAI-compatible /v1/embeddings endpoint.
type EmbeddingsClient struct {
	BaseURL string
	APIKey  string
	Model   string
	// Dimension every returned vector must have.
	Dimension int
	// BatchSize splits large inputs across several requests.
	BatchSize int
	// Timeout bounds each request. Zero means no limit beyond ctx.
	Timeout time.Duration
	client  *http.Client
}

// NewEmbeddingsClient creates an embeddings client that validates vectors against dimension.
func NewEmbeddingsClient(baseURL, apiKey, model string, dimension int, timeout time.Duration) *EmbeddingsClient {
	return &EmbeddingsClient{
		BaseURL:   baseURL,
		APIKey:    apiKey,
		Model:     model,
		Dimension: dimension,
		BatchSize: DefaultEmbeddingBatchSize,
		Timeout:   timeout,
		client:    http.DefaultClient,
	}
}

// EmbeddingsRequest is the payload for /v1/embeddings.
type EmbeddingsRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// EmbeddingData is one vector of the response. Index refers to the input position.
type EmbeddingData struct {
	Index     int       `json:"index"`
	Embedding []float64 `json:"embedding"`
}

// EmbeddingsResponse is the body returned by /v1/embeddings.
type EmbeddingsResponse struct {
	Data []EmbeddingData `json:"data"`
}

// EmbedTexts returns one vector per text, in input order.
func (c *EmbeddingsClient) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyInput
	}

	size := c.BatchSize
	if size <= 0 {
		size = DefaultEmbeddingBatchSize
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += size {
		end := min(start+size, len(texts))
		batch, err := c.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("embedding texts %d-%d: %w", start, end-1, err)
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

func (c *EmbeddingsClient) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	var resp EmbeddingsResponse
	if err := postJSON(ctx, c.client, c.BaseURL, "/v1/embeddings", c.APIKey, EmbeddingsRequest{Model: c.Model, Input: texts}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	// Servers that omit the index return vectors in input order
	indexed := false
	for _, d := range resp.Data {
		if d.Index != 0 {
			indexed = true
			break
		}
	}

	out := make([][]float32, len(texts))
	for i, d := range resp.Data {
		pos := i
		if indexed {
			pos = d.Index
		}
		if pos < 0 || pos >= len(texts) || out[pos] != nil {
			return nil, fmt.Errorf("embedding %d has invalid index %d", i, d.Index)
		}
		if len(d.Embedding) != c.Dimension {
			return nil, fmt.Errorf("embedding %d has size %d, expected %d", pos, len(d.Embedding), c.Dimension)
		}
		vec := make([]float32, len(d.Embedding))
		for j, v := range d.Embedding {
			vec[j] = float32(v)
		}
		out[pos] = vec
	}
	return out, nil
}

// Ping checks that the embeddings server answers the models endpoint.
func (c *EmbeddingsClient) Ping(ctx context.Context) error {
	_, err := listModels(ctx, c.client, c.BaseURL, c.APIKey)
	return err
}
