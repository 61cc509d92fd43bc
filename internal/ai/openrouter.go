package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/baswilson/memory-engine/internal/config"
	"github.com/sashabaranov/go-openai"
)

// Embedding is a vector generated for a piece of text
type Embedding struct {
	Model  string    `json:"model"`
	Vector []float32 `json:"embedding"`
}

// Client owns the process-wide OpenRouter handle. The underlying
// *openai.Client is built on the first call to Get and reused afterwards.
type Client struct {
	apiKey     string
	baseURL    string
	embedModel string
	httpClient *http.Client

	once   sync.Once
	client *openai.Client
}

// NewClient creates a client wrapper from config. No connection is made and
// the API key is not checked.
func NewClient(cfg *config.Config) *Client {
	timeout := cfg.LLMTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		apiKey:     cfg.OpenRouterAPIKey,
		baseURL:    cfg.OpenRouterBaseURL,
		embedModel: cfg.EmbeddingModel,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Get returns the cached handle, creating it on first use.
func (c *Client) Get() *openai.Client {
	c.once.Do(func() {
		clientConfig := openai.DefaultConfig(c.apiKey)
		clientConfig.BaseURL = c.baseURL
		clientConfig.HTTPClient = c.httpClient
		c.client = openai.NewClientWithConfig(clientConfig)
	})
	return c.client
}

// Embed creates a vector embedding for the given text. The vector is
// returned to the caller and never stored.
func (c *Client) Embed(ctx context.Context, text string) (*Embedding, error) {
	req := openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(c.embedModel),
		Input: []string{text},
	}

	resp, err := c.Get().CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}

	if len(resp.Data) == 0 {
		return nil, errors.New("no embedding returned from model")
	}

	model := string(resp.Model)
	if model == "" {
		model = c.embedModel
	}
	return &Embedding{Model: model, Vector: resp.Data[0].Embedding}, nil
}

// Close releases idle connections held by the handle.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}
