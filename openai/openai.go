package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"
)

const (
	DefaultBaseURL        = "https://api.openai.com/v1"
	DefaultAPIKeyEnv      = "OPENAI_API_KEY"
	DefaultEmbeddingModel = "text-embedding-ada-002"
	DefaultChatModel      = "gpt-3.5-turbo"
)

// Client is an OpenAI-compatible embeddings and chat-completions client.
// Every call is attempted exactly once; callers decide whether a failure is
// fatal.
type Client struct {
	baseURL        string
	apiKey         string
	embeddingModel string
	chatModel      string
	temperature    float32
	client         *http.Client
}

type Config struct {
	BaseURL        string        `yaml:"baseURL"`
	APIKeyEnv      string        `yaml:"apiKeyEnv"`
	EmbeddingModel string        `yaml:"embeddingModel"`
	ChatModel      string        `yaml:"chatModel"`
	Temperature    float32       `yaml:"temperature"`
	Timeout        time.Duration `yaml:"-"`
}

// NewClient creates a client from the configuration. A missing API key is a
// configuration error and refuses to construct the client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKeyEnv == "" {
		cfg.APIKeyEnv = DefaultAPIKeyEnv
	}

	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = DefaultEmbeddingModel
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = DefaultChatModel
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}

	return &Client{
		baseURL:        cfg.BaseURL,
		apiKey:         key,
		embeddingModel: cfg.EmbeddingModel,
		chatModel:      cfg.ChatModel,
		temperature:    cfg.Temperature,
		client:         &http.Client{Timeout: timeout},
	}, nil
}

// EmbeddingModel returns the model used for embeddings, recorded in the index
// manifest so snapshots built with another model are rejected at load.
func (c *Client) EmbeddingModel() string { return c.embeddingModel }

// Embed returns the embedding vector for the given text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	type reqBody struct {
		Input string `json:"input"`
		Model string `json:"model"`
	}

	body := reqBody{Input: text, Model: c.embeddingModel}
	data, err := json.Marshal(&body)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/embeddings", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("openai embeddings failed: %s", resp.Status)
	}

	var out struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}

	if len(out.Data) == 0 || len(out.Data[0].Embedding) == 0 {
		return nil, errors.New("no embedding returned")
	}

	return out.Data[0].Embedding, nil
}

// Message is a single chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatCompletion sends the prompt as a single user message and returns the
// model's text response.
func (c *Client) ChatCompletion(ctx context.Context, prompt string) (string, error) {
	type reqBody struct {
		Model       string    `json:"model"`
		Messages    []Message `json:"messages"`
		Temperature float32   `json:"temperature"`
	}

	body := reqBody{
		Model: c.chatModel,
		Messages: []Message{
			{Role: "user", Content: prompt},
		},
		Temperature: c.temperature,
	}

	data, err := json.Marshal(&body)
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/chat/completions", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("openai chat completion failed: %s", resp.Status)
	}

	var out struct {
		Choices []struct {
			Message Message `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}

	if len(out.Choices) == 0 {
		return "", errors.New("no completion returned")
	}

	return out.Choices[0].Message.Content, nil
}
