// Package rag implements the embedding collaborator against an
// OpenAI-compatible embeddings endpoint. Embedding is an idempotent
// read, so transient failures go through the retrier.
package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sandevgo/relaybot/internal/config"
	"github.com/sandevgo/relaybot/pkg/retry"
)

type Embedder struct {
	client  *http.Client
	retrier *retry.Retrier
	baseURL string
	apiKey  string
	model   string
}

func NewEmbedder(cfg *config.EmbeddingConfig) *Embedder {
	return &Embedder{
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		retrier: retry.NewDefaultRetrier(),
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
	}
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var vector []float32
	err := e.retrier.Do(ctx, func() error {
		v, err := e.embedOnce(ctx, text)
		if err != nil {
			return err
		}
		vector = v
		return nil
	})
	return vector, err
}

func (e *Embedder) embedOnce(ctx context.Context, text string) ([]float32, error) {
	payload, err := json.Marshal(map[string]any{
		"model": e.model,
		"input": text,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/v1/embeddings", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, string(data))
	}

	var result struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if len(result.Data) == 0 {
		return nil, fmt.Errorf("empty embedding response")
	}
	return result.Data[0].Embedding, nil
}
