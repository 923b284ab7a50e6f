// Package llm implements the generation collaborator against any
// OpenAI-compatible chat completion endpoint, in single-shot and
// streamed form.
package llm

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"context"

	"github.com/sandevgo/relaybot/internal/config"
	"github.com/sandevgo/relaybot/internal/core"
)

type Client struct {
	baseProvider
}

func NewClient(cfg *config.GenerationConfig) *Client {
	return &Client{
		baseProvider: newBaseProvider(cfg.BaseURL, cfg.APIKey, cfg.Model),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (c *Client) buildMessages(req core.GenerationRequest) []chatMessage {
	messages := make([]chatMessage, 0, len(req.History)+2)
	if req.SystemInstruction != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.SystemInstruction})
	}
	for _, m := range req.History {
		role := "user"
		if m.Direction == core.DirectionOutbound {
			role = "assistant"
		}
		messages = append(messages, chatMessage{Role: role, Content: m.Text})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.UserText})
	return messages
}

func (c *Client) Complete(ctx context.Context, req core.GenerationRequest) (string, error) {
	payload := map[string]any{
		"model":    c.model,
		"messages": c.buildMessages(req),
	}

	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/chat/completions", payload)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("http %d: %s", resp.StatusCode, string(data))
	}

	var result struct {
		Choices []struct {
			Message chatMessage `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return "", fmt.Errorf("decode: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", nil
	}
	return result.Choices[0].Message.Content, nil
}

// Stream emits content fragments in arrival order; the fragment channel
// closing is the end-of-stream marker.
func (c *Client) Stream(ctx context.Context, req core.GenerationRequest) (<-chan string, <-chan error) {
	fragments := make(chan string, 16)
	errCh := make(chan error, 1)

	go func() {
		defer close(fragments)
		defer close(errCh)

		payload := map[string]any{
			"model":    c.model,
			"messages": c.buildMessages(req),
			"stream":   true,
		}

		resp, err := c.doRequest(ctx, http.MethodPost, "/v1/chat/completions", payload)
		if err != nil {
			errCh <- err
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			data, _ := io.ReadAll(resp.Body)
			errCh <- fmt.Errorf("http %d: %s", resp.StatusCode, string(data))
			return
		}

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "[DONE]" {
				return
			}

			var chunk struct {
				Choices []struct {
					Delta struct {
						Content string `json:"content"`
					} `json:"delta"`
				} `json:"choices"`
			}
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				errCh <- fmt.Errorf("decode stream chunk: %w", err)
				return
			}
			if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
				continue
			}

			select {
			case fragments <- chunk.Choices[0].Delta.Content:
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			}
		}
		if err := scanner.Err(); err != nil {
			errCh <- fmt.Errorf("read stream: %w", err)
		}
	}()

	return fragments, errCh
}
