// Package stt implements the transcription collaborator. The media is
// referenced by URL; the endpoint fetches and transcribes it
// (whisper-style JSON API).
package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sandevgo/relaybot/internal/config"
	"github.com/sandevgo/relaybot/internal/core"
)

type Transcriber struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
}

func NewTranscriber(cfg *config.TranscriptionConfig) *Transcriber {
	return &Transcriber{
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
	}
}

func (t *Transcriber) Transcribe(ctx context.Context, mediaRef string) (core.Transcript, error) {
	payload, err := json.Marshal(map[string]any{
		"model": t.model,
		"url":   mediaRef,
	})
	if err != nil {
		return core.Transcript{}, fmt.Errorf("marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/v1/audio/transcriptions", bytes.NewReader(payload))
	if err != nil {
		return core.Transcript{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if t.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.apiKey)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return core.Transcript{}, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return core.Transcript{}, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return core.Transcript{}, fmt.Errorf("http %d: %s", resp.StatusCode, string(data))
	}

	var result struct {
		Text     string `json:"text"`
		Language string `json:"language"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return core.Transcript{}, fmt.Errorf("decode: %w", err)
	}
	return core.Transcript{Text: result.Text, Language: result.Language}, nil
}
