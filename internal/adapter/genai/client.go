// Package genai is the HTTP client for the generation gateway, the internal
// service that fronts the actual image/video/audio/text providers. The
// gateway owns provider SDKs, API keys and model routing; this client only
// speaks the gateway's own API.
package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"reelforge/backend/internal/processor"
)

type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		// Media synthesis is slow; the per-type job timeout is the real
		// bound, this is just a transport ceiling.
		client: &http.Client{Timeout: 30 * time.Minute},
	}
}

func (c *Client) Generate(ctx context.Context, req processor.MediaRequest) (processor.MediaResult, error) {
	var result processor.MediaResult
	err := c.post(ctx, "/v1/generate", req, &result)
	return result, err
}

func (c *Client) Analyze(ctx context.Context, script string) (json.RawMessage, error) {
	var result json.RawMessage
	err := c.post(ctx, "/v1/analyze", map[string]string{"script": script}, &result)
	return result, err
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewBuffer(jsonBody))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return fmt.Errorf("generation gateway error: %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
