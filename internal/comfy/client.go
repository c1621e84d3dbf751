// Package comfy talks to a ComfyUI-compatible generation engine: readiness
// probing, job submission, progress events and execution history.
package comfy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"videoworker/internal/infra"
)

// ErrEmptyPromptID is returned when the engine accepts a job without an id.
var ErrEmptyPromptID = errors.New("comfy: empty prompt_id in response")

// Options configures the engine HTTP client.
type Options struct {
	BaseURL      string
	ProbeTimeout time.Duration
	HTTPClient   *http.Client
	Logger       *infra.Logger
}

// Client performs HTTP calls against the engine.
type Client struct {
	baseURL      string
	probeTimeout time.Duration
	httpClient   *http.Client
	logger       *infra.Logger
}

type submitRequest struct {
	Prompt   any    `json:"prompt"`
	ClientID string `json:"client_id"`
}

type submitResponse struct {
	PromptID   string          `json:"prompt_id"`
	Number     int             `json:"number"`
	NodeErrors json.RawMessage `json:"node_errors,omitempty"`
}

// NewClient constructs a client with sane defaults.
func NewClient(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("comfy: base url is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("comfy: invalid base url: %w", err)
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	probeTimeout := opts.ProbeTimeout
	if probeTimeout <= 0 {
		probeTimeout = 5 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	return &Client{
		baseURL:      baseURL,
		probeTimeout: probeTimeout,
		httpClient:   httpClient,
		logger:       logger,
	}, nil
}

// BaseURL returns the engine address the client targets.
func (c *Client) BaseURL() string { return c.baseURL }

// Ping issues one short readiness request to the base URL.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return fmt.Errorf("comfy: build probe: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("comfy: probe: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 400 {
		return fmt.Errorf("comfy: probe status %d", resp.StatusCode)
	}
	return nil
}

// Submit queues graph under clientID and returns the engine's prompt id.
func (c *Client) Submit(ctx context.Context, graph any, clientID string) (string, error) {
	body, err := json.Marshal(submitRequest{Prompt: graph, ClientID: clientID})
	if err != nil {
		return "", fmt.Errorf("comfy: encode prompt: %w", err)
	}
	endpoint := c.baseURL + "/prompt"
	c.logger.Info().Str("url", endpoint).Int("bytes", len(body)).Msg("comfy: queueing prompt")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("comfy: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	raw, status, err := c.do(req)
	if err != nil {
		return "", err
	}
	if status >= 300 {
		return "", fmt.Errorf("comfy: queue prompt status %d: %s", status, snippet(raw))
	}
	var decoded submitResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("comfy: decode prompt response: %w", err)
	}
	if decoded.PromptID == "" {
		return "", ErrEmptyPromptID
	}
	c.logger.Debug().Str("prompt_id", decoded.PromptID).Int("number", decoded.Number).Msg("comfy: prompt queued")
	return decoded.PromptID, nil
}

// History fetches the execution history of promptID.
func (c *Client) History(ctx context.Context, promptID string) (*History, error) {
	endpoint := c.baseURL + "/history/" + url.PathEscape(promptID)
	c.logger.Info().Str("url", endpoint).Msg("comfy: fetching history")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("comfy: build request: %w", err)
	}
	raw, status, err := c.do(req)
	if err != nil {
		return nil, err
	}
	if status >= 300 {
		return nil, fmt.Errorf("comfy: history status %d: %s", status, snippet(raw))
	}
	return ParseHistory(raw, promptID)
}

func (c *Client) do(req *http.Request) ([]byte, int, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("comfy: http request: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("comfy: read response: %w", err)
	}
	return raw, resp.StatusCode, nil
}

func snippet(raw []byte) string {
	s := strings.TrimSpace(string(raw))
	if len(s) > 512 {
		s = s[:512] + "..."
	}
	return s
}
