package dify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/englishprint/papergen/internal/config"
	"github.com/englishprint/papergen/internal/domain"
	"github.com/englishprint/papergen/internal/generation"
)

const (
	workflowPath     = "/workflows/run"
	responseMode     = "blocking"
	statusSucceeded  = "succeeded"
	defaultUser      = "papergen"
	maxErrorBodySize = 4096

	// defaultMaxResponseSize bounds the body read from a workflow run.
	defaultMaxResponseSize = 8 << 20
)

// ErrNilLogger is returned when NewClient is called without a logger.
var ErrNilLogger = errors.New("logger cannot be nil")

// Client calls a Dify workflow and decodes its output.
type Client struct {
	logger          *slog.Logger
	config          config.DifyConfig
	http            *http.Client
	maxResponseSize int64
}

var (
	_ generation.Generator     = (*Client)(nil)
	_ generation.ConfigChecker = (*Client)(nil)
)

// NewClient creates a Client. httpClient may be nil, in which case a client
// with cfg.TimeoutSeconds as its timeout is used.
func NewClient(cfg config.DifyConfig, logger *slog.Logger, httpClient *http.Client) (*Client, error) {
	if logger == nil {
		return nil, ErrNilLogger
	}
	if httpClient == nil {
		httpClient = &http.Client{}
		if cfg.TimeoutSeconds > 0 {
			httpClient.Timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
		}
	}
	if cfg.User == "" {
		cfg.User = defaultUser
	}
	return &Client{
		logger:          logger.With("component", "dify_client"),
		config:          cfg,
		http:            httpClient,
		maxResponseSize: defaultMaxResponseSize,
	}, nil
}

// CheckConfig implements generation.ConfigChecker.
func (c *Client) CheckConfig() error {
	if strings.TrimSpace(c.config.APIURL) == "" || strings.TrimSpace(c.config.APIToken) == "" {
		return fmt.Errorf("%w: Dify API URL and token must be configured", generation.ErrInvalidConfig)
	}
	return nil
}

type runRequest struct {
	Inputs       generation.Inputs `json:"inputs"`
	ResponseMode string            `json:"response_mode"`
	User         string            `json:"user"`
}

type workflowData struct {
	Status  string                     `json:"status"`
	Error   string                     `json:"error"`
	Outputs map[string]json.RawMessage `json:"outputs"`
}

type runResponse struct {
	Data *workflowData `json:"data"`
	workflowData
}

type errorResponse struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Generate implements generation.Generator.
func (c *Client) Generate(ctx context.Context, inputs generation.Inputs) (*domain.GeneratedContent, error) {
	if err := c.CheckConfig(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(inputs.Unit) == "" {
		return nil, generation.ErrEmptyInputs
	}

	body, err := json.Marshal(runRequest{Inputs: inputs, ResponseMode: responseMode, User: c.config.User})
	if err != nil {
		return nil, fmt.Errorf("failed to encode workflow request: %w", err)
	}

	url := strings.TrimRight(c.config.APIURL, "/") + workflowPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", generation.ErrInvalidConfig, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.APIToken)

	start := time.Now()
	c.logger.InfoContext(ctx, "running Dify workflow", "words_length", len(inputs.Words))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", generation.ErrTransport, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, c.maxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", generation.ErrTransport, err)
	}
	if int64(len(raw)) > c.maxResponseSize {
		c.logger.WarnContext(ctx, "Dify response too large", "status", resp.StatusCode, "limit", c.maxResponseSize)
		return nil, fmt.Errorf("%w: response body exceeds %d bytes", generation.ErrInvalidResponse, c.maxResponseSize)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.WarnContext(ctx, "Dify workflow request rejected", "status", resp.StatusCode)
		return nil, fmt.Errorf("%w: HTTP %d: %s", generation.ErrTransport, resp.StatusCode, errorMessage(raw))
	}

	data, err := decodeRun(raw)
	if err != nil {
		return nil, err
	}
	if data.Status != statusSucceeded {
		reason := data.Error
		if reason == "" {
			reason = "unknown error"
		}
		return nil, fmt.Errorf("%w: %s", generation.ErrWorkflowFailed, reason)
	}

	output, err := pickOutput(data.Outputs)
	if err != nil {
		return nil, err
	}

	c.logger.InfoContext(ctx, "Dify workflow finished", "duration", time.Since(start))
	return generation.DecodeContent(output)
}

func decodeRun(raw []byte) (*workflowData, error) {
	var r runResponse
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("%w: failed to parse workflow response: %v", generation.ErrInvalidResponse, err)
	}
	if r.Data != nil {
		return r.Data, nil
	}
	if r.Status == "" {
		var e errorResponse
		if json.Unmarshal(raw, &e) == nil && e.Message != "" {
			return nil, fmt.Errorf("%w: %s", generation.ErrWorkflowFailed, e.Message)
		}
		return nil, fmt.Errorf("%w: response has no workflow status", generation.ErrInvalidResponse)
	}
	return &r.workflowData, nil
}

// pickOutput returns the "output" variable, or the first output in key
// order when the workflow names it differently. String values are unquoted;
// object values are passed through as JSON.
func pickOutput(outputs map[string]json.RawMessage) (string, error) {
	if len(outputs) == 0 {
		return "", fmt.Errorf("%w: workflow returned no outputs", generation.ErrInvalidResponse)
	}
	value, ok := outputs["output"]
	if !ok {
		keys := make([]string, 0, len(outputs))
		for k := range outputs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		value = outputs[keys[0]]
	}

	var s string
	if err := json.Unmarshal(value, &s); err == nil {
		return s, nil
	}
	return string(value), nil
}

func errorMessage(raw []byte) string {
	var e errorResponse
	if json.Unmarshal(raw, &e) == nil && e.Message != "" {
		return e.Message
	}
	if len(raw) > maxErrorBodySize {
		raw = raw[:maxErrorBodySize]
	}
	if msg := strings.TrimSpace(string(raw)); msg != "" {
		return msg
	}
	return "request failed"
}
