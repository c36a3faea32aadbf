// Package aiclient talks to the AI backend's JSON endpoints.
package aiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/AaronLay10/ChallengeWizard/internal/version"
)

// DefaultBaseURL is used when no base URL is configured.
const DefaultBaseURL = "http://localhost:8000"

// ErrEmptyEndpoint is returned when Recommend is called without an endpoint.
var ErrEmptyEndpoint = errors.New("empty recommendation endpoint")

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API error from %s (status %d): %s", e.Endpoint, e.StatusCode, e.Body)
}

// Client is the AI backend client.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Token      string
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout replaces the default 30s request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.HTTPClient.Timeout = d }
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.HTTPClient = h }
}

// WithToken sends the token as a bearer credential.
func WithToken(token string) Option {
	return func(c *Client) { c.Token = token }
}

// New creates a client for baseURL.
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Recommend posts payload to /api/{endpoint} and returns the raw response.
func (c *Client) Recommend(ctx context.Context, endpoint string, payload any) (json.RawMessage, error) {
	if endpoint == "" {
		return nil, ErrEmptyEndpoint
	}
	var raw json.RawMessage
	if err := c.post(ctx, endpoint, payload, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

type validateRequest struct {
	ChallengeData any `json:"challenge_data"`
}

type validateResponse struct {
	Warnings []string `json:"warnings"`
}

// Validate submits the whole challenge for review and returns its warnings.
// A missing warnings field is an empty list.
func (c *Client) Validate(ctx context.Context, data any) ([]string, error) {
	var resp validateResponse
	if err := c.post(ctx, "validate-challenge", validateRequest{ChallengeData: data}, &resp); err != nil {
		return nil, err
	}
	if resp.Warnings == nil {
		return []string{}, nil
	}
	return resp.Warnings, nil
}

type impactRequest struct {
	ProblemStatement string `json:"problem_statement"`
	ChallengeType    string `json:"challenge_type"`
}

type impactResponse struct {
	ImpactPreview string `json:"impact_preview"`
}

// ImpactPreview asks how a challenge type would play out for the problem.
func (c *Client) ImpactPreview(ctx context.Context, problem, typeID string) (string, error) {
	var resp impactResponse
	if err := c.post(ctx, "impact-preview", impactRequest{ProblemStatement: problem, ChallengeType: typeID}, &resp); err != nil {
		return "", err
	}
	return resp.ImpactPreview, nil
}

func (c *Client) post(ctx context.Context, endpoint string, body, result any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/"+endpoint, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "challenge-wizard/"+version.Version)
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: request failed: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("%s: failed to decode response: %w", endpoint, err)
	}
	return nil
}
