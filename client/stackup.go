// Package stackup is the client SDK for a stackup server. It wraps the HTTP
// API: create a stack, watch its lifecycle events, inspect it, tear it down.
package stackup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Client talks to a running stackup server.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for the server at baseURL
// (e.g. "http://127.0.0.1:7667").
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{},
	}
}

// CreateStack submits a stack spec and starts orchestration. The call
// returns as soon as the server has validated the spec; progress arrives
// via Events and the final outcome via GetStack.
func (c *Client) CreateStack(ctx context.Context, specJSON []byte) (*CreateResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/stacks", bytes.NewReader(specJSON))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var out CreateResponse
	if err := c.do(req, http.StatusCreated, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetStack returns the orchestration outcome (nil while Up is still
// running) and the runtime's live view of each service.
func (c *Client) GetStack(ctx context.Context, name string) (*StackView, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/stacks/"+name, nil)
	if err != nil {
		return nil, err
	}

	var out StackView
	if err := c.do(req, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteStack cancels any in-flight Up and tears the stack down in reverse
// dependency order. The returned result records the stop outcome per service.
func (c *Client) DeleteStack(ctx context.Context, name string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		c.baseURL+"/stacks/"+name, nil)
	if err != nil {
		return nil, err
	}

	var out Result
	if err := c.do(req, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// do executes the request and decodes the response into out, translating
// non-2xx responses into *APIError.
func (c *Client) do(req *http.Request, wantStatus int, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode != wantStatus {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var wire struct {
			Error string `json:"error"`
			Kind  string `json:"kind"`
		}
		if json.Unmarshal(body, &wire) == nil && wire.Error != "" {
			apiErr.Message = wire.Error
			apiErr.Kind = wire.Kind
		} else {
			apiErr.Message = string(body)
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	return json.Unmarshal(body, out)
}

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Kind       string // graph error kind, when the spec was rejected
	Message    string
}

func (e *APIError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("stackup: %s (%s)", e.Message, e.Kind)
	}
	return fmt.Sprintf("stackup: %s (HTTP %d)", e.Message, e.StatusCode)
}
