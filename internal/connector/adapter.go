// Package connector defines the adapter boundary between the orchestration
// core and provider-specific integrations. The core depends only on the
// status-inquiry capability pair; each provider's wire format lives entirely
// inside its adapter.
package connector

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/payorch/payorch-backend-sqs/internal/core"
)

// ProviderRequest is a provider-bound request built by an adapter.
type ProviderRequest struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
}

// ProviderResponse is the raw provider reply handed back to the adapter for
// parsing.
type ProviderResponse struct {
	StatusCode int
	Body       []byte
}

// StatusInquirer is the capability pair the sync workflow depends on: build a
// provider-specific status inquiry and parse its reply into a canonical
// attempt status.
type StatusInquirer interface {
	BuildStatusInquiry(attempt *core.PaymentAttempt) (*ProviderRequest, error)
	ParseStatusResponse(resp *ProviderResponse) (core.AttemptStatus, error)
}

// Transport sends a built request to the provider.
type Transport interface {
	Send(ctx context.Context, req *ProviderRequest) (*ProviderResponse, error)
}

// Registry maps connector names to their adapters.
type Registry struct {
	mu        sync.RWMutex
	inquirers map[core.ConnectorName]StatusInquirer
}

// NewRegistry creates an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{
		inquirers: make(map[core.ConnectorName]StatusInquirer),
	}
}

// Register installs an adapter for a connector. Later registrations replace
// earlier ones.
func (r *Registry) Register(name core.ConnectorName, inquirer StatusInquirer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inquirers[name] = inquirer
}

// StatusInquirer returns the adapter for a connector.
func (r *Registry) StatusInquirer(name core.ConnectorName) (StatusInquirer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inquirer, ok := r.inquirers[name]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for connector %q", name)
	}
	return inquirer, nil
}

// Client drives a status inquiry end to end: build, send, parse.
type Client struct {
	registry  *Registry
	transport Transport
}

// NewClient creates a client over a registry and transport.
func NewClient(registry *Registry, transport Transport) *Client {
	return &Client{registry: registry, transport: transport}
}

// SyncPaymentStatus queries the attempt's connector for its current status.
func (c *Client) SyncPaymentStatus(ctx context.Context, attempt *core.PaymentAttempt) (core.AttemptStatus, error) {
	inquirer, err := c.registry.StatusInquirer(attempt.Connector)
	if err != nil {
		return "", err
	}

	req, err := inquirer.BuildStatusInquiry(attempt)
	if err != nil {
		return "", fmt.Errorf("build status inquiry for %s: %w", attempt.Connector, err)
	}

	resp, err := c.transport.Send(ctx, req)
	if err != nil {
		return "", fmt.Errorf("send status inquiry to %s: %w", attempt.Connector, err)
	}

	status, err := inquirer.ParseStatusResponse(resp)
	if err != nil {
		return "", fmt.Errorf("parse status response from %s: %w", attempt.Connector, err)
	}
	return status, nil
}

// HTTPTransport sends provider requests over plain HTTP.
type HTTPTransport struct {
	client *http.Client
}

// NewHTTPTransport creates a transport using the given client, or
// http.DefaultClient when nil.
func NewHTTPTransport(client *http.Client) *HTTPTransport {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPTransport{client: client}
}

// Send performs the HTTP exchange and returns the raw reply.
func (t *HTTPTransport) Send(ctx context.Context, req *ProviderRequest) (*ProviderResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return nil, err
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return &ProviderResponse{StatusCode: resp.StatusCode, Body: body}, nil
}
