package connector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/payorch/payorch-backend-sqs/internal/core"
)

// stubAdapter is a minimal status-inquiry adapter with a JSON wire format.
type stubAdapter struct {
	baseURL string
}

func (a *stubAdapter) BuildStatusInquiry(attempt *core.PaymentAttempt) (*ProviderRequest, error) {
	if attempt.ConnectorTransactionID == nil {
		return &ProviderRequest{
			Method: http.MethodGet,
			URL:    a.baseURL + "/payments/by-reference/" + attempt.AttemptID,
		}, nil
	}
	return &ProviderRequest{
		Method: http.MethodGet,
		URL:    a.baseURL + "/payments/" + *attempt.ConnectorTransactionID,
	}, nil
}

func (a *stubAdapter) ParseStatusResponse(resp *ProviderResponse) (core.AttemptStatus, error) {
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("provider returned %d", resp.StatusCode)
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return "", err
	}
	switch body.Status {
	case "succeeded":
		return core.AttemptCharged, nil
	case "processing":
		return core.AttemptPending, nil
	default:
		return core.AttemptFailure, nil
	}
}

func TestClient_SyncPaymentStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/payments/txn_1" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"status": "succeeded"}`)
	}))
	defer srv.Close()

	registry := NewRegistry()
	registry.Register(core.ConnectorStripe, &stubAdapter{baseURL: srv.URL})
	client := NewClient(registry, NewHTTPTransport(srv.Client()))

	txn := "txn_1"
	attempt := &core.PaymentAttempt{
		AttemptID:              "att_1",
		Connector:              core.ConnectorStripe,
		ConnectorTransactionID: &txn,
	}
	status, err := client.SyncPaymentStatus(context.Background(), attempt)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if status != core.AttemptCharged {
		t.Errorf("status = %q, want charged", status)
	}
}

func TestClient_UnregisteredConnector(t *testing.T) {
	client := NewClient(NewRegistry(), NewHTTPTransport(nil))

	attempt := &core.PaymentAttempt{AttemptID: "att_1", Connector: core.ConnectorAdyen}
	_, err := client.SyncPaymentStatus(context.Background(), attempt)
	if err == nil {
		t.Fatal("expected error for unregistered connector")
	}
}

func TestClient_ParseFailureNamed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	registry := NewRegistry()
	registry.Register(core.ConnectorStripe, &stubAdapter{baseURL: srv.URL})
	client := NewClient(registry, NewHTTPTransport(srv.Client()))

	txn := "txn_1"
	attempt := &core.PaymentAttempt{
		AttemptID:              "att_1",
		Connector:              core.ConnectorStripe,
		ConnectorTransactionID: &txn,
	}
	_, err := client.SyncPaymentStatus(context.Background(), attempt)
	if err == nil {
		t.Fatal("expected parse error")
	}
}

// failingTransport always errors, exercising the send path.
type failingTransport struct{}

func (failingTransport) Send(context.Context, *ProviderRequest) (*ProviderResponse, error) {
	return nil, errors.New("connection refused")
}

func TestClient_TransportFailure(t *testing.T) {
	registry := NewRegistry()
	registry.Register(core.ConnectorStripe, &stubAdapter{baseURL: "http://unused"})
	client := NewClient(registry, failingTransport{})

	attempt := &core.PaymentAttempt{AttemptID: "att_1", Connector: core.ConnectorStripe}
	_, err := client.SyncPaymentStatus(context.Background(), attempt)
	if err == nil {
		t.Fatal("expected transport error")
	}
}
