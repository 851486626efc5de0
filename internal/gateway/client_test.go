package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/menuvia/menuvia/internal/config"
	"go.uber.org/zap"
)

func newTestClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		keyID:      "key_id_test",
		keySecret:  "key_secret_test",
		httpClient: &http.Client{Timeout: 5 * time.Second},
		log:        zap.NewNop(),
	}
}

func TestCreateSubscriptionSendsBasicAuth(t *testing.T) {
	var gotUser, gotPass string
	var gotBody CreateSubscriptionRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, gotPass, _ = r.BasicAuth()
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		_ = json.NewEncoder(w).Encode(Subscription{ID: "sub_1", PlanID: gotBody.PlanID, Status: "created"})
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	sub, err := client.CreateSubscription(context.Background(), CreateSubscriptionRequest{
		PlanID:     "plan_1",
		TotalCount: 120,
		Notes:      map[string]string{"user_id": "42"},
	})
	if err != nil {
		t.Fatalf("create subscription: %v", err)
	}
	if sub.ID != "sub_1" {
		t.Fatalf("expected sub_1, got %s", sub.ID)
	}
	if gotUser != "key_id_test" || gotPass != "key_secret_test" {
		t.Fatalf("expected basic auth credentials, got %s:%s", gotUser, gotPass)
	}
	if gotBody.TotalCount != 120 {
		t.Fatalf("expected total_count 120, got %d", gotBody.TotalCount)
	}
}

func TestGatewayErrorSurfacedVerbatim(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR","description":"plan id missing"}}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.CreateSubscription(context.Background(), CreateSubscriptionRequest{})
	if err == nil {
		t.Fatalf("expected error")
	}
	gwErr, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *Error, got %T", err)
	}
	if gwErr.StatusCode != http.StatusBadRequest || gwErr.Code != "BAD_REQUEST_ERROR" {
		t.Fatalf("unexpected error payload: %+v", gwErr)
	}
	if gwErr.Description != "plan id missing" {
		t.Fatalf("expected verbatim description, got %q", gwErr.Description)
	}
}

func TestNotConfigured(t *testing.T) {
	client := &Client{httpClient: http.DefaultClient, log: zap.NewNop()}
	if _, err := client.ListPlans(context.Background()); err != ErrNotConfigured {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestNewClientReadsGatewayConfig(t *testing.T) {
	cfg := config.Config{Gateway: config.GatewayConfig{
		BaseURL:   "https://gateway.example/v1",
		KeyID:     "key_abc",
		KeySecret: "secret_abc",
	}}
	client := NewClient(cfg, zap.NewNop())
	if !client.Configured() {
		t.Fatalf("expected configured client")
	}
	if client.KeyID() != "key_abc" {
		t.Fatalf("expected key id passthrough, got %s", client.KeyID())
	}
}
