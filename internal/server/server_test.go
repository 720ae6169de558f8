package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/splitledger/internal/config"
	"github.com/mmynk/splitledger/internal/ledger"
	"github.com/mmynk/splitledger/internal/service"
	"github.com/mmynk/splitledger/internal/storage/memory"
	"github.com/mmynk/splitledger/pkg/api"
	"github.com/mmynk/splitledger/pkg/api/apiconnect"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func setupRouter(t *testing.T, health map[string]Pinger) *httptest.Server {
	t.Helper()
	store := memory.New()
	t.Cleanup(func() { store.Close() })

	srv := httptest.NewServer(NewRouter(RouterDependencies{
		Ledger: service.NewLedgerService(ledger.New(store)),
		Health: health,
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHealthz(t *testing.T) {
	tests := []struct {
		name       string
		health     map[string]Pinger
		wantStatus int
		wantBody   string
	}{
		{"no dependencies", nil, http.StatusOK, "ok"},
		{"healthy store", map[string]Pinger{"store": pingerFunc(func(context.Context) error { return nil })}, http.StatusOK, "ok"},
		{"redis down", map[string]Pinger{
			"store": pingerFunc(func(context.Context) error { return nil }),
			"redis": pingerFunc(func(context.Context) error { return errors.New("connection refused") }),
		}, http.StatusServiceUnavailable, "degraded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := setupRouter(t, tt.health)

			resp, err := http.Get(srv.URL + "/healthz")
			if err != nil {
				t.Fatalf("GET /healthz failed: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, resp.StatusCode)
			}
			var body map[string]any
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode body: %v", err)
			}
			if body["status"] != tt.wantBody {
				t.Errorf("expected status %q, got %v", tt.wantBody, body)
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := setupRouter(t, nil)

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "go_goroutines") {
		t.Errorf("unexpected metrics response %d", resp.StatusCode)
	}
}

func TestConnectRoutes(t *testing.T) {
	srv := setupRouter(t, nil)
	client := apiconnect.NewLedgerServiceClient(http.DefaultClient, srv.URL)

	resp, err := client.GetGroupPositions(context.Background(), connect.NewRequest(&api.GetGroupPositionsRequest{
		GroupID:  "trip",
		Currency: "EUR",
	}))
	if err != nil {
		t.Fatalf("GetGroupPositions failed: %v", err)
	}
	if resp.Msg.Currency != "EUR" || len(resp.Msg.Positions) != 0 {
		t.Errorf("unexpected response %+v", resp.Msg)
	}

	feed, err := client.ListActivity(context.Background(), connect.NewRequest(&api.ListActivityRequest{
		GroupID:  "trip",
		Currency: "EUR",
	}))
	if err != nil {
		t.Fatalf("ListActivity failed: %v", err)
	}
	if len(feed.Msg.Activities) != 0 {
		t.Errorf("unexpected activity %+v", feed.Msg.Activities)
	}

	notFound, err := http.Post(srv.URL+"/splitledger.v1.LedgerService/DropTables", "application/json", strings.NewReader("{}"))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	notFound.Body.Close()
	if notFound.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for unknown procedure, got %d", notFound.StatusCode)
	}
}

func TestCORSPreflight(t *testing.T) {
	srv := setupRouter(t, nil)

	req, err := http.NewRequest(http.MethodOptions, srv.URL+apiconnect.LedgerServiceGetBalanceProcedure, nil)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("preflight failed: %v", err)
	}
	resp.Body.Close()

	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("expected wildcard origin, got %q", got)
	}
}

func TestServerStartShutdown(t *testing.T) {
	s := New(config.HTTPConfig{Host: "127.0.0.1", Port: 0, ReadTimeout: time.Second}, http.NotFoundHandler())

	errCh := make(chan error, 1)
	go func() { errCh <- s.Start() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Start returned %v after shutdown", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after Shutdown")
	}
}
