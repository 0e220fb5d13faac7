package erp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/erpsync/internal/config"
	"github.com/Additional-Code/erpsync/internal/entity"
)

type memoryLogs struct {
	mu      sync.Mutex
	entries []*entity.SyncLog
}

func (m *memoryLogs) Add(_ context.Context, entry *entity.SyncLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

func (m *memoryLogs) last() *entity.SyncLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.entries) == 0 {
		return nil
	}
	return m.entries[len(m.entries)-1]
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

// erpServer is a scripted ERP backend counting logins.
type erpServer struct {
	*httptest.Server
	logins atomic.Int32
	routes map[string]http.HandlerFunc
}

func newERPServer(t *testing.T, routes map[string]http.HandlerFunc) *erpServer {
	t.Helper()
	s := &erpServer{routes: routes}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + strings.TrimPrefix(r.URL.Path, "/api")
		if key == "POST /Users/Login" {
			s.logins.Add(1)
		}
		if h, ok := s.routes[key]; ok {
			h(w, r)
			return
		}
		if key == "POST /Users/Login" {
			writeJSON(w, http.StatusOK, map[string]any{"token": "tok-1"})
			return
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(s.Close)
	return s
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T, baseURL string, logs LogSink, opts ...Option) *Client {
	t.Helper()
	cfg := config.ERP{
		BaseURL:  baseURL,
		Username: "admin",
		Password: "secret",
		Timeout:  5 * time.Second,
		TokenTTL: time.Hour,
	}
	return NewClient(cfg, logs, nil, opts...)
}

func TestAuthenticate_CachesTokenUntilExpiry(t *testing.T) {
	srv := newERPServer(t, map[string]http.HandlerFunc{
		"GET /Currencies": func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
			writeJSON(w, http.StatusOK, []any{})
		},
	})
	clock := &fakeClock{now: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
	client := newTestClient(t, srv.URL+"/api", nil, WithClock(clock.Now))
	ctx := context.Background()

	_, err := client.ListCurrencies(ctx)
	require.NoError(t, err)
	clock.Advance(59 * time.Minute)
	_, err = client.ListCurrencies(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, srv.logins.Load())

	clock.Advance(2 * time.Minute)
	_, err = client.ListCurrencies(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, srv.logins.Load())
}

func TestAuthenticate_ConcurrentCallersShareLogin(t *testing.T) {
	srv := newERPServer(t, nil)
	client := newTestClient(t, srv.URL+"/api", nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, client.Authenticate(context.Background()))
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, srv.logins.Load())
}

func TestAuthenticate_SendsCredentials(t *testing.T) {
	srv := newERPServer(t, map[string]http.HandlerFunc{
		"POST /Users/Login": func(w http.ResponseWriter, r *http.Request) {
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "admin", body["username"])
			assert.Equal(t, "secret", body["password"])
			assert.Empty(t, r.Header.Get("Authorization"))
			writeJSON(w, http.StatusOK, map[string]any{"access_token": "snake"})
		},
	})
	client := newTestClient(t, srv.URL+"/api", nil)

	require.NoError(t, client.Authenticate(context.Background()))
	assert.Equal(t, "snake", client.token)
}

func TestAuthenticate_Failure(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "error status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "bad credentials"})
			},
		},
		{
			name: "no token field",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, map[string]any{"user": "admin"})
			},
		},
		{
			name: "empty body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newERPServer(t, map[string]http.HandlerFunc{"POST /Users/Login": tt.handler})
			logs := &memoryLogs{}
			client := newTestClient(t, srv.URL+"/api", logs)

			err := client.Authenticate(context.Background())
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrAuthFailed)
			require.NotNil(t, logs.last())
			assert.Equal(t, entity.LogError, logs.last().Kind)
			assert.Equal(t, "Failed to authenticate with ERP API", logs.last().Message)
		})
	}
}

func TestRequest_FailsClosedWithoutToken(t *testing.T) {
	var hits atomic.Int32
	srv := newERPServer(t, map[string]http.HandlerFunc{
		"POST /Users/Login": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		},
		"GET /Items": func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			writeJSON(w, http.StatusOK, []any{})
		},
	})
	client := newTestClient(t, srv.URL+"/api", nil)

	_, err := client.ListItems(context.Background())
	assert.ErrorIs(t, err, ErrAuthFailed)
	assert.Zero(t, hits.Load())
}

func TestRequest_Outcomes(t *testing.T) {
	tests := []struct {
		name       string
		handler    http.HandlerFunc
		wantKind   ResponseKind
		wantErr    error
		wantLogMsg string
	}{
		{
			name:     "empty success",
			handler:  func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) },
			wantKind: KindEmpty,
		},
		{
			name:       "empty failure",
			handler:    func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusBadGateway) },
			wantErr:    ErrStatus,
			wantLogMsg: "API request returned error status with empty body: 502",
		},
		{
			name: "raw success",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, "OK done")
			},
			wantKind: KindRaw,
		},
		{
			name: "raw failure",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = io.WriteString(w, strings.Repeat("x", 800))
			},
			wantErr:    ErrStatus,
			wantLogMsg: "API request returned error status and invalid JSON: 500",
		},
		{
			name: "json success",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusCreated, map[string]any{"id": 12})
			},
			wantKind: KindJSON,
		},
		{
			name: "json failure",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusBadRequest, map[string]any{"message": "invalid"})
			},
			wantErr:    ErrStatus,
			wantLogMsg: "API request returned error status: 400",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newERPServer(t, map[string]http.HandlerFunc{"POST /Things": tt.handler})
			logs := &memoryLogs{}
			client := newTestClient(t, srv.URL+"/api/", logs)

			resp, err := client.Request(context.Background(), http.MethodPost, "/Things", map[string]any{"a": 1}, true)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				require.NotNil(t, logs.last())
				assert.Equal(t, tt.wantLogMsg, logs.last().Message)
				assert.Equal(t, srv.URL+"/api/Things", logs.last().Payload["url"])
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, resp.Kind)
		})
	}
}

func TestRequest_TruncatesLoggedBody(t *testing.T) {
	srv := newERPServer(t, map[string]http.HandlerFunc{
		"GET /Units": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = io.WriteString(w, "<html>"+strings.Repeat("y", 900))
		},
	})
	logs := &memoryLogs{}
	client := newTestClient(t, srv.URL+"/api", logs)

	_, err := client.ListUnits(context.Background())
	require.Error(t, err)

	body, ok := logs.last().Payload["body"].(string)
	require.True(t, ok)
	assert.Len(t, body, 500)
	assert.NotEmpty(t, logs.last().Payload["json_error"])
}

func TestRequest_TransportError(t *testing.T) {
	srv := newERPServer(t, nil)
	base := srv.URL + "/api"
	srv.Close()

	logs := &memoryLogs{}
	client := newTestClient(t, base, logs)

	_, err := client.Request(context.Background(), http.MethodGet, "Items", nil, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransport)
	require.NotNil(t, logs.last())
	assert.True(t, strings.HasPrefix(logs.last().Message, "API request failed: "))
	assert.Equal(t, http.MethodGet, logs.last().Payload["method"])
}

func TestAuthenticate_TransportErrorRedactsPassword(t *testing.T) {
	srv := newERPServer(t, nil)
	base := srv.URL + "/api"
	srv.Close()

	logs := &memoryLogs{}
	client := newTestClient(t, base, logs)

	require.Error(t, client.Authenticate(context.Background()))
	require.NotEmpty(t, logs.entries)
	for _, entry := range logs.entries {
		raw, err := json.Marshal(entry.Payload)
		require.NoError(t, err)
		assert.NotContains(t, string(raw), "secret", entry.Message)
	}
	data, ok := logs.entries[0].Payload["data"].(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "admin", data["username"])
	assert.Equal(t, redactedValue, data["password"])
}

func TestRedact(t *testing.T) {
	in := map[string]any{"Password": "p", "access_token": "t", "name": "n"}
	out := redact(in).(map[string]any)
	assert.Equal(t, redactedValue, out["Password"])
	assert.Equal(t, redactedValue, out["access_token"])
	assert.Equal(t, "n", out["name"])
	assert.Equal(t, "p", in["Password"])

	customer := Customer{FirstName: "Sara"}
	assert.Equal(t, customer, redact(customer))
}

func TestRequest_BodyOnlyForMutatingMethods(t *testing.T) {
	srv := newERPServer(t, map[string]http.HandlerFunc{
		"GET /Stocks": func(w http.ResponseWriter, r *http.Request) {
			raw, _ := io.ReadAll(r.Body)
			assert.Empty(t, raw)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			writeJSON(w, http.StatusOK, []any{map[string]any{"id": 1}})
		},
	})
	client := newTestClient(t, srv.URL+"/api", nil)

	resp, err := client.Request(context.Background(), http.MethodGet, "/Stocks", map[string]any{"ignored": true}, true)
	require.NoError(t, err)
	assert.Len(t, resp.List(), 1)
}

func TestClientURL(t *testing.T) {
	tests := []struct {
		base string
		path string
		want string
	}{
		{base: "http://erp/api", path: "/Items", want: "http://erp/api/Items"},
		{base: "http://erp/api/", path: "Items", want: "http://erp/api/Items"},
		{base: "http://erp/api//", path: "//Items", want: "http://erp/api/Items"},
	}
	for _, tt := range tests {
		client := NewClient(config.ERP{BaseURL: tt.base}, nil, nil)
		assert.Equal(t, tt.want, client.url(tt.path))
	}
}

func TestTypedOperations(t *testing.T) {
	srv := newERPServer(t, map[string]http.HandlerFunc{
		"POST /Customers": func(w http.ResponseWriter, r *http.Request) {
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "Sara", body["firstName"])
			assert.NotContains(t, body, "companyName")
			writeJSON(w, http.StatusOK, map[string]any{"id": 41})
		},
		"POST /Orders": func(w http.ResponseWriter, r *http.Request) {
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Contains(t, body, "saleTypeID")
			assert.Nil(t, body["saleTypeID"])
			assert.NotContains(t, body, "shippingCost")
			writeJSON(w, http.StatusOK, map[string]any{"message": "customer is blocked"})
		},
		"POST /Invoices": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"id": "88"})
		},
		"DELETE /Orders/9": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		},
		"GET /SaleTypes": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, []any{map[string]any{"id": 3}, "junk"})
		},
	})
	client := newTestClient(t, srv.URL+"/api", nil)
	ctx := context.Background()

	id, err := client.CreateCustomer(ctx, Customer{FirstName: "Sara", LastName: "Sara"})
	require.NoError(t, err)
	assert.EqualValues(t, 41, id)

	_, err = client.CreateOrder(ctx, Order{CustomerID: 41, Date: "2026-01-02"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnexpectedResponse)
	assert.Equal(t, "customer is blocked", Reason(err))

	invoiceID, err := client.CreateInvoice(ctx, Invoice{OrderID: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 88, invoiceID)

	require.NoError(t, client.DeleteOrder(ctx, 9))

	saleTypes, err := client.ListSaleTypes(ctx)
	require.NoError(t, err)
	require.Len(t, saleTypes, 1)
}

func TestPing(t *testing.T) {
	srv := newERPServer(t, map[string]http.HandlerFunc{
		"GET /Currencies": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, []any{})
		},
	})
	client := newTestClient(t, srv.URL+"/api", nil)
	assert.NoError(t, client.Ping(context.Background()))

	down := newERPServer(t, map[string]http.HandlerFunc{
		"POST /Users/Login": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusForbidden, map[string]any{"error": "locked"})
		},
	})
	client = newTestClient(t, down.URL+"/api", nil)
	err := client.Ping(context.Background())
	assert.True(t, errors.Is(err, ErrAuthFailed))
	assert.True(t, IsRemoteFailure(err))
}
