package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/fenilmodi00/ipo-admin/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordedRequest is what the fake backend saw
type recordedRequest struct {
	Method        string
	Path          string
	Query         url.Values
	Authorization string
	ContentType   string
	Body          []byte
}

// fakeBackend routes "METHOD /path" to canned handlers and records every request
type fakeBackend struct {
	t        *testing.T
	server   *httptest.Server
	mutex    sync.Mutex
	routes   map[string]http.HandlerFunc
	requests []recordedRequest
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	fb := &fakeBackend{t: t, routes: make(map[string]http.HandlerFunc)}
	fb.server = httptest.NewServer(http.HandlerFunc(fb.serve))
	t.Cleanup(fb.server.Close)
	return fb
}

func (fb *fakeBackend) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	fb.mutex.Lock()
	fb.requests = append(fb.requests, recordedRequest{
		Method:        r.Method,
		Path:          r.URL.Path,
		Query:         r.URL.Query(),
		Authorization: r.Header.Get("Authorization"),
		ContentType:   r.Header.Get("Content-Type"),
		Body:          body,
	})
	handler, ok := fb.routes[r.Method+" "+r.URL.Path]
	fb.mutex.Unlock()

	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"success":false,"message":"no such route"}`))
		return
	}
	handler(w, r)
}

// on registers a handler for method and path
func (fb *fakeBackend) on(method, path string, handler http.HandlerFunc) {
	fb.mutex.Lock()
	defer fb.mutex.Unlock()
	fb.routes[method+" "+path] = handler
}

// reply registers a fixed JSON answer
func (fb *fakeBackend) reply(method, path string, status int, body string) {
	fb.on(method, path, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	})
}

func (fb *fakeBackend) recorded() []recordedRequest {
	fb.mutex.Lock()
	defer fb.mutex.Unlock()
	out := make([]recordedRequest, len(fb.requests))
	copy(out, fb.requests)
	return out
}

func (fb *fakeBackend) count(method, path string) int {
	n := 0
	for _, r := range fb.recorded() {
		if r.Method == method && r.Path == path {
			n++
		}
	}
	return n
}

func (fb *fakeBackend) client(token string) *BackendClient {
	client := NewBackendClient(shared.ServiceConfig{
		BaseURL:            fb.server.URL,
		APIToken:           token,
		HTTPRequestTimeout: 5 * time.Second,
		MaxRetryAttempts:   2,
	}, nil)
	client.SetRetryBackoff(time.Millisecond)
	return client
}

func TestEndpointRendersRoutes(t *testing.T) {
	client := NewBackendClient(shared.ServiceConfig{BaseURL: "http://backend:4000/"}, nil)

	tests := []struct {
		call   BackendCall
		method string
		url    string
	}{
		{BackendCall{Resource: ResourceMainboard, Operation: OpList, Query: url.Values{"limit": {"1000"}}}, "GET", "http://backend:4000/api/mainboard/mainboards?limit=1000"},
		{BackendCall{Resource: ResourceMainboard, Operation: OpGet, ID: "m1"}, "GET", "http://backend:4000/api/mainboard/edit/m1"},
		{BackendCall{Resource: ResourceMainboard, Operation: OpUpdate, ID: "m1"}, "PATCH", "http://backend:4000/api/mainboard/mainboard/m1"},
		{BackendCall{Resource: ResourceSME, Operation: OpUpdate, ID: "s1"}, "PATCH", "http://backend:4000/api/v1/sme-ipo/s1"},
		{BackendCall{Resource: ResourceListed, Operation: OpUpdate, ID: "l1"}, "PUT", "http://backend:4000/api/v1/listed-ipo/l1"},
		{BackendCall{Resource: ResourceRegistrars, Operation: OpUpdate, ID: "r1"}, "PUT", "http://backend:4000/api/registrars/registrars/r1"},
		{BackendCall{Resource: ResourceUsers, Operation: OpUpdatePAN, ID: "u1"}, "PUT", "http://backend:4000/api/users/u1/pan"},
		{BackendCall{Resource: ResourceScraper, Operation: OpSyncGMP}, "POST", "http://backend:4000/api/scraper/sync-gmp"},
	}
	for _, tt := range tests {
		route, endpoint, err := client.Endpoint(tt.call)
		require.NoError(t, err)
		assert.Equal(t, tt.method, route.Method, "%s %s", tt.call.Resource, tt.call.Operation)
		assert.Equal(t, tt.url, endpoint)
	}
}

func TestEndpointRejectsUnsupportedCalls(t *testing.T) {
	client := NewBackendClient(shared.ServiceConfig{BaseURL: "http://backend"}, nil)

	_, _, err := client.Endpoint(BackendCall{Resource: ResourceListed, Operation: OpCreate})
	var serviceErr *shared.ServiceError
	require.True(t, errors.As(err, &serviceErr))
	assert.Equal(t, "UNSUPPORTED_OPERATION", serviceErr.Code)

	_, _, err = client.Endpoint(BackendCall{Resource: ResourceSME, Operation: OpDelete})
	require.True(t, errors.As(err, &serviceErr))
	assert.Equal(t, "MISSING_ID", serviceErr.Code)
}

func TestDoForwardsCallerTokenAndFallsBack(t *testing.T) {
	fb := newFakeBackend(t)
	fb.reply("GET", "/api/registrars/registrars", 200, `[]`)
	client := fb.client("service-token")

	_, err := client.List(WithBearerToken(context.Background(), "Bearer user-token"), ResourceRegistrars, nil)
	require.NoError(t, err)
	_, err = client.List(context.Background(), ResourceRegistrars, nil)
	require.NoError(t, err)

	requests := fb.recorded()
	require.Len(t, requests, 2)
	assert.Equal(t, "Bearer user-token", requests[0].Authorization)
	assert.Equal(t, "Bearer service-token", requests[1].Authorization)
}

func TestDoRetriesReadsOnServerErrors(t *testing.T) {
	fb := newFakeBackend(t)
	var calls int
	fb.on("GET", "/api/v1/sme-ipos", func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"success":true,"data":[]}`))
	})

	data, err := fb.client("").List(context.Background(), ResourceSME, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true,"data":[]}`, string(data))
	assert.Equal(t, 2, fb.count("GET", "/api/v1/sme-ipos"))
}

func TestDoSendsWritesOnce(t *testing.T) {
	fb := newFakeBackend(t)
	fb.reply("POST", "/api/v1/sme-ipos", 503, `{"message":"database down"}`)

	body, err := EncodeJSON(map[string]string{"companyName": "Acme"})
	require.NoError(t, err)
	_, err = fb.client("").Create(context.Background(), ResourceSME, body)

	var serviceErr *shared.ServiceError
	require.True(t, errors.As(err, &serviceErr))
	assert.Equal(t, "database down", serviceErr.Message)
	assert.Equal(t, 503, serviceErr.StatusCode)
	assert.True(t, serviceErr.Retryable)
	assert.Equal(t, 1, fb.count("POST", "/api/v1/sme-ipos"))
}

func TestDoMapsBackendStatus(t *testing.T) {
	fb := newFakeBackend(t)
	fb.reply("GET", "/api/users/missing", 404, `{"success":false,"error":{"message":"user not found"}}`)
	fb.reply("DELETE", "/api/users/u1", 401, `{"error":"token expired"}`)
	fb.reply("PUT", "/api/users/u2", 400, `not json`)
	client := fb.client("")

	_, err := client.Get(context.Background(), ResourceUsers, "missing")
	var serviceErr *shared.ServiceError
	require.True(t, errors.As(err, &serviceErr))
	assert.Equal(t, shared.ErrorCategoryNotFound, serviceErr.Category)
	assert.Equal(t, "user not found", serviceErr.Message)
	assert.False(t, serviceErr.Retryable)

	err = client.Delete(context.Background(), ResourceUsers, "u1")
	require.True(t, errors.As(err, &serviceErr))
	assert.Equal(t, shared.ErrorCategoryAuthentication, serviceErr.Category)
	assert.Equal(t, "token expired", serviceErr.Message)

	body, _ := EncodeJSON(map[string]string{})
	_, err = client.Update(context.Background(), ResourceUsers, "u2", body)
	require.True(t, errors.As(err, &serviceErr))
	assert.Equal(t, shared.ErrorCategoryValidation, serviceErr.Category)
	assert.Equal(t, "Bad Request", serviceErr.Message)
}

func TestDoTreatsSuccessFalseAsFailure(t *testing.T) {
	fb := newFakeBackend(t)
	fb.reply("POST", "/api/scraper/sync", 200, `{"success":false,"message":"scraper busy"}`)

	_, err := fb.client("").Do(context.Background(), BackendCall{Resource: ResourceScraper, Operation: OpSync})
	var serviceErr *shared.ServiceError
	require.True(t, errors.As(err, &serviceErr))
	assert.Equal(t, "BACKEND_REJECTED", serviceErr.Code)
	assert.Equal(t, "scraper busy", serviceErr.Message)
}

func TestDoReportsUnreachableBackend(t *testing.T) {
	fb := newFakeBackend(t)
	client := fb.client("")
	fb.server.Close()

	_, err := client.List(context.Background(), ResourceListed, nil)
	var serviceErr *shared.ServiceError
	require.True(t, errors.As(err, &serviceErr))
	assert.Equal(t, shared.ErrorCategoryNetwork, serviceErr.Category)
	assert.True(t, serviceErr.Retryable)
}

func TestBulkDeleteSendsIDs(t *testing.T) {
	fb := newFakeBackend(t)
	fb.reply("POST", "/api/mainboard/mainboards/bulk-delete", 200, `{"success":true}`)

	_, err := fb.client("").BulkDelete(context.Background(), ResourceMainboard, []string{"a", "b"})
	require.NoError(t, err)

	requests := fb.recorded()
	require.Len(t, requests, 1)
	var body map[string][]string
	require.NoError(t, json.Unmarshal(requests[0].Body, &body))
	assert.Equal(t, []string{"a", "b"}, body["ids"])
	assert.True(t, SupportsBulkDelete(ResourceMainboard))
	assert.False(t, SupportsBulkDelete(ResourceSME))
}
