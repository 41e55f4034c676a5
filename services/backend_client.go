package services

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

	"github.com/fenilmodi00/ipo-admin/models"
	"github.com/fenilmodi00/ipo-admin/shared"
	"github.com/sirupsen/logrus"
)

// Resource names a backend collection
type Resource string

const (
	ResourceMainboard  Resource = "mainboard"
	ResourceSME        Resource = "sme"
	ResourceListed     Resource = "listed"
	ResourceRegistrars Resource = "registrars"
	ResourceUsers      Resource = "users"
	ResourceScraper    Resource = "scraper"
)

// Operation names one call on a resource
type Operation string

const (
	OpList       Operation = "list"
	OpGet        Operation = "get"
	OpCreate     Operation = "create"
	OpUpdate     Operation = "update"
	OpDelete     Operation = "delete"
	OpBulkDelete Operation = "bulk_delete"
	OpCustomers  Operation = "customers"
	OpUpdatePAN  Operation = "update_pan"
	OpPreview    Operation = "preview"
	OpSync       Operation = "sync"
	OpSyncGMP    Operation = "sync_gmp"
)

// Route is a backend endpoint relative to {base}/api/. {id} is replaced by the record id.
type Route struct {
	Method string
	Path   string
}

// backendRoutes mirrors the backend as deployed, verb inconsistencies included.
// SME and listed records have no single-record read; they are found in their list.
var backendRoutes = map[Resource]map[Operation]Route{
	ResourceMainboard: {
		OpList:       {http.MethodGet, "mainboard/mainboards"},
		OpGet:        {http.MethodGet, "mainboard/edit/{id}"},
		OpCreate:     {http.MethodPost, "mainboard/mainboards"},
		OpUpdate:     {http.MethodPatch, "mainboard/mainboard/{id}"},
		OpDelete:     {http.MethodDelete, "mainboard/mainboard/{id}"},
		OpBulkDelete: {http.MethodPost, "mainboard/mainboards/bulk-delete"},
	},
	ResourceSME: {
		OpList:   {http.MethodGet, "v1/sme-ipos"},
		OpCreate: {http.MethodPost, "v1/sme-ipos"},
		OpUpdate: {http.MethodPatch, "v1/sme-ipo/{id}"},
		OpDelete: {http.MethodDelete, "v1/sme-ipo/{id}"},
	},
	ResourceListed: {
		OpList:   {http.MethodGet, "v1/listed-ipos"},
		OpUpdate: {http.MethodPut, "v1/listed-ipo/{id}"},
		OpDelete: {http.MethodDelete, "v1/listed-ipo/{id}"},
	},
	ResourceRegistrars: {
		OpList:   {http.MethodGet, "registrars/registrars"},
		OpCreate: {http.MethodPost, "registrars/registrars"},
		OpUpdate: {http.MethodPut, "registrars/registrars/{id}"},
		OpDelete: {http.MethodDelete, "registrars/registrars/{id}"},
	},
	ResourceUsers: {
		OpList:      {http.MethodGet, "users"},
		OpCustomers: {http.MethodGet, "users/customers"},
		OpGet:       {http.MethodGet, "users/{id}"},
		OpUpdate:    {http.MethodPut, "users/{id}"},
		OpUpdatePAN: {http.MethodPut, "users/{id}/pan"},
		OpDelete:    {http.MethodDelete, "users/{id}"},
	},
	ResourceScraper: {
		OpPreview: {http.MethodGet, "scraper/preview"},
		OpSync:    {http.MethodPost, "scraper/sync"},
		OpSyncGMP: {http.MethodPost, "scraper/sync-gmp"},
	},
}

// LookupRoute returns the endpoint for op on resource
func LookupRoute(resource Resource, op Operation) (Route, bool) {
	route, ok := backendRoutes[resource][op]
	return route, ok
}

type bearerKey struct{}

// WithBearerToken attaches the dashboard caller's token; backend calls made with
// the returned context forward it instead of the configured API token.
func WithBearerToken(ctx context.Context, token string) context.Context {
	token = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), "Bearer "))
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, bearerKey{}, token)
}

func bearerFrom(ctx context.Context) string {
	token, _ := ctx.Value(bearerKey{}).(string)
	return token
}

// BackendCall describes one request to the backend
type BackendCall struct {
	Resource  Resource
	Operation Operation
	ID        string
	Query     url.Values
	Body      *EncodedBody
}

// BackendClient performs every call to the IPO REST backend
type BackendClient struct {
	baseURL          string
	apiToken         string
	httpClient       *http.Client
	clientFactory    *shared.HTTPClientFactory
	rateLimiter      *shared.HTTPRequestRateLimiter
	maxRetryAttempts int
	retryBackoff     time.Duration
	metrics          *shared.Metrics
	serviceMetrics   *shared.ServiceMetrics
	logger           *logrus.Entry
}

// NewBackendClient creates a client from the service section of the configuration
func NewBackendClient(cfg shared.ServiceConfig, metrics *shared.Metrics) *BackendClient {
	factory := shared.NewHTTPClientFactory(cfg.HTTPRequestTimeout)
	return &BackendClient{
		baseURL:          strings.TrimRight(cfg.BaseURL, "/"),
		apiToken:         cfg.APIToken,
		httpClient:       factory.CreateOptimizedHTTPClient(cfg.HTTPRequestTimeout),
		clientFactory:    factory,
		rateLimiter:      shared.NewHTTPRequestRateLimiter(cfg.RequestRateLimit),
		maxRetryAttempts: cfg.MaxRetryAttempts,
		retryBackoff:     500 * time.Millisecond,
		metrics:          metrics,
		serviceMetrics:   shared.NewServiceMetrics("BackendClient"),
		logger:           logrus.WithField("component", "BackendClient"),
	}
}

// SetRetryBackoff changes the base delay between read retries
func (c *BackendClient) SetRetryBackoff(d time.Duration) {
	c.retryBackoff = d
}

// Close releases idle connections and logs the request counters
func (c *BackendClient) Close() {
	c.serviceMetrics.LogSummary()
	c.clientFactory.CleanupAllClients()
}

// Stats returns request counters for the health report
func (c *BackendClient) Stats() map[string]interface{} {
	snapshot := c.serviceMetrics.GetSnapshot()
	snapshot["rate_limited_requests"] = c.rateLimiter.GetRequestCount()
	return snapshot
}

// Endpoint renders the absolute URL of a call
func (c *BackendClient) Endpoint(call BackendCall) (Route, string, error) {
	route, ok := LookupRoute(call.Resource, call.Operation)
	if !ok {
		return Route{}, "", shared.NewServiceError(shared.ErrorCategoryConfiguration, "UNSUPPORTED_OPERATION",
			fmt.Sprintf("%s does not support %s", call.Resource, call.Operation), "BackendClient", string(call.Operation), false, nil)
	}
	path := route.Path
	if strings.Contains(path, "{id}") {
		if strings.TrimSpace(call.ID) == "" {
			return Route{}, "", shared.NewServiceError(shared.ErrorCategoryValidation, "MISSING_ID",
				"record id is required", "BackendClient", string(call.Operation), false, nil)
		}
		path = strings.ReplaceAll(path, "{id}", url.PathEscape(call.ID))
	}
	endpoint := c.baseURL + "/api/" + path
	if len(call.Query) > 0 {
		endpoint += "?" + call.Query.Encode()
	}
	return route, endpoint, nil
}

// Do sends call and returns the raw body of a 2xx response. Reads are retried on
// network errors and 5xx; writes are sent once.
func (c *BackendClient) Do(ctx context.Context, call BackendCall) ([]byte, error) {
	route, endpoint, err := c.Endpoint(call)
	if err != nil {
		return nil, err
	}
	operation := fmt.Sprintf("%s.%s", call.Resource, call.Operation)
	logger := c.logger.WithFields(logrus.Fields{
		"resource":  call.Resource,
		"operation": call.Operation,
		"method":    route.Method,
	})

	if err := c.rateLimiter.EnforceRateLimit(ctx); err != nil {
		return nil, shared.WrapError(err, shared.ErrorCategoryTimeout, "REQUEST_CANCELLED", "BackendClient", operation, false)
	}

	var body io.Reader
	if call.Body != nil {
		body = bytes.NewReader(call.Body.Body)
	}
	req, err := http.NewRequestWithContext(ctx, route.Method, endpoint, body)
	if err != nil {
		return nil, shared.WrapError(err, shared.ErrorCategoryConfiguration, "BAD_REQUEST_URL", "BackendClient", operation, false)
	}
	req.Header.Set("Accept", "application/json")
	if call.Body != nil {
		req.Header.Set("Content-Type", call.Body.ContentType)
	}
	if token := bearerFrom(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	} else if c.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
	}

	start := time.Now()
	var resp *http.Response
	if route.Method == http.MethodGet {
		resp, err = shared.ExecuteHTTPRequestWithRetry(ctx, c.httpClient, req, c.maxRetryAttempts, c.retryBackoff)
	} else {
		resp, err = c.httpClient.Do(req)
	}
	elapsed := time.Since(start)

	if err != nil {
		c.record(call, route, "network_error", elapsed, false)
		category := shared.ErrorCategoryNetwork
		code := "BACKEND_UNREACHABLE"
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			category = shared.ErrorCategoryTimeout
			code = "BACKEND_TIMEOUT"
		}
		logger.WithError(err).Warn("Backend request failed without a response")
		return nil, shared.NewServiceError(category, code, "backend is unreachable: "+err.Error(), "BackendClient", operation, true, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		c.record(call, route, "network_error", elapsed, false)
		return nil, shared.NewServiceError(shared.ErrorCategoryNetwork, "BACKEND_READ_FAILED",
			"failed to read backend response", "BackendClient", operation, true, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.record(call, route, fmt.Sprintf("http_%d", resp.StatusCode), elapsed, false)
		message := models.EnvelopeMessage(data)
		if message == "" {
			message = http.StatusText(resp.StatusCode)
		}
		category := shared.CategoryForStatus(resp.StatusCode)
		logger.WithFields(logrus.Fields{
			"status_code": resp.StatusCode,
			"message":     message,
		}).Warn("Backend rejected request")
		return nil, shared.NewServiceError(category, fmt.Sprintf("BACKEND_%d", resp.StatusCode), message,
			"BackendClient", operation, resp.StatusCode >= 500, nil).WithStatus(resp.StatusCode)
	}

	// Some endpoints answer 200 with {success:false}
	if rejected, message := envelopeRejected(data); rejected {
		c.record(call, route, "rejected", elapsed, false)
		if message == "" {
			message = "backend reported failure"
		}
		return nil, shared.NewServiceError(shared.ErrorCategoryProcessing, "BACKEND_REJECTED", message,
			"BackendClient", operation, false, nil).WithStatus(resp.StatusCode)
	}

	c.record(call, route, "ok", elapsed, true)
	logger.WithFields(logrus.Fields{
		"status_code": resp.StatusCode,
		"duration_ms": elapsed.Milliseconds(),
	}).Debug("Backend request completed")
	return data, nil
}

func (c *BackendClient) record(call BackendCall, route Route, outcome string, elapsed time.Duration, success bool) {
	c.serviceMetrics.RecordRequest(success, elapsed)
	c.metrics.ObserveBackendCall(string(call.Resource), route.Method, outcome, elapsed)
}

func envelopeRejected(body []byte) (bool, string) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return false, ""
	}
	var envelope struct {
		Success *bool `json:"success"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil || envelope.Success == nil {
		return false, ""
	}
	if *envelope.Success {
		return false, ""
	}
	return true, models.EnvelopeMessage(trimmed)
}

// List fetches a collection
func (c *BackendClient) List(ctx context.Context, resource Resource, query url.Values) ([]byte, error) {
	return c.Do(ctx, BackendCall{Resource: resource, Operation: OpList, Query: query})
}

// Get fetches one record
func (c *BackendClient) Get(ctx context.Context, resource Resource, id string) ([]byte, error) {
	return c.Do(ctx, BackendCall{Resource: resource, Operation: OpGet, ID: id})
}

// Create posts a new record
func (c *BackendClient) Create(ctx context.Context, resource Resource, body EncodedBody) ([]byte, error) {
	return c.Do(ctx, BackendCall{Resource: resource, Operation: OpCreate, Body: &body})
}

// Update sends a record update with the verb the resource expects
func (c *BackendClient) Update(ctx context.Context, resource Resource, id string, body EncodedBody) ([]byte, error) {
	return c.Do(ctx, BackendCall{Resource: resource, Operation: OpUpdate, ID: id, Body: &body})
}

// Delete removes one record
func (c *BackendClient) Delete(ctx context.Context, resource Resource, id string) error {
	_, err := c.Do(ctx, BackendCall{Resource: resource, Operation: OpDelete, ID: id})
	return err
}

// BulkDelete removes several records in one call where the backend supports it
func (c *BackendClient) BulkDelete(ctx context.Context, resource Resource, ids []string) ([]byte, error) {
	body, err := EncodeJSON(map[string][]string{"ids": ids})
	if err != nil {
		return nil, err
	}
	return c.Do(ctx, BackendCall{Resource: resource, Operation: OpBulkDelete, Body: &body})
}

// SupportsBulkDelete reports whether resource has a bulk delete endpoint
func SupportsBulkDelete(resource Resource) bool {
	_, ok := LookupRoute(resource, OpBulkDelete)
	return ok
}
