package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fenilmodi00/ipo-admin/models"
	"github.com/fenilmodi00/ipo-admin/services"
	"github.com/fenilmodi00/ipo-admin/shared"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)

type backendRequest struct {
	Method        string
	Path          string
	Authorization string
	ContentType   string
}

// stubBackend answers "METHOD /path" with canned JSON and records each request
type stubBackend struct {
	server   *httptest.Server
	mutex    sync.Mutex
	replies  map[string]stubReply
	requests []backendRequest
}

type stubReply struct {
	status int
	body   string
}

func newStubBackend(t *testing.T) *stubBackend {
	t.Helper()
	sb := &stubBackend{replies: make(map[string]stubReply)}
	sb.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		sb.mutex.Lock()
		sb.requests = append(sb.requests, backendRequest{
			Method:        r.Method,
			Path:          r.URL.Path,
			Authorization: r.Header.Get("Authorization"),
			ContentType:   r.Header.Get("Content-Type"),
		})
		reply, ok := sb.replies[r.Method+" "+r.URL.Path]
		sb.mutex.Unlock()
		if !ok {
			reply = stubReply{status: http.StatusNotFound, body: `{"success":false,"message":"no such route"}`}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(reply.status)
		_, _ = w.Write([]byte(reply.body))
	}))
	t.Cleanup(sb.server.Close)
	return sb
}

func (sb *stubBackend) reply(method, path string, status int, body string) {
	sb.mutex.Lock()
	defer sb.mutex.Unlock()
	sb.replies[method+" "+path] = stubReply{status: status, body: body}
}

func (sb *stubBackend) recorded() []backendRequest {
	sb.mutex.Lock()
	defer sb.mutex.Unlock()
	return append([]backendRequest(nil), sb.requests...)
}

// newTestApp wires the full route table against the stub backend with memory drafts
func newTestApp(t *testing.T, sb *stubBackend) *fiber.App {
	t.Helper()
	metrics := shared.NewMetrics()
	client := services.NewBackendClient(shared.ServiceConfig{
		BaseURL:            sb.server.URL,
		APIToken:           "service-token",
		HTTPRequestTimeout: 5 * time.Second,
		MaxRetryAttempts:   1,
	}, metrics)
	client.SetRetryBackoff(time.Millisecond)

	cache := services.NewCacheServiceWithConfig(time.Minute, 100, metrics)
	validator := services.NewValidationService(metrics)
	ipoService := services.NewIPOService(client, nil, validator)
	ipoService.SetClock(func() time.Time { return fixedNow })
	drafts := services.NewDraftService(services.NewMemoryDraftStore(), time.Hour, metrics)
	ipoService.SetDraftSaver(drafts)
	cached := services.NewCachedIPOService(ipoService, cache)
	registrars := services.NewRegistrarService(client, validator, cache, time.Minute)

	form := NewFormHandler(registrars)
	form.Now = func() time.Time { return fixedNow }

	app := fiber.New()
	Register(app, Handlers{
		Health:    NewHealthHandler(nil, client, cached),
		IPO:       NewIPOHandler(cached, services.NewExportService(cached)),
		Form:      form,
		Draft:     NewDraftHandler(drafts, cached),
		Registrar: NewRegistrarHandler(registrars),
		User:      NewUserHandler(services.NewUserService(client, validator)),
		Dashboard: NewDashboardHandler(services.NewDashboardService(cached)),
		Admin:     NewAdminHandler(services.NewScraperService(client, cached), cached),
		Metrics:   metrics,
	})
	return app
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
	Fields  []struct {
		Field string `json:"field"`
	} `json:"fields"`
	Details map[string]interface{} `json:"details"`
}

func do(t *testing.T, app *fiber.App, req *http.Request) (*http.Response, envelope) {
	t.Helper()
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var env envelope
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(body, &env), string(body))
	}
	return resp, env
}

func jsonRequest(t *testing.T, method, target string, body interface{}) *http.Request {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func validForm() models.IPOViewModel {
	vm := services.NewIPOForm(models.IPOTypeMainboard, fixedNow)
	vm.CompanyName = "TechCorp"
	vm.Slug = "techcorp-ipo"
	return vm
}

const mainboardList = `{"success":true,"mainboards":[
	{"_id":"m1","companyName":"Zeta Foods","status":"OPEN","gmp":40,"lot_size":100,"lot_price":200},
	{"_id":"m2","companyName":"Alpha Tech","status":"UPCOMING","gmp":10,"lot_size":50,"lot_price":100}
]}`

func TestHealth(t *testing.T) {
	app := newTestApp(t, newStubBackend(t))

	resp, err := app.Test(httptest.NewRequest("GET", "/health", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "memory", body["drafts"])
}

func TestMetricsEndpoint(t *testing.T) {
	app := newTestApp(t, newStubBackend(t))

	resp, err := app.Test(httptest.NewRequest("GET", "/metrics", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestListIPOsForwardsBearerToken(t *testing.T) {
	sb := newStubBackend(t)
	sb.reply("GET", "/api/mainboard/mainboards", 200, mainboardList)
	app := newTestApp(t, sb)

	req := httptest.NewRequest("GET", "/api/v1/ipos/mainboard?sort=gmp&order=desc", nil)
	req.Header.Set("Authorization", "Bearer user-token")
	resp, env := do(t, app, req)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, env.Error)

	var page services.TablePage
	require.NoError(t, json.Unmarshal(env.Data, &page))
	require.Len(t, page.Rows, 2)
	assert.Equal(t, "m1", page.Rows[0].ID)
	assert.Equal(t, 4000.0, page.Rows[0].EstimatedProfit)

	requests := sb.recorded()
	require.Len(t, requests, 1)
	assert.Equal(t, "Bearer user-token", requests[0].Authorization)
}

func TestListBeyondLastPageIsEmpty(t *testing.T) {
	sb := newStubBackend(t)
	sb.reply("GET", "/api/v1/sme-ipos", 200, `[{"_id":"s1","companyName":"Small Co","status":"OPEN"}]`)
	app := newTestApp(t, sb)

	resp, env := do(t, app, httptest.NewRequest("GET", "/api/v1/ipos/sme?page=9223372036854775807&limit=20", nil))
	require.Equal(t, fiber.StatusOK, resp.StatusCode, env.Error)

	var page services.TablePage
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Empty(t, page.Rows)
	assert.Equal(t, 1, page.Pagination.TotalItems)
}

func TestSMEFormAndUpdateUseListRoutes(t *testing.T) {
	sb := newStubBackend(t)
	sb.reply("GET", "/api/v1/sme-ipos", 200, `[{"_id":"abc","companyName":"Small Co","ipoType":"SME","status":"UPCOMING"}]`)
	sb.reply("PATCH", "/api/v1/sme-ipo/abc", 200, `{"success":true,"message":"updated"}`)
	app := newTestApp(t, sb)

	resp, env := do(t, app, httptest.NewRequest("GET", "/api/v1/ipos/sme/abc/form", nil))
	require.Equal(t, fiber.StatusOK, resp.StatusCode, env.Error)

	resp, env = do(t, app, jsonRequest(t, "PATCH", "/api/v1/ipos/sme/abc", validForm()))
	require.Equal(t, fiber.StatusOK, resp.StatusCode, env.Error)

	var reads, patches int
	for _, r := range sb.recorded() {
		if r.Path != "/api/v1/sme-ipo/abc" {
			continue
		}
		if r.Method == "PATCH" {
			patches++
		} else {
			reads++
		}
	}
	assert.Equal(t, 1, patches)
	assert.Zero(t, reads)
}

func TestUnknownCategoryIsNotFound(t *testing.T) {
	app := newTestApp(t, newStubBackend(t))

	resp, env := do(t, app, httptest.NewRequest("GET", "/api/v1/ipos/bonds", nil))
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.False(t, env.Success)
	assert.Equal(t, "UNKNOWN_CATEGORY", env.Code)
}

func TestCreateInvalidFormReturnsFields(t *testing.T) {
	sb := newStubBackend(t)
	app := newTestApp(t, sb)

	vm := validForm()
	vm.CompanyName = ""
	resp, env := do(t, app, jsonRequest(t, "POST", "/api/v1/ipos/mainboard", vm))
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
	fields := make([]string, 0, len(env.Fields))
	for _, f := range env.Fields {
		fields = append(fields, f.Field)
	}
	assert.Contains(t, fields, "companyName")
	assert.Empty(t, sb.recorded(), "nothing is sent for an invalid form")
}

func TestCreateMultipartSendsIcon(t *testing.T) {
	sb := newStubBackend(t)
	sb.reply("POST", "/api/mainboard/mainboards", 201, `{"success":true,"message":"created","mainboard":{"_id":"m9","companyName":"TechCorp"}}`)
	app := newTestApp(t, sb)

	form, err := json.Marshal(validForm())
	require.NoError(t, err)
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	require.NoError(t, writer.WriteField("form", string(form)))
	part, err := writer.CreateFormFile("icon", "logo.png")
	require.NoError(t, err)
	_, err = part.Write([]byte{0x89, 'P', 'N', 'G'})
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest("POST", "/api/v1/ipos/mainboard", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	resp, env := do(t, app, req)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, env.Error)

	var result services.SubmitResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, "created", result.Message)
	require.NotNil(t, result.Record)
	assert.Equal(t, "m9", result.Record.ID)

	requests := sb.recorded()
	require.Len(t, requests, 1)
	assert.True(t, strings.HasPrefix(requests[0].ContentType, "multipart/form-data"), requests[0].ContentType)
	assert.Equal(t, "Bearer service-token", requests[0].Authorization)
}

func TestFailedCreateIsKeptAsDraftAndRetried(t *testing.T) {
	sb := newStubBackend(t)
	sb.reply("POST", "/api/v1/sme-ipos", 503, `{"success":false,"message":"maintenance"}`)
	app := newTestApp(t, sb)

	resp, env := do(t, app, jsonRequest(t, "POST", "/api/v1/ipos/sme", validForm()))
	assert.GreaterOrEqual(t, resp.StatusCode, 500)
	draftID, _ := env.Details["draftId"].(string)
	require.NotEmpty(t, draftID)

	resp, env = do(t, app, httptest.NewRequest("GET", "/api/v1/drafts/"+draftID, nil))
	require.Equal(t, fiber.StatusOK, resp.StatusCode, env.Error)
	var draft services.Draft
	require.NoError(t, json.Unmarshal(env.Data, &draft))
	assert.Equal(t, "TechCorp", draft.Form.CompanyName)
	assert.Equal(t, models.IPOTypeSME, draft.Form.IPOType)

	sb.reply("POST", "/api/v1/sme-ipos", 201, `{"success":true,"message":"created"}`)
	resp, env = do(t, app, httptest.NewRequest("POST", "/api/v1/drafts/"+draftID+"/retry", nil))
	require.Equal(t, fiber.StatusOK, resp.StatusCode, env.Error)

	resp, _ = do(t, app, httptest.NewRequest("GET", "/api/v1/drafts/"+draftID, nil))
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestBulkDeleteRequiresIDs(t *testing.T) {
	app := newTestApp(t, newStubBackend(t))

	resp, env := do(t, app, jsonRequest(t, "POST", "/api/v1/ipos/mainboard/bulk-delete", map[string][]string{"ids": {}}))
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.False(t, env.Success)
}

func TestBulkDeleteReportsPartialFailure(t *testing.T) {
	sb := newStubBackend(t)
	sb.reply("DELETE", "/api/v1/sme-ipo/s1", 200, `{"success":true}`)
	app := newTestApp(t, sb)

	resp, env := do(t, app, jsonRequest(t, "POST", "/api/v1/ipos/sme/bulk-delete", map[string][]string{"ids": {"s1", "s2"}}))
	assert.Equal(t, fiber.StatusMultiStatus, resp.StatusCode)

	var result services.BulkDeleteResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, []string{"s1"}, result.Deleted)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, "s2", result.Failed[0].ID)
}

func TestExportReturnsWorkbook(t *testing.T) {
	sb := newStubBackend(t)
	sb.reply("GET", "/api/mainboard/mainboards", 200, mainboardList)
	app := newTestApp(t, sb)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/ipos/mainboard/export", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, services.XLSXContentType, resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "mainboard-ipos-")
	content, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(content, []byte("PK")), "xlsx files are zip archives")
}

func TestFormEventsDeriveFields(t *testing.T) {
	sb := newStubBackend(t)
	sb.reply("GET", "/api/registrars/registrars", 200, `{"success":true,"registrars":[{"_id":"r1","name":"Link Intime India","websiteLink":"https://linkintime.co.in"}]}`)
	app := newTestApp(t, sb)

	resp, env := do(t, app, httptest.NewRequest("GET", "/api/v1/forms/ipo/new?ipoType=sme", nil))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var initial struct {
		State models.IPOViewModel `json:"state"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &initial))
	assert.Equal(t, models.IPOTypeSME, initial.State.IPOType)

	resp, env = do(t, app, jsonRequest(t, "POST", "/api/v1/forms/ipo/events", map[string]interface{}{
		"state": initial.State,
		"events": []map[string]interface{}{
			{"field": "companyName", "value": "Tech Corp"},
			{"field": "registrarName", "value": "link intime india"},
			{"field": "gmp", "value": 20},
			{"field": "lot_size", "value": 100},
			{"field": "max_price", "value": 200},
		},
		"mode": "create",
	}))
	require.Equal(t, fiber.StatusOK, resp.StatusCode, env.Error)

	var applied struct {
		State   models.IPOViewModel  `json:"state"`
		Summary services.FormSummary `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &applied))
	assert.Equal(t, "tech-corp-ipo", applied.State.Slug)
	assert.Equal(t, "https://linkintime.co.in", applied.State.RegistrarLink)
	assert.Equal(t, 200.0, applied.State.LotPrice)
	assert.Equal(t, 2000.0, applied.Summary.EstimatedGain)

	resp, env = do(t, app, jsonRequest(t, "POST", "/api/v1/forms/ipo/events", map[string]interface{}{
		"state": initial.State,
		"event": map[string]interface{}{"field": "nonsense", "value": 1},
	}))
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, env.Error, "unknown form field")
}

func TestFormTimeline(t *testing.T) {
	app := newTestApp(t, newStubBackend(t))

	// Friday open: close lands on the following Tuesday
	resp, env := do(t, app, httptest.NewRequest("GET", "/api/v1/forms/ipo/timeline?open_date=2024-01-05", nil))
	require.Equal(t, fiber.StatusOK, resp.StatusCode, env.Error)
	var body struct {
		Timeline services.Timeline `json:"timeline"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &body))
	assert.Equal(t, time.Date(2024, 1, 9, 0, 0, 0, 0, time.UTC), body.Timeline.Close.UTC())

	resp, _ = do(t, app, httptest.NewRequest("GET", "/api/v1/forms/ipo/timeline", nil))
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestUserPANValidation(t *testing.T) {
	sb := newStubBackend(t)
	app := newTestApp(t, sb)

	resp, env := do(t, app, jsonRequest(t, "PUT", "/api/v1/users/u1/pan", map[string]interface{}{
		"panDocuments": []map[string]string{{"panNumber": "bad", "nameOnPan": "A", "status": "PENDING"}},
	}))
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
	assert.NotEmpty(t, env.Fields)
	assert.Empty(t, sb.recorded())
}

func TestCacheAdmin(t *testing.T) {
	sb := newStubBackend(t)
	sb.reply("GET", "/api/mainboard/mainboards", 200, mainboardList)
	app := newTestApp(t, sb)

	resp, _ := do(t, app, httptest.NewRequest("GET", "/api/v1/ipos/mainboard", nil))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, env := do(t, app, httptest.NewRequest("GET", "/api/v1/admin/cache/stats", nil))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var stats map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Equal(t, 1.0, stats["size"])

	resp, _ = do(t, app, httptest.NewRequest("DELETE", "/api/v1/admin/cache", nil))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, env = do(t, app, httptest.NewRequest("GET", "/api/v1/admin/cache/stats", nil))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Equal(t, 0.0, stats["size"])
}
