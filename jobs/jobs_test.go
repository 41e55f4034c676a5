package jobs

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fenilmodi00/ipo-admin/services"
	"github.com/fenilmodi00/ipo-admin/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	runs int32
}

func (j *countingJob) Run() {
	atomic.AddInt32(&j.runs, 1)
}

// backendStub serves fixed answers per path and counts hits
type backendStub struct {
	mutex  sync.Mutex
	status map[string]int
	bodies map[string]string
	hits   map[string]int
	server *httptest.Server
}

func newBackendStub(t *testing.T) *backendStub {
	t.Helper()
	b := &backendStub{status: map[string]int{}, bodies: map[string]string{}, hits: map[string]int{}}
	b.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mutex.Lock()
		key := r.Method + " " + r.URL.Path
		b.hits[key]++
		status, ok := b.status[key]
		body := b.bodies[key]
		b.mutex.Unlock()
		if !ok {
			status, body = http.StatusNotFound, `{"success":false}`
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(b.server.Close)
	return b
}

func (b *backendStub) reply(method, path string, status int, body string) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.status[method+" "+path] = status
	b.bodies[method+" "+path] = body
}

func (b *backendStub) count(method, path string) int {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.hits[method+" "+path]
}

func (b *backendStub) client() *services.BackendClient {
	client := services.NewBackendClient(shared.ServiceConfig{
		BaseURL:            b.server.URL,
		HTTPRequestTimeout: 5 * time.Second,
	}, nil)
	client.SetRetryBackoff(time.Millisecond)
	return client
}

func TestSchedulerSkipsDisabledJobs(t *testing.T) {
	s := NewScheduler()
	require.NoError(t, s.Every("off", 0, &countingJob{}))
	assert.Equal(t, 0, s.Len())
}

func TestSchedulerRunsJobs(t *testing.T) {
	s := NewScheduler()
	job := &countingJob{}
	require.NoError(t, s.Every("counter", time.Second, job))
	assert.Equal(t, 1, s.Len())

	s.Start()
	defer s.Stop()
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&job.runs) > 0 }, 5*time.Second, 50*time.Millisecond)
}

func TestCacheCleanupJobRemovesExpired(t *testing.T) {
	ctx := context.Background()
	cache := services.NewCacheService()
	cache.SetWithTTL("stale", 1, time.Millisecond)
	cache.Set("fresh", 2)

	store := services.NewMemoryDraftStore()
	drafts := services.NewDraftService(store, time.Millisecond, nil)
	id, err := drafts.SaveFailed(ctx, services.Draft{Category: services.ResourceMainboard, Mode: services.DraftModeCreate})
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	NewCacheCleanupJob(cache, drafts).Run()

	assert.Equal(t, 1, cache.Size())
	_, err = store.Get(ctx, id)
	assert.ErrorIs(t, err, services.ErrDraftNotFound)
}

func TestRegistrarRefreshKeepsDirectoryOnFailure(t *testing.T) {
	b := newBackendStub(t)
	b.reply("GET", "/api/registrars/registrars", 200, `{"success":true,"registrars":[{"_id":"r1","name":"Link Intime India","websiteLink":"https://linkintime.co.in"}]}`)
	registrars := services.NewRegistrarService(b.client(), nil, services.NewCacheService(), time.Minute)
	job := NewRegistrarRefreshJob(registrars)

	job.Run()
	found, ok := registrars.Resolve("link intime india")
	require.True(t, ok)
	assert.Equal(t, "r1", found.ID)

	b.reply("GET", "/api/registrars/registrars", 500, `{"success":false}`)
	job.Run()
	_, ok = registrars.Resolve("Link Intime India")
	assert.True(t, ok, "a failed refresh keeps the last directory")
}

func TestScraperSyncJobRunsGMPSyncAfterFailure(t *testing.T) {
	b := newBackendStub(t)
	b.reply("POST", "/api/scraper/sync", 502, `{"success":false,"message":"source down"}`)
	b.reply("POST", "/api/scraper/sync-gmp", 200, `{"success":true,"message":"gmp updated"}`)
	client := b.client()
	cached := services.NewCachedIPOService(services.NewIPOService(client, nil, nil), services.NewCacheService())

	NewScraperSyncJob(services.NewScraperService(client, cached)).Run()

	assert.Equal(t, 1, b.count("POST", "/api/scraper/sync"))
	assert.Equal(t, 1, b.count("POST", "/api/scraper/sync-gmp"))
}
