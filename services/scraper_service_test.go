package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScraperPreviewUsesDefaultLimit(t *testing.T) {
	fb := newFakeBackend(t)
	fb.reply("GET", "/api/scraper/preview", 200, `{"success":true,"data":[{"companyName":"Fresh IPO Ltd","status":"UPCOMING","gmp":12},{"note":"unparsed"}]}`)
	scraper := NewScraperService(fb.client(""), NewCachedIPOService(newTestIPOService(fb), NewCacheService()))

	result, err := scraper.Preview(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, result.Preview, 1)
	assert.Equal(t, "Fresh IPO Ltd", result.Preview[0].CompanyName)
	assert.Equal(t, 12.0, result.Preview[0].GMP)
	assert.Equal(t, "3", fb.recorded()[0].Query.Get("limit"))
}

func TestScraperSyncInvalidatesEveryCategory(t *testing.T) {
	ctx := context.Background()
	fb := newFakeBackend(t)
	fb.reply("POST", "/api/scraper/sync", 200, `{"success":true,"message":"Synced 4 IPOs","data":{"created":3,"updated":1}}`)
	fb.reply("POST", "/api/scraper/sync-gmp", 200, `{"success":true,"message":"GMP synced"}`)
	cache := NewCacheService()
	scraper := NewScraperService(fb.client(""), NewCachedIPOService(newTestIPOService(fb), cache))

	for _, category := range IPOCategories {
		cache.Set(ipoListPrefix(category), RecordPage{})
	}
	result, err := scraper.Sync(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, "Synced 4 IPOs", result.Message)
	assert.JSONEq(t, `{"created":3,"updated":1}`, string(result.Data))
	assert.Equal(t, "10", fb.recorded()[0].Query.Get("limit"))
	assert.Zero(t, cache.Size())

	cache.Set(ipoListPrefix(ResourceSME), RecordPage{})
	result, err = scraper.SyncGMP(ctx)
	require.NoError(t, err)
	assert.Equal(t, "GMP synced", result.Message)
	assert.Zero(t, cache.Size())
}

func TestScraperFailureKeepsCache(t *testing.T) {
	fb := newFakeBackend(t)
	fb.reply("POST", "/api/scraper/sync", 500, `{"message":"source unavailable"}`)
	cache := NewCacheService()
	scraper := NewScraperService(fb.client(""), NewCachedIPOService(newTestIPOService(fb), cache))
	cache.Set(ipoListPrefix(ResourceMainboard), RecordPage{})

	_, err := scraper.Sync(context.Background(), 5)
	require.Error(t, err)
	assert.Equal(t, 1, cache.Size())
	assert.Equal(t, "5", fb.recorded()[0].Query.Get("limit"))
}
