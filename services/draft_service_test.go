package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fenilmodi00/ipo-admin/models"
	"github.com/fenilmodi00/ipo-admin/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubSubmitter answers draft retries with a fixed outcome
type stubSubmitter struct {
	err      error
	creates  int
	updates  int
	retrying bool
	lastID   string
}

func (s *stubSubmitter) Create(ctx context.Context, _ Resource, vm models.IPOViewModel, _ *models.Attachment) (SubmitResult, error) {
	s.creates++
	s.retrying = isRetryingDraft(ctx)
	if s.err != nil {
		return SubmitResult{}, s.err
	}
	return SubmitResult{Record: &vm, Message: "created"}, nil
}

func (s *stubSubmitter) Update(ctx context.Context, _ Resource, id string, vm models.IPOViewModel, _ *models.Attachment) (SubmitResult, error) {
	s.updates++
	s.lastID = id
	s.retrying = isRetryingDraft(ctx)
	if s.err != nil {
		return SubmitResult{}, s.err
	}
	return SubmitResult{Record: &vm, Message: "updated"}, nil
}

func TestDraftLifecycle(t *testing.T) {
	ctx := context.Background()
	drafts := NewDraftService(NewMemoryDraftStore(), time.Hour, nil)

	id, err := drafts.SaveFailed(ctx, Draft{Category: ResourceSME, Mode: DraftModeCreate, Form: validForm()})
	require.NoError(t, err)

	draft, err := drafts.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, draft.ID)
	assert.WithinDuration(t, draft.CreatedAt.Add(time.Hour), draft.ExpiresAt, time.Second)

	require.NoError(t, drafts.Discard(ctx, id))
	_, err = drafts.Get(ctx, id)
	var serviceErr *shared.ServiceError
	require.True(t, errors.As(err, &serviceErr))
	assert.Equal(t, shared.ErrorCategoryNotFound, serviceErr.Category)
	assert.ErrorIs(t, err, ErrDraftNotFound)
}

func TestExpiredDraftsAreHiddenAndCleanedUp(t *testing.T) {
	ctx := context.Background()
	drafts := NewDraftService(NewMemoryDraftStore(), time.Hour, nil)
	id, err := drafts.SaveFailed(ctx, Draft{Mode: DraftModeCreate, Form: validForm()})
	require.NoError(t, err)

	drafts.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = drafts.Get(ctx, id)
	assert.Error(t, err)

	removed, err := drafts.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
}

func TestRetryDraftRemovesDraftOnSuccess(t *testing.T) {
	ctx := context.Background()
	drafts := NewDraftService(NewMemoryDraftStore(), time.Hour, nil)
	id, err := drafts.SaveFailed(ctx, Draft{Category: ResourceMainboard, Mode: DraftModeUpdate, RecordID: "m1", Form: validForm()})
	require.NoError(t, err)

	submitter := &stubSubmitter{}
	result, err := drafts.RetryDraft(ctx, id, submitter)
	require.NoError(t, err)
	assert.Equal(t, "updated", result.Message)
	assert.Equal(t, 1, submitter.updates)
	assert.Equal(t, "m1", submitter.lastID)
	assert.True(t, submitter.retrying)

	_, err = drafts.Get(ctx, id)
	assert.Error(t, err)
}

func TestRetryDraftKeepsDraftOnFailure(t *testing.T) {
	ctx := context.Background()
	drafts := NewDraftService(NewMemoryDraftStore(), time.Hour, nil)
	id, err := drafts.SaveFailed(ctx, Draft{Category: ResourceSME, Mode: DraftModeCreate, Form: validForm()})
	require.NoError(t, err)

	submitter := &stubSubmitter{err: errors.New("backend is unreachable")}
	result, err := drafts.RetryDraft(ctx, id, submitter)
	require.Error(t, err)
	assert.Equal(t, id, result.DraftID)

	draft, err := drafts.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, draft.Attempts)
	assert.Equal(t, "backend is unreachable", draft.LastError)
}

func TestRetryThroughIPOServiceDoesNotCreateSecondDraft(t *testing.T) {
	ctx := context.Background()
	fb := newFakeBackend(t)
	fb.reply("POST", "/api/v1/sme-ipos", 503, `{"message":"maintenance"}`)
	svc := newTestIPOService(fb)
	store := NewMemoryDraftStore()
	drafts := NewDraftService(store, time.Hour, nil)
	svc.SetDraftSaver(drafts)

	first, err := svc.Create(ctx, ResourceSME, validForm(), nil)
	require.Error(t, err)
	require.NotEmpty(t, first.DraftID)

	_, err = drafts.RetryDraft(ctx, first.DraftID, svc)
	require.Error(t, err)

	store.mutex.RLock()
	count := len(store.drafts)
	store.mutex.RUnlock()
	assert.Equal(t, 1, count)

	fb.reply("POST", "/api/v1/sme-ipos", 201, `{"success":true,"message":"created"}`)
	result, err := drafts.RetryDraft(ctx, first.DraftID, svc)
	require.NoError(t, err)
	assert.Equal(t, "created", result.Message)
	assert.Equal(t, 3, fb.count("POST", "/api/v1/sme-ipos"))
}
