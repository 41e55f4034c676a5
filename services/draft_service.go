package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fenilmodi00/ipo-admin/models"
	"github.com/fenilmodi00/ipo-admin/shared"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DraftMode says whether a draft creates a record or updates one
type DraftMode string

const (
	DraftModeCreate DraftMode = "create"
	DraftModeUpdate DraftMode = "update"
)

// Draft is a submission the backend did not accept because it could not be reached
type Draft struct {
	ID        string              `json:"id"`
	Category  Resource            `json:"category"`
	Mode      DraftMode           `json:"mode"`
	RecordID  string              `json:"recordId,omitempty"`
	Form      models.IPOViewModel `json:"form"`
	Icon      *models.Attachment  `json:"icon,omitempty"`
	LastError string              `json:"lastError,omitempty"`
	Attempts  int                 `json:"attempts"`
	CreatedAt time.Time           `json:"createdAt"`
	UpdatedAt time.Time           `json:"updatedAt"`
	ExpiresAt time.Time           `json:"expiresAt"`
}

// ErrDraftNotFound is returned by stores for unknown ids
var ErrDraftNotFound = errors.New("draft not found")

// DraftStore persists drafts
type DraftStore interface {
	Save(ctx context.Context, draft Draft) error
	Get(ctx context.Context, id string) (Draft, error)
	Delete(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// MemoryDraftStore keeps drafts in process memory; they are lost on restart
type MemoryDraftStore struct {
	mutex  sync.RWMutex
	drafts map[string]Draft
}

// NewMemoryDraftStore creates an empty store
func NewMemoryDraftStore() *MemoryDraftStore {
	return &MemoryDraftStore{drafts: make(map[string]Draft)}
}

// Save inserts or replaces a draft
func (m *MemoryDraftStore) Save(_ context.Context, draft Draft) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.drafts[draft.ID] = draft
	return nil
}

// Get returns a draft by id
func (m *MemoryDraftStore) Get(_ context.Context, id string) (Draft, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	draft, ok := m.drafts[id]
	if !ok {
		return Draft{}, ErrDraftNotFound
	}
	return draft, nil
}

// Delete removes a draft; unknown ids are not an error
func (m *MemoryDraftStore) Delete(_ context.Context, id string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.drafts, id)
	return nil
}

// DeleteExpired drops drafts past their expiry
func (m *MemoryDraftStore) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	removed := 0
	for id, draft := range m.drafts {
		if !draft.ExpiresAt.After(now) {
			delete(m.drafts, id)
			removed++
		}
	}
	return removed, nil
}

// DraftSubmitter sends a draft's form again
type DraftSubmitter interface {
	Create(ctx context.Context, category Resource, vm models.IPOViewModel, icon *models.Attachment) (SubmitResult, error)
	Update(ctx context.Context, category Resource, id string, vm models.IPOViewModel, icon *models.Attachment) (SubmitResult, error)
}

type retryingDraftKey struct{}

// isRetryingDraft reports whether ctx belongs to a draft retry, during which a
// failed submission updates the existing draft instead of creating another
func isRetryingDraft(ctx context.Context) bool {
	retrying, _ := ctx.Value(retryingDraftKey{}).(bool)
	return retrying
}

// DraftService keeps failed submissions for retry without re-entry
type DraftService struct {
	store   DraftStore
	ttl     time.Duration
	metrics *shared.Metrics
	now     func() time.Time
	logger  *logrus.Entry
}

// NewDraftService creates a draft service; drafts expire after ttl
func NewDraftService(store DraftStore, ttl time.Duration, metrics *shared.Metrics) *DraftService {
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return &DraftService{
		store:   store,
		ttl:     ttl,
		metrics: metrics,
		now:     time.Now,
		logger:  logrus.WithField("component", "DraftService"),
	}
}

// SaveFailed stores draft under a new id and returns the id
func (d *DraftService) SaveFailed(ctx context.Context, draft Draft) (string, error) {
	now := d.now().UTC()
	draft.ID = uuid.NewString()
	draft.CreatedAt = now
	draft.UpdatedAt = now
	draft.ExpiresAt = now.Add(d.ttl)
	if err := d.store.Save(ctx, draft); err != nil {
		return "", shared.WrapError(err, shared.ErrorCategoryDatabase, "DRAFT_SAVE_FAILED", "DraftService", "SaveFailed", true)
	}
	d.metrics.ObserveDraftSaved()
	return draft.ID, nil
}

// Get returns a live draft
func (d *DraftService) Get(ctx context.Context, id string) (Draft, error) {
	draft, err := d.store.Get(ctx, id)
	if errors.Is(err, ErrDraftNotFound) || (err == nil && !draft.ExpiresAt.After(d.now())) {
		return Draft{}, shared.NewServiceError(shared.ErrorCategoryNotFound, "DRAFT_NOT_FOUND",
			fmt.Sprintf("draft %s not found or expired", id), "DraftService", "Get", false, ErrDraftNotFound)
	}
	if err != nil {
		return Draft{}, shared.WrapError(err, shared.ErrorCategoryDatabase, "DRAFT_LOAD_FAILED", "DraftService", "Get", true)
	}
	return draft, nil
}

// Discard deletes a draft
func (d *DraftService) Discard(ctx context.Context, id string) error {
	if _, err := d.Get(ctx, id); err != nil {
		return err
	}
	if err := d.store.Delete(ctx, id); err != nil {
		return shared.WrapError(err, shared.ErrorCategoryDatabase, "DRAFT_DELETE_FAILED", "DraftService", "Discard", true)
	}
	return nil
}

// RetryDraft submits a draft again. On success the draft is removed; on failure
// it is kept with the new error and attempt count.
func (d *DraftService) RetryDraft(ctx context.Context, id string, submitter DraftSubmitter) (SubmitResult, error) {
	draft, err := d.Get(ctx, id)
	if err != nil {
		return SubmitResult{}, err
	}

	retryCtx := context.WithValue(ctx, retryingDraftKey{}, true)
	var result SubmitResult
	switch draft.Mode {
	case DraftModeUpdate:
		result, err = submitter.Update(retryCtx, draft.Category, draft.RecordID, draft.Form, draft.Icon)
	default:
		result, err = submitter.Create(retryCtx, draft.Category, draft.Form, draft.Icon)
	}

	logger := d.logger.WithFields(logrus.Fields{"draft_id": id, "category": draft.Category, "mode": draft.Mode})
	if err != nil {
		draft.Attempts++
		draft.LastError = err.Error()
		draft.UpdatedAt = d.now().UTC()
		if saveErr := d.store.Save(ctx, draft); saveErr != nil {
			logger.WithError(saveErr).Error("Failed to record draft retry")
		}
		logger.WithError(err).Warn("Draft retry failed")
		result.DraftID = id
		return result, err
	}

	if err := d.store.Delete(ctx, id); err != nil {
		logger.WithError(err).Warn("Draft submitted but could not be removed")
	}
	logger.Info("Draft submitted")
	return result, nil
}

// CleanupExpired removes expired drafts
func (d *DraftService) CleanupExpired(ctx context.Context) (int, error) {
	return d.store.DeleteExpired(ctx, d.now())
}
