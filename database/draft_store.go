package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fenilmodi00/ipo-admin/models"
	"github.com/fenilmodi00/ipo-admin/services"
	"github.com/lib/pq"
)

const draftTable = "ipo_drafts"

// draftPayload is the JSONB column: the form and its optional icon file
type draftPayload struct {
	Form models.IPOViewModel `json:"form"`
	Icon *models.Attachment  `json:"icon,omitempty"`
}

// PostgresDraftStore keeps drafts in the ipo_drafts table so they survive restarts
type PostgresDraftStore struct {
	db *sql.DB
}

// NewPostgresDraftStore creates a store on db. Run Migrate first.
func NewPostgresDraftStore(db *sql.DB) *PostgresDraftStore {
	return &PostgresDraftStore{db: db}
}

// Save inserts or replaces a draft
func (s *PostgresDraftStore) Save(ctx context.Context, draft services.Draft) error {
	payload, err := json.Marshal(draftPayload{Form: draft.Form, Icon: draft.Icon})
	if err != nil {
		return fmt.Errorf("failed to encode draft payload: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO ipo_drafts (id, category, mode, record_id, payload, last_error, attempts, created_at, updated_at, expires_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, NULLIF($6, ''), $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			payload = EXCLUDED.payload,
			last_error = EXCLUDED.last_error,
			attempts = EXCLUDED.attempts,
			updated_at = EXCLUDED.updated_at,
			expires_at = EXCLUDED.expires_at`,
		draft.ID, string(draft.Category), string(draft.Mode), draft.RecordID, payload,
		draft.LastError, draft.Attempts, draft.CreatedAt, draft.UpdatedAt, draft.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save draft %s: %w", draft.ID, err)
	}
	return nil
}

// Get returns a draft by id, or services.ErrDraftNotFound
func (s *PostgresDraftStore) Get(ctx context.Context, id string) (services.Draft, error) {
	var (
		draft     services.Draft
		category  string
		mode      string
		recordID  sql.NullString
		lastError sql.NullString
		payload   []byte
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, category, mode, record_id, payload, last_error, attempts, created_at, updated_at, expires_at
		FROM ipo_drafts
		WHERE id = $1`, id,
	).Scan(&draft.ID, &category, &mode, &recordID, &payload, &lastError,
		&draft.Attempts, &draft.CreatedAt, &draft.UpdatedAt, &draft.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return services.Draft{}, services.ErrDraftNotFound
	}
	if err != nil {
		// A malformed uuid can never name a stored draft
		if isInvalidTextRepresentation(err) {
			return services.Draft{}, services.ErrDraftNotFound
		}
		return services.Draft{}, fmt.Errorf("failed to load draft %s: %w", id, err)
	}

	var decoded draftPayload
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return services.Draft{}, fmt.Errorf("failed to decode draft %s: %w", id, err)
	}
	draft.Category = services.Resource(category)
	draft.Mode = services.DraftMode(mode)
	draft.RecordID = recordID.String
	draft.LastError = lastError.String
	draft.Form = decoded.Form
	draft.Icon = decoded.Icon
	return draft, nil
}

// Delete removes a draft; unknown ids are not an error
func (s *PostgresDraftStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM ipo_drafts WHERE id = $1`, id)
	if err != nil && !isInvalidTextRepresentation(err) {
		return fmt.Errorf("failed to delete draft %s: %w", id, err)
	}
	return nil
}

// DeleteExpired removes drafts whose expiry is not after now
func (s *PostgresDraftStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM ipo_drafts WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired drafts: %w", err)
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(removed), nil
}

// isInvalidTextRepresentation reports a value Postgres could not parse, such as a malformed uuid
func isInvalidTextRepresentation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "22P02"
}
