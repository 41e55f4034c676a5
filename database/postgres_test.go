package database

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/fenilmodi00/ipo-admin/models"
	"github.com/fenilmodi00/ipo-admin/services"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openTestDB connects to TEST_DATABASE_URL and skips when it is unset or unreachable
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("Skipping database tests - TEST_DATABASE_URL not set")
	}
	db, err := Connect(dbURL)
	if err != nil {
		t.Skipf("Skipping database tests - database not available: %v", err)
	}
	t.Cleanup(func() { Close(db) })

	require.NoError(t, Migrate(context.Background(), db))
	return db
}

func TestParseSQLStatements(t *testing.T) {
	statements := parseSQLStatements(`
-- comment
CREATE TABLE a (
    id INT
);

CREATE INDEX b ON a (id);
SELECT 1`)

	assert.Equal(t, []string{
		"CREATE TABLE a ( id INT )",
		"CREATE INDEX b ON a (id)",
		"SELECT 1",
	}, statements)
}

func TestEmbeddedSchemaParses(t *testing.T) {
	statements := parseSQLStatements(schemaSQL)
	require.Len(t, statements, 3)
	assert.Contains(t, statements[0], "CREATE TABLE IF NOT EXISTS ipo_drafts")
}

func TestCompareColumns(t *testing.T) {
	missing, mismatched := compareColumns(
		map[string]string{"id": "uuid", "payload": "jsonb", "attempts": "integer"},
		map[string]string{"id": "UUID", "payload": "text"},
	)
	assert.Equal(t, []string{"attempts"}, missing)
	assert.Equal(t, []string{"payload: text (expected jsonb)"}, mismatched)
}

func TestConnectRejectsEmptyURL(t *testing.T) {
	_, err := Connect("  ")
	assert.Error(t, err)
}

func TestPostgresDraftStoreRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	store := NewPostgresDraftStore(db)

	report, err := ValidateSchema(ctx, db)
	require.NoError(t, err)
	assert.True(t, report.Valid(), "%+v", report)

	now := time.Now().UTC().Truncate(time.Millisecond)
	draft := services.Draft{
		ID:        uuid.NewString(),
		Category:  services.ResourceSME,
		Mode:      services.DraftModeUpdate,
		RecordID:  "s1",
		Form:      models.IPOViewModel{CompanyName: "TechCorp", Slug: "techcorp-ipo", LotPrice: 150},
		Icon:      &models.Attachment{FieldName: "icon", FileName: "logo.png", ContentType: "image/png", Data: []byte{1, 2, 3}},
		Attempts:  1,
		LastError: "backend is unreachable",
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}
	require.NoError(t, store.Save(ctx, draft))
	t.Cleanup(func() { _ = store.Delete(ctx, draft.ID) })

	loaded, err := store.Get(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, draft.Category, loaded.Category)
	assert.Equal(t, draft.RecordID, loaded.RecordID)
	assert.Equal(t, draft.Form.CompanyName, loaded.Form.CompanyName)
	assert.Equal(t, draft.Icon.Data, loaded.Icon.Data)
	assert.True(t, draft.ExpiresAt.Equal(loaded.ExpiresAt))

	draft.Attempts = 2
	require.NoError(t, store.Save(ctx, draft))
	loaded, err = store.Get(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Attempts)

	require.NoError(t, store.Delete(ctx, draft.ID))
	_, err = store.Get(ctx, draft.ID)
	assert.ErrorIs(t, err, services.ErrDraftNotFound)

	_, err = store.Get(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, services.ErrDraftNotFound)
}

func TestPostgresDraftStoreDeleteExpired(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	store := NewPostgresDraftStore(db)

	now := time.Now().UTC()
	expired := services.Draft{ID: uuid.NewString(), Category: services.ResourceMainboard, Mode: services.DraftModeCreate,
		CreatedAt: now, UpdatedAt: now, ExpiresAt: now.Add(-time.Minute)}
	live := services.Draft{ID: uuid.NewString(), Category: services.ResourceMainboard, Mode: services.DraftModeCreate,
		CreatedAt: now, UpdatedAt: now, ExpiresAt: now.Add(time.Hour)}
	require.NoError(t, store.Save(ctx, expired))
	require.NoError(t, store.Save(ctx, live))
	t.Cleanup(func() { _ = store.Delete(ctx, live.ID) })

	removed, err := store.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, removed, 1)

	_, err = store.Get(ctx, expired.ID)
	assert.ErrorIs(t, err, services.ErrDraftNotFound)
	_, err = store.Get(ctx, live.ID)
	assert.NoError(t, err)
}
