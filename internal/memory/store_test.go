package memory

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/baswilson/memory-engine/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	driver, err := database.NewSQLiteDriver(filepath.Join(t.TempDir(), "memories.db"))
	require.NoError(t, err)
	t.Cleanup(func() { driver.Close() })
	require.NoError(t, driver.Initialize(context.Background()))

	store := NewStore(driver.DB())
	store.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return store
}

func mustParse[T any](t *testing.T, body string) *T {
	t.Helper()
	req, err := Parse[T](strings.NewReader(body))
	require.NoError(t, err)
	return req
}

func assertSameRecord(t *testing.T, want, got *Record) {
	t.Helper()
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.UserID, got.UserID)
	assert.Equal(t, want.Source, got.Source)
	assert.Equal(t, want.SourceID, got.SourceID)
	assert.Equal(t, want.Content, got.Content)
	assert.Equal(t, want.Metadata, got.Metadata)
	assert.True(t, want.Timestamp.Equal(got.Timestamp), "timestamp: want %s, got %s", want.Timestamp, got.Timestamp)
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt), "createdAt: want %s, got %s", want.CreatedAt, got.CreatedAt)
	assert.True(t, want.UpdatedAt.Equal(got.UpdatedAt), "updatedAt: want %s, got %s", want.UpdatedAt, got.UpdatedAt)
}

func createMemory(t *testing.T, store *Store, userID, timestamp, content string) *Record {
	t.Helper()
	body := `{"userId": ` + userID + `, "source": "notes", "sourceId": "n-1", "timestamp": "` + timestamp +
		`", "content": "` + content + `", "metadata": {"title": "Note", "tags": "work", "category": ["a", "b"]}}`
	rec, err := store.Create(context.Background(), mustParse[CreateRequest](t, body))
	require.NoError(t, err)
	return rec
}

func TestStore_CreateAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created := createMemory(t, store, "7", "2024-01-15T10:30:00Z", "first")
	assert.NotZero(t, created.ID)
	assert.Equal(t, int64(7), created.UserID)

	got, err := store.Get(ctx, created.ID, nil)
	require.NoError(t, err)
	assertSameRecord(t, created, got)
	assert.Equal(t, Metadata{Title: "Note", Tags: "work", Category: []string{"a", "b"}}, got.Metadata)
	assert.True(t, time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC).Equal(got.Timestamp))
}

func TestStore_GetScopedToUser(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	created := createMemory(t, store, "7", "2024-01-15T10:30:00Z", "first")

	owner := int64(7)
	_, err := store.Get(ctx, created.ID, &owner)
	require.NoError(t, err)

	other := int64(8)
	_, err = store.Get(ctx, created.ID, &other)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.Get(ctx, created.ID+100, nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_UpdatePartial(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	created := createMemory(t, store, "7", "2024-01-15T10:30:00Z", "first")

	store.now = func() time.Time { return time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC) }
	req := mustParse[UpdateRequest](t, `{"id": 1, "content": "changed", "metadata": {"origin": "import"}}`)
	req.ID = &created.ID

	updated, err := store.Update(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "changed", updated.Content)
	assert.Equal(t, "notes", updated.Source)
	assert.Equal(t, Metadata{Title: "Note", Origin: "import", Tags: "work", Category: []string{"a", "b"}}, updated.Metadata)
	assert.True(t, created.CreatedAt.Equal(updated.CreatedAt))
	assert.True(t, updated.UpdatedAt.After(created.UpdatedAt))

	got, err := store.Get(ctx, created.ID, nil)
	require.NoError(t, err)
	assertSameRecord(t, updated, got)
}

func TestStore_UpdateOnlyIDKeepsRecord(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	created := createMemory(t, store, "7", "2024-01-15T10:30:00Z", "first")

	updated, err := store.Update(ctx, &UpdateRequest{ID: &created.ID})
	require.NoError(t, err)
	assert.Equal(t, created.Content, updated.Content)
	assert.Equal(t, created.Metadata, updated.Metadata)
}

func TestStore_UpdateWrongOwner(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	created := createMemory(t, store, "7", "2024-01-15T10:30:00Z", "first")

	other := int64(8)
	content := "hijacked"
	_, err := store.Update(ctx, &UpdateRequest{ID: &created.ID, UserID: &other, Content: &content})
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := store.Get(ctx, created.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, "first", got.Content)
}

func TestStore_Delete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	created := createMemory(t, store, "7", "2024-01-15T10:30:00Z", "first")

	assert.ErrorIs(t, store.Delete(ctx, created.ID, 8), ErrNotFound)

	require.NoError(t, store.Delete(ctx, created.ID, 7))
	_, err := store.Get(ctx, created.ID, nil)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, store.Delete(ctx, created.ID, 7), ErrNotFound)
}

func TestStore_ListByUser(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	older := createMemory(t, store, "7", "2024-01-01T00:00:00Z", "older")
	newer := createMemory(t, store, "7", "2024-02-01T00:00:00Z", "newer")
	createMemory(t, store, "8", "2024-03-01T00:00:00Z", "someone else")

	memories, err := store.ListByUser(ctx, "7")
	require.NoError(t, err)
	require.Len(t, memories, 2)
	assert.Equal(t, newer.ID, memories[0].ID)
	assert.Equal(t, older.ID, memories[1].ID)

	memories, err = store.ListByUser(ctx, "99")
	require.NoError(t, err)
	assert.NotNil(t, memories)
	assert.Empty(t, memories)

	memories, err = store.ListByUser(ctx, "not-a-number")
	require.NoError(t, err)
	assert.Empty(t, memories)
}

func TestStore_ConcurrentUpdates(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	created := createMemory(t, store, "7", "2024-01-15T10:30:00Z", "first")

	const n = 8
	reqs := make([]*UpdateRequest, n)
	for i := range reqs {
		reqs[i] = mustParse[UpdateRequest](t, fmt.Sprintf(`{"id": %d, "content": "edit %d"}`, created.ID, i))
	}

	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = store.Update(ctx, reqs[i])
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "update %d", i)
	}
	got, err := store.Get(ctx, created.ID, nil)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(got.Content, "edit "), got.Content)
}
