package journal

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/stepd/internal/foundation/errors"
)

func newMemoryStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStoreAppendAndGetBySession(t *testing.T) {
	store := newMemoryStore(t)
	ctx := t.Context()
	at := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)

	require.NoError(t, store.Append(ctx, Entry{SessionID: "s1", Type: "counting.started", Timestamp: at, Payload: []byte(`{"a":1}`), Metadata: map[string]string{"k": "v"}}))
	require.NoError(t, store.Append(ctx, Entry{SessionID: "s2", Type: "counting.started", Timestamp: at}))
	require.NoError(t, store.Append(ctx, Entry{SessionID: "s1", Type: "counting.stopped", Timestamp: at.Add(time.Minute)}))

	got, err := store.GetBySession(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "counting.started", got[0].Type)
	require.Equal(t, "counting.stopped", got[1].Type)
	require.Less(t, got[0].ID, got[1].ID)
	require.JSONEq(t, `{"a":1}`, string(got[0].Payload))
	require.Equal(t, map[string]string{"k": "v"}, got[0].Metadata)
	require.True(t, at.Equal(got[0].Timestamp))
	require.JSONEq(t, `{}`, string(got[1].Payload))
	require.Nil(t, got[1].Metadata)
}

func TestSQLiteStoreGetRange(t *testing.T) {
	store := newMemoryStore(t)
	ctx := t.Context()
	base := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	for i := range 5 {
		require.NoError(t, store.Append(ctx, Entry{SessionID: "s", Type: "day.closed", Timestamp: base.Add(time.Duration(i) * time.Hour)}))
	}

	got, err := store.GetRange(ctx, base.Add(time.Hour), base.Add(3*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 3)

	got, err = store.GetRange(ctx, base.Add(10*time.Hour), base.Add(11*time.Hour))
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "journal.db")
	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Append(t.Context(), Entry{SessionID: "s", Type: "day.closed"}))
	require.NoError(t, store.Close())

	store, err = NewSQLiteStore(path)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	got, err := store.GetBySession(t.Context(), "s")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.WithinDuration(t, time.Now(), got[0].Timestamp, time.Minute)
}

func TestSQLiteStoreErrorsAreClassified(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, store.Close())

	err = store.Append(t.Context(), Entry{SessionID: "s", Type: "x"})
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrAppendFailed))
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryJournal))

	_, err = store.GetRange(t.Context(), time.Time{}, time.Now())
	require.ErrorIs(t, err, ErrQueryFailed)
}
