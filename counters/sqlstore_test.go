package counters

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coredatabase "github.com/m3rciful/counterbot/core/database"
)

func newTestStore(t *testing.T) (*SQLStore, *sqlx.DB) {
	t.Helper()
	cfg := coredatabase.Config{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "counters.db")}
	require.NoError(t, cfg.Normalize())

	db, err := coredatabase.Connect(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, coredatabase.RunMigrations(cfg, Migrations()))
	return NewSQLStore(db), db
}

func TestCreateThenList(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	chat := store.Chat(42)

	id, err := chat.Create(ctx, "Pushups", 10)
	require.NoError(t, err)
	assert.Positive(t, id)

	list, err := chat.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, Counter{ID: id, Name: "Pushups", Value: 10}, list[0])
}

func TestListEmptyAndCreationOrder(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	chat := store.Chat(1)

	list, err := chat.List(ctx)
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)

	var ids []int64
	for i, name := range []string{"b", "a", "b"} {
		id, err := chat.Create(ctx, name, int64(i))
		require.NoError(t, err)
		ids = append(ids, id)
	}
	assert.Less(t, ids[0], ids[1])
	assert.Less(t, ids[1], ids[2])

	list, err = chat.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	for i := range list {
		assert.Equal(t, ids[i], list[i].ID)
	}
	assert.Equal(t, "b", list[2].Name)
}

func TestCreateRejectsBlankName(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	_, err := store.Chat(1).Create(ctx, "  ", 1)
	assert.True(t, IsValidation(err))

	list, err := store.Chat(1).List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestIncrementRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	chat := store.Chat(7)

	id, err := chat.Create(ctx, "Water", 5)
	require.NoError(t, err)

	v, err := chat.IncrementBy(ctx, id, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(6), v)

	v, err = chat.IncrementBy(ctx, id, -1)
	require.NoError(t, err)
	assert.Equal(t, int64(5), v)

	c, err := chat.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(5), c.Value)
}

func TestIncrementStopsAtInt64Bounds(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	chat := store.Chat(7)

	top, err := chat.Create(ctx, "Big", math.MaxInt64)
	require.NoError(t, err)
	bottom, err := chat.Create(ctx, "Small", math.MinInt64)
	require.NoError(t, err)

	_, err = chat.IncrementBy(ctx, top, 1)
	assert.True(t, IsValidation(err), "got %v", err)
	_, err = chat.IncrementBy(ctx, bottom, -1)
	assert.True(t, IsValidation(err), "got %v", err)

	v, err := chat.IncrementBy(ctx, top, -1)
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64-1), v)
	v, err = chat.IncrementBy(ctx, bottom, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(math.MinInt64+1), v)

	list, err := chat.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Counter{
		{ID: top, Name: "Big", Value: math.MaxInt64 - 1},
		{ID: bottom, Name: "Small", Value: math.MinInt64 + 1},
	}, list)

	_, err = chat.IncrementBy(ctx, top+bottom+100, 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSchemaRejectsNonIntegerCount(t *testing.T) {
	store, db := newTestStore(t)
	ctx := context.Background()
	id, err := store.Chat(7).Create(ctx, "Big", math.MaxInt64)
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, `UPDATE counters SET count = count + 1 WHERE id = ?`, id)
	require.Error(t, err)

	c, err := store.Chat(7).Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), c.Value)
}

func TestSetValue(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	chat := store.Chat(7)

	id, err := chat.Create(ctx, "Books", 0)
	require.NoError(t, err)
	require.NoError(t, chat.SetValue(ctx, id, -12))

	c, err := chat.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(-12), c.Value)
}

func TestDeleteThenNotFound(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	chat := store.Chat(9)

	id, err := chat.Create(ctx, "Gone", 3)
	require.NoError(t, err)
	require.NoError(t, chat.Delete(ctx, id))

	_, err = chat.Get(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = chat.IncrementBy(ctx, id, 1)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, chat.SetValue(ctx, id, 1), ErrNotFound)
	assert.ErrorIs(t, chat.Delete(ctx, id), ErrNotFound)
}

func TestChatsAreIsolated(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	alice, bob := store.Chat(100), store.Chat(200)

	id, err := alice.Create(ctx, "Secret", 1)
	require.NoError(t, err)

	list, err := bob.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = bob.Get(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = bob.IncrementBy(ctx, id, 5)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, bob.SetValue(ctx, id, 0), ErrNotFound)
	assert.ErrorIs(t, bob.Delete(ctx, id), ErrNotFound)

	c, err := alice.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(1), c.Value)
}

func TestStats(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	_, err := store.Chat(1).Create(ctx, "a", 0)
	require.NoError(t, err)
	_, err = store.Chat(1).Create(ctx, "b", 0)
	require.NoError(t, err)
	_, err = store.Chat(2).Create(ctx, "c", 0)
	require.NoError(t, err)

	st, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Counters: 3, Chats: 2}, st)
}

func TestClosedDatabaseIsPersistenceError(t *testing.T) {
	store, db := newTestStore(t)
	require.NoError(t, db.Close())

	_, err := store.Chat(1).List(context.Background())
	var perr *PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "list", perr.Op)
}

func TestMigrationsAreIdempotent(t *testing.T) {
	cfg := coredatabase.Config{Driver: "sqlite3", Path: filepath.Join(t.TempDir(), "m.db")}
	require.NoError(t, cfg.Normalize())
	require.NoError(t, coredatabase.RunMigrations(cfg, Migrations()))
	require.NoError(t, coredatabase.RunMigrations(cfg, Migrations()))
}
