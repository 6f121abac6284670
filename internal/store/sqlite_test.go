package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/trustfeed/internal/config"
	"github.com/sells-group/trustfeed/internal/model"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func newsItem(title string, score int) model.NewNews {
	return model.NewNews{
		Title:       title,
		Description: "about " + title,
		Author:      config.DefaultAuthor,
		TrustScore:  score,
	}
}

func TestSQLite_MigrateIsIdempotent(t *testing.T) {
	s := newTestSQLite(t)
	require.NoError(t, s.Migrate(context.Background()))
	require.NoError(t, s.Ping(context.Background()))
}

func TestSQLite_CreateAndGetNews(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	created, err := s.CreateNews(ctx, newsItem("A", 82))
	require.NoError(t, err)
	_, err = uuid.Parse(created.ID)
	require.NoError(t, err)
	assert.Equal(t, 82, created.TrustScore)
	assert.Equal(t, 0, created.MintPrice)
	assert.Equal(t, config.DefaultAuthor, created.Author)

	got, err := s.GetNews(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "A", got.Title)
	assert.Equal(t, "about A", got.Description)
	assert.Equal(t, 82, got.TrustScore)
	assert.WithinDuration(t, created.CreatedAt, got.CreatedAt, time.Second)
}

func TestSQLite_CreateNewsAssignsFreshIDs(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	a, err := s.CreateNews(ctx, newsItem("Same", 90))
	require.NoError(t, err)
	b, err := s.CreateNews(ctx, newsItem("Same", 90))
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestSQLite_GetNewsNotFound(t *testing.T) {
	s := newTestSQLite(t)
	_, err := s.GetNews(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_CreateNewsFailureLeavesNoRow(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	// The CHECK constraint rejects the row.
	_, err := s.CreateNews(ctx, newsItem("Bad", 101))
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrPersistence)

	list, err := s.ListNews(ctx, NewsFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestSQLite_CreateNewsOnClosedDB(t *testing.T) {
	s, err := NewSQLite(filepath.Join(t.TempDir(), "closed.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	require.NoError(t, s.Close())

	_, err = s.CreateNews(context.Background(), newsItem("A", 80))
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrPersistence)
}

func TestSQLite_ListNewsFilters(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	for _, n := range []model.NewNews{
		newsItem("Markets rally", 82),
		newsItem("Storm nears coast", 71),
		newsItem("Market dips", 95),
	} {
		_, err := s.CreateNews(ctx, n)
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
	}

	all, err := s.ListNews(ctx, NewsFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "Market dips", all[0].Title, "newest first")

	high, err := s.ListNews(ctx, NewsFilter{MinTrustScore: 80})
	require.NoError(t, err)
	assert.Len(t, high, 2)

	market, err := s.ListNews(ctx, NewsFilter{TitleContains: "MARKET"})
	require.NoError(t, err)
	assert.Len(t, market, 2)

	page, err := s.ListNews(ctx, NewsFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "Storm nears coast", page[0].Title)

	future := time.Now().Add(time.Hour)
	none, err := s.ListNews(ctx, NewsFilter{Since: &future})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSQLite_Stats(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	start := time.Now().Add(-time.Minute)

	empty, err := s.Stats(ctx, start)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Total)
	assert.Zero(t, empty.AverageTrustScore)

	for _, score := range []int{70, 80, 90} {
		_, err := s.CreateNews(ctx, newsItem("n", score))
		require.NoError(t, err)
	}

	st, err := s.Stats(ctx, start)
	require.NoError(t, err)
	assert.Equal(t, 3, st.Total)
	assert.InDelta(t, 80.0, st.AverageTrustScore, 0.001)
	assert.Equal(t, 70, st.MinTrustScore)
	assert.Equal(t, 90, st.MaxTrustScore)
}

func TestNew_Drivers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "factory.db")
	s, err := New(context.Background(), config.StoreConfig{Driver: "sqlite", DatabaseURL: path})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = New(context.Background(), config.StoreConfig{Driver: "mysql"})
	assert.ErrorContains(t, err, "unknown driver")
}
