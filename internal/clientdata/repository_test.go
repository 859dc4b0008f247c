package clientdata

import (
	"database/sql"
	"testing"
	"time"

	"github.com/aristath/allocator/internal/domain"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSchema = `
CREATE TABLE price_history (cache_key TEXT PRIMARY KEY, data BLOB NOT NULL, expires_at INTEGER NOT NULL);
CREATE INDEX idx_price_history_expires ON price_history(expires_at);
`

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	_, err = db.Exec(testSchema)
	require.NoError(t, err)

	return db
}

func samplePoints() []domain.PricePoint {
	day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	return []domain.PricePoint{
		{Date: day, Close: 101.5},
		{Date: day.AddDate(0, 0, 1), Close: 102.25},
	}
}

func TestPriceKey(t *testing.T) {
	start := time.Date(2020, 1, 2, 15, 30, 0, 0, time.UTC)
	end := time.Date(2025, 1, 2, 9, 0, 0, 0, time.UTC)

	assert.Equal(t, "NVDA|2020-01-02|2025-01-02", PriceKey("nvda", start, end))
	assert.Equal(t, PriceKey("NVDA", start, end), PriceKey("NVDA", start.Add(time.Hour), end.Add(time.Hour)))
}

func TestStoreAndGetIfFresh(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewRepository(db)
	require.NoError(t, repo.Store("AAPL|a|b", samplePoints(), time.Hour))

	var got []domain.PricePoint
	ok, err := repo.GetIfFresh("AAPL|a|b", &got)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, got, 2)
	assert.True(t, got[0].Date.Equal(samplePoints()[0].Date))
	assert.Equal(t, 102.25, got[1].Close)
}

func TestGetIfFreshMissing(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	var got []domain.PricePoint
	ok, err := NewRepository(db).GetIfFresh("missing", &got)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestStaleEntryOnlyVisibleThroughGet(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewRepository(db)
	require.NoError(t, repo.Store("MSFT|a|b", samplePoints(), -time.Minute))

	var fresh []domain.PricePoint
	ok, err := repo.GetIfFresh("MSFT|a|b", &fresh)
	require.NoError(t, err)
	assert.False(t, ok)

	var stale []domain.PricePoint
	ok, err = repo.Get("MSFT|a|b", &stale)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Len(t, stale, 2)
}

func TestStoreReplaces(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewRepository(db)
	require.NoError(t, repo.Store("k", samplePoints(), time.Hour))
	require.NoError(t, repo.Store("k", samplePoints()[:1], time.Hour))

	var got []domain.PricePoint
	ok, err := repo.Get("k", &got)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, got, 1)

	n, err := repo.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestGetCorruptEntry(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	_, err := db.Exec("INSERT INTO price_history (cache_key, data, expires_at) VALUES (?, ?, ?)",
		"bad", []byte{0xc1}, time.Now().Add(time.Hour).Unix())
	require.NoError(t, err)

	var got []domain.PricePoint
	ok, err := NewRepository(db).Get("bad", &got)
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestDeleteAndDeleteExpired(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewRepository(db)
	require.NoError(t, repo.Store("fresh", samplePoints(), time.Hour))
	require.NoError(t, repo.Store("old-1", samplePoints(), -time.Hour))
	require.NoError(t, repo.Store("old-2", samplePoints(), -time.Hour))

	deleted, err := repo.DeleteExpired()
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	require.NoError(t, repo.Delete("fresh"))
	n, err := repo.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}
