// Package clientdata provides persistent caching for external API client responses.
// Values are stored as msgpack blobs with expiration timestamps for cache-first behavior.
package clientdata

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// PriceHistoryTable holds daily price series keyed by PriceKey.
const PriceHistoryTable = "price_history"

// Repository provides cache operations for client data.
type Repository struct {
	db  *sql.DB
	now func() time.Time
}

// NewRepository creates a new client data repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

// PriceKey builds the cache key of a ticker's daily series over [start, end].
// Only the calendar days matter, so repeated requests on the same day share
// one entry.
func PriceKey(ticker string, start, end time.Time) string {
	return strings.ToUpper(ticker) + "|" + start.UTC().Format("2006-01-02") + "|" + end.UTC().Format("2006-01-02")
}

// Store saves value with expiration = now + ttl, replacing any previous entry.
func (r *Repository) Store(key string, value any, ttl time.Duration) error {
	data, err := msgpack.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	expiresAt := r.now().Add(ttl).Unix()
	_, err = r.db.Exec(
		"INSERT OR REPLACE INTO price_history (cache_key, data, expires_at) VALUES (?, ?, ?)",
		key, data, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to store data in %s: %w", PriceHistoryTable, err)
	}
	return nil
}

// GetIfFresh decodes the entry into dst only if it has not expired.
// It reports false if the key is missing or stale.
func (r *Repository) GetIfFresh(key string, dst any) (bool, error) {
	return r.get(key, dst, true)
}

// Get decodes the entry into dst regardless of expiration status.
// Use this as a fallback when API calls fail - stale data is better than no data.
func (r *Repository) Get(key string, dst any) (bool, error) {
	return r.get(key, dst, false)
}

func (r *Repository) get(key string, dst any, freshOnly bool) (bool, error) {
	query := "SELECT data FROM price_history WHERE cache_key = ?"
	args := []any{key}
	if freshOnly {
		query += " AND expires_at > ?"
		args = append(args, r.now().Unix())
	}

	var data []byte
	err := r.db.QueryRow(query, args...).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get data from %s: %w", PriceHistoryTable, err)
	}

	if err := msgpack.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("failed to decode cached %s: %w", key, err)
	}
	return true, nil
}

// Delete removes a specific entry.
func (r *Repository) Delete(key string) error {
	if _, err := r.db.Exec("DELETE FROM price_history WHERE cache_key = ?", key); err != nil {
		return fmt.Errorf("failed to delete from %s: %w", PriceHistoryTable, err)
	}
	return nil
}

// DeleteExpired removes all rows where expires_at < now.
// Returns the number of rows deleted.
func (r *Repository) DeleteExpired() (int64, error) {
	result, err := r.db.Exec("DELETE FROM price_history WHERE expires_at < ?", r.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired from %s: %w", PriceHistoryTable, err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected for %s: %w", PriceHistoryTable, err)
	}
	return deleted, nil
}

// Count returns the number of cached entries, fresh or not.
func (r *Repository) Count() (int64, error) {
	var n int64
	if err := r.db.QueryRow("SELECT COUNT(*) FROM price_history").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", PriceHistoryTable, err)
	}
	return n, nil
}
