package clientdata

import "time"

// TTL constants for cached provider data.
// These are added to time.Now() when storing to calculate expires_at.
const (
	// TTLPriceHistory covers daily bars; they only change once per session.
	TTLPriceHistory = 12 * time.Hour
)
