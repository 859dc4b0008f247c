package domain

import (
	"context"
	"time"
)

// PriceProvider supplies daily price history.
// An unknown or delisted ticker yields an empty series rather than an error;
// an error means the provider itself is unavailable.
type PriceProvider interface {
	GetPriceHistory(ctx context.Context, tickers []string, start, end time.Time) (map[string][]PricePoint, error)
}

// ParameterExtractor turns free-form text into request parameters.
// Its output is untrusted and validated by the caller.
type ParameterExtractor interface {
	Extract(ctx context.Context, message string, variant Variant) (*ExtractedParameters, error)
}
