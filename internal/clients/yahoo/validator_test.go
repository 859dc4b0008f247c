package yahoo

import (
	"testing"
	"time"

	"github.com/aristath/allocator/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func series(closes ...float64) []domain.PricePoint {
	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	out := make([]domain.PricePoint, len(closes))
	for i, c := range closes {
		out[i] = domain.PricePoint{Date: day.AddDate(0, 0, i), Close: c}
	}
	return out
}

func TestValidatePrice(t *testing.T) {
	v := NewPriceValidator(zerolog.Nop())
	p := func(c float64) *domain.PricePoint { return &domain.PricePoint{Close: c} }

	tests := []struct {
		name       string
		price      float64
		prev, next *domain.PricePoint
		valid      bool
		reason     string
	}{
		{"normal move", 105, p(100), p(104), true, ""},
		{"isolated spike", 5000, p(100), p(101), false, "spike_detected"},
		{"isolated crash", 0.5, p(100), p(101), false, "crash_detected"},
		{"level shift kept", 5000, p(100), p(5100), true, ""},
		{"spike at end", 5000, p(100), nil, false, "spike_detected"},
		{"lonely bar", 5000, nil, nil, true, ""},
		{"non positive", 0, p(100), p(101), false, "non_positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, reason := v.ValidatePrice(domain.PricePoint{Close: tt.price}, tt.prev, tt.next)
			assert.Equal(t, tt.valid, ok)
			assert.Equal(t, tt.reason, reason)
		})
	}
}

func TestValidateAndInterpolateLinear(t *testing.T) {
	v := NewPriceValidator(zerolog.Nop())

	out, logs := v.ValidateAndInterpolate("AAA", series(100, 102, 9000, 106, 108))
	require.Len(t, out, 5)
	assert.InDelta(t, 104.0, out[2].Close, 1e-9)
	require.Len(t, logs, 1)
	assert.Equal(t, "linear", logs[0].Method)
	assert.Equal(t, "spike_detected", logs[0].Reason)
	assert.Equal(t, 9000.0, logs[0].OriginalClose)
}

func TestValidateAndInterpolateEnds(t *testing.T) {
	v := NewPriceValidator(zerolog.Nop())

	out, logs := v.ValidateAndInterpolate("AAA", series(0.01, 100, 101, 102, 9999))
	require.Len(t, out, 5)
	assert.Equal(t, 100.0, out[0].Close)
	assert.Equal(t, 102.0, out[4].Close)
	require.Len(t, logs, 2)
	assert.Equal(t, "backward_fill", logs[0].Method)
	assert.Equal(t, "forward_fill", logs[1].Method)
}

func TestValidateAndInterpolateCleanSeriesUntouched(t *testing.T) {
	v := NewPriceValidator(zerolog.Nop())
	in := series(10, 11, 9, 12, 15)

	out, logs := v.ValidateAndInterpolate("AAA", in)
	assert.Equal(t, in, out)
	assert.Empty(t, logs)

	out, logs = v.ValidateAndInterpolate("AAA", nil)
	assert.Empty(t, out)
	assert.Empty(t, logs)
}
