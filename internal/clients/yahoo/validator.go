package yahoo

import (
	"time"

	"github.com/aristath/allocator/internal/domain"
	"github.com/rs/zerolog"
)

const (
	// A close more than 10x (or under 0.1x) both neighbours is a bad tick.
	maxPriceMultiplier = 10.0
	minPriceMultiplier = 0.1
)

// InterpolationLog records when a price was interpolated
type InterpolationLog struct {
	Date              time.Time
	OriginalClose     float64
	InterpolatedClose float64
	Method            string // "linear", "forward_fill", "backward_fill"
	Reason            string
}

// PriceValidator replaces isolated bad ticks in a daily series. A genuine
// level shift moves every following bar too, so only bars that disagree
// with both neighbours are touched.
type PriceValidator struct {
	log zerolog.Logger
}

// NewPriceValidator creates a new price validator
func NewPriceValidator(log zerolog.Logger) *PriceValidator {
	return &PriceValidator{
		log: log.With().Str("component", "price_validator").Logger(),
	}
}

// ValidatePrice checks price against its neighbours. prev and next are
// nil at the ends of the series.
// Returns (isValid, reason)
func (v *PriceValidator) ValidatePrice(price domain.PricePoint, prev, next *domain.PricePoint) (bool, string) {
	if price.Close <= 0 {
		return false, "non_positive"
	}

	spike, crash := true, true
	neighbours := 0
	for _, n := range []*domain.PricePoint{prev, next} {
		if n == nil || n.Close <= 0 {
			continue
		}
		neighbours++
		ratio := price.Close / n.Close
		spike = spike && ratio > maxPriceMultiplier
		crash = crash && ratio < minPriceMultiplier
	}

	// An end point is judged only against one neighbour; a single bar
	// carries no context at all.
	switch {
	case neighbours == 0:
		return true, ""
	case spike:
		return false, "spike_detected"
	case crash:
		return false, "crash_detected"
	}
	return true, ""
}

// InterpolatePrice interpolates an abnormal price using surrounding valid prices
// Returns (interpolatedPrice, method)
func (v *PriceValidator) InterpolatePrice(price domain.PricePoint, before, after *domain.PricePoint) (domain.PricePoint, string) {
	interpolated := price

	if before != nil && after != nil {
		totalDays := after.Date.Sub(before.Date).Hours() / 24.0
		if totalDays > 0 {
			daysBetween := price.Date.Sub(before.Date).Hours() / 24.0
			interpolated.Close = before.Close + (after.Close-before.Close)*(daysBetween/totalDays)
			return interpolated, "linear"
		}
	}
	if before != nil {
		interpolated.Close = before.Close
		return interpolated, "forward_fill"
	}
	if after != nil {
		interpolated.Close = after.Close
		return interpolated, "backward_fill"
	}
	return interpolated, "no_interpolation"
}

// ValidateAndInterpolate validates all prices and interpolates abnormal ones.
// Bars that cannot be repaired are dropped.
func (v *PriceValidator) ValidateAndInterpolate(ticker string, prices []domain.PricePoint) ([]domain.PricePoint, []InterpolationLog) {
	if len(prices) == 0 {
		return prices, nil
	}

	valid := make([]bool, len(prices))
	reasons := make([]string, len(prices))
	for i := range prices {
		var prev, next *domain.PricePoint
		if i > 0 {
			prev = &prices[i-1]
		}
		if i+1 < len(prices) {
			next = &prices[i+1]
		}
		valid[i], reasons[i] = v.ValidatePrice(prices[i], prev, next)
	}

	result := make([]domain.PricePoint, 0, len(prices))
	var logs []InterpolationLog
	for i, price := range prices {
		if valid[i] {
			result = append(result, price)
			continue
		}

		var before, after *domain.PricePoint
		if n := len(result); n > 0 {
			before = &result[n-1]
		}
		for j := i + 1; j < len(prices); j++ {
			if valid[j] {
				after = &prices[j]
				break
			}
		}

		interpolated, method := v.InterpolatePrice(price, before, after)
		if method == "no_interpolation" {
			continue
		}

		logs = append(logs, InterpolationLog{
			Date:              price.Date,
			OriginalClose:     price.Close,
			InterpolatedClose: interpolated.Close,
			Method:            method,
			Reason:            reasons[i],
		})
		v.log.Warn().
			Str("ticker", ticker).
			Time("date", price.Date).
			Float64("original_close", price.Close).
			Float64("interpolated_close", interpolated.Close).
			Str("method", method).
			Str("reason", reasons[i]).
			Msg("Interpolated abnormal price")

		result = append(result, interpolated)
	}

	return result, logs
}
