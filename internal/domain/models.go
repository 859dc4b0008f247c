// Package domain provides core domain models and types.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// UnknownLabel is returned by universe lookups that miss.
const UnknownLabel = "unknown"

// AssetRecord is one entry of the investable universe.
type AssetRecord struct {
	Ticker     string `json:"ticker"`
	IssuerName string `json:"issuer_name"`
	Sector     string `json:"sector"`
}

// RiskLevel is the ordinal risk tolerance of a request.
type RiskLevel int

const (
	RiskVeryLow RiskLevel = iota + 1
	RiskLow
	RiskModerate
	RiskHigh
	RiskVeryHigh
)

// AllRiskLevels lists the scale from most to least risk averse.
var AllRiskLevels = []RiskLevel{RiskVeryLow, RiskLow, RiskModerate, RiskHigh, RiskVeryHigh}

var riskLevelNames = map[RiskLevel]string{
	RiskVeryLow:  "very low",
	RiskLow:      "low",
	RiskModerate: "moderate",
	RiskHigh:     "high",
	RiskVeryHigh: "very high",
}

// riskAversion maps a risk level to the variance penalty of the objective.
var riskAversion = map[RiskLevel]float64{
	RiskVeryLow:  10,
	RiskLow:      8,
	RiskModerate: 6,
	RiskHigh:     4,
	RiskVeryHigh: 2,
}

// ParseRiskLevel accepts "very low", "very-low", "very_low" and "VeryLow" style tokens.
func ParseRiskLevel(token string) (RiskLevel, error) {
	key := strings.ToLower(strings.TrimSpace(token))
	key = strings.NewReplacer("-", " ", "_", " ").Replace(key)
	key = strings.Join(strings.Fields(key), " ")
	if key == "verylow" {
		key = "very low"
	}
	if key == "veryhigh" {
		key = "very high"
	}
	for level, name := range riskLevelNames {
		if name == key {
			return level, nil
		}
	}
	return 0, NewValidationError(ErrInvalidRiskLevel,
		fmt.Sprintf("invalid risk level %q: use one of very low, low, moderate, high, very high", token))
}

// String returns the canonical name ("very low" ... "very high").
func (r RiskLevel) String() string {
	if name, ok := riskLevelNames[r]; ok {
		return name
	}
	return fmt.Sprintf("RiskLevel(%d)", int(r))
}

// Valid reports whether r is on the five-point scale.
func (r RiskLevel) Valid() bool {
	_, ok := riskLevelNames[r]
	return ok
}

// RiskAversion returns the gamma coefficient for r.
func (r RiskLevel) RiskAversion() (float64, error) {
	gamma, ok := riskAversion[r]
	if !ok {
		return 0, NewValidationError(ErrInvalidRiskLevel, fmt.Sprintf("invalid risk level %d", int(r)))
	}
	return gamma, nil
}

// MarshalText implements encoding.TextMarshaler.
func (r RiskLevel) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("invalid risk level %d", int(r))
	}
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *RiskLevel) UnmarshalText(text []byte) error {
	level, err := ParseRiskLevel(string(text))
	if err != nil {
		return err
	}
	*r = level
	return nil
}

// Variant selects the constraint profile of a portfolio request.
type Variant string

const (
	// VariantIndividual applies only the fully-invested and long-only constraints.
	VariantIndividual Variant = "individual"
	// VariantEnterprise adds per-asset and per-sector bounds.
	VariantEnterprise Variant = "enterprise"
)

// SectorBounds overrides the enterprise diversification bounds.
// Nil fields keep the configured defaults.
type SectorBounds struct {
	MinSectorAlloc *float64 `json:"min_sector_alloc,omitempty"`
	MaxSectorAlloc *float64 `json:"max_sector_alloc,omitempty"`
	MaxAssetWeight *float64 `json:"max_asset_weight,omitempty"`
}

// PortfolioRequest is one allocation request.
type PortfolioRequest struct {
	Variant    Variant       `json:"variant"`
	Sectors    []string      `json:"sectors"`
	RiskLevel  RiskLevel     `json:"risk_level"`
	Capital    float64       `json:"capital"`
	Exclusions []string      `json:"exclude,omitempty"`
	Bounds     *SectorBounds `json:"bounds,omitempty"`
}

// PricePoint is a single daily close.
type PricePoint struct {
	Date  time.Time `json:"date" msgpack:"d"`
	Close float64   `json:"close" msgpack:"c"`
}

// AllocationEntry is one line of the allocation report.
type AllocationEntry struct {
	Ticker        string  `json:"ticker"`
	Weight        float64 `json:"weight"`
	CapitalAmount float64 `json:"capital"`
	Sector        string  `json:"sector"`
	IssuerName    string  `json:"company_name"`
}

// PortfolioResponse is returned to the API layer.
type PortfolioResponse struct {
	RunID                    string            `json:"run_id"`
	Variant                  Variant           `json:"variant"`
	Sectors                  []string          `json:"sectors"`
	RiskLevel                string            `json:"risk_level"`
	TotalCapital             float64           `json:"total_capital"`
	ExpectedAnnualReturn     float64           `json:"expected_annual_return"`
	ExpectedAnnualVolatility float64           `json:"expected_annual_volatility"`
	StockAllocations         []AllocationEntry `json:"stock_allocations"`
	DroppedTickers           []string          `json:"dropped_tickers"`
	UnmatchedExclusions      []string          `json:"unmatched_exclusions"`
}

// ExtractedParameters is the raw output of a ParameterExtractor.
// Fields are pointers or nil slices so missing values can be detected.
type ExtractedParameters struct {
	Sectors   []string `json:"sectors"`
	RiskLevel *string  `json:"risk_level"`
	Capital   *float64 `json:"capital"`
	Exclude   []string `json:"exclude"`
}

// ChatResponse wraps a portfolio generated from free-form text.
type ChatResponse struct {
	Capital   float64            `json:"capital"`
	RiskLevel string             `json:"risk_level"`
	Sectors   []string           `json:"sectors"`
	Exclude   []string           `json:"exclude"`
	Portfolio *PortfolioResponse `json:"portfolio"`
}
