package optimization

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/aristath/allocator/internal/domain"
	"github.com/rs/zerolog"
)

// ConstraintsManager translates a request's variant and bounds into a
// ConstraintSet and checks it against the candidate assets before any
// solve is attempted.
type ConstraintsManager struct {
	defaults BoundsDefaults
	log      zerolog.Logger
}

// NewConstraintsManager creates a new constraints manager.
func NewConstraintsManager(defaults BoundsDefaults, log zerolog.Logger) *ConstraintsManager {
	return &ConstraintsManager{
		defaults: defaults,
		log:      log.With().Str("component", "constraints").Logger(),
	}
}

// Defaults returns the configured enterprise bounds.
func (cm *ConstraintsManager) Defaults() BoundsDefaults { return cm.defaults }

// BuildConstraints returns the constraint set for variant. The enterprise
// variant starts from the configured defaults; the individual variant only
// carries bounds the request sets explicitly.
func (cm *ConstraintsManager) BuildConstraints(
	variant domain.Variant,
	sectors []string,
	overrides *domain.SectorBounds,
) (ConstraintSet, error) {
	var minSector, maxSector, maxAsset *float64
	if variant == domain.VariantEnterprise {
		d := cm.defaults
		minSector, maxSector, maxAsset = &d.MinSectorAlloc, &d.MaxSectorAlloc, &d.MaxAssetWeight
	}
	if overrides != nil {
		if overrides.MinSectorAlloc != nil {
			minSector = overrides.MinSectorAlloc
		}
		if overrides.MaxSectorAlloc != nil {
			maxSector = overrides.MaxSectorAlloc
		}
		if overrides.MaxAssetWeight != nil {
			maxAsset = overrides.MaxAssetWeight
		}
	}

	if err := validateFraction("max_asset_weight", maxAsset, false); err != nil {
		return ConstraintSet{}, err
	}
	if err := validateFraction("min_sector_alloc", minSector, true); err != nil {
		return ConstraintSet{}, err
	}
	if err := validateFraction("max_sector_alloc", maxSector, false); err != nil {
		return ConstraintSet{}, err
	}

	set := ConstraintSet{}
	if maxAsset != nil {
		v := *maxAsset
		set.MaxAssetWeight = &v
	}
	if minSector != nil || maxSector != nil {
		b := Bound{Min: 0, Max: 1}
		if minSector != nil {
			b.Min = *minSector
		}
		if maxSector != nil {
			b.Max = *maxSector
		}
		set.SectorBounds = make(map[string]Bound, len(sectors))
		for _, s := range sectors {
			set.SectorBounds[strings.ToLower(strings.TrimSpace(s))] = b
		}
	}
	return set, nil
}

func validateFraction(name string, v *float64, allowZero bool) error {
	if v == nil {
		return nil
	}
	bad := math.IsNaN(*v) || *v < 0 || *v > 1 || (!allowZero && *v == 0)
	if bad {
		return domain.NewValidationError(nil, fmt.Sprintf("%s must be within (0, 1], got %g", name, *v)).
			WithDetail(name, *v)
	}
	return nil
}

// IsEmpty reports whether only the base constraints apply.
func (c ConstraintSet) IsEmpty() bool {
	return c.MaxAssetWeight == nil && len(c.SectorBounds) == 0
}

// assetCap returns the per-asset upper bound.
func (c ConstraintSet) assetCap() float64 {
	if c.MaxAssetWeight == nil {
		return 1
	}
	return math.Min(*c.MaxAssetWeight, 1)
}

// sectorGroup is one bounded sector restricted to the candidate assets.
type sectorGroup struct {
	Sector  string
	Members []int
	Bound   Bound
}

// groups returns the bounded sectors that have at least one candidate,
// sorted by name.
func (c ConstraintSet) groups(tickers []string, lookup SectorLookup) []sectorGroup {
	if len(c.SectorBounds) == 0 {
		return nil
	}
	index := make(map[string]*sectorGroup, len(c.SectorBounds))
	for i, t := range tickers {
		s := lookup.SectorOf(t)
		b, ok := c.SectorBounds[s]
		if !ok {
			continue
		}
		g, ok := index[s]
		if !ok {
			g = &sectorGroup{Sector: s, Bound: b}
			index[s] = g
		}
		g.Members = append(g.Members, i)
	}

	out := make([]sectorGroup, 0, len(index))
	for _, g := range index {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sector < out[j].Sector })
	return out
}

// CheckFeasibility decides exactly whether the constraint set admits a
// fully-invested long-only portfolio over tickers. Sector groups are
// disjoint, so the problem is feasible iff every group's achievable range
// is non-empty and the ranges (plus unconstrained capacity) bracket 1.
// The returned error lists every conflict found.
func (c ConstraintSet) CheckFeasibility(tickers []string, lookup SectorLookup) error {
	n := len(tickers)
	assetCap := c.assetCap()
	var conflicts []string
	details := map[string]any{}

	if float64(n)*assetCap < 1-feasibilityTol {
		conflicts = append(conflicts, fmt.Sprintf(
			"max asset weight %.4g across %d assets cannot reach full investment", assetCap, n))
		details["max_asset_weight"] = assetCap
		details["assets"] = n
	}

	groups := c.groups(tickers, lookup)
	sumLo, sumHi := 0.0, 0.0
	grouped := 0
	sectorDetails := make([]map[string]any, 0, len(groups))
	for _, g := range groups {
		capacity := float64(len(g.Members)) * assetCap
		lo := g.Bound.Min
		hi := math.Min(math.Min(g.Bound.Max, capacity), 1)
		grouped += len(g.Members)
		sumLo += lo
		sumHi += hi
		sectorDetails = append(sectorDetails, map[string]any{
			"sector":   g.Sector,
			"assets":   len(g.Members),
			"min":      g.Bound.Min,
			"max":      g.Bound.Max,
			"capacity": capacity,
		})
		if lo > hi+feasibilityTol {
			conflicts = append(conflicts, fmt.Sprintf(
				"sector %s needs at least %.4g but can hold at most %.4g", g.Sector, lo, hi))
		}
	}

	free := float64(n-grouped) * assetCap
	if sumLo > 1+feasibilityTol {
		conflicts = append(conflicts, fmt.Sprintf("sector minimums sum to %.4g, above 1", sumLo))
	}
	if len(groups) > 0 && sumHi+free < 1-feasibilityTol {
		conflicts = append(conflicts, fmt.Sprintf(
			"sector maximums and asset caps allow at most %.4g of capital to be invested", sumHi+free))
	}

	if len(conflicts) == 0 {
		return nil
	}
	err := domain.NewInfeasibleError(strings.Join(conflicts, "; "))
	for k, v := range details {
		err.WithDetail(k, v)
	}
	if len(sectorDetails) > 0 {
		err.WithDetail("sectors", sectorDetails)
	}
	return err.WithDetail("conflicts", conflicts)
}

const feasibilityTol = 1e-9

// QPRows lays out the constraint matrix rows as (coefficients, lower, upper):
// the budget row, one box row per asset and one row per bounded sector.
func (c ConstraintSet) QPRows(tickers []string, lookup SectorLookup) (rows [][]float64, lower, upper []float64) {
	n := len(tickers)
	budget := make([]float64, n)
	for i := range budget {
		budget[i] = 1
	}
	rows = append(rows, budget)
	lower = append(lower, 1)
	upper = append(upper, 1)

	assetCap := c.assetCap()
	for i := 0; i < n; i++ {
		row := make([]float64, n)
		row[i] = 1
		rows = append(rows, row)
		lower = append(lower, 0)
		upper = append(upper, assetCap)
	}

	for _, g := range c.groups(tickers, lookup) {
		row := make([]float64, n)
		for _, i := range g.Members {
			row[i] = 1
		}
		rows = append(rows, row)
		lower = append(lower, g.Bound.Min)
		upper = append(upper, math.Min(g.Bound.Max, 1))
	}
	return rows, lower, upper
}

// Summary renders the set for logs and responses.
func (c ConstraintSet) Summary() map[string]any {
	out := map[string]any{}
	if c.MaxAssetWeight != nil {
		out["max_asset_weight"] = *c.MaxAssetWeight
	}
	if len(c.SectorBounds) > 0 {
		out["sector_bounds"] = c.SectorBounds
	}
	return out
}
