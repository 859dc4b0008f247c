// Package universe provides the static catalog of investable assets and
// the resolution of free-form exclusion tokens against it.
package universe

import (
	"fmt"
	"strings"

	"github.com/aristath/allocator/internal/domain"
)

// Registry is an immutable sector/ticker/issuer index. It is built once at
// startup and shared by reference; no method mutates it.
type Registry struct {
	records  []domain.AssetRecord
	byTicker map[string]domain.AssetRecord
	byName   map[string]string   // lowercase issuer name -> ticker
	bySector map[string][]string // normalized sector -> tickers in catalog order
	sectors  []string            // catalog order
}

// NewRegistry indexes records. Tickers are canonicalized to uppercase and
// sector names to lowercase; duplicate tickers are rejected.
func NewRegistry(records []domain.AssetRecord) (*Registry, error) {
	r := &Registry{
		records:  make([]domain.AssetRecord, 0, len(records)),
		byTicker: make(map[string]domain.AssetRecord, len(records)),
		byName:   make(map[string]string, len(records)),
		bySector: make(map[string][]string),
	}

	for i, rec := range records {
		ticker := strings.ToUpper(strings.TrimSpace(rec.Ticker))
		sector := NormalizeSector(rec.Sector)
		if ticker == "" {
			return nil, fmt.Errorf("record %d: empty ticker", i)
		}
		if sector == "" {
			return nil, fmt.Errorf("record %d (%s): empty sector", i, ticker)
		}
		if _, dup := r.byTicker[ticker]; dup {
			return nil, fmt.Errorf("duplicate ticker %s", ticker)
		}

		canonical := domain.AssetRecord{
			Ticker:     ticker,
			IssuerName: strings.TrimSpace(rec.IssuerName),
			Sector:     sector,
		}
		r.records = append(r.records, canonical)
		r.byTicker[ticker] = canonical
		if name := strings.ToLower(canonical.IssuerName); name != "" {
			if _, taken := r.byName[name]; !taken {
				r.byName[name] = ticker
			}
		}
		if _, seen := r.bySector[sector]; !seen {
			r.sectors = append(r.sectors, sector)
		}
		r.bySector[sector] = append(r.bySector[sector], ticker)
	}

	return r, nil
}

// MustNewRegistry is NewRegistry for static catalogs; it panics on error.
func MustNewRegistry(records []domain.AssetRecord) *Registry {
	r, err := NewRegistry(records)
	if err != nil {
		panic(err)
	}
	return r
}

// NormalizeSector lowercases and trims a sector name.
func NormalizeSector(sector string) string {
	return strings.ToLower(strings.TrimSpace(sector))
}

// Sectors returns every sector in catalog order.
func (r *Registry) Sectors() []string {
	return append([]string(nil), r.sectors...)
}

// HasSector reports whether sector is known, ignoring case and whitespace.
func (r *Registry) HasSector(sector string) bool {
	_, ok := r.bySector[NormalizeSector(sector)]
	return ok
}

// TickersInSector returns the sector's tickers in catalog order, or an empty
// slice for an unknown sector.
func (r *Registry) TickersInSector(sector string) []string {
	return append([]string{}, r.bySector[NormalizeSector(sector)]...)
}

// SectorOf returns the ticker's sector or "unknown".
func (r *Registry) SectorOf(ticker string) string {
	if rec, ok := r.Lookup(ticker); ok {
		return rec.Sector
	}
	return domain.UnknownLabel
}

// NameOf returns the ticker's issuer name or "unknown".
func (r *Registry) NameOf(ticker string) string {
	if rec, ok := r.Lookup(ticker); ok && rec.IssuerName != "" {
		return rec.IssuerName
	}
	return domain.UnknownLabel
}

// Lookup returns the record for ticker (case-insensitive).
func (r *Registry) Lookup(ticker string) (domain.AssetRecord, bool) {
	rec, ok := r.byTicker[strings.ToUpper(strings.TrimSpace(ticker))]
	return rec, ok
}

// Tickers returns every ticker in catalog order.
func (r *Registry) Tickers() []string {
	out := make([]string, len(r.records))
	for i, rec := range r.records {
		out[i] = rec.Ticker
	}
	return out
}

// Records returns a copy of the catalog.
func (r *Registry) Records() []domain.AssetRecord {
	return append([]domain.AssetRecord(nil), r.records...)
}

// Candidates expands a sector selection into tickers. Sectors are
// normalized and deduplicated keeping first-seen order; unknown sectors are
// returned separately so the caller can reject them.
func (r *Registry) Candidates(sectors []string) (selected []string, tickers []string, unknown []string) {
	seen := make(map[string]bool, len(sectors))
	for _, s := range sectors {
		norm := NormalizeSector(s)
		if norm == "" || seen[norm] {
			continue
		}
		seen[norm] = true
		members, ok := r.bySector[norm]
		if !ok {
			unknown = append(unknown, strings.TrimSpace(s))
			continue
		}
		selected = append(selected, norm)
		tickers = append(tickers, members...)
	}
	return selected, tickers, unknown
}

func (r *Registry) tickerForName(name string) (string, bool) {
	t, ok := r.byName[strings.ToLower(strings.TrimSpace(name))]
	return t, ok
}
