package universe

import (
	"strings"

	"github.com/rs/zerolog"
)

// Resolution is the outcome of resolving one exclusion token.
type Resolution struct {
	Token  string `json:"token"`
	Ticker string `json:"ticker"`
	Known  bool   `json:"known"` // Ticker is present in the registry
}

// ExclusionResolver maps free-form exclusion tokens (ticker or issuer name,
// any casing) to canonical tickers.
type ExclusionResolver struct {
	registry *Registry
	log      zerolog.Logger
}

// NewExclusionResolver creates a resolver over registry.
func NewExclusionResolver(registry *Registry, log zerolog.Logger) *ExclusionResolver {
	return &ExclusionResolver{
		registry: registry,
		log:      log.With().Str("component", "exclusion_resolver").Logger(),
	}
}

// Resolve returns the canonical ticker for token. Ticker matches win over
// issuer-name matches; a total miss returns the uppercased token.
func (r *ExclusionResolver) Resolve(token string) string {
	return r.ResolveDetailed(token).Ticker
}

// ResolveDetailed is Resolve plus whether the result exists in the registry.
func (r *ExclusionResolver) ResolveDetailed(token string) Resolution {
	trimmed := strings.TrimSpace(token)
	upper := strings.ToUpper(trimmed)

	if _, ok := r.registry.Lookup(upper); ok {
		return Resolution{Token: token, Ticker: upper, Known: true}
	}
	if ticker, ok := r.registry.tickerForName(trimmed); ok {
		return Resolution{Token: token, Ticker: ticker, Known: true}
	}

	r.log.Debug().Str("token", token).Msg("Exclusion token matched no ticker or issuer")
	return Resolution{Token: token, Ticker: upper}
}

// Filter removes every resolved exclusion from candidates, keeping order.
// Tokens that resolve to nothing in the registry are returned as unmatched.
func (r *ExclusionResolver) Filter(candidates []string, tokens []string) (kept []string, unmatched []string) {
	excluded := make(map[string]bool, len(tokens))
	for _, tok := range tokens {
		if strings.TrimSpace(tok) == "" {
			continue
		}
		res := r.ResolveDetailed(tok)
		if !res.Known {
			unmatched = append(unmatched, tok)
			continue
		}
		excluded[res.Ticker] = true
	}

	kept = make([]string, 0, len(candidates))
	for _, t := range candidates {
		if !excluded[t] {
			kept = append(kept, t)
		}
	}
	return kept, unmatched
}
