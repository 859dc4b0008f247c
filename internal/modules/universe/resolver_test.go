package universe

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func newTestResolver() *ExclusionResolver {
	return NewExclusionResolver(NewDefaultRegistry(), zerolog.Nop())
}

func TestExclusionResolver_Resolve(t *testing.T) {
	r := newTestResolver()

	testCases := []struct {
		token    string
		expected string
	}{
		{"NVDA", "NVDA"},
		{"nvda", "NVDA"},
		{"nvidia", "NVDA"},
		{"NVIDIA", "NVDA"},
		{"NviDia", "NVDA"},
		{"  Johnson & Johnson ", "JNJ"},
		{"bank of america", "BAC"},
		{"c", "C"},
		{"unknownco", "UNKNOWNCO"},
	}

	for _, tc := range testCases {
		t.Run(tc.token, func(t *testing.T) {
			assert.Equal(t, tc.expected, r.Resolve(tc.token))
		})
	}
}

func TestExclusionResolver_Idempotent(t *testing.T) {
	r := newTestResolver()
	reg := NewDefaultRegistry()

	for _, ticker := range reg.Tickers() {
		assert.Equal(t, ticker, r.Resolve(ticker))
		assert.Equal(t, ticker, r.Resolve(r.Resolve(ticker)))
		assert.Equal(t, r.Resolve(ticker), r.Resolve(reg.NameOf(ticker)))
	}
}

func TestExclusionResolver_ResolveDetailed_Unknown(t *testing.T) {
	r := newTestResolver()

	res := r.ResolveDetailed("Acme Widgets")
	assert.False(t, res.Known)
	assert.Equal(t, "ACME WIDGETS", res.Ticker)
	assert.Equal(t, "Acme Widgets", res.Token)
}

func TestExclusionResolver_Filter(t *testing.T) {
	r := newTestResolver()
	candidates := NewDefaultRegistry().TickersInSector("semiconductor")

	kept, unmatched := r.Filter(candidates, []string{"nvidia", "AMD", "acme", "", "JPM"})

	assert.Len(t, kept, 8)
	assert.NotContains(t, kept, "NVDA")
	assert.NotContains(t, kept, "AMD")
	assert.Equal(t, "TSM", kept[0])
	assert.Equal(t, []string{"acme"}, unmatched)
}
