package optimization

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/aristath/allocator/internal/domain"
	"github.com/aristath/allocator/internal/modules/universe"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fourYears = 4 * TradingDaysPerYear

func scenarioRegistry(t *testing.T) *universe.Registry {
	reg, err := universe.NewRegistry([]domain.AssetRecord{
		{Ticker: "AAA", IssuerName: "Alpha Corp", Sector: "X"},
		{Ticker: "BBB", IssuerName: "Beta Corp", Sector: "X"},
		{Ticker: "CCC", IssuerName: "Gamma Corp", Sector: "Y"},
	})
	require.NoError(t, err)
	return reg
}

// scenarioPrices gives AAA a higher drift and a quarter of the swing of
// BBB and CCC.
func scenarioPrices() *stubPrices {
	return &stubPrices{series: map[string][]domain.PricePoint{
		"AAA": deterministicSeries(fourYears, 0.001, 0.004, 0.7, 0),
		"BBB": deterministicSeries(fourYears, 0.0002, 0.015, 1.3, 1),
		"CCC": deterministicSeries(fourYears, 0.0001, 0.015, 2.1, 0.5),
	}}
}

// countingRunner records how many jobs went through it.
type countingRunner struct{ jobs int }

func (r *countingRunner) Run(ctx context.Context, name string, job func(ctx context.Context) error) error {
	r.jobs++
	return job(ctx)
}

// stubExtractor returns canned parameters.
type stubExtractor struct {
	params  *domain.ExtractedParameters
	err     error
	variant domain.Variant
}

func (s *stubExtractor) Extract(ctx context.Context, message string, variant domain.Variant) (*domain.ExtractedParameters, error) {
	s.variant = variant
	return s.params, s.err
}

func newTestService(reg *universe.Registry, prices domain.PriceProvider, extractor domain.ParameterExtractor, runner JobRunner) *PortfolioService {
	svc := NewPortfolioService(reg, prices, extractor, runner, ServiceConfig{
		LookbackYears: 5,
		Bounds:        DefaultBounds(),
		Solver:        DefaultQPSettings(),
	}, zerolog.Nop())
	svc.now = func() time.Time { return time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC) }
	return svc
}

func TestPortfolioService_DominantAssetGetsMostCapital(t *testing.T) {
	runner := &countingRunner{}
	svc := newTestService(scenarioRegistry(t), scenarioPrices(), nil, runner)

	resp, err := svc.Generate(context.Background(), domain.PortfolioRequest{
		Sectors:   []string{"x", "Y"},
		RiskLevel: domain.RiskVeryHigh,
		Capital:   100000,
	})
	require.NoError(t, err)

	capital := map[string]float64{}
	total := 0.0
	for _, e := range resp.StockAllocations {
		capital[e.Ticker] = e.CapitalAmount
		total += e.Weight
	}
	assert.Greater(t, capital["AAA"], capital["BBB"])
	assert.Greater(t, capital["AAA"], capital["CCC"])
	assert.Equal(t, "AAA", resp.StockAllocations[0].Ticker)
	assert.Equal(t, "Alpha Corp", resp.StockAllocations[0].IssuerName)
	assert.Equal(t, "x", resp.StockAllocations[0].Sector)
	assert.InDelta(t, 1.0, total, 1e-3)

	assert.Equal(t, domain.VariantIndividual, resp.Variant)
	assert.Equal(t, []string{"x", "y"}, resp.Sectors)
	assert.Equal(t, "very high", resp.RiskLevel)
	assert.Equal(t, 100000.0, resp.TotalCapital)
	assert.Greater(t, resp.ExpectedAnnualReturn, 0.0)
	assert.GreaterOrEqual(t, resp.ExpectedAnnualVolatility, 0.0)
	assert.Empty(t, resp.DroppedTickers)
	assert.Empty(t, resp.UnmatchedExclusions)
	_, err = uuid.Parse(resp.RunID)
	assert.NoError(t, err)
	assert.Equal(t, 1, runner.jobs)
}

func TestPortfolioService_EnterpriseBounds(t *testing.T) {
	var records []domain.AssetRecord
	prices := &stubPrices{series: map[string][]domain.PricePoint{}}
	for i := 0; i < 12; i++ {
		ticker := fmt.Sprintf("T%02d", i)
		records = append(records, domain.AssetRecord{Ticker: ticker, IssuerName: ticker + " Inc", Sector: string(rune('a' + i/4))})
		prices.series[ticker] = deterministicSeries(600, 0.0002+0.0001*float64(i), 0.01+0.001*float64(i), 0.5+0.37*float64(i), 0.3*float64(i))
	}
	reg, err := universe.NewRegistry(records)
	require.NoError(t, err)
	svc := newTestService(reg, prices, nil, nil)

	for _, level := range domain.AllRiskLevels {
		t.Run(level.String(), func(t *testing.T) {
			resp, err := svc.Generate(context.Background(), domain.PortfolioRequest{
				Variant:   domain.VariantEnterprise,
				Sectors:   []string{"a", "b", "c"},
				RiskLevel: level,
				Capital:   1_000_000,
			})
			require.NoError(t, err)

			bySector := map[string]float64{}
			for _, e := range resp.StockAllocations {
				assert.LessOrEqual(t, e.Weight, 0.15+1e-4)
				bySector[e.Sector] += e.Weight
			}
			for s, w := range bySector {
				assert.GreaterOrEqual(t, w, 0.05-1e-3, s)
				assert.LessOrEqual(t, w, 0.40+1e-3, s)
			}
		})
	}
}

func TestPortfolioService_InfeasibleSectorMinimums(t *testing.T) {
	var records []domain.AssetRecord
	prices := &stubPrices{series: map[string][]domain.PricePoint{}}
	var sectors []string
	for s := 0; s < 5; s++ {
		sector := fmt.Sprintf("s%d", s)
		sectors = append(sectors, sector)
		for k := 0; k < 2; k++ {
			i := s*2 + k
			ticker := fmt.Sprintf("T%02d", i)
			records = append(records, domain.AssetRecord{Ticker: ticker, IssuerName: ticker, Sector: sector})
			prices.series[ticker] = deterministicSeries(300, 0.0003, 0.01, 0.4+0.41*float64(i), float64(i))
		}
	}
	reg, err := universe.NewRegistry(records)
	require.NoError(t, err)
	svc := newTestService(reg, prices, nil, nil)

	minSector := 0.25
	_, err = svc.Generate(context.Background(), domain.PortfolioRequest{
		Variant:   domain.VariantEnterprise,
		Sectors:   sectors,
		RiskLevel: domain.RiskModerate,
		Capital:   50000,
		Bounds:    &domain.SectorBounds{MinSectorAlloc: &minSector},
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInfeasibleConstraints)
	assert.Equal(t, 422, domain.HTTPStatus(err))
}

func TestPortfolioService_NoPriceHistory(t *testing.T) {
	svc := newTestService(scenarioRegistry(t), &stubPrices{}, nil, nil)

	_, err := svc.Generate(context.Background(), domain.PortfolioRequest{
		Sectors:   []string{"x", "y"},
		RiskLevel: domain.RiskModerate,
		Capital:   1000,
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDataInsufficient)
}

func TestPortfolioService_DropsTickersWithoutHistory(t *testing.T) {
	prices := scenarioPrices()
	delete(prices.series, "CCC")
	svc := newTestService(scenarioRegistry(t), prices, nil, nil)

	resp, err := svc.Generate(context.Background(), domain.PortfolioRequest{
		Sectors:   []string{"x", "y"},
		RiskLevel: domain.RiskModerate,
		Capital:   1000,
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"CCC"}, resp.DroppedTickers)
	assert.Len(t, resp.StockAllocations, 2)
}

func TestPortfolioService_Exclusions(t *testing.T) {
	prices := scenarioPrices()
	svc := newTestService(scenarioRegistry(t), prices, nil, nil)

	resp, err := svc.Generate(context.Background(), domain.PortfolioRequest{
		Sectors:    []string{"x", "y"},
		RiskLevel:  domain.RiskModerate,
		Capital:    1000,
		Exclusions: []string{"alpha corp", "zzz"},
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"BBB", "CCC"}, prices.requested)
	assert.Equal(t, []string{"zzz"}, resp.UnmatchedExclusions)
	for _, e := range resp.StockAllocations {
		assert.NotEqual(t, "AAA", e.Ticker)
	}
}

func TestPortfolioService_ValidationErrors(t *testing.T) {
	svc := newTestService(scenarioRegistry(t), scenarioPrices(), nil, nil)

	testCases := []struct {
		name string
		req  domain.PortfolioRequest
	}{
		{"unknown sector", domain.PortfolioRequest{Sectors: []string{"x", "crypto"}, RiskLevel: domain.RiskLow, Capital: 10}},
		{"no sectors", domain.PortfolioRequest{RiskLevel: domain.RiskLow, Capital: 10}},
		{"zero capital", domain.PortfolioRequest{Sectors: []string{"x"}, RiskLevel: domain.RiskLow}},
		{"missing risk level", domain.PortfolioRequest{Sectors: []string{"x"}, Capital: 10}},
		{"unknown variant", domain.PortfolioRequest{Variant: "hedge", Sectors: []string{"x"}, RiskLevel: domain.RiskLow, Capital: 10}},
		{"everything excluded", domain.PortfolioRequest{
			Sectors: []string{"x"}, RiskLevel: domain.RiskLow, Capital: 10, Exclusions: []string{"aaa", "Beta Corp"},
		}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Generate(context.Background(), tc.req)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrValidation)
			assert.Equal(t, 400, domain.HTTPStatus(err))
		})
	}
}

func TestPortfolioService_ProviderFailure(t *testing.T) {
	boom := errors.New("upstream unavailable")
	svc := newTestService(scenarioRegistry(t), &stubPrices{err: boom}, nil, nil)

	_, err := svc.Generate(context.Background(), domain.PortfolioRequest{
		Sectors:   []string{"x"},
		RiskLevel: domain.RiskLow,
		Capital:   10,
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, domain.ErrorKind(""), domain.KindOf(err))
}

func TestPortfolioService_GenerateFromText(t *testing.T) {
	risk := "Very-High"
	capital := 100000.0
	extractor := &stubExtractor{params: &domain.ExtractedParameters{
		Sectors:   []string{"X", "y"},
		RiskLevel: &risk,
		Capital:   &capital,
		Exclude:   []string{"gamma corp"},
	}}
	svc := newTestService(scenarioRegistry(t), scenarioPrices(), extractor, nil)

	resp, err := svc.GenerateFromText(context.Background(), "invest 100k aggressively in x and y, skip gamma", domain.VariantEnterprise)

	// Two assets cannot satisfy a 15% cap.
	assert.ErrorIs(t, err, domain.ErrInfeasibleConstraints)
	assert.Nil(t, resp)
	assert.Equal(t, domain.VariantEnterprise, extractor.variant)

	resp, err = svc.GenerateFromText(context.Background(), "invest 100k aggressively in x and y, skip gamma", domain.VariantIndividual)
	require.NoError(t, err)
	assert.Equal(t, 100000.0, resp.Capital)
	assert.Equal(t, "very high", resp.RiskLevel)
	assert.Equal(t, []string{"x", "y"}, resp.Sectors)
	assert.Equal(t, []string{"gamma corp"}, resp.Exclude)
	require.NotNil(t, resp.Portfolio)
	assert.Len(t, resp.Portfolio.StockAllocations, 2)
}

func TestPortfolioService_GenerateFromText_MissingParameters(t *testing.T) {
	risk := "moderate"
	testCases := []struct {
		name   string
		params *domain.ExtractedParameters
	}{
		{"nothing extracted", nil},
		{"no capital", &domain.ExtractedParameters{Sectors: []string{"x"}, RiskLevel: &risk}},
		{"no risk", &domain.ExtractedParameters{Sectors: []string{"x"}}},
		{"bad risk", &domain.ExtractedParameters{Sectors: []string{"x"}, RiskLevel: ptrString("yolo"), Capital: ptr(5)}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			svc := newTestService(scenarioRegistry(t), scenarioPrices(), &stubExtractor{params: tc.params}, nil)
			_, err := svc.GenerateFromText(context.Background(), "some text", domain.VariantIndividual)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestPortfolioService_GenerateFromText_EmptyMessage(t *testing.T) {
	svc := newTestService(scenarioRegistry(t), scenarioPrices(), &stubExtractor{}, nil)

	_, err := svc.GenerateFromText(context.Background(), "   ", domain.VariantIndividual)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func ptrString(s string) *string { return &s }
