package optimization

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/aristath/allocator/internal/domain"
	"github.com/aristath/allocator/internal/modules/universe"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultLookbackYears is the price history window requested per call.
const DefaultLookbackYears = 5

// PortfolioService runs the full pipeline for one request: sector
// expansion, exclusion filtering, price retrieval, estimation, the
// constrained solve and formatting. It holds no per-request state.
type PortfolioService struct {
	registry    *universe.Registry
	resolver    *universe.ExclusionResolver
	prices      domain.PriceProvider
	extractor   domain.ParameterExtractor
	estimator   *ReturnsEstimator
	constraints *ConstraintsManager
	allocator   *Allocator
	formatter   *AllocationFormatter
	runner      JobRunner

	lookbackYears int
	now           func() time.Time
	log           zerolog.Logger
}

// ServiceConfig carries the tunables of PortfolioService.
type ServiceConfig struct {
	LookbackYears int
	Bounds        BoundsDefaults
	Solver        QPSettings
}

// NewPortfolioService wires the pipeline. extractor and runner may be nil:
// without an extractor GenerateFromText fails, and without a runner solves
// run on the calling goroutine.
func NewPortfolioService(
	registry *universe.Registry,
	prices domain.PriceProvider,
	extractor domain.ParameterExtractor,
	runner JobRunner,
	cfg ServiceConfig,
	log zerolog.Logger,
) *PortfolioService {
	if runner == nil {
		runner = inlineRunner{}
	}
	if cfg.LookbackYears <= 0 {
		cfg.LookbackYears = DefaultLookbackYears
	}
	return &PortfolioService{
		registry:      registry,
		resolver:      universe.NewExclusionResolver(registry, log),
		prices:        prices,
		extractor:     extractor,
		estimator:     NewReturnsEstimator(log),
		constraints:   NewConstraintsManager(cfg.Bounds, log),
		allocator:     NewAllocator(cfg.Solver, log),
		formatter:     NewAllocationFormatter(registry),
		runner:        runner,
		lookbackYears: cfg.LookbackYears,
		now:           time.Now,
		log:           log.With().Str("service", "portfolio").Logger(),
	}
}

// Generate builds a portfolio for req.
func (s *PortfolioService) Generate(ctx context.Context, req domain.PortfolioRequest) (*domain.PortfolioResponse, error) {
	runID := uuid.NewString()
	log := s.log.With().Str("run_id", runID).Logger()

	variant, err := validateRequest(req)
	if err != nil {
		return nil, err
	}

	sectors, candidates, unknown := s.registry.Candidates(req.Sectors)
	if len(unknown) > 0 {
		return nil, domain.NewValidationError(nil, "unknown sectors: "+strings.Join(unknown, ", ")).
			WithDetail("unknown", unknown).
			WithDetail("available", s.registry.Sectors())
	}

	tickers, unmatched := s.resolver.Filter(candidates, req.Exclusions)
	if len(tickers) == 0 {
		return nil, domain.NewValidationError(nil, "exclusions remove every candidate asset").
			WithDetail("sectors", sectors).
			WithDetail("exclude", req.Exclusions)
	}

	constraints, err := s.constraints.BuildConstraints(variant, sectors, req.Bounds)
	if err != nil {
		return nil, err
	}

	end := s.now().UTC()
	start := end.AddDate(-s.lookbackYears, 0, 0)
	history, err := s.prices.GetPriceHistory(ctx, tickers, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch price history: %w", err)
	}

	table, dropped := BuildPriceTable(history, tickers)
	if len(dropped) > 0 {
		log.Warn().Strs("tickers", dropped).Msg("Dropping tickers without price history")
	}
	if len(table.Tickers) == 0 {
		return nil, domain.NewDataInsufficientError("no price history available for the requested tickers").
			WithDetail("tickers", tickers)
	}

	model, err := s.estimator.Estimate(table)
	if err != nil {
		return nil, err
	}

	var result *OptimizationResult
	err = s.runner.Run(ctx, "optimize:"+runID, func(ctx context.Context) error {
		var solveErr error
		result, solveErr = s.allocator.Optimize(ctx, model, req.RiskLevel, constraints, s.registry)
		return solveErr
	})
	if err != nil {
		if domain.KindOf(err) == "" && (errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)) {
			return nil, domain.NewSolverError(err, "optimization aborted")
		}
		return nil, err
	}

	entries, err := s.formatter.Format(result.Tickers, result.Weights, req.Capital)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("variant", string(variant)).
		Strs("sectors", sectors).
		Str("risk_level", req.RiskLevel.String()).
		Int("assets", len(result.Tickers)).
		Int("observations", model.Observations).
		Int("iterations", result.Iterations).
		Float64("expected_return", result.PortfolioReturn).
		Float64("volatility", result.PortfolioVolatility).
		Msg("Portfolio generated")

	return &domain.PortfolioResponse{
		RunID:                    runID,
		Variant:                  variant,
		Sectors:                  sectors,
		RiskLevel:                req.RiskLevel.String(),
		TotalCapital:             req.Capital,
		ExpectedAnnualReturn:     roundTo(result.PortfolioReturn, 4),
		ExpectedAnnualVolatility: roundTo(result.PortfolioVolatility, 4),
		StockAllocations:         entries,
		DroppedTickers:           nonNil(dropped),
		UnmatchedExclusions:      nonNil(unmatched),
	}, nil
}

// GenerateFromText extracts request parameters from free-form text and
// generates the portfolio. Extracted values are validated like any other
// client input.
func (s *PortfolioService) GenerateFromText(ctx context.Context, text string, variant domain.Variant) (*domain.ChatResponse, error) {
	if strings.TrimSpace(text) == "" {
		return nil, domain.NewValidationError(nil, "message is required")
	}
	if s.extractor == nil {
		return nil, fmt.Errorf("parameter extraction is not configured")
	}

	params, err := s.extractor.Extract(ctx, text, variant)
	if err != nil {
		return nil, err
	}

	req, err := requestFromParameters(params, variant)
	if err != nil {
		return nil, err
	}

	portfolio, err := s.Generate(ctx, req)
	if err != nil {
		return nil, err
	}

	return &domain.ChatResponse{
		Capital:   req.Capital,
		RiskLevel: req.RiskLevel.String(),
		Sectors:   portfolio.Sectors,
		Exclude:   nonNil(req.Exclusions),
		Portfolio: portfolio,
	}, nil
}

func requestFromParameters(params *domain.ExtractedParameters, variant domain.Variant) (domain.PortfolioRequest, error) {
	if params == nil {
		return domain.PortfolioRequest{}, domain.NewValidationError(nil, "could not extract parameters from message")
	}

	var missing []string
	if len(params.Sectors) == 0 {
		missing = append(missing, "sectors")
	}
	if params.RiskLevel == nil || strings.TrimSpace(*params.RiskLevel) == "" {
		missing = append(missing, "risk_level")
	}
	if params.Capital == nil {
		missing = append(missing, "capital")
	}
	if len(missing) > 0 {
		return domain.PortfolioRequest{}, domain.NewValidationError(nil,
			"message is missing required parameters: "+strings.Join(missing, ", ")).
			WithDetail("missing", missing)
	}

	risk, err := domain.ParseRiskLevel(*params.RiskLevel)
	if err != nil {
		return domain.PortfolioRequest{}, err
	}

	return domain.PortfolioRequest{
		Variant:    variant,
		Sectors:    params.Sectors,
		RiskLevel:  risk,
		Capital:    *params.Capital,
		Exclusions: params.Exclude,
	}, nil
}

func validateRequest(req domain.PortfolioRequest) (domain.Variant, error) {
	variant := req.Variant
	switch variant {
	case "":
		variant = domain.VariantIndividual
	case domain.VariantIndividual, domain.VariantEnterprise:
	default:
		return "", domain.NewValidationError(nil, fmt.Sprintf("unknown variant %q", req.Variant))
	}

	if !req.RiskLevel.Valid() {
		return "", domain.NewValidationError(domain.ErrInvalidRiskLevel, "risk_level is required").
			WithDetail("allowed", domain.AllRiskLevels)
	}
	if math.IsNaN(req.Capital) || math.IsInf(req.Capital, 0) || req.Capital <= 0 {
		return "", domain.NewValidationError(nil, "capital must be a positive amount").
			WithDetail("capital", fmt.Sprint(req.Capital))
	}
	if len(req.Sectors) == 0 {
		return "", domain.NewValidationError(nil, "at least one sector must be selected")
	}
	return variant, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
