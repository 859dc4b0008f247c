package di

import (
	"github.com/aristath/allocator/internal/clientdata"
	"github.com/aristath/allocator/internal/clients/llm"
	"github.com/aristath/allocator/internal/clients/yahoo"
	"github.com/aristath/allocator/internal/config"
	"github.com/aristath/allocator/internal/domain"
	"github.com/aristath/allocator/internal/modules/optimization"
	"github.com/aristath/allocator/internal/modules/universe"
	"github.com/aristath/allocator/internal/scheduler"
	"github.com/aristath/allocator/internal/work"
	"github.com/rs/zerolog"
)

// InitializeServices builds clients and services on top of the databases.
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) error {
	container.ClientDataRepo = clientdata.NewRepository(container.CacheDB.Conn())
	container.YahooClient = yahoo.NewClient(cfg.Prices.YahooBaseURL, container.ClientDataRepo, cfg.Prices.CacheTTL, log)

	// The interface stays nil without a key so chat requests fail cleanly.
	var extractor domain.ParameterExtractor
	if cfg.LLM.APIKey != "" {
		container.Extractor = llm.NewExtractor(llm.Config{
			APIKey:     cfg.LLM.APIKey,
			BaseURL:    cfg.LLM.BaseURL,
			Model:      cfg.LLM.Model,
			MaxRetries: 2,
		}, log)
		extractor = container.Extractor
	} else {
		log.Warn().Msg("LLM_API_KEY not set, chat endpoints are disabled")
	}

	container.Registry = universe.NewDefaultRegistry()
	container.Pool = work.NewPool(cfg.Solver.Workers, cfg.Solver.Timeout, log)

	solver := optimization.DefaultQPSettings()
	if cfg.Solver.MaxIterations > 0 {
		solver.MaxIterations = cfg.Solver.MaxIterations
	}
	container.PortfolioService = optimization.NewPortfolioService(
		container.Registry,
		container.YahooClient,
		extractor,
		container.Pool,
		optimization.ServiceConfig{
			LookbackYears: cfg.Prices.LookbackYears,
			Bounds: optimization.BoundsDefaults{
				MinSectorAlloc: cfg.Bounds.MinSectorAlloc,
				MaxAssetWeight: cfg.Bounds.MaxAssetWeight,
				MaxSectorAlloc: cfg.Bounds.MaxSectorAlloc,
			},
			Solver: solver,
		},
		log,
	)

	container.Scheduler = scheduler.New(log)
	return nil
}
