package di

import (
	"testing"
	"time"

	"github.com/aristath/allocator/internal/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		DataDir: t.TempDir(),
		Port:    8001,
		Prices: config.PriceConfig{
			LookbackYears: 5,
			YahooBaseURL:  "http://127.0.0.1:1",
			CacheTTL:      time.Hour,
		},
		Solver:  config.SolverConfig{Workers: 2, Timeout: 5 * time.Second, MaxIterations: 5000},
		Bounds:  config.BoundsConfig{MinSectorAlloc: 0.05, MaxAssetWeight: 0.15, MaxSectorAlloc: 0.4},
		Cleanup: "@hourly",
	}
}

func TestWire(t *testing.T) {
	cfg := testConfig(t)

	container, jobs, err := Wire(cfg, zerolog.Nop())
	require.NoError(t, err)
	defer container.Close()

	assert.NotNil(t, container.CacheDB)
	assert.NotNil(t, container.ClientDataRepo)
	assert.NotNil(t, container.YahooClient)
	assert.Nil(t, container.Extractor, "no API key configured")
	assert.NotNil(t, container.Registry)
	assert.NotNil(t, container.Pool)
	assert.NotNil(t, container.PortfolioService)
	assert.Equal(t, 2, container.Scheduler.JobCount())

	require.NotNil(t, jobs)
	assert.NoError(t, jobs.ClientDataCleanup.Run())
	assert.NoError(t, jobs.WALCheckpoint.Run())
}

func TestWireWithLLM(t *testing.T) {
	cfg := testConfig(t)
	cfg.LLM = config.LLMConfig{APIKey: "key", BaseURL: "http://127.0.0.1:1/v1", Model: "m"}

	container, _, err := Wire(cfg, zerolog.Nop())
	require.NoError(t, err)
	defer container.Close()

	assert.NotNil(t, container.Extractor)
}

func TestWireRejectsBadSchedule(t *testing.T) {
	cfg := testConfig(t)
	cfg.Cleanup = "whenever"

	_, _, err := Wire(cfg, zerolog.Nop())
	assert.Error(t, err)
}
