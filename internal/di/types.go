// Package di provides dependency injection wiring and initialization.
package di

import (
	"github.com/aristath/allocator/internal/clientdata"
	"github.com/aristath/allocator/internal/clients/llm"
	"github.com/aristath/allocator/internal/clients/yahoo"
	"github.com/aristath/allocator/internal/database"
	"github.com/aristath/allocator/internal/modules/optimization"
	"github.com/aristath/allocator/internal/modules/universe"
	"github.com/aristath/allocator/internal/scheduler"
	"github.com/aristath/allocator/internal/work"
)

// Container holds all dependencies for the application.
// It is created by Wire() and handed to the server and scheduler.
type Container struct {
	// Databases
	CacheDB *database.DB

	// Repositories
	ClientDataRepo *clientdata.Repository

	// Clients
	YahooClient *yahoo.Client
	Extractor   *llm.Extractor // nil when no LLM API key is configured

	// Services
	Registry         *universe.Registry
	Pool             *work.Pool
	PortfolioService *optimization.PortfolioService

	Scheduler *scheduler.Scheduler
}

// JobInstances holds the registered maintenance jobs so they can be run
// on demand.
type JobInstances struct {
	ClientDataCleanup *clientdata.CleanupJob
	WALCheckpoint     *scheduler.WALCheckpointJob
}

// Close releases the container's databases.
func (c *Container) Close() error {
	if c.CacheDB == nil {
		return nil
	}
	return c.CacheDB.Close()
}
