package di

import (
	"fmt"

	"github.com/aristath/allocator/internal/clientdata"
	"github.com/aristath/allocator/internal/config"
	"github.com/aristath/allocator/internal/scheduler"
	"github.com/rs/zerolog"
)

// walCheckpointSchedule keeps the cache WAL file small.
const walCheckpointSchedule = "@every 6h"

// RegisterJobs creates the maintenance jobs and registers them with the
// container's scheduler. The scheduler is not started here.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	jobs := &JobInstances{
		ClientDataCleanup: clientdata.NewCleanupJob(container.ClientDataRepo, log),
		WALCheckpoint:     scheduler.NewWALCheckpointJob(log, container.CacheDB),
	}

	if err := container.Scheduler.AddJob(cfg.Cleanup, jobs.ClientDataCleanup); err != nil {
		return nil, fmt.Errorf("failed to schedule %s: %w", jobs.ClientDataCleanup.Name(), err)
	}
	if err := container.Scheduler.AddJob(walCheckpointSchedule, jobs.WALCheckpoint); err != nil {
		return nil, fmt.Errorf("failed to schedule %s: %w", jobs.WALCheckpoint.Name(), err)
	}

	return jobs, nil
}
