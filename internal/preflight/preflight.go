package preflight

import (
	"context"

	"binder/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the local readiness checks for the given config:
// directory access, free disk space, and the queue database. These
// cover everything the daemon needs before it can accept scans.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Intake directory", cfg.Paths.IntakeDir),
		CheckDirectoryAccess("Staging directory", cfg.Paths.StagingDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	}

	if cfg.Paths.ArchiveDir != "" {
		results = append(results, CheckDirectoryAccess("Archive directory", cfg.Paths.ArchiveDir))
	}

	results = append(results, CheckDiskSpace("Staging disk space", cfg.Paths.StagingDir))
	results = append(results, CheckQueueDatabase(ctx, cfg))

	return results
}

// RunFeatureChecks verifies the external services the pipeline depends
// on. Checks are only run when the corresponding feature is configured.
func RunFeatureChecks(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckVision(ctx, cfg),
		CheckCatalog(ctx, cfg),
		CheckTaxonomy(ctx, cfg),
	}

	return results
}
