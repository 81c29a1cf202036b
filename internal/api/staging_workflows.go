package api

import (
	"context"
	"fmt"
	"strings"

	"binder/internal/staging"
)

// StagedFileProvider surfaces the staged scan paths queue rows still reference.
type StagedFileProvider interface {
	ActiveStagedFiles(ctx context.Context) (map[string]struct{}, error)
}

type CleanStagingRequest struct {
	StagingDir  string
	CleanAll    bool
	StagedFiles StagedFileProvider
}

type CleanStagingResult struct {
	Configured bool
	Scope      string
	Cleanup    staging.CleanResult
}

// CleanStagingDirectory applies staging cleanup policy used by CLI commands.
// CleanAll drops every staged scan regardless of queue state; otherwise only
// images no queue row references are removed, so failed scans stay
// retryable.
func CleanStagingDirectory(ctx context.Context, req CleanStagingRequest) (CleanStagingResult, error) {
	stagingDir := strings.TrimSpace(req.StagingDir)
	if stagingDir == "" {
		return CleanStagingResult{Configured: false}, nil
	}

	if req.CleanAll {
		return CleanStagingResult{
			Configured: true,
			Scope:      "staging",
			Cleanup:    staging.CleanStale(ctx, stagingDir, 0, nil),
		}, nil
	}

	if req.StagedFiles == nil {
		return CleanStagingResult{}, fmt.Errorf("staged file provider is required when clean_all is false")
	}
	keep, err := req.StagedFiles.ActiveStagedFiles(ctx)
	if err != nil {
		return CleanStagingResult{}, err
	}
	return CleanStagingResult{
		Configured: true,
		Scope:      "orphaned staging",
		Cleanup:    staging.CleanOrphaned(ctx, stagingDir, keep, nil),
	}, nil
}
