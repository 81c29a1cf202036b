package warehouse

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"binder/internal/logging"
)

// Allocator hands out storage location codes for published batches.
// Every scan in a batch shares one location so cards scanned together
// stay binned together.
type Allocator interface {
	Allocate(ctx context.Context, batchID string) (string, error)
}

// NoopAllocator is used when no warehouse integration is configured. It
// allocates nothing, leaving the location code empty.
type NoopAllocator struct{}

// NewNoop builds an allocator that never assigns a location.
func NewNoop() *NoopAllocator {
	return &NoopAllocator{}
}

func (n *NoopAllocator) Allocate(context.Context, string) (string, error) {
	return "", nil
}

// StaticAllocator derives location codes from a fixed warehouse code and
// the batch identifier. It stands in for a real slotting service in
// single-warehouse deployments.
type StaticAllocator struct {
	code   string
	logger *slog.Logger
}

// NewStatic builds an allocator rooted at the given warehouse code.
func NewStatic(code string, logger *slog.Logger) *StaticAllocator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &StaticAllocator{code: strings.TrimSpace(code), logger: logger}
}

func (s *StaticAllocator) Allocate(ctx context.Context, batchID string) (string, error) {
	if s.code == "" {
		return "", nil
	}
	batchID = strings.TrimSpace(batchID)
	if batchID == "" {
		return s.code, nil
	}
	location := fmt.Sprintf("%s/%s", s.code, batchID)
	logging.WithContext(ctx, s.logger).Debug("allocated storage location",
		logging.String("location", location))
	return location, nil
}
