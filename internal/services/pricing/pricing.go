package pricing

import (
	"context"
	"log/slog"

	"binder/internal/cards"
	"binder/internal/logging"
	"binder/internal/taxonomy"
)

// Estimate is a computed price suggestion for a confirmed card. OK is
// false when the estimator could not produce a value, which leaves the
// scan priced by floor or by hand.
type Estimate struct {
	Cents      int64
	Currency   string
	Multiplier float64
	OK         bool
}

// Estimator prices confirmed cards ahead of listing publication.
type Estimator interface {
	EstimateCard(ctx context.Context, identity cards.Identity, attributes taxonomy.Resolved) (Estimate, error)
}

// NoopEstimator is the estimator used when no pricing backend is
// configured. It never produces an estimate.
type NoopEstimator struct {
	logger *slog.Logger
}

// NewNoop builds an estimator that declines every card.
func NewNoop(logger *slog.Logger) *NoopEstimator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &NoopEstimator{logger: logger}
}

func (n *NoopEstimator) EstimateCard(ctx context.Context, identity cards.Identity, _ taxonomy.Resolved) (Estimate, error) {
	logging.WithContext(ctx, n.logger).Debug("pricing backend not configured, skipping estimate",
		logging.String("card", identity.Name))
	return Estimate{}, nil
}
