package listing

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"binder/internal/cards"
	"binder/internal/logging"
	"binder/internal/taxonomy"
)

// Outbound is the record a confirmed scan commits downstream: the
// canonical identity, the closed-vocabulary attribute map, the price,
// the storage location, and the source images backing it all.
type Outbound struct {
	ScanID       int64
	Identity     cards.Identity
	Attributes   taxonomy.Resolved
	Price        *cards.Price
	LocationCode string
	ImagePaths   []string
}

// Ref identifies the created marketplace listing.
type Ref struct {
	ID  string
	URL string
	SKU string
}

// Publisher creates marketplace listings from outbound records.
type Publisher interface {
	Publish(ctx context.Context, out Outbound) (Ref, error)
}

// NoopPublisher is used when no marketplace integration is configured.
// It logs the outbound record and fabricates a local reference so the
// rest of the pipeline behaves as in production.
type NoopPublisher struct {
	logger *slog.Logger
}

// NewNoop builds a publisher that only records what would have shipped.
func NewNoop(logger *slog.Logger) *NoopPublisher {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &NoopPublisher{logger: logger}
}

func (n *NoopPublisher) Publish(ctx context.Context, out Outbound) (Ref, error) {
	ref := Ref{ID: "local-" + uuid.NewString()}
	attrs := []logging.Attr{
		logging.Int64("scan_id", out.ScanID),
		logging.String("card", out.Identity.Name),
		logging.String("number", out.Identity.Number),
		logging.String("set", out.Identity.SetName),
		logging.String("listing_id", ref.ID),
	}
	if out.Price != nil {
		attrs = append(attrs,
			logging.Int64("price_cents", out.Price.Cents),
			logging.String("currency", out.Price.Currency))
	}
	logging.WithContext(ctx, n.logger).Info("listing recorded locally (no marketplace configured)",
		logging.Args(attrs...)...)
	return ref, nil
}
