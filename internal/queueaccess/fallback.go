package queueaccess

import (
	"fmt"
	"log/slog"

	"binder/internal/apiclient"
	"binder/internal/config"
	"binder/internal/queue"
)

// Session represents a queue access handle and its cleanup function.
type Session struct {
	Access Access
	close  func() error
}

// Close releases resources associated with the session.
func (s Session) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// OpenWithFallback tries daemon API access first, then falls back to direct
// store access. The dial func owns the liveness probe; returning an error
// routes the session to the store.
func OpenWithFallback(
	cfg *config.Config,
	logger *slog.Logger,
	dial func() (*apiclient.Client, error),
	openStore func() (*queue.Store, error),
) (Session, error) {
	if dial != nil {
		if client, err := dial(); err == nil && client != nil {
			return Session{Access: NewHTTPAccess(client)}, nil
		}
	}

	if openStore == nil {
		return Session{}, fmt.Errorf("open queue store: no store opener configured")
	}
	store, err := openStore()
	if err != nil {
		return Session{}, fmt.Errorf("open queue store: %w", err)
	}
	return Session{
		Access: NewStoreAccess(cfg, store, logger),
		close:  store.Close,
	}, nil
}
