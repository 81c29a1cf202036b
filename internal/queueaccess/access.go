package queueaccess

import (
	"context"
	"log/slog"
	"strings"

	"binder/internal/api"
	"binder/internal/apiclient"
	"binder/internal/config"
	"binder/internal/queue"
)

// Access provides queue operations regardless of daemon API or direct
// store backing.
type Access interface {
	Stats(ctx context.Context) (map[string]int, error)
	List(ctx context.Context, statuses []string) ([]api.QueueItem, error)
	ListReview(ctx context.Context) ([]api.QueueItem, error)
	Describe(ctx context.Context, id int64) (*api.QueueItem, error)
	ClearAll(ctx context.Context) (int64, error)
	ClearCompleted(ctx context.Context) (int64, error)
	ClearFailed(ctx context.Context) (int64, error)
	Remove(ctx context.Context, ids []int64) (int64, error)
	RetryAll(ctx context.Context) (int64, error)
	Retry(ctx context.Context, ids []int64) (int64, error)
	Stop(ctx context.Context, ids []int64) (int64, error)
	Select(ctx context.Context, id int64, req api.SelectRequest) (api.SelectResult, error)
	SetPrice(ctx context.Context, id int64, req api.PriceRequest) (api.PriceResult, error)
	ActiveStagedFiles(ctx context.Context) (map[string]struct{}, error)
}

// NewHTTPAccess returns an Access backed by the daemon API.
func NewHTTPAccess(client *apiclient.Client) Access {
	return &httpAccess{client: client}
}

// NewStoreAccess returns an Access backed by direct DB access.
func NewStoreAccess(cfg *config.Config, store *queue.Store, logger *slog.Logger) Access {
	return &storeAccess{
		store:    store,
		queueSvc: api.NewQueueService(store),
		scanSvc:  api.NewScanService(cfg, store, logger),
	}
}

type httpAccess struct {
	client *apiclient.Client
}

func (a *httpAccess) Stats(ctx context.Context) (map[string]int, error) {
	return a.client.QueueStats(ctx)
}

func (a *httpAccess) List(ctx context.Context, statuses []string) ([]api.QueueItem, error) {
	return a.client.QueueList(ctx, statuses)
}

func (a *httpAccess) ListReview(ctx context.Context) ([]api.QueueItem, error) {
	return a.client.ReviewList(ctx)
}

func (a *httpAccess) Describe(ctx context.Context, id int64) (*api.QueueItem, error) {
	return a.client.Describe(ctx, id)
}

func (a *httpAccess) ClearAll(ctx context.Context) (int64, error) {
	return a.client.ClearQueue(ctx, "all")
}

func (a *httpAccess) ClearCompleted(ctx context.Context) (int64, error) {
	return a.client.ClearQueue(ctx, "completed")
}

func (a *httpAccess) ClearFailed(ctx context.Context) (int64, error) {
	return a.client.ClearQueue(ctx, "failed")
}

func (a *httpAccess) Remove(ctx context.Context, ids []int64) (int64, error) {
	var count int64
	for _, id := range ids {
		removed, err := a.client.RemoveItem(ctx, id)
		if err != nil {
			return count, err
		}
		if removed {
			count++
		}
	}
	return count, nil
}

func (a *httpAccess) RetryAll(ctx context.Context) (int64, error) {
	return a.client.RetryItems(ctx, nil)
}

func (a *httpAccess) Retry(ctx context.Context, ids []int64) (int64, error) {
	return a.client.RetryItems(ctx, ids)
}

func (a *httpAccess) Stop(ctx context.Context, ids []int64) (int64, error) {
	return a.client.StopItems(ctx, ids)
}

func (a *httpAccess) Select(ctx context.Context, id int64, req api.SelectRequest) (api.SelectResult, error) {
	return a.client.Select(ctx, id, req)
}

func (a *httpAccess) SetPrice(ctx context.Context, id int64, req api.PriceRequest) (api.PriceResult, error) {
	return a.client.SetPrice(ctx, id, req)
}

func (a *httpAccess) ActiveStagedFiles(ctx context.Context) (map[string]struct{}, error) {
	items, err := a.List(ctx, nil)
	if err != nil {
		return nil, err
	}
	staged := make(map[string]struct{}, len(items))
	for _, item := range items {
		path := strings.TrimSpace(item.StagedFile)
		if path != "" {
			staged[path] = struct{}{}
		}
	}
	return staged, nil
}

type storeAccess struct {
	store    *queue.Store
	queueSvc *api.QueueService
	scanSvc  *api.ScanService
}

func (a *storeAccess) Stats(ctx context.Context) (map[string]int, error) {
	return a.queueSvc.Stats(ctx)
}

func (a *storeAccess) List(ctx context.Context, statuses []string) ([]api.QueueItem, error) {
	var filters []queue.Status
	for _, s := range statuses {
		if parsed, ok := queue.ParseStatus(s); ok {
			filters = append(filters, parsed)
		}
	}
	return a.queueSvc.List(ctx, filters...)
}

func (a *storeAccess) ListReview(ctx context.Context) ([]api.QueueItem, error) {
	return a.queueSvc.ListReview(ctx)
}

func (a *storeAccess) Describe(ctx context.Context, id int64) (*api.QueueItem, error) {
	return a.queueSvc.Describe(ctx, id)
}

func (a *storeAccess) ClearAll(ctx context.Context) (int64, error) {
	return a.store.Clear(ctx)
}

func (a *storeAccess) ClearCompleted(ctx context.Context) (int64, error) {
	return a.store.ClearCompleted(ctx)
}

func (a *storeAccess) ClearFailed(ctx context.Context) (int64, error) {
	return a.store.ClearFailed(ctx)
}

func (a *storeAccess) Remove(ctx context.Context, ids []int64) (int64, error) {
	var count int64
	for _, id := range ids {
		removed, err := a.store.Remove(ctx, id)
		if err != nil {
			return count, err
		}
		if removed {
			count++
		}
	}
	return count, nil
}

func (a *storeAccess) RetryAll(ctx context.Context) (int64, error) {
	return a.store.RetryFailed(ctx)
}

func (a *storeAccess) Retry(ctx context.Context, ids []int64) (int64, error) {
	return a.store.RetryFailed(ctx, ids...)
}

func (a *storeAccess) Stop(ctx context.Context, ids []int64) (int64, error) {
	return a.store.StopItems(ctx, ids...)
}

func (a *storeAccess) Select(ctx context.Context, id int64, req api.SelectRequest) (api.SelectResult, error) {
	return a.scanSvc.Select(ctx, id, req)
}

func (a *storeAccess) SetPrice(ctx context.Context, id int64, req api.PriceRequest) (api.PriceResult, error) {
	return a.scanSvc.SetPrice(ctx, id, req)
}

func (a *storeAccess) ActiveStagedFiles(ctx context.Context) (map[string]struct{}, error) {
	return a.store.ActiveStagedFiles(ctx)
}
