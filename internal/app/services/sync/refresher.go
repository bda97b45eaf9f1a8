// Package sync imports upstream purchase documents into the local store on a
// fixed interval.
package sync

import (
	"context"
	"sync"
	"time"

	"github.com/dvimperial/tracking_service/internal/app/domain/purchase"
	"github.com/dvimperial/tracking_service/internal/app/metrics"
	"github.com/dvimperial/tracking_service/internal/app/storage"
	"github.com/dvimperial/tracking_service/internal/app/system"
	"github.com/dvimperial/tracking_service/pkg/logger"
)

var _ system.Service = (*Refresher)(nil)

// DocumentsAPI is the slice of the upstream client the refresher needs.
type DocumentsAPI interface {
	Documents(ctx context.Context, clientID string, page, limit int, search string) (purchase.Listing, error)
}

// cacheInvalidator is implemented by clients that cache document responses.
// The refresher drops the cached page before refetching so a sync never
// imports stale data.
type cacheInvalidator interface {
	InvalidateDocuments(ctx context.Context, clientID string, page, limit int, search string)
}

// Refresher periodically pulls each configured client's documents from the
// upstream API and upserts them into the local store.
type Refresher struct {
	store    storage.PurchaseStore
	api      DocumentsAPI
	log      *logger.Logger
	interval time.Duration
	pageSize int
	maxPages int

	mu      sync.Mutex
	clients []string
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewRefresher creates a lifecycle-managed document refresher.
func NewRefresher(store storage.PurchaseStore, api DocumentsAPI, interval time.Duration, log *logger.Logger) *Refresher {
	if log == nil {
		log = logger.NewDefault("sync-refresher")
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Refresher{
		store:    store,
		api:      api,
		log:      log,
		interval: interval,
		pageSize: 50,
		maxPages: 20,
	}
}

// WithClients sets the client IDs the refresher syncs.
func (r *Refresher) WithClients(clients []string) {
	r.mu.Lock()
	r.clients = append([]string(nil), clients...)
	r.mu.Unlock()
}

func (r *Refresher) Name() string { return "document-refresher" }

func (r *Refresher) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.running = true
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		// Sync immediately so a fresh process serves local data without
		// waiting out the first interval.
		r.tick(runCtx)

		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				r.tick(runCtx)
			}
		}
	}()

	r.log.Info("document refresher started")
	return nil
}

func (r *Refresher) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	cancel := r.cancel
	r.running = false
	r.cancel = nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.wg.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	r.log.Info("document refresher stopped")
	return nil
}

func (r *Refresher) tick(ctx context.Context) {
	if r.api == nil {
		return
	}

	r.mu.Lock()
	clients := r.clients
	r.mu.Unlock()

	for _, clientID := range clients {
		if err := r.SyncClient(ctx, clientID); err != nil {
			r.log.WithError(err).WithField("client_id", clientID).Warn("document sync failed")
		}
	}
}

// SyncClient pulls every page of one client's documents and upserts them.
func (r *Refresher) SyncClient(ctx context.Context, clientID string) error {
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	invalidator, _ := r.api.(cacheInvalidator)

	imported := 0
	for page := 1; page <= r.maxPages; page++ {
		if invalidator != nil {
			invalidator.InvalidateDocuments(ctx, clientID, page, r.pageSize, "")
		}
		listing, err := r.api.Documents(ctx, clientID, page, r.pageSize, "")
		if err != nil {
			metrics.RecordSync(imported, false)
			return err
		}

		for _, p := range listing.Purchases {
			p.ClientID = clientID
			if _, err := r.store.UpsertPurchase(ctx, p); err != nil {
				r.log.WithError(err).
					WithField("client_id", clientID).
					WithField("document", p.DocumentNumber).
					Warn("upsert purchase failed")
				continue
			}
			imported++
		}

		if page >= listing.TotalPages || len(listing.Purchases) == 0 {
			break
		}
	}

	metrics.RecordSync(imported, true)
	r.log.WithField("client_id", clientID).Infof("synced %d documents", imported)
	return nil
}
