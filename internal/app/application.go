package app

import (
	"context"
	"fmt"
	"time"

	"github.com/dvimperial/tracking_service/internal/app/domain/stepper"
	"github.com/dvimperial/tracking_service/internal/app/services/purchases"
	syncsvc "github.com/dvimperial/tracking_service/internal/app/services/sync"
	"github.com/dvimperial/tracking_service/internal/app/services/tracking"
	"github.com/dvimperial/tracking_service/internal/app/storage"
	"github.com/dvimperial/tracking_service/internal/app/storage/memory"
	"github.com/dvimperial/tracking_service/internal/app/system"
	"github.com/dvimperial/tracking_service/internal/app/upstream"
	"github.com/dvimperial/tracking_service/pkg/logger"
)

// Stores encapsulates persistence dependencies. A nil store defaults to the
// in-memory implementation.
type Stores struct {
	Purchases storage.PurchaseStore
}

// Options configures optional integrations. A nil Upstream disables the
// legacy lookup fallback and the background document refresher.
type Options struct {
	Upstream     *upstream.Client
	SyncInterval time.Duration
	SyncClients  []string
}

// Application ties domain services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Purchases *purchases.Service
	Tracking  *tracking.Service
}

// New builds a fully initialised application with the provided stores.
func New(stores Stores, opts Options, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}
	if stores.Purchases == nil {
		stores.Purchases = memory.New()
	}

	manager := system.NewManager()
	reconciler := stepper.NewReconciler(nil, nil, nil)

	purchasesSvc := purchases.New(stores.Purchases, reconciler, log)

	var legacy tracking.LegacyAPI
	if opts.Upstream != nil {
		legacy = opts.Upstream
	} else {
		log.Warn("upstream client not configured; legacy lookup fallback disabled")
	}
	trackingSvc := tracking.New(stores.Purchases, legacy, reconciler, log)

	for _, name := range []string{"purchases", "tracking"} {
		if err := manager.Register(system.NoopService{ServiceName: name}); err != nil {
			return nil, fmt.Errorf("register %s service: %w", name, err)
		}
	}

	if opts.Upstream != nil && len(opts.SyncClients) > 0 {
		refresher := syncsvc.NewRefresher(stores.Purchases, opts.Upstream, opts.SyncInterval, log)
		refresher.WithClients(opts.SyncClients)
		if err := manager.Register(refresher); err != nil {
			return nil, fmt.Errorf("register %s: %w", refresher.Name(), err)
		}
	} else if opts.Upstream != nil {
		log.Warn("no sync clients configured; document refresher disabled")
	}

	return &Application{
		manager:   manager,
		log:       log,
		Purchases: purchasesSvc,
		Tracking:  trackingSvc,
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
