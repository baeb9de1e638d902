package app

import (
	"context"
	"fmt"
	"time"

	"github.com/R3E-Network/storefront/internal/app/mail"
	"github.com/R3E-Network/storefront/internal/app/metrics"
	"github.com/R3E-Network/storefront/internal/app/services/accounts"
	"github.com/R3E-Network/storefront/internal/app/services/cart"
	"github.com/R3E-Network/storefront/internal/app/services/catalog"
	"github.com/R3E-Network/storefront/internal/app/services/orders"
	"github.com/R3E-Network/storefront/internal/app/session"
	"github.com/R3E-Network/storefront/internal/app/storage"
	"github.com/R3E-Network/storefront/internal/app/storage/memory"
	"github.com/R3E-Network/storefront/internal/app/system"
	"github.com/R3E-Network/storefront/internal/app/uploads"
	"github.com/R3E-Network/storefront/internal/config"
	"github.com/R3E-Network/storefront/internal/middleware"
	"github.com/R3E-Network/storefront/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Users    storage.UserStore
	Products storage.ProductStore
	Orders   storage.OrderStore
}

// Options carries the non-storage collaborators.
type Options struct {
	// Sessions defaults to an in-memory store with SessionTTL.
	Sessions   session.Store
	SessionTTL time.Duration
	// Mailer defaults to a LogSender.
	Mailer     mail.Sender
	MailSender string
	// Uploads is required for product images.
	Uploads  *uploads.Store
	Catalog  *config.Catalog
	HashCost int
	// LoginRate and LoginBurst throttle POST /login and /register per client.
	LoginRate  float64
	LoginBurst int
	// HealthChecks are pinged by /healthz, keyed by component name.
	HealthChecks map[string]storage.Pinger
}

// Application ties domain services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Accounts *accounts.Service
	Catalog  *catalog.Service
	Cart     *cart.Service
	Orders   *orders.Service

	Sessions     session.Store
	Uploads      *uploads.Store
	Categories   *config.Catalog
	LoginLimiter *middleware.RateLimiter
	HealthChecks map[string]storage.Pinger
}

// New builds a fully initialised application with the provided stores.
func New(stores Stores, opts Options, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}

	if stores.Users == nil || stores.Products == nil || stores.Orders == nil {
		mem := memory.New()
		if stores.Users == nil {
			stores.Users = mem
		}
		if stores.Products == nil {
			stores.Products = mem
		}
		if stores.Orders == nil {
			stores.Orders = mem
		}
	}
	if opts.Catalog == nil {
		opts.Catalog = config.DefaultCatalog()
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 7 * 24 * time.Hour
	}
	if opts.Sessions == nil {
		opts.Sessions = session.NewMemoryStore(opts.SessionTTL)
	}
	if opts.Mailer == nil {
		opts.Mailer = mail.NewLogSender(log)
	}
	if opts.Uploads == nil {
		return nil, fmt.Errorf("upload store is required")
	}
	if opts.LoginRate <= 0 {
		opts.LoginRate = 1
	}
	if opts.LoginBurst <= 0 {
		opts.LoginBurst = 5
	}

	acctService := accounts.New(stores.Users, log)
	if opts.HashCost > 0 {
		acctService.WithHashCost(opts.HashCost)
	}
	catalogService := catalog.New(stores.Products, opts.Uploads, opts.Catalog, log)
	cartService := cart.New(stores.Products, log)
	orderService := orders.New(stores.Products, stores.Orders, opts.Mailer, opts.MailSender, log)
	limiter := middleware.NewRateLimiter(opts.LoginRate, opts.LoginBurst, log)

	manager := system.NewManager()

	jobs := []system.Job{{
		Name:     "login-limiter-cleanup",
		Schedule: "@every 10m",
		Run: func(context.Context) {
			if n := limiter.Cleanup(30 * time.Minute); n > 0 {
				log.WithField("removed", n).Debug("login limiters cleaned")
			}
		},
	}}
	if sweeper, ok := opts.Sessions.(session.Sweeper); ok {
		jobs = append(jobs, system.Job{
			Name:     "session-sweep",
			Schedule: "@every 5m",
			Run: func(context.Context) {
				n := sweeper.Sweep(time.Now())
				metrics.RecordSessionsSwept(n)
				if n > 0 {
					log.WithField("removed", n).Info("expired sessions swept")
				}
			},
		})
	}
	if err := manager.Register(system.NewJanitor(log, jobs...)); err != nil {
		return nil, fmt.Errorf("register janitor: %w", err)
	}

	return &Application{
		manager:      manager,
		log:          log,
		Accounts:     acctService,
		Catalog:      catalogService,
		Cart:         cartService,
		Orders:       orderService,
		Sessions:     opts.Sessions,
		Uploads:      opts.Uploads,
		Categories:   opts.Catalog,
		LoginLimiter: limiter,
		HealthChecks: opts.HealthChecks,
	}, nil
}

// Attach registers an additional lifecycle-managed service.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop halts all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}

// Descriptors lists the registered lifecycle services.
func (a *Application) Descriptors() []string {
	return a.manager.Names()
}
