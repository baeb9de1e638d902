// Package runtime wires configuration into stores, services and the HTTP server.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"

	app "github.com/R3E-Network/storefront/internal/app"
	"github.com/R3E-Network/storefront/internal/app/httpapi"
	"github.com/R3E-Network/storefront/internal/app/mail"
	"github.com/R3E-Network/storefront/internal/app/seed"
	"github.com/R3E-Network/storefront/internal/app/session"
	"github.com/R3E-Network/storefront/internal/app/storage"
	"github.com/R3E-Network/storefront/internal/app/storage/memory"
	"github.com/R3E-Network/storefront/internal/app/storage/postgres"
	"github.com/R3E-Network/storefront/internal/app/uploads"
	"github.com/R3E-Network/storefront/internal/config"
	"github.com/R3E-Network/storefront/internal/platform/database"
	"github.com/R3E-Network/storefront/internal/platform/migrations"
	"github.com/R3E-Network/storefront/pkg/logger"
)

// Application wires core dependencies and manages the HTTP server lifecycle.
type Application struct {
	cfg     *config.Config
	log     *logger.Logger
	app     *app.Application
	handler http.Handler
	server  *http.Server

	db        *sqlx.DB
	redis     *redis.Client
	auditSink *httpapi.FileAuditSink
	// memory is set when no database is configured; it is seeded on startup.
	memory *memory.Store
}

// NewLogger builds the process logger from cfg.
func NewLogger(cfg config.LoggingConfig) *logger.Logger {
	return logger.New(logger.LoggingConfig{
		Level:      cfg.Level,
		Format:     cfg.Format,
		Output:     cfg.Output,
		FilePrefix: cfg.FilePrefix,
	})
}

// OpenDatabase connects to the configured postgres database, applying
// migrations when auto-migrate is on.
func OpenDatabase(ctx context.Context, cfg config.DatabaseConfig) (*sqlx.DB, error) {
	db, err := database.Open(ctx, cfg.DSN, database.Options{
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	})
	if err != nil {
		return nil, err
	}
	if cfg.AutoMigrate {
		if err := migrations.Apply(db.DB); err != nil {
			db.Close()
			return nil, err
		}
	}
	return db, nil
}

// NewApplication constructs the storefront from cfg. A nil log uses NewLogger.
func NewApplication(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Application, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if log == nil {
		log = NewLogger(cfg.Logging)
	}
	rt := &Application{cfg: cfg, log: log}
	ok := false
	defer func() {
		if !ok {
			rt.closeResources()
		}
	}()

	stores, checks, err := rt.buildStores(ctx)
	if err != nil {
		return nil, fmt.Errorf("configure stores: %w", err)
	}
	sessions, err := rt.buildSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("configure sessions: %w", err)
	}
	mailer, err := buildMailer(cfg.Mail, log)
	if err != nil {
		return nil, fmt.Errorf("configure mail: %w", err)
	}
	catalog := config.DefaultCatalog()
	if cfg.CatalogPath != "" {
		if catalog, err = config.LoadCatalog(cfg.CatalogPath); err != nil {
			return nil, err
		}
	}
	images, err := uploads.New(cfg.Uploads.Folder, cfg.Uploads.MaxBytes)
	if err != nil {
		return nil, err
	}

	application, err := app.New(stores, app.Options{
		Sessions:     sessions,
		SessionTTL:   cfg.Session.TTL,
		Mailer:       mailer,
		MailSender:   cfg.Mail.MailSender(),
		Uploads:      images,
		Catalog:      catalog,
		LoginRate:    cfg.RateLimit.PerSecond,
		LoginBurst:   cfg.RateLimit.Burst,
		HealthChecks: checks,
	}, log)
	if err != nil {
		return nil, err
	}
	if rt.memory != nil {
		if _, err := seed.Populate(ctx, application.Accounts, rt.memory, catalog, log); err != nil {
			return nil, fmt.Errorf("seed in-memory store: %w", err)
		}
		log.WithField("admin", seed.AdminEmail).Warn("in-memory store seeded with the default admin account")
	}

	audit := httpapi.NewAuditLog(200, nil)
	if cfg.AuditLogPath != "" {
		sink, err := httpapi.NewFileAuditSink(cfg.AuditLogPath)
		if err != nil {
			return nil, fmt.Errorf("open audit log: %w", err)
		}
		rt.auditSink = sink
		audit = httpapi.NewAuditLog(200, sink)
	}

	handler, err := httpapi.NewHandler(application, httpapi.Options{
		Codec:          session.NewCodec(cfg.Session.SecretKey, cfg.Session.TTL, cfg.Session.CookieSecure),
		Log:            log,
		Audit:          audit,
		MaxUploadBytes: cfg.Uploads.MaxBytes,
	})
	if err != nil {
		return nil, err
	}

	rt.app = application
	rt.handler = handler
	rt.server = &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       2 * time.Minute,
	}
	ok = true
	return rt, nil
}

// App exposes the wired application services.
func (a *Application) App() *app.Application { return a.app }

// Handler returns the root HTTP handler.
func (a *Application) Handler() http.Handler { return a.handler }

// Run starts the background services and the HTTP server, and blocks until
// ctx is cancelled or the listener fails.
func (a *Application) Run(ctx context.Context) error {
	if err := a.app.Start(ctx); err != nil {
		return fmt.Errorf("start services: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.WithField("addr", a.server.Addr).Info("HTTP server listening")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Shutdown stops the HTTP server and background services and releases connections.
func (a *Application) Shutdown(ctx context.Context) error {
	timeout := a.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var errs []error
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("http server: %w", err))
	}
	if err := a.app.Stop(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	a.closeResources()
	return errors.Join(errs...)
}

func (a *Application) closeResources() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.WithError(err).Warn("error closing database connection")
		}
		a.db = nil
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.WithError(err).Warn("error closing redis client")
		}
		a.redis = nil
	}
	if a.auditSink != nil {
		if err := a.auditSink.Close(); err != nil {
			a.log.WithError(err).Warn("error closing audit log")
		}
		a.auditSink = nil
	}
}

func (a *Application) buildStores(ctx context.Context) (app.Stores, map[string]storage.Pinger, error) {
	if a.cfg.Database.DSN == "" {
		a.log.Warn("DATABASE_URL not set; using in-memory storage")
		a.memory = memory.New()
		return app.Stores{Users: a.memory, Products: a.memory, Orders: a.memory}, nil, nil
	}
	db, err := OpenDatabase(ctx, a.cfg.Database)
	if err != nil {
		return app.Stores{}, nil, err
	}
	a.db = db
	store := postgres.New(db)
	return app.Stores{Users: store, Products: store, Orders: store},
		map[string]storage.Pinger{"database": store}, nil
}

func (a *Application) buildSessions(ctx context.Context) (session.Store, error) {
	if a.cfg.Redis.Addr == "" {
		return session.NewMemoryStore(a.cfg.Session.TTL), nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     a.cfg.Redis.Addr,
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DB,
	})
	a.redis = client
	store := session.NewRedisStore(client, a.cfg.Session.TTL)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := store.Ping(pingCtx); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return store, nil
}

func buildMailer(cfg config.MailConfig, log *logger.Logger) (mail.Sender, error) {
	if cfg.Server == "" {
		log.Warn("MAIL_SERVER not set; confirmation emails are logged, not sent")
		return mail.NewLogSender(log), nil
	}
	return mail.NewSMTPSender(mail.SMTPConfig{
		Host:     cfg.Server,
		Port:     cfg.Port,
		Username: cfg.Username,
		Password: cfg.Password,
		StartTLS: cfg.UseTLS,
		Timeout:  10 * time.Second,
	}, log)
}
