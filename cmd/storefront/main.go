// Command storefront serves the shop and manages its database.
//
//	storefront [serve]              run the HTTP server (default)
//	storefront init-db              apply migrations and seed the admin and sample catalog
//	storefront migrate up|down|version
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/R3E-Network/storefront/internal/app/runtime"
	"github.com/R3E-Network/storefront/internal/app/seed"
	"github.com/R3E-Network/storefront/internal/app/services/accounts"
	"github.com/R3E-Network/storefront/internal/app/storage/postgres"
	"github.com/R3E-Network/storefront/internal/config"
	"github.com/R3E-Network/storefront/internal/platform/database"
	"github.com/R3E-Network/storefront/internal/platform/migrations"
)

func main() {
	envFile := flag.String("env", "", "Path to a .env file (default: ./.env when present)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [-env file] [serve|init-db|migrate up|down|version]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	var files []string
	if *envFile != "" {
		files = append(files, *envFile)
	}
	cfg, err := config.Load(files...)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	cmd, args := "serve", flag.Args()
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case "serve":
		err = serve(ctx, cfg)
	case "init-db":
		err = initDB(ctx, cfg)
	case "migrate":
		err = migrate(ctx, cfg, args)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%s: %v", cmd, err)
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	rt, err := runtime.NewApplication(ctx, cfg, nil)
	if err != nil {
		return err
	}
	runErr := rt.Run(ctx)
	if err := rt.Shutdown(context.Background()); err != nil {
		log.Printf("shutdown: %v", err)
	}
	return runErr
}

func initDB(ctx context.Context, cfg *config.Config) error {
	if cfg.Database.DSN == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	cfg.Database.AutoMigrate = true
	db, err := runtime.OpenDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	catalog := config.DefaultCatalog()
	if cfg.CatalogPath != "" {
		if catalog, err = config.LoadCatalog(cfg.CatalogPath); err != nil {
			return err
		}
	}
	lg := runtime.NewLogger(cfg.Logging)
	store := postgres.New(db)
	res, err := seed.Populate(ctx, accounts.New(store, lg), store, catalog, lg)
	if err != nil {
		return err
	}
	fmt.Printf("database ready (admin created: %t, products created: %d)\n", res.AdminCreated, res.ProductsCreated)
	return nil
}

func migrate(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("expected one of up, down, version")
	}
	db, err := database.Open(ctx, cfg.Database.DSN, database.Options{})
	if err != nil {
		return err
	}
	defer db.Close()

	m, err := migrations.New(db.DB)
	if err != nil {
		return err
	}
	switch args[0] {
	case "up":
		return m.Up()
	case "down":
		return m.Down()
	case "version":
		v, dirty, err := m.Version()
		if err != nil {
			return err
		}
		fmt.Printf("version %d (dirty: %t)\n", v, dirty)
		return nil
	}
	return fmt.Errorf("unknown migrate command %q", args[0])
}
