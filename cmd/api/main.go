package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/georgemunganga/minprice-backend/internal/config"
	"github.com/georgemunganga/minprice-backend/internal/modules/cart"
	"github.com/georgemunganga/minprice-backend/internal/modules/catalog"
	"github.com/georgemunganga/minprice-backend/internal/modules/directory"
	"github.com/georgemunganga/minprice-backend/internal/modules/guest"
	"github.com/georgemunganga/minprice-backend/internal/platform/cache"
	"github.com/georgemunganga/minprice-backend/internal/platform/logger"
	"github.com/georgemunganga/minprice-backend/internal/platform/postgres"
	"github.com/georgemunganga/minprice-backend/migrations"
)

const shutdownTimeout = 15 * time.Second

func main() {
	app := &cli.App{
		Name:  "minprice-api",
		Usage: "multi-store grocery cart backend",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "env-file", Value: cli.NewStringSlice(".env"), Usage: "dotenv files to load"},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API",
				Action: serve,
			},
			{
				Name:      "migrate",
				Usage:     "apply or roll back database migrations",
				ArgsUsage: "up|down",
				Action:    runMigrations,
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		logrus.WithError(err).Fatal("minprice-api")
	}
}

func setup(c *cli.Context) (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(c.StringSlice("env-file")...)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger.New(cfg.LogLevel, cfg.LogFormat), nil
}

func runMigrations(c *cli.Context) error {
	cfg, log, err := setup(c)
	if err != nil {
		return err
	}
	direction := c.Args().First()
	if direction == "" {
		direction = postgres.Up
	}

	db, err := postgres.Open(c.Context, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	changed, err := postgres.Migrate(db, migrations.FS, direction)
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{"direction": direction, "changed": changed}).Info("migrations done")
	return nil
}

func serve(c *cli.Context) error {
	cfg, log, err := setup(c)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	log.Info("connected to postgres")

	// ── Router ──────────────────────────────────────────────
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// ── Catalog ─────────────────────────────────────────────
	catalogService := catalog.NewService(catalogRepository(cfg, db, log))
	catalog.NewHandler(catalogService).RegisterRoutes(router)

	// ── Store directory ─────────────────────────────────────
	directoryService := directory.NewService(directory.NewPostgresRepository(db), cfg.MediaBaseURL)
	directory.NewHandler(directoryService).RegisterRoutes(router)

	// ── Guest identity ──────────────────────────────────────
	guestService := guest.NewService(cfg.GuestSigningKey, cfg.GuestTokenTTL)
	guest.NewHandler(guestService).RegisterRoutes(router)

	// ── Carts (guest token required) ────────────────────────
	cartService := cart.NewService(cart.NewPostgresRepository(db), catalogService, logger.Module(log, "cart"))
	cartHandler := cart.NewHandler(cartService)
	cartHandler.RegisterSharedRoutes(router)
	router.Group(func(r chi.Router) {
		r.Use(guest.Middleware(guestService))
		cartHandler.RegisterRoutes(r)
	})

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithField("addr", srv.Addr).Info("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "listen")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func catalogRepository(cfg *config.Config, db *sql.DB, log *logrus.Logger) catalog.Repository {
	var repo catalog.Repository
	switch cfg.CatalogSource {
	case config.CatalogSourceUpstream:
		repo = catalog.NewUpstreamRepository(cfg.UpstreamBaseURL, cfg.UpstreamCityID, cfg.UpstreamTimeout)
	default:
		repo = catalog.NewPostgresRepository(db)
	}
	if cfg.CatalogCacheTTL <= 0 {
		return repo
	}

	var c cache.Cache
	if cfg.RedisAddr != "" {
		c = cache.NewRedisCache(cfg.RedisAddr, "catalog")
	} else {
		c = cache.NewMemory(cfg.CatalogCacheSize, cfg.CatalogCacheTTL)
	}
	log.WithFields(logrus.Fields{"source": cfg.CatalogSource, "redis": cfg.RedisAddr != ""}).Info("catalog cache enabled")
	return catalog.NewCachedRepository(repo, c, cfg.CatalogCacheTTL, logger.Module(log, "catalog"))
}
