package container

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"cutx/catalog/internal/api"
	"cutx/catalog/internal/cache"
	"cutx/catalog/internal/client"
	"cutx/catalog/internal/config"
	"cutx/catalog/internal/proxy"
	"cutx/catalog/internal/queue"
	"cutx/catalog/internal/repository"
	"cutx/catalog/internal/service"
	"cutx/catalog/internal/state"
	"cutx/catalog/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// Container holds the components shared by the binaries. Only the parts a binary asks for are built.
type Container struct {
	Config *config.Config

	DB    *pgxpool.Pool
	Redis *redis.Client

	Catalogues repository.CatalogueRepository
	Categories repository.CategoryRepository
	Panels     repository.PanelRepository

	Queue        *queue.RedisQueue
	StateManager state.StateManager
	Clients      []client.SupplierClient

	Ingest      *service.IngestService
	Catalog     *service.CatalogService
	Maintenance *service.MaintenanceService
}

// SetupLogging applies the log section to the standard logrus logger.
func SetupLogging(cfg config.LogConfig) {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		log.Warnf("⚠️ Unknown log level %q, using info", cfg.Level)
		level = log.InfoLevel
	}
	log.SetLevel(level)
	log.SetOutput(os.Stdout)

	if strings.EqualFold(cfg.Format, "json") {
		log.SetFormatter(&log.JSONFormatter{TimestampFormat: time.RFC3339})
		return
	}
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
}

// New connects to Postgres and builds the repositories.
func New(ctx context.Context, cfg *config.Config) (*Container, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("invalid database config: %w", err)
	}
	if cfg.Database.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.Database.MaxConns)
	}

	db, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create database pool: %w", err)
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}
	log.Infof("✅ Connected to Postgres %s:%d/%s", cfg.Database.Host, cfg.Database.Port, cfg.Database.Name)

	return &Container{
		Config:     cfg,
		DB:         db,
		Catalogues: repository.NewCatalogueRepository(db),
		Categories: repository.NewCategoryRepository(db),
		Panels:     repository.NewPanelRepository(db),
	}, nil
}

// ConnectRedis opens the Redis client used by the queue, the scrape state and the cache.
func (c *Container) ConnectRedis(ctx context.Context) error {
	if c.Redis != nil {
		return nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     c.Config.Redis.Addr(),
		Password: c.Config.Redis.Password,
		DB:       c.Config.Redis.Database,
	})
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		_ = rdb.Close()
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Info("✅ Connected to Redis successfully")
	c.Redis = rdb
	return nil
}

// BuildScraper wires the queue, the supplier clients and the ingest service.
func (c *Container) BuildScraper(ctx context.Context) error {
	if err := c.ConnectRedis(ctx); err != nil {
		return err
	}

	redisQueue, err := queue.NewRedisQueue(ctx, c.Redis, c.Config.Redis)
	if err != nil {
		return err
	}
	c.Queue = redisQueue
	c.StateManager = state.NewRedisStateManager(c.Redis)

	for _, supplier := range c.Config.Suppliers {
		proxySupplier, err := proxy.NewProxySupplier(ctx, c.Config.Scraper.Proxies, supplier.BaseURL)
		if err != nil {
			return fmt.Errorf("failed to initialize proxy supplier for %s: %w", supplier.Slug, err)
		}

		supplierClient, err := client.New(supplier, c.Config.Scraper, proxySupplier, redisQueue)
		if err != nil {
			return fmt.Errorf("failed to initialize client for %s: %w", supplier.Slug, err)
		}
		c.Clients = append(c.Clients, supplierClient)
		log.Infof("✅ Client for %s ready (%s, %d proxies)", supplier.Slug, supplier.Fetch, proxySupplier.Len())
	}

	c.Ingest = service.NewIngestService(
		c.Catalogues,
		c.Categories,
		c.Panels,
		c.Clients,
		redisQueue,
		c.StateManager,
		cache.NewRedisClient(c.Redis),
		c.Config,
	)
	return nil
}

// Cache returns the API read cache, or nil when Redis is unreachable.
func (c *Container) Cache(ctx context.Context) cache.Client {
	if err := c.ConnectRedis(ctx); err != nil {
		log.Warnf("⚠️ Running without cache: %v", err)
		return nil
	}
	return cache.NewRedisClient(c.Redis)
}

// BuildCatalog wires the read side of the API. The cache is skipped when Redis is unreachable.
func (c *Container) BuildCatalog(ctx context.Context) {
	c.Catalog = service.NewCatalogService(
		c.Catalogues,
		c.Categories,
		c.Panels,
		c.Cache(ctx),
		time.Duration(c.Config.Redis.CacheTTL)*time.Second,
	)
}

// BuildMaintenance wires the operator service, its backup store and the cache it invalidates.
func (c *Container) BuildMaintenance(ctx context.Context) error {
	store, err := storage.New(ctx, c.Config.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize backup storage: %w", err)
	}
	c.Maintenance = service.NewMaintenanceService(c.Catalogues, c.Categories, c.Panels, store, c.Cache(ctx))
	return nil
}

// RunScraper seeds the catalogues, queues every listing page and consumes the queue until ctx ends.
func (c *Container) RunScraper(ctx context.Context) error {
	if c.Ingest == nil {
		if err := c.BuildScraper(ctx); err != nil {
			return err
		}
	}

	if err := c.Queue.EnsureStreamsExist(ctx); err != nil {
		return err
	}
	if err := c.Ingest.SyncCatalogues(ctx); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		report, err := c.Ingest.ParseAll(ctx)
		if err != nil {
			return err
		}
		for _, itemErr := range report.Errors {
			log.Warnf("⚠️ %s (%s): %s", itemErr.Key, itemErr.Stage, itemErr.Error)
		}

		lengths, err := c.Queue.Lengths(ctx)
		if err != nil {
			log.Warnf("⚠️ Failed to read queue lengths: %v", err)
			return nil
		}
		for taskType, n := range lengths {
			log.Infof("📬 %s: %d tasks in stream", taskType, n)
		}
		return nil
	})

	g.Go(func() error {
		return c.Ingest.RunWorkers(ctx, c.Config.Scraper.MaxWorkers)
	})

	return g.Wait()
}

// RunAPI serves the catalogue API until ctx ends.
func (c *Container) RunAPI(ctx context.Context) error {
	if c.Catalog == nil {
		c.BuildCatalog(ctx)
	}
	if !log.IsLevelEnabled(log.DebugLevel) {
		gin.SetMode(gin.ReleaseMode)
	}
	if c.Config.Server.AdminToken == "" {
		log.Warn("⚠️ server.admin_token is empty, admin routes are disabled")
	}

	router := api.NewRouter(api.NewHandler(c.Catalog, c.DB), c.Config.Server.AdminToken)
	return api.NewServer(c.Config.Server, router).Run(ctx)
}

// Close performs cleanup when shutting down
func (c *Container) Close() error {
	log.Info("Shutting down container...")

	for _, supplierClient := range c.Clients {
		if err := supplierClient.Close(); err != nil {
			log.Warnf("⚠️ Failed to close %s client: %v", supplierClient.Catalogue(), err)
		}
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
	c.DB.Close()

	log.Info("Container shut down successfully")
	return nil
}
