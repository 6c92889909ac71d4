package app

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gorm.io/gorm"

	catalogrepo "github.com/yungbote/trainwatch-backend/internal/data/repos/catalog"
	"github.com/yungbote/trainwatch-backend/internal/data/db"
	"github.com/yungbote/trainwatch-backend/internal/http"
	"github.com/yungbote/trainwatch-backend/internal/observability"
	"github.com/yungbote/trainwatch-backend/internal/platform/logger"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Server   *http.Server
	Cfg      Config
	Repos    Repos
	Services Services
	Clients  Clients
	Metrics  *observability.Metrics

	pg           *db.PostgresService
	otelShutdown func(context.Context) error
	cancel       context.CancelFunc
}

func New(ctx context.Context) (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading environment variables...")
	cfg := LoadConfig(log)

	otelShutdown := observability.InitOTel(ctx, log, cfg.Otel)
	metrics := observability.Init(log)

	pg, err := db.NewPostgresService(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init database: %w", err)
	}
	if cfg.AutoMigrate {
		if err := pg.AutoMigrateAll(); err != nil {
			_ = pg.Close()
			log.Sync()
			return nil, fmt.Errorf("automigrate: %w", err)
		}
	}
	theDB := pg.DB()

	clients, err := wireClients(log, cfg)
	if err != nil {
		_ = pg.Close()
		log.Sync()
		return nil, err
	}

	reposet := wireRepos(theDB, log)
	serviceset, err := wireServices(theDB, log, cfg, reposet, clients, metrics)
	if err != nil {
		clients.Close()
		_ = pg.Close()
		log.Sync()
		return nil, err
	}
	handlerset := wireHandlers(log, theDB, clients, serviceset)

	return &App{
		Log:          log,
		DB:           theDB,
		Server:       wireServer(log, cfg, metrics, handlerset),
		Cfg:          cfg,
		Repos:        reposet,
		Services:     serviceset,
		Clients:      clients,
		Metrics:      metrics,
		pg:           pg,
		otelShutdown: otelShutdown,
	}, nil
}

// Migrate creates or updates every table and index.
func (a *App) Migrate() error {
	return a.pg.AutoMigrateAll()
}

// ImportCatalog loads a concept seed file and upserts it.
func (a *App) ImportCatalog(ctx context.Context, path string) (int, error) {
	concepts, err := catalogrepo.LoadFile(path)
	if err != nil {
		return 0, err
	}
	n, err := a.Repos.Concepts.Upsert(ctx, nil, concepts)
	if err != nil {
		return 0, fmt.Errorf("upsert concepts: %w", err)
	}
	a.Log.Info("concept catalog imported", "path", path, "concepts", n)
	return n, nil
}

// Start launches background work: collectors, the repair worker and the
// startup catalog import.
func (a *App) Start(ctx context.Context) error {
	if a == nil || a.cancel != nil {
		return nil
	}
	if path := strings.TrimSpace(a.Cfg.ConceptCatalogFile); path != "" {
		if _, err := a.ImportCatalog(ctx, path); err != nil {
			return fmt.Errorf("import concept catalog: %w", err)
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.Metrics.StartPostgresCollector(ctx, a.Log, a.DB)
	if a.Clients.Redis != nil {
		a.Metrics.StartRedisCollector(ctx, a.Log, a.Clients.Redis)
	}
	if a.Services.RepairWorker != nil {
		a.Services.RepairWorker.Start(ctx)
	}
	return nil
}

func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	addr := ":" + strings.TrimPrefix(a.Cfg.Port, ":")
	a.Log.Info("HTTP server listening", "addr", addr)
	return a.Server.Run(ctx, addr)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
		if a.Services.RepairWorker != nil {
			a.Services.RepairWorker.Wait()
		}
	}
	a.Clients.Close()
	if a.pg != nil {
		_ = a.pg.Close()
	}
	if a.otelShutdown != nil {
		_ = a.otelShutdown(context.Background())
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
