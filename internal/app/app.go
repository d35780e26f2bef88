package app

import (
	"context"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/manishjain-py/learnlikemagic-sub006/internal/data/repos"
	"github.com/manishjain-py/learnlikemagic-sub006/internal/db"
	internalhttp "github.com/manishjain-py/learnlikemagic-sub006/internal/http"
	"github.com/manishjain-py/learnlikemagic-sub006/internal/pkg/logger"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Server   *internalhttp.Server
	Router   *gin.Engine
	Cfg      Config
	Clients  Clients
	Repos    repos.Set
	Services Services
}

func New() (*App, error) {
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

	pg, err := db.NewPostgresService(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	if cfg.AutoMigrate {
		if err := pg.AutoMigrateAll(); err != nil {
			log.Sync()
			return nil, fmt.Errorf("postgres automigrate: %w", err)
		}
	}
	theDB := pg.DB()

	clients, err := wireClients(log, cfg)
	if err != nil {
		log.Sync()
		return nil, err
	}

	reposet := repos.Wire(theDB, log)
	serviceset, err := wireServices(theDB, log, cfg, reposet, clients)
	if err != nil {
		log.Sync()
		return nil, err
	}

	handlerset := wireHandlers(log, serviceset)
	server := internalhttp.NewServer(internalhttp.RouterConfig{
		Log:              log,
		CORSOrigins:      cfg.CORSOrigins,
		BookHandler:      handlerset.Book,
		PageHandler:      handlerset.Page,
		GuidelineHandler: handlerset.Guideline,
		HealthHandler:    handlerset.Health,
	})

	return &App{
		Log:      log,
		DB:       theDB,
		Server:   server,
		Router:   server.Engine,
		Cfg:      cfg,
		Clients:  clients,
		Repos:    reposet,
		Services: serviceset,
	}, nil
}

func (a *App) Run() error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	a.Log.Info("listening", "addr", a.Cfg.ListenAddr)
	return a.Server.Run(a.Cfg.ListenAddr)
}

// Shutdown stops the HTTP listener and waits for in-flight requests.
func (a *App) Shutdown(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return nil
	}
	return a.Server.Shutdown(ctx)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.Clients.Vision != nil {
		if err := a.Clients.Vision.Close(); err != nil && a.Log != nil {
			a.Log.Warn("closing vision client", "error", err)
		}
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
