// Package app provides the main application context for demos, managing the database and services.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/demos-sh/demos/cache"
	"github.com/demos-sh/demos/config"
	"github.com/demos-sh/demos/connection"
	"github.com/demos-sh/demos/db"
	"github.com/demos-sh/demos/encryption"
	"github.com/demos-sh/demos/ports"
	"github.com/demos-sh/demos/project"
	"github.com/demos-sh/demos/render"
	"github.com/demos-sh/demos/repository"
	"github.com/demos-sh/demos/sshd"
	"github.com/demos-sh/demos/system"
	"github.com/demos-sh/demos/user"
	"github.com/demos-sh/demos/watcher"
	"gorm.io/gorm"
)

var (
	// Version is set at build time via -ldflags
	Version = "dev"

	database       *gorm.DB
	projectService project.ProjectManager
	userService    user.UserManager
	watcherService *watcher.WatcherService
	lifecycle      *connection.Lifecycle
	appConfig      *config.Config
	stopKeys       func(context.Context)
)

// Dependencies are the host-facing pieces Initialize would otherwise build
// itself. Zero values select the real implementations.
type Dependencies struct {
	Runner system.Runner
	Probe  ports.Prober
}

// InitializeWithConfig initializes the app with a pre-configured Config
func InitializeWithConfig(cfg *config.Config) error {
	return Initialize(cfg, Dependencies{})
}

// Initialize builds the database, stores and services from cfg.
func Initialize(cfg *config.Config, deps Dependencies) error {
	var err error

	// Store the provided config
	appConfig = cfg

	if deps.Runner == nil {
		deps.Runner = system.NewExecRunner()
	}

	// Ensure required directories exist
	if cfg.DatabasePath != ":memory:" {
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return err
		}
	}

	// Initialize database using config
	database, err = db.InitDB(cfg.DatabasePath)
	if err != nil {
		return err
	}

	// Initialize encryption service
	encryptionSvc, err := encryption.NewEncryptionService(cfg.EncryptionKey)
	if err != nil {
		return err
	}

	// Initialize repositories
	projectRepo := repository.NewProjectRepository(database, encryptionSvc)
	userRepo := repository.NewUserRepository(database)

	store, purger, err := newStore(cfg, database)
	if err != nil {
		return err
	}

	renderer := render.NewRenderer(deps.Runner, render.Options{
		VhostDir:      cfg.VhostDir,
		PageDir:       cfg.PageDir,
		BaseHost:      cfg.BaseHost,
		ReloadCommand: cfg.NginxReload,
		UpstreamHost:  cfg.UpstreamHost,
		ListenPort:    cfg.ListenHTTPPort,
	})
	provisioner := sshd.NewProvisioner(deps.Runner, sshd.Options{
		DropInDir:     cfg.SSHDropInDir,
		HomeRoot:      cfg.HomeRoot,
		ReloadCommand: cfg.SSHReload,
		Excluded:      cfg.UsernameExcludeList,
	})
	allocator := ports.NewAllocator(store, ports.Options{
		RangeStart: cfg.PortRangeStart,
		RangeEnd:   cfg.PortRangeEnd,
		LeaseTTL:   cfg.LeaseTTL,
		Probe:      deps.Probe,
	})

	lifecycle = connection.NewLifecycle(projectRepo, store, allocator, renderer, connection.NewScheduler(), connection.Options{
		KeepAliveTimeout: cfg.KeepAliveTimeout,
	})

	// Initialize services with dependency injection
	projects := project.NewProjectService(projectRepo, userRepo, renderer, provisioner, lifecycle, cfg)
	projectService = projects
	stopKeys = projects.Stop
	userService = user.NewUserService(userRepo, projects, provisioner, cfg)
	watcherService = watcher.NewWatcherService(lifecycle, purger, cfg.SweepInterval)

	slog.Debug("Application initialized",
		"database", cfg.DatabasePath,
		"cache_backend", cfg.CacheBackend,
		"base_host", cfg.BaseHost)
	return nil
}

func newStore(cfg *config.Config, database *gorm.DB) (cache.Store, cache.Purger, error) {
	switch cfg.CacheBackend {
	case config.CacheBackendMemory:
		s := cache.NewMemoryStore()
		return s, s, nil
	case config.CacheBackendDatabase:
		s := cache.NewDBStore(database)
		return s, s, nil
	default:
		return nil, nil, fmt.Errorf("unknown cache backend: %s", cfg.CacheBackend)
	}
}

// Shutdown revokes outstanding keys, stops pending liveness checks and
// closes the database.
func Shutdown(ctx context.Context) error {
	if stopKeys != nil {
		stopKeys(ctx)
	}
	if lifecycle != nil {
		lifecycle.Stop()
	}
	if database == nil {
		return nil
	}
	sqlDB, err := database.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func GetProjectService() project.ProjectManager {
	return projectService
}

func GetUserService() user.UserManager {
	return userService
}

func GetWatcherService() *watcher.WatcherService {
	return watcherService
}

func GetConfig() *config.Config {
	return appConfig
}

// SetProjectServiceForTesting allows overriding the project service for testing purposes
func SetProjectServiceForTesting(service project.ProjectManager) {
	projectService = service
}

// SetUserServiceForTesting allows overriding the user service for testing purposes
func SetUserServiceForTesting(service user.UserManager) {
	userService = service
}

// SetConfigForTesting allows overriding the configuration for testing purposes
func SetConfigForTesting(cfg *config.Config) {
	appConfig = cfg
}
