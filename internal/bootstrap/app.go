package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"

	"callcenter-backend/internal/auth"
	"callcenter-backend/internal/calls"
	"callcenter-backend/internal/ingest"
	"callcenter-backend/internal/personnel"
	"callcenter-backend/internal/queue"
	"callcenter-backend/internal/recordings"
	"callcenter-backend/internal/services/health"
	sharedauth "callcenter-backend/internal/shared/auth"
	"callcenter-backend/internal/shared/cache"
	"callcenter-backend/internal/shared/config"
	"callcenter-backend/internal/shared/metrics"
	"callcenter-backend/internal/shared/server"
	"callcenter-backend/internal/shared/storage/db"
	"callcenter-backend/internal/shared/storage/object"
	localstore "callcenter-backend/internal/shared/storage/object/local"
	s3store "callcenter-backend/internal/shared/storage/object/s3"
	"callcenter-backend/internal/shared/telemetry"
)

const cacheKeyPrefix = "callcenter:"

// App holds shared dependencies and the wired router.
type App struct {
	Config config.Config
	Router *gin.Engine
	DB     *sql.DB
	Store  object.ObjectStore
	Cache  cache.Cache
	Queue  queue.Client

	CallsRepo     calls.Repo
	PersonnelRepo personnel.Repo
	AuthRepo      auth.Repo

	CallsService      *calls.Service
	PersonnelService  *personnel.Service
	AuthService       *auth.Service
	RecordingsService *recordings.Service
	Health            *health.Service

	CallsHandler      *calls.Handler
	PersonnelHandler  *personnel.Handler
	AuthHandler       *auth.Handler
	GoogleAuth        *auth.GoogleService
	RecordingsHandler *recordings.Handler
	IngestHandler     *ingest.Handler

	closers []func()
	audit   auth.Subscription
	wg      sync.WaitGroup
}

// Build prepares shared dependencies and wires routes.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		DB:     sqlDB,
		Store:  store,
	}

	if err := app.buildCache(); err != nil {
		return nil, err
	}
	if err := app.buildQueue(ctx); err != nil {
		return nil, err
	}
	if err := buildServices(app); err != nil {
		return nil, err
	}
	app.startAudit()

	app.Router = server.NewRouter(server.RouterDeps{
		Config:            app.Config,
		Sessions:          app.AuthService,
		Health:            app.Health,
		AuthHandler:       app.AuthHandler,
		GoogleAuth:        app.GoogleAuth,
		CallsHandler:      app.CallsHandler,
		PersonnelHandler:  app.PersonnelHandler,
		RecordingsHandler: app.RecordingsHandler,
		IngestHandler:     app.IngestHandler,
	})

	return app, nil
}

// Close stops background work and releases connections.
func (a *App) Close() {
	a.audit.Close()
	a.wg.Wait()
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if cfg.IsDevLike() {
			telemetry.Warn("bootstrap.db.memory", map[string]any{"reason": "DATABASE_URL empty"})
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	var (
		sqlDB *sql.DB
		err   error
	)
	if db.IsLambdaRuntime() {
		sqlDB, err = db.Shared(ctx, cfg.DatabaseURL, db.DefaultOptions(db.ProfileLambda).WithEnv())
	} else {
		sqlDB, err = db.Connect(ctx, cfg.DatabaseURL, db.DefaultOptions(db.ProfileServer).WithEnv())
	}
	if err != nil {
		if cfg.IsDevLike() {
			telemetry.Warn("bootstrap.db.memory", map[string]any{"reason": "connect failed", "error": err.Error()})
			return nil, nil
		}
		return nil, err
	}
	metrics.RegisterDB(sqlDB)
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		return s3store.New(ctx, s3store.Options{
			Region:          cfg.AWSRegion,
			Bucket:          cfg.S3Bucket,
			Prefix:          cfg.S3Prefix,
			Endpoint:        cfg.S3Endpoint,
			KMSKeyID:        cfg.SSEKMSKeyID,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
		})
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func (a *App) buildCache() error {
	if a.Config.CacheBackend != "valkey" {
		a.Cache = cache.NewMemory(a.Config.StatsCacheTTL, 2*a.Config.StatsCacheTTL)
		return nil
	}
	v, err := cache.NewValkey(a.Config.ValkeyAddr, cacheKeyPrefix)
	if err != nil {
		if a.Config.IsDevLike() {
			telemetry.Warn("bootstrap.cache.memory", map[string]any{"error": err.Error()})
			a.Cache = cache.NewMemory(a.Config.StatsCacheTTL, 2*a.Config.StatsCacheTTL)
			return nil
		}
		return err
	}
	a.Cache = v
	a.closers = append(a.closers, v.Close)
	return nil
}

func (a *App) buildQueue(ctx context.Context) error {
	if strings.TrimSpace(a.Config.QueueURL) == "" {
		return nil
	}
	q, err := queue.NewSQSClient(ctx, a.Config.AWSRegion, a.Config.QueueURL)
	if err != nil {
		return err
	}
	a.Queue = q
	return nil
}

func buildServices(app *App) error {
	if app.DB != nil {
		app.CallsRepo = &calls.PGRepo{DB: app.DB}
		app.PersonnelRepo = &personnel.PGRepo{DB: app.DB}
		app.AuthRepo = &auth.PGRepo{DB: app.DB}
	} else {
		app.CallsRepo = calls.NewMemoryRepo()
		app.PersonnelRepo = personnel.NewMemoryRepo()
		app.AuthRepo = auth.NewMemoryRepo()
	}

	signer, err := sharedauth.NewSigner(app.Config.JWTSecret, app.Config.Env, app.Config.SessionTTL)
	if err != nil {
		return err
	}

	personnelSvc := personnel.NewService(app.PersonnelRepo)
	callsSvc := calls.NewService(app.CallsRepo, app.Cache, app.Config.StatsCacheTTL, personnelSvc)
	if loc, err := app.Config.StatsLocation(); err == nil {
		callsSvc.Location = loc
	} else {
		telemetry.Warn("config.invalid", map[string]any{"key": "STATS_TIMEZONE", "error": err.Error()})
	}
	authSvc := auth.NewService(app.AuthRepo, signer, personnelSvc, app.Config.SessionTTL)
	recordingsSvc := recordings.NewService(app.Store, app.Config.MaxUploadBytes)

	app.PersonnelService = personnelSvc
	app.CallsService = callsSvc
	app.AuthService = authSvc
	app.RecordingsService = recordingsSvc
	app.Health = health.NewService(pinger(app.DB))

	app.CallsHandler = calls.NewHandler(callsSvc)
	app.PersonnelHandler = personnel.NewHandler(personnelSvc)
	app.AuthHandler = auth.NewHandler(authSvc)
	app.GoogleAuth = auth.NewGoogleService(authSvc, app.Cache, auth.GoogleConfig{
		ClientID:     app.Config.GoogleClientID,
		ClientSecret: app.Config.GoogleClientSecret,
		RedirectURL:  app.Config.GoogleRedirectURL,
		UIRedirect:   app.Config.UIRedirectURL,
	})
	app.RecordingsHandler = recordings.NewHandler(recordingsSvc)
	app.IngestHandler = ingest.NewHandler(app.Queue)

	if app.CallsHandler == nil || app.AuthHandler == nil {
		return errors.New("failed to initialize handlers")
	}
	return nil
}

// pinger avoids wrapping a nil *sql.DB in a non-nil interface.
func pinger(d *sql.DB) health.Pinger {
	if d == nil {
		return nil
	}
	return d
}

// startAudit logs every auth state change.
func (a *App) startAudit() {
	a.audit = a.AuthService.Subscribe(0)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		for ev := range a.audit.Events {
			telemetry.Info("auth.audit", map[string]any{
				"event":      string(ev.Type),
				"account_id": ev.AccountID,
				"session_id": ev.SessionID,
				"at":         ev.At,
			})
		}
	}()
}
