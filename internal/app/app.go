package app

import (
	"context"
	"net/http"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"db-schema-keeper/internal/config"
	"db-schema-keeper/internal/handlers"
	"db-schema-keeper/internal/middleware"
	"db-schema-keeper/internal/models"
	"db-schema-keeper/internal/services"
)

type Application struct {
	Config      *config.AppConfig
	DB          *sqlx.DB
	Redis       *redis.Client
	Logger      *zap.Logger
	Models      []models.Model
	Resetter    *services.SchemaResetter
	Maintenance *services.MaintenanceService
	Trees       *services.TreeService
}

// NewApplication wires the services. redisClient may be nil, in which case
// resets are not coordinated across instances.
func NewApplication(cfg *config.AppConfig, db *sqlx.DB, redisClient *redis.Client, ms []models.Model, logger *zap.Logger) *Application {
	app := &Application{
		Config: cfg,
		DB:     db,
		Redis:  redisClient,
		Logger: logger,
		Models: ms,
	}

	introspector := services.NewMySQLIntrospector(db, logger.Named("introspector"))

	opts := []services.ResetterOption{
		services.WithConcurrency(cfg.Reset.Concurrency),
		services.WithTimeout(cfg.Reset.Timeout),
	}
	if redisClient != nil {
		opts = append(opts, services.WithLocker(
			services.NewRedisLocker(redisClient, cfg.Redis.LockKey, cfg.Redis.LockTTL)))
	}
	app.Resetter = services.NewSchemaResetter(introspector, logger.Named("resetter"), opts...)

	app.Maintenance = services.NewMaintenanceService(app.Resetter, ms, cfg.Maintenance.Schedule, logger.Named("maintenance"))
	app.Trees = services.NewTreeService(db, introspector, logger.Named("tree"))

	return app
}

// StartupReset resets every declared model in the background. It never
// blocks or fails startup; the outcome is only logged.
func (app *Application) StartupReset(ctx context.Context) {
	if !app.Config.Reset.OnStartup || len(app.Models) == 0 {
		return
	}

	go func() {
		app.Logger.Info("Startup schema reset started", zap.Int("models", len(app.Models)))
		if err := app.Resetter.ResetTables(context.WithoutCancel(ctx), app.Models); err != nil {
			app.Logger.Error("Startup schema reset failed", zap.Error(err))
			return
		}
		app.Logger.Info("Startup schema reset completed")
	}()
}

// Routes registers every endpoint with CORS and request logging.
func (app *Application) Routes() *http.ServeMux {
	h := handlers.NewHandler(app.Maintenance, app.Resetter, app.Trees, app.Models, app.Logger.Named("http"))

	wrap := func(fn http.HandlerFunc) http.HandlerFunc {
		return middleware.WithLogging(app.Logger.Named("http"), middleware.CORS(fn))
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", wrap(h.RootHandler))
	mux.HandleFunc("/health", wrap(h.HealthHandler))
	mux.HandleFunc("/api/maintenance/start", wrap(h.StartMaintenanceHandler))
	mux.HandleFunc("/api/maintenance/stop", wrap(h.StopMaintenanceHandler))
	mux.HandleFunc("/api/maintenance/run", wrap(h.RunMaintenanceHandler))
	mux.HandleFunc("/api/maintenance/status", wrap(h.StatusHandler))
	mux.HandleFunc("/api/maintenance/config", wrap(h.ConfigHandler))
	mux.HandleFunc("/api/schema/plan", wrap(h.PlanHandler))
	mux.HandleFunc("/api/schema/foreign-keys/reset", wrap(h.ResetForeignKeysHandler))
	mux.HandleFunc("/api/schema/indexes/reset", wrap(h.ResetIndexesHandler))
	mux.HandleFunc("/api/schema/tables/{table}/reset", wrap(h.ResetTableHandler))
	mux.HandleFunc("/api/tree", wrap(h.BuildTreeHandler))
	mux.HandleFunc("/api/tables/{table}/tree", wrap(h.TableTreeHandler))
	return mux
}

func (app *Application) Close() {
	if app.Maintenance != nil && app.Maintenance.IsRunning() {
		app.Maintenance.Stop()
	}

	if app.Redis != nil {
		app.Redis.Close()
	}

	if app.DB != nil {
		app.DB.Close()
	}

	app.Logger.Sync()
}
