// Package server initializes and runs the rapidphotos server.
// It opens the database and object storage, applies migrations, registers
// metrics and runs the HTTP and gRPC endpoints until a shutdown signal.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/rapidphotos/internal/logging"
	"github.com/dmitrijs2005/rapidphotos/internal/server/config"
	"github.com/dmitrijs2005/rapidphotos/internal/server/metrics"
	"github.com/dmitrijs2005/rapidphotos/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/rapidphotos/internal/server/rest"
	"github.com/dmitrijs2005/rapidphotos/internal/server/services"
	"github.com/dmitrijs2005/rapidphotos/internal/server/storage"
	"github.com/prometheus/client_golang/prometheus"

	gs "github.com/dmitrijs2005/rapidphotos/internal/server/grpc"
)

type App struct {
	config        *config.Config
	logger        logging.Logger
	db            *sql.DB
	gateway       *storage.S3Gateway
	uploadService *services.UploadService
	photoService  *services.PhotoService
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("db migration error: %w", err)
	}

	gw, err := storage.NewS3Gateway(ctx, c)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("object storage init error: %w", err)
	}

	limits := services.NewLimitsService(db, rm, c, logger)
	us := services.NewUploadService(db, rm, gw, limits, c, logger)
	ps := services.NewPhotoService(db, rm, gw, logger)

	collector := metrics.NewDatabaseMetricsCollector(rm.Photos(db), rm.Users(db), c.MaxTotalBytes, logger)
	if err := prometheus.Register(collector); err != nil {
		db.Close()
		return nil, fmt.Errorf("metrics registration error: %w", err)
	}

	return &App{
		config:        c,
		logger:        logger,
		db:            db,
		gateway:       gw,
		uploadService: us,
		photoService:  ps,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.uploadService, app.config.SecretKey,
		app.config.HealthCheckInterval, gs.CheckFunc(app.db.PingContext), gs.CheckFunc(app.gateway.Ping))

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	h := rest.NewHandler(app.uploadService, app.photoService, app.config.SecretKey, app.config.CORSAllowedOrigins, app.logger)
	s := rest.NewHTTPServer(app.config.EndpointAddrHTTP, h, app.logger)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}
