package app

import (
	"context"
	"net/http"
	"time"

	config "github.com/DRSN-tech/garment-search/internal/cfg"
	v1Http "github.com/DRSN-tech/garment-search/internal/delivery/v1/http"
	"github.com/DRSN-tech/garment-search/internal/domain"
	"github.com/DRSN-tech/garment-search/internal/infrastructure"
	"github.com/DRSN-tech/garment-search/internal/infrastructure/downloader"
	"github.com/DRSN-tech/garment-search/internal/infrastructure/kafka"
	minioInfra "github.com/DRSN-tech/garment-search/internal/infrastructure/minio"
	ml_service "github.com/DRSN-tech/garment-search/internal/infrastructure/ml-service"
	"github.com/DRSN-tech/garment-search/internal/infrastructure/vision"
	s3Repo "github.com/DRSN-tech/garment-search/internal/repository/minio"
	"github.com/DRSN-tech/garment-search/internal/repository/pgdb"
	qdrantRepo "github.com/DRSN-tech/garment-search/internal/repository/qdrant"
	"github.com/DRSN-tech/garment-search/internal/repository/redis"
	"github.com/DRSN-tech/garment-search/internal/repository/sqlite"
	"github.com/DRSN-tech/garment-search/internal/usecase"
	"github.com/DRSN-tech/garment-search/pkg/clients"
	"github.com/DRSN-tech/garment-search/pkg/closer"
	"github.com/DRSN-tech/garment-search/pkg/e"
	"github.com/DRSN-tech/garment-search/pkg/logger"
	"github.com/DRSN-tech/garment-search/pkg/postgres"
	"github.com/go-chi/chi/v5"
	"github.com/jimlawless/whereami"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const (
	initTimeout     = 10 * time.Second
	shutdownTimeout = 10 * time.Second
)

// App собирает зависимости сервиса. Необязательные бэкенды (MinIO, Qdrant, Redis, Kafka)
// подключаются только если включены в конфигурации.
type App struct {
	cfg    *config.Config
	logger logger.Logger
	closer *closer.Closer

	searchUC    *usecase.SearchUseCase
	catalogUC   *usecase.CatalogUseCase
	embeddingUC *usecase.EmbeddingUseCase
	checks      map[string]v1Http.HealthCheck
}

func NewApp(ctx context.Context, cfg *config.Config, logger logger.Logger) (_ *App, err error) {
	app := &App{
		cfg:    cfg,
		logger: logger,
		closer: closer.NewCloser(0),
		checks: make(map[string]v1Http.HealthCheck),
	}
	// При ошибке инициализации освобождаем уже открытые ресурсы
	defer func() {
		if err != nil {
			app.shutdown()
		}
	}()

	initCtx, cancel := context.WithTimeout(ctx, initTimeout)
	defer cancel()

	catalog, err := app.initCatalog(initCtx)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	conn, err := grpc.NewClient(
		cfg.Ml.Addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()), // явное указание gRPC-клиенту использовать НЕзащищённое соединение (без TLS).
	)
	if err != nil {
		logger.Errorf(err, "failed to initialize grpc client")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	app.closer.AddCloser("ml grpc connection", conn.Close)

	ml := ml_service.NewMLService(conn, cfg.Ml.MaxRetries, cfg.Ml.RequestTimeout, logger)
	runtime := vision.NewRuntime(ml)
	localizer := vision.NewLocalizer(runtime, cfg.Ml.ScoreThreshold)
	embedder := vision.NewEmbedder(runtime)

	mirror, err := app.initImageMirror(initCtx)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	imageDownloader := downloader.New(&http.Client{}, mirror, downloader.Options{
		Timeout:   cfg.Pipeline.DownloadTimeout,
		Retries:   cfg.Pipeline.DownloadRetries,
		MaxBytes:  cfg.Pipeline.MaxImageBytes,
		UserAgent: cfg.Pipeline.DownloadUserAgent,
	}, logger)

	embeddingMirror, err := app.initEmbeddingMirror(initCtx)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	cache, err := app.initCache(initCtx)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	publisher, err := app.initPublisher()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	app.embeddingUC = usecase.NewEmbeddingUC(
		catalog,
		imageDownloader,
		localizer,
		embedder,
		embeddingMirror,
		cache,
		publisher,
		cfg.Catalog.Partitions,
		usecase.EmbeddingOptions{
			DownloadWorkers: cfg.Pipeline.DownloadWorkers,
			BatchSize:       cfg.Pipeline.BatchSize,
			CheckpointSize:  cfg.Pipeline.CheckpointSize,
			UseLocalizer:    cfg.Pipeline.UseLocalizer,
			CropPadding:     cfg.Pipeline.CropPadding,
		},
		logger,
	)

	app.searchUC = usecase.NewSearchUC(
		catalog,
		infrastructure.NewImageDecoder(cfg.Http.MaxImageSize),
		localizer,
		embedder,
		cache,
		cfg.Catalog.Partitions,
		usecase.SearchOptions{TopK: cfg.Search.TopK},
		logger,
	)

	app.catalogUC = usecase.NewCatalogUC(catalog, cfg.Catalog.Partitions, logger)

	return app, nil
}

// Serve запускает HTTP API и блокируется до отмены ctx или ошибки сервера.
func (a *App) Serve(ctx context.Context) error {
	defer a.shutdown()

	r := chi.NewRouter()
	router := v1Http.NewRouter(r, a.logger)
	router.Init(a.searchUC, a.catalogUC, a.cfg.Http.MaxImageSize, a.checks)

	httpSrv := v1Http.NewServer(r, a.cfg.Http)

	errCh := make(chan error, 1)
	go func() {
		a.logger.Infof("HTTP server started on port %s", a.cfg.Http.Port)
		errCh <- httpSrv.Run()
	}()

	var appErr error
	select {
	case appErr = <-errCh:
		if appErr != nil {
			a.logger.Errorf(appErr, "HTTP server fatal error")
		}
	case <-ctx.Done():
		a.logger.Infof("Received shutdown signal, stopping gracefully...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpSrv.Stop(shutdownCtx); err != nil {
		a.logger.Errorf(err, "HTTP server shutdown error")
	} else {
		a.logger.Infof("HTTP server stopped")
	}

	return appErr
}

// RunEmbedding выполняет один прогон пакетной генерации эмбеддингов.
func (a *App) RunEmbedding(ctx context.Context, fullRefresh bool) (*domain.BatchRun, error) {
	defer a.shutdown()

	run, err := a.embeddingUC.Run(ctx, usecase.NewRunEmbeddingReq(fullRefresh))
	if err != nil {
		return run, e.Wrap(whereami.WhereAmI(), err)
	}

	return run, nil
}

func (a *App) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.closer.Close(ctx); err != nil {
		a.logger.Warnf("shutdown finished with errors: %v", err)
		return
	}
	a.logger.Infof("Application shutdown complete")
}

func (a *App) initCatalog(ctx context.Context) (usecase.CatalogRepository, error) {
	switch a.cfg.Catalog.Driver {
	case config.DriverSqlite:
		repo, err := sqlite.Open(a.cfg.Sqlite.Path, a.logger)
		if err != nil {
			a.logger.Errorf(err, "failed to open sqlite catalog")
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}
		a.closer.AddCloser("sqlite", repo.Close)

		for _, p := range a.cfg.Catalog.Partitions {
			if err := repo.EnsurePartition(ctx, p); err != nil {
				a.logger.Errorf(err, "failed to create partition %s", p)
				return nil, e.Wrap(whereami.WhereAmI(), err)
			}
		}

		return repo, nil
	default:
		db, err := initPGDB(ctx, a.logger, a.cfg)
		if err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}
		a.closer.AddCloser("postgres", func() error {
			db.Close()
			return nil
		})
		a.checks["postgres"] = db.Ping

		return pgdb.NewCatalogRepo(db.Pool, a.logger), nil
	}
}

func (a *App) initImageMirror(ctx context.Context) (downloader.ImageMirror, error) {
	if !a.cfg.Minio.Enabled {
		return nil, nil
	}

	minioClient, err := clients.NewMinIOClient(a.cfg.Minio)
	if err != nil {
		a.logger.Errorf(err, "failed to initialize minio client")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	if err := clients.EnsureBucket(ctx, minioClient, a.cfg.Minio.BucketName); err != nil {
		a.logger.Errorf(err, "failed to initialize MinIO bucket")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	uploadsCtx, cancelUploads := context.WithCancel(context.Background())
	imageRepo := s3Repo.NewImageRepo(minioClient, a.cfg.Minio.BucketName, a.cfg.Pipeline.MaxImageBytes)
	imagesInfra := minioInfra.NewMinioInfrastructure(imageRepo, a.cfg.Minio.BucketName, a.logger, uploadsCtx)

	a.closer.Add("minio uploads", func(ctx context.Context) error {
		defer cancelUploads()
		return imagesInfra.WaitForUploads(ctx)
	})

	return imagesInfra, nil
}

func (a *App) initEmbeddingMirror(ctx context.Context) (usecase.EmbeddingMirrorRepository, error) {
	if !a.cfg.Qdrant.Enabled {
		return nil, nil
	}

	qdrantClient, err := clients.NewQdrantClient(a.cfg.Qdrant)
	if err != nil {
		a.logger.Errorf(err, "failed to initialize qdrant")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	a.closer.AddCloser("qdrant", qdrantClient.Close)

	if err := clients.EnsureCollection(ctx, qdrantClient); err != nil {
		a.logger.Errorf(err, "failed to initialize qdrant collection")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return qdrantRepo.NewEmbeddingRepo(qdrantClient.Client, a.cfg.Qdrant), nil
}

func (a *App) initCache(ctx context.Context) (usecase.CacheRepository, error) {
	if !a.cfg.Redis.Enabled {
		return nil, nil
	}

	redisClient := clients.NewRedisClient(a.cfg.Redis)
	a.closer.AddCloser("redis", redisClient.Close)

	if err := redisClient.Ping(ctx); err != nil {
		a.logger.Errorf(err, "failed to connect to redis")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	a.checks["redis"] = redisClient.Ping

	return redis.NewCacheRepo(redisClient, a.cfg.Redis, a.logger), nil
}

func (a *App) initPublisher() (usecase.ReportPublisher, error) {
	if !a.cfg.Kafka.Enabled {
		return nil, nil
	}

	producer, err := kafka.NewProducer(a.logger, a.cfg.Kafka)
	if err != nil {
		a.logger.Errorf(err, "failed to initialize kafka producer")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	a.closer.AddCloser("kafka", producer.Close)

	if err := producer.EnsureTopic(initTimeout); err != nil {
		// Отчёты не критичны для прогона, топик может создать сам брокер
		a.logger.Warnf("failed to ensure kafka topic %s: %v", a.cfg.Kafka.Topic, err)
	}

	return producer, nil
}

func initPGDB(ctx context.Context, logger logger.Logger, cfg *config.Config) (*postgres.PgDatabase, error) {
	db, err := postgres.Connect(ctx, cfg.Db)
	if err != nil {
		logger.Errorf(err, "failed to connect to database")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	if err := db.RunMigrations(logger); err != nil {
		db.Close()
		logger.Errorf(err, "failed to run migrations")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return db, nil
}
