package cfg

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/DRSN-tech/garment-search/pkg/e"
	"github.com/DRSN-tech/garment-search/pkg/logger"
	"github.com/jimlawless/whereami"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DriverPostgres = "postgres"
	DriverSqlite   = "sqlite"
)

type Config struct {
	Http     *HTTPConfig
	Db       *PGDBCfg
	Sqlite   *SqliteCfg
	Catalog  *CatalogCfg
	Ml       *MLServiceCfg
	Pipeline *PipelineCfg
	Search   *SearchCfg
	Redis    *RedisCfg
	Minio    *MinIOCfg
	Qdrant   *QdrantCfg
	Kafka    *KafkaCfg
}

type HTTPConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	MaxImageSize int64
}

type PGDBCfg struct {
	Host          string
	Port          string
	User          string
	Password      string
	DBName        string
	SSLMode       string
	MigrationsURL string
}

type SqliteCfg struct {
	Path string
}

// CatalogCfg описывает хранилище каталога и список партиций (по одной на магазин).
type CatalogCfg struct {
	Driver     string
	Partitions []string
}

type MLServiceCfg struct {
	Addr           string
	MaxRetries     int
	RequestTimeout time.Duration
	ScoreThreshold float64
}

// PipelineCfg — параметры пакетной генерации эмбеддингов.
type PipelineCfg struct {
	DownloadWorkers   int
	DownloadTimeout   time.Duration
	DownloadRetries   int
	MaxImageBytes     int64
	UseLocalizer      bool
	CropPadding       int
	BatchSize         int
	CheckpointSize    int
	DownloadUserAgent string
}

type SearchCfg struct {
	TopK int
}

type RedisCfg struct {
	Enabled     bool
	Addr        string
	Password    string
	User        string
	DB          int
	MaxRetries  int
	DialTimeout time.Duration
	Timeout     time.Duration
	ResultTTL   time.Duration
}

type MinIOCfg struct {
	Enabled           bool
	MinioEndpoint     string // Адрес конечной точки Minio
	BucketName        string // Бакет для зеркала изображений каталога
	MinioRootUser     string
	MinioRootPassword string
	MinioUseSSL       bool
}

type QdrantCfg struct {
	Enabled              bool
	Port                 int
	Host                 string
	ApiKey               string
	QdrantCollectionName string // имя коллекции в Qdrant
	UseTLS               bool
	VectorSize           uint64
}

type KafkaCfg struct {
	Enabled           bool
	Topic             string
	Brokers           []string
	NetworkMode       string
	Partitions        int
	ReplicationFactor int
}

// partitionsFile — формат YAML-файла со списком партиций.
type partitionsFile struct {
	Partitions []string `yaml:"partitions"`
}

var partitionNameRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

var defaultPartitions = []string{"hm_products", "weekday_products", "zara_products", "follestad_products"}

// Load безопасно загружает конфигурацию и возвращает ошибку в случае неудачи.
// Перед чтением переменных окружения подгружается .env, если он есть.
func Load(log logger.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warnf("failed to load .env: %v", err)
	}

	catalog, err := loadCatalogCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	var db *PGDBCfg
	if catalog.Driver == DriverPostgres {
		db, err = loadPGDBCfg(log)
		if err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}
	}

	http, err := loadHTTPConfig(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	ml, err := loadMLServiceCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	pipeline, err := loadPipelineCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	search, err := loadSearchCfg()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	redis, err := loadRedisCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	minio, err := loadMinIOCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	qdrant, err := loadQdrantCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	kafka, err := loadKafkaCfg()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return &Config{
		Http:     http,
		Db:       db,
		Sqlite:   &SqliteCfg{Path: getEnvOrDefault("SQLITE_PATH", "catalog.db")},
		Catalog:  catalog,
		Ml:       ml,
		Pipeline: pipeline,
		Search:   search,
		Redis:    redis,
		Minio:    minio,
		Qdrant:   qdrant,
		Kafka:    kafka,
	}, nil
}

func loadCatalogCfg(log logger.Logger) (*CatalogCfg, error) {
	driver := strings.ToLower(getEnvOrDefault("CATALOG_DRIVER", DriverPostgres))
	if driver != DriverPostgres && driver != DriverSqlite {
		err := fmt.Errorf("unknown CATALOG_DRIVER %q", driver)
		log.Errorf(err, "invalid CATALOG_DRIVER")
		return nil, err
	}

	partitions := defaultPartitions
	if path := getEnv("CATALOG_PARTITIONS_FILE"); path != "" {
		fromFile, err := loadPartitionsFile(path)
		if err != nil {
			log.Errorf(err, "invalid CATALOG_PARTITIONS_FILE")
			return nil, err
		}
		partitions = fromFile
	}
	if raw := getEnv("CATALOG_PARTITIONS"); raw != "" {
		partitions = splitList(raw)
	}

	if err := ValidatePartitions(partitions); err != nil {
		log.Errorf(err, "invalid catalog partitions")
		return nil, err
	}

	return &CatalogCfg{
		Driver:     driver,
		Partitions: partitions,
	}, nil
}

// ValidatePartitions проверяет, что список непустой, имена уникальны и годятся как SQL-идентификаторы.
func ValidatePartitions(partitions []string) error {
	if len(partitions) == 0 {
		return e.ErrNoPartitions
	}

	seen := make(map[string]struct{}, len(partitions))
	for _, p := range partitions {
		if !partitionNameRe.MatchString(p) {
			return e.Wrap(p, e.ErrInvalidPartition)
		}
		if _, ok := seen[p]; ok {
			return e.Wrap("duplicate "+p, e.ErrInvalidPartition)
		}
		seen[p] = struct{}{}
	}

	return nil
}

func loadPartitionsFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	var file partitionsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return file.Partitions, nil
}

func loadHTTPConfig(log logger.Logger) (*HTTPConfig, error) {
	const (
		defaultPort         = "8080"
		defaultReadTimeout  = 15 * time.Second
		defaultWriteTimeout = 60 * time.Second
		defaultIdleTimeout  = 60 * time.Second
		defaultMaxImageSize = 15 << 20
	)

	readTimeout, err := parseDurationEnv("HTTP_READ_TIMEOUT", defaultReadTimeout)
	if err != nil {
		log.Errorf(err, "invalid HTTP_READ_TIMEOUT")
		return nil, err
	}

	writeTimeout, err := parseDurationEnv("HTTP_WRITE_TIMEOUT", defaultWriteTimeout)
	if err != nil {
		log.Errorf(err, "invalid HTTP_WRITE_TIMEOUT")
		return nil, err
	}

	idleTimeout, err := parseDurationEnv("KEEP_ALIVE", defaultIdleTimeout)
	if err != nil {
		log.Errorf(err, "invalid KEEP_ALIVE")
		return nil, err
	}

	maxImageSize, err := parseIntEnv("HTTP_MAX_IMAGE_SIZE", defaultMaxImageSize)
	if err != nil {
		log.Errorf(err, "invalid HTTP_MAX_IMAGE_SIZE")
		return nil, err
	}

	return &HTTPConfig{
		Port:         getEnvOrDefault("HTTP_PORT", defaultPort),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
		MaxImageSize: int64(maxImageSize),
	}, nil
}

func loadPGDBCfg(log logger.Logger) (*PGDBCfg, error) {
	const (
		defaultHost          = "localhost"
		defaultPort          = "5432"
		defaultSSLMode       = "disable"
		defaultMigrationsURL = "file://db/migrations"
	)

	user := getEnv("POSTGRES_USER")
	if user == "" {
		err := fmt.Errorf("POSTGRES_USER is required")
		log.Errorf(err, "missing POSTGRES_USER")
		return nil, err
	}

	password := getEnv("POSTGRES_PASSWORD")
	if password == "" {
		err := fmt.Errorf("POSTGRES_PASSWORD is required")
		log.Errorf(err, "missing POSTGRES_PASSWORD")
		return nil, err
	}

	dbName := getEnv("POSTGRES_DB")
	if dbName == "" {
		err := fmt.Errorf("POSTGRES_DB is required")
		log.Errorf(err, "missing POSTGRES_DB")
		return nil, err
	}

	return &PGDBCfg{
		Host:          getEnvOrDefault("POSTGRES_HOST", defaultHost),
		Port:          getEnvOrDefault("POSTGRES_PORT", defaultPort),
		User:          user,
		Password:      password,
		DBName:        dbName,
		SSLMode:       getEnvOrDefault("SSL_MODE", defaultSSLMode),
		MigrationsURL: getEnvOrDefault("MIGRATIONS_URL", defaultMigrationsURL),
	}, nil
}

func loadMLServiceCfg(log logger.Logger) (*MLServiceCfg, error) {
	const (
		defaultHost           = "ml-service"
		defaultPort           = "50051"
		defaultMaxRetries     = 3
		defaultRequestTimeout = 60 * time.Second
		defaultThreshold      = "0.7"
	)

	maxRetries, err := parseIntEnv("ML_MAX_RETRIES", defaultMaxRetries)
	if err != nil {
		log.Errorf(err, "invalid ML_MAX_RETRIES")
		return nil, err
	}

	requestTimeout, err := parseDurationEnv("ML_REQUEST_TIMEOUT", defaultRequestTimeout)
	if err != nil {
		log.Errorf(err, "invalid ML_REQUEST_TIMEOUT")
		return nil, err
	}

	threshold, err := strconv.ParseFloat(getEnvOrDefault("LOCALIZER_SCORE_THRESHOLD", defaultThreshold), 64)
	if err != nil || threshold < 0 || threshold >= 1 {
		err = e.Wrap("LOCALIZER_SCORE_THRESHOLD", e.ErrIncorrectEnvVariable)
		log.Errorf(err, "invalid LOCALIZER_SCORE_THRESHOLD")
		return nil, err
	}

	host := getEnvOrDefault("ML_HOST", defaultHost)
	port := getEnvOrDefault("ML_PORT", defaultPort)

	return &MLServiceCfg{
		Addr:           host + ":" + port,
		MaxRetries:     max(maxRetries, 1),
		RequestTimeout: requestTimeout,
		ScoreThreshold: threshold,
	}, nil
}

func loadPipelineCfg(log logger.Logger) (*PipelineCfg, error) {
	const (
		defaultWorkers        = 16
		defaultTimeout        = 20 * time.Second
		defaultRetries        = 1
		defaultMaxImageBytes  = 15 << 20
		defaultUseLocalizer   = false
		defaultCropPadding    = 8
		defaultBatchSize      = 64
		defaultCheckpointSize = 800
		defaultUserAgent      = "garment-search-embedder/1.0"
	)

	workers, err := parsePositiveIntEnv("PIPELINE_DOWNLOAD_WORKERS", defaultWorkers)
	if err != nil {
		log.Errorf(err, "invalid PIPELINE_DOWNLOAD_WORKERS")
		return nil, err
	}

	timeout, err := parseDurationEnv("PIPELINE_DOWNLOAD_TIMEOUT", defaultTimeout)
	if err != nil || timeout <= 0 {
		err = e.Wrap("PIPELINE_DOWNLOAD_TIMEOUT", e.ErrIncorrectEnvVariable)
		log.Errorf(err, "invalid PIPELINE_DOWNLOAD_TIMEOUT")
		return nil, err
	}

	retries, err := parseIntEnv("PIPELINE_DOWNLOAD_RETRIES", defaultRetries)
	if err != nil || retries < 0 {
		err = e.Wrap("PIPELINE_DOWNLOAD_RETRIES", e.ErrIncorrectEnvVariable)
		log.Errorf(err, "invalid PIPELINE_DOWNLOAD_RETRIES")
		return nil, err
	}

	maxBytes, err := parsePositiveIntEnv("PIPELINE_MAX_IMAGE_BYTES", defaultMaxImageBytes)
	if err != nil {
		log.Errorf(err, "invalid PIPELINE_MAX_IMAGE_BYTES")
		return nil, err
	}

	useLocalizer, err := strconv.ParseBool(getEnvOrDefault("PIPELINE_USE_LOCALIZER", strconv.FormatBool(defaultUseLocalizer)))
	if err != nil {
		log.Errorf(err, "invalid PIPELINE_USE_LOCALIZER")
		return nil, err
	}

	padding, err := parseIntEnv("PIPELINE_CROP_PADDING", defaultCropPadding)
	if err != nil || padding < 0 {
		err = e.Wrap("PIPELINE_CROP_PADDING", e.ErrIncorrectEnvVariable)
		log.Errorf(err, "invalid PIPELINE_CROP_PADDING")
		return nil, err
	}

	batchSize, err := parsePositiveIntEnv("PIPELINE_BATCH_SIZE", defaultBatchSize)
	if err != nil {
		log.Errorf(err, "invalid PIPELINE_BATCH_SIZE")
		return nil, err
	}

	checkpointSize, err := parsePositiveIntEnv("PIPELINE_CHECKPOINT_SIZE", defaultCheckpointSize)
	if err != nil {
		log.Errorf(err, "invalid PIPELINE_CHECKPOINT_SIZE")
		return nil, err
	}

	return &PipelineCfg{
		DownloadWorkers:   workers,
		DownloadTimeout:   timeout,
		DownloadRetries:   retries,
		MaxImageBytes:     int64(maxBytes),
		UseLocalizer:      useLocalizer,
		CropPadding:       padding,
		BatchSize:         batchSize,
		CheckpointSize:    checkpointSize,
		DownloadUserAgent: getEnvOrDefault("PIPELINE_USER_AGENT", defaultUserAgent),
	}, nil
}

func loadSearchCfg() (*SearchCfg, error) {
	const defaultTopK = 10

	topK, err := parsePositiveIntEnv("SEARCH_TOP_K", defaultTopK)
	if err != nil {
		return nil, err
	}

	return &SearchCfg{TopK: topK}, nil
}

func loadRedisCfg(log logger.Logger) (*RedisCfg, error) {
	const (
		defaultAddr         = "localhost:6379"
		defaultDB           = 0
		defaultMaxRetries   = 3
		defaultDialTimeout  = 5 * time.Second
		defaultReadTimeout  = 3 * time.Second
		defaultWriteTimeout = 3 * time.Second
		// Краулер меняет name/price без смены поколения, поэтому TTL короткий
		defaultResultTTL    = 2 * time.Minute
	)

	enabled, err := parseBoolEnv("REDIS_ENABLED", false)
	if err != nil {
		log.Errorf(err, "invalid REDIS_ENABLED")
		return nil, err
	}

	db, err := parseIntEnv("REDIS_DB_ID", defaultDB)
	if err != nil {
		log.Errorf(err, "invalid REDIS_DB_ID")
		return nil, err
	}

	maxRetries, err := parseIntEnv("MAX_RETRIES", defaultMaxRetries)
	if err != nil {
		log.Errorf(err, "invalid MAX_RETRIES")
		return nil, err
	}

	dialTimeout, err := parseDurationEnv("DIAL_TIMEOUT", defaultDialTimeout)
	if err != nil {
		log.Errorf(err, "invalid DIAL_TIMEOUT")
		return nil, err
	}

	readTimeout, err := parseDurationEnv("READ_TIMEOUT", defaultReadTimeout)
	if err != nil {
		log.Errorf(err, "invalid READ_TIMEOUT")
		return nil, err
	}

	writeTimeout, err := parseDurationEnv("WRITE_TIMEOUT", defaultWriteTimeout)
	if err != nil {
		log.Errorf(err, "invalid WRITE_TIMEOUT")
		return nil, err
	}

	resultTTL, err := parseDurationEnv("SEARCH_RESULT_TTL", defaultResultTTL)
	if err != nil {
		log.Errorf(err, "invalid SEARCH_RESULT_TTL")
		return nil, err
	}

	return &RedisCfg{
		Enabled:     enabled,
		Addr:        getEnvOrDefault("REDIS_ADDR", defaultAddr),
		Password:    getEnv("REDIS_PASSWORD"),
		User:        getEnv("REDIS_USER"),
		DB:          db,
		MaxRetries:  maxRetries,
		DialTimeout: dialTimeout,
		Timeout:     max(readTimeout, writeTimeout),
		ResultTTL:   resultTTL,
	}, nil
}

func loadMinIOCfg(log logger.Logger) (*MinIOCfg, error) {
	const (
		defaultUseSSL   = false
		defaultEndpoint = "minio:9000"
		defaultBucket   = "catalog-images"
	)

	enabled, err := parseBoolEnv("MINIO_ENABLED", false)
	if err != nil {
		log.Errorf(err, "invalid MINIO_ENABLED")
		return nil, err
	}

	useSSL, err := parseBoolEnv("MINIO_USE_SSL", defaultUseSSL)
	if err != nil {
		log.Errorf(err, "invalid MINIO_USE_SSL")
		return nil, err
	}

	return &MinIOCfg{
		Enabled:           enabled,
		MinioEndpoint:     getEnvOrDefault("MINIO_ENDPOINT", defaultEndpoint),
		BucketName:        getEnvOrDefault("BUCKET_NAME", defaultBucket),
		MinioRootUser:     getEnv("MINIO_ROOT_USER"),
		MinioRootPassword: getEnv("MINIO_ROOT_PASSWORD"),
		MinioUseSSL:       useSSL,
	}, nil
}

func loadQdrantCfg(logger logger.Logger) (*QdrantCfg, error) {
	const (
		defaultQdrantGRPCPort = 6334
		defaultUseTLS         = false
		defaultVectorSize     = "512"
		defaultCollection     = "catalog_embeddings"
	)

	enabled, err := parseBoolEnv("QDRANT_ENABLED", false)
	if err != nil {
		logger.Errorf(err, "invalid QDRANT_ENABLED")
		return nil, err
	}

	port, err := parseIntEnv("QDRANT_GRPC_PORT", defaultQdrantGRPCPort)
	if err != nil {
		logger.Errorf(err, "invalid QDRANT_GRPC_PORT")
		return nil, err
	}

	useTLS, err := parseBoolEnv("QDRANT_USE_TLS", defaultUseTLS)
	if err != nil {
		logger.Errorf(err, "invalid QDRANT_USE_TLS")
		return nil, err
	}

	vectorSize, err := strconv.ParseUint(getEnvOrDefault("VECTOR_SIZE", defaultVectorSize), 10, 64)
	if err != nil {
		logger.Errorf(err, "invalid VECTOR_SIZE")
		return nil, err
	}

	return &QdrantCfg{
		Enabled:              enabled,
		Host:                 getEnvOrDefault("QDRANT_HOST", "qdrant"),
		Port:                 port,
		ApiKey:               getEnv("QDRANT__SERVICE__API_KEY"),
		QdrantCollectionName: getEnvOrDefault("COLLECTION_NAME", defaultCollection),
		UseTLS:               useTLS,
		VectorSize:           vectorSize,
	}, nil
}

func loadKafkaCfg() (*KafkaCfg, error) {
	const (
		defaultPartitions        = 3
		defaultReplicationFactor = 1
		defaultNetworkMode       = "tcp"
		defaultTopic             = "embedding-runs"
	)

	enabled, err := parseBoolEnv("KAFKA_ENABLED", false)
	if err != nil {
		return nil, e.Wrap("KAFKA_ENABLED", err)
	}

	var brokers []string
	if raw := getEnv("KAFKA_BROKERS"); raw != "" {
		brokers = splitList(raw)
	}
	if enabled && len(brokers) == 0 {
		return nil, fmt.Errorf("KAFKA_BROKERS environment variable is required")
	}

	partitions, err := parseIntEnv("KAFKA_PARTITIONS", defaultPartitions)
	if err != nil {
		return nil, e.Wrap("KAFKA_PARTITIONS", err)
	}

	replicationFactor, err := parseIntEnv("REPLICATION_FACTOR", defaultReplicationFactor)
	if err != nil {
		return nil, e.Wrap("REPLICATION_FACTOR", err)
	}

	return &KafkaCfg{
		Enabled:           enabled,
		Brokers:           brokers,
		Topic:             getEnvOrDefault("KAFKA_TOPIC", defaultTopic),
		Partitions:        partitions,
		ReplicationFactor: replicationFactor,
		NetworkMode:       getEnvOrDefault("KAFKA_NETWORK_MODE", defaultNetworkMode),
	}, nil
}

// getEnv возвращает значение переменной окружения.
// Возвращает пустую строку, если переменная не задана.
func getEnv(key string) string {
	return os.Getenv(key)
}

// getEnvOrDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return defaultValue
}

// parseDurationEnv считывает длительность или возвращает значение по умолчанию.
func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	if v := os.Getenv(key); v != "" {
		return time.ParseDuration(v)
	}

	return defaultValue, nil
}

func parseIntEnv(key string, defaultValue int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}

	intValue, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue, e.Wrap(key, e.ErrIncorrectEnvVariable)
	}

	return intValue, nil
}

func parsePositiveIntEnv(key string, defaultValue int) (int, error) {
	v, err := parseIntEnv(key, defaultValue)
	if err != nil {
		return 0, err
	}
	if v <= 0 {
		return 0, e.Wrap(key, e.ErrIncorrectEnvVariable)
	}

	return v, nil
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	return strconv.ParseBool(getEnvOrDefault(key, strconv.FormatBool(defaultValue)))
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}

	return out
}
