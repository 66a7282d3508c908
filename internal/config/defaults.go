package config

import "time"

// ─────────────────────────────────────────────────────────────────────────────
// Default value constants
// ─────────────────────────────────────────────────────────────────────────────

const (
	DefaultServerPort = 8080
	DefaultServerMode = "release"
	DefaultGRPCPort   = 9090

	DefaultCachePath     = "embeddings_cache.pb"
	DefaultEmbeddingDim  = 1280
	DefaultMaxLength     = 1024
	DefaultEmbedBatch    = 8
	DefaultEmbedWorkers  = 2
	DefaultContextWindow = 2
	DefaultLRUSize       = 10000

	DefaultNegativeRatio = 1.0
	DefaultTestFraction  = 0.2
	DefaultBatchSize     = 32
	DefaultEpochs        = 10
	DefaultLearningRate  = 1e-4
	DefaultSeed          = 42
	DefaultDropout       = 0.3
	DefaultPairsPath     = "HomoSapiens_binary_hq.txt"
	DefaultModelDir      = "model"
	DefaultModelFile     = "model.ppi"

	DefaultThreshold = 0.5

	DefaultResolverBaseURL = "https://rest.uniprot.org/uniprotkb"

	DefaultDBHost     = "localhost"
	DefaultDBPort     = 5432
	DefaultDBName     = "ppi"
	DefaultDBMaxConns = 10

	DefaultRedisAddr     = "localhost:6379"
	DefaultKafkaBroker   = "localhost:9092"
	DefaultKafkaGroupID  = "ppi-worker"
	DefaultEventsTopic   = "ppi.training.events"
	DefaultRequestsTopic = "ppi.training.requests"
	DefaultDeadLetter    = "ppi.training.dead_letter"
	DefaultMilvusAddr    = "localhost:19530"
	DefaultMilvusColl    = "ppi_embeddings"
	DefaultMinIOEndpoint = "localhost:9000"
	DefaultMinIOBucket   = "ppi-artifacts"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// DefaultHiddenDims is the classifier's hidden layer layout.
var DefaultHiddenDims = []int{512, 256, 128}

// DefaultWeightsSources is the residue-encoder weight provider order.
var DefaultWeightsSources = []string{"file", "object", "http", "seeded"}

// Default returns a fully-populated configuration.
func Default() *Config {
	cfg := &Config{}
	cfg.Training.NegativeRatio = DefaultNegativeRatio
	cfg.Training.Dropout = DefaultDropout
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills zero-value fields in cfg with well-known defaults.
// Fields for which zero is a meaningful explicit value (negative_ratio,
// dropout) are seeded through viper defaults instead, so an explicit 0
// survives.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// ── Server ────────────────────────────────────────────────────────────────
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultServerPort
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = DefaultServerMode
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 60 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 15 * time.Second
	}
	if cfg.Server.MaxBodySize == 0 {
		cfg.Server.MaxBodySize = 4 << 20
	}
	if cfg.Server.MaxBatchSize == 0 {
		cfg.Server.MaxBatchSize = 256
	}
	if cfg.Server.RateLimitBurst == 0 {
		cfg.Server.RateLimitBurst = 20
	}
	if cfg.GRPC.Port == 0 {
		cfg.GRPC.Port = DefaultGRPCPort
	}
	if cfg.GRPC.MaxRecvMsgSize == 0 {
		cfg.GRPC.MaxRecvMsgSize = 4 << 20
	}
	if cfg.GRPC.ConnectionTimeout == 0 {
		cfg.GRPC.ConnectionTimeout = 120 * time.Second
	}
	if cfg.Auth.JWKSRefreshInterval == 0 {
		cfg.Auth.JWKSRefreshInterval = 5 * time.Minute
	}
	if cfg.Auth.Leeway == 0 {
		cfg.Auth.Leeway = 30 * time.Second
	}

	// ── Embedding ─────────────────────────────────────────────────────────────
	e := &cfg.Embedding
	if e.CachePath == "" {
		e.CachePath = DefaultCachePath
	}
	if e.Dim == 0 {
		e.Dim = DefaultEmbeddingDim
	}
	if e.MaxLength == 0 {
		e.MaxLength = DefaultMaxLength
	}
	if e.BatchSize == 0 {
		e.BatchSize = DefaultEmbedBatch
	}
	if e.Workers == 0 {
		e.Workers = DefaultEmbedWorkers
	}
	if e.ContextWindow == 0 {
		e.ContextWindow = DefaultContextWindow
	}
	if e.Encoder == "" {
		e.Encoder = "local"
	}
	if e.Store == "" {
		e.Store = "memory"
	}
	if len(e.WeightsSources) == 0 {
		e.WeightsSources = append([]string(nil), DefaultWeightsSources...)
	}
	if e.WeightsObjectKey == "" {
		e.WeightsObjectKey = "encoder/residue_encoder.pb"
	}
	if e.WeightsSeed == 0 {
		e.WeightsSeed = DefaultSeed
	}
	if e.RemoteTimeout == 0 {
		e.RemoteTimeout = 60 * time.Second
	}

	// ── Training ──────────────────────────────────────────────────────────────
	t := &cfg.Training
	if t.TestFraction == 0 {
		t.TestFraction = DefaultTestFraction
	}
	if t.BatchSize == 0 {
		t.BatchSize = DefaultBatchSize
	}
	if t.Epochs == 0 {
		t.Epochs = DefaultEpochs
	}
	if t.LearningRate == 0 {
		t.LearningRate = DefaultLearningRate
	}
	if t.Seed == 0 {
		t.Seed = DefaultSeed
	}
	if len(t.HiddenDims) == 0 {
		t.HiddenDims = append([]int(nil), DefaultHiddenDims...)
	}
	if t.Device == "" {
		t.Device = "cpu"
	}
	if t.PlateauPatience == 0 {
		t.PlateauPatience = 3
	}
	if t.PlateauFactor == 0 {
		t.PlateauFactor = 0.5
	}
	if t.MinLearningRate == 0 {
		t.MinLearningRate = 1e-7
	}
	if t.PairSource == "" {
		t.PairSource = "tsv"
	}
	if t.PairsPath == "" {
		t.PairsPath = DefaultPairsPath
	}
	if t.ModelDir == "" {
		t.ModelDir = DefaultModelDir
	}
	if t.RunStore == "" {
		t.RunStore = "memory"
	}

	// ── Inference ─────────────────────────────────────────────────────────────
	if cfg.Inference.Threshold == 0 {
		cfg.Inference.Threshold = DefaultThreshold
	}

	// ── Resolver ──────────────────────────────────────────────────────────────
	r := &cfg.Resolver
	if r.BaseURL == "" {
		r.BaseURL = DefaultResolverBaseURL
	}
	if r.Timeout == 0 {
		r.Timeout = 10 * time.Second
	}
	if r.MaxRetries == 0 {
		r.MaxRetries = 3
	}
	if r.MaxElapsed == 0 {
		r.MaxElapsed = 30 * time.Second
	}
	if r.RatePerSecond == 0 {
		r.RatePerSecond = 5
	}
	if r.Burst == 0 {
		r.Burst = 5
	}
	if r.Concurrency == 0 {
		r.Concurrency = 4
	}
	if r.CacheTTL == 0 {
		r.CacheTTL = 7 * 24 * time.Hour
	}

	// ── Artifacts ─────────────────────────────────────────────────────────────
	if cfg.Artifacts.Backend == "" {
		cfg.Artifacts.Backend = "local"
	}
	if cfg.Artifacts.Root == "" {
		cfg.Artifacts.Root = "."
	}

	// ── Database ──────────────────────────────────────────────────────────────
	if cfg.Database.Host == "" {
		cfg.Database.Host = DefaultDBHost
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = DefaultDBPort
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = DefaultDBName
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = DefaultDBMaxConns
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MigrationPath == "" {
		cfg.Database.MigrationPath = "internal/infrastructure/database/postgres/migrations"
	}

	// ── Redis ─────────────────────────────────────────────────────────────────
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = DefaultRedisAddr
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = "ppi"
	}

	// ── Kafka ─────────────────────────────────────────────────────────────────
	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{DefaultKafkaBroker}
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = DefaultKafkaGroupID
	}
	if cfg.Kafka.EventsTopic == "" {
		cfg.Kafka.EventsTopic = DefaultEventsTopic
	}
	if cfg.Kafka.RequestsTopic == "" {
		cfg.Kafka.RequestsTopic = DefaultRequestsTopic
	}
	if cfg.Kafka.DeadLetter == "" {
		cfg.Kafka.DeadLetter = DefaultDeadLetter
	}
	if cfg.Kafka.WriteTimeout == 0 {
		cfg.Kafka.WriteTimeout = 10 * time.Second
	}
	if cfg.Kafka.MaxAttempts == 0 {
		cfg.Kafka.MaxAttempts = 3
	}

	// ── Neo4j / Milvus / MinIO ────────────────────────────────────────────────
	if cfg.Neo4j.Database == "" {
		cfg.Neo4j.Database = "neo4j"
	}
	if cfg.Neo4j.MaxConnectionPoolSize == 0 {
		cfg.Neo4j.MaxConnectionPoolSize = 20
	}
	if cfg.Neo4j.ConnectionTimeout == 0 {
		cfg.Neo4j.ConnectionTimeout = 10 * time.Second
	}
	if cfg.Milvus.Addr == "" {
		cfg.Milvus.Addr = DefaultMilvusAddr
	}
	if cfg.Milvus.Collection == "" {
		cfg.Milvus.Collection = DefaultMilvusColl
	}
	if cfg.MinIO.Endpoint == "" {
		cfg.MinIO.Endpoint = DefaultMinIOEndpoint
	}
	if cfg.MinIO.Bucket == "" {
		cfg.MinIO.Bucket = DefaultMinIOBucket
	}

	// ── Log ───────────────────────────────────────────────────────────────────
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}
}

//Personal.AI order the ending
