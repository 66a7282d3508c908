// Package config defines all configuration structures for the PPI-Intelligence
// pipeline.  No I/O or parsing logic lives here, only plain data types and
// validation.
package config

import (
	"fmt"
	"time"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sub-configuration structs
// ─────────────────────────────────────────────────────────────────────────────

// ServerConfig holds HTTP server tunables.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // "debug" | "release" | "test"
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	MaxBodySize     int64         `mapstructure:"max_body_size"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxBatchSize    int           `mapstructure:"max_batch_size"`
	// RateLimitRPS <= 0 disables per-client rate limiting.
	RateLimitRPS   float64  `mapstructure:"rate_limit_rps"`
	RateLimitBurst int      `mapstructure:"rate_limit_burst"`
	CORSOrigins    []string `mapstructure:"cors_origins"`
}

// GRPCConfig holds gRPC server tunables.
type GRPCConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	Port              int           `mapstructure:"port"`
	MaxRecvMsgSize    int           `mapstructure:"max_recv_msg_size"`
	ConnectionTimeout time.Duration `mapstructure:"connection_timeout"`
}

// LogConfig holds structured-logging parameters.
type LogConfig struct {
	Level  string `mapstructure:"level"`  // "debug" | "info" | "warn" | "error"
	Format string `mapstructure:"format"` // "json" | "console"
	Output string `mapstructure:"output"`
}

// EmbeddingConfig controls the embedding computer, its encoder and the cache.
type EmbeddingConfig struct {
	// CachePath is the artifact key of the cache snapshot.
	CachePath string `mapstructure:"cache_path"`
	// Rebuild starts a fresh cache generation, ignoring any snapshot.
	Rebuild   bool `mapstructure:"rebuild"`
	Dim       int  `mapstructure:"dim"`
	MaxLength int  `mapstructure:"max_length"`
	BatchSize int  `mapstructure:"batch_size"`
	Workers   int  `mapstructure:"workers"`
	// ContextWindow is the half-width of the residue encoder's mixing window.
	ContextWindow int `mapstructure:"context_window"`

	Encoder string `mapstructure:"encoder"` // "local" | "remote"
	Store   string `mapstructure:"store"`   // "memory" | "redis" | "milvus"
	LRUSize int    `mapstructure:"lru_size"`

	// WeightsSources orders the residue-encoder weight providers.
	WeightsSources   []string `mapstructure:"weights_sources"`
	WeightsPath      string   `mapstructure:"weights_path"`
	WeightsObjectKey string   `mapstructure:"weights_object_key"`
	WeightsURL       string   `mapstructure:"weights_url"`
	WeightsSeed      int64    `mapstructure:"weights_seed"`

	RemoteURL     string        `mapstructure:"remote_url"`
	RemoteTimeout time.Duration `mapstructure:"remote_timeout"`
}

// TrainingConfig controls dataset construction and the classifier trainer.
type TrainingConfig struct {
	NegativeRatio float64 `mapstructure:"negative_ratio"`
	TestFraction  float64 `mapstructure:"test_fraction"`
	BatchSize     int     `mapstructure:"batch_size"`
	Epochs        int     `mapstructure:"epochs"`
	LearningRate  float64 `mapstructure:"learning_rate"`
	Seed          int64   `mapstructure:"seed"`
	HiddenDims    []int   `mapstructure:"hidden_dims"`
	Dropout       float64 `mapstructure:"dropout"`
	Device        string  `mapstructure:"device"` // "cpu" | "cuda" | "auto"

	PlateauPatience int     `mapstructure:"plateau_patience"`
	PlateauFactor   float64 `mapstructure:"plateau_factor"`
	MinLearningRate float64 `mapstructure:"min_learning_rate"`

	PairSource string `mapstructure:"pair_source"` // "tsv" | "postgres" | "neo4j"
	PairsPath  string `mapstructure:"pairs_path"`
	ModelDir   string `mapstructure:"model_dir"`
	WarmStart  string `mapstructure:"warm_start"`
	RunStore   string `mapstructure:"run_store"` // "memory" | "postgres"
}

// InferenceConfig controls the prediction service.
type InferenceConfig struct {
	Threshold             float64 `mapstructure:"threshold"`
	// ReportInteractionType adds the type head's argmax to positive verdicts.
	// The head is not trained, so the label carries no signal; off by default.
	ReportInteractionType bool    `mapstructure:"report_interaction_type"`
	// ModelKey is the artifact key of the checkpoint served; empty means
	// {training.model_dir}/model.ppi.
	ModelKey string `mapstructure:"model_key"`
}

// ResolverConfig controls sequence resolution.
type ResolverConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxRetries    int           `mapstructure:"max_retries"`
	MaxElapsed    time.Duration `mapstructure:"max_elapsed"`
	RatePerSecond float64       `mapstructure:"rate_per_second"`
	Burst         int           `mapstructure:"burst"`
	Concurrency   int           `mapstructure:"concurrency"`
	// SequencesFile, when set, is a FASTA file consulted before the network.
	SequencesFile string `mapstructure:"sequences_file"`
	// Offline skips the network resolver; SequencesFile is then required.
	Offline bool `mapstructure:"offline"`
	// SharedCache keeps resolved sequences in Redis across processes.
	SharedCache bool          `mapstructure:"shared_cache"`
	CacheTTL    time.Duration `mapstructure:"cache_ttl"`
}

// ArtifactConfig selects where checkpoints and snapshots live.
type ArtifactConfig struct {
	Backend string `mapstructure:"backend"` // "local" | "minio"
	Root    string `mapstructure:"root"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"db_name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConns        int           `mapstructure:"max_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	MigrationPath   string        `mapstructure:"migration_path"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// Neo4jConfig holds interaction-graph connection parameters.
type Neo4jConfig struct {
	URI                   string        `mapstructure:"uri"`
	User                  string        `mapstructure:"user"`
	Password              string        `mapstructure:"password"`
	Database              string        `mapstructure:"database"`
	MaxConnectionPoolSize int           `mapstructure:"max_connection_pool_size"`
	ConnectionTimeout     time.Duration `mapstructure:"connection_timeout"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
}

// KafkaConfig holds producer/consumer parameters.
type KafkaConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Brokers       []string      `mapstructure:"brokers"`
	GroupID       string        `mapstructure:"group_id"`
	EventsTopic   string        `mapstructure:"events_topic"`
	RequestsTopic string        `mapstructure:"requests_topic"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
	MaxAttempts   int           `mapstructure:"max_attempts"`
	DeadLetter    string        `mapstructure:"dead_letter_topic"`
	SASLMechanism string        `mapstructure:"sasl_mechanism"`
	SASLUsername  string        `mapstructure:"sasl_username"`
	SASLPassword  string        `mapstructure:"sasl_password"`
	TLSEnabled    bool          `mapstructure:"tls_enabled"`
	TLSCertPath   string        `mapstructure:"tls_cert_path"`
}

// AuthConfig enables Keycloak bearer-token checks on the prediction API.
// Probe and metrics endpoints stay open.
type AuthConfig struct {
	Enabled             bool          `mapstructure:"enabled"`
	KeycloakURL         string        `mapstructure:"keycloak_url"`
	Realm               string        `mapstructure:"realm"`
	ClientID            string        `mapstructure:"client_id"`
	JWKSRefreshInterval time.Duration `mapstructure:"jwks_refresh_interval"`
	Leeway              time.Duration `mapstructure:"leeway"`
}

// MilvusConfig holds vector-store connection parameters.
type MilvusConfig struct {
	Addr       string `mapstructure:"addr"`
	DBName     string `mapstructure:"db_name"`
	Username   string `mapstructure:"username"`
	Password   string `mapstructure:"password"`
	Collection string `mapstructure:"collection"`
}

// MinIOConfig holds S3-compatible object-storage parameters.
type MinIOConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	Prefix    string `mapstructure:"prefix"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Region    string `mapstructure:"region"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Root Config
// ─────────────────────────────────────────────────────────────────────────────

// Config is the root configuration structure.  Every component reads its
// settings from the relevant sub-struct.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	GRPC      GRPCConfig      `mapstructure:"grpc"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Log       LogConfig       `mapstructure:"log"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Training  TrainingConfig  `mapstructure:"training"`
	Inference InferenceConfig `mapstructure:"inference"`
	Resolver  ResolverConfig  `mapstructure:"resolver"`
	Artifacts ArtifactConfig  `mapstructure:"artifacts"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Neo4j     Neo4jConfig     `mapstructure:"neo4j"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Milvus    MilvusConfig    `mapstructure:"milvus"`
	MinIO     MinIOConfig     `mapstructure:"minio"`
}

// ModelKey returns the artifact key of the served checkpoint.
func (c *Config) ModelKey() string {
	if c.Inference.ModelKey != "" {
		return c.Inference.ModelKey
	}
	return c.Training.ModelDir + "/" + DefaultModelFile
}

// ResolvedDevice maps the configured device onto what the pure-Go numeric
// core can run.  The second result is false when the request was downgraded.
func (c *Config) ResolvedDevice() (string, bool) {
	if c.Training.Device == "" || c.Training.Device == "cpu" {
		return "cpu", true
	}
	return "cpu", false
}

// ─────────────────────────────────────────────────────────────────────────────
// Validation
// ─────────────────────────────────────────────────────────────────────────────

// Validate performs semantic validation of the fully-populated Config.
// It returns the first error encountered; callers should treat any error as
// fatal and refuse to start.
func (c *Config) Validate() error {
	// Server
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range [1, 65535]", c.Server.Port)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("server.mode %q is invalid; expected debug|release|test", c.Server.Mode)
	}
	if c.GRPC.Enabled && (c.GRPC.Port < 1 || c.GRPC.Port > 65535) {
		return fmt.Errorf("grpc.port %d is out of range [1, 65535]", c.GRPC.Port)
	}

	if c.Auth.Enabled && (c.Auth.KeycloakURL == "" || c.Auth.Realm == "" || c.Auth.ClientID == "") {
		return fmt.Errorf("auth.keycloak_url, auth.realm and auth.client_id are required when auth is enabled")
	}

	// Embedding
	e := c.Embedding
	if e.Dim < 1 {
		return fmt.Errorf("embedding.dim must be ≥ 1, got %d", e.Dim)
	}
	if e.MaxLength < 1 {
		return fmt.Errorf("embedding.max_length must be ≥ 1, got %d", e.MaxLength)
	}
	if e.BatchSize < 1 || e.Workers < 1 {
		return fmt.Errorf("embedding.batch_size and embedding.workers must be ≥ 1")
	}
	if e.LRUSize < 0 {
		return fmt.Errorf("embedding.lru_size must be ≥ 0, got %d", e.LRUSize)
	}
	switch e.Encoder {
	case "local":
	case "remote":
		if e.RemoteURL == "" {
			return fmt.Errorf("embedding.remote_url is required for the remote encoder")
		}
	default:
		return fmt.Errorf("embedding.encoder %q is invalid; expected local|remote", e.Encoder)
	}
	switch e.Store {
	case "memory":
	case "redis":
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis.addr is required for the redis embedding store")
		}
	case "milvus":
		if c.Milvus.Addr == "" || c.Milvus.Collection == "" {
			return fmt.Errorf("milvus.addr and milvus.collection are required for the milvus embedding store")
		}
	default:
		return fmt.Errorf("embedding.store %q is invalid; expected memory|redis|milvus", e.Store)
	}
	for _, s := range e.WeightsSources {
		switch s {
		case "file", "object", "http", "seeded":
		default:
			return fmt.Errorf("embedding.weights_sources entry %q is invalid; expected file|object|http|seeded", s)
		}
	}

	// Training
	t := c.Training
	if t.NegativeRatio < 0 {
		return fmt.Errorf("training.negative_ratio must be ≥ 0, got %g", t.NegativeRatio)
	}
	if t.TestFraction <= 0 || t.TestFraction >= 1 {
		return fmt.Errorf("training.test_fraction must be in (0, 1), got %g", t.TestFraction)
	}
	if t.BatchSize < 1 || t.Epochs < 1 {
		return fmt.Errorf("training.batch_size and training.epochs must be ≥ 1")
	}
	if t.LearningRate <= 0 {
		return fmt.Errorf("training.learning_rate must be > 0, got %g", t.LearningRate)
	}
	if t.Dropout < 0 || t.Dropout >= 1 {
		return fmt.Errorf("training.dropout must be in [0, 1), got %g", t.Dropout)
	}
	for _, h := range t.HiddenDims {
		if h < 1 {
			return fmt.Errorf("training.hidden_dims entries must be ≥ 1, got %d", h)
		}
	}
	switch t.Device {
	case "cpu", "cuda", "auto":
	default:
		return fmt.Errorf("training.device %q is invalid; expected cpu|cuda|auto", t.Device)
	}
	switch t.PairSource {
	case "tsv":
	case "postgres":
		if c.Database.Host == "" || c.Database.DBName == "" {
			return fmt.Errorf("database.host and database.db_name are required for the postgres pair source")
		}
	case "neo4j":
		if c.Neo4j.URI == "" {
			return fmt.Errorf("neo4j.uri is required for the neo4j pair source")
		}
	default:
		return fmt.Errorf("training.pair_source %q is invalid; expected tsv|postgres|neo4j", t.PairSource)
	}
	switch t.RunStore {
	case "memory", "postgres":
	default:
		return fmt.Errorf("training.run_store %q is invalid; expected memory|postgres", t.RunStore)
	}

	// Inference
	if c.Inference.Threshold <= 0 || c.Inference.Threshold >= 1 {
		return fmt.Errorf("inference.threshold must be in (0, 1), got %g", c.Inference.Threshold)
	}

	// Resolver
	if c.Resolver.BaseURL == "" && !c.Resolver.Offline {
		return fmt.Errorf("resolver.base_url is required")
	}
	if c.Resolver.Offline && c.Resolver.SequencesFile == "" {
		return fmt.Errorf("resolver.sequences_file is required when resolver.offline is set")
	}
	if c.Resolver.Concurrency < 1 {
		return fmt.Errorf("resolver.concurrency must be ≥ 1, got %d", c.Resolver.Concurrency)
	}
	if c.Resolver.MaxRetries < 0 {
		return fmt.Errorf("resolver.max_retries must be ≥ 0, got %d", c.Resolver.MaxRetries)
	}

	// Artifacts
	switch c.Artifacts.Backend {
	case "local":
	case "minio":
		if c.MinIO.Endpoint == "" {
			return fmt.Errorf("minio.endpoint is required for the minio artifact backend")
		}
	default:
		return fmt.Errorf("artifacts.backend %q is invalid; expected local|minio", c.Artifacts.Backend)
	}

	// Kafka
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers must contain at least one broker address")
	}

	// Log
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log.format %q is invalid; expected json|console", c.Log.Format)
	}

	return nil
}

//Personal.AI order the ending
