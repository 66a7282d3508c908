// Package bootstrap wires configuration into running components.  The CLI,
// the API server and the worker share one composition root so every entry
// point selects backends the same way.
package bootstrap

import (
	"context"
	stderrors "errors"
	"fmt"
	"path"
	"time"

	"github.com/turtacn/PPI-Intelligence/internal/application/inference"
	"github.com/turtacn/PPI-Intelligence/internal/application/training"
	"github.com/turtacn/PPI-Intelligence/internal/config"
	"github.com/turtacn/PPI-Intelligence/internal/domain/interaction"
	"github.com/turtacn/PPI-Intelligence/internal/domain/protein"
	domainTraining "github.com/turtacn/PPI-Intelligence/internal/domain/training"
	"github.com/turtacn/PPI-Intelligence/internal/infrastructure/auth/keycloak"
	"github.com/turtacn/PPI-Intelligence/internal/infrastructure/database/neo4j"
	"github.com/turtacn/PPI-Intelligence/internal/infrastructure/database/postgres"
	"github.com/turtacn/PPI-Intelligence/internal/infrastructure/database/redis"
	"github.com/turtacn/PPI-Intelligence/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/PPI-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/PPI-Intelligence/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/PPI-Intelligence/internal/infrastructure/resolver"
	"github.com/turtacn/PPI-Intelligence/internal/infrastructure/resolver/uniprot"
	"github.com/turtacn/PPI-Intelligence/internal/infrastructure/search/milvus"
	"github.com/turtacn/PPI-Intelligence/internal/infrastructure/storage"
	"github.com/turtacn/PPI-Intelligence/internal/infrastructure/storage/local"
	"github.com/turtacn/PPI-Intelligence/internal/infrastructure/storage/minio"
	"github.com/turtacn/PPI-Intelligence/internal/intelligence/common"
	"github.com/turtacn/PPI-Intelligence/internal/intelligence/embedding"
	"github.com/turtacn/PPI-Intelligence/internal/intelligence/ppinet"
	"github.com/turtacn/PPI-Intelligence/internal/interfaces/http/handlers"
	"github.com/turtacn/PPI-Intelligence/pkg/errors"
)

// MetricsNamespace prefixes every exported Prometheus series.
const MetricsNamespace = "ppi"

// EventSource tags envelopes published by this process.
const EventSource = "ppi-intelligence"

// Needs selects which application services Build assembles.  Backends
// only one service uses are not dialled when that service is not needed.
type Needs struct {
	Training  bool
	Inference bool
}

// Components holds everything Build wired.  Optional backends are nil when
// the configuration does not select them.
type Components struct {
	Config     *config.Config
	Logger     logging.Logger
	Collector  prometheus.MetricsCollector
	AppMetrics *prometheus.AppMetrics
	Metrics    common.PPIMetrics

	Artifacts storage.ArtifactStore
	Resolver  protein.SequenceResolver
	Cache     *embedding.Cache

	Pipeline  *training.Pipeline
	Runs      domainTraining.Repository
	Inference *inference.Service
	Loader    *common.LoaderChain[*ppinet.Checkpoint]

	Postgres *postgres.Connection
	Neo4j    *neo4j.Driver
	Redis    *redis.Client
	Milvus   *milvus.Client
	MinIO    *minio.MinIOClient
	Producer *kafka.Producer
	Auth     *keycloak.Client

	Checkers []handlers.HealthChecker

	closers []func() error
}

// Close releases every backend in reverse construction order.
func (c *Components) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return stderrors.Join(errs...)
}

func (c *Components) onClose(fn func() error) { c.closers = append(c.closers, fn) }

func (c *Components) check(name string, fn func(ctx context.Context) error) {
	c.Checkers = append(c.Checkers, handlers.HealthCheckerFunc{CheckerName: name, Fn: fn})
}

// Build assembles the components selected by cfg.  On error every backend
// opened so far is closed.
func Build(ctx context.Context, cfg *config.Config, logger logging.Logger, needs Needs) (c *Components, err error) {
	if cfg == nil {
		return nil, errors.InvalidParam("bootstrap requires a configuration")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	c = &Components{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			_ = c.Close()
			c = nil
		}
	}()

	if err = c.buildMetrics(); err != nil {
		return
	}
	if err = c.buildArtifacts(ctx); err != nil {
		return
	}
	if c.usesRedis() {
		if _, err = c.EnsureRedis(ctx); err != nil {
			return
		}
	}
	if err = c.buildResolver(); err != nil {
		return
	}
	if err = c.buildCache(ctx); err != nil {
		return
	}
	if needs.Training {
		if err = c.buildPipeline(ctx); err != nil {
			return
		}
	}
	if needs.Inference {
		if err = c.buildInference(ctx); err != nil {
			return
		}
	}
	return c, nil
}

func (c *Components) usesRedis() bool {
	cfg := c.Config
	return cfg.Embedding.Store == "redis" || cfg.Resolver.SharedCache
}

// ─────────────────────────────────────────────────────────────────────────────
// Metrics
// ─────────────────────────────────────────────────────────────────────────────

func (c *Components) buildMetrics() error {
	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
		Namespace:            MetricsNamespace,
		EnableProcessMetrics: true,
		EnableGoMetrics:      true,
	}, c.Logger)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "create metrics collector")
	}
	c.Collector = collector
	c.AppMetrics = prometheus.NewAppMetrics(collector)
	c.Metrics = common.NewPrometheusPPIMetrics(c.AppMetrics)
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Artifact store
// ─────────────────────────────────────────────────────────────────────────────

func (c *Components) buildArtifacts(ctx context.Context) error {
	cfg := c.Config
	switch cfg.Artifacts.Backend {
	case "local":
		store, err := local.NewStore(cfg.Artifacts.Root, c.Logger)
		if err != nil {
			return err
		}
		c.Artifacts = store
	case "minio":
		client, err := minio.NewMinIOClient(&minio.MinIOConfig{
			Endpoint:        cfg.MinIO.Endpoint,
			AccessKeyID:     cfg.MinIO.AccessKey,
			SecretAccessKey: cfg.MinIO.SecretKey,
			UseSSL:          cfg.MinIO.UseSSL,
			Region:          cfg.MinIO.Region,
			Bucket:          cfg.MinIO.Bucket,
			Prefix:          cfg.MinIO.Prefix,
		}, c.Logger)
		if err != nil {
			return err
		}
		c.onClose(client.Close)
		if err := client.EnsureBucket(ctx); err != nil {
			return err
		}
		c.MinIO = client
		c.Artifacts = minio.NewArtifactStore(client, c.Logger)
		c.check("minio", func(ctx context.Context) error {
			_, err := client.HealthCheck(ctx)
			return err
		})
	default:
		return errors.InvalidParam(fmt.Sprintf("unknown artifact backend %q", cfg.Artifacts.Backend))
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Redis
// ─────────────────────────────────────────────────────────────────────────────

// EnsureRedis dials Redis once; later calls return the same client.
func (c *Components) EnsureRedis(ctx context.Context) (*redis.Client, error) {
	if c.Redis != nil {
		return c.Redis, nil
	}
	rc := c.Config.Redis
	client, err := redis.NewClient(&redis.RedisConfig{
		Mode:         "standalone",
		Addr:         rc.Addr,
		Password:     rc.Password,
		DB:           rc.DB,
		PoolSize:     rc.PoolSize,
		DialTimeout:  rc.DialTimeout,
		ReadTimeout:  rc.ReadTimeout,
		WriteTimeout: rc.WriteTimeout,
		KeyPrefix:    rc.KeyPrefix,
	}, c.Logger)
	if err != nil {
		return nil, err
	}
	c.onClose(client.Close)
	if err := client.Ping(ctx); err != nil {
		return nil, errors.Unavailable("redis unreachable").WithCause(err)
	}
	c.Redis = client
	c.check("redis", client.Ping)
	return client, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Sequence resolution
// ─────────────────────────────────────────────────────────────────────────────

func (c *Components) buildResolver() error {
	rc := c.Config.Resolver
	var chain resolver.Chain
	if rc.SequencesFile != "" {
		static, err := resolver.LoadFASTAFile(rc.SequencesFile)
		if err != nil {
			return err
		}
		c.Logger.Info("local sequence file loaded",
			logging.String("path", rc.SequencesFile),
			logging.Int("sequences", len(static.Accessions())))
		chain = append(chain, static)
	}
	if !rc.Offline && rc.BaseURL != "" {
		remote, err := uniprot.NewClient(uniprot.Config{
			BaseURL:       rc.BaseURL,
			Timeout:       rc.Timeout,
			MaxRetries:    uint64(rc.MaxRetries),
			MaxElapsed:    rc.MaxElapsed,
			RatePerSecond: rc.RatePerSecond,
			Burst:         rc.Burst,
		}, uniprot.WithLogger(c.Logger), uniprot.WithMetrics(c.Metrics))
		if err != nil {
			return err
		}
		chain = append(chain, remote)
	}
	if len(chain) == 0 {
		return errors.InvalidParam("no sequence source configured: set resolver.sequences_file or resolver.base_url")
	}

	var opts []resolver.CachingOption
	if rc.SharedCache && c.Redis != nil {
		opts = append(opts, resolver.WithSharedCache(redis.NewSequenceCache(c.Redis, rc.CacheTTL), c.Logger))
	}
	var next protein.SequenceResolver = chain
	if len(chain) == 1 {
		next = chain[0]
	}
	c.Resolver = resolver.NewCaching(next, opts...)
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Embeddings
// ─────────────────────────────────────────────────────────────────────────────

func (c *Components) buildEncoder(ctx context.Context) (embedding.Encoder, error) {
	ec := c.Config.Embedding
	switch ec.Encoder {
	case "local":
		chain, err := embedding.NewWeightsLoader(embedding.WeightsSourceConfig{
			Sources:   ec.WeightsSources,
			Path:      ec.WeightsPath,
			ObjectKey: ec.WeightsObjectKey,
			URL:       ec.WeightsURL,
			Dim:       ec.Dim,
			Window:    ec.ContextWindow,
			Seed:      ec.WeightsSeed,
			HTTP:      common.HTTPProviderConfig{MaxRetries: 3},
		}, c.Artifacts, c.Logger, c.Metrics)
		if err != nil {
			return nil, err
		}
		w, source, err := chain.Load(ctx)
		if err != nil {
			return nil, err
		}
		c.Logger.Info("residue encoder ready", logging.String("weights", source), logging.Int("dim", w.Dim))
		return embedding.NewResidueEncoder(w)
	case "remote":
		return embedding.NewRemoteEncoder(embedding.RemoteConfig{
			BaseURL:    ec.RemoteURL,
			Dim:        ec.Dim,
			Timeout:    ec.RemoteTimeout,
			MaxRetries: 3,
		})
	default:
		return nil, errors.InvalidParam(fmt.Sprintf("unknown encoder %q", ec.Encoder))
	}
}

func (c *Components) buildStore(ctx context.Context) (embedding.Store, error) {
	ec := c.Config.Embedding
	switch ec.Store {
	case "memory":
		return embedding.NewMemoryStore(c.Artifacts, ec.CachePath), nil
	case "redis":
		return c.withLRU(redis.NewEmbeddingStore(c.Redis))
	case "milvus":
		mc := c.Config.Milvus
		client, err := milvus.NewClient(milvus.ClientConfig{
			Address:  mc.Addr,
			Username: mc.Username,
			Password: mc.Password,
			DBName:   mc.DBName,
		}, c.Logger)
		if err != nil {
			return nil, err
		}
		c.onClose(client.Close)
		c.Milvus = client
		c.check("milvus", client.CheckHealth)
		coll := milvus.NewCollectionManager(client, milvus.CollectionConfig{Name: mc.Collection, Dim: ec.Dim}, c.Logger)
		store, err := milvus.NewEmbeddingStore(ctx, client, coll)
		if err != nil {
			return nil, err
		}
		return c.withLRU(store)
	default:
		return nil, errors.InvalidParam(fmt.Sprintf("unknown embedding store %q", ec.Store))
	}
}

func (c *Components) withLRU(s embedding.Store) (embedding.Store, error) {
	if c.Config.Embedding.LRUSize <= 0 {
		return s, nil
	}
	return embedding.NewLRUStore(s, c.Config.Embedding.LRUSize)
}

func (c *Components) buildCache(ctx context.Context) error {
	ec := c.Config.Embedding
	enc, err := c.buildEncoder(ctx)
	if err != nil {
		return err
	}
	store, err := c.buildStore(ctx)
	if err != nil {
		return err
	}
	computer := embedding.NewComputer(enc, embedding.ComputerConfig{
		MaxLength: ec.MaxLength,
		BatchSize: ec.BatchSize,
		Workers:   ec.Workers,
	}, c.Logger, c.Metrics)
	c.Cache = embedding.NewCache(store, computer, embedding.CacheConfig{Dim: enc.Dim()}, c.Logger, c.Metrics)
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Training
// ─────────────────────────────────────────────────────────────────────────────

func (c *Components) buildPostgres() error {
	if c.Postgres != nil {
		return nil
	}
	pc := PostgresConfig(c.Config.Database)
	conn, err := postgres.NewConnection(pc, c.Logger)
	if err != nil {
		return err
	}
	c.onClose(conn.Close)
	if c.Config.Database.AutoMigrate {
		if err := postgres.RunMigrations(pc, c.Config.Database.MigrationPath, c.Logger); err != nil {
			return err
		}
	}
	c.Postgres = conn
	c.check("postgres", conn.HealthCheck)
	return nil
}

func (c *Components) buildNeo4j() error {
	if c.Neo4j != nil {
		return nil
	}
	nc := c.Config.Neo4j
	driver, err := neo4j.NewDriver(neo4j.DriverConfig{
		URI:                   nc.URI,
		Username:              nc.User,
		Password:              nc.Password,
		Database:              nc.Database,
		MaxConnectionPoolSize: nc.MaxConnectionPoolSize,
		ConnectionTimeout:     nc.ConnectionTimeout,
	}, c.Logger)
	if err != nil {
		return err
	}
	c.onClose(driver.Close)
	c.Neo4j = driver
	c.check("neo4j", driver.HealthCheck)
	return nil
}

// PairSource opens the configured positive-pair source.
func (c *Components) PairSource() (protein.PairSource, error) {
	tc := c.Config.Training
	switch tc.PairSource {
	case "tsv":
		return protein.NewTSVPairSource(tc.PairsPath), nil
	case "postgres":
		if err := c.buildPostgres(); err != nil {
			return nil, err
		}
		return postgres.NewPairSource(c.Postgres.DB()), nil
	case "neo4j":
		if err := c.buildNeo4j(); err != nil {
			return nil, err
		}
		return neo4j.NewInteractionGraph(c.Neo4j), nil
	default:
		return nil, errors.InvalidParam(fmt.Sprintf("unknown pair source %q", tc.PairSource))
	}
}

// PairImporter writes observed pairs into a database-backed pair source.
type PairImporter interface {
	ImportPairs(ctx context.Context, pairs []interaction.Pair, source string) (int, error)
}

// PairImporter opens the named import target: postgres or neo4j.
func (c *Components) PairImporter(target string) (PairImporter, error) {
	switch target {
	case "postgres":
		if err := c.buildPostgres(); err != nil {
			return nil, err
		}
		return postgres.NewPairSource(c.Postgres.DB()), nil
	case "neo4j":
		if err := c.buildNeo4j(); err != nil {
			return nil, err
		}
		return neo4j.NewInteractionGraph(c.Neo4j), nil
	default:
		return nil, errors.InvalidParam(fmt.Sprintf("cannot import pairs into %q", target))
	}
}

// RunRepository opens the configured run store once.
func (c *Components) RunRepository() (domainTraining.Repository, error) {
	if c.Runs != nil {
		return c.Runs, nil
	}
	switch c.Config.Training.RunStore {
	case "memory":
		c.Runs = domainTraining.NewMemoryRepository()
	case "postgres":
		if err := c.buildPostgres(); err != nil {
			return nil, err
		}
		c.Runs = postgres.NewRunRepository(c.Postgres.DB())
	default:
		return nil, errors.InvalidParam(fmt.Sprintf("unknown run store %q", c.Config.Training.RunStore))
	}
	return c.Runs, nil
}

// EnsureProducer dials Kafka once; later calls return the same producer.
func (c *Components) EnsureProducer() (*kafka.Producer, error) {
	if c.Producer != nil {
		return c.Producer, nil
	}
	kc := c.Config.Kafka
	p, err := kafka.NewProducer(kafka.ProducerConfig{
		Brokers:      kc.Brokers,
		MaxAttempts:  kc.MaxAttempts,
		WriteTimeout: kc.WriteTimeout,
		Security:     KafkaSecurity(kc),
	}, c.Logger)
	if err != nil {
		return nil, err
	}
	c.onClose(p.Close)
	c.Producer = p
	return p, nil
}

func (c *Components) publisher() (domainTraining.Publisher, error) {
	if !c.Config.Kafka.Enabled {
		return domainTraining.NopPublisher{}, nil
	}
	p, err := c.EnsureProducer()
	if err != nil {
		return nil, err
	}
	return kafka.NewEventPublisher(p, c.Config.Kafka.EventsTopic, EventSource), nil
}

func (c *Components) buildPipeline(context.Context) error {
	pairs, err := c.PairSource()
	if err != nil {
		return err
	}
	runs, err := c.RunRepository()
	if err != nil {
		return err
	}
	events, err := c.publisher()
	if err != nil {
		return err
	}
	var lock training.RunLock
	if c.Redis != nil {
		lock = redis.NewRunLock(c.Redis, "train:"+c.Config.ModelKey(), c.Logger,
			redis.WithLockTTL(time.Minute),
			redis.WithWatchdog(20*time.Second),
			redis.WithRetryDelay(time.Second),
			redis.WithRetryCount(600))
	}
	c.Pipeline, err = training.NewPipeline(training.Dependencies{
		Pairs:               pairs,
		Resolver:            c.Resolver,
		Cache:               c.Cache,
		Artifacts:           c.Artifacts,
		Runs:                runs,
		Events:              events,
		Logger:              c.Logger,
		Metrics:             c.Metrics,
		ResolverConcurrency: c.Config.Resolver.Concurrency,
		Lock:                lock,
	})
	return err
}

// ─────────────────────────────────────────────────────────────────────────────
// Inference
// ─────────────────────────────────────────────────────────────────────────────

func (c *Components) buildInference(ctx context.Context) error {
	cfg := c.Config
	if err := c.Cache.Load(ctx, false); err != nil {
		c.Logger.Warn("embedding cache snapshot not restored", logging.Err(err))
	}
	c.Loader = ppinet.NewCheckpointLoader(ppinet.CheckpointSourceConfig{ObjectKey: cfg.ModelKey()}, c.Artifacts, c.Logger, c.Metrics)
	svc, err := inference.NewService(inference.Dependencies{
		Resolver: c.Resolver,
		Cache:    c.Cache,
		Loader:   c.Loader,
		Logger:   c.Logger,
		Metrics:  c.Metrics,
	}, InferenceOptions(cfg))
	if err != nil {
		return err
	}
	c.Inference = svc

	if ac := cfg.Auth; ac.Enabled {
		client, err := keycloak.NewClient(ctx, keycloak.Config{
			BaseURL:             ac.KeycloakURL,
			Realm:               ac.Realm,
			ClientID:            ac.ClientID,
			JWKSRefreshInterval: ac.JWKSRefreshInterval,
			Leeway:              ac.Leeway,
		}, c.Logger.Named("auth"))
		if err != nil {
			return err
		}
		c.onClose(client.Close)
		c.Auth = client
		c.check("keycloak", client.Health)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Config projections
// ─────────────────────────────────────────────────────────────────────────────

// InferenceOptions are the hot-reloadable prediction settings of cfg.
func InferenceOptions(cfg *config.Config) inference.Options {
	return inference.Options{
		Threshold:             cfg.Inference.Threshold,
		ReportInteractionType: cfg.Inference.ReportInteractionType,
	}
}

// TrainingParams projects cfg onto the parameters a run records.
func TrainingParams(cfg *config.Config) domainTraining.Params {
	tc := cfg.Training
	return domainTraining.Params{
		PairSource:    tc.PairSource,
		NegativeRatio: tc.NegativeRatio,
		TestFraction:  tc.TestFraction,
		BatchSize:     tc.BatchSize,
		Epochs:        tc.Epochs,
		LearningRate:  tc.LearningRate,
		Seed:          tc.Seed,
		HiddenDims:    append([]int(nil), tc.HiddenDims...),
		Dropout:       tc.Dropout,
		EmbeddingDim:  cfg.Embedding.Dim,
		ModelDir:      path.Clean(tc.ModelDir),
		WarmStart:     tc.WarmStart,
		Rebuild:       cfg.Embedding.Rebuild,
	}
}

// RunOptions carries the learning-rate schedule of cfg.
func RunOptions(cfg *config.Config) []training.RunOption {
	tc := cfg.Training
	return []training.RunOption{training.WithPlateau(tc.PlateauPatience, tc.PlateauFactor, tc.MinLearningRate)}
}

// PostgresConfig maps the database section onto the connection config.
func PostgresConfig(d config.DatabaseConfig) postgres.PostgresConfig {
	return postgres.PostgresConfig{
		Host:            d.Host,
		Port:            d.Port,
		Database:        d.DBName,
		Username:        d.User,
		Password:        d.Password,
		SSLMode:         d.SSLMode,
		MaxOpenConns:    d.MaxConns,
		MaxIdleConns:    d.MaxIdleConns,
		ConnMaxLifetime: d.ConnMaxLifetime,
		ConnMaxIdleTime: d.ConnMaxIdleTime,
	}
}

// KafkaSecurity maps the SASL and TLS settings of kc.
func KafkaSecurity(kc config.KafkaConfig) kafka.SecurityConfig {
	return kafka.SecurityConfig{
		SASLMechanism: kc.SASLMechanism,
		SASLUsername:  kc.SASLUsername,
		SASLPassword:  kc.SASLPassword,
		TLSEnabled:    kc.TLSEnabled,
		TLSCertPath:   kc.TLSCertPath,
	}
}

//Personal.AI order the ending
