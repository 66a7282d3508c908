package common

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/turtacn/PPI-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/PPI-Intelligence/pkg/errors"
)

// ErrSourceUnavailable signals that a provider has nothing to offer (file
// absent, URL not configured).  The chain moves on without logging a warning.
var ErrSourceUnavailable = stderrors.New("loader: source unavailable")

// Provider yields one artifact from one source.
type Provider[T any] interface {
	Name() string
	Load(ctx context.Context) (T, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc[T any] struct {
	ProviderName string
	Fn           func(ctx context.Context) (T, error)
}

func (p ProviderFunc[T]) Name() string                        { return p.ProviderName }
func (p ProviderFunc[T]) Load(ctx context.Context) (T, error) { return p.Fn(ctx) }

// LoaderChain tries providers in priority order and returns the first
// success.
type LoaderChain[T any] struct {
	providers []Provider[T]
	logger    logging.Logger
	metrics   PPIMetrics
}

// NewLoaderChain builds a chain.  Nil logger or metrics default to no-ops.
func NewLoaderChain[T any](logger logging.Logger, metrics PPIMetrics, providers ...Provider[T]) *LoaderChain[T] {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if metrics == nil {
		metrics = NewNoopPPIMetrics()
	}
	return &LoaderChain[T]{providers: providers, logger: logger, metrics: metrics}
}

// Load returns the artifact and the name of the provider that produced it.
// When every provider fails the error is ErrCodeModelLoad joining each cause.
func (c *LoaderChain[T]) Load(ctx context.Context) (T, string, error) {
	var zero T
	if len(c.providers) == 0 {
		return zero, "", errors.ModelLoad("no loader providers configured", nil)
	}
	var causes []error
	for _, p := range c.providers {
		if err := ctx.Err(); err != nil {
			return zero, "", err
		}
		v, err := p.Load(ctx)
		if err == nil {
			c.metrics.RecordModelLoad(ctx, p.Name(), true)
			c.logger.Info("artifact loaded", logging.String("provider", p.Name()))
			return v, p.Name(), nil
		}
		if !stderrors.Is(err, ErrSourceUnavailable) {
			c.metrics.RecordModelLoad(ctx, p.Name(), false)
			c.logger.Warn("loader provider failed", logging.String("provider", p.Name()), logging.Err(err))
		}
		causes = append(causes, fmt.Errorf("%s: %w", p.Name(), err))
	}
	return zero, "", errors.ModelLoad("all loader providers failed", stderrors.Join(causes...))
}

// Decoded maps a byte provider through decode.
func Decoded[T any](p Provider[[]byte], decode func([]byte) (T, error)) Provider[T] {
	return ProviderFunc[T]{
		ProviderName: p.Name(),
		Fn: func(ctx context.Context) (T, error) {
			var zero T
			raw, err := p.Load(ctx)
			if err != nil {
				return zero, err
			}
			return decode(raw)
		},
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Byte providers
// ─────────────────────────────────────────────────────────────────────────────

// FileProvider reads a local file.
func FileProvider(path string) Provider[[]byte] {
	return ProviderFunc[[]byte]{
		ProviderName: "file",
		Fn: func(context.Context) ([]byte, error) {
			if path == "" {
				return nil, ErrSourceUnavailable
			}
			data, err := os.ReadFile(path)
			if os.IsNotExist(err) {
				return nil, ErrSourceUnavailable
			}
			return data, err
		},
	}
}

// ObjectGetter is satisfied by every storage.ArtifactStore.
type ObjectGetter interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

// ObjectProvider reads key from an artifact store.
func ObjectProvider(store ObjectGetter, key string) Provider[[]byte] {
	return ProviderFunc[[]byte]{
		ProviderName: "object",
		Fn: func(ctx context.Context) ([]byte, error) {
			if store == nil || key == "" {
				return nil, ErrSourceUnavailable
			}
			data, err := store.Get(ctx, key)
			if errors.IsNotFound(err) {
				return nil, ErrSourceUnavailable
			}
			return data, err
		},
	}
}

// HTTPProviderConfig configures a download source.
type HTTPProviderConfig struct {
	URL         string
	Client      *http.Client
	MaxRetries  uint64
	MaxElapsed  time.Duration
	InitialWait time.Duration
}

// HTTPProvider downloads the artifact, retrying 5xx and transport errors
// with exponential backoff.  4xx responses are permanent.
func HTTPProvider(cfg HTTPProviderConfig) Provider[[]byte] {
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 60 * time.Second}
	}
	if cfg.InitialWait == 0 {
		cfg.InitialWait = 500 * time.Millisecond
	}
	if cfg.MaxElapsed == 0 {
		cfg.MaxElapsed = 2 * time.Minute
	}
	return ProviderFunc[[]byte]{
		ProviderName: "http",
		Fn: func(ctx context.Context) ([]byte, error) {
			if cfg.URL == "" {
				return nil, ErrSourceUnavailable
			}
			eb := backoff.NewExponentialBackOff()
			eb.InitialInterval = cfg.InitialWait
			eb.MaxElapsedTime = cfg.MaxElapsed
			var b backoff.BackOff = eb
			if cfg.MaxRetries > 0 {
				b = backoff.WithMaxRetries(eb, cfg.MaxRetries)
			}

			var body []byte
			op := func() error {
				req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.URL, nil)
				if err != nil {
					return backoff.Permanent(err)
				}
				resp, err := cfg.Client.Do(req)
				if err != nil {
					return err
				}
				defer resp.Body.Close()
				if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
					return fmt.Errorf("download: status %d", resp.StatusCode)
				}
				if resp.StatusCode != http.StatusOK {
					return backoff.Permanent(fmt.Errorf("download: status %d", resp.StatusCode))
				}
				body, err = io.ReadAll(resp.Body)
				return err
			}
			if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
				return nil, err
			}
			return body, nil
		},
	}
}

//Personal.AI order the ending
