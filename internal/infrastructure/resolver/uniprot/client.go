// Package uniprot resolves protein accessions to sequences through the
// UniProt REST FASTA endpoint.
package uniprot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"github.com/turtacn/PPI-Intelligence/internal/domain/protein"
	"github.com/turtacn/PPI-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/PPI-Intelligence/internal/intelligence/common"
	"github.com/turtacn/PPI-Intelligence/pkg/errors"
)

const (
	DefaultBaseURL = "https://rest.uniprot.org/uniprotkb"
	// LegacyBaseURL serves the same FASTA layout under the old host.
	LegacyBaseURL = "https://www.uniprot.org/uniprot"

	userAgent = "ppi-intelligence/uniprot"
	maxBody   = 8 << 20
)

// Config configures Client.
type Config struct {
	BaseURL       string
	Timeout       time.Duration
	MaxRetries    uint64
	MaxElapsed    time.Duration
	InitialWait   time.Duration
	RatePerSecond float64
	Burst         int
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the transport client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m common.PPIMetrics) Option {
	return func(c *Client) { c.metrics = m }
}

// Client implements protein.SequenceResolver.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	logger  logging.Logger
	metrics common.PPIMetrics
}

var _ protein.SequenceResolver = (*Client)(nil)

// NewClient validates cfg and builds a client.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, errors.InvalidParam("resolver base url must be an http(s) url").WithDetail(cfg.BaseURL)
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxElapsed <= 0 {
		cfg.MaxElapsed = 30 * time.Second
	}
	if cfg.InitialWait <= 0 {
		cfg.InitialWait = 250 * time.Millisecond
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}

	c := &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(limit, cfg.Burst),
		logger:  logging.NewNopLogger(),
		metrics: common.NewNoopPPIMetrics(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Resolve fetches the FASTA record for id.  404 is ErrCodeSequenceNotFound
// and is not retried; 5xx, 429 and transport failures are retried with
// exponential backoff, then reported as ErrCodeResolution.
func (c *Client) Resolve(ctx context.Context, id protein.Accession) (protein.Sequence, error) {
	id = protein.NormalizeAccession(id)
	if id == "" {
		return "", errors.InvalidParam("accession must not be empty")
	}
	start := time.Now()
	seq, err := c.fetch(ctx, id)
	c.metrics.RecordResolution(ctx, "uniprot", err == nil, float64(time.Since(start).Milliseconds()))
	if err != nil {
		c.logger.Debug("uniprot resolve failed", logging.Accession(id), logging.Err(err))
		return "", err
	}
	return seq, nil
}

func (c *Client) fetch(ctx context.Context, id string) (string, error) {
	endpoint := fmt.Sprintf("%s/%s.fasta", c.cfg.BaseURL, url.PathEscape(id))

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.cfg.InitialWait
	eb.MaxElapsedTime = c.cfg.MaxElapsed
	var b backoff.BackOff = eb
	if c.cfg.MaxRetries > 0 {
		b = backoff.WithMaxRetries(eb, c.cfg.MaxRetries)
	}

	var seq string
	op := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Accept", "text/plain")
		req.Header.Set("User-Agent", userAgent)

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusBadRequest:
			return backoff.Permanent(errors.New(errors.ErrCodeSequenceNotFound, "accession not found").WithDetail(id))
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return fmt.Errorf("uniprot: status %d", resp.StatusCode)
		case resp.StatusCode != http.StatusOK:
			return backoff.Permanent(fmt.Errorf("uniprot: unexpected status %d", resp.StatusCode))
		}

		recs, err := protein.ParseFASTA(io.LimitReader(resp.Body, maxBody))
		if err != nil {
			return err
		}
		if len(recs) == 0 || recs[0].Sequence == "" {
			return backoff.Permanent(errors.New(errors.ErrCodeSequenceNotFound, "empty fasta record").WithDetail(id))
		}
		seq = recs[0].Sequence
		return nil
	}

	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		if errors.IsCode(err, errors.ErrCodeSequenceNotFound) || ctx.Err() != nil {
			return "", err
		}
		return "", errors.Resolution(id, err)
	}
	return seq, nil
}

//Personal.AI order the ending
