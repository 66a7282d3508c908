package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/turtacn/PPI-Intelligence/pkg/errors"
)

// RemoteConfig configures RemoteEncoder.
type RemoteConfig struct {
	BaseURL     string
	Dim         int
	Timeout     time.Duration
	MaxRetries  uint64
	InitialWait time.Duration
	Client      *http.Client
}

// RemoteEncoder delegates to an external feature extraction server:
//
//	POST {base}/v1/represent  {"sequences": ["MKV...", ...]}
//	200 {"representations": [[[f, ...], ...], ...]}
//
// Each representation holds one row per residue.
type RemoteEncoder struct {
	cfg RemoteConfig
}

type representRequest struct {
	Sequences []string `json:"sequences"`
}

type representResponse struct {
	Representations [][][]float32 `json:"representations"`
}

// NewRemoteEncoder validates cfg.
func NewRemoteEncoder(cfg RemoteConfig) (*RemoteEncoder, error) {
	if cfg.BaseURL == "" {
		return nil, errors.InvalidParam("remote encoder base url is required")
	}
	if cfg.Dim <= 0 {
		return nil, errors.InvalidParam("remote encoder dim must be positive")
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.InitialWait <= 0 {
		cfg.InitialWait = 500 * time.Millisecond
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: cfg.Timeout}
	}
	return &RemoteEncoder{cfg: cfg}, nil
}

func (e *RemoteEncoder) Dim() int     { return e.cfg.Dim }
func (e *RemoteEncoder) Name() string { return "remote" }

func (e *RemoteEncoder) Encode(ctx context.Context, batch [][]int) ([][][]float32, error) {
	req := representRequest{Sequences: make([]string, len(batch))}
	for i, row := range batch {
		req.Sequences[i] = Detokenize(row)
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	var out representResponse
	op := func() error {
		hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.BaseURL+"/v1/represent", bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		hreq.Header.Set("Content-Type", "application/json")
		resp, err := e.cfg.Client.Do(hreq)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("represent: status %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return backoff.Permanent(errors.Newf(errors.ErrCodeEmbeddingCompute,
				"represent: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))))
		}
		out = representResponse{}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return backoff.Permanent(errors.Wrap(err, errors.ErrCodeSerialization, "decode represent response"))
		}
		return nil
	}
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = e.cfg.InitialWait
	b := backoff.WithContext(backoff.WithMaxRetries(eb, e.cfg.MaxRetries), ctx)
	if err := backoff.Retry(op, b); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.GetCode(err) == errors.CodeUnknown {
			return nil, errors.Wrap(err, errors.ErrCodeExternalService, "remote encoder unavailable")
		}
		return nil, err
	}

	if len(out.Representations) != len(batch) {
		return nil, errors.Newf(errors.ErrCodeEmbeddingCompute,
			"remote encoder returned %d representations for %d sequences", len(out.Representations), len(batch))
	}
	// Re-pad to the batch width so callers can mask uniformly.
	padded := make([][][]float32, len(batch))
	for i, rows := range out.Representations {
		p := make([][]float32, len(batch[i]))
		for j := range p {
			if j < len(rows) {
				if len(rows[j]) != e.cfg.Dim {
					return nil, errors.Newf(errors.ErrCodeEmbeddingDimMismatch,
						"remote encoder returned width %d, want %d", len(rows[j]), e.cfg.Dim)
				}
				p[j] = rows[j]
			} else {
				p[j] = make([]float32, e.cfg.Dim)
			}
		}
		padded[i] = p
	}
	return padded, nil
}

//Personal.AI order the ending
