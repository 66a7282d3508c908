package ppinet

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/turtacn/PPI-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/PPI-Intelligence/internal/intelligence/common"
	"github.com/turtacn/PPI-Intelligence/pkg/errors"
)

// CheckpointFormat tags serialized checkpoints.
const CheckpointFormat = "ppi.model.v1"

// Metadata travels with the weights.
type Metadata struct {
	ModelID      string             `json:"model_id"`
	RunID        string             `json:"run_id,omitempty"`
	Architecture string             `json:"architecture"`
	Combiner     string             `json:"combiner"`
	EmbeddingDim int                `json:"embedding_dim"`
	Network      Config             `json:"network"`
	TrainedAt    time.Time          `json:"trained_at"`
	Epoch        int                `json:"epoch"`
	Metrics      map[string]float64 `json:"metrics,omitempty"`
}

// Checkpoint is a trained model.
type Checkpoint struct {
	Network  *Network
	Metadata Metadata
}

// Compatible rejects a checkpoint whose input dimension or architecture
// differs from cfg.
func (c *Checkpoint) Compatible(embeddingDim int, cfg Config) error {
	if c.Metadata.EmbeddingDim != embeddingDim {
		return errors.ModelLoad(fmt.Sprintf("checkpoint embedding dim %d, configured %d", c.Metadata.EmbeddingDim, embeddingDim), nil)
	}
	if got, want := c.Network.Config().Architecture(), cfg.Architecture(); got != want {
		return errors.ModelLoad(fmt.Sprintf("checkpoint architecture %s, configured %s", got, want), nil)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Codec
// ─────────────────────────────────────────────────────────────────────────────

// EncodeCheckpoint serializes c in protobuf wire format:
//
//	1 format  2 metadata (JSON)  3 repeated layer {1 in  2 out  3 W  4 B}
func EncodeCheckpoint(c *Checkpoint) ([]byte, error) {
	if c == nil || c.Network == nil {
		return nil, errors.InvalidParam("checkpoint has no network")
	}
	md := c.Metadata
	md.Network = c.Network.Config()
	md.Architecture = md.Network.Architecture()
	meta, err := json.Marshal(md)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "encode checkpoint metadata")
	}
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendString(b, CheckpointFormat)
	b = protowire.AppendTag(b, 2, protowire.BytesType)
	b = protowire.AppendBytes(b, meta)
	for _, l := range c.Network.Layers() {
		var lb []byte
		lb = protowire.AppendTag(lb, 1, protowire.VarintType)
		lb = protowire.AppendVarint(lb, uint64(l.In))
		lb = protowire.AppendTag(lb, 2, protowire.VarintType)
		lb = protowire.AppendVarint(lb, uint64(l.Out))
		lb = appendFloats(lb, 3, l.W)
		lb = appendFloats(lb, 4, l.B)
		b = protowire.AppendTag(b, 3, protowire.BytesType)
		b = protowire.AppendBytes(b, lb)
	}
	return b, nil
}

// DecodeCheckpoint parses EncodeCheckpoint output.  Any malformed input is a
// ModelLoad error.
func DecodeCheckpoint(data []byte) (*Checkpoint, error) {
	var (
		format string
		meta   []byte
		layers []*Dense
	)
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, errors.ModelLoad("checkpoint: malformed tag", protowire.ParseError(n))
		}
		data = data[n:]
		if typ != protowire.BytesType {
			m := protowire.ConsumeFieldValue(num, typ, data)
			if m < 0 {
				return nil, errors.ModelLoad("checkpoint: malformed field", protowire.ParseError(m))
			}
			data = data[m:]
			continue
		}
		raw, m := protowire.ConsumeBytes(data)
		if m < 0 {
			return nil, errors.ModelLoad("checkpoint: truncated", protowire.ParseError(m))
		}
		data = data[m:]
		switch num {
		case 1:
			format = string(raw)
		case 2:
			meta = raw
		case 3:
			l, err := decodeLayer(raw)
			if err != nil {
				return nil, errors.ModelLoad("checkpoint: bad layer", err)
			}
			layers = append(layers, l)
		}
	}
	if format != CheckpointFormat {
		return nil, errors.ModelLoad(fmt.Sprintf("checkpoint: unknown format %q", format), nil)
	}
	var md Metadata
	if err := json.Unmarshal(meta, &md); err != nil {
		return nil, errors.ModelLoad("checkpoint: bad metadata", err)
	}
	net, err := fromLayers(md.Network, layers)
	if err != nil {
		return nil, err
	}
	return &Checkpoint{Network: net, Metadata: md}, nil
}

func decodeLayer(data []byte) (*Dense, error) {
	d := &Dense{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		data = data[n:]
		switch {
		case (num == 1 || num == 2) && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(data)
			if m < 0 {
				return nil, protowire.ParseError(m)
			}
			if num == 1 {
				d.In = int(v)
			} else {
				d.Out = int(v)
			}
			n = m
		case (num == 3 || num == 4) && typ == protowire.BytesType:
			raw, m := protowire.ConsumeBytes(data)
			if m < 0 {
				return nil, protowire.ParseError(m)
			}
			vals, err := decodeFloats(raw)
			if err != nil {
				return nil, err
			}
			if num == 3 {
				d.W = vals
			} else {
				d.B = vals
			}
			n = m
		default:
			n = protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
		}
		data = data[n:]
	}
	return d, nil
}

func appendFloats(b []byte, num protowire.Number, vals []float32) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	b = protowire.AppendVarint(b, uint64(4*len(vals)))
	for _, v := range vals {
		b = protowire.AppendFixed32(b, math.Float32bits(v))
	}
	return b
}

func decodeFloats(raw []byte) ([]float32, error) {
	if len(raw)%4 != 0 {
		return nil, fmt.Errorf("packed float length %d not a multiple of 4", len(raw))
	}
	out := make([]float32, len(raw)/4)
	for i := range out {
		v, n := protowire.ConsumeFixed32(raw)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		out[i] = math.Float32frombits(v)
		raw = raw[n:]
	}
	return out, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Persistence
// ─────────────────────────────────────────────────────────────────────────────

// ArtifactWriter is the write half of storage.ArtifactStore.
type ArtifactWriter interface {
	Put(ctx context.Context, key string, data []byte) error
}

// SaveCheckpoint encodes c and writes it under key.
func SaveCheckpoint(ctx context.Context, store ArtifactWriter, key string, c *Checkpoint) error {
	data, err := EncodeCheckpoint(c)
	if err != nil {
		return err
	}
	if err := store.Put(ctx, key, data); err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageError, "write checkpoint")
	}
	return nil
}

// LoadCheckpoint reads and decodes key.  A missing key is a ModelLoad error.
func LoadCheckpoint(ctx context.Context, store common.ObjectGetter, key string) (*Checkpoint, error) {
	data, err := store.Get(ctx, key)
	if err != nil {
		return nil, errors.ModelLoad("checkpoint "+key+" unavailable", err)
	}
	return DecodeCheckpoint(data)
}

// CheckpointSourceConfig locates a checkpoint for the loader chain.
type CheckpointSourceConfig struct {
	Path      string
	ObjectKey string
}

// NewCheckpointLoader tries the local file first, then the object store.
func NewCheckpointLoader(cfg CheckpointSourceConfig, store common.ObjectGetter, logger logging.Logger, metrics common.PPIMetrics) *common.LoaderChain[*Checkpoint] {
	return common.NewLoaderChain(logger, metrics,
		common.Decoded(common.FileProvider(cfg.Path), DecodeCheckpoint),
		common.Decoded(common.ObjectProvider(store, cfg.ObjectKey), DecodeCheckpoint),
	)
}

//Personal.AI order the ending
