// Package protein models the proteins the interaction pipeline operates on:
// accessions, amino-acid sequences and the tagged reference used by callers
// that supply either an identifier or a raw sequence.
package protein

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/turtacn/PPI-Intelligence/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// Value Objects
// ─────────────────────────────────────────────────────────────────────────────

// Accession is a protein identifier, typically a UniProt accession.
type Accession = string

// Sequence is an upper-case amino-acid string.
type Sequence = string

// NormalizeSequence upper-cases s and strips surrounding whitespace.  Interior
// whitespace is left in place; the tokenizer rejects it.
func NormalizeSequence(s string) Sequence {
	return strings.ToUpper(strings.TrimSpace(s))
}

// NormalizeAccession trims and upper-cases an accession.
func NormalizeAccession(id string) Accession {
	return strings.ToUpper(strings.TrimSpace(id))
}

// Protein is the pipeline's view of one protein.  Embedding is nil until it
// has been computed or fetched from the cache.
type Protein struct {
	ID        Accession `json:"id"`
	Sequence  Sequence  `json:"sequence"`
	Embedding []float32 `json:"embedding,omitempty"`
}

// HasEmbedding reports whether the embedding has been attached.
func (p *Protein) HasEmbedding() bool { return p != nil && len(p.Embedding) > 0 }

// ─────────────────────────────────────────────────────────────────────────────
// Ref: ByAccession | ByRawSequence
// ─────────────────────────────────────────────────────────────────────────────

// RefKind discriminates Ref.
type RefKind int

const (
	RefUnknown RefKind = iota
	RefAccession
	RefSequence
)

func (k RefKind) String() string {
	switch k {
	case RefAccession:
		return "accession"
	case RefSequence:
		return "sequence"
	default:
		return "unknown"
	}
}

// rawKeyPrefix marks cache keys derived from raw sequences so they never
// collide with accessions.
const rawKeyPrefix = "seq:"

// Ref identifies a protein either by accession or by its raw sequence.  The
// zero value is invalid.
type Ref struct {
	kind  RefKind
	value string
}

// ByAccession builds an accession reference.
func ByAccession(id string) Ref {
	return Ref{kind: RefAccession, value: NormalizeAccession(id)}
}

// ByRawSequence builds a raw-sequence reference.
func ByRawSequence(seq string) Ref {
	return Ref{kind: RefSequence, value: NormalizeSequence(seq)}
}

func (r Ref) Kind() RefKind  { return r.kind }
func (r Ref) Value() string  { return r.value }
func (r Ref) IsZero() bool   { return r.kind == RefUnknown }
func (r Ref) String() string { return r.kind.String() + ":" + r.Display() }

// Display is a short human readable label.  Long sequences are elided.
func (r Ref) Display() string {
	if r.kind == RefSequence && len(r.value) > 16 {
		return r.value[:12] + "..."
	}
	return r.value
}

// Key is the embedding cache key: the accession itself, or a content hash
// for raw sequences.
func (r Ref) Key() string {
	if r.kind == RefSequence {
		sum := sha256.Sum256([]byte(r.value))
		return rawKeyPrefix + hex.EncodeToString(sum[:16])
	}
	return r.value
}

// Validate rejects the zero value and empty payloads.
func (r Ref) Validate() error {
	switch r.kind {
	case RefAccession:
		if r.value == "" {
			return errors.InvalidParam("accession must not be empty")
		}
	case RefSequence:
		if r.value == "" {
			return errors.InvalidParam("sequence must not be empty")
		}
	default:
		return errors.InvalidParam("protein reference must carry an accession or a sequence")
	}
	return nil
}

//Personal.AI order the ending
