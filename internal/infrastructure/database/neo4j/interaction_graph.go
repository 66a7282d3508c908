package neo4j

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/turtacn/PPI-Intelligence/internal/domain/interaction"
	"github.com/turtacn/PPI-Intelligence/internal/domain/protein"
	"github.com/turtacn/PPI-Intelligence/pkg/errors"
)

// graph is the part of *Driver the interaction graph needs.
type graph interface {
	ExecuteRead(ctx context.Context, work func(Transaction) (any, error)) (any, error)
	ExecuteWrite(ctx context.Context, work func(Transaction) (any, error)) (any, error)
}

// InteractionGraph stores observed interactions as
// (:Protein)-[:INTERACTS_WITH]->(:Protein) edges, directed from the smaller
// accession to the larger one.  Accessions are stored and returned
// normalized.
type InteractionGraph struct {
	g graph
}

func NewInteractionGraph(g graph) *InteractionGraph {
	return &InteractionGraph{g: g}
}

func (s *InteractionGraph) Name() string { return "neo4j" }

const (
	ensureConstraintCypher = `CREATE CONSTRAINT protein_accession IF NOT EXISTS
FOR (p:Protein) REQUIRE p.accession IS UNIQUE`

	loadPairsCypher = `MATCH (a:Protein)-[:INTERACTS_WITH]->(b:Protein)
WHERE a.accession <> b.accession
RETURN a.accession AS a, b.accession AS b
ORDER BY a, b`

	mergePairsCypher = `UNWIND $pairs AS pair
MERGE (a:Protein {accession: pair.a})
MERGE (b:Protein {accession: pair.b})
MERGE (a)-[r:INTERACTS_WITH]->(b)
ON CREATE SET r.source = $source, r.created = true
ON MATCH SET r.created = false
WITH r WHERE r.created
RETURN count(r) AS created`
)

// EnsureSchema creates the accession uniqueness constraint.
func (s *InteractionGraph) EnsureSchema(ctx context.Context) error {
	_, err := s.g.ExecuteWrite(ctx, func(tx Transaction) (any, error) {
		res, err := tx.Run(ctx, ensureConstraintCypher, nil)
		if err != nil {
			return nil, err
		}
		return res.Consume(ctx)
	})
	return err
}

// LoadPairs returns every interaction edge as an observed pair.
func (s *InteractionGraph) LoadPairs(ctx context.Context) ([]interaction.Pair, error) {
	out, err := s.g.ExecuteRead(ctx, func(tx Transaction) (any, error) {
		res, err := tx.Run(ctx, loadPairsCypher, nil)
		if err != nil {
			return nil, err
		}
		return CollectRecords(ctx, res, recordToPair)
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodePairSourceUnavailable, "load interaction graph")
	}
	pairs, _ := out.([]interaction.Pair)
	return pairs, nil
}

func recordToPair(rec *neo4j.Record) (interaction.Pair, error) {
	a, aok := rec.Get("a")
	b, bok := rec.Get("b")
	as, _ := a.(string)
	bs, _ := b.(string)
	as, bs = protein.NormalizeAccession(as), protein.NormalizeAccession(bs)
	if !aok || !bok || as == "" || bs == "" {
		return interaction.Pair{}, fmt.Errorf("interaction record missing accession: %v", rec.Values)
	}
	return interaction.Observed(as, bs), nil
}

// ImportPairs merges pairs into the graph and returns how many edges were
// new.  Self pairs are skipped.
func (s *InteractionGraph) ImportPairs(ctx context.Context, pairs []interaction.Pair, source string) (int, error) {
	rows := make([]map[string]any, 0, len(pairs))
	for _, p := range pairs {
		k := interaction.Observed(protein.NormalizeAccession(p.A), protein.NormalizeAccession(p.B)).Key()
		if k.IsSelf() || k.A == "" {
			continue
		}
		rows = append(rows, map[string]any{"a": k.A, "b": k.B})
	}
	if len(rows) == 0 {
		return 0, nil
	}
	out, err := s.g.ExecuteWrite(ctx, func(tx Transaction) (any, error) {
		res, err := tx.Run(ctx, mergePairsCypher, map[string]any{"pairs": rows, "source": source})
		if err != nil {
			return nil, err
		}
		if res.Next(ctx) {
			v, _ := res.Record().Get("created")
			n, _ := v.(int64)
			return int(n), nil
		}
		return 0, res.Err()
	})
	if err != nil {
		return 0, err
	}
	n, _ := out.(int)
	return n, nil
}

//Personal.AI order the ending
