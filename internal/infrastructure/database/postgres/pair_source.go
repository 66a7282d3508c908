package postgres

import (
	"context"
	"database/sql"

	"github.com/turtacn/PPI-Intelligence/internal/domain/interaction"
	"github.com/turtacn/PPI-Intelligence/internal/domain/protein"
	"github.com/turtacn/PPI-Intelligence/pkg/errors"
)

// PairSource reads observed interactions from ppi_positive_pairs.
// Accessions are normalized on the way in and out, matching the keys the
// resolver and embedding cache use.
type PairSource struct {
	db *sql.DB
}

func NewPairSource(db *sql.DB) *PairSource {
	return &PairSource{db: db}
}

func (s *PairSource) Name() string { return "postgres" }

const selectPairsSQL = `SELECT protein_a, protein_b FROM ppi_positive_pairs ORDER BY id`

// LoadPairs returns every stored pair as an observed positive.
func (s *PairSource) LoadPairs(ctx context.Context) ([]interaction.Pair, error) {
	rows, err := s.db.QueryContext(ctx, selectPairsSQL)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodePairSourceUnavailable, "query positive pairs")
	}
	defer rows.Close()

	var out []interaction.Pair
	for rows.Next() {
		var a, b string
		if err := rows.Scan(&a, &b); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "scan positive pair")
		}
		out = append(out, observed(a, b))
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "iterate positive pairs")
	}
	return out, nil
}

const insertPairSQL = `INSERT INTO ppi_positive_pairs (protein_a, protein_b, source)
VALUES ($1, $2, $3) ON CONFLICT (protein_a, protein_b) DO NOTHING`

// ImportPairs stores pairs in canonical order inside one transaction and
// returns how many were new.  Self pairs are skipped.
func (s *PairSource) ImportPairs(ctx context.Context, pairs []interaction.Pair, source string) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "begin pair import")
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, insertPairSQL)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "prepare pair import")
	}
	defer stmt.Close()

	inserted := 0
	for _, p := range pairs {
		k := observed(p.A, p.B).Key()
		if k.IsSelf() || k.A == "" {
			continue
		}
		res, err := stmt.ExecContext(ctx, k.A, k.B, source)
		if err != nil {
			return 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "insert pair")
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "commit pair import")
	}
	return inserted, nil
}

func observed(a, b string) interaction.Pair {
	return interaction.Observed(protein.NormalizeAccession(a), protein.NormalizeAccession(b))
}

//Personal.AI order the ending
