package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"

	"github.com/turtacn/PPI-Intelligence/internal/domain/training"
	"github.com/turtacn/PPI-Intelligence/pkg/errors"
)

// RunRepository stores training runs in ppi_training_runs and their epoch
// metrics in ppi_epoch_metrics.
type RunRepository struct {
	db *sql.DB
}

func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

var _ training.Repository = (*RunRepository)(nil)

const (
	insertRunSQL = `INSERT INTO ppi_training_runs
(id, state, params, epoch, best_epoch, best_auc, model_key, error, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	updateRunSQL = `UPDATE ppi_training_runs
SET state = $2, epoch = $3, best_epoch = $4, best_auc = $5, model_key = $6, error = $7, updated_at = $8
WHERE id = $1`

	selectRunColumns = `SELECT id, state, params, epoch, best_epoch, best_auc, model_key, error, created_at, updated_at
FROM ppi_training_runs`

	insertEpochSQL = `INSERT INTO ppi_epoch_metrics (run_id, epoch, metrics, improved, recorded_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (run_id, epoch) DO UPDATE SET metrics = EXCLUDED.metrics, improved = EXCLUDED.improved, recorded_at = EXCLUDED.recorded_at`

	selectEpochsSQL = `SELECT run_id, epoch, metrics, improved, recorded_at
FROM ppi_epoch_metrics WHERE run_id = $1 ORDER BY epoch`
)

func (r *RunRepository) Create(ctx context.Context, run *training.Run) error {
	params, err := json.Marshal(run.Params)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "encode run params")
	}
	_, err = r.db.ExecContext(ctx, insertRunSQL,
		run.ID, string(run.State), params, run.Epoch, run.BestEpoch, run.BestAUC,
		run.ModelKey, run.Error, run.CreatedAt, run.UpdatedAt)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "insert training run")
	}
	return nil
}

func (r *RunRepository) Update(ctx context.Context, run *training.Run) error {
	res, err := r.db.ExecContext(ctx, updateRunSQL,
		run.ID, string(run.State), run.Epoch, run.BestEpoch, run.BestAUC,
		run.ModelKey, run.Error, run.UpdatedAt)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "update training run")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.NotFound("run not found").WithDetail(run.ID)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(s rowScanner) (*training.Run, error) {
	var (
		run    training.Run
		state  string
		params []byte
	)
	if err := s.Scan(&run.ID, &state, &params, &run.Epoch, &run.BestEpoch, &run.BestAUC,
		&run.ModelKey, &run.Error, &run.CreatedAt, &run.UpdatedAt); err != nil {
		return nil, err
	}
	run.State = training.State(state)
	if err := json.Unmarshal(params, &run.Params); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "decode run params")
	}
	return &run, nil
}

func (r *RunRepository) Get(ctx context.Context, id string) (*training.Run, error) {
	run, err := scanRun(r.db.QueryRowContext(ctx, selectRunColumns+` WHERE id = $1`, id))
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFound("run not found").WithDetail(id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "select training run")
	}
	return run, nil
}

// List returns the most recently created runs first.
func (r *RunRepository) List(ctx context.Context, limit int) ([]*training.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, selectRunColumns+` ORDER BY created_at DESC, id LIMIT $1`, limit)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "list training runs")
	}
	defer rows.Close()

	var out []*training.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "scan training run")
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

func (r *RunRepository) RecordEpoch(ctx context.Context, rec training.EpochRecord) error {
	metrics, err := json.Marshal(rec.Metrics)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "encode epoch metrics")
	}
	if _, err := r.db.ExecContext(ctx, insertEpochSQL, rec.RunID, rec.Epoch, metrics, rec.Improved, rec.RecordedAt); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "insert epoch metrics")
	}
	return nil
}

func (r *RunRepository) Epochs(ctx context.Context, runID string) ([]training.EpochRecord, error) {
	rows, err := r.db.QueryContext(ctx, selectEpochsSQL, runID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "select epoch metrics")
	}
	defer rows.Close()

	var out []training.EpochRecord
	for rows.Next() {
		var (
			rec     training.EpochRecord
			metrics []byte
		)
		if err := rows.Scan(&rec.RunID, &rec.Epoch, &metrics, &rec.Improved, &rec.RecordedAt); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "scan epoch metrics")
		}
		if err := json.Unmarshal(metrics, &rec.Metrics); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeSerialization, "decode epoch metrics")
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

//Personal.AI order the ending
