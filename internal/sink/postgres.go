package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fare-matrix/internal/batch"
)

const fareMatrixDDL = `
CREATE TABLE IF NOT EXISTS fare_matrix (
    run_id          text        NOT NULL,
    region          text        NOT NULL,
    from_id         text        NOT NULL,
    to_id           text        NOT NULL,
    option          integer     NOT NULL,
    fare_cost_cents integer     NOT NULL,
    created_at      timestamptz NOT NULL,
    PRIMARY KEY (run_id, region, from_id, to_id)
)`

var fareMatrixColumns = []string{"run_id", "region", "from_id", "to_id", "option", "fare_cost_cents", "created_at"}

// Postgres bulk-loads a run into the fare_matrix table.
type Postgres struct {
	db *pgxpool.Pool
}

func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.Ping(pingCtx); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(ctx, fareMatrixDDL); err != nil {
		db.Close()
		return nil, fmt.Errorf("create fare_matrix: %w", err)
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Name() string { return "postgres" }

func (p *Postgres) Close() { p.db.Close() }

// Write replaces any rows of the same run and region before copying the new
// ones. Regions of one run share the run id and may reuse origin ids, so the
// region is part of the key.
func (p *Postgres) Write(ctx context.Context, rep *batch.Report) error {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM fare_matrix WHERE run_id = $1 AND region = $2`, rep.RunID, rep.Region); err != nil {
		return err
	}
	n, err := tx.CopyFrom(ctx, pgx.Identifier{"fare_matrix"}, fareMatrixColumns, pgx.CopyFromRows(copyRows(rep, time.Now().UTC())))
	if err != nil {
		return fmt.Errorf("copy fare_matrix: %w", err)
	}
	if int(n) != len(rep.Results) {
		return fmt.Errorf("copy fare_matrix: copied %d of %d rows", n, len(rep.Results))
	}
	return tx.Commit(ctx)
}

func copyRows(rep *batch.Report, at time.Time) [][]any {
	rows := make([][]any, 0, len(rep.Results))
	for _, r := range rep.Results {
		rows = append(rows, []any{rep.RunID, rep.Region, r.Pair.FromID, r.Pair.ToID, r.Option, r.FareCents, at})
	}
	return rows
}
