package repository

import (
	"context"
	"fmt"

	"github.com/foxseedlab/callscribe/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PostgresRepository struct {
	db   querier
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: pool, pool: pool}
}

func newRepositoryWith(db querier) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) CreateCall(ctx context.Context, input repository.CreateCallInput) (*repository.Call, error) {
	row := r.db.QueryRow(ctx,
		`INSERT INTO calls (started_at, status)
		 VALUES ($1, 'active')
		 RETURNING id, call_sid, stream_sid, started_at, ended_at, status`,
		input.StartedAt)
	var c repository.Call
	if err := row.Scan(&c.ID, &c.CallSID, &c.StreamSID, &c.StartedAt, &c.EndedAt, &c.Status); err != nil {
		return nil, fmt.Errorf("insert call: %w", err)
	}
	return &c, nil
}

func (r *PostgresRepository) UpdateCallStream(ctx context.Context, input repository.UpdateCallStreamInput) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE calls SET call_sid = $2, stream_sid = $3 WHERE id = $1`,
		input.CallID, input.CallSID, input.StreamSID)
	if err != nil {
		return fmt.Errorf("update call stream: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update call stream: call %s not found", input.CallID)
	}
	return nil
}

func (r *PostgresRepository) CompleteCall(ctx context.Context, input repository.CompleteCallInput) error {
	_, err := r.db.Exec(ctx,
		`UPDATE calls SET status = 'completed', ended_at = $2 WHERE id = $1`,
		input.CallID, input.EndedAt)
	if err != nil {
		return fmt.Errorf("complete call: %w", err)
	}
	return nil
}

func (r *PostgresRepository) InsertSegment(ctx context.Context, input repository.InsertSegmentInput) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO transcript_segments (call_id, content, segment_index, spoken_at)
		 VALUES ($1, $2, $3, $4)`,
		input.CallID, input.Content, input.SegmentIndex, input.SpokenAt)
	if err != nil {
		return fmt.Errorf("insert segment: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListSegmentsByCallID(ctx context.Context, callID string) ([]repository.TranscriptSegment, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, call_id, content, segment_index, spoken_at, created_at
		 FROM transcript_segments WHERE call_id = $1 ORDER BY segment_index ASC`,
		callID)
	if err != nil {
		return nil, fmt.Errorf("list segments: %w", err)
	}
	list, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (repository.TranscriptSegment, error) {
		var seg repository.TranscriptSegment
		err := row.Scan(&seg.ID, &seg.CallID, &seg.Content, &seg.SegmentIndex, &seg.SpokenAt, &seg.CreatedAt)
		return seg, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan segments: %w", err)
	}
	return list, nil
}

func (r *PostgresRepository) Shutdown() {
	if r.pool != nil {
		r.pool.Close()
	}
}
