package checkpointstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/driveindex/syncd/internal/domain"
)

// PostgresStore is the pgxpool-backed Store implementation, sharing the
// same durable store as jobstore.PostgresStore.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore constructs a PostgresStore over an already-migrated
// pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Create(ctx context.Context, syncID string) (string, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO sync_checkpoints (sync_id, status) VALUES ($1, 'in_progress') RETURNING id
	`, syncID).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("insert checkpoint: %w", err)
	}
	return strconv.FormatInt(id, 10), nil
}

func (s *PostgresStore) FindBySyncID(ctx context.Context, syncID string) (*domain.Checkpoint, error) {
	row := s.pool.QueryRow(ctx, checkpointSelectColumns+` FROM sync_checkpoints WHERE sync_id = $1`, syncID)
	cp, err := scanCheckpoint(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrCheckpointNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find checkpoint by sync id: %w", err)
	}
	return cp, nil
}

func (s *PostgresStore) FindLatestInProgress(ctx context.Context) (*domain.Checkpoint, error) {
	row := s.pool.QueryRow(ctx, checkpointSelectColumns+`
		FROM sync_checkpoints WHERE status = 'in_progress' ORDER BY id DESC LIMIT 1
	`)
	cp, err := scanCheckpoint(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrCheckpointNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find latest in-progress checkpoint: %w", err)
	}
	return cp, nil
}

func (s *PostgresStore) UpdateProgress(ctx context.Context, id string, pageToken *string, filesProcessed int64) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE sync_checkpoints
		SET page_token = $2, files_processed = $3, updated_at = now()
		WHERE id = $1
	`, mustInt64(id), pageToken, filesProcessed)
	if err != nil {
		return fmt.Errorf("update checkpoint progress: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCheckpointNotFound
	}
	return nil
}

func (s *PostgresStore) MarkCompleted(ctx context.Context, id string, filesProcessed int64) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE sync_checkpoints
		SET status = 'completed', files_processed = $2, completed_at = now(), updated_at = now()
		WHERE id = $1
	`, mustInt64(id), filesProcessed)
	if err != nil {
		return fmt.Errorf("mark checkpoint completed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCheckpointNotFound
	}
	return nil
}

func (s *PostgresStore) MarkFailed(ctx context.Context, id string, errMsg string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE sync_checkpoints SET status = 'failed', error_message = $2, updated_at = now() WHERE id = $1
	`, mustInt64(id), errMsg)
	if err != nil {
		return fmt.Errorf("mark checkpoint failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCheckpointNotFound
	}
	return nil
}

func (s *PostgresStore) Pause(ctx context.Context, id string) error {
	return s.setStatus(ctx, id, domain.CheckpointPaused)
}

func (s *PostgresStore) Resume(ctx context.Context, id string) error {
	return s.setStatus(ctx, id, domain.CheckpointInProgress)
}

func (s *PostgresStore) setStatus(ctx context.Context, id string, status domain.CheckpointStatus) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE sync_checkpoints SET status = $2, updated_at = now() WHERE id = $1
	`, mustInt64(id), status)
	if err != nil {
		return fmt.Errorf("set checkpoint status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCheckpointNotFound
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, syncID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sync_checkpoints WHERE sync_id = $1`, syncID)
	if err != nil {
		return fmt.Errorf("delete checkpoint: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCheckpointNotFound
	}
	return nil
}

func (s *PostgresStore) GetHistory(ctx context.Context, limit int) ([]*domain.Checkpoint, error) {
	rows, err := s.pool.Query(ctx, checkpointSelectColumns+`
		FROM sync_checkpoints ORDER BY id DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("get checkpoint history: %w", err)
	}
	defer rows.Close()

	var out []*domain.Checkpoint
	for rows.Next() {
		cp, err := scanCheckpoint(rows)
		if err != nil {
			return nil, fmt.Errorf("scan checkpoint: %w", err)
		}
		out = append(out, cp)
	}
	return out, rows.Err()
}

const checkpointSelectColumns = `SELECT id, sync_id, page_token, files_processed, status,
	started_at, updated_at, completed_at, error_message`

type scannable interface {
	Scan(dest ...any) error
}

func scanCheckpoint(row scannable) (*domain.Checkpoint, error) {
	var cp domain.Checkpoint
	var id int64
	var status string
	if err := row.Scan(
		&id, &cp.SyncID, &cp.PageToken, &cp.FilesProcessed, &status,
		&cp.StartedAt, &cp.UpdatedAt, &cp.CompletedAt, &cp.ErrorMessage,
	); err != nil {
		return nil, err
	}
	cp.ID = strconv.FormatInt(id, 10)
	cp.Status = domain.CheckpointStatus(status)
	return &cp, nil
}

func mustInt64(id string) int64 {
	v, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return -1
	}
	return v
}
