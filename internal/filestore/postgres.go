package filestore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/driveindex/syncd/internal/domain"
)

// PostgresStore is the default filestore.Store backend: a files table in
// the same durable store as JS/CS.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore constructs a PostgresStore over an already-migrated
// pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Upsert(ctx context.Context, fd *domain.FileDescriptor) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO files (id, name, mime_type, size, parent_id, modified_time, created_time, md5_checksum, synced_at, raw_metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), $9)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			mime_type = excluded.mime_type,
			size = excluded.size,
			parent_id = excluded.parent_id,
			modified_time = excluded.modified_time,
			created_time = excluded.created_time,
			md5_checksum = excluded.md5_checksum,
			synced_at = excluded.synced_at,
			raw_metadata = excluded.raw_metadata
	`, fd.ID, fd.Name, fd.MimeType, fd.Size, fd.ParentID, fd.ModifiedTime, fd.CreatedTime, fd.MD5Checksum, fd.RawMetadata)
	if err != nil {
		return fmt.Errorf("upsert file descriptor: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*domain.FileDescriptor, error) {
	var fd domain.FileDescriptor
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, mime_type, size, parent_id, modified_time, created_time, md5_checksum, synced_at, raw_metadata
		FROM files WHERE id = $1
	`, id).Scan(&fd.ID, &fd.Name, &fd.MimeType, &fd.Size, &fd.ParentID, &fd.ModifiedTime, &fd.CreatedTime, &fd.MD5Checksum, &fd.SyncedAt, &fd.RawMetadata)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrFileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get file descriptor: %w", err)
	}
	return &fd, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM files WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete file descriptor: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrFileNotFound
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*domain.FileDescriptor, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, mime_type, size, parent_id, modified_time, created_time, md5_checksum, synced_at, raw_metadata
		FROM files
	`)
	if err != nil {
		return nil, fmt.Errorf("list file descriptors: %w", err)
	}
	defer rows.Close()

	var out []*domain.FileDescriptor
	for rows.Next() {
		var fd domain.FileDescriptor
		if err := rows.Scan(&fd.ID, &fd.Name, &fd.MimeType, &fd.Size, &fd.ParentID, &fd.ModifiedTime, &fd.CreatedTime, &fd.MD5Checksum, &fd.SyncedAt, &fd.RawMetadata); err != nil {
			return nil, fmt.Errorf("scan file descriptor: %w", err)
		}
		out = append(out, &fd)
	}
	return out, rows.Err()
}
