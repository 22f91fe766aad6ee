// Package postgres implements the resource Store against the CRUD layer's
// image_resources table. Schema and migrations are owned elsewhere; this
// package only issues queries.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Harryguci/Car-Resource-Crawler/internal/crawler"
)

// DB is the subset of pgxpool.Pool the store needs. pgxmock satisfies it
// in tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Store persists image resources in PostgreSQL.
type Store struct {
	db DB
}

// New constructs a Store.
func New(db DB) *Store {
	return &Store{db: db}
}

const insertResourceSQL = `
INSERT INTO image_resources (
	id, url, filename, file_path, file_size, width, height, format,
	source, search_query, tags, description, photographer, photographer_url,
	download_status, error_message, created_at, updated_at
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18
)`

const insertResourceIgnoreDupSQL = insertResourceSQL + ` ON CONFLICT (url) DO NOTHING`

// CreateResource inserts one resource. A unique-URL violation maps to
// crawler.ErrDuplicateURL.
func (s *Store) CreateResource(ctx context.Context, res crawler.ImageResource) error {
	args, err := resourceArgs(res)
	if err != nil {
		return err
	}
	if _, err := s.db.Exec(ctx, insertResourceSQL, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return crawler.ErrDuplicateURL
		}
		return fmt.Errorf("insert resource: %w", err)
	}
	return nil
}

// UpdateResourceStatus writes status, error text, timestamp, and optional
// file metadata in a single UPDATE.
func (s *Store) UpdateResourceStatus(ctx context.Context, id string, status crawler.DownloadStatus, errText string, file *crawler.FileInfo, at time.Time) error {
	var tag pgconn.CommandTag
	var err error
	if file != nil {
		tag, err = s.db.Exec(ctx, `
UPDATE image_resources
SET download_status = $2, error_message = NULLIF($3, ''),
    file_path = $4, file_size = $5, width = $6, height = $7, format = $8,
    updated_at = $9
WHERE id = $1`,
			id, string(status), errText,
			file.FilePath, file.FileSize, file.Width, file.Height, file.Format, at)
	} else {
		tag, err = s.db.Exec(ctx, `
UPDATE image_resources
SET download_status = $2, error_message = NULLIF($3, ''), updated_at = $4
WHERE id = $1`,
			id, string(status), errText, at)
	}
	if err != nil {
		return fmt.Errorf("update resource status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return crawler.ErrNotFound
	}
	return nil
}

// ExistsByURL reports whether a resource with the exact URL exists.
func (s *Store) ExistsByURL(ctx context.Context, url string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM image_resources WHERE url = $1)`, url,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query url existence: %w", err)
	}
	return exists, nil
}

// GetResource fetches a resource by ID.
func (s *Store) GetResource(ctx context.Context, id string) (crawler.ImageResource, error) {
	var (
		res      crawler.ImageResource
		tagsJSON string
	)
	err := s.db.QueryRow(ctx, `
SELECT id, url,
       COALESCE(filename, ''), COALESCE(file_path, ''), COALESCE(file_size, 0),
       COALESCE(width, 0), COALESCE(height, 0), COALESCE(format, ''),
       COALESCE(source, ''), COALESCE(search_query, ''), COALESCE(tags, '[]'),
       COALESCE(description, ''), COALESCE(photographer, ''),
       COALESCE(photographer_url, ''), download_status,
       COALESCE(error_message, ''), created_at, updated_at
FROM image_resources
WHERE id = $1`, id).Scan(
		&res.ID, &res.URL,
		&res.Filename, &res.FilePath, &res.FileSize,
		&res.Width, &res.Height, &res.Format,
		&res.Source, &res.SearchQuery, &tagsJSON,
		&res.Description, &res.Photographer,
		&res.PhotographerURL, &res.DownloadStatus,
		&res.ErrorMessage, &res.CreatedAt, &res.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return crawler.ImageResource{}, crawler.ErrNotFound
		}
		return crawler.ImageResource{}, fmt.Errorf("query resource: %w", err)
	}
	if tagsJSON != "" && tagsJSON != "[]" {
		if err := json.Unmarshal([]byte(tagsJSON), &res.Tags); err != nil {
			return crawler.ImageResource{}, fmt.Errorf("decode tags: %w", err)
		}
	}
	return res, nil
}

// BulkCreateResources inserts resources in one batch, skipping entries
// whose URL is already present.
func (s *Store) BulkCreateResources(ctx context.Context, list []crawler.ImageResource) error {
	if len(list) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, res := range list {
		args, err := resourceArgs(res)
		if err != nil {
			return err
		}
		batch.Queue(insertResourceIgnoreDupSQL, args...)
	}
	results := s.db.SendBatch(ctx, batch)
	defer func() { _ = results.Close() }()
	for range list {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("bulk insert resources: %w", err)
		}
	}
	return nil
}

func resourceArgs(res crawler.ImageResource) ([]any, error) {
	tagsJSON := "[]"
	if len(res.Tags) > 0 {
		data, err := json.Marshal(res.Tags)
		if err != nil {
			return nil, fmt.Errorf("encode tags: %w", err)
		}
		tagsJSON = string(data)
	}
	return []any{
		res.ID, res.URL, res.Filename, res.FilePath, res.FileSize,
		res.Width, res.Height, res.Format, res.Source, res.SearchQuery,
		tagsJSON, res.Description, res.Photographer, res.PhotographerURL,
		string(res.DownloadStatus), res.ErrorMessage, res.CreatedAt, res.UpdatedAt,
	}, nil
}
