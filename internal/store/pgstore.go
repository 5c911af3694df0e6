package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Compile-time assertion: *PGStore satisfies Store.
var _ Store = (*PGStore)(nil)

// PostgreSQL error codes the store maps onto sentinels.
const (
	pgForeignKeyViolation = "23503"
	pgUniqueViolation     = "23505"
)

// schemaStatements are executed in order by Migrate.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS source_files (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		file_name  TEXT NOT NULL,
		owner_id   TEXT NOT NULL,
		content    TEXT NOT NULL,
		parsed_map JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS source_files_owner_idx ON source_files (owner_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS annotations (
		id            TEXT PRIMARY KEY,
		file_id       TEXT NOT NULL REFERENCES source_files (id) ON DELETE CASCADE,
		owner_id      TEXT NOT NULL,
		function_name TEXT NOT NULL,
		text          TEXT NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS annotations_file_idx ON annotations (file_id, created_at)`,
}

// PGStore implements Store on PostgreSQL through the pgx database/sql driver.
type PGStore struct {
	db *sql.DB
}

// NewPGStore opens and pings a PostgreSQL connection pool.
func NewPGStore(ctx context.Context, dsn string) (*PGStore, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, fmt.Errorf("store: open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: ping postgres: %w", err)
	}
	return &PGStore{db: db}, nil
}

// Migrate creates the tables and indexes if they do not exist.
func (s *PGStore) Migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store: migrate: %w", err)
		}
	}
	return nil
}

// CreateFile inserts a source file row.
func (s *PGStore) CreateFile(ctx context.Context, f *SourceFile) error {
	stampFile(f)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO source_files (id, name, file_name, owner_id, content, parsed_map, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		f.ID, f.Name, f.FileName, f.OwnerID, f.Content, string(f.ParsedMap), f.CreatedAt,
	)
	if err != nil {
		return mapPGError(fmt.Sprintf("file %q", f.ID), err)
	}
	return nil
}

// GetFile loads one source file.
func (s *PGStore) GetFile(ctx context.Context, id string) (*SourceFile, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, file_name, owner_id, content, parsed_map, created_at
		 FROM source_files WHERE id = $1`, id)
	f, err := scanFile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("file %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get file: %w", err)
	}
	return f, nil
}

// ListFiles returns an owner's files, oldest first.
func (s *PGStore) ListFiles(ctx context.Context, ownerID string) ([]SourceFile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, file_name, owner_id, content, parsed_map, created_at
		 FROM source_files WHERE owner_id = $1 ORDER BY created_at, id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("store: list files: %w", err)
	}
	defer rows.Close()

	out := []SourceFile{}
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("store: list files: %w", err)
		}
		out = append(out, *f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list files: %w", err)
	}
	return out, nil
}

// DeleteFile removes a file; annotations go with it through ON DELETE CASCADE.
func (s *PGStore) DeleteFile(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM source_files WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("store: delete file: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: delete file: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("file %q: %w", id, ErrNotFound)
	}
	return nil
}

// AddAnnotation inserts an annotation row.
func (s *PGStore) AddAnnotation(ctx context.Context, a *Annotation) error {
	stampAnnotation(a)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO annotations (id, file_id, owner_id, function_name, text, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ID, a.FileID, a.OwnerID, a.FunctionName, a.Text, a.CreatedAt,
	)
	if err != nil {
		return mapPGError(fmt.Sprintf("annotation %q for file %q", a.ID, a.FileID), err)
	}
	return nil
}

// GetAnnotation loads one annotation.
func (s *PGStore) GetAnnotation(ctx context.Context, id string) (*Annotation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, file_id, owner_id, function_name, text, created_at
		 FROM annotations WHERE id = $1`, id)
	a, err := scanAnnotation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("annotation %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get annotation: %w", err)
	}
	return a, nil
}

// ListAnnotations returns a file's annotations, oldest first.
func (s *PGStore) ListAnnotations(ctx context.Context, fileID string) ([]Annotation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, file_id, owner_id, function_name, text, created_at
		 FROM annotations WHERE file_id = $1 ORDER BY created_at, id`, fileID)
	if err != nil {
		return nil, fmt.Errorf("store: list annotations: %w", err)
	}
	defer rows.Close()

	out := []Annotation{}
	for rows.Next() {
		a, err := scanAnnotation(rows)
		if err != nil {
			return nil, fmt.Errorf("store: list annotations: %w", err)
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list annotations: %w", err)
	}
	return out, nil
}

// Close closes the connection pool.
func (s *PGStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFile(r scanner) (*SourceFile, error) {
	var f SourceFile
	var parsed []byte
	if err := r.Scan(&f.ID, &f.Name, &f.FileName, &f.OwnerID, &f.Content, &parsed, &f.CreatedAt); err != nil {
		return nil, err
	}
	f.ParsedMap = parsed
	f.CreatedAt = f.CreatedAt.UTC()
	return &f, nil
}

func scanAnnotation(r scanner) (*Annotation, error) {
	var a Annotation
	if err := r.Scan(&a.ID, &a.FileID, &a.OwnerID, &a.FunctionName, &a.Text, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.CreatedAt = a.CreatedAt.UTC()
	return &a, nil
}

// mapPGError turns constraint violations into the package sentinels.
func mapPGError(what string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgForeignKeyViolation:
			return fmt.Errorf("%s: %w", what, ErrNotFound)
		case pgUniqueViolation:
			return fmt.Errorf("%s: %w", what, ErrExists)
		}
	}
	return fmt.Errorf("store: %s: %w", what, err)
}
