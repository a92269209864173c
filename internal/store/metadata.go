package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // pure-Go SQLite driver, no CGO
)

// schemaVersion is the current metadata schema version. Migrations are
// forward-only.
const schemaVersion = 1

const schemaDDL = `
CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL);

CREATE TABLE IF NOT EXISTS files (
	file_id         TEXT PRIMARY KEY,
	path            TEXT NOT NULL UNIQUE,
	language        TEXT NOT NULL,
	content_hash    TEXT NOT NULL,
	size            INTEGER NOT NULL,
	mtime           INTEGER NOT NULL,
	partition_id    TEXT NOT NULL,
	authority_score REAL NOT NULL,
	embedding_text  TEXT NOT NULL,
	status          TEXT NOT NULL,
	embedding_model TEXT NOT NULL DEFAULT '',
	indexed_at      INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_files_status ON files(status);
CREATE INDEX IF NOT EXISTS idx_files_partition ON files(partition_id);

CREATE TABLE IF NOT EXISTS symbols (
	symbol_id        TEXT PRIMARY KEY,
	file_id          TEXT NOT NULL,
	name             TEXT NOT NULL,
	kind             TEXT NOT NULL,
	line             INTEGER NOT NULL,
	column           INTEGER NOT NULL,
	is_exported      INTEGER NOT NULL,
	parent_symbol_id TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_symbols_file ON symbols(file_id);
CREATE INDEX IF NOT EXISTS idx_symbols_name ON symbols(name);

CREATE TABLE IF NOT EXISTS import_edges (
	file_id       TEXT NOT NULL,
	module_path   TEXT NOT NULL,
	imported_name TEXT NOT NULL DEFAULT '',
	is_default    INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_imports_file ON import_edges(file_id);

CREATE TABLE IF NOT EXISTS checkpoint (
	id             INTEGER PRIMARY KEY CHECK (id = 1),
	stage          TEXT NOT NULL,
	total          INTEGER NOT NULL,
	embedded_count INTEGER NOT NULL,
	timestamp      INTEGER NOT NULL,
	embedder_model TEXT NOT NULL
);
`

// SQLiteStore implements MetadataStore over modernc.org/sqlite in WAL mode.
type SQLiteStore struct {
	mu   sync.RWMutex
	db   *sql.DB
	path string
}

var _ MetadataStore = (*SQLiteStore)(nil)

// validateSQLiteIntegrity checks an on-disk database for corruption before
// opening it for writes.
func validateSQLiteIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("cannot open for validation: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database corrupted: %s", result)
	}
	return nil
}

// NewSQLiteStore opens (creating if absent) a metadata store at path. An
// empty path opens an in-memory database for tests.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	var dsn string
	if path == "" {
		dsn = ":memory:"
	} else {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create directory %s: %w", dir, err)
		}

		if validErr := validateSQLiteIntegrity(path); validErr != nil {
			slog.Warn("metadata_store_corrupted",
				slog.String("path", path),
				slog.String("error", validErr.Error()))
			if removeErr := os.Remove(path); removeErr != nil && !os.IsNotExist(removeErr) {
				return nil, fmt.Errorf("metadata store corrupted at %s and cannot remove: %w (original error: %v)", path, removeErr, validErr)
			}
			_ = os.Remove(path + "-wal")
			_ = os.Remove(path + "-shm")
			slog.Info("metadata_store_cleared", slog.String("path", path))
		}

		dsn = path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -65536",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA foreign_keys = OFF",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma %q: %w", p, err)
		}
	}

	if _, err := db.Exec(schemaDDL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM schema_version").Scan(&count); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("read schema version: %w", err)
	}
	if count == 0 {
		if _, err := db.Exec("INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("write schema version: %w", err)
		}
	}

	return &SQLiteStore{db: db, path: path}, nil
}

// UpsertFile replaces a file row and all of its symbols/imports within a
// single transaction.
func (s *SQLiteStore) UpsertFile(ctx context.Context, file *File, symbols []*Symbol, imports []*ImportEdge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO files (file_id, path, language, content_hash, size, mtime, partition_id,
			authority_score, embedding_text, status, embedding_model, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(file_id) DO UPDATE SET
			path=excluded.path, language=excluded.language, content_hash=excluded.content_hash,
			size=excluded.size, mtime=excluded.mtime, partition_id=excluded.partition_id,
			authority_score=excluded.authority_score, embedding_text=excluded.embedding_text,
			status=excluded.status, embedding_model=excluded.embedding_model,
			indexed_at=excluded.indexed_at`,
		file.FileID, file.Path, file.Language, file.ContentHash, file.Size, file.MTime.Unix(),
		file.PartitionID, file.AuthorityScore, file.EmbeddingText, string(file.Status),
		file.EmbeddingModel, file.IndexedAt.Unix())
	if err != nil {
		return fmt.Errorf("upsert file: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM symbols WHERE file_id = ?", file.FileID); err != nil {
		return fmt.Errorf("clear symbols: %w", err)
	}
	for _, sym := range symbols {
		isExported := 0
		if sym.IsExported {
			isExported = 1
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO symbols (symbol_id, file_id, name, kind, line, column, is_exported, parent_symbol_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			sym.SymbolID, sym.FileID, sym.Name, string(sym.Kind), sym.Line, sym.Column,
			isExported, sym.ParentSymbolID)
		if err != nil {
			return fmt.Errorf("insert symbol %q: %w", sym.Name, err)
		}
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM import_edges WHERE file_id = ?", file.FileID); err != nil {
		return fmt.Errorf("clear imports: %w", err)
	}
	for _, imp := range imports {
		isDefault := 0
		if imp.IsDefault {
			isDefault = 1
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO import_edges (file_id, module_path, imported_name, is_default)
			VALUES (?, ?, ?, ?)`,
			imp.FileID, imp.ModulePath, imp.ImportedName, isDefault)
		if err != nil {
			return fmt.Errorf("insert import %q: %w", imp.ModulePath, err)
		}
	}

	return tx.Commit()
}

func scanFile(row interface {
	Scan(dest ...any) error
}) (*File, error) {
	var f File
	var status string
	var mtime, indexedAt int64
	err := row.Scan(&f.FileID, &f.Path, &f.Language, &f.ContentHash, &f.Size, &mtime,
		&f.PartitionID, &f.AuthorityScore, &f.EmbeddingText, &status, &f.EmbeddingModel, &indexedAt)
	if err != nil {
		return nil, err
	}
	f.Status = EmbeddingStatus(status)
	f.MTime = time.Unix(mtime, 0).UTC()
	f.IndexedAt = time.Unix(indexedAt, 0).UTC()
	return &f, nil
}

const fileColumns = `file_id, path, language, content_hash, size, mtime, partition_id,
	authority_score, embedding_text, status, embedding_model, indexed_at`

// GetFile retrieves a file record by id.
func (s *SQLiteStore) GetFile(ctx context.Context, fileID string) (*File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, "SELECT "+fileColumns+" FROM files WHERE file_id = ?", fileID)
	f, err := scanFile(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("file %q not found", fileID)
	}
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}
	return f, nil
}

// GetFileByPath retrieves a file record by its canonical path.
func (s *SQLiteStore) GetFileByPath(ctx context.Context, path string) (*File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, "SELECT "+fileColumns+" FROM files WHERE path = ?", path)
	f, err := scanFile(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get file by path: %w", err)
	}
	return f, nil
}

// ListPending returns files awaiting embedding, oldest first.
func (s *SQLiteStore) ListPending(ctx context.Context, limit int) ([]*File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+fileColumns+" FROM files WHERE status = ? ORDER BY indexed_at ASC LIMIT ?",
		string(EmbeddingStatusPending), limit)
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}
	defer rows.Close()

	var files []*File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pending file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// ListByPartition returns all files assigned to a partition.
func (s *SQLiteStore) ListByPartition(ctx context.Context, partitionID string) ([]*File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT "+fileColumns+" FROM files WHERE partition_id = ?", partitionID)
	if err != nil {
		return nil, fmt.Errorf("list by partition: %w", err)
	}
	defer rows.Close()

	var files []*File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan partition file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// ListAllPaths returns every tracked file keyed by path, for change detection.
func (s *SQLiteStore) ListAllPaths(ctx context.Context) (map[string]*File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT "+fileColumns+" FROM files")
	if err != nil {
		return nil, fmt.Errorf("list all paths: %w", err)
	}
	defer rows.Close()

	out := make(map[string]*File)
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		out[f.Path] = f
	}
	return out, rows.Err()
}

// MarkEmbedded transitions a file to embedded.
func (s *SQLiteStore) MarkEmbedded(ctx context.Context, fileID, embeddingModel string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"UPDATE files SET status = ?, embedding_model = ? WHERE file_id = ?",
		string(EmbeddingStatusEmbedded), embeddingModel, fileID)
	if err != nil {
		return fmt.Errorf("mark embedded: %w", err)
	}
	return nil
}

// MarkFailed transitions a file to failed, retried on the next run.
func (s *SQLiteStore) MarkFailed(ctx context.Context, fileID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "UPDATE files SET status = ? WHERE file_id = ?",
		string(EmbeddingStatusFailed), fileID)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return nil
}

// DeleteFile cascades to symbols and imports.
func (s *SQLiteStore) DeleteFile(ctx context.Context, fileID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM symbols WHERE file_id = ?", fileID); err != nil {
		return fmt.Errorf("delete symbols: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM import_edges WHERE file_id = ?", fileID); err != nil {
		return fmt.Errorf("delete imports: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM files WHERE file_id = ?", fileID); err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	return tx.Commit()
}

// GetSymbols returns all symbols belonging to a file.
func (s *SQLiteStore) GetSymbols(ctx context.Context, fileID string) ([]*Symbol, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT symbol_id, file_id, name, kind, line, column, is_exported, parent_symbol_id FROM symbols WHERE file_id = ?",
		fileID)
	if err != nil {
		return nil, fmt.Errorf("get symbols: %w", err)
	}
	defer rows.Close()
	return scanSymbols(rows)
}

// SearchSymbols looks up symbols by exact or prefix name match.
func (s *SQLiteStore) SearchSymbols(ctx context.Context, name string, limit int) ([]*Symbol, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT symbol_id, file_id, name, kind, line, column, is_exported, parent_symbol_id FROM symbols WHERE name LIKE ? LIMIT ?",
		name+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("search symbols: %w", err)
	}
	defer rows.Close()
	return scanSymbols(rows)
}

func scanSymbols(rows *sql.Rows) ([]*Symbol, error) {
	var symbols []*Symbol
	for rows.Next() {
		var sym Symbol
		var kind string
		var isExported int
		if err := rows.Scan(&sym.SymbolID, &sym.FileID, &sym.Name, &kind, &sym.Line, &sym.Column,
			&isExported, &sym.ParentSymbolID); err != nil {
			return nil, fmt.Errorf("scan symbol: %w", err)
		}
		sym.Kind = SymbolKind(kind)
		sym.IsExported = isExported != 0
		symbols = append(symbols, &sym)
	}
	return symbols, rows.Err()
}

// Stats returns per-status file counts.
func (s *SQLiteStore) Stats(ctx context.Context) (map[EmbeddingStatus]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT status, COUNT(*) FROM files GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	defer rows.Close()

	out := map[EmbeddingStatus]int{
		EmbeddingStatusPending:  0,
		EmbeddingStatusEmbedded: 0,
		EmbeddingStatusFailed:   0,
	}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}
		out[EmbeddingStatus(status)] = count
	}
	return out, rows.Err()
}

// SaveCheckpoint persists resumable indexing progress.
func (s *SQLiteStore) SaveCheckpoint(ctx context.Context, cp *IndexCheckpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO checkpoint (id, stage, total, embedded_count, timestamp, embedder_model)
		VALUES (1, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			stage=excluded.stage, total=excluded.total, embedded_count=excluded.embedded_count,
			timestamp=excluded.timestamp, embedder_model=excluded.embedder_model`,
		cp.Stage, cp.Total, cp.EmbeddedCount, cp.Timestamp.Unix(), cp.EmbedderModel)
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// LoadCheckpoint reads the saved indexing checkpoint, if any.
func (s *SQLiteStore) LoadCheckpoint(ctx context.Context) (*IndexCheckpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var cp IndexCheckpoint
	var ts int64
	err := s.db.QueryRowContext(ctx,
		"SELECT stage, total, embedded_count, timestamp, embedder_model FROM checkpoint WHERE id = 1").
		Scan(&cp.Stage, &cp.Total, &cp.EmbeddedCount, &ts, &cp.EmbedderModel)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	cp.Timestamp = time.Unix(ts, 0).UTC()
	return &cp, nil
}

// ClearCheckpoint deletes the saved checkpoint after a completed run.
func (s *SQLiteStore) ClearCheckpoint(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, "DELETE FROM checkpoint WHERE id = 1"); err != nil {
		return fmt.Errorf("clear checkpoint: %w", err)
	}
	return nil
}

// Truncate empties every table for force_clean recovery.
func (s *SQLiteStore) Truncate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"symbols", "import_edges", "files", "checkpoint"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("truncate %s: %w", table, err)
		}
	}
	return tx.Commit()
}

// ValidateIntegrity runs SQLite's built-in integrity check.
func (s *SQLiteStore) ValidateIntegrity(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result string
	if err := s.db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("metadata store corrupted: %s", result)
	}
	return nil
}

// Close checkpoints the WAL and closes the database.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path != "" {
		_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	}
	return s.db.Close()
}
