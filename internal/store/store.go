// # internal/store/store.go

// Package store persists scan results to SQLite so other tooling can
// query structure without rescanning. Each SaveScan is one batch with a
// generated id; a module's previous rows are replaced.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"clbr/internal/entity"
	"clbr/internal/observability"
)

const sqliteDriverName = "sqlite"

type Store struct {
	db *sql.DB
}

// Record is one flattened entity row.
type Record struct {
	Batch      string
	Module     string
	Dialect    string
	File       string
	Name       string
	Parent     string // dotted path of enclosing scopes, empty at top level
	Kind       string
	StartLine  int
	EndLine    int
	Visibility string
	Signature  string
}

func Open(path string) (*Store, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, fmt.Errorf("store path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, fmt.Errorf("store path %q is a directory, expected file", cleanPath)
	}
	dir := filepath.Dir(cleanPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store directory %q: %w", dir, err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", cleanPath)
	db, err := sql.Open(sqliteDriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open store %q: %w", cleanPath, err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping store %q: %w", cleanPath, err)
	}
	if err := migrateSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SaveScan replaces the module's rows with the given structure map and
// returns the new batch id.
func (s *Store) SaveScan(ctx context.Context, module, dialectName, file string, dict entity.Map) (string, error) {
	start := time.Now()
	batch := uuid.New().String()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin scan batch: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM symbols WHERE module = ?`, module); err != nil {
		return "", fmt.Errorf("clear module rows: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO scans (batch, module, dialect, file_path, created_at) VALUES (?, ?, ?, ?, ?)`,
		batch, module, dialectName, file, start.UTC().Format(time.RFC3339Nano)); err != nil {
		return "", fmt.Errorf("insert scan row: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO symbols
  (batch, module, name, parent, kind, file_path, start_line, end_line, visibility, signature)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("prepare symbol insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range Flatten(batch, module, dialectName, file, dict) {
		if _, err := stmt.ExecContext(ctx,
			rec.Batch, rec.Module, rec.Name, rec.Parent, rec.Kind,
			rec.File, rec.StartLine, rec.EndLine, rec.Visibility, rec.Signature); err != nil {
			return "", fmt.Errorf("insert symbol %q: %w", rec.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit scan batch: %w", err)
	}

	observability.StoreWritesTotal.Inc()
	observability.StoreWriteDuration.Observe(time.Since(start).Seconds())
	return batch, nil
}

// Module returns the persisted rows for one module, ordered by start
// line.
func (s *Store) Module(ctx context.Context, module string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT
  batch, module, name, parent, kind, file_path, start_line, end_line, visibility, signature
FROM symbols
WHERE module = ?
ORDER BY start_line, name`, module)
	if err != nil {
		return nil, fmt.Errorf("query module rows: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.Batch, &r.Module, &r.Name, &r.Parent, &r.Kind,
			&r.File, &r.StartLine, &r.EndLine, &r.Visibility, &r.Signature); err != nil {
			return nil, fmt.Errorf("scan module row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// DeleteFile removes every row backed by the given source file.
func (s *Store) DeleteFile(ctx context.Context, file string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM symbols WHERE file_path = ?`, file)
	if err != nil {
		return fmt.Errorf("delete file rows: %w", err)
	}
	return nil
}

// Flatten turns a structure map into rows, one per entity, with nested
// scopes recorded through the dotted Parent path.
func Flatten(batch, module, dialectName, file string, dict entity.Map) []Record {
	base := Record{Batch: batch, Module: module, Dialect: dialectName, File: file}
	var out []Record
	for name, ent := range dict {
		out = appendEntity(out, base, "", name, ent)
	}
	return out
}

func appendEntity(out []Record, base Record, parent, name string, ent entity.Entity) []Record {
	rec := base
	rec.Name = name
	rec.Parent = parent
	rec.StartLine = ent.StartLine()
	rec.EndLine = ent.EndLine()
	rec.Visibility = ent.Vis().String()

	childParent := name
	if parent != "" {
		childParent = parent + "." + name
	}

	switch e := ent.(type) {
	case *entity.Class:
		switch e.Kind {
		case entity.Interface:
			rec.Kind = "interface"
		case entity.Namespace:
			rec.Kind = "namespace"
		default:
			rec.Kind = "class"
		}
		var supers []string
		for _, s := range e.Supers {
			supers = append(supers, s.Name)
		}
		rec.Signature = strings.Join(supers, ", ")
		out = append(out, rec)
		out = appendChildren(out, base, childParent, e.Methods, e.Attributes, e.Classes, e.Globals)
	case *entity.Function:
		rec.Kind = "function"
		rec.Signature = strings.Join(e.Parameters, ", ")
		out = append(out, rec)
		out = appendChildren(out, base, childParent, e.Methods, e.Attributes, e.Classes, e.Globals)
	case *entity.Attribute:
		rec.Kind = "attribute"
		out = append(out, rec)
	case *entity.Container:
		rec.Kind = "globals"
		out = append(out, rec)
		out = appendChildren(out, base, childParent, e.Methods, e.Attributes, e.Classes, e.Globals)
	case *entity.Imports:
		rec.Kind = "imports"
		names := make([]string, 0, len(e.Imported))
		for name := range e.Imported {
			names = append(names, name)
		}
		sort.Strings(names)
		rec.Signature = strings.Join(names, ", ")
		out = append(out, rec)
	case *entity.Publics:
		rec.Kind = "publics"
		rec.Signature = strings.Join(e.Identifiers, ", ")
		out = append(out, rec)
	case *entity.Coding:
		rec.Kind = "coding"
		rec.Signature = e.Coding
		out = append(out, rec)
	default:
		rec.Kind = "entity"
		out = append(out, rec)
	}
	return out
}

func appendChildren(out []Record, base Record, parent string,
	methods map[string]*entity.Function, attributes map[string]*entity.Attribute,
	classes map[string]*entity.Class, globals map[string]*entity.Attribute) []Record {
	for name, m := range methods {
		out = appendEntity(out, base, parent, name, m)
	}
	for name, a := range attributes {
		out = appendEntity(out, base, parent, name, a)
	}
	for name, c := range classes {
		out = appendEntity(out, base, parent, name, c)
	}
	for name, g := range globals {
		out = appendEntity(out, base, parent, name, g)
	}
	return out
}

func migrateSchema(db *sql.DB) error {
	var version int
	_ = db.QueryRow(`PRAGMA user_version`).Scan(&version)

	if version == 0 {
		_, err := db.Exec(`
CREATE TABLE scans (
  batch TEXT NOT NULL PRIMARY KEY,
  module TEXT NOT NULL,
  dialect TEXT NOT NULL,
  file_path TEXT NOT NULL,
  created_at TEXT NOT NULL
);
CREATE TABLE symbols (
  batch TEXT NOT NULL,
  module TEXT NOT NULL,
  name TEXT NOT NULL,
  parent TEXT NOT NULL DEFAULT '',
  kind TEXT NOT NULL,
  file_path TEXT NOT NULL,
  start_line INTEGER NOT NULL DEFAULT 0,
  end_line INTEGER NOT NULL DEFAULT 0,
  visibility TEXT NOT NULL DEFAULT '',
  signature TEXT NOT NULL DEFAULT ''
);
CREATE INDEX idx_symbols_module ON symbols(module);
CREATE INDEX idx_symbols_file ON symbols(file_path);
CREATE INDEX idx_symbols_name ON symbols(name);

PRAGMA user_version = 1;
`)
		if err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}
