// Package sqlite — слой доступа к данным движка поверх SQLite
// (драйвер modernc.org/sqlite, без CGO).
package sqlite

import (
	"MindVault/internal/storage"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// DB — пул соединений к файлу БД плюс примитивы запросов/транзакций.
// Соединение ленивое: database/sql откроет его при первом запросе.
type DB struct {
	sql    *sql.DB
	path   string
	logger *zap.SugaredLogger
}

// Stats — агрегированная статистика хранилища.
type Stats struct {
	Documents       int64      `json:"documents"`
	Blocks          int64      `json:"blocks"`
	Versions        int64      `json:"versions"`
	SizeBytes       int64      `json:"size_bytes"`
	LastDocumentUpd *time.Time `json:"last_document_updated_at,omitempty"`
}

// Open открывает (и при необходимости создаёт) файл БД по указанному пути.
func Open(path string, logger *zap.SugaredLogger) (*DB, error) {
	if path == "" {
		return nil, &storage.ValidationError{Field: "path", Reason: "database path is required"}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, &storage.DatabaseError{Op: "open", Err: err}
	}
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, &storage.DatabaseError{Op: "open", Err: err}
	}
	// SQLite пишет из одного соединения; пул шире одного даёт SQLITE_BUSY
	db.SetMaxOpenConns(1)
	return &DB{sql: db, path: path, logger: logger}, nil
}

// Path возвращает путь к файлу БД (нужен менеджеру бэкапов).
func (d *DB) Path() string { return d.path }

// Close закрывает пул соединений.
func (d *DB) Close() error {
	if d == nil || d.sql == nil {
		return nil
	}
	return d.sql.Close()
}

// Migrate гарантирует наличие таблиц и индексов. Безопасно звать на каждом старте.
func (d *DB) Migrate() error {
	if _, err := d.sql.Exec(initialDDL()); err != nil {
		return &storage.DatabaseError{Op: "migrate", Err: err}
	}
	return nil
}

// HealthCheck выполняет тривиальный запрос. Никогда не возвращает ошибку —
// только признак живости.
func (d *DB) HealthCheck(ctx context.Context) bool {
	var one int
	if err := d.sql.QueryRowContext(ctx, `SELECT 1`).Scan(&one); err != nil {
		if d.logger != nil {
			d.logger.Warnw("health check failed", "error", err)
		}
		return false
	}
	return one == 1
}

// Stats собирает количество строк по таблицам, размер файла БД
// и время последнего обновления документа.
func (d *DB) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{}
	counts := []struct {
		query string
		dst   *int64
	}{
		{`SELECT COUNT(*) FROM documents`, &st.Documents},
		{`SELECT COUNT(*) FROM blocks`, &st.Blocks},
		{`SELECT COUNT(*) FROM versions`, &st.Versions},
	}
	for _, c := range counts {
		if err := d.sql.QueryRowContext(ctx, c.query).Scan(c.dst); err != nil {
			return nil, &storage.DatabaseError{Op: "stats", Err: err}
		}
	}
	var last sql.NullInt64
	err := d.sql.QueryRowContext(ctx, `SELECT MAX(updated_at) FROM documents`).Scan(&last)
	if err != nil {
		return nil, &storage.DatabaseError{Op: "stats", Err: err}
	}
	if last.Valid {
		t := time.UnixMilli(last.Int64).UTC()
		st.LastDocumentUpd = &t
	}
	if fi, err := os.Stat(d.path); err == nil {
		st.SizeBytes = fi.Size()
	}
	return st, nil
}

// QueryContext — параметризованный SELECT.
func (d *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	rows, err := d.sql.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &storage.DatabaseError{Op: "query", Err: err}
	}
	return rows, nil
}

// QueryRowContext — параметризованный SELECT одной строки.
func (d *DB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return d.sql.QueryRowContext(ctx, query, args...)
}

// ExecContext — параметризованный INSERT/UPDATE/DELETE вне транзакции.
func (d *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	res, err := d.sql.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, &storage.DatabaseError{Op: "exec", Err: err}
	}
	return res, nil
}

// Checkpoint сбрасывает WAL в основной файл перед копированием БД.
func (d *DB) Checkpoint(ctx context.Context) error {
	if _, err := d.sql.ExecContext(ctx, `PRAGMA wal_checkpoint(TRUNCATE)`); err != nil {
		return &storage.DatabaseError{Op: "checkpoint", Err: err}
	}
	return nil
}

// IsNoRows сообщает, что ошибка — «строка не найдена».
func IsNoRows(err error) bool { return errors.Is(err, sql.ErrNoRows) }

// Retry выполняет fn с экспоненциальной задержкой между попытками.
// Хелпер опциональный: CRUD-операции сами его не применяют.
func Retry(ctx context.Context, attempts int, base time.Duration, fn func() error) error {
	if attempts < 1 {
		return &storage.ValidationError{Field: "attempts", Reason: "must be at least 1"}
	}
	var err error
	delay := base
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2
	}
	return fmt.Errorf("after %d attempts: %w", attempts, err)
}
