package sqlite

import (
	"MindVault/internal/storage"
	"context"
	"database/sql"
)

// Transaction — одноразовая обёртка над *sql.Tx.
// Повторный Commit/Rollback возвращает TransactionError.
type Transaction struct {
	tx        *sql.Tx
	completed bool
}

// Begin открывает транзакцию. Каждая многошаговая мутация сервисов
// (move, import) обязана выполняться внутри неё.
func (d *DB) Begin(ctx context.Context) (*Transaction, error) {
	tx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return nil, &storage.DatabaseError{Op: "begin", Err: err}
	}
	return &Transaction{tx: tx}, nil
}

// Completed сообщает, завершена ли транзакция (commit или rollback).
func (t *Transaction) Completed() bool { return t.completed }

// Commit фиксирует транзакцию. Повторный вызов — ошибка контракта.
func (t *Transaction) Commit() error {
	if t.completed {
		return &storage.TransactionError{Reason: "already completed"}
	}
	t.completed = true
	if err := t.tx.Commit(); err != nil {
		return &storage.DatabaseError{Op: "commit", Err: err}
	}
	return nil
}

// Rollback откатывает транзакцию. После завершения — no-op,
// чтобы defer tx.Rollback() был безопасен.
func (t *Transaction) Rollback() error {
	if t.completed {
		return nil
	}
	t.completed = true
	if err := t.tx.Rollback(); err != nil {
		return &storage.DatabaseError{Op: "rollback", Err: err}
	}
	return nil
}

// QueryContext — SELECT внутри транзакции.
func (t *Transaction) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &storage.DatabaseError{Op: "tx query", Err: err}
	}
	return rows, nil
}

// QueryRowContext — SELECT одной строки внутри транзакции.
func (t *Transaction) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return t.tx.QueryRowContext(ctx, query, args...)
}

// ExecContext — мутация внутри транзакции.
func (t *Transaction) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, &storage.DatabaseError{Op: "tx exec", Err: err}
	}
	return res, nil
}

// WithTx выполняет fn в транзакции: commit при nil-ошибке, иначе rollback
// до того, как ошибка уйдёт наверх.
func (d *DB) WithTx(ctx context.Context, fn func(tx *Transaction) error) error {
	tx, err := d.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// Querier объединяет то, что умеют и *DB, и *Transaction:
// сервисные выборки пишутся один раз и работают в обоих режимах.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

var (
	_ Querier = (*DB)(nil)
	_ Querier = (*Transaction)(nil)
)
