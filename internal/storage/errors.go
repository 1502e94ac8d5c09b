// Package storage содержит общую таксономию ошибок движка хранения.
// Сервисы и DAL возвращают типизированные ошибки; вызывающий код
// разбирает их через errors.As.
package storage

import "fmt"

// ValidationError — отсутствует или некорректно обязательное поле.
// Локальная ошибка, никогда не глотается молча.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

// NotFoundError — сущность не найдена. Вызывающий сам решает,
// ошибка это или пустой результат.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.ID)
}

// CircularReferenceError — перемещение создало бы цикл в дереве.
// Операция всегда прерывается, повтор бессмысленен.
type CircularReferenceError struct {
	Entity string
	ID     string
}

func (e *CircularReferenceError) Error() string {
	return fmt.Sprintf("moving %s %q would create a circular reference", e.Entity, e.ID)
}

// PermissionDeniedError — проверка доступа не пройдена; состояние не менялось.
type PermissionDeniedError struct {
	UserID string
	Action string
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("user %q is not allowed to %s", e.UserID, e.Action)
}

// DatabaseError — инфраструктурный сбой БД. Авто-ретраев нет.
type DatabaseError struct {
	Op  string
	Err error
}

func (e *DatabaseError) Error() string { return fmt.Sprintf("database %s: %v", e.Op, e.Err) }
func (e *DatabaseError) Unwrap() error { return e.Err }

// TransactionError — нарушение контракта транзакции
// (двойной commit, commit после rollback и т.п.).
type TransactionError struct {
	Reason string
}

func (e *TransactionError) Error() string { return "transaction: " + e.Reason }

// SyncError — сбой синхронизации/бэкапа/импорта/экспорта.
type SyncError struct {
	Op  string
	Err error
}

func (e *SyncError) Error() string { return fmt.Sprintf("sync %s: %v", e.Op, e.Err) }
func (e *SyncError) Unwrap() error { return e.Err }

// IntegrityError — нарушение целостности данных, найденное проверкой.
type IntegrityError struct {
	Issue string
}

func (e *IntegrityError) Error() string { return "integrity: " + e.Issue }
