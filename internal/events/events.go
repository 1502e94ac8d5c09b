// Package events — граница уведомлений жизненного цикла.
// Движок публикует события во внешнюю шину; подписчиков он не знает
// и никогда не зовёт их изнутри транзакции.
package events

import "context"

// Имена событий, которые публикует движок.
const (
	DocumentCreated = "document.created"
	DocumentUpdated = "document.updated"
	DocumentDeleted = "document.deleted"
	DocumentMoved   = "document.moved"

	BlockCreated = "block.created"
	BlockUpdated = "block.updated"
	BlockDeleted = "block.deleted"
	BlockMoved   = "block.moved"

	VersionCreated  = "version.created"
	VersionRestored = "version.restored"

	SyncStarted   = "sync.started"
	SyncCompleted = "sync.completed"
	SyncFailed    = "sync.failed"

	BackupCreated  = "backup.created"
	BackupRestored = "backup.restored"
)

// Event — уведомление о факте, уже зафиксированном в БД.
type Event struct {
	Name     string
	EntityID string
	Payload  any
}

// Notifier — приёмник событий (внешняя шина модулей).
type Notifier interface {
	Notify(ctx context.Context, e Event)
}

// Nop — заглушка, молча принимающая всё.
type Nop struct{}

// Notify ничего не делает.
func (Nop) Notify(context.Context, Event) {}

var _ Notifier = Nop{}
