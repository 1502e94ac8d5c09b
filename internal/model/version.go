package model

import (
	"encoding/json"
	"time"
)

// EntityType — к какой таблице относится версия.
// FK на documents/blocks намеренно нет: история переживает свои сущности.
type EntityType string

const (
	EntityDocument EntityType = "document"
	EntityBlock    EntityType = "block"
)

// Valid проверяет известность типа сущности.
func (t EntityType) Valid() bool {
	return t == EntityDocument || t == EntityBlock
}

// ChangeType — причина появления версии.
type ChangeType string

const (
	ChangeCreate  ChangeType = "create"
	ChangeUpdate  ChangeType = "update"
	ChangeDelete  ChangeType = "delete"
	ChangeRestore ChangeType = "restore"
)

// Valid проверяет известность типа изменения.
func (t ChangeType) Valid() bool {
	switch t {
	case ChangeCreate, ChangeUpdate, ChangeDelete, ChangeRestore:
		return true
	}
	return false
}

// Version — неизменяемый снимок контента сущности.
// Номера версий строго растут в пределах (entity_id, entity_type);
// строки только вставляются, никогда не обновляются.
type Version struct {
	ID                string          `json:"id"`
	EntityID          string          `json:"entity_id"`
	EntityType        EntityType      `json:"entity_type"`
	Version           int64           `json:"version"`
	Content           json.RawMessage `json:"content"`
	ChangeDescription string          `json:"change_description,omitempty"`
	ChangeType        ChangeType      `json:"change_type"`
	ChangeSize        int64           `json:"change_size"`
	IsAutoSave        bool            `json:"is_auto_save"`

	CreatedAt time.Time `json:"created_at"`
	CreatedBy string    `json:"created_by,omitempty"`
}

// CreateVersionInput — параметры записи новой версии.
// Номер не задаётся снаружи: он вычисляется как latest+1 в той же транзакции,
// что и вставка.
type CreateVersionInput struct {
	EntityID          string
	EntityType        EntityType
	Content           json.RawMessage
	ChangeDescription string
	ChangeType        ChangeType
	IsAutoSave        bool
	CreatedBy         string
}

// VersionDiff — результат сравнения двух версий одной сущности.
type VersionDiff struct {
	EntityID    string     `json:"entity_id"`
	EntityType  EntityType `json:"entity_type"`
	FromVersion int64      `json:"from_version"`
	ToVersion   int64      `json:"to_version"`
	Equal       bool       `json:"equal"`
	FromSize    int64      `json:"from_size"`
	ToSize      int64      `json:"to_size"`
	SizeDelta   int64      `json:"size_delta"`
}
