package model

import (
	"encoding/json"
	"time"
)

// DocumentStatus — статус жизненного цикла документа.
// Удаление документа мягкое: статус переводится в StatusDeleted,
// строка физически остаётся в БД.
type DocumentStatus string

const (
	StatusDraft     DocumentStatus = "draft"
	StatusPublished DocumentStatus = "published"
	StatusArchived  DocumentStatus = "archived"
	StatusDeleted   DocumentStatus = "deleted"
)

// Valid проверяет, что статус — одно из известных значений.
func (s DocumentStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusPublished, StatusArchived, StatusDeleted:
		return true
	}
	return false
}

// Permissions — права доступа, встроенные в документ.
// По соглашению пользователь состоит максимум в одном из трёх списков.
type Permissions struct {
	IsPublic      bool     `json:"is_public"`
	AllowComments bool     `json:"allow_comments"`
	AllowCopy     bool     `json:"allow_copy"`
	AllowExport   bool     `json:"allow_export"`
	SharedUsers   []string `json:"shared_users"`
	Editors       []string `json:"editors"`
	Viewers       []string `json:"viewers"`
}

// DefaultPermissions — закрытый доступ: только создатель.
func DefaultPermissions() Permissions {
	return Permissions{
		SharedUsers: []string{},
		Editors:     []string{},
		Viewers:     []string{},
	}
}

// Document — страница хранилища: контейнер контента со своей иерархией,
// тегами и правами. Content непрозрачен для движка (дерево узлов редактора).
type Document struct {
	ID         string            `json:"id"`
	Title      string            `json:"title"`
	Content    json.RawMessage   `json:"content"`
	Status     DocumentStatus    `json:"status"`
	ParentID   *string           `json:"parent_id,omitempty"`
	Path       string            `json:"path"`
	Icon       string            `json:"icon,omitempty"`
	Cover      string            `json:"cover,omitempty"`
	Tags       []string          `json:"tags"`
	Metadata   map[string]string `json:"metadata"`
	IsTemplate bool              `json:"is_template"`
	TemplateID *string           `json:"template_id,omitempty"`
	SortOrder  int64             `json:"sort_order"`
	Perms      Permissions       `json:"permissions"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	CreatedBy string    `json:"created_by,omitempty"`
	UpdatedBy string    `json:"updated_by,omitempty"`
}

// CreateDocumentInput — обязательные и опциональные поля создания документа.
type CreateDocumentInput struct {
	Title      string
	Content    json.RawMessage
	Path       string
	ParentID   *string
	Icon       string
	Cover      string
	Tags       []string
	Metadata   map[string]string
	IsTemplate bool
	TemplateID *string
	SortOrder  *int64
	Perms      *Permissions
	CreatedBy  string
}

// UpdateDocumentInput — частичное обновление: nil-поле не трогает столбец.
type UpdateDocumentInput struct {
	Title      *string
	Content    json.RawMessage
	Status     *DocumentStatus
	Icon       *string
	Cover      *string
	Tags       []string
	Metadata   map[string]string
	IsTemplate *bool
	SortOrder  *int64
	Perms      *Permissions
	UpdatedBy  string
}

// QueryDocumentsOptions — фильтры/сортировка/пагинация списка документов.
// Мягко удалённые документы не попадают в выборку никогда.
type QueryDocumentsOptions struct {
	ParentID   *string
	Status     *DocumentStatus
	IsTemplate *bool
	// Search — подстрочный фильтр по title+content (не полнотекстовый).
	Search    string
	SortBy    string // title | created_at | updated_at | sort_order
	SortDesc  bool
	Offset    int
	Limit     int
}

// DuplicateOptions — параметры копирования документа.
type DuplicateOptions struct {
	NewTitle        string
	IncludeChildren bool
	CopyAsTemplate  bool
	CreatedBy       string
}

// AccessAction — действие, проверяемое в checkDocumentAccess.
type AccessAction string

const (
	ActionRead   AccessAction = "read"
	ActionWrite  AccessAction = "write"
	ActionDelete AccessAction = "delete"
	ActionShare  AccessAction = "share"
)

// ShareRole — роль, выдаваемая при шаринге документа.
type ShareRole string

const (
	RoleShared ShareRole = "shared"
	RoleEditor ShareRole = "editor"
	RoleViewer ShareRole = "viewer"
)

// SearchResult — документ с релевантностью подстрочного поиска.
type SearchResult struct {
	Document Document `json:"document"`
	Score    int      `json:"score"`
}

// TagCount — элемент гистограммы использования тегов.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int64  `json:"count"`
}
