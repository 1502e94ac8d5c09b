package model

import (
	"encoding/json"
	"time"
)

// BlockType — вид структурного блока внутри документа.
type BlockType string

const (
	BlockParagraph    BlockType = "paragraph"
	BlockHeading1     BlockType = "heading_1"
	BlockHeading2     BlockType = "heading_2"
	BlockHeading3     BlockType = "heading_3"
	BlockHeading4     BlockType = "heading_4"
	BlockHeading5     BlockType = "heading_5"
	BlockHeading6     BlockType = "heading_6"
	BlockBulletedList BlockType = "bulleted_list"
	BlockNumberedList BlockType = "numbered_list"
	BlockTodoList     BlockType = "todo_list"
	BlockQuote        BlockType = "quote"
	BlockCode         BlockType = "code"
	BlockImage        BlockType = "image"
	BlockVideo        BlockType = "video"
	BlockFile         BlockType = "file"
	BlockTable        BlockType = "table"
	BlockEmbed        BlockType = "embed"
	BlockDivider      BlockType = "divider"
)

// Valid проверяет, что тип блока известен движку.
func (t BlockType) Valid() bool {
	switch t {
	case BlockParagraph,
		BlockHeading1, BlockHeading2, BlockHeading3,
		BlockHeading4, BlockHeading5, BlockHeading6,
		BlockBulletedList, BlockNumberedList, BlockTodoList,
		BlockQuote, BlockCode,
		BlockImage, BlockVideo, BlockFile,
		BlockTable, BlockEmbed, BlockDivider:
		return true
	}
	return false
}

// Block — структурная единица контента внутри документа.
// Блоки образуют дерево; parent_id обязан ссылаться на блок того же документа.
type Block struct {
	ID         string            `json:"id"`
	DocumentID string            `json:"document_id"`
	ParentID   *string           `json:"parent_id,omitempty"`
	Type       BlockType         `json:"type"`
	Content    json.RawMessage   `json:"content"`
	Properties map[string]string `json:"properties"`
	SortOrder  int64             `json:"sort_order"`
	Path       string            `json:"path"`
	IsDeleted  bool              `json:"is_deleted"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	CreatedBy string    `json:"created_by,omitempty"`
	UpdatedBy string    `json:"updated_by,omitempty"`
}

// CreateBlockInput — поля создания блока.
type CreateBlockInput struct {
	DocumentID string
	ParentID   *string
	Type       BlockType
	Content    json.RawMessage
	Properties map[string]string
	SortOrder  *int64
	CreatedBy  string
}

// UpdateBlockInput — частичное обновление блока.
type UpdateBlockInput struct {
	Type       *BlockType
	Content    json.RawMessage
	Properties map[string]string
	SortOrder  *int64
	UpdatedBy  string
}

// QueryBlocksOptions — фильтры выборки блоков.
// Мягко удалённые блоки исключаются всегда.
type QueryBlocksOptions struct {
	DocumentID string
	ParentID   *string
	Type       *BlockType
	Offset     int
	Limit      int
}
