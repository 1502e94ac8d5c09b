package service

import (
	"MindVault/internal/events"
	"MindVault/internal/model"
	"MindVault/internal/storage"
	"MindVault/internal/storage/sqlite"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// blockColumns — полный список столбцов blocks в порядке scanBlock.
const blockColumns = `id, document_id, parent_id, type, content, properties,
	sort_order, path, is_deleted, created_at, updated_at, created_by, updated_by`

// BlockService — CRUD и иерархия блоков в пределах одного документа.
// Повторяет паттерн DocumentService уровнем ниже.
type BlockService struct {
	db       *sqlite.DB
	logger   *zap.SugaredLogger
	notifier events.Notifier
}

// NewBlockService создаёт сервис блоков.
func NewBlockService(db *sqlite.DB, logger *zap.SugaredLogger, notifier events.Notifier) *BlockService {
	if notifier == nil {
		notifier = events.Nop{}
	}
	return &BlockService{
		db:       db,
		logger:   logger.With("component", "block"),
		notifier: notifier,
	}
}

// scanBlock — явная десериализация строки blocks.
func scanBlock(sc rowScanner) (*model.Block, error) {
	var (
		b                model.Block
		parentID         sql.NullString
		typ              string
		content          string
		props            string
		isDeleted        int
		createdAt, updAt int64
	)
	err := sc.Scan(
		&b.ID, &b.DocumentID, &parentID, &typ, &content, &props,
		&b.SortOrder, &b.Path, &isDeleted, &createdAt, &updAt, &b.CreatedBy, &b.UpdatedBy,
	)
	if err != nil {
		return nil, err
	}
	b.Type = model.BlockType(typ)
	if !b.Type.Valid() {
		return nil, &storage.DatabaseError{Op: "scan block", Err: fmt.Errorf("unknown block type %q", typ)}
	}
	if parentID.Valid {
		b.ParentID = &parentID.String
	}
	b.Content = json.RawMessage(content)
	var derr error
	if b.Properties, derr = decodeStringMap("properties", props); derr != nil {
		return nil, derr
	}
	b.IsDeleted = isDeleted != 0
	b.CreatedAt = time.UnixMilli(createdAt).UTC()
	b.UpdatedAt = time.UnixMilli(updAt).UTC()
	return &b, nil
}

// fetchBlock читает блок по id; мягко удалённые скрыты, отсутствие — (nil, nil).
func fetchBlock(ctx context.Context, q sqlite.Querier, id string, includeDeleted bool) (*model.Block, error) {
	query := `SELECT ` + blockColumns + ` FROM blocks WHERE id = ?`
	if !includeDeleted {
		query += ` AND is_deleted = 0`
	}
	b, err := scanBlock(q.QueryRowContext(ctx, query, id))
	if err != nil {
		if sqlite.IsNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return b, nil
}

// CreateBlock создаёт блок. Документ обязан существовать; родительский блок,
// если задан, обязан принадлежать тому же документу.
// Path блока — цепочка id от корня, для быстрого поиска предков.
func (s *BlockService) CreateBlock(ctx context.Context, in model.CreateBlockInput) (*model.Block, error) {
	if in.DocumentID == "" {
		return nil, &storage.ValidationError{Field: "document_id", Reason: "required"}
	}
	if !in.Type.Valid() {
		return nil, &storage.ValidationError{Field: "type", Reason: "unknown block type " + string(in.Type)}
	}
	if len(in.Content) == 0 {
		in.Content = json.RawMessage(`{}`)
	}
	if !json.Valid(in.Content) {
		return nil, &storage.ValidationError{Field: "content", Reason: "must be valid JSON"}
	}

	var block *model.Block
	err := s.db.WithTx(ctx, func(tx *sqlite.Transaction) error {
		doc, err := fetchDocument(ctx, tx, in.DocumentID, false)
		if err != nil {
			return err
		}
		if doc == nil {
			return &storage.NotFoundError{Entity: "document", ID: in.DocumentID}
		}

		id := uuid.NewString()
		path := id
		if in.ParentID != nil {
			parent, err := fetchBlock(ctx, tx, *in.ParentID, false)
			if err != nil {
				return err
			}
			if parent == nil {
				return &storage.NotFoundError{Entity: "block", ID: *in.ParentID}
			}
			if parent.DocumentID != in.DocumentID {
				return &storage.ValidationError{Field: "parent_id", Reason: "parent belongs to another document"}
			}
			path = parent.Path + "/" + id
		}

		sortOrder := int64(0)
		if in.SortOrder != nil {
			sortOrder = *in.SortOrder
		} else {
			if sortOrder, err = nextBlockSortOrder(ctx, tx, in.DocumentID, in.ParentID); err != nil {
				return err
			}
		}
		props, err := encodeStringMap(in.Properties)
		if err != nil {
			return err
		}

		now := nowMillis()
		_, err = tx.ExecContext(ctx, `INSERT INTO blocks(
			id, document_id, parent_id, type, content, properties, sort_order, path,
			is_deleted, created_at, updated_at, created_by, updated_by
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?, ?)`,
			id, in.DocumentID, in.ParentID, string(in.Type), string(in.Content), props,
			sortOrder, path, now, now, in.CreatedBy, in.CreatedBy)
		if err != nil {
			return err
		}
		block, err = fetchBlock(ctx, tx, id, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.notifier.Notify(ctx, events.Event{Name: events.BlockCreated, EntityID: block.ID, Payload: block})
	return block, nil
}

// nextBlockSortOrder — max(sort_order)+1 среди живых сиблингов блока.
func nextBlockSortOrder(ctx context.Context, q sqlite.Querier, documentID string, parentID *string) (int64, error) {
	var maxOrder sql.NullInt64
	var err error
	if parentID == nil {
		err = q.QueryRowContext(ctx,
			`SELECT MAX(sort_order) FROM blocks
			 WHERE document_id = ? AND parent_id IS NULL AND is_deleted = 0`,
			documentID).Scan(&maxOrder)
	} else {
		err = q.QueryRowContext(ctx,
			`SELECT MAX(sort_order) FROM blocks
			 WHERE document_id = ? AND parent_id = ? AND is_deleted = 0`,
			documentID, *parentID).Scan(&maxOrder)
	}
	if err != nil {
		return 0, &storage.DatabaseError{Op: "block sort order", Err: err}
	}
	if !maxOrder.Valid {
		return 0, nil
	}
	return maxOrder.Int64 + 1, nil
}

// GetBlockByID возвращает блок или nil, если его нет либо он удалён.
func (s *BlockService) GetBlockByID(ctx context.Context, id string) (*model.Block, error) {
	return fetchBlock(ctx, s.db, id, false)
}

// GetBlocksByDocumentID — все живые блоки документа в порядке дерева.
func (s *BlockService) GetBlocksByDocumentID(ctx context.Context, documentID string) ([]model.Block, error) {
	return s.collectBlocks(ctx,
		`SELECT `+blockColumns+` FROM blocks
		 WHERE document_id = ? AND is_deleted = 0 ORDER BY path, sort_order`, documentID)
}

// GetChildBlocks — прямые дети блока.
func (s *BlockService) GetChildBlocks(ctx context.Context, parentID string) ([]model.Block, error) {
	return s.collectBlocks(ctx,
		`SELECT `+blockColumns+` FROM blocks
		 WHERE parent_id = ? AND is_deleted = 0 ORDER BY sort_order`, parentID)
}

// GetRootBlocks — блоки документа без родителя.
func (s *BlockService) GetRootBlocks(ctx context.Context, documentID string) ([]model.Block, error) {
	return s.collectBlocks(ctx,
		`SELECT `+blockColumns+` FROM blocks
		 WHERE document_id = ? AND parent_id IS NULL AND is_deleted = 0 ORDER BY sort_order`, documentID)
}

// QueryBlocks — выборка с фильтрами по документу/родителю/типу.
func (s *BlockService) QueryBlocks(ctx context.Context, opts model.QueryBlocksOptions) ([]model.Block, error) {
	if opts.DocumentID == "" {
		return nil, &storage.ValidationError{Field: "document_id", Reason: "required"}
	}
	query := `SELECT ` + blockColumns + ` FROM blocks WHERE document_id = ? AND is_deleted = 0`
	args := []any{opts.DocumentID}
	if opts.ParentID != nil {
		if *opts.ParentID == "" {
			query += ` AND parent_id IS NULL`
		} else {
			query += ` AND parent_id = ?`
			args = append(args, *opts.ParentID)
		}
	}
	if opts.Type != nil {
		if !opts.Type.Valid() {
			return nil, &storage.ValidationError{Field: "type", Reason: "unknown block type"}
		}
		query += ` AND type = ?`
		args = append(args, string(*opts.Type))
	}
	query += ` ORDER BY sort_order`
	if opts.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, opts.Limit, opts.Offset)
	}
	return s.collectBlocks(ctx, query, args...)
}

func (s *BlockService) collectBlocks(ctx context.Context, query string, args ...any) ([]model.Block, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	blocks := []model.Block{}
	for rows.Next() {
		b, err := scanBlock(rows)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, *b)
	}
	return blocks, rows.Err()
}

// UpdateBlock — частичное обновление блока; пустой ввод — ошибка.
func (s *BlockService) UpdateBlock(ctx context.Context, id string, in model.UpdateBlockInput) (*model.Block, error) {
	var block *model.Block
	err := s.db.WithTx(ctx, func(tx *sqlite.Transaction) error {
		current, err := fetchBlock(ctx, tx, id, false)
		if err != nil {
			return err
		}
		if current == nil {
			return &storage.NotFoundError{Entity: "block", ID: id}
		}

		var sets []string
		var args []any
		add := func(col string, val any) {
			sets = append(sets, col+" = ?")
			args = append(args, val)
		}
		if in.Type != nil {
			if !in.Type.Valid() {
				return &storage.ValidationError{Field: "type", Reason: "unknown block type"}
			}
			add("type", string(*in.Type))
		}
		if in.Content != nil {
			if !json.Valid(in.Content) {
				return &storage.ValidationError{Field: "content", Reason: "must be valid JSON"}
			}
			add("content", string(in.Content))
		}
		if in.Properties != nil {
			props, err := encodeStringMap(in.Properties)
			if err != nil {
				return err
			}
			add("properties", props)
		}
		if in.SortOrder != nil {
			add("sort_order", *in.SortOrder)
		}
		if len(sets) == 0 {
			return &storage.ValidationError{Reason: "no fields to update"}
		}

		add("updated_at", bumpMillis(current.UpdatedAt.UnixMilli()))
		add("updated_by", in.UpdatedBy)
		args = append(args, id)
		if _, err = tx.ExecContext(ctx,
			`UPDATE blocks SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...); err != nil {
			return err
		}
		block, err = fetchBlock(ctx, tx, id, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.notifier.Notify(ctx, events.Event{Name: events.BlockUpdated, EntityID: id, Payload: block})
	return block, nil
}

// DeleteBlock — мягкое удаление блока и ВСЕХ его потомков,
// рекурсивно до любой глубины (WITH RECURSIVE).
func (s *BlockService) DeleteBlock(ctx context.Context, id, deletedBy string) error {
	err := s.db.WithTx(ctx, func(tx *sqlite.Transaction) error {
		current, err := fetchBlock(ctx, tx, id, false)
		if err != nil {
			return err
		}
		if current == nil {
			return &storage.NotFoundError{Entity: "block", ID: id}
		}
		now := bumpMillis(current.UpdatedAt.UnixMilli())
		_, err = tx.ExecContext(ctx, `
			WITH RECURSIVE subtree(id) AS (
				SELECT id FROM blocks WHERE id = ?
				UNION ALL
				SELECT b.id FROM blocks b JOIN subtree s ON b.parent_id = s.id
			)
			UPDATE blocks SET is_deleted = 1, updated_at = ?, updated_by = ?
			WHERE id IN (SELECT id FROM subtree) AND is_deleted = 0`,
			id, now, deletedBy)
		return err
	})
	if err != nil {
		return err
	}
	s.logger.Infow("block subtree soft-deleted", "id", id)
	s.notifier.Notify(ctx, events.Event{Name: events.BlockDeleted, EntityID: id})
	return nil
}

// MoveBlock переносит блок под нового родителя в пределах того же документа.
// Та же защита от циклов, что и у документов; пути поддерева переписываются.
func (s *BlockService) MoveBlock(ctx context.Context, id string, newParentID *string, sortOrder *int64) error {
	err := s.db.WithTx(ctx, func(tx *sqlite.Transaction) error {
		blk, err := fetchBlock(ctx, tx, id, false)
		if err != nil {
			return err
		}
		if blk == nil {
			return &storage.NotFoundError{Entity: "block", ID: id}
		}

		newPath := id
		if newParentID != nil {
			if *newParentID == id {
				return &storage.CircularReferenceError{Entity: "block", ID: id}
			}
			parent, err := fetchBlock(ctx, tx, *newParentID, false)
			if err != nil {
				return err
			}
			if parent == nil {
				return &storage.NotFoundError{Entity: "block", ID: *newParentID}
			}
			if parent.DocumentID != blk.DocumentID {
				return &storage.ValidationError{Field: "parent_id", Reason: "parent belongs to another document"}
			}
			// path — цепочка id, поэтому цикл виден по вхождению id в путь родителя
			if strings.Contains("/"+parent.Path+"/", "/"+id+"/") {
				return &storage.CircularReferenceError{Entity: "block", ID: id}
			}
			newPath = parent.Path + "/" + id
		}

		order := int64(0)
		if sortOrder != nil {
			order = *sortOrder
		} else {
			if order, err = nextBlockSortOrder(ctx, tx, blk.DocumentID, newParentID); err != nil {
				return err
			}
		}

		now := bumpMillis(blk.UpdatedAt.UnixMilli())
		_, err = tx.ExecContext(ctx,
			`UPDATE blocks SET parent_id = ?, path = ?, sort_order = ?, updated_at = ? WHERE id = ?`,
			newParentID, newPath, order, now, id)
		if err != nil {
			return err
		}
		if newPath != blk.Path {
			_, err = tx.ExecContext(ctx,
				`UPDATE blocks SET path = ? || SUBSTR(path, LENGTH(?) + 1), updated_at = ?
				 WHERE document_id = ? AND path LIKE ?`,
				newPath, blk.Path, now, blk.DocumentID, blk.Path+"/%")
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.notifier.Notify(ctx, events.Event{Name: events.BlockMoved, EntityID: id})
	return nil
}
