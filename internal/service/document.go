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
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// documentColumns — полный список столбцов documents в порядке scanDocument.
const documentColumns = `id, title, content, status, parent_id, path, icon, cover,
	tags, metadata, is_template, template_id, sort_order, permissions,
	created_at, updated_at, created_by, updated_by`

// DocumentService — CRUD, иерархия, теги, права и поиск по документам.
type DocumentService struct {
	db       *sqlite.DB
	logger   *zap.SugaredLogger
	notifier events.Notifier
}

// NewDocumentService создаёт сервис документов.
func NewDocumentService(db *sqlite.DB, logger *zap.SugaredLogger, notifier events.Notifier) *DocumentService {
	if notifier == nil {
		notifier = events.Nop{}
	}
	return &DocumentService{
		db:       db,
		logger:   logger.With("component", "document"),
		notifier: notifier,
	}
}

// rowScanner покрывает и *sql.Row, и *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanDocument — явная десериализация строки в модель.
// Неизвестный статус или битый JSON в столбце — громкая ошибка.
func scanDocument(sc rowScanner) (*model.Document, error) {
	var (
		d                 model.Document
		content           string
		status            string
		parentID          sql.NullString
		templateID        sql.NullString
		tagsRaw           string
		metaRaw           string
		permsRaw          string
		isTemplate        int
		createdAt, updAt  int64
	)
	err := sc.Scan(
		&d.ID, &d.Title, &content, &status, &parentID, &d.Path, &d.Icon, &d.Cover,
		&tagsRaw, &metaRaw, &isTemplate, &templateID, &d.SortOrder, &permsRaw,
		&createdAt, &updAt, &d.CreatedBy, &d.UpdatedBy,
	)
	if err != nil {
		return nil, err
	}
	d.Status = model.DocumentStatus(status)
	if !d.Status.Valid() {
		return nil, &storage.DatabaseError{Op: "scan document", Err: fmt.Errorf("unknown status %q", status)}
	}
	d.Content = json.RawMessage(content)
	if parentID.Valid {
		d.ParentID = &parentID.String
	}
	if templateID.Valid {
		d.TemplateID = &templateID.String
	}
	d.IsTemplate = isTemplate != 0
	if d.Tags, err = decodeStrings("tags", tagsRaw); err != nil {
		return nil, err
	}
	if d.Metadata, err = decodeStringMap("metadata", metaRaw); err != nil {
		return nil, err
	}
	if d.Perms, err = decodePermissions(permsRaw); err != nil {
		return nil, err
	}
	d.CreatedAt = time.UnixMilli(createdAt).UTC()
	d.UpdatedAt = time.UnixMilli(updAt).UTC()
	return &d, nil
}

// CreateDocument создаёт документ. Title, Content и Path обязательны;
// статус по умолчанию draft, права — закрытые.
func (s *DocumentService) CreateDocument(ctx context.Context, in model.CreateDocumentInput) (*model.Document, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, &storage.ValidationError{Field: "title", Reason: "required"}
	}
	if len(in.Content) == 0 {
		return nil, &storage.ValidationError{Field: "content", Reason: "required"}
	}
	if !json.Valid(in.Content) {
		return nil, &storage.ValidationError{Field: "content", Reason: "must be valid JSON"}
	}
	if in.Path == "" || !strings.HasPrefix(in.Path, "/") {
		return nil, &storage.ValidationError{Field: "path", Reason: "required and must start with /"}
	}

	var doc *model.Document
	err := s.db.WithTx(ctx, func(tx *sqlite.Transaction) error {
		if in.ParentID != nil {
			parent, err := fetchDocument(ctx, tx, *in.ParentID, false)
			if err != nil {
				return err
			}
			if parent == nil {
				return &storage.NotFoundError{Entity: "document", ID: *in.ParentID}
			}
		}
		taken, err := pathTaken(ctx, tx, in.Path, "")
		if err != nil {
			return err
		}
		if taken {
			return &storage.ValidationError{Field: "path", Reason: fmt.Sprintf("%q is already in use", in.Path)}
		}

		sortOrder := int64(0)
		if in.SortOrder != nil {
			sortOrder = *in.SortOrder
		} else {
			if sortOrder, err = nextDocumentSortOrder(ctx, tx, in.ParentID); err != nil {
				return err
			}
		}
		perms := model.DefaultPermissions()
		if in.Perms != nil {
			perms = *in.Perms
		}

		now := nowMillis()
		d := &model.Document{
			ID:         uuid.NewString(),
			Title:      in.Title,
			Content:    in.Content,
			Status:     model.StatusDraft,
			ParentID:   in.ParentID,
			Path:       in.Path,
			Icon:       in.Icon,
			Cover:      in.Cover,
			Tags:       in.Tags,
			Metadata:   in.Metadata,
			IsTemplate: in.IsTemplate,
			TemplateID: in.TemplateID,
			SortOrder:  sortOrder,
			Perms:      perms,
			CreatedAt:  time.UnixMilli(now).UTC(),
			UpdatedAt:  time.UnixMilli(now).UTC(),
			CreatedBy:  in.CreatedBy,
			UpdatedBy:  in.CreatedBy,
		}
		if err := insertDocument(ctx, tx, d, now); err != nil {
			return err
		}
		doc = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Infow("document created", "id", doc.ID, "path", doc.Path)
	s.notifier.Notify(ctx, events.Event{Name: events.DocumentCreated, EntityID: doc.ID, Payload: doc})
	return doc, nil
}

// insertDocument — единственная точка INSERT в documents.
func insertDocument(ctx context.Context, q sqlite.Querier, d *model.Document, nowMs int64) error {
	tags, err := encodeStrings(d.Tags)
	if err != nil {
		return err
	}
	meta, err := encodeStringMap(d.Metadata)
	if err != nil {
		return err
	}
	perms, err := encodePermissions(d.Perms)
	if err != nil {
		return err
	}
	if d.Tags == nil {
		d.Tags = []string{}
	}
	if d.Metadata == nil {
		d.Metadata = map[string]string{}
	}
	_, err = q.ExecContext(ctx, `INSERT INTO documents(
		id, title, content, status, parent_id, path, icon, cover,
		tags, metadata, is_template, template_id, sort_order, permissions,
		created_at, updated_at, created_by, updated_by
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.Title, string(d.Content), string(d.Status), d.ParentID, d.Path, d.Icon, d.Cover,
		tags, meta, boolToInt(d.IsTemplate), d.TemplateID, d.SortOrder, perms,
		nowMs, nowMs, d.CreatedBy, d.UpdatedBy,
	)
	return err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// fetchDocument читает документ по id; includeDeleted=false скрывает мягко удалённые.
// Отсутствие строки — (nil, nil) по контракту чтения.
func fetchDocument(ctx context.Context, q sqlite.Querier, id string, includeDeleted bool) (*model.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = ?`
	if !includeDeleted {
		query += ` AND status != 'deleted'`
	}
	d, err := scanDocument(q.QueryRowContext(ctx, query, id))
	if err != nil {
		if sqlite.IsNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return d, nil
}

// pathTaken проверяет занятость пути среди неудалённых документов.
func pathTaken(ctx context.Context, q sqlite.Querier, path, excludeID string) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM documents WHERE path = ? AND status != 'deleted' AND id != ?`,
		path, excludeID,
	).Scan(&n)
	if err != nil {
		return false, &storage.DatabaseError{Op: "path check", Err: err}
	}
	return n > 0, nil
}

// uniqueDocumentPath подбирает свободный путь, добавляя числовой суффикс.
func uniqueDocumentPath(ctx context.Context, q sqlite.Querier, want, excludeID string) (string, error) {
	taken, err := pathTaken(ctx, q, want, excludeID)
	if err != nil {
		return "", err
	}
	if !taken {
		return want, nil
	}
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s-%d", want, i)
		if taken, err = pathTaken(ctx, q, candidate, excludeID); err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}
}

// nextDocumentSortOrder — max(sort_order)+1 среди неудалённых сиблингов, 0 если их нет.
func nextDocumentSortOrder(ctx context.Context, q sqlite.Querier, parentID *string) (int64, error) {
	var maxOrder sql.NullInt64
	var err error
	if parentID == nil {
		err = q.QueryRowContext(ctx,
			`SELECT MAX(sort_order) FROM documents WHERE parent_id IS NULL AND status != 'deleted'`,
		).Scan(&maxOrder)
	} else {
		err = q.QueryRowContext(ctx,
			`SELECT MAX(sort_order) FROM documents WHERE parent_id = ? AND status != 'deleted'`,
			*parentID,
		).Scan(&maxOrder)
	}
	if err != nil {
		return 0, &storage.DatabaseError{Op: "sort order", Err: err}
	}
	if !maxOrder.Valid {
		return 0, nil
	}
	return maxOrder.Int64 + 1, nil
}

// GetDocumentByID возвращает документ или nil, если его нет либо он удалён.
func (s *DocumentService) GetDocumentByID(ctx context.Context, id string) (*model.Document, error) {
	return fetchDocument(ctx, s.db, id, false)
}

// QueryDocuments — список документов с фильтрами, сортировкой и пагинацией.
// status=deleted в выборку не попадает никогда.
func (s *DocumentService) QueryDocuments(ctx context.Context, opts model.QueryDocumentsOptions) ([]model.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE status != 'deleted'`
	var args []any

	if opts.ParentID != nil {
		if *opts.ParentID == "" {
			query += ` AND parent_id IS NULL`
		} else {
			query += ` AND parent_id = ?`
			args = append(args, *opts.ParentID)
		}
	}
	if opts.Status != nil {
		if *opts.Status == model.StatusDeleted {
			return []model.Document{}, nil
		}
		query += ` AND status = ?`
		args = append(args, string(*opts.Status))
	}
	if opts.IsTemplate != nil {
		query += ` AND is_template = ?`
		args = append(args, boolToInt(*opts.IsTemplate))
	}
	if opts.Search != "" {
		query += ` AND (title LIKE ? OR content LIKE ?)`
		like := "%" + opts.Search + "%"
		args = append(args, like, like)
	}

	sortBy := "updated_at"
	switch opts.SortBy {
	case "", "updated_at":
	case "title", "created_at", "sort_order":
		sortBy = opts.SortBy
	default:
		return nil, &storage.ValidationError{Field: "sort_by", Reason: "unknown field " + opts.SortBy}
	}
	dir := "ASC"
	if opts.SortDesc {
		dir = "DESC"
	}
	query += fmt.Sprintf(` ORDER BY %s %s`, sortBy, dir)

	if opts.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, opts.Limit, opts.Offset)
	} else if opts.Offset > 0 {
		query += ` LIMIT -1 OFFSET ?`
		args = append(args, opts.Offset)
	}

	return s.collectDocuments(ctx, query, args...)
}

// collectDocuments выполняет SELECT и маппит все строки.
func (s *DocumentService) collectDocuments(ctx context.Context, query string, args ...any) ([]model.Document, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	docs := []model.Document{}
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *d)
	}
	return docs, rows.Err()
}

// UpdateDocument — частичное обновление: в SQL попадают только заданные поля.
// Пустой ввод — ошибка «no fields to update»; updated_at строго растёт.
func (s *DocumentService) UpdateDocument(ctx context.Context, id string, in model.UpdateDocumentInput) (*model.Document, error) {
	var doc *model.Document
	err := s.db.WithTx(ctx, func(tx *sqlite.Transaction) error {
		current, err := fetchDocument(ctx, tx, id, false)
		if err != nil {
			return err
		}
		if current == nil {
			return &storage.NotFoundError{Entity: "document", ID: id}
		}

		var sets []string
		var args []any
		add := func(col string, val any) {
			sets = append(sets, col+" = ?")
			args = append(args, val)
		}
		if in.Title != nil {
			if strings.TrimSpace(*in.Title) == "" {
				return &storage.ValidationError{Field: "title", Reason: "must not be empty"}
			}
			add("title", *in.Title)
		}
		if in.Content != nil {
			if !json.Valid(in.Content) {
				return &storage.ValidationError{Field: "content", Reason: "must be valid JSON"}
			}
			add("content", string(in.Content))
		}
		if in.Status != nil {
			if !in.Status.Valid() {
				return &storage.ValidationError{Field: "status", Reason: "unknown status"}
			}
			add("status", string(*in.Status))
		}
		if in.Icon != nil {
			add("icon", *in.Icon)
		}
		if in.Cover != nil {
			add("cover", *in.Cover)
		}
		if in.Tags != nil {
			tags, err := encodeStrings(in.Tags)
			if err != nil {
				return err
			}
			add("tags", tags)
		}
		if in.Metadata != nil {
			meta, err := encodeStringMap(in.Metadata)
			if err != nil {
				return err
			}
			add("metadata", meta)
		}
		if in.IsTemplate != nil {
			add("is_template", boolToInt(*in.IsTemplate))
		}
		if in.SortOrder != nil {
			add("sort_order", *in.SortOrder)
		}
		if in.Perms != nil {
			perms, err := encodePermissions(*in.Perms)
			if err != nil {
				return err
			}
			add("permissions", perms)
		}
		if len(sets) == 0 {
			return &storage.ValidationError{Reason: "no fields to update"}
		}

		add("updated_at", bumpMillis(current.UpdatedAt.UnixMilli()))
		add("updated_by", in.UpdatedBy)
		args = append(args, id)
		_, err = tx.ExecContext(ctx,
			`UPDATE documents SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
		if err != nil {
			return err
		}
		doc, err = fetchDocument(ctx, tx, id, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.notifier.Notify(ctx, events.Event{Name: events.DocumentUpdated, EntityID: id, Payload: doc})
	return doc, nil
}

// DeleteDocument — мягкое удаление: только перевод статуса в deleted.
func (s *DocumentService) DeleteDocument(ctx context.Context, id, deletedBy string) error {
	err := s.db.WithTx(ctx, func(tx *sqlite.Transaction) error {
		current, err := fetchDocument(ctx, tx, id, false)
		if err != nil {
			return err
		}
		if current == nil {
			return &storage.NotFoundError{Entity: "document", ID: id}
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE documents SET status = 'deleted', updated_at = ?, updated_by = ? WHERE id = ?`,
			bumpMillis(current.UpdatedAt.UnixMilli()), deletedBy, id)
		return err
	})
	if err != nil {
		return err
	}
	s.logger.Infow("document soft-deleted", "id", id)
	s.notifier.Notify(ctx, events.Event{Name: events.DocumentDeleted, EntityID: id})
	return nil
}

// MoveDocument переносит документ под нового родителя.
// Перед фиксацией проверяется, что новый родитель не находится в поддереве
// переносимого документа; пути поддерева переписываются под новый префикс.
func (s *DocumentService) MoveDocument(ctx context.Context, id string, newParentID *string, sortOrder *int64) error {
	err := s.db.WithTx(ctx, func(tx *sqlite.Transaction) error {
		doc, err := fetchDocument(ctx, tx, id, false)
		if err != nil {
			return err
		}
		if doc == nil {
			return &storage.NotFoundError{Entity: "document", ID: id}
		}

		parentPath := ""
		if newParentID != nil {
			if *newParentID == id {
				return &storage.CircularReferenceError{Entity: "document", ID: id}
			}
			parent, err := fetchDocument(ctx, tx, *newParentID, false)
			if err != nil {
				return err
			}
			if parent == nil {
				return &storage.NotFoundError{Entity: "document", ID: *newParentID}
			}
			// подъём по предкам нового родителя: встретили id — цикл
			cursor := parent
			for cursor != nil {
				if cursor.ID == id {
					return &storage.CircularReferenceError{Entity: "document", ID: id}
				}
				if cursor.ParentID == nil {
					break
				}
				if cursor, err = fetchDocument(ctx, tx, *cursor.ParentID, false); err != nil {
					return err
				}
			}
			parentPath = parent.Path
		}

		order := int64(0)
		if sortOrder != nil {
			order = *sortOrder
		} else {
			if order, err = nextDocumentSortOrder(ctx, tx, newParentID); err != nil {
				return err
			}
		}

		parentChanged := (doc.ParentID == nil) != (newParentID == nil) ||
			(doc.ParentID != nil && newParentID != nil && *doc.ParentID != *newParentID)

		newPath := doc.Path
		if parentChanged {
			newPath, err = uniqueDocumentPath(ctx, tx, childPath(parentPath, lastPathSegment(doc.Path)), id)
			if err != nil {
				return err
			}
		}

		now := bumpMillis(doc.UpdatedAt.UnixMilli())
		_, err = tx.ExecContext(ctx,
			`UPDATE documents SET parent_id = ?, path = ?, sort_order = ?, updated_at = ? WHERE id = ?`,
			newParentID, newPath, order, now, id)
		if err != nil {
			return err
		}
		if parentChanged && newPath != doc.Path {
			// пути потомков получают новый префикс одной командой;
			// LENGTH/SUBSTR считают символы, поэтому префикс режется
			// корректно и для не-ASCII путей
			_, err = tx.ExecContext(ctx,
				`UPDATE documents SET path = ? || SUBSTR(path, LENGTH(?) + 1), updated_at = ?
				 WHERE path LIKE ? AND status != 'deleted'`,
				newPath, doc.Path, now, doc.Path+"/%")
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.notifier.Notify(ctx, events.Event{Name: events.DocumentMoved, EntityID: id})
	return nil
}

// DuplicateDocument копирует документ (и при IncludeChildren — всё поддерево
// вместе с блоками). Копия получает свежие id, свободный путь, статус draft
// и обратную ссылку template_id на источник.
func (s *DocumentService) DuplicateDocument(ctx context.Context, id string, opts model.DuplicateOptions) (*model.Document, error) {
	var copyDoc *model.Document
	err := s.db.WithTx(ctx, func(tx *sqlite.Transaction) error {
		var err error
		copyDoc, err = duplicateTx(ctx, tx, id, nil, opts)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Infow("document duplicated", "source", id, "copy", copyDoc.ID)
	s.notifier.Notify(ctx, events.Event{Name: events.DocumentCreated, EntityID: copyDoc.ID, Payload: copyDoc})
	return copyDoc, nil
}

// duplicateTx — рекурсивное копирование внутри одной транзакции.
// newParentID=nil означает «корень копии»: она остаётся рядом с источником.
func duplicateTx(ctx context.Context, tx *sqlite.Transaction, id string, newParent *model.Document, opts model.DuplicateOptions) (*model.Document, error) {
	src, err := fetchDocument(ctx, tx, id, false)
	if err != nil {
		return nil, err
	}
	if src == nil {
		return nil, &storage.NotFoundError{Entity: "document", ID: id}
	}

	cp := *src
	cp.ID = uuid.NewString()
	cp.TemplateID = &src.ID
	cp.CreatedBy = opts.CreatedBy
	cp.UpdatedBy = opts.CreatedBy
	if newParent == nil {
		if opts.NewTitle != "" {
			cp.Title = opts.NewTitle
		} else {
			cp.Title = src.Title + " (copy)"
		}
		cp.Path, err = uniqueDocumentPath(ctx, tx, src.Path+"-copy", "")
	} else {
		cp.ParentID = &newParent.ID
		cp.Path, err = uniqueDocumentPath(ctx, tx, childPath(newParent.Path, lastPathSegment(src.Path)), "")
	}
	if err != nil {
		return nil, err
	}
	if opts.CopyAsTemplate {
		cp.IsTemplate = true
	} else {
		cp.Status = model.StatusDraft
	}

	now := nowMillis()
	cp.CreatedAt = time.UnixMilli(now).UTC()
	cp.UpdatedAt = time.UnixMilli(now).UTC()
	if err := insertDocument(ctx, tx, &cp, now); err != nil {
		return nil, err
	}
	if err := copyDocumentBlocks(ctx, tx, src.ID, cp.ID, opts.CreatedBy); err != nil {
		return nil, err
	}

	if opts.IncludeChildren {
		children, err := childDocumentsTx(ctx, tx, src.ID)
		if err != nil {
			return nil, err
		}
		childOpts := opts
		childOpts.NewTitle = ""
		for i := range children {
			if _, err := duplicateTx(ctx, tx, children[i].ID, &cp, childOpts); err != nil {
				return nil, err
			}
		}
	}
	return &cp, nil
}

// copyDocumentBlocks переносит неудалённые блоки источника в копию,
// сохраняя дерево через переназначение id.
func copyDocumentBlocks(ctx context.Context, tx *sqlite.Transaction, srcDocID, dstDocID, createdBy string) error {
	rows, err := tx.QueryContext(ctx,
		`SELECT id, parent_id, type, content, properties, sort_order, path
		 FROM blocks WHERE document_id = ? AND is_deleted = 0 ORDER BY path`,
		srcDocID)
	if err != nil {
		return err
	}
	type blockRow struct {
		id, typ, content, props, path string
		parentID                      sql.NullString
		sortOrder                     int64
	}
	var src []blockRow
	for rows.Next() {
		var b blockRow
		if err := rows.Scan(&b.id, &b.parentID, &b.typ, &b.content, &b.props, &b.sortOrder, &b.path); err != nil {
			rows.Close()
			return err
		}
		src = append(src, b)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	idMap := make(map[string]string, len(src))
	for _, b := range src {
		idMap[b.id] = uuid.NewString()
	}
	now := nowMillis()
	for _, b := range src {
		var parent any
		if b.parentID.Valid {
			mapped, ok := idMap[b.parentID.String]
			if !ok {
				// родитель удалён — копия поднимается в корень документа
				parent = nil
			} else {
				parent = mapped
			}
		}
		newPath := b.path
		for oldID, newID := range idMap {
			newPath = strings.ReplaceAll(newPath, oldID, newID)
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO blocks(
			id, document_id, parent_id, type, content, properties, sort_order, path,
			is_deleted, created_at, updated_at, created_by, updated_by
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?, ?)`,
			idMap[b.id], dstDocID, parent, b.typ, b.content, b.props, b.sortOrder, newPath,
			now, now, createdBy, createdBy)
		if err != nil {
			return err
		}
	}
	return nil
}

// childDocumentsTx — неудалённые дети в порядке sort_order (внутри транзакции).
func childDocumentsTx(ctx context.Context, tx *sqlite.Transaction, parentID string) ([]model.Document, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM documents
		 WHERE parent_id = ? AND status != 'deleted' ORDER BY sort_order`, parentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	docs := []model.Document{}
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *d)
	}
	return docs, rows.Err()
}

// GetChildDocuments — прямые дети документа.
func (s *DocumentService) GetChildDocuments(ctx context.Context, parentID string) ([]model.Document, error) {
	return s.collectDocuments(ctx,
		`SELECT `+documentColumns+` FROM documents
		 WHERE parent_id = ? AND status != 'deleted' ORDER BY sort_order`, parentID)
}

// GetRootDocuments — документы без родителя.
func (s *DocumentService) GetRootDocuments(ctx context.Context) ([]model.Document, error) {
	return s.collectDocuments(ctx,
		`SELECT `+documentColumns+` FROM documents
		 WHERE parent_id IS NULL AND status != 'deleted' ORDER BY sort_order`)
}

// GetDocumentPath — цепочка предков от корня до документа включительно.
func (s *DocumentService) GetDocumentPath(ctx context.Context, id string) ([]model.Document, error) {
	var chain []model.Document
	cursor, err := fetchDocument(ctx, s.db, id, false)
	if err != nil {
		return nil, err
	}
	if cursor == nil {
		return nil, &storage.NotFoundError{Entity: "document", ID: id}
	}
	for {
		chain = append([]model.Document{*cursor}, chain...)
		if cursor.ParentID == nil {
			break
		}
		if cursor, err = fetchDocument(ctx, s.db, *cursor.ParentID, false); err != nil {
			return nil, err
		}
		if cursor == nil {
			break // родитель удалён: цепочка обрывается на нём
		}
	}
	return chain, nil
}

// GetDocumentsByTag — документы, содержащие тег.
func (s *DocumentService) GetDocumentsByTag(ctx context.Context, tag string) ([]model.Document, error) {
	if tag == "" {
		return nil, &storage.ValidationError{Field: "tag", Reason: "required"}
	}
	// теги лежат JSON-массивом; грубый LIKE сужает выборку, точная проверка в Go
	docs, err := s.collectDocuments(ctx,
		`SELECT `+documentColumns+` FROM documents
		 WHERE status != 'deleted' AND tags LIKE ? ORDER BY updated_at DESC`,
		`%"`+tag+`"%`)
	if err != nil {
		return nil, err
	}
	out := []model.Document{}
	for _, d := range docs {
		if containsString(d.Tags, tag) {
			out = append(out, d)
		}
	}
	return out, nil
}

// GetAllTags — гистограмма тег → количество документов.
func (s *DocumentService) GetAllTags(ctx context.Context) ([]model.TagCount, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT tags FROM documents WHERE status != 'deleted'`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := map[string]int64{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		tags, err := decodeStrings("tags", raw)
		if err != nil {
			return nil, err
		}
		for _, t := range tags {
			counts[t]++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	out := make([]model.TagCount, 0, len(counts))
	for tag, n := range counts {
		out = append(out, model.TagCount{Tag: tag, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Tag < out[j].Tag
	})
	return out, nil
}
