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
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const versionColumns = `id, entity_id, entity_type, version, content,
	change_description, change_type, change_size, is_auto_save, created_at, created_by`

// VersionService — append-only журнал версий документов и блоков.
// Номер версии назначается атомарно (latest+1 в той же транзакции, что
// и вставка), поэтому гонка двух писателей не даёт дубликатов.
type VersionService struct {
	db       *sqlite.DB
	logger   *zap.SugaredLogger
	notifier events.Notifier
}

// NewVersionService создаёт менеджер версий.
func NewVersionService(db *sqlite.DB, logger *zap.SugaredLogger, notifier events.Notifier) *VersionService {
	if notifier == nil {
		notifier = events.Nop{}
	}
	return &VersionService{
		db:       db,
		logger:   logger.With("component", "version"),
		notifier: notifier,
	}
}

func scanVersion(sc rowScanner) (*model.Version, error) {
	var (
		v         model.Version
		entType   string
		chType    string
		content   string
		autoSave  int
		createdAt int64
	)
	err := sc.Scan(
		&v.ID, &v.EntityID, &entType, &v.Version, &content,
		&v.ChangeDescription, &chType, &v.ChangeSize, &autoSave, &createdAt, &v.CreatedBy,
	)
	if err != nil {
		return nil, err
	}
	v.EntityType = model.EntityType(entType)
	v.ChangeType = model.ChangeType(chType)
	if !v.EntityType.Valid() || !v.ChangeType.Valid() {
		return nil, &storage.DatabaseError{Op: "scan version",
			Err: fmt.Errorf("unknown entity/change type %q/%q", entType, chType)}
	}
	v.Content = json.RawMessage(content)
	v.IsAutoSave = autoSave != 0
	v.CreatedAt = time.UnixMilli(createdAt).UTC()
	return &v, nil
}

// CreateVersion пишет новую версию сущности. Версии никогда не обновляются.
func (s *VersionService) CreateVersion(ctx context.Context, in model.CreateVersionInput) (*model.Version, error) {
	if in.EntityID == "" {
		return nil, &storage.ValidationError{Field: "entity_id", Reason: "required"}
	}
	if !in.EntityType.Valid() {
		return nil, &storage.ValidationError{Field: "entity_type", Reason: "must be document or block"}
	}
	if !in.ChangeType.Valid() {
		return nil, &storage.ValidationError{Field: "change_type", Reason: "unknown change type"}
	}
	if len(in.Content) == 0 {
		return nil, &storage.ValidationError{Field: "content", Reason: "required"}
	}

	var ver *model.Version
	err := s.db.WithTx(ctx, func(tx *sqlite.Transaction) error {
		latest, err := latestVersionTx(ctx, tx, in.EntityID, in.EntityType)
		if err != nil {
			return err
		}
		v := &model.Version{
			ID:                uuid.NewString(),
			EntityID:          in.EntityID,
			EntityType:        in.EntityType,
			Version:           latest + 1,
			Content:           in.Content,
			ChangeDescription: in.ChangeDescription,
			ChangeType:        in.ChangeType,
			ChangeSize:        int64(len(in.Content)),
			IsAutoSave:        in.IsAutoSave,
			CreatedBy:         in.CreatedBy,
		}
		now := nowMillis()
		v.CreatedAt = time.UnixMilli(now).UTC()
		_, err = tx.ExecContext(ctx, `INSERT INTO versions(
			id, entity_id, entity_type, version, content,
			change_description, change_type, change_size, is_auto_save, created_at, created_by
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			v.ID, v.EntityID, string(v.EntityType), v.Version, string(v.Content),
			v.ChangeDescription, string(v.ChangeType), v.ChangeSize,
			boolToInt(v.IsAutoSave), now, v.CreatedBy)
		if err != nil {
			return err
		}
		ver = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.notifier.Notify(ctx, events.Event{Name: events.VersionCreated, EntityID: ver.EntityID, Payload: ver})
	return ver, nil
}

func latestVersionTx(ctx context.Context, q sqlite.Querier, entityID string, entityType model.EntityType) (int64, error) {
	var latest sql.NullInt64
	err := q.QueryRowContext(ctx,
		`SELECT MAX(version) FROM versions WHERE entity_id = ? AND entity_type = ?`,
		entityID, string(entityType)).Scan(&latest)
	if err != nil {
		return 0, &storage.DatabaseError{Op: "latest version", Err: err}
	}
	if !latest.Valid {
		return 0, nil
	}
	return latest.Int64, nil
}

// GetLatestVersion — максимальный номер версии сущности, 0 если версий нет.
func (s *VersionService) GetLatestVersion(ctx context.Context, entityID string, entityType model.EntityType) (int64, error) {
	if !entityType.Valid() {
		return 0, &storage.ValidationError{Field: "entity_type", Reason: "must be document or block"}
	}
	return latestVersionTx(ctx, s.db, entityID, entityType)
}

// GetVersionHistory — все версии сущности, новые сверху.
func (s *VersionService) GetVersionHistory(ctx context.Context, entityID string, entityType model.EntityType) ([]model.Version, error) {
	if !entityType.Valid() {
		return nil, &storage.ValidationError{Field: "entity_type", Reason: "must be document or block"}
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+versionColumns+` FROM versions
		 WHERE entity_id = ? AND entity_type = ? ORDER BY version DESC`,
		entityID, string(entityType))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Version{}
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}

// GetVersion — конкретная версия сущности.
func (s *VersionService) GetVersion(ctx context.Context, entityID string, entityType model.EntityType, version int64) (*model.Version, error) {
	v, err := scanVersion(s.db.QueryRowContext(ctx,
		`SELECT `+versionColumns+` FROM versions
		 WHERE entity_id = ? AND entity_type = ? AND version = ?`,
		entityID, string(entityType), version))
	if err != nil {
		if sqlite.IsNoRows(err) {
			return nil, &storage.NotFoundError{Entity: "version",
				ID: fmt.Sprintf("%s/%s@%d", entityType, entityID, version)}
		}
		return nil, err
	}
	return v, nil
}

// CompareVersions — равенство контента и разница размеров двух снимков.
// Структурный дифф сюда намеренно не входит.
func (s *VersionService) CompareVersions(ctx context.Context, entityID string, entityType model.EntityType, from, to int64) (*model.VersionDiff, error) {
	vFrom, err := s.GetVersion(ctx, entityID, entityType, from)
	if err != nil {
		return nil, err
	}
	vTo, err := s.GetVersion(ctx, entityID, entityType, to)
	if err != nil {
		return nil, err
	}
	return &model.VersionDiff{
		EntityID:    entityID,
		EntityType:  entityType,
		FromVersion: from,
		ToVersion:   to,
		Equal:       string(vFrom.Content) == string(vTo.Content),
		FromSize:    vFrom.ChangeSize,
		ToSize:      vTo.ChangeSize,
		SizeDelta:   vTo.ChangeSize - vFrom.ChangeSize,
	}, nil
}

// RollbackToVersion не трогает живые таблицы: создаётся НОВАЯ версия
// latest+1 с контентом целевой и change_type=restore. Запись контента
// обратно в документ/блок — ответственность вызывающего: журнал версий
// первичен, живые таблицы — кэш последней принятой версии.
func (s *VersionService) RollbackToVersion(ctx context.Context, entityID string, entityType model.EntityType, targetVersion int64, userID string) (*model.Version, error) {
	var ver *model.Version
	err := s.db.WithTx(ctx, func(tx *sqlite.Transaction) error {
		target, err := scanVersion(tx.QueryRowContext(ctx,
			`SELECT `+versionColumns+` FROM versions
			 WHERE entity_id = ? AND entity_type = ? AND version = ?`,
			entityID, string(entityType), targetVersion))
		if err != nil {
			if sqlite.IsNoRows(err) {
				return &storage.NotFoundError{Entity: "version",
					ID: fmt.Sprintf("%s/%s@%d", entityType, entityID, targetVersion)}
			}
			return err
		}
		latest, err := latestVersionTx(ctx, tx, entityID, entityType)
		if err != nil {
			return err
		}
		now := nowMillis()
		v := &model.Version{
			ID:                uuid.NewString(),
			EntityID:          entityID,
			EntityType:        entityType,
			Version:           latest + 1,
			Content:           target.Content,
			ChangeDescription: fmt.Sprintf("restored from version %d", targetVersion),
			ChangeType:        model.ChangeRestore,
			ChangeSize:        int64(len(target.Content)),
			CreatedAt:         time.UnixMilli(now).UTC(),
			CreatedBy:         userID,
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO versions(
			id, entity_id, entity_type, version, content,
			change_description, change_type, change_size, is_auto_save, created_at, created_by
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
			v.ID, v.EntityID, string(v.EntityType), v.Version, string(v.Content),
			v.ChangeDescription, string(v.ChangeType), v.ChangeSize, now, v.CreatedBy)
		if err != nil {
			return err
		}
		ver = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Infow("version restored", "entity_id", entityID, "target", targetVersion, "new", ver.Version)
	s.notifier.Notify(ctx, events.Event{Name: events.VersionRestored, EntityID: entityID, Payload: ver})
	return ver, nil
}

// CleanupOldVersions удаляет только автосохранения старше retentionDays.
// Ручные версии хранятся бессрочно. Возвращает число удалённых строк.
func (s *VersionService) CleanupOldVersions(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays < 0 {
		return 0, &storage.ValidationError{Field: "retention_days", Reason: "must not be negative"}
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays).UnixMilli()
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM versions WHERE is_auto_save = 1 AND created_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, &storage.DatabaseError{Op: "cleanup versions", Err: err}
	}
	if n > 0 {
		s.logger.Infow("old auto-save versions purged", "count", n, "retention_days", retentionDays)
	}
	return n, nil
}
