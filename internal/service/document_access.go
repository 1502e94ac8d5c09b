package service

import (
	"MindVault/internal/model"
	"MindVault/internal/storage"
	"context"
	"sort"
	"strings"
)

// CheckDocumentAccess решает, разрешено ли userID действие над документом.
// Создатель может всё; is_public даёт read любому; editors и shared_users —
// read+write; viewers — только read. Остальным отказ.
func (s *DocumentService) CheckDocumentAccess(ctx context.Context, id, userID string, action model.AccessAction) (bool, error) {
	doc, err := fetchDocument(ctx, s.db, id, false)
	if err != nil {
		return false, err
	}
	if doc == nil {
		return false, &storage.NotFoundError{Entity: "document", ID: id}
	}
	if userID != "" && userID == doc.CreatedBy {
		return true, nil
	}
	switch action {
	case model.ActionRead:
		if doc.Perms.IsPublic {
			return true, nil
		}
		return containsString(doc.Perms.Editors, userID) ||
			containsString(doc.Perms.Viewers, userID) ||
			containsString(doc.Perms.SharedUsers, userID), nil
	case model.ActionWrite:
		return containsString(doc.Perms.Editors, userID) ||
			containsString(doc.Perms.SharedUsers, userID), nil
	case model.ActionDelete, model.ActionShare:
		// только создатель, а он обработан выше
		return false, nil
	default:
		return false, &storage.ValidationError{Field: "action", Reason: "unknown action " + string(action)}
	}
}

// ShareDocument выдаёт пользователю роль на документе. Пользователь держит
// не больше одной роли: из остальных списков он предварительно убирается.
// Право делиться есть только у создателя.
func (s *DocumentService) ShareDocument(ctx context.Context, id, targetUserID string, role model.ShareRole, actorID string) error {
	if targetUserID == "" {
		return &storage.ValidationError{Field: "user_id", Reason: "required"}
	}
	doc, err := fetchDocument(ctx, s.db, id, false)
	if err != nil {
		return err
	}
	if doc == nil {
		return &storage.NotFoundError{Entity: "document", ID: id}
	}
	if actorID != doc.CreatedBy {
		return &storage.PermissionDeniedError{UserID: actorID, Action: "share"}
	}

	perms := doc.Perms
	perms.SharedUsers = removeString(perms.SharedUsers, targetUserID)
	perms.Editors = removeString(perms.Editors, targetUserID)
	perms.Viewers = removeString(perms.Viewers, targetUserID)
	switch role {
	case model.RoleShared:
		perms.SharedUsers = append(perms.SharedUsers, targetUserID)
	case model.RoleEditor:
		perms.Editors = append(perms.Editors, targetUserID)
	case model.RoleViewer:
		perms.Viewers = append(perms.Viewers, targetUserID)
	default:
		return &storage.ValidationError{Field: "role", Reason: "unknown role " + string(role)}
	}

	_, err = s.UpdateDocument(ctx, id, model.UpdateDocumentInput{Perms: &perms, UpdatedBy: actorID})
	return err
}

// UnshareDocument убирает пользователя из всех трёх списков доступа.
func (s *DocumentService) UnshareDocument(ctx context.Context, id, targetUserID, actorID string) error {
	doc, err := fetchDocument(ctx, s.db, id, false)
	if err != nil {
		return err
	}
	if doc == nil {
		return &storage.NotFoundError{Entity: "document", ID: id}
	}
	if actorID != doc.CreatedBy {
		return &storage.PermissionDeniedError{UserID: actorID, Action: "unshare"}
	}
	perms := doc.Perms
	perms.SharedUsers = removeString(perms.SharedUsers, targetUserID)
	perms.Editors = removeString(perms.Editors, targetUserID)
	perms.Viewers = removeString(perms.Viewers, targetUserID)
	_, err = s.UpdateDocument(ctx, id, model.UpdateDocumentInput{Perms: &perms, UpdatedBy: actorID})
	return err
}

// SearchDocuments — подстрочный поиск с весами: совпадение в заголовке 10,
// в контенте 5, в тегах 3. Сортировка: релевантность, затем свежесть.
func (s *DocumentService) SearchDocuments(ctx context.Context, term string, limit int) ([]model.SearchResult, error) {
	if strings.TrimSpace(term) == "" {
		return nil, &storage.ValidationError{Field: "term", Reason: "required"}
	}
	like := "%" + term + "%"
	docs, err := s.collectDocuments(ctx,
		`SELECT `+documentColumns+` FROM documents
		 WHERE status != 'deleted' AND (title LIKE ? OR content LIKE ? OR tags LIKE ?)`,
		like, like, like)
	if err != nil {
		return nil, err
	}

	lower := strings.ToLower(term)
	results := []model.SearchResult{}
	for _, d := range docs {
		score := 0
		if strings.Contains(strings.ToLower(d.Title), lower) {
			score += 10
		}
		if strings.Contains(strings.ToLower(string(d.Content)), lower) {
			score += 5
		}
		for _, tag := range d.Tags {
			if strings.Contains(strings.ToLower(tag), lower) {
				score += 3
				break
			}
		}
		if score == 0 {
			score = 1
		}
		results = append(results, model.SearchResult{Document: d, Score: score})
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Document.UpdatedAt.After(results[j].Document.UpdatedAt)
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}
