package handlers

import (
	"MindVault/internal/middleware"
	"MindVault/internal/model"
	"MindVault/internal/service"
	"MindVault/internal/storage"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// DocumentHandler обрабатывает запросы к документам.
type DocumentHandler struct {
	Docs     *service.DocumentService
	Versions *service.VersionService
	Logger   *zap.SugaredLogger
}

// NewDocumentHandler создаёт хендлер документов.
func NewDocumentHandler(docs *service.DocumentService, versions *service.VersionService, logger *zap.SugaredLogger) *DocumentHandler {
	return &DocumentHandler{Docs: docs, Versions: versions, Logger: logger}
}

// createDocumentRequest — тело POST /api/documents.
type createDocumentRequest struct {
	Title      string            `json:"title"`
	Content    json.RawMessage   `json:"content"`
	Path       string            `json:"path"`
	ParentID   *string           `json:"parent_id,omitempty"`
	Icon       string            `json:"icon,omitempty"`
	Cover      string            `json:"cover,omitempty"`
	Tags       []string          `json:"tags,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	IsTemplate bool              `json:"is_template,omitempty"`
	TemplateID *string           `json:"template_id,omitempty"`
	SortOrder  *int64            `json:"sort_order,omitempty"`
}

// Create — POST /api/documents.
func (h *DocumentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createDocumentRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	uid, _ := middleware.GetUserIDFromContext(r.Context())
	doc, err := h.Docs.CreateDocument(r.Context(), model.CreateDocumentInput{
		Title:      req.Title,
		Content:    req.Content,
		Path:       req.Path,
		ParentID:   req.ParentID,
		Icon:       req.Icon,
		Cover:      req.Cover,
		Tags:       req.Tags,
		Metadata:   req.Metadata,
		IsTemplate: req.IsTemplate,
		TemplateID: req.TemplateID,
		SortOrder:  req.SortOrder,
		CreatedBy:  uid,
	})
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

// Get — GET /api/documents/{id}. Отсутствующий или удалённый документ — 404.
func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	doc, err := h.Docs.GetDocumentByID(r.Context(), id)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	if doc == nil {
		writeError(w, h.Logger, &storage.NotFoundError{Entity: "document", ID: id})
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// Query — GET /api/documents с фильтрами в query-параметрах.
func (h *DocumentHandler) Query(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := model.QueryDocumentsOptions{
		Search:   q.Get("search"),
		SortBy:   q.Get("sort_by"),
		SortDesc: q.Get("sort_dir") == "desc",
	}
	if v := q.Get("parent_id"); v != "" {
		opts.ParentID = &v
	}
	if v := q.Get("status"); v != "" {
		st := model.DocumentStatus(v)
		if !st.Valid() {
			writeError(w, h.Logger, &storage.ValidationError{Field: "status", Reason: "unknown status"})
			return
		}
		opts.Status = &st
	}
	if v := q.Get("is_template"); v != "" {
		b := v == "true" || v == "1"
		opts.IsTemplate = &b
	}
	opts.Offset, _ = strconv.Atoi(q.Get("offset"))
	opts.Limit, _ = strconv.Atoi(q.Get("limit"))

	docs, err := h.Docs.QueryDocuments(r.Context(), opts)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

// updateDocumentRequest — тело PUT /api/documents/{id}.
// AutoSaveVersion=true дополнительно пишет автосохранение в журнал версий.
type updateDocumentRequest struct {
	Title           *string               `json:"title,omitempty"`
	Content         json.RawMessage       `json:"content,omitempty"`
	Status          *model.DocumentStatus `json:"status,omitempty"`
	Icon            *string               `json:"icon,omitempty"`
	Cover           *string               `json:"cover,omitempty"`
	Tags            []string              `json:"tags,omitempty"`
	Metadata        map[string]string     `json:"metadata,omitempty"`
	IsTemplate      *bool                 `json:"is_template,omitempty"`
	SortOrder       *int64                `json:"sort_order,omitempty"`
	AutoSaveVersion bool                  `json:"auto_save_version,omitempty"`
}

// Update — PUT /api/documents/{id}.
func (h *DocumentHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req updateDocumentRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	uid, _ := middleware.GetUserIDFromContext(r.Context())
	if ok, err := h.Docs.CheckDocumentAccess(r.Context(), id, uid, model.ActionWrite); err != nil {
		writeError(w, h.Logger, err)
		return
	} else if !ok {
		writeError(w, h.Logger, &storage.PermissionDeniedError{UserID: uid, Action: "write"})
		return
	}
	doc, err := h.Docs.UpdateDocument(r.Context(), id, model.UpdateDocumentInput{
		Title:      req.Title,
		Content:    req.Content,
		Status:     req.Status,
		Icon:       req.Icon,
		Cover:      req.Cover,
		Tags:       req.Tags,
		Metadata:   req.Metadata,
		IsTemplate: req.IsTemplate,
		SortOrder:  req.SortOrder,
		UpdatedBy:  uid,
	})
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	if req.AutoSaveVersion && req.Content != nil {
		if _, err := h.Versions.CreateVersion(r.Context(), model.CreateVersionInput{
			EntityID:   id,
			EntityType: model.EntityDocument,
			Content:    req.Content,
			ChangeType: model.ChangeUpdate,
			IsAutoSave: true,
			CreatedBy:  uid,
		}); err != nil {
			h.Logger.Warnw("auto-save version failed", "id", id, "error", err)
		}
	}
	writeJSON(w, http.StatusOK, doc)
}

// Delete — DELETE /api/documents/{id}: мягкое удаление.
func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	uid, _ := middleware.GetUserIDFromContext(r.Context())
	if ok, err := h.Docs.CheckDocumentAccess(r.Context(), id, uid, model.ActionDelete); err != nil {
		writeError(w, h.Logger, err)
		return
	} else if !ok {
		writeError(w, h.Logger, &storage.PermissionDeniedError{UserID: uid, Action: "delete"})
		return
	}
	if err := h.Docs.DeleteDocument(r.Context(), id, uid); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// moveRequest — тело POST /api/documents/{id}/move.
type moveRequest struct {
	NewParentID *string `json:"new_parent_id"`
	SortOrder   *int64  `json:"sort_order,omitempty"`
}

// Move — POST /api/documents/{id}/move.
func (h *DocumentHandler) Move(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req moveRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	if err := h.Docs.MoveDocument(r.Context(), id, req.NewParentID, req.SortOrder); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// duplicateRequest — тело POST /api/documents/{id}/duplicate.
type duplicateRequest struct {
	NewTitle        string `json:"new_title,omitempty"`
	IncludeChildren bool   `json:"include_children,omitempty"`
	CopyAsTemplate  bool   `json:"copy_as_template,omitempty"`
}

// Duplicate — POST /api/documents/{id}/duplicate.
func (h *DocumentHandler) Duplicate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req duplicateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	uid, _ := middleware.GetUserIDFromContext(r.Context())
	doc, err := h.Docs.DuplicateDocument(r.Context(), id, model.DuplicateOptions{
		NewTitle:        req.NewTitle,
		IncludeChildren: req.IncludeChildren,
		CopyAsTemplate:  req.CopyAsTemplate,
		CreatedBy:       uid,
	})
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

// Children — GET /api/documents/{id}/children.
func (h *DocumentHandler) Children(w http.ResponseWriter, r *http.Request) {
	docs, err := h.Docs.GetChildDocuments(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

// Path — GET /api/documents/{id}/path: цепочка от корня до документа.
func (h *DocumentHandler) Path(w http.ResponseWriter, r *http.Request) {
	chain, err := h.Docs.GetDocumentPath(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, chain)
}

// Roots — GET /api/documents/roots.
func (h *DocumentHandler) Roots(w http.ResponseWriter, r *http.Request) {
	docs, err := h.Docs.GetRootDocuments(r.Context())
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

// ByTag — GET /api/documents/by-tag/{tag}.
func (h *DocumentHandler) ByTag(w http.ResponseWriter, r *http.Request) {
	docs, err := h.Docs.GetDocumentsByTag(r.Context(), chi.URLParam(r, "tag"))
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

// Tags — GET /api/documents/tags: гистограмма использования тегов.
func (h *DocumentHandler) Tags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.Docs.GetAllTags(r.Context())
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, tags)
}

// Search — GET /api/documents/search?q=...&limit=...
func (h *DocumentHandler) Search(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.Docs.SearchDocuments(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// Access — GET /api/documents/{id}/access?action=read.
func (h *DocumentHandler) Access(w http.ResponseWriter, r *http.Request) {
	uid, _ := middleware.GetUserIDFromContext(r.Context())
	allowed, err := h.Docs.CheckDocumentAccess(r.Context(), chi.URLParam(r, "id"), uid,
		model.AccessAction(r.URL.Query().Get("action")))
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"allowed": allowed})
}

// shareRequest — тело POST /api/documents/{id}/share|unshare.
type shareRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role,omitempty"`
}

// Share — POST /api/documents/{id}/share.
func (h *DocumentHandler) Share(w http.ResponseWriter, r *http.Request) {
	var req shareRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	uid, _ := middleware.GetUserIDFromContext(r.Context())
	err := h.Docs.ShareDocument(r.Context(), chi.URLParam(r, "id"), req.UserID,
		model.ShareRole(req.Role), uid)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Unshare — POST /api/documents/{id}/unshare.
func (h *DocumentHandler) Unshare(w http.ResponseWriter, r *http.Request) {
	var req shareRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	uid, _ := middleware.GetUserIDFromContext(r.Context())
	if err := h.Docs.UnshareDocument(r.Context(), chi.URLParam(r, "id"), req.UserID, uid); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
