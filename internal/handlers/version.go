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

// VersionHandler обрабатывает журнал версий.
type VersionHandler struct {
	Versions *service.VersionService
	Logger   *zap.SugaredLogger
}

// NewVersionHandler создаёт хендлер версий.
func NewVersionHandler(versions *service.VersionService, logger *zap.SugaredLogger) *VersionHandler {
	return &VersionHandler{Versions: versions, Logger: logger}
}

// entityParams разбирает {entityType}/{entityID} из URL.
func entityParams(r *http.Request) (string, model.EntityType, error) {
	et := model.EntityType(chi.URLParam(r, "entityType"))
	if !et.Valid() {
		return "", "", &storage.ValidationError{Field: "entity_type", Reason: "must be document or block"}
	}
	return chi.URLParam(r, "entityID"), et, nil
}

type createVersionRequest struct {
	EntityID          string          `json:"entity_id"`
	EntityType        string          `json:"entity_type"`
	Content           json.RawMessage `json:"content"`
	ChangeDescription string          `json:"change_description,omitempty"`
	ChangeType        string          `json:"change_type"`
	IsAutoSave        bool            `json:"is_auto_save,omitempty"`
}

// Create — POST /api/versions.
func (h *VersionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createVersionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	uid, _ := middleware.GetUserIDFromContext(r.Context())
	ver, err := h.Versions.CreateVersion(r.Context(), model.CreateVersionInput{
		EntityID:          req.EntityID,
		EntityType:        model.EntityType(req.EntityType),
		Content:           req.Content,
		ChangeDescription: req.ChangeDescription,
		ChangeType:        model.ChangeType(req.ChangeType),
		IsAutoSave:        req.IsAutoSave,
		CreatedBy:         uid,
	})
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, ver)
}

// History — GET /api/versions/{entityType}/{entityID}: новые сверху.
func (h *VersionHandler) History(w http.ResponseWriter, r *http.Request) {
	id, et, err := entityParams(r)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	history, err := h.Versions.GetVersionHistory(r.Context(), id, et)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

// Latest — GET /api/versions/{entityType}/{entityID}/latest.
func (h *VersionHandler) Latest(w http.ResponseWriter, r *http.Request) {
	id, et, err := entityParams(r)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	latest, err := h.Versions.GetLatestVersion(r.Context(), id, et)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"latest": latest})
}

// Compare — GET /api/versions/{entityType}/{entityID}/compare?from=1&to=2.
func (h *VersionHandler) Compare(w http.ResponseWriter, r *http.Request) {
	id, et, err := entityParams(r)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	from, err1 := strconv.ParseInt(r.URL.Query().Get("from"), 10, 64)
	to, err2 := strconv.ParseInt(r.URL.Query().Get("to"), 10, 64)
	if err1 != nil || err2 != nil {
		writeError(w, h.Logger, &storage.ValidationError{Field: "from/to", Reason: "must be integers"})
		return
	}
	diff, err := h.Versions.CompareVersions(r.Context(), id, et, from, to)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, diff)
}

type rollbackRequest struct {
	TargetVersion int64 `json:"target_version"`
}

// Rollback — POST /api/versions/{entityType}/{entityID}/rollback.
func (h *VersionHandler) Rollback(w http.ResponseWriter, r *http.Request) {
	id, et, err := entityParams(r)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	var req rollbackRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	uid, _ := middleware.GetUserIDFromContext(r.Context())
	ver, err := h.Versions.RollbackToVersion(r.Context(), id, et, req.TargetVersion, uid)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, ver)
}

type cleanupRequest struct {
	RetentionDays int `json:"retention_days"`
}

// Cleanup — POST /api/versions/cleanup: чистка старых автосохранений.
func (h *VersionHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	var req cleanupRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	removed, err := h.Versions.CleanupOldVersions(r.Context(), req.RetentionDays)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"removed": removed})
}
