package handlers

import (
	"MindVault/internal/service"
	"MindVault/internal/storage/sqlite"
	"net/http"

	"go.uber.org/zap"
)

// SyncHandler обрабатывает бэкапы, импорт/экспорт и служебные ручки.
type SyncHandler struct {
	Service *service.SyncService
	DB      *sqlite.DB
	Logger  *zap.SugaredLogger
}

// NewSyncHandler создаёт хендлер синхронизации.
func NewSyncHandler(sync *service.SyncService, db *sqlite.DB, logger *zap.SugaredLogger) *SyncHandler {
	return &SyncHandler{Service: sync, DB: db, Logger: logger}
}

// Sync — POST /api/sync: один прогон синхронизации.
func (h *SyncHandler) Sync(w http.ResponseWriter, r *http.Request) {
	report, err := h.Service.Sync(r.Context())
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// Backup — POST /api/sync/backup.
func (h *SyncHandler) Backup(w http.ResponseWriter, r *http.Request) {
	path, err := h.Service.CreateBackup(r.Context())
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"path": path})
}

type restoreRequest struct {
	Path string `json:"path"`
}

// Restore — POST /api/sync/restore.
func (h *SyncHandler) Restore(w http.ResponseWriter, r *http.Request) {
	var req restoreRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	if err := h.Service.RestoreBackup(r.Context(), req.Path); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type exportRequest struct {
	Format          string `json:"format"`
	IncludeVersions bool   `json:"include_versions,omitempty"`
	IncludeStats    bool   `json:"include_stats,omitempty"`
	IncludeMetadata bool   `json:"include_metadata,omitempty"`
	OutputPath      string `json:"output_path,omitempty"`
}

// Export — POST /api/sync/export.
func (h *SyncHandler) Export(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	path, err := h.Service.ExportData(r.Context(), service.ExportOptions{
		Format:          service.ExportFormat(req.Format),
		IncludeVersions: req.IncludeVersions,
		IncludeStats:    req.IncludeStats,
		IncludeMetadata: req.IncludeMetadata,
		OutputPath:      req.OutputPath,
	})
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"path": path})
}

type importRequest struct {
	Path string `json:"path"`
}

// Import — POST /api/sync/import.
func (h *SyncHandler) Import(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	res, err := h.Service.ImportData(r.Context(), req.Path)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Integrity — GET /api/sync/integrity.
func (h *SyncHandler) Integrity(w http.ResponseWriter, r *http.Request) {
	report, err := h.Service.CheckDataIntegrity(r.Context())
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// Health — GET /api/health: живость БД.
func (h *SyncHandler) Health(w http.ResponseWriter, r *http.Request) {
	if !h.DB.HealthCheck(r.Context()) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Stats — GET /api/stats: агрегированная статистика хранилища.
func (h *SyncHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.DB.Stats(r.Context())
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
