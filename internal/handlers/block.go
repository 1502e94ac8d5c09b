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

// BlockHandler обрабатывает запросы к блокам.
type BlockHandler struct {
	Blocks *service.BlockService
	Logger *zap.SugaredLogger
}

// NewBlockHandler создаёт хендлер блоков.
func NewBlockHandler(blocks *service.BlockService, logger *zap.SugaredLogger) *BlockHandler {
	return &BlockHandler{Blocks: blocks, Logger: logger}
}

type createBlockRequest struct {
	DocumentID string            `json:"document_id"`
	ParentID   *string           `json:"parent_id,omitempty"`
	Type       string            `json:"type"`
	Content    json.RawMessage   `json:"content,omitempty"`
	Properties map[string]string `json:"properties,omitempty"`
	SortOrder  *int64            `json:"sort_order,omitempty"`
}

// Create — POST /api/blocks.
func (h *BlockHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createBlockRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	uid, _ := middleware.GetUserIDFromContext(r.Context())
	block, err := h.Blocks.CreateBlock(r.Context(), model.CreateBlockInput{
		DocumentID: req.DocumentID,
		ParentID:   req.ParentID,
		Type:       model.BlockType(req.Type),
		Content:    req.Content,
		Properties: req.Properties,
		SortOrder:  req.SortOrder,
		CreatedBy:  uid,
	})
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, block)
}

// Get — GET /api/blocks/{id}.
func (h *BlockHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	block, err := h.Blocks.GetBlockByID(r.Context(), id)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	if block == nil {
		writeError(w, h.Logger, &storage.NotFoundError{Entity: "block", ID: id})
		return
	}
	writeJSON(w, http.StatusOK, block)
}

type updateBlockRequest struct {
	Type       *string           `json:"type,omitempty"`
	Content    json.RawMessage   `json:"content,omitempty"`
	Properties map[string]string `json:"properties,omitempty"`
	SortOrder  *int64            `json:"sort_order,omitempty"`
}

// Update — PUT /api/blocks/{id}.
func (h *BlockHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateBlockRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	uid, _ := middleware.GetUserIDFromContext(r.Context())
	in := model.UpdateBlockInput{
		Content:    req.Content,
		Properties: req.Properties,
		SortOrder:  req.SortOrder,
		UpdatedBy:  uid,
	}
	if req.Type != nil {
		t := model.BlockType(*req.Type)
		in.Type = &t
	}
	block, err := h.Blocks.UpdateBlock(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, block)
}

// Delete — DELETE /api/blocks/{id}: мягкое удаление всего поддерева.
func (h *BlockHandler) Delete(w http.ResponseWriter, r *http.Request) {
	uid, _ := middleware.GetUserIDFromContext(r.Context())
	if err := h.Blocks.DeleteBlock(r.Context(), chi.URLParam(r, "id"), uid); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Move — POST /api/blocks/{id}/move.
func (h *BlockHandler) Move(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	if err := h.Blocks.MoveBlock(r.Context(), chi.URLParam(r, "id"), req.NewParentID, req.SortOrder); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Children — GET /api/blocks/{id}/children.
func (h *BlockHandler) Children(w http.ResponseWriter, r *http.Request) {
	blocks, err := h.Blocks.GetChildBlocks(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, blocks)
}

// ByDocument — GET /api/documents/{id}/blocks с фильтрами.
func (h *BlockHandler) ByDocument(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := model.QueryBlocksOptions{DocumentID: chi.URLParam(r, "id")}
	if v := q.Get("parent_id"); v != "" {
		opts.ParentID = &v
	}
	if v := q.Get("type"); v != "" {
		t := model.BlockType(v)
		opts.Type = &t
	}
	opts.Offset, _ = strconv.Atoi(q.Get("offset"))
	opts.Limit, _ = strconv.Atoi(q.Get("limit"))

	blocks, err := h.Blocks.QueryBlocks(r.Context(), opts)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, blocks)
}
