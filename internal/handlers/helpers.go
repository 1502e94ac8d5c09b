// Package handlers — тонкий HTTP-слой над сервисами движка:
// декодировать запрос, позвать сервис, закодировать ответ.
package handlers

import (
	"MindVault/internal/storage"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"
)

// writeJSON сериализует ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorBody — единый формат ошибки API.
type errorBody struct {
	Error string `json:"error"`
}

// writeError маппит таксономию ошибок движка на HTTP-статусы.
func writeError(w http.ResponseWriter, logger *zap.SugaredLogger, err error) {
	var (
		valErr  *storage.ValidationError
		nfErr   *storage.NotFoundError
		circErr *storage.CircularReferenceError
		permErr *storage.PermissionDeniedError
	)
	switch {
	case errors.As(err, &valErr):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case errors.As(err, &nfErr):
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
	case errors.As(err, &circErr):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
	case errors.As(err, &permErr):
		writeJSON(w, http.StatusForbidden, errorBody{Error: err.Error()})
	default:
		logger.Errorw("internal error", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

// decodeBody читает JSON-тело запроса в dst.
func decodeBody(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return &storage.ValidationError{Field: "body", Reason: "invalid JSON: " + err.Error()}
	}
	return nil
}
