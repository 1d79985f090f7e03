package utils

import (
	"encoding/json"
	"net/http"

	"candil-egov/internal/apperr"
)

// JSON writes v with the given status. Encoding failures are past the point
// of recovery once the header went out, so they are dropped.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// JSONError writes an error body with an explicit handler-chosen message.
func JSONError(w http.ResponseWriter, message string, status int) {
	JSON(w, status, map[string]string{"error": message})
}

// WriteError maps a coded error to its HTTP status. Handlers use it when
// passing through service or store errors untouched.
func WriteError(w http.ResponseWriter, err error) {
	code := apperr.CodeOf(err)
	JSON(w, apperr.HTTPStatus(code), map[string]string{
		"error": apperr.MessageOf(err),
		"code":  string(code),
	})
}

// PageResponse is the envelope every paginated listing responds with.
type PageResponse struct {
	Page          int   `json:"page"`
	PageSize      int   `json:"page_size"`
	TotalElements int64 `json:"total_elements"`
	Items         any   `json:"items"`
}

func JSONPage(w http.ResponseWriter, status int, items any, page, pageSize int, total int64) {
	JSON(w, status, PageResponse{
		Page:          page,
		PageSize:      pageSize,
		TotalElements: total,
		Items:         items,
	})
}
