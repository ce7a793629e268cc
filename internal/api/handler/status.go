package handler

import (
	"net/http"

	"github.com/kiranshivaraju/subrelay/internal/api/response"
	"github.com/kiranshivaraju/subrelay/pkg/models"
)

// StatusReader returns the current job snapshot.
type StatusReader interface {
	Status() models.JobView
}

// NewStatusHandler returns an http.HandlerFunc for GET /api/status. It only
// reads the snapshot, so any polling rate is safe.
func NewStatusHandler(svc StatusReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		response.JSON(w, models.NewStatusResponse(svc.Status()))
	}
}
