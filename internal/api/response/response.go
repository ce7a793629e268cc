// Package response writes the JSON bodies served by the control API. Bodies
// are not enveloped: the browser form reads status fields at the top level.
package response

import (
	"encoding/json"
	"net/http"

	"github.com/kiranshivaraju/subrelay/pkg/models"
)

type errorBody struct {
	Error string           `json:"error"`
	Code  string           `json:"code"`
	Kind  models.ErrorKind `json:"kind,omitempty"`
}

// Ack is the minimal body returned for an accepted submission.
type Ack struct {
	Message string `json:"message"`
	JobID   string `json:"job_id"`
}

func JSON(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, data)
}

func Accepted(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusAccepted, data)
}

// Status writes data with an explicit status code.
func Status(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, data)
}

func Error(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: message, Code: code})
}

// Rejected writes an error body that also names the job error kind, for
// submissions the service turned down.
func Rejected(w http.ResponseWriter, status int, code string, kind models.ErrorKind, message string) {
	writeJSON(w, status, errorBody{Error: message, Code: code, Kind: kind})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
