package handler

import (
	"net/http"

	"github.com/kiranshivaraju/subrelay/internal/api/response"
)

type infoResponse struct {
	Service   string            `json:"service"`
	Version   string            `json:"version"`
	Endpoints map[string]string `json:"endpoints"`
}

// NewInfoHandler returns an http.HandlerFunc for GET / describing the API.
func NewInfoHandler(version string) http.HandlerFunc {
	body := infoResponse{
		Service: "subrelay",
		Version: version,
		Endpoints: map[string]string{
			"POST /api/process":      "submit a video for localization",
			"GET /api/status":        "current job status",
			"GET /api/status/stream": "websocket stream of job status",
			"GET /api/health":        "service health",
			"GET /metrics":           "prometheus metrics",
		},
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, body)
	}
}
