package server

import (
	"interest-chat/errors"
	"io"
	"net/http"

	"github.com/goccy/go-json"
)

const maxBodyBytes = 1 << 20

// Response is the envelope of every REST answer.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func ok(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, Response{Success: true, Message: message, Data: data})
}

// fail writes the public face of err. Internal failures are logged with their detail and answered generically.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := errors.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		s.log.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	} else {
		s.log.Debug("Request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, Response{Success: false, Message: errors.PublicMessage(err)})
}

// decode reads a bounded JSON body into dst. Unknown fields are ignored.
func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil && err != io.EOF {
		return errors.ErrInvalidBody
	}
	return nil
}
