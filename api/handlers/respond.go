package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"warroom/core/apperr"
)

type meta struct {
	Timestamp string `json:"timestamp"`
}

type envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *errorBody `json:"error,omitempty"`
	Meta    *meta      `json:"meta,omitempty"`
}

type errorBody struct {
	Code    apperr.Code `json:"code"`
	Message string      `json:"message"`
	Status  int         `json:"status"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// OK writes the success envelope.
func OK(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{
		Success: true,
		Data:    data,
		Meta:    &meta{Timestamp: time.Now().UTC().Format("2006-01-02T15:04:05.000Z07:00")},
	})
}

// Fail maps err onto the error envelope. Errors without a code become 500.
func Fail(w http.ResponseWriter, err error) {
	e := apperr.As(err)
	status := apperr.HTTPStatus(e)
	msg := e.Message
	if e.Code == apperr.CodeInternal {
		msg = "internal server error"
	}
	writeJSON(w, status, envelope{
		Error: &errorBody{Code: e.Code, Message: msg, Status: status},
	})
}

func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return apperr.Validation("request body is required")
	}
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return apperr.Validation("invalid JSON body")
	}
	return nil
}

const maxBodyBytes = 1 << 20
