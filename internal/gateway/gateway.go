// Package gateway is the HTTP edge: it translates REST calls into request/
// reply messages on the bus and relays the answers, mapping {status, message}
// failure replies onto HTTP status codes.
package gateway

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/nats-io/nats.go"
)

// Requester is the slice of *nats.Conn the gateway needs.
type Requester interface {
	RequestWithContext(ctx context.Context, subj string, data []byte) (*nats.Msg, error)
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// busError is the failure reply shape services put on the bus.
type busError struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{Error: message, Code: code})
}

func respondRaw(w http.ResponseWriter, status int, payload []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(payload); err != nil {
		log.Printf("failed to write response: %v", err)
	}
}

// relay sends one bus request and writes the reply through. A {status >= 400}
// reply becomes the matching HTTP error; anything else passes as-is.
func relay(ctx context.Context, w http.ResponseWriter, nc Requester, timeout time.Duration, subject string, req any, successStatus int) {
	payload, err := json.Marshal(req)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	msg, err := nc.RequestWithContext(reqCtx, subject, payload)
	if err != nil {
		log.Printf("bus request %s failed: %v", subject, err)
		respondError(w, http.StatusServiceUnavailable, "service_unavailable", "service unavailable")
		return
	}

	var fault busError
	if e2 := json.Unmarshal(msg.Data, &fault); e2 == nil && fault.Status >= 400 && fault.Message != "" {
		respondError(w, fault.Status, codeForStatus(fault.Status), fault.Message)
		return
	}

	respondRaw(w, successStatus, msg.Data)
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "invalid_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusBadGateway:
		return "upstream_error"
	default:
		return "internal_error"
	}
}
