/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package healthcheck

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/trustbloc/logutil-go/pkg/log"
)

var logger = log.New("healthcheck")

// Endpoint is the path the health check handler is served on.
const Endpoint = "/healthcheck"

const (
	statusSuccess      = "success"
	statusNotConnected = "not connected"
)

type pubSub interface {
	IsConnected() bool
}

type db interface {
	Ping() error
}

// Handler implements a health check HTTP handler.
type Handler struct {
	pubSub pubSub
	db     db
}

// NewHandler returns a new health check handler. A nil db skips the
// database check (the in-memory provider has nothing to ping).
func NewHandler(pubSub pubSub, db db) *Handler {
	return &Handler{pubSub: pubSub, db: db}
}

type response struct {
	Status      string    `json:"status"`
	MQStatus    string    `json:"mqStatus,omitempty"`
	DBStatus    string    `json:"dbStatus,omitempty"`
	CurrentTime time.Time `json:"currentTime"`
}

// ServeHTTP returns the health of the server's message queue and
// database connections.
func (h *Handler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	resp := &response{
		Status:      statusSuccess,
		CurrentTime: time.Now(),
	}

	status := http.StatusOK

	if h.pubSub != nil {
		if h.pubSub.IsConnected() {
			resp.MQStatus = statusSuccess
		} else {
			resp.MQStatus = statusNotConnected
			resp.Status = statusNotConnected
			status = http.StatusServiceUnavailable
		}
	}

	if h.db != nil {
		if err := h.db.Ping(); err != nil {
			resp.DBStatus = err.Error()
			resp.Status = statusNotConnected
			status = http.StatusServiceUnavailable
		} else {
			resp.DBStatus = statusSuccess
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Error("Error writing health check response", log.WithError(err))
	}
}
