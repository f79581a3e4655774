package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rogersnm/fieldsync/internal/logger"
	"github.com/rogersnm/fieldsync/internal/model"
	"github.com/rogersnm/fieldsync/internal/queue"
)

const (
	codeNotFound   = "not_found"
	codeConflict   = "conflict"
	codeBadRequest = "bad_request"
	codeInternal   = "internal"
	codeRetry      = "retry_failed"
)

// QueueStatus summarizes one queue for the status endpoint.
type QueueStatus struct {
	Depth    int  `json:"depth"`
	Draining bool `json:"draining"`
}

type StatusResponse struct {
	Online   bool             `json:"online"`
	Status   model.SyncStatus `json:"status"`
	Commands QueueStatus      `json:"commands"`
	Captures QueueStatus      `json:"captures"`
}

type connectivityRequest struct {
	Online *bool `json:"online"`
}

func writeData(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{"data": data})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{"code": code, "message": message},
	})
}

// writeQueueError maps queue sentinels onto HTTP statuses.
func writeQueueError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, queue.ErrItemNotFound):
		writeError(w, http.StatusNotFound, codeNotFound, err.Error())
	case errors.Is(err, queue.ErrDrainInProgress):
		writeError(w, http.StatusConflict, codeConflict, err.Error())
	default:
		logger.FromContext(r.Context()).Error("queue operation failed", "error", err)
		writeError(w, http.StatusInternalServerError, codeInternal, err.Error())
	}
}

func handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeData(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cmdDepth, err := s.commands.Len(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, codeInternal, err.Error())
		return
	}
	capDepth, err := s.captures.Len(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, codeInternal, err.Error())
		return
	}
	writeData(w, http.StatusOK, StatusResponse{
		Online:   s.monitor.Online(),
		Status:   s.monitor.Status(),
		Commands: QueueStatus{Depth: cmdDepth, Draining: s.commands.IsDraining()},
		Captures: QueueStatus{Depth: capDepth, Draining: s.captures.IsDraining()},
	})
}

// handleConnectivity is a manual override for when the probe is wrong about
// the network, e.g. a captive portal that answers health checks.
func (s *Server) handleConnectivity(w http.ResponseWriter, r *http.Request) {
	var req connectivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Online == nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, `body must be {"online": true|false}`)
		return
	}
	s.monitor.SetOnline(r.Context(), *req.Online)
	writeData(w, http.StatusOK, map[string]bool{"online": s.monitor.Online()})
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	s.monitor.TriggerSync(r.Context())
	writeData(w, http.StatusAccepted, map[string]string{"status": "scheduled"})
}

func (s *Server) handleListCaptures(w http.ResponseWriter, r *http.Request) {
	st, err := s.captures.Status(r.Context())
	if err != nil {
		writeQueueError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, st)
}

func (s *Server) handleRetryCapture(w http.ResponseWriter, r *http.Request) {
	err := s.captures.RetryItem(r.Context(), chi.URLParam(r, "id"))
	switch {
	case err == nil:
		writeData(w, http.StatusOK, map[string]string{"status": "delivered"})
	case errors.Is(err, queue.ErrItemNotFound), errors.Is(err, queue.ErrDrainInProgress):
		writeQueueError(w, r, err)
	default:
		// The attempt ran and failed; the item stays queued with the error recorded.
		writeError(w, http.StatusBadGateway, codeRetry, err.Error())
	}
}

func (s *Server) handleDeleteCapture(w http.ResponseWriter, r *http.Request) {
	if err := s.captures.DeleteItem(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeQueueError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListCommands(w http.ResponseWriter, r *http.Request) {
	items, err := s.commands.Items(r.Context())
	if err != nil {
		writeQueueError(w, r, err)
		return
	}
	if items == nil {
		items = []queue.Command{}
	}
	writeData(w, http.StatusOK, items)
}

func (s *Server) handleRetryCommand(w http.ResponseWriter, r *http.Request) {
	if err := s.commands.Retry(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeQueueError(w, r, err)
		return
	}
	s.monitor.TriggerSync(r.Context())
	writeData(w, http.StatusAccepted, map[string]string{"status": "scheduled"})
}

func (s *Server) handleDiscardCommand(w http.ResponseWriter, r *http.Request) {
	if err := s.commands.Discard(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeQueueError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
