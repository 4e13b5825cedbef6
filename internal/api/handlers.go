/**
 * @description
 * This file defines the HTTP handlers for the ledger-service's thin API
 * surface: triggering an on-demand sync for one member and reading the
 * pipeline status of one account's run. Both sit behind the internal API key.
 */

package api

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/google/uuid"

	"github.com/moabank/ledger-service/internal/app"
	"github.com/moabank/ledger-service/internal/cache"
)

// Handlers holds the dependencies for the API handlers.
type Handlers struct {
	driver *app.FetchDriver
	cache  cache.Pipeline
}

// NewHandlers creates the API handlers.
func NewHandlers(driver *app.FetchDriver, pipelineCache cache.Pipeline) *Handlers {
	return &Handlers{driver: driver, cache: pipelineCache}
}

type syncRequest struct {
	MemberID string `json:"member_id"`
}

type syncResponse struct {
	Dispatched int `json:"dispatched"`
}

// SyncHandler dispatches an immediate fetch run for one member's accounts.
func (h *Handlers) SyncHandler(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	memberID, err := uuid.Parse(req.MemberID)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid member_id")
		return
	}

	dispatched, err := h.driver.RunForMember(r.Context(), memberID)
	if err != nil {
		log.Printf("level=error component=api msg=\"sync dispatch failed\" member_id=%s err=%v", memberID, err)
		respondError(w, http.StatusInternalServerError, "failed to dispatch sync")
		return
	}

	respondJSON(w, http.StatusAccepted, syncResponse{Dispatched: dispatched})
}

type statusResponse struct {
	Status string `json:"status"`
}

// SyncStatusHandler reports one account's pipeline status from the cache.
func (h *Handlers) SyncStatusHandler(w http.ResponseWriter, r *http.Request) {
	memberID, err := uuid.Parse(r.URL.Query().Get("member_id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid member_id")
		return
	}
	accountNumber := r.URL.Query().Get("account")
	if accountNumber == "" {
		respondError(w, http.StatusBadRequest, "account is required")
		return
	}

	status, ok, err := h.cache.GetStatus(r.Context(), memberID, accountNumber)
	if err != nil {
		log.Printf("level=error component=api msg=\"status read failed\" member_id=%s err=%v", memberID, err)
		respondError(w, http.StatusInternalServerError, "failed to read status")
		return
	}
	if !ok {
		respondError(w, http.StatusNotFound, "no run in progress")
		return
	}

	respondJSON(w, http.StatusOK, statusResponse{Status: string(status)})
}

func respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
