package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-latch-core/internal/event"
	"github.com/nerrad567/gray-latch-core/internal/lock"
	"github.com/nerrad567/gray-latch-core/internal/reconcile"
	"github.com/nerrad567/gray-latch-core/internal/slot"
)

// slotResponse is a slot with its derived sync status attached.
// The sync status is recomputed on every read, never stored.
type slotResponse struct {
	slot.Slot
	SyncStatus reconcile.SyncState `json:"sync_status"`
}

func toSlotResponse(s *slot.Slot) slotResponse {
	return slotResponse{Slot: *s, SyncStatus: reconcile.SyncStatus(s)}
}

// handleListSlots returns all slots with derived sync status.
func (s *Server) handleListSlots(w http.ResponseWriter, r *http.Request) {
	slots, err := s.slots.All(r.Context())
	if err != nil {
		s.logger.Error("listing slots", "error", err)
		writeInternalError(w, "failed to list slots")
		return
	}

	resp := make([]slotResponse, 0, len(slots))
	for i := range slots {
		resp = append(resp, toSlotResponse(&slots[i]))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"slots": resp,
		"count": len(resp),
	})
}

// handleGetSlot returns a single slot by number.
func (s *Server) handleGetSlot(w http.ResponseWriter, r *http.Request) {
	id, ok := slotIDParam(w, r)
	if !ok {
		return
	}

	sl, err := s.slots.Get(r.Context(), id)
	if err != nil {
		s.writeSlotError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toSlotResponse(sl))
}

// handleSaveSlot applies a partial update to a slot's desired configuration
// and pushes the result to the lock. The ?override=true query parameter
// forces the push past the occupied-slot guard.
//
// The push is best-effort: once the save is durable the request succeeds,
// and a failed push shows up as sync_status push_required in the response.
// POST /slots/{id}/push surfaces push errors directly.
func (s *Server) handleSaveSlot(w http.ResponseWriter, r *http.Request) {
	id, ok := slotIDParam(w, r)
	if !ok {
		return
	}

	var patch slot.Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if patch.IsZero() {
		writeBadRequest(w, "empty patch")
		return
	}
	if err := slot.ValidatePatch(&patch, s.bounds); err != nil {
		s.writeSlotError(w, err)
		return
	}

	if _, err := s.slots.Save(r.Context(), id, &patch); err != nil {
		s.writeSlotError(w, err)
		return
	}
	if s.events != nil {
		s.events.Publish(event.New(event.TypeSlotSaved, id, nil))
	}

	override := r.URL.Query().Get("override") == "true"
	if err := s.syncer.Push(r.Context(), id, override); err != nil {
		s.logger.Warn("push after save failed", "slot", id, "error", err)
	}

	sl, err := s.slots.Get(r.Context(), id)
	if err != nil {
		s.writeSlotError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toSlotResponse(sl))
}

// handleClearSlot clears a slot locally and on the device.
func (s *Server) handleClearSlot(w http.ResponseWriter, r *http.Request) {
	id, ok := slotIDParam(w, r)
	if !ok {
		return
	}

	if err := s.syncer.ClearSlot(r.Context(), id); err != nil {
		s.writeSlotError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handlePushSlot pushes a slot's desired state to the lock.
func (s *Server) handlePushSlot(w http.ResponseWriter, r *http.Request) {
	id, ok := slotIDParam(w, r)
	if !ok {
		return
	}

	override := r.URL.Query().Get("override") == "true"
	if err := s.syncer.Push(r.Context(), id, override); err != nil {
		s.writeSlotError(w, err)
		return
	}

	sl, err := s.slots.Get(r.Context(), id)
	if err != nil {
		s.writeSlotError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toSlotResponse(sl))
}

// handlePullSlot reads a slot from the device and refreshes the mirror.
func (s *Server) handlePullSlot(w http.ResponseWriter, r *http.Request) {
	id, ok := slotIDParam(w, r)
	if !ok {
		return
	}

	sl, err := s.syncer.Pull(r.Context(), id)
	if err != nil {
		s.writeSlotError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toSlotResponse(sl))
}

// handlePullAll refreshes the mirror for every slot and returns the result.
func (s *Server) handlePullAll(w http.ResponseWriter, r *http.Request) {
	if err := s.syncer.PullAll(r.Context()); err != nil {
		s.writeSlotError(w, err)
		return
	}

	s.handleListSlots(w, r)
}

// handleSlotHistory returns a slot's access events, most recent first.
// The limit query parameter caps the page size.
func (s *Server) handleSlotHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := slotIDParam(w, r)
	if !ok {
		return
	}

	if s.history == nil {
		writeInternalError(w, "access history not configured")
		return
	}

	// Confirm the slot exists so unknown numbers 404 instead of
	// returning an empty list.
	if _, err := s.slots.Get(r.Context(), id); err != nil {
		s.writeSlotError(w, err)
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeBadRequest(w, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	events, err := s.history.ListBySlot(r.Context(), id, limit)
	if err != nil {
		s.logger.Error("listing access history", "slot", id, "error", err)
		writeInternalError(w, "failed to list access history")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"count":  len(events),
	})
}

// slotIDParam parses the {id} route parameter. On failure it writes a 400
// response and returns ok=false.
func slotIDParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeBadRequest(w, "slot id must be an integer")
		return 0, false
	}
	return id, true
}

// writeSlotError maps domain errors to HTTP responses.
func (s *Server) writeSlotError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, slot.ErrSlotNotFound):
		writeNotFound(w, err.Error())
	case errors.Is(err, slot.ErrDuplicateCode):
		writeError(w, http.StatusConflict, ErrCodeConflict, err.Error())
	case errors.Is(err, reconcile.ErrValidation), isSlotValidationError(err):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
	case errors.Is(err, reconcile.ErrSlotProtected):
		writeError(w, http.StatusConflict, ErrCodeSlotProtected, err.Error())
	case errors.Is(err, reconcile.ErrVerificationFailed):
		writeError(w, http.StatusBadGateway, ErrCodeSyncFailed, err.Error())
	case errors.Is(err, lock.ErrTimeout):
		writeError(w, http.StatusGatewayTimeout, ErrCodeLockTimeout, err.Error())
	case errors.Is(err, lock.ErrUnavailable), errors.Is(err, lock.ErrMalformedResponse):
		writeError(w, http.StatusServiceUnavailable, ErrCodeLockUnavailable, err.Error())
	default:
		s.logger.Error("slot operation failed", "error", err)
		writeInternalError(w, "internal server error")
	}
}

// isSlotValidationError reports whether the error is a slot validation failure.
func isSlotValidationError(err error) bool {
	return errors.Is(err, slot.ErrInvalidSlot) ||
		errors.Is(err, slot.ErrInvalidCode) ||
		errors.Is(err, slot.ErrInvalidStatus) ||
		errors.Is(err, slot.ErrInvalidCredentialType) ||
		errors.Is(err, slot.ErrInvalidSchedule) ||
		errors.Is(err, slot.ErrInvalidName)
}
