package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"db-schema-keeper/internal/models"
	"db-schema-keeper/internal/services"
)

// PlanHandler reports what a full reset would remove without removing it.
func (h *Handler) PlanHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		sendErrorResponse(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	plan, err := h.resetter.PlanReset(r.Context())
	if err != nil {
		h.sendServiceError(w, err)
		return
	}

	sendSuccessResponse(w, "", plan)
}

func (h *Handler) ResetForeignKeysHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		sendErrorResponse(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := h.resetter.RemoveAllForeignKeys(r.Context()); err != nil {
		h.sendServiceError(w, err)
		return
	}

	sendSuccessResponse(w, "All foreign keys removed", nil)
}

// ResetIndexesHandler removes foreign keys before indexes, since MySQL keeps
// any index a live foreign key depends on.
func (h *Handler) ResetIndexesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		sendErrorResponse(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := h.resetter.RemoveAllKeys(r.Context()); err != nil {
		h.sendServiceError(w, err)
		return
	}

	sendSuccessResponse(w, "All foreign keys and non-primary indexes removed", nil)
}

// ResetTableHandler resets one declared table. Without a mode query the
// model's own sync mode applies. With async=true the reset runs in the
// background and the request returns 202 at once.
func (h *Handler) ResetTableHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		sendErrorResponse(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	table := r.PathValue("table")
	model, ok := h.models[table]
	if !ok {
		h.sendServiceError(w, fmt.Errorf("%w: no model declared for %s", services.ErrUnknownTable, table))
		return
	}

	mode := model.Sync
	if q := r.URL.Query().Get("mode"); q != "" {
		parsed, err := models.ParseSyncMode(q)
		if err != nil {
			h.sendServiceError(w, fmt.Errorf("%w: %v", services.ErrInvalidSyncMode, err))
			return
		}
		mode = parsed
	}

	async, _ := strconv.ParseBool(r.URL.Query().Get("async"))
	if async {
		h.resetter.ResetTableAsync(r.Context(), model, mode)
		sendResponse(w, http.StatusAccepted, "Table reset started", map[string]string{
			"table": table,
			"mode":  string(mode),
		})
		return
	}

	if err := h.resetter.ResetTable(r.Context(), model, mode); err != nil {
		h.sendServiceError(w, err)
		return
	}

	sendSuccessResponse(w, "Table reset completed", map[string]string{
		"table": table,
		"mode":  string(mode),
	})
}
