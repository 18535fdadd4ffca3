package handlers

import (
	"encoding/json"
	"net/http"
)

type ConfigRequest struct {
	CronSchedule string `json:"cronSchedule,omitempty"`
}

func (h *Handler) StartMaintenanceHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		sendErrorResponse(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := h.maintenance.Start(); err != nil {
		h.sendServiceError(w, err)
		return
	}

	sendSuccessResponse(w, "Maintenance started", nil)
}

func (h *Handler) StopMaintenanceHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		sendErrorResponse(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := h.maintenance.Stop(); err != nil {
		h.sendServiceError(w, err)
		return
	}

	sendSuccessResponse(w, "Maintenance stopped", nil)
}

func (h *Handler) RunMaintenanceHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		sendErrorResponse(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := h.maintenance.TriggerReset(r.Context()); err != nil {
		h.sendServiceError(w, err)
		return
	}

	sendSuccessResponse(w, "Maintenance pass completed", h.maintenance.GetStatus())
}

func (h *Handler) StatusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		sendErrorResponse(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sendSuccessResponse(w, "", h.maintenance.GetStatus())
}

func (h *Handler) ConfigHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		sendErrorResponse(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var configReq ConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&configReq); err != nil {
		sendErrorResponse(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.maintenance.UpdateConfig(configReq.CronSchedule); err != nil {
		sendErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	sendSuccessResponse(w, "Configuration updated", h.maintenance.GetStatus())
}
