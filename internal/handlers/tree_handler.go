package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"db-schema-keeper/internal/tree"
)

// BuildTreeHandler nests the records posted in the tree config body.
func (h *Handler) BuildTreeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		sendErrorResponse(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var cfg tree.Config
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		sendErrorResponse(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	nodes, err := h.trees.Build(cfg)
	if err != nil {
		h.sendServiceError(w, err)
		return
	}

	sendSuccessResponse(w, "", nodes)
}

// TableTreeHandler nests the rows of a self-referencing table.
func (h *Handler) TableTreeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		sendErrorResponse(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	cfg := tree.Config{
		OriginIDKey:    q.Get("id"),
		OriginPidKey:   q.Get("pid"),
		ResChildrenKey: q.Get("children"),
		ResIDKey:       q.Get("resId"),
		ResPidKey:      q.Get("resPid"),
	}
	if q.Has("root") {
		cfg.OriginPid = parseRootID(q.Get("root"))
	}

	nodes, err := h.trees.TableTree(r.Context(), r.PathValue("table"), cfg)
	if err != nil {
		h.sendServiceError(w, err)
		return
	}

	sendSuccessResponse(w, "", nodes)
}

// parseRootID reads a query value as a number when it is one, "null" as
// null, and anything else as a string.
func parseRootID(s string) tree.Value {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return tree.Int(i)
	}
	if s == "null" {
		return tree.Null()
	}
	return tree.String(s)
}
