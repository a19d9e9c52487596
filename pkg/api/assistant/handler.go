// Package assistant serves the catalog search endpoint: semantic selection by
// the completion service, with literal matching as the fallback.
package assistant

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"catalog_agent/pkg/api/respond"
	"catalog_agent/pkg/core/catalog"
	"catalog_agent/pkg/core/search"

	"go.uber.org/zap"
)

// Search modes.
const (
	ModeSemantic = "semantic"
	ModeLiteral  = "literal"
)

// Searcher selects catalog entries for a free-text request.
type Searcher interface {
	Search(ctx context.Context, query string, snap *catalog.Snapshot) (*search.Result, error)
}

// Handler provides HTTP handlers for catalog search
type Handler struct {
	cache    *catalog.Cache
	searcher Searcher
	logger   *zap.Logger
}

// NewHandler creates a new assistant handler
func NewHandler(cache *catalog.Cache, searcher Searcher, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{cache: cache, searcher: searcher, logger: logger}
}

// SearchRequest is the operator's free-text query
type SearchRequest struct {
	Query string `json:"query"`
	Mode  string `json:"mode,omitempty"` // "semantic" (default) or "literal"
}

// SearchResponse lists matching rows in the order they were selected
type SearchResponse struct {
	Query    string        `json:"query"`
	Mode     string        `json:"mode"`
	Rows     []catalog.Row `json:"rows"`
	Dropped  []string      `json:"dropped,omitempty"`
	Warning  string        `json:"warning,omitempty"`
	Fallback bool          `json:"fallback,omitempty"`
}

// HandleSearch runs a catalog search. POST /api/search
func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.BadRequest(w, "invalid request body")
		return
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		respond.BadRequest(w, "query is required")
		return
	}

	snap, err := h.cache.Load(r.Context())
	if err != nil {
		respond.Error(w, err)
		return
	}

	resp := SearchResponse{Query: req.Query, Mode: ModeSemantic}
	if req.Mode == ModeLiteral {
		resp.Mode = ModeLiteral
		resp.Rows = rows(snap, search.Literal(req.Query, snap))
		respond.JSON(w, http.StatusOK, resp)
		return
	}

	result, err := h.searcher.Search(r.Context(), req.Query, snap)
	if err != nil {
		// Fallback to literal matching when the completion service is unavailable
		h.logger.Warn("semantic search failed, using literal search", zap.Error(err))
		resp.Mode = ModeLiteral
		resp.Fallback = true
		resp.Warning = "semantic search unavailable (" + err.Error() + "); showing literal matches"
		resp.Rows = rows(snap, search.Literal(req.Query, snap))
		respond.JSON(w, http.StatusOK, resp)
		return
	}

	resp.Rows = rows(snap, result.Identities)
	resp.Dropped = result.Dropped
	resp.Warning = result.Warning
	respond.JSON(w, http.StatusOK, resp)
}

// Register mounts the search endpoint on mux behind gate.
func (h *Handler) Register(mux *http.ServeMux, gate func(http.HandlerFunc) http.HandlerFunc) {
	mux.HandleFunc("POST /api/search", gate(h.HandleSearch))
}

func rows(snap *catalog.Snapshot, identities []string) []catalog.Row {
	out := make([]catalog.Row, 0, len(identities))
	for _, id := range identities {
		if row, ok := snap.Lookup(id); ok {
			out = append(out, row)
		}
	}
	return out
}
