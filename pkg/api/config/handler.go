package config

import (
	"encoding/json"
	"net/http"

	"catalog_agent/pkg/api/respond"
	"catalog_agent/pkg/core/agent"
	"catalog_agent/pkg/core/usage"

	"go.uber.org/zap"
)

type Response struct {
	ActiveProvider string      `json:"active_provider"`
	Available      []string    `json:"available"`
	MatchThreshold float64     `json:"match_threshold"`
	AllowList      []string    `json:"allow_list"`
	Usage          usage.Stats `json:"usage"`
}

type SwitchRequest struct {
	Provider string `json:"provider"`
}

// Handler holds dependencies for config endpoints
type Handler struct {
	AgentMgr       *agent.Manager
	MatchThreshold float64
	AllowList      []string
	logger         *zap.Logger
}

// NewHandler creates a new config handler
func NewHandler(agentMgr *agent.Manager, threshold float64, allowList []string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		AgentMgr:       agentMgr,
		MatchThreshold: threshold,
		AllowList:      allowList,
		logger:         logger,
	}
}

// HandleConfig reports the active provider, the reconciliation settings and
// the token counters. GET /api/config
func (h *Handler) HandleConfig(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusOK, Response{
		ActiveProvider: h.AgentMgr.GetActiveProvider(),
		Available:      h.AgentMgr.Available(),
		MatchThreshold: h.MatchThreshold,
		AllowList:      h.AllowList,
		Usage:          h.AgentMgr.Usage().Stats(),
	})
}

// HandleSwitch changes the provider used by every agent without an override.
// POST /api/config/switch
func (h *Handler) HandleSwitch(w http.ResponseWriter, r *http.Request) {
	var req SwitchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.BadRequest(w, "invalid request body")
		return
	}

	if err := h.AgentMgr.SetGlobalProvider(req.Provider); err != nil {
		respond.BadRequest(w, err.Error())
		return
	}
	h.HandleConfig(w, r)
}

// HandleUsage returns the token counters. GET /api/usage
func (h *Handler) HandleUsage(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusOK, h.AgentMgr.Usage().Stats())
}

// HandleUsageReset zeroes the token counters. POST /api/usage/reset
func (h *Handler) HandleUsageReset(w http.ResponseWriter, r *http.Request) {
	h.AgentMgr.Usage().Reset()
	h.logger.Info("token counters reset")
	respond.JSON(w, http.StatusOK, h.AgentMgr.Usage().Stats())
}

// Register mounts the config endpoints on mux behind gate.
func (h *Handler) Register(mux *http.ServeMux, gate func(http.HandlerFunc) http.HandlerFunc) {
	mux.HandleFunc("GET /api/config", gate(h.HandleConfig))
	mux.HandleFunc("POST /api/config/switch", gate(h.HandleSwitch))
	mux.HandleFunc("GET /api/usage", gate(h.HandleUsage))
	mux.HandleFunc("POST /api/usage/reset", gate(h.HandleUsageReset))
}
