// Package catalog serves the catalog rows and the proposal workflow: upload,
// manual edit and create, review, confirm and discard.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"catalog_agent/pkg/api/auth"
	"catalog_agent/pkg/api/respond"
	core "catalog_agent/pkg/core/catalog"
	"catalog_agent/pkg/core/pipeline"
	"catalog_agent/pkg/core/reconcile"
	"catalog_agent/pkg/core/session"
	"catalog_agent/pkg/core/store"
	"catalog_agent/pkg/core/utils"

	"go.uber.org/zap"
)

// DefaultMaxUpload bounds the size of an uploaded document.
const DefaultMaxUpload = 32 << 20

// Ingestor runs the document ingestion pipeline.
type Ingestor interface {
	Ingest(ctx context.Context, filename string, data []byte) (*pipeline.Outcome, error)
}

// JournalReader lists committed writes, newest first.
type JournalReader interface {
	Recent(ctx context.Context, limit int) ([]store.JournalEntry, error)
}

// Handler holds dependencies for catalog endpoints
type Handler struct {
	Cache     *core.Cache
	Engine    *reconcile.Engine
	Sessions  *session.Manager
	Ingestor  Ingestor
	Kinds     core.Kinds
	MaxUpload int64
	// Journal is optional; GET /api/journal is only mounted when set.
	Journal JournalReader
	logger  *zap.Logger
}

// NewHandler creates a new catalog handler
func NewHandler(cache *core.Cache, engine *reconcile.Engine, sessions *session.Manager, ingestor Ingestor, kinds core.Kinds, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Cache:     cache,
		Engine:    engine,
		Sessions:  sessions,
		Ingestor:  ingestor,
		Kinds:     kinds,
		MaxUpload: DefaultMaxUpload,
		logger:    logger,
	}
}

type RowsResponse struct {
	Schema   core.Schema               `json:"schema"`
	Rows     []core.Row                `json:"rows"`
	Kinds    map[string]core.FieldKind `json:"kinds"`
	LoadedAt time.Time                 `json:"loaded_at"`
}

type RowResponse struct {
	core.Row
	// HTML renders free-text fields written in Markdown.
	HTML map[string]string `json:"html,omitempty"`
}

// ProposalView is a staged proposal with its review and current validation state.
type ProposalView struct {
	Proposal *reconcile.Proposal   `json:"proposal"`
	Review   []reconcile.FieldDiff `json:"review"`
	Errors   map[string]string     `json:"errors,omitempty"`
	Outcome  *pipeline.Outcome     `json:"outcome,omitempty"`
}

type EditRequest struct {
	Identity string            `json:"identity"`
	Values   map[string]string `json:"values"`
}

type CreateRequest struct {
	Values map[string]string `json:"values"`
}

type ConfirmRequest struct {
	Edits map[string]string `json:"edits,omitempty"`
}

type ConfirmResponse struct {
	ProposalID string `json:"proposal_id"`
	Identity   string `json:"identity"`
	Written    int    `json:"written"`
}

func (h *Handler) kinds() map[string]core.FieldKind {
	out := make(map[string]core.FieldKind, len(h.Kinds))
	for field, kind := range h.Kinds {
		out[field] = kind
	}
	return out
}

// HandleRows lists the whole catalog. GET /api/rows
func (h *Handler) HandleRows(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Cache.Load(r.Context())
	if err != nil {
		h.logger.Error("catalog load failed", zap.Error(err))
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, RowsResponse{
		Schema:   snap.Schema,
		Rows:     snap.Rows,
		Kinds:    h.kinds(),
		LoadedAt: snap.LoadedAt,
	})
}

// HandleRow returns one entry. GET /api/rows/{identity}
func (h *Handler) HandleRow(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Cache.Load(r.Context())
	if err != nil {
		respond.Error(w, err)
		return
	}
	row, ok := snap.Lookup(r.PathValue("identity"))
	if !ok {
		respond.Error(w, core.ErrIdentityNotFound)
		return
	}

	resp := RowResponse{Row: row, HTML: map[string]string{}}
	for _, field := range snap.Schema.Attributes() {
		v := row.Values[field]
		if v == "" || h.Kinds.Of(field).Type != core.KindFreeText {
			continue
		}
		html, err := utils.RenderMarkdown(v)
		if err != nil {
			h.logger.Warn("markdown render failed", zap.String("field", field), zap.Error(err))
			continue
		}
		resp.HTML[field] = html
	}
	respond.JSON(w, http.StatusOK, resp)
}

// HandleUpload runs the ingestion pipeline on a multipart "file" and stages
// the resulting proposal. POST /api/upload
func (h *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.MaxUpload)
	file, header, err := r.FormFile("file")
	if err != nil {
		respond.BadRequest(w, "missing file: "+err.Error())
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respond.BadRequest(w, "read upload: "+err.Error())
		return
	}

	outcome, err := h.Ingestor.Ingest(r.Context(), header.Filename, data)
	if err != nil {
		h.logger.Error("ingestion failed", zap.String("file", header.Filename), zap.Error(err))
		respond.Error(w, err)
		return
	}

	view, err := h.stage(r, outcome.Proposal)
	if err != nil {
		respond.Error(w, err)
		return
	}
	view.Outcome = outcome
	respond.JSON(w, http.StatusCreated, view)
}

// HandleEdit stages a manual update. POST /api/proposals/edit
func (h *Handler) HandleEdit(w http.ResponseWriter, r *http.Request) {
	var req EditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.BadRequest(w, "invalid request body")
		return
	}
	snap, err := h.Cache.Load(r.Context())
	if err != nil {
		respond.Error(w, err)
		return
	}
	p, err := h.Engine.ManualUpdate(req.Identity, req.Values, snap)
	if err != nil {
		respond.Error(w, err)
		return
	}
	view, err := h.stage(r, p)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusCreated, view)
}

// HandleCreate stages a manual create. POST /api/proposals/create
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.BadRequest(w, "invalid request body")
		return
	}
	snap, err := h.Cache.Load(r.Context())
	if err != nil {
		respond.Error(w, err)
		return
	}
	view, err := h.stage(r, h.Engine.ManualCreate(req.Values, snap))
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusCreated, view)
}

// HandleGetProposal shows a staged proposal. GET /api/proposals/{id}
func (h *Handler) HandleGetProposal(w http.ResponseWriter, r *http.Request) {
	p, err := h.Sessions.Proposal(auth.Token(r), r.PathValue("id"))
	if err != nil {
		respond.Error(w, err)
		return
	}
	view, err := h.view(r.Context(), p)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, view)
}

// HandleConfirm applies a staged proposal. POST /api/proposals/{id}/confirm
func (h *Handler) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	token := auth.Token(r)
	p, err := h.Sessions.Proposal(token, r.PathValue("id"))
	if err != nil {
		respond.Error(w, err)
		return
	}

	var req ConfirmRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			respond.BadRequest(w, "invalid request body")
			return
		}
	}

	written, err := h.Engine.Apply(r.Context(), p, reconcile.Confirmation{
		ProposalID: p.ID,
		Confirmed:  true,
		Edits:      req.Edits,
	})
	if err != nil {
		// The proposal stays staged so the operator can fix or retry it.
		h.logger.Warn("apply failed", zap.String("proposal", p.ID), zap.Int("written", written), zap.Error(err))
		respond.Error(w, err)
		return
	}

	if err := h.Sessions.Discard(token, p.ID); err != nil && !errors.Is(err, session.ErrUnknownProposal) {
		h.logger.Warn("could not unstage applied proposal", zap.String("proposal", p.ID), zap.Error(err))
	}
	respond.JSON(w, http.StatusOK, ConfirmResponse{ProposalID: p.ID, Identity: p.Identity, Written: written})
}

// HandleDiscard drops a staged proposal. DELETE /api/proposals/{id}
func (h *Handler) HandleDiscard(w http.ResponseWriter, r *http.Request) {
	if err := h.Sessions.Discard(auth.Token(r), r.PathValue("id")); err != nil {
		respond.Error(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandlePending lists the proposals staged in the caller's session, oldest
// first. GET /api/proposals
func (h *Handler) HandlePending(w http.ResponseWriter, r *http.Request) {
	pending, err := h.Sessions.Pending(auth.Token(r))
	if err != nil {
		respond.Error(w, err)
		return
	}
	views := make([]*ProposalView, 0, len(pending))
	for _, p := range pending {
		view, err := h.view(r.Context(), p)
		if err != nil {
			respond.Error(w, err)
			return
		}
		views = append(views, view)
	}
	respond.JSON(w, http.StatusOK, views)
}

// HandleJournal returns the latest committed writes. GET /api/journal?limit=N
func (h *Handler) HandleJournal(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respond.BadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}
	entries, err := h.Journal.Recent(r.Context(), limit)
	if err != nil {
		h.logger.Error("journal read failed", zap.Error(err))
		respond.Error(w, err)
		return
	}
	if entries == nil {
		entries = []store.JournalEntry{}
	}
	respond.JSON(w, http.StatusOK, entries)
}

func (h *Handler) stage(r *http.Request, p *reconcile.Proposal) (*ProposalView, error) {
	if err := h.Sessions.Stage(auth.Token(r), p); err != nil {
		return nil, err
	}
	return h.view(r.Context(), p)
}

func (h *Handler) view(ctx context.Context, p *reconcile.Proposal) (*ProposalView, error) {
	snap, err := h.Cache.Load(ctx)
	if err != nil {
		return nil, err
	}
	view := &ProposalView{Proposal: p, Review: reconcile.Review(p)}
	var verrs reconcile.ValidationErrors
	if err := h.Engine.Validate(p, snap); errors.As(err, &verrs) {
		view.Errors = verrs.ByField()
	}
	return view, nil
}

// Register mounts the catalog endpoints on mux behind gate.
func (h *Handler) Register(mux *http.ServeMux, gate func(http.HandlerFunc) http.HandlerFunc) {
	mux.HandleFunc("GET /api/rows", gate(h.HandleRows))
	mux.HandleFunc("GET /api/rows/{identity...}", gate(h.HandleRow))
	mux.HandleFunc("POST /api/upload", gate(h.HandleUpload))
	mux.HandleFunc("POST /api/proposals/edit", gate(h.HandleEdit))
	mux.HandleFunc("POST /api/proposals/create", gate(h.HandleCreate))
	mux.HandleFunc("GET /api/proposals/{id}", gate(h.HandleGetProposal))
	mux.HandleFunc("POST /api/proposals/{id}/confirm", gate(h.HandleConfirm))
	mux.HandleFunc("DELETE /api/proposals/{id}", gate(h.HandleDiscard))
	mux.HandleFunc("GET /api/proposals", gate(h.HandlePending))
	if h.Journal != nil {
		mux.HandleFunc("GET /api/journal", gate(h.HandleJournal))
	}
}
