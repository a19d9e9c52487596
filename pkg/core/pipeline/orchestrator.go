// Package pipeline runs the document ingestion flow: text extraction, field
// extraction, name matching and reconciliation into a staged proposal.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"catalog_agent/pkg/core/catalog"
	"catalog_agent/pkg/core/extraction"
	"catalog_agent/pkg/core/ingest"
	"catalog_agent/pkg/core/llm"
	"catalog_agent/pkg/core/reconcile"

	"go.uber.org/zap"
)

// TextExtractor turns an uploaded file into plain text.
type TextExtractor interface {
	Extract(data []byte, kind ingest.Kind) (string, error)
}

// FieldExtractor fills one catalog row from document text.
type FieldExtractor interface {
	Extract(ctx context.Context, documentText string, schema catalog.Schema) (*extraction.Result, error)
}

// Reconciler turns an extraction into a proposal against a snapshot.
type Reconciler interface {
	Reconcile(extraction catalog.Extraction, snap *catalog.Snapshot) *reconcile.Proposal
}

// SnapshotLoader provides the catalog the document is reconciled against.
type SnapshotLoader interface {
	Load(ctx context.Context) (*catalog.Snapshot, error)
}

// Outcome is what the operator reviews after an upload.
type Outcome struct {
	Filename   string              `json:"filename"`
	Kind       ingest.Kind         `json:"kind"`
	TextLength int                 `json:"text_length"`
	Extraction catalog.Extraction  `json:"extraction"`
	Proposal   *reconcile.Proposal `json:"proposal"`
	Warnings   []string            `json:"warnings,omitempty"`
	Usage      llm.Usage           `json:"usage"`
	Duration   time.Duration       `json:"duration"`
}

type documentText struct{}

func (documentText) Extract(data []byte, kind ingest.Kind) (string, error) {
	return ingest.Extract(data, kind)
}

// Orchestrator wires the ingestion stages together.
type Orchestrator struct {
	text       TextExtractor
	fields     FieldExtractor
	reconciler Reconciler
	catalog    SnapshotLoader
	logger     *zap.Logger
}

// NewOrchestrator creates an orchestrator using the built-in document text
// extractor.
func NewOrchestrator(loader SnapshotLoader, fields FieldExtractor, reconciler Reconciler, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		text:       documentText{},
		fields:     fields,
		reconciler: reconciler,
		catalog:    loader,
		logger:     logger,
	}
}

// SetTextExtractor allows injecting a custom text extractor (e.g., for testing).
func (o *Orchestrator) SetTextExtractor(t TextExtractor) {
	o.text = t
}

// Ingest analyses one uploaded document and returns the proposal to review.
// Unreadable model output still produces a proposal (with warnings); store or
// completion failures halt the flow.
func (o *Orchestrator) Ingest(ctx context.Context, filename string, data []byte) (*Outcome, error) {
	start := time.Now()
	kind, err := ingest.KindFromFilename(filename, data)
	if err != nil {
		return nil, err
	}
	out := &Outcome{Filename: filename, Kind: kind}

	// 1. Document -> text
	text, err := o.text.Extract(data, kind)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filename, err)
	}
	out.TextLength = len([]rune(text))

	// 2. Catalog snapshot for this interaction
	snap, err := o.catalog.Load(ctx)
	if err != nil {
		return nil, err
	}

	// 3. Text -> fields
	res, err := o.fields.Extract(ctx, text, snap.Schema)
	if err != nil {
		return nil, err
	}
	out.Extraction = res.Values
	out.Warnings = append(out.Warnings, res.Warnings...)
	out.Usage = res.Usage

	// 4. Match + reconcile
	out.Proposal = o.reconciler.Reconcile(res.Values, snap)
	out.Duration = time.Since(start)

	o.logger.Info("document ingested",
		zap.String("file", filename),
		zap.String("kind", string(kind)),
		zap.Int("text_length", out.TextLength),
		zap.String("proposal", string(out.Proposal.Kind)),
		zap.Stringer("match", out.Proposal.Match),
		zap.Int("warnings", len(out.Warnings)),
		zap.Duration("duration", out.Duration))
	return out, nil
}
