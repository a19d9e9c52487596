package pipeline

import (
	"context"
	"errors"
	"testing"

	"catalog_agent/pkg/core/catalog"
	"catalog_agent/pkg/core/extraction"
	"catalog_agent/pkg/core/ingest"
	"catalog_agent/pkg/core/llm"
	"catalog_agent/pkg/core/reconcile"
	"catalog_agent/pkg/core/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Mocks ---

type MockTextExtractor struct {
	ExtractFunc func(data []byte, kind ingest.Kind) (string, error)
}

func (m *MockTextExtractor) Extract(data []byte, kind ingest.Kind) (string, error) {
	if m.ExtractFunc != nil {
		return m.ExtractFunc(data, kind)
	}
	return "mock document text", nil
}

type MockFieldExtractor struct {
	ExtractFunc func(ctx context.Context, text string, schema catalog.Schema) (*extraction.Result, error)
	LastText    string
}

func (m *MockFieldExtractor) Extract(ctx context.Context, text string, schema catalog.Schema) (*extraction.Result, error) {
	m.LastText = text
	if m.ExtractFunc != nil {
		return m.ExtractFunc(ctx, text, schema)
	}
	return &extraction.Result{Values: catalog.Extraction{}}, nil
}

type MockLoader struct {
	LoadFunc func(ctx context.Context) (*catalog.Snapshot, error)
}

func (m *MockLoader) Load(ctx context.Context) (*catalog.Snapshot, error) {
	return m.LoadFunc(ctx)
}

// --- Tests ---

func newCatalog() *catalog.Cache {
	st := store.NewMemoryStore([]string{"Nome", "Descrizione", "Logistica"},
		[]string{"Escape Room Classico", "Enigmi", "Sede cliente"},
	)
	return catalog.NewCache(st, 0)
}

func TestOrchestrator_IngestMatchesExistingEntry(t *testing.T) {
	cache := newCatalog()
	engine := reconcile.NewEngine(cache, reconcile.Options{AllowList: []string{"Descrizione"}})
	fields := &MockFieldExtractor{
		ExtractFunc: func(ctx context.Context, text string, schema catalog.Schema) (*extraction.Result, error) {
			assert.Equal(t, catalog.Schema{"Nome", "Descrizione", "Logistica"}, schema)
			return &extraction.Result{
				Values: catalog.Extraction{
					"Nome":        catalog.Present("Escape Room Classic"),
					"Descrizione": catalog.Present("Enigmi a tempo"),
					"Logistica":   catalog.Present("Ovunque"),
				},
				Warnings: []string{"ignored fields not in the catalog: Prezzo"},
				Usage:    llm.Usage{TotalTokens: 321},
			}, nil
		},
	}

	o := NewOrchestrator(cache, fields, engine, nil)
	o.SetTextExtractor(&MockTextExtractor{})

	out, err := o.Ingest(context.Background(), "brochure.pdf", []byte("%PDF-1.7"))
	require.NoError(t, err)

	assert.Equal(t, ingest.KindPDF, out.Kind)
	assert.Equal(t, "mock document text", fields.LastText)
	assert.Equal(t, len("mock document text"), out.TextLength)
	assert.Equal(t, 321, out.Usage.TotalTokens)
	assert.Len(t, out.Warnings, 1)

	require.NotNil(t, out.Proposal)
	assert.Equal(t, reconcile.KindUpdate, out.Proposal.Kind)
	assert.Equal(t, "Escape Room Classico", out.Proposal.Identity)
	assert.Equal(t, []string{"Descrizione"}, out.Proposal.ChangedFields())
	assert.NotContains(t, out.Proposal.Changes, "Logistica")
}

func TestOrchestrator_IngestEmptyExtractionStillProposes(t *testing.T) {
	cache := newCatalog()
	engine := reconcile.NewEngine(cache, reconcile.Options{})
	fields := &MockFieldExtractor{
		ExtractFunc: func(context.Context, string, catalog.Schema) (*extraction.Result, error) {
			return &extraction.Result{Values: catalog.Extraction{}, Warnings: []string{"the model answer is not valid JSON; fill the form manually"}}, nil
		},
	}
	o := NewOrchestrator(cache, fields, engine, nil)
	o.SetTextExtractor(&MockTextExtractor{})

	out, err := o.Ingest(context.Background(), "deck.pptx", []byte("PK\x03\x04"))
	require.NoError(t, err)
	assert.Equal(t, reconcile.KindCreate, out.Proposal.Kind)
	assert.Empty(t, out.Proposal.Identity)
	assert.NotEmpty(t, out.Warnings)
}

func TestOrchestrator_StopsOnFailures(t *testing.T) {
	engine := reconcile.NewEngine(newCatalog(), reconcile.Options{})

	t.Run("unsupported file", func(t *testing.T) {
		o := NewOrchestrator(newCatalog(), &MockFieldExtractor{}, engine, nil)
		_, err := o.Ingest(context.Background(), "notes.txt", []byte("plain"))
		assert.ErrorIs(t, err, ingest.ErrUnsupportedKind)
	})

	t.Run("no text", func(t *testing.T) {
		o := NewOrchestrator(newCatalog(), &MockFieldExtractor{}, engine, nil)
		o.SetTextExtractor(&MockTextExtractor{ExtractFunc: func([]byte, ingest.Kind) (string, error) {
			return "", ingest.ErrNoText
		}})
		_, err := o.Ingest(context.Background(), "scan.pdf", []byte("%PDF"))
		assert.ErrorIs(t, err, ingest.ErrNoText)
	})

	t.Run("store unreachable", func(t *testing.T) {
		down := errors.New("sheets unreachable")
		loader := &MockLoader{LoadFunc: func(context.Context) (*catalog.Snapshot, error) { return nil, down }}
		o := NewOrchestrator(loader, &MockFieldExtractor{}, engine, nil)
		o.SetTextExtractor(&MockTextExtractor{})
		_, err := o.Ingest(context.Background(), "a.pdf", []byte("%PDF"))
		assert.ErrorIs(t, err, down)
	})

	t.Run("completion failure", func(t *testing.T) {
		down := errors.New("model unavailable")
		fields := &MockFieldExtractor{ExtractFunc: func(context.Context, string, catalog.Schema) (*extraction.Result, error) {
			return &extraction.Result{Values: catalog.Extraction{}}, down
		}}
		o := NewOrchestrator(newCatalog(), fields, engine, nil)
		o.SetTextExtractor(&MockTextExtractor{})
		_, err := o.Ingest(context.Background(), "a.pdf", []byte("%PDF"))
		assert.ErrorIs(t, err, down)
	})
}
