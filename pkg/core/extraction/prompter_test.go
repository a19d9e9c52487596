package extraction

import (
	"context"
	"errors"
	"testing"

	"catalog_agent/pkg/core/agent"
	"catalog_agent/pkg/core/catalog"
	"catalog_agent/pkg/core/llm"
	"catalog_agent/pkg/core/prompt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MockCompleter struct {
	ExecuteFunc func(ctx context.Context, agentType, prompt, systemPrompt string, format llm.Format) (llm.Response, error)
	Calls       []mockCall
}

type mockCall struct {
	AgentType string
	Prompt    string
	System    string
	Format    llm.Format
}

func (m *MockCompleter) Execute(ctx context.Context, agentType, p, system string, format llm.Format) (llm.Response, error) {
	m.Calls = append(m.Calls, mockCall{AgentType: agentType, Prompt: p, System: system, Format: format})
	if m.ExecuteFunc != nil {
		return m.ExecuteFunc(ctx, agentType, p, system, format)
	}
	return llm.Response{}, nil
}

func answering(text string) *MockCompleter {
	return &MockCompleter{
		ExecuteFunc: func(context.Context, string, string, string, llm.Format) (llm.Response, error) {
			return llm.Response{Text: text, Usage: llm.Usage{InputTokens: 100, OutputTokens: 20, TotalTokens: 120}}, nil
		},
	}
}

var testSchema = catalog.Schema{"Nome", "Descrizione", "Durata", "Indoor", "Difficoltà", "Instagram"}

var testKinds = catalog.Kinds{
	"Durata":     catalog.AveragedDuration(),
	"Indoor":     catalog.Boolean("", ""),
	"Difficoltà": catalog.Rating(1, 5),
	"Instagram":  catalog.AutoLink("https://instagram.com/{value}"),
}

func newTestPrompter(c Completer) *Prompter {
	return NewPrompter(c, prompt.NewRegistry(), Options{Kinds: testKinds})
}

func TestExtract_FillsSchemaFields(t *testing.T) {
	mock := answering("```json\n{\"Nome\": \"Escape Room Classico\", \"Descrizione\": \"Enigmi a squadre\", \"Durata\": \"2-3 ore\", \"Indoor\": \"DA COMPILARE\", \"Difficoltà\": 3, \"Extra\": \"x\"}\n```")
	p := newTestPrompter(mock)

	res, err := p.Extract(context.Background(), "Escape Room Classico. Durata 2-3 ore.", testSchema)
	require.NoError(t, err)

	assert.Equal(t, catalog.Present("Escape Room Classico"), res.Values["Nome"])
	assert.Equal(t, catalog.Present("Enigmi a squadre"), res.Values["Descrizione"])
	assert.Equal(t, catalog.Present("2.5"), res.Values["Durata"])
	assert.Equal(t, catalog.Present("3"), res.Values["Difficoltà"])
	assert.True(t, res.Values["Indoor"].Missing, "sentinel must become an absent value")
	assert.True(t, res.Values["Instagram"].Missing, "fields missing from the answer are absent")
	assert.NotContains(t, res.Values, "Extra")
	assert.Len(t, res.Values, len(testSchema))
	assert.Equal(t, 120, res.Usage.TotalTokens)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "Extra")

	require.Len(t, mock.Calls, 1)
	call := mock.Calls[0]
	assert.Equal(t, agent.AgentExtraction, call.AgentType)
	assert.Equal(t, llm.FormatJSON, call.Format)
	assert.Contains(t, call.System, `- "Difficoltà"`)
	assert.Contains(t, call.System, `"DA COMPILARE"`)
	assert.Contains(t, call.System, "from 1 to 5")
	assert.Contains(t, call.Prompt, "Durata 2-3 ore")
}

func TestExtract_ListAnswerUsesFirstObject(t *testing.T) {
	p := newTestPrompter(answering(`[{"Nome": "Primo"}, {"Nome": "Secondo"}]`))

	res, err := p.Extract(context.Background(), "doc", testSchema)
	require.NoError(t, err)
	assert.Equal(t, "Primo", res.Values.Identity(testSchema))
	require.NotEmpty(t, res.Warnings)
	assert.Contains(t, res.Warnings[0], "only the first")
}

func TestExtract_MalformedAnswerYieldsEmptyResult(t *testing.T) {
	for name, answer := range map[string]string{
		"empty":      "",
		"empty list": "[]",
		"scalar":     "42",
	} {
		t.Run(name, func(t *testing.T) {
			p := newTestPrompter(answering(answer))
			res, err := p.Extract(context.Background(), "doc", testSchema)
			require.NoError(t, err)
			assert.Empty(t, res.Values)
			assert.Len(t, res.Warnings, 1)
		})
	}
}

func TestExtract_RepairsLooseJSON(t *testing.T) {
	p := newTestPrompter(answering(`{'Nome': 'Caccia al tesoro', 'Indoor': true,}`))

	res, err := p.Extract(context.Background(), "doc", testSchema)
	require.NoError(t, err)
	assert.Equal(t, "Caccia al tesoro", res.Values.Identity(testSchema))
	assert.Equal(t, catalog.Present("Sì"), res.Values["Indoor"])
}

func TestExtract_CompletionFailure(t *testing.T) {
	mock := &MockCompleter{
		ExecuteFunc: func(context.Context, string, string, string, llm.Format) (llm.Response, error) {
			return llm.Response{}, errors.New("connection refused")
		},
	}
	p := newTestPrompter(mock)

	res, err := p.Extract(context.Background(), "doc", testSchema)
	require.Error(t, err)
	require.NotNil(t, res)
	assert.Empty(t, res.Values)
	assert.Len(t, mock.Calls, 1, "no retry")
}

func TestExtract_EmptySchema(t *testing.T) {
	p := newTestPrompter(answering("{}"))
	_, err := p.Extract(context.Background(), "doc", nil)
	assert.ErrorIs(t, err, catalog.ErrEmptySchema)
}

func TestParse_InvalidKindValueKeptWithWarning(t *testing.T) {
	p := newTestPrompter(nil)

	values, warnings := p.Parse(`{"Nome": "X", "Difficoltà": "molto alta", "Instagram": "@teamfun"}`, testSchema)
	assert.Equal(t, catalog.Present("molto alta"), values["Difficoltà"])
	assert.Equal(t, catalog.Present("https://instagram.com/teamfun"), values["Instagram"])
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "Difficoltà")
}

func TestParse_KeysMatchIgnoringCaseAndSpaces(t *testing.T) {
	p := newTestPrompter(nil)

	values, warnings := p.Parse(`{" nome ": "Rafting", "DESCRIZIONE": "da compilare", "Durata": null}`, testSchema)
	assert.Empty(t, warnings)
	assert.Equal(t, "Rafting", values.Identity(testSchema))
	assert.True(t, values["Descrizione"].Missing)
	assert.True(t, values["Durata"].Missing)
}

func TestPrompter_TruncatesLongDocuments(t *testing.T) {
	mock := answering("{}")
	p := NewPrompter(mock, prompt.NewRegistry(), Options{MaxDocumentChars: 10})

	_, err := p.Extract(context.Background(), "0123456789ABCDEF", testSchema)
	require.NoError(t, err)
	require.Len(t, mock.Calls, 1)
	assert.Contains(t, mock.Calls[0].Prompt, "0123456789\n... [truncated]")
	assert.NotContains(t, mock.Calls[0].Prompt, "ABCDEF")
}
