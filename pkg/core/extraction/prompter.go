// Package extraction asks the completion service to fill one catalog row from
// the text of an uploaded document.
package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"catalog_agent/pkg/core/agent"
	"catalog_agent/pkg/core/catalog"
	"catalog_agent/pkg/core/llm"
	"catalog_agent/pkg/core/prompt"
	"catalog_agent/pkg/core/utils"

	"go.uber.org/zap"
)

const (
	// DefaultSentinel is the literal the model is told to use for unknown values.
	DefaultSentinel = "DA COMPILARE"
	// DefaultMaxDocumentChars bounds the document text sent in one prompt.
	DefaultMaxDocumentChars = 60000
)

// Completer is the slice of agent.Manager the prompter needs.
type Completer interface {
	Execute(ctx context.Context, agentType, prompt, systemPrompt string, format llm.Format) (llm.Response, error)
}

// Result is the parsed extraction plus everything worth showing the operator.
type Result struct {
	Values   catalog.Extraction `json:"values"`
	Warnings []string           `json:"warnings,omitempty"`
	Usage    llm.Usage          `json:"usage"`
}

type Options struct {
	Kinds            catalog.Kinds
	Sentinel         string
	MaxDocumentChars int
	Logger           *zap.Logger
}

// Prompter builds the schema-constrained prompt and parses the JSON answer.
type Prompter struct {
	completer Completer
	prompts   *prompt.Registry
	kinds     catalog.Kinds
	sentinel  string
	maxChars  int
	logger    *zap.Logger
}

func NewPrompter(completer Completer, prompts *prompt.Registry, opts Options) *Prompter {
	if opts.Sentinel == "" {
		opts.Sentinel = DefaultSentinel
	}
	if opts.MaxDocumentChars <= 0 {
		opts.MaxDocumentChars = DefaultMaxDocumentChars
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if prompts == nil {
		prompts = prompt.Get()
	}
	return &Prompter{
		completer: completer,
		prompts:   prompts,
		kinds:     opts.Kinds,
		sentinel:  opts.Sentinel,
		maxChars:  opts.MaxDocumentChars,
		logger:    opts.Logger,
	}
}

// Extract returns one value per schema field. Malformed model output is not an
// error: it yields an empty extraction plus a warning. A failed completion call
// is returned as an error together with the empty result.
func (p *Prompter) Extract(ctx context.Context, documentText string, schema catalog.Schema) (*Result, error) {
	result := &Result{Values: catalog.Extraction{}}
	if len(schema) == 0 {
		return result, catalog.ErrEmptySchema
	}

	rendered, err := p.prompts.Render(prompt.PromptIDs.ExtractionFields, p.promptContext(documentText, schema))
	if err != nil {
		return result, fmt.Errorf("render extraction prompt: %w", err)
	}

	resp, err := p.completer.Execute(ctx, agent.AgentExtraction, rendered.User, rendered.System, llm.FormatJSON)
	if err != nil {
		return result, fmt.Errorf("extraction completion failed: %w", err)
	}
	result.Usage = resp.Usage

	result.Values, result.Warnings = p.Parse(resp.Text, schema)
	p.logger.Info("document fields extracted",
		zap.Int("fields", len(schema)),
		zap.Int("missing", countMissing(result.Values)),
		zap.Int("warnings", len(result.Warnings)))
	return result, nil
}

func (p *Prompter) promptContext(documentText string, schema catalog.Schema) *prompt.PromptExecutionContext {
	var rules []string
	for _, field := range schema {
		if rule := p.kinds.Of(field).Rule(field); rule != "" {
			rules = append(rules, rule)
		}
	}

	doc := documentText
	if runes := []rune(doc); len(runes) > p.maxChars {
		doc = string(runes[:p.maxChars]) + "\n... [truncated]"
	}

	return prompt.NewContext().
		Set("Fields", []string(schema)).
		Set("Identity", schema.Identity()).
		Set("Rules", rules).
		Set("Sentinel", p.sentinel).
		Set("Document", doc)
}

// Parse decodes a model answer into an extraction keyed by schema fields.
func (p *Prompter) Parse(raw string, schema catalog.Schema) (catalog.Extraction, []string) {
	var warnings []string
	empty := catalog.Extraction{}

	cleaned := utils.StripCodeFence(raw)
	if cleaned == "" {
		return empty, []string{"the model returned an empty answer; fill the form manually"}
	}

	var decoded interface{}
	if err := utils.SmartParse(cleaned, &decoded); err != nil {
		return empty, []string{"the model answer is not valid JSON; fill the form manually"}
	}

	// Some answers wrap the object in a list.
	if list, ok := decoded.([]interface{}); ok {
		if len(list) == 0 {
			return empty, []string{"the model returned an empty list; fill the form manually"}
		}
		decoded = list[0]
		if len(list) > 1 {
			warnings = append(warnings, fmt.Sprintf("the model returned %d objects; only the first was used", len(list)))
		}
	}

	obj, ok := decoded.(map[string]interface{})
	if !ok {
		return empty, append(warnings, "the model answer is not a JSON object; fill the form manually")
	}

	keys := indexKeys(obj)
	out := make(catalog.Extraction, len(schema))
	for _, field := range schema {
		key, found := keys[normalizeKey(field)]
		if !found {
			out[field] = catalog.Absent()
			continue
		}
		delete(keys, normalizeKey(field))

		text, present := p.stringify(obj[key], field)
		if !present || p.isSentinel(text) {
			out[field] = catalog.Absent()
			continue
		}

		normalized, err := p.kinds.Of(field).Normalize(text)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v; kept as written", field, err))
			normalized = strings.TrimSpace(text)
		}
		if normalized == "" {
			out[field] = catalog.Absent()
			continue
		}
		out[field] = catalog.Present(normalized)
	}

	if len(keys) > 0 {
		var extra []string
		for _, k := range keys {
			extra = append(extra, k)
		}
		sort.Strings(extra)
		warnings = append(warnings, fmt.Sprintf("ignored fields not in the catalog: %s", strings.Join(extra, ", ")))
	}
	return out, warnings
}

func (p *Prompter) isSentinel(s string) bool {
	return strings.EqualFold(strings.TrimSpace(s), p.sentinel)
}

func (p *Prompter) stringify(v interface{}, field string) (string, bool) {
	switch val := v.(type) {
	case nil:
		return "", false
	case string:
		return val, true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case bool:
		kind := p.kinds.Of(field)
		if kind.Type == catalog.KindBoolean {
			if val {
				return kind.TrueLiteral, true
			}
			return kind.FalseLiteral, true
		}
		return strconv.FormatBool(val), true
	case []interface{}:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := p.stringify(item, field); ok && s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", "), len(parts) > 0
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return "", false
		}
		return string(b), true
	}
}

func normalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// indexKeys maps normalized key -> original key.
func indexKeys(obj map[string]interface{}) map[string]string {
	keys := make(map[string]string, len(obj))
	for k := range obj {
		keys[normalizeKey(k)] = k
	}
	return keys
}

func countMissing(e catalog.Extraction) int {
	n := 0
	for _, v := range e {
		if v.Missing {
			n++
		}
	}
	return n
}
