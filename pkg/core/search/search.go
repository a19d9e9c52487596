// Package search selects catalog entries that fit a free-text request, either
// by asking the completion service or by literal substring matching.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"catalog_agent/pkg/core/agent"
	"catalog_agent/pkg/core/catalog"
	"catalog_agent/pkg/core/llm"
	"catalog_agent/pkg/core/prompt"
	"catalog_agent/pkg/core/utils"

	"go.uber.org/zap"
)

// Completer is the slice of agent.Manager the search prompter needs.
type Completer interface {
	Execute(ctx context.Context, agentType, prompt, systemPrompt string, format llm.Format) (llm.Response, error)
}

// Result lists matching identities in the order the model gave them.
type Result struct {
	Identities []string  `json:"identities"`
	Dropped    []string  `json:"dropped,omitempty"`
	Warning    string    `json:"warning,omitempty"`
	Usage      llm.Usage `json:"usage"`
}

type Prompter struct {
	completer Completer
	prompts   *prompt.Registry
	logger    *zap.Logger
}

func NewPrompter(completer Completer, prompts *prompt.Registry, logger *zap.Logger) *Prompter {
	if prompts == nil {
		prompts = prompt.Get()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Prompter{completer: completer, prompts: prompts, logger: logger}
}

// Search asks the completion service which entries of snap fit query.
// An unparseable answer is not an error: it yields an empty result with a warning.
func (p *Prompter) Search(ctx context.Context, query string, snap *catalog.Snapshot) (*Result, error) {
	result := &Result{Identities: []string{}}
	query = strings.TrimSpace(query)
	if query == "" || snap == nil || len(snap.Rows) == 0 {
		return result, nil
	}

	pctx := prompt.NewContext().
		Set("Identity", snap.Schema.Identity()).
		Set("Catalog", Table(snap)).
		Set("Query", query)
	rendered, err := p.prompts.Render(prompt.PromptIDs.SearchCatalog, pctx)
	if err != nil {
		return result, fmt.Errorf("render search prompt: %w", err)
	}

	resp, err := p.completer.Execute(ctx, agent.AgentSearch, rendered.User, rendered.System, llm.FormatText)
	if err != nil {
		return result, fmt.Errorf("search completion failed: %w", err)
	}
	result.Usage = resp.Usage

	names, err := ParseList(resp.Text)
	if err != nil {
		result.Warning = "the search answer could not be read; try the literal search"
		p.logger.Warn("unparseable search answer", zap.Error(err), zap.String("answer", truncate(resp.Text, 200)))
		return result, nil
	}

	result.Identities, result.Dropped = filterPresent(names, snap)
	if len(result.Dropped) > 0 {
		p.logger.Info("search answer named unknown entries", zap.Strings("dropped", result.Dropped))
	}
	return result, nil
}

// Literal returns entries where query occurs, case-insensitively, in any field.
func Literal(query string, snap *catalog.Snapshot) []string {
	needle := strings.ToLower(strings.TrimSpace(query))
	out := []string{}
	if needle == "" || snap == nil {
		return out
	}
	for _, row := range snap.Rows {
		for _, field := range snap.Schema {
			if strings.Contains(strings.ToLower(row.Values[field]), needle) {
				out = append(out, row.Identity)
				break
			}
		}
	}
	return out
}

// Table renders the whole catalog as a pipe-delimited table, header first.
func Table(snap *catalog.Snapshot) string {
	var b strings.Builder
	writeTableRow(&b, snap.Schema)
	seps := make([]string, len(snap.Schema))
	for i := range seps {
		seps[i] = "---"
	}
	writeTableRow(&b, seps)
	for _, row := range snap.Rows {
		cells := make([]string, len(snap.Schema))
		for i, field := range snap.Schema {
			cells[i] = row.Values[field]
		}
		writeTableRow(&b, cells)
	}
	return b.String()
}

var cellEscaper = strings.NewReplacer("|", "/", "\r\n", " ", "\n", " ", "\r", " ")

func writeTableRow(b *strings.Builder, cells []string) {
	b.WriteString("|")
	for _, c := range cells {
		b.WriteString(" ")
		b.WriteString(strings.TrimSpace(cellEscaper.Replace(c)))
		b.WriteString(" |")
	}
	b.WriteString("\n")
}

// ParseList extracts the first bracketed list in text and decodes it as a list
// of strings. Single- and double-quoted items are both accepted; items that
// are not strings are skipped.
func ParseList(text string) ([]string, error) {
	literal, ok := firstBracketed(text)
	if !ok {
		return nil, fmt.Errorf("no list found in answer")
	}

	var decoded interface{}
	repaired := false
	if err := json.Unmarshal([]byte(literal), &decoded); err != nil {
		repaired = true
		inner := strings.TrimSpace(literal[1 : len(literal)-1])
		if inner != "" && !strings.ContainsAny(inner, `"'`) {
			return nil, fmt.Errorf("list items are not quoted: %s", literal)
		}
		if err := utils.SmartParse(literal, &decoded); err != nil {
			return nil, err
		}
	}
	items, ok := decoded.([]interface{})
	if !ok {
		return nil, fmt.Errorf("answer is not a list")
	}

	names := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			continue
		}
		if repaired && strings.Contains(s, "]") {
			return nil, fmt.Errorf("list could not be split into names: %s", literal)
		}
		names = append(names, s)
	}
	if len(items) > 0 && len(names) == 0 {
		return nil, fmt.Errorf("list holds no names: %s", literal)
	}
	return names, nil
}

// firstBracketed returns the substring from the first '[' to its matching ']',
// ignoring brackets inside quoted strings.
func firstBracketed(text string) (string, bool) {
	start := strings.IndexByte(text, '[')
	if start < 0 {
		return "", false
	}
	depth := 0
	var quote byte
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if quote != 0 {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == quote:
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

// filterPresent keeps names that are catalog identities, without duplicates.
func filterPresent(names []string, snap *catalog.Snapshot) (kept, dropped []string) {
	kept = []string{}
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if seen[name] {
			continue
		}
		seen[name] = true
		if snap.Contains(name) {
			kept = append(kept, name)
		} else {
			dropped = append(dropped, name)
		}
	}
	return kept, dropped
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
