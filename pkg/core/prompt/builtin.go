package prompt

// PromptIDs contains all known prompt identifiers
var PromptIDs = struct {
	ExtractionFields string
	SearchCatalog    string
}{
	ExtractionFields: "extraction.fields",
	SearchCatalog:    "search.catalog",
}

func builtins() []*PromptTemplate {
	return []*PromptTemplate{
		{
			ID:          PromptIDs.ExtractionFields,
			Name:        "Document field extraction",
			Category:    "extraction",
			Description: "Fills one catalog row from the text of a brochure or slide deck",
			Version:     "3",
			SystemPrompt: `You are a data-entry assistant for a team-building product catalog.
Read the document and describe ONE catalog entry as a JSON object.

Use exactly these keys:
{{range .Fields}}- "{{.}}"
{{end}}
Formatting rules:
- "{{.Identity}}" is the product name exactly as written in the document.
{{range .Rules}}- {{.}}
{{end}}- If the document does not clearly state a value, set it to "{{.Sentinel}}". Never invent or guess values.
- Answer with a single JSON object and nothing else.`,
			UserPromptTmpl: `Document text:
"""
{{.Document}}
"""`,
			Variables: []PromptVariable{
				{Name: "Fields", Type: "array", Required: true},
				{Name: "Identity", Type: "string", Required: true},
				{Name: "Rules", Type: "array", Required: true},
				{Name: "Sentinel", Type: "string", Required: true},
				{Name: "Document", Type: "string", Required: true},
			},
		},
		{
			ID:          PromptIDs.SearchCatalog,
			Name:        "Catalog semantic search",
			Category:    "search",
			Description: "Selects catalog entries that fit a free-text request",
			Version:     "2",
			SystemPrompt: `You are a product specialist for a team-building catalog. The whole catalog is given below as a table.
Select the entries that fit the customer's request. Reason by concept and association, not only by keywords:
a request that mentions a specific activity must also surface entries whose description is thematically related to it.

Answer ONLY with a list of the exact values of the "{{.Identity}}" column, for example ["Name A", "Name B"].
Answer [] when nothing fits.

Catalog:
{{.Catalog}}`,
			UserPromptTmpl: `Request: {{.Query}}`,
			Variables: []PromptVariable{
				{Name: "Identity", Type: "string", Required: true},
				{Name: "Catalog", Type: "string", Required: true},
				{Name: "Query", Type: "string", Required: true},
			},
		},
	}
}
