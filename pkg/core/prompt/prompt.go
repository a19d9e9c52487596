// Package prompt provides a centralized prompt library for LLM interactions.
// Built-in prompts are registered at startup and may be overridden by JSON
// files loaded at runtime, so prompts can be tuned without code changes.
package prompt

// PromptTemplate represents a reusable prompt with metadata.
// Both SystemPrompt and UserPromptTmpl are Go text/templates.
type PromptTemplate struct {
	ID             string           `json:"id"`                   // Unique identifier (e.g., "extraction.fields")
	Name           string           `json:"name"`                 // Human-readable name
	Category       string           `json:"category"`             // Category (extraction, search)
	Description    string           `json:"description"`          // Description of prompt purpose
	SystemPrompt   string           `json:"system_prompt"`        // The system prompt template
	UserPromptTmpl string           `json:"user_prompt_template"` // Go template for user prompt
	Variables      []PromptVariable `json:"variables"`            // Variables used in templates
	Version        string           `json:"version"`              // Version for tracking changes
}

// PromptVariable defines a variable used in a prompt template
type PromptVariable struct {
	Name        string `json:"name"`
	Type        string `json:"type"` // string, array
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// PromptExecutionContext holds runtime values for prompt execution
type PromptExecutionContext struct {
	Variables map[string]interface{}
}

// NewContext creates a new execution context
func NewContext() *PromptExecutionContext {
	return &PromptExecutionContext{
		Variables: make(map[string]interface{}),
	}
}

// Set adds a variable to the context
func (c *PromptExecutionContext) Set(key string, value interface{}) *PromptExecutionContext {
	c.Variables[key] = value
	return c
}

// Rendered is a prompt ready to send.
type Rendered struct {
	System string
	User   string
}
