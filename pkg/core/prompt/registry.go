package prompt

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds all loaded prompts
type Registry struct {
	prompts map[string]*PromptTemplate
	mu      sync.RWMutex
}

var globalRegistry *Registry
var once sync.Once

// Get returns the global registry singleton, seeded with the built-in prompts.
func Get() *Registry {
	once.Do(func() {
		globalRegistry = NewRegistry()
	})
	return globalRegistry
}

// NewRegistry returns a registry holding only the built-in prompts.
func NewRegistry() *Registry {
	r := &Registry{prompts: make(map[string]*PromptTemplate)}
	for _, pt := range builtins() {
		r.prompts[pt.ID] = pt
	}
	return r
}

// Register adds or replaces a prompt template
func (r *Registry) Register(pt *PromptTemplate) error {
	if pt.ID == "" {
		return fmt.Errorf("prompt ID cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.prompts[pt.ID] = pt
	return nil
}

// GetPrompt retrieves a prompt by ID
func (r *Registry) GetPrompt(id string) (*PromptTemplate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if p, ok := r.prompts[id]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("prompt not found: %s", id)
}

// Render executes both templates of prompt id.
func (r *Registry) Render(id string, ctx *PromptExecutionContext) (Rendered, error) {
	pt, err := r.GetPrompt(id)
	if err != nil {
		return Rendered{}, err
	}
	if err := checkRequired(pt, ctx); err != nil {
		return Rendered{}, err
	}

	system, err := execute(pt.ID+".system", pt.SystemPrompt, ctx)
	if err != nil {
		return Rendered{}, err
	}
	user, err := RenderUserPrompt(pt, ctx)
	if err != nil {
		return Rendered{}, err
	}
	return Rendered{System: system, User: user}, nil
}

// ListPrompts returns all registered prompt IDs, sorted
func (r *Registry) ListPrompts() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.prompts))
	for id := range r.prompts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Count returns the number of registered prompts
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.prompts)
}

func checkRequired(pt *PromptTemplate, ctx *PromptExecutionContext) error {
	for _, v := range pt.Variables {
		if !v.Required {
			continue
		}
		if _, ok := ctx.Variables[v.Name]; !ok {
			return fmt.Errorf("prompt %s: missing required variable %s", pt.ID, v.Name)
		}
	}
	return nil
}
