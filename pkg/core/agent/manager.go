package agent

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"catalog_agent/pkg/core/llm"
	"catalog_agent/pkg/core/usage"

	"go.uber.org/zap"
)

// Agent types routed by the manager.
const (
	AgentSearch     = "search"
	AgentExtraction = "extraction"
)

type Config struct {
	ActiveProvider string                 `yaml:"active_provider"`
	Agents         map[string]AgentConfig `yaml:"agents"`
}

type AgentConfig struct {
	Provider    string  `yaml:"provider"` // Optional override
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
	Description string  `yaml:"description"`
}

// DefaultConfig uses Gemini for both agents: near-zero temperature for search,
// low but non-zero for extraction.
func DefaultConfig() Config {
	return Config{
		ActiveProvider: "gemini",
		Agents: map[string]AgentConfig{
			AgentSearch:     {Model: "gemini-2.5-flash", Temperature: 0.0, Description: "catalog semantic search"},
			AgentExtraction: {Model: "gemini-2.5-pro", Temperature: 0.2, Description: "document field extraction"},
		},
	}
}

type Manager struct {
	mu        sync.RWMutex
	config    Config
	providers map[string]llm.Provider
	tracker   *usage.Tracker
	logger    *zap.Logger
}

func NewManager(config Config, providers []llm.Provider, tracker *usage.Tracker, logger *zap.Logger) *Manager {
	if tracker == nil {
		tracker = usage.NewTracker()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	byName := make(map[string]llm.Provider, len(providers))
	for _, p := range providers {
		byName[p.Name()] = p
	}
	return &Manager{config: config, providers: byName, tracker: tracker, logger: logger}
}

// GetProvider resolves the provider for an agent type.
func (m *Manager) GetProvider(agentType string) (llm.Provider, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// 1. Check for agent-specific override
	if agentConfig, ok := m.config.Agents[agentType]; ok && agentConfig.Provider != "" {
		if p, ok := m.providers[agentConfig.Provider]; ok {
			return p, nil
		}
	}

	// 2. Use global active provider
	if p, ok := m.providers[m.config.ActiveProvider]; ok {
		return p, nil
	}

	return nil, fmt.Errorf("no provider configured for agent %q (active: %q)", agentType, m.config.ActiveProvider)
}

// Execute runs a prompt with the agent's model and temperature and records token usage.
func (m *Manager) Execute(ctx context.Context, agentType, prompt, systemPrompt string, format llm.Format) (llm.Response, error) {
	provider, err := m.GetProvider(agentType)
	if err != nil {
		return llm.Response{}, err
	}

	m.mu.RLock()
	cfg := m.config.Agents[agentType]
	m.mu.RUnlock()

	m.logger.Debug("executing prompt",
		zap.String("agent", agentType),
		zap.String("provider", provider.Name()),
		zap.String("model", cfg.Model),
		zap.Int("prompt_chars", len(prompt)))

	resp, err := provider.Complete(ctx, llm.Request{
		Prompt:      prompt,
		System:      systemPrompt,
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		Format:      format,
	})
	if err != nil {
		m.logger.Warn("completion failed", zap.String("agent", agentType), zap.Error(err))
		return llm.Response{}, err
	}

	m.tracker.Track(agentType, resp.Usage.InputTokens, resp.Usage.OutputTokens, resp.Usage.TotalTokens)
	return resp, nil
}

func (m *Manager) SetGlobalProvider(newProvider string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.providers[newProvider]; !ok {
		return fmt.Errorf("provider %s not found", newProvider)
	}
	m.config.ActiveProvider = newProvider
	m.logger.Info("global provider switched", zap.String("provider", newProvider))
	return nil
}

func (m *Manager) GetActiveProvider() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config.ActiveProvider
}

// Available lists registered provider names.
func (m *Manager) Available() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.providers))
	for name := range m.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Usage returns the process-wide token tracker.
func (m *Manager) Usage() *usage.Tracker {
	return m.tracker
}
