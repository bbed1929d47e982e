package llmrelay

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed config/models/*.yaml
var modelTablesFS embed.FS

// ModelInfo describes a model's capabilities and pricing. Prices are USD per
// million tokens. The descriptor is immutable per request: adapters read it,
// the parameter resolver derives request parameters from it, nothing mutates
// it.
type ModelInfo struct {
	ContextWindow       int  `yaml:"context_window"`
	MaxTokens           int  `yaml:"max_tokens"`
	SupportsImages      bool `yaml:"supports_images"`
	SupportsPromptCache bool `yaml:"supports_prompt_cache"`
	SupportsNativeTools bool `yaml:"supports_native_tools"`

	// Budget-based reasoning (numeric token cap). Required means the model
	// always runs with a budget, regardless of user settings.
	SupportsReasoningBudget bool `yaml:"supports_reasoning_budget"`
	RequiredReasoningBudget bool `yaml:"required_reasoning_budget"`

	// Effort-based reasoning (qualitative levels). ReasoningEfforts, when
	// non-empty, enumerates the supported levels.
	SupportsReasoningEffort bool     `yaml:"supports_reasoning_effort"`
	ReasoningEfforts        []string `yaml:"reasoning_efforts"`
	DefaultReasoningEffort  string   `yaml:"default_reasoning_effort"`

	InputPrice       float64 `yaml:"input_price"`
	OutputPrice      float64 `yaml:"output_price"`
	CacheWritesPrice float64 `yaml:"cache_writes_price"`
	CacheReadsPrice  float64 `yaml:"cache_reads_price"`

	// Tiers overrides base prices when the realized context length or
	// service tier matches. Sorted ascending by context window threshold.
	Tiers []PricingTier `yaml:"tiers"`
}

// PricingTier overrides base prices above a context threshold or for a named
// service tier. Absent prices fall back to the base model prices.
type PricingTier struct {
	ContextWindow    int      `yaml:"context_window"`
	ServiceTier      string   `yaml:"service_tier"`
	InputPrice       *float64 `yaml:"input_price"`
	OutputPrice      *float64 `yaml:"output_price"`
	CacheWritesPrice *float64 `yaml:"cache_writes_price"`
	CacheReadsPrice  *float64 `yaml:"cache_reads_price"`
}

// ResolvedModel pairs a model id with its descriptor.
type ResolvedModel struct {
	ID   string
	Info ModelInfo
}

// ModelTable is a provider's model catalog plus its default model id.
type ModelTable struct {
	Provider       string               `yaml:"provider"`
	DefaultModelID string               `yaml:"default_model"`
	Models         map[string]ModelInfo `yaml:"models"`
}

// Resolve maps a configured model id to a descriptor. It never fails: an
// empty id resolves to the table default, an unknown id resolves to the
// default entry when the table has one, and otherwise to a synthesized
// minimal descriptor so callers are never blocked by an unrecognized id.
func (t ModelTable) Resolve(id string) ResolvedModel {
	if id == "" {
		id = t.DefaultModelID
	}
	if info, ok := t.Models[id]; ok {
		return ResolvedModel{ID: id, Info: info}
	}
	if info, ok := t.Models[t.DefaultModelID]; ok {
		return ResolvedModel{ID: t.DefaultModelID, Info: info}
	}
	return ResolvedModel{ID: id, Info: synthesizeModelInfo()}
}

// synthesizeModelInfo builds a conservative descriptor for models absent
// from every table. Prices stay zero so cost comes out as zero rather than
// guessed.
func synthesizeModelInfo() ModelInfo {
	return ModelInfo{
		ContextWindow:       128_000,
		MaxTokens:           8192,
		SupportsNativeTools: true,
	}
}

type modelRegistry struct {
	mu     sync.RWMutex
	tables map[string]ModelTable
}

var (
	globalModels     *modelRegistry
	globalModelsOnce sync.Once
)

func modelTables() *modelRegistry {
	globalModelsOnce.Do(func() {
		globalModels = &modelRegistry{tables: make(map[string]ModelTable)}
		if err := globalModels.loadEmbedded(); err != nil {
			// Embedded tables ship with the module; a load failure leaves the
			// registry empty and every lookup synthesizing descriptors.
			fmt.Fprintf(os.Stderr, "llmrelay: failed to load embedded model tables: %v\n", err)
		}
	})
	return globalModels
}

func (r *modelRegistry) loadEmbedded() error {
	entries, err := fs.ReadDir(modelTablesFS, "config/models")
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, entry := range entries {
		data, err := modelTablesFS.ReadFile("config/models/" + entry.Name())
		if err != nil {
			return err
		}
		var table ModelTable
		if err := yaml.Unmarshal(data, &table); err != nil {
			return fmt.Errorf("unmarshal %s: %w", entry.Name(), err)
		}
		r.tables[table.Provider] = table
	}
	return nil
}

// ModelsFor returns the embedded model table for a provider. The second
// return is false when no table ships for that provider key; callers fall
// back to their own default descriptor.
func ModelsFor(provider ProviderID) (ModelTable, bool) {
	r := modelTables()
	r.mu.RLock()
	defer r.mu.RUnlock()
	table, ok := r.tables[provider.String()]
	return table, ok
}

// LoadModelTableFromFile overrides or adds a provider model table from a
// YAML file. The file format matches the embedded tables.
func LoadModelTableFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read model table: %w", err)
	}
	var table ModelTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return fmt.Errorf("unmarshal model table: %w", err)
	}
	if table.Provider == "" {
		return fmt.Errorf("model table %s missing provider field", path)
	}
	r := modelTables()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tables[table.Provider] = table
	return nil
}

// RegisterModelTable programmatically overrides a provider model table.
func RegisterModelTable(table ModelTable) {
	r := modelTables()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tables[table.Provider] = table
}
