package llm

import (
	"fmt"

	"parserator/internal/config"
	"parserator/internal/port"
)

// ProviderFactory creates a TextGenerator from a provider config.
type ProviderFactory func(cfg *config.LLMProviderConfig) (port.TextGenerator, error)

// registry of provider factories, populated by init() in each provider package
// or explicitly via RegisterProvider.
var providers = map[string]ProviderFactory{}

// RegisterProvider registers a provider factory by name.
func RegisterProvider(name string, factory ProviderFactory) {
	providers[name] = factory
}

// NewGenerator creates a TextGenerator from a provider config using the registered factory.
func NewGenerator(cfg *config.LLMProviderConfig) (port.TextGenerator, error) {
	factory, ok := providers[cfg.Provider]
	if !ok {
		return nil, fmt.Errorf("unknown llm provider: %s", cfg.Provider)
	}
	return factory(cfg)
}

// NewGeneratorChain builds one generator per configured provider. A single
// provider is returned as is; more are wrapped in a FallbackGenerator.
func NewGeneratorChain(cfgs []*config.LLMProviderConfig) (port.TextGenerator, error) {
	if len(cfgs) == 0 {
		return nil, fmt.Errorf("no llm provider configured")
	}
	gens := make([]port.TextGenerator, 0, len(cfgs))
	names := make([]string, 0, len(cfgs))
	for _, c := range cfgs {
		g, err := NewGenerator(c)
		if err != nil {
			return nil, fmt.Errorf("creating %s provider: %w", c.Provider, err)
		}
		gens = append(gens, g)
		names = append(names, c.Provider)
	}
	if len(gens) == 1 {
		return gens[0], nil
	}
	return NewFallbackGenerator(gens, names), nil
}
