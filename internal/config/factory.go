package config

import (
	"fmt"
	"strings"
	"sync"

	"github.com/conclave-ai/conclave/pkg/models"
)

// TierOrder is the capability ladder, strongest first.
var TierOrder = []string{"premium", "standard", "fast"}

// Factory builds AgentConfigs from provider and tier identifiers. An
// unknown provider or tier is the one configuration error treated as
// fatal; everything downstream assumes agent construction succeeded.
type Factory struct {
	providers map[string]ProviderConfig

	mu    sync.Mutex
	built map[string]builtAgent
}

type builtAgent struct {
	provider string
	tier     string
}

// NewFactory creates a factory over the config's provider registry.
func NewFactory(cfg *Config) *Factory {
	return &Factory{
		providers: cfg.Providers,
		built:     make(map[string]builtAgent),
	}
}

// AgentFor returns the AgentConfig for a provider at a capability tier.
func (f *Factory) AgentFor(provider, tier string) (models.AgentConfig, error) {
	p, ok := f.providers[provider]
	if !ok {
		return models.AgentConfig{}, fmt.Errorf("unknown provider %q", provider)
	}
	model, ok := p.Models[tier]
	if !ok {
		return models.AgentConfig{}, fmt.Errorf("provider %q has no model for tier %q", provider, tier)
	}

	command := make([]string, len(p.Command))
	for i, arg := range p.Command {
		command[i] = strings.ReplaceAll(arg, "{model}", model)
	}

	name := provider
	if f.nameTaken(provider) {
		name = provider + "-" + tier
	}

	cfg := models.AgentConfig{
		Name:           name,
		Command:        command,
		PromptViaStdin: p.PromptViaStdin,
	}

	f.mu.Lock()
	f.built[cfg.Name] = builtAgent{provider: provider, tier: tier}
	f.mu.Unlock()

	return cfg, nil
}

// nameTaken reports whether the plain provider name is already in use.
// The first agent built for a provider gets the bare name, later tiers of
// the same provider get a suffixed one so names stay unique per run.
func (f *Factory) nameTaken(provider string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, taken := f.built[provider]
	return taken
}

// LowerTier returns the tier one step below the given one, with a floor
// at the lowest tier.
func (f *Factory) LowerTier(tier string) string {
	for i, t := range TierOrder {
		if t == tier {
			if i == len(TierOrder)-1 {
				return t
			}
			return TierOrder[i+1]
		}
	}
	return tier
}

// StepDown maps an agent to the same provider one tier lower. Agents the
// factory did not build, and agents already at the floor, come back
// unchanged.
func (f *Factory) StepDown(cfg models.AgentConfig) models.AgentConfig {
	f.mu.Lock()
	origin, ok := f.built[cfg.Name]
	f.mu.Unlock()
	if !ok {
		return cfg
	}

	lower := f.LowerTier(origin.tier)
	if lower == origin.tier {
		return cfg
	}

	stepped, err := f.AgentFor(origin.provider, lower)
	if err != nil {
		return cfg
	}
	return stepped
}
