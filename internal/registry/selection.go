package registry

import (
	"context"
	"sort"

	"github.com/opencode-ai/pocketcode/pkg/types"
)

type modelRecord struct {
	ProviderID string `json:"providerID"`
	ModelID    string `json:"modelID"`
}

type agentRecord struct {
	Name string `json:"name"`
}

// SetSelectedModel persists the chosen model.
func (r *Registry) SetSelectedModel(ctx context.Context, ref types.ModelRef) error {
	return r.store.Put(ctx, []string{"state", "model"}, modelRecord{ProviderID: ref.ProviderID, ModelID: ref.ModelID})
}

// SelectedModel returns the persisted model choice, if any.
func (r *Registry) SelectedModel(ctx context.Context) (types.ModelRef, bool) {
	var rec modelRecord
	if err := r.store.Get(ctx, []string{"state", "model"}, &rec); err != nil {
		return types.ModelRef{}, false
	}
	return types.ModelRef{ProviderID: rec.ProviderID, ModelID: rec.ModelID}, true
}

// SetSelectedAgent persists the chosen agent name.
func (r *Registry) SetSelectedAgent(ctx context.Context, name string) error {
	return r.store.Put(ctx, []string{"state", "agent"}, agentRecord{Name: name})
}

// SelectedAgent returns the persisted agent choice, or "".
func (r *Registry) SelectedAgent(ctx context.Context) string {
	var rec agentRecord
	if err := r.store.Get(ctx, []string{"state", "agent"}, &rec); err != nil {
		return ""
	}
	return rec.Name
}

// ResolveModel validates the persisted model against the current provider
// catalog. A stale or missing selection falls back silently: first to a
// provider's default model, then to the first model available.
func (r *Registry) ResolveModel(ctx context.Context, list *types.ProviderList) (types.ModelRef, bool) {
	if list == nil || len(list.Providers) == 0 {
		return types.ModelRef{}, false
	}

	if ref, ok := r.SelectedModel(ctx); ok {
		for _, p := range list.Providers {
			if p.ID != ref.ProviderID {
				continue
			}
			if _, ok := p.Models[ref.ModelID]; ok {
				return ref, true
			}
		}
	}

	providers := make([]types.Provider, len(list.Providers))
	copy(providers, list.Providers)
	sort.Slice(providers, func(i, j int) bool { return providers[i].ID < providers[j].ID })

	for _, p := range providers {
		if def, ok := list.Default[p.ID]; ok {
			if _, ok := p.Models[def]; ok {
				return types.ModelRef{ProviderID: p.ID, ModelID: def}, true
			}
		}
	}
	for _, p := range providers {
		ids := make([]string, 0, len(p.Models))
		for id := range p.Models {
			ids = append(ids, id)
		}
		if len(ids) > 0 {
			sort.Strings(ids)
			return types.ModelRef{ProviderID: p.ID, ModelID: ids[0]}, true
		}
	}
	return types.ModelRef{}, false
}

// ResolveAgent validates the persisted agent name against the current agent
// list, falling back to the first primary-mode agent, then to the built-in
// default name when the list is empty or unavailable.
func (r *Registry) ResolveAgent(ctx context.Context, agents []types.Agent) string {
	selected := r.SelectedAgent(ctx)
	for _, a := range agents {
		if a.Name == selected {
			return selected
		}
	}
	for _, a := range agents {
		if a.Mode == "" || a.Mode == "primary" || a.Mode == "all" {
			return a.Name
		}
	}
	return types.DefaultAgent
}
