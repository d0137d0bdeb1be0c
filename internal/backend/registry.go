package backend

import (
	"fmt"
	"slices"
	"sort"
	"strings"
)

// Registry maps algorithm identifiers to backend families.
// It is built once at startup and passed to the worker pool; it is not
// safe for concurrent Register calls.
type Registry struct {
	families map[string]*Family
}

// NewRegistry creates a registry holding the given families.
func NewRegistry(families ...Family) *Registry {
	r := &Registry{families: make(map[string]*Family, len(families))}
	for _, f := range families {
		r.Register(f)
	}
	return r
}

// Register adds or replaces a family.
func (r *Registry) Register(f Family) {
	fam := f
	r.families[f.Name] = &fam
}

// Family returns a registered family by name.
func (r *Registry) Family(name string) (*Family, bool) {
	f, ok := r.families[name]
	return f, ok
}

// Resolve turns an algorithm identifier into its family, model and sorted ratios.
func (r *Registry) Resolve(id string) (Algorithm, error) {
	if f, ok := r.families[id]; ok {
		if len(f.Models) > 0 {
			return Algorithm{}, fmt.Errorf("%w: %q requires a model (one of %s)",
				ErrUnknownModel, id, strings.Join(modelNames(f), ", "))
		}
		return Algorithm{ID: id, Family: f, Ratios: sortedRatios(f.Ratios)}, nil
	}

	name, model, found := strings.Cut(id, "-")
	if !found {
		return Algorithm{}, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, id)
	}
	f, ok := r.families[name]
	if !ok {
		return Algorithm{}, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, id)
	}
	ratios, ok := f.Models[model]
	if !ok {
		return Algorithm{}, fmt.Errorf("%w: %q for %s", ErrUnknownModel, model, name)
	}
	return Algorithm{ID: id, Family: f, Model: model, Ratios: sortedRatios(ratios)}, nil
}

// Algorithms lists every resolvable identifier, sorted.
func (r *Registry) Algorithms() []string {
	var ids []string
	for name, f := range r.families {
		if len(f.Models) == 0 {
			ids = append(ids, name)
			continue
		}
		for _, m := range modelNames(f) {
			ids = append(ids, name+"-"+m)
		}
	}
	sort.Strings(ids)
	return ids
}

func modelNames(f *Family) []string {
	names := make([]string, 0, len(f.Models))
	for m := range f.Models {
		names = append(names, m)
	}
	sort.Strings(names)
	return names
}

func sortedRatios(ratios []int) []int {
	out := slices.Clone(ratios)
	slices.Sort(out)
	return out
}
