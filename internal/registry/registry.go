// Package registry resolves logical dataset names to layer files. The
// table is fixed at process start; nothing mutates it afterwards.
package registry

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
)

// Layer identifies which pipeline stage produced a dataset.
type Layer string

const (
	LayerProcessed Layer = "processed"
	LayerMetrics   Layer = "metrics"
)

// ParseLayer validates a layer name from an API query parameter.
func ParseLayer(s string) (Layer, error) {
	switch Layer(s) {
	case LayerProcessed, LayerMetrics:
		return Layer(s), nil
	default:
		return "", fmt.Errorf("unknown layer %q (must be processed or metrics)", s)
	}
}

// ErrNotFound marks a dataset name with no registry entry. Distinct from
// the repository's missing-file error: this name is simply unknown.
var ErrNotFound = errors.New("dataset not found")

// Descriptor locates one dataset. Immutable after registry construction.
type Descriptor struct {
	Name  string `json:"name"`
	Layer Layer  `json:"layer"`
	Path  string `json:"-"`
}

// Registry is the static name-to-descriptor table.
type Registry struct {
	byName map[string]Descriptor
	names  []string
}

// New builds a registry from descriptors. Duplicate names are a
// configuration error and fail construction.
func New(descriptors []Descriptor) (*Registry, error) {
	r := &Registry{byName: make(map[string]Descriptor, len(descriptors))}
	for _, d := range descriptors {
		if d.Name == "" {
			return nil, errors.New("dataset descriptor with empty name")
		}
		if _, exists := r.byName[d.Name]; exists {
			return nil, fmt.Errorf("duplicate dataset name %q", d.Name)
		}
		r.byName[d.Name] = d
		r.names = append(r.names, d.Name)
	}
	sort.Strings(r.names)
	return r, nil
}

// Resolve returns the descriptor for name, or ErrNotFound.
func (r *Registry) Resolve(name string) (Descriptor, error) {
	d, ok := r.byName[name]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return d, nil
}

// List returns all descriptors, optionally restricted to one layer.
// The empty layer means both.
func (r *Registry) List(layer Layer) []Descriptor {
	out := make([]Descriptor, 0, len(r.names))
	for _, name := range r.names {
		d := r.byName[name]
		if layer != "" && d.Layer != layer {
			continue
		}
		out = append(out, d)
	}
	return out
}

// Default returns the standard dataset table rooted at dataDir.
func Default(dataDir string) []Descriptor {
	processed := func(name, file string) Descriptor {
		return Descriptor{Name: name, Layer: LayerProcessed, Path: filepath.Join(dataDir, "processed", file)}
	}
	metrics := func(name, file string) Descriptor {
		return Descriptor{Name: name, Layer: LayerMetrics, Path: filepath.Join(dataDir, "metrics", file)}
	}

	return []Descriptor{
		processed("vehicle_registrations", "vehicle_registrations.csv"),
		processed("gas_connections", "gas_connections.csv"),
		processed("energy_by_fuel", "energy_by_fuel.csv"),
		processed("generation", "generation.csv"),

		metrics("ev_count", "ev_count.csv"),
		metrics("fleet_electrification", "fleet_electrification.csv"),
		metrics("ev_cumulative", "ev_cumulative.csv"),
		metrics("ev_uptake_yoy", "ev_uptake_yoy.csv"),
		metrics("gas_connections_monthly", "gas_connections_monthly.csv"),
		metrics("energy_by_fuel_mwh", "energy_by_fuel_mwh.csv"),
		metrics("electricity_share", "electricity_share.csv"),
		metrics("renewable_share", "renewable_share.csv"),
	}
}
