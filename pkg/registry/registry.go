// Package registry maps engine names to their backend implementations and
// capability metadata. The registry is populated once at process start and
// is read-only thereafter, so lookups need no locking.
package registry

import (
	"errors"
	"fmt"
	"slices"

	"github.com/voxgate/voxgate/pkg/engine"
)

// ErrUnknownEngine is returned when a name resolves to no registered engine.
var ErrUnknownEngine = errors.New("registry: unknown engine")

// Descriptor carries the capability metadata of a registered engine.
type Descriptor struct {
	// Name is the unique lookup key. Matching is exact and case-sensitive.
	Name string

	// DisplayName is a human-readable label for listings.
	DisplayName string

	// Formats lists the audio formats the engine can produce.
	Formats []string

	// Voices lists the voices the engine advertises.
	Voices []string

	// Languages lists language hints the engine accepts.
	Languages []string

	// DefaultVoice is applied when a request does not name a voice.
	DefaultVoice string
}

// SupportsFormat reports whether the engine advertises the given format.
// An engine with no declared formats accepts anything.
func (d Descriptor) SupportsFormat(format string) bool {
	if len(d.Formats) == 0 || format == "" {
		return true
	}
	return slices.Contains(d.Formats, format)
}

// entry pairs a descriptor with its implementation.
type entry struct {
	desc Descriptor
	eng  engine.Engine
}

// Registry resolves engine names. Construct it with New and Register during
// startup; it must not be mutated once the gateway starts serving.
type Registry struct {
	entries map[string]entry
	names   []string // sorted
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Register adds an engine under its descriptor name. Duplicate names and
// nil engines are rejected.
func (r *Registry) Register(desc Descriptor, eng engine.Engine) error {
	if desc.Name == "" {
		return fmt.Errorf("registry: descriptor name is required")
	}
	if eng == nil {
		return fmt.Errorf("registry: engine for %q is nil", desc.Name)
	}
	if _, exists := r.entries[desc.Name]; exists {
		return fmt.Errorf("registry: engine %q already registered", desc.Name)
	}

	r.entries[desc.Name] = entry{desc: desc, eng: eng}

	i, _ := slices.BinarySearch(r.names, desc.Name)
	r.names = slices.Insert(r.names, i, desc.Name)
	return nil
}

// Resolve looks up an engine by exact name.
func (r *Registry) Resolve(name string) (Descriptor, engine.Engine, error) {
	e, ok := r.entries[name]
	if !ok {
		return Descriptor{}, nil, fmt.Errorf("%w: %q", ErrUnknownEngine, name)
	}
	return e.desc, e.eng, nil
}

// Names returns the registered engine names in sorted order.
func (r *Registry) Names() []string {
	return slices.Clone(r.names)
}

// Descriptors returns all descriptors in name order.
func (r *Registry) Descriptors() []Descriptor {
	out := make([]Descriptor, 0, len(r.names))
	for _, name := range r.names {
		out = append(out, r.entries[name].desc)
	}
	return out
}

// Len returns the number of registered engines.
func (r *Registry) Len() int {
	return len(r.entries)
}

// Close closes every registered engine, joining any errors.
func (r *Registry) Close() error {
	var errs []error
	for _, name := range r.names {
		if err := r.entries[name].eng.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing engine %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
