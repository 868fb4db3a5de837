// Package vfsregistry implements the backend registry and mount
// configuration layer, grounded on dittofs's pkg/config (registry.go,
// factories.go, validation.go), generalized from dittofs's two-store
// (metadata+content) per-share model to a single FileSystem-per-mount
// model. Configuration is loaded with spf13/viper, validated with
// go-playground/validator/v10, and per-backend option bags are decoded
// with mitchellh/mapstructure — the same three-library split dittofs uses.
package vfsregistry

import (
	"context"
	"fmt"

	"github.com/marlowfs/vfscore/pkg/vfs"
)

// OptionSchema describes one named option a Backend accepts.
type OptionSchema struct {
	Type        string // "string" | "number" | "object" | "boolean"
	Required    bool
	Description string
	Validator   func(value any) error
}

// Backend is a factory producing a FileSystem instance from validated
// options.
type Backend struct {
	Name        string
	Options     map[string]OptionSchema
	IsAvailable func() bool
	Create      func(ctx context.Context, options map[string]any) (vfs.FileSystem, error)
}

// Registry holds the set of backends available to mount configuration,
// grounded on dittofs's pkg/registry.Registry named-resource map.
type Registry struct {
	backends map[string]Backend
}

// New returns an empty backend Registry.
func New() *Registry {
	return &Registry{backends: make(map[string]Backend)}
}

// RegisterBackend adds b to the registry. Registering a duplicate name is
// an error, matching dittofs's RegisterMetadataStore/RegisterContentStore
// duplicate-check pattern.
func (r *Registry) RegisterBackend(b Backend) error {
	if b.Name == "" {
		return fmt.Errorf("vfsregistry: backend name is required")
	}
	if _, exists := r.backends[b.Name]; exists {
		return fmt.Errorf("vfsregistry: backend %q already registered", b.Name)
	}
	r.backends[b.Name] = b
	return nil
}

// Lookup returns the named backend.
func (r *Registry) Lookup(name string) (Backend, bool) {
	b, ok := r.backends[name]
	return b, ok
}

func (r *Registry) validateOptions(b Backend, options map[string]any) error {
	for name, schema := range b.Options {
		value, present := options[name]
		if !present {
			if schema.Required {
				return vfs.Newf(vfs.EINVAL, "configure", b.Name, fmt.Sprintf("missing required option %q", name))
			}
			continue
		}
		if schema.Validator != nil {
			if err := schema.Validator(value); err != nil {
				return vfs.Newf(vfs.EINVAL, "configure", b.Name, fmt.Sprintf("option %q: %v", name, err))
			}
		}
	}
	return nil
}
