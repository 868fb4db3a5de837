package vfsregistry

import (
	"context"
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/marlowfs/vfscore/internal/logger"
	"github.com/marlowfs/vfscore/pkg/vfs"
)

// maxMountConfigDepth bounds the recursion resolveMountConfig performs when
// an option value is itself a mount configuration.
const maxMountConfigDepth = 10

// MountConfig names a backend and its option values. Backend may itself
// resolve, recursively, to another MountConfig nested inside Options.
type MountConfig struct {
	Backend string         `mapstructure:"backend" validate:"required"`
	Options map[string]any `mapstructure:"options"`
}

// ResolveMountConfig accepts a FileSystem, a Backend, or a MountConfig (or
// the map[string]any produced by decoding one), and returns a FileSystem.
// One created from a Backend or a MountConfig has had Ready called on it; a
// FileSystem passed in is returned as it is, without calling Ready. Option
// values that are themselves mount configurations are
// resolved recursively up to maxMountConfigDepth, past which it fails with
// EINVAL.
func (r *Registry) ResolveMountConfig(ctx context.Context, raw any) (vfs.FileSystem, error) {
	return r.resolveMountConfig(ctx, raw, 0)
}

func (r *Registry) resolveMountConfig(ctx context.Context, raw any, depth int) (vfs.FileSystem, error) {
	if depth > maxMountConfigDepth {
		return nil, vfs.New(vfs.EINVAL, "mount configuration nested too deeply")
	}

	switch v := raw.(type) {
	case vfs.FileSystem:
		return v, nil
	case Backend:
		return r.instantiate(ctx, v, nil, depth)
	}

	cfg, err := decodeMountConfig(raw)
	if err != nil {
		return nil, err
	}
	backend, ok := r.Lookup(cfg.Backend)
	if !ok {
		return nil, vfs.Newf(vfs.EINVAL, "configure", cfg.Backend, "unknown backend")
	}

	resolvedOptions := make(map[string]any, len(cfg.Options))
	for key, value := range cfg.Options {
		if nested, ok := asMountConfigCandidate(value); ok {
			nestedFS, err := r.resolveMountConfig(ctx, nested, depth+1)
			if err != nil {
				return nil, err
			}
			resolvedOptions[key] = nestedFS
			continue
		}
		resolvedOptions[key] = value
	}

	return r.instantiate(ctx, backend, resolvedOptions, depth)
}

func (r *Registry) instantiate(ctx context.Context, backend Backend, options map[string]any, depth int) (vfs.FileSystem, error) {
	if err := r.validateOptions(backend, options); err != nil {
		return nil, err
	}
	if backend.IsAvailable != nil && !backend.IsAvailable() {
		return nil, vfs.Newf(vfs.EPERM, "configure", backend.Name, "backend unavailable")
	}
	fs, err := backend.Create(ctx, options)
	if err != nil {
		return nil, vfs.Wrap(err, "configure", backend.Name)
	}
	if err := fs.Ready(ctx); err != nil {
		return nil, vfs.Wrap(err, "ready", backend.Name)
	}
	logger.Info("mounted backend %s", backend.Name)
	return fs, nil
}

// decodeMountConfig decodes raw (a MountConfig or an untyped map produced
// by viper/yaml) into a MountConfig.
func decodeMountConfig(raw any) (MountConfig, error) {
	if cfg, ok := raw.(MountConfig); ok {
		return cfg, nil
	}
	var cfg MountConfig
	if err := mapstructure.Decode(raw, &cfg); err != nil {
		return MountConfig{}, vfs.New(vfs.EINVAL, fmt.Sprintf("invalid mount configuration: %v", err))
	}
	if cfg.Backend == "" {
		return MountConfig{}, vfs.New(vfs.EINVAL, "mount configuration missing backend field")
	}
	return cfg, nil
}

// asMountConfigCandidate reports whether value looks like a nested mount
// configuration: a map[string]any that has a "backend" key.
func asMountConfigCandidate(value any) (any, bool) {
	m, ok := value.(map[string]any)
	if !ok {
		return nil, false
	}
	if _, hasBackend := m["backend"]; !hasBackend {
		return nil, false
	}
	return m, true
}
