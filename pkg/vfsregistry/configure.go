package vfsregistry

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/marlowfs/vfscore/pkg/mount"
	"github.com/marlowfs/vfscore/pkg/vfs"
)

var validate = validator.New()

// MountSpec binds an absolute path prefix to a mount configuration.
type MountSpec struct {
	Prefix string `mapstructure:"prefix" validate:"required"`
	Config any    `mapstructure:"config" validate:"required"`
}

// ProcessConfig is the top-level configuration accepted by Configure.
type ProcessConfig struct {
	Mounts            []MountSpec `mapstructure:"mounts" validate:"required,dive"`
	UID               uint32      `mapstructure:"uid"`
	GID               uint32      `mapstructure:"gid"`
	DisableAsyncCache bool        `mapstructure:"disable_async_cache"`
}

// Configure establishes process credentials and installs every configured
// mount into router, matching dittofs's InitializeRegistry orchestration
// (registerMetadataStores / registerContentStores / addShares) generalized
// to a single FileSystem-per-mount model.
func (r *Registry) Configure(ctx context.Context, router *mount.Router, cfg ProcessConfig) (vfs.Credential, error) {
	if err := validate.Struct(cfg); err != nil {
		return vfs.Credential{}, formatValidationError(err)
	}
	cred := vfs.Credential{UID: cfg.UID, GID: cfg.GID, EUID: cfg.UID, EGID: cfg.GID}
	for _, spec := range cfg.Mounts {
		fs, err := r.ResolveMountConfig(ctx, spec.Config)
		if err != nil {
			return cred, err
		}
		if err := router.Mount(spec.Prefix, fs); err != nil {
			return cred, err
		}
	}
	return cred, nil
}

// ConfigureSingle replaces the root mount with the FileSystem resolved
// from cfg.
func (r *Registry) ConfigureSingle(ctx context.Context, router *mount.Router, cfg any) error {
	fs, err := r.ResolveMountConfig(ctx, cfg)
	if err != nil {
		return err
	}
	_ = router.Umount("/")
	return router.Mount("/", fs)
}

// LoadProcessConfig reads a configuration file (YAML/TOML/JSON, whatever
// viper's extension sniffing supports) into a ProcessConfig, the same
// viper-driven loading style dittofs's pkg/config uses.
func LoadProcessConfig(path string) (ProcessConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("VFSCORE")
	v.AutomaticEnv()
	if err := v.ReadInConfig(); err != nil {
		return ProcessConfig{}, fmt.Errorf("vfsregistry: read config: %w", err)
	}
	var cfg ProcessConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return ProcessConfig{}, fmt.Errorf("vfsregistry: decode config: %w", err)
	}
	return cfg, nil
}

func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok && len(validationErrs) > 0 {
		e := validationErrs[0]
		return vfs.New(vfs.EINVAL, fmt.Sprintf("%s: validation failed on %q tag", e.Namespace(), e.Tag()))
	}
	return vfs.New(vfs.EINVAL, err.Error())
}
