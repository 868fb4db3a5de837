package vfsregistry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/marlowfs/vfscore/pkg/mount"
	"github.com/marlowfs/vfscore/pkg/vfs"
	"github.com/marlowfs/vfscore/pkg/vfsregistry"
)

func TestRegisterBackendRejectsDuplicates(t *testing.T) {
	r := vfsregistry.New()
	require.NoError(t, r.RegisterBackend(vfsregistry.Backend{Name: "memory", IsAvailable: func() bool { return true }}))
	err := r.RegisterBackend(vfsregistry.Backend{Name: "memory"})
	require.Error(t, err)
}

func TestRegisterBuiltinsRegistersAllThree(t *testing.T) {
	r := vfsregistry.New()
	require.NoError(t, vfsregistry.RegisterBuiltins(r))
	for _, name := range []string{"memory", "badger", "s3"} {
		_, ok := r.Lookup(name)
		require.True(t, ok, "expected backend %q to be registered", name)
	}
}

func TestResolveMountConfigMissingBackendFieldFails(t *testing.T) {
	r := vfsregistry.New()
	_, err := r.ResolveMountConfig(context.Background(), map[string]any{"options": map[string]any{}})
	require.True(t, vfs.IsInvalid(err))
}

func TestResolveMountConfigUnknownBackendFails(t *testing.T) {
	r := vfsregistry.New()
	_, err := r.ResolveMountConfig(context.Background(), vfsregistry.MountConfig{Backend: "nope"})
	require.True(t, vfs.IsInvalid(err))
}

func TestResolveMountConfigMissingRequiredOptionFails(t *testing.T) {
	r := vfsregistry.New()
	require.NoError(t, vfsregistry.RegisterBuiltins(r))
	_, err := r.ResolveMountConfig(context.Background(), vfsregistry.MountConfig{Backend: "badger"})
	require.True(t, vfs.IsInvalid(err))
}

func TestResolveMountConfigMemoryBackendSucceeds(t *testing.T) {
	r := vfsregistry.New()
	require.NoError(t, vfsregistry.RegisterBuiltins(r))
	fs, err := r.ResolveMountConfig(context.Background(), vfsregistry.MountConfig{Backend: "memory"})
	require.NoError(t, err)
	require.NotNil(t, fs)

	stat, err := fs.Stat(context.Background(), "/", vfs.Root())
	require.NoError(t, err)
	require.True(t, stat.Mode.IsDir())
}

func TestConfigureMountsEachSpecAndReturnsCredential(t *testing.T) {
	r := vfsregistry.New()
	require.NoError(t, vfsregistry.RegisterBuiltins(r))
	router := mount.New()

	cfg := vfsregistry.ProcessConfig{
		UID: 42,
		GID: 42,
		Mounts: []vfsregistry.MountSpec{
			{Prefix: "/", Config: vfsregistry.MountConfig{Backend: "memory"}},
		},
	}
	cred, err := r.Configure(context.Background(), router, cfg)
	require.NoError(t, err)
	require.Equal(t, uint32(42), cred.UID)

	fs, _, err := router.Resolve("/anything")
	require.NoError(t, err)
	require.NotNil(t, fs)
}

func TestConfigureRejectsMissingMounts(t *testing.T) {
	r := vfsregistry.New()
	router := mount.New()
	_, err := r.Configure(context.Background(), router, vfsregistry.ProcessConfig{})
	require.True(t, vfs.IsInvalid(err))
}
