// Command vfsdemo mounts Store-backed filesystems into a mount router: the
// mounts listed in a -config file, or else a single in-memory filesystem at
// "/" to which it writes /tmp and /hello.txt. Grounded on the mount-assembly shape of
// dittofs's cmd/dittofs main, stripped of NFS server startup.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/marlowfs/vfscore/internal/logger"
	"github.com/marlowfs/vfscore/pkg/mount"
	"github.com/marlowfs/vfscore/pkg/vfs"
	"github.com/marlowfs/vfscore/pkg/vfsregistry"
)

func main() {
	configPath := flag.String("config", "", "path to a mount configuration file")
	logLevel := flag.String("log-level", "info", "log level: debug|info|warn|error")
	flag.Parse()
	logger.SetLevel(*logLevel)

	ctx := context.Background()
	registry := vfsregistry.New()
	if err := vfsregistry.RegisterBuiltins(registry); err != nil {
		logger.Error("register backends: %v", err)
		os.Exit(1)
	}
	router := mount.New()

	if *configPath != "" {
		cfg, err := vfsregistry.LoadProcessConfig(*configPath)
		if err != nil {
			logger.Error("load config: %v", err)
			os.Exit(1)
		}
		if _, err := registry.Configure(ctx, router, cfg); err != nil {
			logger.Error("configure mounts: %v", err)
			os.Exit(1)
		}
		logger.Info("mounted %d configured filesystems", len(cfg.Mounts))
		return
	}

	backend, _ := registry.Lookup("memory")
	fs, err := registry.ResolveMountConfig(ctx, backend)
	if err != nil {
		logger.Error("create default memory filesystem: %v", err)
		os.Exit(1)
	}
	if err := router.Mount("/", fs); err != nil {
		logger.Error("mount /: %v", err)
		os.Exit(1)
	}

	if err := fs.Mkdir(ctx, "/tmp", 0755, vfs.Root()); err != nil {
		logger.Error("mkdir /tmp: %v", err)
		os.Exit(1)
	}
	handle, err := fs.CreateFile(ctx, "/hello.txt", vfs.OpenFlag{Write: true, Create: true}, 0644, vfs.Root())
	if err != nil {
		logger.Error("create /hello.txt: %v", err)
		os.Exit(1)
	}
	if _, err := handle.Write(ctx, []byte("hello, vfscore\n"), 0); err != nil {
		logger.Error("write /hello.txt: %v", err)
		os.Exit(1)
	}
	if err := handle.Close(ctx); err != nil {
		logger.Error("close /hello.txt: %v", err)
		os.Exit(1)
	}
	logger.Info("mounted an in-memory filesystem at / with /tmp and /hello.txt")
}
