package vfsregistry

import (
	"context"
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/marlowfs/vfscore/pkg/store/badgerstore"
	"github.com/marlowfs/vfscore/pkg/store/memstore"
	"github.com/marlowfs/vfscore/pkg/store/s3store"
	"github.com/marlowfs/vfscore/pkg/store/simplestore"
	"github.com/marlowfs/vfscore/pkg/storefs"
	"github.com/marlowfs/vfscore/pkg/vfs"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// RegisterBuiltins installs the memory, badger, and s3 Store-backed
// backends, mirroring the "memory"/"badger" metadata-store and "s3"
// content-store choices dittofs's factories.go offers.
func RegisterBuiltins(r *Registry) error {
	for _, b := range []Backend{memoryBackend(), badgerBackend(), s3Backend()} {
		if err := r.RegisterBackend(b); err != nil {
			return err
		}
	}
	return nil
}

func memoryBackend() Backend {
	return Backend{
		Name:        "memory",
		IsAvailable: func() bool { return true },
		Create: func(ctx context.Context, options map[string]any) (vfs.FileSystem, error) {
			type memoryOptions struct {
				Name string `mapstructure:"name"`
			}
			var opts memoryOptions
			if err := mapstructure.Decode(options, &opts); err != nil {
				return nil, fmt.Errorf("memory backend: %w", err)
			}
			if opts.Name == "" {
				opts.Name = "memory"
			}
			return storefs.New(opts.Name, memstore.New()), nil
		},
	}
}

func badgerBackend() Backend {
	return Backend{
		Name: "badger",
		Options: map[string]OptionSchema{
			"path": {Type: "string", Required: true, Description: "on-disk database directory"},
		},
		IsAvailable: func() bool { return true },
		Create: func(ctx context.Context, options map[string]any) (vfs.FileSystem, error) {
			type badgerOptions struct {
				Path     string `mapstructure:"path"`
				InMemory bool   `mapstructure:"in_memory"`
			}
			var opts badgerOptions
			if err := mapstructure.Decode(options, &opts); err != nil {
				return nil, fmt.Errorf("badger backend: %w", err)
			}
			if opts.Path == "" && !opts.InMemory {
				return nil, fmt.Errorf("badger backend: path is required")
			}
			s, err := badgerstore.Open(badgerstore.Config{Path: opts.Path, InMemory: opts.InMemory})
			if err != nil {
				return nil, fmt.Errorf("badger backend: %w", err)
			}
			return storefs.New("badger", s), nil
		},
	}
}

func s3Backend() Backend {
	return Backend{
		Name: "s3",
		Options: map[string]OptionSchema{
			"bucket": {Type: "string", Required: true},
			"region": {Type: "string", Required: true},
		},
		IsAvailable: func() bool { return true },
		Create: func(ctx context.Context, options map[string]any) (vfs.FileSystem, error) {
			type s3Options struct {
				Bucket          string `mapstructure:"bucket"`
				Region          string `mapstructure:"region"`
				Endpoint        string `mapstructure:"endpoint"`
				KeyPrefix       string `mapstructure:"key_prefix"`
				AccessKeyID     string `mapstructure:"access_key_id"`
				SecretAccessKey string `mapstructure:"secret_access_key"`
			}
			var opts s3Options
			if err := mapstructure.Decode(options, &opts); err != nil {
				return nil, fmt.Errorf("s3 backend: %w", err)
			}
			if opts.Bucket == "" || opts.Region == "" {
				return nil, fmt.Errorf("s3 backend: bucket and region are required")
			}

			var configOptions []func(*awsconfig.LoadOptions) error
			configOptions = append(configOptions, awsconfig.WithRegion(opts.Region))
			if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
				configOptions = append(configOptions, awsconfig.WithCredentialsProvider(
					credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
				))
			}
			awsCfg, err := awsconfig.LoadDefaultConfig(ctx, configOptions...)
			if err != nil {
				return nil, fmt.Errorf("s3 backend: load aws config: %w", err)
			}
			client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
				if opts.Endpoint != "" {
					o.BaseEndpoint = aws.String(opts.Endpoint)
					o.UsePathStyle = true
				}
			})
			backend, err := s3store.New(ctx, s3store.Config{Client: client, Bucket: opts.Bucket, KeyPrefix: opts.KeyPrefix})
			if err != nil {
				return nil, fmt.Errorf("s3 backend: %w", err)
			}
			return storefs.New("s3", simplestore.New(backend)), nil
		},
	}
}
