// Package s3store implements simplestore.Backend over an S3-compatible
// bucket, grounded on dittofs's pkg/content/s3.S3ContentStore: same
// HeadBucket availability probe, same key-prefix convention, same
// aws-sdk-go-v2 client wiring.
package s3store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/marlowfs/vfscore/pkg/store"
	"github.com/marlowfs/vfscore/pkg/vfs"
)

// Config configures an S3-backed Store.
type Config struct {
	// Client is a pre-configured S3 client.
	Client *s3.Client
	// Bucket is the target bucket; it must already exist.
	Bucket string
	// KeyPrefix is prepended to every object key.
	KeyPrefix string
}

// Store is a simplestore.Backend that keeps each inode key/kind pair as one
// S3 object.
type Store struct {
	client    *s3.Client
	bucket    string
	keyPrefix string
}

// New verifies bucket access via HeadBucket and returns a Store.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("s3store: client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3store: bucket is required")
	}
	if _, err := cfg.Client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(cfg.Bucket)}); err != nil {
		return nil, fmt.Errorf("s3store: access bucket %q: %w", cfg.Bucket, err)
	}
	return &Store{client: cfg.Client, bucket: cfg.Bucket, keyPrefix: cfg.KeyPrefix}, nil
}

func (s *Store) objectKey(key store.Key) string {
	return fmt.Sprintf("%s%020d.%d", s.keyPrefix, uint64(key.Ino), key.Kind)
}

func (s *Store) Get(ctx context.Context, key store.Key) ([]byte, bool, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (s *Store) Put(ctx context.Context, key store.Key, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
		Body:   bytes.NewReader(data),
	})
	return err
}

func (s *Store) Delete(ctx context.Context, key store.Key) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	return err
}

func (s *Store) Keys(ctx context.Context) ([]store.Key, error) {
	var keys []store.Key
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.keyPrefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Contents {
			k, ok := parseObjectKey(*obj.Key, s.keyPrefix)
			if !ok {
				continue
			}
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func parseObjectKey(objectKey, prefix string) (store.Key, bool) {
	name := objectKey[len(prefix):]
	var ino uint64
	var kind uint8
	if _, err := fmt.Sscanf(name, "%020d.%d", &ino, &kind); err != nil {
		return store.Key{}, false
	}
	return store.Key{Ino: vfs.Ino(ino), Kind: store.KeyKind(kind)}, true
}
