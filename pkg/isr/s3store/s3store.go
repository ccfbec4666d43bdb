// Package s3store persists ISR cache entries in an S3 bucket, letting a
// fleet of servers share a single cache. Entries are stored as JSON objects
// under a configurable key prefix.
package s3store

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/philjs-dev/philjs/pkg/isr"
)

// Client is the subset of the S3 API the store uses. *s3.Client satisfies it.
type Client interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Store is an isr.Adapter backed by an S3 bucket.
//
// Example usage:
//
//	cfg, _ := config.LoadDefaultConfig(context.Background())
//	store := s3store.New(s3.NewFromConfig(cfg), "my-bucket", "isr/")
type Store struct {
	client Client
	bucket string
	prefix string
}

// New creates a store writing to bucket under the given key prefix.
// The prefix may be empty.
func New(client Client, bucket, prefix string) *Store {
	return &Store{client: client, bucket: bucket, prefix: prefix}
}

// objectKey maps a cache path to an S3 key. Paths are base64url-encoded so
// slashes and query strings cannot form nested or invalid keys, and Keys
// can recover the original path.
func (s *Store) objectKey(path string) string {
	return s.prefix + base64.RawURLEncoding.EncodeToString([]byte(path)) + ".json"
}

func isNoSuchKey(err error) bool {
	var nsk *types.NoSuchKey
	return errors.As(err, &nsk)
}

// Get fetches and decodes the entry for key, or (nil, nil) when absent.
func (s *Store) Get(ctx context.Context, key string) (*isr.Entry, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("s3store: get %q: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("s3store: read %q: %w", key, err)
	}
	var entry isr.Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("s3store: decode %q: %w", key, err)
	}
	return &entry, nil
}

// Set uploads the entry as a JSON object.
func (s *Store) Set(ctx context.Context, key string, entry *isr.Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("s3store: encode %q: %w", key, err)
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.objectKey(key)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("s3store: put %q: %w", key, err)
	}
	return nil
}

// Delete removes the object for key. S3 treats deleting a missing object
// as success, which matches the adapter contract.
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		return fmt.Errorf("s3store: delete %q: %w", key, err)
	}
	return nil
}

// Keys lists every cached path under the prefix, paging through the bucket.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	var token *string
	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(s.prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("s3store: list keys: %w", err)
		}
		for _, obj := range out.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), s.prefix)
			name = strings.TrimSuffix(name, ".json")
			decoded, err := base64.RawURLEncoding.DecodeString(name)
			if err != nil {
				// Foreign object under our prefix. Skip it.
				continue
			}
			keys = append(keys, string(decoded))
		}
		if out.NextContinuationToken == nil {
			break
		}
		token = out.NextContinuationToken
	}
	return keys, nil
}

// GetMeta returns only the metadata for key, or (nil, nil) when absent.
func (s *Store) GetMeta(ctx context.Context, key string) (*isr.Meta, error) {
	entry, err := s.Get(ctx, key)
	if err != nil || entry == nil {
		return nil, err
	}
	meta := entry.Meta
	return &meta, nil
}
