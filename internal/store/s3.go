package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"sentrydesk/internal/audit"
	"sentrydesk/internal/types"
)

// S3Client wraps the AWS S3 client for canonical JSON operations,
// shared by S3PartitionStore for both entry objects and the partition
// metadata sidecar.
type S3Client struct {
	client *s3.Client
	bucket string
}

// NewS3Client creates a new S3 client wrapper.
func NewS3Client(client *s3.Client, bucket string) *S3Client {
	return &S3Client{
		client: client,
		bucket: bucket,
	}
}

// PutJSON writes a value as JSON to S3.
func (c *S3Client) PutJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	_, err = c.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to put object to S3: %w", err)
	}

	return nil
}

// GetJSON reads a value from S3 and unmarshals it.
func (c *S3Client) GetJSON(ctx context.Context, key string, v any) error {
	result, err := c.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to get object from S3: %w", err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return fmt.Errorf("failed to read S3 object body: %w", err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal JSON: %w", err)
	}

	return nil
}

// ListKeys lists every object key under prefix, in lexicographic order.
func (c *S3Client) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	var token *string
	for {
		out, err := c.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(c.bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list S3 objects: %w", err)
		}
		for _, obj := range out.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
		if out.IsTruncated == nil || !*out.IsTruncated {
			break
		}
		token = out.NextContinuationToken
	}
	sort.Strings(keys)
	return keys, nil
}

// S3PartitionStore is the S3-backed audit.Store named in spec §6: each
// entry is its own object, named so lexicographic listing order is
// append order, plus a metadata sidecar object per partition. S3 has no
// append operation, so ordering is carried entirely in the key name
// rather than file position.
type S3PartitionStore struct {
	s3     *S3Client
	prefix string

	mu   sync.Mutex
	next map[string]int // partition -> next sequence number, lazily seeded
}

// NewS3PartitionStore constructs an S3PartitionStore over client,
// namespacing every key under prefix (e.g. "audit/").
func NewS3PartitionStore(client *S3Client, prefix string) *S3PartitionStore {
	return &S3PartitionStore{s3: client, prefix: strings.TrimSuffix(prefix, "/"), next: make(map[string]int)}
}

func (s *S3PartitionStore) entryKey(partition string, seq int) string {
	return fmt.Sprintf("%s/%s/entries/%012d.json", s.prefix, partition, seq)
}

func (s *S3PartitionStore) entryPrefix(partition string) string {
	return fmt.Sprintf("%s/%s/entries/", s.prefix, partition)
}

func (s *S3PartitionStore) metaKey(partition string) string {
	return fmt.Sprintf("%s/%s/meta.json", s.prefix, partition)
}

// Append implements audit.Store. It assigns entry the next sequence
// number for partition, seeding that counter from the existing object
// count on first use within this process's lifetime.
func (s *S3PartitionStore) Append(ctx context.Context, partition string, entry types.AuditEntry) error {
	s.mu.Lock()
	seq, ok := s.next[partition]
	if !ok {
		keys, err := s.s3.ListKeys(ctx, s.entryPrefix(partition))
		if err != nil {
			s.mu.Unlock()
			return fmt.Errorf("seeding partition sequence: %w", err)
		}
		seq = len(keys)
	}
	s.next[partition] = seq + 1
	s.mu.Unlock()

	return s.s3.PutJSON(ctx, s.entryKey(partition, seq), entry)
}

// ReadAll implements audit.Store, reading every entry object under
// partition's prefix in key (i.e. append) order.
func (s *S3PartitionStore) ReadAll(ctx context.Context, partition string) ([]types.AuditEntry, error) {
	keys, err := s.s3.ListKeys(ctx, s.entryPrefix(partition))
	if err != nil {
		return nil, err
	}
	entries := make([]types.AuditEntry, 0, len(keys))
	for _, key := range keys {
		var e types.AuditEntry
		if err := s.s3.GetJSON(ctx, key, &e); err != nil {
			return nil, fmt.Errorf("reading audit entry %s: %w", key, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// ReadMeta implements audit.Store.
func (s *S3PartitionStore) ReadMeta(ctx context.Context, partition string) (audit.PartitionMeta, bool, error) {
	var meta audit.PartitionMeta
	if err := s.s3.GetJSON(ctx, s.metaKey(partition), &meta); err != nil {
		if isNotFound(err) {
			return audit.PartitionMeta{}, false, nil
		}
		return audit.PartitionMeta{}, false, err
	}
	return meta, true, nil
}

// WriteMeta implements audit.Store.
func (s *S3PartitionStore) WriteMeta(ctx context.Context, partition string, meta audit.PartitionMeta) error {
	return s.s3.PutJSON(ctx, s.metaKey(partition), meta)
}

// isNotFound reports whether err looks like an S3 "no such key" miss.
// aws-sdk-go-v2 surfaces this as a generic error wrapping an HTTP 404
// rather than a typed sentinel, so this matches "NoSuchKey" in the
// error text. Exists below does not use it: it treats any HeadObject
// error as a missing key.
func isNotFound(err error) bool {
	return err != nil && strings.Contains(err.Error(), "NoSuchKey")
}

// GetRaw reads raw bytes from S3.
func (c *S3Client) GetRaw(ctx context.Context, key string) ([]byte, error) {
	result, err := c.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get object from S3: %w", err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read S3 object body: %w", err)
	}

	return data, nil
}

// PutRaw writes raw bytes to S3.
func (c *S3Client) PutRaw(ctx context.Context, key string, data []byte, contentType string) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := c.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to put object to S3: %w", err)
	}

	return nil
}

// Exists checks if a key exists in S3.
func (c *S3Client) Exists(ctx context.Context, key string) (bool, error) {
	_, err := c.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return false, nil
	}
	return true, nil
}
