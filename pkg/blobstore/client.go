// Package blobstore implements the object store for task specifications and
// workflow plans (spec §3/§6.3) over S3, grounded on the pack's use of
// aws-sdk-go-v2 as the Go AWS client of choice (goadesign-goa-ai's bedrock
// adapter uses the same SDK family for a different service).
package blobstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/agentbus/core/pkg/apierrors"
	"github.com/agentbus/core/pkg/config"
	"github.com/agentbus/core/pkg/ports"
)

// s3API mirrors the subset of *s3.Client the store needs, so tests can pass
// a fake implementation instead of talking to real or emulated S3.
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Store implements ports.BlobStore over a single S3 bucket.
type Store struct {
	client s3API
	bucket string
}

var _ ports.BlobStore = (*Store)(nil)

// New builds a Store from cfg. When cfg.Endpoint is set, the client targets
// an S3-compatible endpoint (e.g. MinIO) with path-style addressing. When
// cfg.AccessKey is set, static credentials are used instead of the default
// AWS credential chain, whether or not an endpoint is configured.
func New(ctx context.Context, cfg config.BlobStoreConfig) (*Store, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, apierrors.Wrap(apierrors.KindStorage, "blobstore_config_failed", "load AWS config", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &Store{client: client, bucket: cfg.Bucket}, nil
}

// NewWithClient builds a Store around an already-constructed S3 API client —
// used by tests to inject a fake.
func NewWithClient(client s3API, bucket string) *Store {
	return &Store{client: client, bucket: bucket}
}

// PutJSON marshals v and writes it to path within the configured bucket,
// returning an s3:// URI.
func (s *Store) PutJSON(ctx context.Context, path string, v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", apierrors.Wrap(apierrors.KindStorage, "blob_marshal_failed", fmt.Sprintf("marshal blob %s", path), err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(path),
		Body:        bytes.NewReader(raw),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", apierrors.Wrap(apierrors.KindStorage, "blob_put_failed", fmt.Sprintf("put blob %s", path), err)
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, path), nil
}

// GetJSON fetches the object at uri (an s3://bucket/key URI as returned by
// PutJSON) and unmarshals it into v.
func (s *Store) GetJSON(ctx context.Context, uri string, v any) error {
	bucket, key, err := parseURI(uri)
	if err != nil {
		return apierrors.Wrap(apierrors.KindValidation, "blob_uri_invalid", "invalid blob uri", err)
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return apierrors.Wrap(apierrors.KindStorage, "blob_get_failed", fmt.Sprintf("get blob %s", uri), err)
	}
	defer out.Body.Close()

	if err := json.NewDecoder(out.Body).Decode(v); err != nil {
		return apierrors.Wrap(apierrors.KindStorage, "blob_unmarshal_failed", fmt.Sprintf("unmarshal blob %s", uri), err)
	}
	return nil
}

func parseURI(uri string) (bucket, key string, err error) {
	const prefix = "s3://"
	if len(uri) <= len(prefix) || uri[:len(prefix)] != prefix {
		return "", "", fmt.Errorf("uri %q missing %s prefix", uri, prefix)
	}
	rest := uri[len(prefix):]
	for i := 0; i < len(rest); i++ {
		if rest[i] == '/' {
			return rest[:i], rest[i+1:], nil
		}
	}
	return "", "", fmt.Errorf("uri %q missing bucket/key separator", uri)
}
