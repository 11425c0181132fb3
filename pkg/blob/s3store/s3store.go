// Copyright 2026 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package s3store

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/pingcap/fexec/pkg/blob"
	"github.com/pingcap/fexec/pkg/errors"
)

// API is the part of the S3 client used by the backend.
type API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Config holds the S3 connection settings.
type Config struct {
	Region   string
	Endpoint string
	// Static credentials, the default chain is used when empty.
	AccessKeyID     string
	SecretAccessKey string
}

// Backend stores chunks as S3 objects addressed by s3://bucket/key uris.
type Backend struct {
	client API
}

var _ blob.Backend = (*Backend)(nil)

// New creates a backend from the default AWS configuration chain.
func New(ctx context.Context, cfg Config) (*Backend, error) {
	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.WrapError(errors.ErrBlobBackend, err, "s3 config")
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewWithClient(client), nil
}

// NewWithClient creates a backend on top of an existing client.
func NewWithClient(client API) *Backend {
	return &Backend{client: client}
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if stderrors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	return stderrors.As(err, &nf)
}

// Get implements blob.Backend with a ranged GetObject.
func (b *Backend) Get(ctx context.Context, uri string, offset, size uint64) ([]byte, error) {
	bucket, key, err := blob.SplitBucketKey(uri)
	if err != nil {
		return nil, err
	}
	if size == 0 {
		return []byte{}, nil
	}
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Range:  aws.String(fmt.Sprintf("bytes=%d-%d", offset, offset+size-1)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, errors.ErrBlobNotFound.GenWithStackByArgs(uri)
		}
		return nil, errors.WrapError(errors.ErrBlobBackend, err, uri)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, errors.WrapError(errors.ErrBlobBackend, err, uri)
	}
	return data, nil
}

// Put implements blob.Backend.
func (b *Backend) Put(ctx context.Context, uri string, data []byte) (string, error) {
	bucket, key, err := blob.SplitBucketKey(uri)
	if err != nil {
		return "", err
	}
	out, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/octet-stream"),
	})
	if err != nil {
		return "", errors.WrapError(errors.ErrBlobBackend, err, uri)
	}
	return strings.Trim(aws.ToString(out.ETag), `"`), nil
}

// Delete implements blob.Backend.
func (b *Backend) Delete(ctx context.Context, uri string) error {
	bucket, key, err := blob.SplitBucketKey(uri)
	if err != nil {
		return err
	}
	_, err = b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil && !isNotFound(err) {
		return errors.WrapError(errors.ErrBlobBackend, err, uri)
	}
	return nil
}
