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

package blob

import (
	"context"
	"net/url"
	"strings"

	"github.com/pingcap/fexec/pkg/errors"
)

// URI schemes of the bundled backends.
const (
	SchemeFile = "file"
	SchemeS3   = "s3"
	SchemeGCS  = "gs"
)

// Backend reads and writes whole chunks addressed by uri.
// Offsets are relative to the start of the chunk.
type Backend interface {
	// Get reads size bytes at offset of the chunk stored at uri.
	Get(ctx context.Context, uri string, offset, size uint64) ([]byte, error)
	// Put stores data at uri, replacing it, and returns its etag.
	Put(ctx context.Context, uri string, data []byte) (string, error)
	// Delete removes uri. Deleting a missing uri is not an error.
	Delete(ctx context.Context, uri string) error
}

// Scheme returns the lower cased scheme of uri.
func Scheme(uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", errors.WrapError(errors.ErrBlobUnsupportedURI, err, uri)
	}
	if u.Scheme == "" {
		return "", errors.ErrBlobUnsupportedURI.GenWithStackByArgs(uri)
	}
	return strings.ToLower(u.Scheme), nil
}

// SplitBucketKey splits s3://bucket/key like uris.
func SplitBucketKey(uri string) (bucket, key string, err error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", "", errors.WrapError(errors.ErrBlobUnsupportedURI, err, uri)
	}
	key = strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" {
		return "", "", errors.ErrBlobUnsupportedURI.GenWithStackByArgs(uri)
	}
	return u.Host, key, nil
}

// JoinURI appends path elements to a base uri.
func JoinURI(base string, elems ...string) string {
	ret := strings.TrimSuffix(base, "/")
	for _, e := range elems {
		ret += "/" + strings.Trim(e, "/")
	}
	return ret
}

// isRetryable reports whether a backend error may go away on retry.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	switch errors.Cause(err) {
	case context.Canceled, context.DeadlineExceeded:
		return false
	}
	return !errors.IsAny(err,
		errors.ErrBlobNotFound,
		errors.ErrBlobUnsupportedURI,
		errors.ErrBlobOutOfRange,
		errors.ErrBlobSizeMismatch,
	)
}
