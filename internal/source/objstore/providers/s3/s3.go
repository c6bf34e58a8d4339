// Copyright 2024 The Cockroach Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

// Package s3 provides access to AWS S3 and S3-compatible buckets.
package s3

import (
	"context"
	"io"
	"net"
	"net/http"

	"github.com/cockroachdb/runpoll/internal/source/objstore/bucket"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Config has the parameters used to connect to S3.
type Config struct {
	AccessKey    string // AWS Access Key; empty uses the default credential chain.
	Bucket       string // The name of the bucket.
	Endpoint     string // Alternative server to use, for other S3 providers.
	Insecure     bool   // For testing against self hosted S3 providers.
	Region       string // Optional bucket region.
	SecretKey    string // Secret associated to the Access Key
	SessionToken string // Optional STS session token.
}

// object is the subset of *minio.Object that we use. Missing objects
// are only reported once the object is read or inspected.
type object interface {
	io.ReadCloser
	Stat() (minio.ObjectInfo, error)
}

// s3Access defines the functions we are using to interact with the minio SDK.
// Mainly used for testing to implement a mock component.
type s3Access interface {
	// GetObject returns the content of the named object.
	GetObject(ctx context.Context, bucketName string, objectName string, opts minio.GetObjectOptions) (object, error)
	// ListObjects scans the entries in the bucket.
	ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	// PutObject uploads an object.
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// New returns a bucket backed by a S3 provider.
func New(config *Config) (bucket.Bucket, error) {
	if config.Bucket == "" {
		return nil, errors.New("S3 bucket is required")
	}
	var creds *credentials.Credentials
	if config.AccessKey != "" {
		creds = credentials.NewStaticV4(config.AccessKey, config.SecretKey, config.SessionToken)
	} else {
		creds = credentials.NewChainCredentials([]credentials.Provider{
			&credentials.EnvAWS{},
			&credentials.FileAWSCredentials{},
			&credentials.IAM{Client: &http.Client{Transport: http.DefaultTransport}},
		})
	}
	minioClient, err := minio.New(config.Endpoint, &minio.Options{
		Creds:  creds,
		Region: config.Region,
		Secure: !config.Insecure,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "could not create S3 client for %s", config.Endpoint)
	}
	return &s3Bucket{
		client: &client{ref: minioClient},
		bucket: config.Bucket,
	}, nil
}

type s3Bucket struct {
	client s3Access
	bucket string
}

var _ bucket.Bucket = &s3Bucket{}

// List implements bucket.Reader.
func (b *s3Bucket) List(
	ctx context.Context,
	prefix string,
	options *bucket.ListOptions,
	fn func(context.Context, []bucket.Entry) error,
) error {
	// Stop the SDK listing goroutine if we return early.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	size := options.Size()
	opts := minio.ListObjectsOptions{
		Prefix:    prefix,
		MaxKeys:   size,
		Recursive: true,
	}
	if options != nil {
		opts.StartAfter = options.StartAfter
	}
	log.WithField("bucket", b.bucket).Tracef("list: prefix: %q, after: %q", prefix, opts.StartAfter)
	page := make([]bucket.Entry, 0, size)
	flush := func() error {
		if len(page) == 0 {
			return nil
		}
		err := fn(ctx, page)
		page = make([]bucket.Entry, 0, size)
		return err
	}
	for info := range b.client.ListObjects(ctx, b.bucket, opts) {
		if info.Err != nil {
			return classify(info.Err, prefix)
		}
		if info.Key == "" {
			continue
		}
		page = append(page, bucket.Entry{Key: info.Key, LastModified: info.LastModified})
		if len(page) < size {
			continue
		}
		if err := flush(); err != nil {
			if errors.Is(err, bucket.ErrSkipAll) {
				return nil
			}
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := flush(); err != nil && !errors.Is(err, bucket.ErrSkipAll) {
		return err
	}
	return nil
}

// Open implements bucket.Reader.
func (b *s3Bucket) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	log.WithField("bucket", b.bucket).Tracef("open: %q", name)
	obj, err := b.client.GetObject(ctx, b.bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, classify(err, name)
	}
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		return nil, classify(err, name)
	}
	return obj, nil
}

// Put implements bucket.Writer.
func (b *s3Bucket) Put(ctx context.Context, name string, r io.Reader, size int64) error {
	log.WithField("bucket", b.bucket).Tracef("put: %q", name)
	_, err := b.client.PutObject(ctx, b.bucket, name, r, size, minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return classify(err, name)
	}
	return nil
}

// classify maps S3 error responses onto the bucket error taxonomy.
func classify(err error, name string) error {
	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "NoSuchKey":
		return errors.Wrapf(bucket.ErrNoSuchKey, "%s: %s", name, resp.Message)
	case "NoSuchBucket":
		return errors.Wrapf(bucket.ErrNoSuchBucket, "%s: %s", resp.BucketName, resp.Message)
	case "InternalError", "RequestTimeout", "ServiceUnavailable", "SlowDown":
		return bucket.Transient(errors.Wrap(err, name))
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return bucket.Transient(errors.Wrap(err, name))
	}
	if netErr := net.Error(nil); errors.As(err, &netErr) {
		return bucket.Transient(errors.Wrap(err, name))
	}
	return errors.Wrap(err, name)
}
