/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package exports

import (
	"context"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/pkg/errors"

	"github.com/blnkfinance/surveylink/config"
)

// S3Store reads transaction and survey exports from a bucket and writes linked output back to it.
type S3Store struct {
	client s3iface.S3API
	bucket string
}

// NewS3Store builds a store for the configured bucket. Static credentials are used when
// both keys are set, otherwise the default AWS credential chain applies.
func NewS3Store(cfg config.S3Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket is not configured")
	}

	awsCfg := aws.NewConfig().WithRegion(cfg.Region)
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		awsCfg = awsCfg.WithCredentials(credentials.NewStaticCredentials(cfg.AccessKeyID, cfg.SecretAccessKey, ""))
	}
	if cfg.Endpoint != "" {
		awsCfg = awsCfg.WithEndpoint(cfg.Endpoint).WithS3ForcePathStyle(true)
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, errors.Wrap(err, "creating aws session")
	}

	return NewS3StoreWithClient(s3.New(sess), cfg.Bucket), nil
}

// NewS3StoreWithClient wraps an existing S3 client.
func NewS3StoreWithClient(client s3iface.S3API, bucket string) *S3Store {
	return &S3Store{client: client, bucket: bucket}
}

// Open returns the body of the object stored under key. The caller closes it.
func (s *S3Store) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(ObjectKey(key)),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "fetching s3://%s/%s", s.bucket, key)
	}
	return out.Body, nil
}

// Upload stores body under key.
func (s *S3Store) Upload(ctx context.Context, key string, body io.ReadSeeker, contentType string) error {
	_, err := s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(ObjectKey(key)),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return errors.Wrapf(err, "uploading s3://%s/%s", s.bucket, key)
	}
	return nil
}

// IsS3Path reports whether path is an s3:// URL.
func IsS3Path(path string) bool {
	return strings.HasPrefix(path, "s3://")
}

// ObjectKey strips an s3://bucket/ prefix, leaving the object key. Plain keys pass through.
func ObjectKey(path string) string {
	if !IsS3Path(path) {
		return strings.TrimPrefix(path, "/")
	}
	u, err := url.Parse(path)
	if err != nil {
		return strings.TrimPrefix(path, "s3://")
	}
	return strings.TrimPrefix(u.Path, "/")
}
