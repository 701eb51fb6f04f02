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
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blnkfinance/surveylink/config"
)

type fakeS3 struct {
	s3iface.S3API
	objects map[string][]byte
}

func (f *fakeS3) GetObjectWithContext(_ aws.Context, in *s3.GetObjectInput, _ ...request.Option) (*s3.GetObjectOutput, error) {
	body, ok := f.objects[aws.StringValue(in.Bucket)+"/"+aws.StringValue(in.Key)]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(body))}, nil
}

func (f *fakeS3) PutObjectWithContext(_ aws.Context, in *s3.PutObjectInput, _ ...request.Option) (*s3.PutObjectOutput, error) {
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.StringValue(in.Bucket)+"/"+aws.StringValue(in.Key)] = body
	return &s3.PutObjectOutput{}, nil
}

func TestS3Store_Open(t *testing.T) {
	client := &fakeS3{objects: map[string][]byte{
		"exports/surveys/2024-03-01.csv": []byte("survey_id,email\nS1,a@example.com\n"),
	}}
	store := NewS3StoreWithClient(client, "exports")

	body, err := store.Open(context.Background(), "s3://exports/surveys/2024-03-01.csv")
	require.NoError(t, err)
	defer body.Close()

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "survey_id"))
}

func TestS3Store_OpenMissing(t *testing.T) {
	store := NewS3StoreWithClient(&fakeS3{objects: map[string][]byte{}}, "exports")

	_, err := store.Open(context.Background(), "missing.csv")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "s3://exports/missing.csv")
}

func TestS3Store_Upload(t *testing.T) {
	client := &fakeS3{objects: map[string][]byte{}}
	store := NewS3StoreWithClient(client, "exports")

	err := store.Upload(context.Background(), "linked/run_1.csv", bytes.NewReader([]byte("survey_id\n")), "text/csv")
	require.NoError(t, err)
	assert.Equal(t, "survey_id\n", string(client.objects["exports/linked/run_1.csv"]))
}

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "a/b.csv", ObjectKey("s3://bucket/a/b.csv"))
	assert.Equal(t, "a/b.csv", ObjectKey("/a/b.csv"))
	assert.Equal(t, "b.csv", ObjectKey("b.csv"))
	assert.True(t, IsS3Path("s3://bucket/x"))
	assert.False(t, IsS3Path("./x.csv"))
}

func TestNewS3Store_RequiresBucket(t *testing.T) {
	_, err := NewS3Store(config.S3Config{Region: "us-east-1"})
	assert.Error(t, err)
}
