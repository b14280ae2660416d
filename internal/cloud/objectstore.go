package cloud

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	kerrors "github.com/PolarWolf314/sealkeeper/internal/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

const s3Scheme = "s3://"

// S3API is the subset of *s3.Client sealkeeper calls.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// ObjectStore copies artifacts to and from one bucket under a key prefix.
type ObjectStore struct {
	api    S3API
	Bucket string
	Prefix string
}

// ObjectInfo is one listed object.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// NewObjectStore wraps api. bucket may be empty when only s3:// URIs are used.
func NewObjectStore(api S3API, bucket, prefix string) *ObjectStore {
	return &ObjectStore{
		api:    api,
		Bucket: bucket,
		Prefix: strings.Trim(prefix, "/"),
	}
}

// Key returns the object key for a file name under the prefix.
func (o *ObjectStore) Key(name string) string {
	if o.Prefix == "" {
		return name
	}
	return path.Join(o.Prefix, name)
}

// URI returns s3://bucket/key.
func URI(bucket, key string) string {
	return s3Scheme + bucket + "/" + key
}

// ParseS3URI splits s3://bucket/key.
func ParseS3URI(uri string) (bucket, key string, err error) {
	if !strings.HasPrefix(uri, s3Scheme) {
		return "", "", fmt.Errorf("%w: %q does not start with s3://", kerrors.ErrInvalidS3URI, uri)
	}
	rest := strings.TrimPrefix(uri, s3Scheme)
	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("%w: %q needs a bucket and a key", kerrors.ErrInvalidS3URI, uri)
	}
	return bucket, key, nil
}

// Resolve turns a recovery reference into a bucket and key. An s3:// URI is
// used as is. A bare file name is looked up under the prefix. Any other key
// is taken relative to the bucket root.
func (o *ObjectStore) Resolve(ref string) (bucket, key string, err error) {
	if strings.HasPrefix(ref, s3Scheme) {
		return ParseS3URI(ref)
	}
	if o.Bucket == "" {
		return "", "", kerrors.ErrBucketRequired
	}
	ref = strings.TrimPrefix(ref, "/")
	if ref == "" {
		return "", "", fmt.Errorf("%w: empty object key", kerrors.ErrInvalidS3URI)
	}
	if !strings.Contains(ref, "/") {
		return o.Bucket, o.Key(ref), nil
	}
	return o.Bucket, ref, nil
}

// Put uploads body to key with SSE-S3 encryption and returns its URI.
func (o *ObjectStore) Put(ctx context.Context, key string, body []byte) (string, error) {
	if o.Bucket == "" {
		return "", kerrors.ErrBucketRequired
	}

	_, err := o.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:               aws.String(o.Bucket),
		Key:                  aws.String(key),
		Body:                 bytes.NewReader(body),
		ContentLength:        aws.Int64(int64(len(body))),
		ContentType:          aws.String(contentType(key)),
		ServerSideEncryption: s3types.ServerSideEncryptionAes256,
	})
	if err != nil {
		return "", fmt.Errorf("uploading %s: %s", URI(o.Bucket, key), describeAPIError(err))
	}
	return URI(o.Bucket, key), nil
}

// Upload copies a local file to prefix/<file name>.
func (o *ObjectStore) Upload(ctx context.Context, localPath string) (string, error) {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", localPath, err)
	}
	return o.Put(ctx, o.Key(filepath.Base(localPath)), data)
}

// Get downloads one object. A missing key returns ErrObjectNotFound.
func (o *ObjectStore) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	out, err := o.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", kerrors.ErrObjectNotFound, URI(bucket, key))
		}
		return nil, fmt.Errorf("downloading %s: %s", URI(bucket, key), describeAPIError(err))
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", URI(bucket, key), err)
	}
	return data, nil
}

// List returns the objects under the prefix in key order.
func (o *ObjectStore) List(ctx context.Context) ([]ObjectInfo, error) {
	if o.Bucket == "" {
		return nil, kerrors.ErrBucketRequired
	}

	input := &s3.ListObjectsV2Input{Bucket: aws.String(o.Bucket)}
	if o.Prefix != "" {
		input.Prefix = aws.String(o.Prefix + "/")
	}

	var objects []ObjectInfo
	for {
		out, err := o.api.ListObjectsV2(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("listing %s: %s", URI(o.Bucket, o.Prefix), describeAPIError(err))
		}
		for _, obj := range out.Contents {
			objects = append(objects, ObjectInfo{
				Key:          aws.ToString(obj.Key),
				Size:         aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified),
			})
		}
		if !aws.ToBool(out.IsTruncated) {
			break
		}
		input.ContinuationToken = out.NextContinuationToken
	}
	return objects, nil
}

// CheckBucket verifies the bucket exists and is reachable.
func (o *ObjectStore) CheckBucket(ctx context.Context) error {
	if o.Bucket == "" {
		return kerrors.ErrBucketRequired
	}
	if _, err := o.api.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(o.Bucket)}); err != nil {
		if IsNotFound(err) {
			return fmt.Errorf("bucket %s does not exist", o.Bucket)
		}
		return fmt.Errorf("bucket %s: %s", o.Bucket, describeAPIError(err))
	}
	return nil
}

func contentType(key string) string {
	switch path.Ext(key) {
	case ".json":
		return "application/json"
	case ".yaml":
		return "application/yaml"
	default:
		return "application/octet-stream"
	}
}
