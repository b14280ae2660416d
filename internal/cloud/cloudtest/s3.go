package cloudtest

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3 is an in-memory object store holding whole buckets.
type S3 struct {
	mu      sync.Mutex
	buckets map[string]map[string]*Object

	// Err, when set for an operation name, is returned instead of running it.
	Err map[string]error
}

// Object is a stored object and the encryption it was written with.
type Object struct {
	Body                 []byte
	ContentType          string
	ServerSideEncryption s3types.ServerSideEncryption
	LastModified         time.Time
}

// NewS3 returns a fake with the given empty buckets.
func NewS3(buckets ...string) *S3 {
	f := &S3{buckets: map[string]map[string]*Object{}, Err: map[string]error{}}
	for _, b := range buckets {
		f.buckets[b] = map[string]*Object{}
	}
	return f
}

// Object returns a stored object, or nil.
func (f *S3) Object(bucket, key string) *Object {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.buckets[bucket][key]
}

// Keys returns the keys in bucket in order.
func (f *S3) Keys(bucket string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var keys []string
	for k := range f.buckets[bucket] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Seed stores body at bucket/key, creating the bucket.
func (f *S3) Seed(bucket, key string, body []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.buckets[bucket] == nil {
		f.buckets[bucket] = map[string]*Object{}
	}
	f.buckets[bucket][key] = &Object{Body: body, LastModified: time.Now()}
}

func (f *S3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.Err["PutObject"]; err != nil {
		return nil, err
	}

	bucket, ok := f.buckets[aws.ToString(in.Bucket)]
	if !ok {
		return nil, &s3types.NoSuchBucket{Message: aws.String(aws.ToString(in.Bucket))}
	}

	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	bucket[aws.ToString(in.Key)] = &Object{
		Body:                 body,
		ContentType:          aws.ToString(in.ContentType),
		ServerSideEncryption: in.ServerSideEncryption,
		LastModified:         time.Now(),
	}
	return &s3.PutObjectOutput{ServerSideEncryption: in.ServerSideEncryption}, nil
}

func (f *S3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.Err["GetObject"]; err != nil {
		return nil, err
	}

	bucket, ok := f.buckets[aws.ToString(in.Bucket)]
	if !ok {
		return nil, &s3types.NoSuchBucket{Message: aws.String(aws.ToString(in.Bucket))}
	}
	obj, ok := bucket[aws.ToString(in.Key)]
	if !ok {
		return nil, &s3types.NoSuchKey{Message: aws.String(aws.ToString(in.Key))}
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(obj.Body)),
		ContentLength: aws.Int64(int64(len(obj.Body))),
	}, nil
}

func (f *S3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.Err["ListObjectsV2"]; err != nil {
		return nil, err
	}

	bucket, ok := f.buckets[aws.ToString(in.Bucket)]
	if !ok {
		return nil, &s3types.NoSuchBucket{Message: aws.String(aws.ToString(in.Bucket))}
	}

	var keys []string
	for k := range bucket {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) && k > aws.ToString(in.ContinuationToken) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	// Two keys per page so callers exercise pagination.
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	if len(keys) > 2 {
		keys = keys[:2]
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(keys[1])
	}
	for _, k := range keys {
		obj := bucket[k]
		out.Contents = append(out.Contents, s3types.Object{
			Key:          aws.String(k),
			Size:         aws.Int64(int64(len(obj.Body))),
			LastModified: aws.Time(obj.LastModified),
		})
	}
	return out, nil
}

func (f *S3) HeadBucket(_ context.Context, in *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.Err["HeadBucket"]; err != nil {
		return nil, err
	}
	if _, ok := f.buckets[aws.ToString(in.Bucket)]; !ok {
		return nil, &s3types.NotFound{}
	}
	return &s3.HeadBucketOutput{}, nil
}
