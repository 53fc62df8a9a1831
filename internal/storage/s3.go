package storage

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/pixlift/pixlift/internal/errors"
)

// S3API is the slice of the S3 client the store uses. The concrete client
// satisfies it; tests substitute a mock.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	CreateMultipartUpload(ctx context.Context, params *s3.CreateMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error)
	UploadPart(ctx context.Context, params *s3.UploadPartInput, optFns ...func(*s3.Options)) (*s3.UploadPartOutput, error)
	CompleteMultipartUpload(ctx context.Context, params *s3.CompleteMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error)
	AbortMultipartUpload(ctx context.Context, params *s3.AbortMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	ListBuckets(ctx context.Context, params *s3.ListBucketsInput, optFns ...func(*s3.Options)) (*s3.ListBucketsOutput, error)
}

var _ S3API = (*s3.Client)(nil)

// S3Store implements ObjectStore for AWS S3.
type S3Store struct {
	client S3API
	bucket string
	config S3Config
	now    func() time.Time
}

// S3Config holds configuration for the S3 store.
type S3Config struct {
	// Region is the AWS region for the bucket.
	Region string
	// Endpoint is an optional custom endpoint (for MinIO, LocalStack, etc.).
	Endpoint string
	// UsePathStyle enables path-style addressing (required for MinIO).
	UsePathStyle bool
	// MultipartThreshold is the file size above which multipart upload is
	// used. Zero takes the package default.
	MultipartThreshold int64
}

// NewS3Store creates an S3 store using the default AWS credential chain.
func NewS3Store(ctx context.Context, bucket string, cfg S3Config) (*S3Store, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return NewS3StoreWithClient(s3.NewFromConfig(awsCfg, s3Opts...), bucket, cfg), nil
}

// NewS3StoreWithClient creates an S3 store with a pre-configured client.
func NewS3StoreWithClient(client S3API, bucket string, cfg S3Config) *S3Store {
	if cfg.MultipartThreshold == 0 {
		cfg.MultipartThreshold = MultipartThreshold
	}
	return &S3Store{
		client: client,
		bucket: bucket,
		config: cfg,
		now:    time.Now,
	}
}

// Bucket returns the configured bucket name.
func (s *S3Store) Bucket() string { return s.bucket }

// Region returns the configured AWS region.
func (s *S3Store) Region() string { return s.config.Region }

// Ping verifies the configured bucket exists and is accessible.
func (s *S3Store) Ping(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		return errors.NewStorageError(errors.CodeBucketUnreachable,
			fmt.Sprintf("bucket %s is not reachable", s.bucket), err)
	}
	return nil
}

// Put uploads a local file to S3. Files above the multipart threshold go
// through a multipart upload; everything else is a single PutObject. There
// are no retries at this layer.
func (s *S3Store) Put(ctx context.Context, req PutRequest) (PutResult, error) {
	stat, err := os.Stat(req.LocalPath)
	if err != nil {
		return PutResult{}, errors.NewStorageError(errors.CodeUploadFailed,
			fmt.Sprintf("stat %s", req.LocalPath), err)
	}
	size := stat.Size()

	contentType := req.ContentType
	if contentType == "" {
		contentType = DetectContentType(req.LocalPath)
	}
	metadata := buildMetadata(req.LocalPath, req.Metadata, s.now())

	file, err := os.Open(req.LocalPath)
	if err != nil {
		return PutResult{}, errors.NewStorageError(errors.CodeUploadFailed,
			fmt.Sprintf("open %s", req.LocalPath), err)
	}
	defer file.Close()

	if size > s.config.MultipartThreshold {
		err = s.putMultipart(ctx, file, size, req.Key, contentType, metadata, req.PublicRead)
	} else {
		err = s.putSingle(ctx, file, req.Key, contentType, metadata, req.PublicRead)
	}
	if err != nil {
		return PutResult{}, errors.NewStorageError(errors.CodeUploadFailed,
			fmt.Sprintf("upload %s", req.Key), err)
	}

	return PutResult{
		URL:         s.PublicURL(req.Key),
		Key:         req.Key,
		Size:        size,
		ContentType: contentType,
		Metadata:    metadata,
	}, nil
}

// PublicURL returns the deterministic public URL for a key.
func (s *S3Store) PublicURL(key string) string {
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.config.Region, key)
}

func (s *S3Store) putSingle(ctx context.Context, file *os.File, key, contentType string, metadata map[string]string, publicRead bool) error {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        file,
		ContentType: aws.String(contentType),
		Metadata:    metadata,
	}
	if publicRead {
		input.ACL = types.ObjectCannedACLPublicRead
	}
	_, err := s.client.PutObject(ctx, input)
	return err
}

func (s *S3Store) putMultipart(ctx context.Context, file *os.File, size int64, key, contentType string, metadata map[string]string, publicRead bool) error {
	createInput := &s3.CreateMultipartUploadInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
		Metadata:    metadata,
	}
	if publicRead {
		createInput.ACL = types.ObjectCannedACLPublicRead
	}

	createResp, err := s.client.CreateMultipartUpload(ctx, createInput)
	if err != nil {
		return err
	}
	uploadID := createResp.UploadId

	partSize := s.config.MultipartThreshold
	numParts := int(math.Ceil(float64(size) / float64(partSize)))
	completedParts := make([]types.CompletedPart, 0, numParts)

	for partNum := 1; partNum <= numParts; partNum++ {
		offset := int64(partNum-1) * partSize
		length := partSize
		if offset+length > size {
			length = size - offset
		}

		uploadResp, err := s.client.UploadPart(ctx, &s3.UploadPartInput{
			Bucket:        aws.String(s.bucket),
			Key:           aws.String(key),
			UploadId:      uploadID,
			PartNumber:    aws.Int32(int32(partNum)),
			Body:          io.NewSectionReader(file, offset, length),
			ContentLength: aws.Int64(length),
		})
		if err != nil {
			s.abortMultipart(ctx, key, uploadID)
			return err
		}

		completedParts = append(completedParts, types.CompletedPart{
			ETag:       uploadResp.ETag,
			PartNumber: aws.Int32(int32(partNum)),
		})
	}

	_, err = s.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(key),
		UploadId: uploadID,
		MultipartUpload: &types.CompletedMultipartUpload{
			Parts: completedParts,
		},
	})
	if err != nil {
		s.abortMultipart(ctx, key, uploadID)
		return err
	}

	return nil
}

func (s *S3Store) abortMultipart(ctx context.Context, key string, uploadID *string) {
	_, _ = s.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(key),
		UploadId: uploadID,
	})
}

// ListBuckets returns the names of all buckets the credentials can see.
func (s *S3Store) ListBuckets(ctx context.Context) ([]string, error) {
	resp, err := s.client.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return nil, errors.NewStorageError(errors.CodeUploadFailed, "list buckets", err)
	}

	names := make([]string, 0, len(resp.Buckets))
	for _, b := range resp.Buckets {
		names = append(names, aws.ToString(b.Name))
	}
	return names, nil
}

var _ ObjectStore = (*S3Store)(nil)
