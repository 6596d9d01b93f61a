package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"research_intake/config"
)

// S3 stores objects in an S3 (or S3-compatible) bucket.
type S3 struct {
	client *s3.Client
	bucket string
}

// NewS3 builds a client from the default credential chain, or from static
// keys when configured. A custom endpoint switches to path-style addressing.
func NewS3(ctx context.Context, cfg config.S3Config) (*S3, error) {
	opts := []func(*awsConfig.LoadOptions) error{awsConfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsConfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsConfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3{client: client, bucket: cfg.Bucket}, nil
}

func (s *S3) Name() string { return "s3" }

func (s *S3) Put(ctx context.Context, p string, r io.Reader, size int64, contentType string) error {
	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(objectKey(p)),
		Body:          r,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
		Metadata: map[string]string{
			"original-name": path.Base(p),
		},
	}

	var optFns []func(*s3.Options)
	if _, ok := r.(io.Seeker); !ok {
		// streamed bodies cannot be hashed up front
		optFns = append(optFns, s3.WithAPIOptions(v4.SwapComputePayloadSHA256ForUnsignedPayloadMiddleware))
	}
	if _, err := s.client.PutObject(ctx, input, optFns...); err != nil {
		return newError(classifyS3(err), p, err)
	}
	return nil
}

func (s *S3) Stat(ctx context.Context, p string) (FileInfo, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey(p)),
	})
	if err != nil {
		return FileInfo{}, newError(classifyS3(err), p, err)
	}
	info := FileInfo{Path: p, Name: path.Base(p)}
	if out.ContentLength != nil {
		info.Size = *out.ContentLength
	}
	if out.LastModified != nil {
		info.ModifiedAt = *out.LastModified
	}
	if out.ContentType != nil {
		info.ContentType = *out.ContentType
	}
	return info, nil
}

func (s *S3) List(ctx context.Context, dir string) ([]FileInfo, error) {
	prefix := strings.TrimSuffix(objectKey(dir), "/") + "/"
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})

	out := []FileInfo{}
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, newError(classifyS3(err), dir, err)
		}
		for _, cp := range page.CommonPrefixes {
			name := path.Base(aws.ToString(cp.Prefix))
			out = append(out, FileInfo{Path: path.Join(dir, name), Name: name, IsDir: true})
		}
		for _, obj := range page.Contents {
			name := path.Base(aws.ToString(obj.Key))
			info := FileInfo{Path: path.Join(dir, name), Name: name, Size: aws.ToInt64(obj.Size)}
			if obj.LastModified != nil {
				info.ModifiedAt = *obj.LastModified
			}
			out = append(out, info)
		}
	}
	return out, nil
}

func classifyS3(err error) Kind {
	var ae smithy.APIError
	if errors.As(err, &ae) {
		switch ae.ErrorCode() {
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch", "AllAccessDisabled", "Forbidden":
			return KindPermissionDenied
		case "NoSuchBucket", "NoSuchKey", "NotFound":
			return KindPathNotFound
		case "QuotaExceeded", "ServiceQuotaExceeded", "InsufficientStorage":
			return KindQuotaExceeded
		}
	}
	var re *smithyhttp.ResponseError
	if errors.As(err, &re) {
		switch re.HTTPStatusCode() {
		case http.StatusForbidden, http.StatusUnauthorized:
			return KindPermissionDenied
		case http.StatusNotFound:
			return KindPathNotFound
		case http.StatusInsufficientStorage:
			return KindQuotaExceeded
		}
	}
	return KindUnknown
}
