package storage

import (
	"context"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	sc "github.com/dmitrijs2005/rapidphotos/internal/server/config"
	"github.com/dmitrijs2005/rapidphotos/internal/server/metrics"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

type objectAPI interface {
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

type presignAPI interface {
	PresignPutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Gateway implements Gateway over aws-sdk-go-v2. It works against AWS S3
// and S3-compatible backends such as MinIO.
type S3Gateway struct {
	api       objectAPI
	presigner presignAPI
	bucket    string
	putTTL    time.Duration
	getTTL    time.Duration
}

// NewS3Gateway builds a client with static credentials and an optional
// endpoint override taken from the server config.
func NewS3Gateway(ctx context.Context, cfg *sc.Config) (*S3Gateway, error) {
	awsCfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(cfg.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3RootUser,
			cfg.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3BaseEndpoint)
		}
		o.UsePathStyle = cfg.S3UsePathStyle
	})

	return newGateway(client, s3.NewPresignClient(client), cfg.S3Bucket, cfg.PresignPutTTL, cfg.PresignGetTTL), nil
}

func newGateway(api objectAPI, presigner presignAPI, bucket string, putTTL, getTTL time.Duration) *S3Gateway {
	return &S3Gateway{api: api, presigner: presigner, bucket: bucket, putTTL: putTTL, getTTL: getTTL}
}

func observe(op string) func() {
	start := time.Now()
	return func() {
		metrics.StorageOperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
}

func (g *S3Gateway) PresignPut(ctx context.Context, ownerID, key string) (string, error) {
	if err := checkOwner(ownerID, key); err != nil {
		return "", err
	}
	req, err := g.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(g.putTTL))
	if err != nil {
		return "", err
	}
	return req.URL, nil
}

func (g *S3Gateway) PresignGet(ctx context.Context, ownerID, key string) (string, error) {
	if err := checkOwner(ownerID, key); err != nil {
		return "", err
	}
	req, err := g.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(g.getTTL))
	if err != nil {
		return "", err
	}
	return req.URL, nil
}

func (g *S3Gateway) head(ctx context.Context, ownerID, key string) (*s3.HeadObjectOutput, error) {
	if err := checkOwner(ownerID, key); err != nil {
		return nil, err
	}
	defer observe("head_object")()
	return g.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(key),
	})
}

// Exists reports false, without error, when the backend says the key is absent.
func (g *S3Gateway) Exists(ctx context.Context, ownerID, key string) (bool, error) {
	_, err := g.head(ctx, ownerID, key)
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (g *S3Gateway) SizeOf(ctx context.Context, ownerID, key string) (int64, error) {
	out, err := g.head(ctx, ownerID, key)
	if err != nil {
		if isNotFound(err) {
			return 0, ErrObjectNotFound
		}
		return 0, err
	}
	return aws.ToInt64(out.ContentLength), nil
}

// Delete removes the object. Deleting an absent key succeeds.
func (g *S3Gateway) Delete(ctx context.Context, ownerID, key string) error {
	if err := checkOwner(ownerID, key); err != nil {
		return err
	}
	defer observe("delete_object")()
	_, err := g.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(key),
	})
	if err != nil && !isNotFound(err) {
		return err
	}
	return nil
}

// Ping checks that the bucket is reachable with the configured credentials.
func (g *S3Gateway) Ping(ctx context.Context) error {
	defer observe("head_bucket")()
	_, err := g.api.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(g.bucket)})
	return err
}

func isNotFound(err error) bool {
	var nf *types.NotFound
	var nsk *types.NoSuchKey
	if errors.As(err, &nf) || errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}
