package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	sc "github.com/dmitrijs2005/rapidphotos/internal/server/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeObjectAPI struct {
	headOut   *s3.HeadObjectOutput
	headErr   error
	deleteErr error
	bucketErr error

	headKeys   []string
	deleteKeys []string
}

func (f *fakeObjectAPI) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.headKeys = append(f.headKeys, aws.ToString(in.Key))
	return f.headOut, f.headErr
}

func (f *fakeObjectAPI) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.deleteKeys = append(f.deleteKeys, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, f.deleteErr
}

func (f *fakeObjectAPI) HeadBucket(context.Context, *s3.HeadBucketInput, ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	return &s3.HeadBucketOutput{}, f.bucketErr
}

func realClient() *s3.Client {
	return s3.New(s3.Options{
		Region:       "us-east-1",
		Credentials:  credentials.NewStaticCredentialsProvider("minioadmin", "minioadmin", ""),
		BaseEndpoint: aws.String("http://127.0.0.1:9000"),
		UsePathStyle: true,
	})
}

func TestPresign_UsesConfiguredTTLs(t *testing.T) {
	client := realClient()
	g := newGateway(client, s3.NewPresignClient(client), "photos", 30*time.Minute, time.Hour)

	put, err := g.PresignPut(context.Background(), "u1", "u1/1700000000000_abc_a.jpg")
	require.NoError(t, err)
	assert.Contains(t, put, "http://127.0.0.1:9000/photos/u1/1700000000000_abc_a.jpg")
	assert.Contains(t, put, "X-Amz-Expires=1800")

	get, err := g.PresignGet(context.Background(), "u1", "u1/1700000000000_abc_a.jpg")
	require.NoError(t, err)
	assert.Contains(t, get, "X-Amz-Expires=3600")
}

func TestPresign_RejectsForeignKey(t *testing.T) {
	client := realClient()
	g := newGateway(client, s3.NewPresignClient(client), "photos", time.Minute, time.Minute)

	_, err := g.PresignPut(context.Background(), "u1", "u2/x.jpg")
	assert.ErrorIs(t, err, ErrForeignKey)

	_, err = g.PresignGet(context.Background(), "u1", "u10/x.jpg")
	assert.ErrorIs(t, err, ErrForeignKey)

	_, err = g.PresignGet(context.Background(), "", "/x.jpg")
	assert.ErrorIs(t, err, ErrForeignKey)
}

func TestExists(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		want    bool
		wantErr bool
	}{
		{name: "present", want: true},
		{name: "typed not found", err: &types.NotFound{}},
		{name: "no such key", err: &types.NoSuchKey{}},
		{name: "generic api not found", err: &smithy.GenericAPIError{Code: "NotFound"}},
		{name: "access denied", err: &smithy.GenericAPIError{Code: "AccessDenied"}, wantErr: true},
		{name: "transport", err: errors.New("dial tcp: refused"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeObjectAPI{headOut: &s3.HeadObjectOutput{}, headErr: tt.err}
			g := newGateway(api, nil, "photos", time.Minute, time.Minute)

			got, err := g.Exists(context.Background(), "u1", "u1/k")
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, []string{"u1/k"}, api.headKeys)
		})
	}
}

func TestExists_ForeignKeyNeverReachesBackend(t *testing.T) {
	api := &fakeObjectAPI{}
	g := newGateway(api, nil, "photos", time.Minute, time.Minute)

	_, err := g.Exists(context.Background(), "u1", "u2/k")
	assert.ErrorIs(t, err, ErrForeignKey)
	assert.Empty(t, api.headKeys)
}

func TestSizeOf(t *testing.T) {
	api := &fakeObjectAPI{headOut: &s3.HeadObjectOutput{ContentLength: aws.Int64(2048)}}
	g := newGateway(api, nil, "photos", time.Minute, time.Minute)

	n, err := g.SizeOf(context.Background(), "u1", "u1/k")
	require.NoError(t, err)
	assert.Equal(t, int64(2048), n)

	api.headErr = &types.NotFound{}
	_, err = g.SizeOf(context.Background(), "u1", "u1/k")
	assert.ErrorIs(t, err, ErrObjectNotFound)

	api.headErr = errors.New("timeout")
	_, err = g.SizeOf(context.Background(), "u1", "u1/k")
	assert.EqualError(t, err, "timeout")
}

func TestDelete_Idempotent(t *testing.T) {
	api := &fakeObjectAPI{}
	g := newGateway(api, nil, "photos", time.Minute, time.Minute)

	require.NoError(t, g.Delete(context.Background(), "u1", "u1/k"))

	api.deleteErr = &types.NoSuchKey{}
	require.NoError(t, g.Delete(context.Background(), "u1", "u1/k"))

	api.deleteErr = errors.New("boom")
	require.EqualError(t, g.Delete(context.Background(), "u1", "u1/k"), "boom")
	assert.Equal(t, []string{"u1/k", "u1/k", "u1/k"}, api.deleteKeys)
}

func TestPing(t *testing.T) {
	api := &fakeObjectAPI{}
	g := newGateway(api, nil, "photos", time.Minute, time.Minute)
	require.NoError(t, g.Ping(context.Background()))

	api.bucketErr = errors.New("no bucket")
	require.EqualError(t, g.Ping(context.Background()), "no bucket")
}

func TestNewS3Gateway_AppliesConfig(t *testing.T) {
	origLoad := loadDefaultAWSConfig
	origNew := newS3ClientFromConfig
	t.Cleanup(func() {
		loadDefaultAWSConfig = origLoad
		newS3ClientFromConfig = origNew
	})

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		var lo awsconfig.LoadOptions
		for _, fn := range optFns {
			require.NoError(t, fn(&lo))
		}
		assert.Equal(t, "eu-west-1", lo.Region)
		require.NotNil(t, lo.Credentials)
		return aws.Config{Region: lo.Region, Credentials: lo.Credentials}, nil
	}

	var opts s3.Options
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		for _, fn := range optFns {
			fn(&opts)
		}
		return s3.NewFromConfig(cfg, optFns...)
	}

	cfg := &sc.Config{
		S3Region:       "eu-west-1",
		S3RootUser:     "user",
		S3RootPassword: "pass",
		S3Bucket:       "photos",
		S3BaseEndpoint: "http://minio:9000",
		S3UsePathStyle: true,
		PresignPutTTL:  30 * time.Minute,
		PresignGetTTL:  time.Hour,
	}

	g, err := NewS3Gateway(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "photos", g.bucket)
	assert.Equal(t, 30*time.Minute, g.putTTL)
	require.NotNil(t, opts.BaseEndpoint)
	assert.Equal(t, "http://minio:9000", *opts.BaseEndpoint)
	assert.True(t, opts.UsePathStyle)
}

func TestNewS3Gateway_LoadError(t *testing.T) {
	orig := loadDefaultAWSConfig
	t.Cleanup(func() { loadDefaultAWSConfig = orig })
	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("load-fail")
	}

	_, err := NewS3Gateway(context.Background(), &sc.Config{})
	require.EqualError(t, err, "load-fail")
}
