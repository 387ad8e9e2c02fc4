package storage

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// Object addresses an S3 object.
type Object struct {
	Bucket string
	Key    string
}

func (o Object) String() string { return "s3://" + o.Bucket + "/" + o.Key }

// ParseURI parses s3://bucket/key.
func ParseURI(uri string) (Object, error) {
	if !strings.HasPrefix(uri, "s3://") {
		return Object{}, fmt.Errorf("not an s3 url: %s", uri)
	}
	path := strings.TrimPrefix(uri, "s3://")
	slash := strings.Index(path, "/")
	if slash <= 0 || slash == len(path)-1 {
		return Object{}, fmt.Errorf("invalid s3 url: %s", uri)
	}
	return Object{Bucket: path[:slash], Key: path[slash+1:]}, nil
}

// S3Client moves source documents and segments between S3 and local disk.
type S3Client struct {
	client     *s3.Client
	downloader *manager.Downloader
	uploader   *manager.Uploader
}

// NewS3Client creates a client from the default AWS credential chain.
func NewS3Client(ctx context.Context) (*S3Client, error) {
	cfg, err := awscfg.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	cli := s3.NewFromConfig(cfg)

	return &S3Client{
		client:     cli,
		downloader: manager.NewDownloader(cli),
		uploader:   manager.NewUploader(cli),
	}, nil
}

// Download writes the object to dst, replacing it.
func (s *S3Client) Download(ctx context.Context, obj Object, dst string) error {
	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	n, err := s.downloader.Download(ctx, f, &s3.GetObjectInput{
		Bucket: aws.String(obj.Bucket),
		Key:    aws.String(obj.Key),
	})
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(dst)
		return fmt.Errorf("failed to download %s: %w", obj, err)
	}
	log.Info().Str("bucket", obj.Bucket).Str("key", obj.Key).Int64("bytes", n).Msg("downloaded s3 object")
	return nil
}

// Upload stores the local file src at obj.
func (s *S3Client) Upload(ctx context.Context, src string, obj Object) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(obj.Bucket),
		Key:         aws.String(obj.Key),
		Body:        f,
		ContentType: aws.String("application/pdf"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", obj, err)
	}
	log.Info().Str("bucket", obj.Bucket).Str("key", obj.Key).Msg("uploaded segment to s3")
	return nil
}

// HeadBucket checks that bucket exists and is reachable with the loaded
// credentials.
func (s *S3Client) HeadBucket(ctx context.Context, bucket string) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)})
	return err
}
