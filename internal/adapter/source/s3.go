package source

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	s3manager "github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/semmidev/keepsake/internal/config"
)

// S3Downloader is the part of the s3 manager the source uses.
type S3Downloader interface {
	Download(ctx context.Context, w io.WriterAt, input *s3.GetObjectInput, options ...func(*s3manager.Downloader)) (int64, error)
}

// NewS3Downloader uses static credentials when both keys are set and the
// default AWS credential chain otherwise.
func NewS3Downloader(ctx context.Context, cfg config.S3Config) (*s3manager.Downloader, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return s3manager.NewDownloader(s3.NewFromConfig(awsCfg)), nil
}

// S3 downloads one object on every tick.
type S3 struct {
	downloader S3Downloader
	bucket     string
	key        string
}

func NewS3(downloader S3Downloader, bucket, key string) *S3 {
	return &S3{downloader: downloader, bucket: bucket, key: key}
}

func (s *S3) Describe() string {
	return fmt.Sprintf("s3://%s/%s", s.bucket, s.key)
}

func (s *S3) Produce(ctx context.Context) (any, error) {
	buf := s3manager.NewWriteAtBuffer(nil)
	_, err := s.downloader.Download(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", s.Describe(), err)
	}
	return decode(buf.Bytes())
}
