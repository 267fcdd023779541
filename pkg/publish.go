package addonsync

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// IndexPublisher uploads the encoded index document somewhere downstream
// consumers can fetch it
type IndexPublisher interface {
	Publish(ctx context.Context, data []byte) error
}

// objectPutter is the subset of the S3 client the publisher needs
type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Publisher puts the index into an S3-compatible bucket
type S3Publisher struct {
	client objectPutter
	bucket string
	key    string
}

// NewS3Publisher creates a publisher from the [publish] section. Static
// credentials are used when configured, otherwise the default AWS chain.
func NewS3Publisher(ctx context.Context, cfg *PublishConfig) (*S3Publisher, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Publisher{client: client, bucket: cfg.Bucket, key: cfg.Key}, nil
}

// Publish uploads data as the index object
func (p *S3Publisher) Publish(ctx context.Context, data []byte) error {
	_, err := p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(p.bucket),
		Key:           aws.String(p.key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("upload index to s3://%s/%s: %w", p.bucket, p.key, err)
	}
	VerboseLog(1, "Published index to s3://%s/%s (%d bytes)", p.bucket, p.key, len(data))
	return nil
}
