package importer

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectGetter is the subset of the S3 client used to fetch import files.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Opener resolves an import source: a local path or s3://bucket/key.
type Opener struct {
	// S3 is created from the default AWS config on first use when nil.
	S3 ObjectGetter
}

// ParseS3URL splits s3://bucket/key.
func ParseS3URL(src string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(src, "s3://")
	if !ok {
		return "", "", fmt.Errorf("not an s3 url: %s", src)
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("s3 url needs bucket and key: %s", src)
	}
	return bucket, key, nil
}

func (o *Opener) Open(ctx context.Context, src string) (io.ReadCloser, error) {
	if !strings.HasPrefix(src, "s3://") {
		f, err := os.Open(src)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", src, err)
		}
		return f, nil
	}
	bucket, key, err := ParseS3URL(src)
	if err != nil {
		return nil, err
	}
	if o.S3 == nil {
		cfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		o.S3 = s3.NewFromConfig(cfg)
	}
	out, err := o.S3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", src, err)
	}
	return out.Body, nil
}
