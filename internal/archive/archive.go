package archive

import (
	"context"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/listmirror/listmirror/config"
)

// Dead-letter key prefixes. A key sorts by failure time within its
// prefix, so the newest archived messages list last.
const (
	KindConnectionFailed = "connection-failed-"
	KindProcessingError  = "processing-error-"
)

// timestampLayout is sortable: fixed-width UTC with sub-second digits.
const timestampLayout = "20060102T150405.000000000Z"

// Store archives queue messages that could not be processed
// automatically. One object per failure, value = the original message
// text verbatim, read back only for manual diagnosis or resubmission.
type Store struct {
	client *s3.Client
	bucket string
}

func NewStore(ctx context.Context, cnf config.ArchiveConfig) (*Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cnf.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cnf.AwsAccessKeyId, cnf.AwsSecretAccessKey, "")),
	)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cnf.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cnf.S3Endpoint)
			o.UsePathStyle = true
		}
	})

	return &Store{client: client, bucket: cnf.S3BucketName}, nil
}

// Archive writes one dead-letter object and returns its key.
func (s *Store) Archive(ctx context.Context, kind, message string) (string, error) {
	key := Key(kind, time.Now())
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   strings.NewReader(message),
	})
	if err != nil {
		return "", err
	}
	return key, nil
}

// Key builds a dead-letter object key: prefix + sortable UTC timestamp.
func Key(kind string, now time.Time) string {
	return kind + now.UTC().Format(timestampLayout)
}
