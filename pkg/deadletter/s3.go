package deadletter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/reportoor/pkg/config"
)

const defaultS3Prefix = "dead-letters"

// Compile-time interface check.
var _ Sink = (*s3Sink)(nil)

type s3Sink struct {
	log    logrus.FieldLogger
	cfg    *config.S3DeadLetterConfig
	client *s3.Client
}

// NewS3Sink creates a sink writing records as objects into an S3-compatible
// bucket.
func NewS3Sink(
	log logrus.FieldLogger,
	cfg *config.S3DeadLetterConfig,
) (Sink, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 dead letter sink requires a bucket")
	}

	opts := []func(*s3.Options){
		func(o *s3.Options) {
			if cfg.Region != "" {
				o.Region = cfg.Region
			} else {
				o.Region = "us-east-1"
			}

			if cfg.EndpointURL != "" {
				o.BaseEndpoint = aws.String(cfg.EndpointURL)
			}

			if cfg.ForcePathStyle {
				o.UsePathStyle = true
			}

			if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
				o.Credentials = credentials.NewStaticCredentialsProvider(
					cfg.AccessKeyID, cfg.SecretAccessKey, "",
				)
			}
		},
	}

	return &s3Sink{
		log:    log.WithField("component", "deadletter-s3"),
		cfg:    cfg,
		client: s3.New(s3.Options{}, opts...),
	}, nil
}

// Preflight verifies S3 connectivity by writing a small test object.
func (s *s3Sink) Preflight(ctx context.Context) error {
	content := fmt.Sprintf("reportoor write test: %s", time.Now().UTC().Format(time.RFC3339))

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(s.prefix() + "/.reportoor-write-test"),
		Body:        strings.NewReader(content),
		ContentType: aws.String("text/plain"),
	})
	if err != nil {
		return fmt.Errorf("writing test object to s3://%s: %w", s.cfg.Bucket, err)
	}

	return nil
}

func (s *s3Sink) Write(ctx context.Context, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding dead letter: %w", err)
	}

	key := s.prefix() + "/" + rec.Key()

	if _, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	}); err != nil {
		return fmt.Errorf("PutObject %s: %w", key, err)
	}

	s.log.WithFields(logrus.Fields{
		"key":    key,
		"bucket": s.cfg.Bucket,
	}).Debug("Wrote dead letter")

	return nil
}

func (s *s3Sink) prefix() string {
	prefix := strings.Trim(s.cfg.Prefix, "/")
	if prefix == "" {
		return defaultS3Prefix
	}

	return prefix
}
