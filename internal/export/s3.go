package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/KaramelBytes/trialdash/internal/dataset"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sirupsen/logrus"
)

// S3Config holds the S3-compatible destination of a download.
type S3Config struct {
	Bucket          string `yaml:"bucket" mapstructure:"bucket"`
	Key             string `yaml:"key,omitempty" mapstructure:"key"`
	Region          string `yaml:"region,omitempty" mapstructure:"region"`
	EndpointURL     string `yaml:"endpoint_url,omitempty" mapstructure:"endpoint_url"`
	AccessKeyID     string `yaml:"access_key_id,omitempty" mapstructure:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty" mapstructure:"secret_access_key"`
	ForcePathStyle  bool   `yaml:"force_path_style,omitempty" mapstructure:"force_path_style"`
}

// ObjectPutter is the subset of the S3 client the sink needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3 uploads the download as a CSV object.
type S3 struct {
	log    logrus.FieldLogger
	cfg    S3Config
	client ObjectPutter
}

var _ Sink = (*S3)(nil)

// NewS3 creates an S3 sink from cfg.
func NewS3(log logrus.FieldLogger, cfg S3Config) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}
	if cfg.Key == "" {
		cfg.Key = DefaultFileName
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

	return NewS3WithClient(log, cfg, s3.New(s3.Options{}, opts...)), nil
}

// NewS3WithClient creates an S3 sink over an existing client.
func NewS3WithClient(log logrus.FieldLogger, cfg S3Config, client ObjectPutter) *S3 {
	if cfg.Key == "" {
		cfg.Key = DefaultFileName
	}
	return &S3{
		log:    log.WithField("component", "s3-export"),
		cfg:    cfg,
		client: client,
	}
}

// URI returns the s3:// location of the upload.
func (s *S3) URI() string { return "s3://" + s.cfg.Bucket + "/" + s.cfg.Key }

// Write uploads t as text/csv to the configured bucket and key.
func (s *S3) Write(ctx context.Context, t *dataset.Table) error {
	b, err := dataset.CSVBytes(t)
	if err != nil {
		return fmt.Errorf("encode csv: %w", err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(s.cfg.Key),
		Body:        bytes.NewReader(b),
		ContentType: aws.String("text/csv"),
	})
	if err != nil {
		return fmt.Errorf("uploading to s3://%s/%s: %w", s.cfg.Bucket, s.cfg.Key, err)
	}

	s.log.WithFields(logrus.Fields{
		"bucket": s.cfg.Bucket,
		"key":    s.cfg.Key,
		"bytes":  len(b),
	}).Info("Upload completed")
	return nil
}
