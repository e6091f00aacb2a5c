// Package archive keeps a copy of every remote draft that a forced push
// overwrote, so keep-mine resolutions stay recoverable.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/draftkeeper/internal/server/models"
	"github.com/gowebpki/jcs"
)

// Archiver stores overwritten drafts.
type Archiver interface {
	Archive(ctx context.Context, d *models.StoredDraft) (string, error)
}

type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) objectPutter {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// Options configure the S3-compatible endpoint (MinIO in development).
type Options struct {
	Bucket       string
	Region       string
	AccessKey    string
	SecretKey    string
	BaseEndpoint string
}

type S3Archiver struct {
	client objectPutter
	bucket string
}

func NewS3Archiver(ctx context.Context, o Options) (*S3Archiver, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(o.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			o.AccessKey,
			o.SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}

	client := newS3ClientFromConfig(cfg, func(opts *s3.Options) {
		if o.BaseEndpoint != "" {
			opts.BaseEndpoint = aws.String(o.BaseEndpoint)
		}
		opts.UsePathStyle = true
	})

	return &S3Archiver{client: client, bucket: o.Bucket}, nil
}

// ObjectKey names the archived copy of d.
func ObjectKey(d *models.StoredDraft) string {
	return fmt.Sprintf("drafts/%s/v%06d-%s.json", d.Draft.ID, d.Draft.Version, d.UpdatedAt.UTC().Format("20060102T150405Z"))
}

type archivedDraft struct {
	Draft      any       `json:"draft"`
	UpdatedAt  time.Time `json:"updatedAt"`
	UpdatedBy  string    `json:"updatedBy"`
	DeviceID   string    `json:"deviceId"`
	ArchivedAt time.Time `json:"archivedAt"`
}

// Archive uploads d as canonical JSON and returns the object key.
func (a *S3Archiver) Archive(ctx context.Context, d *models.StoredDraft) (string, error) {
	raw, err := json.Marshal(archivedDraft{
		Draft:      d.Draft,
		UpdatedAt:  d.UpdatedAt,
		UpdatedBy:  d.UpdatedBy,
		DeviceID:   d.DeviceID,
		ArchivedAt: time.Now().UTC(),
	})
	if err != nil {
		return "", fmt.Errorf("encode archive: %w", err)
	}
	body, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("canonicalize archive: %w", err)
	}

	key := ObjectKey(d)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("put %s: %w", key, err)
	}
	return key, nil
}
