package archive

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	im "github.com/dmitrijs2005/draftkeeper/internal/models"
	"github.com/dmitrijs2005/draftkeeper/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePutter struct {
	in   *s3.PutObjectInput
	body []byte
	err  error
}

func (f *fakePutter) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.in = in
	f.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, nil
}

func stored() *models.StoredDraft {
	return &models.StoredDraft{
		Draft: im.Draft{
			ID:         "d1",
			ClientName: "Jane Roe",
			Type:       im.DraftTypeAssessment,
			Data:       im.Record{"b": 1.0, "a": "x"},
			Version:    4,
		},
		UpdatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		UpdatedBy: "u1",
		DeviceID:  "dev-a",
	}
}

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "drafts/d1/v000004-20260102T030405Z.json", ObjectKey(stored()))
}

func TestArchive_UploadsCanonicalJSON(t *testing.T) {
	p := &fakePutter{}
	a := &S3Archiver{client: p, bucket: "draft-archive"}

	key, err := a.Archive(context.Background(), stored())
	require.NoError(t, err)
	assert.Equal(t, ObjectKey(stored()), key)
	assert.Equal(t, "draft-archive", aws.ToString(p.in.Bucket))
	assert.Equal(t, key, aws.ToString(p.in.Key))
	assert.Equal(t, "application/json", aws.ToString(p.in.ContentType))

	var got map[string]any
	require.NoError(t, json.Unmarshal(p.body, &got))
	assert.Equal(t, "u1", got["updatedBy"])
	assert.Equal(t, "d1", got["draft"].(map[string]any)["id"])
	// canonical form sorts keys
	assert.Contains(t, string(p.body), `"data":{"a":"x","b":1}`)
}

func TestArchive_PutError(t *testing.T) {
	a := &S3Archiver{client: &fakePutter{err: errors.New("denied")}, bucket: "b"}
	_, err := a.Archive(context.Background(), stored())
	assert.ErrorContains(t, err, "denied")
}

func TestNewS3Archiver_AppliesOptions(t *testing.T) {
	origLoad, origNew := loadDefaultAWSConfig, newS3ClientFromConfig
	t.Cleanup(func() {
		loadDefaultAWSConfig = origLoad
		newS3ClientFromConfig = origNew
	})

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		var lo awsconfig.LoadOptions
		for _, fn := range optFns {
			require.NoError(t, fn(&lo))
		}
		assert.Equal(t, "us-east-1", lo.Region)
		require.NotNil(t, lo.Credentials)
		creds, err := lo.Credentials.Retrieve(ctx)
		require.NoError(t, err)
		assert.Equal(t, "minio", creds.AccessKeyID)
		return aws.Config{Region: lo.Region}, nil
	}

	var opts s3.Options
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) objectPutter {
		for _, fn := range optFns {
			fn(&opts)
		}
		return &fakePutter{}
	}

	a, err := NewS3Archiver(context.Background(), Options{
		Bucket: "b", Region: "us-east-1", AccessKey: "minio", SecretKey: "secret",
		BaseEndpoint: "http://127.0.0.1:9000",
	})
	require.NoError(t, err)
	assert.Equal(t, "b", a.bucket)
	assert.Equal(t, "http://127.0.0.1:9000", aws.ToString(opts.BaseEndpoint))
	assert.True(t, opts.UsePathStyle)
}

func TestNewS3Archiver_ConfigError(t *testing.T) {
	origLoad := loadDefaultAWSConfig
	t.Cleanup(func() { loadDefaultAWSConfig = origLoad })

	loadDefaultAWSConfig = func(context.Context, ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("no config")
	}

	_, err := NewS3Archiver(context.Background(), Options{})
	assert.Error(t, err)
}
