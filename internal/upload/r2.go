package upload

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	cfg "github.com/maheshrc27/snapcomposer/configs"
	"github.com/maheshrc27/snapcomposer/internal/models"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// R2Destination stores images in a Cloudflare R2 bucket and serves them from
// its public URL.
type R2Destination struct {
	client    objectPutter
	bucket    string
	publicURL string
}

func NewR2Client(ctx context.Context, r2 cfg.R2) (*s3.Client, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(r2.AccessKey, r2.SecretKey, "")),
		config.WithRegion("auto"),
	)
	if err != nil {
		return nil, fmt.Errorf("load r2 config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s.r2.cloudflarestorage.com", r2.AccountID))
	}), nil
}

func NewR2Destination(client objectPutter, bucket, publicURL string) *R2Destination {
	return &R2Destination{
		client:    client,
		bucket:    bucket,
		publicURL: strings.TrimRight(publicURL, "/"),
	}
}

func (r *R2Destination) Name() string { return "r2" }

func (r *R2Destination) Upload(ctx context.Context, account string, file models.MediaFile, onProgress ProgressFunc) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", err
	}
	key := id + path.Ext(file.Name)
	if account != "" {
		key = account + "/" + key
	}

	input := &s3.PutObjectInput{
		Bucket:        aws.String(r.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(file.Data),
		ContentLength: aws.Int64(int64(len(file.Data))),
		ContentType:   aws.String(file.ContentType),
	}

	if onProgress != nil {
		onProgress(0)
	}
	if _, err := r.client.PutObject(ctx, input); err != nil {
		return "", transportError(err, r.Name())
	}
	if onProgress != nil {
		onProgress(100)
	}

	return fmt.Sprintf("%s/%s", r.publicURL, key), nil
}
