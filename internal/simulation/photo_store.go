package simulation

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/graftline/clinic-crm/pkg/logging"
)

// S3API is the subset of the S3 client used by PhotoStore.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// PhotoVariant distinguishes the original capture from the AI render.
type PhotoVariant string

const (
	VariantBefore PhotoVariant = "before"
	VariantAfter  PhotoVariant = "after"
)

// PhotoStore keeps patient photos in S3, keyed by tenant and patient. If no
// bucket is configured, all operations are no-ops.
type PhotoStore struct {
	bucket   string
	s3Client S3API
	logger   *logging.Logger
}

// NewPhotoStore creates a photo store.
func NewPhotoStore(s3Client S3API, bucket string, logger *logging.Logger) *PhotoStore {
	if logger == nil {
		logger = logging.Default()
	}
	return &PhotoStore{bucket: bucket, s3Client: s3Client, logger: logger}
}

// Enabled reports whether photo storage is configured.
func (s *PhotoStore) Enabled() bool {
	return s != nil && s.bucket != "" && s.s3Client != nil
}

// Save writes a photo and returns its object key. Keys embed a timestamp so
// repeated simulations never overwrite earlier ones.
func (s *PhotoStore) Save(ctx context.Context, tenantID, patientID string, variant PhotoVariant, data []byte, mimeType string, capturedAt time.Time) (string, error) {
	if !s.Enabled() {
		return "", nil
	}

	key := fmt.Sprintf("patients/%s/%s/%s-%d%s",
		tenantID, patientID, variant, capturedAt.UnixMilli(), extensionFor(mimeType))

	_, err := s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(mimeType),
	})
	if err != nil {
		return "", fmt.Errorf("simulation: s3 put %s: %w", key, err)
	}

	s.logger.Info("patient photo stored",
		"tenant_id", tenantID,
		"patient_id", patientID,
		"variant", variant,
		"s3_key", key,
	)
	return key, nil
}

// Load reads back a stored photo by key.
func (s *PhotoStore) Load(ctx context.Context, key string) ([]byte, string, error) {
	if !s.Enabled() {
		return nil, "", fmt.Errorf("simulation: photo store not configured")
	}

	out, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, "", fmt.Errorf("simulation: s3 get %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, "", fmt.Errorf("simulation: s3 read %s: %w", key, err)
	}
	return data, aws.ToString(out.ContentType), nil
}

func extensionFor(mimeType string) string {
	switch strings.ToLower(mimeType) {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}
