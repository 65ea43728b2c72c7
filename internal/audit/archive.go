package audit

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3API is the subset of the S3 client the archive uses.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Archive mirrors memory entries to S3 as per-lead JSONL objects under
// memory/{tenant}/{lead}.jsonl. Entry volume per lead is small (dozens, not
// millions), so read-append-put is acceptable.
type Archive struct {
	client S3API
	bucket string
}

// NewArchive creates an S3-backed archive. A nil client disables the
// archive (every call becomes a no-op), which keeps local development free
// of AWS credentials.
func NewArchive(client S3API, bucket string) *Archive {
	return &Archive{client: client, bucket: bucket}
}

func (a *Archive) key(tenantID, leadID string) string {
	return fmt.Sprintf("memory/%s/%s.jsonl", tenantID, leadID)
}

// AppendLine appends one JSONL line to the lead's archive object.
func (a *Archive) AppendLine(ctx context.Context, tenantID, leadID string, line []byte) error {
	if a.client == nil {
		return nil
	}
	key := a.key(tenantID, leadID)

	existing, _ := a.getObject(ctx, key)
	combined := append(existing, line...)
	combined = append(combined, '\n')

	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(combined),
		ContentType: aws.String("application/json"),
	})
	return err
}

func (a *Archive) getObject(ctx context.Context, key string) ([]byte, error) {
	out, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, nil // treat missing objects as empty
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}
