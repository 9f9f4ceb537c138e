// Package archive keeps a copy of every committed sales-order statement in
// S3-compatible object storage.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/edvin/metering/internal/model"
)

// PutObjectAPI is the part of the S3 client the archiver uses.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3Archiver struct {
	client PutObjectAPI
	bucket string
}

// NewS3Archiver creates an archiver writing to bucket at endpoint using
// path-style addressing.
func NewS3Archiver(endpoint, region, bucket, accessKey, secretKey string) *S3Archiver {
	client := s3.New(s3.Options{
		BaseEndpoint: aws.String(endpoint),
		Region:       region,
		Credentials:  credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		UsePathStyle: true,
	})
	return NewS3ArchiverWithClient(client, bucket)
}

func NewS3ArchiverWithClient(client PutObjectAPI, bucket string) *S3Archiver {
	return &S3Archiver{client: client, bucket: bucket}
}

// ObjectKey returns where a sales order's statement is stored.
func ObjectKey(order *model.SalesOrder) string {
	return fmt.Sprintf("sales-orders/%s/%s_%s_%d.json",
		order.TenantID,
		order.Start.UTC().Format("20060102T150405Z"),
		order.End.UTC().Format("20060102T150405Z"),
		order.ID,
	)
}

// Archive uploads the statement as JSON.
func (a *S3Archiver) Archive(ctx context.Context, order *model.SalesOrder, st *model.Statement) error {
	body, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal statement: %w", err)
	}

	key := ObjectKey(order)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
		Metadata: map[string]string{
			"tenant-id":      order.TenantID,
			"sales-order-id": fmt.Sprintf("%d", order.ID),
		},
	})
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", a.bucket, key, err)
	}
	return nil
}
