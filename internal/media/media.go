// Package media issues presigned URLs for message attachments. Clients
// upload directly to object storage; the api server never proxies file bytes.
package media

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const (
	uploadExpiry   = 15 * time.Minute
	downloadExpiry = 24 * time.Hour
)

type Service struct {
	client *minio.Client
	bucket string
}

func New(endpoint, accessKey, secretKey, bucket string, useSSL bool) (*Service, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	s := &Service{client: client, bucket: bucket}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Service) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}
	return nil
}

// PresignUpload returns a URL the client can PUT the file to.
func (s *Service) PresignUpload(ctx context.Context, objectName, contentType string) (string, error) {
	presigned, err := s.client.PresignedPutObject(ctx, s.bucket, objectName, uploadExpiry)
	if err != nil {
		return "", fmt.Errorf("presign upload %s: %w", objectName, err)
	}
	return presigned.String(), nil
}

// PresignDownload returns a time-limited URL for fetching the object.
func (s *Service) PresignDownload(ctx context.Context, objectName string) (string, error) {
	params := url.Values{}
	presigned, err := s.client.PresignedGetObject(ctx, s.bucket, objectName, downloadExpiry, params)
	if err != nil {
		return "", fmt.Errorf("presign download %s: %w", objectName, err)
	}
	return presigned.String(), nil
}

// RemoveObject deletes an attachment, e.g. after its message is purged.
func (s *Service) RemoveObject(ctx context.Context, objectName string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, objectName, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object %s: %w", objectName, err)
	}
	return nil
}
