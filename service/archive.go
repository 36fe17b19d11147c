package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/Nachoram/plataforma-inmobiliaria-sub007/backend/config"
	"github.com/Nachoram/plataforma-inmobiliaria-sub007/backend/model"
)

// ArchiveService stores immutable contract snapshots in object
// storage, one object per saved version, and hands out presigned
// download URLs.
type ArchiveService struct {
	client *minio.Client
	bucket string
	config *config.MinioConfig
}

func NewArchiveService(cfg *config.MinioConfig) (*ArchiveService, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &ArchiveService{
		client: client,
		bucket: cfg.Bucket,
		config: cfg,
	}, nil
}

// EnsureBucket creates the bucket if it doesn't exist
func (s *ArchiveService) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}

	if !exists {
		err = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{})
		if err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return nil
}

// ObjectName returns the storage key for one contract version.
func ObjectName(c *model.RentalContract) string {
	return fmt.Sprintf("%s/%s/v%d.txt", c.Agency, c.ID, c.Version)
}

// ArchiveContract uploads a plain-text snapshot of the contract's
// current content and returns its object name.
func (s *ArchiveService) ArchiveContract(ctx context.Context, c *model.RentalContract) (string, error) {
	document := RenderDocument(c)
	objectName := ObjectName(c)

	reader := strings.NewReader(document)
	_, err := s.client.PutObject(ctx, s.bucket, objectName, reader, int64(len(document)), minio.PutObjectOptions{
		ContentType: "text/plain; charset=utf-8",
	})
	if err != nil {
		return "", fmt.Errorf("failed to archive contract: %w", err)
	}

	return objectName, nil
}

// GetPresignedURL generates a presigned URL for the object with expiration
func (s *ArchiveService) GetPresignedURL(ctx context.Context, objectName string) (string, error) {
	expiry := time.Duration(s.config.ExpireDays) * 24 * time.Hour
	url, err := s.client.PresignedGetObject(ctx, s.bucket, objectName, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}

	return url.String(), nil
}

// DownloadURL returns the link handed to clients: the plain public
// URL when the bucket policy allows anonymous reads, a presigned URL
// otherwise.
func (s *ArchiveService) DownloadURL(ctx context.Context, objectName string) (string, error) {
	if s.config.Public {
		return s.GetPublicURL(objectName), nil
	}
	return s.GetPresignedURL(ctx, objectName)
}

// GetPublicURL returns a public URL for the object (if bucket policy allows)
func (s *ArchiveService) GetPublicURL(objectName string) string {
	protocol := "http"
	if s.config.UseSSL {
		protocol = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", protocol, s.config.Endpoint, s.bucket, objectName)
}

// RenderDocument flattens the five canvas sections into the plain-text
// document that gets archived, in display order.
func RenderDocument(c *model.RentalContract) string {
	var b strings.Builder
	for i, key := range model.SectionKeys {
		sec := c.Content.Section(key)
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(strings.ToUpper(sec.Title))
		b.WriteString("\n\n")
		b.WriteString(sec.Content)
	}
	return b.String()
}
