package services

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
)

type LocalStorageService struct {
	basePath string
}

func NewLocalStorageService(basePath string) (*LocalStorageService, error) {
	// Owner-only access
	if err := os.MkdirAll(basePath, 0700); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	return &LocalStorageService{basePath: basePath}, nil
}

func (s *LocalStorageService) Upload(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	objectPath, err := s.objectPath(bucketName, objectName)
	if err != nil {
		return minio.UploadInfo{}, err
	}

	if err := os.MkdirAll(filepath.Dir(objectPath), 0700); err != nil {
		return minio.UploadInfo{}, fmt.Errorf("failed to create object directory: %w", err)
	}

	file, err := os.OpenFile(objectPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return minio.UploadInfo{}, fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	written, err := io.Copy(file, reader)
	if err != nil {
		return minio.UploadInfo{}, fmt.Errorf("failed to write file: %w", err)
	}

	return minio.UploadInfo{
		Bucket: bucketName,
		Key:    objectName,
		Size:   written,
	}, nil
}

func (s *LocalStorageService) Download(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (io.ReadCloser, error) {
	objectPath, err := s.objectPath(bucketName, objectName)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(objectPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("object not found: %s", objectName)
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	return file, nil
}

func (s *LocalStorageService) Delete(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error {
	objectPath, err := s.objectPath(bucketName, objectName)
	if err != nil {
		return err
	}

	if err := os.Remove(objectPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}

	return nil
}

// objectPath keeps object names inside the bucket directory.
func (s *LocalStorageService) objectPath(bucketName, objectName string) (string, error) {
	bucketPath := filepath.Join(s.basePath, bucketName)
	objectPath := filepath.Join(bucketPath, objectName)
	if !strings.HasPrefix(objectPath, bucketPath+string(os.PathSeparator)) {
		return "", fmt.Errorf("invalid object name: %s", objectName)
	}
	return objectPath, nil
}
