package supabase

import (
	"context"
	"fmt"
	"io"
	"strings"

	"resume-anonymizer/internal/domain"

	storage_go "github.com/supabase-community/storage-go"
)

// StorageService stores original PDF uploads in a Supabase storage bucket.
type StorageService struct {
	baseURL string
	apiKey  string
	bucket  string
	logger  domain.Logger
}

func NewStorageService(config domain.Config, logger domain.Logger) *StorageService {
	return &StorageService{
		baseURL: strings.TrimRight(config.GetSupabaseURL(), "/"),
		apiKey:  config.GetSupabaseKey(),
		bucket:  config.GetStorageBucket(),
		logger:  logger,
	}
}

// storageClient builds a client acting as the token's user so bucket policies apply.
func (s *StorageService) storageClient(token string) *storage_go.Client {
	return storage_go.NewClient(s.baseURL+"/storage/v1", token, map[string]string{"apikey": s.apiKey})
}

// Upload stores file under path in the bucket and returns its public URL.
func (s *StorageService) Upload(ctx context.Context, path string, file io.Reader, token string) (string, error) {
	if s.baseURL == "" || s.bucket == "" {
		return "", fmt.Errorf("storage is not configured")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	contentType := "application/pdf"
	upsert := true
	client := s.storageClient(token)
	if _, err := client.UploadFile(s.bucket, path, file, storage_go.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	}); err != nil {
		return "", fmt.Errorf("storage upload failed: %w", err)
	}

	url := client.GetPublicUrl(s.bucket, path).SignedURL
	s.logger.Debug("Original uploaded", "bucket", s.bucket, "path", path)
	return url, nil
}
