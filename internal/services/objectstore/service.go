package objectstore

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vidsmith/internal/common"
	"github.com/ternarybob/vidsmith/internal/httpclient"
	"github.com/ternarybob/vidsmith/internal/interfaces"
	"github.com/ternarybob/vidsmith/internal/services"
)

// Service talks to the shared object store gateway. Uploads stream multipart
// bodies; keys are opaque paths under the configured bucket.
type Service struct {
	client    *http.Client
	baseURL   string
	bucket    string
	accessKey string
	secretKey string
	logger    arbor.ILogger
}

func NewService(logger arbor.ILogger, config *common.Config) *Service {
	return &Service{
		client:    httpclient.NewDefaultHTTPClient(config.StorageTimeout()),
		baseURL:   config.Storage.BaseURL,
		bucket:    config.Storage.Bucket,
		accessKey: config.Storage.AccessKey,
		secretKey: config.Storage.SecretKey,
		logger:    logger,
	}
}

func (s *Service) authHeaders() map[string]string {
	headers := map[string]string{}
	if s.accessKey != "" {
		headers["X-Access-Key"] = s.accessKey
		headers["X-Secret-Key"] = s.secretKey
	}
	return headers
}

// Upload streams a local file to the store under key. Re-uploading a key
// overwrites; last writer wins.
func (s *Service) Upload(ctx context.Context, localPath, key string, metadata map[string]string) (*interfaces.UploadResult, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return nil, services.Permanent("storage", fmt.Errorf("failed to open %s: %w", localPath, err))
	}
	defer file.Close()

	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)

	go func() {
		defer pw.Close()
		defer writer.Close()

		if err := writer.WriteField("bucket", s.bucket); err != nil {
			pw.CloseWithError(err)
			return
		}
		if err := writer.WriteField("key", key); err != nil {
			pw.CloseWithError(err)
			return
		}
		for k, v := range metadata {
			if err := writer.WriteField("meta_"+k, v); err != nil {
				pw.CloseWithError(err)
				return
			}
		}
		part, err := writer.CreateFormFile("file", filepath.Base(localPath))
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, file); err != nil {
			pw.CloseWithError(err)
			return
		}
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/v1/objects", pr)
	if err != nil {
		return nil, services.Permanent("storage", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	for k, v := range s.authHeaders() {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, services.Transient("storage", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, services.Classify("storage", resp.StatusCode,
			fmt.Errorf("upload failed with status %d: %s", resp.StatusCode, body))
	}

	s.logger.Debug().Str("key", key).Msg("Object uploaded")
	return &interfaces.UploadResult{
		Success: true,
		FileKey: key,
		URL:     s.baseURL + "/" + s.bucket + "/" + key,
	}, nil
}

// UploadBatch uploads a map of artifact type to local path under a shared key
// prefix. There is no transaction: each item succeeds or fails independently
// and the aggregate records both counts.
func (s *Service) UploadBatch(ctx context.Context, files map[string]string, prefix string, metadata map[string]string) (*interfaces.BatchUploadResult, error) {
	batch := &interfaces.BatchUploadResult{
		Results: make(map[string]*interfaces.UploadResult, len(files)),
	}

	for artifact, localPath := range files {
		key := strings.TrimSuffix(prefix, "/") + "/" + filepath.Base(localPath)

		info, err := os.Stat(localPath)
		if err != nil {
			batch.Results[artifact] = &interfaces.UploadResult{Success: false, Error: err.Error()}
			batch.FailedCount++
			continue
		}

		result, err := s.Upload(ctx, localPath, key, metadata)
		if err != nil {
			batch.Results[artifact] = &interfaces.UploadResult{Success: false, Error: err.Error()}
			batch.FailedCount++
			continue
		}
		batch.Results[artifact] = result
		batch.SuccessCount++
		batch.TotalSize += info.Size()
	}

	return batch, nil
}

type downloadURLResponse struct {
	URL string `json:"url"`
}

func (s *Service) DownloadURL(ctx context.Context, key string, expiresInSeconds int) (string, error) {
	if expiresInSeconds <= 0 {
		expiresInSeconds = 3600
	}
	url := fmt.Sprintf("%s/api/v1/objects/presign?bucket=%s&key=%s&expires=%s",
		s.baseURL, s.bucket, key, strconv.Itoa(expiresInSeconds))

	var resp downloadURLResponse
	status, err := httpclient.GetJSON(ctx, s.client, url, s.authHeaders(), &resp)
	if err != nil {
		return "", services.Classify("storage", status, err)
	}
	return resp.URL, nil
}

func (s *Service) Delete(ctx context.Context, key string) (bool, error) {
	url := fmt.Sprintf("%s/api/v1/objects?bucket=%s&key=%s", s.baseURL, s.bucket, key)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return false, services.Permanent("storage", err)
	}
	for k, v := range s.authHeaders() {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return false, services.Transient("storage", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return true, nil
	default:
		return false, services.Classify("storage", resp.StatusCode,
			fmt.Errorf("delete failed with status %d", resp.StatusCode))
	}
}
