package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"runtime"

	"github.com/bft-labs/trackship/internal/domain"
	"github.com/bft-labs/trackship/internal/ports"
)

// DefaultUploadPath is appended to the collector URL for sample uploads.
const DefaultUploadPath = "/location"

// maxErrorBody bounds how much of a rejection body is kept in the error.
const maxErrorBody = 4 << 10

// UploadRequest is the collector's wire format for one sample.
type UploadRequest struct {
	Timestamp string  `json:"timestamp"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// NewUploadRequest converts a sample to its wire form.
func NewUploadRequest(s domain.Sample) UploadRequest {
	return UploadRequest{
		Timestamp: s.Timestamp(),
		Latitude:  s.Latitude,
		Longitude: s.Longitude,
	}
}

// UploaderConfig describes the collector endpoint and the agent identity headers.
type UploaderConfig struct {
	CollectorURL string
	UploadPath   string
	APIKey       string
	DeviceID     string
	Hostname     string
	Version      string
}

// Uploader implements ports.Uploader with one JSON POST per sample.
type Uploader struct {
	client ports.HTTPClient
	logger ports.Logger
	url    string
	cfg    UploaderConfig
}

// NewUploader creates a new HTTP uploader.
func NewUploader(client ports.HTTPClient, cfg UploaderConfig, logger ports.Logger) *Uploader {
	if cfg.UploadPath == "" {
		cfg.UploadPath = DefaultUploadPath
	}
	return &Uploader{
		client: client,
		logger: logger,
		url:    cfg.CollectorURL + cfg.UploadPath,
		cfg:    cfg,
	}
}

// URL returns the full endpoint samples are posted to.
func (u *Uploader) URL() string {
	return u.url
}

// Upload sends one sample. It never retries.
func (u *Uploader) Upload(ctx context.Context, sample domain.Sample) error {
	body, err := json.Marshal(NewUploadRequest(sample))
	if err != nil {
		return fmt.Errorf("marshal sample %d: %w: %w", sample.ID, domain.ErrUploadTransport, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w: %w", domain.ErrUploadTransport, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", u.cfg.APIKey)
	req.Header.Set("X-Device-Id", u.cfg.DeviceID)
	req.Header.Set("X-Agent-Hostname", u.cfg.Hostname)
	req.Header.Set("X-Agent-OSArch", runtime.GOOS+"/"+runtime.GOARCH)
	if u.cfg.Version != "" {
		req.Header.Set("User-Agent", "trackship/"+u.cfg.Version)
	}

	resp, err := u.client.Do(req)
	if err != nil {
		return fmt.Errorf("send sample %d: %w: %w", sample.ID, domain.ErrUploadTransport, err)
	}
	defer resp.Body.Close()

	respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	if resp.StatusCode/100 == 2 {
		// The body is ignored on success, but a connection that dies while
		// the response is still arriving is not a confirmed acceptance.
		if readErr != nil {
			return fmt.Errorf("read response for sample %d: %w: %w", sample.ID, domain.ErrUploadTransport, readErr)
		}
		u.logger.Debug("sample accepted",
			ports.Int64("sample_id", sample.ID),
			ports.Int("status", resp.StatusCode),
		)
		return nil
	}

	if readErr != nil {
		return fmt.Errorf("read error response for sample %d: %w: %w", sample.ID, domain.ErrUploadTransport, readErr)
	}
	return &domain.UploadError{
		SampleID:   sample.ID,
		StatusCode: resp.StatusCode,
		Body:       string(respBody),
	}
}
