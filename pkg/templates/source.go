package templates

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Source retrieves raw documents (index and template files) by URL.
type Source interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, error)
}

// HTTPSource fetches documents over HTTP(S), optionally authenticating with a bearer token.
type HTTPSource struct {
	client *http.Client
	token  string
}

// NewHTTPSource creates a source whose every request is bounded by timeout.
func NewHTTPSource(timeout time.Duration, token string) *HTTPSource {
	return &HTTPSource{
		client: &http.Client{Timeout: timeout},
		token:  token,
	}
}

func (s *HTTPSource) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "*/*")
	req.Header.Set("Cache-Control", "no-cache")

	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)

		return nil, &StatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return body, nil
}

// S3Config holds the connection settings of an S3-compatible object store.
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// S3Source fetches s3://bucket/key documents from an S3-compatible store.
type S3Source struct {
	client *minio.Client
}

func NewS3Source(cfg S3Config) (*S3Source, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("s3 endpoint is required")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 client: %w", err)
	}

	return &S3Source{client: client}, nil
}

func (s *S3Source) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	bucket, key, err := parseS3URL(rawURL)
	if err != nil {
		return nil, err
	}

	object, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object: %w", err)
	}

	defer func() {
		_ = object.Close()
	}()

	body, err := io.ReadAll(object)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, &StatusError{URL: rawURL, StatusCode: http.StatusNotFound}
		}

		return nil, fmt.Errorf("failed to read object: %w", err)
	}

	return body, nil
}

func parseS3URL(rawURL string) (string, string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", "", fmt.Errorf("invalid s3 url: %w", err)
	}

	if parsed.Scheme != "s3" {
		return "", "", fmt.Errorf("unsupported scheme %q for s3 source", parsed.Scheme)
	}

	key := strings.TrimPrefix(parsed.Path, "/")
	if parsed.Host == "" || key == "" {
		return "", "", fmt.Errorf("s3 url must look like s3://bucket/key, got %q", rawURL)
	}

	return parsed.Host, key, nil
}

// MultiSource dispatches to a Source by URL scheme.
type MultiSource struct {
	sources map[string]Source
}

func NewMultiSource() *MultiSource {
	return &MultiSource{sources: make(map[string]Source)}
}

// Register routes the given schemes to source.
func (m *MultiSource) Register(source Source, schemes ...string) *MultiSource {
	for _, scheme := range schemes {
		m.sources[scheme] = source
	}

	return m
}

func (m *MultiSource) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}

	source, ok := m.sources[parsed.Scheme]
	if !ok {
		return nil, fmt.Errorf("no source registered for scheme %q", parsed.Scheme)
	}

	return source.Fetch(ctx, rawURL)
}
