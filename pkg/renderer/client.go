// Package renderer talks to the external HTML to PDF rendering service.
package renderer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dukex/reportgen/pkg/models"
)

const (
	DefaultMaxRetries = 3
	DefaultBackoff    = 200 * time.Millisecond
	DefaultTimeout    = 60 * time.Second
)

type Config struct {
	// Host is the renderer address, with or without scheme. Plain hosts use http.
	Host       string
	Timeout    time.Duration
	MaxRetries int
	Backoff    time.Duration
}

type Client struct {
	endpoint string
	http     *http.Client
	logger   *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	if cfg.Backoff <= 0 {
		cfg.Backoff = DefaultBackoff
	}

	base := cfg.Host
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	return &Client{
		endpoint: strings.TrimRight(base, "/") + "/generate-pdf",
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: NewRetryTransport(http.DefaultTransport, cfg.MaxRetries, cfg.Backoff),
		},
		logger: logger.With("module", "renderer"),
	}
}

type response struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Path    string `json:"path"`
}

// Payload builds the form fields sent to the renderer. Header and footer are
// only included when non-empty.
func Payload(outputName, html string, opts models.PDFOptions) url.Values {
	form := url.Values{}
	form.Set("outputFilename", outputName)
	form.Set("htmlContent", html)
	form.Set("pageSize", opts.PageSize)
	form.Set("landscape", strconv.FormatBool(opts.Landscape()))

	if opts.Header != "" {
		form.Set("headerContent", opts.Header)
	}

	if opts.Footer != "" {
		form.Set("footerContent", opts.Footer)
	}

	return form
}

// Render asks the renderer to produce outputName from html. The renderer adds
// the .pdf extension itself.
func (c *Client) Render(ctx context.Context, outputName, html string, opts models.PDFOptions) error {
	body := Payload(outputName, html, opts).Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create render request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &RenderFailure{Message: err.Error(), Err: err}
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &RenderFailure{StatusCode: resp.StatusCode, Message: "unreadable response", Err: err}
	}

	var decoded response

	decodeErr := json.Unmarshal(raw, &decoded)

	if resp.StatusCode != http.StatusOK {
		message := decoded.Message
		if decodeErr != nil || message == "" {
			message = strings.TrimSpace(string(raw))
		}

		if message == "" {
			message = http.StatusText(resp.StatusCode)
		}

		c.logger.ErrorContext(ctx, "Renderer rejected request", "output", outputName, "status", resp.StatusCode, "message", message)

		return &RenderFailure{StatusCode: resp.StatusCode, Message: message}
	}

	if decodeErr == nil && decoded.Status == "error" {
		c.logger.ErrorContext(ctx, "Renderer reported an error", "output", outputName, "message", decoded.Message)

		return &RenderFailure{StatusCode: resp.StatusCode, Message: decoded.Message}
	}

	c.logger.InfoContext(ctx, "PDF generated", "output", outputName, "path", decoded.Path)

	return nil
}
