package cmd

import (
	"github.com/dukex/reportgen/pkg/templates"
)

// NewSource serves http(s) template URLs, plus s3:// ones when an S3 endpoint is set.
func NewSource(cfg Config) (templates.Source, error) {
	source := templates.NewMultiSource().
		Register(templates.NewHTTPSource(cfg.FetchTimeout, cfg.TemplatesToken), "http", "https")

	if cfg.S3Endpoint == "" {
		return source, nil
	}

	s3, err := templates.NewS3Source(templates.S3Config{
		Endpoint:  cfg.S3Endpoint,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		UseSSL:    cfg.S3UseSSL,
	})
	if err != nil {
		return nil, err
	}

	return source.Register(s3, "s3"), nil
}
