package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/dukex/reportgen/pkg/assetstore"
)

// NewAssetStore connects the template cache. "memory" keeps it in process.
func NewAssetStore(ctx context.Context, rawURL string) (assetstore.Store, error) {
	switch {
	case rawURL == "" || rawURL == "memory" || strings.HasPrefix(rawURL, "memory://"):
		return assetstore.NewMemoryStore(), nil
	case strings.HasPrefix(rawURL, "redis://"), strings.HasPrefix(rawURL, "rediss://"):
		store, err := assetstore.NewRedisStore(ctx, rawURL)
		if err != nil {
			return nil, err
		}

		return store, nil
	default:
		return nil, fmt.Errorf("unsupported asset store url: %q", rawURL)
	}
}
