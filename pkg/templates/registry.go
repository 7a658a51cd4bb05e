// Package templates keeps the remote template catalog and each template's
// assets cached in the asset store, re-fetching only when fingerprints change.
package templates

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dukex/reportgen/pkg/assetstore"
	"github.com/dukex/reportgen/pkg/models"
	"github.com/go-playground/validator/v10"
)

// Registry resolves templates from the remote index and caches their assets.
// One Registry is created per process and shared by every component.
type Registry struct {
	store    assetstore.Store
	source   Source
	indexURL string
	baseURL  *url.URL
	validate *validator.Validate
	logger   *slog.Logger
}

// NewRegistry creates a registry reading the index at indexURL. Template file
// locations are resolved relative to the directory holding the index.
func NewRegistry(store assetstore.Store, source Source, indexURL string, logger *slog.Logger) (*Registry, error) {
	parsed, err := url.Parse(indexURL)
	if err != nil {
		return nil, fmt.Errorf("invalid templates index url: %w", err)
	}

	if parsed.Scheme == "" {
		return nil, fmt.Errorf("templates index url must be absolute: %q", indexURL)
	}

	return &Registry{
		store:    store,
		source:   source,
		indexURL: indexURL,
		baseURL:  parsed,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger.With("module", "template_registry"),
	}, nil
}

func fingerprint(data []byte) string {
	sum := sha256.Sum256(data)

	return hex.EncodeToString(sum[:])
}

func shortFingerprint(etag string) string {
	if len(etag) > 12 {
		return etag[:12]
	}

	return etag
}

// SyncIndex fetches the remote index and stores it when its fingerprint changed
// or force is set. The parsed index is returned either way.
func (r *Registry) SyncIndex(ctx context.Context, force bool) (*models.Index, error) {
	fetchURL := r.indexURL
	if force {
		fetchURL = cacheBust(fetchURL)
	}

	raw, err := r.source.Fetch(ctx, fetchURL)
	if err != nil {
		return nil, &FetchError{Op: "sync_index", URL: r.indexURL, Err: err}
	}

	index, err := parseIndex(raw)
	if err != nil {
		return nil, &FetchError{Op: "sync_index", URL: r.indexURL, Err: err}
	}

	etag := fingerprint(raw)

	old, _, err := r.store.Get(ctx, assetstore.IndexETagKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read index fingerprint: %w", err)
	}

	if !force && old == etag {
		r.logger.DebugContext(ctx, "Templates index unchanged", "etag", shortFingerprint(etag))

		return index, nil
	}

	err = r.store.Set(ctx, assetstore.IndexKey, string(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to store index: %w", err)
	}

	err = r.store.Set(ctx, assetstore.IndexETagKey, etag)
	if err != nil {
		return nil, fmt.Errorf("failed to store index fingerprint: %w", err)
	}

	r.logger.InfoContext(ctx, "Templates index updated", "etag", shortFingerprint(etag), "templates", len(index.Templates))

	return index, nil
}

// GetIndex returns the last synced index, bootstrapping with a forced sync when none is stored.
func (r *Registry) GetIndex(ctx context.Context) (*models.Index, error) {
	raw, ok, err := r.store.Get(ctx, assetstore.IndexKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read index: %w", err)
	}

	if !ok || raw == "" {
		r.logger.InfoContext(ctx, "Templates index missing in store; syncing")

		return r.SyncIndex(ctx, true)
	}

	index, err := parseIndex([]byte(raw))
	if err != nil {
		r.logger.WarnContext(ctx, "Stored templates index is unreadable; syncing", "error", err)

		return r.SyncIndex(ctx, true)
	}

	return index, nil
}

func (r *Registry) ListTemplates(ctx context.Context) ([]models.Template, error) {
	index, err := r.GetIndex(ctx)
	if err != nil {
		return nil, err
	}

	return index.Templates, nil
}

// GetTemplate returns the template with the given id, or nil when the index does not list it.
func (r *Registry) GetTemplate(ctx context.Context, id string) (*models.Template, error) {
	index, err := r.GetIndex(ctx)
	if err != nil {
		return nil, err
	}

	return index.Find(id), nil
}

// ResolveTemplate looks a template up, re-syncing the index once when it is unknown.
func (r *Registry) ResolveTemplate(ctx context.Context, id string) (*models.Template, error) {
	tmpl, err := r.GetTemplate(ctx, id)
	if err != nil {
		return nil, err
	}

	if tmpl != nil {
		return tmpl, nil
	}

	index, err := r.SyncIndex(ctx, false)
	if err != nil {
		return nil, err
	}

	tmpl = index.Find(id)
	if tmpl == nil {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
	}

	return tmpl, nil
}

// FetchAndCacheAssets downloads the three template files and stores them with
// the template metadata. It is a no-op when the template fingerprint is unchanged
// and the bundle is complete, unless force is set. All files are fetched before
// anything is written, and the fingerprint is written last.
func (r *Registry) FetchAndCacheAssets(ctx context.Context, tmpl *models.Template, force bool) error {
	err := r.validate.Struct(tmpl)
	if err != nil {
		return &FetchError{Op: "fetch_assets", Err: fmt.Errorf("invalid template declaration: %w", err)}
	}

	keys := assetstore.KeysFor(tmpl.ID)
	logger := r.logger.With("template_id", tmpl.ID)

	declaration, err := tmpl.Declaration()
	if err != nil {
		return fmt.Errorf("failed to encode template declaration: %w", err)
	}

	meta, err := tmpl.Document()
	if err != nil {
		return fmt.Errorf("failed to encode template metadata: %w", err)
	}

	newETag := fingerprint(declaration)

	if !force {
		fresh, err := r.isFresh(ctx, keys, newETag)
		if err != nil {
			return err
		}

		if fresh {
			logger.DebugContext(ctx, "Template assets unchanged", "etag", shortFingerprint(newETag))

			return nil
		}
	}

	files := tmpl.Files.Resolved()
	bodies := make(map[string]string, 3)

	for _, file := range []struct {
		key  string
		name string
	}{
		{keys.HTML, files.HTML},
		{keys.Logic, files.Logic},
		{keys.Test, files.Test},
	} {
		fileURL, err := r.resolveFileURL(tmpl, file.name)
		if err != nil {
			return &FetchError{Op: "fetch_assets", Err: err}
		}

		body, err := r.source.Fetch(ctx, fileURL)
		if err != nil {
			return &FetchError{Op: "fetch_assets", URL: fileURL, Err: err}
		}

		bodies[file.key] = string(body)
	}

	bodies[keys.Meta] = string(meta)

	for _, key := range keys.Content() {
		err := r.store.Set(ctx, key, bodies[key])
		if err != nil {
			return fmt.Errorf("failed to store %s: %w", key, err)
		}
	}

	err = r.store.Set(ctx, keys.ETag, newETag)
	if err != nil {
		return fmt.Errorf("failed to store template fingerprint: %w", err)
	}

	logger.InfoContext(ctx, "Cached template assets", "etag", shortFingerprint(newETag))

	return nil
}

func (r *Registry) isFresh(ctx context.Context, keys assetstore.TemplateKeys, etag string) (bool, error) {
	old, ok, err := r.store.Get(ctx, keys.ETag)
	if err != nil {
		return false, fmt.Errorf("failed to read template fingerprint: %w", err)
	}

	if !ok || old != etag {
		return false, nil
	}

	content := keys.Content()

	count, err := r.store.Exists(ctx, content...)
	if err != nil {
		return false, err
	}

	return count == int64(len(content)), nil
}

// GetCachedAssets returns the cached bundle of a template, or nil unless every
// part of it is present.
func (r *Registry) GetCachedAssets(ctx context.Context, id string) (*models.Bundle, error) {
	keys := assetstore.KeysFor(id)
	values := make([]string, 0, 4)

	for _, key := range keys.Content() {
		value, ok, err := r.store.Get(ctx, key)
		if err != nil {
			return nil, err
		}

		if !ok {
			return nil, nil
		}

		values = append(values, value)
	}

	bundle := &models.Bundle{HTML: values[1], Logic: values[2], Test: values[3]}

	err := json.Unmarshal([]byte(values[0]), &bundle.Meta)
	if err != nil {
		r.logger.WarnContext(ctx, "Cached template metadata is unreadable", "template_id", id, "error", err)

		return nil, nil
	}

	return bundle, nil
}

// SyncAllAssets caches the assets of every indexed template. Failures are
// logged and skipped; the number of successfully synced templates is returned.
func (r *Registry) SyncAllAssets(ctx context.Context, force bool) (int, error) {
	index, err := r.GetIndex(ctx)
	if err != nil {
		return 0, err
	}

	count := 0

	for i := range index.Templates {
		tmpl := &index.Templates[i]

		err := r.FetchAndCacheAssets(ctx, tmpl, force)
		if err != nil {
			r.logger.ErrorContext(ctx, "Failed caching template assets", "template_id", tmpl.ID, "error", err)

			continue
		}

		count++
	}

	return count, nil
}

// EnsureAssets returns the cached bundle for id, fetching it when absent.
func (r *Registry) EnsureAssets(ctx context.Context, id string) (*models.Bundle, error) {
	bundle, err := r.GetCachedAssets(ctx, id)
	if err != nil {
		return nil, err
	}

	if bundle != nil {
		return bundle, nil
	}

	tmpl, err := r.ResolveTemplate(ctx, id)
	if err != nil {
		return nil, err
	}

	err = r.FetchAndCacheAssets(ctx, tmpl, true)
	if err != nil {
		return nil, err
	}

	bundle, err = r.GetCachedAssets(ctx, id)
	if err != nil {
		return nil, err
	}

	if bundle == nil {
		return nil, fmt.Errorf("%w: assets not cached for %s", ErrTemplateNotFound, id)
	}

	return bundle, nil
}

func (r *Registry) resolveFileURL(tmpl *models.Template, filename string) (string, error) {
	rel := strings.TrimRight(tmpl.Path, "/") + "/" + strings.TrimLeft(filename, "/")

	ref, err := url.Parse(rel)
	if err != nil {
		return "", fmt.Errorf("invalid file location %q: %w", rel, err)
	}

	return r.baseURL.ResolveReference(ref).String(), nil
}

func parseIndex(raw []byte) (*models.Index, error) {
	err := validateIndexDocument(raw)
	if err != nil {
		return nil, err
	}

	var index models.Index

	err = json.Unmarshal(raw, &index)
	if err != nil {
		return nil, fmt.Errorf("failed to parse index: %w", err)
	}

	return &index, nil
}

func cacheBust(rawURL string) string {
	sep := "?"
	if strings.Contains(rawURL, "?") {
		sep = "&"
	}

	return rawURL + sep + "cb=" + strconv.FormatInt(time.Now().UnixNano(), 10)
}
