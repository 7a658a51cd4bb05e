// Package assetstore provides the key/value storage that holds cached
// template indexes and template asset bundles.
package assetstore

import "context"

const (
	IndexKey     = "templates:index"
	IndexETagKey = "templates:etag"
)

// Store is a string key/value store. Values are opaque to the store.
type Store interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	// Exists returns how many of the given keys are present.
	Exists(ctx context.Context, keys ...string) (int64, error)
	Close() error
}

// TemplateKeys are the per-template keys of one cached bundle.
type TemplateKeys struct {
	Meta  string
	HTML  string
	Logic string
	Test  string
	ETag  string
}

// KeysFor returns the storage keys for the bundle of template id.
func KeysFor(id string) TemplateKeys {
	base := "template:" + id

	return TemplateKeys{
		Meta:  base + ":meta",
		HTML:  base + ":html",
		Logic: base + ":logic",
		Test:  base + ":test",
		ETag:  base + ":etag",
	}
}

// Content returns the content keys in write order: meta first, scripts after.
func (k TemplateKeys) Content() []string {
	return []string{k.Meta, k.HTML, k.Logic, k.Test}
}
