package templates

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSource struct {
	body []byte
	urls []string
}

func (s *staticSource) Fetch(_ context.Context, rawURL string) ([]byte, error) {
	s.urls = append(s.urls, rawURL)

	return s.body, nil
}

func TestHTTPSource_Fetch(t *testing.T) {
	var gotAuth, gotCache string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotCache = r.Header.Get("Cache-Control")

		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)

			return
		}

		_, _ = w.Write([]byte("payload"))
	}))
	defer server.Close()

	source := NewHTTPSource(0, "secret")

	body, err := source.Fetch(context.Background(), server.URL+"/ok")
	require.NoError(t, err)
	assert.Equal(t, "payload", string(body))
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "no-cache", gotCache)

	_, err = source.Fetch(context.Background(), server.URL+"/missing")

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
}

func TestHTTPSource_NoTokenNoAuthHeader(t *testing.T) {
	var gotAuth string

	server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
	}))
	defer server.Close()

	_, err := NewHTTPSource(0, "").Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Empty(t, gotAuth)
}

func TestParseS3URL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		bucket  string
		key     string
		wantErr bool
	}{
		{name: "object", url: "s3://templates/repo/index.json", bucket: "templates", key: "repo/index.json"},
		{name: "missing key", url: "s3://templates/", wantErr: true},
		{name: "missing bucket", url: "s3:///index.json", wantErr: true},
		{name: "wrong scheme", url: "https://templates/index.json", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bucket, key, err := parseS3URL(tt.url)
			if tt.wantErr {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.bucket, bucket)
			assert.Equal(t, tt.key, key)
		})
	}
}

func TestNewS3Source_RequiresEndpoint(t *testing.T) {
	_, err := NewS3Source(S3Config{})
	require.Error(t, err)
}

func TestMultiSource_RoutesByScheme(t *testing.T) {
	web := &staticSource{body: []byte("web")}
	bucket := &staticSource{body: []byte("bucket")}

	source := NewMultiSource().Register(web, "http", "https").Register(bucket, "s3")

	body, err := source.Fetch(context.Background(), "s3://templates/index.json")
	require.NoError(t, err)
	assert.Equal(t, "bucket", string(body))

	body, err = source.Fetch(context.Background(), "https://example.com/index.json")
	require.NoError(t, err)
	assert.Equal(t, "web", string(body))

	_, err = source.Fetch(context.Background(), "ftp://example.com/index.json")
	require.Error(t, err)

	assert.Equal(t, []string{"s3://templates/index.json"}, bucket.urls)
}
