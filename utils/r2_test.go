package utils

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"content-unlock-service/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewR2RequiresBucket(t *testing.T) {
	_, err := NewR2(context.Background(), config.R2Config{AccountID: "acct"})
	require.Error(t, err)
}

func TestPresignLocator(t *testing.T) {
	r2, err := NewR2(context.Background(), config.R2Config{
		AccountID:       "acct",
		AccessKeyID:     "AKIDEXAMPLE",
		AccessKeySecret: "secret",
		Bucket:          "media",
	})
	require.NoError(t, err)

	raw, err := r2.PresignLocator(context.Background(), "videos/7.mp4", 15*time.Minute)
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "acct.r2.cloudflarestorage.com", u.Host)
	assert.Equal(t, "/media/videos/7.mp4", u.Path)
	assert.Equal(t, "900", u.Query().Get("X-Amz-Expires"))
	assert.NotEmpty(t, u.Query().Get("X-Amz-Signature"))
}

func newTestR2(t *testing.T, body string) *R2 {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/media/catalog/catalog.yaml" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	r2, err := NewR2(context.Background(), config.R2Config{
		AccessKeyID:     "AKIDEXAMPLE",
		AccessKeySecret: "secret",
		Bucket:          "media",
		Endpoint:        srv.URL,
	})
	require.NoError(t, err)
	return r2
}

func TestGetObjectReadsWholeBody(t *testing.T) {
	body := "items:\n  - item_id: 1\n    title: One\n"
	r2 := newTestR2(t, body)

	raw, err := r2.GetObject(context.Background(), "catalog/catalog.yaml")
	require.NoError(t, err)
	assert.Equal(t, body, string(raw))
}

func TestGetObjectExactlyAtLimit(t *testing.T) {
	r2 := newTestR2(t, strings.Repeat("a", 64))
	r2.maxBytes = 64

	raw, err := r2.GetObject(context.Background(), "catalog/catalog.yaml")
	require.NoError(t, err)
	assert.Len(t, raw, 64)
}

func TestGetObjectRejectsOversizedManifest(t *testing.T) {
	var b strings.Builder
	b.WriteString("items:\n")
	for b.Len() <= maxManifestBytes {
		b.WriteString("  - item_id: 1\n    title: Padding item\n    price: 1\n")
	}
	r2 := newTestR2(t, b.String())

	_, err := r2.GetObject(context.Background(), "catalog/catalog.yaml")
	require.ErrorIs(t, err, ErrObjectTooLarge)
}
