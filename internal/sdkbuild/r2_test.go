package sdkbuild

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestNewR2ClientRequiresCredentials(t *testing.T) {
	cfg := &Config{Values: map[string]string{"R2_ACCOUNT_ID": "acct", "R2_ACCESS_KEY_ID": "key"}}
	if _, err := NewR2Client(t.Context(), cfg); err == nil {
		t.Fatal("expected an error for incomplete credentials")
	}

	cfg.Values["R2_SECRET_ACCESS_KEY"] = "secret"
	cfg.Values["R2_BUCKET_NAME"] = "sdk"
	cfg.Values["R2_PREFIX"] = "/releases/"
	r2, err := NewR2Client(t.Context(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if r2.key("4.4.9/a.zip") != "releases/4.4.9/a.zip" {
		t.Errorf("key = %s", r2.key("4.4.9/a.zip"))
	}
}

func TestContentType(t *testing.T) {
	tests := map[string]string{
		"release-index.json":                     "application/json",
		"carto-mobile-sdk-ios-4.4.9.zip":         "application/zip",
		"carto-mobile-sdk-4.4.9.aar":             "application/zip",
		"carto-mobile-sdk-android-4.4.9.tar.zst": "application/zstd",
		"carto-mobile-sdk-android-4.4.9.tar.xz":  "application/x-xz",
		"carto-mobile-sdk-android-4.4.9.tar.gz":  "application/gzip",
		"Package.swift":                          "application/octet-stream",
	}
	for name, want := range tests {
		if got := contentType(name); got != want {
			t.Errorf("contentType(%s) = %s, want %s", name, got, want)
		}
	}
}

func TestPublishDryRun(t *testing.T) {
	var (
		mu      sync.Mutex
		methods []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		methods = append(methods, r.Method+" "+r.URL.Path)
		mu.Unlock()
		http.NotFound(w, r)
	}))
	defer srv.Close()

	base := t.TempDir()
	dist := filepath.Join(base, "dist", "ios")
	os.MkdirAll(dist, 0o755)
	zip := filepath.Join(dist, "carto-mobile-sdk-ios-4.4.9.zip")
	os.WriteFile(zip, []byte("zip"), 0o644)
	if err := UpdateReleaseIndex(dist, ReleaseEntry{Name: FrameworkName, Platform: "ios", Version: "4.4.9"}, zip); err != nil {
		t.Fatal(err)
	}

	cfg := &Config{Values: map[string]string{
		"R2_ENDPOINT":          srv.URL,
		"R2_ACCESS_KEY_ID":     "key",
		"R2_SECRET_ACCESS_KEY": "secret",
		"R2_BUCKET_NAME":       "sdk",
	}}
	if err := Publish(t.Context(), cfg, base, PublishOptions{DryRun: true}); err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	defer mu.Unlock()
	for _, m := range methods {
		if !strings.HasPrefix(m, "GET ") {
			t.Errorf("dry run sent %s", m)
		}
	}
	if len(methods) == 0 || methods[0] != "GET /sdk/"+remoteIndexName {
		t.Errorf("requests = %v", methods)
	}
}

func TestPublishNothingIndexed(t *testing.T) {
	// no credentials needed when there is nothing to publish
	if err := Publish(t.Context(), &Config{Values: map[string]string{}}, t.TempDir(), PublishOptions{}); err != nil {
		t.Errorf("Publish = %v", err)
	}
}
