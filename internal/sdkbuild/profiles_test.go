package sdkbuild

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestLoadProfilesEmbedded(t *testing.T) {
	pt, err := LoadProfiles(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if pt.Default != "standard" || pt.Source != "embedded:assets/profiles.yaml" {
		t.Errorf("default %q from %s", pt.Default, pt.Source)
	}
	if !reflect.DeepEqual(pt.IDs(), []string{"lite", "metal", "standard", "valhalla"}) {
		t.Errorf("ids = %v", pt.IDs())
	}

	def, err := pt.Get("")
	if err != nil || def.ID != "standard" {
		t.Errorf("default profile = %+v, %v", def, err)
	}
	if _, err := pt.Get("nope"); !errors.Is(err, ErrResolution) {
		t.Errorf("unknown profile error = %v", err)
	}

	tests := []struct{ id, qualifier, variant string }{
		{"standard", "", "standard"},
		{"lite", "lite", "lite"},
		{"metal", "metal", "metal"},
		{"nightly", "nightly", "nightly"},
	}
	for _, tt := range tests {
		if q := pt.Qualifier(tt.id); q != tt.qualifier {
			t.Errorf("Qualifier(%s) = %q", tt.id, q)
		}
		if v := pt.Variant(tt.id); v != tt.variant {
			t.Errorf("Variant(%s) = %q", tt.id, v)
		}
	}
}

func TestLoadProfilesFromCheckout(t *testing.T) {
	base := t.TempDir()
	path := profilesPath(base)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	os.WriteFile(path, []byte("profiles:\n  gl:\n    defines: \"A;B\"\n  maps:\n    metalangle: true\n"), 0o644)

	pt, err := LoadProfiles(base)
	if err != nil {
		t.Fatal(err)
	}
	if pt.Source != path || pt.Default != "gl" {
		t.Errorf("source %s default %s", pt.Source, pt.Default)
	}
	if pt.Qualifier("maps") != "metal" {
		t.Errorf("metal profile qualifier = %q", pt.Qualifier("maps"))
	}

	os.WriteFile(path, []byte("default: missing\nprofiles:\n  gl: {}\n"), 0o644)
	if _, err := LoadProfiles(base); err == nil {
		t.Error("expected an error for an undefined default")
	}
	os.WriteFile(path, []byte("profiles: {}\n"), 0o644)
	if _, err := LoadProfiles(base); err == nil {
		t.Error("expected an error for an empty table")
	}
}

func TestDistNames(t *testing.T) {
	tests := []struct{ got, want string }{
		{IOSZipDistName("4.4.9", ""), "carto-mobile-sdk-ios-4.4.9.zip"},
		{IOSZipDistName("4.4.9", "metal"), "carto-mobile-sdk-ios-metal-4.4.9.zip"},
		{AndroidAARDistName("4.4.9", ""), "carto-mobile-sdk-4.4.9.aar"},
		{AndroidAARDistName("4.4.9", "lite"), "carto-mobile-sdk-lite-4.4.9.aar"},
		{AndroidDistName("4.4.9", "", FormatTarGz), "carto-mobile-sdk-android-4.4.9.tar.gz"},
		{AndroidDistName("4.4.9", "lite", FormatZip), "carto-mobile-sdk-android-lite-4.4.9.zip"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %s, want %s", tt.got, tt.want)
		}
	}
}
