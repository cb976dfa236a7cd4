package sdkbuild

import (
	"errors"
	"reflect"
	"testing"
)

func TestResolveIOSTarget(t *testing.T) {
	tests := []struct {
		raw       string
		platform  Platform
		arch      string
		toolchain string
		min       string
		buildName string
	}{
		{"i386", PlatformSimulator, "i386", "iphonesimulator", "11.0", "SIMULATOR-i386"},
		{"x86_64", PlatformSimulator, "x86_64", "iphonesimulator", "9.0", "SIMULATOR-x86_64"},
		{"armv7", PlatformOS, "armv7", "iphoneos", "9.0", "OS-armv7"},
		{"arm64", PlatformOS, "arm64", "iphoneos", "9.0", "OS-arm64"},
		{"arm64-simulator", PlatformSimulator, "arm64", "iphonesimulator", "9.0", "SIMULATOR-arm64"},
		{"x86_64-maccatalyst", PlatformCatalyst, "x86_64", "macosx", "11.3", "MACCATALYST-x86_64"},
		{"arm64-maccatalyst", PlatformCatalyst, "arm64", "macosx", "11.3", "MACCATALYST-arm64"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ResolveIOSTarget(tt.raw)
			if err != nil {
				t.Fatalf("ResolveIOSTarget(%q): %v", tt.raw, err)
			}
			if got.Platform != tt.platform || got.Arch != tt.arch || got.Toolchain != tt.toolchain || got.MinVersion != tt.min {
				t.Errorf("got %+v", got)
			}
			if got.BuildName() != tt.buildName {
				t.Errorf("BuildName() = %q, want %q", got.BuildName(), tt.buildName)
			}
			again, _ := ResolveIOSTarget(tt.raw)
			if again != got {
				t.Errorf("resolution is not deterministic: %+v vs %+v", got, again)
			}
		})
	}
}

func TestResolveIOSTargetCoversSupportedSet(t *testing.T) {
	for _, raw := range IOSTargets {
		if _, err := ResolveIOSTarget(raw); err != nil {
			t.Errorf("%s: %v", raw, err)
		}
	}
}

func TestResolveUnknownTarget(t *testing.T) {
	for _, raw := range []string{"", "arm64e", "x86", "ARM64", "arm64-simulator-extra"} {
		_, err := ResolveIOSTarget(raw)
		var ute *UnknownTargetError
		if !errors.As(err, &ute) {
			t.Errorf("ResolveIOSTarget(%q) error = %v, want UnknownTargetError", raw, err)
			continue
		}
		if !errors.Is(err, ErrResolution) {
			t.Errorf("ResolveIOSTarget(%q) error does not wrap ErrResolution", raw)
		}
	}
	if _, err := ResolveAndroidTarget("riscv64", "clang"); !errors.Is(err, ErrResolution) {
		t.Errorf("ResolveAndroidTarget(riscv64) error = %v, want resolution error", err)
	}
}

func TestResolveAndroidTarget(t *testing.T) {
	tests := []struct {
		raw, compiler, toolchain, api string
	}{
		{"armeabi-v7a", "gcc-4.9", "arm-linux-androideabi-4.9", "android-10"},
		{"arm64-v8a", "gcc-4.9", "aarch64-linux-android-4.9", "android-21"},
		{"x86", "clang", "x86-clang", "android-10"},
		{"x86_64", "clang", "x86_64-clang", "android-21"},
		{"mips64", "gcc-4.9", "mips64el-linux-android-4.9", "android-21"},
	}
	for _, tt := range tests {
		got, err := ResolveAndroidTarget(tt.raw, tt.compiler)
		if err != nil {
			t.Fatalf("ResolveAndroidTarget(%q): %v", tt.raw, err)
		}
		if got.Toolchain != tt.toolchain || got.MinVersion != tt.api || got.Platform != PlatformAndroid {
			t.Errorf("%s: got %+v", tt.raw, got)
		}
		if got.BuildName() != tt.raw {
			t.Errorf("%s: BuildName() = %q", tt.raw, got.BuildName())
		}
	}
}

func raws(targets []Target) []string {
	out := make([]string, len(targets))
	for i, t := range targets {
		out[i] = t.Raw
	}
	return out
}

func TestResolveIOSTargetsAll(t *testing.T) {
	tests := []struct {
		name string
		ids  []string
		sel  IOSSelection
		want []string
	}{
		{"framework", []string{"all"}, IOSSelection{}, []string{"x86_64", "arm64"}},
		{"empty means all", nil, IOSSelection{}, []string{"x86_64", "arm64"}},
		{"xcframework", []string{"all"}, IOSSelection{XCFramework: true}, []string{"x86_64", "arm64", "arm64-simulator"}},
		{"xcframework metal", []string{"all"}, IOSSelection{XCFramework: true, MetalANGLE: true},
			[]string{"x86_64", "arm64", "arm64-simulator", "x86_64-maccatalyst", "arm64-maccatalyst"}},
		{"metal framework", []string{"all"}, IOSSelection{MetalANGLE: true}, []string{"x86_64", "arm64"}},
		{"explicit keeps order", []string{"arm64", "armv7", "arm64"}, IOSSelection{}, []string{"arm64", "armv7"}},
		{"all plus legacy", []string{"i386", "all"}, IOSSelection{}, []string{"i386", "x86_64", "arm64"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveIOSTargets(tt.ids, tt.sel)
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(raws(got), tt.want) {
				t.Errorf("got %v, want %v", raws(got), tt.want)
			}
		})
	}
}

func TestResolveIOSTargetsCatalystNeedsMetal(t *testing.T) {
	_, err := ResolveIOSTargets([]string{"arm64", "arm64-maccatalyst"}, IOSSelection{XCFramework: true})
	if !errors.Is(err, ErrResolution) {
		t.Fatalf("expected resolution error, got %v", err)
	}
	if _, err := ResolveIOSTargets([]string{"arm64", "bogus"}, IOSSelection{}); !errors.Is(err, ErrResolution) {
		t.Fatalf("expected resolution error for unknown id, got %v", err)
	}
}

func TestResolveAndroidTargets(t *testing.T) {
	all, err := ResolveAndroidTargets([]string{"all"}, "gcc-4.9")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(raws(all), AndroidABIs) {
		t.Errorf("all = %v", raws(all))
	}
	some, err := ResolveAndroidTargets([]string{"x86", "arm64-v8a", "x86"}, "clang")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(raws(some), []string{"x86", "arm64-v8a"}) {
		t.Errorf("got %v", raws(some))
	}

	for _, ids := range [][]string{{"all", "bogus-abi"}, {"bogus-abi", "all"}, {"x86", "bogus-abi"}} {
		_, err := ResolveAndroidTargets(ids, "clang")
		var ute *UnknownTargetError
		if !errors.As(err, &ute) || ute.ID != "bogus-abi" {
			t.Errorf("ResolveAndroidTargets(%v) error = %v, want unknown bogus-abi", ids, err)
		}
	}
}
