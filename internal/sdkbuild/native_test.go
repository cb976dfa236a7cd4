package sdkbuild

import (
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

func TestIOSCMakeArgs(t *testing.T) {
	bc := NewBuildConfig("/src", Profile{ID: "standard", CMakeOptions: "EXCLUDE_GDAL:BOOL=ON"}, "FOO", "")
	bc.BuildNumber = "7"
	bc.BuildVersion = "4.4.9"
	n := &NativeInvoker{Config: bc}

	catalyst, _ := ResolveIOSTarget("arm64-maccatalyst")
	args := n.iosCMakeArgs(catalyst, n.iosBuildDir(catalyst))
	if args[0] != "-DEXCLUDE_GDAL:BOOL=ON" {
		t.Errorf("profile options not first: %v", args[:2])
	}
	for _, want := range []string{
		"-DCMAKE_SYSTEM_NAME=Darwin",
		"-DCMAKE_OSX_SYSROOT=macosx",
		"-DCMAKE_OSX_DEPLOYMENT_TARGET=11.3",
		"-DSDK_CPP_DEFINES=-DFOO",
		"-DSDK_VERSION='4.4.9.7'",
		"-DSDK_IOS_BASEARCH='arm64-maccatalyst'",
		"-DSHARED_LIBRARY:BOOL=OFF",
	} {
		if !slices.Contains(args, want) {
			t.Errorf("missing %s in %v", want, args)
		}
	}
	if args[len(args)-1] != filepath.Join("/src", "scripts", "build") {
		t.Errorf("source dir = %s", args[len(args)-1])
	}
}

func TestXcodebuildArgs(t *testing.T) {
	bc := NewBuildConfig("/src", Profile{}, "", "")
	n := &NativeInvoker{Config: bc}
	arm64, _ := ResolveIOSTarget("arm64")
	sim, _ := ResolveIOSTarget("arm64-simulator")

	args := n.xcodebuildArgs(arm64)
	if !slices.Contains(args, "archive") || !slices.Contains(args, "ENABLE_BITCODE=YES") {
		t.Errorf("release device args = %v", args)
	}
	if args := n.xcodebuildArgs(sim); !slices.Contains(args, "ENABLE_BITCODE=NO") {
		t.Errorf("simulator args = %v", args)
	}

	bc.Configuration = ConfigDebug
	bc.StripBitcode = true
	args = n.xcodebuildArgs(arm64)
	if !slices.Contains(args, "build") || !slices.Contains(args, "ENABLE_BITCODE=NO") {
		t.Errorf("debug stripped args = %v", args)
	}
}

func TestIOSLibraryPath(t *testing.T) {
	arm64, _ := ResolveIOSTarget("arm64")
	catalyst, _ := ResolveIOSTarget("x86_64-maccatalyst")
	if got := iosLibraryPath("/b", arm64, ConfigRelease, "a"); got != filepath.Join("/b", "Release-iphoneos", "libcarto_mobile_sdk.a") {
		t.Errorf("device path = %s", got)
	}
	if got := iosLibraryPath("/b", catalyst, ConfigDebug, "dylib"); got != filepath.Join("/b", "Debug", "libcarto_mobile_sdk.dylib") {
		t.Errorf("catalyst path = %s", got)
	}
}

func TestAndroidCMakeArgs(t *testing.T) {
	bc := NewBuildConfig("/src", Profile{}, "", "")
	bc.Compiler = "clang"
	bc.AndroidNDK = "/ndk"
	n := &NativeInvoker{Config: bc}
	target, _ := ResolveAndroidTarget("x86", "clang")
	args := n.androidCMakeArgs(target)
	for _, want := range []string{"-DANDROID_NDK=/ndk", "-DANDROID_STL='c++_static'", "-DANDROID_NATIVE_API_LEVEL='android-10'", "-DSDK_PLATFORM='Android'"} {
		if !slices.Contains(args, want) {
			t.Errorf("missing %s in %v", want, args)
		}
	}
	if androidSTL("gcc-4.9") != "gnustl_static" {
		t.Error("gcc should use gnustl_static")
	}
}

func TestApplyCatalystProjectFix(t *testing.T) {
	dir := t.TempDir()
	pbx := filepath.Join(dir, "carto_mobile_sdk.xcodeproj", "project.pbxproj")
	writeTemplate(t, dir, filepath.Join("carto_mobile_sdk.xcodeproj", "project.pbxproj"), "TARGET = x86_64-apple-ios-13.0-macabi;\n")

	for i := 0; i < 2; i++ {
		if err := ApplyCatalystProjectFix(dir); err != nil {
			t.Fatal(err)
		}
	}
	data, _ := os.ReadFile(pbx)
	if string(data) != "TARGET = x86_64-apple-ios13.1-macabi;\n" {
		t.Errorf("pbxproj = %q", data)
	}
	if err := ApplyCatalystProjectFix(t.TempDir()); err == nil {
		t.Error("expected an error without a generated project")
	}
}

// writeScript installs an executable shell script used as a stand-in tool.
func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestBuildIOSWithStandInTools(t *testing.T) {
	requireShell(t)
	base := t.TempDir()
	tools := t.TempDir()
	bc := NewBuildConfig(base, Profile{}, "", "")
	bc.Logger = io.Discard
	bc.MetalANGLE = true
	bc.Tools.CMake = writeScript(t, tools, "cmake",
		`mkdir -p carto_mobile_sdk.xcodeproj && echo "x86_64-apple-ios-13.0-macabi" > carto_mobile_sdk.xcodeproj/project.pbxproj`)
	bc.Tools.Xcodebuild = writeScript(t, tools, "xcodebuild",
		`mkdir -p Release && echo lib > Release/libcarto_mobile_sdk.a && echo built`)

	n := &NativeInvoker{Exec: NewExecutor(t.Context()), Config: bc}
	target, _ := ResolveIOSTarget("x86_64-maccatalyst")
	a, err := n.BuildIOS(target)
	if err != nil {
		t.Fatal(err)
	}
	buildDir := filepath.Join(base, "build", "ios_metal-MACCATALYST-x86_64")
	if a.Path != filepath.Join(buildDir, "Release", "libcarto_mobile_sdk.a") {
		t.Errorf("artifact = %s", a.Path)
	}
	pbx, _ := os.ReadFile(filepath.Join(buildDir, "carto_mobile_sdk.xcodeproj", "project.pbxproj"))
	if !strings.Contains(string(pbx), "ios13.1-macabi") {
		t.Errorf("project not patched: %s", pbx)
	}
	lines, err := readLogLines(filepath.Join(bc.LogDir(), "MACCATALYST-x86_64.log.xz"))
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Contains(lines, "built") {
		t.Errorf("log = %v", lines)
	}
}
