package sdkbuild

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

// recordArgs returns a script body that writes its argv, one per line, to path.
func recordArgs(path string) string {
	return `printf '%s\n' "$@" > '` + path + `'`
}

func readArgs(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("tool was not run: %v", err)
	}
	return strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
}

func TestAssembleXCFramework(t *testing.T) {
	requireShell(t)
	base := t.TempDir()
	writeSDKTree(t, base)
	b := newTestAssembler(t, base)
	argsFile := filepath.Join(t.TempDir(), "xcodebuild.args")
	b.Config.Tools.Xcodebuild = writeScript(t, t.TempDir(), "xcodebuild", recordArgs(argsFile))

	build := filepath.Join(base, "build")
	artifacts := []Artifact{
		testArtifact(t, build, "arm64"),
		testArtifact(t, build, "x86_64"),
		testArtifact(t, build, "arm64-simulator"),
	}
	dist := filepath.Join(base, "dist", "ios")
	out, err := b.AssembleXCFramework(dist, artifacts)
	if err != nil {
		t.Fatal(err)
	}
	if out != filepath.Join(dist, FrameworkName+".xcframework") {
		t.Errorf("output = %s", out)
	}

	headers := filepath.Join(build, "ios-Headers")
	osLib := filepath.Join(build, "ios-OS", FrameworkName+".a")
	simLib := filepath.Join(build, "ios-SIMULATOR", FrameworkName+".a")
	want := []string{
		"-create-xcframework", "-output", out,
		"-library", osLib, "-headers", headers,
		"-library", simLib, "-headers", headers,
	}
	if got := readArgs(t, argsFile); !slices.Equal(got, want) {
		t.Errorf("xcodebuild args:\n%v\nwant:\n%v", got, want)
	}

	for lib, n := range map[string]int{osLib: 1, simLib: 2} {
		arches, err := FatArchitectures(lib)
		if err != nil {
			t.Fatal(err)
		}
		if len(arches) != n {
			t.Errorf("%s has slices %v, want %d", filepath.Base(filepath.Dir(lib)), arches, n)
		}
	}
	if _, err := os.Stat(filepath.Join(headers, FrameworkName, "NTMapView.h")); err != nil {
		t.Errorf("headers not installed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(headers, "module.modulemap")); err != nil {
		t.Errorf("module map not written: %v", err)
	}
}

func TestAssembleXCFrameworkToolFailure(t *testing.T) {
	requireShell(t)
	base := t.TempDir()
	writeSDKTree(t, base)
	b := newTestAssembler(t, base)
	b.Config.Tools.Xcodebuild = writeScript(t, t.TempDir(), "xcodebuild", "exit 65")

	_, err := b.AssembleXCFramework(filepath.Join(base, "dist", "ios"),
		[]Artifact{testArtifact(t, filepath.Join(base, "build"), "arm64")})
	var te *ToolchainError
	if !errors.As(err, &te) || te.Stage != "xcframework" || te.ExitCode != 65 {
		t.Errorf("error = %v", err)
	}
}
