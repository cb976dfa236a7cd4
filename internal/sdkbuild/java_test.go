package sdkbuild

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestCollectFiles(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "com/carto/b/B.java", "")
	writeTemplate(t, dir, "com/carto/A.java", "")
	writeTemplate(t, dir, "com/carto/README", "")

	files, err := collectFiles(dir, ".java")
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 || filepath.Base(files[0]) != "A.java" {
		t.Errorf("files = %v", files)
	}
	if files, err := collectFiles(filepath.Join(dir, "absent"), ".java"); err != nil || len(files) != 0 {
		t.Errorf("missing root = %v, %v", files, err)
	}
}

func TestBuildAndroidJAR(t *testing.T) {
	requireShell(t)
	base := t.TempDir()
	tools := t.TempDir()
	writeTemplate(t, base, "generated/android-java/proxies/com/carto/core/MapPos.java", "class MapPos {}")
	writeTemplate(t, base, "android/java/com/carto/ui/MapView.java", "class MapView {}")

	bc := NewBuildConfig(base, Profile{}, "", "")
	bc.Logger = io.Discard
	bc.Tools.Javac = writeScript(t, tools, "javac",
		`while [ $# -gt 0 ]; do [ "$1" = "-d" ] && out="$2"; shift; done; mkdir -p "$out/com/carto" && echo class > "$out/com/carto/MapPos.class"`)
	bc.Tools.Jar = writeScript(t, tools, "jar", `echo "$@" > "$2"`)

	n := &NativeInvoker{Exec: NewExecutor(t.Context()), Config: bc}
	jar, err := n.BuildAndroidJAR()
	if err != nil {
		t.Fatal(err)
	}
	if jar != filepath.Join(base, "dist", "android", jarName) {
		t.Errorf("jar = %s", jar)
	}
	data, _ := os.ReadFile(jar)
	if string(data) != "cf "+jarName+" "+filepath.Join("com", "carto", "MapPos.class")+"\n" {
		t.Errorf("jar invocation = %q", data)
	}
}

func TestBuildAndroidJARWithoutSources(t *testing.T) {
	bc := NewBuildConfig(t.TempDir(), Profile{}, "", "")
	bc.Logger = io.Discard
	n := &NativeInvoker{Exec: NewExecutor(t.Context()), Config: bc}
	if _, err := n.BuildAndroidJAR(); !errors.Is(err, ErrIntegrity) {
		t.Errorf("error = %v, want ErrIntegrity", err)
	}
}
