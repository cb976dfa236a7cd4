package sdkbuild

import (
	"debug/macho"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"testing"
)

// writeThinMachO writes a minimal 64-bit Mach-O object for the given cpu.
func writeThinMachO(t *testing.T, path string, cpu macho.Cpu, sub uint32) {
	t.Helper()
	buf := make([]byte, 4096)
	binary.LittleEndian.PutUint32(buf[0:], macho.Magic64)
	binary.LittleEndian.PutUint32(buf[4:], uint32(cpu))
	binary.LittleEndian.PutUint32(buf[8:], sub)
	binary.LittleEndian.PutUint32(buf[12:], uint32(macho.TypeObj))
	// ncmds, sizeofcmds, flags and reserved stay zero
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatal(err)
	}
}

func testArtifact(t *testing.T, dir, raw string) Artifact {
	t.Helper()
	target, err := ResolveIOSTarget(raw)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, raw, "libcarto_mobile_sdk.a")
	switch target.Arch {
	case "arm64":
		writeThinMachO(t, path, macho.CpuArm64, 0)
	case "x86_64":
		writeThinMachO(t, path, macho.CpuAmd64, 3)
	default:
		t.Fatalf("no fixture for %s", raw)
	}
	return Artifact{Target: target, Path: path}
}

func TestMergeUnionOfArchitectures(t *testing.T) {
	dir := t.TempDir()
	inputs := []Artifact{testArtifact(t, dir, "arm64"), testArtifact(t, dir, "x86_64")}
	out := filepath.Join(dir, "fat", "CartoMobileSDK")

	m := &Merger{Exec: NewExecutor(t.Context())}
	merged, err := m.Merge(out, inputs)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if merged.Platform != "" {
		t.Errorf("mixed OS and simulator inputs reported platform %q", merged.Platform)
	}

	got, err := FatArchitectures(out)
	if err != nil {
		t.Fatal(err)
	}
	sort.Strings(got)
	if len(got) != 2 || got[0] != "arm64" || got[1] != "x86_64" {
		t.Errorf("FatArchitectures = %v", got)
	}

	ff, err := macho.OpenFat(out)
	if err != nil {
		t.Fatalf("merged library is not a valid universal binary: %v", err)
	}
	defer ff.Close()
	if len(ff.Arches) != 2 {
		t.Errorf("got %d slices", len(ff.Arches))
	}
	if _, err := os.Stat(out + ".partial"); !os.IsNotExist(err) {
		t.Errorf("temporary output left behind")
	}
}

func TestMergeGroupsByPlatform(t *testing.T) {
	dir := t.TempDir()
	artifacts := []Artifact{
		testArtifact(t, dir, "x86_64"),
		testArtifact(t, dir, "arm64"),
		testArtifact(t, dir, "arm64-simulator"),
	}
	groups := GroupByPlatform(artifacts)
	if len(groups) != 2 || groups[0].Platform != PlatformSimulator || groups[1].Platform != PlatformOS {
		t.Fatalf("groups = %+v", groups)
	}
	if len(groups[0].Artifacts) != 2 {
		t.Errorf("simulator group has %d artifacts", len(groups[0].Artifacts))
	}

	m := &Merger{Exec: NewExecutor(t.Context())}
	merged, err := m.Merge(filepath.Join(dir, "sim.a"), groups[0].Artifacts)
	if err != nil {
		t.Fatal(err)
	}
	if merged.Platform != PlatformSimulator {
		t.Errorf("platform = %q", merged.Platform)
	}
}

func TestMergeRejectsDuplicateArchitecture(t *testing.T) {
	dir := t.TempDir()
	inputs := []Artifact{testArtifact(t, dir, "arm64"), testArtifact(t, dir, "arm64-simulator")}
	out := filepath.Join(dir, "CartoMobileSDK")

	m := &Merger{Exec: NewExecutor(t.Context())}
	_, err := m.Merge(out, inputs)
	var me *MergeError
	if !errors.As(err, &me) || !errors.Is(err, ErrMerge) {
		t.Fatalf("error = %v, want MergeError", err)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Errorf("failed merge left output at %s", out)
	}
}

func TestMergeRejectsMixedFamilies(t *testing.T) {
	dir := t.TempDir()
	tests := [][]string{
		{"arm64", "x86_64-maccatalyst"},
		{"x86_64-maccatalyst", "arm64"},
		{"arm64-simulator", "x86_64-maccatalyst"},
	}
	for _, raws := range tests {
		var inputs []Artifact
		for _, raw := range raws {
			inputs = append(inputs, testArtifact(t, filepath.Join(dir, raws[0]), raw))
		}
		out := filepath.Join(dir, "mixed", "CartoMobileSDK")
		m := &Merger{Exec: NewExecutor(t.Context())}
		if _, err := m.Merge(out, inputs); !errors.Is(err, ErrMerge) {
			t.Errorf("Merge(%v) error = %v, want ErrMerge", raws, err)
		}
		if _, err := os.Stat(out); !os.IsNotExist(err) {
			t.Errorf("Merge(%v) left output behind", raws)
		}
	}

	catalyst := []Artifact{testArtifact(t, dir, "x86_64-maccatalyst"), testArtifact(t, dir, "arm64-maccatalyst")}
	merged, err := (&Merger{Exec: NewExecutor(t.Context())}).Merge(filepath.Join(dir, "catalyst.a"), catalyst)
	if err != nil {
		t.Fatal(err)
	}
	if merged.Platform != PlatformCatalyst || len(merged.Arches) != 2 {
		t.Errorf("merged = %+v", merged)
	}
}

func TestMergeRejectsUnreadableInput(t *testing.T) {
	dir := t.TempDir()
	bogus := filepath.Join(dir, "libbogus.a")
	if err := os.WriteFile(bogus, []byte("not a library at all"), 0o644); err != nil {
		t.Fatal(err)
	}
	target, _ := ResolveIOSTarget("arm64")
	m := &Merger{Exec: NewExecutor(t.Context())}
	if _, err := m.Merge(filepath.Join(dir, "out"), []Artifact{{Target: target, Path: bogus}}); !errors.Is(err, ErrMerge) {
		t.Fatalf("error = %v, want ErrMerge", err)
	}
	if _, err := m.Merge(filepath.Join(dir, "out"), nil); !errors.Is(err, ErrMerge) {
		t.Fatalf("empty merge error = %v, want ErrMerge", err)
	}
}

func TestReadSlicesFromArchive(t *testing.T) {
	dir := t.TempDir()
	obj := filepath.Join(dir, "a.o")
	writeThinMachO(t, obj, macho.CpuArm64, 0)
	member, err := os.ReadFile(obj)
	if err != nil {
		t.Fatal(err)
	}

	// BSD ar with a symbol table and a long-name member
	var ar []byte
	ar = append(ar, arMagic...)
	ar = append(ar, arHeader("__.SYMDEF", 8)...)
	ar = append(ar, make([]byte, 8)...)
	name := "carto_mapview_long.o"
	ar = append(ar, arHeader("#1/20", len(name)+len(member))...)
	ar = append(ar, name...)
	ar = append(ar, member...)

	lib := filepath.Join(dir, "lib.a")
	if err := os.WriteFile(lib, ar, 0o644); err != nil {
		t.Fatal(err)
	}
	arches, err := FatArchitectures(lib)
	if err != nil {
		t.Fatal(err)
	}
	if len(arches) != 1 || arches[0] != "arm64" {
		t.Errorf("arches = %v", arches)
	}
}

func arHeader(name string, size int) []byte {
	return []byte(padRight(name, 16) + padRight("0", 12) + padRight("0", 6) + padRight("0", 6) +
		padRight("644", 8) + padRight(strconv.Itoa(size), 10) + "`\n")
}

func padRight(s string, n int) string {
	for len(s) < n {
		s += " "
	}
	return s
}
