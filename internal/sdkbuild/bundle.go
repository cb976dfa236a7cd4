package sdkbuild

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

const frameworkVersion = "A"

// BundleLayout is the on-disk shape of a .framework directory.
type BundleLayout struct {
	Root       string
	VersionDir string // directory holding the real files
	Binary     string
	HeadersDir string
	ModulesDir string
	Shared     bool
	// Links maps link names relative to Root to their targets. Only the
	// versioned layout has links.
	Links map[string]string
}

// NewBundleLayout returns the framework layout inside distDir. Shared
// frameworks are flat; static ones use Versions/A with convenience links
// that resolve through Versions/Current.
func NewBundleLayout(distDir string, shared bool) BundleLayout {
	root := filepath.Join(distDir, FrameworkName+".framework")
	l := BundleLayout{Root: root, VersionDir: root, Shared: shared}
	if !shared {
		l.VersionDir = filepath.Join(root, "Versions", frameworkVersion)
		current := filepath.Join("Versions", "Current")
		l.Links = map[string]string{
			current:       frameworkVersion,
			"Modules":     filepath.Join(current, "Modules"),
			"Headers":     filepath.Join(current, "Headers"),
			FrameworkName: filepath.Join(current, FrameworkName),
		}
	}
	l.Binary = filepath.Join(l.VersionDir, FrameworkName)
	l.HeadersDir = filepath.Join(l.VersionDir, "Headers")
	l.ModulesDir = filepath.Join(l.VersionDir, "Modules")
	return l
}

// linkNames returns the link names, Versions/Current first so the others resolve.
func (l BundleLayout) linkNames() []string {
	names := make([]string, 0, len(l.Links))
	for name := range l.Links {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if strings.HasPrefix(names[i], "Versions") != strings.HasPrefix(names[j], "Versions") {
			return strings.HasPrefix(names[i], "Versions")
		}
		return names[i] < names[j]
	})
	return names
}

// CreateLinks (re)creates every link of the layout.
func (l BundleLayout) CreateLinks() error {
	for _, name := range l.linkNames() {
		if err := replaceSymlink(l.Links[name], filepath.Join(l.Root, name)); err != nil {
			return fmt.Errorf("failed to link %s: %w", name, err)
		}
	}
	return nil
}

// VerifyLinks checks that every link exists, points at its declared target
// and resolves to an existing file.
func (l BundleLayout) VerifyLinks() error {
	for _, name := range l.linkNames() {
		path := filepath.Join(l.Root, name)
		got, err := os.Readlink(path)
		if err != nil {
			return &IntegrityError{Artifact: path, Msg: "expected a symlink", Err: err}
		}
		if got != l.Links[name] {
			return &IntegrityError{Artifact: path, Msg: fmt.Sprintf("points to %s, want %s", got, l.Links[name])}
		}
		if _, err := os.Stat(path); err != nil {
			return &IntegrityError{Artifact: path, Msg: "dangling link", Err: err}
		}
	}
	return nil
}

var shortVersionRe = regexp.MustCompile(`(CFBundleShortVersionString</key>[\n\t\s]*<string>)([\d\.]+)(</string>)`)

// PatchInfoPlist sets CFBundleShortVersionString. Plists without a numeric
// value there are returned unchanged.
func PatchInfoPlist(data []byte, version string) []byte {
	repl := "${1}" + strings.ReplaceAll(version, "$", "$$") + "${3}"
	return shortVersionRe.ReplaceAll(data, []byte(repl))
}

// BundleAssembler lays out the framework directory around a merged library.
type BundleAssembler struct {
	Exec    *Executor
	Config  *BuildConfig
	Merger  *Merger
	Headers *HeaderTransformer
}

// Assemble replaces distDir with a complete framework built from artifacts.
func (b *BundleAssembler) Assemble(distDir string, artifacts []Artifact) (BundleLayout, error) {
	bc := b.Config
	layout := NewBundleLayout(distDir, bc.SharedFramework)
	step(bc.logger(), "Assembling %s", filepath.Base(layout.Root))

	if err := os.RemoveAll(distDir); err != nil {
		return layout, fmt.Errorf("failed to clean %s: %w", distDir, err)
	}
	if err := os.MkdirAll(layout.VersionDir, 0o755); err != nil {
		return layout, err
	}

	merged, err := b.Merger.Merge(layout.Binary, artifacts)
	if err != nil {
		return layout, err
	}
	debugf("=> merged %s: %v\n", merged.Path, merged.Arches)

	plist, err := os.ReadFile(filepath.Join(bc.BaseDir, "scripts", "ios", "Info.plist"))
	if err != nil {
		return layout, &IntegrityError{Artifact: "Info.plist", Msg: "template missing", Err: err}
	}
	if err := os.WriteFile(filepath.Join(layout.Root, "Info.plist"), PatchInfoPlist(plist, bc.BuildVersion), 0o644); err != nil {
		return layout, err
	}

	if layout.Shared {
		if err := b.Exec.RunTool(ToolRun{
			Stage: "install-name", Dir: layout.Root, LogPath: b.Merger.LogPath,
			Tool: bc.Tools.InstallNameTool,
			Args: []string{"-id", "@rpath/" + FrameworkName + ".framework/" + FrameworkName, FrameworkName},
		}); err != nil {
			return layout, err
		}
	}

	if _, err := b.Headers.Install(HeaderInstall{
		BaseDir:    bc.BaseDir,
		HeadersDir: layout.HeadersDir,
		ModuleMap:  filepath.Join(layout.ModulesDir, "module.modulemap"),
		MetalANGLE: bc.MetalANGLE,
		Defines:    bc.Defines,
	}); err != nil {
		return layout, err
	}

	if err := layout.CreateLinks(); err != nil {
		return layout, err
	}
	return layout, layout.VerifyLinks()
}
