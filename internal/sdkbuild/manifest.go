package sdkbuild

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Template locations relative to the checkout.
var (
	podspecTemplate      = filepath.Join("scripts", "ios-cocoapod", "podspec.template")
	swiftPackageTemplate = filepath.Join("scripts", "ios-swiftpackage", "Package.swift.template")
	jitpackTemplate      = filepath.Join("scripts", "android-jitpack", "jitpack.yml.template")
)

// targetsSentinel in a Package.swift template selects array mode.
const targetsSentinel = `"$targets"`

func readTemplate(baseDir, rel string) (string, error) {
	data, err := os.ReadFile(filepath.Join(baseDir, rel))
	if err != nil {
		return "", &IntegrityError{Artifact: rel, Msg: "template file not found", Err: err}
	}
	return string(data), nil
}

func render(tmpl string, vars map[string]string) string {
	if missing := UnresolvedVariables(tmpl, vars); len(missing) > 0 {
		debugf("=> template variables left as-is: %s\n", strings.Join(missing, ", "))
	}
	return SafeSubstitute(tmpl, vars)
}

// quoteList renders `"A", "B"`, or nil for an empty list.
func quoteList(items []string) string {
	if len(items) == 0 {
		return "nil"
	}
	quoted := make([]string, len(items))
	for i, it := range items {
		quoted[i] = `"` + it + `"`
	}
	return strings.Join(quoted, ", ")
}

// PodspecFrameworks returns the system frameworks the pod links against.
func PodspecFrameworks(metalANGLE bool) (frameworks, weak []string) {
	if metalANGLE {
		frameworks = []string{"QuartzCore"}
		weak = []string{"Metal"}
	} else {
		frameworks = []string{"OpenGLES", "GLKit"}
	}
	frameworks = append(frameworks, "UIKit", "CoreGraphics", "CoreText", "CFNetwork", "Foundation")
	return frameworks, weak
}

// readLicense returns the checkout's LICENSE text, or an empty string.
func readLicense(baseDir string) string {
	data, err := os.ReadFile(filepath.Join(baseDir, "LICENSE"))
	if err != nil {
		debugf("=> no LICENSE file: %v\n", err)
		return ""
	}
	return strings.TrimRight(string(data), "\n")
}

// PackageInfo describes a packaged iOS distribution for manifest rendering.
type PackageInfo struct {
	BaseDir      string
	DistDir      string
	DistName     string
	FrameworkDir string // CartoMobileSDK.framework or CartoMobileSDK.xcframework
	Version      string
	RepoURL      string
	MetalANGLE   bool
}

func (p PackageInfo) context() map[string]string {
	return map[string]string{
		"baseDir":       p.BaseDir,
		"distDir":       p.DistDir,
		"distName":      p.DistName,
		"repoUrl":       p.RepoURL,
		"frameworkName": FrameworkName,
		"frameworkDir":  p.FrameworkDir,
		"version":       p.Version,
	}
}

// RenderPodspec renders the CocoaPods spec for a packaged framework.
func RenderPodspec(p PackageInfo) (string, error) {
	tmpl, err := readTemplate(p.BaseDir, podspecTemplate)
	if err != nil {
		return "", err
	}
	vars := p.context()
	frameworks, weak := PodspecFrameworks(p.MetalANGLE)
	vars["license"] = readLicense(p.BaseDir)
	vars["frameworks"] = quoteList(frameworks)
	vars["weakFrameworks"] = quoteList(weak)
	return render(tmpl, vars), nil
}

// BinaryTarget is one entry of a Swift package's binary targets.
type BinaryTarget struct {
	Name     string
	URL      string
	Checksum string
}

func (t BinaryTarget) render() string {
	return "        .binaryTarget(\n" +
		fmt.Sprintf("            name: %q,\n", t.Name) +
		fmt.Sprintf("            url: %q,\n", t.URL) +
		fmt.Sprintf("            checksum: %q\n", t.Checksum) +
		"        ),\n"
}

// renderTargetsArray renders the Swift array literal for targets.
func renderTargetsArray(targets []BinaryTarget) string {
	var b strings.Builder
	b.WriteString("[\n")
	for _, t := range targets {
		b.WriteString(t.render())
	}
	b.WriteString("    ]")
	return b.String()
}

// RenderSwiftPackage renders Package.swift. When the template contains the
// quoted "$targets" sentinel it is replaced by the targets array and only
// frameworkName is substituted afterwards; otherwise vars plus targets are
// substituted normally.
func RenderSwiftPackage(tmpl string, vars map[string]string, targets []BinaryTarget) string {
	array := renderTargetsArray(targets)
	if strings.Contains(tmpl, targetsSentinel) {
		tmpl = strings.ReplaceAll(tmpl, targetsSentinel, array)
		return render(tmpl, map[string]string{"frameworkName": FrameworkName})
	}
	all := make(map[string]string, len(vars)+2)
	for k, v := range vars {
		all[k] = v
	}
	all["frameworkName"] = FrameworkName
	all["targets"] = array
	return render(tmpl, all)
}

// releaseURL is where a published release asset is downloaded from.
func releaseURL(repoURL, tag, name string) string {
	return fmt.Sprintf("%s/releases/download/%s/%s", strings.TrimRight(repoURL, "/"), tag, name)
}

// RenderLocalSwiftPackage renders Package.swift for a freshly packaged
// archive, using the local archive's checksum.
func RenderLocalSwiftPackage(p PackageInfo, variant string) (string, error) {
	tmpl, err := readTemplate(p.BaseDir, swiftPackageTemplate)
	if err != nil {
		return "", err
	}
	sum, err := ChecksumSHA256(filepath.Join(p.DistDir, p.DistName))
	if err != nil {
		return "", err
	}
	vars := p.context()
	vars["checksum"] = sum
	name := FrameworkName
	if variant != "" {
		name += "-" + variant
	}
	target := BinaryTarget{Name: name, URL: releaseURL(p.RepoURL, "v"+p.Version, p.DistName), Checksum: sum}
	return RenderSwiftPackage(tmpl, vars, []BinaryTarget{target}), nil
}

// SwiftPackageGenerator renders a multi-variant Package.swift pointing at
// published release archives.
type SwiftPackageGenerator struct {
	BaseDir   string
	RepoURL   string
	Profiles  *ProfileTable
	Checksums map[string]string // keyed by profile id or variant
	Remote    *RemoteChecksummer
}

// Targets builds one binary target per profile. Checksums come from the map
// first and are otherwise streamed from the release URL; any failure aborts.
func (g *SwiftPackageGenerator) Targets(ctx context.Context, version string, profiles []string) ([]BinaryTarget, error) {
	if len(profiles) == 0 {
		return nil, &IntegrityError{Artifact: "Package.swift", Msg: "no profiles provided"}
	}
	var targets []BinaryTarget
	for _, p := range profiles {
		variant := g.Profiles.Variant(p)
		distName := IOSZipDistName(version, g.Profiles.Qualifier(p))
		t := BinaryTarget{
			Name: FrameworkName + "-" + variant,
			URL:  releaseURL(g.RepoURL, "v"+version, distName),
		}
		if sum := g.Checksums[p]; sum != "" {
			t.Checksum = sum
		} else if sum := g.Checksums[variant]; sum != "" {
			t.Checksum = sum
		} else {
			sum, err := g.Remote.SHA256(ctx, t.URL)
			if err != nil {
				return nil, fmt.Errorf("checksum for profile %s: %w", p, err)
			}
			t.Checksum = sum
		}
		targets = append(targets, t)
	}
	return targets, nil
}

// Generate writes dist/ios_metal/Package.swift and returns its path.
func (g *SwiftPackageGenerator) Generate(ctx context.Context, version string, profiles []string) (string, error) {
	tmpl, err := readTemplate(g.BaseDir, swiftPackageTemplate)
	if err != nil {
		return "", err
	}
	targets, err := g.Targets(ctx, version, profiles)
	if err != nil {
		return "", err
	}
	distDir := filepath.Join(g.BaseDir, "dist", "ios_metal")
	if err := os.MkdirAll(distDir, 0o755); err != nil {
		return "", err
	}
	out := filepath.Join(distDir, "Package.swift")
	if err := os.WriteFile(out, []byte(RenderSwiftPackage(tmpl, nil, targets)), 0o644); err != nil {
		return "", err
	}
	return out, nil
}

// GenerateJitpack writes dist/android/jitpack.yml for the given profiles.
func GenerateJitpack(baseDir, repoURL, version string, profiles *ProfileTable, ids []string) (string, error) {
	tmpl, err := readTemplate(baseDir, jitpackTemplate)
	if err != nil {
		return "", err
	}
	if len(ids) == 0 {
		return "", &IntegrityError{Artifact: "jitpack.yml", Msg: "no profiles provided"}
	}
	variants := make([]string, len(ids))
	urls := make([]string, len(ids))
	for i, id := range ids {
		variants[i] = profiles.Variant(id)
		urls[i] = releaseURL(repoURL, version, AndroidAARDistName(version, profiles.Qualifier(id)))
	}
	content := render(tmpl, map[string]string{
		"version":  version,
		"variants": strings.Join(variants, ","),
		"aarUrls":  strings.Join(urls, ","),
		"repo_url": repoURL,
	})

	distDir := filepath.Join(baseDir, "dist", "android")
	if err := os.MkdirAll(distDir, 0o755); err != nil {
		return "", err
	}
	out := filepath.Join(distDir, "jitpack.yml")
	return out, os.WriteFile(out, []byte(content), 0o644)
}
