package sdkbuild

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// IOSPipeline builds every requested iOS target and assembles the framework.
type IOSPipeline struct {
	Exec      *Executor
	Config    *BuildConfig
	Invoker   *NativeInvoker
	Assembler *BundleAssembler
	Archiver  *Archiver
}

// NewIOSPipeline wires the pipeline stages around one build configuration.
func NewIOSPipeline(exec *Executor, bc *BuildConfig) *IOSPipeline {
	logPath := filepath.Join(bc.LogDir(), bc.iosTarget()+"-package.log")
	merger := &Merger{Exec: exec, Lipo: bc.Tools.Lipo, LogPath: logPath}
	return &IOSPipeline{
		Exec:    exec,
		Config:  bc,
		Invoker: &NativeInvoker{Exec: exec, Config: bc},
		Assembler: &BundleAssembler{
			Exec:    exec,
			Config:  bc,
			Merger:  merger,
			Headers: newHeaderTransformer(),
		},
		Archiver: &Archiver{Exec: exec, Ditto: bc.Tools.Ditto, LogPath: logPath},
	}
}

// Prepare resolves the requested architectures and validates everything that
// can be checked before the first native build starts.
func (p *IOSPipeline) Prepare(archs []string) ([]Target, error) {
	bc := p.Config
	targets, err := ResolveIOSTargets(archs, IOSSelection{XCFramework: bc.XCFramework, MetalANGLE: bc.MetalANGLE})
	if err != nil {
		return nil, err
	}
	if bc.SharedFramework && bc.DevTeam == "" {
		return nil, resolutionf("shared framework requires a development team, IOS_DEV_TEAM variable not set")
	}
	if bc.SwiftPackage && bc.ArchiveFormat != FormatZip {
		return nil, resolutionf("swift package requires the zip archive format, got %s", bc.ArchiveFormat)
	}
	proxies := filepath.Join(bc.BaseDir, "generated", "ios-objc", "proxies")
	if st, err := os.Stat(proxies); err != nil || !st.IsDir() {
		return nil, &IntegrityError{Artifact: proxies, Msg: "proxies/wrappers not generated yet, run the swig wrapper script first"}
	}
	debugf("=> ios targets: %v\n", targets)
	return targets, nil
}

// IOSResult lists what a successful run left in the dist directory.
type IOSResult struct {
	DistDir      string
	FrameworkDir string
	Archive      string
	Manifests    []string
}

// Run builds each target in order, stopping at the first failure, then
// assembles the framework and packages it when requested. Nothing is
// assembled unless every target built.
func (p *IOSPipeline) Run(targets []Target) (*IOSResult, error) {
	bc := p.Config
	res := &IOSResult{DistDir: bc.DistDir(bc.iosTarget())}

	err := withBuildLock(bc.BaseDir, func() error {
		artifacts := make([]Artifact, 0, len(targets))
		for _, t := range targets {
			a, err := p.Invoker.BuildIOS(t)
			if err != nil {
				return err
			}
			artifacts = append(artifacts, a)
		}

		if bc.XCFramework {
			out, err := p.Assembler.AssembleXCFramework(res.DistDir, artifacts)
			if err != nil {
				return err
			}
			res.FrameworkDir = filepath.Base(out)
		} else {
			layout, err := p.Assembler.Assemble(res.DistDir, artifacts)
			if err != nil {
				return err
			}
			res.FrameworkDir = filepath.Base(layout.Root)
		}

		if bc.ArchiveFormat == FormatNone {
			return nil
		}
		return p.Package(res)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// iosDistName is the archive name for the given format.
func iosDistName(version, qualifier string, format ArchiveFormat) string {
	return strings.TrimSuffix(IOSZipDistName(version, qualifier), ".zip") + format.Ext()
}

// Package archives the assembled framework, records it in the release
// index and renders the requested manifests next to it.
func (p *IOSPipeline) Package(res *IOSResult) error {
	bc := p.Config
	distName := iosDistName(bc.BuildVersion, bc.Qualifier(), bc.ArchiveFormat)
	step(bc.logger(), "Packaging %s", distName)

	res.Archive = filepath.Join(res.DistDir, distName)
	if err := p.Archiver.Create(bc.ArchiveFormat, res.DistDir, res.FrameworkDir, res.Archive); err != nil {
		return err
	}
	if err := UpdateReleaseIndex(res.DistDir, ReleaseEntry{
		Name:     FrameworkName,
		Platform: "ios",
		Variant:  bc.Qualifier(),
		Version:  bc.BuildVersion,
	}, res.Archive); err != nil {
		return err
	}

	info := PackageInfo{
		BaseDir:      bc.BaseDir,
		DistDir:      res.DistDir,
		DistName:     distName,
		FrameworkDir: res.FrameworkDir,
		Version:      bc.BuildVersion,
		RepoURL:      bc.RepoURL,
		MetalANGLE:   bc.MetalANGLE,
	}
	if bc.Cocoapod {
		podspec, err := RenderPodspec(info)
		if err != nil {
			return err
		}
		out := filepath.Join(res.DistDir, FrameworkName+".podspec")
		if err := os.WriteFile(out, []byte(podspec), 0o644); err != nil {
			return fmt.Errorf("failed to write podspec: %w", err)
		}
		res.Manifests = append(res.Manifests, out)
	}
	if bc.SwiftPackage {
		pkg, err := RenderLocalSwiftPackage(info, bc.Qualifier())
		if err != nil {
			return err
		}
		out := filepath.Join(res.DistDir, "Package.swift")
		if err := os.WriteFile(out, []byte(pkg), 0o644); err != nil {
			return fmt.Errorf("failed to write Package.swift: %w", err)
		}
		res.Manifests = append(res.Manifests, out)
	}
	return nil
}
