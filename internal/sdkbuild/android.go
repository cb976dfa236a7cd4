package sdkbuild

import (
	"fmt"
	"path/filepath"
)

// AndroidPipeline builds the native libraries for every ABI, the Java
// wrappers and optionally the AAR.
type AndroidPipeline struct {
	Exec     *Executor
	Config   *BuildConfig
	Invoker  *NativeInvoker
	Archiver *Archiver
}

func NewAndroidPipeline(exec *Executor, bc *BuildConfig) *AndroidPipeline {
	return &AndroidPipeline{
		Exec:     exec,
		Config:   bc,
		Invoker:  &NativeInvoker{Exec: exec, Config: bc},
		Archiver: &Archiver{Exec: exec, LogPath: filepath.Join(bc.LogDir(), "android-package.log")},
	}
}

// Prepare resolves the requested ABIs for the configured compiler.
func (p *AndroidPipeline) Prepare(abis []string) ([]Target, error) {
	targets, err := ResolveAndroidTargets(abis, p.Config.Compiler)
	if err != nil {
		return nil, err
	}
	debugf("=> android targets: %v\n", targets)
	return targets, nil
}

// AndroidResult lists what a successful run produced.
type AndroidResult struct {
	DistDir   string
	Libraries []Artifact
	JAR       string
	AAR       string
	Archive   string
}

// Run builds each ABI in order and stops at the first failure.
func (p *AndroidPipeline) Run(targets []Target) (*AndroidResult, error) {
	bc := p.Config
	res := &AndroidResult{DistDir: bc.DistDir("android")}

	err := withBuildLock(bc.BaseDir, func() error {
		for _, t := range targets {
			a, err := p.Invoker.BuildAndroid(t)
			if err != nil {
				return err
			}
			res.Libraries = append(res.Libraries, a)
		}

		jar, err := p.Invoker.BuildAndroidJAR()
		if err != nil {
			return err
		}
		res.JAR = jar

		if bc.AAR {
			aar, err := p.Invoker.BuildAndroidAAR()
			if err != nil {
				return err
			}
			res.AAR = aar
			if err := UpdateReleaseIndex(res.DistDir, ReleaseEntry{
				Name:     "carto-mobile-sdk",
				Platform: "android",
				Variant:  bc.Qualifier(),
				Version:  bc.BuildVersion,
			}, aar); err != nil {
				return err
			}
		}

		if bc.ArchiveFormat == FormatNone {
			return nil
		}
		return p.archive(res)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// AndroidDistName is the name of the archive holding the whole dist/android tree.
func AndroidDistName(version, qualifier string, format ArchiveFormat) string {
	if qualifier != "" {
		return fmt.Sprintf("carto-mobile-sdk-android-%s-%s%s", qualifier, version, format.Ext())
	}
	return fmt.Sprintf("carto-mobile-sdk-android-%s%s", version, format.Ext())
}

func (p *AndroidPipeline) archive(res *AndroidResult) error {
	bc := p.Config
	distRoot := filepath.Dir(res.DistDir)
	name := AndroidDistName(bc.BuildVersion, bc.Qualifier(), bc.ArchiveFormat)
	step(bc.logger(), "Packaging %s", name)

	res.Archive = filepath.Join(distRoot, name)
	if err := p.Archiver.Create(bc.ArchiveFormat, distRoot, filepath.Base(res.DistDir), res.Archive); err != nil {
		return err
	}
	return UpdateReleaseIndex(distRoot, ReleaseEntry{
		Name:     "carto-mobile-sdk-android",
		Platform: "android",
		Variant:  bc.Qualifier(),
		Version:  bc.BuildVersion,
	}, res.Archive)
}
