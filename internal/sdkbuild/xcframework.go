package sdkbuild

import (
	"fmt"
	"os"
	"path/filepath"
)

// AssembleXCFramework merges the artifacts per platform family and wraps the
// resulting libraries into <distDir>/CartoMobileSDK.xcframework.
func (b *BundleAssembler) AssembleXCFramework(distDir string, artifacts []Artifact) (string, error) {
	bc := b.Config
	output := filepath.Join(distDir, FrameworkName+".xcframework")
	step(bc.logger(), "Assembling %s", filepath.Base(output))

	if err := os.RemoveAll(distDir); err != nil {
		return "", fmt.Errorf("failed to clean %s: %w", distDir, err)
	}
	if err := os.MkdirAll(distDir, 0o755); err != nil {
		return "", err
	}

	headersDir := bc.BuildDir(bc.iosTarget(), "Headers")
	if err := os.RemoveAll(headersDir); err != nil {
		return "", err
	}
	if _, err := b.Headers.Install(HeaderInstall{
		BaseDir:    bc.BaseDir,
		HeadersDir: filepath.Join(headersDir, FrameworkName),
		ModuleMap:  filepath.Join(headersDir, "module.modulemap"),
		MetalANGLE: bc.MetalANGLE,
		Defines:    bc.Defines,
	}); err != nil {
		return "", err
	}

	ext := "a"
	if bc.SharedFramework {
		ext = "dylib"
	}
	args := []string{"-create-xcframework", "-output", output}
	for _, group := range GroupByPlatform(artifacts) {
		lib := filepath.Join(bc.BuildDir(bc.iosTarget(), string(group.Platform)), FrameworkName+"."+ext)
		merged, err := b.Merger.Merge(lib, group.Artifacts)
		if err != nil {
			return "", err
		}
		debugf("=> %s slice: %v\n", group.Platform, merged.Arches)
		args = append(args, "-library", lib, "-headers", headersDir)
	}

	if err := b.Exec.RunTool(ToolRun{
		Stage: "xcframework", Dir: bc.BaseDir, LogPath: b.Merger.LogPath,
		Tool: bc.Tools.Xcodebuild, Args: args,
	}); err != nil {
		return "", err
	}
	return output, nil
}
