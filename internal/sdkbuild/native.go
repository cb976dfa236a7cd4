package sdkbuild

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Artifact is the single-architecture library produced for one target.
type Artifact struct {
	Target Target
	Path   string
}

// NativeInvoker drives cmake and the platform build tool for one target at a time.
type NativeInvoker struct {
	Exec   *Executor
	Config *BuildConfig
}

func (n *NativeInvoker) logPath(t Target) string {
	return filepath.Join(n.Config.LogDir(), t.BuildName()+".log")
}

func (n *NativeInvoker) libExt() string {
	if n.Config.SharedFramework {
		return "dylib"
	}
	return "a"
}

// iosBuildDir is build/ios[_metal]-<PLATFORM>-<arch>.
func (n *NativeInvoker) iosBuildDir(t Target) string {
	return n.Config.BuildDir(n.Config.iosTarget(), t.BuildName())
}

// iosCMakeArgs builds the generator invocation for an iOS target.
func (n *NativeInvoker) iosCMakeArgs(t Target, buildDir string) []string {
	bc := n.Config
	systemName := "iOS"
	if t.Platform == PlatformCatalyst {
		systemName = "Darwin"
	}
	shared := "OFF"
	if bc.SharedFramework {
		shared = "ON"
	}
	args := bc.cmakeOptionArgs()
	return append(args,
		"-G", "Xcode",
		"-DCMAKE_SYSTEM_NAME="+systemName,
		"-DWRAPPER_DIR="+filepath.Join(bc.BaseDir, "generated", "ios-objc", "proxies"),
		"-DCMAKE_EXPORT_COMPILE_COMMANDS=ON",
		"-DINCLUDE_OBJC:BOOL=ON",
		"-DSINGLE_LIBRARY:BOOL=ON",
		"-DSHARED_LIBRARY:BOOL="+shared,
		"-DCMAKE_OSX_ARCHITECTURES="+t.Arch,
		"-DCMAKE_OSX_SYSROOT="+t.Toolchain,
		"-DCMAKE_OSX_DEPLOYMENT_TARGET="+t.MinVersion,
		"-DCMAKE_BUILD_TYPE="+string(bc.Configuration),
		"-DSDK_CPP_DEFINES="+bc.cppDefines(),
		fmt.Sprintf("-DSDK_DEV_TEAM='%s'", bc.DevTeam),
		fmt.Sprintf("-DSDK_VERSION='%s'", bc.NativeVersion()),
		"-DSDK_PLATFORM='iOS'",
		fmt.Sprintf("-DSDK_IOS_ARCH='%s'", t.Arch),
		fmt.Sprintf("-DSDK_IOS_BASEARCH='%s'", t.Raw),
		filepath.Join(bc.BaseDir, "scripts", "build"),
	)
}

// xcodebuildArgs builds the native build invocation for an iOS target.
func (n *NativeInvoker) xcodebuildArgs(t Target) []string {
	bc := n.Config
	mode := "build"
	if bc.Configuration == ConfigRelease {
		mode = "archive"
	}
	args := []string{
		"-project", "carto_mobile_sdk.xcodeproj",
		"-arch", t.Arch,
		"-configuration", string(bc.Configuration),
		"-jobs", strconv.Itoa(BuildJobs),
		mode,
	}
	if !bc.StripBitcode && (t.Raw == "armv7" || t.Raw == "arm64") {
		args = append(args, "ENABLE_BITCODE=YES", "BITCODE_GENERATION_MODE=bitcode")
	} else {
		args = append(args, "ENABLE_BITCODE=NO")
	}
	return append(args, "GCC_PREPROCESSOR_DEFINITIONS=_LIBCPP_ENABLE_CXX17_REMOVED_UNARY_BINARY_FUNCTION")
}

// iosLibraryPath is where xcodebuild leaves the library for a target.
func iosLibraryPath(buildDir string, t Target, cfg Configuration, ext string) string {
	lib := "lib" + LibraryName + "." + ext
	if t.Platform == PlatformCatalyst {
		return filepath.Join(buildDir, string(cfg), lib)
	}
	return filepath.Join(buildDir, string(cfg)+"-"+t.Toolchain, lib)
}

// BuildIOS configures and builds one iOS target.
func (n *NativeInvoker) BuildIOS(t Target) (Artifact, error) {
	bc := n.Config
	buildDir := n.iosBuildDir(t)
	logPath := n.logPath(t)
	step(bc.logger(), "Building %s (%s, %s)", t.Raw, t.Platform, bc.Configuration)

	if err := n.Exec.RunTool(ToolRun{
		Stage: "configure", Target: t.Raw, Dir: buildDir, LogPath: logPath,
		Tool: bc.Tools.CMake, Args: n.iosCMakeArgs(t, buildDir),
	}); err != nil {
		return Artifact{}, err
	}

	if err := ApplyCatalystProjectFix(buildDir); err != nil {
		return Artifact{}, &ToolchainError{Stage: "configure", Target: t.Raw, Tool: bc.Tools.CMake, LogPath: logPath, Err: err}
	}

	if err := n.Exec.RunTool(ToolRun{
		Stage: "build", Target: t.Raw, Dir: buildDir, LogPath: logPath,
		Tool: bc.Tools.Xcodebuild, Args: n.xcodebuildArgs(t),
	}); err != nil {
		return Artifact{}, err
	}

	lib := iosLibraryPath(buildDir, t, bc.Configuration, n.libExt())
	if _, err := os.Stat(lib); err != nil {
		return Artifact{}, &ToolchainError{Stage: "build", Target: t.Raw, Tool: bc.Tools.Xcodebuild, LogPath: logPath,
			Err: fmt.Errorf("expected output %s: %w", lib, err)}
	}
	finishLog(logPath)
	return Artifact{Target: t, Path: lib}, nil
}

// ApplyCatalystProjectFix rewrites the Mac Catalyst target triple that cmake
// emits into the Xcode project. Remove once cmake writes ios13.1-macabi itself.
func ApplyCatalystProjectFix(buildDir string) error {
	pbxproj := filepath.Join(buildDir, "carto_mobile_sdk.xcodeproj", "project.pbxproj")
	debugf("=> pbxproj %s\n", pbxproj)
	data, err := os.ReadFile(pbxproj)
	if err != nil {
		return fmt.Errorf("failed to read generated project: %w", err)
	}
	fixed := bytes.ReplaceAll(data, []byte("-apple-ios-13.0-macabi"), []byte("-apple-ios13.1-macabi"))
	if bytes.Equal(fixed, data) {
		return nil
	}
	return os.WriteFile(pbxproj, fixed, 0o644)
}

// androidSTL picks the C++ runtime matching the compiler family.
func androidSTL(compiler string) string {
	if strings.HasPrefix(compiler, "clang") {
		return "c++_static"
	}
	return "gnustl_static"
}

// androidCMakeArgs builds the generator invocation for an Android ABI.
func (n *NativeInvoker) androidCMakeArgs(t Target) []string {
	bc := n.Config
	args := bc.cmakeOptionArgs()
	return append(args,
		"-DCMAKE_TOOLCHAIN_FILE="+filepath.Join(bc.BaseDir, "scripts", "android-cmake", "android.toolchain.cmake"),
		"-DANDROID_NDK="+bc.AndroidNDK,
		"-DCMAKE_BUILD_TYPE="+string(bc.Configuration),
		"-DWRAPPER_DIR="+filepath.Join(bc.BaseDir, "generated", "android-java", "wrappers"),
		fmt.Sprintf("-DANDROID_TOOLCHAIN_NAME='%s'", t.Toolchain),
		fmt.Sprintf("-DANDROID_ABI='%s'", t.Raw),
		fmt.Sprintf("-DANDROID_STL='%s'", androidSTL(bc.Compiler)),
		fmt.Sprintf("-DANDROID_NATIVE_API_LEVEL='%s'", t.MinVersion),
		"-DSDK_CPP_DEFINES="+bc.cppDefines(),
		fmt.Sprintf("-DSDK_VERSION='%s'", bc.NativeVersion()),
		"-DSDK_PLATFORM='Android'",
		filepath.Join(bc.BaseDir, "scripts", "build"),
	)
}

// BuildAndroid configures and builds one ABI and copies the shared library
// to dist/android/<abi>.
func (n *NativeInvoker) BuildAndroid(t Target) (Artifact, error) {
	bc := n.Config
	buildDir := bc.BuildDir("android", t.Raw)
	logPath := n.logPath(t)
	step(bc.logger(), "Building %s (%s, %s)", t.Raw, t.Toolchain, bc.Configuration)

	if err := n.Exec.RunTool(ToolRun{
		Stage: "configure", Target: t.Raw, Dir: buildDir, LogPath: logPath,
		Tool: bc.Tools.CMake, Args: n.androidCMakeArgs(t),
	}); err != nil {
		return Artifact{}, err
	}
	if err := n.Exec.RunTool(ToolRun{
		Stage: "build", Target: t.Raw, Dir: buildDir, LogPath: logPath,
		Tool: bc.Tools.CMake, Args: []string{"--build", ".", "--", "-j" + strconv.Itoa(BuildJobs)},
	}); err != nil {
		return Artifact{}, err
	}

	lib := "lib" + LibraryName + ".so"
	distDir := filepath.Join(bc.DistDir("android"), t.Raw)
	if err := os.MkdirAll(distDir, 0o755); err != nil {
		return Artifact{}, err
	}
	dest := filepath.Join(distDir, lib)
	if err := copyFile(filepath.Join(buildDir, lib), dest); err != nil {
		return Artifact{}, &ToolchainError{Stage: "build", Target: t.Raw, Tool: bc.Tools.CMake, LogPath: logPath,
			Err: fmt.Errorf("failed to collect %s: %w", lib, err)}
	}
	finishLog(logPath)
	return Artifact{Target: t, Path: dest}, nil
}
