package sdkbuild

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Configuration is the native build mode.
type Configuration string

const (
	ConfigRelease        Configuration = "Release"
	ConfigDebug          Configuration = "Debug"
	ConfigRelWithDebInfo Configuration = "RelWithDebInfo"
)

// ParseConfiguration validates s against the allowed modes.
func ParseConfiguration(s string, allowed ...Configuration) (Configuration, error) {
	c := Configuration(s)
	if !slices.Contains(allowed, c) {
		return "", resolutionf("invalid configuration %q (allowed: %v)", s, allowed)
	}
	return c, nil
}

// Tools names the external executables the pipeline invokes.
type Tools struct {
	CMake           string
	Xcodebuild      string
	Lipo            string
	InstallNameTool string
	Ditto           string
	Javac           string
	Jar             string
	Gradle          string
}

// DefaultTools resolves every tool through PATH.
func DefaultTools() Tools {
	return Tools{
		CMake:           "cmake",
		Xcodebuild:      "xcodebuild",
		Lipo:            "lipo",
		InstallNameTool: "install_name_tool",
		Ditto:           "ditto",
		Javac:           "javac",
		Jar:             "jar",
		Gradle:          "gradle",
	}
}

// BuildConfig is assembled once from flags, the selected profile and the
// environment, then passed read-only to every pipeline stage.
type BuildConfig struct {
	BaseDir       string
	Profile       Profile
	Defines       []string
	CMakeOptions  []string
	Configuration Configuration
	BuildVersion  string
	BuildNumber   string
	RepoURL       string
	Tools         Tools
	ArchiveFormat ArchiveFormat

	// iOS
	MetalANGLE      bool
	SharedFramework bool
	XCFramework     bool
	StripBitcode    bool
	Cocoapod        bool
	SwiftPackage    bool
	DevTeam         string

	// Android
	Compiler   string
	AndroidSDK string
	AndroidNDK string
	AAR        bool

	Logger io.Writer
}

// NewBuildConfig returns a configuration with the profile's defines and cmake
// options appended to the explicit ones.
func NewBuildConfig(baseDir string, profile Profile, defines, cmakeOptions string) *BuildConfig {
	bc := &BuildConfig{
		BaseDir:       baseDir,
		Profile:       profile,
		Configuration: ConfigRelease,
		BuildVersion:  SDKVersion + "-devel",
		RepoURL:       DefaultRepo,
		Tools:         DefaultTools(),
		ArchiveFormat: FormatZip,
		Compiler:      "gcc-4.9",
		Logger:        os.Stdout,
	}
	bc.Defines = appendUnique(splitList(defines, ";"), splitList(profile.Defines, ";")...)
	bc.CMakeOptions = appendUnique(splitList(cmakeOptions, ";"), splitList(profile.CMakeOptions, ";")...)
	return bc
}

const metalANGLEDefine = "_CARTO_USE_METALANGLE"

// EnableMetalANGLE switches the build to MetalANGLE and adds its compile
// define. Call it while constructing the configuration.
func (bc *BuildConfig) EnableMetalANGLE() {
	bc.MetalANGLE = true
	bc.Defines = appendUnique(bc.Defines, metalANGLEDefine)
}

// androidEnv exports the resolved SDK and NDK locations to gradle and cmake.
func (bc *BuildConfig) androidEnv() []string {
	var env []string
	if bc.AndroidSDK != "" {
		env = append(env, "ANDROID_HOME="+bc.AndroidSDK, "ANDROID_SDK_ROOT="+bc.AndroidSDK)
	}
	if bc.AndroidNDK != "" {
		env = append(env, "ANDROID_NDK_HOME="+bc.AndroidNDK)
	}
	return env
}

// NativeVersion is the version string compiled into the library.
func (bc *BuildConfig) NativeVersion() string {
	if bc.Configuration != ConfigRelease {
		return "Devel"
	}
	if bc.BuildNumber != "" {
		return bc.BuildVersion + "." + bc.BuildNumber
	}
	return bc.BuildVersion
}

// Qualifier is the dist-name channel for this build.
func (bc *BuildConfig) Qualifier() string {
	return bc.Profile.Qualifier(bc.MetalANGLE)
}

// iosTarget names the iOS build/dist tree, separate for MetalANGLE builds.
func (bc *BuildConfig) iosTarget() string {
	if bc.MetalANGLE {
		return "ios_metal"
	}
	return "ios"
}

// BuildDir returns <base>/build/<target>[-<sub>].
func (bc *BuildConfig) BuildDir(target, sub string) string {
	if sub != "" {
		target += "-" + sub
	}
	return filepath.Join(bc.BaseDir, "build", target)
}

// DistDir returns <base>/dist/<name>.
func (bc *BuildConfig) DistDir(name string) string {
	return filepath.Join(bc.BaseDir, "dist", name)
}

// LogDir holds the per-target build logs.
func (bc *BuildConfig) LogDir() string {
	return filepath.Join(bc.BaseDir, "build", "logs")
}

// cppDefines renders the defines as compiler flags.
func (bc *BuildConfig) cppDefines() string {
	flags := make([]string, len(bc.Defines))
	for i, d := range bc.Defines {
		flags[i] = "-D" + d
	}
	return strings.Join(flags, " ")
}

// cmakeOptionArgs renders the cmake options as -D arguments.
func (bc *BuildConfig) cmakeOptionArgs() []string {
	args := make([]string, len(bc.CMakeOptions))
	for i, o := range bc.CMakeOptions {
		args[i] = "-D" + o
	}
	return args
}

func (bc *BuildConfig) logger() io.Writer {
	if bc.Logger == nil {
		return os.Stdout
	}
	return bc.Logger
}

func (bc *BuildConfig) String() string {
	return fmt.Sprintf("profile=%s configuration=%s version=%s defines=%v", bc.Profile.ID, bc.Configuration, bc.BuildVersion, bc.Defines)
}
