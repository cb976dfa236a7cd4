package sdkbuild

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/gookit/color"
	"golang.org/x/term"
)

// printHelp prints the commands table
func printHelp() {
	colSuccess.Println("Usage: sdkbuild <command> [arguments]")
	colSuccess.Println("Run 'sdkbuild <command> -h' for command options")
	fmt.Println()
	color.Info.Println("Available Commands:")

	type cmdInfo struct {
		Cmd  string
		Args string
		Desc string
	}
	cmds := []cmdInfo{
		{"version, --version", "", "Version information"},
		{"ios", "[options]", "Build the iOS framework or XCFramework, optionally packaged"},
		{"android", "[options]", "Build the Android libraries, JAR and optionally the AAR"},
		{"swiftpackage", "--version <v> --profiles <a,b>", "Generate Package.swift for published releases"},
		{"jitpack", "--version <v> --profiles <a,b>", "Generate jitpack.yml for published releases"},
		{"checksum", "<file|url>...", "Print sha256 (and b3 for local files)"},
		{"inspect", "<library>", "Show the architectures of a library"},
		{"publish", "[--platform ios|android] [--dry-run]", "Upload packaged artifacts to R2 and update the index"},
		{"log", "[target]", "List build logs or view one"},
	}

	maxLen := 0
	for _, c := range cmds {
		length := len(c.Cmd) + len(c.Args)
		if c.Args != "" {
			length++
		}
		if length > maxLen {
			maxLen = length
		}
	}
	columnWidth := maxLen + 4

	for _, c := range cmds {
		usageString := "  " + c.Cmd
		if c.Args != "" {
			usageString += " " + c.Args
		}

		fmt.Print("  ")
		color.Bold.Print(c.Cmd)
		if c.Args != "" {
			fmt.Print(" ")
			color.Cyan.Print(c.Args)
		}
		pad := columnWidth - len(usageString)
		if pad < 1 {
			pad = 1
		}
		fmt.Print(strings.Repeat(" ", pad))
		color.Info.Println(c.Desc)
	}
	fmt.Println()
}

// Main is the CLI entrypoint for cmd/sdkbuild.
func Main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigs:
			colArrow.Print("\n-> ")
			color.Danger.Printf("Received %v. Cancelling build\n", sig)
			cancel()

			// a second signal, or a tool that ignores SIGKILL on its group, forces the exit
			select {
			case <-sigs:
				colArrow.Print("\n-> ")
				color.Danger.Println("Second interrupt received. Forcing immediate exit.")
				os.Exit(130)
			case <-time.After(5 * time.Second):
				colArrow.Print("\n-> ")
				color.Danger.Println("Graceful shutdown timeout. Exiting.")
				os.Exit(1)
			}
		case <-ctx.Done():
		}
	}()

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		color.Enable = false
	}
	os.Exit(run(ctx, os.Args[1:]))
}

// run dispatches one command and returns the process exit status.
func run(ctx context.Context, args []string) int {
	if len(args) == 0 {
		printHelp()
		return 0
	}

	var err error
	switch args[0] {
	case "version", "--version":
		fmt.Printf("sdkbuild %s (built %s), SDK %s\n", version, buildDate, SDKVersion)
	case "help", "-h", "--help":
		printHelp()
	case "ios":
		err = handleIOSCommand(ctx, args[1:])
	case "android":
		err = handleAndroidCommand(ctx, args[1:])
	case "swiftpackage":
		err = handleSwiftPackageCommand(ctx, args[1:])
	case "jitpack":
		err = handleJitpackCommand(args[1:])
	case "checksum":
		err = handleChecksumCommand(ctx, args[1:])
	case "inspect":
		err = handleInspectCommand(args[1:])
	case "publish":
		err = handlePublishCommand(ctx, args[1:])
	case "log":
		err = handleLogCommand(args[1:])
	default:
		colArrow.Print("-> ")
		colError.Printf("Unknown command: %s\n", args[0])
		printHelp()
		return 1
	}

	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		colArrow.Print("-> ")
		colError.Printf("Error: %v\n", err)
		return 1
	}
	return 0
}

// session is the environment every command starts from.
type session struct {
	BaseDir  string
	Config   *Config
	Profiles *ProfileTable
}

func newSession(baseFlag string) (*session, error) {
	baseDir, err := resolveBaseDir(baseFlag)
	if err != nil {
		return nil, err
	}
	cfg, err := loadConfig(configPath(baseDir))
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	initConfig(cfg)
	profiles, err := LoadProfiles(baseDir)
	if err != nil {
		return nil, err
	}
	debugf("=> base %s, config %s, profiles %s\n", baseDir, cfg.Path, profiles.Source)
	return &session{BaseDir: baseDir, Config: cfg, Profiles: profiles}, nil
}

// toolOverrides maps config keys to the tool they replace.
var toolOverrides = map[string]func(*Tools) *string{
	"SDKBUILD_CMAKE":             func(t *Tools) *string { return &t.CMake },
	"SDKBUILD_XCODEBUILD":        func(t *Tools) *string { return &t.Xcodebuild },
	"SDKBUILD_LIPO":              func(t *Tools) *string { return &t.Lipo },
	"SDKBUILD_INSTALL_NAME_TOOL": func(t *Tools) *string { return &t.InstallNameTool },
	"SDKBUILD_DITTO":             func(t *Tools) *string { return &t.Ditto },
	"SDKBUILD_JAVAC":             func(t *Tools) *string { return &t.Javac },
	"SDKBUILD_JAR":               func(t *Tools) *string { return &t.Jar },
	"SDKBUILD_GRADLE":            func(t *Tools) *string { return &t.Gradle },
}

// buildFlags are shared by the ios and android commands.
type buildFlags struct {
	baseDir       string
	profile       string
	defines       string
	cmake         string
	cmakeOptions  string
	configuration string
	buildNumber   string
	buildVersion  string
	archiveFormat string
}

func (f *buildFlags) register(fs *flag.FlagSet, defaultArchive string) {
	fs.StringVar(&f.baseDir, "base-dir", "", "SDK checkout (default: nearest parent with scripts/build)")
	fs.StringVar(&f.profile, "profile", "", "Build profile (default: the profile table's default)")
	fs.StringVar(&f.defines, "defines", "", "Defines for compilation, ';'-separated")
	fs.StringVar(&f.cmake, "cmake", "", "CMake executable")
	fs.StringVar(&f.cmakeOptions, "cmake-options", "", "CMake options, ';'-separated")
	fs.StringVar(&f.configuration, "configuration", string(ConfigRelease), "Configuration")
	fs.StringVar(&f.buildNumber, "build-number", "", "Build sequence number, goes to version str")
	fs.StringVar(&f.buildVersion, "build-version", SDKVersion+"-devel", "Build version, goes to distributions")
	fs.StringVar(&f.archiveFormat, "archive-format", defaultArchive, "Archive format (none|zip|tar.gz|tar.xz|tar.zst)")
}

// buildConfig merges the session, profile and flags into one configuration.
func (f *buildFlags) buildConfig(s *session, allowed ...Configuration) (*BuildConfig, error) {
	profile, err := s.Profiles.Get(f.profile)
	if err != nil {
		return nil, err
	}
	bc := NewBuildConfig(s.BaseDir, profile, f.defines, f.cmakeOptions)
	if bc.Configuration, err = ParseConfiguration(f.configuration, allowed...); err != nil {
		return nil, err
	}
	bc.BuildNumber = f.buildNumber
	bc.BuildVersion = f.buildVersion
	bc.RepoURL = s.Config.RepoURL()
	for key, field := range toolOverrides {
		if v := s.Config.Values[key]; v != "" {
			*field(&bc.Tools) = v
		}
	}
	if f.cmake != "" {
		bc.Tools.CMake = f.cmake
	}
	if f.archiveFormat != "" {
		if bc.ArchiveFormat, err = ParseArchiveFormat(f.archiveFormat); err != nil {
			return nil, err
		}
	}
	return bc, nil
}

func handleIOSCommand(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("ios", flag.ContinueOnError)
	var (
		bf                                  buildFlags
		archs                               stringList
		xcframework, cocoapod, swiftpackage bool
		metalANGLE, stripBitcode, shared    bool
	)
	bf.register(fs, "")
	fs.Var(&archs, "ios-arch", fmt.Sprintf("iOS target architectures, repeatable (%s, all)", strings.Join(IOSTargets, ", ")))
	fs.BoolVar(&xcframework, "build-xcframework", false, "Build XCFramework")
	fs.BoolVar(&cocoapod, "build-cocoapod", false, "Build CocoaPod")
	fs.BoolVar(&swiftpackage, "build-swiftpackage", false, "Build Swift Package")
	fs.BoolVar(&metalANGLE, "use-metalangle", false, "Use MetalANGLE instead of Apple GL")
	fs.BoolVar(&stripBitcode, "strip-bitcode", false, "Strip bitcode from the built framework")
	fs.BoolVar(&shared, "shared-framework", false, "Build shared framework instead of static")
	if err := fs.Parse(args); err != nil {
		return err
	}

	s, err := newSession(bf.baseDir)
	if err != nil {
		return err
	}
	// manifests need an archive to point at
	if bf.archiveFormat == "" {
		bf.archiveFormat = string(FormatNone)
		if cocoapod || swiftpackage {
			bf.archiveFormat = string(FormatZip)
		}
	}
	bc, err := bf.buildConfig(s, ConfigRelease, ConfigRelWithDebInfo, ConfigDebug)
	if err != nil {
		return err
	}
	bc.XCFramework = xcframework
	bc.Cocoapod = cocoapod
	bc.SwiftPackage = swiftpackage
	if metalANGLE || bc.Profile.MetalANGLE {
		bc.EnableMetalANGLE()
	}
	bc.StripBitcode = stripBitcode
	bc.SharedFramework = shared
	bc.DevTeam = s.Config.Values["IOS_DEV_TEAM"]

	pipeline := NewIOSPipeline(NewExecutor(ctx), bc)
	targets, err := pipeline.Prepare(archs)
	if err != nil {
		return err
	}
	debugf("=> %s\n", bc)
	res, err := pipeline.Run(targets)
	if err != nil {
		return err
	}

	colArrow.Print("-> ")
	colSuccess.Printf("iOS output available in:\n%s\n", res.DistDir)
	if res.Archive != "" {
		colNote.Printf("%s\n", filepath.Base(res.Archive))
	}
	for _, m := range res.Manifests {
		colNote.Printf("%s\n", filepath.Base(m))
	}
	return nil
}

func handleAndroidCommand(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("android", flag.ContinueOnError)
	var (
		bf                     buildFlags
		abis                   stringList
		ndkPath, sdkPath       string
		javac, jar, gradle, cc string
		buildAAR               bool
	)
	bf.register(fs, string(FormatNone))
	fs.Var(&abis, "android-abi", fmt.Sprintf("Android target ABIs, repeatable (%s, all)", strings.Join(AndroidABIs, ", ")))
	fs.StringVar(&ndkPath, "android-ndk-path", "auto", "Android NDK path")
	fs.StringVar(&sdkPath, "android-sdk-path", "auto", "Android SDK path")
	fs.StringVar(&javac, "javac", "", "Java compiler executable")
	fs.StringVar(&jar, "jar", "", "Jar executable")
	fs.StringVar(&gradle, "gradle", "", "Gradle executable")
	fs.StringVar(&cc, "compiler", "gcc-4.9", "C++ compiler (gcc-4.9|clang)")
	fs.BoolVar(&buildAAR, "build-aar", false, "Build Android .aar package")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !slices.Contains([]string{"gcc-4.9", "clang"}, cc) {
		return resolutionf("invalid compiler %q (allowed: gcc-4.9, clang)", cc)
	}

	s, err := newSession(bf.baseDir)
	if err != nil {
		return err
	}
	bc, err := bf.buildConfig(s, ConfigRelease, ConfigDebug)
	if err != nil {
		return err
	}
	if bc.AndroidSDK, bc.AndroidNDK, err = resolveAndroidPaths(s.Config, sdkPath, ndkPath); err != nil {
		return err
	}
	bc.Compiler = cc
	bc.AAR = buildAAR
	if javac != "" {
		bc.Tools.Javac = javac
	}
	if jar != "" {
		bc.Tools.Jar = jar
	}
	if gradle != "" {
		bc.Tools.Gradle = gradle
	}

	exec := NewExecutor(ctx)
	exec.Env = bc.androidEnv()
	pipeline := NewAndroidPipeline(exec, bc)
	targets, err := pipeline.Prepare(abis)
	if err != nil {
		return err
	}
	debugf("=> %s\n", bc)
	res, err := pipeline.Run(targets)
	if err != nil {
		return err
	}

	colArrow.Print("-> ")
	colSuccess.Printf("Android output available in:\n%s\n", res.DistDir)
	for _, p := range []string{res.JAR, res.AAR, res.Archive} {
		if p != "" {
			colNote.Printf("%s\n", filepath.Base(p))
		}
	}
	return nil
}

// releaseFlags are shared by the manifest generators for published releases.
type releaseFlags struct {
	baseDir  string
	version  string
	profiles stringList
}

func (f *releaseFlags) parse(fs *flag.FlagSet, args []string) error {
	fs.StringVar(&f.baseDir, "base-dir", "", "SDK checkout")
	fs.StringVar(&f.version, "version", "", "Published version")
	fs.Var(&f.profiles, "profiles", "Build profiles to include, comma-separated")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if f.version == "" {
		return resolutionf("--version is required")
	}
	if len(f.profiles) == 0 {
		return resolutionf("--profiles is required")
	}
	return nil
}

func handleSwiftPackageCommand(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("swiftpackage", flag.ContinueOnError)
	var (
		rf            releaseFlags
		checksumsFile string
	)
	fs.StringVar(&checksumsFile, "checksums-file", "", "JSON or YAML map of profile/variant to sha256")
	if err := rf.parse(fs, args); err != nil {
		return err
	}
	s, err := newSession(rf.baseDir)
	if err != nil {
		return err
	}

	gen := &SwiftPackageGenerator{
		BaseDir:  s.BaseDir,
		RepoURL:  s.Config.RepoURL(),
		Profiles: s.Profiles,
		Remote:   newRemoteChecksummer(),
	}
	if checksumsFile != "" {
		if gen.Checksums, err = LoadChecksumMap(checksumsFile); err != nil {
			return err
		}
	}
	out, err := gen.Generate(ctx, rf.version, rf.profiles)
	if err != nil {
		return err
	}
	colArrow.Print("-> ")
	colSuccess.Printf("Swift package manifest written to %s\n", out)
	return nil
}

func handleJitpackCommand(args []string) error {
	fs := flag.NewFlagSet("jitpack", flag.ContinueOnError)
	var rf releaseFlags
	if err := rf.parse(fs, args); err != nil {
		return err
	}
	s, err := newSession(rf.baseDir)
	if err != nil {
		return err
	}
	out, err := GenerateJitpack(s.BaseDir, s.Config.RepoURL(), rf.version, s.Profiles, rf.profiles)
	if err != nil {
		return err
	}
	colArrow.Print("-> ")
	colSuccess.Printf("JitPack descriptor written to %s\n", out)
	return nil
}

func handleChecksumCommand(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: sdkbuild checksum <file|url>...")
	}
	return printChecksums(ctx, os.Stdout, newRemoteChecksummer(), args)
}

// printChecksums writes "sha256  b3  name" per local file and "sha256  url"
// per remote artifact.
func printChecksums(ctx context.Context, w io.Writer, remote *RemoteChecksummer, args []string) error {
	for _, arg := range args {
		if strings.HasPrefix(arg, "http://") || strings.HasPrefix(arg, "https://") {
			sum, err := remote.SHA256(ctx, arg)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%s  %s\n", sum, arg)
			continue
		}
		d, err := ChecksumFile(arg)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s  %s  %s\n", d.SHA256, d.B3Sum, arg)
	}
	return nil
}

func handleInspectCommand(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: sdkbuild inspect <library>")
	}
	arches, err := FatArchitectures(args[0])
	if err != nil {
		return err
	}
	colArrow.Print("-> ")
	colSuccess.Printf("%s: ", filepath.Base(args[0]))
	colNote.Printf("%s\n", strings.Join(arches, " "))
	return nil
}

func handlePublishCommand(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("publish", flag.ContinueOnError)
	var (
		baseDir, platform string
		opts              PublishOptions
	)
	fs.StringVar(&baseDir, "base-dir", "", "SDK checkout")
	fs.StringVar(&platform, "platform", "", "Only publish ios or android artifacts")
	fs.BoolVar(&opts.DryRun, "dry-run", false, "Show what would be uploaded")
	fs.BoolVar(&opts.Yes, "yes", false, "Do not ask for confirmation")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if platform != "" && platform != "ios" && platform != "android" {
		return resolutionf("invalid platform %q (allowed: ios, android)", platform)
	}
	opts.Platform = platform

	s, err := newSession(baseDir)
	if err != nil {
		return err
	}
	return Publish(ctx, s.Config, s.BaseDir, opts)
}

func handleLogCommand(args []string) error {
	fs := flag.NewFlagSet("log", flag.ContinueOnError)
	var baseDir string
	fs.StringVar(&baseDir, "base-dir", "", "SDK checkout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	s, err := newSession(baseDir)
	if err != nil {
		return err
	}
	logDir := filepath.Join(s.BaseDir, "build", "logs")
	logs, err := listBuildLogs(logDir)
	if err != nil {
		return err
	}

	if fs.NArg() == 0 {
		if len(logs) == 0 {
			colArrow.Print("-> ")
			colWarn.Printf("No build logs in %s\n", logDir)
			return nil
		}
		for _, l := range logs {
			fmt.Printf("  %s\n", l.Name)
		}
		return nil
	}

	name := fs.Arg(0)
	for _, l := range logs {
		if l.Name != name {
			continue
		}
		lines, err := readLogLines(l.Path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", l.Path, err)
		}
		return RunPager(name, lines)
	}
	return fmt.Errorf("no build log for %s in %s", name, logDir)
}
