package sdkbuild

import (
	"slices"
	"strings"
)

// Platform is the platform family a target compiles for. Only targets of the
// same family may be merged into one library.
type Platform string

const (
	PlatformOS        Platform = "OS"
	PlatformSimulator Platform = "SIMULATOR"
	PlatformCatalyst  Platform = "MACCATALYST"
	PlatformAndroid   Platform = "ANDROID"
)

// Target describes one buildable architecture. It is derived purely from its raw id.
type Target struct {
	Raw        string   // id as given on the command line, e.g. "arm64-simulator"
	Platform   Platform // platform family
	Arch       string   // compiler architecture, suffix stripped
	Toolchain  string   // Xcode SDK name on iOS, toolchain name on Android
	MinVersion string   // deployment target (iOS) or native API level (Android)
}

func (t Target) String() string { return t.Raw }

// BuildName is the per-target build directory name.
func (t Target) BuildName() string {
	if t.Platform == PlatformAndroid {
		return t.Raw
	}
	return string(t.Platform) + "-" + t.Arch
}

const (
	catalystSuffix  = "-maccatalyst"
	simulatorSuffix = "-simulator"
)

// IOSTargets lists every supported iOS target id in build order.
var IOSTargets = []string{
	"i386",
	"x86_64",
	"armv7",
	"arm64",
	"arm64-simulator",
	"x86_64-maccatalyst",
	"arm64-maccatalyst",
}

// legacy 32-bit targets are never part of "all"
var iosLegacyTargets = []string{"i386", "armv7"}

var iosSDKNames = map[Platform]string{
	PlatformOS:        "iphoneos",
	PlatformSimulator: "iphonesimulator",
	PlatformCatalyst:  "macosx",
}

// AndroidABIs lists every supported Android ABI in build order.
var AndroidABIs = []string{
	"armeabi",
	"armeabi-v7a",
	"x86",
	"mips",
	"arm64-v8a",
	"x86_64",
	"mips64",
}

var androidToolchains = map[string]string{
	"armeabi":     "arm-linux-androideabi",
	"armeabi-v7a": "arm-linux-androideabi",
	"x86":         "x86",
	"mips":        "mipsel-linux-android",
	"arm64-v8a":   "aarch64-linux-android",
	"x86_64":      "x86_64",
	"mips64":      "mips64el-linux-android",
}

// ResolveIOSTarget maps a raw iOS id to its descriptor.
func ResolveIOSTarget(raw string) (Target, error) {
	if !slices.Contains(IOSTargets, raw) {
		return Target{}, &UnknownTargetError{Platform: "iOS", ID: raw, Supported: IOSTargets}
	}

	t := Target{Raw: raw}
	switch {
	case strings.HasSuffix(raw, catalystSuffix):
		t.Platform = PlatformCatalyst
		t.Arch = strings.TrimSuffix(raw, catalystSuffix)
	case strings.HasSuffix(raw, simulatorSuffix):
		t.Platform = PlatformSimulator
		t.Arch = strings.TrimSuffix(raw, simulatorSuffix)
	case strings.HasPrefix(raw, "arm"):
		t.Platform = PlatformOS
		t.Arch = raw
	default:
		t.Platform = PlatformSimulator
		t.Arch = raw
	}
	t.Toolchain = iosSDKNames[t.Platform]

	switch {
	case t.Platform == PlatformCatalyst:
		t.MinVersion = "11.3"
	case t.Arch == "i386":
		t.MinVersion = "11.0"
	default:
		t.MinVersion = "9.0"
	}
	return t, nil
}

// ResolveAndroidTarget maps a raw Android ABI to its descriptor for the given compiler.
func ResolveAndroidTarget(raw, compiler string) (Target, error) {
	prefix, ok := androidToolchains[raw]
	if !ok {
		return Target{}, &UnknownTargetError{Platform: "Android", ID: raw, Supported: AndroidABIs}
	}
	t := Target{
		Raw:        raw,
		Platform:   PlatformAndroid,
		Arch:       raw,
		Toolchain:  prefix + "-" + strings.TrimPrefix(compiler, "gcc-"),
		MinVersion: "android-10",
	}
	if strings.Contains(raw, "64") {
		t.MinVersion = "android-21"
	}
	return t, nil
}

// IOSSelection holds the switches that shape the "all" expansion on iOS.
type IOSSelection struct {
	XCFramework bool
	MetalANGLE  bool
}

// ResolveIOSTargets expands and resolves the requested iOS targets. An empty
// list or "all" selects every target allowed by sel.
func ResolveIOSTargets(ids []string, sel IOSSelection) ([]Target, error) {
	var raws []string
	for _, id := range ids {
		if id == "all" {
			raws = appendUnique(raws, expandIOSAll(sel)...)
			continue
		}
		raws = appendUnique(raws, id)
	}
	if len(ids) == 0 {
		raws = expandIOSAll(sel)
	}

	targets := make([]Target, 0, len(raws))
	for _, raw := range raws {
		t, err := ResolveIOSTarget(raw)
		if err != nil {
			return nil, err
		}
		if t.Platform == PlatformCatalyst && !sel.MetalANGLE {
			return nil, resolutionf("target %s requires MetalANGLE (--use-metalangle)", raw)
		}
		targets = append(targets, t)
	}
	return targets, nil
}

func expandIOSAll(sel IOSSelection) []string {
	var out []string
	for _, raw := range IOSTargets {
		if slices.Contains(iosLegacyTargets, raw) {
			continue
		}
		if !sel.XCFramework && (strings.HasSuffix(raw, simulatorSuffix) || strings.HasSuffix(raw, catalystSuffix)) {
			continue
		}
		if !sel.MetalANGLE && strings.HasSuffix(raw, catalystSuffix) {
			continue
		}
		out = append(out, raw)
	}
	return out
}

// ResolveAndroidTargets expands and resolves the requested ABIs. An empty
// list or "all" selects every ABI.
func ResolveAndroidTargets(ids []string, compiler string) ([]Target, error) {
	var raws []string
	for _, id := range ids {
		if id == "all" {
			continue
		}
		if _, err := ResolveAndroidTarget(id, compiler); err != nil {
			return nil, err
		}
		raws = appendUnique(raws, id)
	}
	if len(ids) == 0 || slices.Contains(ids, "all") {
		raws = AndroidABIs
	}
	targets := make([]Target, 0, len(raws))
	for _, raw := range raws {
		t, err := ResolveAndroidTarget(raw, compiler)
		if err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}
	return targets, nil
}
