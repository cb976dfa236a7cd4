package sdkbuild

import (
	"embed"

	"github.com/gookit/color"
)

// Product identity
const (
	FrameworkName = "CartoMobileSDK"
	LibraryName   = "carto_mobile_sdk"
	HeaderPrefix  = "NT"
	SDKVersion    = "4.4.9"
	DefaultRepo   = "https://github.com/Akylas/mobile-sdk"

	// BuildJobs is passed to the native build step; targets themselves run sequentially.
	BuildJobs = 4
)

// Global variables
var (
	Debug      bool
	Verbose    bool
	ConfigFile = "sdkbuild.conf"
	version    = "dev"     // overridden at build time
	buildDate  = "unknown" // overridden at build time

	//go:embed assets/profiles.yaml
	embeddedAssets embed.FS
)

// color helpers
var (
	colWarn    = color.Warn
	colError   = color.Error
	colSuccess = color.HEX("#1976D2")
	colArrow   = color.HEX("#FFEB3B")
	colNote    = color.Tag("notice")
)
