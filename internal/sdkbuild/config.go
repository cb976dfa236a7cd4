package sdkbuild

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// Config holds key=value settings from sdkbuild.conf merged with the environment.
type Config struct {
	Values map[string]string
	Path   string
}

// environment variables imported verbatim when the config file does not set them
var importedEnv = []string{"ANDROID_HOME", "ANDROID_NDK_HOME", "IOS_DEV_TEAM"}

// loadConfig reads a key=value file. A missing file is not an error.
func loadConfig(path string) (*Config, error) {
	cfg := &Config{Values: make(map[string]string), Path: path}

	file, err := os.Open(path)
	if err == nil {
		defer file.Close()
		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			parts := strings.SplitN(line, "=", 2)
			if len(parts) != 2 {
				continue
			}
			key := strings.TrimSpace(parts[0])
			val := strings.TrimSpace(parts[1])
			val = strings.Trim(val, `"'`)
			cfg.Values[key] = val
		}
		if err := scanner.Err(); err != nil {
			return cfg, err
		}
	}

	mergeEnvOverrides(cfg)
	return cfg, nil
}

// Merge SDKBUILD_* and R2_* env overrides
func mergeEnvOverrides(cfg *Config) {
	for _, env := range os.Environ() {
		if strings.HasPrefix(env, "SDKBUILD_") || strings.HasPrefix(env, "R2_") {
			parts := strings.SplitN(env, "=", 2)
			if len(parts) == 2 {
				cfg.Values[parts[0]] = parts[1]
			}
		}
	}

	for _, key := range importedEnv {
		if v := os.Getenv(key); v != "" {
			if _, exists := cfg.Values[key]; !exists {
				cfg.Values[key] = v
			}
		}
	}
}

// configPath returns the config file location for a base directory.
func configPath(baseDir string) string {
	if p := os.Getenv("SDKBUILD_CONFIG"); p != "" {
		return p
	}
	return filepath.Join(baseDir, ConfigFile)
}

func initConfig(cfg *Config) {
	Debug = cfg.Values["SDKBUILD_DEBUG"] == "1"
	Verbose = cfg.Values["SDKBUILD_VERBOSE"] == "1"
}

// RepoURL returns the release repository, overridable with SDKBUILD_REPO_URL.
func (c *Config) RepoURL() string {
	if u := c.Values["SDKBUILD_REPO_URL"]; u != "" {
		return strings.TrimRight(u, "/")
	}
	return DefaultRepo
}

// resolveBaseDir picks the SDK checkout: flag, then SDKBUILD_BASE_DIR, then the
// nearest parent of the working directory that contains scripts/build.
func resolveBaseDir(flagValue string) (string, error) {
	if flagValue != "" {
		return filepath.Abs(flagValue)
	}
	if env := os.Getenv("SDKBUILD_BASE_DIR"); env != "" {
		return filepath.Abs(env)
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for dir := wd; ; dir = filepath.Dir(dir) {
		if st, err := os.Stat(filepath.Join(dir, "scripts", "build")); err == nil && st.IsDir() {
			return dir, nil
		}
		if filepath.Dir(dir) == dir {
			break
		}
	}
	return wd, nil
}

// resolveAndroidPaths resolves the "auto" SDK and NDK sentinels.
func resolveAndroidPaths(cfg *Config, sdkPath, ndkPath string) (string, string, error) {
	if sdkPath == "auto" {
		sdkPath = cfg.Values["ANDROID_HOME"]
		if sdkPath == "" {
			return "", "", resolutionf("ANDROID_HOME variable not set")
		}
	}
	if ndkPath == "auto" {
		ndkPath = cfg.Values["ANDROID_NDK_HOME"]
		if ndkPath == "" {
			ndkPath = filepath.Join(sdkPath, "ndk-bundle")
		}
	}
	return sdkPath, ndkPath, nil
}
