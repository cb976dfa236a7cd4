package sdkbuild

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	quotedImportRe = regexp.MustCompile(`^(\s*#import\s+)"([^"]*)"(.*)$`)
	defineLineRe   = regexp.MustCompile(`^\s*#define\s+(\w+)`)
)

// metalANGLEHeaders are installed under their own names.
var metalANGLEHeaders = []string{
	"MGLKit.h",
	"MGLKitPlatform.h",
	"MGLContext.h",
	"MGLKView.h",
	"MGLLayer.h",
	"MGLKViewController.h",
}

// HeaderTransformer installs the public headers of the framework.
type HeaderTransformer struct {
	Framework   string
	Prefix      string
	Passthrough []string // third-party prefixes that are never renamed
}

func newHeaderTransformer() *HeaderTransformer {
	return &HeaderTransformer{
		Framework:   FrameworkName,
		Prefix:      HeaderPrefix,
		Passthrough: []string{"MGL"},
	}
}

// InstalledName maps a header reference to the flat name it is installed
// under. Names that already carry the prefix are returned unchanged.
func (h *HeaderTransformer) InstalledName(ref string) string {
	name := ref
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	if strings.HasPrefix(name, h.Prefix) {
		return name
	}
	for _, p := range h.Passthrough {
		if strings.HasPrefix(name, p) {
			return name
		}
	}
	return h.Prefix + name
}

var hoistedImportPrologue = []string{"#ifdef __cplusplus", "}", "#endif"}

// RewritePublicHeader rewrites quoted imports to installed names and moves
// imports found inside an open extern "C" block out of the C linkage region.
// The block is tracked by brace depth from its extern "C" line, so imports
// after the closing brace are left alone.
func (h *HeaderTransformer) RewritePublicHeader(src string) string {
	lines := strings.Split(src, "\n")
	out := make([]string, 0, len(lines))
	var (
		inExtern bool
		opened   bool
		depth    int
	)
	for _, line := range lines {
		if strings.Contains(line, `extern "C"`) {
			inExtern, opened, depth = true, false, 0
		}
		if m := quotedImportRe.FindStringSubmatch(line); m != nil {
			line = m[1] + `"` + h.InstalledName(m[2]) + `"` + m[3]
			if inExtern && opened && depth > 0 {
				out = append(out, hoistedImportPrologue...)
				out = append(out, line, "#ifdef __cplusplus", `extern "C" {`, "#endif")
				continue
			}
			out = append(out, line)
			continue
		}
		if inExtern {
			if n := strings.Count(line, "{"); n > 0 {
				opened = true
				depth += n
			}
			depth -= strings.Count(line, "}")
			if opened && depth <= 0 {
				inExtern = false
			}
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

// defineDirective renders "K" or "K=V" as a preprocessor line.
func defineDirective(define string) (name, line string) {
	name, value, found := strings.Cut(define, "=")
	if found {
		return name, fmt.Sprintf("#define %s %s", name, value)
	}
	return name, "#define " + name
}

// RewriteUmbrella turns quoted imports into framework imports and injects
// one #define per flag right after the first #define (or at the top).
// Flags that are already defined are not added twice.
func (h *HeaderTransformer) RewriteUmbrella(src string, defines []string) string {
	lines := strings.Split(src, "\n")
	insertAt := -1
	defined := make(map[string]bool)
	for i, line := range lines {
		if m := quotedImportRe.FindStringSubmatch(line); m != nil {
			lines[i] = fmt.Sprintf("#import <%s/%s>", h.Framework, h.InstalledName(m[2]))
			continue
		}
		if m := defineLineRe.FindStringSubmatch(line); m != nil {
			defined[m[1]] = true
			if insertAt < 0 {
				insertAt = i + 1
			}
		}
	}
	if insertAt < 0 {
		insertAt = 0
	}

	var inject []string
	for _, d := range defines {
		name, line := defineDirective(d)
		if name == "" || defined[name] {
			continue
		}
		defined[name] = true
		inject = append(inject, line)
	}

	out := make([]string, 0, len(lines)+len(inject))
	out = append(out, lines[:insertAt]...)
	out = append(out, inject...)
	out = append(out, lines[insertAt:]...)
	return strings.Join(out, "\n")
}

// ModuleMap returns the clang module map exporting every header.
func (h *HeaderTransformer) ModuleMap() string {
	return fmt.Sprintf("module %s {\n    export *\n    module * { export * }\n}\n", h.Framework)
}

// HeaderInstall tells Install where headers and the module map go.
type HeaderInstall struct {
	BaseDir    string
	HeadersDir string
	ModuleMap  string
	MetalANGLE bool
	Defines    []string
}

// Install copies and rewrites every public header and writes the module map.
// It returns the installed header names.
func (h *HeaderTransformer) Install(in HeaderInstall) ([]string, error) {
	proxies := filepath.Join(in.BaseDir, "generated", "ios-objc", "proxies")
	if st, err := os.Stat(proxies); err != nil || !st.IsDir() {
		return nil, &IntegrityError{Artifact: proxies, Msg: "generated proxies missing; run the wrapper generator first", Err: err}
	}
	if err := os.MkdirAll(in.HeadersDir, 0o755); err != nil {
		return nil, err
	}

	var public []string
	headers, err := collectFiles(proxies, ".h")
	if err != nil {
		return nil, err
	}
	for _, src := range headers {
		data, err := os.ReadFile(src)
		if err != nil {
			return nil, err
		}
		name := filepath.Base(src)
		if err := os.WriteFile(filepath.Join(in.HeadersDir, name), []byte(h.RewritePublicHeader(string(data))), 0o644); err != nil {
			return nil, err
		}
		public = append(public, name)
	}

	extras := []string{
		filepath.Join(in.BaseDir, "ios", "objc", "utils", "ExceptionWrapper.h"),
		filepath.Join(in.BaseDir, "ios", "objc", "ui", "MapView.h"),
	}
	if in.MetalANGLE {
		for _, name := range metalANGLEHeaders {
			extras = append(extras, filepath.Join(in.BaseDir, "libs-external", "angle-metal", "include", name))
		}
	}
	for _, src := range extras {
		name := h.InstalledName(src)
		if err := copyFile(src, filepath.Join(in.HeadersDir, name)); err != nil {
			return nil, &IntegrityError{Artifact: name, Msg: "missing public header", Err: err}
		}
		public = append(public, name)
	}

	umbrellaSrc := filepath.Join(in.BaseDir, "ios", "objc", h.Framework+".h")
	data, err := os.ReadFile(umbrellaSrc)
	if err != nil {
		return nil, &IntegrityError{Artifact: h.Framework + ".h", Msg: "missing umbrella header", Err: err}
	}
	umbrella := h.RewriteUmbrella(string(data), in.Defines)
	if err := os.WriteFile(filepath.Join(in.HeadersDir, h.Framework+".h"), []byte(umbrella), 0o644); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(in.ModuleMap), 0o755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(in.ModuleMap, []byte(h.ModuleMap()), 0o644); err != nil {
		return nil, err
	}
	return public, nil
}
