package sdkbuild

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	jarName     = "carto-mobile-sdk.jar"
	javaRelease = "1.6"
)

// collectFiles walks root and returns files with the given suffix, sorted.
// A missing root yields no files.
func collectFiles(root, suffix string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == root {
				return filepath.SkipDir
			}
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), suffix) {
			files = append(files, path)
		}
		return nil
	})
	sort.Strings(files)
	return files, err
}

// BuildAndroidJAR compiles the generated proxies and the hand-written Java
// sources and archives them into dist/android/carto-mobile-sdk.jar.
func (n *NativeInvoker) BuildAndroidJAR() (string, error) {
	bc := n.Config
	buildDir := bc.BuildDir("android_java", "")
	logPath := filepath.Join(bc.LogDir(), "android_java.log")
	step(bc.logger(), "Compiling Java wrappers")

	if err := os.RemoveAll(buildDir); err != nil {
		return "", err
	}

	var sources []string
	for _, root := range []string{
		filepath.Join(bc.BaseDir, "generated", "android-java", "proxies"),
		filepath.Join(bc.BaseDir, "android", "java"),
	} {
		files, err := collectFiles(root, ".java")
		if err != nil {
			return "", fmt.Errorf("failed to scan %s: %w", root, err)
		}
		sources = append(sources, files...)
	}
	if len(sources) == 0 {
		return "", &IntegrityError{Artifact: jarName, Msg: "no Java sources found; run the wrapper generator first"}
	}

	args := []string{
		"-g:vars",
		"-source", javaRelease,
		"-target", javaRelease,
		"-bootclasspath", filepath.Join(bc.BaseDir, "scripts", "android", "rt.jar"),
		"-classpath", filepath.Join(bc.AndroidSDK, "platforms", "android-10", "android.jar"),
		"-d", buildDir,
	}
	if err := n.Exec.RunTool(ToolRun{
		Stage: "javac", Target: "android_java", Dir: buildDir, LogPath: logPath,
		Tool: bc.Tools.Javac, Args: append(args, sources...),
	}); err != nil {
		return "", err
	}

	classFiles, err := collectFiles(buildDir, ".class")
	if err != nil {
		return "", err
	}
	jarArgs := []string{"cf", jarName}
	for _, f := range classFiles {
		rel, err := filepath.Rel(buildDir, f)
		if err != nil {
			return "", err
		}
		jarArgs = append(jarArgs, rel)
	}
	if err := n.Exec.RunTool(ToolRun{
		Stage: "jar", Target: "android_java", Dir: buildDir, LogPath: logPath,
		Tool: bc.Tools.Jar, Args: jarArgs,
	}); err != nil {
		return "", err
	}

	distDir := bc.DistDir("android")
	if err := os.MkdirAll(distDir, 0o755); err != nil {
		return "", err
	}
	dest := filepath.Join(distDir, jarName)
	if err := copyFile(filepath.Join(buildDir, jarName), dest); err != nil {
		return "", err
	}
	finishLog(logPath)
	return dest, nil
}

// BuildAndroidAAR runs the gradle library project and stores the result as
// dist/android/<aar dist name>, with R.txt added to the archive.
func (n *NativeInvoker) BuildAndroidAAR() (string, error) {
	bc := n.Config
	buildDir := bc.BuildDir("android-aar", "")
	logPath := filepath.Join(bc.LogDir(), "android-aar.log")
	step(bc.logger(), "Assembling AAR (%s)", bc.Configuration)

	if err := n.Exec.RunTool(ToolRun{
		Stage: "gradle", Target: "android-aar", Dir: filepath.Join(bc.BaseDir, "scripts"), LogPath: logPath,
		Tool: bc.Tools.Gradle,
		Args: []string{"-p", "android-aar", "--project-cache-dir", buildDir, "assemble" + string(bc.Configuration)},
	}); err != nil {
		return "", err
	}

	distDir := bc.DistDir("android")
	if err := os.MkdirAll(distDir, 0o755); err != nil {
		return "", err
	}
	src := filepath.Join(buildDir, "outputs", "aar", "android-aar-"+strings.ToLower(string(bc.Configuration))+".aar")
	dest := filepath.Join(distDir, AndroidAARDistName(bc.BuildVersion, bc.Qualifier()))
	if err := copyFile(src, dest); err != nil {
		return "", &IntegrityError{Artifact: filepath.Base(dest), Msg: "gradle output missing", Err: err}
	}

	rtxt := filepath.Join(bc.BaseDir, "scripts", "android-aar", "src", "main", "R.txt")
	if err := addFileToZip(dest, "R.txt", rtxt); err != nil {
		return "", &IntegrityError{Artifact: filepath.Base(dest), Msg: "failed to add R.txt", Err: err}
	}
	finishLog(logPath)
	return dest, nil
}
