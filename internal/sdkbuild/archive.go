package sdkbuild

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"
	"github.com/ulikunitz/xz"
)

// ArchiveFormat selects the container used for distribution archives.
type ArchiveFormat string

const (
	FormatNone  ArchiveFormat = "none"
	FormatZip   ArchiveFormat = "zip"
	FormatTarGz ArchiveFormat = "tar.gz"
	FormatTarXz ArchiveFormat = "tar.xz"
	FormatTarZs ArchiveFormat = "tar.zst"
)

var archiveFormats = []ArchiveFormat{FormatNone, FormatZip, FormatTarGz, FormatTarXz, FormatTarZs}

// ParseArchiveFormat validates a --archive-format value.
func ParseArchiveFormat(s string) (ArchiveFormat, error) {
	for _, f := range archiveFormats {
		if string(f) == s {
			return f, nil
		}
	}
	return "", resolutionf("unknown archive format %q (allowed: %v)", s, archiveFormats)
}

// Ext is the file extension including the leading dot.
func (f ArchiveFormat) Ext() string { return "." + string(f) }

// Archiver writes distribution archives. The archive always holds a single
// top-level entry (the bundle directory itself).
type Archiver struct {
	Exec    *Executor
	Ditto   string
	LogPath string
}

// Create archives dir/entry into dest using the given format. Zip archives
// go through ditto when it is installed so resource forks are handled the
// way Xcode expects; otherwise they are written natively.
func (a *Archiver) Create(format ArchiveFormat, dir, entry, dest string) error {
	if err := os.Remove(dest); err != nil && !os.IsNotExist(err) {
		return err
	}
	switch format {
	case FormatZip:
		if a.Ditto != "" && haveTool(a.Ditto) {
			return a.Exec.RunTool(ToolRun{
				Stage: "package", Dir: dir, LogPath: a.LogPath, Tool: a.Ditto,
				Args: []string{"-c", "-k", "--sequesterRsrc", "--keepParent", entry, dest},
			})
		}
		return writeZip(dir, entry, dest)
	case FormatTarGz, FormatTarXz, FormatTarZs:
		return writeTar(format, dir, entry, dest)
	}
	return fmt.Errorf("cannot create %s archive", format)
}

// walkEntry visits dir/entry and reports paths relative to dir using '/'.
func walkEntry(dir, entry string, fn func(path, name string, info os.FileInfo) error) error {
	root := filepath.Join(dir, entry)
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		return fn(path, filepath.ToSlash(rel), info)
	})
}

func writeZip(dir, entry, dest string) error {
	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	err = walkEntry(dir, entry, func(path, name string, info os.FileInfo) error {
		hdr, err := zip.FileInfoHeader(info)
		if err != nil {
			return err
		}
		hdr.Name = name
		switch {
		case info.IsDir():
			hdr.Name += "/"
			_, err := zw.CreateHeader(hdr)
			return err
		case info.Mode()&os.ModeSymlink != 0:
			target, err := os.Readlink(path)
			if err != nil {
				return fmt.Errorf("readlink %s: %w", path, err)
			}
			hdr.Method = zip.Store
			w, err := zw.CreateHeader(hdr)
			if err != nil {
				return err
			}
			_, err = io.WriteString(w, target)
			return err
		case info.Mode().IsRegular():
			hdr.Method = zip.Deflate
			w, err := zw.CreateHeader(hdr)
			if err != nil {
				return err
			}
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()
			_, err = io.Copy(w, f)
			return err
		}
		return nil
	})
	if err != nil {
		zw.Close()
		return fmt.Errorf("failed to add files to archive: %w", err)
	}
	if err := zw.Close(); err != nil {
		return err
	}
	return out.Close()
}

func writeTar(format ArchiveFormat, dir, entry, dest string) error {
	outFile, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create tarball file: %w", err)
	}
	defer outFile.Close()

	var cw io.WriteCloser
	switch format {
	case FormatTarGz:
		cw = pgzip.NewWriter(outFile)
	case FormatTarXz:
		cw, err = xz.NewWriter(outFile)
	case FormatTarZs:
		cw, err = zstd.NewWriter(outFile)
	}
	if err != nil {
		return fmt.Errorf("failed to create %s writer: %w", format, err)
	}

	tw := tar.NewWriter(cw)
	err = walkEntry(dir, entry, func(path, name string, info os.FileInfo) error {
		var linkTarget string
		if info.Mode()&os.ModeSymlink != 0 {
			target, rerr := os.Readlink(path)
			if rerr != nil {
				return fmt.Errorf("readlink %s: %w", path, rerr)
			}
			linkTarget = target
		}
		hdr, err := tar.FileInfoHeader(info, linkTarget)
		if err != nil {
			return err
		}
		hdr.Name = name
		if info.IsDir() {
			hdr.Name += "/"
		}
		hdr.Uid, hdr.Gid = 0, 0
		hdr.Uname, hdr.Gname = "", ""
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	})
	if err != nil {
		tw.Close()
		cw.Close()
		return fmt.Errorf("failed to add files to tarball: %w", err)
	}
	if err := tw.Close(); err != nil {
		return err
	}
	if err := cw.Close(); err != nil {
		return err
	}
	return outFile.Close()
}

// addFileToZip stores src as name inside an existing zip, replacing any
// entry of the same name.
func addFileToZip(archive, name, src string) error {
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return err
	}
	defer zr.Close()

	tmp := archive + ".partial"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	defer os.Remove(tmp)
	defer out.Close()

	zw := zip.NewWriter(out)
	for _, f := range zr.File {
		if f.Name == name {
			continue
		}
		if err := zw.Copy(f); err != nil {
			zw.Close()
			return fmt.Errorf("failed to copy %s: %w", f.Name, err)
		}
	}

	info, err := os.Stat(src)
	if err != nil {
		zw.Close()
		return err
	}
	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		zw.Close()
		return err
	}
	hdr.Name = name
	hdr.Method = zip.Deflate
	w, err := zw.CreateHeader(hdr)
	if err != nil {
		zw.Close()
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		zw.Close()
		return err
	}
	_, err = io.Copy(w, in)
	in.Close()
	if err != nil {
		zw.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	zr.Close()
	return os.Rename(tmp, archive)
}
