package sdkbuild

import (
	"bytes"
	"debug/macho"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// MergedLibrary is one multi-architecture library built from several artifacts.
type MergedLibrary struct {
	Platform Platform // set when every input shared one platform family
	Path     string
	Arches   []string
}

// ArtifactGroup is the set of artifacts of one platform family.
type ArtifactGroup struct {
	Platform  Platform
	Artifacts []Artifact
}

// GroupByPlatform partitions artifacts by platform family, keeping the order
// in which families first appear.
func GroupByPlatform(artifacts []Artifact) []ArtifactGroup {
	var groups []ArtifactGroup
	index := make(map[Platform]int)
	for _, a := range artifacts {
		i, ok := index[a.Target.Platform]
		if !ok {
			i = len(groups)
			index[a.Target.Platform] = i
			groups = append(groups, ArtifactGroup{Platform: a.Target.Platform})
		}
		groups[i].Artifacts = append(groups[i].Artifacts, a)
	}
	return groups
}

// Merger combines single-architecture libraries with lipo, or with the
// built-in fat writer when lipo is not installed.
type Merger struct {
	Exec    *Executor
	Lipo    string
	LogPath string
}

// Merge writes one fat library at out containing every input slice. Inputs
// must come from one operating system and carry distinct architectures.
// Nothing is left at out when the merge fails.
func (m *Merger) Merge(out string, inputs []Artifact) (MergedLibrary, error) {
	if len(inputs) == 0 {
		return MergedLibrary{}, &MergeError{Output: out, Msg: "no input libraries"}
	}

	var (
		slices   []fatSlice
		platform = inputs[0].Target.Platform
		owner    = make(map[string]string)
	)
	for _, in := range inputs {
		if !mergeable(in.Target.Platform, inputs[0].Target.Platform) {
			return MergedLibrary{}, &MergeError{Output: out,
				Msg: fmt.Sprintf("cannot merge %s with %s", in.Target.Raw, inputs[0].Target.Raw)}
		}
		if in.Target.Platform != platform {
			platform = ""
		}
		ss, err := readSlices(in.Path)
		if err != nil {
			return MergedLibrary{}, &MergeError{Output: out, Msg: "unreadable input " + in.Path, Err: err}
		}
		for _, s := range ss {
			key := s.key()
			if prev, dup := owner[key]; dup {
				return MergedLibrary{}, &MergeError{Output: out,
					Msg: fmt.Sprintf("architecture %s provided by both %s and %s", s.name(), prev, in.Target.Raw)}
			}
			owner[key] = in.Target.Raw
			slices = append(slices, s)
		}
	}

	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return MergedLibrary{}, &MergeError{Output: out, Msg: "cannot create output directory", Err: err}
	}
	tmp := out + ".partial"
	defer os.Remove(tmp)

	if m.Lipo != "" && haveTool(m.Lipo) {
		args := []string{"-output", tmp, "-create"}
		for _, in := range inputs {
			args = append(args, in.Path)
		}
		if err := m.Exec.RunTool(ToolRun{Stage: "merge", Tool: m.Lipo, Args: args, LogPath: m.LogPath}); err != nil {
			return MergedLibrary{}, &MergeError{Output: out, Msg: "lipo failed", Err: err}
		}
	} else {
		debugf("=> lipo not available, writing fat library %s natively\n", out)
		if err := writeFat(tmp, slices); err != nil {
			return MergedLibrary{}, &MergeError{Output: out, Msg: "failed to write fat library", Err: err}
		}
	}
	if err := os.Rename(tmp, out); err != nil {
		return MergedLibrary{}, &MergeError{Output: out, Msg: "failed to move merged library into place", Err: err}
	}

	arches := make([]string, len(slices))
	for i, s := range slices {
		arches[i] = s.name()
	}
	return MergedLibrary{Platform: platform, Path: out, Arches: arches}, nil
}

// mergeable reports whether slices of a and b may share one fat library.
// Device and simulator slices combine; Catalyst and Android only with themselves.
func mergeable(a, b Platform) bool {
	if a == b {
		return true
	}
	isolated := func(p Platform) bool { return p == PlatformCatalyst || p == PlatformAndroid }
	return !isolated(a) && !isolated(b)
}

// FatArchitectures lists the architecture slices of a library or object file.
func FatArchitectures(path string) ([]string, error) {
	ss, err := readSlices(path)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(ss))
	for i, s := range ss {
		names[i] = s.name()
	}
	return names, nil
}

const (
	fatHeaderSize  = 8
	fatArchSize    = 20
	cpuSubtypeMask = 0x00ffffff
	arMagic        = "!<arch>\n"
	arHeaderSize   = 60
)

// fatSlice is one architecture slice located inside a file on disk.
type fatSlice struct {
	Cpu    uint32
	SubCpu uint32
	Offset int64
	Size   int64
	Align  uint32
	src    string
}

func (s fatSlice) key() string {
	return fmt.Sprintf("%d/%d", s.Cpu, s.SubCpu&cpuSubtypeMask)
}

func (s fatSlice) name() string {
	sub := s.SubCpu & cpuSubtypeMask
	switch macho.Cpu(s.Cpu) {
	case macho.CpuArm64:
		if sub == 2 {
			return "arm64e"
		}
		return "arm64"
	case macho.CpuAmd64:
		return "x86_64"
	case macho.Cpu386:
		return "i386"
	case macho.CpuArm:
		switch sub {
		case 9:
			return "armv7"
		case 11:
			return "armv7s"
		case 12:
			return "armv7k"
		}
		return "arm"
	}
	return fmt.Sprintf("cputype%d", s.Cpu)
}

// alignFor returns the page alignment (as a power of two) lipo uses per cpu.
func alignFor(cpu uint32) uint32 {
	switch macho.Cpu(cpu) {
	case macho.CpuArm, macho.CpuArm64:
		return 14
	}
	return 12
}

// readSlices returns the slices of a fat file, or a single slice for a thin
// Mach-O object or static archive.
func readSlices(path string) ([]fatSlice, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return nil, err
	}

	hdr := make([]byte, fatHeaderSize)
	if _, err := f.ReadAt(hdr, 0); err != nil {
		return nil, fmt.Errorf("%s: too short: %w", path, err)
	}
	if binary.BigEndian.Uint32(hdr) == macho.MagicFat {
		n := binary.BigEndian.Uint32(hdr[4:])
		if n == 0 || n > 32 {
			return nil, fmt.Errorf("%s: implausible fat header (%d slices)", path, n)
		}
		out := make([]fatSlice, n)
		rec := make([]byte, fatArchSize)
		for i := range out {
			if _, err := f.ReadAt(rec, int64(fatHeaderSize+i*fatArchSize)); err != nil {
				return nil, fmt.Errorf("%s: truncated fat header: %w", path, err)
			}
			out[i] = fatSlice{
				Cpu:    binary.BigEndian.Uint32(rec[0:]),
				SubCpu: binary.BigEndian.Uint32(rec[4:]),
				Offset: int64(binary.BigEndian.Uint32(rec[8:])),
				Size:   int64(binary.BigEndian.Uint32(rec[12:])),
				Align:  binary.BigEndian.Uint32(rec[16:]),
				src:    path,
			}
		}
		return out, nil
	}

	cpu, sub, err := thinCPU(f, 0, st.Size())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return []fatSlice{{Cpu: cpu, SubCpu: sub, Offset: 0, Size: st.Size(), Align: alignFor(cpu), src: path}}, nil
}

// thinCPU reads the cpu type of a Mach-O object, or of the first Mach-O
// member of an ar archive.
func thinCPU(r io.ReaderAt, off, size int64) (uint32, uint32, error) {
	head := make([]byte, len(arMagic))
	if _, err := r.ReadAt(head, off); err != nil {
		return 0, 0, fmt.Errorf("not a Mach-O file or archive: %w", err)
	}
	if string(head) == arMagic {
		return archiveCPU(r, off, size)
	}
	return machoCPU(r, off)
}

func machoCPU(r io.ReaderAt, off int64) (uint32, uint32, error) {
	buf := make([]byte, 12)
	if _, err := r.ReadAt(buf, off); err != nil {
		return 0, 0, fmt.Errorf("not a Mach-O file: %w", err)
	}
	var bo binary.ByteOrder
	switch {
	case binary.LittleEndian.Uint32(buf) == macho.Magic32 || binary.LittleEndian.Uint32(buf) == macho.Magic64:
		bo = binary.LittleEndian
	case binary.BigEndian.Uint32(buf) == macho.Magic32 || binary.BigEndian.Uint32(buf) == macho.Magic64:
		bo = binary.BigEndian
	default:
		return 0, 0, errors.New("not a Mach-O file")
	}
	return bo.Uint32(buf[4:]), bo.Uint32(buf[8:]), nil
}

func archiveCPU(r io.ReaderAt, off, size int64) (uint32, uint32, error) {
	hdr := make([]byte, arHeaderSize)
	end := off + size
	for pos := off + int64(len(arMagic)); pos+arHeaderSize <= end; {
		if _, err := r.ReadAt(hdr, pos); err != nil {
			return 0, 0, fmt.Errorf("truncated archive: %w", err)
		}
		name := strings.TrimSpace(string(hdr[0:16]))
		memberSize, err := strconv.ParseInt(strings.TrimSpace(string(hdr[48:58])), 10, 64)
		if err != nil {
			return 0, 0, fmt.Errorf("bad archive member size: %w", err)
		}
		body := pos + arHeaderSize
		bodySize := memberSize
		if strings.HasPrefix(name, "#1/") {
			// BSD long name stored in front of the member data
			n, err := strconv.Atoi(name[3:])
			if err != nil {
				return 0, 0, fmt.Errorf("bad archive member name %q", name)
			}
			long := make([]byte, n)
			if _, err := r.ReadAt(long, body); err != nil {
				return 0, 0, err
			}
			name = string(bytes.TrimRight(long, "\x00"))
			body += int64(n)
			bodySize -= int64(n)
		}
		if !strings.HasPrefix(name, "__.SYMDEF") && name != "/" && name != "//" && bodySize >= 12 {
			if cpu, sub, err := machoCPU(r, body); err == nil {
				return cpu, sub, nil
			}
		}
		pos = pos + arHeaderSize + memberSize
		if pos%2 == 1 {
			pos++
		}
	}
	return 0, 0, errors.New("archive contains no Mach-O members")
}

// writeFat writes a universal binary with the given slices in order.
func writeFat(out string, slices []fatSlice) error {
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	defer f.Close()

	header := make([]byte, fatHeaderSize+fatArchSize*len(slices))
	binary.BigEndian.PutUint32(header[0:], macho.MagicFat)
	binary.BigEndian.PutUint32(header[4:], uint32(len(slices)))

	offsets := make([]int64, len(slices))
	next := int64(len(header))
	for i, s := range slices {
		align := int64(1) << s.Align
		next = (next + align - 1) &^ (align - 1)
		offsets[i] = next
		rec := header[fatHeaderSize+i*fatArchSize:]
		binary.BigEndian.PutUint32(rec[0:], s.Cpu)
		binary.BigEndian.PutUint32(rec[4:], s.SubCpu)
		binary.BigEndian.PutUint32(rec[8:], uint32(next))
		binary.BigEndian.PutUint32(rec[12:], uint32(s.Size))
		binary.BigEndian.PutUint32(rec[16:], s.Align)
		next += s.Size
	}
	if _, err := f.Write(header); err != nil {
		return err
	}

	written := int64(len(header))
	for i, s := range slices {
		if pad := offsets[i] - written; pad > 0 {
			if _, err := f.Write(make([]byte, pad)); err != nil {
				return err
			}
		}
		src, err := os.Open(s.src)
		if err != nil {
			return err
		}
		n, err := io.Copy(f, io.NewSectionReader(src, s.Offset, s.Size))
		src.Close()
		if err != nil {
			return err
		}
		written = offsets[i] + n
	}
	return f.Close()
}
