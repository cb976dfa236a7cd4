package sdkbuild

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// remoteIndexName is the bucket-wide index of every published artifact.
const remoteIndexName = "release-index.json"

// LocalRelease is an indexed artifact found in a dist directory.
type LocalRelease struct {
	Entry ReleaseEntry
	Path  string
}

// remoteName is the bucket key an artifact is published under.
func (l LocalRelease) remoteName() string {
	return l.Entry.Version + "/" + filepath.Base(l.Path)
}

// CollectReleases reads the release indexes under <base>/dist. An empty
// platform selects every platform.
func CollectReleases(baseDir, platform string) ([]LocalRelease, error) {
	distRoot := filepath.Join(baseDir, "dist")
	dirs := []string{distRoot}
	for _, sub := range []string{"ios", "ios_metal", "android"} {
		dirs = append(dirs, filepath.Join(distRoot, sub))
	}

	var releases []LocalRelease
	for _, dir := range dirs {
		index, err := LoadReleaseIndex(filepath.Join(dir, releaseIndexName))
		if err != nil {
			return nil, err
		}
		for _, e := range index {
			if platform != "" && e.Platform != platform {
				continue
			}
			path := filepath.Join(dir, e.Filename)
			if _, err := os.Stat(path); err != nil {
				warnf("Skipping %s: indexed but missing from %s", e.Filename, dir)
				continue
			}
			releases = append(releases, LocalRelease{Entry: e, Path: path})
		}
	}
	sort.Slice(releases, func(i, j int) bool { return releases[i].Path < releases[j].Path })
	return releases, nil
}

// PlanUploads returns the local artifacts missing from the remote index or
// differing from the published copy.
func PlanUploads(local []LocalRelease, remote []ReleaseEntry) []LocalRelease {
	published := make(map[string]ReleaseEntry, len(remote))
	for _, e := range remote {
		published[e.id()] = e
	}
	var plan []LocalRelease
	for _, l := range local {
		if r, ok := published[l.Entry.id()]; ok && r.B3Sum == l.Entry.B3Sum {
			continue
		}
		plan = append(plan, l)
	}
	return plan
}

// MergeReleaseIndex replaces remote entries by the uploaded ones.
func MergeReleaseIndex(remote, uploaded []ReleaseEntry) []ReleaseEntry {
	byID := make(map[string]ReleaseEntry, len(remote)+len(uploaded))
	for _, e := range remote {
		byID[e.id()] = e
	}
	for _, e := range uploaded {
		byID[e.id()] = e
	}
	merged := make([]ReleaseEntry, 0, len(byID))
	for _, e := range byID {
		merged = append(merged, e)
	}
	sort.Slice(merged, func(i, j int) bool {
		a, b := merged[i], merged[j]
		if a.Platform != b.Platform {
			return a.Platform < b.Platform
		}
		if a.Version != b.Version {
			return a.Version < b.Version
		}
		return a.Filename < b.Filename
	})
	return merged
}

// PublishOptions controls the publish command.
type PublishOptions struct {
	Platform string // ios, android or empty for both
	DryRun   bool
	Yes      bool // skip confirmation prompts
}

// Publish uploads new or changed dist artifacts to the release bucket and
// updates the remote index.
func Publish(ctx context.Context, cfg *Config, baseDir string, opts PublishOptions) error {
	local, err := CollectReleases(baseDir, opts.Platform)
	if err != nil {
		return err
	}
	if len(local) == 0 {
		colArrow.Print("-> ")
		colWarn.Println("No indexed artifacts in dist; build with packaging enabled first")
		return nil
	}

	r2, err := NewR2Client(ctx, cfg)
	if err != nil {
		return err
	}

	colArrow.Print("-> ")
	colSuccess.Println("Fetching remote index")
	var remote []ReleaseEntry
	if data, err := r2.DownloadFile(ctx, remoteIndexName); err != nil {
		debugf("Remote index not found or error fetching: %v\n", err)
	} else if remote, err = ParseReleaseIndex(data); err != nil {
		return fmt.Errorf("failed to parse remote index: %w", err)
	}

	plan := PlanUploads(local, remote)
	if len(plan) == 0 {
		colArrow.Print("-> ")
		colSuccess.Println("Everything up to date.")
		return nil
	}

	var uploaded []ReleaseEntry
	for _, l := range plan {
		name := l.remoteName()
		if opts.DryRun {
			colArrow.Print("-> ")
			colNote.Printf("would upload %s (%s)\n", name, humanReadableSize(l.Entry.Size))
			continue
		}
		if !opts.Yes && !askForConfirmation(colWarn, "-> Upload %s (%s)? ", name, humanReadableSize(l.Entry.Size)) {
			continue
		}
		colArrow.Print("-> ")
		colSuccess.Printf("Uploading %s\n", name)
		if err := r2.UploadLocalFile(ctx, name, l.Path); err != nil {
			return fmt.Errorf("failed to upload %s: %w", name, err)
		}
		entry := l.Entry
		entry.Filename = name
		uploaded = append(uploaded, entry)
	}
	if len(uploaded) == 0 {
		return nil
	}

	colArrow.Print("-> ")
	colSuccess.Println("Updating remote index")
	data, err := EncodeReleaseIndex(MergeReleaseIndex(remote, uploaded))
	if err != nil {
		return err
	}
	if err := r2.UploadFile(ctx, remoteIndexName, data); err != nil {
		return fmt.Errorf("failed to upload index: %w", err)
	}

	if objects, err := r2.ListObjects(ctx); err == nil {
		var total int64
		for _, obj := range objects {
			total += obj.Size
		}
		colArrow.Print("-> ")
		colSuccess.Printf("Storage used: ")
		colNote.Printf("%s in %d objects\n", humanReadableSize(total), len(objects))
	}
	colSuccess.Printf("Published %d artifact(s).\n", len(uploaded))
	return nil
}

var promptInput io.Reader = os.Stdin

// askForConfirmation prompts for a yes/no answer; empty input means yes.
func askForConfirmation(p colorPrinter, format string, a ...any) bool {
	reader := bufio.NewReader(promptInput)
	prompt := fmt.Sprintf("%s [Y/n]: ", fmt.Sprintf(format, a...))
	for {
		cPrintf(p, "%s", prompt)
		response, err := reader.ReadString('\n')
		if err != nil && response == "" {
			return false
		}
		switch strings.ToLower(strings.TrimSpace(response)) {
		case "", "y", "yes":
			return true
		case "n", "no":
			return false
		}
		cPrintf(colWarn, "Invalid input.\n")
	}
}

func humanReadableSize(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}
