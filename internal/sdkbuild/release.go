package sdkbuild

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

const releaseIndexName = "release-index.json"

// ReleaseEntry represents a single distribution artifact in a release index.
type ReleaseEntry struct {
	Name     string `json:"name"`
	Platform string `json:"platform"` // ios or android
	Variant  string `json:"variant,omitempty"`
	Version  string `json:"version"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	SHA256   string `json:"sha256"`
	B3Sum    string `json:"b3sum"`
}

// id identifies the artifact slot an entry occupies, independent of its contents.
func (e ReleaseEntry) id() string {
	return fmt.Sprintf("%s-%s-%s-%s", e.Platform, e.Name, e.Variant, e.Version)
}

// ParseReleaseIndex reads the index from JSON data.
func ParseReleaseIndex(data []byte) ([]ReleaseEntry, error) {
	var index []ReleaseEntry
	if len(data) == 0 {
		return index, nil
	}
	err := json.Unmarshal(data, &index)
	return index, err
}

// LoadReleaseIndex reads an index file; a missing file is an empty index.
func LoadReleaseIndex(path string) ([]ReleaseEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	index, err := ParseReleaseIndex(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return index, nil
}

// EncodeReleaseIndex renders the index as indented JSON.
func EncodeReleaseIndex(index []ReleaseEntry) ([]byte, error) {
	return json.MarshalIndent(index, "", "  ")
}

// SaveReleaseIndex writes the index sorted by file name.
func SaveReleaseIndex(path string, index []ReleaseEntry) error {
	sort.Slice(index, func(i, j int) bool { return index[i].Filename < index[j].Filename })
	data, err := EncodeReleaseIndex(index)
	if err != nil {
		return err
	}
	return writeFileAtomic(path, data, 0o644)
}

// UpdateReleaseIndex checksums artifact and adds or replaces its entry in
// <distDir>/release-index.json.
func UpdateReleaseIndex(distDir string, entry ReleaseEntry, artifact string) error {
	d, err := ChecksumFile(artifact)
	if err != nil {
		return err
	}
	entry.Filename = filepath.Base(artifact)
	entry.Size = d.Size
	entry.SHA256 = d.SHA256
	entry.B3Sum = d.B3Sum

	path := filepath.Join(distDir, releaseIndexName)
	index, err := LoadReleaseIndex(path)
	if err != nil {
		return err
	}
	kept := index[:0]
	for _, e := range index {
		if e.Filename != entry.Filename {
			kept = append(kept, e)
		}
	}
	return SaveReleaseIndex(path, append(kept, entry))
}
