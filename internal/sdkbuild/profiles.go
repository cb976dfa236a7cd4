package sdkbuild

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// Profile is one named build profile.
type Profile struct {
	ID           string `yaml:"-"`
	Description  string `yaml:"description"`
	Defines      string `yaml:"defines"`
	CMakeOptions string `yaml:"cmake-options"`
	Variant      string `yaml:"variant"`
	MetalANGLE   bool   `yaml:"metalangle"`
}

// Qualifier is the channel name embedded in distribution file names.
func (p Profile) Qualifier(metalANGLE bool) string {
	if p.Variant != "" {
		return p.Variant
	}
	if metalANGLE {
		return "metal"
	}
	return ""
}

// ProfileTable is the parsed profiles.yaml.
type ProfileTable struct {
	Default  string             `yaml:"default"`
	Profiles map[string]Profile `yaml:"profiles"`
	Source   string             `yaml:"-"`
}

// profilesPath is where a checkout may override the embedded table.
func profilesPath(baseDir string) string {
	return filepath.Join(baseDir, "scripts", "build", "profiles.yaml")
}

// LoadProfiles reads scripts/build/profiles.yaml from the checkout, falling
// back to the embedded table when the file does not exist.
func LoadProfiles(baseDir string) (*ProfileTable, error) {
	path := profilesPath(baseDir)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		path = "embedded:assets/profiles.yaml"
		data, err = embeddedAssets.ReadFile("assets/profiles.yaml")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read build profiles: %w", err)
	}
	return parseProfiles(data, path)
}

func parseProfiles(data []byte, source string) (*ProfileTable, error) {
	var pt ProfileTable
	if err := yaml.Unmarshal(data, &pt); err != nil {
		return nil, fmt.Errorf("failed to parse build profiles %s: %w", source, err)
	}
	if len(pt.Profiles) == 0 {
		return nil, fmt.Errorf("no build profiles defined in %s", source)
	}
	for id, p := range pt.Profiles {
		p.ID = id
		pt.Profiles[id] = p
	}
	if pt.Default == "" {
		pt.Default = pt.IDs()[0]
	}
	if _, ok := pt.Profiles[pt.Default]; !ok {
		return nil, fmt.Errorf("default profile %q is not defined in %s", pt.Default, source)
	}
	pt.Source = source
	return &pt, nil
}

// IDs returns the profile ids in sorted order.
func (pt *ProfileTable) IDs() []string {
	ids := make([]string, 0, len(pt.Profiles))
	for id := range pt.Profiles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Get returns the named profile; an empty id selects the default.
func (pt *ProfileTable) Get(id string) (Profile, error) {
	if id == "" {
		id = pt.Default
	}
	p, ok := pt.Profiles[id]
	if !ok {
		return Profile{}, resolutionf("unknown build profile %q (available: %v)", id, pt.IDs())
	}
	return p, nil
}

// Qualifier returns the dist-name qualifier for a profile id. Ids that are not
// in the table are used as-is, so published variants outside the table still
// get distinct names.
func (pt *ProfileTable) Qualifier(id string) string {
	if p, ok := pt.Profiles[id]; ok {
		return p.Qualifier(p.MetalANGLE)
	}
	return id
}

// Variant is the qualifier, or the profile id when the profile has none.
func (pt *ProfileTable) Variant(id string) string {
	if q := pt.Qualifier(id); q != "" {
		return q
	}
	return id
}

// IOSZipDistName is the file name of the zipped iOS framework.
func IOSZipDistName(version, qualifier string) string {
	if qualifier != "" {
		return fmt.Sprintf("carto-mobile-sdk-ios-%s-%s.zip", qualifier, version)
	}
	return fmt.Sprintf("carto-mobile-sdk-ios-%s.zip", version)
}

// AndroidAARDistName is the file name of the Android library archive.
func AndroidAARDistName(version, qualifier string) string {
	if qualifier != "" {
		return fmt.Sprintf("carto-mobile-sdk-%s-%s.aar", qualifier, version)
	}
	return fmt.Sprintf("carto-mobile-sdk-%s.aar", version)
}
