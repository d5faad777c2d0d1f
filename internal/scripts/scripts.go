// Package scripts loads the helper scripts pushed to the target host's migration directory.
package scripts

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/codebypatrickleung/hvshift/internal/model"
	"gopkg.in/yaml.v3"
)

// ManifestFile is the optional bundle manifest inside a helper-scripts directory.
const ManifestFile = "bundle.yaml"

const defaultMode fs.FileMode = 0o755

//go:embed download_volume.sh
var downloadVolume []byte

// Manifest describes the scripts of a bundle.
type Manifest struct {
	Scripts []Entry `yaml:"scripts"`
}

// Entry is a single script in a manifest. File defaults to Name and Mode to 0755.
type Entry struct {
	Name  string `yaml:"name"`
	File  string `yaml:"file"`
	Stage string `yaml:"stage"`
	Mode  string `yaml:"mode"`
}

// Builtin returns the scripts shipped with hvshift.
func Builtin() []model.HelperScript {
	return []model.HelperScript{{
		Name:    "download_volume.sh",
		Stage:   "fetch",
		Content: append([]byte(nil), downloadVolume...),
		Mode:    defaultMode,
	}}
}

// Load returns the builtin scripts followed by the bundle in dir. Bundle scripts replace builtin
// scripts of the same name. Without a manifest every regular, non-hidden file in dir is a script.
func Load(dir string) ([]model.HelperScript, error) {
	scripts := Builtin()
	if dir == "" {
		return scripts, nil
	}

	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read helper scripts: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("helper scripts path %s is not a directory", dir)
	}

	var bundle []model.HelperScript
	manifest, err := readManifest(filepath.Join(dir, ManifestFile))
	switch {
	case err == nil:
		bundle, err = fromManifest(dir, manifest)
	case errors.Is(err, fs.ErrNotExist):
		bundle, err = fromDirectory(dir)
	}
	if err != nil {
		return nil, err
	}
	return merge(scripts, bundle), nil
}

func readManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &m, nil
}

func fromManifest(dir string, m *Manifest) ([]model.HelperScript, error) {
	scripts := make([]model.HelperScript, 0, len(m.Scripts))
	for i, entry := range m.Scripts {
		if entry.Name == "" {
			return nil, fmt.Errorf("%s: script %d has no name", ManifestFile, i+1)
		}
		if strings.ContainsAny(entry.Name, `/\`) || entry.Name == "." || entry.Name == ".." {
			return nil, fmt.Errorf("%s: script name %q must be a plain file name", ManifestFile, entry.Name)
		}
		file := entry.File
		if file == "" {
			file = entry.Name
		}
		if filepath.IsAbs(file) || strings.HasPrefix(filepath.Clean(file), "..") {
			return nil, fmt.Errorf("%s: script %s must reference a file inside the bundle", ManifestFile, entry.Name)
		}
		mode, err := parseMode(entry.Mode)
		if err != nil {
			return nil, fmt.Errorf("%s: script %s: %w", ManifestFile, entry.Name, err)
		}
		content, err := os.ReadFile(filepath.Join(dir, file))
		if err != nil {
			return nil, fmt.Errorf("failed to read helper script %s: %w", entry.Name, err)
		}
		scripts = append(scripts, model.HelperScript{
			Name:    entry.Name,
			Stage:   entry.Stage,
			Content: content,
			Mode:    mode,
		})
	}
	return scripts, nil
}

func fromDirectory(dir string) ([]model.HelperScript, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read helper scripts: %w", err)
	}
	var scripts []model.HelperScript
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		content, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read helper script %s: %w", e.Name(), err)
		}
		scripts = append(scripts, model.HelperScript{Name: e.Name(), Content: content, Mode: defaultMode})
	}
	sort.Slice(scripts, func(i, j int) bool { return scripts[i].Name < scripts[j].Name })
	return scripts, nil
}

func parseMode(s string) (fs.FileMode, error) {
	if s == "" {
		return defaultMode, nil
	}
	v, err := strconv.ParseUint(s, 8, 32)
	if err != nil || v > 0o777 {
		return 0, fmt.Errorf("invalid mode %q", s)
	}
	return fs.FileMode(v), nil
}

func merge(base, bundle []model.HelperScript) []model.HelperScript {
	overridden := make(map[string]bool, len(bundle))
	for _, s := range bundle {
		overridden[s.Name] = true
	}
	result := make([]model.HelperScript, 0, len(base)+len(bundle))
	for _, s := range base {
		if !overridden[s.Name] {
			result = append(result, s)
		}
	}
	return append(result, bundle...)
}
