// Package manifest records what a successful run deployed: which combined
// libraries were produced for which target, with content digests, next to
// the version and source revision they were built from.
package manifest

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/renameio/v2"
	"github.com/opencontainers/go-digest"
	"gopkg.in/yaml.v3"
)

// FileName is the manifest's name inside the deployment root.
const FileName = "manifest.yaml"

// Manifest describes one deployment tree.
type Manifest struct {
	Library   string    `yaml:"library"`
	Version   string    `yaml:"version"`
	Revision  string    `yaml:"revision,omitempty"`
	Branch    string    `yaml:"branch,omitempty"`
	Dirty     bool      `yaml:"dirty,omitempty"`
	RunID     string    `yaml:"run_id"`
	BuiltAt   time.Time `yaml:"built_at"`
	Libraries []Library `yaml:"libraries"`
}

// Library is one combined library in the deployment tree.
type Library struct {
	Platform      string        `yaml:"platform"`
	Configuration string        `yaml:"configuration"`
	Path          string        `yaml:"path"` // slash-separated, relative to the deployment root
	Size          int64         `yaml:"size"`
	Digest        digest.Digest `yaml:"digest"`
}

// AddLibrary digests the file at path and appends it. path must lie
// inside root.
func (m *Manifest) AddLibrary(root, platform, configuration, path string) error {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return fmt.Errorf("relating %s to %s: %w", path, root, err)
	}
	d, size, err := FileDigest(path)
	if err != nil {
		return err
	}
	m.Libraries = append(m.Libraries, Library{
		Platform:      platform,
		Configuration: configuration,
		Path:          filepath.ToSlash(rel),
		Size:          size,
		Digest:        d,
	})
	return nil
}

// FileDigest returns the canonical digest and size of a file.
func FileDigest(path string) (digest.Digest, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	digester := digest.Canonical.Digester()
	size, err := io.Copy(digester.Hash(), f)
	if err != nil {
		return "", 0, fmt.Errorf("digesting %s: %w", path, err)
	}
	return digester.Digest(), size, nil
}

// Write encodes m as YAML and replaces root/manifest.yaml atomically.
// Returns the written path.
func (m *Manifest) Write(root string) (string, error) {
	data, err := yaml.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encoding manifest: %w", err)
	}
	path := filepath.Join(root, FileName)
	if err := renameio.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing manifest: %w", err)
	}
	return path, nil
}

// Read loads the manifest in root.
func Read(root string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(root, FileName))
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	return &m, nil
}

// Verify re-digests every library under root and reports the first mismatch.
func (m *Manifest) Verify(root string) error {
	for _, lib := range m.Libraries {
		if err := lib.Digest.Validate(); err != nil {
			return fmt.Errorf("%s: %w", lib.Path, err)
		}
		path := filepath.Join(root, filepath.FromSlash(lib.Path))
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("opening %s: %w", lib.Path, err)
		}
		verifier := lib.Digest.Verifier()
		_, err = io.Copy(verifier, f)
		f.Close()
		if err != nil {
			return fmt.Errorf("digesting %s: %w", lib.Path, err)
		}
		if !verifier.Verified() {
			return fmt.Errorf("%s: digest mismatch, want %s", lib.Path, lib.Digest)
		}
	}
	return nil
}
