package fs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bft-labs/reportship/internal/domain"
)

// ArtifactDir implements ports.ArtifactStore by writing files into a directory.
type ArtifactDir struct {
	dir string
}

// NewArtifactDir creates an ArtifactDir rooted at dir.
func NewArtifactDir(dir string) *ArtifactDir {
	return &ArtifactDir{dir: dir}
}

// Save writes every artifact atomically (temp file, then rename) and returns
// the written paths in artifact order. Existing files of the same name are
// replaced; two artifacts resolving to the same file name are an error.
func (d *ArtifactDir) Save(ctx context.Context, artifacts []domain.Artifact) ([]string, error) {
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(artifacts))
	seen := make(map[string]bool, len(artifacts))
	for _, a := range artifacts {
		name := filepath.Base(a.Name)
		if name == "." || name == string(filepath.Separator) || strings.TrimSpace(name) == "" {
			return paths, fmt.Errorf("artifact has invalid name %q", a.Name)
		}
		if seen[name] {
			return paths, fmt.Errorf("artifact %q: duplicate file name %q", a.Name, name)
		}
		seen[name] = true

		path := filepath.Join(d.dir, name)
		tmp := path + ".tmp"

		if err := os.WriteFile(tmp, a.Data, 0o644); err != nil {
			return paths, err
		}
		// Atomic rename
		if err := os.Rename(tmp, path); err != nil {
			os.Remove(tmp)
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// Dir returns the output directory.
func (d *ArtifactDir) Dir() string {
	return d.dir
}
