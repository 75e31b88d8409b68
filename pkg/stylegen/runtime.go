package stylegen

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// RuntimeScript is the companion script shipped with every stylesheet
const RuntimeScript = "bootstrap.bundle.min.js"

// Runtime locates the companion runtime files for each framework version.
// Files for version v live in {Root}/bs{v}/.
type Runtime struct {
	Root string
}

// Dir returns the runtime directory for a version
func (r Runtime) Dir(version string) string {
	return filepath.Join(r.Root, "bs"+version)
}

// ScriptPath returns the absolute path of the companion script
func (r Runtime) ScriptPath(version string) string {
	return filepath.Join(r.Dir(version), RuntimeScript)
}

// Files lists the runtime files for a version, relative to Dir, sorted
func (r Runtime) Files(version string) ([]string, error) {
	entries, err := os.ReadDir(r.Dir(version))
	if err != nil {
		return nil, fmt.Errorf("failed to read runtime directory: %w", err)
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		files = append(files, entry.Name())
	}
	sort.Strings(files)
	return files, nil
}
