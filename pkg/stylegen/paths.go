package stylegen

import (
	"fmt"
	"path/filepath"
	"strings"
)

// CleanRelPath normalises a slash-separated artifact-relative path and
// rejects paths that would leave the artifact directory
func CleanRelPath(name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if clean == "." || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes the artifact directory", name)
	}
	return filepath.ToSlash(clean), nil
}
