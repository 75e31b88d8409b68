package compiler

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/platinummonkey/themeforge/pkg/stylegen"
)

// collectFiles reads every file under dir, sorted by path
func collectFiles(dir string) ([]stylegen.FileContent, error) {
	var files []stylegen.FileContent

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read file %s: %v", path, err)
		}

		relPath, err := filepath.Rel(dir, path)
		if err != nil {
			return fmt.Errorf("failed to get relative path for %s: %v", path, err)
		}

		files = append(files, stylegen.FileContent{
			Path:    filepath.ToSlash(relPath),
			Content: content,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

func newOutput(stylesheet string, files []stylegen.FileContent, stderr string, d time.Duration) (*Output, error) {
	found := false
	for _, f := range files {
		if f.Path == stylesheet {
			found = true
			break
		}
	}
	if !found {
		return nil, ErrNoOutput
	}
	return &Output{
		Stylesheet: stylesheet,
		Files:      files,
		Diagnostic: strings.TrimSpace(stderr),
		Duration:   d,
	}, nil
}
