package artifacts

import (
	"archive/tar"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/platinummonkey/themeforge/pkg/stylegen"
)

// manifestName is the tar entry holding build metadata. It is written first.
const manifestName = ".build.json"

type manifest struct {
	Key        string `json:"key"`
	Stylesheet string `json:"stylesheet"`
	CreatedAt  string `json:"created_at"`
}

// Pack serialises a build as tar.gz and returns the archive with its SHA256
func Pack(build *stylegen.Build) ([]byte, string, error) {
	if build == nil {
		return nil, "", fmt.Errorf("build cannot be nil")
	}

	var buf bytes.Buffer
	hasher := sha256.New()

	gzWriter := gzip.NewWriter(io.MultiWriter(&buf, hasher))
	tarWriter := tar.NewWriter(gzWriter)

	meta, err := json.Marshal(manifest{
		Key:        build.Key,
		Stylesheet: build.Stylesheet,
		CreatedAt:  build.CreatedAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil, "", err
	}
	if err := writeEntry(tarWriter, manifestName, meta); err != nil {
		return nil, "", err
	}

	for _, file := range build.Files {
		if err := writeEntry(tarWriter, file.Path, file.Content); err != nil {
			return nil, "", err
		}
	}

	// Close writers to flush
	if err := tarWriter.Close(); err != nil {
		return nil, "", err
	}
	if err := gzWriter.Close(); err != nil {
		return nil, "", err
	}

	return buf.Bytes(), hex.EncodeToString(hasher.Sum(nil)), nil
}

// Unpack restores a build from a tar.gz archive produced by Pack
func Unpack(data []byte) (*stylegen.Build, error) {
	gzReader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecompressionFailed, err)
	}
	defer gzReader.Close()

	tarReader := tar.NewReader(gzReader)
	build := &stylegen.Build{}
	sawManifest := false

	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecompressionFailed, err)
		}

		content, err := io.ReadAll(tarReader)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecompressionFailed, err)
		}

		if header.Name == manifestName {
			var m manifest
			if err := json.Unmarshal(content, &m); err != nil {
				return nil, fmt.Errorf("%w: bad manifest: %v", ErrDecompressionFailed, err)
			}
			build.Key = m.Key
			build.Stylesheet = m.Stylesheet
			if err := build.CreatedAt.UnmarshalText([]byte(m.CreatedAt)); err != nil {
				return nil, fmt.Errorf("%w: bad manifest time: %v", ErrDecompressionFailed, err)
			}
			sawManifest = true
			continue
		}

		name, err := cleanEntryName(header.Name)
		if err != nil {
			return nil, err
		}
		build.Files = append(build.Files, stylegen.FileContent{Path: name, Content: content})
	}

	if !sawManifest {
		return nil, fmt.Errorf("%w: missing manifest", ErrDecompressionFailed)
	}
	return build, nil
}

func writeEntry(w *tar.Writer, name string, content []byte) error {
	header := &tar.Header{
		Name: name,
		Mode: 0644,
		Size: int64(len(content)),
	}
	if err := w.WriteHeader(header); err != nil {
		return err
	}
	_, err := w.Write(content)
	return err
}

// cleanEntryName rejects entries that would escape the artifact directory
func cleanEntryName(name string) (string, error) {
	clean := path.Clean(strings.ReplaceAll(name, "\\", "/"))
	if clean == "." || path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("%w: unsafe entry name %q", ErrDecompressionFailed, name)
	}
	return clean, nil
}
