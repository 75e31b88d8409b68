package theme

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"os"
	"strconv"
)

// Hash format version. Bump when the serialisation below changes; every
// cache key derived from a theme changes with it.
const hashFormat = "theme/v2"

// ContentHash returns a hex SHA256 over everything that determines the
// artifact built from this theme: the rendered compiler entry, then every
// attachment and nested bundle in layer order.
//
// Themes whose compiler input is byte-identical hash equal however their
// layers were split.
func (t *Theme) ContentHash() string {
	return t.hash(true)
}

// StyleHash is ContentHash without attachments and nested bundles, i.e. only
// what reaches the compiler
func (t *Theme) StyleHash() string {
	return t.hash(false)
}

func (t *Theme) hash(withFiles bool) string {
	h := sha256.New()
	writeField(h, hashFormat)
	writeField(h, t.version)
	writeField(h, string(Source(t)))
	if !withFiles {
		return hex.EncodeToString(h.Sum(nil))
	}

	attachments := t.Attachments()
	writeField(h, "attachments")
	writeCount(h, len(attachments))
	for _, a := range attachments {
		writeField(h, a.Name)
		writeField(h, a.Path)
		writeField(h, a.Stamp())
	}

	deps := t.Dependencies()
	writeField(h, "dependencies")
	writeCount(h, len(deps))
	for _, d := range deps {
		writeField(h, d.Name)
		writeField(h, d.Version)
		writeField(h, d.BaseDir)
		writeField(h, d.Stylesheet)
		writeField(h, d.Script)
		writeList(h, "aux", d.AuxFiles)
	}

	return hex.EncodeToString(h.Sum(nil))
}

// Stamp identifies the current revision of the attached file by size and
// modification time, so editing it in place changes every hash that
// includes it. An unreadable file stamps as "missing".
func (a Attachment) Stamp() string {
	info, err := os.Stat(a.Path)
	if err != nil {
		return "missing"
	}
	return strconv.FormatInt(info.Size(), 10) + ":" + strconv.FormatInt(info.ModTime().UnixNano(), 10)
}

func writeList(h hash.Hash, label string, items []string) {
	writeField(h, label)
	writeCount(h, len(items))
	for _, item := range items {
		writeField(h, item)
	}
}

func writeCount(h hash.Hash, n int) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(n))
	h.Write(buf[:])
}

// writeField writes a length-prefixed string so adjacent fields cannot run
// into each other
func writeField(h hash.Hash, s string) {
	writeCount(h, len(s))
	h.Write([]byte(s))
}
