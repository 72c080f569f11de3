// Package hasher derives the content hashes used for output file names and
// for verifying written files.
package hasher

import (
	"fmt"
	"io"
	"path"

	"github.com/cespare/xxhash/v2"
)

// HashLen is the number of hex chars recorded in manifests (64 bits).
const HashLen = 16

// nameLen is the hash prefix embedded in file names.
const nameLen = 8

// ContentHash returns the xxHash64 of data as hex, truncated to hexLen
// chars when 0 < hexLen < 16.
func ContentHash(data []byte, hexLen int) string {
	return truncate(xxhash.Sum64(data), hexLen)
}

// ContentHashReader streams r through xxHash64.
func ContentHashReader(r io.Reader, hexLen int) (string, error) {
	d := xxhash.New()
	if _, err := io.Copy(d, r); err != nil {
		return "", err
	}
	return truncate(d.Sum64(), hexLen), nil
}

// FileName builds the content-addressed name <base>.<w>.<h>.<hash8>.<ext>
// for an output of the asset key.
func FileName(key string, w, h int, hash, ext string) string {
	if len(hash) > nameLen {
		hash = hash[:nameLen]
	}
	return fmt.Sprintf("%s.%d.%d.%s.%s", path.Base(key), w, h, hash, ext)
}

func truncate(sum uint64, hexLen int) string {
	full := fmt.Sprintf("%016x", sum)
	if hexLen > 0 && hexLen < len(full) {
		return full[:hexLen]
	}
	return full
}
