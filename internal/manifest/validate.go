package manifest

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/AnyUserName/platepix/internal/emotion"
	"github.com/AnyUserName/platepix/internal/hasher"
)

// Validate checks m for internal consistency and verifies every referenced
// file under baseDir exists with the recorded size and hash.
func Validate(m *Manifest, baseDir string) []string {
	var errs []string
	addf := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf(format, args...))
	}

	if m.Version != SupportedManifestVersion {
		addf("unsupported manifest version: %d", m.Version)
	}

	// Content-addressed names may repeat only for identical bytes.
	type seen struct{ label, hash string }
	seenPaths := map[string]seen{}
	for key, a := range m.Assets {
		if a.Original.Width <= 0 || a.Original.Height <= 0 {
			addf("asset %q: invalid original dimensions %dx%d", key, a.Original.Width, a.Original.Height)
		}
		if a.BlurHash == "" {
			addf("asset %q: missing blurhash", key)
		}
		if a.AspectRatio <= 0 {
			addf("asset %q: invalid aspect ratio %.4f", key, a.AspectRatio)
		}
		if a.CompressionRatio < 0 {
			addf("asset %q: negative compression ratio %.4f", key, a.CompressionRatio)
		}
		if a.Optimized.Path == "" {
			addf("asset %q: no optimized output", key)
		}
		if a.Emotion != nil && !scoresInRange(*a.Emotion) {
			addf("asset %q: emotion scores out of range: %+v", key, *a.Emotion)
		}

		for i, o := range a.Outputs() {
			label := fmt.Sprintf("asset %q output[%d]", key, i)
			if o.Format == "" {
				addf("%s: empty format", label)
			}
			if o.Width <= 0 || o.Height <= 0 {
				addf("%s: invalid dimensions %dx%d", label, o.Width, o.Height)
			}
			if o.Hash == "" {
				addf("%s: missing hash", label)
			}
			if o.Path == "" {
				addf("%s: missing path", label)
				continue
			}
			if prev, dup := seenPaths[o.Path]; dup {
				if prev.hash != o.Hash {
					addf("%s: path %q already used by %s", label, o.Path, prev.label)
				}
				continue
			}
			seenPaths[o.Path] = seen{label, o.Hash}
			if msg := checkFile(filepath.Join(baseDir, filepath.FromSlash(o.Path)), o); msg != "" {
				addf("%s: %s", label, msg)
			}
		}
	}

	assetCount := len(m.Assets)
	variantCount := 0
	for _, a := range m.Assets {
		variantCount += len(a.Variants)
	}
	if m.Stats.TotalAssets != assetCount {
		addf("stats.total_assets mismatch: %d != %d", m.Stats.TotalAssets, assetCount)
	}
	if m.Stats.TotalVariants != variantCount {
		addf("stats.total_variants mismatch: %d != %d", m.Stats.TotalVariants, variantCount)
	}
	return errs
}

func checkFile(path string, o Output) string {
	f, err := os.Open(path)
	if err != nil {
		return "file not found: " + o.Path
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err.Error()
	}
	if o.Size > 0 && info.Size() != o.Size {
		return fmt.Sprintf("size mismatch: manifest=%d, disk=%d", o.Size, info.Size())
	}
	if o.Hash == "" {
		return ""
	}
	sum, err := hasher.ContentHashReader(f, len(o.Hash))
	if err != nil {
		return "hash: " + err.Error()
	}
	if sum != o.Hash {
		return fmt.Sprintf("hash mismatch: manifest=%s, disk=%s", o.Hash, sum)
	}
	return ""
}

func scoresInRange(s emotion.Scores) bool {
	for _, v := range []float64{s.Warmth, s.Comfort, s.Excitement, s.Social} {
		if math.IsNaN(v) || v < 0 || v > emotion.MaxScore {
			return false
		}
	}
	return true
}
