package manifest

import "github.com/AnyUserName/platepix/internal/emotion"

// Manifest is the top-level output of a platepix build.
type Manifest struct {
	Version     int              `json:"version"`
	GeneratedAt string           `json:"generated_at"`
	Profile     string           `json:"profile"`
	BasePath    string           `json:"base_path"`
	BuildInfo   *BuildInfo       `json:"build_info,omitempty"`
	Assets      map[string]Asset `json:"assets"`
	Stats       Stats            `json:"stats"`
}

// BuildInfo captures build-time parameters for diagnostics.
type BuildInfo struct {
	Workers       int    `json:"workers"`
	Backend       string `json:"backend"`
	Filter        string `json:"filter,omitempty"`
	VariantPolicy string `json:"variant_policy"`
	Format        string `json:"format"`
	Quality       int    `json:"quality"`
	MaxWidth      int    `json:"max_width"`
	MaxHeight     int    `json:"max_height"`
}

// Asset describes one source photo and everything generated from it.
type Asset struct {
	Original         OriginalInfo    `json:"original"`
	Optimized        Output          `json:"optimized"`
	Variants         []Output        `json:"variants,omitempty"`
	CompressionRatio float64         `json:"compression_ratio"`
	BlurHash         string          `json:"blurhash"`
	AspectRatio      float64         `json:"aspect_ratio"`        // width / height
	AvgColor         *[3]uint8       `json:"avg_color,omitempty"` // [R,G,B] 0-255
	Placeholder      string          `json:"placeholder,omitempty"` // data: URI
	Emotion          *emotion.Scores `json:"emotion,omitempty"`
	Tone             string          `json:"tone,omitempty"`
}

// OriginalInfo holds metadata about the source image.
type OriginalInfo struct {
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Format   string `json:"format"`
	Size     int64  `json:"size"`
	HasAlpha bool   `json:"has_alpha"`
}

// Output is one encoded file written for an asset.
type Output struct {
	Name    string `json:"name,omitempty"` // variant name; empty for the main output
	Format  string `json:"format"`         // "avif", "webp", "jpeg", "png"
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	Quality int    `json:"quality"`
	Size    int64  `json:"size"` // bytes on disk
	Hash    string `json:"hash"` // first 16 hex chars of xxhash64
	Path    string `json:"path"` // relative to base_path
}

// Stats aggregates build metrics.
type Stats struct {
	TotalInputBytes  int64 `json:"total_input_bytes"`
	TotalOutputBytes int64 `json:"total_output_bytes"`
	TotalAssets      int   `json:"total_assets"`
	TotalVariants    int   `json:"total_variants"`
	SkippedRegress   int   `json:"skipped_regress,omitempty"` // variants skipped (larger than original)
	Failed           int   `json:"failed,omitempty"`
}

// SupportedManifestVersion is the current schema version.
const SupportedManifestVersion = 1

// FileName is the manifest's name inside a build directory.
const FileName = "platepix.manifest.json"

// Outputs returns the main output followed by the variants.
func (a Asset) Outputs() []Output {
	out := make([]Output, 0, 1+len(a.Variants))
	if a.Optimized.Path != "" {
		out = append(out, a.Optimized)
	}
	return append(out, a.Variants...)
}
