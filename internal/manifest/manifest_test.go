package manifest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/AnyUserName/platepix/internal/emotion"
	"github.com/AnyUserName/platepix/internal/hasher"
)

func sampleAsset() Asset {
	return Asset{
		Original: OriginalInfo{
			Width: 800, Height: 600,
			Format: "jpeg", Size: 100000,
		},
		Optimized: Output{
			Format: "webp", Width: 800, Height: 600, Quality: 85,
			Size: 20000, Hash: "abcd1234abcd1234", Path: "menu/ramen.800.600.abcd1234.webp",
		},
		Variants: []Output{
			{Name: "thumbnail", Format: "webp", Width: 300, Height: 225, Quality: 80, Size: 5000, Hash: "ffff0000ffff0000", Path: "menu/ramen.300.225.ffff0000.webp"},
		},
		CompressionRatio: 5,
		BlurHash:         "LEHV6nWB2yk8pyo0adR*.7kCMdnj",
		AspectRatio:      1.3333,
		Emotion:          &emotion.Scores{Warmth: 8, Comfort: 6.4, Excitement: 5, Social: 7},
		Tone:             "cozy",
	}
}

func TestManifestRoundtrip(t *testing.T) {
	m := New("feed")
	m.BuildInfo = &BuildInfo{Workers: 4, Backend: "imaging", VariantPolicy: "strict", Format: "webp", Quality: 85}
	m.Assets["menu/ramen"] = sampleAsset()
	m.Stats.SkippedRegress = 2

	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	if err := WriteJSON(m, path); err != nil {
		t.Fatalf("write: %v", err)
	}

	m2, resolved, err := Read(dir)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if resolved != path {
		t.Errorf("resolved path = %q, want %q", resolved, path)
	}
	if m2.Version != SupportedManifestVersion {
		t.Errorf("version: got %d, want %d", m2.Version, SupportedManifestVersion)
	}
	if m2.Profile != "feed" {
		t.Errorf("profile: got %q", m2.Profile)
	}
	if m2.BuildInfo == nil || m2.BuildInfo.Workers != 4 || m2.BuildInfo.Backend != "imaging" {
		t.Fatalf("build_info: %+v", m2.BuildInfo)
	}

	a, ok := m2.Assets["menu/ramen"]
	if !ok {
		t.Fatal("asset menu/ramen missing")
	}
	if a.BlurHash != "LEHV6nWB2yk8pyo0adR*.7kCMdnj" {
		t.Errorf("blurhash: got %q", a.BlurHash)
	}
	if a.Emotion == nil || a.Emotion.Warmth != 8 || a.Tone != "cozy" {
		t.Errorf("emotion: %+v %q", a.Emotion, a.Tone)
	}
	if len(a.Variants) != 1 || a.Variants[0].Name != "thumbnail" {
		t.Errorf("variants: %+v", a.Variants)
	}

	if m2.Stats.TotalAssets != 1 {
		t.Errorf("total_assets: got %d", m2.Stats.TotalAssets)
	}
	if m2.Stats.TotalVariants != 1 {
		t.Errorf("total_variants: got %d", m2.Stats.TotalVariants)
	}
	if m2.Stats.TotalOutputBytes != 25000 {
		t.Errorf("total_output_bytes: got %d, want optimized + variants", m2.Stats.TotalOutputBytes)
	}
	if m2.Stats.SkippedRegress != 2 {
		t.Errorf("skipped_regress lost on write: got %d", m2.Stats.SkippedRegress)
	}
}

func TestComputeStats_UnknownInputSize(t *testing.T) {
	m := New("default")
	a := sampleAsset()
	a.Original.Size = -1
	m.Assets["x"] = a
	m.ComputeStats()
	if m.Stats.TotalInputBytes != 0 {
		t.Errorf("unknown size counted: %d", m.Stats.TotalInputBytes)
	}
}

func TestManifestVersion(t *testing.T) {
	m := New("v-test")
	if m.Version != SupportedManifestVersion {
		t.Errorf("new manifest version: got %d, want %d", m.Version, SupportedManifestVersion)
	}
}

func TestManifestIgnoresUnknownFields(t *testing.T) {
	raw := `{
		"version": 1,
		"generated_at": "2025-01-01T00:00:00Z",
		"profile": "test",
		"base_path": "./",
		"future_field": "should be ignored",
		"build_info": { "workers": 8, "backend": "imaging", "new_flag": true },
		"assets": {},
		"stats": { "total_input_bytes": 0, "total_output_bytes": 0, "total_assets": 0, "total_variants": 0, "new_stat": 42 }
	}`

	var m Manifest
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		t.Fatalf("unmarshal with unknown fields: %v", err)
	}
	if m.BuildInfo == nil || m.BuildInfo.Workers != 8 {
		t.Error("build_info not parsed correctly")
	}
}

// writeOutputs puts real files behind every output of a and fixes up the
// recorded sizes and hashes.
func writeOutputs(t *testing.T, dir string, a *Asset) {
	t.Helper()
	write := func(o *Output) {
		data := []byte(strings.Repeat(o.Path, 7))
		full := filepath.Join(dir, filepath.FromSlash(o.Path))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, data, 0o644); err != nil {
			t.Fatal(err)
		}
		o.Size = int64(len(data))
		o.Hash = hasher.ContentHash(data, hasher.HashLen)
	}
	write(&a.Optimized)
	for i := range a.Variants {
		write(&a.Variants[i])
	}
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	a := sampleAsset()
	writeOutputs(t, dir, &a)

	m := New("default")
	m.Assets["menu/ramen"] = a
	m.ComputeStats()

	if errs := Validate(m, dir); len(errs) != 0 {
		t.Fatalf("valid manifest reported errors: %v", errs)
	}

	t.Run("tampered file", func(t *testing.T) {
		p := filepath.Join(dir, filepath.FromSlash(a.Variants[0].Path))
		data, _ := os.ReadFile(p)
		data[0] ^= 0xff
		if err := os.WriteFile(p, data, 0o644); err != nil {
			t.Fatal(err)
		}
		errs := Validate(m, dir)
		if len(errs) != 1 || !strings.Contains(errs[0], "hash mismatch") {
			t.Errorf("want one hash mismatch, got %v", errs)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		os.Remove(filepath.Join(dir, filepath.FromSlash(a.Optimized.Path)))
		errs := Validate(m, dir)
		found := false
		for _, e := range errs {
			found = found || strings.Contains(e, "file not found")
		}
		if !found {
			t.Errorf("missing file not reported: %v", errs)
		}
	})
}

func TestValidate_Fields(t *testing.T) {
	a := sampleAsset()
	a.BlurHash = ""
	a.Emotion = &emotion.Scores{Warmth: 11}
	dup := a.Variants[0]
	dup.Hash = "0000000000000000"
	a.Variants = append(a.Variants, dup)

	m := New("default")
	m.Version = 7
	m.Assets["bad"] = a
	m.Stats.TotalAssets = 3

	errs := strings.Join(Validate(m, t.TempDir()), "\n")
	for _, want := range []string{
		"unsupported manifest version",
		"missing blurhash",
		"emotion scores out of range",
		"already used",
		"stats.total_assets mismatch",
		"stats.total_variants mismatch",
	} {
		if !strings.Contains(errs, want) {
			t.Errorf("missing %q in:\n%s", want, errs)
		}
	}
}
