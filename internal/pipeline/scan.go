package pipeline

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// Input is one photo discovered under a batch input directory.
type Input struct {
	// Path is the file location on disk.
	Path string
	// Rel is Path relative to the input directory, slash-separated.
	Rel string
	// Key is Rel without its extension and names the asset in the manifest.
	Key string
	// Size is the file size in bytes.
	Size int64
}

// imageExtensions lists the file extensions picked up by a scan. Content is
// sniffed again on decode, so a mislabelled file fails there.
var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".webp": true,
	".gif":  true,
	".bmp":  true,
	".tiff": true,
	".tif":  true,
}

// ScanImages walks dir and returns every image file, sorted by key. Hidden
// directories are skipped.
func ScanImages(dir string) ([]Input, error) {
	var inputs []Input
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if !imageExtensions[ext] {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		inputs = append(inputs, Input{
			Path: path,
			Rel:  rel,
			Key:  strings.TrimSuffix(rel, filepath.Ext(rel)),
			Size: info.Size(),
		})
		return nil
	})
	sort.Slice(inputs, func(i, j int) bool { return inputs[i].Key < inputs[j].Key })
	return inputs, err
}
