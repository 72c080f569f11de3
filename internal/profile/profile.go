// Package profile holds the named option presets a build or an optimize
// run can start from.
package profile

import (
	"sort"

	"github.com/AnyUserName/platepix/internal/pipeline"
)

// Profile is a named set of pipeline options.
type Profile struct {
	Name        string
	Quality     int
	MaxWidth    int
	MaxHeight   int
	Format      string
	Variants    bool
	Progressive bool
}

// Built-in profiles.
var profiles = map[string]Profile{
	"default": {
		Name:        "default",
		Quality:     pipeline.DefaultQuality,
		MaxWidth:    pipeline.DefaultMaxWidth,
		MaxHeight:   pipeline.DefaultMaxHeight,
		Format:      "webp",
		Progressive: true,
	},
	// Portrait-friendly box for scrolling feeds, with every variant and blur-up asset.
	"feed": {
		Name:        "feed",
		Quality:     82,
		MaxWidth:    1080,
		MaxHeight:   1350,
		Format:      "webp",
		Variants:    true,
		Progressive: true,
	},
	"archive": {
		Name:      "archive",
		Quality:   92,
		MaxWidth:  4096,
		MaxHeight: 4096,
		Format:    "jpeg",
	},
	"thumbnail-only": {
		Name:      "thumbnail-only",
		Quality:   80,
		MaxWidth:  300,
		MaxHeight: 300,
		Format:    "webp",
	},
}

// Lookup returns a built-in profile by name.
func Lookup(name string) (Profile, bool) {
	p, ok := profiles[name]
	return p, ok
}

// Get returns a profile by name. Falls back to default if unknown.
func Get(name string) Profile {
	if p, ok := profiles[name]; ok {
		return p
	}
	p := profiles["default"]
	p.Name = name // preserve requested name
	return p
}

// Names lists the built-in profiles, sorted.
func Names() []string {
	names := make([]string, 0, len(profiles))
	for n := range profiles {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Options returns setters that apply the profile over pipeline defaults.
func (p Profile) Options() []pipeline.Option {
	return []pipeline.Option{
		pipeline.WithQuality(p.Quality),
		pipeline.WithMaxSize(p.MaxWidth, p.MaxHeight),
		pipeline.WithFormat(p.Format),
		pipeline.WithVariants(p.Variants),
		pipeline.WithProgressive(p.Progressive),
	}
}
