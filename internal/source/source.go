// Package source resolves the image reference a caller hands in (raw bytes,
// a file path, a URL or an already-decoded buffer) into bytes or pixels.
package source

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"strings"

	"github.com/AnyUserName/platepix/internal/raster"
)

// Kind tells which field of a Source is populated.
type Kind int

const (
	KindBytes Kind = iota
	KindPath
	KindURL
	KindPixels
)

func (k Kind) String() string {
	switch k {
	case KindBytes:
		return "bytes"
	case KindPath:
		return "path"
	case KindURL:
		return "url"
	case KindPixels:
		return "pixels"
	}
	return "unknown"
}

// Source is an opaque image reference.
type Source struct {
	Kind     Kind
	Location string // path or URL; a caller-supplied label for bytes/pixels
	Data     []byte
	Pixels   *image.NRGBA
}

// FromBytes wraps raw encoded bytes.
func FromBytes(data []byte) Source { return Source{Kind: KindBytes, Data: data} }

// FromPath references a file on disk.
func FromPath(path string) Source { return Source{Kind: KindPath, Location: path} }

// FromURL references an http(s) location.
func FromURL(url string) Source { return Source{Kind: KindURL, Location: url} }

// FromImage wraps a buffer that is already decoded; its byte size is unknown.
func FromImage(img *image.NRGBA) Source { return Source{Kind: KindPixels, Pixels: img} }

// Parse classifies a CLI-style reference: http(s) URLs are fetched, anything
// else is a path.
func Parse(ref string) Source {
	if IsURL(ref) {
		return FromURL(ref)
	}
	return FromPath(ref)
}

// IsURL reports whether ref looks like an http(s) URL.
func IsURL(ref string) bool {
	l := strings.ToLower(ref)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}

// String returns a short label for logs and errors.
func (s Source) String() string {
	if s.Location != "" {
		return s.Location
	}
	return "<" + s.Kind.String() + ">"
}

// Loader reads the bytes behind a Source.
type Loader struct {
	Fetcher *Fetcher
}

// Bytes returns the encoded bytes behind s. Pixel sources have none and
// return (nil, nil).
func (l Loader) Bytes(ctx context.Context, s Source) ([]byte, error) {
	switch s.Kind {
	case KindBytes:
		if len(s.Data) == 0 {
			return nil, &raster.DecodeError{Source: s.String(), Err: errors.New("empty input")}
		}
		return s.Data, nil
	case KindPath:
		data, err := os.ReadFile(s.Location)
		if err != nil {
			return nil, &raster.DecodeError{Source: s.Location, Err: err}
		}
		return data, nil
	case KindURL:
		f := l.Fetcher
		if f == nil {
			f = NewFetcher()
		}
		return f.Fetch(ctx, s.Location)
	case KindPixels:
		if s.Pixels == nil {
			return nil, &raster.NoRenderingSurfaceError{Op: "load"}
		}
		return nil, nil
	}
	return nil, &raster.DecodeError{Source: s.String(), Err: fmt.Errorf("unsupported source kind %d", s.Kind)}
}
