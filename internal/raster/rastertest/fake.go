// Package rastertest provides an in-memory raster.Backend that never touches
// a real codec.
//
// Encoded bytes are a one-line text header followed by raw NRGBA pixels, so
// Decode(Encode(img)) returns img exactly and tests can read dimensions,
// format and quality straight back out of any output.
package rastertest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/AnyUserName/platepix/internal/raster"
	xdraw "golang.org/x/image/draw"
)

const magic = "rastertest"

// Call records one backend invocation.
type Call struct {
	Op      string // "decode", "resize", "encode"
	Format  string
	Width   int
	Height  int
	Quality int
}

// Fake is a deterministic in-memory raster.Backend.
type Fake struct {
	// Supported lists encode formats; nil means webp, jpeg, png.
	Supported []string

	// DecodeErr, when set, fails every Decode.
	DecodeErr error

	// EncodeErr, when set, is consulted before every Encode.
	EncodeErr func(format string, w, h int) error

	mu    sync.Mutex
	calls []Call
}

// Header describes an encoded fake payload.
type Header struct {
	Format  string
	Quality int
	Width   int
	Height  int
}

// Source encodes img as a fake "source" file, as a camera upload would be.
func Source(img *image.NRGBA) []byte {
	return encode(img, "fake", 100)
}

// Parse reads the header of a fake payload.
func Parse(data []byte) (Header, error) {
	var h Header
	nl := bytes.IndexByte(data, '\n')
	if nl < 0 {
		return h, errors.New("rastertest: missing header")
	}
	var m string
	_, err := fmt.Sscanf(string(data[:nl]), "%s %s %d %d %d", &m, &h.Format, &h.Quality, &h.Width, &h.Height)
	if err != nil || m != magic {
		return h, fmt.Errorf("rastertest: bad header %q", data[:nl])
	}
	return h, nil
}

// Calls returns a copy of the recorded invocations.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// CallsFor returns recorded invocations with the given op.
func (f *Fake) CallsFor(op string) []Call {
	var out []Call
	for _, c := range f.Calls() {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

func (f *Fake) record(c Call) {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	f.mu.Unlock()
}

func (f *Fake) Formats() []string {
	if f.Supported == nil {
		return []string{"webp", "jpeg", "png"}
	}
	return f.Supported
}

func (f *Fake) Decode(ctx context.Context, data []byte) (*image.NRGBA, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	if f.DecodeErr != nil {
		return nil, "", &raster.DecodeError{Err: f.DecodeErr}
	}
	h, err := Parse(data)
	if err != nil {
		return nil, "", &raster.DecodeError{Err: err}
	}
	pix := data[bytes.IndexByte(data, '\n')+1:]
	if len(pix) != h.Width*h.Height*4 {
		return nil, "", &raster.DecodeError{Err: fmt.Errorf("rastertest: truncated pixels: %d", len(pix))}
	}
	img := image.NewNRGBA(image.Rect(0, 0, h.Width, h.Height))
	copy(img.Pix, pix)
	f.record(Call{Op: "decode", Format: h.Format, Width: h.Width, Height: h.Height, Quality: h.Quality})
	return img, h.Format, nil
}

func (f *Fake) Resize(ctx context.Context, img *image.NRGBA, w, h int) (*image.NRGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := raster.CheckBuffer("resize", img); err != nil {
		return nil, err
	}
	if w <= 0 || h <= 0 {
		return nil, &raster.InvalidBufferError{Op: "resize", Want: 1, Got: w * h}
	}
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	xdraw.NearestNeighbor.Scale(dst, dst.Bounds(), img, img.Bounds(), xdraw.Src, nil)
	f.record(Call{Op: "resize", Width: w, Height: h})
	return dst, nil
}

func (f *Fake) Encode(ctx context.Context, img *image.NRGBA, format string, quality int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := raster.CheckBuffer("encode", img); err != nil {
		return nil, err
	}
	if !f.supports(format) {
		return nil, &raster.UnsupportedFormatError{Format: format}
	}
	b := img.Bounds()
	if f.EncodeErr != nil {
		if err := f.EncodeErr(format, b.Dx(), b.Dy()); err != nil {
			return nil, err
		}
	}
	f.record(Call{Op: "encode", Format: format, Width: b.Dx(), Height: b.Dy(), Quality: quality})
	return encode(img, format, quality), nil
}

func (f *Fake) supports(format string) bool {
	for _, s := range f.Formats() {
		if s == format {
			return true
		}
	}
	return false
}

func encode(img *image.NRGBA, format string, quality int) []byte {
	b := img.Bounds()
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s %s %d %d %d\n", magic, format, quality, b.Dx(), b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		i := img.PixOffset(b.Min.X, y)
		buf.Write(img.Pix[i : i+b.Dx()*4])
	}
	return buf.Bytes()
}

// Solid returns an opaque w×h buffer of one colour.
func Solid(w, h int, r, g, b uint8) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = r
		img.Pix[i+1] = g
		img.Pix[i+2] = b
		img.Pix[i+3] = 255
	}
	return img
}

// Gradient returns a w×h buffer with a deterministic colour ramp.
func Gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := img.PixOffset(x, y)
			img.Pix[i] = uint8(x * 255 / max(w-1, 1))
			img.Pix[i+1] = uint8(y * 255 / max(h-1, 1))
			img.Pix[i+2] = uint8((x*7 + y*13) % 256)
			img.Pix[i+3] = 255
		}
	}
	return img
}

var _ raster.Backend = (*Fake)(nil)
