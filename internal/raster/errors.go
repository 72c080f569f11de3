package raster

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is; every typed error below matches exactly one.
var (
	ErrDecode             = errors.New("decode failed")
	ErrUnsupportedFormat  = errors.New("unsupported format")
	ErrInvalidBuffer      = errors.New("invalid pixel buffer")
	ErrNoRenderingSurface = errors.New("no rendering surface")
)

// DecodeError reports a source that could not be rasterized: corrupt data,
// an unreachable URL or a non-image input.
type DecodeError struct {
	Source string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("decode: %v", e.Err)
	}
	return fmt.Sprintf("decode %s: %v", e.Source, e.Err)
}

func (e *DecodeError) Unwrap() error        { return e.Err }
func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

// UnsupportedFormatError reports an encode format the backend cannot produce.
type UnsupportedFormatError struct {
	Format string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported format %q", e.Format)
}

func (e *UnsupportedFormatError) Is(target error) bool { return target == ErrUnsupportedFormat }

// InvalidBufferError reports a pixel buffer whose geometry does not match its
// backing slice. Seeing one means a caller built the buffer wrong.
type InvalidBufferError struct {
	Op   string
	Want int
	Got  int
}

func (e *InvalidBufferError) Error() string {
	return fmt.Sprintf("%s: invalid pixel buffer: want %d, got %d", e.Op, e.Want, e.Got)
}

func (e *InvalidBufferError) Is(target error) bool { return target == ErrInvalidBuffer }

// NoRenderingSurfaceError reports that there was nothing to draw into or from.
type NoRenderingSurfaceError struct {
	Op string
}

func (e *NoRenderingSurfaceError) Error() string {
	return fmt.Sprintf("%s: no rendering surface", e.Op)
}

func (e *NoRenderingSurfaceError) Is(target error) bool { return target == ErrNoRenderingSurface }
