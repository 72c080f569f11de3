package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"math"
	"testing"

	"github.com/AnyUserName/platepix/internal/raster"
	"github.com/AnyUserName/platepix/internal/raster/rastertest"
	"github.com/AnyUserName/platepix/internal/sharpen"
	"github.com/AnyUserName/platepix/internal/source"
)

func mustOptions(t *testing.T, opts ...Option) Options {
	t.Helper()
	o, err := NewOptions(opts...)
	if err != nil {
		t.Fatal(err)
	}
	return o
}

func ops(calls []rastertest.Call) []string {
	var out []string
	for _, c := range calls {
		out = append(out, c.Op)
	}
	return out
}

func TestOptimize_BytesSource(t *testing.T) {
	fake := &rastertest.Fake{}
	data := rastertest.Source(rastertest.Gradient(400, 300))
	opt := NewOptimizer(fake)

	res, err := opt.Optimize(context.Background(), source.FromBytes(data),
		mustOptions(t, WithMaxSize(200, 200), WithFormat("jpeg"), WithQuality(70), WithProgressive(false)))
	if err != nil {
		t.Fatal(err)
	}

	md := res.Metadata
	if md.Width != 200 || md.Height != 150 || md.Format != "jpeg" {
		t.Errorf("metadata = %+v", md)
	}
	if md.AspectRatio != 200.0/150.0 {
		t.Errorf("aspect = %v", md.AspectRatio)
	}
	if md.SizeBytes != int64(len(res.Optimized.Data)) {
		t.Errorf("size bytes = %d, data = %d", md.SizeBytes, len(res.Optimized.Data))
	}
	h, err := rastertest.Parse(res.Optimized.Data)
	if err != nil {
		t.Fatal(err)
	}
	if h.Quality != 70 || h.Width != 200 || h.Height != 150 {
		t.Errorf("encoded header = %+v", h)
	}

	want := float64(len(data)) / float64(len(res.Optimized.Data))
	if res.CompressionRatio != want {
		t.Errorf("ratio = %v, want %v", res.CompressionRatio, want)
	}
	if res.Original.Kind != "bytes" || res.Original.Size != int64(len(data)) || res.Original.Width != 400 {
		t.Errorf("original = %+v", res.Original)
	}
	if res.BlurHash == "" {
		t.Error("missing blurhash")
	}
	if res.Variants != nil || res.Placeholder != nil {
		t.Error("optional outputs attached without being requested")
	}

	if got := ops(fake.Calls()); len(got) != 3 || got[0] != "decode" || got[1] != "resize" || got[2] != "encode" {
		t.Errorf("backend calls = %v", got)
	}
}

func TestOptimize_SharpensWideOutput(t *testing.T) {
	fake := &rastertest.Fake{}
	src := rastertest.Gradient(400, 300)
	res, err := NewOptimizer(fake).Optimize(context.Background(), source.FromImage(src),
		mustOptions(t, WithMaxSize(300, 300), WithProgressive(false)))
	if err != nil {
		t.Fatal(err)
	}

	resized, err := fake.Resize(context.Background(), src, 300, 225)
	if err != nil {
		t.Fatal(err)
	}
	want, err := sharpen.Apply(resized)
	if err != nil {
		t.Fatal(err)
	}
	got, _, err := fake.Decode(context.Background(), res.Optimized.Data)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got.Pix, want.Pix) {
		t.Error("output above the threshold was not sharpened")
	}
}

func TestOptimize_NarrowOutputNotSharpened(t *testing.T) {
	fake := &rastertest.Fake{}
	src := rastertest.Gradient(400, 300)
	res, err := NewOptimizer(fake).Optimize(context.Background(), source.FromImage(src),
		mustOptions(t, WithMaxSize(200, 200), WithProgressive(false)))
	if err != nil {
		t.Fatal(err)
	}
	resized, _ := fake.Resize(context.Background(), src, 200, 150)
	got, _, _ := fake.Decode(context.Background(), res.Optimized.Data)
	if !bytes.Equal(got.Pix, resized.Pix) {
		t.Error("output at the threshold was modified")
	}
}

func TestOptimize_PixelSource(t *testing.T) {
	fake := &rastertest.Fake{}
	res, err := NewOptimizer(fake).Optimize(context.Background(), source.FromImage(rastertest.Gradient(120, 80)), DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if res.CompressionRatio != 1.0 {
		t.Errorf("ratio for unknown original size = %v, want 1", res.CompressionRatio)
	}
	if res.Original.Size != UnknownSize || res.Original.Kind != "pixels" {
		t.Errorf("original = %+v", res.Original)
	}
	if res.Metadata.Width != 120 || res.Metadata.Height != 80 {
		t.Errorf("source inside the box should keep its size: %+v", res.Metadata)
	}
	if len(fake.CallsFor("decode")) != 0 {
		t.Error("pixel source went through the decoder")
	}
}

func TestOptimize_Variants(t *testing.T) {
	fake := &rastertest.Fake{}
	res, err := NewOptimizer(fake).Optimize(context.Background(), source.FromImage(rastertest.Gradient(1000, 750)),
		mustOptions(t, WithMaxSize(600, 600), WithVariants(true), WithProgressive(false)))
	if err != nil {
		t.Fatal(err)
	}
	v := res.Variants
	if v == nil || v.Thumbnail == nil || v.Medium == nil || v.Large == nil {
		t.Fatalf("variants = %+v", v)
	}
	check := func(name string, e *raster.Encoded, w, h, q int) {
		if e.Width != w || e.Height != h || e.Quality != q || e.Format != "webp" {
			t.Errorf("%s = %dx%d q%d %s, want %dx%d q%d webp", name, e.Width, e.Height, e.Quality, e.Format, w, h, q)
		}
	}
	check("thumbnail", v.Thumbnail, 300, 225, 80)
	check("medium", v.Medium, 800, 600, 85)
	check("large", v.Large, 600, 450, 90)
}

func TestOptimize_VariantPolicy(t *testing.T) {
	failThumb := func(format string, w, h int) error {
		if w == 300 {
			return errors.New("encoder crashed")
		}
		return nil
	}
	src := source.FromImage(rastertest.Gradient(1000, 750))
	opts := mustOptions(t, WithMaxSize(600, 600), WithVariants(true), WithProgressive(false))

	t.Run("strict", func(t *testing.T) {
		fake := &rastertest.Fake{EncodeErr: failThumb}
		if _, err := NewOptimizer(fake).Optimize(context.Background(), src, opts); err == nil {
			t.Fatal("strict mode should fail when a variant fails")
		}
	})

	t.Run("partial", func(t *testing.T) {
		fake := &rastertest.Fake{EncodeErr: failThumb}
		res, err := NewOptimizer(fake, WithPartialVariants(true)).Optimize(context.Background(), src, opts)
		if err != nil {
			t.Fatal(err)
		}
		if res.Variants.Thumbnail != nil || res.Variants.Medium == nil || res.Variants.Large == nil {
			t.Errorf("partial set = %+v", res.Variants)
		}
		if res.VariantErr == nil {
			t.Error("partial failure not reported")
		}
	})
}

func TestOptimize_Progressive(t *testing.T) {
	fake := &rastertest.Fake{}
	res, err := NewOptimizer(fake).Optimize(context.Background(), source.FromImage(rastertest.Gradient(400, 300)), DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	ph, pv := res.Placeholder, res.Preview
	if ph == nil || ph.Width != 20 || ph.Height != 15 || ph.Quality != 10 || ph.Format != "jpeg" {
		t.Errorf("placeholder = %+v", ph)
	}
	if pv == nil || pv.Width != 100 || pv.Height != 75 || pv.Quality != 30 || pv.Format != "jpeg" {
		t.Errorf("preview = %+v", pv)
	}
}

func TestOptimize_Errors(t *testing.T) {
	ctx := context.Background()
	img := source.FromImage(rastertest.Gradient(50, 50))

	t.Run("unknown format", func(t *testing.T) {
		fake := &rastertest.Fake{}
		_, err := NewOptimizer(fake).Optimize(ctx, img, Options{Format: "bmp"})
		if !errors.Is(err, raster.ErrUnsupportedFormat) {
			t.Fatalf("got %v", err)
		}
		if len(fake.Calls()) != 0 {
			t.Error("backend used before options were validated")
		}
	})

	t.Run("format unavailable", func(t *testing.T) {
		fake := &rastertest.Fake{Supported: []string{"png"}}
		_, err := NewOptimizer(fake).Optimize(ctx, img, mustOptions(t, WithFormat("avif")))
		if !errors.Is(err, raster.ErrUnsupportedFormat) {
			t.Fatalf("got %v", err)
		}
	})

	t.Run("corrupt bytes", func(t *testing.T) {
		_, err := NewOptimizer(&rastertest.Fake{}).Optimize(ctx, source.FromBytes([]byte("not a photo")), DefaultOptions())
		var de *raster.DecodeError
		if !errors.As(err, &de) {
			t.Fatalf("got %v", err)
		}
		if de.Source != "<bytes>" {
			t.Errorf("decode error source = %q", de.Source)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := NewOptimizer(&rastertest.Fake{}).Optimize(ctx, source.FromPath("/nonexistent/ramen.jpg"), DefaultOptions())
		if !errors.Is(err, raster.ErrDecode) {
			t.Fatalf("got %v", err)
		}
	})

	t.Run("no backend", func(t *testing.T) {
		_, err := NewOptimizer(nil).Optimize(ctx, img, DefaultOptions())
		if !errors.Is(err, raster.ErrDecode) || !errors.Is(err, raster.ErrNoRenderingSurface) {
			t.Fatalf("got %v", err)
		}
	})

	t.Run("nil pixels", func(t *testing.T) {
		_, err := NewOptimizer(&rastertest.Fake{}).Optimize(ctx, source.FromImage(nil), DefaultOptions())
		if !errors.Is(err, raster.ErrNoRenderingSurface) {
			t.Fatalf("got %v", err)
		}
	})

	t.Run("canceled", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		data := rastertest.Source(rastertest.Gradient(10, 10))
		_, err := NewOptimizer(&rastertest.Fake{}).Optimize(cctx, source.FromBytes(data), DefaultOptions())
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("got %v", err)
		}
	})
}

func TestResizeEncode(t *testing.T) {
	ctx := context.Background()
	fake := &rastertest.Fake{}
	e, err := ResizeEncode(ctx, fake, rastertest.Gradient(80, 60), 40, 30, "png", 120)
	if err != nil {
		t.Fatal(err)
	}
	if e.Width != 40 || e.Height != 30 || e.Quality != 100 {
		t.Errorf("encoded = %+v", e)
	}

	if _, err := ResizeEncode(ctx, nil, rastertest.Gradient(8, 8), 4, 4, "png", 50); !errors.Is(err, raster.ErrDecode) {
		t.Errorf("nil backend: %v", err)
	}
	if _, err := ResizeEncode(ctx, fake, nil, 4, 4, "png", 50); !errors.Is(err, raster.ErrDecode) || !errors.Is(err, raster.ErrNoRenderingSurface) {
		t.Errorf("nil image: %v", err)
	}
	if _, err := ResizeEncode(ctx, fake, rastertest.Gradient(8, 8), 4, 4, "avif", 50); !errors.Is(err, raster.ErrUnsupportedFormat) {
		t.Errorf("avif on fake: %v", err)
	}
}

// Re-optimizing an output at the same settings should barely change its size.
func TestOptimize_ReoptimizeRatioNearOne(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 180, 120))
	for y := 0; y < 120; y++ {
		for x := 0; x < 180; x++ {
			i := img.PixOffset(x, y)
			img.Pix[i] = uint8(x)
			img.Pix[i+1] = uint8(y * 2)
			img.Pix[i+2] = 90
			img.Pix[i+3] = 255
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}

	opt := NewOptimizer(raster.NewImaging())
	opts := mustOptions(t, WithFormat("jpeg"), WithQuality(80), WithProgressive(false))
	first, err := opt.Optimize(context.Background(), source.FromBytes(buf.Bytes()), opts)
	if err != nil {
		t.Fatal(err)
	}
	second, err := opt.Optimize(context.Background(), source.FromBytes(first.Optimized.Data), opts)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(second.CompressionRatio-1) > 0.1 {
		t.Errorf("re-optimized ratio = %.3f, want close to 1", second.CompressionRatio)
	}
	if second.Original.Format != "jpeg" {
		t.Errorf("original format = %q", second.Original.Format)
	}
}
