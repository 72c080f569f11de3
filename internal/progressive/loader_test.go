package progressive

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/AnyUserName/platepix/internal/raster"
	"github.com/AnyUserName/platepix/internal/raster/rastertest"
)

type mapFetcher struct {
	files map[string][]byte
	calls atomic.Int64
}

func (f *mapFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	f.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, ok := f.files[url]
	if !ok {
		return nil, &raster.DecodeError{Source: url, Err: errors.New("HTTP 404 Not Found")}
	}
	return data, nil
}

func newFixture() (*Loader, *mapFetcher, *rastertest.Fake) {
	fetch := &mapFetcher{files: map[string][]byte{
		"https://cdn.test/ramen.jpg": rastertest.Source(rastertest.Gradient(400, 300)),
		"https://cdn.test/tacos.jpg": rastertest.Source(rastertest.Gradient(300, 400)),
		"https://cdn.test/salad.jpg": rastertest.Source(rastertest.Solid(64, 64, 40, 180, 60)),
	}}
	fake := &rastertest.Fake{}
	return New(fake, fetch, NewCache()), fetch, fake
}

func collect() (func(Event), func() []Event) {
	var mu sync.Mutex
	var events []Event
	return func(e Event) {
			mu.Lock()
			events = append(events, e)
			mu.Unlock()
		}, func() []Event {
			mu.Lock()
			defer mu.Unlock()
			return append([]Event(nil), events...)
		}
}

func stagesOf(events []Event) []Stage {
	var out []Stage
	for _, e := range events {
		out = append(out, e.Stage)
	}
	return out
}

func TestLoad_FreshStageOrder(t *testing.T) {
	l, _, _ := newFixture()
	notify, events := collect()

	req := l.Start("https://cdn.test/ramen.jpg")
	if req.State() != Placeholder {
		t.Fatalf("initial state = %s", req.State())
	}
	got, err := req.Run(context.Background(), notify)
	if err != nil {
		t.Fatal(err)
	}

	want := []Stage{Placeholder, LowQuality, HighQuality, Done}
	if s := stagesOf(events()); !reflect.DeepEqual(s, want) {
		t.Fatalf("stages = %v, want %v", s, want)
	}
	if !reflect.DeepEqual(req.Stages(), want) {
		t.Errorf("request stages = %v", req.Stages())
	}
	if req.State() != Done {
		t.Errorf("final state = %s", req.State())
	}
	if got.Cached {
		t.Error("fresh load reported cached")
	}
	if got.Image.Bounds().Dx() != 400 || got.Image.Bounds().Dy() != 300 {
		t.Errorf("full image bounds = %v", got.Image.Bounds())
	}
	if !l.Cache().Has("https://cdn.test/ramen.jpg") {
		t.Error("cache not updated")
	}
}

func TestLoad_FrameSizes(t *testing.T) {
	l, _, _ := newFixture()
	notify, events := collect()
	if _, err := l.Load(context.Background(), "https://cdn.test/ramen.jpg", notify); err != nil {
		t.Fatal(err)
	}
	ev := events()

	ph := ev[0].Frame
	if ph == nil || ph.Width != 20 || ph.Height != 15 || ph.Format != "jpeg" || ph.Quality != 10 {
		t.Fatalf("placeholder frame = %+v", ph)
	}
	pv := ev[1].Frame
	if pv == nil || pv.Width != 100 || pv.Height != 75 || pv.Format != "jpeg" || pv.Quality != 30 {
		t.Fatalf("preview frame = %+v", pv)
	}
	if ev[2].Image == nil || ev[3].Image == nil {
		t.Error("high-quality/done events missing the full image")
	}
	for _, e := range ev {
		if e.URL != "https://cdn.test/ramen.jpg" {
			t.Errorf("event url = %q", e.URL)
		}
	}
}

func TestLoad_PreviewRoundTrip(t *testing.T) {
	l, _, fake := newFixture()
	if _, err := l.Load(context.Background(), "https://cdn.test/ramen.jpg", nil); err != nil {
		t.Fatal(err)
	}
	decodes := fake.CallsFor("decode")
	if len(decodes) != 2 {
		t.Fatalf("decode calls = %d, want source + preview", len(decodes))
	}
	if decodes[1].Format != "jpeg" || decodes[1].Width != 100 {
		t.Errorf("second decode = %+v, want the preview", decodes[1])
	}
}

func TestLoad_CachedShortCircuit(t *testing.T) {
	l, fetch, _ := newFixture()
	ctx := context.Background()
	if _, err := l.Load(ctx, "https://cdn.test/tacos.jpg", nil); err != nil {
		t.Fatal(err)
	}
	before := fetch.calls.Load()

	notify, events := collect()
	got, err := l.Load(ctx, "https://cdn.test/tacos.jpg", notify)
	if err != nil {
		t.Fatal(err)
	}
	if s := stagesOf(events()); !reflect.DeepEqual(s, []Stage{Done}) {
		t.Fatalf("cached stages = %v, want [done]", s)
	}
	if !got.Cached {
		t.Error("cached load not flagged")
	}
	if got.Image == nil || got.Image.Bounds().Dx() != 300 {
		t.Error("cached load missing full image")
	}
	if fetch.calls.Load() != before {
		t.Error("cached load hit the network")
	}
}

func TestLoad_FailureLeavesCacheEmpty(t *testing.T) {
	l, _, _ := newFixture()
	notify, events := collect()
	_, err := l.Load(context.Background(), "https://cdn.test/missing.jpg", notify)
	if !errors.Is(err, raster.ErrDecode) {
		t.Fatalf("want decode error, got %v", err)
	}
	if len(events()) != 0 {
		t.Errorf("stages emitted on failed fetch: %v", stagesOf(events()))
	}
	if l.Cache().Len() != 0 {
		t.Error("failed load cached")
	}
}

func TestLoad_CanceledMidway(t *testing.T) {
	l, _, _ := newFixture()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var stages []Stage
	_, err := l.Load(ctx, "https://cdn.test/ramen.jpg", func(e Event) {
		stages = append(stages, e.Stage)
		if e.Stage == Placeholder {
			cancel()
		}
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
	if !reflect.DeepEqual(stages, []Stage{Placeholder}) {
		t.Errorf("stages = %v", stages)
	}
	if l.Cache().Has("https://cdn.test/ramen.jpg") {
		t.Error("canceled load cached")
	}
}

func TestLoad_EncodeFailure(t *testing.T) {
	fetch := &mapFetcher{files: map[string][]byte{"u": rastertest.Source(rastertest.Gradient(50, 50))}}
	fake := &rastertest.Fake{Supported: []string{"webp"}}
	l := New(fake, fetch, nil)
	_, err := l.Load(context.Background(), "u", nil)
	if !errors.Is(err, raster.ErrUnsupportedFormat) {
		t.Fatalf("want unsupported format, got %v", err)
	}
	if l.Cache().Len() != 0 {
		t.Error("failed load cached")
	}
}

func TestPreload_BestEffort(t *testing.T) {
	l, _, _ := newFixture()
	ctx := context.Background()
	if _, err := l.Load(ctx, "https://cdn.test/salad.jpg", nil); err != nil {
		t.Fatal(err)
	}

	rep := l.Preload(ctx, []string{
		"https://cdn.test/ramen.jpg",
		"https://cdn.test/missing.jpg",
		"https://cdn.test/tacos.jpg",
		"https://cdn.test/salad.jpg",
		"https://cdn.test/ramen.jpg",
	})

	wantLoaded := []string{"https://cdn.test/ramen.jpg", "https://cdn.test/tacos.jpg"}
	if !reflect.DeepEqual(rep.Loaded, wantLoaded) {
		t.Errorf("loaded = %v", rep.Loaded)
	}
	if !reflect.DeepEqual(rep.Skipped, []string{"https://cdn.test/salad.jpg"}) {
		t.Errorf("skipped = %v", rep.Skipped)
	}
	if _, ok := rep.Failed["https://cdn.test/missing.jpg"]; !ok || len(rep.Failed) != 1 {
		t.Errorf("failed = %v", rep.Failed)
	}
	if l.Cache().Len() != 3 {
		t.Errorf("cache len = %d, want 3", l.Cache().Len())
	}
	if l.Cache().Has("https://cdn.test/missing.jpg") {
		t.Error("failed URL cached")
	}
}

func TestPreload_ConcurrentBatchesShareCache(t *testing.T) {
	files := map[string][]byte{}
	var urls []string
	for i := 0; i < 12; i++ {
		u := fmt.Sprintf("https://cdn.test/%d.jpg", i)
		urls = append(urls, u)
		files[u] = rastertest.Source(rastertest.Gradient(40+i, 30))
	}
	cache := NewCache()
	fake := &rastertest.Fake{}
	a := New(fake, &mapFetcher{files: files}, cache, WithConcurrency(3))
	b := New(fake, &mapFetcher{files: files}, cache, WithConcurrency(0))

	var wg sync.WaitGroup
	for _, l := range []*Loader{a, b} {
		wg.Add(1)
		go func(l *Loader) {
			defer wg.Done()
			l.Preload(context.Background(), urls)
		}(l)
	}
	wg.Wait()

	if cache.Len() != len(urls) {
		t.Errorf("cache len = %d, want %d", cache.Len(), len(urls))
	}
}

func TestCache(t *testing.T) {
	c := NewCache()
	c.Add(&Loaded{URL: "a"})
	c.Add(&Loaded{URL: "a", Format: "second"})
	c.Add(&Loaded{URL: "b"})
	if c.Len() != 2 {
		t.Fatalf("len = %d", c.Len())
	}
	if got, _ := c.Get("a"); got.Format == "second" {
		t.Error("second insert replaced the first")
	}
	if len(c.URLs()) != 2 {
		t.Errorf("urls = %v", c.URLs())
	}
	c.Reset()
	if c.Len() != 0 || c.Has("a") {
		t.Error("reset left entries")
	}
}

func TestStageString(t *testing.T) {
	if Placeholder.String() != "placeholder" || Done.String() != "done" {
		t.Error("stage names")
	}
}
