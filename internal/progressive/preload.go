package progressive

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

// PreloadReport summarizes a batch preload.
type PreloadReport struct {
	Loaded  []string         `json:"loaded"`
	Skipped []string         `json:"skipped"`
	Failed  map[string]error `json:"-"`
}

// Preload loads every not-yet-cached URL concurrently. One failure never
// stops the others; the cache gains only the URLs that succeeded.
func (l *Loader) Preload(ctx context.Context, urls []string) *PreloadReport {
	rep := &PreloadReport{Failed: make(map[string]error)}
	var mu sync.Mutex

	var g errgroup.Group
	if l.concurrency > 0 {
		g.SetLimit(l.concurrency)
	}

	seen := make(map[string]bool, len(urls))
	for _, u := range urls {
		if seen[u] {
			continue
		}
		seen[u] = true
		if l.cache.Has(u) {
			rep.Skipped = append(rep.Skipped, u)
			continue
		}
		g.Go(func() error {
			_, err := l.Load(ctx, u, nil)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				l.log.Warn().Err(err).Str("url", u).Msg("preload failed")
				rep.Failed[u] = err
				return nil
			}
			rep.Loaded = append(rep.Loaded, u)
			return nil
		})
	}
	g.Wait()

	sort.Strings(rep.Loaded)
	sort.Strings(rep.Skipped)
	return rep
}
