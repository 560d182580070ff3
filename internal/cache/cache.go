package cache

import (
	"context"
	"log/slog"
	"sync"

	"jukebox/internal/logging"
	"jukebox/internal/services"
)

// Entry is a cache hit handed back to callers.
type Entry struct {
	Key  string
	Path string
	Meta Metadata
}

// FillFunc produces the file for a missing key. It returns the path of a
// finished file outside the cache; the cache copies it into place.
type FillFunc func(ctx context.Context) (srcPath string, meta Metadata, err error)

type call struct {
	done  chan struct{}
	entry Entry
	err   error
}

// Cache wraps a Store with per-key request coalescing: when several
// requests miss on the same key at once, one runs the fill and the rest
// wait for its result.
type Cache struct {
	store  Store
	logger *slog.Logger

	mu    sync.Mutex
	calls map[string]*call
}

// New wraps store. A nil logger disables logging.
func New(store Store, logger *slog.Logger) *Cache {
	return &Cache{
		store:  store,
		logger: logging.NewComponentLogger(logger, "cache"),
		calls:  make(map[string]*call),
	}
}

// Get looks up key without filling.
func (c *Cache) Get(key string) (Entry, bool, error) {
	meta, ok, err := c.store.Exists(key)
	if err != nil || !ok {
		return Entry{}, false, err
	}
	return Entry{Key: key, Path: c.store.Path(key), Meta: meta}, true, nil
}

// GetOrFill returns the entry for key, running fill at most once across
// concurrent callers when it is missing. The returned bool reports whether
// the entry was already cached. A fill that succeeds but cannot be
// published returns the source file directly with a cache write error
// logged, so one bad disk state does not fail the request.
func (c *Cache) GetOrFill(ctx context.Context, key string, fill FillFunc) (Entry, bool, error) {
	if entry, ok, err := c.Get(key); err != nil {
		return Entry{}, false, err
	} else if ok {
		return entry, true, nil
	}

	c.mu.Lock()
	if inflight, ok := c.calls[key]; ok {
		c.mu.Unlock()
		select {
		case <-inflight.done:
			// A coalesced waiter counts as a cache hit: the work ran once.
			return inflight.entry, inflight.err == nil, inflight.err
		case <-ctx.Done():
			return Entry{}, false, ctx.Err()
		}
	}
	cl := &call{done: make(chan struct{})}
	c.calls[key] = cl
	c.mu.Unlock()

	cl.entry, cl.err = c.fill(ctx, key, fill)
	c.mu.Lock()
	delete(c.calls, key)
	c.mu.Unlock()
	close(cl.done)

	return cl.entry, false, cl.err
}

func (c *Cache) fill(ctx context.Context, key string, fill FillFunc) (Entry, error) {
	// Re-check under coalescing ownership; another process may have
	// published while we queued.
	if entry, ok, err := c.Get(key); err == nil && ok {
		return entry, nil
	}

	srcPath, meta, err := fill(ctx)
	if err != nil {
		return Entry{}, err
	}

	published, err := c.store.Publish(key, srcPath, meta)
	if err != nil {
		c.logger.WarnContext(ctx, "cache write failed, serving uncached result",
			logging.String(logging.FieldCacheKey, key),
			logging.Error(services.Wrap(services.ErrCacheWrite, "cache", "publish", "publish entry", err)),
		)
		meta.Key = key
		return Entry{Key: key, Path: srcPath, Meta: meta}, nil
	}
	return Entry{Key: key, Path: c.store.Path(key), Meta: published}, nil
}
