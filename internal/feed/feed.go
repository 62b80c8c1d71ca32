// Package feed keeps a live, incrementally paged view of one conversation:
// history pages fetched on demand, live events merged as they arrive.
package feed

import (
	"context"
	"errors"
	log "log/slog"
	"sync"

	"discord-chat/internal/models"
)

// Config wires a Feed.
type Config struct {
	Chat    models.ChatRef
	Fetcher Fetcher
	// Live is optional; without a URL the feed only shows fetched history.
	Live LiveConfig
	// ScrollThreshold is the distance from the top of the loaded history at
	// which older pages are requested.
	ScrollThreshold float64
	// RefreshOnReconnect refetches the newest page after the live channel
	// recovers from a drop.
	RefreshOnReconnect bool
	Logger             *log.Logger
	OnChange           func(View)
}

// View is what a renderer needs: the cached pages and the live status.
type View struct {
	Snapshot
	Live LiveStatus
}

// Feed owns the cache, live channel and scroll coordinator of one mounted
// chat view.
type Feed struct {
	cfg    Config
	logger *log.Logger
	cache  *Cache
	coord  *Coordinator

	mu     sync.Mutex
	live   *LiveChannel
	ctx    context.Context
	cancel context.CancelFunc
	opened bool
	closed bool
}

// New builds a feed. Nothing happens on the network until Open.
func New(cfg Config) *Feed {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	f := &Feed{cfg: cfg, logger: logger}
	f.cache = NewCache(cfg.Chat, cfg.Fetcher, logger)
	f.coord = NewCoordinator(cfg.ScrollThreshold, f.loadOlderAsync)
	f.cache.OnChange(func(s Snapshot) { f.notify(s) })
	return f
}

// Open mounts the feed: it subscribes to live events and loads the newest
// page. The returned disposer must be called on unmount; it is valid even
// when the first fetch failed so the caller can Retry.
func (f *Feed) Open(ctx context.Context) (func(), error) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil, ErrClosed
	}
	if f.opened {
		f.mu.Unlock()
		return nil, errors.New("feed already open")
	}
	f.opened = true
	f.ctx, f.cancel = context.WithCancel(ctx)

	if f.cfg.Live.URL != "" {
		lc := f.cfg.Live
		if lc.Logger == nil {
			lc.Logger = f.logger
		}
		userStatus := lc.OnStatus
		lc.OnStatus = func(s LiveStatus) {
			if userStatus != nil {
				userStatus(s)
			}
			f.cache.Renotify()
		}
		userReconnect := lc.OnReconnect
		lc.OnReconnect = func() {
			if userReconnect != nil {
				userReconnect()
			}
			if f.cfg.RefreshOnReconnect {
				go f.refresh()
			}
		}
		f.live = Subscribe(f.ctx, f.cfg.Chat, lc, f.HandleEvent)
	}
	ctx = f.ctx
	f.mu.Unlock()

	return f.Close, f.cache.FetchPage(ctx)
}

// HandleEvent applies one live event. It is the sink of the live channel.
func (f *Feed) HandleEvent(ev models.LiveEvent) {
	outcome, err := f.cache.ApplyEvent(ev)
	if err != nil {
		return
	}
	f.logger.Debug("live event applied", "kind", ev.Kind, "message_id", ev.Message.ID, "outcome", outcome.String())
}

// LoadOlder fetches the next older page and waits for it.
func (f *Feed) LoadOlder(ctx context.Context) error {
	return f.cache.FetchPage(ctx)
}

// Retry repeats the last failed fetch. Automatic loading resumes after it
// succeeds.
func (f *Feed) Retry(ctx context.Context) error {
	f.coord.Rearm()
	return f.cache.FetchPage(ctx)
}

// Refresh drops every page and reloads the newest one. It is the recovery
// path after missed live events.
func (f *Feed) Refresh(ctx context.Context) error {
	f.cache.Reset()
	f.coord.Rearm()
	return f.cache.FetchPage(ctx)
}

func (f *Feed) refresh() {
	f.mu.Lock()
	ctx := f.ctx
	f.mu.Unlock()
	if err := f.Refresh(ctx); err != nil && !errors.Is(err, ErrClosed) {
		f.logger.Warn("refresh after reconnect failed", "error", err)
	}
}

// OnScroll reports the viewport distance from the top of the loaded history
// and returns whether an older page was requested.
func (f *Feed) OnScroll(distanceFromTop float64) bool {
	s := f.cache.Snapshot()
	return f.coord.Observe(ScrollState{
		DistanceFromTop: distanceFromTop,
		IsFetchingOlder: s.IsFetchingOlder,
		HasMoreOlder:    s.HasMoreOlder,
		Errored:         s.Status == StatusError,
		ItemCount:       s.ItemCount(),
	})
}

func (f *Feed) loadOlderAsync() {
	f.mu.Lock()
	ctx := f.ctx
	f.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}
	done, err := f.cache.StartFetch(ctx)
	if err != nil {
		f.logger.Debug("older page not requested", "reason", err)
		return
	}
	go func() { <-done }()
}

func (f *Feed) Snapshot() Snapshot { return f.cache.Snapshot() }

// Messages returns every cached message, newest first.
func (f *Feed) Messages() []models.Message { return f.cache.Snapshot().Messages() }

// Live returns the live channel status. A feed without a live URL reports
// the zero status.
func (f *Feed) Live() LiveStatus {
	f.mu.Lock()
	live := f.live
	f.mu.Unlock()
	if live == nil {
		return LiveStatus{}
	}
	return live.Status()
}

// Close releases the subscription and abandons any fetch in flight.
func (f *Feed) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	live, cancel := f.live, f.cancel
	f.mu.Unlock()

	f.cache.Close()
	if cancel != nil {
		cancel()
	}
	if live != nil {
		live.Close()
	}
}

func (f *Feed) notify(s Snapshot) {
	if f.cfg.OnChange == nil {
		return
	}
	f.cfg.OnChange(View{Snapshot: s, Live: f.Live()})
}
