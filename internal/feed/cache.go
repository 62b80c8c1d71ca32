package feed

import (
	"context"
	"errors"
	log "log/slog"
	"slices"
	"sync"

	"discord-chat/internal/models"
)

// Cursor points at the oldest message of a page. It is opaque to clients.
type Cursor string

// Page is one server batch, newest first.
type Page struct {
	Messages   []models.Message
	NextCursor *Cursor
}

// PageResult is what a Fetcher returns. A nil NextCursor means the history
// is exhausted.
type PageResult struct {
	Messages   []models.Message
	NextCursor *Cursor
}

// Fetcher loads one page of history. A nil cursor asks for the newest page.
type Fetcher interface {
	FetchPage(ctx context.Context, chat models.ChatRef, cursor *Cursor) (PageResult, error)
}

type Status string

const (
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusError   Status = "error"
)

// Snapshot is a read-only view of a Cache. Gen grows with every mutation,
// so a later snapshot always has a higher Gen.
type Snapshot struct {
	Gen             uint64
	Chat            models.ChatRef
	Pages           []Page
	HasMoreOlder    bool
	IsFetchingOlder bool
	Status          Status
	Err             error
}

// Messages flattens the pages, newest first.
func (s Snapshot) Messages() []models.Message {
	out := make([]models.Message, 0, s.ItemCount())
	for _, p := range s.Pages {
		out = append(out, p.Messages...)
	}
	return out
}

func (s Snapshot) ItemCount() int {
	n := 0
	for _, p := range s.Pages {
		n += len(p.Messages)
	}
	return n
}

// AccessDenied reports whether the last fetch failed with an *AuthError.
func (s Snapshot) AccessDenied() bool {
	return s.Status == StatusError && IsAuthError(s.Err)
}

// Cache holds the paged history of one conversation. Page fetches and live
// events both mutate it; every mutation happens under mu.
type Cache struct {
	chat    models.ChatRef
	fetcher Fetcher
	logger  *log.Logger

	mu           sync.Mutex
	pages        []Page
	hasMoreOlder bool
	fetching     bool
	status       Status
	err          error
	cursor       *Cursor
	loaded       bool
	closed       bool
	epoch        uint64
	version      uint64
	onChange     func(Snapshot)

	// emitMu orders deliveries to onChange. Only the newest queued snapshot
	// is delivered; one goroutine at a time drains the queue.
	emitMu   sync.Mutex
	pending  *Snapshot
	queued   uint64
	emitting bool
}

// NewCache creates an empty cache for chat.
func NewCache(chat models.ChatRef, fetcher Fetcher, logger *log.Logger) *Cache {
	if logger == nil {
		logger = log.Default()
	}
	return &Cache{
		chat:    chat,
		fetcher: fetcher,
		logger:  logger.With("chat", chat.String()),
		status:  StatusLoading,
	}
}

// OnChange registers fn to be called with a fresh snapshot after every
// mutation. fn runs outside the cache lock and never concurrently with
// itself; snapshots reach it in Gen order and intermediate ones may be
// skipped when mutations outpace it.
func (c *Cache) OnChange(fn func(Snapshot)) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

type pendingFetch struct {
	epoch  uint64
	cursor *Cursor
}

// FetchPage loads the newest page when nothing is loaded yet and the next
// older page otherwise.
func (c *Cache) FetchPage(ctx context.Context) error {
	p, err := c.beginFetch()
	if err != nil {
		return err
	}
	res, err := c.fetcher.FetchPage(ctx, c.chat, p.cursor)
	return c.completeFetch(p, res, err)
}

// StartFetch marks the fetch in flight before returning and resolves it in
// the background. The returned channel yields the outcome once.
func (c *Cache) StartFetch(ctx context.Context) (<-chan error, error) {
	p, err := c.beginFetch()
	if err != nil {
		return nil, err
	}
	done := make(chan error, 1)
	go func() {
		res, err := c.fetcher.FetchPage(ctx, c.chat, p.cursor)
		done <- c.completeFetch(p, res, err)
	}()
	return done, nil
}

func (c *Cache) beginFetch() (pendingFetch, error) {
	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		return pendingFetch{}, ErrClosed
	case c.fetching:
		c.mu.Unlock()
		return pendingFetch{}, ErrFetchInFlight
	case c.loaded && !c.hasMoreOlder:
		c.mu.Unlock()
		return pendingFetch{}, ErrHistoryExhausted
	}

	c.fetching = true
	c.err = nil
	if c.loaded {
		c.status = StatusReady
	} else {
		c.status = StatusLoading
	}
	p := pendingFetch{epoch: c.epoch, cursor: c.cursor}
	snap := c.changedLocked()
	c.mu.Unlock()

	c.emit(snap)
	return p, nil
}

func (c *Cache) completeFetch(p pendingFetch, res PageResult, fetchErr error) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.logger.Debug("discarding page fetched after close")
		return ErrClosed
	}
	if p.epoch != c.epoch {
		c.mu.Unlock()
		c.logger.Debug("discarding page fetched before reset")
		return nil
	}

	c.fetching = false
	if fetchErr != nil {
		c.status = StatusError
		c.err = fetchErr
		snap := c.changedLocked()
		c.mu.Unlock()

		if errors.Is(fetchErr, context.Canceled) {
			c.logger.Debug("history fetch canceled")
		} else {
			c.logger.Warn("history fetch failed", "error", fetchErr, "auth", IsAuthError(fetchErr))
		}
		c.emit(snap)
		return fetchErr
	}

	if c.loaded {
		c.appendOlderLocked(res)
	} else {
		c.mergeFirstLocked(res)
	}
	c.cursor = res.NextCursor
	c.hasMoreOlder = res.NextCursor != nil
	c.loaded = true
	c.status = StatusReady
	c.err = nil
	snap := c.changedLocked()
	c.mu.Unlock()

	c.emit(snap)
	return nil
}

// mergeFirstLocked folds the newest page together with messages that live
// events inserted before it resolved.
func (c *Cache) mergeFirstLocked(res PageResult) {
	var merged []models.Message
	if len(c.pages) > 0 {
		merged = slices.Clone(c.pages[0].Messages)
	}
	seen := idSet(merged)
	for _, m := range res.Messages {
		if _, dup := seen[m.ID]; dup {
			c.logger.Info("ignoring overlapping message in newest page", "message_id", m.ID)
			continue
		}
		seen[m.ID] = struct{}{}
		merged = append(merged, m)
	}
	slices.SortFunc(merged, func(a, b models.Message) int {
		switch {
		case a.ID > b.ID:
			return -1
		case a.ID < b.ID:
			return 1
		}
		return 0
	})
	if len(merged) == 0 {
		c.pages = nil
		return
	}
	c.pages = []Page{{Messages: merged, NextCursor: res.NextCursor}}
}

func (c *Cache) appendOlderLocked(res PageResult) {
	seen := make(map[int64]struct{})
	var oldest int64
	for _, p := range c.pages {
		for _, m := range p.Messages {
			seen[m.ID] = struct{}{}
			oldest = m.ID
		}
	}

	kept := make([]models.Message, 0, len(res.Messages))
	for _, m := range res.Messages {
		if _, dup := seen[m.ID]; dup {
			c.logger.Info("ignoring message already in an earlier page", "message_id", m.ID)
			continue
		}
		if oldest != 0 && m.ID >= oldest {
			c.logger.Warn("ignoring out of order message in older page", "message_id", m.ID, "oldest_cached", oldest)
			continue
		}
		if len(kept) > 0 && m.ID >= kept[len(kept)-1].ID {
			c.logger.Warn("ignoring unsorted message in older page", "message_id", m.ID)
			continue
		}
		seen[m.ID] = struct{}{}
		kept = append(kept, m)
	}
	if len(kept) == 0 {
		return
	}
	c.pages = append(slices.Clip(c.pages), Page{Messages: kept, NextCursor: res.NextCursor})
}

// ApplyEvent merges a live event. Duplicate inserts are swallowed; malformed
// events are logged and returned.
func (c *Cache) ApplyEvent(ev models.LiveEvent) (Outcome, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return OutcomeDropped, ErrClosed
	}
	pages, outcome, err := Apply(c.pages, ev)
	if !outcome.Changed() {
		c.mu.Unlock()
		var dup *DuplicateInsertError
		if errors.As(err, &dup) {
			return outcome, nil
		}
		if err != nil {
			c.logger.Warn("dropping live event", "error", err)
		}
		return outcome, err
	}
	c.pages = pages
	snap := c.changedLocked()
	c.mu.Unlock()

	c.emit(snap)
	return outcome, nil
}

// Reset forgets every page. A fetch in flight at the time of the reset is
// discarded when it resolves.
func (c *Cache) Reset() {
	c.mu.Lock()
	c.epoch++
	c.pages = nil
	c.cursor = nil
	c.loaded = false
	c.hasMoreOlder = false
	c.fetching = false
	c.status = StatusLoading
	c.err = nil
	snap := c.changedLocked()
	c.mu.Unlock()

	c.emit(snap)
}

// Renotify delivers the current snapshot again, e.g. when state kept next to
// the cache changed.
func (c *Cache) Renotify() {
	c.emit(c.Snapshot())
}

// Close stops all further mutation.
func (c *Cache) Close() {
	c.mu.Lock()
	c.closed = true
	c.fetching = false
	c.onChange = nil
	c.mu.Unlock()
}

func (c *Cache) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Cache) changedLocked() Snapshot {
	c.version++
	return c.snapshotLocked()
}

func (c *Cache) snapshotLocked() Snapshot {
	return Snapshot{
		Gen:             c.version,
		Chat:            c.chat,
		Pages:           slices.Clone(c.pages),
		HasMoreOlder:    c.hasMoreOlder,
		IsFetchingOlder: c.fetching,
		Status:          c.status,
		Err:             c.err,
	}
}

func (c *Cache) emit(snap Snapshot) {
	c.emitMu.Lock()
	if snap.Gen < c.queued {
		c.emitMu.Unlock()
		return
	}
	c.queued = snap.Gen
	c.pending = &snap
	if c.emitting {
		c.emitMu.Unlock()
		return
	}
	c.emitting = true
	for c.pending != nil {
		next := *c.pending
		c.pending = nil
		c.emitMu.Unlock()

		c.mu.Lock()
		fn := c.onChange
		c.mu.Unlock()
		if fn != nil {
			fn(next)
		}

		c.emitMu.Lock()
	}
	c.emitting = false
	c.emitMu.Unlock()
}

func idSet(msgs []models.Message) map[int64]struct{} {
	set := make(map[int64]struct{}, len(msgs))
	for _, m := range msgs {
		set[m.ID] = struct{}{}
	}
	return set
}
