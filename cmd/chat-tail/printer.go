package main

import (
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	"discord-chat/internal/feed"
	"discord-chat/internal/models"
)

// printer writes each message once, and again whenever it is edited or
// deleted. Every rendered view prints its unseen messages oldest first.
// While held only the latest view is kept, so history loaded in several
// pages prints as one ordered batch on Release.
type printer struct {
	mu      sync.Mutex
	w       io.Writer
	seen    map[int64]time.Time
	live    feed.LiveStatus
	lastErr error
	held    bool
	pending *feed.View
}

func newPrinter(w io.Writer) *printer {
	return &printer{w: w, seen: make(map[int64]time.Time)}
}

func (p *printer) Hold() {
	p.mu.Lock()
	p.held = true
	p.mu.Unlock()
}

func (p *printer) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.held = false
	if p.pending != nil {
		v := *p.pending
		p.pending = nil
		p.render(v)
	}
}

func (p *printer) Render(v feed.View) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.held {
		p.pending = &v
		return
	}
	p.render(v)
}

func (p *printer) render(v feed.View) {
	msgs := v.Messages()
	slices.Reverse(msgs)
	for _, m := range msgs {
		prev, ok := p.seen[m.ID]
		switch {
		case !ok:
			fmt.Fprintln(p.w, formatMessage(m, ""))
		case m.UpdatedAt.After(prev):
			tag := "edited"
			if m.Deleted {
				tag = "deleted"
			}
			fmt.Fprintln(p.w, formatMessage(m, tag))
		default:
			continue
		}
		p.seen[m.ID] = m.UpdatedAt
	}

	if v.Err != nil && v.Err != p.lastErr {
		fmt.Fprintf(p.w, "! %v\n", v.Err)
	}
	p.lastErr = v.Err

	if v.Live.Connected != p.live.Connected || v.Live.Disconnected != p.live.Disconnected {
		switch {
		case v.Live.Disconnected:
			fmt.Fprintln(p.w, "* live updates stopped")
		case v.Live.Connected:
			fmt.Fprintln(p.w, "* live")
		default:
			fmt.Fprintln(p.w, "* reconnecting")
		}
	}
	p.live = v.Live
}

func formatMessage(m models.Message, tag string) string {
	body := ""
	if m.Content != nil {
		body = *m.Content
	}
	if m.FileURL != nil {
		body += " [" + *m.FileURL + "]"
	}
	line := fmt.Sprintf("#%d %s member-%d: %s", m.ID, m.CreatedAt.Local().Format("15:04"), m.MemberID, body)
	if tag != "" {
		line += " (" + tag + ")"
	}
	return line
}
