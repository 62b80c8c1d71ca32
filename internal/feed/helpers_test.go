package feed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"discord-chat/internal/models"
)

var (
	testChat = models.ChatRef{Kind: models.ChatKindChannel, ID: 1}
	baseTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
)

func testMessage(id int64) models.Message {
	at := baseTime.Add(time.Duration(id) * time.Second)
	content := fmt.Sprintf("message %d", id)
	return models.Message{ID: id, ChatID: testChat.ID, MemberID: 7, Content: &content, CreatedAt: at, UpdatedAt: at}
}

// descending returns messages from..to inclusive, newest first.
func descending(from, to int64) []models.Message {
	out := make([]models.Message, 0, from-to+1)
	for id := from; id >= to; id-- {
		out = append(out, testMessage(id))
	}
	return out
}

func edited(m models.Message, content string, after time.Duration) models.Message {
	m.Content = &content
	m.UpdatedAt = m.UpdatedAt.Add(after)
	return m
}

func liveEvent(kind models.EventKind, m models.Message) models.LiveEvent {
	return models.NewLiveEvent(testChat, kind, m)
}

func cursorOf(s string) *Cursor {
	c := Cursor(s)
	return &c
}

func ids(msgs []models.Message) []int64 {
	out := make([]int64, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}

type fetchCall struct {
	cursor *Cursor
	reply  chan fetchReply
}

type fetchReply struct {
	res PageResult
	err error
}

// scriptedFetcher hands every call to the test through calls, so the test
// controls when and how each fetch resolves.
type scriptedFetcher struct {
	calls chan fetchCall

	mu    sync.Mutex
	count int
}

func newScriptedFetcher() *scriptedFetcher {
	return &scriptedFetcher{calls: make(chan fetchCall, 8)}
}

func (f *scriptedFetcher) FetchPage(ctx context.Context, _ models.ChatRef, cursor *Cursor) (PageResult, error) {
	f.mu.Lock()
	f.count++
	f.mu.Unlock()

	call := fetchCall{cursor: cursor, reply: make(chan fetchReply, 1)}
	f.calls <- call
	select {
	case r := <-call.reply:
		return r.res, r.err
	case <-ctx.Done():
		return PageResult{}, ctx.Err()
	}
}

func (f *scriptedFetcher) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count
}

// staticFetcher answers from a map keyed by cursor ("" for the newest page).
type staticFetcher struct {
	mu    sync.Mutex
	pages map[string]PageResult
	errs  []error
	calls []string
}

func (f *staticFetcher) FetchPage(_ context.Context, _ models.ChatRef, cursor *Cursor) (PageResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := ""
	if cursor != nil {
		key = string(*cursor)
	}
	f.calls = append(f.calls, key)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return PageResult{}, err
		}
	}
	return f.pages[key], nil
}
