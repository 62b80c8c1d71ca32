package feed

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"discord-chat/internal/models"
)

const (
	defaultMaxReconnectAttempts = 8
	defaultReadWait             = 70 * time.Second
	defaultStableAfter          = 10 * time.Second
)

// LiveConfig configures a LiveChannel.
type LiveConfig struct {
	// URL is the websocket base, e.g. ws://host:8083/ws/chats. The chat kind
	// and id are appended.
	URL   string
	Token string

	// MaxReconnectAttempts bounds consecutive failed dials before the
	// channel gives up and reports itself disconnected. A connection that
	// drops before StableAfter counts as a failed attempt.
	MaxReconnectAttempts int
	StableAfter          time.Duration
	InitialBackoff       time.Duration
	MaxBackoff           time.Duration
	ReadWait             time.Duration

	Dialer *websocket.Dialer
	Logger *log.Logger

	// OnReconnect runs after every successful dial except the first. Events
	// missed while disconnected are not replayed.
	OnReconnect func()
	OnStatus    func(LiveStatus)
}

// LiveStatus is the connection state exposed to the view.
type LiveStatus struct {
	Connected bool
	// Disconnected is set once the retry budget is exhausted or the server
	// rejected the subscription. It never clears.
	Disconnected bool
	Err          error
}

// LiveChannel delivers live events of one conversation to a sink.
type LiveChannel struct {
	chat   models.ChatRef
	cfg    LiveConfig
	sink   func(models.LiveEvent)
	logger *log.Logger

	connected    atomic.Bool
	disconnected atomic.Bool

	mu      sync.Mutex
	lastErr error

	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// Subscribe opens the live channel for chat and starts delivering events to
// sink. Close releases it.
func Subscribe(ctx context.Context, chat models.ChatRef, cfg LiveConfig, sink func(models.LiveEvent)) *LiveChannel {
	if cfg.MaxReconnectAttempts <= 0 {
		cfg.MaxReconnectAttempts = defaultMaxReconnectAttempts
	}
	if cfg.ReadWait <= 0 {
		cfg.ReadWait = defaultReadWait
	}
	if cfg.StableAfter <= 0 {
		cfg.StableAfter = defaultStableAfter
	}
	if cfg.Dialer == nil {
		cfg.Dialer = websocket.DefaultDialer
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	ctx, cancel := context.WithCancel(ctx)
	l := &LiveChannel{
		chat:   chat,
		cfg:    cfg,
		sink:   sink,
		logger: logger.With("chat", chat.String(), "component", "live"),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go l.run(ctx)
	return l
}

func (l *LiveChannel) Connected() bool { return l.connected.Load() }

func (l *LiveChannel) Disconnected() bool { return l.disconnected.Load() }

func (l *LiveChannel) Status() LiveStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	return LiveStatus{Connected: l.Connected(), Disconnected: l.Disconnected(), Err: l.lastErr}
}

// Close stops delivery and waits for the connection goroutine to exit.
func (l *LiveChannel) Close() {
	l.closeOnce.Do(func() {
		l.cancel()
		<-l.done
		l.connected.Store(false)
	})
}

// Done is closed once the channel stopped for good.
func (l *LiveChannel) Done() <-chan struct{} { return l.done }

func (l *LiveChannel) run(ctx context.Context) {
	defer close(l.done)

	b := backoff.NewExponentialBackOff()
	if l.cfg.InitialBackoff > 0 {
		b.InitialInterval = l.cfg.InitialBackoff
	}
	if l.cfg.MaxBackoff > 0 {
		b.MaxInterval = l.cfg.MaxBackoff
	}
	b.MaxElapsedTime = 0
	b.Reset()

	failures := 0
	everConnected := false
	for {
		conn, err := l.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if IsAuthError(err) {
				l.giveUp(err)
				return
			}
			failures++
			l.logger.Warn("live channel dial failed", "error", err, "attempt", failures)
			if failures >= l.cfg.MaxReconnectAttempts {
				l.giveUp(err)
				return
			}
			if !sleepCtx(ctx, b.NextBackOff()) {
				return
			}
			continue
		}

		l.setStatus(true, nil)
		if everConnected {
			l.logger.Info("live channel reconnected")
			if l.cfg.OnReconnect != nil {
				l.cfg.OnReconnect()
			}
		}
		everConnected = true

		connectedAt := time.Now()
		err = l.readLoop(ctx, conn)
		l.setStatus(false, err)
		if ctx.Err() != nil {
			return
		}
		if time.Since(connectedAt) >= l.cfg.StableAfter {
			failures = 0
			b.Reset()
		} else {
			failures++
			if failures >= l.cfg.MaxReconnectAttempts {
				l.giveUp(err)
				return
			}
		}
		l.logger.Warn("live channel dropped", "error", err, "attempt", failures)
		if !sleepCtx(ctx, b.NextBackOff()) {
			return
		}
	}
}

func (l *LiveChannel) dial(ctx context.Context) (*websocket.Conn, error) {
	target, err := l.endpoint()
	if err != nil {
		return nil, err
	}
	header := http.Header{}
	if l.cfg.Token != "" {
		header.Set("Authorization", "Bearer "+l.cfg.Token)
	}

	conn, resp, err := l.cfg.Dialer.DialContext(ctx, target, header)
	if err != nil {
		if resp != nil {
			switch resp.StatusCode {
			case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
				return nil, &AuthError{StatusCode: resp.StatusCode, Message: "live subscription rejected"}
			}
		}
		return nil, err
	}
	return conn, nil
}

func (l *LiveChannel) endpoint() (string, error) {
	u, err := url.Parse(l.cfg.URL)
	if err != nil {
		return "", fmt.Errorf("parse live url: %w", err)
	}
	u = u.JoinPath(string(l.chat.Kind), strconv.FormatInt(l.chat.ID, 10))
	if l.cfg.Token != "" {
		q := u.Query()
		q.Set("token", l.cfg.Token)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func (l *LiveChannel) readLoop(ctx context.Context, conn *websocket.Conn) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
		case <-stop:
		}
		conn.Close()
	}()

	extend := func() { _ = conn.SetReadDeadline(time.Now().Add(l.cfg.ReadWait)) }
	extend()
	conn.SetPingHandler(func(data string) error {
		extend()
		err := conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(5*time.Second))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		extend()

		ev, err := l.decode(data)
		if err != nil {
			l.logger.Warn("dropping live event", "error", err)
			continue
		}
		if !l.chat.OwnsTopic(ev.Topic) {
			l.logger.Debug("dropping event for another conversation", "topic", ev.Topic)
			continue
		}
		l.sink(ev)
	}
}

func (l *LiveChannel) decode(data []byte) (models.LiveEvent, error) {
	var ev models.LiveEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return ev, &MalformedEventError{Reason: "undecodable payload", Err: err}
	}
	if ev.Kind == "" && ev.Message != nil {
		ev.Kind = inferKind(l.chat, ev)
	}
	if err := ValidateEvent(ev); err != nil {
		return ev, err
	}
	return ev, nil
}

// inferKind handles payloads that only carry the topic, where deletion is
// flagged on the message itself.
func inferKind(chat models.ChatRef, ev models.LiveEvent) models.EventKind {
	switch {
	case ev.Topic == chat.AddTopic():
		return models.EventCreated
	case ev.Message.Deleted:
		return models.EventDeleted
	default:
		return models.EventUpdated
	}
}

func (l *LiveChannel) setStatus(connected bool, err error) {
	l.mu.Lock()
	l.connected.Store(connected)
	if err != nil {
		l.lastErr = err
	}
	status := LiveStatus{Connected: connected, Disconnected: l.Disconnected(), Err: l.lastErr}
	l.mu.Unlock()

	if l.cfg.OnStatus != nil {
		l.cfg.OnStatus(status)
	}
}

func (l *LiveChannel) giveUp(err error) {
	l.logger.Error("live channel disconnected", "error", err)
	l.mu.Lock()
	l.disconnected.Store(true)
	l.mu.Unlock()
	l.setStatus(false, err)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
