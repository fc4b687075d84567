package perception

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"glance/internal/logging"
)

// Feed is the push side of context sensing. Listeners receive every
// snapshot the external watcher publishes, in arrival order.
type Feed interface {
	AddListener(fn func(*ApplicationContext)) int
	RemoveListener(id int)
}

// WSFeed consumes context snapshots pushed by the watcher process over a
// local websocket. One JSON snapshot per message. The feed reconnects with
// exponential backoff and keeps the most recent snapshot so it can also
// serve as a pull Detector.
type WSFeed struct {
	feedURL        string
	reconnectDelay time.Duration

	mu        sync.RWMutex
	conn      *websocket.Conn
	connected bool
	listeners map[int]func(*ApplicationContext)
	nextID    int
	latest    *ApplicationContext

	cancel context.CancelFunc
	done   chan struct{}
}

const maxReconnectDelay = 60 * time.Second

// NewWSFeed builds a feed for the given websocket URL. reconnectDelay is
// the initial backoff between connection attempts; it doubles on repeated
// failure up to one minute.
func NewWSFeed(feedURL string, reconnectDelay time.Duration) *WSFeed {
	if reconnectDelay <= 0 {
		reconnectDelay = 2 * time.Second
	}
	return &WSFeed{
		feedURL:        feedURL,
		reconnectDelay: reconnectDelay,
		listeners:      make(map[int]func(*ApplicationContext)),
	}
}

// AddListener registers a callback for incoming snapshots and returns its
// registration id.
func (f *WSFeed) AddListener(fn func(*ApplicationContext)) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := f.nextID
	f.listeners[id] = fn
	return id
}

// RemoveListener drops a previously registered callback. Unknown ids are
// ignored.
func (f *WSFeed) RemoveListener(id int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.listeners, id)
}

// IsConnected reports whether the feed currently holds an open connection.
func (f *WSFeed) IsConnected() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.connected
}

// Latest returns the most recent snapshot, or nil when none has arrived.
func (f *WSFeed) Latest() *ApplicationContext {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.latest
}

// DetectContext serves the cached snapshot, which makes a running feed
// usable wherever a Detector is expected. With a nonzero RefreshRate a
// snapshot older than the rate counts as missing. The feed cannot
// re-detect on demand, so CaptureSelectedText is ignored.
func (f *WSFeed) DetectContext(_ context.Context, opts DetectOptions) (*ApplicationContext, error) {
	snap := f.Latest()
	if snap == nil {
		return nil, ErrDetectionFailed
	}
	if opts.RefreshRate > 0 && time.Since(snap.Timestamp) > opts.RefreshRate {
		return nil, fmt.Errorf("%w: snapshot older than %s", ErrDetectionFailed, opts.RefreshRate)
	}
	return snap, nil
}

// Start begins consuming the feed. It returns immediately; connection and
// reconnection happen in the background until Close or context
// cancellation.
func (f *WSFeed) Start(ctx context.Context) error {
	if _, err := url.Parse(f.feedURL); err != nil {
		return fmt.Errorf("parse feed url: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	f.done = make(chan struct{})

	go f.connectLoop(ctx)
	return nil
}

// Close tears the feed down and waits for the background loop to exit.
func (f *WSFeed) Close() error {
	if f.cancel != nil {
		f.cancel()
	}
	f.mu.Lock()
	if f.conn != nil {
		f.conn.Close()
		f.conn = nil
	}
	f.connected = false
	f.mu.Unlock()

	if f.done != nil {
		<-f.done
	}
	return nil
}

// connectLoop keeps the websocket alive, backing off on repeated failure.
func (f *WSFeed) connectLoop(ctx context.Context) {
	defer close(f.done)

	backoff := f.reconnectDelay
	failures := 0

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		err := f.consume(ctx)
		if ctx.Err() != nil {
			return
		}

		failures++
		if failures == 3 {
			logging.NetworkWarn("Context feed unavailable after %d attempts, retrying less often: %v", failures, err)
		} else {
			logging.NetworkDebug("Context feed disconnected: %v", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < maxReconnectDelay {
			backoff *= 2
			if backoff > maxReconnectDelay {
				backoff = maxReconnectDelay
			}
		}
	}
}

// consume dials the watcher and reads snapshots until the connection
// drops.
func (f *WSFeed) consume(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.feedURL, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	f.mu.Lock()
	f.conn = conn
	f.connected = true
	f.mu.Unlock()
	logging.Network("Context feed connected: %s", f.feedURL)

	defer func() {
		f.mu.Lock()
		if f.conn == conn {
			f.conn = nil
			f.connected = false
		}
		f.mu.Unlock()
		conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		f.handleSnapshot(raw)
	}
}

// handleSnapshot decodes one pushed snapshot and fans it out. Malformed
// messages are logged and skipped so one bad payload cannot kill the feed.
func (f *WSFeed) handleSnapshot(raw []byte) {
	var snap ApplicationContext
	if err := json.Unmarshal(raw, &snap); err != nil {
		logging.NetworkDebug("Dropping malformed context snapshot: %v", err)
		return
	}
	if snap.Timestamp.IsZero() {
		snap.Timestamp = time.Now()
	}
	if snap.Type == AppUnknown && snap.Executable != "" {
		// Watchers without a classifier push raw window facts.
		snap.Type = ClassifyProcess(snap.Executable)
		if snap.Type != AppUnknown && snap.Confidence == 0 {
			snap.Confidence = 0.7
		}
	}

	f.mu.Lock()
	f.latest = &snap
	fns := make([]func(*ApplicationContext), 0, len(f.listeners))
	for _, fn := range f.listeners {
		fns = append(fns, fn)
	}
	f.mu.Unlock()

	for _, fn := range fns {
		fn(&snap)
	}
}
