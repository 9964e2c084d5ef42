package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/opencode-ai/pocketcode/internal/bus"
	"github.com/opencode-ai/pocketcode/internal/cache"
	"github.com/opencode-ai/pocketcode/internal/logging"
	"github.com/opencode-ai/pocketcode/pkg/types"
)

// State is the channel's connection state.
type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateOpen       State = "open"
	StateClosed     State = "closed"
	StateError      State = "error"
)

// ReconnectDelay is the fixed delay before the single reconnect attempt
// after a connection error. No exponential backoff: the next failure
// schedules the next single attempt.
const ReconnectDelay = 5 * time.Second

// Channel owns the one live SSE connection. Opening a new connection always
// tears down the previous one first; a generation counter guards every
// asynchronous callback so work from a superseded connection is discarded.
type Channel struct {
	dispatcher *Dispatcher
	bus        *bus.Bus
	http       *http.Client

	reconnectDelay time.Duration

	mu        sync.Mutex
	state     State
	scope     cache.Scope
	gen       uint64
	cancel    context.CancelFunc
	reconnect *time.Timer
}

// NewChannel creates a channel delivering events to the dispatcher.
func NewChannel(d *Dispatcher, b *bus.Bus) *Channel {
	return &Channel{
		dispatcher:     d,
		bus:            b,
		http:           &http.Client{}, // no timeout, the stream is long-lived
		reconnectDelay: ReconnectDelay,
		state:          StateIdle,
	}
}

// State returns the current connection state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Sync reconciles the channel against the desired scope. A connection is
// kept only while connected && serverURL && projectPath all hold; anything
// else tears the channel down.
func (c *Channel) Sync(connected bool, serverURL, projectPath string) {
	if !connected || serverURL == "" || projectPath == "" {
		c.Close()
		return
	}

	scope := cache.Scope{Server: serverURL, Project: projectPath}

	c.mu.Lock()
	same := c.scope == scope && (c.state == StateOpen || c.state == StateConnecting)
	c.mu.Unlock()
	if same {
		return
	}
	c.Connect(scope)
}

// Connect opens a connection for the scope, closing any prior connection
// first.
func (c *Channel) Connect(scope cache.Scope) {
	c.mu.Lock()
	c.teardownLocked()
	c.gen++
	gen := c.gen
	c.scope = scope
	c.setStateLocked(StateConnecting)

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.mu.Unlock()

	go c.run(ctx, gen, scope)
}

// Close tears the channel down unconditionally and cancels any pending
// reconnect attempt.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.teardownLocked()
	c.gen++
	c.scope = cache.Scope{}
	if c.state != StateIdle {
		c.setStateLocked(StateClosed)
	}
}

// teardownLocked cancels the running connection and stops the reconnect
// timer. Callers hold c.mu.
func (c *Channel) teardownLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if c.reconnect != nil {
		c.reconnect.Stop()
		c.reconnect = nil
	}
}

func (c *Channel) setStateLocked(s State) {
	if c.state == s {
		return
	}
	c.state = s
	if c.bus != nil {
		go c.bus.Publish(bus.TopicStream, string(s))
	}
}

// run opens the SSE request and pumps events until the connection drops.
func (c *Channel) run(ctx context.Context, gen uint64, scope cache.Scope) {
	endpoint := scope.Server + "/event?" + url.Values{"directory": {scope.Project}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		c.fail(gen, scope, err)
		return
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.http.Do(req)
	if err != nil {
		c.fail(gen, scope, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<12))
		c.fail(gen, scope, fmt.Errorf("unexpected status code: %d", resp.StatusCode))
		return
	}

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	c.setStateLocked(StateOpen)
	c.mu.Unlock()

	logging.Info().Str("server", scope.Server).Str("project", scope.Project).Msg("event channel open")
	c.dispatcher.OnOpen(scope)

	if err := c.readLoop(resp.Body, gen, scope); err != nil {
		c.fail(gen, scope, err)
		return
	}
	// Server closed the stream cleanly; treat like an error so the
	// reconnect policy brings us back.
	c.fail(gen, scope, io.EOF)
}

// readLoop parses SSE frames and applies them in delivery order.
func (c *Channel) readLoop(body io.Reader, gen uint64, scope cache.Scope) error {
	reader := bufio.NewReader(body)
	var data strings.Builder

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return err
		}
		line = strings.TrimRight(line, "\r\n")

		switch {
		case line == "":
			if data.Len() > 0 {
				c.handleFrame(gen, scope, data.String())
				data.Reset()
			}
		case strings.HasPrefix(line, ":"):
			// Heartbeat comment.
		case strings.HasPrefix(line, "data:"):
			data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		default:
			// "event:" and other fields carry no routing information here;
			// the payload's own type tag decides dispatch.
		}
	}
}

func (c *Channel) handleFrame(gen uint64, scope cache.Scope, data string) {
	c.mu.Lock()
	stale := c.gen != gen
	c.mu.Unlock()
	if stale {
		return
	}

	var ev types.Event
	if err := json.Unmarshal([]byte(data), &ev); err != nil {
		logging.Warn().Err(err).Msg("dropping unparseable event frame")
		return
	}
	c.dispatcher.Apply(scope, ev)
}

// fail records a connection error and schedules exactly one reconnect
// attempt, unless the connection was superseded or torn down in the
// meantime.
func (c *Channel) fail(gen uint64, scope cache.Scope, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gen != gen {
		return
	}

	logging.Warn().Err(err).Msg("event channel lost")
	c.setStateLocked(StateError)

	if c.reconnect != nil {
		c.reconnect.Stop()
	}
	c.reconnect = time.AfterFunc(c.reconnectDelay, func() {
		c.mu.Lock()
		active := c.gen == gen
		c.mu.Unlock()
		if active {
			c.Connect(scope)
		}
	})
}
