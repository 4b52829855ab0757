package stream

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/taxonline/admin/cli/pkg/config"
	"github.com/taxonline/admin/cli/pkg/logger"
)

// DefaultReconnectDelay is the fixed wait between a dropped connection and
// the next attempt.
const DefaultReconnectDelay = 3 * time.Second

var (
	// ErrUnauthorized ends a stream whose token is missing or was refused.
	ErrUnauthorized = errors.New("stream unauthorized")
	// ErrReconnectExhausted ends a stream after MaxReconnectAttempts
	// consecutive failed reconnects.
	ErrReconnectExhausted = errors.New("stream reconnect attempts exhausted")
)

// State is the lifecycle state of a Handle.
type State int

const (
	StateConnecting State = iota
	StateConnected
	StateDisconnected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// TokenSource yields the current session token. It is read each time a
// connection is established.
type TokenSource interface {
	Token() string
}

// Options configure a Handle.
type Options struct {
	// BaseURL is the websocket root, e.g. ws://localhost:8000/ws.
	BaseURL string
	Tokens  TokenSource

	ReconnectDelay time.Duration
	// MaxReconnectAttempts caps consecutive failed reconnects; negative
	// means no cap.
	MaxReconnectAttempts int
	BufferSize           int

	Dialer Dialer
	Clock  Clock

	// OnEvent is called for every kept event, in order, from the
	// handle's goroutine.
	OnEvent func(jobID int, ev Event)
	// OnState is called on every state change.
	OnState func(jobID int, s State)
}

// DefaultOptions returns options with the stock delay and buffer size.
func DefaultOptions(baseURL string, tokens TokenSource) Options {
	return Options{
		BaseURL:              baseURL,
		Tokens:               tokens,
		ReconnectDelay:       DefaultReconnectDelay,
		MaxReconnectAttempts: -1,
		BufferSize:           DefaultBufferSize,
	}
}

// OptionsFromConfig reads api.ws_url and the stream.* keys.
func OptionsFromConfig(tokens TokenSource) Options {
	opts := DefaultOptions(config.GetString("api.ws_url"), tokens)
	if d := config.GetDuration("stream.reconnect_delay_ms"); d > 0 {
		opts.ReconnectDelay = d
	}
	opts.MaxReconnectAttempts = config.GetInt("stream.max_reconnect_attempts")
	if n := config.GetInt("stream.buffer_size"); n > 0 {
		opts.BufferSize = n
	}
	return opts
}

func (o Options) withDefaults() Options {
	if o.ReconnectDelay <= 0 {
		o.ReconnectDelay = DefaultReconnectDelay
	}
	if o.BufferSize <= 0 {
		o.BufferSize = DefaultBufferSize
	}
	if o.Dialer == nil {
		o.Dialer = WebsocketDialer{HandshakeTimeout: 15 * time.Second}
	}
	if o.Clock == nil {
		o.Clock = RealClock{}
	}
	return o
}

// Stats holds connection statistics for a Handle.
type Stats struct {
	MessagesReceived int64
	MalformedFrames  int64
	Reconnects       int
	LastError        string
	ConnectedAt      time.Time
	DisconnectedAt   time.Time
}

// Handle follows the log of one job until it completes, fails or is closed.
type Handle struct {
	jobID int
	opts  Options
	buf   *Buffer

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	done      chan struct{}

	mu    sync.Mutex
	state State
	conn  Conn
	timer Timer
	err   error

	statsLock sync.RWMutex
	stats     Stats
}

// Open starts following jobID. The handle owns a goroutine until it is
// closed, either by Close, by ctx, or by a terminal event.
func Open(ctx context.Context, jobID int, opts Options) *Handle {
	opts = opts.withDefaults()
	hctx, cancel := context.WithCancel(ctx)
	h := &Handle{
		jobID:  jobID,
		opts:   opts,
		buf:    NewBuffer(opts.BufferSize),
		ctx:    hctx,
		cancel: cancel,
		done:   make(chan struct{}),
		state:  StateConnecting,
	}
	// a blocked read only returns once the socket is closed
	context.AfterFunc(hctx, h.Close)
	go h.run()
	return h
}

func (h *Handle) JobID() int {
	return h.jobID
}

// Events returns the retained log, oldest first.
func (h *Handle) Events() []Event {
	return h.buf.Events()
}

// Buffer exposes the job log.
func (h *Handle) Buffer() *Buffer {
	return h.buf
}

// Terminal reports whether the job reached completed or failed.
func (h *Handle) Terminal() bool {
	return h.buf.Terminal()
}

func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Done is closed once the handle's goroutine has exited.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Err returns why the handle closed: nil for a terminal event or Close,
// ErrUnauthorized or ErrReconnectExhausted otherwise.
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Wait blocks until the handle is closed or ctx ends.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return h.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns connection statistics.
func (h *Handle) Stats() Stats {
	h.statsLock.RLock()
	defer h.statsLock.RUnlock()
	return h.stats
}

// Close stops the handle. It cancels a pending reconnect and closes the
// socket. Safe to call more than once.
func (h *Handle) Close() {
	h.closeOnce.Do(func() {
		h.cancel()

		h.mu.Lock()
		timer, conn := h.timer, h.conn
		h.timer, h.conn = nil, nil
		h.mu.Unlock()

		if timer != nil {
			timer.Stop()
		}
		if conn != nil {
			conn.Close()
		}
		h.setState(StateClosed)
		logger.Debug("Job stream closed", "job_id", h.jobID)
	})
}

func (h *Handle) run() {
	defer close(h.done)

	failures := 0
	for {
		if h.ctx.Err() != nil {
			h.finish(nil)
			return
		}
		h.setState(StateConnecting)

		token := ""
		if h.opts.Tokens != nil {
			token = h.opts.Tokens.Token()
		}
		if token == "" {
			h.finish(ErrUnauthorized)
			return
		}

		err := h.connect(token)
		switch {
		case h.buf.Terminal(), h.ctx.Err() != nil:
			h.finish(nil)
			return
		case websocket.IsCloseError(err, CloseUnauthorized):
			h.finish(ErrUnauthorized)
			return
		case errors.Is(err, errConnected):
			failures = 0
		default:
			failures++
		}

		h.recordError(err)
		h.setState(StateDisconnected)

		if h.opts.MaxReconnectAttempts >= 0 && failures >= h.opts.MaxReconnectAttempts {
			logger.Warn("Job stream gave up reconnecting", "job_id", h.jobID, "failures", failures)
			h.finish(ErrReconnectExhausted)
			return
		}

		logger.Debug("Job stream reconnecting", "job_id", h.jobID, "delay", h.opts.ReconnectDelay, "error", err)
		if !h.sleep(h.opts.ReconnectDelay) {
			h.finish(nil)
			return
		}
		h.recordReconnect()
	}
}

// errConnected marks a connection that was established and later lost.
var errConnected = errors.New("connection lost")

// connect dials and reads until the connection ends. A dial failure is
// returned as is; a dropped connection is wrapped with errConnected.
func (h *Handle) connect(token string) error {
	rawURL, err := JobURL(h.opts.BaseURL, h.jobID, token)
	if err != nil {
		return err
	}

	conn, err := h.opts.Dialer.Dial(h.ctx, rawURL)
	if err != nil {
		return err
	}

	h.mu.Lock()
	if h.ctx.Err() != nil {
		h.mu.Unlock()
		conn.Close()
		return h.ctx.Err()
	}
	h.conn = conn
	h.mu.Unlock()

	h.setState(StateConnected)
	h.recordConnected()
	logger.Debug("Job stream connected", "job_id", h.jobID)

	err = h.read(conn)

	h.mu.Lock()
	if h.conn == conn {
		h.conn = nil
	}
	h.mu.Unlock()
	conn.Close()
	h.recordDisconnected()

	if err == nil {
		return nil
	}
	if websocket.IsCloseError(err, CloseUnauthorized) {
		return err
	}
	return errors.Join(errConnected, err)
}

// read consumes frames until a terminal event or a read error.
func (h *Handle) read(conn Conn) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		ev, err := ParseEvent(data)
		if err != nil {
			h.recordMalformed()
			logger.Debug("Dropped malformed stream frame", "job_id", h.jobID, "size", len(data))
			continue
		}
		h.recordMessage()

		if !h.buf.Append(ev) {
			return nil
		}
		if h.opts.OnEvent != nil {
			h.opts.OnEvent(h.jobID, ev)
		}
		if ev.Terminal() {
			return nil
		}
	}
}

// sleep waits d on the handle's clock and reports false if the handle was
// closed in the meantime.
func (h *Handle) sleep(d time.Duration) bool {
	t := h.opts.Clock.NewTimer(d)

	h.mu.Lock()
	if h.ctx.Err() != nil {
		h.mu.Unlock()
		t.Stop()
		return false
	}
	h.timer = t
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		if h.timer == t {
			h.timer = nil
		}
		h.mu.Unlock()
	}()

	select {
	case <-h.ctx.Done():
		t.Stop()
		return false
	case <-t.C():
		return h.ctx.Err() == nil
	}
}

func (h *Handle) finish(err error) {
	h.mu.Lock()
	if h.err == nil {
		h.err = err
	}
	h.mu.Unlock()

	h.cancel()
	h.setState(StateClosed)
	if err != nil {
		h.recordError(err)
	}
}

func (h *Handle) setState(s State) {
	h.mu.Lock()
	if h.state == s || h.state == StateClosed {
		h.mu.Unlock()
		return
	}
	h.state = s
	h.mu.Unlock()

	if h.opts.OnState != nil {
		h.opts.OnState(h.jobID, s)
	}
}

func (h *Handle) recordMessage() {
	h.statsLock.Lock()
	h.stats.MessagesReceived++
	h.statsLock.Unlock()
}

func (h *Handle) recordMalformed() {
	h.statsLock.Lock()
	h.stats.MalformedFrames++
	h.statsLock.Unlock()
}

func (h *Handle) recordReconnect() {
	h.statsLock.Lock()
	h.stats.Reconnects++
	h.statsLock.Unlock()
}

func (h *Handle) recordError(err error) {
	if err == nil {
		return
	}
	h.statsLock.Lock()
	h.stats.LastError = err.Error()
	h.statsLock.Unlock()
}

func (h *Handle) recordConnected() {
	h.statsLock.Lock()
	h.stats.ConnectedAt = h.opts.Clock.Now()
	h.statsLock.Unlock()
}

func (h *Handle) recordDisconnected() {
	h.statsLock.Lock()
	h.stats.DisconnectedAt = h.opts.Clock.Now()
	h.statsLock.Unlock()
}
