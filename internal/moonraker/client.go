package moonraker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// closeOnce wraps a channel with sync.Once to prevent double-close panics.
type closeOnce struct {
	ch   chan struct{}
	once sync.Once
}

func newCloseOnce() *closeOnce {
	return &closeOnce{ch: make(chan struct{})}
}

func (c *closeOnce) Close() {
	c.once.Do(func() { close(c.ch) })
}

func (c *closeOnce) Done() <-chan struct{} {
	return c.ch
}

// Default timeouts and intervals for Moonraker communication.
const (
	// defaultConnectTimeout is the maximum time to wait for initial connection.
	defaultConnectTimeout = 10 * time.Second

	// defaultRequestTimeout bounds a single JSON-RPC call when the
	// caller's context carries no deadline.
	defaultRequestTimeout = 10 * time.Second

	// defaultWriteTimeout is the timeout for socket write operations.
	defaultWriteTimeout = 5 * time.Second

	// defaultReadTimeout is how long the read loop waits before treating
	// the connection as dead. Moonraker emits periodic notifications and
	// answers pings, so a silent connection is a broken one.
	defaultReadTimeout = 90 * time.Second

	// pingInterval is how often keepalive pings are sent.
	pingInterval = 30 * time.Second

	// defaultReconnectInterval is the initial delay between reconnection attempts.
	defaultReconnectInterval = 5 * time.Second

	// maxReconnectInterval is the maximum delay between reconnection attempts.
	maxReconnectInterval = 2 * time.Minute

	// maxFrameSize caps inbound frames. A full printer.objects.query
	// response is a few KB; anything near this limit is a protocol error.
	maxFrameSize = 1 << 20 // 1MB

	// notificationQueueSize is the buffer size for the notification callback queue.
	notificationQueueSize = 100

	// notificationWorkerCount is the number of concurrent callback workers.
	notificationWorkerCount = 4
)

// Config holds Moonraker connection configuration.
type Config struct {
	// Host is the printer's network address (hostname or IP).
	Host string

	// Port is the Moonraker HTTP/WebSocket port. Default: 7125.
	Port int

	// TLS selects wss:// and https:// transport.
	TLS bool

	// APIKey is sent as the X-Api-Key header when set. Required only
	// when Moonraker's [authorization] section restricts the client.
	APIKey string

	// ConnectTimeout is the maximum time to wait for connection.
	// Default: 10 seconds.
	ConnectTimeout time.Duration

	// RequestTimeout bounds calls whose context has no deadline.
	// Default: 10 seconds.
	RequestTimeout time.Duration

	// ReconnectInterval is the initial delay between reconnection attempts.
	// Default: 5 seconds.
	ReconnectInterval time.Duration
}

// WebsocketURL returns the JSON-RPC endpoint for this configuration.
func (c Config) WebsocketURL() string {
	scheme := "ws"
	if c.TLS {
		scheme = "wss"
	}
	port := c.Port
	if port == 0 {
		port = 7125
	}
	return fmt.Sprintf("%s://%s:%d/websocket", scheme, c.Host, port)
}

// BaseURL returns the HTTP endpoint for this configuration, used for
// file downloads and camera snapshots.
func (c Config) BaseURL() string {
	scheme := "http"
	if c.TLS {
		scheme = "https"
	}
	port := c.Port
	if port == 0 {
		port = 7125
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.Host, port)
}

// Stats holds operational statistics.
type Stats struct {
	MessagesTx           uint64
	MessagesRx           uint64
	NotificationsDropped uint64 // Notifications dropped due to full callback queue
	ErrorsTotal          uint64
	ReconnectsTotal      uint64 // Successful reconnections
	LastActivity         time.Time
	Connected            bool
	Reconnecting         bool // True if currently attempting to reconnect
}

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// API is the surface the bridge depends on. This allows mocking the
// Moonraker client in tests.
type API interface {
	Call(ctx context.Context, method string, params any) (json.RawMessage, error)
	PrinterInfo(ctx context.Context) (*PrinterInfo, error)
	ServerInfo(ctx context.Context) (*ServerInfo, error)
	QueryObjects(ctx context.Context, objects map[string][]string) (*ObjectsQueryResult, error)
	SubscribeObjects(ctx context.Context, objects map[string][]string) (*ObjectsQueryResult, error)
	FileMetadata(ctx context.Context, filename string) (*GCodeMetadata, error)
	ListWebcams(ctx context.Context) ([]Webcam, error)
	ListHistory(ctx context.Context, limit int) ([]HistoryJob, error)
	PausePrint(ctx context.Context) error
	ResumePrint(ctx context.Context) error
	CancelPrint(ctx context.Context) error
	EmergencyStop(ctx context.Context) error
	FirmwareRestart(ctx context.Context) error
	RunGCode(ctx context.Context, script string) error
	SetOnNotification(callback func(Notification))
	SetOnConnect(callback func())
	IsConnected() bool
	Stats() Stats
	Close() error
}

// Ensure Client implements API.
var _ API = (*Client)(nil)

// Client provides a connection to the Moonraker API server.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Notification callbacks are invoked from a bounded worker pool.
//
// Auto-Reconnection:
//   - When the connection is lost, the client automatically attempts to reconnect.
//   - Uses exponential backoff starting at ReconnectInterval (default 5s) up to maxReconnectInterval (2min).
//   - Reconnection stops only when Close() is called.
type Client struct {
	cfg Config

	// Connection state. writeMu serialises socket writes; gorilla
	// connections support one concurrent writer only.
	conn      *websocket.Conn
	connMu    sync.RWMutex
	writeMu   sync.Mutex
	connected bool

	// Reconnection state
	reconnecting   atomic.Bool  // True while reconnection is in progress
	reconnectCount atomic.Int32 // Number of consecutive reconnection attempts

	// Request ID generation and pending call correlation
	nextID  atomic.Uint64
	pending map[uint64]chan *rpcEnvelope
	pendMu  sync.Mutex

	// Notification handler callback
	onNotification func(Notification)
	onConnect      func()
	callbackMu     sync.RWMutex

	// Notification worker pool (bounded goroutine spawning)
	notificationQueue chan Notification

	// Shutdown coordination (closeOnce prevents double-close panics)
	done *closeOnce
	wg   sync.WaitGroup

	// Logger (optional)
	logger   Logger
	loggerMu sync.RWMutex

	// Statistics (atomic for performance)
	messagesTx           atomic.Uint64
	messagesRx           atomic.Uint64
	notificationsDropped atomic.Uint64
	errorsTotal          atomic.Uint64
	reconnectsTotal      atomic.Uint64
	lastActivity         atomic.Int64 // Unix timestamp
}

// Connect establishes a connection to the Moonraker server.
//
// After the WebSocket handshake it identifies the client connection
// (server.connection.identify) and starts the receive loop, keepalive
// pings and notification workers.
//
// Parameters:
//   - ctx: Context for cancellation (used for initial connection)
//   - cfg: Connection configuration
//
// Returns:
//   - *Client: Connected client ready for use
//   - error: If connection or identification fails
func Connect(ctx context.Context, cfg Config) (*Client, error) {
	// Apply defaults
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.ReconnectInterval == 0 {
		cfg.ReconnectInterval = defaultReconnectInterval
	}

	if cfg.Host == "" {
		return nil, fmt.Errorf("%w: host is required", ErrConnectionFailed)
	}
	if _, err := url.Parse(cfg.WebsocketURL()); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	client := &Client{
		cfg:               cfg,
		done:              newCloseOnce(),
		pending:           make(map[uint64]chan *rpcEnvelope),
		notificationQueue: make(chan Notification, notificationQueueSize),
	}
	client.lastActivity.Store(time.Now().Unix())

	if ctx == nil {
		ctx = context.Background()
	}
	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	conn, err := client.dial(connectCtx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	client.connMu.Lock()
	client.conn = conn
	client.connected = true
	client.connMu.Unlock()

	// Start notification worker pool (bounded goroutine count)
	for i := 0; i < notificationWorkerCount; i++ {
		client.wg.Add(1)
		go client.notificationWorker()
	}

	// Start receive loop and keepalive pings
	client.wg.Add(2)
	go client.receiveLoop()
	go client.pingLoop()

	// Identify this connection to Moonraker. Failure here is not fatal;
	// older servers reject the method but still serve calls.
	if err := client.identify(connectCtx); err != nil {
		client.logError("connection identify failed", err)
	}

	return client, nil
}

// dial performs the WebSocket handshake and configures frame limits
// and the pong handler on the resulting connection.
func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	if c.cfg.APIKey != "" {
		header.Set("X-Api-Key", c.cfg.APIKey)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, c.cfg.WebsocketURL(), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: status %d: %w", c.cfg.WebsocketURL(), resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dial %s: %w", c.cfg.WebsocketURL(), err)
	}

	conn.SetReadLimit(maxFrameSize)
	if err := conn.SetReadDeadline(time.Now().Add(defaultReadTimeout)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set read deadline: %w", err)
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(defaultReadTimeout))
	})

	return conn, nil
}

// identify registers this client with Moonraker so it appears in the
// server's connection list with a meaningful name.
func (c *Client) identify(ctx context.Context) error {
	params := map[string]any{
		"client_name": "moonbridge",
		"version":     "1.0",
		"type":        "agent",
		"url":         "https://github.com/moonbridge/moonbridge",
	}
	_, err := c.Call(ctx, "server.connection.identify", params)
	return err
}

// Call performs a JSON-RPC request and waits for the matching response.
//
// The call is correlated by request ID; concurrent calls over the same
// connection are safe. If ctx carries no deadline, RequestTimeout is
// applied.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - method: JSON-RPC method name (e.g. "printer.info")
//   - params: Parameters object, or nil
//
// Returns:
//   - json.RawMessage: The raw result payload
//   - error: RPC errors (*RPCError), transport errors, or context errors
func (c *Client) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if c.isClosed() {
		return nil, ErrClosed
	}
	if !c.IsConnected() {
		return nil, ErrNotConnected
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.RequestTimeout)
		defer cancel()
	}

	id := c.nextID.Add(1)
	respCh := make(chan *rpcEnvelope, 1)

	c.pendMu.Lock()
	c.pending[id] = respCh
	c.pendMu.Unlock()

	defer func() {
		c.pendMu.Lock()
		delete(c.pending, id)
		c.pendMu.Unlock()
	}()

	req := rpcRequest{
		JSONRPC: jsonrpcVersion,
		Method:  method,
		Params:  params,
		ID:      id,
	}

	if err := c.writeJSON(ctx, &req); err != nil {
		c.errorsTotal.Add(1)
		return nil, fmt.Errorf("%w: %s: %w", ErrCallFailed, method, err)
	}

	c.messagesTx.Add(1)
	c.lastActivity.Store(time.Now().Unix())

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %s: %w", ErrCallFailed, method, ctx.Err())
	case <-c.done.Done():
		return nil, ErrClosed
	case resp := <-respCh:
		if resp == nil {
			return nil, fmt.Errorf("%w: %s", ErrConnectionLost, method)
		}
		if resp.Error != nil {
			return nil, resp.Error
		}
		return resp.Result, nil
	}
}

// writeJSON marshals and sends a frame under the write lock.
func (c *Client) writeJSON(ctx context.Context, v any) error {
	c.connMu.RLock()
	conn := c.conn
	c.connMu.RUnlock()

	if conn == nil {
		return ErrNotConnected
	}

	deadline := time.Now().Add(defaultWriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	return conn.WriteJSON(v)
}

// receiveLoop continuously reads frames from the server.
// On connection loss, it fails pending calls and attempts reconnection
// with exponential backoff.
func (c *Client) receiveLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.done.Done():
			return
		default:
		}

		c.connMu.RLock()
		conn := c.conn
		c.connMu.RUnlock()

		if conn == nil {
			if c.isClosed() || !c.reconnect() {
				return
			}
			continue
		}

		var env rpcEnvelope
		if err := conn.ReadJSON(&env); err != nil {
			if c.isClosed() {
				return
			}

			c.logError("read failed", err)
			c.errorsTotal.Add(1)
			c.handleDisconnect()

			if !c.reconnect() {
				return // Shutdown during reconnection, exit cleanly
			}
			continue
		}

		if err := conn.SetReadDeadline(time.Now().Add(defaultReadTimeout)); err != nil {
			c.logError("set read deadline failed", err)
		}

		c.messagesRx.Add(1)
		c.lastActivity.Store(time.Now().Unix())

		if env.isNotification() {
			c.handleNotification(&env)
		} else {
			c.handleResponse(&env)
		}
	}
}

// handleResponse routes a call response to its waiting caller.
// Responses with unknown IDs are dropped and counted.
func (c *Client) handleResponse(env *rpcEnvelope) {
	c.pendMu.Lock()
	ch, ok := c.pending[env.ID]
	if ok {
		delete(c.pending, env.ID)
	}
	c.pendMu.Unlock()

	if !ok {
		c.logError("response with unknown id dropped", fmt.Errorf("id %d", env.ID))
		c.errorsTotal.Add(1)
		return
	}

	ch <- env
}

// handleNotification queues a server notification for the worker pool.
func (c *Client) handleNotification(env *rpcEnvelope) {
	c.callbackMu.RLock()
	hasCallback := c.onNotification != nil
	c.callbackMu.RUnlock()

	if !hasCallback {
		return
	}

	n := Notification{Method: env.Method, Params: env.Params}

	// Non-blocking with drop on overflow to protect the read loop
	select {
	case c.notificationQueue <- n:
	default:
		c.logError("notification queue full, dropping", fmt.Errorf("method %s", n.Method))
		c.notificationsDropped.Add(1)
		c.errorsTotal.Add(1)
	}
}

// notificationWorker processes notifications from the callback queue.
// Runs in a bounded worker pool to prevent goroutine explosion.
func (c *Client) notificationWorker() {
	defer c.wg.Done()

	for {
		select {
		case <-c.done.Done():
			c.drainNotificationQueue()
			return
		case n := <-c.notificationQueue:
			c.callbackMu.RLock()
			callback := c.onNotification
			c.callbackMu.RUnlock()

			if callback != nil {
				func() {
					defer func() {
						if r := recover(); r != nil {
							c.logError("notification callback panic", fmt.Errorf("%v", r))
						}
					}()
					callback(n)
				}()
			}
		}
	}
}

// pingLoop sends keepalive pings so half-open connections are detected
// by the read deadline rather than lingering indefinitely.
func (c *Client) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done.Done():
			return
		case <-ticker.C:
			c.connMu.RLock()
			conn := c.conn
			connected := c.connected
			c.connMu.RUnlock()

			if conn == nil || !connected {
				continue
			}

			c.writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(defaultWriteTimeout))
			c.writeMu.Unlock()

			if err != nil {
				c.logError("ping failed", err)
			}
		}
	}
}

// handleDisconnect handles connection loss: marks the client as
// disconnected and fails all pending calls so nothing hangs.
func (c *Client) handleDisconnect() {
	c.connMu.Lock()
	wasConnected := c.connected
	c.connected = false
	c.connMu.Unlock()

	c.failPending()

	if wasConnected {
		c.logInfo("connection lost, will attempt reconnection")
	}
}

// failPending delivers a nil envelope to every pending call, which the
// Call method translates to ErrConnectionLost.
func (c *Client) failPending() {
	c.pendMu.Lock()
	defer c.pendMu.Unlock()

	for id, ch := range c.pending {
		select {
		case ch <- nil:
		default:
		}
		delete(c.pending, id)
	}
}

// reconnect attempts to re-establish the connection with exponential backoff.
// Returns true if reconnection succeeded, false if shutdown was signalled.
func (c *Client) reconnect() bool {
	// Prevent multiple concurrent reconnection attempts
	if !c.reconnecting.CompareAndSwap(false, true) {
		return c.waitForReconnection()
	}
	defer c.reconnecting.Store(false)

	backoff := c.cfg.ReconnectInterval
	if backoff == 0 {
		backoff = defaultReconnectInterval
	}

	for {
		if c.isClosed() {
			return false
		}

		attempt := c.reconnectCount.Add(1)
		c.logInfo("attempting reconnection", "attempt", attempt, "backoff", backoff.String())

		c.closeOldConnection()

		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.ConnectTimeout)
		conn, err := c.dial(ctx)
		cancel()
		if err != nil {
			backoff = c.handleReconnectFailure("dial failed", err, backoff)
			if backoff == 0 {
				return false // Shutdown signalled
			}
			continue
		}

		c.finalizeReconnection(conn)
		return true
	}
}

// waitForReconnection waits for another goroutine to complete reconnection.
func (c *Client) waitForReconnection() bool {
	for c.reconnecting.Load() && !c.isClosed() {
		time.Sleep(100 * time.Millisecond)
	}
	return !c.isClosed() && c.IsConnected()
}

// closeOldConnection closes the existing connection if any.
func (c *Client) closeOldConnection() {
	c.connMu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()
}

// handleReconnectFailure handles a failed reconnection attempt.
// Returns the new backoff duration, or 0 if shutdown was signalled.
func (c *Client) handleReconnectFailure(reason string, err error, backoff time.Duration) time.Duration {
	c.logError("reconnect: "+reason, err)
	c.errorsTotal.Add(1)

	select {
	case <-c.done.Done():
		return 0 // Signal shutdown
	case <-time.After(backoff):
	}

	// Exponential backoff with cap
	newBackoff := time.Duration(float64(backoff) * 1.5)
	if newBackoff > maxReconnectInterval {
		newBackoff = maxReconnectInterval
	}
	return newBackoff
}

// finalizeReconnection installs the new connection, updates stats and
// re-identifies before notifying the consumer's OnConnect callback.
func (c *Client) finalizeReconnection(conn *websocket.Conn) {
	c.connMu.Lock()
	c.conn = conn
	c.connected = true
	c.connMu.Unlock()

	c.reconnectCount.Store(0)
	c.reconnectsTotal.Add(1)
	c.lastActivity.Store(time.Now().Unix())

	c.logInfo("reconnection successful", "total_reconnects", c.reconnectsTotal.Load())

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.ConnectTimeout)
	if err := c.identify(ctx); err != nil {
		c.logError("connection identify failed", err)
	}
	cancel()

	// Consumer re-subscribes printer objects here
	c.callbackMu.RLock()
	callback := c.onConnect
	c.callbackMu.RUnlock()
	if callback != nil {
		go callback()
	}
}

// drainNotificationQueue removes and discards any remaining items from
// the notification queue. Called during shutdown to prevent goroutines
// from blocking on send.
func (c *Client) drainNotificationQueue() {
	for {
		select {
		case <-c.notificationQueue:
			// Discard item
		default:
			return // Queue is empty
		}
	}
}

// isClosed returns true if the client has been closed.
func (c *Client) isClosed() bool {
	select {
	case <-c.done.Done():
		return true
	default:
		return false
	}
}

// Close gracefully closes the connection.
//
// It signals the receive loop to stop, fails pending calls, and closes
// the underlying connection. Safe to call multiple times.
//
// Returns:
//   - error: nil (closing is best-effort)
func (c *Client) Close() error {
	// Signal shutdown (safe to call multiple times via sync.Once)
	c.done.Close()

	c.connMu.Lock()
	c.connected = false
	conn := c.conn
	c.connMu.Unlock()

	c.failPending()

	// Close connection (this will unblock any pending reads)
	if conn != nil {
		conn.Close()
	}

	// Wait for all goroutines to finish
	c.wg.Wait()

	c.logInfo("connection closed")
	return nil
}

// SetOnNotification sets the callback for server notifications.
//
// The callback is invoked from a bounded worker pool. Panics in the
// callback are recovered and logged.
func (c *Client) SetOnNotification(callback func(Notification)) {
	c.callbackMu.Lock()
	c.onNotification = callback
	c.callbackMu.Unlock()
}

// SetOnConnect sets a callback invoked after each successful
// reconnection. Use it to re-subscribe printer objects.
func (c *Client) SetOnConnect(callback func()) {
	c.callbackMu.Lock()
	c.onConnect = callback
	c.callbackMu.Unlock()
}

// SetLogger sets the logger for this client.
func (c *Client) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

// IsConnected returns true if connected to Moonraker.
func (c *Client) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected
}

// BaseURL returns the HTTP endpoint of the connected server.
func (c *Client) BaseURL() string {
	return c.cfg.BaseURL()
}

// Stats returns current operational statistics.
func (c *Client) Stats() Stats {
	return Stats{
		MessagesTx:           c.messagesTx.Load(),
		MessagesRx:           c.messagesRx.Load(),
		NotificationsDropped: c.notificationsDropped.Load(),
		ErrorsTotal:          c.errorsTotal.Load(),
		ReconnectsTotal:      c.reconnectsTotal.Load(),
		LastActivity:         time.Unix(c.lastActivity.Load(), 0),
		Connected:            c.IsConnected(),
		Reconnecting:         c.reconnecting.Load(),
	}
}

// HealthCheck verifies the connection is alive.
//
// Note: This only checks connection state. For active verification,
// use ServerInfo which round-trips to the server.
func (c *Client) HealthCheck(_ context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// logInfo logs an info message if logger is set.
func (c *Client) logInfo(msg string, keysAndValues ...any) {
	c.loggerMu.RLock()
	logger := c.logger
	c.loggerMu.RUnlock()

	if logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

// logError logs an error message if logger is set.
func (c *Client) logError(msg string, err error) {
	c.loggerMu.RLock()
	logger := c.logger
	c.loggerMu.RUnlock()

	if logger != nil {
		logger.Error(msg, "error", err)
	}
}
