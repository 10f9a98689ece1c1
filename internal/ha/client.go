package ha

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pianohome/keynote-bridge/internal/logger"
)

// Message types of the Home Assistant websocket API.
const (
	msgTypeAuthRequired = "auth_required"
	msgTypeAuth         = "auth"
	msgTypeAuthOK       = "auth_ok"
	msgTypeAuthInvalid  = "auth_invalid"
	msgTypeCallService  = "call_service"
	msgTypeResult       = "result"
)

// DefaultCallTimeout bounds a single service call round trip.
const DefaultCallTimeout = 5 * time.Second

// defaultHandshakeTimeout bounds the websocket dial.
const defaultHandshakeTimeout = 2 * time.Second

var (
	// errURLRequired is returned when no websocket URL was provided.
	errURLRequired = errors.New("websocket URL must be provided")
	// ErrNotAuthenticated is returned when a call is attempted before Connect.
	ErrNotAuthenticated = errors.New("not authenticated to Home Assistant")
	// ErrAuthFailed is returned when the access token was rejected.
	ErrAuthFailed = errors.New("Home Assistant rejected the access token")
)

// clientMessage is an outbound websocket API message.
type clientMessage struct {
	ID          int            `json:"id,omitempty"`
	Type        string         `json:"type"`
	AccessToken string         `json:"access_token,omitempty"`
	Domain      string         `json:"domain,omitempty"`
	Service     string         `json:"service,omitempty"`
	ServiceData map[string]any `json:"service_data,omitempty"`
	Target      map[string]any `json:"target,omitempty"`
}

// serverMessage is an inbound websocket API message.
type serverMessage struct {
	ID        int          `json:"id"`
	Type      string       `json:"type"`
	Success   bool         `json:"success"`
	Error     *serverError `json:"error"`
	Message   string       `json:"message"`
	HAVersion string       `json:"ha_version"`
}

// serverError is the error payload of a failed result message.
type serverError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Client is a Home Assistant websocket API client. All calls are serialized
// behind a mutex: the dispatch loop issues at most one action call at a time,
// and fire-and-forget announcements queue behind it.
type Client struct {
	url     string
	token   string
	backoff []time.Duration

	callTimeout time.Duration

	mu            sync.Mutex
	conn          *websocket.Conn
	messageID     int
	authenticated bool
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets the timeout for a single service call round trip.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// WithReconnectBackoff sets the backoff ladder used when re-establishing the
// connection after a transport failure; the last entry repeats.
func WithReconnectBackoff(ladder []time.Duration) Option {
	return func(c *Client) {
		if len(ladder) > 0 {
			c.backoff = ladder
		}
	}
}

// NewClient creates a client for the given websocket URL and access token.
func NewClient(url, token string, opts ...Option) (*Client, error) {
	if url == "" {
		return nil, errURLRequired
	}

	client := &Client{
		url:         url,
		token:       token,
		callTimeout: DefaultCallTimeout,
		backoff: []time.Duration{
			500 * time.Millisecond,
			time.Second,
			2 * time.Second,
			5 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// Connect dials the websocket endpoint and performs the authentication
// handshake (auth_required, auth, auth_ok).
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.connectLocked(ctx)
}

// connectLocked performs the dial and handshake. Callers hold mu.
func (c *Client) connectLocked(ctx context.Context) error {
	c.closeLocked()

	dialer := websocket.Dialer{HandshakeTimeout: defaultHandshakeTimeout}

	conn, _, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.url, err)
	}

	greeting, err := readMessage(conn, c.callTimeout)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("read greeting: %w", err)
	}

	if greeting.Type != msgTypeAuthRequired {
		_ = conn.Close()
		return fmt.Errorf("expected %s, got %q", msgTypeAuthRequired, greeting.Type)
	}

	logger.DebugKV(ctx, "Connected to Home Assistant", "ha_version", greeting.HAVersion)

	if err = writeMessage(conn, c.callTimeout, &clientMessage{
		Type:        msgTypeAuth,
		AccessToken: c.token,
	}); err != nil {
		_ = conn.Close()
		return fmt.Errorf("send auth: %w", err)
	}

	reply, err := readMessage(conn, c.callTimeout)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("read auth reply: %w", err)
	}

	switch reply.Type {
	case msgTypeAuthOK:
		c.conn = conn
		c.authenticated = true

		logger.Info(ctx, "Authenticated to Home Assistant")

		return nil
	case msgTypeAuthInvalid:
		_ = conn.Close()
		return fmt.Errorf("%w: %s", ErrAuthFailed, reply.Message)
	default:
		_ = conn.Close()
		return fmt.Errorf("unexpected auth reply %q", reply.Type)
	}
}

// Close tears down the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closeLocked()

	return nil
}

// closeLocked closes the connection if one exists. Callers hold mu.
func (c *Client) closeLocked() {
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}

	c.authenticated = false
}

// CallService performs one service call and waits for its result.
// Rejected calls come back as a Result; transport failures as an error,
// after which the connection must be re-established.
func (c *Client) CallService(
	ctx context.Context,
	domain, service string,
	data, target map[string]any,
) (*Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.callServiceLocked(ctx, domain, service, data, target)
}

// callServiceLocked performs the call. Callers hold mu.
func (c *Client) callServiceLocked(
	ctx context.Context,
	domain, service string,
	data, target map[string]any,
) (*Result, error) {
	if !c.authenticated {
		return nil, ErrNotAuthenticated
	}

	c.messageID++
	id := c.messageID

	message := &clientMessage{
		ID:          id,
		Type:        msgTypeCallService,
		Domain:      domain,
		Service:     service,
		ServiceData: data,
		Target:      target,
	}

	if err := writeMessage(c.conn, c.callTimeout, message); err != nil {
		c.closeLocked()
		return nil, fmt.Errorf("send %s.%s: %w", domain, service, err)
	}

	logger.DebugKV(ctx, "Sent service call", "domain", domain, "service", service, "id", id)

	// The API can interleave unrelated messages (events, pings); skip until
	// the result matching our id arrives or the call deadline passes.
	deadline := time.Now().Add(c.callTimeout)

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			c.closeLocked()
			return nil, fmt.Errorf("%s.%s: result timed out", domain, service)
		}

		reply, err := readMessage(c.conn, remaining)
		if err != nil {
			c.closeLocked()
			return nil, fmt.Errorf("read %s.%s result: %w", domain, service, err)
		}

		if reply.ID != id || reply.Type != msgTypeResult {
			continue
		}

		if reply.Success {
			return &Result{Success: true}, nil
		}

		result := &Result{Success: false}
		if reply.Error != nil {
			result.ErrorCode = reply.Error.Code
			result.ErrorMessage = reply.Error.Message
		}

		return result, nil
	}
}

// AddProduct implements Dispatcher against the picnic.add_product service.
// On a transport failure it re-establishes the connection using the backoff
// ladder and retries the call once.
func (c *Client) AddProduct(ctx context.Context, req AddProductRequest) *Result {
	data := map[string]any{
		"product_id": req.ProductID,
		"amount":     req.Amount,
	}

	if req.ConfigEntryID != "" {
		data["config_entry_id"] = req.ConfigEntryID
	}

	return c.callWithRetry(ctx, "picnic", "add_product", data, nil)
}

// Announce implements Dispatcher against the assist_satellite.announce service.
func (c *Client) Announce(ctx context.Context, message, deviceID string, preannounce bool) *Result {
	data := map[string]any{
		"message":     message,
		"preannounce": preannounce,
	}

	var target map[string]any
	if deviceID != "" {
		target = map[string]any{"device_id": deviceID}
	}

	return c.callWithRetry(ctx, "assist_satellite", "announce", data, target)
}

// callWithRetry folds transport failures into a Result, reconnecting once
// through the backoff ladder between the two attempts.
func (c *Client) callWithRetry(
	ctx context.Context,
	domain, service string,
	data, target map[string]any,
) *Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.authenticated {
		if err := c.reconnectLocked(ctx); err != nil {
			return &Result{
				Success:      false,
				ErrorCode:    "connection_failed",
				ErrorMessage: err.Error(),
			}
		}
	}

	result, err := c.callServiceLocked(ctx, domain, service, data, target)
	if err == nil {
		return result
	}

	logger.WarnKV(ctx, "Service call failed, reconnecting",
		"domain", domain, "service", service, "error", err)

	if err = c.reconnectLocked(ctx); err != nil {
		return &Result{
			Success:      false,
			ErrorCode:    "connection_failed",
			ErrorMessage: err.Error(),
		}
	}

	result, err = c.callServiceLocked(ctx, domain, service, data, target)
	if err != nil {
		return &Result{
			Success:      false,
			ErrorCode:    "transport_error",
			ErrorMessage: err.Error(),
		}
	}

	return result
}

// reconnectLocked retries the connect until it succeeds or the context is
// done, walking the backoff ladder and repeating its last entry for further
// attempts. Callers hold mu and bound the retries with the call's context.
func (c *Client) reconnectLocked(ctx context.Context) error {
	for attempt := 0; ; attempt++ {
		err := c.connectLocked(ctx)
		if err == nil {
			return nil
		}

		step := attempt
		if step >= len(c.backoff) {
			step = len(c.backoff) - 1
		}

		logger.WarnKV(ctx, "Reconnect attempt failed",
			"attempt", attempt+1, "backoff", c.backoff[step].String(), "error", err)

		select {
		case <-ctx.Done():
			return fmt.Errorf("reconnect abandoned after %d attempts: %w", attempt+1, err)
		case <-time.After(c.backoff[step]):
		}
	}
}

// writeMessage sends one JSON message with a write deadline.
func writeMessage(conn *websocket.Conn, timeout time.Duration, message *clientMessage) error {
	if err := conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}

	return conn.WriteJSON(message)
}

// readMessage receives one JSON message with a read deadline.
func readMessage(conn *websocket.Conn, timeout time.Duration) (*serverMessage, error) {
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, err
	}

	var message serverMessage
	if err := conn.ReadJSON(&message); err != nil {
		return nil, err
	}

	return &message, nil
}
