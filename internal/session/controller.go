// Package session implements the session lifecycle state machine, the
// event fan-out and the outbound send API on top of an opaque transport.
package session

import (
	"context"
	"io"
	"sync"
	"time"

	"whatsauto/internal/constants"
	"whatsauto/internal/creds"
	apperrors "whatsauto/internal/errors"
	"whatsauto/internal/events"
	"whatsauto/internal/metrics"
	"whatsauto/internal/models"
	"whatsauto/internal/normalize"
	"whatsauto/internal/retry"
	"whatsauto/internal/tracing"
	"whatsauto/pkg/sticker"
	"whatsauto/pkg/transport"
	"whatsauto/pkg/wajid"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// Options wires a controller to its collaborators.
type Options struct {
	Config    models.SessionConfig
	Transport transport.Transport
	Creds     creds.Store
	Encoder   sticker.Encoder
	Bus       *events.Bus
	Logger    *logrus.Logger
	Registry  *Registry
	Retry     models.RetryConfig
}

type reconnectRequest struct {
	delay time.Duration
}

// Controller owns one transport connection and runs the session lifecycle
// state machine. Inbound feed events are processed one at a time, in
// arrival order; distinct sessions are fully independent.
type Controller struct {
	id        string
	cfg       models.SessionConfig
	transport transport.Transport
	creds     creds.Store
	encoder   sticker.Encoder
	bus       *events.Bus
	logger    *logrus.Entry
	registry  *Registry

	maxReconnectAttempts int
	reconnectDelay       time.Duration
	maxPairingAttempts   int
	pairingRetryDelay    time.Duration

	lifetime context.Context
	cancel   context.CancelFunc

	// reconnectCh feeds the supervisor loop; capacity one so a pending
	// request coalesces with any newer one.
	reconnectCh chan reconnectRequest
	startOnce   sync.Once

	mu          sync.Mutex
	state       models.SessionState
	retryCount  int
	pairingCode string
	conn        transport.Conn
	selfJID     string
	destroyed   bool
}

// New creates a controller and claims its id in the registry. A live
// registry entry for the same id is the authoritative duplicate signal;
// credentials already on disk merely mean the session will resume.
func New(id string, opts Options) (*Controller, error) {
	if id == "" {
		return nil, apperrors.NewValidationError("sessionId", "session id is required")
	}
	if opts.Transport == nil {
		return nil, apperrors.NewValidationError("transport", "transport is required")
	}
	if opts.Creds == nil {
		return nil, apperrors.NewValidationError("creds", "credential store is required")
	}
	if opts.Registry == nil {
		return nil, apperrors.NewValidationError("registry", "registry is required")
	}
	if opts.Bus == nil {
		opts.Bus = events.NewBus()
	}

	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
	}
	if !opts.Config.Logging {
		muted := logrus.New()
		muted.SetOutput(io.Discard)
		logger = muted
	}

	lifetime, cancel := context.WithCancel(context.Background())

	c := &Controller{
		id:        id,
		cfg:       opts.Config,
		transport: opts.Transport,
		creds:     opts.Creds,
		encoder:   opts.Encoder,
		bus:       opts.Bus,
		logger:    logger.WithField("session", id),
		registry:  opts.Registry,

		maxReconnectAttempts: opts.Retry.MaxReconnectAttempts,
		reconnectDelay:       time.Duration(opts.Retry.ReconnectDelaySec) * time.Second,
		maxPairingAttempts:   opts.Retry.MaxPairingAttempts,
		pairingRetryDelay:    time.Duration(opts.Retry.PairingRetryDelaySec) * time.Second,

		lifetime:    lifetime,
		cancel:      cancel,
		reconnectCh: make(chan reconnectRequest, 1),
		state:       models.SessionStateIdle,
	}

	if c.maxReconnectAttempts <= 0 {
		c.maxReconnectAttempts = constants.DefaultMaxReconnectAttempts
	}
	if c.reconnectDelay <= 0 {
		c.reconnectDelay = constants.DefaultReconnectDelaySec * time.Second
	}
	if c.maxPairingAttempts <= 0 {
		c.maxPairingAttempts = constants.DefaultMaxPairingAttempts
	}
	if c.pairingRetryDelay <= 0 {
		c.pairingRetryDelay = constants.DefaultPairingRetryDelaySec * time.Second
	}

	if !opts.Registry.add(c) {
		cancel()
		return nil, apperrors.NewDuplicateSessionError(id)
	}

	if opts.Creds.Exists(id) {
		c.logger.Info("Found persisted credentials, session will resume")
	}
	c.logger.Info("Session created")

	return c, nil
}

// ID returns the session id.
func (c *Controller) ID() string {
	return c.id
}

// State returns the current lifecycle state.
func (c *Controller) State() models.SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Info returns an externally visible snapshot of the session.
func (c *Controller) Info() models.SessionInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return models.SessionInfo{
		ID:          c.id,
		State:       c.state,
		RetryCount:  c.retryCount,
		PairingCode: c.pairingCode,
		UserJID:     c.selfJID,
	}
}

// On subscribes fn to the named event channel.
func (c *Controller) On(channel string, fn interface{}) error {
	return c.bus.Subscribe(channel, fn)
}

// Once subscribes fn for a single delivery.
func (c *Controller) Once(channel string, fn interface{}) error {
	return c.bus.SubscribeOnce(channel, fn)
}

// Off removes a previously subscribed handler.
func (c *Controller) Off(channel string, fn interface{}) error {
	return c.bus.Unsubscribe(channel, fn)
}

// Bus exposes the session's event bus.
func (c *Controller) Bus() *events.Bus {
	return c.bus
}

// Initialize validates the configuration and opens the transport
// connection. Setup failures here propagate to the caller; once the
// session is established, reconnection failures are handled internally by
// the retry policy.
func (c *Controller) Initialize(ctx context.Context) error {
	c.logger.Info("Initializing session")

	if c.cfg.PhoneNumber != "" {
		jid, err := wajid.FromPhone(c.cfg.PhoneNumber, false)
		if err != nil {
			return apperrors.NewValidationError("phoneNumber", err.Error())
		}
		c.cfg.PhoneNumber = jid
		// Pairing-code login replaces the QR flow entirely.
		c.cfg.PrintQR = false
	}

	c.startOnce.Do(func() {
		go c.supervise()
	})

	return c.connect(ctx)
}

// connect performs one connection setup pass: load credentials, dial,
// bind the event feed and, if needed, obtain a pairing code.
func (c *Controller) connect(ctx context.Context) error {
	ctx, span := tracing.StartSpan(ctx, "session_connect",
		attribute.String("session.id", c.id))
	defer span.End()

	c.setState(models.SessionStateConnecting)

	auth, err := c.creds.Load(c.id)
	if err != nil {
		wrapped := apperrors.NewCredentialsError("load", err)
		tracing.RecordError(ctx, wrapped)
		return wrapped
	}

	conn, err := c.transport.Connect(ctx, transport.ConnectConfig{
		SessionID: c.id,
		Auth:      auth,
		EmitQR:    c.cfg.PrintQR,
	})
	if err != nil {
		wrapped := apperrors.NewTransportError("connect", err)
		tracing.RecordError(ctx, wrapped)
		return wrapped
	}

	c.mu.Lock()
	old := c.conn
	c.conn = conn
	c.mu.Unlock()
	if old != nil {
		_ = old.End()
	}

	conn.Bind(transport.Handlers{
		ConnectionUpdate:        c.handleConnectionUpdate,
		CredsUpdate:             c.handleCredsUpdate,
		MessagesUpsert:          c.handleMessagesUpsert,
		MessagesUpdate:          c.handleMessagesUpdate,
		GroupParticipantsUpdate: c.handleGroupParticipantsUpdate,
		MessagesDelete:          c.handleMessagesDelete,
	})

	if c.cfg.PhoneNumber != "" && !conn.Registered() && c.pairing() == "" {
		if err := c.requestPairingCode(ctx, conn); err != nil {
			return err
		}
	} else if c.cfg.PrintQR && !conn.Registered() {
		c.setState(models.SessionStateAwaitingQR)
	}

	return nil
}

// requestPairingCode asks the transport for a pairing code, retrying with
// a fixed delay up to the pairing budget. Exhausting the budget is
// terminal: the session transitions to Disconnected and surfaces no code.
func (c *Controller) requestPairingCode(ctx context.Context, conn transport.Conn) error {
	c.setState(models.SessionStateAwaitingPairingCode)
	phone := wajid.ToPhone(c.cfg.PhoneNumber)

	attempt := 0
	backoff := retry.NewBackoff(retry.FixedConfig(c.pairingRetryDelay, c.maxPairingAttempts))
	err := backoff.Retry(ctx, func() error {
		attempt++
		code, reqErr := conn.RequestPairingCode(ctx, phone)
		if reqErr != nil {
			c.logger.WithField("attempt", attempt).Warnf("Retry get pairing code for %s", phone)
			return reqErr
		}

		c.mu.Lock()
		c.pairingCode = code
		c.mu.Unlock()

		c.logger.Info("Pairing code received")
		c.bus.Publish(events.PairingCode, code)
		return nil
	})
	if err != nil {
		c.logger.Warn("Pairing code budget exhausted")
		c.terminate(false)
		return apperrors.NewTransportError("pairing", err)
	}
	return nil
}

// handleConnectionUpdate drives the lifecycle state machine from the
// transport's connection notifications.
func (c *Controller) handleConnectionUpdate(u transport.ConnectionUpdate) {
	if u.QR != "" && c.cfg.PrintQR {
		c.logger.Info("QR updated")
		c.setState(models.SessionStateAwaitingQR)
		c.bus.Publish(events.QR, u.QR)
	}

	switch u.Connection {
	case transport.ConnectionConnecting:
		c.logger.Info("Connecting")
		c.bus.Publish(events.Connecting)

	case transport.ConnectionOpen:
		c.mu.Lock()
		c.state = models.SessionStateOpen
		c.retryCount = 0
		c.pairingCode = ""
		if c.conn != nil {
			c.selfJID = wajid.Normalize(c.conn.UserJID())
		}
		c.mu.Unlock()

		c.logger.Info("Connected")
		c.bus.Publish(events.Connected)

	case transport.ConnectionClose:
		// Close events during an active pairing exchange are part of the
		// pairing dance, not failures.
		if c.pairing() != "" {
			return
		}
		c.handleClose(u.Reason)
	}
}

// handleClose classifies a disconnect reason into restart, bounded retry
// or terminal teardown.
func (c *Controller) handleClose(reason transport.DisconnectReason) {
	switch {
	case reason == transport.ReasonRestartRequired:
		// Protocol-mandated reconnect: no budget, no delay.
		c.logger.Info("Restart required, reconnecting")
		c.scheduleReconnect(0)

	case reason == transport.ReasonLoggedOut:
		c.logger.Warn("Logged out")
		c.terminate(true)

	default:
		c.mu.Lock()
		c.retryCount++
		count := c.retryCount
		c.mu.Unlock()

		metrics.Increment("session_reconnects_total", map[string]string{"session": c.id})

		if count < c.maxReconnectAttempts {
			switch reason {
			case transport.ReasonConnectionLost:
				c.logger.Warn("Connection lost")
			case transport.ReasonConnectionClosed:
				c.logger.Warn("Connection closed")
			default:
				c.logger.Warnf("Connection closed with status %d", reason)
			}
			c.logger.WithField("attempt", count).Warn("Retry connecting")
			c.setState(models.SessionStateRetrying)
			c.scheduleReconnect(c.reconnectDelay)
		} else {
			c.logger.Warn("Reconnect budget exhausted")
			c.terminate(false)
		}
	}
}

// scheduleReconnect hands a reconnect request to the supervisor loop.
func (c *Controller) scheduleReconnect(delay time.Duration) {
	select {
	case c.reconnectCh <- reconnectRequest{delay: delay}:
	default:
		// A reconnect is already pending.
	}
}

// supervise is the explicit reconnect loop. Keeping reconnection here, in
// one bounded loop with an accumulated counter, makes termination and the
// retry budget independently verifiable.
func (c *Controller) supervise() {
	for {
		select {
		case <-c.lifetime.Done():
			return
		case req := <-c.reconnectCh:
			if req.delay > 0 {
				if retry.Sleep(c.lifetime, req.delay) != nil {
					return
				}
			}
			if err := c.connect(c.lifetime); err != nil {
				apperrors.LogWarn(c.logger, err, "Reconnect attempt failed")
				c.handleClose(transport.ReasonUnknown)
			}
		}
	}
}

// terminate performs the terminal transition: emit disconnected, then tear
// the session down, swallowing teardown errors.
func (c *Controller) terminate(purgeCredentials bool) {
	c.mu.Lock()
	c.retryCount = 0
	c.mu.Unlock()

	c.logger.Warn("Disconnected")
	c.setState(models.SessionStateDisconnected)
	c.bus.Publish(events.Disconnected)

	if err := c.Destroy(context.Background(), purgeCredentials); err != nil {
		apperrors.LogWarn(c.logger, err, "Teardown failed")
	}
}

// Destroy is the explicit terminal transition: best-effort logout, always
// release the transport handle, optionally purge persisted credentials.
// In-flight outbound sends are abandoned, not cancelled: they run to
// completion against their own contexts, but no further reconnects happen.
func (c *Controller) Destroy(ctx context.Context, purgeCredentials bool) error {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return nil
	}
	c.destroyed = true
	c.state = models.SessionStateClosing
	conn := c.conn
	c.mu.Unlock()

	c.logger.Info("Destroying session")
	c.cancel()

	if conn != nil {
		if err := conn.Logout(ctx); err != nil {
			c.logger.WithError(err).Warn("Logout failed")
		}
		if err := conn.End(); err != nil {
			c.logger.WithError(err).Warn("Failed to release transport handle")
		}
	}

	var purgeErr error
	if purgeCredentials {
		if purgeErr = c.creds.Purge(c.id); purgeErr != nil {
			c.logger.WithError(purgeErr).Warn("Failed to purge credentials")
		}
	}

	c.setState(models.SessionStateDisconnected)
	c.registry.remove(c.id)
	c.logger.Info("Session destroyed")

	return purgeErr
}

// handleCredsUpdate forwards the credential blob verbatim to the store.
func (c *Controller) handleCredsUpdate(data []byte) {
	if err := c.creds.Save(c.id, data); err != nil {
		apperrors.LogError(c.logger, apperrors.NewCredentialsError("save", err), "Failed to persist credentials")
	}
}

// handleMessagesUpsert runs the normalization pipeline and fans the result
// out. History backfill batches are skipped.
func (c *Controller) handleMessagesUpsert(u transport.MessagesUpsert) {
	if u.Type == transport.UpsertAppend {
		return
	}

	nctx := normalize.Context{
		SessionID: c.id,
		SelfJID:   c.self(),
	}

	for _, raw := range u.Messages {
		if raw == nil {
			continue
		}
		result := normalize.Normalize(raw, nctx)
		if result.Deleted != nil {
			RouteDeleted(c.bus, result.Deleted)
			continue
		}

		msg := result.Message
		c.bindMessage(msg)
		metrics.Increment("messages_dispatched_total", map[string]string{
			"session":   c.id,
			"direction": string(msg.Direction()),
		})
		RouteMessage(c.bus, msg)
	}
}

// handleMessagesUpdate emits one message-updated event per status
// transition.
func (c *Controller) handleMessagesUpdate(updates []transport.MessageStatusUpdate) {
	for _, u := range updates {
		RouteUpdate(c.bus, &models.MessageUpdate{
			SessionID: c.id,
			Key:       u.Key,
			Status:    models.StatusFromCode(u.Status),
		})
	}
}

// handleGroupParticipantsUpdate emits a group-member-update pre-bound with
// reply helpers addressed at the group.
func (c *Controller) handleGroupParticipantsUpdate(u transport.GroupParticipantsUpdate) {
	update := &models.GroupMemberUpdate{
		SessionID:    c.id,
		GroupJID:     u.GroupJID,
		Author:       u.Author,
		Participants: u.Participants,
		Action:       u.Action,
	}
	c.bindGroupUpdate(update)
	RouteGroupMemberUpdate(c.bus, update)
}

// handleMessagesDelete routes server-pushed deletions to the deletion
// channel.
func (c *Controller) handleMessagesDelete(d transport.MessagesDelete) {
	for _, key := range d.Keys {
		RouteDeleted(c.bus, &models.DeletedMessage{
			SessionID: c.id,
			Key:       key,
			DeletedID: key.ID,
		})
	}
}

func (c *Controller) setState(s models.SessionState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Controller) pairing() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pairingCode
}

func (c *Controller) self() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selfJID
}

func (c *Controller) connection() (transport.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil || c.destroyed {
		return nil, apperrors.New(apperrors.ErrCodeTransport, "session is not connected")
	}
	return c.conn, nil
}
