package stream

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"shelfchat/internal/constants"
	apperrors "shelfchat/internal/errors"
	"shelfchat/internal/metrics"
	"shelfchat/internal/models"
	"shelfchat/internal/retry"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/sirupsen/logrus"
)

// Handler receives decoded server events. All methods are called from the
// manager's read goroutine, one event at a time.
type Handler interface {
	HandleNewMessage(msg models.Message)
	HandleMessageEdited(payload models.MessageEditedPayload)
	HandleMessageDeleted(payload models.MessageDeletedPayload)
	HandleMessagesRead(payload models.MessagesReadPayload)
	HandleUserStatus(payload models.UserStatusPayload)
	HandleActiveUsers(payload models.ActiveUsersPayload)
	HandleTyping(userID string, typing bool)
}

// Manager owns the single event-stream connection: dialing, the
// authenticate handshake, event dispatch, and reconnection with backoff.
//
// "Connected" here means logically connected: the websocket is up AND the
// authenticate frame has been sent. A transport drop does not flip the flag
// immediately; a grace timer debounces it so a quick reconnect is invisible
// to callers.
type Manager struct {
	mu      sync.Mutex
	writeMu sync.Mutex

	cfg     models.StreamConfig
	logger  *logrus.Logger
	handler Handler
	policy  retry.Policy
	grace   time.Duration

	conn         *websocket.Conn
	userID       string
	connected    bool
	wasConnected bool
	intentional  bool
	running      bool
	graceTimer   *time.Timer
	cancelRun    context.CancelFunc
	done         chan struct{}

	// OnReconnect fires when the stream comes back after having been
	// logically connected before within the same Connect session. Set it
	// before calling Connect.
	OnReconnect func()
}

func NewManager(cfg models.StreamConfig, handler Handler, logger *logrus.Logger) *Manager {
	if logger == nil {
		logger = logrus.New()
	}

	if cfg.DisconnectGraceSec <= 0 {
		cfg.DisconnectGraceSec = constants.DefaultDisconnectGraceSec
	}
	if cfg.ReconnectInitialMs <= 0 {
		cfg.ReconnectInitialMs = constants.DefaultReconnectInitialMs
	}
	if cfg.ReconnectMaxSec <= 0 {
		cfg.ReconnectMaxSec = constants.DefaultReconnectMaxSec
	}
	if cfg.ReconnectMultiplier <= 1 {
		cfg.ReconnectMultiplier = constants.DefaultReconnectMultiplier
	}

	return &Manager{
		cfg:     cfg,
		logger:  logger,
		handler: handler,
		policy: retry.Policy{
			InitialDelay: time.Duration(cfg.ReconnectInitialMs) * time.Millisecond,
			MaxDelay:     time.Duration(cfg.ReconnectMaxSec) * time.Second,
			Multiplier:   cfg.ReconnectMultiplier,
			Jitter:       true,
		},
		grace: time.Duration(cfg.DisconnectGraceSec) * time.Second,
	}
}

// Connect starts the stream session for userID. It is idempotent: while a
// session is running, a second call re-sends the authenticate frame over
// the existing connection instead of opening another one.
func (m *Manager) Connect(ctx context.Context, userID string) error {
	m.mu.Lock()
	if m.running {
		m.userID = userID
		conn := m.conn
		m.mu.Unlock()
		if conn != nil {
			return m.authenticate(ctx, conn, userID)
		}
		return nil
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	m.userID = userID
	m.running = true
	m.intentional = false
	m.wasConnected = false
	m.cancelRun = cancel
	done := make(chan struct{})
	m.done = done
	m.mu.Unlock()

	go m.run(runCtx, done)
	return nil
}

// Disconnect tears the session down. Unlike a transport drop this flips the
// connected flag immediately, with no grace period, and suppresses
// reconnection.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.intentional = true
	m.running = false
	if m.graceTimer != nil {
		m.graceTimer.Stop()
		m.graceTimer = nil
	}
	m.connected = false
	m.wasConnected = false
	conn := m.conn
	m.conn = nil
	cancel := m.cancelRun
	done := m.done
	m.mu.Unlock()

	metrics.SetGauge("stream_connected", 0, nil)
	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "client disconnect")
	}
	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	m.logger.Info("Event stream disconnected")
}

// IsConnected reports the logical connection state.
func (m *Manager) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// SendTyping emits a typing_start or typing_stop frame for the receiver.
// Typing signals are best-effort; sending while disconnected is an error
// the caller may ignore.
func (m *Manager) SendTyping(ctx context.Context, receiverID string, typing bool) error {
	event := models.EventTypingStop
	if typing {
		event = models.EventTypingStart
	}

	env, err := models.NewEnvelope(event, models.TypingPayload{ReceiverID: receiverID})
	if err != nil {
		return err
	}
	return m.send(ctx, env)
}

func (m *Manager) send(ctx context.Context, env models.Envelope) error {
	m.mu.Lock()
	conn := m.conn
	connected := m.connected
	m.mu.Unlock()

	if conn == nil || !connected {
		return apperrors.New(apperrors.ErrCodeStream, "event stream is not connected")
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	if err := wsjson.Write(ctx, conn, env); err != nil {
		return apperrors.WrapRetryable(err, apperrors.ErrCodeStream, "failed to write stream frame")
	}
	return nil
}

func (m *Manager) authenticate(ctx context.Context, conn *websocket.Conn, userID string) error {
	env, err := models.NewEnvelope(models.EventAuthenticate, models.AuthenticatePayload{UserID: userID})
	if err != nil {
		return err
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	if err := wsjson.Write(ctx, conn, env); err != nil {
		return apperrors.WrapRetryable(err, apperrors.ErrCodeAuthentication, "failed to send authenticate frame")
	}
	return nil
}

// run is the session goroutine: dial, authenticate, read until the
// connection dies, then back off and redial until Disconnect or context
// cancellation ends the session.
func (m *Manager) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	attempt := 0
	for {
		if ctx.Err() != nil {
			return
		}

		conn, _, err := websocket.Dial(ctx, m.cfg.URL, nil)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			attempt++
			metrics.IncrementCounter("stream_reconnect_attempts", nil)
			m.logger.WithError(err).WithField("attempt", attempt).Warn("Event stream dial failed")
			if err := m.policy.Wait(ctx, attempt); err != nil {
				return
			}
			continue
		}

		m.mu.Lock()
		userID := m.userID
		m.conn = conn
		m.mu.Unlock()

		if err := m.authenticate(ctx, conn, userID); err != nil {
			m.logger.WithError(err).Warn("Event stream authentication failed")
			_ = conn.Close(websocket.StatusInternalError, "authenticate failed")
			attempt++
			if err := m.policy.Wait(ctx, attempt); err != nil {
				return
			}
			continue
		}

		attempt = 0
		m.markConnected()
		m.readLoop(ctx, conn)

		m.mu.Lock()
		stillRunning := m.running
		if m.conn == conn {
			m.conn = nil
		}
		m.mu.Unlock()

		if !stillRunning || ctx.Err() != nil {
			return
		}

		m.transportDropped()
		attempt++
		metrics.IncrementCounter("stream_reconnect_attempts", nil)
		if err := m.policy.Wait(ctx, attempt); err != nil {
			return
		}
	}
}

// markConnected flips the logical flag, cancels any pending grace timer,
// and fires OnReconnect when this is a comeback rather than a first
// connect.
func (m *Manager) markConnected() {
	m.mu.Lock()
	if m.graceTimer != nil {
		m.graceTimer.Stop()
		m.graceTimer = nil
	}
	reconnected := m.wasConnected && !m.connected
	firstConnect := !m.wasConnected
	m.connected = true
	m.wasConnected = true
	onReconnect := m.OnReconnect
	m.mu.Unlock()

	metrics.SetGauge("stream_connected", 1, nil)
	if firstConnect {
		m.logger.Info("Event stream connected")
	} else {
		m.logger.Info("Event stream restored")
	}

	if reconnected && onReconnect != nil {
		onReconnect()
	}
}

// transportDropped starts the grace debounce. The connected flag only flips
// if the grace period elapses without a successful reconnect.
func (m *Manager) transportDropped() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected || m.graceTimer != nil {
		return
	}

	m.logger.WithField("graceSec", m.grace.Seconds()).Debug("Event stream transport dropped")
	m.graceTimer = time.AfterFunc(m.grace, func() {
		m.mu.Lock()
		m.graceTimer = nil
		if !m.connected {
			m.mu.Unlock()
			return
		}
		m.connected = false
		m.mu.Unlock()

		metrics.SetGauge("stream_connected", 0, nil)
		m.logger.Warn("Event stream connection lost")
	})
}

func (m *Manager) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		var env models.Envelope
		if err := wsjson.Read(ctx, conn, &env); err != nil {
			if ctx.Err() == nil {
				m.logger.WithError(err).Debug("Event stream read ended")
			}
			_ = conn.Close(websocket.StatusInternalError, "read failed")
			return
		}
		m.dispatch(env)
	}
}

// dispatch decodes the envelope payload and routes it to the handler.
// Unknown event types and malformed payloads are logged and dropped; they
// never kill the connection.
func (m *Manager) dispatch(env models.Envelope) {
	metrics.IncrementCounter("stream_events", map[string]string{"event": string(env.Event)})

	switch env.Event {
	case models.EventNewMessage:
		var msg models.Message
		if !m.decode(env, &msg) {
			return
		}
		m.handler.HandleNewMessage(msg)

	case models.EventMessageEdited:
		var payload models.MessageEditedPayload
		if !m.decode(env, &payload) {
			return
		}
		m.handler.HandleMessageEdited(payload)

	case models.EventMessageDeleted:
		var payload models.MessageDeletedPayload
		if !m.decode(env, &payload) {
			return
		}
		m.handler.HandleMessageDeleted(payload)

	case models.EventMessagesRead:
		var payload models.MessagesReadPayload
		if !m.decode(env, &payload) {
			return
		}
		m.handler.HandleMessagesRead(payload)

	case models.EventUserStatus:
		var payload models.UserStatusPayload
		if !m.decode(env, &payload) {
			return
		}
		m.handler.HandleUserStatus(payload)

	case models.EventActiveUsers:
		var payload models.ActiveUsersPayload
		if !m.decode(env, &payload) {
			return
		}
		m.handler.HandleActiveUsers(payload)

	case models.EventTypingStart, models.EventTypingStop:
		var payload models.TypingPayload
		if !m.decode(env, &payload) {
			return
		}
		m.handler.HandleTyping(payload.SenderID, env.Event == models.EventTypingStart)

	default:
		m.logger.WithField("event", env.Event).Warn("Dropping unknown stream event")
		metrics.IncrementCounter("stream_events_unknown", nil)
	}
}

func (m *Manager) decode(env models.Envelope, v interface{}) bool {
	if err := json.Unmarshal(env.Data, v); err != nil {
		m.logger.WithError(err).WithField("event", env.Event).Warn("Dropping malformed stream event")
		metrics.IncrementCounter("stream_events_malformed", nil)
		return false
	}
	return true
}
