package presence

import (
	"context"
	"sync"
	"time"

	"shelfchat/internal/constants"
	"shelfchat/internal/models"

	"github.com/sirupsen/logrus"
)

// Emitter sends outbound typing signals. Satisfied by the stream manager.
type Emitter interface {
	SendTyping(ctx context.Context, receiverID string, typing bool) error
}

// Config tunes the tracker's windows; zero values take the defaults.
type Config struct {
	QuietPeriod   time.Duration // silence before typing_stop is emitted
	IndicatorTTL  time.Duration // inbound typing flag expiry
	RecencyWindow time.Duration // "Recently active" cutoff
}

// Tracker owns per-user online/offline state and ephemeral typing flags.
// Presence is only meaningful while the stream is connected: it is rebuilt
// from the active_users snapshot on every (re)connect and cleared by Reset
// on manual disconnect. A user goes offline only on an explicit down push;
// there is no client-side staleness inference.
type Tracker struct {
	mu      sync.Mutex
	logger  *logrus.Logger
	emitter Emitter

	quietPeriod   time.Duration
	indicatorTTL  time.Duration
	recencyWindow time.Duration

	statuses map[string]models.Presence
	inbound  map[string]*time.Timer
	outbound map[string]*outboundState

	now func() time.Time
}

// outboundState is the explicit debounce state for one peer: whether we are
// inside a typing cool-down, and the timer that ends it.
type outboundState struct {
	active bool
	quiet  *time.Timer
}

func New(cfg Config, emitter Emitter, logger *logrus.Logger) *Tracker {
	if cfg.QuietPeriod <= 0 {
		cfg.QuietPeriod = constants.TypingQuietPeriod
	}
	if cfg.IndicatorTTL <= 0 {
		cfg.IndicatorTTL = constants.TypingIndicatorTTL
	}
	if cfg.RecencyWindow <= 0 {
		cfg.RecencyWindow = constants.RecentlyActiveWindow
	}
	if logger == nil {
		logger = logrus.New()
	}

	return &Tracker{
		logger:        logger,
		emitter:       emitter,
		quietPeriod:   cfg.QuietPeriod,
		indicatorTTL:  cfg.IndicatorTTL,
		recencyWindow: cfg.RecencyWindow,
		statuses:      make(map[string]models.Presence),
		inbound:       make(map[string]*time.Timer),
		outbound:      make(map[string]*outboundState),
		now:           time.Now,
	}
}

// SetStatus applies an incremental user_status push.
func (t *Tracker) SetStatus(userID string, status models.PresenceStatus, lastActive time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if lastActive.IsZero() {
		lastActive = t.now()
	}
	t.statuses[userID] = models.Presence{Status: status, LastActive: lastActive}
}

// ApplyActiveUsers rebuilds presence from the bulk snapshot pushed once per
// connect; everything known before the snapshot is discarded.
func (t *Tracker) ApplyActiveUsers(userIDs []string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.statuses = make(map[string]models.Presence, len(userIDs))
	for _, id := range userIDs {
		t.statuses[id] = models.Presence{Status: models.StatusOnline, LastActive: now}
	}
}

// Status returns the raw presence record for a user.
func (t *Tracker) Status(userID string) (models.Presence, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.statuses[userID]
	return p, ok
}

// DisplayStatus derives the user-visible status string. It is computed,
// never stored.
func (t *Tracker) DisplayStatus(userID string) string {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.statuses[userID]
	if ok && p.Status == models.StatusOnline {
		return "Online"
	}
	if ok && t.now().Sub(p.LastActive) <= t.recencyWindow {
		return "Recently active"
	}
	return "Offline"
}

// InputChanged drives the outbound typing debounce from local text-input
// changes. The first change in a cool-down window emits typing_start once;
// every further change resets the quiet timer; after the quiet period with
// no input (or immediately when the input is cleared) typing_stop goes out
// and the cool-down ends.
func (t *Tracker) InputChanged(ctx context.Context, peerID, text string) {
	t.mu.Lock()
	st := t.outbound[peerID]

	if text == "" {
		if st == nil || !st.active {
			t.mu.Unlock()
			return
		}
		t.stopQuietTimerLocked(st)
		st.active = false
		t.mu.Unlock()
		t.emit(ctx, peerID, false)
		return
	}

	if st == nil {
		st = &outboundState{}
		t.outbound[peerID] = st
	}

	emitStart := !st.active
	st.active = true
	t.stopQuietTimerLocked(st)
	st.quiet = time.AfterFunc(t.quietPeriod, func() {
		t.quietExpired(peerID)
	})
	t.mu.Unlock()

	if emitStart {
		t.emit(ctx, peerID, true)
	}
}

func (t *Tracker) quietExpired(peerID string) {
	t.mu.Lock()
	st := t.outbound[peerID]
	if st == nil || !st.active {
		t.mu.Unlock()
		return
	}
	st.active = false
	st.quiet = nil
	t.mu.Unlock()

	t.emit(context.Background(), peerID, false)
}

func (t *Tracker) stopQuietTimerLocked(st *outboundState) {
	if st.quiet != nil {
		st.quiet.Stop()
		st.quiet = nil
	}
}

func (t *Tracker) emit(ctx context.Context, peerID string, typing bool) {
	if t.emitter == nil {
		return
	}
	if err := t.emitter.SendTyping(ctx, peerID, typing); err != nil {
		t.logger.WithError(err).WithField("peer", peerID).Debug("Typing signal not delivered")
	}
}

// SetTyping applies an inbound typing_start/typing_stop event. A set flag
// self-expires after the indicator TTL in case the stop event is lost.
func (t *Tracker) SetTyping(userID string, typing bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if timer := t.inbound[userID]; timer != nil {
		timer.Stop()
		delete(t.inbound, userID)
	}
	if !typing {
		return
	}

	var timer *time.Timer
	timer = time.AfterFunc(t.indicatorTTL, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if t.inbound[userID] == timer {
			delete(t.inbound, userID)
		}
	})
	t.inbound[userID] = timer
}

// IsTyping reports whether a peer is currently flagged as typing.
func (t *Tracker) IsTyping(userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.inbound[userID]
	return ok
}

// Reset drops all presence and typing state and cancels pending timers.
// Called on manual disconnect so stale presence does not outlive the
// connection.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for id, timer := range t.inbound {
		timer.Stop()
		delete(t.inbound, id)
	}
	for id, st := range t.outbound {
		t.stopQuietTimerLocked(st)
		delete(t.outbound, id)
	}
	t.statuses = make(map[string]models.Presence)
}
