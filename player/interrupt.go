package player

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"airwave/config"
	"airwave/logging"
	"airwave/model"
)

// SignalKind names an external event that can interrupt playback or
// end an interruption.
type SignalKind int

const (
	SignalFocusLost SignalKind = iota
	SignalFocusGained
	SignalEnterBackground
	SignalEnterForeground
	SignalRouteAdded
	SignalRouteRemoved
	SignalOffline
	SignalOnline
)

func (k SignalKind) String() string {
	switch k {
	case SignalFocusLost:
		return "focus_lost"
	case SignalFocusGained:
		return "focus_gained"
	case SignalEnterBackground:
		return "enter_background"
	case SignalEnterForeground:
		return "enter_foreground"
	case SignalRouteAdded:
		return "route_added"
	case SignalRouteRemoved:
		return "route_removed"
	case SignalOffline:
		return "offline"
	case SignalOnline:
		return "online"
	default:
		return "unknown"
	}
}

// Signal is one external event fed to the coordinator.
type Signal struct {
	Kind SignalKind
	At   time.Time
}

// CoordinatorTransport is the slice of the controller the coordinator
// drives.
type CoordinatorTransport interface {
	IsPlaying() bool
	PauseTransient()
	ResumeIfExpected()
	ReloadCurrent()
	PlayStation(model.Station)
	CurrentStation() (model.Station, bool)
}

type coordState int

const (
	coordIdle coordState = iota
	coordInterrupted
	coordResuming
)

const (
	defaultSettleDelay = 500 * time.Millisecond
	defaultStaleAfter  = 30 * time.Second
)

// Coordinator reduces every interruption source through one state
// machine: idle, interrupted, resuming. Audio focus loss and network
// loss pause playback and arm the resume intent; the matching recovery
// signal resumes after a short settle delay. An explicit listener pause
// always wins over any automatic resume.
type Coordinator struct {
	mu sync.Mutex

	handle    *Handle
	transport CoordinatorTransport
	store     *config.Store
	library   *model.Library
	log       zerolog.Logger

	state         coordState
	reason        SignalKind
	interruptedAt time.Time

	settleDelay time.Duration
	staleAfter  time.Duration
	now         func() time.Time
	afterFunc   func(time.Duration, func()) *time.Timer
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithSettleDelay sets the pause before an automatic resume fires.
func WithSettleDelay(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) { c.settleDelay = d }
}

// WithStaleAfter sets how long an interruption may last before the
// resume path reloads the stream instead of unpausing stale buffers.
func WithStaleAfter(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) { c.staleAfter = d }
}

// WithCoordinatorClock replaces the wall clock, for tests.
func WithCoordinatorClock(now func() time.Time) CoordinatorOption {
	return func(c *Coordinator) { c.now = now }
}

// WithCoordinatorAfterFunc replaces delayed execution, for tests.
func WithCoordinatorAfterFunc(f func(time.Duration, func()) *time.Timer) CoordinatorOption {
	return func(c *Coordinator) { c.afterFunc = f }
}

func NewCoordinator(handle *Handle, transport CoordinatorTransport, store *config.Store, library *model.Library, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		handle:      handle,
		transport:   transport,
		store:       store,
		library:     library,
		log:         logging.WithComponent("coordinator"),
		settleDelay: defaultSettleDelay,
		staleAfter:  defaultStaleAfter,
		now:         time.Now,
		afterFunc:   time.AfterFunc,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run consumes signals until ctx is cancelled.
func (c *Coordinator) Run(ctx context.Context, signals <-chan Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-signals:
			if !ok {
				return
			}
			c.Reduce(sig)
		}
	}
}

// Reduce applies one signal to the state machine.
func (c *Coordinator) Reduce(sig Signal) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if sig.At.IsZero() {
		sig.At = c.now()
	}
	c.log.Debug().Stringer("signal", sig.Kind).Msg("signal received")

	switch sig.Kind {
	case SignalFocusLost, SignalOffline, SignalRouteRemoved:
		c.beginInterruptionLocked(sig)
	case SignalFocusGained, SignalOnline:
		c.endInterruptionLocked(sig)
	case SignalEnterBackground:
		// Playback continues in the background; nothing to do.
	case SignalEnterForeground:
		// Catch a resume the interruption path may have missed while
		// the app was invisible.
		if c.state == coordIdle && c.handle.ShouldResume() {
			c.transport.ResumeIfExpected()
		}
	case SignalRouteAdded:
		if c.state == coordInterrupted && c.reason == SignalRouteRemoved {
			c.endInterruptionLocked(sig)
			return
		}
		c.routeAddedLocked()
	}
}

func (c *Coordinator) beginInterruptionLocked(sig Signal) {
	if c.state == coordInterrupted {
		return
	}
	wasPlaying := c.transport.IsPlaying()
	c.state = coordInterrupted
	c.reason = sig.Kind
	c.interruptedAt = sig.At

	if wasPlaying {
		c.log.Info().Stringer("reason", sig.Kind).Msg("playback interrupted")
		c.transport.PauseTransient()
	}
}

// endInterruptionLocked leaves the interrupted state when the recovery
// signal matches the interruption that caused it.
func (c *Coordinator) endInterruptionLocked(sig Signal) {
	if c.state != coordInterrupted || !endsInterruption(c.reason, sig.Kind) {
		return
	}
	duration := sig.At.Sub(c.interruptedAt)
	c.state = coordResuming

	c.log.Info().
		Stringer("reason", c.reason).
		Dur("duration", duration).
		Msg("interruption ended")

	c.afterFunc(c.settleDelay, func() {
		c.finishResume(duration)
	})
}

func (c *Coordinator) finishResume(duration time.Duration) {
	c.mu.Lock()
	if c.state != coordResuming {
		c.mu.Unlock()
		return
	}
	c.state = coordIdle
	c.mu.Unlock()

	if c.handle.ExplicitlyPaused() {
		c.handle.ClearShouldResume()
		return
	}

	// A live stream buffered before a long interruption is stale; a
	// fresh load beats resuming silence.
	if duration >= c.staleAfter {
		c.transport.ReloadCurrent()
		return
	}
	c.transport.ResumeIfExpected()
}

// routeAddedLocked handles a new output route appearing, the desktop
// analogue of plugging in headphones. Playback picks up from the
// current station, or from the last played one when nothing is loaded.
func (c *Coordinator) routeAddedLocked() {
	if c.transport.IsPlaying() || c.handle.ExplicitlyPaused() {
		return
	}
	if _, ok := c.transport.CurrentStation(); ok {
		if c.handle.ShouldResume() {
			c.transport.ResumeIfExpected()
		}
		return
	}
	if c.store == nil || c.library == nil {
		return
	}
	lp := c.store.LastPlayedState()
	if lp.StationURL == "" || !lp.WasPlaying {
		return
	}
	if st, ok := c.library.Get(lp.StationURL); ok {
		c.log.Info().Str("url", st.URL).Msg("resuming last played on new route")
		c.transport.PlayStation(st)
	}
}

func endsInterruption(reason, recovery SignalKind) bool {
	switch recovery {
	case SignalFocusGained:
		return reason == SignalFocusLost
	case SignalOnline:
		return reason == SignalOffline
	case SignalRouteAdded:
		return reason == SignalRouteRemoved
	default:
		return false
	}
}
