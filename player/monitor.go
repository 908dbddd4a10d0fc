package player

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"airwave/logging"
)

const (
	defaultStallWindow    = 10 * time.Second
	defaultStallLimit     = 3
	defaultHealthInterval = 2 * time.Second
	defaultNudgeDelay     = 1 * time.Second
)

// Transport is the slice of the controller the monitor drives.
type Transport interface {
	Subscribe() *Subscription
	IsPlaying() bool
	Recover()
}

// Monitor watches a playing stream for silent death: playback position
// frozen past the stall window, or the network dropping out under it.
// Short stalls get a local pause and play nudge; repeated stalls and
// offline-to-online transitions escalate to a full stream recovery.
type Monitor struct {
	handle    *Handle
	transport Transport
	log       zerolog.Logger

	stallWindow    time.Duration
	stallLimit     int
	healthInterval time.Duration
	nudgeDelay     time.Duration

	netSignals <-chan Signal
	now        func() time.Time
	afterFunc  func(time.Duration, func()) *time.Timer

	consecutiveStalls int
	lastPos           time.Duration
	lastProgress      time.Time
	wasOffline        bool
}

// MonitorOption configures a Monitor.
type MonitorOption func(*Monitor)

// WithStallWindow sets how long the position may freeze before a stall
// is counted.
func WithStallWindow(d time.Duration) MonitorOption {
	return func(m *Monitor) { m.stallWindow = d }
}

// WithStallLimit sets how many consecutive stalls trigger recovery.
func WithStallLimit(n int) MonitorOption {
	return func(m *Monitor) { m.stallLimit = n }
}

// WithNetworkSignals feeds the monitor offline and online edges from
// the shared reachability prober.
func WithNetworkSignals(ch <-chan Signal) MonitorOption {
	return func(m *Monitor) { m.netSignals = ch }
}

// WithMonitorClock replaces the wall clock, for tests.
func WithMonitorClock(now func() time.Time) MonitorOption {
	return func(m *Monitor) { m.now = now }
}

// WithAfterFunc replaces delayed execution, for tests.
func WithAfterFunc(f func(time.Duration, func()) *time.Timer) MonitorOption {
	return func(m *Monitor) { m.afterFunc = f }
}

func NewMonitor(handle *Handle, transport Transport, opts ...MonitorOption) *Monitor {
	m := &Monitor{
		handle:         handle,
		transport:      transport,
		log:            logging.WithComponent("monitor"),
		stallWindow:    defaultStallWindow,
		stallLimit:     defaultStallLimit,
		healthInterval: defaultHealthInterval,
		nudgeDelay:     defaultNudgeDelay,
		now:            time.Now,
		afterFunc:      time.AfterFunc,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run samples stream health until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	sub := m.transport.Subscribe()
	defer sub.Close()

	healthTicker := time.NewTicker(m.healthInterval)
	defer healthTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-sub.State():
			if !snap.IsPlaying {
				m.ResetStallCount()
			}
		case <-healthTicker.C:
			m.CheckStall()
			m.logBufferHealth()
		case sig := <-m.netSignals:
			m.HandleNetworkSignal(sig.Kind == SignalOnline)
		}
	}
}

// ResetStallCount clears the stall streak. Called whenever playback
// pauses or the track changes, so old stalls never bleed into a fresh
// stream.
func (m *Monitor) ResetStallCount() {
	m.consecutiveStalls = 0
	m.lastProgress = time.Time{}
}

// CheckStall samples the playback position. A position frozen for a
// full stall window counts one stall; below the limit the stream gets a
// local pause and play nudge, at the limit it escalates to recovery.
func (m *Monitor) CheckStall() {
	if !m.transport.IsPlaying() || !m.handle.HasSession() {
		m.ResetStallCount()
		return
	}

	now := m.now()
	pos := m.handle.Position()

	if m.lastProgress.IsZero() || pos != m.lastPos {
		m.lastPos = pos
		m.lastProgress = now
		m.consecutiveStalls = 0
		return
	}

	if now.Sub(m.lastProgress) < m.stallWindow {
		return
	}

	m.consecutiveStalls++
	m.lastProgress = now
	m.log.Warn().
		Int("consecutive", m.consecutiveStalls).
		Dur("position", pos).
		Msg("playback stalled")

	if m.consecutiveStalls >= m.stallLimit {
		m.consecutiveStalls = 0
		m.transport.Recover()
		return
	}
	m.nudge()
}

// nudge pauses the device and restarts it shortly after, which is often
// enough to unstick a briefly starved pipeline. The restart only fires
// while the transport still considers itself playing; a pause of any
// kind arriving in between keeps the device silent.
func (m *Monitor) nudge() {
	m.handle.Pause()
	m.afterFunc(m.nudgeDelay, func() {
		if m.transport.IsPlaying() && !m.handle.ExplicitlyPaused() {
			m.handle.Play()
		}
	})
}

// HandleNetworkSignal tracks reachability edges. Only the offline to
// online transition acts; a single recovery restarts a stream that
// died silently while the network was gone. When a resume is already
// marked, the interruption coordinator owns the restart and the
// monitor stays out of its way.
func (m *Monitor) HandleNetworkSignal(online bool) {
	if !online {
		if !m.wasOffline {
			m.log.Warn().Msg("network unreachable")
		}
		m.wasOffline = true
		return
	}
	if !m.wasOffline {
		return
	}
	m.wasOffline = false
	m.log.Info().Msg("network restored")
	if m.transport.IsPlaying() && !m.handle.ShouldResume() {
		m.transport.Recover()
	}
}

func (m *Monitor) logBufferHealth() {
	if !m.handle.HasSession() {
		return
	}
	m.log.Debug().
		Dur("position", m.handle.Position()).
		Dur("since_data", m.now().Sub(m.handle.LastData())).
		Bool("playing", m.handle.DeviceActive()).
		Msg("buffer health")
}
