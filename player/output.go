package player

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"airwave/logging"
)

// Handle owns the one audio output for the whole process: the lazily
// created output context, the active streaming session, the device
// bound to it, and the small set of intent flags recovery logic keys
// off. Everything that touches the output goes through here.
//
// Writer discipline: only the loader replaces the session binding; only
// the controller (or a coordinator acting through it) calls Play/Pause
// as an intent change; the health monitor calls them purely as a
// recovery mechanism.
type Handle struct {
	mu        sync.Mutex
	log       zerolog.Logger
	newOutput func() (OutputContext, error)

	output     OutputContext
	session    Session
	device     Device
	currentURL string

	// intent flags
	explicitlyPaused     bool
	navigationInProgress bool
	shouldResume         bool

	volumeBits     atomic.Uint64
	bytesDelivered atomic.Int64
	lastDataNanos  atomic.Int64
}

// HandleOption configures a Handle.
type HandleOption func(*Handle)

// WithOutputFactory replaces the hardware output constructor. Tests use
// this to run against a fake device.
func WithOutputFactory(f func() (OutputContext, error)) HandleOption {
	return func(h *Handle) { h.newOutput = f }
}

// NewHandle creates the shared output handle. The underlying audio
// context is not touched until the first playback attempt.
func NewHandle(opts ...HandleOption) *Handle {
	h := &Handle{
		log:       logging.WithComponent("output"),
		newOutput: newOtoOutput,
	}
	h.volumeBits.Store(math.Float64bits(0.8))
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// GetOrCreate returns the output context, creating it on first use.
// The context is never recreated while the process runs.
func (h *Handle) GetOrCreate() (OutputContext, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.getOrCreateLocked()
}

func (h *Handle) getOrCreateLocked() (OutputContext, error) {
	if h.output != nil {
		return h.output, nil
	}
	out, err := h.newOutput()
	if err != nil {
		h.log.Error().Err(err).Msg("audio output initialization failed")
		return nil, err
	}
	h.output = out
	h.log.Debug().Msg("audio output created")
	return out, nil
}

// Attach binds a started session to a fresh device. Any previous
// session and device are torn down first, so at most one of each ever
// exists.
func (h *Handle) Attach(sess Session) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	out, err := h.getOrCreateLocked()
	if err != nil {
		return err
	}

	h.detachLocked()

	reader := newVolumeReader(sess, h.Volume, func(n int) {
		h.bytesDelivered.Add(int64(n))
		h.lastDataNanos.Store(time.Now().UnixNano())
	})

	h.session = sess
	h.device = out.NewDevice(reader)
	h.currentURL = sess.URL()
	h.bytesDelivered.Store(0)
	h.lastDataNanos.Store(time.Now().UnixNano())
	return nil
}

// Reset pauses the device and destroys the session binding. Calling it
// with nothing attached is a no-op, never an error.
func (h *Handle) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.detachLocked()
	h.currentURL = ""
	h.bytesDelivered.Store(0)
}

func (h *Handle) detachLocked() {
	if h.device != nil {
		h.device.Pause()
		if err := h.device.Close(); err != nil {
			h.log.Debug().Err(err).Msg("device close failed")
		}
		h.device = nil
	}
	if h.session != nil {
		if err := h.session.Close(); err != nil {
			h.log.Debug().Err(err).Msg("session close failed")
		}
		h.session = nil
	}
}

// CurrentURL returns the URL currently bound to the output, or "".
func (h *Handle) CurrentURL() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.currentURL
}

// Play starts the device if one is bound.
func (h *Handle) Play() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.device != nil {
		h.device.Play()
	}
}

// Pause pauses the device if one is bound.
func (h *Handle) Pause() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.device != nil {
		h.device.Pause()
	}
}

// DeviceActive reports whether the bound device is actually playing.
func (h *Handle) DeviceActive() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.device != nil && h.device.IsPlaying()
}

// HasSession reports whether a streaming session is currently bound.
func (h *Handle) HasSession() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.session != nil
}

// Volume returns the current volume in [0,1].
func (h *Handle) Volume() float64 {
	return math.Float64frombits(h.volumeBits.Load())
}

// SetVolume clamps and applies the volume. It takes effect on the next
// PCM chunk the device pulls.
func (h *Handle) SetVolume(v float64) {
	if v < 0 {
		v = 0
	} else if v > 1 {
		v = 1
	}
	h.volumeBits.Store(math.Float64bits(v))
}

// Position is the wall progress of the bound stream, derived from PCM
// actually delivered to the device. Live streams have no duration, so
// this only ever moves forward while data flows.
func (h *Handle) Position() time.Duration {
	bytes := h.bytesDelivered.Load()
	return time.Duration(bytes) * time.Second /
		time.Duration(outputSampleRate*frameSize)
}

// LastData is the time PCM last reached the device, zero if never.
func (h *Handle) LastData() time.Time {
	n := h.lastDataNanos.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

// SetExplicitPause records a user-initiated pause. Setting it always
// clears the resume-after-interruption intent: the two are never both
// true.
func (h *Handle) SetExplicitPause(v bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.explicitlyPaused = v
	if v {
		h.shouldResume = false
	}
}

// ExplicitlyPaused reports whether the user explicitly paused.
func (h *Handle) ExplicitlyPaused() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.explicitlyPaused
}

// SetNavigationInProgress marks a UI transition; recovery defers while
// it is set.
func (h *Handle) SetNavigationInProgress(v bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.navigationInProgress = v
}

// NavigationInProgress reports whether a UI transition is in flight.
func (h *Handle) NavigationInProgress() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.navigationInProgress
}

// MarkShouldResume records that an interruption paused playback that
// was meant to continue. Ignored while an explicit pause is in effect.
func (h *Handle) MarkShouldResume() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.explicitlyPaused {
		return
	}
	h.shouldResume = true
}

// ClearShouldResume drops the resume-after-interruption intent.
func (h *Handle) ClearShouldResume() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.shouldResume = false
}

// ShouldResume reports whether an interruption should auto-resume.
func (h *Handle) ShouldResume() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.shouldResume
}
