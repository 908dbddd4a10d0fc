package player

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"airwave/config"
	"airwave/logging"
	"airwave/model"
)

// Controller owns the playback state machine. All transport operations
// funnel through it under one lock, so concurrent requests from the UI,
// the remote surface and the coordinators serialize, and the newest
// track request always wins over older in-flight loads.
type Controller struct {
	mu sync.Mutex

	handle  *Handle
	loader  *Loader
	library *model.Library
	store   *config.Store
	bus     *broadcaster
	log     zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	stations    []model.Station
	current     *model.Station
	isPlaying   bool
	isLoading   bool
	randomMode  bool
	streamTitle string

	playStartedAt time.Time

	now func() time.Time
	rng *rand.Rand
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithClock replaces the wall clock, for tests.
func WithClock(now func() time.Time) ControllerOption {
	return func(c *Controller) { c.now = now }
}

// WithRandSource seeds track selection in random mode.
func WithRandSource(src rand.Source) ControllerOption {
	return func(c *Controller) { c.rng = rand.New(src) }
}

func NewController(handle *Handle, loader *Loader, library *model.Library, store *config.Store, opts ...ControllerOption) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		handle:  handle,
		loader:  loader,
		library: library,
		store:   store,
		bus:     newBroadcaster(),
		log:     logging.WithComponent("controller"),
		ctx:     ctx,
		cancel:  cancel,
		now:     time.Now,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(c)
	}
	if store != nil {
		c.randomMode = store.RandomModePreference()
		handle.SetVolume(store.VolumePreference())
	}
	return c
}

// Subscribe registers a playback event listener.
func (c *Controller) Subscribe() *Subscription {
	return c.bus.subscribe()
}

// SetStations replaces the active playlist used by next and previous.
func (c *Controller) SetStations(stations []model.Station) {
	c.mu.Lock()
	c.stations = append([]model.Station(nil), stations...)
	c.mu.Unlock()
}

// PlayStation loads and plays a station. Requesting the station that is
// already loaded does nothing; requesting a different one supersedes
// whatever load is in flight.
func (c *Controller) PlayStation(st model.Station) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.playLocked(st)
}

func (c *Controller) playLocked(st model.Station) {
	if c.current != nil && c.current.URL == st.URL && (c.handle.HasSession() || c.isLoading) {
		if !c.isLoading && !c.isPlaying && !c.handle.ExplicitlyPaused() {
			c.startPlaybackLocked()
			c.publishStateLocked()
		}
		return
	}

	c.flushPlayTimeLocked()
	c.handle.SetNavigationInProgress(true)
	c.handle.SetExplicitPause(false)
	c.handle.ClearShouldResume()

	station := st
	c.current = &station
	c.isLoading = true
	c.isPlaying = true
	c.streamTitle = ""
	c.publishStateLocked()

	go c.runLoad(station)
}

func (c *Controller) runLoad(st model.Station) {
	err := c.loader.Load(c.ctx, st.URL, c.onTitle)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil || c.current.URL != st.URL {
		return
	}
	if errors.Is(err, ErrSuperseded) {
		return
	}

	c.isLoading = false
	c.handle.SetNavigationInProgress(false)

	if err != nil {
		c.isPlaying = false
		report := FailureReport{Station: c.current, Class: FailureMedia, Err: err}
		var streamErr *StreamError
		if errors.As(err, &streamErr) {
			report.Class = streamErr.Class
		}
		c.bus.publishFailure(report)
		c.publishStateLocked()
		return
	}

	// The listener may have paused, or an interruption may have
	// started, while the stream was loading. A pending resume mark
	// means the coordinator owns the restart; starting here would put
	// audio on the air mid-interruption.
	if c.handle.ExplicitlyPaused() || c.handle.ShouldResume() {
		c.isPlaying = false
	} else {
		c.startPlaybackLocked()
	}
	c.persistLastPlayedLocked()
	c.publishStateLocked()
}

func (c *Controller) startPlaybackLocked() {
	c.handle.Play()
	c.isPlaying = true
	c.playStartedAt = c.now()
}

// Pause is the listener saying stop. It sets the explicit pause intent,
// which blocks every automatic resume until the listener plays again.
func (c *Controller) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.handle.SetExplicitPause(true)
	c.handle.Pause()
	c.flushPlayTimeLocked()
	c.isPlaying = false
	c.persistLastPlayedLocked()
	c.publishStateLocked()
}

// Resume clears the explicit pause intent and restarts playback,
// reloading the stream if the session is gone.
func (c *Controller) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resumeLocked()
}

func (c *Controller) resumeLocked() {
	c.handle.SetExplicitPause(false)

	if c.handle.HasSession() {
		c.startPlaybackLocked()
		c.publishStateLocked()
		return
	}
	if c.current != nil {
		st := *c.current
		c.current = nil // force a fresh load
		c.playLocked(st)
	}
}

// Toggle pauses when playing and resumes otherwise.
func (c *Controller) Toggle() {
	c.mu.Lock()
	playing := c.isPlaying || c.isLoading
	c.mu.Unlock()

	if playing {
		c.Pause()
	} else {
		c.Resume()
	}
}

// Next advances to another station. Sequential mode wraps at the end of
// the playlist; random mode never picks the current station again while
// more than one is available.
func (c *Controller) Next() error {
	return c.step(1)
}

// Previous steps back. With no current station it starts from the end
// of the playlist.
func (c *Controller) Previous() error {
	return c.step(-1)
}

func (c *Controller) step(dir int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	// An empty active playlist, such as a favorites view with nothing
	// in it, falls back to the full library.
	pool := c.stations
	if len(pool) == 0 {
		pool = c.library.Stations()
	}
	if len(pool) == 0 {
		return ErrEmptyList
	}

	var target model.Station
	if c.randomMode {
		target = c.pickRandomLocked(pool)
	} else {
		target = c.pickSequentialLocked(pool, dir)
	}
	c.playLocked(target)
	return nil
}

func (c *Controller) pickRandomLocked(pool []model.Station) model.Station {
	if len(pool) == 1 {
		return pool[0]
	}
	for {
		candidate := pool[c.rng.Intn(len(pool))]
		if c.current == nil || candidate.URL != c.current.URL {
			return candidate
		}
	}
}

func (c *Controller) pickSequentialLocked(pool []model.Station, dir int) model.Station {
	idx := -1
	if c.current != nil {
		for i, st := range pool {
			if st.URL == c.current.URL {
				idx = i
				break
			}
		}
	}
	if idx < 0 {
		if dir > 0 {
			return pool[0]
		}
		return pool[len(pool)-1]
	}
	n := len(pool)
	return pool[(idx+dir+n)%n]
}

// ClearCurrentTrack tears everything down: session, intent flags,
// current station, in-flight loads. The player returns to the state it
// had at launch.
func (c *Controller) ClearCurrentTrack() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.loader.Invalidate()
	c.flushPlayTimeLocked()
	c.handle.Reset()
	c.handle.SetExplicitPause(false)
	c.handle.SetNavigationInProgress(false)
	c.handle.ClearShouldResume()

	c.current = nil
	c.isPlaying = false
	c.isLoading = false
	c.streamTitle = ""
	c.publishStateLocked()
}

// SetVolume clamps, applies and persists the volume.
func (c *Controller) SetVolume(v float64) {
	c.handle.SetVolume(v)
	if c.store != nil {
		if err := c.store.SaveVolumePreference(c.handle.Volume()); err != nil {
			c.log.Warn().Err(err).Msg("failed to persist volume")
		}
	}
	c.mu.Lock()
	c.publishStateLocked()
	c.mu.Unlock()
}

// Volume reports the current volume.
func (c *Controller) Volume() float64 {
	return c.handle.Volume()
}

// SetRandomMode switches track selection mode and persists the choice.
func (c *Controller) SetRandomMode(on bool) {
	c.mu.Lock()
	c.randomMode = on
	c.publishStateLocked()
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.SaveRandomModePreference(on); err != nil {
			c.log.Warn().Err(err).Msg("failed to persist random mode")
		}
	}
}

// RandomMode reports whether random track selection is active.
func (c *Controller) RandomMode() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.randomMode
}

// PauseTransient pauses playback for an interruption without recording
// a listener intent, and marks the session for auto resume. A listener
// who already paused stays paused and is not marked.
func (c *Controller) PauseTransient() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.isPlaying {
		return
	}
	c.handle.Pause()
	c.handle.MarkShouldResume()
	c.flushPlayTimeLocked()
	c.isPlaying = false
	c.publishStateLocked()
}

// ResumeIfExpected resumes after an interruption, but only when the
// interruption marked the session for resume and the listener has not
// explicitly paused in the meantime.
func (c *Controller) ResumeIfExpected() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.handle.ExplicitlyPaused() || !c.handle.ShouldResume() {
		return
	}
	c.handle.ClearShouldResume()
	c.resumeLocked()
}

// Recover reloads the current station. The health monitor calls this
// when local retries cannot revive a stalled stream.
func (c *Controller) Recover() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil || c.handle.ExplicitlyPaused() {
		return
	}
	c.log.Info().Str("url", c.current.URL).Msg("recovering stream")
	st := *c.current
	c.current = nil
	c.playLocked(st)
}

// ReloadCurrent restarts the current session from scratch, used when an
// interruption lasted long enough that the buffered data went stale.
func (c *Controller) ReloadCurrent() {
	c.Recover()
}

// Snapshot returns the current playback state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// CurrentStation returns the station being played or loaded, if any.
func (c *Controller) CurrentStation() (model.Station, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return model.Station{}, false
	}
	return *c.current, true
}

// IsPlaying reports whether playback is active or optimistically
// starting.
func (c *Controller) IsPlaying() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isPlaying
}

// Close stops in-flight loads, flushes play time accounting and
// persists the final state.
func (c *Controller) Close() {
	c.cancel()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.loader.Invalidate()
	c.flushPlayTimeLocked()
	c.persistLastPlayedLocked()
	c.handle.Reset()
}

func (c *Controller) onTitle(title string) {
	c.mu.Lock()
	if title == c.streamTitle {
		c.mu.Unlock()
		return
	}
	c.streamTitle = title
	c.publishStateLocked()
	c.mu.Unlock()

	c.bus.publishTitle(title)
}

func (c *Controller) snapshotLocked() Snapshot {
	return Snapshot{
		Station:     c.current,
		IsPlaying:   c.isPlaying,
		IsLoading:   c.isLoading,
		RandomMode:  c.randomMode,
		Volume:      c.handle.Volume(),
		StreamTitle: c.streamTitle,
		Position:    c.handle.Position(),
	}
}

func (c *Controller) publishStateLocked() {
	c.bus.publishState(c.snapshotLocked())
}

func (c *Controller) flushPlayTimeLocked() {
	if c.playStartedAt.IsZero() || c.current == nil {
		return
	}
	seconds := int64(c.now().Sub(c.playStartedAt).Seconds())
	if seconds > 0 && c.library != nil {
		c.library.AddPlayTime(c.current.URL, seconds)
	}
	c.playStartedAt = time.Time{}
}

func (c *Controller) persistLastPlayedLocked() {
	if c.store == nil || c.current == nil {
		return
	}
	lp := config.LastPlayed{
		StationURL: c.current.URL,
		WasPlaying: c.isPlaying,
		Volume:     c.handle.Volume(),
		PositionMs: c.handle.Position().Milliseconds(),
		At:         c.now(),
	}
	if err := c.store.SaveLastPlayedState(lp); err != nil {
		c.log.Warn().Err(err).Msg("failed to persist last played state")
	}
}
