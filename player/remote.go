package player

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"airwave/logging"
)

// Capabilities describes which transport operations the OS control
// surface may offer. Live radio has no timeline, so seeking stays off
// and the OS hides or disables its seek controls instead of breaking
// the stream.
type Capabilities struct {
	CanPlay       bool
	CanPause      bool
	CanGoNext     bool
	CanGoPrevious bool
	CanSeek       bool
}

// RemoteTransport is the slice of the controller the OS control surface
// drives.
type RemoteTransport interface {
	Toggle()
	Pause()
	Resume()
	Next() error
	Previous() error
	ClearCurrentTrack()
	Snapshot() Snapshot
	Subscribe() *Subscription
}

// RemoteBackend pushes playback state to one OS integration point.
type RemoteBackend interface {
	Announce(caps Capabilities) error
	UpdateStatus(status string) error
	UpdateMetadata(title, station string) error
	UpdatePosition(pos time.Duration) error
	Close() error
}

// MPRIS playback status strings.
const (
	statusPlaying = "Playing"
	statusPaused  = "Paused"
	statusStopped = "Stopped"
)

const defaultMetadataDebounce = 100 * time.Millisecond

// noopBackend keeps the surface running where no OS integration is
// reachable, such as headless sessions without a session bus.
type noopBackend struct{}

func (noopBackend) Announce(Capabilities) error         { return nil }
func (noopBackend) UpdateStatus(string) error           { return nil }
func (noopBackend) UpdateMetadata(string, string) error { return nil }
func (noopBackend) UpdatePosition(time.Duration) error  { return nil }
func (noopBackend) Close() error                        { return nil }

// Surface mirrors playback state to the OS media controls. Metadata
// pushes are debounced so rapid title flaps from the stream do not spam
// the desktop notification machinery.
type Surface struct {
	transport RemoteTransport
	backend   RemoteBackend
	debounce  time.Duration
	log       zerolog.Logger
}

// SurfaceOption configures a Surface.
type SurfaceOption func(*Surface)

// WithMetadataDebounce sets how long metadata changes coalesce before
// being pushed out.
func WithMetadataDebounce(d time.Duration) SurfaceOption {
	return func(s *Surface) { s.debounce = d }
}

func NewSurface(transport RemoteTransport, backend RemoteBackend, opts ...SurfaceOption) *Surface {
	if backend == nil {
		backend = noopBackend{}
	}
	s := &Surface{
		transport: transport,
		backend:   backend,
		debounce:  defaultMetadataDebounce,
		log:       logging.WithComponent("surface"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run mirrors state until ctx is cancelled, then closes the backend.
func (s *Surface) Run(ctx context.Context) {
	defer s.backend.Close()

	caps := Capabilities{
		CanPlay:       true,
		CanPause:      true,
		CanGoNext:     true,
		CanGoPrevious: true,
		CanSeek:       false,
	}
	if err := s.backend.Announce(caps); err != nil {
		s.log.Warn().Err(err).Msg("media controls unavailable")
		return
	}

	sub := s.transport.Subscribe()
	defer sub.Close()

	s.push(s.transport.Snapshot())

	var (
		pending   *Snapshot
		debouncer *time.Timer
		fire      = make(chan struct{}, 1)
	)
	defer func() {
		if debouncer != nil {
			debouncer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-sub.State():
			pending = &snap
			if debouncer == nil {
				debouncer = time.AfterFunc(s.debounce, func() {
					select {
					case fire <- struct{}{}:
					default:
					}
				})
			} else {
				debouncer.Reset(s.debounce)
			}
		case <-fire:
			if pending != nil {
				s.push(*pending)
				pending = nil
			}
		}
	}
}

func (s *Surface) push(snap Snapshot) {
	status := statusStopped
	switch {
	case snap.IsPlaying || snap.IsLoading:
		status = statusPlaying
	case snap.Station != nil:
		status = statusPaused
	}
	if err := s.backend.UpdateStatus(status); err != nil {
		s.log.Debug().Err(err).Msg("status push failed")
	}

	title := snap.StreamTitle
	station := ""
	if snap.Station != nil {
		station = snap.Station.Name
		if title == "" {
			title = station
		}
	}
	if err := s.backend.UpdateMetadata(title, station); err != nil {
		s.log.Debug().Err(err).Msg("metadata push failed")
	}
	if err := s.backend.UpdatePosition(snap.Position); err != nil {
		s.log.Debug().Err(err).Msg("position push failed")
	}
}
