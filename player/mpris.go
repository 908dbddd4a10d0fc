package player

import (
	"fmt"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/prop"
	"github.com/rs/zerolog"

	"airwave/logging"
)

const (
	mprisBusName     = "org.mpris.MediaPlayer2.airwave"
	mprisObjectPath  = dbus.ObjectPath("/org/mpris/MediaPlayer2")
	mprisRootIface   = "org.mpris.MediaPlayer2"
	mprisPlayerIface = "org.mpris.MediaPlayer2.Player"
)

// mprisBackend exposes playback over the MPRIS D-Bus interface, which
// is what desktop media keys, lock screens and applets talk to on
// Linux.
type mprisBackend struct {
	conn  *dbus.Conn
	props *prop.Properties
	log   zerolog.Logger
}

// NewMPRISBackend claims the MPRIS bus name and wires incoming media
// commands to the transport. Fails when no session bus is reachable;
// callers fall back to the no-op backend.
func NewMPRISBackend(transport RemoteTransport) (RemoteBackend, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}

	reply, err := conn.RequestName(mprisBusName, dbus.NameFlagReplaceExisting)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to request bus name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		conn.Close()
		return nil, fmt.Errorf("bus name %s already taken", mprisBusName)
	}

	b := &mprisBackend{
		conn: conn,
		log:  logging.WithComponent("mpris"),
	}

	if err := conn.Export(&mprisRoot{}, mprisObjectPath, mprisRootIface); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to export root object: %w", err)
	}
	if err := conn.Export(&mprisPlayer{transport: transport, log: b.log}, mprisObjectPath, mprisPlayerIface); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to export player object: %w", err)
	}

	return b, nil
}

func (b *mprisBackend) Announce(caps Capabilities) error {
	propMap := map[string]map[string]*prop.Prop{
		mprisRootIface: {
			"Identity":            constProp("airwave"),
			"CanQuit":             constProp(false),
			"CanRaise":            constProp(false),
			"HasTrackList":        constProp(false),
			"SupportedUriSchemes": constProp([]string{"http", "https"}),
			"SupportedMimeTypes":  constProp([]string{"audio/mpeg", "audio/aac"}),
		},
		mprisPlayerIface: {
			"PlaybackStatus": changingProp(statusStopped),
			"Metadata":       changingProp(map[string]dbus.Variant{}),
			// Position never emits change notifications; clients poll.
			"Position":       constProp(int64(0)),
			"Volume":         changingProp(1.0),
			"Rate":           constProp(1.0),
			"MinimumRate":    constProp(1.0),
			"MaximumRate":    constProp(1.0),
			"CanPlay":        constProp(caps.CanPlay),
			"CanPause":       constProp(caps.CanPause),
			"CanGoNext":      constProp(caps.CanGoNext),
			"CanGoPrevious":  constProp(caps.CanGoPrevious),
			"CanSeek":        constProp(caps.CanSeek),
			"CanControl":     constProp(true),
		},
	}

	props, err := prop.Export(b.conn, mprisObjectPath, propMap)
	if err != nil {
		return fmt.Errorf("failed to export properties: %w", err)
	}
	b.props = props
	b.log.Info().Str("bus_name", mprisBusName).Msg("media controls registered")
	return nil
}

func (b *mprisBackend) UpdateStatus(status string) error {
	if b.props == nil {
		return nil
	}
	return b.props.Set(mprisPlayerIface, "PlaybackStatus", dbus.MakeVariant(status))
}

func (b *mprisBackend) UpdateMetadata(title, station string) error {
	if b.props == nil {
		return nil
	}
	meta := map[string]dbus.Variant{
		"mpris:trackid": dbus.MakeVariant(dbus.ObjectPath("/io/airwave/track/current")),
	}
	if title != "" {
		meta["xesam:title"] = dbus.MakeVariant(title)
	}
	if station != "" {
		meta["xesam:artist"] = dbus.MakeVariant([]string{station})
	}
	return b.props.Set(mprisPlayerIface, "Metadata", dbus.MakeVariant(meta))
}

func (b *mprisBackend) UpdatePosition(pos time.Duration) error {
	if b.props == nil {
		return nil
	}
	return b.props.Set(mprisPlayerIface, "Position", dbus.MakeVariant(pos.Microseconds()))
}

func (b *mprisBackend) Close() error {
	if _, err := b.conn.ReleaseName(mprisBusName); err != nil {
		b.log.Debug().Err(err).Msg("failed to release bus name")
	}
	return b.conn.Close()
}

func constProp(v interface{}) *prop.Prop {
	return &prop.Prop{Value: v, Writable: false, Emit: prop.EmitFalse}
}

func changingProp(v interface{}) *prop.Prop {
	return &prop.Prop{Value: v, Writable: false, Emit: prop.EmitTrue}
}

// mprisRoot serves the org.mpris.MediaPlayer2 interface. The app is a
// terminal program, so raising and quitting over the bus stay no-ops.
type mprisRoot struct{}

func (r *mprisRoot) Raise() *dbus.Error { return nil }
func (r *mprisRoot) Quit() *dbus.Error  { return nil }

// mprisPlayer serves org.mpris.MediaPlayer2.Player method calls coming
// from media keys and desktop applets.
type mprisPlayer struct {
	transport RemoteTransport
	log       zerolog.Logger
}

func (p *mprisPlayer) Play() *dbus.Error {
	p.log.Debug().Msg("remote play")
	p.transport.Resume()
	return nil
}

func (p *mprisPlayer) Pause() *dbus.Error {
	p.log.Debug().Msg("remote pause")
	p.transport.Pause()
	return nil
}

func (p *mprisPlayer) PlayPause() *dbus.Error {
	p.log.Debug().Msg("remote toggle")
	p.transport.Toggle()
	return nil
}

func (p *mprisPlayer) Stop() *dbus.Error {
	p.log.Debug().Msg("remote stop")
	p.transport.ClearCurrentTrack()
	return nil
}

func (p *mprisPlayer) Next() *dbus.Error {
	p.log.Debug().Msg("remote next")
	if err := p.transport.Next(); err != nil {
		p.log.Debug().Err(err).Msg("remote next failed")
	}
	return nil
}

func (p *mprisPlayer) Previous() *dbus.Error {
	p.log.Debug().Msg("remote previous")
	if err := p.transport.Previous(); err != nil {
		p.log.Debug().Err(err).Msg("remote previous failed")
	}
	return nil
}

// Seek and SetPosition exist so clients that ignore CanSeek do not get
// a method error; a live stream has nothing to seek in.
func (p *mprisPlayer) Seek(offset int64) *dbus.Error                  { return nil }
func (p *mprisPlayer) SetPosition(dbus.ObjectPath, int64) *dbus.Error { return nil }

func (p *mprisPlayer) OpenUri(uri string) *dbus.Error { return nil }
