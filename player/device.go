package player

import (
	"fmt"
	"io"

	"github.com/ebitengine/oto/v3"
)

// The one output format every session is normalized to before it
// reaches the device: s16le stereo at 48 kHz.
const (
	outputSampleRate = 48000
	outputChannels   = 2
	frameSize        = 4 // 2 bytes per sample * 2 channels
)

// Device is one bound playback stream on the audio output.
type Device interface {
	Play()
	Pause()
	IsPlaying() bool
	Close() error
}

// OutputContext creates Devices. The real implementation wraps the
// process-wide oto context, which by contract is created once and never
// recreated for the lifetime of the process.
type OutputContext interface {
	NewDevice(r io.Reader) Device
}

type otoOutput struct {
	ctx *oto.Context
}

type otoDevice struct {
	p *oto.Player
}

func (d *otoDevice) Play()           { d.p.Play() }
func (d *otoDevice) Pause()          { d.p.Pause() }
func (d *otoDevice) IsPlaying() bool { return d.p.IsPlaying() }
func (d *otoDevice) Close() error    { return d.p.Close() }

func (o *otoOutput) NewDevice(r io.Reader) Device {
	return &otoDevice{p: o.ctx.NewPlayer(r)}
}

// newOtoOutput initializes the audio hardware and blocks until the
// device is ready.
func newOtoOutput() (OutputContext, error) {
	op := &oto.NewContextOptions{
		SampleRate:   outputSampleRate,
		ChannelCount: outputChannels,
		Format:       oto.FormatSignedInt16LE,
	}

	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("failed to create audio context: %w", err)
	}
	<-ready

	return &otoOutput{ctx: ctx}, nil
}
