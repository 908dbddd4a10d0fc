package player

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleCreatesOutputLazilyOnce(t *testing.T) {
	created := 0
	h := NewHandle(WithOutputFactory(func() (OutputContext, error) {
		created++
		return &fakeOutput{}, nil
	}))

	assert.Zero(t, created, "output must not exist before first use")

	_, err := h.GetOrCreate()
	require.NoError(t, err)
	_, err = h.GetOrCreate()
	require.NoError(t, err)
	assert.Equal(t, 1, created, "output context is created exactly once")
}

func TestHandleAttachReplacesSession(t *testing.T) {
	h, out := newTestHandle()

	first := &fakeSession{url: "https://a.example/stream"}
	require.NoError(t, h.Attach(first))
	firstDevice := out.lastDevice()

	second := &fakeSession{url: "https://b.example/stream"}
	require.NoError(t, h.Attach(second))

	assert.True(t, first.isClosed(), "old session torn down on replace")
	assert.True(t, firstDevice.closed, "old device torn down on replace")
	assert.Equal(t, "https://b.example/stream", h.CurrentURL())
	assert.True(t, h.HasSession())
}

func TestHandleResetIsIdempotent(t *testing.T) {
	h, _ := newTestHandle()

	h.Reset()
	h.Reset()
	assert.False(t, h.HasSession())

	sess := &fakeSession{url: "https://a.example/stream"}
	require.NoError(t, h.Attach(sess))
	h.Reset()
	assert.True(t, sess.isClosed())
	assert.Empty(t, h.CurrentURL())
	h.Reset()
}

func TestHandleAttachFailsWhenOutputUnavailable(t *testing.T) {
	h := NewHandle(WithOutputFactory(func() (OutputContext, error) {
		return nil, errors.New("no audio hardware")
	}))

	err := h.Attach(&fakeSession{url: "https://a.example/stream"})
	require.Error(t, err)
	assert.False(t, h.HasSession())
}

func TestExplicitPauseClearsResumeIntent(t *testing.T) {
	h, _ := newTestHandle()

	h.MarkShouldResume()
	require.True(t, h.ShouldResume())

	h.SetExplicitPause(true)
	assert.False(t, h.ShouldResume(), "explicit pause and auto resume are mutually exclusive")
	assert.True(t, h.ExplicitlyPaused())
}

func TestMarkShouldResumeIgnoredWhileExplicitlyPaused(t *testing.T) {
	h, _ := newTestHandle()

	h.SetExplicitPause(true)
	h.MarkShouldResume()
	assert.False(t, h.ShouldResume())

	h.SetExplicitPause(false)
	h.MarkShouldResume()
	assert.True(t, h.ShouldResume())
}

func TestHandleVolumeClamped(t *testing.T) {
	h, _ := newTestHandle()

	h.SetVolume(1.7)
	assert.Equal(t, 1.0, h.Volume())
	h.SetVolume(-0.3)
	assert.Equal(t, 0.0, h.Volume())
	h.SetVolume(0.45)
	assert.Equal(t, 0.45, h.Volume())
}

func TestHandlePositionTracksDeliveredPCM(t *testing.T) {
	h, out := newTestHandle()

	oneSecond := make([]byte, outputSampleRate*frameSize)
	sess := &fakeSession{url: "https://a.example/stream", data: bytes.NewReader(oneSecond)}
	require.NoError(t, h.Attach(sess))
	assert.Equal(t, time.Duration(0), h.Position())

	// Drain the bound reader the way a device would.
	device := out.lastDevice()
	require.NotNil(t, device)
	buf := make([]byte, 8192)
	for {
		if _, err := device.reader.Read(buf); err != nil {
			break
		}
	}

	assert.Equal(t, time.Second, h.Position())
	assert.False(t, h.LastData().IsZero())
}

func TestHandleNavigationFlag(t *testing.T) {
	h, _ := newTestHandle()

	assert.False(t, h.NavigationInProgress())
	h.SetNavigationInProgress(true)
	assert.True(t, h.NavigationInProgress())
	h.SetNavigationInProgress(false)
	assert.False(t, h.NavigationInProgress())
}
