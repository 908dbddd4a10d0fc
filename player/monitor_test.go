package player

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTransport stands in for the controller in monitor tests.
type fakeTransport struct {
	mu       sync.Mutex
	playing  bool
	recovers int
	bus      *broadcaster
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{bus: newBroadcaster()}
}

func (f *fakeTransport) Subscribe() *Subscription { return f.bus.subscribe() }

func (f *fakeTransport) IsPlaying() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.playing
}

func (f *fakeTransport) setPlaying(v bool) {
	f.mu.Lock()
	f.playing = v
	f.mu.Unlock()
}

func (f *fakeTransport) Recover() {
	f.mu.Lock()
	f.recovers++
	f.mu.Unlock()
}

func (f *fakeTransport) recoverCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.recovers
}

func newTestMonitor(t *testing.T) (*Monitor, *Handle, *fakeTransport, *fakeClock, *timerQueue) {
	t.Helper()
	h, _ := newTestHandle()
	transport := newFakeTransport()
	clock := newFakeClock()
	timers := &timerQueue{}
	m := NewMonitor(h, transport,
		WithMonitorClock(clock.Now),
		WithAfterFunc(timers.AfterFunc),
	)
	return m, h, transport, clock, timers
}

func attachFrozenSession(t *testing.T, h *Handle) {
	t.Helper()
	require.NoError(t, h.Attach(&fakeSession{url: "https://a.example.com/stream"}))
}

func TestStallEscalatesToRecoveryAfterThreeWindows(t *testing.T) {
	m, h, transport, clock, _ := newTestMonitor(t)
	attachFrozenSession(t, h)
	transport.setPlaying(true)

	// First sample establishes the baseline.
	m.CheckStall()
	assert.Zero(t, transport.recoverCount())

	for i := 0; i < 2; i++ {
		clock.Advance(11 * time.Second)
		m.CheckStall()
		assert.Zero(t, transport.recoverCount(), "below the stall limit only local nudges fire")
	}

	clock.Advance(11 * time.Second)
	m.CheckStall()
	assert.Equal(t, 1, transport.recoverCount(), "third consecutive stall escalates")

	// The streak resets after escalation.
	clock.Advance(11 * time.Second)
	m.CheckStall()
	assert.Equal(t, 1, transport.recoverCount())
}

func TestStallNudgesBeforeEscalating(t *testing.T) {
	m, h, transport, clock, timers := newTestMonitor(t)
	attachFrozenSession(t, h)
	transport.setPlaying(true)

	m.CheckStall()
	clock.Advance(11 * time.Second)
	m.CheckStall()

	assert.Equal(t, 1, timers.Pending(), "first stall schedules a pause/play nudge")
	timers.Fire()
	assert.True(t, h.DeviceActive(), "nudge restarts the device")
}

func TestProgressResetsStallStreak(t *testing.T) {
	m, h, transport, clock, _ := newTestMonitor(t)
	attachFrozenSession(t, h)
	transport.setPlaying(true)

	m.CheckStall()
	clock.Advance(11 * time.Second)
	m.CheckStall() // stall 1
	clock.Advance(11 * time.Second)
	m.CheckStall() // stall 2

	// Data flows again.
	h.bytesDelivered.Add(4096)
	clock.Advance(11 * time.Second)
	m.CheckStall() // progress, streak resets

	clock.Advance(11 * time.Second)
	m.CheckStall() // stall 1 again
	clock.Advance(11 * time.Second)
	m.CheckStall() // stall 2 again
	assert.Zero(t, transport.recoverCount())
}

func TestPausedPlaybackIsNeverAStall(t *testing.T) {
	m, h, transport, clock, _ := newTestMonitor(t)
	attachFrozenSession(t, h)
	transport.setPlaying(false)

	for i := 0; i < 5; i++ {
		clock.Advance(11 * time.Second)
		m.CheckStall()
	}
	assert.Zero(t, transport.recoverCount())
}

func TestNudgeSkippedWhenPlaybackPausedMeanwhile(t *testing.T) {
	m, h, transport, clock, timers := newTestMonitor(t)
	attachFrozenSession(t, h)
	transport.setPlaying(true)

	m.CheckStall()
	clock.Advance(11 * time.Second)
	m.CheckStall()
	require.Equal(t, 1, timers.Pending())

	// An interruption pauses playback before the nudge timer fires.
	transport.setPlaying(false)
	timers.Fire()
	assert.False(t, h.DeviceActive(), "the nudge must not restart interrupted playback")
}

func TestNetworkRecoveryFiresOnceOnReconnect(t *testing.T) {
	m, h, transport, _, _ := newTestMonitor(t)
	attachFrozenSession(t, h)
	transport.setPlaying(true)

	m.HandleNetworkSignal(false)
	m.HandleNetworkSignal(false)
	assert.Zero(t, transport.recoverCount(), "staying offline does nothing")

	m.HandleNetworkSignal(true)
	assert.Equal(t, 1, transport.recoverCount(), "offline to online recovers once")

	m.HandleNetworkSignal(true)
	assert.Equal(t, 1, transport.recoverCount(), "staying online does not recover again")
}

func TestNetworkRecoverySkippedWhenIdle(t *testing.T) {
	m, _, transport, _, _ := newTestMonitor(t)
	transport.setPlaying(false)

	m.HandleNetworkSignal(false)
	m.HandleNetworkSignal(true)
	assert.Zero(t, transport.recoverCount(), "nothing to recover when not playing")
}

func TestNetworkRecoveryDefersToPendingResume(t *testing.T) {
	m, h, transport, _, _ := newTestMonitor(t)
	attachFrozenSession(t, h)
	transport.setPlaying(true)
	h.MarkShouldResume()

	m.HandleNetworkSignal(false)
	m.HandleNetworkSignal(true)
	assert.Zero(t, transport.recoverCount(), "a marked resume belongs to the interruption path")
}
