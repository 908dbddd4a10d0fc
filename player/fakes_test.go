package player

import (
	"context"
	"io"
	"sync"
	"time"
)

type fakeDevice struct {
	mu      sync.Mutex
	reader  io.Reader
	playing bool
	closed  bool
}

func (d *fakeDevice) Play() {
	d.mu.Lock()
	d.playing = true
	d.mu.Unlock()
}

func (d *fakeDevice) Pause() {
	d.mu.Lock()
	d.playing = false
	d.mu.Unlock()
}

func (d *fakeDevice) IsPlaying() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.playing
}

func (d *fakeDevice) Close() error {
	d.mu.Lock()
	d.playing = false
	d.closed = true
	d.mu.Unlock()
	return nil
}

type fakeOutput struct {
	mu      sync.Mutex
	devices []*fakeDevice
}

func (o *fakeOutput) NewDevice(r io.Reader) Device {
	d := &fakeDevice{reader: r}
	o.mu.Lock()
	o.devices = append(o.devices, d)
	o.mu.Unlock()
	return d
}

func (o *fakeOutput) lastDevice() *fakeDevice {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.devices) == 0 {
		return nil
	}
	return o.devices[len(o.devices)-1]
}

func newTestHandle() (*Handle, *fakeOutput) {
	out := &fakeOutput{}
	h := NewHandle(WithOutputFactory(func() (OutputContext, error) {
		return out, nil
	}))
	return h, out
}

type fakeSession struct {
	url  string
	kind StreamKind

	startErr  error
	startGate <-chan struct{} // when set, Start blocks until released
	data      io.Reader

	mu      sync.Mutex
	started bool
	closed  bool
}

func (s *fakeSession) Start(ctx context.Context) error {
	s.mu.Lock()
	s.started = true
	s.mu.Unlock()
	if s.startErr != nil {
		return s.startErr
	}
	if s.startGate != nil {
		select {
		case <-s.startGate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

func (s *fakeSession) Read(p []byte) (int, error) {
	if s.data == nil {
		return 0, io.EOF
	}
	return s.data.Read(p)
}

func (s *fakeSession) URL() string      { return s.url }
func (s *fakeSession) Kind() StreamKind { return s.kind }

func (s *fakeSession) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *fakeSession) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// fakeClock is a manually advanced clock shared by monitor and
// coordinator tests.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// timerQueue captures delayed callbacks so tests fire them explicitly
// instead of waiting on real timers.
type timerQueue struct {
	mu  sync.Mutex
	fns []func()
}

func (q *timerQueue) AfterFunc(d time.Duration, fn func()) *time.Timer {
	q.mu.Lock()
	q.fns = append(q.fns, fn)
	q.mu.Unlock()
	return nil
}

func (q *timerQueue) Fire() {
	q.mu.Lock()
	fns := q.fns
	q.fns = nil
	q.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (q *timerQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.fns)
}
