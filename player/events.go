package player

import (
	"sync"
	"time"

	"airwave/model"
)

// Snapshot is a point-in-time view of the playback state pushed to
// subscribers after every transition.
type Snapshot struct {
	Station     *model.Station
	IsPlaying   bool
	IsLoading   bool
	RandomMode  bool
	Volume      float64
	StreamTitle string

	// Position is time played on the current session. Duration stays
	// zero for live streams, which have no known end.
	Position time.Duration
	Duration time.Duration
}

// FailureReport describes a terminal load or playback failure, after
// the retry ladder has been exhausted.
type FailureReport struct {
	Station *model.Station
	Class   FailureClass
	Err     error
}

// Subscription delivers playback events. Channels are buffered and
// sends never block; a slow consumer loses intermediate snapshots, not
// the player's progress.
type Subscription struct {
	state    chan Snapshot
	failures chan FailureReport
	titles   chan string
	done     chan struct{}
	once     sync.Once
}

func newSubscription() *Subscription {
	return &Subscription{
		state:    make(chan Snapshot, 16),
		failures: make(chan FailureReport, 4),
		titles:   make(chan string, 4),
		done:     make(chan struct{}),
	}
}

// State delivers a snapshot after every playback state transition.
func (s *Subscription) State() <-chan Snapshot { return s.state }

// Failures delivers terminal failure reports.
func (s *Subscription) Failures() <-chan FailureReport { return s.failures }

// Titles delivers in-stream title updates.
func (s *Subscription) Titles() <-chan string { return s.titles }

// Done is closed when the subscription is cancelled.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Close cancels the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() { close(s.done) })
}

type broadcaster struct {
	mu   sync.Mutex
	subs map[*Subscription]struct{}
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[*Subscription]struct{})}
}

func (b *broadcaster) subscribe() *Subscription {
	sub := newSubscription()
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

func (b *broadcaster) each(fn func(*Subscription)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs {
		select {
		case <-sub.done:
			delete(b.subs, sub)
		default:
			fn(sub)
		}
	}
}

func (b *broadcaster) publishState(snap Snapshot) {
	b.each(func(sub *Subscription) {
		select {
		case sub.state <- snap:
		default:
		}
	})
}

func (b *broadcaster) publishFailure(report FailureReport) {
	b.each(func(sub *Subscription) {
		select {
		case sub.failures <- report:
		default:
		}
	})
}

func (b *broadcaster) publishTitle(title string) {
	b.each(func(sub *Subscription) {
		select {
		case sub.titles <- title:
		default:
		}
	})
}
