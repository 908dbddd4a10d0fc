package player

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"airwave/logging"
)

const defaultLoadTimeout = 15 * time.Second

// SessionFactory builds a session for a classified stream. Swapped out
// in tests for sessions that never touch the network.
type SessionFactory func(url string, kind StreamKind, withCredentials bool, onTitle func(string)) Session

func defaultSessionFactory(url string, kind StreamKind, withCredentials bool, onTitle func(string)) Session {
	if kind == StreamSegmented {
		return newHLSSession(url)
	}
	return newDirectSession(url, withCredentials, onTitle)
}

// Loader turns a station URL into an attached, producing session. Each
// load runs the full ladder: classify, connect with a bounded timeout,
// retry with exponential backoff, attach on success. Loads supersede
// each other; when a newer load starts, every older one aborts with
// ErrSuperseded at its next step, so only the latest request ever
// reaches the output.
type Loader struct {
	handle      *Handle
	policy      RetryPolicy
	loadTimeout time.Duration
	newSession  SessionFactory
	log         zerolog.Logger

	gen atomic.Uint64
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithSessionFactory replaces the session constructor.
func WithSessionFactory(f SessionFactory) LoaderOption {
	return func(l *Loader) { l.newSession = f }
}

// WithLoadTimeout bounds a single connect attempt.
func WithLoadTimeout(d time.Duration) LoaderOption {
	return func(l *Loader) { l.loadTimeout = d }
}

// WithRetryPolicy replaces the default retry ladder.
func WithRetryPolicy(p RetryPolicy) LoaderOption {
	return func(l *Loader) { l.policy = p }
}

func NewLoader(handle *Handle, opts ...LoaderOption) *Loader {
	l := &Loader{
		handle:      handle,
		policy:      DefaultRetryPolicy(),
		loadTimeout: defaultLoadTimeout,
		newSession:  defaultSessionFactory,
		log:         logging.WithComponent("loader"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Invalidate aborts any load in flight without starting a new one.
// Used when playback stops entirely.
func (l *Loader) Invalidate() {
	l.gen.Add(1)
}

// Load connects url and attaches the resulting session to the output.
// It blocks through the retry ladder and returns the terminal error if
// every attempt fails. A newer Load or Invalidate call makes this one
// return ErrSuperseded.
func (l *Loader) Load(ctx context.Context, url string, onTitle func(string)) error {
	gen := l.gen.Add(1)
	kind := ClassifyStream(url)

	log := l.log.With().Str("url", url).Stringer("kind", kind).Logger()
	log.Info().Msg("loading stream")

	policy := l.policy
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		log.Warn().
			Int("attempt", attempt).
			Dur("delay", delay).
			Err(err).
			Msg("stream load failed, retrying")
		if l.policy.OnRetry != nil {
			l.policy.OnRetry(attempt, delay, err)
		}
	}

	err := policy.Run(ctx, func() error {
		return l.attempt(ctx, gen, url, kind, onTitle)
	})
	if err != nil {
		if errors.Is(err, ErrSuperseded) {
			log.Debug().Msg("load superseded")
			return ErrSuperseded
		}
		class := classifyFailure(err)
		log.Error().Err(err).Stringer("class", class).Msg("stream load failed permanently")
		return newStreamError(class, url, err)
	}

	log.Info().Msg("stream attached")
	return nil
}

func (l *Loader) attempt(ctx context.Context, gen uint64, url string, kind StreamKind, onTitle func(string)) error {
	if gen != l.gen.Load() {
		return Permanent(ErrSuperseded)
	}

	withCredentials := kind == StreamCORSRequired

	sess, err := l.connect(ctx, url, kind, withCredentials, onTitle)
	if err != nil && kind == StreamDirect && !isNonRetryable(err) {
		// Some direct hosts only answer requests that carry cookies
		// and an origin. One credentialed attempt before burning a
		// rung of the ladder.
		l.log.Debug().Err(err).Msg("retrying direct stream with credentials")
		sess, err = l.connect(ctx, url, kind, true, onTitle)
	}
	if err != nil {
		if isNonRetryable(err) {
			return Permanent(err)
		}
		return err
	}

	if gen != l.gen.Load() {
		sess.Close()
		return Permanent(ErrSuperseded)
	}

	if err := l.handle.Attach(sess); err != nil {
		sess.Close()
		return fmt.Errorf("failed to attach session: %w", err)
	}
	return nil
}

func (l *Loader) connect(ctx context.Context, url string, kind StreamKind, withCredentials bool, onTitle func(string)) (Session, error) {
	sess := l.newSession(url, kind, withCredentials, onTitle)

	loadCtx, cancel := context.WithTimeout(ctx, l.loadTimeout)
	defer cancel()

	if err := sess.Start(loadCtx); err != nil {
		sess.Close()
		return nil, err
	}
	return sess, nil
}
