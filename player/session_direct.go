package player

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hajimehoshi/go-mp3"
	"github.com/rs/zerolog"

	"airwave/logging"
)

const (
	userAgent       = "airwave/1.0"
	icyMaxMetaBytes = 4080
)

// newStreamClient builds the HTTP client used for live audio: generous
// per-phase timeouts but no overall deadline, because the response body
// is read for as long as the station plays.
func newStreamClient(withCredentials bool) *http.Client {
	c := &http.Client{
		Timeout: 0,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout: 10 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 15 * time.Second,
			MaxIdleConns:          10,
			IdleConnTimeout:       90 * time.Second,
			DisableCompression:    true,
		},
	}
	if withCredentials {
		// Some providers refuse anonymous cross-origin requests; give
		// them a cookie jar and an Origin so their session handshake
		// works.
		jar, err := cookiejar.New(nil)
		if err == nil {
			c.Jar = jar
		}
	}
	return c
}

// directSession plays a plain progressive HTTP audio response: connect,
// strip ICY metadata, decode MP3, resample to the output rate.
type directSession struct {
	url             string
	withCredentials bool
	onTitle         func(string)
	log             zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	resp   *http.Response
	pcm    io.Reader
	closed bool
}

func newDirectSession(url string, withCredentials bool, onTitle func(string)) *directSession {
	return &directSession{
		url:             url,
		withCredentials: withCredentials,
		onTitle:         onTitle,
		log:             logging.WithComponent("stream.direct").With().Str("url", url).Logger(),
	}
}

func (s *directSession) URL() string { return s.url }

func (s *directSession) Kind() StreamKind {
	if s.withCredentials {
		return StreamCORSRequired
	}
	return StreamDirect
}

// Start connects and initializes the decoder. It returns once the
// stream header, the first media data, has been read, or when ctx
// expires, whichever comes first.
func (s *directSession) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.connect() }()

	select {
	case err := <-done:
		if err != nil {
			s.Close()
		}
		return err
	case <-ctx.Done():
		s.Close()
		return fmt.Errorf("%w: %v", ErrLoadTimeout, ctx.Err())
	}
}

func (s *directSession) connect() error {
	req, err := http.NewRequestWithContext(s.ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Icy-MetaData", "1")
	if s.withCredentials {
		req.Header.Set("Origin", "https://airwave.app")
	}

	client := newStreamClient(s.withCredentials)
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to stream: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return &httpStatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	s.log.Debug().
		Str("content_type", resp.Header.Get("Content-Type")).
		Str("icy_name", resp.Header.Get("icy-name")).
		Msg("stream connected")

	// 64KB buffer absorbs network jitter
	var body io.Reader = bufio.NewReaderSize(resp.Body, 65536)

	if metaint, _ := strconv.Atoi(resp.Header.Get("icy-metaint")); metaint > 0 {
		body = newICYReader(body, metaint, s.onTitle, s.log)
	}

	dec, err := mp3.NewDecoder(body)
	if err != nil {
		resp.Body.Close()
		return fmt.Errorf("failed to decode stream: %w", err)
	}

	s.mu.Lock()
	s.resp = resp
	s.pcm = newResampleReader(dec, dec.SampleRate(), outputSampleRate)
	s.mu.Unlock()

	s.log.Debug().Int("sample_rate", dec.SampleRate()).Msg("decoder ready")
	return nil
}

func (s *directSession) Read(p []byte) (int, error) {
	s.mu.Lock()
	pcm := s.pcm
	closed := s.closed
	s.mu.Unlock()

	if closed || pcm == nil {
		return 0, ErrStreamEnded
	}

	n, err := pcm.Read(p)
	if err == io.EOF {
		// A live stream has no natural end; EOF means the server or
		// network dropped us.
		err = ErrStreamEnded
	}
	return n, err
}

func (s *directSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.cancel != nil {
		s.cancel()
	}
	if s.resp != nil {
		s.resp.Body.Close()
		s.resp = nil
	}
	return nil
}

// icyReader strips interleaved ICY metadata blocks from a stream and
// reports StreamTitle changes.
type icyReader struct {
	src       *bufio.Reader
	metaint   int
	remaining int
	onTitle   func(string)
	lastTitle string
	log       zerolog.Logger
}

func newICYReader(src io.Reader, metaint int, onTitle func(string), log zerolog.Logger) *icyReader {
	return &icyReader{
		src:       bufio.NewReader(src),
		metaint:   metaint,
		remaining: metaint,
		onTitle:   onTitle,
		log:       log,
	}
}

func (r *icyReader) Read(p []byte) (int, error) {
	if r.remaining == 0 {
		if err := r.consumeMetadata(); err != nil {
			return 0, err
		}
		r.remaining = r.metaint
	}

	limit := len(p)
	if limit > r.remaining {
		limit = r.remaining
	}
	n, err := r.src.Read(p[:limit])
	r.remaining -= n
	return n, err
}

func (r *icyReader) consumeMetadata() error {
	lenByte, err := r.src.ReadByte()
	if err != nil {
		return err
	}
	metaLen := int(lenByte) * 16
	if metaLen == 0 {
		return nil
	}
	if metaLen > icyMaxMetaBytes {
		r.log.Warn().Int("meta_len", metaLen).Msg("oversized ICY metadata block, skipping")
		_, err := io.CopyN(io.Discard, r.src, int64(metaLen))
		return err
	}

	meta := make([]byte, metaLen)
	if _, err := io.ReadFull(r.src, meta); err != nil {
		return err
	}

	if title, ok := parseStreamTitle(string(meta)); ok && title != r.lastTitle {
		r.lastTitle = title
		if r.onTitle != nil {
			r.onTitle(title)
		}
	}
	return nil
}

func parseStreamTitle(meta string) (string, bool) {
	const marker = "StreamTitle='"
	start := strings.Index(meta, marker)
	if start < 0 {
		return "", false
	}
	start += len(marker)
	end := strings.Index(meta[start:], "';")
	if end < 0 {
		return "", false
	}
	return meta[start : start+end], true
}
