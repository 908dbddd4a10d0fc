package player

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Comcast/gaad"
	"github.com/rs/zerolog"

	"airwave/logging"
)

var errInvalidManifest = errors.New("invalid HLS manifest")

// manifestInfo is what the probe learns from an HLS playlist.
type manifestInfo struct {
	IsMaster       bool
	Variants       []string // absolute variant URIs (master playlists)
	Segments       []string // absolute segment URIs (media playlists)
	TargetDuration time.Duration
	Live           bool
}

// parseManifest scans an m3u8 playlist. Only the fields the probe needs
// are extracted; the decode pipeline consumes the manifest itself.
func parseManifest(base *url.URL, body string) (*manifestInfo, error) {
	if !strings.HasPrefix(strings.TrimSpace(body), "#EXTM3U") {
		return nil, errInvalidManifest
	}

	info := &manifestInfo{Live: true}
	scanner := bufio.NewScanner(strings.NewReader(body))
	nextIsVariant := false

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, "#EXT-X-STREAM-INF:"):
			info.IsMaster = true
			nextIsVariant = true
			continue
		case strings.HasPrefix(line, "#EXT-X-TARGETDURATION:"):
			if secs, err := strconv.Atoi(strings.TrimPrefix(line, "#EXT-X-TARGETDURATION:")); err == nil {
				info.TargetDuration = time.Duration(secs) * time.Second
			}
			continue
		case line == "#EXT-X-ENDLIST", strings.HasPrefix(line, "#EXT-X-PLAYLIST-TYPE:VOD"):
			info.Live = false
			continue
		case strings.HasPrefix(line, "#"):
			continue
		}

		resolved := line
		if ref, err := url.Parse(line); err == nil {
			resolved = base.ResolveReference(ref).String()
		}
		if nextIsVariant {
			info.Variants = append(info.Variants, resolved)
			nextIsVariant = false
		} else {
			info.Segments = append(info.Segments, resolved)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if len(info.Variants) == 0 && len(info.Segments) == 0 {
		return nil, errInvalidManifest
	}
	return info, nil
}

// hlsSession plays a segmented stream: the manifest is probed over
// HTTP, then an ffmpeg pipeline decodes the stream to s16le PCM on
// stdout, which feeds the device.
type hlsSession struct {
	url string
	log zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	cmd    *exec.Cmd
	stdout *bufio.Reader
	closed bool
}

func newHLSSession(url string) *hlsSession {
	return &hlsSession{
		url: url,
		log: logging.WithComponent("stream.hls").With().Str("url", url).Logger(),
	}
}

func (s *hlsSession) URL() string      { return s.url }
func (s *hlsSession) Kind() StreamKind { return StreamSegmented }

// Start probes the manifest and spins up the decode pipeline. It
// returns once the first decoded media bytes are available, which is
// the segmented success signal.
func (s *hlsSession) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(context.Background())

	if err := s.probe(ctx); err != nil {
		s.Close()
		return err
	}

	if err := s.startPipeline(); err != nil {
		s.Close()
		return err
	}

	// First media fragment arrival clears the load.
	ready := make(chan error, 1)
	go func() {
		_, err := s.stdout.Peek(1)
		ready <- err
	}()

	select {
	case err := <-ready:
		if err != nil {
			s.Close()
			return fmt.Errorf("decode pipeline produced no data: %w", err)
		}
		return nil
	case <-ctx.Done():
		s.Close()
		return fmt.Errorf("%w: %v", ErrLoadTimeout, ctx.Err())
	}
}

// probe fetches and validates the manifest. Network errors and bad
// statuses classify as network failures; a syntactically broken
// manifest classifies as a media failure.
func (s *hlsSession) probe(ctx context.Context) error {
	base, err := url.Parse(s.url)
	if err != nil {
		return fmt.Errorf("%w: %v", errInvalidManifest, err)
	}

	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	body, err := fetchText(probeCtx, s.url)
	if err != nil {
		return err
	}

	info, err := parseManifest(base, body)
	if err != nil {
		return err
	}

	s.log.Debug().
		Bool("master", info.IsMaster).
		Bool("live", info.Live).
		Int("variants", len(info.Variants)).
		Int("segments", len(info.Segments)).
		Dur("target_duration", info.TargetDuration).
		Msg("manifest parsed")

	// Media playlists with raw ADTS segments can tell us the audio
	// format up front. Diagnostic only; decode handles the rest.
	if len(info.Segments) > 0 {
		s.probeSegmentFormat(probeCtx, info.Segments[0])
	}
	return nil
}

func (s *hlsSession) probeSegmentFormat(ctx context.Context, segmentURL string) {
	if !strings.Contains(segmentURL, ".aac") {
		return
	}
	data, err := fetchBytes(ctx, segmentURL, 64*1024)
	if err != nil {
		s.log.Debug().Err(err).Msg("segment format probe skipped")
		return
	}
	adts, err := gaad.ParseADTS(data)
	if err != nil {
		s.log.Debug().Err(err).Msg("segment is not ADTS")
		return
	}
	s.log.Debug().
		Uint32("sample_rate", adts.SamplingFrequency).
		Uint8("channels", adts.ChannelConfiguration).
		Msg("segment format probed")
}

func (s *hlsSession) startPipeline() error {
	cmd := exec.CommandContext(s.ctx, "ffmpeg",
		"-reconnect", "1",
		"-reconnect_streamed", "1",
		"-reconnect_delay_max", "10",
		"-user_agent", userAgent,
		"-i", s.url,
		"-f", "s16le",
		"-ar", strconv.Itoa(outputSampleRate),
		"-ac", strconv.Itoa(outputChannels),
		"-fflags", "+nobuffer+flush_packets",
		"-flags", "low_delay",
		"-loglevel", "error",
		"pipe:1",
	)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to get stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to get stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start decode pipeline: %w", err)
	}

	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			s.log.Warn().Str("ffmpeg", scanner.Text()).Msg("pipeline stderr")
		}
	}()

	s.mu.Lock()
	s.cmd = cmd
	s.stdout = bufio.NewReaderSize(stdout, 32768)
	s.mu.Unlock()

	s.log.Debug().Msg("decode pipeline started")
	return nil
}

func (s *hlsSession) Read(p []byte) (int, error) {
	s.mu.Lock()
	stdout := s.stdout
	closed := s.closed
	s.mu.Unlock()

	if closed || stdout == nil {
		return 0, ErrStreamEnded
	}

	n, err := stdout.Read(p)
	if err == io.EOF {
		err = ErrStreamEnded
	}
	return n, err
}

func (s *hlsSession) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	cmd := s.cmd
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	if cmd != nil {
		// Reap in the background; the process dies from the context
		// cancellation.
		go func() { _ = cmd.Wait() }()
	}
	return nil
}

func fetchText(ctx context.Context, rawURL string) (string, error) {
	data, err := fetchBytes(ctx, rawURL, 1<<20)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func fetchBytes(ctx context.Context, rawURL string, limit int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &httpStatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}
	return io.ReadAll(io.LimitReader(resp.Body, limit))
}
