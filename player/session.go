package player

import (
	"context"
	"io"
)

// Session is one live stream pipeline: it connects to a station URL and
// produces normalized s16le stereo PCM at the output rate. A session is
// owned exclusively by the loader; at most one exists at a time and it
// is always closed before a replacement is created.
type Session interface {
	// Start connects the pipeline. It returns once the first media data
	// has arrived (manifest parsed / stream decodable) or ctx expires.
	Start(ctx context.Context) error

	// Read delivers normalized PCM. It is handed to the device and
	// must tolerate being called after Close (returning an error).
	io.Reader

	// URL is the station URL this session was built for.
	URL() string

	// Kind reports the loading strategy used.
	Kind() StreamKind

	// Close tears the pipeline down: connections, subprocesses and
	// goroutines are all released. Idempotent.
	Close() error
}
