package player

import (
	"net/url"
	"path"
	"strings"
)

// StreamKind is the loading strategy a URL calls for. Classification is
// pure and URL-based; no network round trip is involved.
type StreamKind int

const (
	// StreamDirect is a plain progressive HTTP audio response.
	StreamDirect StreamKind = iota
	// StreamSegmented is manifest-driven segmented streaming (HLS).
	StreamSegmented
	// StreamCORSRequired is a direct stream from a provider that only
	// answers requests carrying an Origin and credentials.
	StreamCORSRequired
)

func (k StreamKind) String() string {
	switch k {
	case StreamDirect:
		return "direct"
	case StreamSegmented:
		return "segmented"
	case StreamCORSRequired:
		return "cors-required"
	default:
		return "unknown"
	}
}

// Hostname fragments of providers known to refuse anonymous
// cross-origin requests.
var corsRequiredHosts = []string{
	"radiojar.com",
	"zeno.fm",
	"streamtheworld.com",
}

// ClassifyStream decides how a station URL should be loaded.
func ClassifyStream(rawURL string) StreamKind {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return StreamDirect
	}

	ext := strings.ToLower(path.Ext(u.Path))
	if ext == ".m3u8" || ext == ".m3u" {
		return StreamSegmented
	}

	host := strings.ToLower(u.Hostname())
	for _, h := range corsRequiredHosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return StreamCORSRequired
		}
	}

	return StreamDirect
}
