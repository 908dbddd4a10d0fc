package player

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestParseManifestMediaPlaylist(t *testing.T) {
	base := mustParseURL(t, "https://cdn.example.com/live/playlist.m3u8")
	body := `#EXTM3U
#EXT-X-VERSION:3
#EXT-X-TARGETDURATION:6
#EXT-X-MEDIA-SEQUENCE:2680
#EXTINF:6.0,
seg2680.aac
#EXTINF:6.0,
seg2681.aac
#EXTINF:6.0,
https://other.example.com/seg2682.aac
`

	info, err := parseManifest(base, body)
	require.NoError(t, err)
	assert.False(t, info.IsMaster)
	assert.True(t, info.Live)
	assert.Equal(t, 6*time.Second, info.TargetDuration)
	require.Len(t, info.Segments, 3)
	assert.Equal(t, "https://cdn.example.com/live/seg2680.aac", info.Segments[0])
	assert.Equal(t, "https://other.example.com/seg2682.aac", info.Segments[2])
}

func TestParseManifestMasterPlaylist(t *testing.T) {
	base := mustParseURL(t, "https://cdn.example.com/master.m3u8")
	body := `#EXTM3U
#EXT-X-STREAM-INF:BANDWIDTH=128000,CODECS="mp4a.40.2"
low/playlist.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=320000,CODECS="mp4a.40.2"
high/playlist.m3u8
`

	info, err := parseManifest(base, body)
	require.NoError(t, err)
	assert.True(t, info.IsMaster)
	require.Len(t, info.Variants, 2)
	assert.Equal(t, "https://cdn.example.com/low/playlist.m3u8", info.Variants[0])
	assert.Equal(t, "https://cdn.example.com/high/playlist.m3u8", info.Variants[1])
	assert.Empty(t, info.Segments)
}

func TestParseManifestDetectsVOD(t *testing.T) {
	base := mustParseURL(t, "https://cdn.example.com/show.m3u8")
	body := `#EXTM3U
#EXT-X-TARGETDURATION:10
#EXTINF:10.0,
part1.aac
#EXT-X-ENDLIST
`

	info, err := parseManifest(base, body)
	require.NoError(t, err)
	assert.False(t, info.Live)
}

func TestParseManifestRejectsGarbage(t *testing.T) {
	base := mustParseURL(t, "https://cdn.example.com/x.m3u8")

	_, err := parseManifest(base, "<html>not a playlist</html>")
	assert.ErrorIs(t, err, errInvalidManifest)

	_, err = parseManifest(base, "#EXTM3U\n#EXT-X-VERSION:3\n")
	assert.ErrorIs(t, err, errInvalidManifest, "a playlist with no entries is unusable")
}

func TestParseManifestErrorClassifiesAsMedia(t *testing.T) {
	assert.Equal(t, FailureMedia, classifyFailure(errInvalidManifest))
}

func TestHLSSessionKind(t *testing.T) {
	s := newHLSSession("https://cdn.example.com/live.m3u8")
	assert.Equal(t, StreamSegmented, s.Kind())
	assert.Equal(t, "https://cdn.example.com/live.m3u8", s.URL())
	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "close is idempotent")

	_, err := s.Read(make([]byte, 16))
	assert.ErrorIs(t, err, ErrStreamEnded)
}
