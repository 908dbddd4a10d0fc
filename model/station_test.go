package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleStations() []Station {
	return []Station{
		{URL: "https://a.example.com/stream", Name: "Alpha Jazz"},
		{URL: "https://b.example.com/stream", Name: "Beta Rock"},
		{URL: "https://c.example.com/stream", Name: "Chillout Cafe"},
	}
}

func TestNewLibraryDedupesAndSkipsEmptyURLs(t *testing.T) {
	stations := append(sampleStations(),
		Station{URL: "https://a.example.com/stream", Name: "Alpha Duplicate"},
		Station{URL: "", Name: "No URL"},
	)
	l := NewLibrary(stations)

	assert.Equal(t, 3, l.Len())
	got, ok := l.Get("https://a.example.com/stream")
	require.True(t, ok)
	assert.Equal(t, "Alpha Jazz", got.Name, "first occurrence wins")
}

func TestLibraryAddRemove(t *testing.T) {
	l := NewLibrary(sampleStations())

	assert.False(t, l.Add(Station{URL: "https://a.example.com/stream"}), "duplicate add is a no-op")
	assert.False(t, l.Add(Station{Name: "no url"}))
	assert.True(t, l.Add(Station{URL: "https://d.example.com/stream", Name: "Delta"}))
	assert.Equal(t, 4, l.Len())

	require.True(t, l.Remove("https://b.example.com/stream"))
	assert.False(t, l.Remove("https://b.example.com/stream"), "second remove reports absent")
	assert.False(t, l.Contains("https://b.example.com/stream"))

	// Index stays consistent after the middle element is gone.
	got, ok := l.Get("https://c.example.com/stream")
	require.True(t, ok)
	assert.Equal(t, "Chillout Cafe", got.Name)
	assert.Equal(t, []string{
		"https://a.example.com/stream",
		"https://c.example.com/stream",
		"https://d.example.com/stream",
	}, urls(l.Stations()))
}

func TestLibraryToggleFavorite(t *testing.T) {
	l := NewLibrary(sampleStations())

	assert.True(t, l.ToggleFavorite("https://b.example.com/stream"))
	assert.Equal(t, []string{"https://b.example.com/stream"}, urls(l.Favorites()))

	assert.False(t, l.ToggleFavorite("https://b.example.com/stream"))
	assert.Empty(t, l.Favorites())

	assert.False(t, l.ToggleFavorite("https://nope.example.com/stream"))
}

func TestLibraryPlayTimeAndMostPlayed(t *testing.T) {
	l := NewLibrary(sampleStations())

	l.AddPlayTime("https://b.example.com/stream", 120)
	l.AddPlayTime("https://b.example.com/stream", 30)
	l.AddPlayTime("https://c.example.com/stream", 60)
	l.AddPlayTime("https://c.example.com/stream", -5)
	l.AddPlayTime("https://nope.example.com/stream", 999)

	got, ok := l.Get("https://b.example.com/stream")
	require.True(t, ok)
	assert.Equal(t, int64(150), got.PlayTimeSeconds)

	top := l.MostPlayed(2)
	assert.Equal(t, []string{
		"https://b.example.com/stream",
		"https://c.example.com/stream",
	}, urls(top))
}

func TestLibrarySearch(t *testing.T) {
	l := NewLibrary(sampleStations())

	assert.Equal(t, []string{"https://c.example.com/stream"}, urls(l.Search("CHILL")))
	assert.Len(t, l.Search("  "), 3, "blank query returns everything")
	assert.Empty(t, l.Search("polka"))
}

func TestLibraryStationsReturnsCopy(t *testing.T) {
	l := NewLibrary(sampleStations())
	out := l.Stations()
	out[0].Name = "mutated"

	got, ok := l.Get("https://a.example.com/stream")
	require.True(t, ok)
	assert.Equal(t, "Alpha Jazz", got.Name)
}

func urls(stations []Station) []string {
	out := make([]string, 0, len(stations))
	for _, s := range stations {
		out = append(out, s.URL)
	}
	return out
}
